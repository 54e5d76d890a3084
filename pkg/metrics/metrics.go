// Package metrics registers the helpdesk prometheus collectors and serves
// them over fasthttp.
package metrics

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	GatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_gateway_requests_total",
			Help: "Messaging gateway calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	GatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "helpdesk_gateway_request_seconds",
			Help:    "Messaging gateway call latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	CaseTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_case_transitions_total",
			Help: "Case lifecycle actions recorded, by action.",
		},
		[]string{"action"},
	)

	TimelineRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_timeline_requests_total",
			Help: "Timeline requests by whether the gateway was queried.",
		},
		[]string{"source"},
	)

	LabellerMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_labeller_messages_total",
			Help: "Unsolicited messages processed by the labelling task, by result.",
		},
		[]string{"result"},
	)

	LabellerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_labeller_runs_total",
			Help: "Labelling task runs by outcome.",
		},
		[]string{"outcome"},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_events_published_total",
			Help: "Lifecycle events handed to the event publisher.",
		},
		[]string{"type", "outcome"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_http_requests_total",
			Help: "API requests by method and status code.",
		},
		[]string{"method", "status"},
	)

	gcPauseTotal = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "helpdesk_gc_pause_total_ns",
			Help: "Total GC pause time in nanoseconds.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.PauseTotalNs)
		},
	)

	heapAlloc = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "helpdesk_heap_alloc_bytes",
			Help: "Current heap allocation in bytes.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.HeapAlloc)
		},
	)
)

func init() {
	prometheus.MustRegister(
		GatewayRequests,
		GatewayLatency,
		CaseTransitions,
		TimelineRequests,
		LabellerMessages,
		LabellerRuns,
		EventsPublished,
		HTTPRequests,
		gcPauseTotal,
		heapAlloc,
	)
}

var storeGaugeOnce sync.Once

// RegisterStoreUsage exposes the store's on-disk size. Only the first call
// registers.
func RegisterStoreUsage(usage func() uint64) {
	storeGaugeOnce.Do(func() {
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "helpdesk_store_disk_bytes",
				Help: "Bytes used on disk by the pebble store.",
			},
			func() float64 { return float64(usage()) },
		))
	})
}

// Handler serves the default registry in the prometheus text format.
func Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
}
