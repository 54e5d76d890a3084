package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"github.com/praekelt/helpdesk/pkg/logger"
	"github.com/praekelt/helpdesk/pkg/metrics"
	"github.com/praekelt/helpdesk/pkg/utils"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRPS     = 5
	defaultBurst   = 10
)

type ClientOptions struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	RPS     float64
	Burst   int

	// Dial replaces the TCP dialer, used by tests to reach an in-memory server.
	Dial func(addr string) (net.Conn, error)
}

// StatusError is returned when the gateway answers with a non-2xx status.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.Status, utils.Truncate(e.Body, 200))
}

// Client talks to the gateway's REST API over fasthttp. Calls are throttled
// by a token bucket shared by all callers of the client.
type Client struct {
	base    string
	token   string
	timeout time.Duration
	http    *fasthttp.Client
	limiter *rate.Limiter
}

func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := opts.RPS
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	return &Client{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		timeout: timeout,
		http: &fasthttp.Client{
			Name:         "helpdesk",
			Dial:         opts.Dial,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

type page[T any] struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []T     `json:"results"`
}

func (c *Client) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, args *fasthttp.Args, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("gateway %s: %w", op, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := c.base + "/api/v1/" + endpoint + ".json"
	if args != nil && args.Len() > 0 {
		uri += "?" + string(args.QueryString())
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(b)
	}

	start := time.Now()
	err := c.http.DoDeadline(req, resp, c.deadline(ctx))
	metrics.GatewayLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GatewayRequests.WithLabelValues(op, "error").Inc()
		logger.Error("gateway_request_failed", "op", op, "error", err)
		return fmt.Errorf("gateway %s: %w", op, err)
	}

	status := resp.StatusCode()
	metrics.GatewayRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	if status == fasthttp.StatusNotFound {
		return fmt.Errorf("gateway %s: %w", op, ErrNotFound)
	}
	if status < 200 || status >= 300 {
		logger.Warn("gateway_bad_status", "op", op, "status", status)
		return &StatusError{Op: op, Status: status, Body: string(resp.Body())}
	}
	if out != nil && len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("gateway %s: decode: %w", op, err)
		}
	}
	return nil
}

// fetchAll walks every page of a list endpoint.
func fetchAll[T any](ctx context.Context, c *Client, op, endpoint string, args *fasthttp.Args) ([]T, error) {
	var all []T
	for n := 1; ; n++ {
		args.Set("page", strconv.Itoa(n))
		var p page[T]
		if err := c.do(ctx, op, fasthttp.MethodGet, endpoint, args, nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Results...)
		if p.Next == nil || len(p.Results) == 0 {
			return all, nil
		}
	}
}

func messageArgs(q MessageQuery) *fasthttp.Args {
	args := &fasthttp.Args{}
	for _, v := range q.Contacts {
		args.Add("contact", v)
	}
	for _, v := range q.Groups {
		args.Add("group", v)
	}
	for _, v := range q.Labels {
		args.Add("label", v)
	}
	for _, v := range q.Types {
		args.Add("type", v)
	}
	if q.Text != "" {
		args.Set("text", q.Text)
	}
	if q.Direction != "" {
		args.Set("direction", q.Direction)
	}
	if q.Archived != nil {
		if *q.Archived {
			args.Set("archived", "1")
		} else {
			args.Set("archived", "0")
		}
	}
	if !q.After.IsZero() {
		args.Set("after", utils.FormatISO8601(q.After))
	}
	if !q.Before.IsZero() {
		args.Set("before", utils.FormatISO8601(q.Before))
	}
	return args
}

func (c *Client) GetMessages(ctx context.Context, q MessageQuery) ([]Message, error) {
	args := messageArgs(q)
	if q.Pager == nil {
		return fetchAll[Message](ctx, c, "get_messages", "messages", args)
	}
	n := q.Pager.Page
	if n < 1 {
		n = 1
	}
	args.Set("page", strconv.Itoa(n))
	var p page[Message]
	if err := c.do(ctx, "get_messages", fasthttp.MethodGet, "messages", args, nil, &p); err != nil {
		return nil, err
	}
	q.Pager.HasMore = p.Next != nil
	return p.Results, nil
}

func (c *Client) GetMessage(ctx context.Context, id int64) (*Message, error) {
	args := &fasthttp.Args{}
	args.Set("id", strconv.FormatInt(id, 10))
	var p page[Message]
	if err := c.do(ctx, "get_message", fasthttp.MethodGet, "messages", args, nil, &p); err != nil {
		return nil, err
	}
	if len(p.Results) == 0 {
		return nil, fmt.Errorf("gateway get_message %d: %w", id, ErrNotFound)
	}
	return &p.Results[0], nil
}

type messageAction struct {
	Messages  []int64 `json:"messages"`
	Action    string  `json:"action"`
	Label     string  `json:"label,omitempty"`
	LabelUUID string  `json:"label_uuid,omitempty"`
}

func (c *Client) messageAction(ctx context.Context, action string, ids []int64, label LabelRef) error {
	if len(ids) == 0 {
		return nil
	}
	body := messageAction{Messages: ids, Action: action, Label: label.Name, LabelUUID: label.UUID}
	return c.do(ctx, action+"_messages", fasthttp.MethodPost, "message_actions", nil, body, nil)
}

func (c *Client) ArchiveMessages(ctx context.Context, ids []int64) error {
	return c.messageAction(ctx, "archive", ids, LabelRef{})
}

func (c *Client) UnarchiveMessages(ctx context.Context, ids []int64) error {
	return c.messageAction(ctx, "unarchive", ids, LabelRef{})
}

func (c *Client) LabelMessages(ctx context.Context, ids []int64, label LabelRef) error {
	return c.messageAction(ctx, "label", ids, label)
}

func (c *Client) UnlabelMessages(ctx context.Context, ids []int64, label LabelRef) error {
	return c.messageAction(ctx, "unlabel", ids, label)
}

func (c *Client) GetContact(ctx context.Context, uuid string) (*Contact, error) {
	args := &fasthttp.Args{}
	args.Set("uuid", uuid)
	var p page[Contact]
	if err := c.do(ctx, "get_contact", fasthttp.MethodGet, "contacts", args, nil, &p); err != nil {
		return nil, err
	}
	if len(p.Results) == 0 {
		return nil, fmt.Errorf("gateway get_contact %s: %w", uuid, ErrNotFound)
	}
	return &p.Results[0], nil
}

type contactAction struct {
	Contacts  []string `json:"contacts"`
	Action    string   `json:"action"`
	GroupUUID string   `json:"group_uuid,omitempty"`
}

func (c *Client) contactAction(ctx context.Context, action string, uuids []string, group string) error {
	if len(uuids) == 0 {
		return nil
	}
	body := contactAction{Contacts: uuids, Action: action, GroupUUID: group}
	return c.do(ctx, action+"_contacts", fasthttp.MethodPost, "contact_actions", nil, body, nil)
}

func (c *Client) RemoveContacts(ctx context.Context, uuids []string, groupUUID string) error {
	return c.contactAction(ctx, "remove", uuids, groupUUID)
}

func (c *Client) AddContacts(ctx context.Context, uuids []string, groupUUID string) error {
	return c.contactAction(ctx, "add", uuids, groupUUID)
}

func (c *Client) ExpireContacts(ctx context.Context, uuids []string) error {
	return c.contactAction(ctx, "expire", uuids, "")
}

// GetGroups returns the named groups, or every group when uuids is empty.
func (c *Client) GetGroups(ctx context.Context, uuids []string) ([]Group, error) {
	args := &fasthttp.Args{}
	for _, u := range uuids {
		args.Add("uuid", u)
	}
	return fetchAll[Group](ctx, c, "get_groups", "groups", args)
}

func (c *Client) GetLabels(ctx context.Context) ([]Label, error) {
	return fetchAll[Label](ctx, c, "get_labels", "labels", &fasthttp.Args{})
}

func (c *Client) CreateLabel(ctx context.Context, name string) (*Label, error) {
	var l Label
	body := map[string]string{"name": name}
	if err := c.do(ctx, "create_label", fasthttp.MethodPost, "labels", nil, body, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Client) UpdateLabel(ctx context.Context, uuid, name string) (*Label, error) {
	var l Label
	body := map[string]string{"uuid": uuid, "name": name}
	if err := c.do(ctx, "update_label", fasthttp.MethodPost, "labels", nil, body, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Client) CreateBroadcast(ctx context.Context, text string, urns, contacts []string) (*Broadcast, error) {
	if urns == nil {
		urns = []string{}
	}
	if contacts == nil {
		contacts = []string{}
	}
	body := map[string]any{"text": text, "urns": urns, "contacts": contacts}
	var b Broadcast
	if err := c.do(ctx, "create_broadcast", fasthttp.MethodPost, "broadcasts", nil, body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Pool is a Provider creating one client per org. Orgs without their own
// token use the default one.
type Pool struct {
	opts   ClientOptions
	tokens map[int64]string

	mu      sync.Mutex
	clients map[int64]*Client
}

func NewPool(opts ClientOptions, tokens map[int64]string) *Pool {
	return &Pool{opts: opts, tokens: tokens, clients: make(map[int64]*Client)}
}

func (p *Pool) ForOrg(orgID int64) (Gateway, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[orgID]; ok {
		return c, nil
	}
	opts := p.opts
	if t, ok := p.tokens[orgID]; ok && t != "" {
		opts.Token = t
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("no gateway token configured for org %d", orgID)
	}
	c := NewClient(opts)
	p.clients[orgID] = c
	return c, nil
}
