package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var Log *slog.Logger

var mu sync.Mutex

// Init installs the global text logger on stdout. An empty level falls back to
// HELPDESK_LOG_LEVEL and then to info.
func Init(level string) {
	InitWithWriter(level, os.Stdout)
}

// InitWithWriter is Init with an explicit sink, used by tests and the CLI.
func InitWithWriter(level string, w io.Writer) {
	lvl := strings.TrimSpace(level)
	if lvl == "" {
		lvl = os.Getenv("HELPDESK_LOG_LEVEL")
	}
	mu.Lock()
	defer mu.Unlock()
	Log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(lvl)}))
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Sync is a no-op for the stdout handler but keeps call sites stable if a
// buffered sink is attached later.
func Sync() {}

func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Error(msg, args...)
}

// LogConfigSummary logs a titled list of summary lines as one record.
func LogConfigSummary(event string, items []string) {
	if Log == nil || len(items) == 0 {
		return
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(item)
	}
	Log.Info(event, "summary", b.String(), "count", len(items))
}
