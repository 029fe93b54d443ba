/*
Package logger holds the process-wide structured logger.

USAGE:
  logger.Init(cfg.LogLevel, cfg.LogFormat)
  logger.L.Info("server starting", "port", cfg.Port)

  // In a handler, after the RequestID middleware ran
  logger.FromContext(r.Context()).Warn("generation rejected", "error", err)
*/
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// L is the global logger. It is usable before Init and writes text at info.
var L = slog.New(slog.NewTextHandler(os.Stderr, nil))

// ParseLevel maps a level name to a slog.Level. Unknown names are info.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Init replaces L and the slog default. format is "json" or "text".
func Init(level, format string) {
	L = New(os.Stdout, level, format)
	slog.SetDefault(L)
}

// New builds a logger without touching the global one.
func New(w io.Writer, level, format string) *slog.Logger {
	lvl, known := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	l := slog.New(handler)
	if !known {
		l.Warn("unknown log level, using info", "configured", level)
	}
	return l
}

// FromContext returns L tagged with the request id, when there is one.
func FromContext(ctx context.Context) *slog.Logger {
	if id := middleware.GetReqID(ctx); id != "" {
		return L.With("request_id", id)
	}
	return L
}
