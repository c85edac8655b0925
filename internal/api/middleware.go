package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/ambilight/internal/logging"
)

// quietPaths are polled by dashboards or held open as event streams;
// successful requests to them are logged at debug.
var quietPaths = []string{
	"/api/health",
	"/api/strip",
	"/api/events",
	"/api/logs",
}

func isQuiet(method, path string) bool {
	if method != http.MethodGet {
		return false
	}
	for _, p := range quietPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// HTTPLoggingMiddleware logs each request once it completes. Server errors
// log at error, client errors at warn and preflights at debug.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	next(ctx)

	method := ctx.Method()
	path := ctx.URL().Path
	status := ctx.Status()

	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if op := ctx.Operation(); op != nil && op.OperationID != "" {
		attrs = append(attrs, slog.String("operation", op.OperationID))
	}

	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	case method == http.MethodOptions, isQuiet(method, path):
		level = slog.LevelDebug
	}
	logging.GetLogger("http").LogAttrs(ctx.Context(), level, "HTTP request", attrs...)
}
