package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/meowith/connector-go/internal/web/mux"
)

// Logger logs the start and completion of every request.
func Logger(log *slog.Logger) mux.Middleware {
	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v := mux.GetValues(ctx)

			path := r.URL.EscapedPath()
			if r.URL.RawQuery != "" {
				path += "?" + r.URL.RawQuery
			}

			reqLog := log.With("trace_id", v.TraceID, "method", r.Method, "path", path)
			reqLog.Debug("request started", "route", v.Pattern, "remoteaddr", r.RemoteAddr, "content_length", r.ContentLength)

			err := handler(ctx, w, r)

			reqLog.Info("request completed", "statusCode", v.StatusCode, "bytes", v.BytesSent, "since", time.Since(v.Now).String())

			return err
		}

		return h
	}

	return m
}
