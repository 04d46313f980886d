// Package mux provides helpers for middleware and route handling.
package mux

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// App routes node API requests to error-returning handlers. Apps made by
// Mount share one ServeMux.
type App struct {
	mux   *http.ServeMux
	group string
	options
}

// Handler is a http.Handler that returns an error.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Middleware defines a signature to chain Handler together.
type Middleware func(handler Handler) Handler

// New creates an App. Without options it traces nothing, reads W3C trace
// context headers and logs handler errors to slog.Default().
func New(optFns ...Option) *App {
	opts := options{
		tracer:     noop.NewTracerProvider().Tracer("no-op tracer"),
		propagator: propagation.TraceContext{},
		logger:     slog.Default(),
	}
	for _, opt := range optFns {
		opt(&opts)
	}

	return &App{mux: http.NewServeMux(), options: opts}
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// Mount returns an App whose routes are registered under subRoute. It
// starts with a copy of a's middleware; later Use calls on either App do
// not affect the other.
func (a *App) Mount(subRoute string) *App {
	sub := *a
	sub.mw = slices.Clone(a.mw)
	sub.group = path.Join(a.group, strings.Trim(subRoute, "/"))

	return &sub
}

// Use appends the given middleware to the underlying mw stack.
func (a *App) Use(mw ...Middleware) {
	a.mw = append(a.mw, mw...)
}

// Get registers a handler for GET requests at the given path.
func (a *App) Get(route string, fn Handler, mw ...Middleware) {
	a.Handle(http.MethodGet, route, fn, mw...)
}

// Post registers a handler for POST requests at the given path.
func (a *App) Post(route string, fn Handler, mw ...Middleware) {
	a.Handle(http.MethodPost, route, fn, mw...)
}

// Delete registers a handler for DELETE requests at the given path.
func (a *App) Delete(route string, fn Handler, mw ...Middleware) {
	a.Handle(http.MethodDelete, route, fn, mw...)
}

// Handle registers handler for method and path under the App's group,
// wrapped in the route middleware and then the App middleware.
func (a *App) Handle(method, route string, handler Handler, mw ...Middleware) {
	handler = wrap(mw, handler)
	handler = wrap(a.mw, handler)

	pattern := method + " " + route
	if a.group != "" {
		pattern = method + " /" + a.group + route
	}

	h := func(w http.ResponseWriter, r *http.Request) {
		ctx, span := a.startSpan(r, pattern)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		if !span.SpanContext().TraceID().IsValid() {
			traceID = uuid.New().String()
		}

		v := Values{
			TraceID: traceID,
			Pattern: pattern,
			Now:     time.Now().UTC(),
			Tracer:  a.tracer,
		}

		r = r.WithContext(withValues(ctx, &v))

		if err := handler(r.Context(), w, r); err != nil {
			a.logger.Error("handle", "pattern", pattern, "error", err)
		}

		span.SetAttributes(attribute.Int("http.status_code", v.StatusCode), attribute.Int64("http.response.body.size", v.BytesSent))
	}

	a.mux.HandleFunc(pattern, h)
}

// startSpan continues any trace carried by the request headers and starts
// a server span named after the route pattern.
func (a *App) startSpan(r *http.Request, pattern string) (context.Context, trace.Span) {
	ctx := a.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	ctx, span := a.tracer.Start(ctx, pattern, trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(attribute.String("path", r.URL.EscapedPath()))

	return ctx, span
}

// wrap middleware around the handler and execute in order given.
func wrap(mw []Middleware, handler Handler) Handler {
	for _, mwFn := range slices.Backward(mw) {
		if mwFn != nil {
			handler = mwFn(handler)
		}
	}

	return handler
}
