package mux

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type valuesKey struct{}

// Values is the per-request state the router hands to handlers and
// middleware. Handlers report what they wrote through [SetStatusCode] and
// [AddBytesSent].
type Values struct {
	TraceID    string
	Pattern    string
	Now        time.Time
	Tracer     trace.Tracer
	StatusCode int
	BytesSent  int64
}

func lookup(ctx context.Context) (*Values, bool) {
	v, ok := ctx.Value(valuesKey{}).(*Values)
	return v, ok
}

func withValues(ctx context.Context, v *Values) context.Context {
	return context.WithValue(ctx, valuesKey{}, v)
}

// GetValues returns the request's Values. Outside a routed request it
// returns detached values with the nil trace id and a noop tracer.
func GetValues(ctx context.Context) *Values {
	if v, ok := lookup(ctx); ok {
		return v
	}

	return &Values{
		TraceID: uuid.Nil.String(),
		Tracer:  noop.NewTracerProvider().Tracer(""),
		Now:     time.Now(),
	}
}

// SetStatusCode records the status written for the request.
func SetStatusCode(ctx context.Context, statusCode int) {
	if v, ok := lookup(ctx); ok {
		v.StatusCode = statusCode
	}
}

// AddBytesSent adds n to the response body bytes written for the request.
func AddBytesSent(ctx context.Context, n int64) {
	if v, ok := lookup(ctx); ok {
		v.BytesSent += n
	}
}

// AddSpan starts a child span of the request span. Outside a routed
// request it returns ctx and its current span unchanged.
func AddSpan(ctx context.Context, spanName string, keyValues ...attribute.KeyValue) (context.Context, trace.Span) {
	v, ok := lookup(ctx)
	if !ok || v.Tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return v.Tracer.Start(ctx, spanName, trace.WithAttributes(keyValues...))
}
