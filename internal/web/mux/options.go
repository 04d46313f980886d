package mux

import (
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Option configures an App.
type Option func(*options)

type options struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	logger     *slog.Logger
	mw         []Middleware
}

// WithMiddleware sets the App middleware, applied in the order given:
// the first wraps all the others. A node API app passes Logger first so it
// sees the final status, then Errors so it renders failures from everything
// beneath it, then Authenticate, and Panics last, closest to the handler.
func WithMiddleware(mw ...Middleware) Option {
	mw = slices.Clone(mw)
	return func(opts *options) { opts.mw = mw }
}

// WithTracer sets the tracer for request spans. A nil tracer is ignored.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *options) {
		if tracer != nil {
			opts.tracer = tracer
		}
	}
}

// WithPropagator sets how incoming trace context is read from request
// headers. A nil propagator is ignored.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(opts *options) {
		if p != nil {
			opts.propagator = p
		}
	}
}

// WithLogger sets the logger for errors no middleware handled. A nil
// logger is ignored.
func WithLogger(log *slog.Logger) Option {
	return func(opts *options) {
		if log != nil {
			opts.logger = log
		}
	}
}
