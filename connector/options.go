package connector

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/meowith/connector-go/client"
)

// Option is a functional option for configuring a [Connector] via [New].
type Option func(*options) error

type options struct {
	clientOpts     []client.Option
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
}

// WithClientOptions passes options through to the underlying [client.Build],
// e.g. [client.WithTimeout], [client.WithThrottle] or [client.WithMetrics].
// The bearer token is always taken from the [Config].
func WithClientOptions(opts ...client.Option) Option {
	return func(o *options) error {
		o.clientOpts = append(o.clientOpts, opts...)
		return nil
	}
}

// WithLogger sets the logger for the connector and its transport.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithTracerProvider sets the provider operation spans are started from.
// The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) error {
		if tp == nil {
			return errors.New("tracer provider must not be nil")
		}
		o.tracerProvider = tp
		return nil
	}
}
