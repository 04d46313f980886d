package server

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Server.
type Option func(*options)

type options struct {
	host     string
	timeouts timeouts
	grace    time.Duration
	logger   *slog.Logger
	onStop   []func(ctx context.Context) error
	cert     certPair
}

type timeouts struct {
	read, write, idle time.Duration
}

// certPair names the PEM files served over TLS. The zero value serves
// plain HTTP.
type certPair struct {
	certFile, keyFile string
}

func (c certPair) enabled() bool { return c.certFile != "" }

// defaults leaves read and write unbounded so long transfers are not cut
// off mid-body.
func defaults() options {
	return options{
		host:     ":8080",
		timeouts: timeouts{idle: 120 * time.Second},
		grace:    20 * time.Second,
		logger:   slog.Default(),
	}
}

// WithHost sets the listen address. Default is ":8080"; ":0" picks a free
// port, reported by [Server.Addr].
func WithHost(host string) Option {
	return func(o *options) { o.host = host }
}

// WithReadTimeout bounds reading an entire request, body included.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { o.timeouts.read = d }
}

// WithWriteTimeout bounds writing a response.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.timeouts.write = d }
}

// WithIdleTimeout bounds the wait for the next keep-alive request.
// Default is 120s.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) { o.timeouts.idle = d }
}

// WithShutdownTimeout sets how long [Server.Run] drains in-flight
// transfers once its context is done. Default is 20s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.grace = d
		}
	}
}

// WithLogger sets the lifecycle logger. A nil logger keeps slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithShutdownFunc registers fn to run before the listener closes, in
// registration order. A failing fn is logged and does not stop the rest.
func WithShutdownFunc(fn func(ctx context.Context) error) Option {
	return func(o *options) { o.onStop = append(o.onStop, fn) }
}

// WithTLS serves HTTPS from the given PEM certificate and key files.
func WithTLS(certFile, keyFile string) Option {
	return func(o *options) { o.cert = certPair{certFile: certFile, keyFile: keyFile} }
}
