package nodetest

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Node.
type Option func(*options)

type options struct {
	token      string
	appID      uuid.UUID
	bucketID   uuid.UUID
	bucketName string
	quota      int64
	validity   time.Duration
	now        func() time.Time
	logger     *slog.Logger
	tp         trace.TracerProvider
}

// WithToken sets the bearer token the node accepts. Default is
// "nodetest-token".
func WithToken(token string) Option {
	return func(opts *options) {
		opts.token = token
	}
}

// WithAppID sets the application the node serves. Default is random.
func WithAppID(id uuid.UUID) Option {
	return func(opts *options) {
		opts.appID = id
	}
}

// WithBucketID sets the bucket the node serves. Default is random.
func WithBucketID(id uuid.UUID) Option {
	return func(opts *options) {
		opts.bucketID = id
	}
}

// WithBucketName sets the name reported by bucket info.
func WithBucketName(name string) Option {
	return func(opts *options) {
		opts.bucketName = name
	}
}

// WithQuota caps the bytes the bucket may hold. Default is 1GiB.
func WithQuota(bytes int64) Option {
	return func(opts *options) {
		opts.quota = bytes
	}
}

// WithSessionValidity sets how long an upload session survives without
// activity. Default is one hour.
func WithSessionValidity(d time.Duration) Option {
	return func(opts *options) {
		opts.validity = d
	}
}

// WithClock replaces time.Now, letting tests expire sessions.
func WithClock(now func() time.Time) Option {
	return func(opts *options) {
		opts.now = now
	}
}

// WithLogger sets the request logger. Default discards.
func WithLogger(log *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = log
	}
}

// WithTracerProvider sets the provider for server spans. Default is the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(opts *options) {
		opts.tp = tp
	}
}
