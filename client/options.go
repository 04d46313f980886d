package client

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/propagation"

	"github.com/meowith/connector-go/client/throttle"
)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	client            *http.Client
	rt                http.RoundTripper
	timeout           *time.Duration
	userAgent         string
	token             string
	throttle          *throttle.Config
	registerer        prometheus.Registerer
	propagator        propagation.TextMapPropagator
	noFollowRedirects bool
	logger            *slog.Logger
}

// WithClient uses a copy of hc as the base [http.Client]. hc itself is never modified.
func WithClient(hc *http.Client) Option {
	return func(c *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		c.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		c.rt = rt
		return nil
	}
}

// WithTimeout sets the overall request timeout on the underlying [http.Client].
func WithTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = &d
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(header string) Option {
	return func(c *options) error {
		c.userAgent = header
		return nil
	}
}

// WithBearerToken adds a persistent `Authorization: Bearer <token>` header
// to all outgoing requests.
func WithBearerToken(token string) Option {
	return func(c *options) error {
		if token == "" {
			return errors.New("token must not be empty")
		}
		c.token = token
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(c *options) error {
		cfg := throttle.Config{RPS: rps, Burst: burst}
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.throttle = &cfg
		return nil
	}
}

// WithMetrics registers request counters, latency histograms and an
// in-flight gauge with reg and instruments the transport with them.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *options) error {
		if reg == nil {
			return errors.New("registerer must not be nil")
		}
		c.registerer = reg
		return nil
	}
}

// WithPropagator overrides the global otel propagator used to inject
// trace context into outgoing request headers.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(c *options) error {
		if p == nil {
			return errors.New("propagator must not be nil")
		}
		c.propagator = p
		return nil
	}
}

// WithNoFollowRedirects prevents the [Client] from following HTTP redirects.
func WithNoFollowRedirects() Option {
	return func(c *options) error {
		c.noFollowRedirects = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(c *options) error {
		c.logger = logger
		return nil
	}
}

// staticHeader is an http.RoundTripper setting one persistent header,
// used for the User-Agent and the bearer token.
type staticHeader struct {
	key   string
	value string
	base  http.RoundTripper
}

func (h staticHeader) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set(h.key, h.value)
	return h.base.RoundTrip(cpy)
}

// propagate is an http.RoundTripper injecting the span context of the
// request into its headers.
type propagate struct {
	propagator propagation.TextMapPropagator
	base       http.RoundTripper
}

func (p propagate) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	p.propagator.Inject(cpy.Context(), propagation.HeaderCarrier(cpy.Header))
	return p.base.RoundTrip(cpy)
}

// DoOption is a functional option for [Client.Do].
type DoOption func(options *doOpts) error

type doOpts struct {
	responseBody any
	useJSONNum   bool
}

// WithDestination decodes the HTTP response body into bodyTemplate.
// bodyTemplate must be a pointer.
func WithDestination[T any](bodyTemplate *T) DoOption {
	return func(opts *doOpts) error {
		if bodyTemplate == nil {
			return errors.New("destination must not be nil")
		}
		opts.responseBody = bodyTemplate

		return nil
	}
}

// WithJSONNumb tells the JSON decoder to use [json.Decoder.UseNumber],
// preserving number precision as [json.Number] instead of float64.
func WithJSONNumb() DoOption {
	return func(opts *doOpts) error {
		opts.useJSONNum = true

		return nil
	}
}

// RequestOption is a functional option for [Request].
type RequestOption func(options *requestOpts) error

type requestOpts struct {
	body          any
	stream        io.Reader
	contentLength int64
	contentType   *string
	headers       map[string][]string
}

// WithPayload sets the JSON-encoded request body.
func WithPayload(body any) RequestOption {
	return func(opts *requestOpts) error {
		opts.body = body

		return nil
	}
}

// WithStream sends r as the raw request body without buffering it.
// A non-negative size is declared as the Content-Length; a negative
// size leaves the length unknown and the body is sent chunked.
func WithStream(r io.Reader, size int64) RequestOption {
	return func(opts *requestOpts) error {
		if r == nil {
			return errors.New("stream must not be nil")
		}

		opts.stream = r
		opts.contentLength = size

		return nil
	}
}

// WithContentType overrides the default Content-Type header.
func WithContentType(contentType string) RequestOption {
	return func(opts *requestOpts) error {
		if contentType == "" {
			return errors.New("cannot use empty content type")
		}

		opts.contentType = &contentType

		return nil
	}
}

// WithHeaders adds custom headers to the outgoing request.
func WithHeaders(headers map[string][]string) RequestOption {
	return func(opts *requestOpts) error {
		for k := range headers {
			if k == "" {
				return fmt.Errorf("header name must not be empty")
			}
		}
		opts.headers = headers

		return nil
	}
}

// URLOption is a functional option for [URL].
type URLOption func(options *urlOpts)

type urlOpts struct {
	queryStrings map[string]string
	rawQuery     string
}

// WithQueryStrings appends query parameters to the URL, encoded in key order.
func WithQueryStrings(queryKV map[string]string) URLOption {
	return func(opts *urlOpts) {
		opts.queryStrings = queryKV
	}
}

// WithRawQuery sets an already encoded query, without the leading '?'.
// It wins over WithQueryStrings and is sent byte for byte.
func WithRawQuery(rawQuery string) URLOption {
	return func(opts *urlOpts) {
		opts.rawQuery = rawQuery
	}
}
