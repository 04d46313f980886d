package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/meowith/connector-go/client/metrics"
	"github.com/meowith/connector-go/client/throttle"
)

// Client wraps the std-lib *http.Client.
// Authentication, user agent, trace propagation, metrics and throttling
// are layered onto the transport once, at Build time, so a Client holds
// no mutable state and may be shared across goroutines.
type Client struct {
	c      *http.Client
	logger *slog.Logger
}

func Build(optFns ...Option) (*Client, error) {
	client := &Client{
		c:      &http.Client{},
		logger: slog.Default(),
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	if opts.client != nil {
		cpy := *opts.client
		client.c = &cpy
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}

	if opts.noFollowRedirects {
		client.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" {
		transport = staticHeader{key: "User-Agent", value: opts.userAgent, base: transport}
	}
	if opts.token != "" {
		transport = staticHeader{key: "Authorization", value: "Bearer " + opts.token, base: transport}
	}

	propagator := opts.propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}
	transport = propagate{propagator: propagator, base: transport}

	if opts.registerer != nil {
		rt, err := metrics.NewRoundTripper(opts.registerer, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring metrics: %w", err)
		}
		transport = rt
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(*opts.throttle, func() *slog.Logger { return client.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.c.Transport = transport

	return client, nil
}

// Logger returns the logger the Client was built with.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Do will fire the request, and write a successful response to the given dest object if any.
// A response outside the 2xx range is reported as *UnexpectedStatusError.
func (c *Client) Do(req *http.Request, opts ...DoOption) error {
	var settings doOpts
	for _, opt := range opts {
		err := opt(&settings)
		if err != nil {
			return err
		}
	}

	doFunc := func(resp *http.Response) error {
		if settings.responseBody != nil {
			d := json.NewDecoder(resp.Body)

			if settings.useJSONNum {
				d.UseNumber()
			}

			if err := d.Decode(settings.responseBody); err != nil {
				return fmt.Errorf("decoding body: %w", err)
			}
		}

		return nil
	}

	return c.exec(req, doFunc)
}

// Stream fires the request and hands back a successful response with its
// body still open. The caller owns resp.Body and must close it.
// A response outside the 2xx range is drained, closed and reported
// as *UnexpectedStatusError.
func (c *Client) Stream(req *http.Request) (*http.Response, error) {
	resp, err := c.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exec http do: %w", err)
	}

	if !isSuccess(resp.StatusCode) {
		statusErr := newStatusError(resp, c.logger)
		c.release(resp)
		return nil, statusErr
	}

	return resp, nil
}

// Request instantiates an *http.Request with the provided information.
// It's just a convenience method that wraps the public Request func.
func (c *Client) Request(ctx context.Context, reqURL *url.URL, method string, opts ...RequestOption) (*http.Request, error) {
	return Request(ctx, reqURL, method, opts...)
}

// URL creates a url.URL for use in Request.
// It's just a convenience method that wraps the public URL func.
func (c *Client) URL(base, path string, opts ...URLOption) (*url.URL, error) {
	return URL(base, path, opts...)
}

// exec runs the request and injected function on success after validating the status code.
func (c *Client) exec(req *http.Request, fn func(*http.Response) error) error {
	resp, err := c.c.Do(req)
	if err != nil {
		return fmt.Errorf("exec http do: %w", err)
	}
	defer c.release(resp)

	if !isSuccess(resp.StatusCode) {
		return newStatusError(resp, c.logger)
	}

	if err := fn(resp); err != nil {
		return fmt.Errorf("exec fn: %w", err)
	}

	return nil
}

// release drains whatever is left of the body so the connection can be reused, then closes it.
func (c *Client) release(resp *http.Response) {
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		c.logger.Error("failed to discard unused body", "error", err)
	}
	if err := resp.Body.Close(); err != nil {
		c.logger.Error("failed to close response body", "error", err)
	}
}

// Request instantiates an *http.Request with the provided information.
// Content-Type defaults to `application/json` for payload requests and
// `application/octet-stream` for streamed ones, unless set via WithContentType.
func Request(ctx context.Context, reqURL *url.URL, method string, opts ...RequestOption) (*http.Request, error) {
	var settings requestOpts
	for _, opt := range opts {
		err := opt(&settings)
		if err != nil {
			return nil, err
		}
	}

	if settings.body != nil && settings.stream != nil {
		return nil, errors.New("payload and stream are mutually exclusive")
	}

	var (
		body        io.Reader
		contentType = "application/json"
	)
	switch {
	case settings.stream != nil:
		body = settings.stream
		contentType = "application/octet-stream"
	case settings.body != nil:
		var payload bytes.Buffer
		if err := json.NewEncoder(&payload).Encode(settings.body); err != nil {
			return nil, fmt.Errorf("encoding request payload: %w", err)
		}
		body = &payload
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	if settings.stream != nil && settings.contentLength >= 0 {
		req.ContentLength = settings.contentLength
		if settings.contentLength == 0 {
			req.Body = http.NoBody
		}
	}

	if settings.contentType != nil {
		contentType = *settings.contentType
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	for k, v := range settings.headers {
		for _, element := range v {
			req.Header.Add(k, element)
		}
	}

	return req, nil
}

// URL joins the node address base with an already escaped path.
// base must be absolute, e.g. "https://node.example.com:4000"; a path
// prefix on base is kept.
func URL(base, path string, opts ...URLOption) (*url.URL, error) {
	var settings urlOpts
	for _, opt := range opts {
		opt(&settings)
	}

	endpoint, err := url.Parse(strings.TrimRight(base, "/") + path)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	if endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("url %q must be absolute", base)
	}

	switch {
	case settings.rawQuery != "":
		endpoint.RawQuery = settings.rawQuery
	case settings.queryStrings != nil:
		queryParams := url.Values{}
		for k, v := range settings.queryStrings {
			queryParams.Add(k, v)
		}

		endpoint.RawQuery = queryParams.Encode()
	}

	return endpoint, nil
}
