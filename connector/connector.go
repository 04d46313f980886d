package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/meowith/connector-go/client"
	"github.com/meowith/connector-go/internal/validate"
)

const tracerName = "github.com/meowith/connector-go/connector"

// Config identifies the node, the bucket scope and the credentials a
// Connector works with.
type Config struct {
	Token    string    `json:"token" validate:"required"`
	BucketID uuid.UUID `json:"bucket_id" validate:"required"`
	AppID    uuid.UUID `json:"app_id" validate:"required"`
	NodeAddr string    `json:"node_addr" validate:"required,url"`
}

// Connector performs file and directory operations against one bucket
// on one node. It is immutable once built and safe for concurrent use.
type Connector struct {
	client   *client.Client
	bucketID uuid.UUID
	appID    uuid.UUID
	nodeAddr string
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New validates cfg and builds a Connector. The bearer token is installed
// on the transport once; every request carries it.
func New(cfg Config, optFns ...Option) (*Connector, error) {
	if err := validate.Check(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying connector option: %w", err)
		}
	}

	logger := opts.logger
	if logger == nil {
		logger = slog.Default()
	}

	tp := opts.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	clientOpts := append([]client.Option{client.WithLogger(logger)}, opts.clientOpts...)
	clientOpts = append(clientOpts, client.WithBearerToken(cfg.Token))

	c, err := client.Build(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("building client: %w", err)
	}

	return &Connector{
		client:   c,
		bucketID: cfg.BucketID,
		appID:    cfg.AppID,
		nodeAddr: strings.TrimRight(cfg.NodeAddr, "/"),
		logger:   logger,
		tracer:   tp.Tracer(tracerName),
	}, nil
}

// BucketID returns the bucket the Connector is scoped to.
func (c *Connector) BucketID() uuid.UUID {
	return c.bucketID
}

// AppID returns the application owning the bucket.
func (c *Connector) AppID() uuid.UUID {
	return c.appID
}

// NodeAddr returns the base address of the node.
func (c *Connector) NodeAddr() string {
	return c.nodeAddr
}

// call runs one operation inside a span and maps its outcome onto
// RemoteError or LocalError.
func (c *Connector) call(ctx context.Context, op string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := c.tracer.Start(ctx, "connector."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("meowith.app_id", c.appID.String()),
			attribute.String("meowith.bucket_id", c.bucketID.String()),
		),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	start := time.Now()
	err := classify(op, fn(ctx))

	logAttrs := []any{"op", op, "since", time.Since(start).String()}
	switch re, ok := errors.AsType[*RemoteError](err); {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case ok:
		span.SetAttributes(attribute.Int("http.response.status_code", re.StatusCode))
		span.SetStatus(codes.Error, re.Code.String())
		logAttrs = append(logAttrs, "status", re.StatusCode, "error", err)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "local failure")
		logAttrs = append(logAttrs, "error", err)
	}
	c.logger.Debug("connector operation", logAttrs...)

	return err
}

// classify sorts a failure into the two error kinds a caller can branch on.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if _, ok := errors.AsType[*RemoteError](err); ok {
		return err
	}
	if _, ok := errors.AsType[*LocalError](err); ok {
		return err
	}

	if statusErr, ok := errors.AsType[*client.UnexpectedStatusError](err); ok {
		return decodeRemote(statusErr.StatusCode, statusErr.Body)
	}

	return &LocalError{Op: op, Err: err}
}

// endpoint builds {node}{route}/{app}/{bucket}[/{path}][?query]. Every
// segment of path is escaped on its own so '/' keeps separating them.
func (c *Connector) endpoint(route, path, rawQuery string) (*url.URL, error) {
	var b strings.Builder
	b.WriteString(route)
	b.WriteByte('/')
	b.WriteString(c.appID.String())
	b.WriteByte('/')
	b.WriteString(c.bucketID.String())

	if path = strings.TrimPrefix(path, "/"); path != "" {
		b.WriteByte('/')
		b.WriteString(escapePath(path))
	}

	var opts []client.URLOption
	if rawQuery != "" {
		opts = append(opts, client.WithRawQuery(rawQuery))
	}

	return c.client.URL(c.nodeAddr, b.String(), opts...)
}

func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// send builds a request against route and path and runs it.
func (c *Connector) send(ctx context.Context, method, route, path, rawQuery string, reqOpts []client.RequestOption, doOpts ...client.DoOption) error {
	u, err := c.endpoint(route, path, rawQuery)
	if err != nil {
		return err
	}

	req, err := c.client.Request(ctx, u, method, reqOpts...)
	if err != nil {
		return err
	}

	return c.client.Do(req, doOpts...)
}

// stream builds a request and returns the open response on success.
func (c *Connector) stream(ctx context.Context, route, path string, reqOpts ...client.RequestOption) (*http.Response, error) {
	u, err := c.endpoint(route, path, "")
	if err != nil {
		return nil, err
	}

	req, err := c.client.Request(ctx, u, http.MethodGet, reqOpts...)
	if err != nil {
		return nil, err
	}

	return c.client.Stream(req)
}
