package connector

import (
	"context"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/meowith/connector-go/client"
)

// Node routes, each followed by /{app}/{bucket}.
const (
	routeUploadOneshot   = "/api/file/upload/oneshot"
	routeUploadResume    = "/api/file/upload/resume"
	routeUploadPut       = "/api/file/upload/put"
	routeRenameFile      = "/api/file/upload/rename"
	routeDeleteFile      = "/api/file/delete"
	routeDownloadFile    = "/api/file/download"
	routeCreateDirectory = "/api/directory/create"
	routeRenameDirectory = "/api/directory/rename"
	routeDeleteDirectory = "/api/directory/delete"
	routeListDirectory   = "/api/directory/list"
	routeListFiles       = "/api/bucket/list/files"
	routeListDirectories = "/api/bucket/list/directories"
	routeStat            = "/api/bucket/stat"
	routeBucketInfo      = "/api/bucket/info"
)

// UploadOneshot stores size bytes read from r at path in a single request.
// The node decides whether a partial write is kept.
func (c *Connector) UploadOneshot(ctx context.Context, r io.Reader, path string, size int64) error {
	const op = "UploadOneshot"

	return c.call(ctx, op, func(ctx context.Context) error {
		if size < 0 {
			return &LocalError{Op: op, Err: ErrInvalidSize}
		}

		reqOpts := []client.RequestOption{client.WithStream(r, size)}
		return c.send(ctx, http.MethodPost, routeUploadOneshot, path, "", reqOpts)
	}, attribute.String("meowith.path", path), attribute.Int64("meowith.size", size))
}

// DeleteFile removes the file at path.
func (c *Connector) DeleteFile(ctx context.Context, path string) error {
	return c.call(ctx, "DeleteFile", func(ctx context.Context) error {
		return c.send(ctx, http.MethodDelete, routeDeleteFile, path, "", nil)
	}, attribute.String("meowith.path", path))
}

// RenameFile moves the file at from to to. EntityExists reports a
// conflict at the destination.
func (c *Connector) RenameFile(ctx context.Context, from, to string) error {
	return c.call(ctx, "RenameFile", func(ctx context.Context) error {
		reqOpts := []client.RequestOption{client.WithPayload(RenameEntityRequest{To: to})}
		return c.send(ctx, http.MethodPost, routeRenameFile, from, "", reqOpts)
	}, attribute.String("meowith.path", from), attribute.String("meowith.to", to))
}

// DownloadFile opens the file at path. The caller must close the
// returned FileResponse.
func (c *Connector) DownloadFile(ctx context.Context, path string) (*FileResponse, error) {
	return c.download(ctx, "DownloadFile", path, nil)
}

// DownloadFileRange opens the bytes of the file at path selected by rng.
// The Range header is always sent, as "bytes=0-" for a full range.
func (c *Connector) DownloadFileRange(ctx context.Context, path string, rng DownloadRange) (*FileResponse, error) {
	return c.download(ctx, "DownloadFileRange", path, &rng)
}

func (c *Connector) download(ctx context.Context, op, path string, rng *DownloadRange) (*FileResponse, error) {
	attrs := []attribute.KeyValue{attribute.String("meowith.path", path)}

	var reqOpts []client.RequestOption
	if rng != nil {
		value := rng.HeaderValue()
		reqOpts = append(reqOpts, client.WithHeaders(map[string][]string{"Range": {value}}))
		attrs = append(attrs, attribute.String("meowith.range", value))
	}

	var fr *FileResponse
	err := c.call(ctx, op, func(ctx context.Context) error {
		resp, err := c.stream(ctx, routeDownloadFile, path, reqOpts...)
		if err != nil {
			return err
		}

		fr, err = newFileResponse(resp, c.logger)
		if err != nil {
			if cerr := resp.Body.Close(); cerr != nil {
				c.logger.Error("closing rejected download body", "error", cerr)
			}
			return &LocalError{Op: op, Err: err}
		}

		return nil
	}, attrs...)
	if err != nil {
		return nil, err
	}

	return fr, nil
}
