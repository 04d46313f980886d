package connector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/meowith/connector-go/client/download"
)

// SaveOption configures [FileResponse.SaveTo].
type SaveOption = download.Option

// Save options, forwarded from package download.
var (
	WithChecksum     = download.WithChecksum
	WithProgress     = download.WithProgress
	WithSkipExisting = download.WithSkipExisting
	WithFileMode     = download.WithMode
)

// FileResponse is an open download. Length, Name and Mime come from the
// response headers and are always set. Reading consumes the body; the
// caller must Close it.
type FileResponse struct {
	// Length is the size of the whole file as declared by the node.
	Length uint64
	Name   string
	Mime   string
	// StatusCode is 206 when the node answered a range with partial content.
	StatusCode int

	body       io.ReadCloser
	bodyLength int64
	logger     *slog.Logger
}

func newFileResponse(resp *http.Response, logger *slog.Logger) (*FileResponse, error) {
	h, err := parseFileHeaders(resp.Header)
	if err != nil {
		return nil, err
	}

	// A full response carries the whole file; a partial one says how much
	// of it through Content-Length, or nothing at all when chunked.
	bodyLength := int64(h.length)
	if resp.StatusCode == http.StatusPartialContent {
		bodyLength = resp.ContentLength
	}

	return &FileResponse{
		Length:     h.length,
		Name:       h.name,
		Mime:       h.mime,
		StatusCode: resp.StatusCode,
		body:       resp.Body,
		bodyLength: bodyLength,
		logger:     logger,
	}, nil
}

func (f *FileResponse) Read(p []byte) (int, error) {
	return f.body.Read(p)
}

func (f *FileResponse) Close() error {
	return f.body.Close()
}

// SaveTo streams the body to destPath and closes it. The file appears at
// destPath only once every byte arrived and any checksum matched.
func (f *FileResponse) SaveTo(ctx context.Context, destPath string, opts ...SaveOption) (err error) {
	defer func() {
		if cerr := f.body.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing body: %w", cerr)
		}
	}()

	return download.Handle(ctx, f.body, f.bodyLength, destPath, f.logger, opts...)
}
