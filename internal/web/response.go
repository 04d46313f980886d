package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/meowith/connector-go/internal/web/errs"
	"github.com/meowith/connector-go/internal/web/mux"
)

// RespondJSON to an HTTP request, setting the status code and body if any.
func RespondJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) error {
	mux.SetStatusCode(ctx, statusCode)

	if statusCode == http.StatusNoContent || data == nil {
		w.WriteHeader(statusCode)
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	n, err := w.Write(jsonData)
	mux.AddBytesSent(ctx, int64(n))

	return err
}

// RespondError writes the node error body `{"code": ...}` with the status
// carried by err.
func RespondError(ctx context.Context, w http.ResponseWriter, err *errs.Error) error {
	return RespondJSON(ctx, w, err.Status, err)
}

// RespondStream copies size bytes of body to the client with the given
// status. Headers must be set by the caller beforehand.
func RespondStream(ctx context.Context, w http.ResponseWriter, statusCode int, body io.Reader, size int64) error {
	mux.SetStatusCode(ctx, statusCode)

	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(statusCode)

	n, err := io.CopyN(w, body, size)
	mux.AddBytesSent(ctx, n)

	return err
}
