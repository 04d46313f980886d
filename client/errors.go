package client

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// errBodyLimit caps how much of a failed response is kept. Node error
// bodies are small JSON documents such as {"code":"NotFound"}.
const errBodyLimit = 4 << 10

var (
	// ErrUnexpectedStatusCode is wrapped by every [UnexpectedStatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrAuthFailure is also wrapped when the status is 401 or 403.
	ErrAuthFailure = errors.New("auth failure")
)

// UnexpectedStatusError reports a response outside the 2xx range. Body
// holds at most the first 4KB of the response.
type UnexpectedStatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *UnexpectedStatusError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("%v: %d, body: %s", e.Err, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s: %v: %d, body: %s", e.Method, e.Path, e.Err, e.StatusCode, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}

// newStatusError consumes up to errBodyLimit of resp.Body. Path carries
// no query string.
func newStatusError(resp *http.Response, log *slog.Logger) *UnexpectedStatusError {
	body, err := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
	if err != nil {
		log.Error("failed to read error body", "error", err)
		body = nil
	}

	e := &UnexpectedStatusError{StatusCode: resp.StatusCode, Body: body, Err: ErrUnexpectedStatusCode}
	if req := resp.Request; req != nil {
		e.Method = req.Method
		e.Path = req.URL.Path
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		e.Err = errors.Join(ErrUnexpectedStatusCode, ErrAuthFailure)
	}

	return e
}

func isSuccess(code int) bool {
	return code/100 == 2
}
