// Package errs enables error handling and definition at the http/app level.
package errs

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/meowith/connector-go/connector"
)

// Error represents a node error. Only Code and Message reach the wire.
type Error struct {
	Status   int                       `json:"-"`
	Code     connector.NodeClientError `json:"code"`
	Message  string                    `json:"message,omitempty"`
	FuncName string                    `json:"-"`
	FileName string                    `json:"-"`
	InnerErr bool                      `json:"-"`
}

// New constructs an error of the given kind. The HTTP status follows
// from the kind.
func New(code connector.NodeClientError, err error) *Error {
	pc, filename, line, _ := runtime.Caller(1)

	return &Error{
		Status:   StatusFor(code),
		Code:     code,
		Message:  err.Error(),
		FuncName: runtime.FuncForPC(pc).Name(),
		FileName: fmt.Sprintf("%s:%d", filename, line),
	}
}

// NewInternal creates an error that is not intended
// to be seen by users.
func NewInternal(err error) *Error {
	pc, filename, line, _ := runtime.Caller(1)

	return &Error{
		Status:   http.StatusInternalServerError,
		Code:     connector.InternalError,
		Message:  err.Error(),
		FuncName: runtime.FuncForPC(pc).Name(),
		FileName: fmt.Sprintf("%s:%d", filename, line),
		InnerErr: true,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the kind to errors.Is.
func (e *Error) Unwrap() error {
	return e.Code
}

// IsInternal returns true if the error is internal.
func (e *Error) IsInternal() bool {
	return e.InnerErr
}

// StatusFor maps a node error kind to the status the node answers with.
func StatusFor(code connector.NodeClientError) int {
	switch code {
	case connector.BadRequest:
		return http.StatusBadRequest
	case connector.BadAuth:
		return http.StatusUnauthorized
	case connector.NotFound, connector.NoSuchSession:
		return http.StatusNotFound
	case connector.EntityExists, connector.NotEmpty:
		return http.StatusConflict
	case connector.RangeUnsatisfiable:
		return http.StatusRequestedRangeNotSatisfiable
	case connector.InsufficientStorage:
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}
