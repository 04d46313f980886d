package connector

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NodeClientError is the closed set of failures a node reports.
// The zero value is InternalError.
type NodeClientError int

const (
	InternalError NodeClientError = iota
	BadRequest
	NotFound
	EntityExists
	NoSuchSession
	BadAuth
	InsufficientStorage
	NotEmpty
	RangeUnsatisfiable
)

var nodeClientErrorNames = [...]string{
	InternalError:       "InternalError",
	BadRequest:          "BadRequest",
	NotFound:            "NotFound",
	EntityExists:        "EntityExists",
	NoSuchSession:       "NoSuchSession",
	BadAuth:             "BadAuth",
	InsufficientStorage: "InsufficientStorage",
	NotEmpty:            "NotEmpty",
	RangeUnsatisfiable:  "RangeUnsatisfiable",
}

// ErrUnknownNodeError is returned when decoding a kind outside the known set.
var ErrUnknownNodeError = errors.New("unknown node error kind")

// ParseNodeClientError maps the wire name of a kind back to its value.
func ParseNodeClientError(s string) (NodeClientError, error) {
	for i, name := range nodeClientErrorNames {
		if name == s {
			return NodeClientError(i), nil
		}
	}
	return InternalError, fmt.Errorf("%w: %q", ErrUnknownNodeError, s)
}

func (e NodeClientError) String() string {
	if e < 0 || int(e) >= len(nodeClientErrorNames) {
		return fmt.Sprintf("NodeClientError(%d)", int(e))
	}
	return nodeClientErrorNames[e]
}

func (e NodeClientError) Error() string {
	return "node: " + e.String()
}

// MarshalText encodes the kind by its wire name.
func (e NodeClientError) MarshalText() ([]byte, error) {
	if e < 0 || int(e) >= len(nodeClientErrorNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNodeError, int(e))
	}
	return []byte(nodeClientErrorNames[e]), nil
}

// UnmarshalText decodes a wire name, rejecting unknown kinds.
func (e *NodeClientError) UnmarshalText(text []byte) error {
	kind, err := ParseNodeClientError(string(text))
	if err != nil {
		return err
	}
	*e = kind
	return nil
}

// ErrorResponse is the body a node sends with a non-success status.
type ErrorResponse struct {
	Code NodeClientError `json:"code"`
}

// RemoteError is returned when the node answered with a non-success status.
// It unwraps to its Code, so errors.Is(err, connector.NotFound) holds for a
// missing entity.
type RemoteError struct {
	StatusCode int
	Code       NodeClientError
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote: %s (status %d)", e.Code, e.StatusCode)
}

func (e *RemoteError) Unwrap() error {
	return e.Code
}

// LocalError is returned when no well-formed response could be obtained:
// the request failed to build or send, the context ended, or a response
// header or body could not be parsed.
type LocalError struct {
	Op  string
	Err error
}

func (e *LocalError) Error() string {
	return fmt.Sprintf("local: %s: %v", e.Op, e.Err)
}

func (e *LocalError) Unwrap() error {
	return e.Err
}

// Causes wrapped in a LocalError.
var (
	ErrMissingHeader      = errors.New("missing response header")
	ErrInvalidHeader      = errors.New("invalid response header")
	ErrInvalidSessionCode = errors.New("session code is not a uuid")
	ErrInvalidSize        = errors.New("size must not be negative")
	ErrNilSession         = errors.New("session must not be nil")
	ErrNilReader          = errors.New("reader must not be nil")
)

// AsRemote reports the node error kind carried by err, if err is a RemoteError.
func AsRemote(err error) (NodeClientError, bool) {
	re, ok := errors.AsType[*RemoteError](err)
	if !ok {
		return InternalError, false
	}
	return re.Code, true
}

// IsLocal reports whether err is a LocalError.
func IsLocal(err error) bool {
	_, ok := errors.AsType[*LocalError](err)
	return ok
}

// Retryable reports whether repeating the same call may succeed. Only a
// node-side InternalError qualifies; a LocalError never does.
func Retryable(err error) bool {
	kind, ok := AsRemote(err)
	return ok && kind == InternalError
}

// decodeRemote builds a RemoteError from a failed response body. A body that
// is empty, malformed or names an unknown kind collapses to InternalError.
func decodeRemote(statusCode int, body []byte) *RemoteError {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		resp.Code = InternalError
	}

	return &RemoteError{
		StatusCode: statusCode,
		Code:       resp.Code,
	}
}
