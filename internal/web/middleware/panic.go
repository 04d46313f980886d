package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"go.opentelemetry.io/otel/trace"

	"github.com/meowith/connector-go/internal/web/mux"
)

// PanicError is a panic recovered from a node handler.
type PanicError struct {
	Pattern string
	Value   any
	Stack   []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %q: %v", e.Pattern, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Panics turns a handler panic into a *PanicError naming the route, and
// records it on the request span. Errors then reports it as InternalError
// and logs the stack.
func Panics() mux.Middleware {
	return func(handler mux.Handler) mux.Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				pe := &PanicError{Pattern: mux.GetValues(ctx).Pattern, Value: rec, Stack: debug.Stack()}
				trace.SpanFromContext(ctx).RecordError(pe)
				err = pe
			}()

			return handler(ctx, w, r)
		}
	}
}
