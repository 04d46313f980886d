package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/meowith/connector-go/connector"
	"github.com/meowith/connector-go/internal/web/errs"
	"github.com/meowith/connector-go/internal/web/mux"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errBadToken     = errors.New("bearer token rejected")
)

// Authenticate rejects requests whose Authorization header does not carry
// token as a bearer credential.
func Authenticate(token string) mux.Middleware {
	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || got == "" {
				return errs.New(connector.BadAuth, errMissingToken)
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return errs.New(connector.BadAuth, errBadToken)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
