package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"

	"github.com/meowith/connector-go/connector"
	"github.com/meowith/connector-go/internal/validate"
	"github.com/meowith/connector-go/internal/web"
	"github.com/meowith/connector-go/internal/web/errs"
	"github.com/meowith/connector-go/internal/web/mux"
)

// Errors renders errors coming out of the call chain as node error bodies.
// Validation failures become BadRequest, unknown errors InternalError.
func Errors(log *slog.Logger) mux.Middleware {
	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			if fieldErr, ok := errors.AsType[validate.FieldErrors](err); ok {
				return web.RespondError(ctx, w, errs.New(connector.BadRequest, fieldErr))
			}

			appErr, ok := errors.AsType[*errs.Error](err)
			if !ok { // to catch errs that may have escaped, obscure them from public view.
				appErr = errs.NewInternal(err)
			}

			reqLog := log.With("trace_id", mux.GetValues(ctx).TraceID)
			if pe, ok := errors.AsType[*PanicError](err); ok {
				reqLog = reqLog.With("stack", string(pe.Stack))
			}
			if appErr.InnerErr {
				reqLog.Error(err.Error(), "source_err_file", path.Base(appErr.FileName), "source_err_func", path.Base(appErr.FuncName))
				appErr.Message = "" // after logging, obscure the internal error from public view.
			} else {
				reqLog.Info(err.Error(), "code", appErr.Code.String(), "source_err_func", path.Base(appErr.FuncName))
			}

			return web.RespondError(ctx, w, appErr)
		}

		return h
	}

	return m
}
