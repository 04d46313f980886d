package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/meowith/connector-go/connector"
	"github.com/meowith/connector-go/internal/validate"
	"github.com/meowith/connector-go/internal/web/errs"
)

// Param extracts a path parameter by key and returns its string value.
func Param(r *http.Request, key string) (string, error) {
	val := r.PathValue(key)
	if val == "" {
		return "", errs.New(connector.BadRequest, fmt.Errorf("path param[%s] not found", key))
	}

	return val, nil
}

// ParamUUID extracts a path parameter by key and parses it as a UUID.
func ParamUUID(r *http.Request, key string) (uuid.UUID, error) {
	val, err := Param(r, key)
	if err != nil {
		return uuid.Nil, err
	}

	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, errs.New(connector.BadRequest, fmt.Errorf("path param[%s] must be a uuid: %w", key, err))
	}

	return id, nil
}

// QueryInt32 extracts an optional query parameter by key and parses it as
// an int32. A trailing "-", as open-ended range starts carry, is ignored.
func QueryInt32(r *http.Request, key string) (*int32, error) {
	if !r.URL.Query().Has(key) {
		return nil, nil
	}

	val := strings.TrimSuffix(r.URL.Query().Get(key), "-")

	v, err := strconv.ParseInt(val, 10, 32)
	if err != nil {
		return nil, errs.New(connector.BadRequest, fmt.Errorf("query param[%s] must be int32: %w", key, err))
	}

	n := int32(v)
	return &n, nil
}

// Decode reads the body of an HTTP request looking for a JSON document. The
// body is decoded into the provided value and checked for validation tags.
func Decode[T any](r *http.Request, val *T) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(val); err != nil {
		return errs.New(connector.BadRequest, fmt.Errorf("decode: %w", err))
	}

	return validate.Check(val)
}

// DecodeOptional is Decode for requests whose body may be empty, in which
// case val is left untouched.
func DecodeOptional[T any](r *http.Request, val *T) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(val); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errs.New(connector.BadRequest, fmt.Errorf("decode: %w", err))
	}

	return validate.Check(val)
}
