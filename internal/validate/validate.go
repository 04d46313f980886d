// Package validate checks structs against their `validate` tags and
// reports failures per field, named after the field's json tag.
package validate

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

type engine struct {
	v     *validator.Validate
	trans ut.Translator
}

// messages replaces the stock English text for the tags used across the
// connector and the fake node.
var messages = map[string]string{
	"required": "This field is required",
	"url":      "This field must be an absolute URL, e.g. https://node.example.com:4000",
}

var load = sync.OnceValue(func() engine {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	trans, ok := ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("validate: no 'en' translator")
	}
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		panic(err)
	}

	return engine{v: v, trans: trans}
})

// Check validates val against its declared tags. Validation failures
// are returned as FieldErrors; anything else, such as a non-struct val,
// is returned as is.
func Check(val any) error {
	e := load()

	err := e.v.Struct(val)
	verrs, ok := errors.AsType[validator.ValidationErrors](err)
	if !ok {
		return err
	}

	fields := make(FieldErrors, len(verrs))
	for i, ve := range verrs {
		msg, ok := messages[ve.Tag()]
		if !ok {
			msg = ve.Translate(e.trans)
		}
		fields[i] = FieldError{Field: ve.Field(), Err: msg}
	}
	return fields
}

// FieldError is used to indicate an error with a specific field.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors represents a collection of field errors.
type FieldErrors []FieldError

// Error implements the error interface.
func (fe FieldErrors) Error() string {
	d, err := json.Marshal(fe)
	if err != nil {
		return err.Error()
	}
	return string(d)
}

// Fields maps each failed field to its message.
func (fe FieldErrors) Fields() map[string]string {
	m := make(map[string]string, len(fe))
	for _, fld := range fe {
		m[fld.Field] = fld.Err
	}
	return m
}

// GetFieldErrors returns the FieldErrors wrapped in err, or nil.
func GetFieldErrors(err error) FieldErrors {
	fe, _ := errors.AsType[FieldErrors](err)
	return fe
}
