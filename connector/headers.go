package connector

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Response headers a download must carry.
const (
	HeaderFileContentLength  = "X-File-Content-Length"
	HeaderContentDisposition = "Content-Disposition"
	HeaderContentType        = "Content-Type"
)

// ExtractFilename returns what follows the first "filename=" in a
// Content-Disposition value, with surrounding quotes removed. Later
// parameters are not split off, so the node must send filename last.
func ExtractFilename(contentDisposition string) (string, bool) {
	_, after, found := strings.Cut(contentDisposition, "filename=")
	if !found {
		return "", false
	}
	return strings.Trim(after, `"`), true
}

// header returns the value of a required header.
func header(h http.Header, key string) (string, error) {
	values := h.Values(key)
	if len(values) == 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingHeader, key)
	}

	v := values[0]
	if !utf8.ValidString(v) {
		return "", fmt.Errorf("%w: %s is not valid utf-8", ErrInvalidHeader, key)
	}
	return v, nil
}

// fileHeaders is the metadata of a download response.
type fileHeaders struct {
	length uint64
	name   string
	mime   string
}

func parseFileHeaders(h http.Header) (fileHeaders, error) {
	rawLength, err := header(h, HeaderFileContentLength)
	if err != nil {
		return fileHeaders{}, err
	}
	length, err := strconv.ParseUint(strings.TrimSpace(rawLength), 10, 64)
	if err != nil {
		return fileHeaders{}, fmt.Errorf("%w: %s: %w", ErrInvalidHeader, HeaderFileContentLength, err)
	}

	disposition, err := header(h, HeaderContentDisposition)
	if err != nil {
		return fileHeaders{}, err
	}
	name, ok := ExtractFilename(disposition)
	if !ok {
		return fileHeaders{}, fmt.Errorf("%w: %s has no filename", ErrInvalidHeader, HeaderContentDisposition)
	}

	mime, err := header(h, HeaderContentType)
	if err != nil {
		return fileHeaders{}, err
	}

	return fileHeaders{length: length, name: name, mime: mime}, nil
}
