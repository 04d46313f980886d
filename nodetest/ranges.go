package nodetest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/meowith/connector-go/connector"
	"github.com/meowith/connector-go/internal/web/errs"
)

var (
	errRangeSyntax = errors.New("malformed range")
	errRangeBounds = errors.New("range outside file")
)

// parseRange resolves a single "bytes=" range against a file of size bytes
// into inclusive offsets. "bytes=-n" selects the last n bytes. A
// malformed header is BadRequest; a range the file cannot satisfy is
// RangeUnsatisfiable.
func parseRange(header string, size int64) (start, end int64, err error) {
	unit, set, ok := strings.Cut(header, "=")
	if !ok || unit != "bytes" || strings.Contains(set, ",") {
		return 0, 0, errs.New(connector.BadRequest, fmt.Errorf("%q: %w", header, errRangeSyntax))
	}

	first, last, ok := strings.Cut(strings.TrimSpace(set), "-")
	if !ok || (first == "" && last == "") {
		return 0, 0, errs.New(connector.BadRequest, fmt.Errorf("%q: %w", header, errRangeSyntax))
	}

	num := func(s string) (int64, error) {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			return 0, errs.New(connector.BadRequest, fmt.Errorf("%q: %w", header, errRangeSyntax))
		}
		return v, nil
	}

	unsatisfiable := errs.New(connector.RangeUnsatisfiable, fmt.Errorf("%q of %d bytes: %w", header, size, errRangeBounds))

	if first == "" {
		suffix, err := num(last)
		if err != nil {
			return 0, 0, err
		}
		if suffix == 0 || size == 0 {
			return 0, 0, unsatisfiable
		}
		return max(size-suffix, 0), size - 1, nil
	}

	start, err = num(first)
	if err != nil {
		return 0, 0, err
	}
	end = size - 1
	if last != "" {
		if end, err = num(last); err != nil {
			return 0, 0, err
		}
		if end < start {
			return 0, 0, errs.New(connector.BadRequest, fmt.Errorf("%q: %w", header, errRangeSyntax))
		}
		end = min(end, size-1)
	}

	if start >= size {
		return 0, 0, unsatisfiable
	}
	return start, end, nil
}
