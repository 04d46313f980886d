package connector

import (
	"fmt"
)

// Range restricts a listing by entity index. A nil bound is open.
type Range struct {
	Start *int32
	End   *int32
}

// NewRange returns a Range covering start through end.
func NewRange(start, end int32) *Range {
	return &Range{Start: &start, End: &end}
}

// ConstructPaginationQuery encodes r as a query string including the
// leading '?', or "" when r places no restriction. A start-only range
// keeps the trailing '-' the node expects.
func ConstructPaginationQuery(r *Range) string {
	if r == nil {
		return ""
	}

	switch {
	case r.Start != nil && r.End != nil:
		return fmt.Sprintf("?start=%d&end=%d", *r.Start, *r.End)
	case r.Start != nil:
		return fmt.Sprintf("?start=%d-", *r.Start)
	case r.End != nil:
		return fmt.Sprintf("?end=%d", *r.End)
	default:
		return ""
	}
}

// DownloadRange selects bytes of a file to download. Both bounds are
// inclusive; a nil bound is open.
type DownloadRange struct {
	Start *uint64
	End   *uint64
}

// FullRange selects the whole file.
func FullRange() DownloadRange {
	return DownloadRange{}
}

// NewDownloadRange selects bytes start through end, inclusive.
func NewDownloadRange(start, end uint64) DownloadRange {
	return DownloadRange{Start: &start, End: &end}
}

// IsFull reports whether neither bound is set.
func (r DownloadRange) IsFull() bool {
	return r.Start == nil && r.End == nil
}

// HeaderValue renders r as a Range header value. A full range is
// rendered as "bytes=0-", never as an absent header.
func (r DownloadRange) HeaderValue() string {
	switch {
	case r.Start != nil && r.End != nil:
		return fmt.Sprintf("bytes=%d-%d", *r.Start, *r.End)
	case r.Start != nil:
		return fmt.Sprintf("bytes=%d-", *r.Start)
	case r.End != nil:
		return fmt.Sprintf("bytes=-%d", *r.End)
	default:
		return "bytes=0-"
	}
}
