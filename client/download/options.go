package download

import (
	"errors"
	"hash"
	"os"
	"time"
)

// Option configures [Handle].
type Option func(*options) error

type options struct {
	checksum     *digest
	progress     bool
	skipExisting bool
	mode         os.FileMode
	now          func() time.Time
}

func defaultOptions() options {
	return options{mode: 0o644, now: time.Now}
}

// WithChecksum verifies the saved bytes against expected, the hex digest
// h produces (e.g. sha256.New()). Case is ignored. A mismatch fails with
// [ErrChecksumMismatch] and nothing is written to the destination.
func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		switch {
		case h == nil:
			return errors.New("hash must not be nil")
		case expected == "":
			return errors.New("expected checksum must not be empty")
		}

		opts.checksum = &digest{Hash: h, want: expected}
		return nil
	}
}

// WithProgress logs transfer progress at Info, at most once a second.
func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}

// WithSkipExisting leaves an existing destination alone and returns nil
// without reading the body.
func WithSkipExisting() Option {
	return func(opts *options) error {
		opts.skipExisting = true
		return nil
	}
}

// WithMode sets the permission bits of the saved file. Default is 0644.
func WithMode(mode os.FileMode) Option {
	return func(opts *options) error {
		if mode&^os.ModePerm != 0 {
			return errors.New("mode must only carry permission bits")
		}
		opts.mode = mode
		return nil
	}
}
