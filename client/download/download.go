package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const tempPattern = ".meowith-dl-*"

// Handle saves body at destPath. Bytes land in a hidden file next to
// destPath that replaces it only after the copy, the length check and any
// checksum succeed; a failed save leaves destPath untouched. A negative
// contentLength skips the length check.
func Handle(ctx context.Context, body io.Reader, contentLength int64, destPath string, logger *slog.Logger, optFns ...Option) error {
	if destPath == "" {
		return errors.New("destPath must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := defaultOptions()
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return fmt.Errorf("applying option: %w", err)
		}
	}

	if opts.skipExisting {
		if _, err := os.Stat(destPath); err == nil {
			logger.Info("skipping existing file", "path", destPath)
			return nil
		}
	}

	p, err := newPartial(destPath, logger)
	if err != nil {
		return err
	}
	defer p.discard()

	n, err := io.Copy(opts.writer(ctx, p.file, contentLength, logger.With("path", destPath)), &contextReader{ctx: ctx, r: body})
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %d bytes: %w", ErrDownloadCancelled, n, err)
	case err != nil:
		return fmt.Errorf("copying file body: %w", err)
	case contentLength >= 0 && n != contentLength:
		return &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", contentLength, n),
		}
	}

	if err := opts.checksum.check(); err != nil {
		return err
	}

	return p.commit(opts.mode)
}

// partial is a download in progress, written beside its destination so
// the final rename stays on one filesystem.
type partial struct {
	file      *os.File
	dest      string
	logger    *slog.Logger
	committed bool
}

func newPartial(dest string, logger *slog.Logger) (*partial, error) {
	file, err := os.CreateTemp(filepath.Dir(dest), tempPattern)
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}

	return &partial{file: file, dest: dest, logger: logger}, nil
}

func (p *partial) commit(mode os.FileMode) error {
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := p.file.Chmod(mode); err != nil {
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := p.file.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(p.file.Name(), p.dest); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	p.committed = true
	return nil
}

// discard removes the temp file unless commit moved it into place.
func (p *partial) discard() {
	if p.committed {
		return
	}

	if err := p.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		p.logger.Error("closing temp file", "path", p.file.Name(), "error", err)
	}
	if err := os.Remove(p.file.Name()); err != nil {
		p.logger.Error("removing temp file", "path", p.file.Name(), "error", err)
	}
}

// writer stacks the checksum and progress observers on top of file.
func (o *options) writer(ctx context.Context, file io.Writer, total int64, logger *slog.Logger) io.Writer {
	w := file
	if o.checksum != nil {
		w = io.MultiWriter(w, o.checksum)
	}
	if o.progress {
		w = newMeter(ctx, w, logger, total, o.now)
	}
	return w
}
