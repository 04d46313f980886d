package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const progressInterval = time.Second

// meter passes writes through to w and logs the running transfer rate,
// once per progressInterval and once more when total is reached. A
// negative total means the body length is unknown.
type meter struct {
	ctx    context.Context
	w      io.Writer
	log    *slog.Logger
	now    func() time.Time
	total  int64
	done   int64
	start  time.Time
	logged time.Time
}

func newMeter(ctx context.Context, w io.Writer, log *slog.Logger, total int64, now func() time.Time) *meter {
	t := now()
	return &meter{ctx: ctx, w: w, log: log, now: now, total: total, start: t, logged: t}
}

func (m *meter) Write(p []byte) (int, error) {
	n, err := m.w.Write(p)
	m.done += int64(n)

	t := m.now()
	switch {
	case m.total >= 0 && m.done == m.total:
		m.report(t, "download complete")
	case t.Sub(m.logged) >= progressInterval:
		m.report(t, "downloading")
	}

	return n, err
}

func (m *meter) report(t time.Time, msg string) {
	m.logged = t

	elapsed := t.Sub(m.start)
	attrs := []slog.Attr{
		slog.Duration("elapsed", elapsed.Round(time.Millisecond)),
		slog.Int64("transferred", m.done),
	}
	if secs := elapsed.Seconds(); secs > 0 {
		attrs = append(attrs, slog.String("mbps", fmt.Sprintf("%.2f", float64(m.done)/secs/(1<<20))))
	}
	if m.total > 0 {
		attrs = append(attrs,
			slog.Int64("total", m.total),
			slog.String("progress", fmt.Sprintf("%.1f%%", float64(m.done)*100/float64(m.total))),
		)
	}

	m.log.LogAttrs(m.ctx, slog.LevelInfo, msg, attrs...)
}
