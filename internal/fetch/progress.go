package fetch

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
)

const progressInterval = 5 * time.Second

// progressReader wraps an io.Reader to log download progress
type progressReader struct {
	reader      io.Reader
	total       int64
	transferred int64
	startTime   time.Time
	sugar       *zap.SugaredLogger
	lastReport  time.Time
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.transferred += int64(n)

	now := time.Now()
	done := pr.transferred == pr.total || err == io.EOF
	if now.Sub(pr.lastReport) < progressInterval && !done {
		return n, err
	}
	pr.lastReport = now

	elapsed := now.Sub(pr.startTime).Seconds()
	if elapsed <= 0 || pr.total <= 0 {
		return n, err
	}

	percentage := float64(pr.transferred) / float64(pr.total) * 100
	transferredMB := float64(pr.transferred) / 1024 / 1024
	totalMB := float64(pr.total) / 1024 / 1024
	mbPerSec := transferredMB / elapsed

	if !done {
		pr.sugar.Infof("Download progress: %.1f%% (%.2f/%.2f MB, %.2f MB/s)",
			percentage, transferredMB, totalMB, mbPerSec)
	}

	return n, err
}

// contextReader stops a copy once ctx is cancelled
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
