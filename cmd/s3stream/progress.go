package main

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const progressInterval = 5 * time.Second

// logProgress reports transfer progress as log lines, at most once per
// interval.
type logProgress struct {
	log      *slog.Logger
	interval time.Duration

	mu    sync.Mutex
	start time.Time
	last  time.Time
	bytes int64
}

func newLogProgress(log *slog.Logger, interval time.Duration) *logProgress {
	now := time.Now()
	return &logProgress{log: log, interval: interval, start: now, last: now}
}

func (p *logProgress) Update(transferred, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bytes = transferred
	now := time.Now()
	if now.Sub(p.last) < p.interval {
		return
	}
	p.last = now

	attrs := []any{
		"transferred", humanize.IBytes(uint64(transferred)),
		"rate", humanize.IBytes(uint64(rate(transferred, now.Sub(p.start)))) + "/s",
	}
	if total > 0 {
		attrs = append(attrs,
			"total", humanize.IBytes(uint64(total)),
			"percent", fmtPercent(transferred, total),
		)
	}
	p.log.Info("progress", attrs...)
}

func (p *logProgress) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	elapsed := time.Since(p.start)
	p.log.Info("upload finished",
		"transferred", humanize.IBytes(uint64(p.bytes)),
		"rate", humanize.IBytes(uint64(rate(p.bytes, elapsed)))+"/s",
	)
}

func (p *logProgress) Error(err error) {
	p.log.Debug("progress stopped", "error", err)
}

func rate(bytes int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) / elapsed.Seconds()
}

func fmtPercent(done, total int64) string {
	return humanize.FtoaWithDigits(float64(done)*100/float64(total), 1) + "%"
}
