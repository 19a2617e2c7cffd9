// Package backlog периодически считает события, изменение по которым не применилось,
// и сообщает о них в метрики и лог.
package backlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
)

// EventCounter считает неприменённые события.
type EventCounter interface {
	CountUnprocessed(ctx context.Context) (int, error)
}

// Gauge принимает текущий размер очереди на ручной повтор.
type Gauge interface {
	SetUnprocessedEvents(n int)
}

// Reporter периодически публикует размер очереди на ручной повтор.
type Reporter struct {
	repo     EventCounter
	gauge    Gauge
	interval time.Duration
	log      *slog.Logger
}

// NewReporter создает новый экземпляр Reporter.
func NewReporter(repo EventCounter, gauge Gauge, interval time.Duration, log *slog.Logger) *Reporter {
	return &Reporter{
		repo:     repo,
		gauge:    gauge,
		interval: interval,
		log:      log,
	}
}

// Run блокируется до отмены ctx.
func (r *Reporter) Run(ctx context.Context) {
	r.report(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report(ctx)
		}
	}
}

func (r *Reporter) report(ctx context.Context) {
	n, err := r.repo.CountUnprocessed(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error("failed to count unprocessed events", sl.Err(err))
		}
		return
	}
	r.gauge.SetUnprocessedEvents(n)
	if n > 0 {
		r.log.Warn("unapplied billing events waiting for manual replay", slog.Int("count", n))
	}
}
