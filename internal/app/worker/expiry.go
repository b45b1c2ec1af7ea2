package worker

import (
	"context"
	"log/slog"
	"time"

	"ghostrecon/internal/platform/metrics"
)

type expiredPurger interface {
	DeleteExpired(ctx context.Context, convID string, now time.Time) (int64, error)
}

// ExpiryWorker periodically deletes self-destructing messages whose time is up.
type ExpiryWorker struct {
	log      *slog.Logger
	messages expiredPurger
	metrics  *metrics.Metrics
	interval time.Duration
	now      func() time.Time
}

func NewExpiryWorker(
	log *slog.Logger,
	messages expiredPurger,
	m *metrics.Metrics,
	interval time.Duration,
) *ExpiryWorker {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpiryWorker{
		log:      log,
		messages: messages,
		metrics:  m,
		interval: interval,
		now:      time.Now,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) {
	w.log.InfoContext(ctx, "expiry worker - run - started", "interval", w.interval.String())
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.InfoContext(ctx, "expiry worker - run - stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep removes expired messages across all conversations once.
func (w *ExpiryWorker) Sweep(ctx context.Context) {
	n, err := w.messages.DeleteExpired(ctx, "", w.now())
	if err != nil {
		w.log.ErrorContext(ctx, "expiry worker - sweep - delete expired failed", "err", err)
		return
	}
	w.metrics.MessagesExpired(n)
	if n > 0 {
		w.log.InfoContext(ctx, "expiry worker - sweep - expired messages deleted", "count", n)
	}
}
