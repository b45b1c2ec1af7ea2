package worker

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"ghostrecon/internal/core/contracts"
	"ghostrecon/internal/core/domain"
	"ghostrecon/internal/platform/metrics"
)

type PresenceConfig struct {
	Shards       int
	ShardBuffer  int
	WriteTimeout time.Duration
}

// PresenceWorker applies presence transitions asynchronously. Updates for one
// user always land on the same shard, so they are written in submission order.
type PresenceWorker struct {
	log     *slog.Logger
	store   contracts.PresenceStore
	metrics *metrics.Metrics
	shards  []chan domain.PresenceUpdate
	timeout time.Duration
}

func NewPresenceWorker(
	log *slog.Logger,
	store contracts.PresenceStore,
	m *metrics.Metrics,
	cfg PresenceConfig,
) *PresenceWorker {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}
	if cfg.ShardBuffer <= 0 {
		cfg.ShardBuffer = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	shards := make([]chan domain.PresenceUpdate, cfg.Shards)
	for i := range shards {
		shards[i] = make(chan domain.PresenceUpdate, cfg.ShardBuffer)
	}
	return &PresenceWorker{
		log:     log,
		store:   store,
		metrics: m,
		shards:  shards,
		timeout: cfg.WriteTimeout,
	}
}

// NotifyPresence never blocks: a full shard drops the update.
func (w *PresenceWorker) NotifyPresence(userID string, online bool, at time.Time) {
	u := domain.PresenceUpdate{UserID: userID, Online: online, At: at}
	select {
	case w.shards[w.shardFor(userID)] <- u:
	default:
		w.metrics.PresenceDropped()
		w.log.Warn("presence worker - notify - queue full, update dropped", "user_id", userID, "online", online)
	}
}

func (w *PresenceWorker) shardFor(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(w.shards)))
}

// Run consumes every shard until ctx is done, then drains what is already queued.
func (w *PresenceWorker) Run(ctx context.Context) {
	w.log.InfoContext(ctx, "presence worker - run - started", "shards", len(w.shards))
	var wg sync.WaitGroup
	for _, ch := range w.shards {
		wg.Add(1)
		go func(ch chan domain.PresenceUpdate) {
			defer wg.Done()
			w.consume(ctx, ch)
		}(ch)
	}
	wg.Wait()
	w.log.InfoContext(ctx, "presence worker - run - stopped")
}

func (w *PresenceWorker) consume(ctx context.Context, ch chan domain.PresenceUpdate) {
	for {
		select {
		case u := <-ch:
			w.apply(ctx, u)
		case <-ctx.Done():
			for {
				select {
				case u := <-ch:
					w.apply(context.WithoutCancel(ctx), u)
				default:
					return
				}
			}
		}
	}
}

func (w *PresenceWorker) apply(ctx context.Context, u domain.PresenceUpdate) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.store.SetPresence(ctx, u.UserID, u.Online, u.At); err != nil {
		w.metrics.PresenceFailed()
		w.log.ErrorContext(ctx, "presence worker - apply - set presence failed", "user_id", u.UserID, "online", u.Online, "err", err)
		return
	}
	w.log.DebugContext(ctx, "presence worker - apply - presence stored", "user_id", u.UserID, "online", u.Online)
}
