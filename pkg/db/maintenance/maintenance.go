package maintenance

import (
	"context"
	"log/slog"
	"time"

	"poiatlas/pkg/db"
)

const lastPruneStateKey = "cache_last_prune"

// StateStore records when maintenance last ran.
type StateStore interface {
	SetState(ctx context.Context, key, val string) error
}

// Run executes all maintenance tasks on the cache table: expiry pruning and
// removal of anything older than maxAge, whatever its TTL.
// It blocks until completion; failures are logged, never fatal.
func Run(ctx context.Context, s StateStore, d *db.DB, maxAge time.Duration) error {
	slog.Info("Starting database maintenance...")

	now := time.Now()
	expired, err := d.PruneExpired(now)
	if err != nil {
		slog.Error("Cache expiry pruning failed", "error", err)
	}

	var aged int64
	if maxAge > 0 {
		aged, err = d.PruneCache(maxAge)
		if err != nil {
			slog.Error("Cache age pruning failed", "error", err)
		}
	}

	if err := s.SetState(ctx, lastPruneStateKey, now.UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("Failed to record maintenance state", "error", err)
	}

	slog.Info("Cache pruning completed", "expired", expired, "aged", aged)
	return nil
}
