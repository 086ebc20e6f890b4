package app

import (
	"context"
	"log/slog"
	"time"
)

type iPruner interface {
	PruneStale(ctx context.Context) (int, error)
}

// runJanitor prunes stale participants every interval until ctx is done.
func runJanitor(ctx context.Context, pruner iPruner, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned, err := pruner.PruneStale(ctx)
			if err != nil {
				logger.WarnContext(ctx, "failed to prune stale participants", "error", err)
				continue
			}

			if pruned > 0 {
				logger.InfoContext(ctx, "pruned stale participants", "count", pruned)
			}
		}
	}
}
