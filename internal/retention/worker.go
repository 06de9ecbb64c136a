// Package retention purges learners and progress that have been idle for too long.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/codeando/internal/metrics"
	"github.com/ashureev/codeando/internal/shared"
	"github.com/ashureev/codeando/internal/store"
)

const defaultInterval = time.Hour

// StartWorker runs a background goroutine that periodically deletes users not
// seen within maxIdle, together with their progress. It stops when ctx is done.
func StartWorker(ctx context.Context, repo store.Repository, m *metrics.Metrics, maxIdle, interval time.Duration) {
	if maxIdle <= 0 {
		slog.Info("Retention worker disabled")
		return
	}
	if interval <= 0 {
		interval = defaultInterval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", interval, "max_idle", maxIdle)

		for {
			select {
			case <-ticker.C:
				Sweep(ctx, repo, m, maxIdle)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Sweep runs one purge and returns the number of deleted users and progress rows.
func Sweep(ctx context.Context, repo store.Repository, m *metrics.Metrics, maxIdle time.Duration) (int64, int64) {
	var users, progress int64
	err := shared.DefaultRetryPolicy().Do(ctx, "delete inactive users", func() error {
		var err error
		users, progress, err = repo.DeleteInactiveUsers(ctx, maxIdle)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Retention sweep canceled", "error", err)
			return 0, 0
		}
		slog.Error("Retention worker failed to delete inactive users", "error", err)
		return 0, 0
	}

	if m != nil {
		m.RetentionDeleted.WithLabelValues("users").Add(float64(users))
		m.RetentionDeleted.WithLabelValues("progress").Add(float64(progress))
	}
	if users > 0 {
		slog.Info("Retention worker cleanup completed", "users", users, "progress", progress)
	}
	return users, progress
}
