// Package worker contains background loops that run alongside the HTTP
// server and stop with it.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/affinity/internal/types"
)

// TrendingSource computes the trending list and warms its cache as a side
// effect. The service layer satisfies it.
type TrendingSource interface {
	Trending(ctx context.Context, limit int, categoryID int64) ([]types.TrendingProduct, error)
}

// TrendingRefreshWorker periodically recomputes the trending list so the
// first request after a cache expiry never pays the aggregation cost.
type TrendingRefreshWorker struct {
	source   TrendingSource
	limit    int
	interval time.Duration
}

// NewTrendingRefreshWorker creates a worker with the given source and interval.
func NewTrendingRefreshWorker(source TrendingSource, limit int, interval time.Duration) *TrendingRefreshWorker {
	return &TrendingRefreshWorker{
		source:   source,
		limit:    limit,
		interval: interval,
	}
}

// Run starts the worker loop. Refreshes immediately on start, then on each
// interval. Respects context cancellation for graceful shutdown.
func (w *TrendingRefreshWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *TrendingRefreshWorker) refresh(ctx context.Context) {
	start := time.Now()
	items, err := w.source.Trending(ctx, w.limit, 0)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("trending refresh failed",
			"component", "worker",
			"error", err,
		)
		return
	}
	slog.Info("trending refreshed",
		"component", "worker",
		"products", len(items),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
