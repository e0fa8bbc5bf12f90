package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/affinity/internal/api"
	"github.com/hyperengineering/affinity/internal/cache"
	"github.com/hyperengineering/affinity/internal/config"
	"github.com/hyperengineering/affinity/internal/embedding"
	"github.com/hyperengineering/affinity/internal/service"
	"github.com/hyperengineering/affinity/internal/store"
	"github.com/hyperengineering/affinity/internal/vector"
	"github.com/hyperengineering/affinity/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "affinity",
	Short: "Affinity - Recommendation Personalization Service",
	RunE:  run,
}

func run(cmd *cobra.Command, args []string) error {
	// Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", cfg.Log.Level)

	// Store (migrations, WAL mode)
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	// Redis is optional: without it every request recomputes.
	var c cache.Cache
	redisCache, err := cache.NewRedisCache(ctx, cfg.Cache)
	if err != nil {
		slog.Warn("redis unavailable, caching disabled", "addr", cfg.Cache.Addr, "error", err)
		c = cache.Noop{}
	} else {
		c = redisCache
		slog.Info("cache initialized", "addr", cfg.Cache.Addr)
	}

	// Qdrant is optional: without it the content-based signal degrades to
	// zero and similar-products falls back to popularity.
	var idx vector.Index
	qdrantIndex, err := vector.NewQdrantIndex(cfg.Vector)
	if err != nil {
		slog.Warn("qdrant unavailable, vector search disabled", "host", cfg.Vector.Host, "error", err)
		idx = vector.Noop{}
	} else {
		ensureCtx, ensureCancel := context.WithTimeout(ctx, time.Duration(cfg.Vector.Timeout))
		err = qdrantIndex.EnsureCollection(ensureCtx, uint64(cfg.Embedding.Dimensions))
		ensureCancel()
		if err != nil {
			slog.Warn("qdrant collection unavailable, vector search disabled",
				"collection", cfg.Vector.Collection, "error", err)
			qdrantIndex.Close()
			idx = vector.Noop{}
		} else {
			idx = qdrantIndex
			slog.Info("vector index initialized", "collection", cfg.Vector.Collection)
		}
	}

	embedder := embedding.NewOpenAI(cfg.Embedding.APIKey, cfg.Embedding.Model)
	slog.Info("embedder initialized", "model", cfg.Embedding.Model)

	svc := service.New(cfg, db, c, idx, embedder, logger)
	handler := api.NewHandler(svc, cfg.Auth.APIKey, Version)
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	var wg sync.WaitGroup
	trendingWorker := worker.NewTrendingRefreshWorker(svc,
		cfg.Trending.RefreshLimit,
		time.Duration(cfg.Trending.RefreshInterval))
	startWorker(ctx, &wg, "trending-refresh", trendingWorker.Run)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called
		// gracefully. Anything else is a real failure.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// Drain in-flight requests, wait for workers, then release backends.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	wg.Wait()
	if err := idx.Close(); err != nil {
		slog.Error("vector index close error", "error", err)
	}
	if err := c.Close(); err != nil {
		slog.Error("cache close error", "error", err)
	}
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context
// cancellation. Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
