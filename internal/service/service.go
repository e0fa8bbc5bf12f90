// Package service orchestrates storage, caching, vector search, and the
// scoring pipeline behind the HTTP API. Handlers stay thin; everything that
// touches more than one backend lives here.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyperengineering/affinity/internal/cache"
	"github.com/hyperengineering/affinity/internal/config"
	"github.com/hyperengineering/affinity/internal/embedding"
	"github.com/hyperengineering/affinity/internal/evaluation"
	"github.com/hyperengineering/affinity/internal/filtersignal"
	"github.com/hyperengineering/affinity/internal/personality"
	"github.com/hyperengineering/affinity/internal/recommend"
	"github.com/hyperengineering/affinity/internal/store"
	"github.com/hyperengineering/affinity/internal/trending"
	"github.com/hyperengineering/affinity/internal/types"
	"github.com/hyperengineering/affinity/internal/vector"
)

// Service wires the scoring pipeline to its backends.
type Service struct {
	cfg        *config.Config
	store      store.Store
	cache      cache.Cache
	index      vector.Index
	embedder   embedding.Embedder
	engine     *recommend.Engine
	classifier *personality.Classifier
	trending   *trending.Detector
	log        *slog.Logger
}

// New creates a Service. Pass cache.Noop or vector.Noop when those backends
// are disabled; the pipeline degrades rather than failing.
func New(cfg *config.Config, st store.Store, c cache.Cache, idx vector.Index, emb embedding.Embedder, log *slog.Logger) *Service {
	return &Service{
		cfg:        cfg,
		store:      st,
		cache:      c,
		index:      idx,
		embedder:   emb,
		engine:     recommend.New(cfg.Recommend, cfg.Filter),
		classifier: personality.NewClassifier(filtersignal.New(cfg.Filter)),
		trending:   trending.New(cfg.Trending),
		log:        log,
	}
}

var _ evaluation.DataSource = (*Service)(nil)

// vectorCtx bounds one vector backend call. A hung backend degrades that
// channel instead of stalling the request.
func (s *Service) vectorCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(s.cfg.Vector.Timeout))
}

// embedCtx bounds one embedding call the same way.
func (s *Service) embedCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(s.cfg.Embedding.Timeout))
}

// UserHistory fetches a user's complete behavioral record. The five reads
// are independent, so they run concurrently.
func (s *Service) UserHistory(ctx context.Context, userID int64) (evaluation.History, error) {
	var h evaluation.History
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		orders, err := s.store.UserOrders(ctx, userID)
		h.Orders = orders
		return err
	})
	g.Go(func() error {
		wishlist, err := s.store.UserWishlist(ctx, userID)
		h.Wishlist = wishlist
		return err
	})
	g.Go(func() error {
		reviews, err := s.store.UserReviews(ctx, userID)
		h.Reviews = reviews
		return err
	})
	g.Go(func() error {
		interactions, err := s.store.UserInteractions(ctx, userID, 0)
		h.Interactions = interactions
		return err
	})
	g.Go(func() error {
		stats, err := s.store.PurchaseStats(ctx, userID)
		h.Stats = stats
		return err
	})

	if err := g.Wait(); err != nil {
		return evaluation.History{}, err
	}
	return h, nil
}

// EligibleUserIDs implements evaluation.DataSource.
func (s *Service) EligibleUserIDs(ctx context.Context, minPurchases, maxUsers int) ([]int64, error) {
	return s.store.EligibleUserIDs(ctx, minPurchases, maxUsers)
}

// SimilarUsersPurchases implements evaluation.DataSource.
func (s *Service) SimilarUsersPurchases(ctx context.Context, userID int64) (map[int64][]int64, error) {
	return s.store.SimilarUsersPurchases(ctx, userID)
}

// CatalogSample implements evaluation.DataSource.
func (s *Service) CatalogSample(ctx context.Context, limit int) ([]types.Product, error) {
	return s.store.CatalogSample(ctx, limit)
}

// PlatformStats implements evaluation.DataSource.
func (s *Service) PlatformStats(ctx context.Context) (types.PlatformStats, error) {
	return s.store.PlatformStats(ctx)
}

// PreferenceMatches implements evaluation.DataSource. It embeds the text and
// queries the vector index, each under its own timeout.
func (s *Service) PreferenceMatches(ctx context.Context, text string, limit int) ([]vector.Match, error) {
	embedCtx, cancelEmbed := s.embedCtx(ctx)
	vec, err := s.embedder.Embed(embedCtx, text)
	cancelEmbed()
	if err != nil {
		return nil, fmt.Errorf("embed preference text: %w", err)
	}
	queryCtx, cancelQuery := s.vectorCtx(ctx)
	matches, err := s.index.SimilarToVector(queryCtx, vec, limit)
	cancelQuery()
	if err != nil {
		return nil, fmt.Errorf("search similar products: %w", err)
	}
	return matches, nil
}

// DefaultAlpha returns the configured default blend weight.
func (s *Service) DefaultAlpha() float64 {
	return s.cfg.Recommend.AlphaDefault
}

// Evaluator builds the temporal-holdout evaluator over this service's data.
func (s *Service) Evaluator() *evaluation.Evaluator {
	return s.EvaluatorWith(0, nil)
}

// EvaluatorWith builds an evaluator with per-run overrides for the user cap
// and K cutoffs. Zero values keep the configured defaults.
func (s *Service) EvaluatorWith(maxUsers int, kValues []int) *evaluation.Evaluator {
	cfg := s.cfg.Evaluation
	if maxUsers > 0 {
		cfg.MaxUsers = maxUsers
	}
	if len(kValues) > 0 {
		cfg.KValues = kValues
	}
	return evaluation.New(cfg, s.cfg.Recommend, s.engine, s.classifier, s, s.log)
}
