package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyperengineering/affinity/internal/cache"
	"github.com/hyperengineering/affinity/internal/embedding"
	"github.com/hyperengineering/affinity/internal/evaluation"
	"github.com/hyperengineering/affinity/internal/recommend"
	"github.com/hyperengineering/affinity/internal/types"
)

// RecommendOptions control one recommendation request.
type RecommendOptions struct {
	Limit int
	// Alpha overrides adaptive blending when non-nil.
	Alpha *float64
	// CategoryID restricts candidates to one category when positive.
	CategoryID int64
	// SessionIDs are products viewed in the current session. Results that
	// depend on them are never cached.
	SessionIDs []int64
}

// contentCandidates caps how many vector hits feed the content-based signal.
const contentCandidates = 50

// Recommendations runs the full personalization pipeline for one user.
func (s *Service) Recommendations(ctx context.Context, userID int64, opts RecommendOptions) (types.RecommendationResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.Recommend.DefaultLimit
	}
	if limit > s.cfg.Recommend.MaxLimit {
		limit = s.cfg.Recommend.MaxLimit
	}

	cacheable := len(opts.SessionIDs) == 0
	key := cache.RecommendationsKey(userID, limit, alphaLabel(opts.Alpha), opts.CategoryID)
	if cacheable {
		var cached types.RecommendationResult
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn("recommendations cache read failed", "user_id", userID, "error", err)
		}
	}

	var (
		history      evaluation.History
		negativeIDs  []int64
		similarUsers map[int64][]int64
		catalog      []types.Product
		popular      []types.Product
		profile      types.PersonalityProfile
		profileErr   error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = s.UserHistory(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		negativeIDs, err = s.store.NegativeFeedbackIDs(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		similarUsers, err = s.store.SimilarUsersPurchases(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		catalog, err = s.store.CatalogSample(gctx, s.cfg.Recommend.CatalogSampleSize)
		return err
	})
	g.Go(func() error {
		// Category scoping filters the popular pool afterwards, so pull a
		// wider slice to keep the fallback from starving.
		popularLimit := limit
		if opts.CategoryID > 0 {
			popularLimit = s.cfg.Recommend.CatalogSampleSize
		}
		var err error
		popular, err = s.store.PopularProducts(gctx, popularLimit)
		return err
	})
	g.Go(func() error {
		// Profile failure is not fatal; the engine treats a missing
		// profile as alpha 0 and scores on behavior alone.
		profile, profileErr = s.Personality(gctx, userID, false)
		return nil
	})
	if err := g.Wait(); err != nil {
		return types.RecommendationResult{}, fmt.Errorf("gather inputs: %w", err)
	}
	if profileErr != nil {
		s.log.Warn("profile unavailable, scoring without personality",
			"user_id", userID, "error", profileErr)
	}

	purchased := make(map[int64]struct{}, len(history.Orders))
	for _, o := range history.Orders {
		purchased[o.ProductID] = struct{}{}
	}
	collaborative := recommend.CollaborativeScores(purchased, similarUsers, s.cfg.Recommend.MinJaccardSimilarity)
	contentSimilar := s.contentSimilar(ctx, history, catalog, purchased)

	// Category scoping narrows the candidate pools only. History and the
	// preference embedding still draw on the full catalog so cross-category
	// signals keep informing the scores.
	if opts.CategoryID > 0 {
		catalog = filterByCategory(catalog, opts.CategoryID)
		popular = filterByCategory(popular, opts.CategoryID)
		filtered := contentSimilar[:0]
		for _, sp := range contentSimilar {
			if sp.Product.CategoryID == opts.CategoryID {
				filtered = append(filtered, sp)
			}
		}
		contentSimilar = filtered
	}

	in := recommend.Inputs{
		UserID:         userID,
		Orders:         history.Orders,
		Wishlist:       history.Wishlist,
		Reviews:        history.Reviews,
		Interactions:   history.Interactions,
		Collaborative:  collaborative,
		ContentSimilar: contentSimilar,
		Popular:        popular,
		Catalog:        catalog,
		NegativeIDs:    negativeIDs,
		SessionIDs:     opts.SessionIDs,
	}
	if profileErr == nil {
		in.Profile = &profile
	}

	result := s.engine.Recommend(in, recommend.Options{Limit: limit, Alpha: opts.Alpha})
	if cacheable {
		s.cacheSet(ctx, key, result, time.Duration(s.cfg.Cache.TTLRecommendations))
	}
	return result, nil
}

// contentSimilar derives the content-based signal from a preference
// embedding. Any failure degrades to no signal rather than failing the
// request.
func (s *Service) contentSimilar(ctx context.Context, history evaluation.History, catalog []types.Product, purchased map[int64]struct{}) []recommend.ScoredProduct {
	byID := make(map[int64]types.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	var bought, viewed []types.Product
	for _, o := range history.Orders {
		if p, ok := byID[o.ProductID]; ok {
			bought = append(bought, p)
		}
	}
	for _, in := range history.Interactions {
		if in.Type != types.InteractionView {
			continue
		}
		if p, ok := byID[in.ProductID]; ok {
			viewed = append(viewed, p)
		}
	}

	text := embedding.PreferenceText(bought, viewed, history.Reviews)
	if text == "" {
		return nil
	}

	matches, err := s.PreferenceMatches(ctx, text, contentCandidates)
	if err != nil {
		s.log.Warn("content signal unavailable", "error", err)
		return nil
	}

	var out []recommend.ScoredProduct
	for _, m := range matches {
		if _, owned := purchased[m.ProductID]; owned {
			continue
		}
		p, ok := byID[m.ProductID]
		if !ok {
			continue
		}
		out = append(out, recommend.ScoredProduct{Product: p, Score: float64(m.Score)})
	}
	return out
}

// Trending returns the current trending products, cached briefly. A
// positive categoryID restricts the list to one category.
func (s *Service) Trending(ctx context.Context, limit int, categoryID int64) ([]types.TrendingProduct, error) {
	if limit <= 0 {
		limit = s.cfg.Recommend.DefaultLimit
	}
	if limit > s.cfg.Recommend.MaxLimit {
		limit = s.cfg.Recommend.MaxLimit
	}

	key := cache.TrendingKey(categoryID)
	var cached []types.TrendingProduct
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		if len(cached) > limit {
			cached = cached[:limit]
		}
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("trending cache read failed", "error", err)
	}

	activity, err := s.store.ProductActivity(ctx, s.cfg.Trending.RecentDays, s.cfg.Trending.BaselineDays)
	if err != nil {
		return nil, fmt.Errorf("load product activity: %w", err)
	}

	// Rank everything, then cut to the category. Ranking first keeps the
	// scores comparable across categories.
	ranked := s.trending.Rank(activity, 0)
	if categoryID > 0 {
		filtered := ranked[:0]
		for _, tp := range ranked {
			if tp.CategoryID == categoryID {
				filtered = append(filtered, tp)
			}
		}
		ranked = filtered
	}
	// Cache the deepest slice any request can ask for, then cut to this
	// request's limit.
	cached = ranked
	if len(cached) > s.cfg.Recommend.MaxLimit {
		cached = cached[:s.cfg.Recommend.MaxLimit]
	}
	s.cacheSet(ctx, key, cached, time.Duration(s.cfg.Cache.TTLTrending))
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// SimilarProducts returns products similar to the given one. When the
// vector backend cannot answer, it falls back to popular products so the
// widget never renders empty.
func (s *Service) SimilarProducts(ctx context.Context, productID int64, limit int) ([]types.RecommendedItem, error) {
	if limit <= 0 {
		limit = s.cfg.Recommend.DefaultLimit
	}
	if limit > s.cfg.Recommend.MaxLimit {
		limit = s.cfg.Recommend.MaxLimit
	}

	queryCtx, cancelQuery := s.vectorCtx(ctx)
	matches, err := s.index.SimilarToProduct(queryCtx, productID, limit+1)
	cancelQuery()
	if err != nil {
		s.log.Warn("similar products search failed", "product_id", productID, "error", err)
	}

	var items []types.RecommendedItem
	for _, m := range matches {
		if m.ProductID == productID {
			continue
		}
		p, err := s.store.Product(ctx, m.ProductID)
		if err != nil {
			continue
		}
		items = append(items, types.RecommendedItem{
			ProductID:    p.ID,
			Name:         p.Name,
			Score:        types.Clamp01(float64(m.Score)),
			Reason:       recommend.ReasonSimilarItem,
			CategoryID:   p.CategoryID,
			CategoryName: p.CategoryName,
			Price:        p.Price,
		})
		if len(items) >= limit {
			break
		}
	}
	if len(items) > 0 {
		return items, nil
	}

	popular, err := s.store.PopularProducts(ctx, limit+1)
	if err != nil {
		return nil, fmt.Errorf("load popular products: %w", err)
	}
	for i, p := range popular {
		if p.ID == productID {
			continue
		}
		items = append(items, types.RecommendedItem{
			ProductID:    p.ID,
			Name:         p.Name,
			Score:        types.Clamp01(1.0 - 0.05*float64(i)),
			Reason:       recommend.ReasonPopular,
			CategoryID:   p.CategoryID,
			CategoryName: p.CategoryName,
			Price:        p.Price,
		})
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

func filterByCategory(products []types.Product, categoryID int64) []types.Product {
	out := products[:0]
	for _, p := range products {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	return out
}

func alphaLabel(alpha *float64) string {
	if alpha == nil {
		return "adaptive"
	}
	return fmt.Sprintf("%.2f", *alpha)
}
