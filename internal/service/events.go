package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperengineering/affinity/internal/cache"
	"github.com/hyperengineering/affinity/internal/embedding"
	"github.com/hyperengineering/affinity/internal/types"
)

// RecordInteraction stores one behavioral event and invalidates everything
// derived from it.
func (s *Service) RecordInteraction(ctx context.Context, in types.Interaction) (types.Interaction, error) {
	stored, err := s.store.RecordInteraction(ctx, in)
	if err != nil {
		return types.Interaction{}, fmt.Errorf("record interaction: %w", err)
	}
	s.invalidateUser(ctx, in.UserID)
	s.invalidateTrending(ctx)
	return stored, nil
}

// RecordOrder stores purchased line items. Each line also lands as a
// purchase interaction so trending sees it.
func (s *Service) RecordOrder(ctx context.Context, userID int64, lines []types.OrderLine) error {
	for _, line := range lines {
		if err := s.store.RecordOrderLine(ctx, userID, line); err != nil {
			return fmt.Errorf("record order line: %w", err)
		}
		occurredAt := line.OrderedAt
		if occurredAt.IsZero() {
			occurredAt = time.Now().UTC()
		}
		if _, err := s.store.RecordInteraction(ctx, types.Interaction{
			UserID:     userID,
			ProductID:  line.ProductID,
			Type:       types.InteractionPurchase,
			OccurredAt: occurredAt,
		}); err != nil {
			return fmt.Errorf("record purchase interaction: %w", err)
		}
	}
	s.invalidateUser(ctx, userID)
	s.invalidateTrending(ctx)
	s.cacheDelete(ctx, cache.SimilarityKey(userID))
	return nil
}

// RecordReview stores one review.
func (s *Service) RecordReview(ctx context.Context, userID int64, review types.Review) error {
	if err := s.store.RecordReview(ctx, userID, review); err != nil {
		return fmt.Errorf("record review: %w", err)
	}
	s.invalidateUser(ctx, userID)
	return nil
}

// AddWishlistItem stores a wishlist addition, mirrored as an interaction.
func (s *Service) AddWishlistItem(ctx context.Context, userID int64, item types.WishlistItem) error {
	if err := s.store.AddWishlistItem(ctx, userID, item); err != nil {
		return fmt.Errorf("add wishlist item: %w", err)
	}
	occurredAt := item.AddedAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	if _, err := s.store.RecordInteraction(ctx, types.Interaction{
		UserID:     userID,
		ProductID:  item.ProductID,
		Type:       types.InteractionWishlistAdd,
		OccurredAt: occurredAt,
	}); err != nil {
		return fmt.Errorf("record wishlist interaction: %w", err)
	}
	s.invalidateUser(ctx, userID)
	s.invalidateTrending(ctx)
	return nil
}

// RemoveWishlistItem removes a wishlist entry.
func (s *Service) RemoveWishlistItem(ctx context.Context, userID, productID int64) error {
	if err := s.store.RemoveWishlistItem(ctx, userID, productID); err != nil {
		return fmt.Errorf("remove wishlist item: %w", err)
	}
	s.invalidateUser(ctx, userID)
	return nil
}

// RecordFeedback stores an explicit recommendation rejection. The optional
// reason is kept for later blend tuning and never affects scoring directly.
func (s *Service) RecordFeedback(ctx context.Context, userID, productID int64, action types.FeedbackAction, reason string) error {
	if err := s.store.RecordFeedback(ctx, userID, productID, action, reason); err != nil {
		return err
	}
	s.cacheDeletePrefix(ctx, cache.RecommendationsPrefix(userID))
	return nil
}

// DeleteFeedback withdraws previously recorded feedback.
func (s *Service) DeleteFeedback(ctx context.Context, userID, productID int64) error {
	if err := s.store.DeleteFeedback(ctx, userID, productID); err != nil {
		return err
	}
	s.cacheDeletePrefix(ctx, cache.RecommendationsPrefix(userID))
	return nil
}

// UpsertProduct writes the product to the catalog and indexes its embedding.
// Indexing failures are logged, not returned; the catalog write is the part
// that must not be lost.
func (s *Service) UpsertProduct(ctx context.Context, p types.Product) error {
	if err := s.store.UpsertProduct(ctx, p); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	embedCtx, cancelEmbed := s.embedCtx(ctx)
	vec, err := s.embedder.Embed(embedCtx, embedding.ProductText(p))
	cancelEmbed()
	if err != nil {
		s.log.Warn("product embedding failed", "product_id", p.ID, "error", err)
		return nil
	}
	payload := map[string]any{
		"name":        p.Name,
		"category_id": p.CategoryID,
	}
	indexCtx, cancelIndex := s.vectorCtx(ctx)
	err = s.index.UpsertProduct(indexCtx, p.ID, vec, payload)
	cancelIndex()
	if err != nil {
		s.log.Warn("product indexing failed", "product_id", p.ID, "error", err)
	}
	return nil
}

// invalidateUser drops everything cached for one user. New events change
// both the profile and any recommendation list.
func (s *Service) invalidateUser(ctx context.Context, userID int64) {
	s.cacheDelete(ctx, cache.ProfileKey(userID))
	s.cacheDeletePrefix(ctx, cache.RecommendationsPrefix(userID))
}

func (s *Service) invalidateTrending(ctx context.Context) {
	s.cacheDeletePrefix(ctx, cache.TrendingPrefix())
}

func (s *Service) cacheDelete(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.Warn("cache delete failed", "error", err)
	}
}

func (s *Service) cacheDeletePrefix(ctx context.Context, prefix string) {
	if err := s.cache.DeletePrefix(ctx, prefix); err != nil {
		s.log.Warn("cache invalidation failed", "prefix", prefix, "error", err)
	}
}
