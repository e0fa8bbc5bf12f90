// Package store persists interaction history, catalog data, feedback, and
// personality profiles, and serves the aggregate queries the scoring
// pipeline reads.
package store

import (
	"context"

	"github.com/hyperengineering/affinity/internal/types"
)

// Store defines the contract for all persistence operations.
type Store interface {
	// Event recording.
	RecordInteraction(ctx context.Context, in types.Interaction) (types.Interaction, error)
	RecordOrderLine(ctx context.Context, userID int64, line types.OrderLine) error
	RecordReview(ctx context.Context, userID int64, review types.Review) error
	AddWishlistItem(ctx context.Context, userID int64, item types.WishlistItem) error
	RemoveWishlistItem(ctx context.Context, userID, productID int64) error

	// Recommendation feedback.
	RecordFeedback(ctx context.Context, userID, productID int64, action types.FeedbackAction, reason string) error
	DeleteFeedback(ctx context.Context, userID, productID int64) error
	NegativeFeedbackIDs(ctx context.Context, userID int64) ([]int64, error)

	// Per-user history.
	UserInteractions(ctx context.Context, userID int64, limit int) ([]types.Interaction, error)
	UserOrders(ctx context.Context, userID int64) ([]types.OrderLine, error)
	UserReviews(ctx context.Context, userID int64) ([]types.Review, error)
	UserWishlist(ctx context.Context, userID int64) ([]types.WishlistItem, error)
	PurchaseStats(ctx context.Context, userID int64) (types.PurchaseStats, error)

	// Catalog.
	UpsertProduct(ctx context.Context, p types.Product) error
	Product(ctx context.Context, id int64) (*types.Product, error)
	CatalogSample(ctx context.Context, limit int) ([]types.Product, error)
	PopularProducts(ctx context.Context, limit int) ([]types.Product, error)
	PlatformStats(ctx context.Context) (types.PlatformStats, error)

	// Trending and collaborative inputs.
	ProductActivity(ctx context.Context, recentDays, baselineDays int) ([]types.ProductActivity, error)
	SimilarUsersPurchases(ctx context.Context, userID int64) (map[int64][]int64, error)
	EligibleUserIDs(ctx context.Context, minPurchases, maxUsers int) ([]int64, error)

	// Personality profiles, replaced wholesale on recompute.
	SaveProfile(ctx context.Context, profile types.PersonalityProfile) error
	Profile(ctx context.Context, userID int64) (*types.PersonalityProfile, error)

	Close() error
}
