package types

import (
	"time"
)

// InteractionType classifies a recorded user action.
type InteractionType string

const (
	InteractionView        InteractionType = "view"
	InteractionClick       InteractionType = "click"
	InteractionCartAdd     InteractionType = "cart_add"
	InteractionCartRemove  InteractionType = "cart_remove"
	InteractionWishlistAdd InteractionType = "wishlist_add"
	InteractionPurchase    InteractionType = "purchase"
	InteractionReview      InteractionType = "review"
)

// FilterContext captures the catalog filters that were active when an
// interaction was recorded. It is only meaningful close to the moment it was
// applied; consumers must check Valid before trusting it.
type FilterContext struct {
	CategoryID int64     `json:"category_id,omitempty"`
	MinPrice   *float64  `json:"min_price,omitempty"`
	MaxPrice   *float64  `json:"max_price,omitempty"`
	MinRating  *float64  `json:"min_rating,omitempty"`
	InStock    *bool     `json:"in_stock,omitempty"`
	AppliedAt  time.Time `json:"applied_at"`
}

// FilterContextWindow is how long a filter context stays attached to an
// interaction before it is treated as absent.
const FilterContextWindow = 5 * time.Minute

// Valid reports whether the context was applied within the validity window of
// the interaction it is attached to.
func (fc *FilterContext) Valid(occurredAt time.Time) bool {
	if fc == nil || fc.AppliedAt.IsZero() {
		return false
	}
	gap := occurredAt.Sub(fc.AppliedAt)
	if gap < 0 {
		gap = -gap
	}
	return gap <= FilterContextWindow
}

// Interaction is a single append-only user action record. Owned by the
// interaction source; read-only to this service once recorded.
type Interaction struct {
	ID              string          `json:"id"`
	UserID          int64           `json:"user_id"`
	ProductID       int64           `json:"product_id"`
	Type            InteractionType `json:"type"`
	OccurredAt      time.Time       `json:"occurred_at"`
	DurationSeconds int             `json:"duration_seconds,omitempty"`
	Filter          *FilterContext  `json:"filter_context,omitempty"`
}

// Product is the catalog fact set the scoring pipeline consumes.
type Product struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	CategoryID   int64     `json:"category_id"`
	CategoryName string    `json:"category_name,omitempty"`
	Price        float64   `json:"price"`
	Rating       float64   `json:"rating"`
	IsNew        bool      `json:"is_new"`
	OnSale       bool      `json:"on_sale"`
	Popularity   int       `json:"popularity"`
	InStock      bool      `json:"in_stock"`
	ImageURL     string    `json:"image_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// OrderLine is one purchased item from a completed order.
type OrderLine struct {
	ProductID     int64     `json:"product_id"`
	CategoryID    int64     `json:"category_id"`
	Price         float64   `json:"price"`
	OriginalPrice float64   `json:"original_price,omitempty"`
	Discounted    bool      `json:"discounted"`
	OrderedAt     time.Time `json:"ordered_at"`
}

// Review is a user's rating of a product, 1-5 stars.
type Review struct {
	ProductID int64     `json:"product_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WishlistItem is one product on a user's wishlist.
type WishlistItem struct {
	ProductID  int64     `json:"product_id"`
	CategoryID int64     `json:"category_id"`
	AddedAt    time.Time `json:"added_at"`
}

// Archetype is one of the eight fixed behavioral profiles.
type Archetype string

const (
	ArchetypeAdventurousPremium  Archetype = "adventurous_premium"
	ArchetypeCautiousValueSeeker Archetype = "cautious_value_seeker"
	ArchetypeLoyalEnthusiast     Archetype = "loyal_enthusiast"
	ArchetypeBargainHunter       Archetype = "bargain_hunter"
	ArchetypeQualityFocused      Archetype = "quality_focused"
	ArchetypeTrendFollower       Archetype = "trend_follower"
	ArchetypePracticalShopper    Archetype = "practical_shopper"
	ArchetypeImpulseBuyer        Archetype = "impulse_buyer"
)

// Archetypes lists all eight behavioral profiles in a stable order.
var Archetypes = []Archetype{
	ArchetypeAdventurousPremium,
	ArchetypeCautiousValueSeeker,
	ArchetypeLoyalEnthusiast,
	ArchetypeBargainHunter,
	ArchetypeQualityFocused,
	ArchetypeTrendFollower,
	ArchetypePracticalShopper,
	ArchetypeImpulseBuyer,
}

// Dimensions holds the five behavioral dimension scores, each in [0,1].
type Dimensions struct {
	PriceSensitivity    float64 `json:"price_sensitivity"`
	ExplorationTendency float64 `json:"exploration_tendency"`
	SentimentTendency   float64 `json:"sentiment_tendency"`
	PurchaseFrequency   float64 `json:"purchase_frequency"`
	DecisionSpeed       float64 `json:"decision_speed"`
}

// PersonalityProfile is a whole-replacement snapshot of a user's behavioral
// classification. Never patched field by field; always recomputed from history.
type PersonalityProfile struct {
	UserID     int64      `json:"user_id"`
	Type       Archetype  `json:"type"`
	Dimensions Dimensions `json:"dimensions"`
	Confidence float64    `json:"confidence"`
	DataPoints int        `json:"data_points"`
	ComputedAt time.Time  `json:"computed_at"`
}

// PurchaseStats aggregates a user's completed-order history.
type PurchaseStats struct {
	TotalOrders      int        `json:"total_orders"`
	AvgItemPrice     float64    `json:"avg_item_price"`
	UniqueCategories int        `json:"unique_categories"`
	FirstPurchase    *time.Time `json:"first_purchase,omitempty"`
	LastPurchase     *time.Time `json:"last_purchase,omitempty"`
}

// PlatformStats carries catalog-wide aggregates used as scoring baselines.
type PlatformStats struct {
	AvgItemPrice float64 `json:"avg_item_price"`
	MaxItemPrice float64 `json:"max_item_price"`
}

// RecommendedItem is one ranked entry in a recommendation result.
type RecommendedItem struct {
	ProductID    int64   `json:"product_id"`
	Name         string  `json:"name,omitempty"`
	Score        float64 `json:"score"`
	Reason       string  `json:"reason"`
	CategoryID   int64   `json:"category_id,omitempty"`
	CategoryName string  `json:"category_name,omitempty"`
	Price        float64 `json:"price,omitempty"`
}

// Recommendation strategies.
const (
	StrategyHybrid  = "hybrid"
	StrategyPopular = "popular"
)

// RecommendationResult is the ranked output for one request. Not persisted;
// consumed immediately by the caller.
type RecommendationResult struct {
	UserID        int64             `json:"user_id"`
	Items         []RecommendedItem `json:"items"`
	Alpha         float64           `json:"alpha_used"`
	AlphaAdaptive bool              `json:"alpha_adaptive"`
	Strategy      string            `json:"strategy"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

// FeedbackAction classifies explicit user feedback on a recommendation.
type FeedbackAction string

const (
	FeedbackClicked       FeedbackAction = "clicked"
	FeedbackViewed        FeedbackAction = "viewed"
	FeedbackPurchased     FeedbackAction = "purchased"
	FeedbackDismissed     FeedbackAction = "dismissed"
	FeedbackNotInterested FeedbackAction = "not_interested"
	FeedbackAlreadyOwn    FeedbackAction = "already_own"
)

// Excludes reports whether the action places the product on the user's
// negative-feedback set.
func (a FeedbackAction) Excludes() bool {
	return a == FeedbackNotInterested || a == FeedbackAlreadyOwn
}

// ProductActivity carries per-product counters for the trending windows.
type ProductActivity struct {
	ProductID         int64   `json:"product_id"`
	Name              string  `json:"name"`
	CategoryID        int64   `json:"category_id"`
	CategoryName      string  `json:"category_name,omitempty"`
	Price             float64 `json:"price"`
	InStock           bool    `json:"in_stock"`
	RecentOrders      int     `json:"recent_orders"`
	RecentViews       int     `json:"recent_views"`
	RecentWishlists   int     `json:"recent_wishlists"`
	BaselineOrders    int     `json:"baseline_orders"`
	BaselineViews     int     `json:"baseline_views"`
	BaselineWishlists int     `json:"baseline_wishlists"`
}

// TrendingProduct is one ranked trending entry.
type TrendingProduct struct {
	ProductID    int64   `json:"product_id"`
	Name         string  `json:"name"`
	CategoryID   int64   `json:"category_id"`
	CategoryName string  `json:"category_name,omitempty"`
	Price        float64 `json:"price"`
	InStock      bool    `json:"in_stock"`
	Score        float64 `json:"trending_score"`
	GrowthRate   float64 `json:"growth_rate"`
	RecentOrders int     `json:"recent_orders"`
	RecentViews  int     `json:"recent_views"`
}

// EvaluationMetrics holds precision/recall/F1 at one cutoff K.
type EvaluationMetrics struct {
	K         int     `json:"k"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// EvaluationReport aggregates temporal-holdout metrics across evaluated users
// for one blend coefficient. Produced fresh per run; not persisted.
type EvaluationReport struct {
	Alpha          float64                   `json:"alpha"`
	UsersEvaluated int                       `json:"users_evaluated"`
	Metrics        map[int]EvaluationMetrics `json:"metrics"`
	HoldoutSize    int                       `json:"holdout_size"`
	MinPurchases   int                       `json:"min_purchases_required"`
}

// Clamp01 bounds v to [0,1]. Every dimension and blended score passes through
// this before leaving a scoring function.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
