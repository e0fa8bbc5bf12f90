// Package personality classifies users into one of eight behavioral
// archetypes from their shopping history. Profiles are always whole
// recomputations; nothing here mutates an existing profile in place.
package personality

import (
	"math"
	"time"

	"github.com/hyperengineering/affinity/internal/filtersignal"
	"github.com/hyperengineering/affinity/internal/types"
)

// coldStartDataPoints is the minimum number of behavioral events required
// before classification is attempted. Below it, users get the neutral
// practical_shopper archetype at low confidence.
const coldStartDataPoints = 5

// coldStartConfidence is the fixed confidence reported for cold-start users.
const coldStartConfidence = 0.3

// fallbackPlatformAvgPrice is used when catalog-wide stats are unavailable.
const fallbackPlatformAvgPrice = 50.0

// History is everything a classification reads. All slices may be empty.
type History struct {
	Orders       []types.OrderLine
	Reviews      []types.Review
	Interactions []types.Interaction
	Stats        types.PurchaseStats
	Platform     types.PlatformStats
}

// DataPoints counts the behavioral events backing a classification.
func (h History) DataPoints() int {
	return len(h.Orders) + len(h.Reviews) + len(h.Interactions)
}

// Classifier scores the five behavioral dimensions and assigns the nearest
// archetype. It is stateless and safe for concurrent use.
type Classifier struct {
	filters *filtersignal.Analyzer
}

// NewClassifier creates a Classifier that blends filter-derived price signals
// into the purchase-derived ones.
func NewClassifier(filters *filtersignal.Analyzer) *Classifier {
	return &Classifier{filters: filters}
}

// Profile computes a complete personality profile from history. Cold-start
// users (too few events) get practical_shopper at fixed low confidence with
// neutral dimensions left as computed.
func (c *Classifier) Profile(userID int64, h History, now time.Time) types.PersonalityProfile {
	dims := c.Dimensions(h)
	archetype, confidence := c.Classify(dims, h.DataPoints())
	return types.PersonalityProfile{
		UserID:     userID,
		Type:       archetype,
		Dimensions: dims,
		Confidence: confidence,
		DataPoints: h.DataPoints(),
		ComputedAt: now,
	}
}

// Dimensions scores the five behavioral dimensions from history. Each score
// is in [0,1]; missing data yields neutral values rather than errors.
func (c *Classifier) Dimensions(h History) types.Dimensions {
	return types.Dimensions{
		PriceSensitivity:    c.priceSensitivity(h),
		ExplorationTendency: explorationTendency(h.Orders, h.Stats),
		SentimentTendency:   sentimentTendency(h.Reviews),
		PurchaseFrequency:   purchaseFrequency(h.Stats),
		DecisionSpeed:       decisionSpeed(h.Interactions),
	}
}

// Classify assigns the archetype whose ideal vector is nearest to dims under
// the weighted Euclidean distance, with confidence 1-distance. Users below
// the cold-start threshold are practical shoppers until proven otherwise.
func (c *Classifier) Classify(dims types.Dimensions, dataPoints int) (types.Archetype, float64) {
	if dataPoints < coldStartDataPoints {
		return types.ArchetypePracticalShopper, coldStartConfidence
	}

	best := types.ArchetypePracticalShopper
	bestDistance := math.Inf(1)
	for _, archetype := range types.Archetypes {
		d := distance(dims, idealVectors[archetype])
		if d < bestDistance {
			bestDistance = d
			best = archetype
		}
	}

	confidence := types.Clamp01(1 - bestDistance)
	return best, confidence
}

func distance(a, b types.Dimensions) float64 {
	sq := func(x float64) float64 { return x * x }
	sum := weightPriceSensitivity*sq(a.PriceSensitivity-b.PriceSensitivity) +
		weightExplorationTendency*sq(a.ExplorationTendency-b.ExplorationTendency) +
		weightSentimentTendency*sq(a.SentimentTendency-b.SentimentTendency) +
		weightPurchaseFrequency*sq(a.PurchaseFrequency-b.PurchaseFrequency) +
		weightDecisionSpeed*sq(a.DecisionSpeed-b.DecisionSpeed)
	return math.Sqrt(sum)
}

// priceSensitivity compares the user's average item price against the
// platform average, folds in how often they buy discounted items, then blends
// with the filter-derived signal when that signal is trusted.
func (c *Classifier) priceSensitivity(h History) float64 {
	sensitivity := purchasePriceSensitivity(h.Orders, h.Stats, h.Platform)

	if filterSignal, ok := c.filters.PriceSensitivity(h.Interactions, h.Platform.MaxItemPrice); ok {
		sensitivity = c.filters.BlendSensitivity(sensitivity, filterSignal)
	}
	return sensitivity
}

func purchasePriceSensitivity(orders []types.OrderLine, stats types.PurchaseStats, platform types.PlatformStats) float64 {
	if len(orders) == 0 || stats.AvgItemPrice <= 0 {
		return 0.5
	}

	platformAvg := platform.AvgItemPrice
	if platformAvg <= 0 {
		platformAvg = fallbackPlatformAvgPrice
	}
	sensitivity := 1 - min(stats.AvgItemPrice/(platformAvg*2), 1.0)

	discounted := 0
	for _, o := range orders {
		if o.Discounted || (o.OriginalPrice > 0 && o.Price < o.OriginalPrice) {
			discounted++
		}
	}
	discountRatio := float64(discounted) / float64(len(orders))
	sensitivity = (sensitivity + discountRatio) / 2

	return types.Clamp01(sensitivity)
}

// explorationTendency averages category diversity with product novelty
// (unique products over total purchases).
func explorationTendency(orders []types.OrderLine, stats types.PurchaseStats) float64 {
	if len(orders) == 0 {
		return 0.5
	}

	diversity := min(float64(stats.UniqueCategories)/10, 1.0)

	seen := make(map[int64]struct{}, len(orders))
	for _, o := range orders {
		seen[o.ProductID] = struct{}{}
	}
	novelty := float64(len(seen)) / float64(len(orders))

	return (diversity + novelty) / 2
}

// sentimentTendency maps the 1-5 average review rating onto [0,1].
func sentimentTendency(reviews []types.Review) float64 {
	if len(reviews) == 0 {
		return 0.5
	}
	var total int
	for _, r := range reviews {
		total += r.Rating
	}
	avg := float64(total) / float64(len(reviews))
	return (avg - 1) / 4
}

// purchaseFrequency scores the average gap between orders on a step scale.
// Weekly buyers score 1.0, quarterly-or-slower buyers 0.1.
func purchaseFrequency(stats types.PurchaseStats) float64 {
	if stats.FirstPurchase == nil || stats.LastPurchase == nil || stats.TotalOrders < 2 {
		return 0.3
	}

	totalDays := stats.LastPurchase.Sub(*stats.FirstPurchase).Hours() / 24
	if totalDays <= 0 {
		return 0.5
	}
	avgDaysBetween := totalDays / float64(stats.TotalOrders-1)

	switch {
	case avgDaysBetween <= 7:
		return 1.0
	case avgDaysBetween <= 14:
		return 0.8
	case avgDaysBetween <= 30:
		return 0.6
	case avgDaysBetween <= 60:
		return 0.4
	case avgDaysBetween <= 90:
		return 0.2
	default:
		return 0.1
	}
}

// decisionSpeed scores how long a user lingers on product views. Short views
// read as fast decisions.
func decisionSpeed(interactions []types.Interaction) float64 {
	if len(interactions) == 0 {
		return 0.5
	}

	var total, count int
	for _, in := range interactions {
		if in.Type == types.InteractionView && in.DurationSeconds > 0 {
			total += in.DurationSeconds
			count++
		}
	}
	if count == 0 {
		return 0.5
	}

	avgViewTime := float64(total) / float64(count)
	switch {
	case avgViewTime <= 30:
		return 1.0
	case avgViewTime <= 60:
		return 0.7
	case avgViewTime <= 180:
		return 0.5
	case avgViewTime <= 300:
		return 0.3
	default:
		return 0.1
	}
}
