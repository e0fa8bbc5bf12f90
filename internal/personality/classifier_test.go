package personality

import (
	"math"
	"testing"
	"time"

	"github.com/hyperengineering/affinity/internal/config"
	"github.com/hyperengineering/affinity/internal/filtersignal"
	"github.com/hyperengineering/affinity/internal/types"
)

func newTestClassifier() *Classifier {
	return NewClassifier(filtersignal.New(config.FilterConfig{
		SignalWeight:      0.3,
		MinSamples:        3,
		CategoryMaxWeight: 5,
	}))
}

func tptr(t time.Time) *time.Time { return &t }

func TestClassify_ColdStart(t *testing.T) {
	c := newTestClassifier()

	archetype, confidence := c.Classify(types.Dimensions{
		PriceSensitivity:    1.0,
		ExplorationTendency: 0.7,
		SentimentTendency:   0.5,
		PurchaseFrequency:   0.5,
		DecisionSpeed:       0.9,
	}, 4)

	if archetype != types.ArchetypePracticalShopper {
		t.Fatalf("cold-start archetype = %s, want practical_shopper", archetype)
	}
	if confidence != 0.3 {
		t.Fatalf("cold-start confidence = %v, want 0.3", confidence)
	}
}

func TestClassify_ExactIdealVector(t *testing.T) {
	c := newTestClassifier()

	// A user sitting exactly on an ideal vector classifies as that archetype
	// with full confidence.
	for _, archetype := range types.Archetypes {
		got, confidence := c.Classify(idealVectors[archetype], 50)
		if got != archetype {
			t.Errorf("Classify(ideal %s) = %s", archetype, got)
		}
		if math.Abs(confidence-1.0) > 1e-9 {
			t.Errorf("Classify(ideal %s) confidence = %v, want 1.0", archetype, confidence)
		}
	}
}

func TestClassify_NearestArchetypeWins(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name string
		dims types.Dimensions
		want types.Archetype
	}{
		{
			name: "deal seeker near bargain hunter",
			dims: types.Dimensions{
				PriceSensitivity:    0.95,
				ExplorationTendency: 0.65,
				SentimentTendency:   0.5,
				PurchaseFrequency:   0.55,
				DecisionSpeed:       0.85,
			},
			want: types.ArchetypeBargainHunter,
		},
		{
			name: "slow researcher near quality focused",
			dims: types.Dimensions{
				PriceSensitivity:    0.35,
				ExplorationTendency: 0.5,
				SentimentTendency:   0.55,
				PurchaseFrequency:   0.4,
				DecisionSpeed:       0.25,
			},
			want: types.ArchetypeQualityFocused,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, confidence := c.Classify(tc.dims, 20)
			if got != tc.want {
				t.Fatalf("Classify = %s, want %s", got, tc.want)
			}
			if confidence <= 0.8 {
				t.Fatalf("confidence = %v, want > 0.8 for a near match", confidence)
			}
		})
	}
}

func TestPriceSensitivity_FromPurchases(t *testing.T) {
	now := time.Now()
	orders := []types.OrderLine{
		{ProductID: 1, Price: 20, OrderedAt: now},
		{ProductID: 2, Price: 25, OrderedAt: now},
		{ProductID: 3, Price: 30, OrderedAt: now},
		{ProductID: 4, Price: 100, OrderedAt: now},
	}
	stats := types.PurchaseStats{TotalOrders: 4, AvgItemPrice: 43.75}
	platform := types.PlatformStats{AvgItemPrice: 50, MaxItemPrice: 500}

	// Base 1-min(43.75/100,1)=0.5625 halves against a zero discount ratio.
	got := purchasePriceSensitivity(orders, stats, platform)
	if math.Abs(got-0.28125) > 1e-9 {
		t.Fatalf("sensitivity = %v, want 0.28125", got)
	}

	// All purchases discounted pulls the score up.
	for i := range orders {
		orders[i].Discounted = true
	}
	got = purchasePriceSensitivity(orders, stats, platform)
	if math.Abs(got-0.78125) > 1e-9 {
		t.Fatalf("sensitivity with discounts = %v, want 0.78125", got)
	}
}

func TestPriceSensitivity_NoPurchasesNeutral(t *testing.T) {
	got := purchasePriceSensitivity(nil, types.PurchaseStats{}, types.PlatformStats{})
	if got != 0.5 {
		t.Fatalf("sensitivity = %v, want neutral 0.5", got)
	}
}

func TestExplorationTendency(t *testing.T) {
	orders := []types.OrderLine{
		{ProductID: 1}, {ProductID: 2}, {ProductID: 2}, {ProductID: 3},
	}
	stats := types.PurchaseStats{UniqueCategories: 5}

	// diversity 0.5, novelty 3/4.
	got := explorationTendency(orders, stats)
	if math.Abs(got-0.625) > 1e-9 {
		t.Fatalf("exploration = %v, want 0.625", got)
	}

	if got := explorationTendency(nil, types.PurchaseStats{}); got != 0.5 {
		t.Fatalf("exploration with no orders = %v, want 0.5", got)
	}
}

func TestSentimentTendency(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		want    float64
	}{
		{"no reviews neutral", nil, 0.5},
		{"all fives", []int{5, 5, 5}, 1.0},
		{"all ones", []int{1, 1}, 0.0},
		{"mixed", []int{3, 4}, 0.625},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var reviews []types.Review
			for _, r := range tc.ratings {
				reviews = append(reviews, types.Review{Rating: r})
			}
			got := sentimentTendency(reviews)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("sentiment = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPurchaseFrequency(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		stats types.PurchaseStats
		want  float64
	}{
		{"single order", types.PurchaseStats{TotalOrders: 1, FirstPurchase: tptr(base), LastPurchase: tptr(base)}, 0.3},
		{"weekly", types.PurchaseStats{TotalOrders: 5, FirstPurchase: tptr(base), LastPurchase: tptr(base.AddDate(0, 0, 28))}, 1.0},
		{"biweekly", types.PurchaseStats{TotalOrders: 3, FirstPurchase: tptr(base), LastPurchase: tptr(base.AddDate(0, 0, 28))}, 0.8},
		{"monthly", types.PurchaseStats{TotalOrders: 3, FirstPurchase: tptr(base), LastPurchase: tptr(base.AddDate(0, 0, 60))}, 0.6},
		{"quarterly", types.PurchaseStats{TotalOrders: 2, FirstPurchase: tptr(base), LastPurchase: tptr(base.AddDate(0, 0, 90))}, 0.2},
		{"rare", types.PurchaseStats{TotalOrders: 2, FirstPurchase: tptr(base), LastPurchase: tptr(base.AddDate(0, 0, 365))}, 0.1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := purchaseFrequency(tc.stats); got != tc.want {
				t.Fatalf("frequency = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDecisionSpeed(t *testing.T) {
	view := func(seconds int) types.Interaction {
		return types.Interaction{Type: types.InteractionView, DurationSeconds: seconds}
	}

	tests := []struct {
		name         string
		interactions []types.Interaction
		want         float64
	}{
		{"no interactions", nil, 0.5},
		{"no timed views", []types.Interaction{{Type: types.InteractionClick}}, 0.5},
		{"snap decisions", []types.Interaction{view(10), view(20)}, 1.0},
		{"around a minute", []types.Interaction{view(45), view(60)}, 0.7},
		{"deliberate", []types.Interaction{view(200), view(250)}, 0.3},
		{"very slow", []types.Interaction{view(400)}, 0.1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := decisionSpeed(tc.interactions); got != tc.want {
				t.Fatalf("decision speed = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestProfile_WholeSnapshot(t *testing.T) {
	c := newTestClassifier()
	now := time.Now()

	h := History{
		Orders: []types.OrderLine{
			{ProductID: 1, Price: 10, Discounted: true, OrderedAt: now.AddDate(0, 0, -21)},
			{ProductID: 2, Price: 15, Discounted: true, OrderedAt: now.AddDate(0, 0, -14)},
			{ProductID: 3, Price: 12, Discounted: true, OrderedAt: now.AddDate(0, 0, -7)},
		},
		Reviews: []types.Review{{Rating: 4}},
		Interactions: []types.Interaction{
			{Type: types.InteractionView, DurationSeconds: 15},
			{Type: types.InteractionView, DurationSeconds: 20},
		},
		Stats: types.PurchaseStats{
			TotalOrders:      3,
			AvgItemPrice:     12.33,
			UniqueCategories: 3,
			FirstPurchase:    tptr(now.AddDate(0, 0, -21)),
			LastPurchase:     tptr(now.AddDate(0, 0, -7)),
		},
		Platform: types.PlatformStats{AvgItemPrice: 50, MaxItemPrice: 500},
	}

	profile := c.Profile(42, h, now)
	if profile.UserID != 42 {
		t.Fatalf("UserID = %d", profile.UserID)
	}
	if profile.DataPoints != 6 {
		t.Fatalf("DataPoints = %d, want 6", profile.DataPoints)
	}
	if !profile.ComputedAt.Equal(now) {
		t.Fatalf("ComputedAt = %v, want %v", profile.ComputedAt, now)
	}
	if profile.Confidence <= 0 || profile.Confidence > 1 {
		t.Fatalf("Confidence = %v out of range", profile.Confidence)
	}
	// Cheap discounted weekly purchases with snap decisions: a bargain hunter.
	if profile.Type != types.ArchetypeBargainHunter {
		t.Fatalf("Type = %s, want bargain_hunter", profile.Type)
	}
}

func TestTraits_AllArchetypesCovered(t *testing.T) {
	for _, archetype := range types.Archetypes {
		if len(Traits(archetype)) == 0 {
			t.Errorf("no traits for %s", archetype)
		}
	}
}
