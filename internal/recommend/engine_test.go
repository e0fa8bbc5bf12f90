package recommend

import (
	"math"
	"testing"
	"time"

	"github.com/hyperengineering/affinity/internal/types"
)

func newTestEngine() *Engine {
	return New(testRecommendConfig(), testFilterConfig())
}

func product(id, categoryID int64, price float64) types.Product {
	return types.Product{
		ID:         id,
		Name:       "product",
		CategoryID: categoryID,
		Price:      price,
		Rating:     4.0,
		InStock:    true,
	}
}

func TestRecommend_ColdStartFallsBackToPopular(t *testing.T) {
	e := newTestEngine()
	now := time.Now()

	popular := []types.Product{
		product(1, 10, 20),
		product(2, 11, 30),
		product(3, 12, 40),
	}

	result := e.Recommend(Inputs{
		UserID:  7,
		Popular: popular,
		Catalog: popular,
		Now:     now,
	}, Options{Limit: 10})

	if result.Strategy != types.StrategyPopular {
		t.Fatalf("strategy = %s, want popular", result.Strategy)
	}
	if len(result.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(result.Items))
	}
	// Scores decrease by rank: 1.0, 0.95, 0.90.
	wantScores := []float64{1.0, 0.95, 0.90}
	for i, item := range result.Items {
		if math.Abs(item.Score-wantScores[i]) > 1e-9 {
			t.Errorf("item %d score = %v, want %v", i, item.Score, wantScores[i])
		}
		if item.Reason != ReasonPopular {
			t.Errorf("item %d reason = %q", i, item.Reason)
		}
	}
}

func TestRecommend_PopularFallbackExcludesNegativeFeedback(t *testing.T) {
	e := newTestEngine()

	popular := []types.Product{product(1, 10, 20), product(2, 11, 30)}

	result := e.Recommend(Inputs{
		Popular:     popular,
		Catalog:     popular,
		NegativeIDs: []int64{1},
		Now:         time.Now(),
	}, Options{Limit: 10})

	if len(result.Items) != 1 || result.Items[0].ProductID != 2 {
		t.Fatalf("items = %+v, want only product 2", result.Items)
	}
	// The replacement moves up to full rank-1 score.
	if result.Items[0].Score != 1.0 {
		t.Fatalf("score = %v, want 1.0", result.Items[0].Score)
	}
}

func TestRecommend_NoProfileIsPureBehavioral(t *testing.T) {
	e := newTestEngine()

	catalog := []types.Product{product(1, 10, 20), product(2, 10, 25)}
	result := e.Recommend(Inputs{
		Collaborative: map[int64]float64{2: 0.8},
		Catalog:       catalog,
		Now:           time.Now(),
	}, Options{Limit: 10})

	if result.Alpha != 0 {
		t.Fatalf("alpha = %v, want 0 without a profile", result.Alpha)
	}
	if !result.AlphaAdaptive {
		t.Fatal("alpha should be marked adaptive")
	}
	if result.Strategy != types.StrategyHybrid {
		t.Fatalf("strategy = %s, want hybrid", result.Strategy)
	}
}

func TestRecommend_ExplicitAlphaOverridesAdaptive(t *testing.T) {
	e := newTestEngine()

	alpha := 1.7 // out of range on purpose
	result := e.Recommend(Inputs{
		Collaborative: map[int64]float64{2: 0.8},
		Catalog:       []types.Product{product(2, 10, 25)},
		Now:           time.Now(),
	}, Options{Limit: 10, Alpha: &alpha})

	if result.Alpha != 1.0 {
		t.Fatalf("alpha = %v, want clamped to 1.0", result.Alpha)
	}
	if result.AlphaAdaptive {
		t.Fatal("explicit alpha must not be marked adaptive")
	}
}

func TestRecommend_NeverRecommendsPurchasedOrExcluded(t *testing.T) {
	e := newTestEngine()
	now := time.Now()

	catalog := []types.Product{
		product(1, 10, 20),
		product(2, 10, 25),
		product(3, 11, 30),
	}

	result := e.Recommend(Inputs{
		Orders: []types.OrderLine{
			{ProductID: 1, CategoryID: 10, Price: 20, OrderedAt: now.AddDate(0, 0, -5)},
		},
		Collaborative: map[int64]float64{1: 0.9, 2: 0.8, 3: 0.7},
		Catalog:       catalog,
		NegativeIDs:   []int64{3},
		Now:           now,
	}, Options{Limit: 10})

	for _, item := range result.Items {
		if item.ProductID == 1 {
			t.Fatal("purchased product recommended")
		}
		if item.ProductID == 3 {
			t.Fatal("excluded product recommended")
		}
	}
}

func TestRecommend_WishlistBoostDecays(t *testing.T) {
	e := newTestEngine()
	now := time.Now()

	catalog := []types.Product{product(5, 10, 20), product(6, 11, 25)}

	result := e.Recommend(Inputs{
		Wishlist: []types.WishlistItem{
			{ProductID: 5, CategoryID: 10, AddedAt: now},
			// One half-life old: half the boost.
			{ProductID: 6, CategoryID: 11, AddedAt: now.AddDate(0, 0, -14)},
		},
		Catalog: catalog,
		Now:     now,
	}, Options{Limit: 10})

	scores := map[int64]float64{}
	reasons := map[int64]string{}
	for _, item := range result.Items {
		scores[item.ProductID] = item.Score
		reasons[item.ProductID] = item.Reason
	}

	if scores[5] <= scores[6] {
		t.Fatalf("fresh wishlist item should outrank stale one: %v vs %v", scores[5], scores[6])
	}
	// Wishlist-only candidates still carry boosts from their own category
	// being the user's top category; the reason should lead with category or
	// wishlist, never the default.
	for id, r := range reasons {
		if r == ReasonDefault {
			t.Errorf("product %d got default reason", id)
		}
	}
}

func TestRecommend_NegativeReviewSinksProduct(t *testing.T) {
	e := newTestEngine()
	now := time.Now()

	catalog := []types.Product{product(1, 10, 20), product(2, 10, 25)}

	base := e.Recommend(Inputs{
		Collaborative: map[int64]float64{1: 0.5, 2: 0.5},
		Catalog:       catalog,
		Now:           now,
	}, Options{Limit: 10})

	withReview := e.Recommend(Inputs{
		Collaborative: map[int64]float64{1: 0.5, 2: 0.5},
		Reviews:       []types.Review{{ProductID: 1, Rating: 1}},
		Catalog:       catalog,
		Now:           now,
	}, Options{Limit: 10})

	scoreOf := func(items []types.RecommendedItem, id int64) float64 {
		for _, it := range items {
			if it.ProductID == id {
				return it.Score
			}
		}
		return -1
	}

	if scoreOf(withReview.Items, 1) >= scoreOf(base.Items, 1) {
		t.Fatal("negative review did not lower the score")
	}
	if scoreOf(withReview.Items, 2) != scoreOf(base.Items, 2) {
		t.Fatal("unrelated product moved")
	}
}

func TestRecommend_PricePreference(t *testing.T) {
	e := newTestEngine()
	now := time.Now()

	// Purchases at 40-80 give a preferred band around [33.6, 84].
	orders := []types.OrderLine{
		{ProductID: 101, CategoryID: 1, Price: 40, OrderedAt: now.AddDate(0, 0, -10)},
		{ProductID: 102, CategoryID: 1, Price: 60, OrderedAt: now.AddDate(0, 0, -8)},
		{ProductID: 103, CategoryID: 1, Price: 80, OrderedAt: now.AddDate(0, 0, -6)},
	}

	catalog := []types.Product{
		product(1, 2, 50),  // inside the band
		product(2, 2, 200), // beyond double the max
	}

	result := e.Recommend(Inputs{
		Orders:        orders,
		Collaborative: map[int64]float64{1: 0.5, 2: 0.5},
		Catalog:       catalog,
		Now:           now,
	}, Options{Limit: 10})

	var inBand, outOfBand float64
	for _, item := range result.Items {
		switch item.ProductID {
		case 1:
			inBand = item.Score
		case 2:
			outOfBand = item.Score
		}
	}

	// Identical collaborative scores, so the gap is boost plus penalty.
	gap := inBand - outOfBand
	want := e.cfg.PricePreferenceBoost + e.cfg.PricePreferencePenalty
	if math.Abs(gap-want) > 1e-9 {
		t.Fatalf("price gap = %v, want %v", gap, want)
	}
}

func TestScorePrice(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name  string
		price float64
		want  float64
	}{
		{"inside band", 60, 0.15},
		{"slightly above", 100, 0},
		{"far above", 200, -0.10},
		{"slightly below", 25, 0},
		{"far below", 15, -0.10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := e.scorePrice(tc.price, 40, 80); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("scorePrice(%v) = %v, want %v", tc.price, got, tc.want)
			}
		})
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{40, 60, 80}
	if got := percentile(values, 25); math.Abs(got-50) > 1e-9 {
		t.Fatalf("p25 = %v, want 50", got)
	}
	if got := percentile(values, 75); math.Abs(got-70) > 1e-9 {
		t.Fatalf("p75 = %v, want 70", got)
	}
	if got := percentile([]float64{42}, 50); got != 42 {
		t.Fatalf("single value percentile = %v", got)
	}
}

func TestPersonalityBoost(t *testing.T) {
	saleCheap := types.Product{ID: 1, Price: 15, OnSale: true}
	newPremium := types.Product{ID: 2, Price: 120, IsNew: true, Rating: 4.8}
	plain := types.Product{ID: 3, Price: 45, Rating: 3.0}

	products := []types.Product{saleCheap, newPremium, plain}

	tests := []struct {
		archetype types.Archetype
		productID int64
		want      float64
	}{
		// 0.5 + 0.4 (sale) + 0.2 (cheap) caps at 1.0.
		{types.ArchetypeBargainHunter, 1, 1.0},
		{types.ArchetypeBargainHunter, 2, 0.5},
		// 0.5 + 0.3 (new) + 0.2 (premium price).
		{types.ArchetypeAdventurousPremium, 2, 1.0},
		{types.ArchetypeAdventurousPremium, 3, 0.5},
		// 0.5 + 0.4 (rating>=4.5) + 0.1 (price>40).
		{types.ArchetypeQualityFocused, 2, 1.0},
		{types.ArchetypeQualityFocused, 3, 0.5},
		{types.ArchetypePracticalShopper, 3, 0.5},
	}

	for _, tc := range tests {
		scores := personalityBoost(tc.archetype, products)
		if got := scores[tc.productID]; math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s boost for product %d = %v, want %v", tc.archetype, tc.productID, got, tc.want)
		}
	}
}

func TestPersonalityBoost_RuleBoundaries(t *testing.T) {
	for _, a := range types.Archetypes {
		if len(archetypeRules[a]) == 0 {
			t.Fatalf("no preference rules for %s", a)
		}
	}

	tests := []struct {
		name      string
		archetype types.Archetype
		product   types.Product
		want      float64
	}{
		{"trendy needs popularity over 100", types.ArchetypeTrendFollower, types.Product{ID: 1, Popularity: 100}, 0.5},
		{"trendy popularity 101", types.ArchetypeTrendFollower, types.Product{ID: 1, Popularity: 101}, 0.8},
		{"loyal rating at threshold", types.ArchetypeLoyalEnthusiast, types.Product{ID: 1, Rating: 4.0}, 0.7},
		{"practical needs both rating and price", types.ArchetypePracticalShopper, types.Product{ID: 1, Rating: 3.5, Price: 50}, 0.5},
		{"practical inside both bounds", types.ArchetypePracticalShopper, types.Product{ID: 1, Rating: 3.5, Price: 49.99}, 0.8},
		{"impulse image only", types.ArchetypeImpulseBuyer, types.Product{ID: 1, ImageURL: "https://img.example/1.jpg"}, 0.6},
		{"impulse all three caps", types.ArchetypeImpulseBuyer, types.Product{ID: 1, IsNew: true, OnSale: true, ImageURL: "https://img.example/1.jpg"}, 1.0},
		{"cautious rating plus sale", types.ArchetypeCautiousValueSeeker, types.Product{ID: 1, Rating: 4.0, OnSale: true}, 1.0},
		{"quality price at threshold", types.ArchetypeQualityFocused, types.Product{ID: 1, Rating: 4.5, Price: 40}, 0.9},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			scores := personalityBoost(tc.archetype, []types.Product{tc.product})
			if got := scores[tc.product.ID]; math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("boost = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestApplyDiversity_CategoryCap(t *testing.T) {
	e := newTestEngine()

	// Six products in one category, ranked ahead of two in another.
	var ranked []rankedCandidate
	for i := int64(1); i <= 6; i++ {
		p := product(i, 10, 20)
		ranked = append(ranked, rankedCandidate{id: i, c: &candidate{score: 1.0 - float64(i)*0.05, product: &p}})
	}
	for i := int64(7); i <= 8; i++ {
		p := product(i, 11, 20)
		ranked = append(ranked, rankedCandidate{id: i, c: &candidate{score: 0.5 - float64(i)*0.01, product: &p}})
	}

	items := e.applyDiversity(ranked, 10)

	counts := map[int64]int{}
	for _, it := range items {
		counts[it.CategoryID]++
	}
	if counts[10] > 3 {
		t.Fatalf("category 10 has %d items, cap is 3", counts[10])
	}
	if counts[11] != 2 {
		t.Fatalf("category 11 has %d items, want 2", counts[11])
	}
}

func TestApplyDiversity_SecondPassWidensCategories(t *testing.T) {
	e := newTestEngine()
	e.cfg.DiversityMaxPerCategory = 1
	e.cfg.DiversityMinCategories = 2

	pa1 := product(1, 10, 20)
	pa2 := product(2, 10, 20)
	pb := product(3, 11, 20)

	ranked := []rankedCandidate{
		{id: 1, c: &candidate{score: 0.9, product: &pa1}},
		{id: 2, c: &candidate{score: 0.8, product: &pa2}},
		{id: 3, c: &candidate{score: 0.7, product: &pb}},
	}

	items := e.applyDiversity(ranked, 2)

	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].ProductID != 1 || items[1].ProductID != 3 {
		t.Fatalf("got %d then %d, want 1 then 3 for category spread", items[0].ProductID, items[1].ProductID)
	}
}

func TestRecommend_DeterministicOrder(t *testing.T) {
	e := newTestEngine()
	now := time.Now()

	catalog := []types.Product{product(1, 10, 20), product(2, 11, 20), product(3, 12, 20)}
	in := Inputs{
		Collaborative: map[int64]float64{1: 0.5, 2: 0.5, 3: 0.5},
		Catalog:       catalog,
		Now:           now,
	}

	first := e.Recommend(in, Options{Limit: 10})
	for range 10 {
		again := e.Recommend(in, Options{Limit: 10})
		for i := range first.Items {
			if again.Items[i].ProductID != first.Items[i].ProductID {
				t.Fatal("ranking changed between identical runs")
			}
		}
	}
}
