package recommend

import (
	"sort"
	"time"
)

// Signal-family weights for category affinity. Purchases speak loudest,
// wishlist intent next, views least. Filter selections sit between views and
// wishlist because they show intent without commitment.
const (
	affinityWeightPurchase = 3.0
	affinityWeightWishlist = 2.0
	affinityWeightView     = 1.0
)

// categoryAffinity scores how attached a user is to each category, in [0,1]
// relative to their strongest category. Every contribution is time-decayed at
// its signal family's half-life. Filter-derived affinity (already normalized)
// is folded in at the configured filter weight.
func (e *Engine) categoryAffinity(in Inputs, viewCategories map[int64][]time.Time) map[int64]float64 {
	scores := make(map[int64]float64)
	var total float64

	for _, o := range in.Orders {
		if o.CategoryID == 0 {
			continue
		}
		decay := Decay(DaysSince(in.Now, o.OrderedAt), e.cfg.DecayHalfLifePurchases)
		w := affinityWeightPurchase * decay
		scores[o.CategoryID] += w
		total += w
	}

	for _, w := range in.Wishlist {
		if w.CategoryID == 0 {
			continue
		}
		decay := Decay(DaysSince(in.Now, w.AddedAt), e.cfg.DecayHalfLifeWishlist)
		weight := affinityWeightWishlist * decay
		scores[w.CategoryID] += weight
		total += weight
	}

	for catID, viewTimes := range viewCategories {
		if catID == 0 {
			continue
		}
		for _, at := range viewTimes {
			decay := Decay(DaysSince(in.Now, at), e.cfg.DecayHalfLifeViews)
			w := affinityWeightView * decay
			scores[catID] += w
			total += w
		}
	}

	filterWeight := e.filterCfg.CategoryAffinityWeight
	for catID, affinity := range e.filters.CategoryAffinity(in.Interactions) {
		w := filterWeight * affinity
		scores[catID] += w
		total += w
	}

	if total == 0 || len(scores) == 0 {
		return map[int64]float64{}
	}

	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	normalized := make(map[int64]float64, len(scores))
	for catID, s := range scores {
		normalized[catID] = s / maxScore
	}
	return normalized
}

// topCategories returns up to n category IDs ordered by descending affinity,
// ties broken by category ID for deterministic output.
func topCategories(affinity map[int64]float64, n int) []int64 {
	ids := make([]int64, 0, len(affinity))
	for catID := range affinity {
		ids = append(ids, catID)
	}
	sortByScoreDesc(ids, func(id int64) float64 { return affinity[id] })
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// sortByScoreDesc orders ids by score descending, breaking ties on the
// smaller ID so map iteration order never leaks into results.
func sortByScoreDesc(ids []int64, score func(int64) float64) {
	sort.Slice(ids, func(i, j int) bool {
		si, sj := score(ids[i]), score(ids[j])
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})
}
