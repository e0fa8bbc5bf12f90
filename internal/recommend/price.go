package recommend

import (
	"sort"
)

// pricePreference derives the user's comfortable price band from purchase
// history: the 25th-75th percentile of paid prices with a 20% buffer on each
// side, blended with filter-derived price bounds when those exist. Returns
// ok=false with fewer than 3 priced purchases; no preference then applies.
func (e *Engine) pricePreference(in Inputs) (minPrice, maxPrice float64, ok bool) {
	var prices []float64
	for _, o := range in.Orders {
		if o.Price > 0 {
			prices = append(prices, o.Price)
		}
	}
	if len(prices) < 3 {
		return 0, 0, false
	}

	p25 := percentile(prices, 25)
	p75 := percentile(prices, 75)
	minPrice = p25 * 0.8
	maxPrice = p75 * 1.2

	filterMin, filterMax := e.filters.PriceRange(in.Interactions)
	minPrice, maxPrice = e.filters.BlendPriceRange(minPrice, maxPrice, filterMin, filterMax)
	return minPrice, maxPrice, true
}

// scorePrice returns the additive adjustment for a product price against the
// preferred band: a boost inside it, a penalty far outside it (under half the
// minimum or over double the maximum), zero in between.
func (e *Engine) scorePrice(price, preferredMin, preferredMax float64) float64 {
	switch {
	case price >= preferredMin && price <= preferredMax:
		return e.cfg.PricePreferenceBoost
	case price < preferredMin*0.5 || price > preferredMax*2:
		return -e.cfg.PricePreferencePenalty
	default:
		return 0
	}
}

// percentile computes the p-th percentile with linear interpolation between
// closest ranks.
func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lower := int(pos)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
