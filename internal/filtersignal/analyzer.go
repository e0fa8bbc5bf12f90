// Package filtersignal extracts price and category intent signals from
// interactions that carried catalog filter context. Filter usage shows what a
// user was looking for, which supplements what they actually bought.
package filtersignal

import (
	"github.com/hyperengineering/affinity/internal/config"
	"github.com/hyperengineering/affinity/internal/types"
)

// defaultPlatformMaxPrice is the normalization ceiling used when catalog-wide
// price statistics are unavailable.
const defaultPlatformMaxPrice = 500.0

// Sample pairs an interaction with its validated filter context.
type Sample struct {
	Interaction types.Interaction
	Filter      types.FilterContext
}

// Analyzer derives signals from filter-bearing interactions. Its output is
// only trustworthy once the sample count reaches MinSamples; below that,
// callers must fall back to purchase-only signals.
type Analyzer struct {
	minSamples        int
	signalWeight      float64
	categoryMaxWeight int
}

// New creates an Analyzer from filter configuration.
func New(cfg config.FilterConfig) *Analyzer {
	return &Analyzer{
		minSamples:        cfg.MinSamples,
		signalWeight:      cfg.SignalWeight,
		categoryMaxWeight: cfg.CategoryMaxWeight,
	}
}

// MinSamples returns the sample count required before output is trusted.
func (a *Analyzer) MinSamples() int { return a.minSamples }

// Extract returns the interactions whose filter context exists and is inside
// its validity window. Stale contexts are treated as absent, not as errors.
func (a *Analyzer) Extract(interactions []types.Interaction) []Sample {
	var samples []Sample
	for _, in := range interactions {
		if in.Filter.Valid(in.OccurredAt) {
			samples = append(samples, Sample{Interaction: in, Filter: *in.Filter})
		}
	}
	return samples
}

// PriceSensitivity estimates how price conscious a user is from their filter
// usage. Returns ok=false when fewer than MinSamples qualifying interactions
// exist; the estimate must then be ignored.
//
// A narrow explicit price range reads as high sensitivity. Setting only a max
// price also signals sensitivity (capped at 0.8). Setting only a min price is
// quality seeking, not price aversion, and scores a fixed 0.3.
func (a *Analyzer) PriceSensitivity(interactions []types.Interaction, platformMax float64) (float64, bool) {
	samples := a.Extract(interactions)
	if len(samples) < a.minSamples {
		return 0, false
	}
	if platformMax <= 0 {
		platformMax = defaultPlatformMaxPrice
	}

	var signals []float64
	for _, s := range samples {
		minP, maxP := s.Filter.MinPrice, s.Filter.MaxPrice
		switch {
		case minP != nil && maxP != nil:
			width := *maxP - *minP
			normalized := width / platformMax
			if normalized > 1 {
				normalized = 1
			}
			signals = append(signals, 1-normalized)
		case maxP != nil:
			sensitivity := 1 - min(*maxP/platformMax, 1)
			signals = append(signals, min(0.8, sensitivity+0.2))
		case minP != nil:
			signals = append(signals, 0.3)
		}
	}

	if len(signals) == 0 {
		return 0, false
	}

	var sum float64
	for _, s := range signals {
		sum += s
	}
	return types.Clamp01(sum / float64(len(signals))), true
}

// CategoryCounts returns per-category filter usage counts, capped at
// CategoryMaxWeight per category so repeated filtering cannot dominate.
func (a *Analyzer) CategoryCounts(interactions []types.Interaction) map[int64]int {
	counts := make(map[int64]int)
	for _, s := range a.Extract(interactions) {
		if s.Filter.CategoryID == 0 {
			continue
		}
		if counts[s.Filter.CategoryID] < a.categoryMaxWeight {
			counts[s.Filter.CategoryID]++
		}
	}
	return counts
}

// CategoryAffinity normalizes capped category usage counts into [0,1] scores.
// An empty map means no usable filter signal.
func (a *Analyzer) CategoryAffinity(interactions []types.Interaction) map[int64]float64 {
	counts := a.CategoryCounts(interactions)
	if len(counts) == 0 {
		return nil
	}

	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}

	affinity := make(map[int64]float64, len(counts))
	for catID, c := range counts {
		affinity[catID] = float64(c) / float64(maxCount)
	}
	return affinity
}

// PriceRange returns the average filtered min and max prices, or nils when
// below the sample threshold or when no price filters were used.
func (a *Analyzer) PriceRange(interactions []types.Interaction) (minPrice, maxPrice *float64) {
	samples := a.Extract(interactions)
	if len(samples) < a.minSamples {
		return nil, nil
	}

	var mins, maxes []float64
	for _, s := range samples {
		if s.Filter.MinPrice != nil {
			mins = append(mins, *s.Filter.MinPrice)
		}
		if s.Filter.MaxPrice != nil {
			maxes = append(maxes, *s.Filter.MaxPrice)
		}
	}

	if len(mins) > 0 {
		avg := mean(mins)
		minPrice = &avg
	}
	if len(maxes) > 0 {
		avg := mean(maxes)
		maxPrice = &avg
	}
	return minPrice, maxPrice
}

// BlendPriceRange mixes a purchase-derived price range with a filter-derived
// one at the configured signal weight (filter side). Nil filter bounds leave
// the corresponding purchase bound untouched.
func (a *Analyzer) BlendPriceRange(purchaseMin, purchaseMax float64, filterMin, filterMax *float64) (float64, float64) {
	if filterMin == nil && filterMax == nil {
		return purchaseMin, purchaseMax
	}

	purchaseWeight := 1 - a.signalWeight
	blendedMin, blendedMax := purchaseMin, purchaseMax
	if filterMin != nil {
		blendedMin = purchaseWeight*purchaseMin + a.signalWeight**filterMin
	}
	if filterMax != nil {
		blendedMax = purchaseWeight*purchaseMax + a.signalWeight**filterMax
	}
	return blendedMin, blendedMax
}

// BlendSensitivity mixes purchase-derived price sensitivity with the filter
// signal at the configured weight, clamped to [0,1].
func (a *Analyzer) BlendSensitivity(purchaseSensitivity, filterSensitivity float64) float64 {
	blended := (1-a.signalWeight)*purchaseSensitivity + a.signalWeight*filterSensitivity
	return types.Clamp01(blended)
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
