package recommend

import "github.com/hyperengineering/affinity/internal/types"

// baseBoost is the neutral starting score every product earns before an
// archetype's preference rules apply.
const baseBoost = 0.5

// preferenceRule awards boost when a product satisfies every bound that is
// set. Zero-valued bounds are inactive, so each rule reads as the single
// preference it encodes.
type preferenceRule struct {
	requireNew   bool
	requireSale  bool
	requireImage bool
	minRating    float64 // rating >= minRating
	priceOver    float64 // price > priceOver
	priceUnder   float64 // price < priceUnder
	popularOver  int     // popularity > popularOver
	boost        float64
}

func (r preferenceRule) matches(p types.Product) bool {
	if r.requireNew && !p.IsNew {
		return false
	}
	if r.requireSale && !p.OnSale {
		return false
	}
	if r.requireImage && p.ImageURL == "" {
		return false
	}
	if r.minRating > 0 && p.Rating < r.minRating {
		return false
	}
	if r.priceOver > 0 && p.Price <= r.priceOver {
		return false
	}
	if r.priceUnder > 0 && p.Price >= r.priceUnder {
		return false
	}
	if r.popularOver > 0 && p.Popularity <= r.popularOver {
		return false
	}
	return true
}

// archetypeRules maps each archetype to its preference table over price
// tier, novelty, sale status, rating, and popularity. These are intent
// heuristics, not learned weights; they give the personality side of the
// blend something to say about products the user has never touched.
var archetypeRules = map[types.Archetype][]preferenceRule{
	types.ArchetypeAdventurousPremium: {
		{requireNew: true, boost: 0.3},
		{priceOver: 50, boost: 0.2},
	},
	types.ArchetypeCautiousValueSeeker: {
		{minRating: 4.0, boost: 0.3},
		{requireSale: true, boost: 0.2},
	},
	types.ArchetypeBargainHunter: {
		{requireSale: true, boost: 0.4},
		{priceUnder: 30, boost: 0.2},
	},
	types.ArchetypeQualityFocused: {
		{minRating: 4.5, boost: 0.4},
		{priceOver: 40, boost: 0.1},
	},
	types.ArchetypeTrendFollower: {
		{popularOver: 100, boost: 0.3},
		{requireNew: true, boost: 0.2},
	},
	types.ArchetypeImpulseBuyer: {
		{requireNew: true, boost: 0.2},
		{requireSale: true, boost: 0.2},
		{requireImage: true, boost: 0.1},
	},
	types.ArchetypeLoyalEnthusiast: {
		{minRating: 4.0, boost: 0.2},
	},
	types.ArchetypePracticalShopper: {
		{minRating: 3.5, priceUnder: 50, boost: 0.3},
	},
}

// personalityBoost scores every catalog product for an archetype by
// evaluating its rule table, starting from baseBoost and capped at 1.0.
func personalityBoost(archetype types.Archetype, products []types.Product) map[int64]float64 {
	rules := archetypeRules[archetype]
	scores := make(map[int64]float64, len(products))

	for _, p := range products {
		if p.ID == 0 {
			continue
		}
		score := baseBoost
		for _, r := range rules {
			if r.matches(p) {
				score += r.boost
			}
		}
		if score > 1.0 {
			score = 1.0
		}
		scores[p.ID] = score
	}

	return scores
}
