package personality

import "github.com/hyperengineering/affinity/internal/types"

// dimensionWeights control how much each behavioral dimension contributes to
// the archetype distance. They sum to 1.0.
const (
	weightPriceSensitivity    = 0.25
	weightExplorationTendency = 0.20
	weightSentimentTendency   = 0.15
	weightPurchaseFrequency   = 0.20
	weightDecisionSpeed       = 0.20
)

// idealVectors are the reference dimension values each archetype represents.
// A user is assigned the archetype whose vector is nearest to theirs.
var idealVectors = map[types.Archetype]types.Dimensions{
	types.ArchetypeAdventurousPremium: {
		PriceSensitivity:    0.2,
		ExplorationTendency: 0.9,
		SentimentTendency:   0.7,
		PurchaseFrequency:   0.6,
		DecisionSpeed:       0.8,
	},
	types.ArchetypeCautiousValueSeeker: {
		PriceSensitivity:    0.9,
		ExplorationTendency: 0.3,
		SentimentTendency:   0.5,
		PurchaseFrequency:   0.4,
		DecisionSpeed:       0.2,
	},
	types.ArchetypeLoyalEnthusiast: {
		PriceSensitivity:    0.4,
		ExplorationTendency: 0.3,
		SentimentTendency:   0.8,
		PurchaseFrequency:   0.7,
		DecisionSpeed:       0.6,
	},
	types.ArchetypeBargainHunter: {
		PriceSensitivity:    1.0,
		ExplorationTendency: 0.7,
		SentimentTendency:   0.5,
		PurchaseFrequency:   0.5,
		DecisionSpeed:       0.9,
	},
	types.ArchetypeQualityFocused: {
		PriceSensitivity:    0.3,
		ExplorationTendency: 0.5,
		SentimentTendency:   0.6,
		PurchaseFrequency:   0.4,
		DecisionSpeed:       0.3,
	},
	types.ArchetypeTrendFollower: {
		PriceSensitivity:    0.5,
		ExplorationTendency: 0.8,
		SentimentTendency:   0.7,
		PurchaseFrequency:   0.7,
		DecisionSpeed:       0.7,
	},
	types.ArchetypePracticalShopper: {
		PriceSensitivity:    0.6,
		ExplorationTendency: 0.4,
		SentimentTendency:   0.5,
		PurchaseFrequency:   0.3,
		DecisionSpeed:       0.5,
	},
	types.ArchetypeImpulseBuyer: {
		PriceSensitivity:    0.4,
		ExplorationTendency: 0.9,
		SentimentTendency:   0.6,
		PurchaseFrequency:   0.8,
		DecisionSpeed:       1.0,
	},
}

var archetypeTraits = map[types.Archetype][]string{
	types.ArchetypeAdventurousPremium: {
		"Enjoys trying new and premium products",
		"Not deterred by higher prices for quality",
		"Quick decision maker",
		"Positive outlook on shopping experiences",
	},
	types.ArchetypeCautiousValueSeeker: {
		"Very price-conscious",
		"Prefers familiar, trusted products",
		"Takes time to research and compare",
		"Values consistency over novelty",
	},
	types.ArchetypeLoyalEnthusiast: {
		"Strong brand loyalty",
		"Highly engaged with favorite brands",
		"Frequent repeat purchases",
		"Positive reviews and recommendations",
	},
	types.ArchetypeBargainHunter: {
		"Always looking for the best deal",
		"Compares prices across platforms",
		"Acts quickly on good deals",
		"Explores many options before buying",
	},
	types.ArchetypeQualityFocused: {
		"Prioritizes quality over price",
		"Thorough researcher before purchase",
		"Willing to wait for the right product",
		"Values durability and craftsmanship",
	},
	types.ArchetypeTrendFollower: {
		"Early adopter of new products",
		"Influenced by popular trends",
		"Active in product communities",
		"Frequently updates purchases",
	},
	types.ArchetypePracticalShopper: {
		"Buys only what is needed",
		"Functional over aesthetic",
		"Balanced price-quality approach",
		"Predictable shopping patterns",
	},
	types.ArchetypeImpulseBuyer: {
		"Makes quick purchase decisions",
		"Attracted to new and exciting products",
		"High purchase frequency",
		"Emotionally driven buying",
	},
}

// Traits returns the human-readable trait list for an archetype.
func Traits(a types.Archetype) []string {
	return archetypeTraits[a]
}

// DimensionDescriptions maps each dimension name to a short explanation,
// surfaced alongside profile responses.
var DimensionDescriptions = map[string]string{
	"price_sensitivity":    "How sensitive to price changes and discounts",
	"exploration_tendency": "Willingness to try new products and categories",
	"sentiment_tendency":   "Overall positivity in reviews and feedback",
	"purchase_frequency":   "How often purchases are made",
	"decision_speed":       "How quickly purchase decisions are made",
}
