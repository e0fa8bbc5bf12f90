// Package recommend implements the hybrid scoring pipeline. The Engine is a
// pure function of its inputs: callers gather history, candidates, and
// catalog data, and get back a ranked, diversity-constrained result. Keeping
// it pure lets the evaluation harness replay it over historical slices
// without touching storage.
package recommend

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/affinity/internal/config"
	"github.com/hyperengineering/affinity/internal/filtersignal"
	"github.com/hyperengineering/affinity/internal/types"
)

// Reason strings surfaced with recommended items.
const (
	ReasonWishlist    = "From your wishlist"
	ReasonViewed      = "You viewed this recently"
	ReasonSession     = "Related to your recent browsing"
	ReasonPersonality = "Matches your %s style"
	ReasonCategory    = "Popular in %s"
	ReasonPriceMatch  = "Within your preferred price range"
	ReasonPopular     = "Bestseller"
	ReasonSimilarUser = "Based on similar users"
	ReasonSimilarItem = "Similar to items you've viewed"
	ReasonDefault     = "Recommended for you"
)

// ScoredProduct is a candidate from vector similarity search.
type ScoredProduct struct {
	Product types.Product
	Score   float64
}

// Inputs is everything one recommendation pass reads. All fields are
// optional; missing signals degrade the blend instead of failing it.
type Inputs struct {
	UserID  int64
	Profile *types.PersonalityProfile

	Orders       []types.OrderLine
	Wishlist     []types.WishlistItem
	Reviews      []types.Review
	Interactions []types.Interaction

	Collaborative  map[int64]float64
	ContentSimilar []ScoredProduct
	Popular        []types.Product
	Catalog        []types.Product

	NegativeIDs []int64
	SessionIDs  []int64

	Now time.Time
}

// Options control one recommendation request.
type Options struct {
	Limit int
	// Alpha overrides adaptive blending when non-nil, clamped to [0,1].
	Alpha *float64
}

// Engine scores and ranks products. Stateless and safe for concurrent use.
type Engine struct {
	cfg       config.RecommendConfig
	filterCfg config.FilterConfig
	filters   *filtersignal.Analyzer
}

// New creates an Engine.
func New(cfg config.RecommendConfig, filterCfg config.FilterConfig) *Engine {
	return &Engine{
		cfg:       cfg,
		filterCfg: filterCfg,
		filters:   filtersignal.New(filterCfg),
	}
}

type candidate struct {
	behavioral  float64
	personality float64
	score       float64
	reasons     []string
	product     *types.Product
	inCollab    bool
	inContent   bool
}

// Recommend runs the full pipeline: adaptive alpha, behavioral and
// personality scoring, blending, additive boosts, penalties, ranking, and
// the diversity pass. Users with no history at all fall back to popularity.
func (e *Engine) Recommend(in Inputs, opts Options) types.RecommendationResult {
	limit := opts.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}

	purchased := make(map[int64]struct{}, len(in.Orders))
	for _, o := range in.Orders {
		purchased[o.ProductID] = struct{}{}
	}
	wishlisted := make(map[int64]struct{}, len(in.Wishlist))
	for _, w := range in.Wishlist {
		wishlisted[w.ProductID] = struct{}{}
	}
	negative := make(map[int64]struct{}, len(in.NegativeIDs))
	for _, id := range in.NegativeIDs {
		negative[id] = struct{}{}
	}
	session := make(map[int64]struct{}, len(in.SessionIDs))
	for _, id := range in.SessionIDs {
		session[id] = struct{}{}
	}

	// Most recent view per product, plus view timestamps per category for
	// affinity. Categories resolve through the catalog.
	catalog := make(map[int64]*types.Product, len(in.Catalog))
	for i := range in.Catalog {
		catalog[in.Catalog[i].ID] = &in.Catalog[i]
	}
	latestView := make(map[int64]time.Time)
	viewCategories := make(map[int64][]time.Time)
	for _, it := range in.Interactions {
		if it.Type != types.InteractionView {
			continue
		}
		if prev, ok := latestView[it.ProductID]; !ok || it.OccurredAt.After(prev) {
			latestView[it.ProductID] = it.OccurredAt
		}
		if p, ok := catalog[it.ProductID]; ok && p.CategoryID != 0 {
			viewCategories[p.CategoryID] = append(viewCategories[p.CategoryID], it.OccurredAt)
		}
	}

	negativeReviewed := make(map[int64]struct{})
	for _, r := range in.Reviews {
		if r.Rating <= 2 {
			negativeReviewed[r.ProductID] = struct{}{}
		}
	}

	hasProfile := in.Profile != nil && in.Profile.Type != ""
	hasCollab := len(in.Collaborative) > 0
	hasContent := len(in.ContentSimilar) > 0
	hasHistory := len(purchased) > 0 || len(wishlisted) > 0 || len(latestView) > 0

	alpha, alphaAdaptive := e.resolveAlpha(in, opts, hasProfile, purchased, wishlisted, latestView)

	result := types.RecommendationResult{
		UserID:        in.UserID,
		Alpha:         alpha,
		AlphaAdaptive: alphaAdaptive,
		Strategy:      types.StrategyHybrid,
		GeneratedAt:   in.Now,
	}

	excluded := func(id int64) bool {
		if _, ok := purchased[id]; ok {
			return true
		}
		_, ok := negative[id]
		return ok
	}

	// Cold start with no signals at all: rank by popularity.
	if !hasCollab && !hasContent && !hasHistory {
		result.Strategy = types.StrategyPopular
		result.Items = popularItems(in.Popular, excluded, limit)
		return result
	}

	candidates := make(map[int64]*candidate)
	get := func(id int64) *candidate {
		c, ok := candidates[id]
		if !ok {
			c = &candidate{}
			candidates[id] = c
		}
		return c
	}

	// Behavioral side.
	if hasCollab && alpha < 1.0 {
		for pid, score := range in.Collaborative {
			if excluded(pid) {
				continue
			}
			c := get(pid)
			c.behavioral += score
			c.inCollab = true
			c.reasons = append(c.reasons, ReasonSimilarUser)
		}
	}
	if hasContent && alpha < 1.0 {
		for i, sp := range in.ContentSimilar {
			pid := sp.Product.ID
			if pid == 0 || excluded(pid) {
				continue
			}
			score := sp.Score
			if score == 0 {
				score = 1.0 - float64(i)*0.1
			}
			c := get(pid)
			c.behavioral += score
			c.inContent = true
			c.reasons = append(c.reasons, ReasonSimilarItem)
			if c.product == nil {
				p := sp.Product
				c.product = &p
			}
		}
	}

	// Personality side.
	if hasProfile && alpha > 0 {
		label := archetypeLabel(in.Profile.Type)
		for pid, boost := range personalityBoost(in.Profile.Type, in.Catalog) {
			if excluded(pid) {
				continue
			}
			c := get(pid)
			c.personality += boost
			c.reasons = append(c.reasons, fmt.Sprintf(ReasonPersonality, label))
		}
	}

	// Blend. When a product carried both collaborative and content scores,
	// average them so double coverage is not double counted.
	for _, c := range candidates {
		behavioral := c.behavioral
		if c.inCollab && c.inContent {
			behavioral /= 2
		}
		c.score = alpha*c.personality + (1-alpha)*behavioral
	}

	// Wishlist boost, decayed from when the item was added.
	for _, w := range in.Wishlist {
		if excluded(w.ProductID) {
			continue
		}
		decay := Decay(DaysSince(in.Now, w.AddedAt), e.cfg.DecayHalfLifeWishlist)
		c := get(w.ProductID)
		c.score += e.cfg.WishlistBoost * decay
		c.reasons = append(c.reasons, ReasonWishlist)
	}

	// Recent-view boost, once per product at its most recent view. Products
	// the user reviewed poorly get no view boost.
	for pid, viewedAt := range latestView {
		if excluded(pid) {
			continue
		}
		if _, bad := negativeReviewed[pid]; bad {
			continue
		}
		decay := Decay(DaysSince(in.Now, viewedAt), e.cfg.DecayHalfLifeViews)
		c := get(pid)
		c.score += e.cfg.ViewBoost * decay
		c.reasons = append(c.reasons, ReasonViewed)
	}

	// Session boost: products sharing a category with the current session,
	// excluding what is already in the session.
	if len(session) > 0 {
		sessionCategories := make(map[int64]struct{})
		for id := range session {
			if p, ok := catalog[id]; ok && p.CategoryID != 0 {
				sessionCategories[p.CategoryID] = struct{}{}
			}
		}
		for _, p := range in.Catalog {
			if excluded(p.ID) {
				continue
			}
			if _, inSession := session[p.ID]; inSession {
				continue
			}
			if _, ok := sessionCategories[p.CategoryID]; ok {
				c := get(p.ID)
				c.score += e.cfg.SessionBoost
				c.reasons = append(c.reasons, ReasonSession)
			}
		}
	}

	// Category affinity boost over the user's top categories, with an extra
	// bump for the single strongest one. The category reason is promoted to
	// primary.
	affinity := e.categoryAffinity(in, viewCategories)
	if len(affinity) > 0 {
		top := topCategories(affinity, e.cfg.CategoryAffinityTopN)
		topSet := make(map[int64]struct{}, len(top))
		for _, catID := range top {
			topSet[catID] = struct{}{}
		}
		var topCategoryID int64
		if len(top) > 0 {
			topCategoryID = top[0]
		}

		for _, p := range in.Catalog {
			if p.CategoryID == 0 || excluded(p.ID) {
				continue
			}
			if _, ok := topSet[p.CategoryID]; !ok {
				continue
			}
			c := get(p.ID)
			c.score += e.cfg.CategoryAffinityBoost
			if p.CategoryID == topCategoryID {
				c.score += e.cfg.CategoryAffinityTopBoost
			}
			name := p.CategoryName
			if name == "" {
				name = "your favorites"
			}
			c.reasons = append([]string{fmt.Sprintf(ReasonCategory, name)}, c.reasons...)
		}
	}

	// Price preference boost/penalty.
	if prefMin, prefMax, ok := e.pricePreference(in); ok {
		for _, p := range in.Catalog {
			if p.Price <= 0 || excluded(p.ID) {
				continue
			}
			adjustment := e.scorePrice(p.Price, prefMin, prefMax)
			if adjustment == 0 {
				continue
			}
			c := get(p.ID)
			c.score += adjustment
			if adjustment > 0 {
				c.reasons = append(c.reasons, ReasonPriceMatch)
			}
		}
	}

	// Products this user rated poorly sink.
	for pid := range negativeReviewed {
		if c, ok := candidates[pid]; ok {
			c.score -= e.cfg.NegativeReviewPenalty
		}
	}

	// Attach catalog data where a candidate has none yet.
	for pid, c := range candidates {
		if c.product == nil {
			if p, ok := catalog[pid]; ok {
				c.product = p
			}
		}
	}

	result.Items = e.applyDiversity(rankCandidates(candidates), limit)
	return result
}

func (e *Engine) resolveAlpha(in Inputs, opts Options, hasProfile bool, purchased, wishlisted map[int64]struct{}, latestView map[int64]time.Time) (float64, bool) {
	if opts.Alpha != nil {
		return types.Clamp01(*opts.Alpha), false
	}
	interactionCount := len(purchased) + len(wishlisted) + len(latestView)
	totalProducts := len(in.Catalog)
	if totalProducts == 0 {
		totalProducts = 1
	}
	coverage := float64(len(in.Collaborative)) / float64(totalProducts)
	return AdaptiveAlpha(e.cfg, hasProfile, interactionCount, coverage), true
}

func popularItems(popular []types.Product, excluded func(int64) bool, limit int) []types.RecommendedItem {
	items := make([]types.RecommendedItem, 0, limit)
	rank := 0
	for _, p := range popular {
		if p.ID == 0 || excluded(p.ID) {
			continue
		}
		score := 1.0 - float64(rank)*0.05
		if score < 0 {
			score = 0
		}
		items = append(items, types.RecommendedItem{
			ProductID:    p.ID,
			Name:         p.Name,
			Score:        score,
			Reason:       ReasonPopular,
			CategoryID:   p.CategoryID,
			CategoryName: p.CategoryName,
			Price:        p.Price,
		})
		rank++
		if len(items) >= limit {
			break
		}
	}
	return items
}

// rankCandidates orders candidates by score descending with product ID ties
// broken ascending, keeping output deterministic across map iterations.
func rankCandidates(candidates map[int64]*candidate) []rankedCandidate {
	ids := make([]int64, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sortByScoreDesc(ids, func(id int64) float64 { return candidates[id].score })

	ranked := make([]rankedCandidate, len(ids))
	for i, id := range ids {
		ranked[i] = rankedCandidate{id: id, c: candidates[id]}
	}
	return ranked
}

type rankedCandidate struct {
	id int64
	c  *candidate
}

func archetypeLabel(a types.Archetype) string {
	return strings.ReplaceAll(string(a), "_", " ")
}
