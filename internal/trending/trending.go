// Package trending ranks products by accelerating activity. A product trends
// when its recent daily interaction rate outpaces its own baseline, with
// purchases weighing most and views least.
package trending

import (
	"sort"

	"github.com/hyperengineering/affinity/internal/config"
	"github.com/hyperengineering/affinity/internal/types"
)

// Velocity weights per interaction family.
const (
	orderWeight    = 5.0
	wishlistWeight = 2.0
	viewWeight     = 1.0
)

// Detector computes trending scores over a recent window against a baseline
// window that precedes it.
type Detector struct {
	recentDays   int
	baselineDays int
	minActivity  int
}

// New creates a Detector from configuration.
func New(cfg config.TrendingConfig) *Detector {
	return &Detector{
		recentDays:   cfg.RecentDays,
		baselineDays: cfg.BaselineDays,
		minActivity:  cfg.MinActivity,
	}
}

// rate converts a raw count into a per-day rate. Non-positive windows yield
// zero rather than dividing by zero.
func rate(count, days int) float64 {
	if days <= 0 {
		return 0
	}
	return float64(count) / float64(days)
}

// Score returns the trending score for the recent window and, when a usable
// baseline exists, the growth rate relative to it. ok is false when no
// baseline rate could be computed; callers then treat recent activity alone
// as the signal.
func (d *Detector) Score(a types.ProductActivity) (score, growth float64, ok bool) {
	score = rate(a.RecentOrders, d.recentDays)*orderWeight +
		rate(a.RecentViews, d.recentDays)*viewWeight +
		rate(a.RecentWishlists, d.recentDays)*wishlistWeight

	baselinePeriod := d.baselineDays - d.recentDays
	if baselinePeriod <= 0 {
		return score, 0, false
	}

	baseline := rate(a.BaselineOrders, baselinePeriod)*orderWeight +
		rate(a.BaselineViews, baselinePeriod)*viewWeight +
		rate(a.BaselineWishlists, baselinePeriod)*wishlistWeight
	if baseline <= 0 {
		return score, 0, false
	}

	return score, (score - baseline) / baseline, true
}

// Rank filters and orders products by trending score. Products whose total
// recent activity falls below the configured minimum are dropped. Ties break
// on product ID so output is stable.
func (d *Detector) Rank(activity []types.ProductActivity, limit int) []types.TrendingProduct {
	ranked := make([]types.TrendingProduct, 0, len(activity))

	for _, a := range activity {
		total := a.RecentOrders + a.RecentViews + a.RecentWishlists
		if total < d.minActivity {
			continue
		}

		score, growth, hasBaseline := d.Score(a)
		tp := types.TrendingProduct{
			ProductID:    a.ProductID,
			Name:         a.Name,
			CategoryID:   a.CategoryID,
			CategoryName: a.CategoryName,
			Price:        a.Price,
			InStock:      a.InStock,
			Score:        score,
			RecentOrders: a.RecentOrders,
			RecentViews:  a.RecentViews,
		}
		if hasBaseline {
			tp.GrowthRate = growth
		} else {
			// New products with no baseline report their raw score as
			// growth so they still surface.
			tp.GrowthRate = score
		}
		ranked = append(ranked, tp)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ProductID < ranked[j].ProductID
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
