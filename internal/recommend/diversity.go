package recommend

import "github.com/hyperengineering/affinity/internal/types"

// applyDiversity turns ranked candidates into the final item list under two
// constraints: no category exceeds DiversityMaxPerCategory, and when fewer
// than DiversityMinCategories are represented, candidates skipped by the cap
// are revisited to widen coverage. Skipped candidates are deferred, never
// discarded outright.
func (e *Engine) applyDiversity(ranked []rankedCandidate, limit int) []types.RecommendedItem {
	categoryCounts := make(map[int64]int)
	selectedCategories := make(map[int64]struct{})
	var skipped []rankedCandidate
	items := make([]types.RecommendedItem, 0, limit)

	for _, rc := range ranked {
		if len(items) >= limit {
			break
		}
		categoryID := candidateCategory(rc.c)
		if categoryCounts[categoryID] >= e.cfg.DiversityMaxPerCategory {
			skipped = append(skipped, rc)
			continue
		}
		categoryCounts[categoryID]++
		selectedCategories[categoryID] = struct{}{}
		items = append(items, buildItem(rc))
	}

	// Second pass fills from skipped candidates, but only categories not yet
	// represented, so the result widens instead of deepening.
	if len(selectedCategories) < e.cfg.DiversityMinCategories && len(items) < limit {
		for _, rc := range skipped {
			if len(items) >= limit {
				break
			}
			categoryID := candidateCategory(rc.c)
			if _, ok := selectedCategories[categoryID]; ok {
				continue
			}
			selectedCategories[categoryID] = struct{}{}
			categoryCounts[categoryID]++
			items = append(items, buildItem(rc))
		}
	}

	return items
}

func candidateCategory(c *candidate) int64 {
	if c.product != nil {
		return c.product.CategoryID
	}
	return 0
}

func buildItem(rc rankedCandidate) types.RecommendedItem {
	item := types.RecommendedItem{
		ProductID: rc.id,
		Score:     types.Clamp01(rc.c.score),
		Reason:    ReasonDefault,
	}
	if len(rc.c.reasons) > 0 {
		item.Reason = rc.c.reasons[0]
	}
	if p := rc.c.product; p != nil {
		item.Name = p.Name
		item.CategoryID = p.CategoryID
		item.CategoryName = p.CategoryName
		item.Price = p.Price
	}
	return item
}
