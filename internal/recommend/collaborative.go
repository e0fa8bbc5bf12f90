package recommend

// CollaborativeScores implements item scoring from similar users' purchases.
// Similarity between users is the Jaccard index of their purchased product
// sets; users below minSimilarity contribute nothing. Each qualifying user
// votes their similarity weight for every product they bought that the target
// user has not, and the totals are normalized by the sum of qualifying
// similarities so scores stay in [0,1].
func CollaborativeScores(userProducts map[int64]struct{}, similarUsers map[int64][]int64, minSimilarity float64) map[int64]float64 {
	scores := make(map[int64]float64)
	var totalWeight float64

	for _, purchases := range similarUsers {
		otherProducts := make(map[int64]struct{}, len(purchases))
		for _, pid := range purchases {
			otherProducts[pid] = struct{}{}
		}

		similarity := jaccard(userProducts, otherProducts)
		if similarity <= minSimilarity {
			continue
		}

		totalWeight += similarity
		for pid := range otherProducts {
			if _, owned := userProducts[pid]; owned {
				continue
			}
			scores[pid] += similarity
		}
	}

	if totalWeight == 0 {
		return map[int64]float64{}
	}
	for pid := range scores {
		scores[pid] /= totalWeight
	}
	return scores
}

func jaccard(a, b map[int64]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
