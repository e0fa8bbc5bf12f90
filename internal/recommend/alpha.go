package recommend

import "github.com/hyperengineering/affinity/internal/config"

// AdaptiveAlpha picks the personality/behavioral blend coefficient from data
// availability. Alpha 1.0 would be pure personality, 0.0 pure behavioral.
//
// Users without a personality profile get alpha 0: there is nothing on the
// personality side to blend. Otherwise the default is nudged upward when the
// behavioral side is weak, either because collaborative coverage is sparse or
// because the user is new, and clamped so neither side is ever silenced
// entirely.
func AdaptiveAlpha(cfg config.RecommendConfig, hasProfile bool, interactionCount int, collabCoverage float64) float64 {
	if !hasProfile {
		return 0
	}

	alpha := cfg.AlphaDefault
	if collabCoverage < cfg.AlphaSparseCollabThreshold {
		alpha += cfg.AlphaSparseCollabBoost
	}
	if interactionCount < cfg.AlphaNewUserThreshold {
		alpha += cfg.AlphaNewUserBoost
	}

	if alpha < 0.1 {
		alpha = 0.1
	}
	if alpha > 0.9 {
		alpha = 0.9
	}
	return alpha
}
