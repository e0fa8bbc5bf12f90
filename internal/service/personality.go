package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/affinity/internal/cache"
	"github.com/hyperengineering/affinity/internal/evaluation"
	"github.com/hyperengineering/affinity/internal/personality"
	"github.com/hyperengineering/affinity/internal/store"
	"github.com/hyperengineering/affinity/internal/types"
)

// Personality returns a user's profile, recomputing it when the cached and
// stored copies are missing or stale. Staleness is bounded by the profile
// cache TTL so a burst of reads never recomputes twice. With force set,
// cached and stored copies are skipped and the profile is rebuilt from the
// current history.
func (s *Service) Personality(ctx context.Context, userID int64, force bool) (types.PersonalityProfile, error) {
	key := cache.ProfileKey(userID)
	ttl := time.Duration(s.cfg.Cache.TTLProfiles)

	if !force {
		var cached types.PersonalityProfile
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn("profile cache read failed", "user_id", userID, "error", err)
		}

		stored, err := s.store.Profile(ctx, userID)
		if err == nil && time.Since(stored.ComputedAt) < ttl {
			s.cacheSet(ctx, key, stored, ttl)
			return *stored, nil
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return types.PersonalityProfile{}, fmt.Errorf("load profile: %w", err)
		}
	}

	history, err := s.UserHistory(ctx, userID)
	if err != nil {
		return types.PersonalityProfile{}, fmt.Errorf("load history: %w", err)
	}
	platform, err := s.store.PlatformStats(ctx)
	if err != nil {
		return types.PersonalityProfile{}, fmt.Errorf("load platform stats: %w", err)
	}

	profile := s.computeProfile(userID, history, platform)
	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return types.PersonalityProfile{}, fmt.Errorf("save profile: %w", err)
	}
	s.cacheSet(ctx, key, profile, ttl)
	return profile, nil
}

func (s *Service) computeProfile(userID int64, h evaluation.History, platform types.PlatformStats) types.PersonalityProfile {
	return s.classifier.Profile(userID, personality.History{
		Orders:       h.Orders,
		Reviews:      h.Reviews,
		Interactions: h.Interactions,
		Stats:        h.Stats,
		Platform:     platform,
	}, time.Now().UTC())
}

// cacheSet writes through to the cache, logging instead of failing. A cache
// write error must never fail the request that computed the value.
func (s *Service) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		s.log.Warn("cache write failed", "key", key, "error", err)
	}
}
