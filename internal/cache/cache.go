// Package cache provides read-through caching for computed artifacts.
// Profiles, recommendation lists, and trending lists are expensive to
// rebuild but cheap to serve stale for a short window.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache stores JSON-encoded values under namespaced keys.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key under the given prefix. Used to
	// invalidate all recommendation variants for one user at once.
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// Key builders. Keeping these in one place means invalidation and lookup
// can never disagree on the format.

func ProfileKey(userID int64) string {
	return fmt.Sprintf("affinity:profile:%d", userID)
}

func RecommendationsKey(userID int64, limit int, alpha string, categoryID int64) string {
	return fmt.Sprintf("affinity:recs:%d:%d:%s:%d", userID, limit, alpha, categoryID)
}

func RecommendationsPrefix(userID int64) string {
	return fmt.Sprintf("affinity:recs:%d:", userID)
}

// TrendingKey carries no limit. One ranked list is cached per category and
// each request cuts it to its own limit, so the background refresh warms
// every request size at once.
func TrendingKey(categoryID int64) string {
	return fmt.Sprintf("affinity:trending:%d", categoryID)
}

func TrendingPrefix() string {
	return "affinity:trending:"
}

func SimilarityKey(userID int64) string {
	return fmt.Sprintf("affinity:similarity:%d", userID)
}
