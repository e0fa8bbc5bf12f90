package cache

import (
	"context"
	"time"
)

// Noop is a Cache that stores nothing. Used when Redis is unavailable or
// disabled so callers never need a nil check.
type Noop struct{}

var _ Cache = Noop{}

func (Noop) Get(ctx context.Context, key string, dest any) error { return ErrMiss }

func (Noop) Set(ctx context.Context, key string, value any, ttl time.Duration) error { return nil }

func (Noop) Delete(ctx context.Context, keys ...string) error { return nil }

func (Noop) DeletePrefix(ctx context.Context, prefix string) error { return nil }

func (Noop) Close() error { return nil }
