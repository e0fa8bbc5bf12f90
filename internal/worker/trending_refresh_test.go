package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/affinity/internal/types"
)

// mockTrendingSource implements the TrendingSource interface for testing.
type mockTrendingSource struct {
	mu        sync.Mutex
	calls     int
	err       error
	lastLimit int
	items     []types.TrendingProduct
}

func (m *mockTrendingSource) Trending(_ context.Context, limit int, _ int64) ([]types.TrendingProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastLimit = limit
	return m.items, m.err
}

func (m *mockTrendingSource) getCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestTrendingRefreshWorker_RefreshesOnStart(t *testing.T) {
	source := &mockTrendingSource{}
	w := NewTrendingRefreshWorker(source, 20, 1*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if source.getCalls() < 1 {
		t.Errorf("Expected at least 1 refresh on start, got %d", source.getCalls())
	}
	if source.lastLimit != 20 {
		t.Errorf("Expected limit 20, got %d", source.lastLimit)
	}
}

func TestTrendingRefreshWorker_RefreshesOnInterval(t *testing.T) {
	source := &mockTrendingSource{}
	w := NewTrendingRefreshWorker(source, 20, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// Initial refresh plus at least 2 interval ticks.
	time.Sleep(150 * time.Millisecond)
	cancel()
	<-done

	if calls := source.getCalls(); calls < 3 {
		t.Errorf("Expected at least 3 refreshes, got %d", calls)
	}
}

func TestTrendingRefreshWorker_StopsOnCancel(t *testing.T) {
	source := &mockTrendingSource{}
	w := NewTrendingRefreshWorker(source, 20, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Worker did not stop after context cancellation")
	}

	calls := source.getCalls()
	time.Sleep(50 * time.Millisecond)
	if after := source.getCalls(); after != calls {
		t.Errorf("Worker kept refreshing after cancellation: %d -> %d", calls, after)
	}
}

func TestTrendingRefreshWorker_ContinuesAfterError(t *testing.T) {
	source := &mockTrendingSource{err: errors.New("store unavailable")}
	w := NewTrendingRefreshWorker(source, 20, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(150 * time.Millisecond)
	cancel()
	<-done

	if calls := source.getCalls(); calls < 2 {
		t.Errorf("Expected worker to keep running after errors, got %d calls", calls)
	}
}
