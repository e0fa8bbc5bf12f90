// Package vector provides product similarity search over embeddings.
package vector

import "context"

// Match is one similarity hit.
type Match struct {
	ProductID int64   `json:"product_id"`
	Score     float32 `json:"score"`
}

// Index searches and maintains the product embedding collection.
type Index interface {
	EnsureCollection(ctx context.Context, dims uint64) error
	UpsertProduct(ctx context.Context, productID int64, vector []float32, payload map[string]any) error
	// SimilarToProduct returns products nearest to an indexed product,
	// the product itself excluded.
	SimilarToProduct(ctx context.Context, productID int64, limit int) ([]Match, error)
	// SimilarToVector returns products nearest to an arbitrary query
	// vector, typically a user preference embedding.
	SimilarToVector(ctx context.Context, vector []float32, limit int) ([]Match, error)
	Close() error
}

// Noop is an Index that indexes nothing and finds nothing. Used when the
// vector backend is unavailable so recommendation serving can continue on
// collaborative and personality signals alone.
type Noop struct{}

var _ Index = Noop{}

func (Noop) EnsureCollection(ctx context.Context, dims uint64) error { return nil }

func (Noop) UpsertProduct(ctx context.Context, productID int64, vector []float32, payload map[string]any) error {
	return nil
}

func (Noop) SimilarToProduct(ctx context.Context, productID int64, limit int) ([]Match, error) {
	return nil, nil
}

func (Noop) SimilarToVector(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	return nil, nil
}

func (Noop) Close() error { return nil }
