package vector

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hyperengineering/affinity/internal/config"
)

// QdrantIndex is the Qdrant-backed Index implementation. Products are
// stored under their numeric catalog IDs so hits map straight back to the
// catalog without a payload lookup.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
}

var _ Index = (*QdrantIndex)(nil)

// NewQdrantIndex connects to Qdrant over gRPC.
func NewQdrantIndex(cfg config.VectorConfig) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &QdrantIndex{client: client, collection: cfg.Collection}, nil
}

// EnsureCollection creates the product collection if it does not exist.
func (q *QdrantIndex) EnsureCollection(ctx context.Context, dims uint64) error {
	_, err := q.client.GetCollectionInfo(ctx, q.collection)
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); !ok || st.Code() != codes.NotFound {
		return fmt.Errorf("get collection %s: %w", q.collection, err)
	}

	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dims,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	return nil
}

func (q *QdrantIndex) UpsertProduct(ctx context.Context, productID int64, vector []float32, payload map[string]any) error {
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(uint64(productID)),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(payload),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert product %d: %w", productID, err)
	}
	return nil
}

func (q *QdrantIndex) SimilarToProduct(ctx context.Context, productID int64, limit int) ([]Match, error) {
	res, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryID(qdrant.NewIDNum(uint64(productID))),
		Limit:          qdrant.PtrOf(uint64(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("query similar to product %d: %w", productID, err)
	}
	return toMatches(res), nil
}

func (q *QdrantIndex) SimilarToVector(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	res, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("query similar to vector: %w", err)
	}
	return toMatches(res), nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func toMatches(points []*qdrant.ScoredPoint) []Match {
	matches := make([]Match, 0, len(points))
	for _, p := range points {
		matches = append(matches, Match{
			ProductID: int64(p.Id.GetNum()),
			Score:     p.Score,
		})
	}
	return matches
}
