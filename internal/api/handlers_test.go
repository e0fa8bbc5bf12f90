package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperengineering/affinity/internal/cache"
	"github.com/hyperengineering/affinity/internal/config"
	"github.com/hyperengineering/affinity/internal/service"
	"github.com/hyperengineering/affinity/internal/store"
	"github.com/hyperengineering/affinity/internal/types"
	"github.com/hyperengineering/affinity/internal/vector"
)

const testAPIKey = "test-api-key"

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (stubEmbedder) ModelName() string { return "stub-embedding-model" }

func testServiceConfig() *config.Config {
	return &config.Config{
		Cache: config.CacheConfig{
			TTLProfiles:        config.Duration(5 * time.Minute),
			TTLRecommendations: config.Duration(time.Minute),
			TTLTrending:        config.Duration(10 * time.Minute),
		},
		Vector: config.VectorConfig{
			Timeout: config.Duration(time.Second),
		},
		Embedding: config.EmbeddingConfig{
			Timeout: config.Duration(time.Second),
		},
		Recommend: config.RecommendConfig{
			DefaultLimit:               10,
			MaxLimit:                   50,
			AlphaDefault:               0.4,
			AlphaSparseCollabThreshold: 0.05,
			AlphaSparseCollabBoost:     0.2,
			AlphaNewUserThreshold:      10,
			AlphaNewUserBoost:          0.15,
			DecayHalfLifePurchases:     30,
			DecayHalfLifeViews:         7,
			DecayHalfLifeWishlist:      14,
			DecayHalfLifeReviews:       60,
			WishlistBoost:              0.4,
			ViewBoost:                  0.2,
			SessionBoost:               0.3,
			CategoryAffinityTopN:       5,
			CategoryAffinityBoost:      0.4,
			CategoryAffinityTopBoost:   0.3,
			PricePreferenceBoost:       0.15,
			PricePreferencePenalty:     0.10,
			NegativeReviewPenalty:      0.5,
			DiversityMaxPerCategory:    3,
			DiversityMinCategories:     3,
			MinJaccardSimilarity:       0.1,
			CatalogSampleSize:          500,
		},
		Filter: config.FilterConfig{
			SignalWeight:           0.3,
			MinSamples:             3,
			CategoryMaxWeight:      5,
			CategoryAffinityWeight: 1.5,
		},
		Trending: config.TrendingConfig{
			RecentDays:   7,
			BaselineDays: 30,
			MinActivity:  1,
		},
		Evaluation: config.EvaluationConfig{
			MinPurchases: 10,
			HoldoutSize:  5,
			MaxUsers:     100,
			KValues:      []int{5, 10, 20},
			Parallelism:  2,
		},
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "affinity.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(testServiceConfig(), st, cache.Noop{}, vector.Noop{}, stubEmbedder{}, log)
	handler := NewHandler(svc, testAPIKey, "test")

	srv := httptest.NewServer(NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func seedProducts(t *testing.T, srv *httptest.Server, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		resp := doRequest(t, http.MethodPut, srv.URL+"/api/v1/products", types.Product{
			ID:           int64(i),
			Name:         fmt.Sprintf("Product %d", i),
			CategoryID:   int64(i%3 + 1),
			CategoryName: fmt.Sprintf("Category %d", i%3+1),
			Price:        float64(10 * i),
			Rating:       4.0,
			Popularity:   1000 - i,
			InStock:      true,
		})
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("seed product %d: status %d", i, resp.StatusCode)
		}
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	health := decode[HealthResponse](t, resp)
	if health.Status != "healthy" {
		t.Errorf("status = %q, want healthy", health.Status)
	}
}

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/personality/1")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want problem+json", ct)
	}
}

func TestGetPersonality(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/personality/1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[PersonalityResponse](t, resp)
	if body.Profile.Type != types.ArchetypePracticalShopper {
		t.Errorf("cold start archetype = %s, want practical_shopper", body.Profile.Type)
	}
	if len(body.Traits) == 0 {
		t.Error("expected traits for archetype")
	}
	if len(body.DimensionDescriptions) != 5 {
		t.Errorf("expected 5 dimension descriptions, got %d", len(body.DimensionDescriptions))
	}
}

func TestGetPersonality_InvalidUserID(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/personality/abc", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetRecommendations(t *testing.T) {
	srv := newTestServer(t)
	seedProducts(t, srv, 5)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/recommendations/1?limit=3", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	result := decode[types.RecommendationResult](t, resp)
	if result.UserID != 1 {
		t.Errorf("user_id = %d, want 1", result.UserID)
	}
	if result.Strategy != types.StrategyPopular {
		t.Errorf("strategy = %s, want popular for user with no history", result.Strategy)
	}
	if len(result.Items) != 3 {
		t.Errorf("items = %d, want 3", len(result.Items))
	}
}

func TestGetRecommendations_InvalidAlpha(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/recommendations/1?alpha=1.5", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/recommendations/1?alpha=abc", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPostEvents_PartialAcceptance(t *testing.T) {
	srv := newTestServer(t)
	seedProducts(t, srv, 3)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/events", EventsRequest{
		UserID: 1,
		Interactions: []types.Interaction{
			{ProductID: 1, Type: types.InteractionView, OccurredAt: time.Now().UTC()},
			{ProductID: 2, Type: "teleport", OccurredAt: time.Now().UTC()},
		},
		Reviews: []types.Review{
			{ProductID: 1, Rating: 5, Comment: "great"},
			{ProductID: 2, Rating: 9},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	result := decode[EventsResult](t, resp)
	if result.Accepted != 2 {
		t.Errorf("accepted = %d, want 2", result.Accepted)
	}
	if result.Rejected != 2 {
		t.Errorf("rejected = %d, want 2", result.Rejected)
	}
	if len(result.Errors) != 2 {
		t.Errorf("errors = %v, want 2 entries", result.Errors)
	}
}

func TestPostEvents_InvalidUserID(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/events", EventsRequest{UserID: 0})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestFeedbackLifecycle(t *testing.T) {
	srv := newTestServer(t)

	body := FeedbackRequest{UserID: 1, ProductID: 7, Action: "not_interested", Reason: "prefer another brand"}
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/feedback", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	// Duplicate actions conflict.
	resp = doRequest(t, http.MethodPost, srv.URL+"/api/v1/feedback", body)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodDelete, srv.URL+"/api/v1/feedback/1/7", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodDelete, srv.URL+"/api/v1/feedback/1/7", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestPostFeedback_UnknownAction(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/feedback",
		FeedbackRequest{UserID: 1, ProductID: 7, Action: "meh"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestGetTrending(t *testing.T) {
	srv := newTestServer(t)
	seedProducts(t, srv, 3)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/events", EventsRequest{
		UserID: 1,
		Interactions: []types.Interaction{
			{ProductID: 2, Type: types.InteractionView, OccurredAt: time.Now().UTC().AddDate(0, 0, -1)},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("seed events status = %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/recommendations/trending", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[TrendingResponse](t, resp)
	if len(body.Items) != 1 || body.Items[0].ProductID != 2 {
		t.Errorf("unexpected trending items: %+v", body.Items)
	}
}

func TestGetSimilarProducts_Fallback(t *testing.T) {
	srv := newTestServer(t)
	seedProducts(t, srv, 4)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/products/1/similar?limit=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[SimilarProductsResponse](t, resp)
	if body.ProductID != 1 {
		t.Errorf("product_id = %d, want 1", body.ProductID)
	}
	if len(body.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(body.Items))
	}
	for _, item := range body.Items {
		if item.ProductID == 1 {
			t.Error("queried product included in similar list")
		}
	}
}

func TestUpsertProduct_Validation(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPut, srv.URL+"/api/v1/products", types.Product{
		ID: 0, Name: "", CategoryID: 1, Price: -5,
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	body := decode[ProblemWithErrors](t, resp)
	if len(body.Errors) != 3 {
		t.Errorf("errors = %d, want 3: %+v", len(body.Errors), body.Errors)
	}
}

func TestPostEvaluate_NoEligibleUsers(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/evaluate", EvaluateRequest{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[EvaluateResponse](t, resp)
	if len(body.Reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(body.Reports))
	}
	if body.Reports[0].UsersEvaluated != 0 {
		t.Errorf("users evaluated = %d, want 0", body.Reports[0].UsersEvaluated)
	}
}

func TestGetRecommendations_CategoryScoped(t *testing.T) {
	srv := newTestServer(t)
	seedProducts(t, srv, 9)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/recommendations/1?category_id=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	result := decode[types.RecommendationResult](t, resp)
	if len(result.Items) == 0 {
		t.Fatal("expected category-scoped items")
	}
	for _, item := range result.Items {
		if item.CategoryID != 2 {
			t.Errorf("item %d category = %d, want 2", item.ProductID, item.CategoryID)
		}
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/recommendations/1?category_id=abc", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid category_id status = %d, want 400", resp.StatusCode)
	}
}

func TestGetRecommendations_InvalidSessionProductIDs(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/recommendations/1?session_product_ids=3,abc", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetTrending_CategoryScoped(t *testing.T) {
	srv := newTestServer(t)
	seedProducts(t, srv, 3) // product 1 in category 2, product 2 in category 3

	for _, productID := range []int64{1, 2} {
		resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/events", EventsRequest{
			UserID: 1,
			Interactions: []types.Interaction{
				{ProductID: productID, Type: types.InteractionView, OccurredAt: time.Now().UTC().AddDate(0, 0, -1)},
			},
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("seed events status = %d", resp.StatusCode)
		}
	}

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/recommendations/trending?category_id=3", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[TrendingResponse](t, resp)
	if len(body.Items) != 1 || body.Items[0].ProductID != 2 {
		t.Errorf("category 3 trending = %+v, want product 2 only", body.Items)
	}

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/recommendations/trending?category_id=-1", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid category_id status = %d, want 400", resp.StatusCode)
	}
}

func TestPostEvaluate_Overrides(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/evaluate", EvaluateRequest{
		KValues:  []int{3},
		MaxUsers: 10,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[EvaluateResponse](t, resp)
	if len(body.Reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(body.Reports))
	}
	if len(body.Reports[0].Metrics) != 1 {
		t.Errorf("metrics keys = %d, want 1 (K override)", len(body.Reports[0].Metrics))
	}
	if _, ok := body.Reports[0].Metrics[3]; !ok {
		t.Errorf("expected metrics at K=3, got %+v", body.Reports[0].Metrics)
	}

	resp = doRequest(t, http.MethodPost, srv.URL+"/api/v1/evaluate", EvaluateRequest{
		KValues: []int{0},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("invalid k_values status = %d, want 422", resp.StatusCode)
	}
}
