package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/affinity/internal/personality"
	"github.com/hyperengineering/affinity/internal/service"
	"github.com/hyperengineering/affinity/internal/types"
	"github.com/hyperengineering/affinity/internal/validation"
)

// allowedInteractionTypes are the event types clients may submit.
var allowedInteractionTypes = []string{
	string(types.InteractionView),
	string(types.InteractionClick),
	string(types.InteractionCartAdd),
	string(types.InteractionCartRemove),
	string(types.InteractionWishlistAdd),
	string(types.InteractionPurchase),
	string(types.InteractionReview),
}

// allowedFeedbackActions are the explicit feedback actions clients may submit.
var allowedFeedbackActions = []string{
	string(types.FeedbackClicked),
	string(types.FeedbackViewed),
	string(types.FeedbackPurchased),
	string(types.FeedbackDismissed),
	string(types.FeedbackNotInterested),
	string(types.FeedbackAlreadyOwn),
}

// Handler implements the API handlers.
type Handler struct {
	svc     *service.Service
	apiKey  string
	version string
}

// NewHandler creates a Handler around the personalization service.
func NewHandler(svc *service.Service, apiKey, version string) *Handler {
	return &Handler{
		svc:     svc,
		apiKey:  apiKey,
		version: version,
	}
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Health returns the health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: h.version,
	})
}

// PersonalityResponse pairs a profile with its human-readable traits.
type PersonalityResponse struct {
	Profile               types.PersonalityProfile `json:"profile"`
	Traits                []string                 `json:"traits"`
	DimensionDescriptions map[string]string        `json:"dimension_descriptions"`
}

// GetPersonality handles GET /api/v1/personality/{userID}.
func (h *Handler) GetPersonality(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	force := r.URL.Query().Get("force") == "true"
	profile, err := h.svc.Personality(r.Context(), userID, force)
	if err != nil {
		slog.Error("personality lookup failed", "user_id", userID, "error", err)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PersonalityResponse{
		Profile:               profile,
		Traits:                personality.Traits(profile.Type),
		DimensionDescriptions: personality.DimensionDescriptions,
	})
}

// GetRecommendations handles GET /api/v1/recommendations/{userID}.
// Query parameters: limit, alpha (explicit blend override), category_id
// (restrict candidates to one category), session_product_ids
// (comma-separated product IDs viewed this session).
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	opts := service.RecommendOptions{
		Limit: queryInt(r, "limit", 0),
	}
	if raw := r.URL.Query().Get("alpha"); raw != "" {
		alpha, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid alpha: %q", raw))
			return
		}
		if verr := validation.ValidateRange("alpha", alpha, 0, 1); verr != nil {
			WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*verr})
			return
		}
		opts.Alpha = &alpha
	}
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid category_id: %q", raw))
			return
		}
		opts.CategoryID = id
	}
	if raw := r.URL.Query().Get("session_product_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil || id <= 0 {
				WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid session_product_ids entry: %q", part))
				return
			}
			opts.SessionIDs = append(opts.SessionIDs, id)
		}
	}

	result, err := h.svc.Recommendations(r.Context(), userID, opts)
	if err != nil {
		slog.Error("recommendations failed", "user_id", userID, "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// TrendingResponse wraps the ranked trending list.
type TrendingResponse struct {
	Items       []types.TrendingProduct `json:"items"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// GetTrending handles GET /api/v1/recommendations/trending.
// Query parameters: limit, category_id.
func (h *Handler) GetTrending(w http.ResponseWriter, r *http.Request) {
	var categoryID int64
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid category_id: %q", raw))
			return
		}
		categoryID = id
	}

	items, err := h.svc.Trending(r.Context(), queryInt(r, "limit", 0), categoryID)
	if err != nil {
		slog.Error("trending failed", "error", err)
		MapStoreError(w, r, err)
		return
	}
	if items == nil {
		items = []types.TrendingProduct{}
	}
	writeJSON(w, http.StatusOK, TrendingResponse{
		Items:       items,
		GeneratedAt: time.Now().UTC(),
	})
}

// SimilarProductsResponse wraps a similar-products lookup.
type SimilarProductsResponse struct {
	ProductID int64                   `json:"product_id"`
	Items     []types.RecommendedItem `json:"items"`
}

// GetSimilarProducts handles GET /api/v1/products/{productID}/similar.
func (h *Handler) GetSimilarProducts(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	items, err := h.svc.SimilarProducts(r.Context(), productID, queryInt(r, "limit", 0))
	if err != nil {
		slog.Error("similar products failed", "product_id", productID, "error", err)
		MapStoreError(w, r, err)
		return
	}
	if items == nil {
		items = []types.RecommendedItem{}
	}
	writeJSON(w, http.StatusOK, SimilarProductsResponse{ProductID: productID, Items: items})
}

// UpsertProduct handles PUT /api/v1/products.
func (h *Handler) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var p types.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidatePositiveID("id", p.ID))
	c.Add(validation.ValidatePositiveID("category_id", p.CategoryID))
	if strings.TrimSpace(p.Name) == "" {
		c.Add(&validation.ValidationError{Field: "name", Message: "is required"})
	}
	if p.Price < 0 {
		c.Add(&validation.ValidationError{Field: "price", Message: "must not be negative"})
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	if err := h.svc.UpsertProduct(r.Context(), p); err != nil {
		slog.Error("product upsert failed", "product_id", p.ID, "error", err)
		MapStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EventsRequest is a batch of behavioral events for one user.
type EventsRequest struct {
	UserID         int64                `json:"user_id"`
	Interactions   []types.Interaction  `json:"interactions,omitempty"`
	Orders         []types.OrderLine    `json:"orders,omitempty"`
	Reviews        []types.Review       `json:"reviews,omitempty"`
	WishlistAdd    []types.WishlistItem `json:"wishlist_add,omitempty"`
	WishlistRemove []int64              `json:"wishlist_remove,omitempty"`
}

// EventsResult reports partial acceptance of an events batch.
type EventsResult struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

// PostEvents handles POST /api/v1/events. Invalid entries are rejected
// individually; the rest of the batch is still applied.
func (h *Handler) PostEvents(w http.ResponseWriter, r *http.Request) {
	var req EventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if verr := validation.ValidatePositiveID("user_id", req.UserID); verr != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*verr})
		return
	}

	ctx := r.Context()
	var result EventsResult
	reject := func(format string, args ...any) {
		result.Rejected++
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}

	for i, in := range req.Interactions {
		var c validation.Collector
		c.Add(validation.ValidatePositiveID(fmt.Sprintf("interactions[%d].product_id", i), in.ProductID))
		c.Add(validation.ValidateEnum(fmt.Sprintf("interactions[%d].type", i), string(in.Type), allowedInteractionTypes))
		if in.Filter != nil {
			c.Add(validation.ValidatePriceBounds(fmt.Sprintf("interactions[%d].filter_context", i), in.Filter.MinPrice, in.Filter.MaxPrice))
		}
		if c.HasErrors() {
			for _, e := range c.Errors() {
				reject("%s: %s", e.Field, e.Message)
			}
			continue
		}
		in.UserID = req.UserID
		if _, err := h.svc.RecordInteraction(ctx, in); err != nil {
			slog.Error("record interaction failed", "user_id", req.UserID, "error", err)
			MapStoreError(w, r, err)
			return
		}
		result.Accepted++
	}

	var orderLines []types.OrderLine
	for i, line := range req.Orders {
		if verr := validation.ValidatePositiveID(fmt.Sprintf("orders[%d].product_id", i), line.ProductID); verr != nil {
			reject("%s: %s", verr.Field, verr.Message)
			continue
		}
		orderLines = append(orderLines, line)
	}
	if len(orderLines) > 0 {
		if err := h.svc.RecordOrder(ctx, req.UserID, orderLines); err != nil {
			slog.Error("record order failed", "user_id", req.UserID, "error", err)
			MapStoreError(w, r, err)
			return
		}
		result.Accepted += len(orderLines)
	}

	for i, review := range req.Reviews {
		var c validation.Collector
		c.Add(validation.ValidatePositiveID(fmt.Sprintf("reviews[%d].product_id", i), review.ProductID))
		c.Add(validation.ValidateRating(fmt.Sprintf("reviews[%d].rating", i), review.Rating))
		c.Add(validation.ValidateUTF8(fmt.Sprintf("reviews[%d].comment", i), review.Comment))
		c.Add(validation.ValidateMaxLength(fmt.Sprintf("reviews[%d].comment", i), review.Comment, 5000))
		if c.HasErrors() {
			for _, e := range c.Errors() {
				reject("%s: %s", e.Field, e.Message)
			}
			continue
		}
		if err := h.svc.RecordReview(ctx, req.UserID, review); err != nil {
			slog.Error("record review failed", "user_id", req.UserID, "error", err)
			MapStoreError(w, r, err)
			return
		}
		result.Accepted++
	}

	for i, item := range req.WishlistAdd {
		if verr := validation.ValidatePositiveID(fmt.Sprintf("wishlist_add[%d].product_id", i), item.ProductID); verr != nil {
			reject("%s: %s", verr.Field, verr.Message)
			continue
		}
		if err := h.svc.AddWishlistItem(ctx, req.UserID, item); err != nil {
			slog.Error("wishlist add failed", "user_id", req.UserID, "error", err)
			MapStoreError(w, r, err)
			return
		}
		result.Accepted++
	}

	for i, productID := range req.WishlistRemove {
		if verr := validation.ValidatePositiveID(fmt.Sprintf("wishlist_remove[%d]", i), productID); verr != nil {
			reject("%s: %s", verr.Field, verr.Message)
			continue
		}
		if err := h.svc.RemoveWishlistItem(ctx, req.UserID, productID); err != nil {
			slog.Error("wishlist remove failed", "user_id", req.UserID, "error", err)
			MapStoreError(w, r, err)
			return
		}
		result.Accepted++
	}

	writeJSON(w, http.StatusOK, result)
}

// FeedbackRequest records explicit feedback on a recommendation. Reason is
// optional free text.
type FeedbackRequest struct {
	UserID    int64  `json:"user_id"`
	ProductID int64  `json:"product_id"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
}

// PostFeedback handles POST /api/v1/feedback.
func (h *Handler) PostFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidatePositiveID("user_id", req.UserID))
	c.Add(validation.ValidatePositiveID("product_id", req.ProductID))
	c.Add(validation.ValidateEnum("action", req.Action, allowedFeedbackActions))
	c.Add(validation.ValidateMaxLength("reason", req.Reason, 500))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	if err := h.svc.RecordFeedback(r.Context(), req.UserID, req.ProductID, types.FeedbackAction(req.Action), req.Reason); err != nil {
		MapStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// DeleteFeedback handles DELETE /api/v1/feedback/{userID}/{productID}.
func (h *Handler) DeleteFeedback(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	if err := h.svc.DeleteFeedback(r.Context(), userID, productID); err != nil {
		MapStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EvaluateRequest selects which alpha values to evaluate. Empty means the
// configured default alpha. MaxUsers and KValues override the configured
// evaluation settings for this run only.
type EvaluateRequest struct {
	Alpha    *float64  `json:"alpha,omitempty"`
	Alphas   []float64 `json:"alphas,omitempty"`
	MaxUsers int       `json:"max_users,omitempty"`
	KValues  []int     `json:"k_values,omitempty"`
}

// EvaluateResponse carries one report per evaluated alpha.
type EvaluateResponse struct {
	Reports []types.EvaluationReport `json:"reports"`
}

// PostEvaluate handles POST /api/v1/evaluate. This replays the scoring
// pipeline over historical purchases and can take a while on large datasets.
func (h *Handler) PostEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	if req.Alpha != nil {
		c.Add(validation.ValidateRange("alpha", *req.Alpha, 0, 1))
	}
	for i, alpha := range req.Alphas {
		c.Add(validation.ValidateRange(fmt.Sprintf("alphas[%d]", i), alpha, 0, 1))
	}
	if req.MaxUsers < 0 {
		c.Add(&validation.ValidationError{Field: "max_users", Message: "must not be negative"})
	}
	for i, k := range req.KValues {
		if k < 1 {
			c.Add(&validation.ValidationError{Field: fmt.Sprintf("k_values[%d]", i), Message: "must be at least 1"})
		}
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	evaluator := h.svc.EvaluatorWith(req.MaxUsers, req.KValues)
	var (
		reports []types.EvaluationReport
		err     error
	)
	switch {
	case len(req.Alphas) > 0:
		reports, err = evaluator.Sweep(r.Context(), req.Alphas)
	case req.Alpha != nil:
		var report types.EvaluationReport
		report, err = evaluator.Evaluate(r.Context(), *req.Alpha)
		reports = []types.EvaluationReport{report}
	default:
		var report types.EvaluationReport
		report, err = evaluator.Evaluate(r.Context(), h.svc.DefaultAlpha())
		reports = []types.EvaluationReport{report}
	}
	if err != nil {
		slog.Error("evaluation failed", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EvaluateResponse{Reports: reports})
}

// pathID parses a positive int64 URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid %s: %q", name, raw))
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
