// Package evaluation measures recommendation quality with temporal holdout:
// each eligible user's most recent purchases are hidden, recommendations are
// generated from the remaining history only, and precision/recall@K report
// how many hidden purchases the engine recovered.
package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyperengineering/affinity/internal/config"
	"github.com/hyperengineering/affinity/internal/embedding"
	"github.com/hyperengineering/affinity/internal/personality"
	"github.com/hyperengineering/affinity/internal/recommend"
	"github.com/hyperengineering/affinity/internal/types"
	"github.com/hyperengineering/affinity/internal/vector"
)

// contentCandidates caps how many vector hits feed the replayed content
// signal, mirroring live serving.
const contentCandidates = 50

// History is one user's complete behavioral record.
type History struct {
	Orders       []types.OrderLine
	Wishlist     []types.WishlistItem
	Reviews      []types.Review
	Interactions []types.Interaction
	Stats        types.PurchaseStats
}

// DataSource provides the read-only slices the evaluator replays. The live
// store satisfies it.
type DataSource interface {
	EligibleUserIDs(ctx context.Context, minPurchases, maxUsers int) ([]int64, error)
	UserHistory(ctx context.Context, userID int64) (History, error)
	SimilarUsersPurchases(ctx context.Context, userID int64) (map[int64][]int64, error)
	CatalogSample(ctx context.Context, limit int) ([]types.Product, error)
	PlatformStats(ctx context.Context) (types.PlatformStats, error)
	// PreferenceMatches embeds a preference text and returns the nearest
	// products from the vector index.
	PreferenceMatches(ctx context.Context, text string, limit int) ([]vector.Match, error)
}

// Evaluator replays the scoring pipeline over historical data. The engine is
// invoked as a pure function of training-only inputs so no holdout purchase
// can leak into what it sees.
type Evaluator struct {
	cfg        config.EvaluationConfig
	recommend  config.RecommendConfig
	engine     *recommend.Engine
	classifier *personality.Classifier
	data       DataSource
	log        *slog.Logger
}

// New creates an Evaluator.
func New(cfg config.EvaluationConfig, recommendCfg config.RecommendConfig, engine *recommend.Engine, classifier *personality.Classifier, data DataSource, log *slog.Logger) *Evaluator {
	return &Evaluator{
		cfg:        cfg,
		recommend:  recommendCfg,
		engine:     engine,
		classifier: classifier,
		data:       data,
		log:        log,
	}
}

// holdout is one user's temporal split.
type holdout struct {
	userID     int64
	history    History
	training   []types.OrderLine
	holdoutIDs map[int64]struct{}
}

// split orders a user's purchases by recency and hides the newest
// HoldoutSize of them. Users with too few purchases are skipped.
func (e *Evaluator) split(userID int64, h History) (holdout, bool) {
	if len(h.Orders) < e.cfg.MinPurchases {
		return holdout{}, false
	}

	orders := make([]types.OrderLine, len(h.Orders))
	copy(orders, h.Orders)
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].OrderedAt.After(orders[j].OrderedAt)
	})

	held := orders[:e.cfg.HoldoutSize]
	training := orders[e.cfg.HoldoutSize:]

	ids := make(map[int64]struct{}, len(held))
	for _, o := range held {
		ids[o.ProductID] = struct{}{}
	}
	return holdout{userID: userID, history: h, training: training, holdoutIDs: ids}, true
}

// evaluateUser scores one user at one alpha, returning metrics per K.
func (e *Evaluator) evaluateUser(ctx context.Context, ho holdout, alpha float64, kValues []int, catalog []types.Product, platform types.PlatformStats) (map[int]types.EvaluationMetrics, error) {
	similar, err := e.data.SimilarUsersPurchases(ctx, ho.userID)
	if err != nil {
		return nil, fmt.Errorf("similar users for user %d: %w", ho.userID, err)
	}

	trainingSet := make(map[int64]struct{}, len(ho.training))
	for _, o := range ho.training {
		trainingSet[o.ProductID] = struct{}{}
	}
	collaborative := recommend.CollaborativeScores(trainingSet, similar, e.recommend.MinJaccardSimilarity)
	content := e.contentSignal(ctx, ho, catalog, trainingSet)

	// Profile is recomputed from training data only, never read from
	// storage, so the stored profile cannot leak holdout behavior.
	stats := trainingStats(ho.training)
	profile := e.classifier.Profile(ho.userID, personality.History{
		Orders:       ho.training,
		Reviews:      ho.history.Reviews,
		Interactions: ho.history.Interactions,
		Stats:        stats,
		Platform:     platform,
	}, time.Now().UTC())

	maxK := 0
	for _, k := range kValues {
		if k > maxK {
			maxK = k
		}
	}

	result := e.engine.Recommend(recommend.Inputs{
		UserID:         ho.userID,
		Profile:        &profile,
		Orders:         ho.training,
		Wishlist:       ho.history.Wishlist,
		Reviews:        ho.history.Reviews,
		Interactions:   ho.history.Interactions,
		Collaborative:  collaborative,
		ContentSimilar: content,
		Catalog:        catalog,
		Now:            time.Now().UTC(),
	}, recommend.Options{Limit: maxK, Alpha: &alpha})

	metrics := make(map[int]types.EvaluationMetrics, len(kValues))
	for _, k := range kValues {
		metrics[k] = MetricsAtK(result.Items, ho.holdoutIDs, k)
	}
	return metrics, nil
}

// contentSignal rebuilds the content channel from training data only so the
// preference text never sees a holdout purchase. Backend failure degrades to
// no signal, matching live serving. Holdout products stay eligible; they are
// exactly what the replay is trying to recover.
func (e *Evaluator) contentSignal(ctx context.Context, ho holdout, catalog []types.Product, trainingSet map[int64]struct{}) []recommend.ScoredProduct {
	byID := make(map[int64]types.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	var bought, viewed []types.Product
	for _, o := range ho.training {
		if p, ok := byID[o.ProductID]; ok {
			bought = append(bought, p)
		}
	}
	for _, in := range ho.history.Interactions {
		if in.Type != types.InteractionView {
			continue
		}
		if p, ok := byID[in.ProductID]; ok {
			viewed = append(viewed, p)
		}
	}

	text := embedding.PreferenceText(bought, viewed, ho.history.Reviews)
	if text == "" {
		return nil
	}

	matches, err := e.data.PreferenceMatches(ctx, text, contentCandidates)
	if err != nil {
		e.log.Warn("content signal unavailable", "user_id", ho.userID, "error", err)
		return nil
	}

	var out []recommend.ScoredProduct
	for _, m := range matches {
		if _, owned := trainingSet[m.ProductID]; owned {
			continue
		}
		p, ok := byID[m.ProductID]
		if !ok {
			continue
		}
		out = append(out, recommend.ScoredProduct{Product: p, Score: float64(m.Score)})
	}
	return out
}

// MetricsAtK computes precision, recall, and F1 for the top k items against
// the holdout set.
func MetricsAtK(items []types.RecommendedItem, holdoutIDs map[int64]struct{}, k int) types.EvaluationMetrics {
	if k <= 0 {
		return types.EvaluationMetrics{K: k}
	}

	top := items
	if len(top) > k {
		top = top[:k]
	}
	hits := 0
	for _, item := range top {
		if _, ok := holdoutIDs[item.ProductID]; ok {
			hits++
		}
	}

	precision := float64(hits) / float64(k)
	var recall float64
	if len(holdoutIDs) > 0 {
		recall = float64(hits) / float64(len(holdoutIDs))
	}
	var f1 float64
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return types.EvaluationMetrics{K: k, Precision: precision, Recall: recall, F1: f1}
}

// Evaluate runs the harness at one alpha across all eligible users, in
// parallel up to the configured limit, and averages per-K metrics over the
// users that qualified.
func (e *Evaluator) Evaluate(ctx context.Context, alpha float64) (types.EvaluationReport, error) {
	userIDs, err := e.data.EligibleUserIDs(ctx, e.cfg.MinPurchases, e.cfg.MaxUsers)
	if err != nil {
		return types.EvaluationReport{}, fmt.Errorf("listing eligible users: %w", err)
	}
	catalog, err := e.data.CatalogSample(ctx, e.recommend.CatalogSampleSize)
	if err != nil {
		return types.EvaluationReport{}, fmt.Errorf("loading catalog sample: %w", err)
	}
	platform, err := e.data.PlatformStats(ctx)
	if err != nil {
		return types.EvaluationReport{}, fmt.Errorf("loading platform stats: %w", err)
	}

	e.log.Info("evaluation started",
		"alpha", alpha,
		"eligible_users", len(userIDs),
		"k_values", e.cfg.KValues,
	)

	var mu sync.Mutex
	sums := make(map[int]*types.EvaluationMetrics, len(e.cfg.KValues))
	for _, k := range e.cfg.KValues {
		sums[k] = &types.EvaluationMetrics{K: k}
	}
	evaluated := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.cfg.Parallelism, 1))

	for _, userID := range userIDs {
		g.Go(func() error {
			// A cancelled run stops; a single bad user does not. Their
			// failure is logged and the aggregate covers everyone else.
			if err := gctx.Err(); err != nil {
				return err
			}
			history, err := e.data.UserHistory(gctx, userID)
			if err != nil {
				e.log.Warn("skipping user, history load failed", "user_id", userID, "error", err)
				return nil
			}
			ho, ok := e.split(userID, history)
			if !ok {
				return nil
			}
			userMetrics, err := e.evaluateUser(gctx, ho, alpha, e.cfg.KValues, catalog, platform)
			if err != nil {
				e.log.Warn("skipping user, evaluation failed", "user_id", userID, "error", err)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			evaluated++
			for k, m := range userMetrics {
				sums[k].Precision += m.Precision
				sums[k].Recall += m.Recall
				sums[k].F1 += m.F1
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.EvaluationReport{}, err
	}

	report := types.EvaluationReport{
		Alpha:          alpha,
		UsersEvaluated: evaluated,
		Metrics:        make(map[int]types.EvaluationMetrics, len(sums)),
		HoldoutSize:    e.cfg.HoldoutSize,
		MinPurchases:   e.cfg.MinPurchases,
	}
	for k, sum := range sums {
		m := types.EvaluationMetrics{K: k}
		if evaluated > 0 {
			m.Precision = sum.Precision / float64(evaluated)
			m.Recall = sum.Recall / float64(evaluated)
			m.F1 = sum.F1 / float64(evaluated)
		}
		report.Metrics[k] = m
	}

	e.log.Info("evaluation finished", "alpha", alpha, "users_evaluated", evaluated)
	return report, nil
}

// Sweep evaluates each alpha in turn and returns one report per value.
func (e *Evaluator) Sweep(ctx context.Context, alphas []float64) ([]types.EvaluationReport, error) {
	reports := make([]types.EvaluationReport, 0, len(alphas))
	for _, alpha := range alphas {
		report, err := e.Evaluate(ctx, alpha)
		if err != nil {
			return nil, fmt.Errorf("evaluating alpha %.2f: %w", alpha, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// trainingStats rebuilds purchase aggregates from the training slice so the
// classifier never sees holdout orders.
func trainingStats(orders []types.OrderLine) types.PurchaseStats {
	stats := types.PurchaseStats{TotalOrders: len(orders)}
	if len(orders) == 0 {
		return stats
	}

	categories := make(map[int64]struct{})
	var priceSum float64
	first, last := orders[0].OrderedAt, orders[0].OrderedAt
	for _, o := range orders {
		priceSum += o.Price
		if o.CategoryID != 0 {
			categories[o.CategoryID] = struct{}{}
		}
		if o.OrderedAt.Before(first) {
			first = o.OrderedAt
		}
		if o.OrderedAt.After(last) {
			last = o.OrderedAt
		}
	}
	stats.AvgItemPrice = priceSum / float64(len(orders))
	stats.UniqueCategories = len(categories)
	stats.FirstPurchase = &first
	stats.LastPurchase = &last
	return stats
}
