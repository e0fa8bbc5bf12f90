package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/hyperengineering/affinity/internal/types"
)

// similarUsersLimit caps how many neighbor users feed collaborative scoring.
const similarUsersLimit = 50

// SQLiteStore is the SQLite-backed implementation of Store.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at dbPath, applies pragmas,
// and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordInteraction appends one interaction. The ID is assigned here; filter
// context, when present, is stored as JSON alongside the row.
func (s *SQLiteStore) RecordInteraction(ctx context.Context, in types.Interaction) (types.Interaction, error) {
	in.ID = ulid.Make().String()
	if in.OccurredAt.IsZero() {
		in.OccurredAt = time.Now().UTC()
	}

	var filterJSON sql.NullString
	if in.Filter != nil {
		data, err := json.Marshal(in.Filter)
		if err != nil {
			return types.Interaction{}, fmt.Errorf("marshal filter context: %w", err)
		}
		filterJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, user_id, product_id, type, occurred_at, duration_seconds, filter_context)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, in.ID, in.UserID, in.ProductID, string(in.Type), in.OccurredAt.UTC().Format(time.RFC3339), in.DurationSeconds, filterJSON)
	if err != nil {
		return types.Interaction{}, fmt.Errorf("insert interaction: %w", err)
	}
	return in, nil
}

// RecordOrderLine appends one purchased line item.
func (s *SQLiteStore) RecordOrderLine(ctx context.Context, userID int64, line types.OrderLine) error {
	if line.OrderedAt.IsZero() {
		line.OrderedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_items (id, user_id, product_id, category_id, price, original_price, discounted, ordered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ulid.Make().String(), userID, line.ProductID, line.CategoryID, line.Price, line.OriginalPrice, boolToInt(line.Discounted), line.OrderedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert order line: %w", err)
	}
	return nil
}

// RecordReview appends one review.
func (s *SQLiteStore) RecordReview(ctx context.Context, userID int64, review types.Review) error {
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (id, user_id, product_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ulid.Make().String(), userID, review.ProductID, review.Rating, review.Comment, review.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// AddWishlistItem records a wishlist addition, replacing any previous entry
// for the same product.
func (s *SQLiteStore) AddWishlistItem(ctx context.Context, userID int64, item types.WishlistItem) error {
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO wishlist_items (user_id, product_id, category_id, added_at)
		VALUES (?, ?, ?, ?)
	`, userID, item.ProductID, item.CategoryID, item.AddedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert wishlist item: %w", err)
	}
	return nil
}

// RemoveWishlistItem deletes a wishlist entry. Removing an absent entry is
// not an error.
func (s *SQLiteStore) RemoveWishlistItem(ctx context.Context, userID, productID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM wishlist_items WHERE user_id = ? AND product_id = ?`, userID, productID)
	if err != nil {
		return fmt.Errorf("delete wishlist item: %w", err)
	}
	return nil
}

// RecordFeedback stores one feedback action. Repeating the same action for
// the same product reports ErrDuplicateFeedback.
func (s *SQLiteStore) RecordFeedback(ctx context.Context, userID, productID int64, action types.FeedbackAction, reason string) error {
	var dbReason sql.NullString
	if reason != "" {
		dbReason = sql.NullString{String: reason, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recommendation_feedback (id, user_id, product_id, action, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ulid.Make().String(), userID, productID, string(action), dbReason, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateFeedback
		}
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// DeleteFeedback removes all feedback a user recorded for a product.
// ErrNotFound when nothing was there to remove.
func (s *SQLiteStore) DeleteFeedback(ctx context.Context, userID, productID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM recommendation_feedback WHERE user_id = ? AND product_id = ?`, userID, productID)
	if err != nil {
		return fmt.Errorf("delete feedback: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// NegativeFeedbackIDs returns the products this user explicitly rejected.
func (s *SQLiteStore) NegativeFeedbackIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT product_id FROM recommendation_feedback
		WHERE user_id = ? AND action IN (?, ?)
	`, userID, string(types.FeedbackNotInterested), string(types.FeedbackAlreadyOwn))
	if err != nil {
		return nil, fmt.Errorf("query negative feedback: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan negative feedback: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UserInteractions returns a user's interactions, most recent first.
func (s *SQLiteStore) UserInteractions(ctx context.Context, userID int64, limit int) ([]types.Interaction, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, product_id, type, occurred_at, duration_seconds, filter_context
		FROM interactions WHERE user_id = ?
		ORDER BY occurred_at DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []types.Interaction
	for rows.Next() {
		var (
			in         types.Interaction
			typ        string
			occurredAt string
			filterJSON sql.NullString
		)
		if err := rows.Scan(&in.ID, &in.UserID, &in.ProductID, &typ, &occurredAt, &in.DurationSeconds, &filterJSON); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.Type = types.InteractionType(typ)
		if in.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		if filterJSON.Valid && filterJSON.String != "" {
			var fc types.FilterContext
			if err := json.Unmarshal([]byte(filterJSON.String), &fc); err != nil {
				return nil, fmt.Errorf("unmarshal filter context: %w", err)
			}
			in.Filter = &fc
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// UserOrders returns all purchased line items for a user.
func (s *SQLiteStore) UserOrders(ctx context.Context, userID int64) ([]types.OrderLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, category_id, price, original_price, discounted, ordered_at
		FROM order_items WHERE user_id = ?
		ORDER BY ordered_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []types.OrderLine
	for rows.Next() {
		var (
			line       types.OrderLine
			discounted int
			orderedAt  string
		)
		if err := rows.Scan(&line.ProductID, &line.CategoryID, &line.Price, &line.OriginalPrice, &discounted, &orderedAt); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		line.Discounted = discounted != 0
		if line.OrderedAt, err = parseTime(orderedAt); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// UserReviews returns all reviews a user has written.
func (s *SQLiteStore) UserReviews(ctx context.Context, userID int64) ([]types.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, rating, comment, created_at
		FROM reviews WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var out []types.Review
	for rows.Next() {
		var (
			r         types.Review
			createdAt string
		)
		if err := rows.Scan(&r.ProductID, &r.Rating, &r.Comment, &createdAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UserWishlist returns a user's current wishlist.
func (s *SQLiteStore) UserWishlist(ctx context.Context, userID int64) ([]types.WishlistItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, category_id, added_at
		FROM wishlist_items WHERE user_id = ?
		ORDER BY added_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query wishlist: %w", err)
	}
	defer rows.Close()

	var out []types.WishlistItem
	for rows.Next() {
		var (
			w       types.WishlistItem
			addedAt string
		)
		if err := rows.Scan(&w.ProductID, &w.CategoryID, &addedAt); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		if w.AddedAt, err = parseTime(addedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// PurchaseStats aggregates a user's order history.
func (s *SQLiteStore) PurchaseStats(ctx context.Context, userID int64) (types.PurchaseStats, error) {
	var (
		stats       types.PurchaseStats
		avgPrice    sql.NullFloat64
		firstStr    sql.NullString
		lastStr     sql.NullString
		uniqueCount sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(price), COUNT(DISTINCT category_id), MIN(ordered_at), MAX(ordered_at)
		FROM order_items WHERE user_id = ?
	`, userID).Scan(&stats.TotalOrders, &avgPrice, &uniqueCount, &firstStr, &lastStr)
	if err != nil {
		return types.PurchaseStats{}, fmt.Errorf("query purchase stats: %w", err)
	}

	if avgPrice.Valid {
		stats.AvgItemPrice = avgPrice.Float64
	}
	if uniqueCount.Valid {
		stats.UniqueCategories = int(uniqueCount.Int64)
	}
	if firstStr.Valid {
		t, err := parseTime(firstStr.String)
		if err != nil {
			return types.PurchaseStats{}, err
		}
		stats.FirstPurchase = &t
	}
	if lastStr.Valid {
		t, err := parseTime(lastStr.String)
		if err != nil {
			return types.PurchaseStats{}, err
		}
		stats.LastPurchase = &t
	}
	return stats, nil
}

// UpsertProduct inserts or replaces one catalog product.
func (s *SQLiteStore) UpsertProduct(ctx context.Context, p types.Product) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO products (id, name, category_id, category_name, price, rating, is_new, on_sale, popularity, in_stock, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.CategoryID, p.CategoryName, p.Price, p.Rating, boolToInt(p.IsNew), boolToInt(p.OnSale), p.Popularity, boolToInt(p.InStock), p.ImageURL, p.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// Product returns one catalog product, or ErrNotFound.
func (s *SQLiteStore) Product(ctx context.Context, id int64) (*types.Product, error) {
	row := s.db.QueryRowContext(ctx, productColumns+` WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

const productColumns = `
	SELECT id, name, category_id, category_name, price, rating, is_new, on_sale, popularity, in_stock, image_url, created_at
	FROM products`

// CatalogSample returns up to limit in-stock products, most popular first,
// as the candidate pool for scoring.
func (s *SQLiteStore) CatalogSample(ctx context.Context, limit int) ([]types.Product, error) {
	rows, err := s.db.QueryContext(ctx, productColumns+`
		WHERE in_stock = 1 ORDER BY popularity DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query catalog sample: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

// PopularProducts returns the most popular in-stock products for fallback.
func (s *SQLiteStore) PopularProducts(ctx context.Context, limit int) ([]types.Product, error) {
	rows, err := s.db.QueryContext(ctx, productColumns+`
		WHERE in_stock = 1 ORDER BY popularity DESC, rating DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query popular products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

// PlatformStats returns catalog-wide price aggregates.
func (s *SQLiteStore) PlatformStats(ctx context.Context) (types.PlatformStats, error) {
	var avg, maxPrice sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT AVG(price), MAX(price) FROM products`).Scan(&avg, &maxPrice)
	if err != nil {
		return types.PlatformStats{}, fmt.Errorf("query platform stats: %w", err)
	}
	return types.PlatformStats{AvgItemPrice: avg.Float64, MaxItemPrice: maxPrice.Float64}, nil
}

// ProductActivity returns per-product interaction counters for the recent
// window and the baseline window preceding it.
func (s *SQLiteStore) ProductActivity(ctx context.Context, recentDays, baselineDays int) ([]types.ProductActivity, error) {
	now := time.Now().UTC()
	recentStart := now.AddDate(0, 0, -recentDays).Format(time.RFC3339)
	baselineStart := now.AddDate(0, 0, -baselineDays).Format(time.RFC3339)

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.category_id, p.category_name, p.price, p.in_stock,
			SUM(CASE WHEN i.type = ? AND i.occurred_at >= ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN i.type = ? AND i.occurred_at >= ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN i.type = ? AND i.occurred_at >= ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN i.type = ? AND i.occurred_at < ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN i.type = ? AND i.occurred_at < ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN i.type = ? AND i.occurred_at < ? THEN 1 ELSE 0 END)
		FROM products p
		JOIN interactions i ON i.product_id = p.id
		WHERE i.occurred_at >= ?
		GROUP BY p.id
	`,
		string(types.InteractionPurchase), recentStart,
		string(types.InteractionView), recentStart,
		string(types.InteractionWishlistAdd), recentStart,
		string(types.InteractionPurchase), recentStart,
		string(types.InteractionView), recentStart,
		string(types.InteractionWishlistAdd), recentStart,
		baselineStart,
	)
	if err != nil {
		return nil, fmt.Errorf("query product activity: %w", err)
	}
	defer rows.Close()

	var out []types.ProductActivity
	for rows.Next() {
		var (
			a       types.ProductActivity
			inStock int
		)
		if err := rows.Scan(&a.ProductID, &a.Name, &a.CategoryID, &a.CategoryName, &a.Price, &inStock,
			&a.RecentOrders, &a.RecentViews, &a.RecentWishlists,
			&a.BaselineOrders, &a.BaselineViews, &a.BaselineWishlists); err != nil {
			return nil, fmt.Errorf("scan product activity: %w", err)
		}
		a.InStock = inStock != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// SimilarUsersPurchases returns, for users who share at least one purchased
// product with the target user, their full purchased product ID lists.
func (s *SQLiteStore) SimilarUsersPurchases(ctx context.Context, userID int64) (map[int64][]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT o.user_id, o.product_id
		FROM order_items o
		WHERE o.user_id IN (
			SELECT DISTINCT o2.user_id
			FROM order_items o1
			JOIN order_items o2 ON o2.product_id = o1.product_id AND o2.user_id <> o1.user_id
			WHERE o1.user_id = ?
			LIMIT ?
		)
	`, userID, similarUsersLimit)
	if err != nil {
		return nil, fmt.Errorf("query similar users: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64)
	for rows.Next() {
		var uid, pid int64
		if err := rows.Scan(&uid, &pid); err != nil {
			return nil, fmt.Errorf("scan similar user purchase: %w", err)
		}
		out[uid] = append(out[uid], pid)
	}
	return out, rows.Err()
}

// EligibleUserIDs returns users with at least minPurchases order lines, the
// heaviest purchasers first.
func (s *SQLiteStore) EligibleUserIDs(ctx context.Context, minPurchases, maxUsers int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM order_items
		GROUP BY user_id
		HAVING COUNT(*) >= ?
		ORDER BY COUNT(*) DESC, user_id ASC
		LIMIT ?
	`, minPurchases, maxUsers)
	if err != nil {
		return nil, fmt.Errorf("query eligible users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan eligible user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveProfile replaces a user's stored personality profile.
func (s *SQLiteStore) SaveProfile(ctx context.Context, profile types.PersonalityProfile) error {
	dims, err := json.Marshal(profile.Dimensions)
	if err != nil {
		return fmt.Errorf("marshal dimensions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO personality_profiles (user_id, type, dimensions, confidence, data_points, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, profile.UserID, string(profile.Type), string(dims), profile.Confidence, profile.DataPoints, profile.ComputedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// Profile returns a user's stored profile, or ErrNotFound.
func (s *SQLiteStore) Profile(ctx context.Context, userID int64) (*types.PersonalityProfile, error) {
	var (
		p          types.PersonalityProfile
		typ        string
		dims       string
		computedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, type, dimensions, confidence, data_points, computed_at
		FROM personality_profiles WHERE user_id = ?
	`, userID).Scan(&p.UserID, &typ, &dims, &p.Confidence, &p.DataPoints, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}

	p.Type = types.Archetype(typ)
	if err := json.Unmarshal([]byte(dims), &p.Dimensions); err != nil {
		return nil, fmt.Errorf("unmarshal dimensions: %w", err)
	}
	if p.ComputedAt, err = parseTime(computedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*types.Product, error) {
	var (
		p         types.Product
		isNew     int
		onSale    int
		inStock   int
		createdAt string
	)
	err := row.Scan(&p.ID, &p.Name, &p.CategoryID, &p.CategoryName, &p.Price, &p.Rating, &isNew, &onSale, &p.Popularity, &inStock, &p.ImageURL, &createdAt)
	if err != nil {
		return nil, err
	}
	p.IsNew = isNew != 0
	p.OnSale = onSale != 0
	p.InStock = inStock != 0
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProducts(rows *sql.Rows) ([]types.Product, error) {
	var out []types.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
