package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Cache      CacheConfig      `yaml:"cache"`
	Vector     VectorConfig     `yaml:"vector"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Auth       AuthConfig       `yaml:"auth"`
	Recommend  RecommendConfig  `yaml:"recommend"`
	Filter     FilterConfig     `yaml:"filter"`
	Trending   TrendingConfig   `yaml:"trending"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains platform database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig contains Redis settings and per-volatility TTLs.
// Profiles change slowest and live longest; recommendation lists change with
// every interaction and live shortest.
type CacheConfig struct {
	Addr               string   `yaml:"addr"`
	Password           string   `yaml:"-"` // env-only, never in YAML
	DB                 int      `yaml:"db"`
	TTLProfiles        Duration `yaml:"ttl_profiles"`
	TTLRecommendations Duration `yaml:"ttl_recommendations"`
	TTLTrending        Duration `yaml:"ttl_trending"`
	TTLSimilarity      Duration `yaml:"ttl_similarity"`
}

// VectorConfig contains vector search settings.
type VectorConfig struct {
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	Collection string   `yaml:"collection"`
	Timeout    Duration `yaml:"timeout"`
}

// EmbeddingConfig contains embedding service settings.
type EmbeddingConfig struct {
	APIKey     string   `yaml:"-"` // env-only, never in YAML
	Model      string   `yaml:"model"`
	Dimensions int      `yaml:"dimensions"`
	Timeout    Duration `yaml:"timeout"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// RecommendConfig contains the scoring pipeline tunables.
type RecommendConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`

	// Alpha blending: score = alpha*personality + (1-alpha)*behavioral.
	AlphaDefault               float64 `yaml:"alpha_default"`
	AlphaSparseCollabThreshold float64 `yaml:"alpha_sparse_collab_threshold"`
	AlphaSparseCollabBoost     float64 `yaml:"alpha_sparse_collab_boost"`
	AlphaNewUserThreshold      int     `yaml:"alpha_new_user_threshold"`
	AlphaNewUserBoost          float64 `yaml:"alpha_new_user_boost"`

	// Exponential half-lives in days per signal family.
	DecayHalfLifePurchases float64 `yaml:"decay_half_life_purchases"`
	DecayHalfLifeViews     float64 `yaml:"decay_half_life_views"`
	DecayHalfLifeWishlist  float64 `yaml:"decay_half_life_wishlist"`
	DecayHalfLifeReviews   float64 `yaml:"decay_half_life_reviews"`

	// Additive boosts and penalties applied after blending.
	WishlistBoost            float64 `yaml:"wishlist_boost"`
	ViewBoost                float64 `yaml:"view_boost"`
	SessionBoost             float64 `yaml:"session_boost"`
	CategoryAffinityTopN     int     `yaml:"category_affinity_top_n"`
	CategoryAffinityBoost    float64 `yaml:"category_affinity_boost"`
	CategoryAffinityTopBoost float64 `yaml:"category_affinity_top_boost"`
	PricePreferenceBoost     float64 `yaml:"price_preference_boost"`
	PricePreferencePenalty   float64 `yaml:"price_preference_penalty"`
	NegativeReviewPenalty    float64 `yaml:"negative_review_penalty"`

	// Diversity selection.
	DiversityMaxPerCategory int `yaml:"diversity_max_per_category"`
	DiversityMinCategories  int `yaml:"diversity_min_categories"`

	// Collaborative filtering.
	MinJaccardSimilarity float64 `yaml:"min_jaccard_similarity"`

	// How many catalog products are pulled per request for scoring.
	CatalogSampleSize int `yaml:"catalog_sample_size"`
}

// FilterConfig contains filter-signal extraction settings.
type FilterConfig struct {
	SignalWeight           float64 `yaml:"signal_weight"`
	MinSamples             int     `yaml:"min_samples"`
	CategoryMaxWeight      int     `yaml:"category_max_weight"`
	CategoryAffinityWeight float64 `yaml:"category_affinity_weight"`
}

// TrendingConfig contains trending detector windows and the background
// refresh that keeps the trending cache warm.
type TrendingConfig struct {
	RecentDays      int      `yaml:"recent_days"`
	BaselineDays    int      `yaml:"baseline_days"`
	MinActivity     int      `yaml:"min_activity"`
	RefreshInterval Duration `yaml:"refresh_interval"`
	RefreshLimit    int      `yaml:"refresh_limit"`
}

// EvaluationConfig contains temporal-holdout evaluation settings.
type EvaluationConfig struct {
	MinPurchases int   `yaml:"min_purchases"`
	HoldoutSize  int   `yaml:"holdout_size"`
	MaxUsers     int   `yaml:"max_users"`
	KValues      []int `yaml:"k_values"`
	Parallelism  int   `yaml:"parallelism"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("AFFINITY_CONFIG_PATH", "config/affinity.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used by tests and when a config path is given explicitly.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/affinity.db",
		},
		Cache: CacheConfig{
			Addr:               "localhost:6379",
			DB:                 0,
			TTLProfiles:        Duration(5 * time.Minute),
			TTLRecommendations: Duration(1 * time.Minute),
			TTLTrending:        Duration(10 * time.Minute),
			TTLSimilarity:      Duration(30 * time.Minute),
		},
		Vector: VectorConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "products",
			Timeout:    Duration(3 * time.Second),
		},
		Embedding: EmbeddingConfig{
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			Timeout:    Duration(5 * time.Second),
		},
		Recommend: RecommendConfig{
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
		Filter: FilterConfig{
			SignalWeight:           0.3,
			MinSamples:             3,
			CategoryMaxWeight:      5,
			CategoryAffinityWeight: 1.5,
		},
		Trending: TrendingConfig{
			RecentDays:      7,
			BaselineDays:    30,
			MinActivity:     1,
			RefreshInterval: Duration(10 * time.Minute),
			RefreshLimit:    20,
		},
		Evaluation: EvaluationConfig{
			MinPurchases: 10,
			HoldoutSize:  5,
			MaxUsers:     100,
			KValues:      []int{5, 10, 20},
			Parallelism:  4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("AFFINITY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("AFFINITY_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("AFFINITY_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("AFFINITY_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("AFFINITY_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Cache
	if v := os.Getenv("AFFINITY_REDIS_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("AFFINITY_REDIS_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("AFFINITY_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = n
		}
	}

	// Vector search
	if v := os.Getenv("AFFINITY_QDRANT_HOST"); v != "" {
		cfg.Vector.Host = v
	}
	if v := os.Getenv("AFFINITY_QDRANT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vector.Port = n
		}
	}
	if v := os.Getenv("AFFINITY_QDRANT_COLLECTION"); v != "" {
		cfg.Vector.Collection = v
	}

	// Embedding (OPENAI_API_KEY is industry convention)
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("AFFINITY_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}

	// Auth
	if v := os.Getenv("AFFINITY_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Scoring
	if v := os.Getenv("AFFINITY_ALPHA_DEFAULT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Recommend.AlphaDefault = f
		}
	}

	// Evaluation
	if v := os.Getenv("AFFINITY_EVAL_MIN_PURCHASES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Evaluation.MinPurchases = n
		}
	}
	if v := os.Getenv("AFFINITY_EVAL_HOLDOUT_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Evaluation.HoldoutSize = n
		}
	}

	// Log
	if v := os.Getenv("AFFINITY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("AFFINITY_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set and that tunables
// stay inside their documented ranges.
// In dev mode (AFFINITY_DEV_MODE=true), API key validation is skipped.
func (c *Config) validate() error {
	if c.Recommend.AlphaDefault < 0 || c.Recommend.AlphaDefault > 1 {
		return fmt.Errorf("alpha_default %v outside [0,1]", c.Recommend.AlphaDefault)
	}
	if c.Recommend.DiversityMaxPerCategory < 1 {
		return errors.New("diversity_max_per_category must be at least 1")
	}
	if c.Filter.MinSamples < 1 {
		return errors.New("filter min_samples must be at least 1")
	}
	if c.Evaluation.HoldoutSize < 1 || c.Evaluation.HoldoutSize >= c.Evaluation.MinPurchases {
		return fmt.Errorf("holdout_size %d must be in [1, min_purchases)", c.Evaluation.HoldoutSize)
	}
	if c.Trending.BaselineDays <= c.Trending.RecentDays {
		return fmt.Errorf("trending baseline_days %d must exceed recent_days %d",
			c.Trending.BaselineDays, c.Trending.RecentDays)
	}
	if c.Trending.RefreshInterval <= 0 {
		return errors.New("trending refresh_interval must be positive")
	}
	if c.Vector.Timeout <= 0 {
		return errors.New("vector timeout must be positive")
	}
	if c.Embedding.Timeout <= 0 {
		return errors.New("embedding timeout must be positive")
	}

	// Dev mode bypasses API key validation
	if os.Getenv("AFFINITY_DEV_MODE") == "true" {
		return nil
	}

	if c.Embedding.APIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	if c.Auth.APIKey == "" {
		return errors.New("AFFINITY_API_KEY is required")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
