package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/temcen/shoprank/internal/personalization"
)

type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Neo4j           Neo4jConfig           `mapstructure:"neo4j"`
	Kafka           KafkaConfig           `mapstructure:"kafka"`
	Logging         LoggingConfig         `mapstructure:"logging"`
	Personalization PersonalizationConfig `mapstructure:"personalization"`
	Monitoring      MonitoringConfig      `mapstructure:"monitoring"`
	Security        SecurityConfig        `mapstructure:"security"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	URL        string        `mapstructure:"url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
	ProductTTL time.Duration `mapstructure:"product_ttl"`
}

type Neo4jConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	GroupID      string        `mapstructure:"group_id"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	Topics       struct {
		BehaviorEvents string `mapstructure:"behavior_events"`
		OrderEvents    string `mapstructure:"order_events"`
		OrderEventsDLQ string `mapstructure:"order_events_dlq"`
	} `mapstructure:"topics"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PersonalizationConfig struct {
	RefreshInterval time.Duration           `mapstructure:"refresh_interval"`
	BuildTimeout    time.Duration           `mapstructure:"build_timeout"`
	DefaultLimit    int                     `mapstructure:"default_limit"`
	MaxLimit        int                     `mapstructure:"max_limit"`
	SuggestionLimit int                     `mapstructure:"suggestion_limit"`
	SimilarCacheTTL time.Duration           `mapstructure:"similar_cache_ttl"`
	RateLimit       RateLimitConfig         `mapstructure:"rate_limit"`
	Weights         personalization.Weights `mapstructure:"weights"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Environment variable overrides
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.url", "postgres://localhost:5432/shoprank?sslmode=disable")
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.max_idle_time", "15m")
	viper.SetDefault("database.max_lifetime", "1h")
	viper.SetDefault("database.connect_timeout", "10s")

	// Redis defaults
	viper.SetDefault("redis.url", "localhost:6379")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.timeout", "5s")
	viper.SetDefault("redis.product_ttl", "1h")

	// Neo4j defaults
	viper.SetDefault("neo4j.enabled", false)
	viper.SetDefault("neo4j.url", "bolt://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.batch_size", 100)
	viper.SetDefault("neo4j.flush_interval", "5s")

	// Kafka defaults
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.group_id", "shoprank")
	viper.SetDefault("kafka.max_retries", 3)
	viper.SetDefault("kafka.retry_backoff", "1s")
	viper.SetDefault("kafka.topics.behavior_events", "behavior-events")
	viper.SetDefault("kafka.topics.order_events", "order-events")
	viper.SetDefault("kafka.topics.order_events_dlq", "order-events-dlq")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Personalization defaults
	viper.SetDefault("personalization.refresh_interval", "1h")
	viper.SetDefault("personalization.build_timeout", "2m")
	viper.SetDefault("personalization.default_limit", 10)
	viper.SetDefault("personalization.max_limit", 100)
	viper.SetDefault("personalization.suggestion_limit", 8)
	viper.SetDefault("personalization.similar_cache_ttl", "5m")
	viper.SetDefault("personalization.rate_limit.enabled", true)
	viper.SetDefault("personalization.rate_limit.requests", 600)
	viper.SetDefault("personalization.rate_limit.window", "1m")
	setWeightDefaults(personalization.DefaultWeights())

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")

	// Security defaults
	viper.SetDefault("security.cors.allowed_origins", []string{"*"})
	viper.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	viper.SetDefault("security.cors.allowed_headers", []string{"*"})
}

// setWeightDefaults registers every weight individually so each one can be
// overridden from the environment.
func setWeightDefaults(w personalization.Weights) {
	const prefix = "personalization.weights."

	for action, weight := range w.Behavior {
		viper.SetDefault(prefix+"behavior."+action, weight)
	}

	viper.SetDefault(prefix+"interaction.color", w.Interaction.Color)
	viper.SetDefault(prefix+"interaction.feature", w.Interaction.Feature)

	viper.SetDefault(prefix+"recommend.category", w.Recommend.Category)
	viper.SetDefault(prefix+"recommend.brand", w.Recommend.Brand)
	viper.SetDefault(prefix+"recommend.price_bucket", w.Recommend.PriceBucket)
	viper.SetDefault(prefix+"recommend.rating", w.Recommend.Rating)
	viper.SetDefault(prefix+"recommend.popularity", w.Recommend.Popularity)
	viper.SetDefault(prefix+"recommend.popularity_cap", w.Recommend.PopularityCap)
	viper.SetDefault(prefix+"recommend.feature_bonus", w.Recommend.FeatureBonus)
	viper.SetDefault(prefix+"recommend.feature_bonus_max", w.Recommend.FeatureBonusMax)

	viper.SetDefault(prefix+"similarity.category", w.Similarity.Category)
	viper.SetDefault(prefix+"similarity.subcategory", w.Similarity.Subcategory)
	viper.SetDefault(prefix+"similarity.brand", w.Similarity.Brand)
	viper.SetDefault(prefix+"similarity.price_bucket", w.Similarity.PriceBucket)
	viper.SetDefault(prefix+"similarity.features", w.Similarity.Features)

	viper.SetDefault(prefix+"rank.text_relevance", w.Rank.TextRelevance)
	viper.SetDefault(prefix+"rank.user_preference", w.Rank.UserPreference)
	viper.SetDefault(prefix+"rank.popularity", w.Rank.Popularity)
	viper.SetDefault(prefix+"rank.recency", w.Rank.Recency)
	viper.SetDefault(prefix+"rank.rating", w.Rank.Rating)
	viper.SetDefault(prefix+"rank.neutral_preference", w.Rank.NeutralPreference)
	viper.SetDefault(prefix+"rank.default_diversify_factor", w.Rank.DefaultDiversifyFactor)

	viper.SetDefault(prefix+"text.name", w.Text.Name)
	viper.SetDefault(prefix+"text.description", w.Text.Description)
	viper.SetDefault(prefix+"text.category", w.Text.Category)
	viper.SetDefault(prefix+"text.tag", w.Text.Tag)
	viper.SetDefault(prefix+"text.brand", w.Text.Brand)
	viper.SetDefault(prefix+"text.approximate", w.Text.Approximate)
	viper.SetDefault(prefix+"text.prefix_ratio", w.Text.PrefixRatio)
	viper.SetDefault(prefix+"text.min_term_length", w.Text.MinTermLength)

	viper.SetDefault(prefix+"preference.category", w.Preference.Category)
	viper.SetDefault(prefix+"preference.brand", w.Preference.Brand)
	viper.SetDefault(prefix+"preference.price", w.Preference.Price)

	viper.SetDefault(prefix+"popularity.clicks", w.Popularity.Clicks)
	viper.SetDefault(prefix+"popularity.purchases", w.Popularity.Purchases)
	viper.SetDefault(prefix+"popularity.sales", w.Popularity.Sales)
	viper.SetDefault(prefix+"popularity.click_cap", w.Popularity.ClickCap)
	viper.SetDefault(prefix+"popularity.purchase_cap", w.Popularity.PurchaseCap)
	viper.SetDefault(prefix+"popularity.sales_cap", w.Popularity.SalesCap)

	viper.SetDefault(prefix+"recency.age", w.Recency.Age)
	viper.SetDefault(prefix+"recency.last_searched", w.Recency.LastSearched)
	viper.SetDefault(prefix+"recency.age_horizon_days", w.Recency.AgeHorizonDays)
	viper.SetDefault(prefix+"recency.search_horizon_days", w.Recency.SearchHorizonDays)

	viper.SetDefault(prefix+"suggestion.history_base", w.Suggestion.HistoryBase)
	viper.SetDefault(prefix+"suggestion.popular_scale", w.Suggestion.PopularScale)
	viper.SetDefault(prefix+"suggestion.catalog", w.Suggestion.Catalog)
}
