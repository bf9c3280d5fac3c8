package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/shoprank/internal/personalization"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, time.Hour, cfg.Redis.ProductTTL)
	assert.False(t, cfg.Neo4j.Enabled)
	assert.Equal(t, "behavior-events", cfg.Kafka.Topics.BehaviorEvents)
	assert.Equal(t, "order-events-dlq", cfg.Kafka.Topics.OrderEventsDLQ)
	assert.Equal(t, time.Hour, cfg.Personalization.RefreshInterval)
	assert.Equal(t, 2*time.Minute, cfg.Personalization.BuildTimeout)
	assert.Equal(t, 10, cfg.Personalization.DefaultLimit)
	assert.Equal(t, time.Minute, cfg.Personalization.RateLimit.Window)
	assert.Equal(t, 5*time.Minute, cfg.Personalization.SimilarCacheTTL)
}

func TestLoad_WeightsMatchDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, personalization.DefaultWeights(), cfg.Personalization.Weights)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("PERSONALIZATION_WEIGHTS_RANK_TEXT_RELEVANCE", "0.5")
	t.Setenv("PERSONALIZATION_WEIGHTS_BEHAVIOR_PURCHASE", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 0.5, cfg.Personalization.Weights.Rank.TextRelevance)
	assert.Equal(t, 8.0, cfg.Personalization.Weights.BehaviorWeight("purchase"))
	assert.Equal(t, 1.0, cfg.Personalization.Weights.BehaviorWeight("view"))
}
