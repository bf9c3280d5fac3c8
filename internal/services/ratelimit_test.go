package services

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/temcen/shoprank/internal/config"
)

func TestRateLimitService_FailsOpenWithoutRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	svc := NewRateLimitService(config.RateLimitConfig{Enabled: true, Requests: 1, Window: time.Minute}, testLogger(), client)
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }

	for i := 0; i < 3; i++ {
		allowed, info := svc.IsAllowed(context.Background(), "10.0.0.1")
		assert.True(t, allowed)
		assert.Equal(t, 1, info.Limit)
		assert.Equal(t, int64(1700000060), info.ResetTime)
	}
}

func TestRateLimitService_Enabled(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	tests := []struct {
		name     string
		cfg      config.RateLimitConfig
		client   *redis.Client
		expected bool
	}{
		{"enabled", config.RateLimitConfig{Enabled: true, Requests: 10}, client, true},
		{"disabled", config.RateLimitConfig{Enabled: false, Requests: 10}, client, false},
		{"zero requests", config.RateLimitConfig{Enabled: true}, client, false},
		{"no client", config.RateLimitConfig{Enabled: true, Requests: 10}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewRateLimitService(tt.cfg, testLogger(), tt.client)
			assert.Equal(t, tt.expected, svc.Enabled())
		})
	}
}
