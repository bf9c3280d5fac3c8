package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shoprank/internal/config"
	"github.com/temcen/shoprank/pkg/models"
)

// RateLimitService is a Redis sliding-window limiter for the event
// recording endpoints. It fails open when Redis is unavailable.
type RateLimitService struct {
	config      config.RateLimitConfig
	logger      *logrus.Logger
	redisClient *redis.Client
	now         func() time.Time
}

func NewRateLimitService(cfg config.RateLimitConfig, logger *logrus.Logger, redisClient *redis.Client) *RateLimitService {
	return &RateLimitService{
		config:      cfg,
		logger:      logger,
		redisClient: redisClient,
		now:         time.Now,
	}
}

// Enabled reports whether requests are limited at all.
func (s *RateLimitService) Enabled() bool {
	return s.config.Enabled && s.config.Requests > 0 && s.redisClient != nil
}

func (s *RateLimitService) CheckLimit(ctx context.Context, clientKey string) *models.RateLimitInfo {
	limit := s.config.Requests
	window := s.config.Window

	key := fmt.Sprintf("rate_limit:client:%s", clientKey)

	now := s.now()
	windowStart := now.Add(-window)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	pipe := s.redisClient.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to execute rate limit pipeline")
		return &models.RateLimitInfo{
			Limit:     limit,
			Remaining: limit,
			ResetTime: now.Add(window).Unix(),
		}
	}

	remaining := max(limit-int(countCmd.Val()), 0)

	return &models.RateLimitInfo{
		Limit:     limit,
		Remaining: remaining,
		ResetTime: now.Add(window).Unix(),
	}
}

// IsAllowed counts the request against clientKey's window.
func (s *RateLimitService) IsAllowed(ctx context.Context, clientKey string) (bool, *models.RateLimitInfo) {
	info := s.CheckLimit(ctx, clientKey)
	return info.Remaining > 0, info
}
