package middleware

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type cachedResponse struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// ResponseCache caches successful GET responses in Redis for ttl. Only use
// it on routes whose output does not depend on per-user state.
func ResponseCache(redisClient *redis.Client, prefix string, ttl time.Duration, logger *logrus.Logger) gin.HandlerFunc {
	if redisClient == nil || ttl <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		cacheKey := responseCacheKey(prefix, c.Request.URL.Path, c.Request.URL.RawQuery)

		if cached, err := redisClient.Get(c.Request.Context(), cacheKey).Bytes(); err == nil {
			var response cachedResponse
			if err := json.Unmarshal(cached, &response); err == nil {
				c.Header("X-Cache", "HIT")
				c.Data(response.StatusCode, response.ContentType, response.Body)
				c.Abort()
				return
			}
		}

		writer := &cacheWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Header("X-Cache", "MISS")

		c.Next()

		status := writer.Status()
		if status < 200 || status >= 300 || len(writer.body) == 0 {
			return
		}

		data, err := json.Marshal(cachedResponse{
			StatusCode:  status,
			ContentType: writer.Header().Get("Content-Type"),
			Body:        writer.body,
		})
		if err != nil {
			return
		}
		if err := redisClient.Set(c.Request.Context(), cacheKey, data, ttl).Err(); err != nil {
			logger.WithError(err).WithField("cache_key", cacheKey).Warn("Failed to cache response")
		}
	}
}

type cacheWriter struct {
	gin.ResponseWriter
	body []byte
}

func (w *cacheWriter) Write(data []byte) (int, error) {
	w.body = append(w.body, data...)
	return w.ResponseWriter.Write(data)
}

func (w *cacheWriter) WriteString(s string) (int, error) {
	w.body = append(w.body, s...)
	return w.ResponseWriter.WriteString(s)
}

func responseCacheKey(prefix, path, rawQuery string) string {
	hash := md5.Sum([]byte(path + "?" + rawQuery))
	return fmt.Sprintf("%s:%x", prefix, hash)
}
