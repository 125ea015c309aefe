package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiterConfig defines rate limiting rules
type RateLimiterConfig struct {
	Prefix      string        // Key namespace, one per guarded route group
	MaxRequests int           // Maximum requests allowed in the window
	Window      time.Duration // Fixed window length
	BlockTime   time.Duration // How long an IP stays blocked after exceeding the limit
}

// RateLimiter provides IP-based fixed-window rate limiting using Redis
type RateLimiter struct {
	redis  *redis.Client
	config RateLimiterConfig
}

func NewRateLimiter(redisClient *redis.Client, config RateLimiterConfig) *RateLimiter {
	if config.Prefix == "" {
		config.Prefix = "ratelimit"
	}
	return &RateLimiter{
		redis:  redisClient,
		config: config,
	}
}

// Middleware fails open: a Redis outage never locks users out of login.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		allowed, retryAfter, err := rl.CheckLimit(c.Request.Context(), clientIP)
		if err != nil {
			logger.Log.Warn("Rate limiter unavailable",
				zap.String("ip", clientIP),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if !allowed {
			seconds := int(retryAfter.Seconds())
			logger.Log.Warn("Rate limit exceeded",
				zap.String("ip", clientIP),
				zap.String("path", c.FullPath()),
				zap.Int("retry_after", seconds),
			)
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"kind":    "RATE_LIMITED",
					"message": "Too many requests. Please try again later.",
				},
			})
			return
		}

		c.Next()
	}
}

// CheckLimit counts the request in the current window.
// Returns: (allowed, retryAfter, error)
func (rl *RateLimiter) CheckLimit(ctx context.Context, ip string) (bool, time.Duration, error) {
	blockKey := fmt.Sprintf("%s:block:%s", rl.config.Prefix, ip)
	if ttl, err := rl.redis.TTL(ctx, blockKey).Result(); err != nil {
		return false, 0, err
	} else if ttl > 0 {
		return false, ttl, nil
	}

	key := fmt.Sprintf("%s:%s", rl.config.Prefix, ip)
	count, err := rl.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}

	// Start the window on the first hit
	if count == 1 {
		if err := rl.redis.Expire(ctx, key, rl.config.Window).Err(); err != nil {
			return false, 0, err
		}
	}

	if count <= int64(rl.config.MaxRequests) {
		return true, 0, nil
	}

	if rl.config.BlockTime > 0 {
		if err := rl.redis.Set(ctx, blockKey, 1, rl.config.BlockTime).Err(); err != nil {
			return false, 0, err
		}
		return false, rl.config.BlockTime, nil
	}

	ttl, err := rl.redis.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		ttl = rl.config.Window
	}
	return false, ttl, nil
}

// Reset clears the counters for ip, e.g. after a successful login.
func (rl *RateLimiter) Reset(ctx context.Context, ip string) error {
	return rl.redis.Del(ctx,
		fmt.Sprintf("%s:%s", rl.config.Prefix, ip),
		fmt.Sprintf("%s:block:%s", rl.config.Prefix, ip),
	).Err()
}
