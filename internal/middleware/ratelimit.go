package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/vocalsmith/api/pkg/response"
)

type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit creates a rate limiting middleware
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rl.redis == nil {
			return c.Next()
		}

		userID := GetUserID(c)
		if userID == "" {
			userID = c.IP()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, userID)
		ctx := context.Background()

		// Increment counter
		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// If Redis fails, allow the request
			return c.Next()
		}

		// Set expiration on first request
		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))

		return c.Next()
	}
}

// SongsLimit returns a rate limiter for song generation (20 req/hour)
func (rl *RateLimiter) SongsLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("songs", maxPerHour, time.Hour)
}

// ImproveLimit returns a rate limiter for regeneration requests (30 req/hour)
func (rl *RateLimiter) ImproveLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("improve", maxPerHour, time.Hour)
}

// VoicesLimit returns a rate limiter for voice listing (30 req/min)
func (rl *RateLimiter) VoicesLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("voices", maxPerMin, time.Minute)
}
