package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ripple/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

var errNoRedis = errors.New("redis client is nil")

// Limiter is a fixed-window request counter stored in Redis.
type Limiter struct {
	rdb      *redis.Client
	disabled bool
	policy   FailPolicy
}

// NewLimiter builds a limiter. Limiting is disabled for the test and development
// environments so local workflows are not throttled.
func NewLimiter(rdb *redis.Client, env string) *Limiter {
	disabled := env == "" || env == "test" || env == "development"
	return &Limiter{rdb: rdb, disabled: disabled, policy: FailOpen}
}

// WithPolicy returns a copy of the limiter using the given failure policy.
func (l *Limiter) WithPolicy(policy FailPolicy) *Limiter {
	cp := *l
	cp.policy = policy
	return &cp
}

// Allow checks if a resource has exceeded its rate limit.
// Returns true if allowed, false if limit exceeded.
func (l *Limiter) Allow(ctx context.Context, resource, id string, limit int, window time.Duration) (bool, error) {
	if l.disabled {
		return true, nil
	}
	if l.rdb == nil {
		return false, errNoRedis
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		if err := l.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return cnt <= int64(limit), nil
}

// Handler returns a Fiber middleware enforcing `limit` requests per `window` for the named resource.
// It keys by authenticated userID when present, otherwise by remote IP.
func (l *Limiter) Handler(resource string, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var id string
		if uid, ok := c.Locals("userID").(uint); ok {
			id = fmt.Sprintf("user:%d", uid)
		} else {
			id = "ip:" + c.IP()
		}

		allowed, err := l.Allow(c.UserContext(), resource, id, limit, window)
		if err != nil {
			if l.policy == FailClosed {
				observability.Logger.WarnContext(c.UserContext(), "rate limit store unavailable",
					slog.String("resource", resource),
					slog.String("error", err.Error()),
				)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "rate limit unavailable",
				})
			}
			return c.Next()
		}

		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
