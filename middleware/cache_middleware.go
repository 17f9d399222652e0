package middleware

import (
	"crypto/sha1"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// ResponseCache serves GET responses from Redis for a short TTL. Cache
// failures fall through to the handler; a cold or absent Redis only costs the
// speedup, never correctness. Listings are cached briefly enough that slot
// state converges on the next expiry.
func ResponseCache(rdb *redis.Client, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil || c.Method() != fiber.MethodGet {
			return c.Next()
		}

		sum := sha1.Sum([]byte(c.OriginalURL()))
		key := fmt.Sprintf("cache:%x", sum[:])

		if cached, err := rdb.Get(c.UserContext(), key).Bytes(); err == nil {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			c.Set("X-Cache", "HIT")
			return c.Send(cached)
		}

		if err := c.Next(); err != nil {
			return err
		}

		if c.Response().StatusCode() == fiber.StatusOK {
			body := make([]byte, len(c.Response().Body()))
			copy(body, c.Response().Body())
			if err := rdb.Set(c.UserContext(), key, body, ttl).Err(); err == nil {
				c.Set("X-Cache", "MISS")
			}
		}
		return nil
	}
}
