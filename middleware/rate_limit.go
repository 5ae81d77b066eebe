package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"signage-server/services"
)

// RateLimit gates a route class with the given sliding-window limiter,
// keyed by client IP. Rejections carry Retry-After and the usual
// X-RateLimit-* headers.
func RateLimit(limiter *services.RateLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res := limiter.Allow(c.IP())

		c.Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			retryAfter := time.Until(res.ResetAt)
			if retryAfter < 0 {
				retryAfter = 0
			}
			seconds := int(retryAfter.Seconds()) + 1
			c.Set("Retry-After", strconv.Itoa(seconds))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":               "rate_limited",
				"message":             limiter.Message(),
				"retry_after_seconds": seconds,
			})
		}
		return c.Next()
	}
}
