package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RateLimiter is a fixed-window per-IP limiter for the public auth routes.
func RateLimiter(limit int, window time.Duration) fiber.Handler {
	type bucket struct {
		count int
		start time.Time
	}

	var (
		mu      sync.Mutex
		buckets = make(map[string]*bucket)
	)

	return func(c *fiber.Ctx) error {
		now := time.Now()
		key := c.IP()

		mu.Lock()
		b, ok := buckets[key]
		if !ok || now.Sub(b.start) > window {
			b = &bucket{start: now}
			buckets[key] = b
		}

		if b.count >= limit {
			mu.Unlock()
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "Too many requests, slow down",
			})
		}

		b.count++
		mu.Unlock()

		return c.Next()
	}
}
