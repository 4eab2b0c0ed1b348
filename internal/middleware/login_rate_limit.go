package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	loginRateLimitPrefix = "rl:login:v1:"

	// LoginRateLimitMessage is the message returned to throttled clients.
	LoginRateLimitMessage = "Too many sign-in attempts. Please try again later."
)

// LoginRateLimit limits sign-in attempts per email, or per IP when no email
// is supplied, using Redis if available. Throttled requests are answered by
// onLimit, or with 429 when it is nil.
func LoginRateLimit(cache *redis.Client, maxPerMin int, onLimit func(c *fiber.Ctx, message string) error) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		var req struct {
			Email string `json:"email" form:"email"`
		}
		_ = c.BodyParser(&req)
		subject := strings.ToLower(strings.TrimSpace(req.Email))
		if subject == "" {
			subject = c.IP()
		}
		key := loginRateLimitPrefix + subject
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			if onLimit != nil {
				return onLimit(c, LoginRateLimitMessage)
			}
			return fiber.NewError(http.StatusTooManyRequests, LoginRateLimitMessage)
		}
		return c.Next()
	}
}
