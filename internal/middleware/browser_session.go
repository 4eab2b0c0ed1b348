package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// BrowserSessionCookie identifies a browser across sign-in form requests.
	BrowserSessionCookie = "authpage_sid"

	// LocalSessionID is the Locals key holding the browser session identifier.
	LocalSessionID = "session_id"
)

// BrowserSession makes sure each browser carries a session identifier cookie
// that keys its sign-in form state.
func BrowserSession(secure bool, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies(BrowserSessionCookie)
		if _, err := uuid.Parse(sid); err != nil {
			sid = uuid.NewString()
		}
		c.Cookie(&fiber.Cookie{
			Name:     BrowserSessionCookie,
			Value:    sid,
			Path:     "/",
			Expires:  time.Now().Add(ttl),
			HTTPOnly: true,
			Secure:   secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		c.Locals(LocalSessionID, sid)
		return c.Next()
	}
}

// SessionIDFrom returns the browser session identifier stored by BrowserSession.
func SessionIDFrom(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalSessionID).(string)
	return id
}
