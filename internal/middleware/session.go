package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/portal-auth/authpage/internal/session"
)

const (
	// SessionCookie carries the signed session token of a signed-in user.
	SessionCookie = "authpage_session"

	// LocalUserID is the Locals key holding the signed-in user's identifier.
	LocalUserID = "user_id"
	// LocalUserEmail is the Locals key holding the signed-in user's email.
	LocalUserEmail = "user_email"
)

// RequireSession admits requests carrying a valid session token in the
// session cookie or an Authorization bearer header. Browsers without one are
// redirected to loginPath; other clients get 401.
func RequireSession(tokens *session.Tokens, loginPath string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(SessionCookie)
		bearer := false
		if authz := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			token = strings.TrimSpace(authz[len("Bearer "):])
			bearer = true
		}

		claims, err := tokens.Parse(token)
		if err != nil {
			if !bearer && loginPath != "" && c.Method() == fiber.MethodGet {
				return c.Redirect(loginPath, fiber.StatusSeeOther)
			}
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or missing session")
		}

		c.Locals(LocalUserID, claims.Subject)
		c.Locals(LocalUserEmail, claims.Email)
		return c.Next()
	}
}

// UserIDFrom returns the user identifier stored by RequireSession.
func UserIDFrom(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
