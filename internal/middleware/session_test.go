package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/portal-auth/authpage/internal/session"
)

func setupProtectedApp(tokens *session.Tokens) *fiber.App {
	app := fiber.New()
	app.Use(RequestID(), BrowserSession(false, time.Hour))
	app.Get("/navigation", RequireSession(tokens, "/auth"), func(c *fiber.Ctx) error {
		return c.SendString(UserIDFrom(c))
	})
	return app
}

func TestRequireSessionRedirectsBrowsers(t *testing.T) {
	app := setupProtectedApp(session.NewTokens("secret", time.Hour, "authpage"))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/navigation", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusSeeOther || resp.Header.Get(fiber.HeaderLocation) != "/auth" {
		t.Fatalf("expected redirect to /auth, got %d %s", resp.StatusCode, resp.Header.Get(fiber.HeaderLocation))
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestRequireSessionAcceptsCookieAndBearer(t *testing.T) {
	tokens := session.NewTokens("secret", time.Hour, "authpage")
	app := setupProtectedApp(tokens)
	signed, _, err := tokens.Issue("u-1", "ada@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/navigation", nil)
	req.Header.Set(fiber.HeaderCookie, SessionCookie+"="+signed)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("cookie: expected 200, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(fiber.MethodGet, "/navigation", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+signed)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("bearer: expected 200, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(fiber.MethodGet, "/navigation", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+signed+"x")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("tampered bearer: expected 401, got %d", resp.StatusCode)
	}
}

func TestBrowserSessionKeepsValidCookie(t *testing.T) {
	app := fiber.New()
	app.Use(BrowserSession(false, time.Hour))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(SessionIDFrom(c)) })

	const sid = "6f1f7a3c-2b1d-4f5e-9c1a-7d2e3f4a5b6c"
	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderCookie, BrowserSessionCookie+"="+sid)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != sid {
		t.Fatalf("expected session id %s, got %s", sid, body)
	}

	req = httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderCookie, BrowserSessionCookie+"=forged")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	if string(body) == "forged" || len(body) == 0 {
		t.Fatalf("invalid session ids must be replaced, got %q", body)
	}
}
