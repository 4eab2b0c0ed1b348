package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/portal-auth/authpage/internal/config"
	"github.com/portal-auth/authpage/internal/logging"
)

func devConfig() config.Config {
	return config.Config{
		AppName:        "AuthPage",
		AppEnv:         "test",
		SessionSecret:  "routes-test-secret",
		SessionTTL:     time.Hour,
		ScreenStateTTL: 30 * time.Minute,
		AttemptLockTTL: 30 * time.Second,
		IdempotencyTTL: time.Hour,
		LoginPerMinute: 5,
	}
}

func newApp(t *testing.T, d Deps) *fiber.App {
	t.Helper()
	app := fiber.New()
	if err := Setup(context.Background(), app, d); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return app
}

func send(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s: %v", req.Method, req.URL.Path, err)
	}
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestSetupRequiresBackendsOutsideDev(t *testing.T) {
	cfg := devConfig()
	cfg.AppEnv = "production"
	err := Setup(context.Background(), fiber.New(), Deps{Cfg: cfg, Logger: logging.Discard()})
	if err == nil || !strings.Contains(err.Error(), "database is required") {
		t.Fatalf("expected database error, got %v", err)
	}
}

func TestHealthAndPingInMemory(t *testing.T) {
	app := newApp(t, Deps{Cfg: devConfig(), Logger: logging.Discard()})

	status, body := send(t, app, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if status != http.StatusOK {
		t.Fatalf("healthz status %d: %s", status, body)
	}
	if !strings.Contains(body, `"postgres":"memory"`) {
		t.Fatalf("unexpected health body %s", body)
	}

	status, body = send(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	if status != http.StatusOK || !strings.Contains(body, `"status":"ok"`) {
		t.Fatalf("ping: %d %s", status, body)
	}
}

func TestFormIsServedWithoutGoogle(t *testing.T) {
	app := newApp(t, Deps{Cfg: devConfig(), Logger: logging.Discard()})

	status, body := send(t, app, httptest.NewRequest(http.MethodGet, "/auth", nil))
	if status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	if strings.Contains(body, "Sign in with Google") {
		t.Fatal("google button rendered without a configured client")
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/google", nil)
	status, _ = send(t, app, req)
	if status != http.StatusSeeOther {
		t.Fatalf("google start status %d", status)
	}
}

func TestRedisBackedAPINeverReplaysCredentials(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})
	app := newApp(t, Deps{Cfg: devConfig(), Cache: cache, Logger: logging.Discard()})

	call := func(path, key, body string) (int, string) {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		return send(t, app, req)
	}
	const ada = `{"email":"ada@example.com","password":"secret1"}`

	if status, _ := call("/api/v1/auth/register", "", ada); status != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key, got %d", status)
	}
	if status, body := call("/api/v1/auth/register", "reg-1", ada); status != http.StatusCreated {
		t.Fatalf("register status %d: %s", status, body)
	}
	// The token-bearing response is not stored, so a retry runs again.
	status, body := call("/api/v1/auth/register", "reg-1", ada)
	if status != http.StatusConflict || !strings.Contains(body, "already in use") {
		t.Fatalf("expected duplicate account, got %d %s", status, body)
	}

	status, body = call("/api/v1/auth/login", "1", ada)
	if status != http.StatusOK || !strings.Contains(body, "access_token") {
		t.Fatalf("login: %d %s", status, body)
	}
	status, body = call("/api/v1/auth/login", "1", `{"email":"mallory@example.com","password":"WRONG-password"}`)
	if status != http.StatusUnauthorized || strings.Contains(body, "access_token") {
		t.Fatalf("reused key with other credentials must be checked, got %d %s", status, body)
	}
	status, body = call("/api/v1/auth/login", "1", `{"email":"ada@example.com","password":"WRONG-password"}`)
	if status != http.StatusUnauthorized || strings.Contains(body, "access_token") {
		t.Fatalf("reused key with a wrong password must be checked, got %d %s", status, body)
	}
}
