package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/portal-auth/authpage/internal/config"
	"github.com/portal-auth/authpage/internal/identity"
	"github.com/portal-auth/authpage/internal/middleware"
	"github.com/portal-auth/authpage/internal/notification"
	"github.com/portal-auth/authpage/internal/profile"
	"github.com/portal-auth/authpage/internal/session"
	"github.com/portal-auth/authpage/internal/web"
)

const googleDiscoveryTimeout = 10 * time.Second

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(ctx context.Context, app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.BrowserSession(d.Cfg.SecureCookies, d.Cfg.ScreenStateTTL))
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Services and handlers
	var (
		users      identity.Repository
		profiles   profile.Store
		fedStates  identity.StateStore
		formStates session.StateStore
		gates      session.Gates
	)
	if d.DB != nil {
		users = identity.NewPostgresRepository(d.DB)
		profiles = profile.NewPostgresStore(d.DB)
	} else {
		users = identity.NewMemoryRepository()
		profiles = profile.NewMemoryStore()
	}
	if d.Cache != nil {
		fedStates = identity.NewRedisStateStore(d.Cache)
		formStates = session.NewRedisStateStore(d.Cache, d.Cfg.ScreenStateTTL)
		gates = session.NewRedisGates(d.Cache, d.Cfg.AttemptLockTTL)
	} else {
		fedStates = identity.NewMemoryStateStore()
		formStates = session.NewMemoryStateStore()
		gates = session.NewMemoryGates()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	accounts := identity.NewService(users, notifier, d.Logger)

	var federation *identity.Federation
	if d.Cfg.GoogleEnabled() {
		discoverCtx, cancel := context.WithTimeout(ctx, googleDiscoveryTimeout)
		google, err := identity.NewGoogle(discoverCtx, identity.GoogleConfig{
			ClientID:     d.Cfg.GoogleClientID,
			ClientSecret: d.Cfg.GoogleClientSecret,
			RedirectURL:  d.Cfg.GoogleRedirectURL,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("google sign-in: %w", err)
		}
		federation = identity.NewFederation(users, fedStates, 10*time.Minute)
		if err := federation.Use(identity.ProviderGoogle, google); err != nil {
			return err
		}
	}

	tokens := session.NewTokens(d.Cfg.SessionSecret, d.Cfg.SessionTTL, d.Cfg.AppName)
	h := web.NewHandler(web.Deps{
		Identity:      identity.NewProvider(accounts, federation),
		Profiles:      profiles,
		States:        formStates,
		Gates:         gates,
		Tokens:        tokens,
		Logger:        d.Logger,
		SecureCookies: d.Cfg.SecureCookies,
	})

	// Browser routes
	RegisterPageRoutes(app, h, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginPerMinute, h.RateLimited), tokens)

	// API routes
	api := app.Group("/api/v1")
	if d.Cache != nil {
		api.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	RegisterAPIRoutes(api, h, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginPerMinute, nil), tokens)

	return nil
}
