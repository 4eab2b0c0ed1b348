// Package web serves the sign-in screen as server-rendered pages and as a
// small JSON API.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/portal-auth/authpage/internal/identity"
	"github.com/portal-auth/authpage/internal/middleware"
	"github.com/portal-auth/authpage/internal/profile"
	"github.com/portal-auth/authpage/internal/screen"
	"github.com/portal-auth/authpage/internal/session"
)

const (
	// LoginPath serves the sign-in form.
	LoginPath = "/auth"

	missingCredentialsMessage = "Please enter your email and password."
	inFlightMessage           = "A sign-in attempt is already in progress."
)

// Identity is what the handlers need from the identity layer.
type Identity interface {
	screen.IdentityProvider
	FederatedLoginURL(ctx context.Context, provider, session string) (string, error)
	FederatedEnabled(provider string) bool
}

// Deps are the collaborators of Handler.
type Deps struct {
	Identity      Identity
	Profiles      profile.Store
	States        session.StateStore
	Gates         session.Gates
	Tokens        *session.Tokens
	Logger        *slog.Logger
	SecureCookies bool
}

// Handler exposes the sign-in screen over HTTP.
type Handler struct {
	Deps
}

func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Handler{Deps: deps}
}

// redirect records where the screen navigated to.
type redirect struct {
	path string
}

func (r *redirect) GoTo(path string) { r.path = path }

func (h *Handler) newScreen(c *fiber.Ctx, gateKey string, st screen.State) (*screen.Screen, *redirect) {
	nav := &redirect{}
	s := screen.New(screen.Deps{
		Identity:  h.Identity,
		Profiles:  h.Profiles,
		Navigator: nav,
		Gate:      h.Gates.For(gateKey),
		Logger:    h.Logger.With(slog.String("request_id", middleware.RequestIDFrom(c))),
	}, st)
	return s, nav
}

func (h *Handler) loadState(c *fiber.Ctx) screen.State {
	st, err := h.States.Load(c.UserContext(), middleware.SessionIDFrom(c))
	if err != nil {
		h.Logger.WarnContext(c.UserContext(), "load screen state", slog.Any("error", err))
		return screen.State{}
	}
	return st
}

func (h *Handler) saveState(c *fiber.Ctx, st screen.State) {
	if err := h.States.Save(c.UserContext(), middleware.SessionIDFrom(c), st); err != nil {
		h.Logger.WarnContext(c.UserContext(), "save screen state", slog.Any("error", err))
	}
}

func (h *Handler) renderAuth(c *fiber.Ctx, status int, st screen.State) error {
	return render(c, status, "auth", authPage{
		State:         st,
		Controls:      screen.ControlsFor(st),
		GoogleEnabled: h.Identity.FederatedEnabled(identity.ProviderGoogle),
	})
}

// Index sends visitors to the sign-in form.
func (h *Handler) Index(c *fiber.Ctx) error {
	return c.Redirect(LoginPath, http.StatusSeeOther)
}

// Page renders the sign-in form for the browser session.
func (h *Handler) Page(c *fiber.Ctx) error {
	return h.renderAuth(c, http.StatusOK, h.loadState(c))
}

// Submit signs in or registers with the posted credentials.
func (h *Handler) Submit(c *fiber.Ctx) error {
	st := h.loadState(c)
	st.Email = strings.TrimSpace(c.FormValue("email"))
	st.Password = c.FormValue("password")
	if st.Email == "" || st.Password == "" {
		st.Error = missingCredentialsMessage
		h.saveState(c, st)
		return h.renderAuth(c, http.StatusUnprocessableEntity, st)
	}

	s, nav := h.newScreen(c, middleware.SessionIDFrom(c), st)
	err := s.Submit(c.UserContext())
	if errors.Is(err, screen.ErrInFlight) {
		st.Busy = true
		st.Error = ""
		return h.renderAuth(c, http.StatusConflict, st)
	}
	return h.finish(c, s, nav, err, false)
}

// RateLimited answers throttled form posts with the form and a message.
func (h *Handler) RateLimited(c *fiber.Ctx, message string) error {
	st := h.loadState(c)
	st.Email = strings.TrimSpace(c.FormValue("email"))
	st.Error = message
	return h.renderAuth(c, http.StatusTooManyRequests, st)
}

// ToggleMode switches the form between signing in and registering.
func (h *Handler) ToggleMode(c *fiber.Ctx) error {
	st := h.loadState(c)
	if email, ok := formValue(c, "email"); ok {
		st.Email = strings.TrimSpace(email)
	}
	s := screen.New(screen.Deps{}, st)
	s.ToggleMode()
	h.saveState(c, s.State())
	return c.Redirect(LoginPath, http.StatusSeeOther)
}

// GoogleStart redirects to Google's consent page.
func (h *Handler) GoogleStart(c *fiber.Ctx) error {
	url, err := h.Identity.FederatedLoginURL(c.UserContext(), identity.ProviderGoogle, middleware.SessionIDFrom(c))
	if err != nil {
		h.Logger.WarnContext(c.UserContext(), "start federated sign-in", slog.Any("error", err))
		st := h.loadState(c)
		st.Error = screen.DisplayMessage(err)
		h.saveState(c, st)
		return c.Redirect(LoginPath, http.StatusSeeOther)
	}
	return c.Redirect(url, http.StatusSeeOther)
}

// GoogleCallback completes a Google sign-in.
func (h *Handler) GoogleCallback(c *fiber.Ctx) error {
	req := identity.FederatedRequest{
		Provider: identity.ProviderGoogle,
		Code:     c.Query("code"),
		State:    c.Query("state"),
		Session:  middleware.SessionIDFrom(c),
		Error:    c.Query("error"),
	}
	s, nav := h.newScreen(c, middleware.SessionIDFrom(c), h.loadState(c))
	err := s.FederatedSignIn(c.UserContext(), req)
	if errors.Is(err, screen.ErrInFlight) {
		return c.Redirect(LoginPath, http.StatusSeeOther)
	}
	return h.finish(c, s, nav, err, true)
}

// finish persists the outcome of an attempt and answers the browser.
// Failed callbacks redirect back to the form so reloads do not replay them.
func (h *Handler) finish(c *fiber.Ctx, s *screen.Screen, nav *redirect, err error, redirectOnError bool) error {
	st := s.State()
	if err != nil {
		h.saveState(c, st)
		if redirectOnError {
			return c.Redirect(LoginPath, http.StatusSeeOther)
		}
		return h.renderAuth(c, http.StatusUnprocessableEntity, st)
	}

	user, _ := s.Authenticated()
	token, exp, err := h.Tokens.Issue(user.UserID, user.Email)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HTTPOnly: true,
		Secure:   h.SecureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Locals(middleware.LocalUserID, user.UserID)
	if err := h.States.Clear(c.UserContext(), middleware.SessionIDFrom(c)); err != nil {
		h.Logger.WarnContext(c.UserContext(), "clear screen state", slog.Any("error", err))
	}
	return c.Redirect(nav.path, http.StatusSeeOther)
}

// Navigation is the landing page after signing in.
func (h *Handler) Navigation(c *fiber.Ctx) error {
	p, err := h.currentProfile(c)
	if err != nil {
		return err
	}
	return render(c, http.StatusOK, "navigation", navigationPage{Profile: p})
}

// Logout ends the signed-in session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.SecureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	if err := h.States.Clear(c.UserContext(), middleware.SessionIDFrom(c)); err != nil {
		h.Logger.WarnContext(c.UserContext(), "clear screen state", slog.Any("error", err))
	}
	return c.Redirect(LoginPath, http.StatusSeeOther)
}

func (h *Handler) currentProfile(c *fiber.Ctx) (profile.Profile, error) {
	uid := middleware.UserIDFrom(c)
	p, err := h.Profiles.Get(c.UserContext(), uid)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		email, _ := c.Locals(middleware.LocalUserEmail).(string)
		return profile.Profile{UserID: uid, Email: email}, nil
	case err != nil:
		return profile.Profile{}, fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return p, nil
}

func formValue(c *fiber.Ctx, key string) (string, bool) {
	if args := c.Request().PostArgs(); args.Has(key) {
		return string(args.Peek(key)), true
	}
	return "", false
}
