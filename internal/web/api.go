package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/portal-auth/authpage/internal/identity"
	"github.com/portal-auth/authpage/internal/middleware"
	"github.com/portal-auth/authpage/internal/screen"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name"`
	Created     bool   `json:"created"`
	Redirect    string `json:"redirect"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type profileResponse struct {
	UserID      string     `json:"user_id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

// APILogin signs in with a JSON body.
func (h *Handler) APILogin(c *fiber.Ctx) error {
	return h.apiAttempt(c, screen.LoggingIn)
}

// APIRegister creates an account with a JSON body.
func (h *Handler) APIRegister(c *fiber.Ctx) error {
	return h.apiAttempt(c, screen.Registering)
}

func (h *Handler) apiAttempt(c *fiber.Ctx, mode screen.Mode) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": missingCredentialsMessage})
	}

	// Attempts for one account are serialized across clients.
	s, nav := h.newScreen(c, "api:"+identity.NormalizeEmail(email), screen.State{Mode: mode, Email: email, Password: req.Password})
	err := s.Submit(c.UserContext())
	if errors.Is(err, screen.ErrInFlight) {
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": inFlightMessage})
	}
	if err != nil {
		return c.Status(apiStatus(err, mode)).JSON(fiber.Map{"error": s.State().Error})
	}

	user, _ := s.Authenticated()
	token, _, err := h.Tokens.Issue(user.UserID, user.Email)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	c.Locals(middleware.LocalUserID, user.UserID)

	// Issued tokens must not be cached, replayed or stored by intermediaries.
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set(fiber.HeaderPragma, "no-cache")

	status := http.StatusOK
	if user.Created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(signInResponse{
		UserID:      user.UserID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Created:     user.Created,
		Redirect:    nav.path,
		AccessToken: token,
		ExpiresIn:   int64(h.Tokens.TTL().Seconds()),
	})
}

func apiStatus(err error, mode screen.Mode) int {
	var perr *screen.ProfileError
	var ierr *identity.Error
	switch {
	case errors.As(err, &perr):
		return http.StatusServiceUnavailable
	case errors.Is(err, identity.ErrEmailInUse):
		return http.StatusConflict
	case errors.Is(err, identity.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.As(err, &ierr):
		if mode == screen.Registering {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// APIMe returns the signed-in user's profile.
func (h *Handler) APIMe(c *fiber.Ctx) error {
	p, err := h.currentProfile(c)
	if err != nil {
		return err
	}
	resp := profileResponse{UserID: p.UserID, Email: p.Email, DisplayName: p.DisplayName}
	if !p.LastLogin.IsZero() {
		resp.LastLogin = &p.LastLogin
	}
	return c.JSON(resp)
}
