package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/portal-auth/authpage/internal/notification"
)

const (
	minPasswordLength = 6
	maxPasswordBytes  = 72
)

// Service manages email/password accounts.
type Service struct {
	repo     Repository
	notifier notification.Notifier
	logger   *slog.Logger
	cost     int
	now      func() time.Time
	// dummyHash keeps the cost of unknown-email sign-ins close to wrong-password ones.
	dummyHash []byte
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) ServiceOption {
	return func(s *Service) { s.cost = cost }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a new identity service.
func NewService(repo Repository, notifier notification.Notifier, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{repo: repo, notifier: notifier, logger: logger, cost: bcrypt.DefaultCost, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
	return s
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount registers a new user and stores a hashed password.
func (s *Service) CreateAccount(ctx context.Context, creds Credentials) (User, error) {
	email := NormalizeEmail(creds.Email)
	if err := validateEmail(email); err != nil {
		return User{}, err
	}
	if utf8.RuneCountInString(creds.Password) < minPasswordLength {
		return User{}, ErrWeakPassword
	}
	if len(creds.Password) > maxPasswordBytes {
		return User{}, ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		LastLogin:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return User{}, ErrEmailInUse
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	if s.notifier != nil {
		msg := notification.Message{Kind: notification.KindAccountCreated, Destination: user.Email, Body: "Your account is ready."}
		if err := s.notifier.Send(ctx, msg); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "account notification failed", slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}

	return user, nil
}

// SignIn verifies credentials. Unknown emails and wrong passwords fail alike.
func (s *Service) SignIn(ctx context.Context, creds Credentials) (User, error) {
	email := NormalizeEmail(creds.Email)
	if err := validateEmail(email); err != nil {
		return User{}, err
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(creds.Password))
		return User{}, ErrInvalidCredential
	}
	if err != nil {
		return User{}, fmt.Errorf("find user: %w", err)
	}

	// Accounts created through a federated provider have no password.
	if len(user.PasswordHash) == 0 {
		return User{}, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return User{}, ErrInvalidCredential
	}

	now := s.now().UTC()
	if err := s.repo.TouchLogin(ctx, user.ID, now); err != nil {
		return User{}, fmt.Errorf("record login: %w", err)
	}
	user.LastLogin = now

	return user, nil
}

// FindByID returns a registered user.
func (s *Service) FindByID(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

func validateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(addr.Address, "@") {
		return ErrInvalidEmail
	}
	return nil
}
