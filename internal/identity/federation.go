package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var errProviderConflict = errors.New("provider already registered")

// FederatedProvider is an external identity service reached through a
// redirect-based authorization code flow.
type FederatedProvider interface {
	LoginURL(state, nonce string) string
	Exchange(ctx context.Context, code string) (ExternalUser, error)
}

// Federation runs federated sign-ins against the registered providers and
// resolves the asserted identities to local users.
type Federation struct {
	mu        sync.RWMutex
	providers map[string]FederatedProvider
	users     Repository
	states    StateStore
	stateTTL  time.Duration
	now       func() time.Time
}

// NewFederation builds a Federation. Pending sign-ins expire after stateTTL.
func NewFederation(users Repository, states StateStore, stateTTL time.Duration) *Federation {
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}
	return &Federation{
		providers: make(map[string]FederatedProvider),
		users:     users,
		states:    states,
		stateTTL:  stateTTL,
		now:       time.Now,
	}
}

// Use registers a provider under name.
func (f *Federation) Use(name string, p FederatedProvider) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.providers[name]; ok {
		return fmt.Errorf("%s: %w", name, errProviderConflict)
	}
	f.providers[name] = p
	return nil
}

// Enabled reports whether a provider is registered under name.
func (f *Federation) Enabled(name string) bool {
	_, err := f.provider(name)
	return err == nil
}

// LoginURL starts a sign-in with the named provider for one browser session
// and returns the URL the browser must visit. Only a callback arriving in the
// same session can complete it.
func (f *Federation) LoginURL(ctx context.Context, name, session string) (string, error) {
	if session == "" {
		return "", errors.New("browser session is required")
	}
	p, err := f.provider(name)
	if err != nil {
		return "", err
	}

	state, nonce := randToken(32), randToken(16)
	if err := f.states.Put(ctx, state, PendingSignIn{Provider: name, Nonce: nonce, Session: session}, f.stateTTL); err != nil {
		return "", fmt.Errorf("save state: %w", err)
	}
	return p.LoginURL(state, nonce), nil
}

// Exchange completes a sign-in from the provider callback. created reports
// whether a new account was made for the external identity.
func (f *Federation) Exchange(ctx context.Context, req FederatedRequest) (user User, created bool, err error) {
	p, perr := f.provider(req.Provider)
	if perr != nil {
		return User{}, false, perr
	}

	// The state is single use, including when the provider reported an error.
	pending, stateErr := f.states.Take(ctx, req.State)

	switch req.Error {
	case "":
	case "access_denied":
		return User{}, false, ErrFederatedCancelled
	default:
		return User{}, false, wrap(ErrFederatedFailed, fmt.Errorf("provider error %q", req.Error))
	}

	if stateErr != nil {
		return User{}, false, wrap(ErrFederatedFailed, fmt.Errorf("load state: %w", stateErr))
	}
	if pending.Session != req.Session {
		return User{}, false, wrap(ErrFederatedFailed, errors.New("state issued to another browser session"))
	}
	if pending.Provider != req.Provider {
		return User{}, false, wrap(ErrFederatedFailed, fmt.Errorf("state issued for %q", pending.Provider))
	}
	if req.Code == "" {
		return User{}, false, wrap(ErrFederatedFailed, errors.New("missing authorization code"))
	}

	ext, xerr := p.Exchange(ctx, req.Code)
	if xerr != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(xerr, &rerr) {
			return User{}, false, wrap(ErrFederatedFailed, xerr)
		}
		return User{}, false, fmt.Errorf("exchange: %w", xerr)
	}
	if ext.Nonce != pending.Nonce {
		return User{}, false, wrap(ErrFederatedFailed, errors.New("nonce mismatch"))
	}
	if ext.Subject == "" {
		return User{}, false, wrap(ErrFederatedFailed, errors.New("missing subject"))
	}

	return f.resolve(ctx, req.Provider, ext)
}

// resolve finds the user bound to the external identity, links it to an
// existing account with the same verified email, or creates a new account.
func (f *Federation) resolve(ctx context.Context, provider string, ext ExternalUser) (User, bool, error) {
	now := f.now().UTC()

	user, err := f.users.FindByFederated(ctx, provider, ext.Subject)
	switch {
	case err == nil:
		user, err = f.touch(ctx, user, now)
		return user, false, err
	case !errors.Is(err, ErrNotFound):
		return User{}, false, fmt.Errorf("find federated user: %w", err)
	}

	email := ""
	if ext.EmailVerified {
		email = NormalizeEmail(ext.Email)
	}

	if email != "" {
		user, err := f.users.FindByEmail(ctx, email)
		switch {
		case err == nil:
			if err := f.users.LinkFederated(ctx, user.ID, provider, ext.Subject); err != nil {
				return User{}, false, fmt.Errorf("link federated identity: %w", err)
			}
			if user.DisplayName == "" {
				user.DisplayName = ext.Name
			}
			user, err = f.touch(ctx, user, now)
			return user, false, err
		case !errors.Is(err, ErrNotFound):
			return User{}, false, fmt.Errorf("find user by email: %w", err)
		}
	}

	user = User{
		ID:          uuid.New().String(),
		Email:       email,
		DisplayName: ext.Name,
		CreatedAt:   now,
	}
	if err := f.users.CreateFederated(ctx, user, provider, ext.Subject); err != nil {
		return User{}, false, fmt.Errorf("create federated user: %w", err)
	}
	user, err = f.touch(ctx, user, now)
	return user, err == nil, err
}

func (f *Federation) touch(ctx context.Context, user User, at time.Time) (User, error) {
	if err := f.users.TouchLogin(ctx, user.ID, at); err != nil {
		return User{}, fmt.Errorf("record login: %w", err)
	}
	user.LastLogin = at
	return user, nil
}

func (f *Federation) provider(name string) (FederatedProvider, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	p, ok := f.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

func randToken(size int) string {
	b := make([]byte, size)

	// rand.Read never returns an error
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
