// Package screen holds the sign-in screen logic: form state, the two-mode
// toggle and the authenticate → save profile → navigate flow.
package screen

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/portal-auth/authpage/internal/identity"
	"github.com/portal-auth/authpage/internal/profile"
)

// NavigationPath is where a successful sign-in leads.
const NavigationPath = "/navigation"

// IdentityProvider authenticates users.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (identity.Result, error)
	CreateAccount(ctx context.Context, email, password string) (identity.Result, error)
	SignInWithFederatedProvider(ctx context.Context, req identity.FederatedRequest) (identity.Result, error)
}

// ProfileStore merges profile fields for a user.
type ProfileStore interface {
	Upsert(ctx context.Context, userID string, fields profile.Fields) error
}

// Navigator redirects after a successful sign-in.
type Navigator interface {
	GoTo(path string)
}

// Gate guards against concurrent attempts beyond a single Screen value, for
// example several requests of one browser session. Enter returns ErrInFlight
// while another holder has not left.
type Gate interface {
	Enter(ctx context.Context) (leave func(), err error)
}

// Deps are the collaborators of a Screen. Gate, Logger and Now are optional.
type Deps struct {
	Identity  IdentityProvider
	Profiles  ProfileStore
	Navigator Navigator
	Gate      Gate
	Logger    *slog.Logger
	Now       func() time.Time
}

// Screen is one sign-in form. It is safe for concurrent use; only one
// attempt runs at a time.
type Screen struct {
	deps Deps

	mu    sync.Mutex
	state State
	user  *identity.Result
}

// New builds a screen starting from initial. A busy flag in initial is
// ignored; busy only reflects attempts running on this screen.
func New(deps Deps, initial State) *Screen {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	initial.Busy = false
	return &Screen{deps: deps, state: initial}
}

// State returns a snapshot of the form state.
func (s *Screen) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Controls returns the controls for the current state.
func (s *Screen) Controls() Controls {
	return ControlsFor(s.State())
}

// SetEmail updates the email input.
func (s *Screen) SetEmail(email string) {
	s.mu.Lock()
	s.state.Email = email
	s.mu.Unlock()
}

// SetPassword updates the password input.
func (s *Screen) SetPassword(password string) {
	s.mu.Lock()
	s.state.Password = password
	s.mu.Unlock()
}

// ToggleMode switches between logging in and registering and clears the
// displayed error. Entered email and password are kept.
func (s *Screen) ToggleMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Mode == Registering {
		s.state.Mode = LoggingIn
	} else {
		s.state.Mode = Registering
	}
	s.state.Error = ""
}

// Authenticated returns the identity of the last successful attempt.
func (s *Screen) Authenticated() (identity.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return identity.Result{}, false
	}
	return *s.user, true
}

// Submit signs in or registers with the entered credentials depending on the
// mode. Failures are shown through State().Error and also returned.
func (s *Screen) Submit(ctx context.Context) error {
	return s.run(ctx, "credentials", func(ctx context.Context, st State) (identity.Result, error) {
		if st.Mode == Registering {
			return s.deps.Identity.CreateAccount(ctx, st.Email, st.Password)
		}
		return s.deps.Identity.SignIn(ctx, st.Email, st.Password)
	})
}

// FederatedSignIn completes a sign-in with an external provider.
func (s *Screen) FederatedSignIn(ctx context.Context, req identity.FederatedRequest) error {
	return s.run(ctx, "federated:"+req.Provider, func(ctx context.Context, _ State) (identity.Result, error) {
		return s.deps.Identity.SignInWithFederatedProvider(ctx, req)
	})
}

func (s *Screen) run(ctx context.Context, method string, authenticate func(context.Context, State) (identity.Result, error)) (err error) {
	snap, leave, err := s.begin(ctx)
	if err != nil {
		return err
	}

	var res identity.Result
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
		s.end(leave, res, err)
		s.log(ctx, method, snap.Mode, res, err)
	}()

	res, err = authenticate(ctx, snap)
	if err != nil {
		return err
	}

	fields := profile.Fields{
		DisplayName: profile.String(res.DisplayName),
		LastLogin:   profile.Time(s.deps.Now().UTC()),
	}
	if res.Email != "" {
		fields.Email = profile.String(res.Email)
	}
	if err := s.deps.Profiles.Upsert(ctx, res.UserID, fields); err != nil {
		return &ProfileError{UserID: res.UserID, Err: err}
	}

	s.deps.Navigator.GoTo(NavigationPath)
	return nil
}

func (s *Screen) begin(ctx context.Context) (State, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Busy {
		return State{}, nil, ErrInFlight
	}

	var leave func()
	if s.deps.Gate != nil {
		l, err := s.deps.Gate.Enter(ctx)
		if err != nil {
			if !errors.Is(err, ErrInFlight) {
				s.state.Error = FallbackMessage
			}
			return State{}, nil, err
		}
		leave = l
	}

	s.state.Busy = true
	s.state.Error = ""
	s.user = nil
	return s.state, leave, nil
}

func (s *Screen) end(leave func(), res identity.Result, err error) {
	s.mu.Lock()
	s.state.Busy = false
	if err != nil {
		s.state.Error = DisplayMessage(err)
	} else {
		s.user = &res
	}
	s.mu.Unlock()

	if leave != nil {
		leave()
	}
}

func (s *Screen) log(ctx context.Context, method string, mode Mode, res identity.Result, err error) {
	if s.deps.Logger == nil {
		return
	}
	attrs := []any{
		slog.String("method", method),
		slog.String("mode", mode.String()),
	}
	if err == nil {
		attrs = append(attrs, slog.String("user_id", res.UserID), slog.Bool("created", res.Created))
		s.deps.Logger.InfoContext(ctx, "sign-in succeeded", attrs...)
		return
	}

	attrs = append(attrs, slog.Any("error", err))
	var d displayable
	var perr *ProfileError
	switch {
	case errors.As(err, &perr):
		s.deps.Logger.ErrorContext(ctx, "profile save failed", append(attrs, slog.String("user_id", perr.UserID))...)
	case errors.As(err, &d):
		s.deps.Logger.InfoContext(ctx, "sign-in rejected", attrs...)
	default:
		s.deps.Logger.ErrorContext(ctx, "sign-in failed", attrs...)
	}
}
