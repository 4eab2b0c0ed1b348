package identity

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testSession = "0f3c9b8e-6a2d-4c1e-9b7a-5d4e3f2a1b0c"

type mockFederatedProvider struct {
	loginFunc    func(state, nonce string) string
	exchangeFunc func(ctx context.Context, code string) (ExternalUser, error)
}

func (m *mockFederatedProvider) LoginURL(state, nonce string) string {
	return m.loginFunc(state, nonce)
}

func (m *mockFederatedProvider) Exchange(ctx context.Context, code string) (ExternalUser, error) {
	return m.exchangeFunc(ctx, code)
}

// echoProvider builds login URLs carrying state and nonce and asserts the
// stored user with the nonce it handed out.
func echoProvider(user ExternalUser) *mockFederatedProvider {
	var nonce string
	return &mockFederatedProvider{
		loginFunc: func(state, n string) string {
			nonce = n
			return "https://idp.example/auth?" + url.Values{"state": {state}, "nonce": {n}}.Encode()
		},
		exchangeFunc: func(_ context.Context, code string) (ExternalUser, error) {
			if code != "good-code" {
				return ExternalUser{}, &oauth2.RetrieveError{ErrorCode: "invalid_grant"}
			}
			user.Nonce = nonce
			return user, nil
		},
	}
}

func startSignIn(t *testing.T, f *Federation, provider string) string {
	t.Helper()
	loginURL, err := f.LoginURL(context.Background(), provider, testSession)
	require.NoError(t, err)
	u, err := url.Parse(loginURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestFederation_CreatesUserOnFirstSignIn(t *testing.T) {
	repo := NewMemoryRepository()
	f := NewFederation(repo, NewMemoryStateStore(), time.Minute)
	require.NoError(t, f.Use(ProviderGoogle, echoProvider(ExternalUser{Subject: "g-1", Email: "Ada@Example.com", EmailVerified: true, Name: "Ada"})))

	state := startSignIn(t, f, ProviderGoogle)
	user, created, err := f.Exchange(context.Background(), FederatedRequest{Provider: ProviderGoogle, Session: testSession, Code: "good-code", State: state})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "ada@example.com", user.Email)
	require.Equal(t, "Ada", user.DisplayName)

	state = startSignIn(t, f, ProviderGoogle)
	again, created, err := f.Exchange(context.Background(), FederatedRequest{Provider: ProviderGoogle, Session: testSession, Code: "good-code", State: state})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, user.ID, again.ID)
}

func TestFederation_LinksExistingVerifiedEmail(t *testing.T) {
	repo := NewMemoryRepository()
	existing := User{ID: "0b5d8c3e-7a31-4e0c-9a6f-2c1b1f1e4d21", Email: "ada@example.com", PasswordHash: []byte("x"), CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), existing))

	f := NewFederation(repo, NewMemoryStateStore(), time.Minute)
	require.NoError(t, f.Use(ProviderGoogle, echoProvider(ExternalUser{Subject: "g-2", Email: "ada@example.com", EmailVerified: true, Name: "Ada L."})))

	user, created, err := f.Exchange(context.Background(), FederatedRequest{Provider: ProviderGoogle, Session: testSession, Code: "good-code", State: startSignIn(t, f, ProviderGoogle)})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, existing.ID, user.ID)
	require.Equal(t, "Ada L.", user.DisplayName)

	linked, err := repo.FindByFederated(context.Background(), ProviderGoogle, "g-2")
	require.NoError(t, err)
	require.Equal(t, existing.ID, linked.ID)
}

func TestFederation_UnverifiedEmailIsNotLinked(t *testing.T) {
	repo := NewMemoryRepository()
	existing := User{ID: "9c7c4c55-31f4-4d55-8f0e-6f0c7b9ad111", Email: "ada@example.com", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), existing))

	f := NewFederation(repo, NewMemoryStateStore(), time.Minute)
	require.NoError(t, f.Use(ProviderGoogle, echoProvider(ExternalUser{Subject: "g-3", Email: "ada@example.com"})))

	user, created, err := f.Exchange(context.Background(), FederatedRequest{Provider: ProviderGoogle, Session: testSession, Code: "good-code", State: startSignIn(t, f, ProviderGoogle)})
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, existing.ID, user.ID)
	require.Empty(t, user.Email)
}

func TestFederation_StateIsSingleUse(t *testing.T) {
	f := NewFederation(NewMemoryRepository(), NewMemoryStateStore(), time.Minute)
	require.NoError(t, f.Use(ProviderGoogle, echoProvider(ExternalUser{Subject: "g-4"})))

	state := startSignIn(t, f, ProviderGoogle)
	_, _, err := f.Exchange(context.Background(), FederatedRequest{Provider: ProviderGoogle, Session: testSession, Code: "good-code", State: state})
	require.NoError(t, err)

	_, _, err = f.Exchange(context.Background(), FederatedRequest{Provider: ProviderGoogle, Session: testSession, Code: "good-code", State: state})
	require.ErrorIs(t, err, ErrFederatedFailed)
}

func TestFederation_StateIsBoundToBrowserSession(t *testing.T) {
	f := NewFederation(NewMemoryRepository(), NewMemoryStateStore(), time.Minute)
	require.NoError(t, f.Use(ProviderGoogle, echoProvider(ExternalUser{Subject: "g-7", Email: "eve@example.com", EmailVerified: true})))

	// A state handed to another browser cannot complete the sign-in there.
	state := startSignIn(t, f, ProviderGoogle)
	_, _, err := f.Exchange(context.Background(), FederatedRequest{Provider: ProviderGoogle, Session: "another-browser", Code: "good-code", State: state})
	require.ErrorIs(t, err, ErrFederatedFailed)

	_, _, err = f.Exchange(context.Background(), FederatedRequest{Provider: ProviderGoogle, Code: "good-code", State: startSignIn(t, f, ProviderGoogle)})
	require.ErrorIs(t, err, ErrFederatedFailed)

	_, err = f.LoginURL(context.Background(), ProviderGoogle, "")
	require.Error(t, err)
}

func TestFederation_ProviderErrors(t *testing.T) {
	f := NewFederation(NewMemoryRepository(), NewMemoryStateStore(), time.Minute)
	require.NoError(t, f.Use(ProviderGoogle, echoProvider(ExternalUser{Subject: "g-5"})))
	ctx := context.Background()

	_, _, err := f.Exchange(ctx, FederatedRequest{Provider: ProviderGoogle, Session: testSession, State: startSignIn(t, f, ProviderGoogle), Error: "access_denied"})
	require.ErrorIs(t, err, ErrFederatedCancelled)

	_, _, err = f.Exchange(ctx, FederatedRequest{Provider: ProviderGoogle, Session: testSession, State: startSignIn(t, f, ProviderGoogle), Error: "server_error"})
	require.ErrorIs(t, err, ErrFederatedFailed)

	_, _, err = f.Exchange(ctx, FederatedRequest{Provider: ProviderGoogle, Session: testSession, Code: "bad-code", State: startSignIn(t, f, ProviderGoogle)})
	require.ErrorIs(t, err, ErrFederatedFailed)

	_, _, err = f.Exchange(ctx, FederatedRequest{Provider: "github", Code: "good-code", State: "x"})
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestFederation_NonceMismatch(t *testing.T) {
	f := NewFederation(NewMemoryRepository(), NewMemoryStateStore(), time.Minute)
	require.NoError(t, f.Use(ProviderGoogle, &mockFederatedProvider{
		loginFunc: func(state, nonce string) string { return "https://idp.example/auth?state=" + state },
		exchangeFunc: func(context.Context, string) (ExternalUser, error) {
			return ExternalUser{Subject: "g-6", Nonce: "replayed"}, nil
		},
	}))

	_, _, err := f.Exchange(context.Background(), FederatedRequest{Provider: ProviderGoogle, Session: testSession, Code: "c", State: startSignIn(t, f, ProviderGoogle)})
	require.ErrorIs(t, err, ErrFederatedFailed)
}

func TestFederation_TransportErrorIsNotUserFacing(t *testing.T) {
	f := NewFederation(NewMemoryRepository(), NewMemoryStateStore(), time.Minute)
	require.NoError(t, f.Use(ProviderGoogle, &mockFederatedProvider{
		loginFunc: func(state, nonce string) string { return "https://idp.example/auth?state=" + state },
		exchangeFunc: func(context.Context, string) (ExternalUser, error) {
			return ExternalUser{}, errors.New("dial tcp: timeout")
		},
	}))

	_, _, err := f.Exchange(context.Background(), FederatedRequest{Provider: ProviderGoogle, Session: testSession, Code: "c", State: startSignIn(t, f, ProviderGoogle)})
	require.Error(t, err)
	var authErr *Error
	require.False(t, errors.As(err, &authErr))
}

func TestFederation_UseRejectsDuplicates(t *testing.T) {
	f := NewFederation(NewMemoryRepository(), NewMemoryStateStore(), time.Minute)
	require.NoError(t, f.Use(ProviderGoogle, echoProvider(ExternalUser{})))
	require.Error(t, f.Use(ProviderGoogle, echoProvider(ExternalUser{})))
	require.True(t, f.Enabled(ProviderGoogle))
	require.False(t, f.Enabled("github"))
}
