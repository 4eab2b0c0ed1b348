package identity

import (
	"context"
)

// Provider serves email/password and federated sign-in behind one interface.
// Failures either carry a user-facing *Error or are wrapped in an
// *InternalError.
type Provider struct {
	accounts   *Service
	federation *Federation
}

// NewProvider combines the account service with an optional federation.
func NewProvider(accounts *Service, federation *Federation) *Provider {
	return &Provider{accounts: accounts, federation: federation}
}

// SignIn authenticates an existing email/password account.
func (p *Provider) SignIn(ctx context.Context, email, password string) (Result, error) {
	user, err := p.accounts.SignIn(ctx, Credentials{Email: email, Password: password})
	if err != nil {
		return Result{}, internal(err)
	}
	return user.result(ProviderPassword, false), nil
}

// CreateAccount registers and signs in a new email/password account.
func (p *Provider) CreateAccount(ctx context.Context, email, password string) (Result, error) {
	user, err := p.accounts.CreateAccount(ctx, Credentials{Email: email, Password: password})
	if err != nil {
		return Result{}, internal(err)
	}
	return user.result(ProviderPassword, true), nil
}

// SignInWithFederatedProvider completes a federated sign-in callback.
func (p *Provider) SignInWithFederatedProvider(ctx context.Context, req FederatedRequest) (Result, error) {
	if p.federation == nil {
		return Result{}, ErrUnknownProvider
	}
	user, created, err := p.federation.Exchange(ctx, req)
	if err != nil {
		return Result{}, internal(err)
	}
	return user.result(req.Provider, created), nil
}

// FederatedLoginURL starts a federated sign-in for a browser session.
func (p *Provider) FederatedLoginURL(ctx context.Context, provider, session string) (string, error) {
	if p.federation == nil {
		return "", ErrUnknownProvider
	}
	url, err := p.federation.LoginURL(ctx, provider, session)
	return url, internal(err)
}

// FederatedEnabled reports whether the named provider can be used.
func (p *Provider) FederatedEnabled(provider string) bool {
	return p.federation != nil && p.federation.Enabled(provider)
}
