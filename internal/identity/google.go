package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// ProviderGoogle is the federated provider name used for Google sign-in.
const ProviderGoogle = "google"

const googleIssuer = "https://accounts.google.com"

// Google implements FederatedProvider for Google OpenID Connect.
type Google struct {
	cfg      *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// GoogleConfig holds the OAuth client registration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type googleClaims struct {
	Sub      string `json:"sub"`
	Email    string `json:"email"`
	Verified bool   `json:"email_verified"`
	Name     string `json:"name"`
}

// NewGoogle discovers Google's OpenID configuration and builds the provider.
func NewGoogle(ctx context.Context, google GoogleConfig) (*Google, error) {
	p, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("new oidc provider: %w", err)
	}

	return &Google{
		cfg: &oauth2.Config{
			ClientID:     google.ClientID,
			ClientSecret: google.ClientSecret,
			RedirectURL:  google.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			Endpoint:     endpoints.Google,
		},
		verifier: p.Verifier(&oidc.Config{ClientID: google.ClientID}),
	}, nil
}

// LoginURL returns the consent page URL carrying state and nonce.
func (g *Google) LoginURL(state, nonce string) string {
	return g.cfg.AuthCodeURL(state, oidc.Nonce(nonce), oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades the authorization code for a verified ID token.
func (g *Google) Exchange(ctx context.Context, code string) (ExternalUser, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return ExternalUser{}, err
	}

	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return ExternalUser{}, errors.New("token response without id_token")
	}
	idTok, err := g.verifier.Verify(ctx, raw)
	if err != nil {
		return ExternalUser{}, fmt.Errorf("verify id token: %w", err)
	}

	var claims googleClaims
	if err := idTok.Claims(&claims); err != nil {
		return ExternalUser{}, fmt.Errorf("read claims: %w", err)
	}

	return ExternalUser{
		Subject:       claims.Sub,
		Email:         claims.Email,
		EmailVerified: claims.Verified,
		Name:          claims.Name,
		Nonce:         idTok.Nonce,
	}, nil
}
