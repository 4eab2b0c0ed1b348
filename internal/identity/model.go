package identity

import "time"

// ProviderPassword names the email/password sign-in method in results.
const ProviderPassword = "password"

// User represents a registered account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash []byte
	CreatedAt    time.Time
	LastLogin    time.Time
}

// Credentials request structure.
type Credentials struct {
	Email    string
	Password string
}

// Result is the identity handed back after a successful authentication.
type Result struct {
	UserID      string
	Email       string
	DisplayName string
	Provider    string
	Created     bool
}

// FederatedRequest carries the callback parameters of a federated sign-in.
type FederatedRequest struct {
	Provider string
	Code     string
	State    string
	// Session is the browser session the callback arrived in.
	Session string
	// Error is the error code reported by the provider, e.g. access_denied.
	Error string
}

// ExternalUser is the identity asserted by a federated provider.
type ExternalUser struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Nonce         string
}

func (u User) result(provider string, created bool) Result {
	return Result{UserID: u.ID, Email: u.Email, DisplayName: u.DisplayName, Provider: provider, Created: created}
}
