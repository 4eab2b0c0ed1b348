package identity

import "errors"

var (
	// ErrNotFound is returned by repositories when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned by repositories when the email or federated
	// identity is already bound to a user.
	ErrDuplicate = errors.New("user exists")
)

// Error is an authentication failure carrying a message that can be shown to
// the person signing in as is.
type Error struct {
	Code    string
	Message string
	Err     error
}

var (
	ErrInvalidEmail       = &Error{Code: "invalid-email", Message: "The email address is badly formatted."}
	ErrWeakPassword       = &Error{Code: "weak-password", Message: "Password should be at least 6 characters."}
	ErrPasswordTooLong    = &Error{Code: "password-too-long", Message: "Password should be at most 72 characters."}
	ErrEmailInUse         = &Error{Code: "email-already-in-use", Message: "The email address is already in use by another account."}
	ErrInvalidCredential  = &Error{Code: "invalid-credential", Message: "Invalid email or password."}
	ErrUnknownProvider    = &Error{Code: "operation-not-allowed", Message: "This sign-in method is not available."}
	ErrFederatedCancelled = &Error{Code: "popup-closed-by-user", Message: "Sign-in was cancelled before it completed."}
	ErrFederatedFailed    = &Error{Code: "federated-sign-in-failed", Message: "Sign-in with the external provider failed. Please try again."}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

// UserMessage returns the human-readable message for display.
func (e *Error) UserMessage() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors of the same code so wrapped copies compare equal to the
// package-level values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// InternalError wraps a failure of the service itself, such as an
// unreachable store. Its text is meant for logs, not for the form.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string { return e.Err.Error() }

func (e *InternalError) Unwrap() error { return e.Err }

// Internal marks the error as unfit for display.
func (e *InternalError) Internal() bool { return true }

// internal wraps err in an InternalError unless it already carries a
// user-facing message or marker.
func internal(err error) error {
	if err == nil {
		return nil
	}
	var authErr *Error
	var marked *InternalError
	if errors.As(err, &authErr) || errors.As(err, &marked) {
		return err
	}
	return &InternalError{Err: err}
}

func wrap(base *Error, cause error) *Error {
	return &Error{Code: base.Code, Message: base.Message, Err: cause}
}
