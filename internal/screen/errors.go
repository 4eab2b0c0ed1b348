package screen

import (
	"errors"
	"fmt"
	"runtime"
)

const (
	// FallbackMessage is shown for failures that carry no displayable message.
	FallbackMessage = "An unexpected error occurred"
	// ProfileSaveFailedMessage is shown when authentication succeeded but the
	// profile could not be written.
	ProfileSaveFailedMessage = "Signed in, but your profile could not be saved. Please try again."
)

// ErrInFlight is returned when an attempt is started while another one is
// still running for the same screen.
var ErrInFlight = errors.New("an attempt is already in progress")

// displayable is implemented by errors that carry a message written for the
// user, which takes precedence over Error().
type displayable interface {
	UserMessage() string
}

// internalMarker is implemented by errors whose text must not reach the form.
type internalMarker interface {
	Internal() bool
}

// ProfileError reports a failed profile write after a successful sign-in.
type ProfileError struct {
	UserID string
	Err    error
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("save profile %s: %v", e.UserID, e.Err)
}

func (e *ProfileError) Unwrap() error { return e.Err }

// UserMessage keeps store details out of the form.
func (e *ProfileError) UserMessage() string { return ProfileSaveFailedMessage }

// PanicError wraps a value recovered from a collaborator panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap exposes the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// DisplayMessage maps a failure to the text shown in the form: the user
// message when there is one, FallbackMessage for internal failures and
// panics without an error value, the error text otherwise.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	var d displayable
	if errors.As(err, &d) {
		if msg := d.UserMessage(); msg != "" {
			return msg
		}
		return FallbackMessage
	}
	var m internalMarker
	if errors.As(err, &m) && m.Internal() {
		return FallbackMessage
	}
	var perr *PanicError
	if errors.As(err, &perr) {
		cause, ok := perr.Value.(error)
		var rerr runtime.Error
		if !ok || errors.As(cause, &rerr) {
			return FallbackMessage
		}
		err = cause
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return FallbackMessage
}
