package session

import (
	"errors"
	"fmt"
	"strings"
)

const (
	MsgFillAllFields      = "Please fill in all fields"
	MsgInvalidCredentials = "Invalid email or password"
	MsgAlreadyRegistered  = "This email is already registered. Please sign in."
)

// AuthError is returned by SignIn and SignUp. Reason is either a local
// validation message or the auth service's message verbatim.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	return e.Reason
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func passwordTooShort(min int) *AuthError {
	return &AuthError{Reason: fmt.Sprintf("Password must be at least %d characters", min)}
}

// UserMessage turns an authentication failure into the text shown to the
// user. Known reasons are rewritten; anything else is passed through.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	reason := err.Error()
	var authErr *AuthError
	if errors.As(err, &authErr) {
		reason = authErr.Reason
	}

	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "invalid login"):
		return MsgInvalidCredentials
	case strings.Contains(lower, "already registered"):
		return MsgAlreadyRegistered
	default:
		return reason
	}
}
