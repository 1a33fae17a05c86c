package auth

import (
	"errors"
	"fmt"
)

// ErrAuthentication matches every AuthenticationError via errors.Is
var ErrAuthentication = errors.New("authentication failed")

// AuthenticationError reports that the identity provider did not hand out
// an access token: it denied the request, answered with something that is
// not a token response, or omitted the access token.
type AuthenticationError struct {
	TenantID   string
	StatusCode int
	Err        error
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication failed for tenant %s (status %d): %v", e.TenantID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("authentication failed for tenant %s: %v", e.TenantID, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }
