package auth

import "errors"

// Sentinel errors for display authentication.
var (
	ErrTokenInvalid    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token has expired")
	ErrDisplayInactive = errors.New("display is inactive")
	ErrMissingSecret   = errors.New("jwt secret is not configured")
)
