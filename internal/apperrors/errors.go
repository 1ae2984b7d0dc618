package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user is inactive")
	ErrInvalidCredentials = errors.New("invalid username or password")

	// Every token rejection wraps ErrUnauthorized, so callers that don't care
	// about the precise reason may match on it alone
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTokenMalformed    = fmt.Errorf("%w: token is malformed", ErrUnauthorized)
	ErrTokenExpired      = fmt.Errorf("%w: token has expired", ErrUnauthorized)
	ErrTokenRevoked      = fmt.Errorf("%w: token has been revoked", ErrUnauthorized)
	ErrTokenTypeMismatch = fmt.Errorf("%w: unexpected token type", ErrUnauthorized)
	ErrTokenUnverified   = fmt.Errorf("%w: token revocation status is unknown", ErrUnauthorized)

	ErrWrongCurrentPassword = fmt.Errorf("%w: current password is incorrect", ErrUnauthorized)

	// Server side fault, never the client's
	ErrTokenSigning = errors.New("token signing failed")

	ErrPolicyViolation   = errors.New("password does not satisfy policy")
	ErrPasswordMismatch  = errors.New("password and confirmation do not match")
	ErrPasswordUnchanged = errors.New("new password must differ from current password")

	ErrCalculationNotFound = errors.New("calculation not found")
	ErrCalculationInvalid  = errors.New("calculation is invalid")
)
