package render

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/calcboard/internal/apperrors"
	"github.com/nkiryanov/calcboard/internal/service/auth/policy"
)

// Messages clients see. Token failures of any kind collapse into one reply
const (
	MsgInvalidSession      = "Invalid session, please log in again"
	MsgInvalidCredentials  = "Invalid username or password"
	MsgWrongPassword       = "Current password is incorrect"
	MsgUserInactive        = "User account is disabled"
	MsgUserNotFound        = "User not found"
	MsgUserAlreadyExists   = "User with this username or email already exists"
	MsgCalculationNotFound = "Calculation not found"
	MsgInternal            = "Internal server error"
)

// AppError renders service error with matching status and returns the status
func AppError(w http.ResponseWriter, err error) int {
	var verr *policy.ValidationError
	if errors.As(err, &verr) {
		PolicyError(w, verr.Messages())
		return http.StatusUnprocessableEntity
	}

	code, message := statusOf(err)
	ServiceError(w, message, code)
	return code
}

func statusOf(err error) (int, string) {
	switch {
	// Wraps ErrUnauthorized as well, so has to go first
	case errors.Is(err, apperrors.ErrWrongCurrentPassword):
		return http.StatusBadRequest, MsgWrongPassword
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, MsgInvalidSession
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusUnauthorized, MsgInvalidCredentials
	case errors.Is(err, apperrors.ErrUserInactive):
		return http.StatusForbidden, MsgUserInactive
	case errors.Is(err, apperrors.ErrUserNotFound):
		return http.StatusNotFound, MsgUserNotFound
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		return http.StatusConflict, MsgUserAlreadyExists
	case errors.Is(err, apperrors.ErrCalculationNotFound):
		return http.StatusNotFound, MsgCalculationNotFound
	case errors.Is(err, apperrors.ErrCalculationInvalid):
		// Carries reason useful to client, e.g. 'division by zero'
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, MsgInternal
	}
}

