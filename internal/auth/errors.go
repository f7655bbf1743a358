package auth

import "errors"

var (
	ErrTokenRequired = errors.New("authentication token required")
	ErrInvalidToken  = errors.New("invalid authentication token")
	ErrUserNotFound  = errors.New("user not found")
	ErrAuthFailed    = errors.New("authentication failed")
)

// RejectReason is the text sent to a client whose handshake failed.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenRequired):
		return ErrTokenRequired.Error()
	case errors.Is(err, ErrInvalidToken):
		return ErrInvalidToken.Error()
	case errors.Is(err, ErrUserNotFound):
		return ErrUserNotFound.Error()
	default:
		return ErrAuthFailed.Error()
	}
}

// RejectCode is the metrics/log label for a handshake failure.
func RejectCode(err error) string {
	switch {
	case errors.Is(err, ErrTokenRequired):
		return "token_required"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	default:
		return "auth_failed"
	}
}
