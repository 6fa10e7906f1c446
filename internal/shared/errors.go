package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation indicates a rejected input value.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the subject may not perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidToken indicates an API token that failed verification.
	ErrInvalidToken = errors.New("invalid token")
)

// UserSafeMessage maps internal errors to messages safe for API
// responses. Anything unrecognized collapses to a generic message so
// internals never leak.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested resource was not found."
	case errors.Is(err, ErrDuplicate):
		return "A resource with the same identity already exists."
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrForbidden):
		return "You do not have permission to perform this action."
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken):
		return "Authentication is required."
	default:
		return "An unexpected error occurred."
	}
}
