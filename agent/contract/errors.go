package contract

import "errors"

var (
	ErrUnknownRole   = errors.New("unknown role")
	ErrUnauthorized  = errors.New("role is not permitted to use this tool")
	ErrValidation    = errors.New("validation failed")
	ErrStateConflict = errors.New("illegal travel request transition")
	ErrUpstream      = errors.New("upstream collaborator failed")
	ErrTimeout       = errors.New("operation timed out")
	ErrNotFound      = errors.New("not found")
)

// Machine-readable codes surfaced in tool results and HTTP failures.
const (
	CodeAuthorization = "AUTHORIZATION_ERROR"
	CodeValidation    = "VALIDATION_ERROR"
	CodeStateConflict = "STATE_CONFLICT"
	CodeUpstream      = "UPSTREAM_ERROR"
	CodeTimeout       = "TIMEOUT"
	CodeNotFound      = "NOT_FOUND"
	CodeInternal      = "INTERNAL_ERROR"
)

// CodeOf maps an error to its taxonomy code.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownRole), errors.Is(err, ErrUnauthorized):
		return CodeAuthorization
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrStateConflict):
		return CodeStateConflict
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUpstream):
		return CodeUpstream
	default:
		return CodeInternal
	}
}
