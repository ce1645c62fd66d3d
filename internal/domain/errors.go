package domain

import "errors"

// Error taxonomy shared by the websocket and HTTP paths. Handlers map these
// to transport codes; everything else is surfaced as an opaque internal error.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrAccessDenied   = errors.New("access denied")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidState   = errors.New("invalid state")
	ErrValidation     = errors.New("validation failed")
	ErrUnavailable    = errors.New("counselor is not available")
)
