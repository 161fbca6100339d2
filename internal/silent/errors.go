package silent

import "errors"

// Domain errors surfaced to the collaborator caller, who decides the
// user-visible behavior.
var (
	ErrNoActiveSession     = errors.New("silent: no active session")
	ErrRequestIDMismatch   = errors.New("silent: request id mismatch")
	ErrUnsupportedPlatform = errors.New("silent: unsupported platform")
)
