// Package herr defines the error kinds surfaced to clients at the
// router boundary. Every error a handler returns should wrap one of
// these via fmt.Errorf("...: %w", kind) so the router can classify it
// without string matching.
package herr

import "errors"

var (
	Validation = errors.New("validation")
	Auth       = errors.New("auth")
	Conflict   = errors.New("conflict")
	NotFound   = errors.New("not-found")
	State      = errors.New("state")
	Transient  = errors.New("transient")
	Internal   = errors.New("internal")
)

// Tag returns the stable error tag for a client-facing reply. Errors
// that don't wrap a known kind classify as internal.
func Tag(err error) string {
	switch {
	case errors.Is(err, Validation):
		return "validation"
	case errors.Is(err, Auth):
		return "auth"
	case errors.Is(err, Conflict):
		return "conflict"
	case errors.Is(err, NotFound):
		return "not-found"
	case errors.Is(err, State):
		return "state"
	case errors.Is(err, Transient):
		return "transient"
	default:
		return "internal"
	}
}
