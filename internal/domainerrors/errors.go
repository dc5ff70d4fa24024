// Package domainerrors defines the sentinel error taxonomy shared by every
// domain package. The HTTP boundary (internal/api) maps these to the wire
// error taxonomy via errors.Is/errors.As; domain packages never import
// internal/api.
package domainerrors

import "errors"

var (
	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest marks an invariant violation at a component boundary.
	ErrBadRequest = errors.New("bad request")
	// ErrConflict marks a unique-constraint violation, used internally as
	// a retry signal (§4.7) and surfaced directly only when nothing above
	// retries it.
	ErrConflict = errors.New("conflict")
	// ErrDependencyFailure marks a failure in the config service, object
	// storage, CDN, or DB after internal retries were exhausted.
	ErrDependencyFailure = errors.New("dependency failure")
	// ErrInternal marks a programmer error or unexpected state.
	ErrInternal = errors.New("internal error")
)
