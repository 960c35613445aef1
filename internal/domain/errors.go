package domain

import "errors"

// Sentinel errors shared by every layer. Callers match them with errors.Is;
// causes are attached with fmt.Errorf("%w: %w", ...).
var (
	// ErrBusy: another engine operation is in progress. Nothing was changed.
	ErrBusy = errors.New("busy")

	// ErrPendingOperations: logout was refused because the engine was busy.
	ErrPendingOperations = errors.New("pending operations")

	// ErrServerError: a remote call failed while an engine operation ran.
	ErrServerError = errors.New("server error")

	// Remote transport outcomes.
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrUnknown           = errors.New("unknown remote error")

	// ErrNotFound: no bookmark with the requested URL is stored.
	ErrNotFound = errors.New("bookmark not found")

	// ErrInvalidBookmark: a create or edit was rejected before reaching the remote.
	ErrInvalidBookmark = errors.New("invalid bookmark")
)
