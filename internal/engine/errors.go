package engine

import "errors"

var (
	// ErrUnauthenticated means no user identity is present at a call site
	// that requires one.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorized means an identity is present but is not permitted to
	// perform this operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrIllegalTransition means a bid status change violates the state
	// machine. The bid is left in its prior valid state.
	ErrIllegalTransition = errors.New("illegal bid transition")

	// ErrDuplicateBid means the contractor already has a pending bid on
	// this job.
	ErrDuplicateBid = errors.New("duplicate bid")

	// ErrEmptyMessage means a chat message had no text after trimming.
	ErrEmptyMessage = errors.New("empty message")

	ErrNotFound = errors.New("not found")

	// ErrTransientIO wraps store or network failures. Callers may retry;
	// the engine itself never does for writes.
	ErrTransientIO = errors.New("transient io failure")
)
