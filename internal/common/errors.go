// Package common defines shared constants and sentinel errors used across
// deaddrop components. Callers should use errors.Is to match these values.
//
// The errors fall into the classes the source-facing layers care about:
// user input, authentication misses, resource races and fatal conditions.
// Remote parties only ever see a generic message per class.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// User input errors.
	ErrInvalidInput    = errors.New("invalid input")
	ErrNothingToSubmit = errors.New("nothing to submit")
	ErrAlreadyLoggedIn = errors.New("already logged in")

	// Authentication misses.
	ErrNotRecognized  = errors.New("not a recognized codename")
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrSessionExpired = errors.New("session expired")
	ErrInvalidToken   = errors.New("invalid token")

	// Resource races.
	ErrDuplicateCodename = errors.New("duplicate codename")

	// Fatal errors.
	ErrHashUnavailable    = errors.New("codename hash unavailable")
	ErrNoRecipient        = errors.New("no encryption recipient configured")
	ErrCodenameGeneration = errors.New("codename generation failed")

	// ErrNoRepliesFound signals a delete-all that found nothing to delete.
	ErrNoRepliesFound = errors.New("no replies found")
)
