// Package apperr holds the sentinel errors shared by the workflow, repository,
// service and handler layers. Callers wrap them with fmt.Errorf("...: %w", err)
// and test with errors.Is.
package apperr

import "errors"

var (
	ErrValidation      = errors.New("validation error")
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized means the requester's department may not act on the current stage.
	ErrUnauthorized = errors.New("unauthorized for this stage")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")

	ErrDuplicateEntry         = errors.New("entry already exists for this company and period")
	ErrConcurrentModification = errors.New("entry was modified by another user")
	ErrTerminalState          = errors.New("entry is already sent")
	ErrInvalidState           = errors.New("entry is not in a state that allows this operation")
	ErrIncompleteData         = errors.New("profit amounts have not been filled")

	ErrSelfDeletion = errors.New("cannot delete your own account")
)
