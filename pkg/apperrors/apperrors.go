package apperrors

import "errors"

var (
	// ErrNotFound means a referenced uid does not exist in the owning store.
	ErrNotFound = errors.New("record not found")

	// ErrBookUnavailable means a borrow was attempted on a book that is
	// missing or already on loan.
	ErrBookUnavailable = errors.New("book is not available for loan")

	// ErrInvalidTransition means a status change was attempted from a
	// terminal state.
	ErrInvalidTransition = errors.New("status transition not permitted")
)
