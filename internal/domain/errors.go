package domain

import "errors"

// Upstream error taxonomy. Collaborators wrap these so callers can use errors.Is.
var (
	// ErrNotFound is an upstream 404.
	ErrNotFound = errors.New("not found")
	// ErrLocked is an upstream 423: another user has the prisoner open.
	ErrLocked = errors.New("prisoner record locked")
	// ErrBadRequest is an upstream 400 on a move, usually a cell that is no longer available.
	ErrBadRequest = errors.New("upstream rejected request")
	// ErrInvalidInput is a caller-side validation failure.
	ErrInvalidInput = errors.New("invalid input")
)

// IgnoreNotFound treats a not-found on an optional lookup as "no data".
func IgnoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
