package domain

import "errors"

var (
	// ErrEmptyDescription is returned when a submitted description is blank after trimming
	ErrEmptyDescription = errors.New("task description is required")

	// ErrNoSession is returned when an operation needs an authenticated session and none is present
	ErrNoSession = errors.New("not signed in")

	// ErrTaskNotFound is returned when a task cannot be found for the caller
	ErrTaskNotFound = errors.New("task not found")

	// ErrForbidden is returned when a request tries to act on behalf of another user
	ErrForbidden = errors.New("user does not match session")

	// ErrInvalidStatus is returned when a status outside the known set is supplied
	ErrInvalidStatus = errors.New("invalid task status")
)

// IsValidation reports whether err was raised before any remote call was attempted
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyDescription) || errors.Is(err, ErrNoSession)
}
