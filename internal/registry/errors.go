package registry

import "errors"

var (
	// ErrUnauthorized is returned when the caller lacks the required role.
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrAlreadyExists is returned when an owner or public key collides
	// with an existing live record.
	ErrAlreadyExists = errors.New("validator already exists")

	// ErrNotFound is returned when an operation targets an owner that was
	// never added. An owner pending lazy deletion does not count as absent;
	// touching it completes the deletion and the operation succeeds as a
	// no-op.
	ErrNotFound = errors.New("validator not found")

	// ErrInvalidInput is returned for a zero owner id or an empty public
	// key or proof of possession.
	ErrInvalidInput = errors.New("invalid input")
)
