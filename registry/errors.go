package registry

import "errors"

var (
	// ErrAlreadyRegistered is returned when an account self-registers twice.
	ErrAlreadyRegistered = errors.New("registry: account already registered")

	// ErrUnauthorized is returned when a non-administrator calls an
	// administrator-only operation.
	ErrUnauthorized = errors.New("registry: caller is not the administrator")
)
