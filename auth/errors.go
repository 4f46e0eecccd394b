package auth

import "errors"

var (
	// ErrMissingUserID is returned when the request carries no caller identity.
	ErrMissingUserID = errors.New("user identification required")

	// ErrInvalidUserID is returned when the identity is malformed.
	ErrInvalidUserID = errors.New("invalid user identifier format")

	// ErrReservedUserID is returned for identities that collide with the system owner.
	ErrReservedUserID = errors.New("user identifier is reserved")
)
