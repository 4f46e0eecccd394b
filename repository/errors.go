package repository

import (
	"errors"

	"storyforge/db"
)

var (
	// ErrMissingOwnerContext means an operation was called without a caller identity. Always a caller bug.
	ErrMissingOwnerContext = errors.New("missing owner context")
	// ErrNotFoundOrAccessDenied deliberately does not say which of the two happened,
	// so callers cannot probe for other users' resources.
	ErrNotFoundOrAccessDenied = errors.New("resource not found or access denied")
	// ErrInvalidCollection means the collection name was empty.
	ErrInvalidCollection = errors.New("invalid collection")

	ErrInvalidIdentifier  = db.ErrInvalidIdentifier
	ErrStorageUnavailable = db.ErrStorageUnavailable
)
