package relationships

import "errors"

var (
	// ErrUnknownRelationship is returned when a collection is not found
	ErrUnknownRelationship = errors.New("unknown relationship")

	// ErrUnpersistedOwner is returned when loading the collection of an object without identity
	ErrUnpersistedOwner = errors.New("owner has no identity")
)
