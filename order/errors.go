package order

import "errors"

var (
	// ErrNotFound is returned when an item is not part of the domain.
	ErrNotFound = errors.New("ordinal: item not found")

	// ErrAlreadyExists is returned when creating an item whose ID is already in the domain.
	ErrAlreadyExists = errors.New("ordinal: item already exists")

	// ErrInvalidID is returned for an empty item ID.
	ErrInvalidID = errors.New("ordinal: invalid item id")

	// ErrInvalidDomain is returned for a domain with an empty or malformed kind or scope.
	ErrInvalidDomain = errors.New("ordinal: invalid domain")

	// ErrConcurrentModification is returned when the domain changed between read and write.
	ErrConcurrentModification = errors.New("ordinal: domain was modified concurrently")

	// ErrDomainTooLarge is returned when a mutation cannot be applied in one atomic write.
	ErrDomainTooLarge = errors.New("ordinal: domain too large for atomic update")
)
