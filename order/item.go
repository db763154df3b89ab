package order

import "time"

// Item is one member of an ordering domain.
type Item struct {
	// ID is the stable identifier, unique within the domain.
	ID string

	// Domain is the ordering domain the item belongs to.
	Domain Domain

	// Position is the zero-based slot of the item.
	Position int

	// Version is incremented by the backend on every write.
	Version int64

	// CreatedAt breaks ties between items that share a position.
	CreatedAt time.Time
}

// Change is a single-row position write.
type Change struct {
	ID   string `json:"id"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

// Mutation is everything one operation writes to a domain.
// Backends apply it atomically or not at all.
type Mutation struct {
	// Create is the item to insert, if any.
	Create *Item

	// Delete is the ID of the item to remove, if any.
	Delete string

	// Changes are position updates for existing items.
	Changes []Change
}

// Empty reports whether the mutation writes nothing.
func (m Mutation) Empty() bool {
	return m.Create == nil && m.Delete == "" && len(m.Changes) == 0
}

// Size returns the number of rows the mutation writes.
func (m Mutation) Size() int {
	n := len(m.Changes)
	if m.Create != nil {
		n++
	}
	if m.Delete != "" {
		n++
	}
	return n
}

// Result describes a committed operation.
type Result struct {
	Domain Domain

	// Item is the created or moved item after the operation.
	// For Remove it holds the item as it was before deletion.
	Item *Item

	// Changes are the position writes applied to other items
	// (and to the moved item itself).
	Changes []Change
}
