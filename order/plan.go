package order

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Sort returns a copy of items in read order: ascending position, ties
// broken by CreatedAt and then ID.
func Sort(items []Item) []Item {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return sorted
}

// IsDense reports whether the positions of items are exactly 0..N-1.
func IsDense(items []Item) bool {
	for i, it := range Sort(items) {
		if it.Position != i {
			return false
		}
	}
	return true
}

// PlanAppend returns the item to insert at the end of the domain.
// Items must already be dense; see PlanCreate for the healing variant.
func PlanAppend(domain Domain, items []Item, id string, now time.Time) (Item, error) {
	if id == "" {
		return Item{}, ErrInvalidID
	}
	maxPos := -1
	for _, it := range items {
		if it.ID == id {
			return Item{}, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
		}
		if it.Position > maxPos {
			maxPos = it.Position
		}
	}
	return Item{
		ID:        id,
		Domain:    domain,
		Position:  maxPos + 1,
		CreatedAt: now,
	}, nil
}

// PlanCreate resequences a drifted snapshot and appends the new item after it.
func PlanCreate(domain Domain, items []Item, id string, now time.Time) (Mutation, error) {
	heal := PlanResequence(items)
	item, err := PlanAppend(domain, ApplyChanges(items, heal), id, now)
	if err != nil {
		return Mutation{}, err
	}
	return Mutation{Create: &item, Changes: heal}, nil
}

// PlanMove computes the writes that move item id to target.
//
// Moving to the current position writes nothing. Targets outside [0, N-1]
// are clamped, so a large sentinel moves the item to the end. If the
// snapshot is not dense it is resequenced before the move and the returned
// changes include the repair.
func PlanMove(items []Item, id string, target int) ([]Change, error) {
	sorted := Sort(items)
	idx := indexOf(sorted, id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	current := sorted[idx].Position
	if target == current {
		return nil, nil
	}

	pos := make(map[string]int, len(sorted))
	dense := true
	for i, it := range sorted {
		pos[it.ID] = it.Position
		if it.Position != i {
			dense = false
		}
	}
	if !dense {
		for i, it := range sorted {
			pos[it.ID] = i
		}
		current = idx
	}

	target = max(0, min(target, len(sorted)-1))
	if target != current {
		// Park outside the domain so the shift below cannot collide with it.
		pos[id] = -1
		lo, hi := min(current, target), max(current, target)
		for _, it := range sorted {
			if it.ID == id {
				continue
			}
			p := pos[it.ID]
			if p < lo || p > hi {
				continue
			}
			if current < target {
				pos[it.ID] = p - 1
			} else {
				pos[it.ID] = p + 1
			}
		}
		pos[id] = target
	}

	return diff(sorted, pos), nil
}

// PlanRemove displaces item id past the end of the domain and returns the
// writes that close its slot, together with the item being removed.
func PlanRemove(items []Item, id string) (Item, []Change, error) {
	sorted := Sort(items)
	idx := indexOf(sorted, id)
	if idx < 0 {
		return Item{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	moved, err := PlanMove(sorted, id, math.MaxInt)
	if err != nil {
		return Item{}, nil, err
	}
	changes := make([]Change, 0, len(moved))
	for _, c := range moved {
		if c.ID != id {
			changes = append(changes, c)
		}
	}
	return sorted[idx], changes, nil
}

// PlanResequence returns the writes that renumber items to 0..N-1 in read order.
// It returns nil for a dense domain.
func PlanResequence(items []Item) []Change {
	sorted := Sort(items)
	pos := make(map[string]int, len(sorted))
	for i, it := range sorted {
		pos[it.ID] = i
	}
	return diff(sorted, pos)
}

// ApplyChanges returns a copy of items with changes applied.
func ApplyChanges(items []Item, changes []Change) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	if len(changes) == 0 {
		return out
	}
	to := make(map[string]int, len(changes))
	for _, c := range changes {
		to[c.ID] = c.To
	}
	for i := range out {
		if p, ok := to[out[i].ID]; ok {
			out[i].Position = p
		}
	}
	return out
}

func indexOf(items []Item, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// diff lists the items whose planned position differs from the stored one, in read order.
func diff(sorted []Item, pos map[string]int) []Change {
	var changes []Change
	for _, it := range sorted {
		if p := pos[it.ID]; p != it.Position {
			changes = append(changes, Change{ID: it.ID, From: it.Position, To: p})
		}
	}
	return changes
}
