// Package order keeps a dense, zero-based position sequence over the items
// of an ordering domain.
//
// An ordering domain is the set of items whose positions must form the
// sequence 0..N-1 with no gaps or duplicates, for example the membership
// plans of one company. The domain is always an explicit [Domain] value;
// there is no implicit table-wide scope.
//
// # Operations
//
//   - [Orderer.Create] appends a new item at max(position)+1.
//   - [Orderer.Move] parks the item, shifts the items between its current and
//     target position by one slot toward the vacated slot, then places it.
//   - [Orderer.Remove] deletes the item and shifts every later item down.
//   - [Orderer.Resequence] rewrites positions to 0..N-1 in current order.
//   - [Orderer.Repair] resequences every domain that is not dense.
//
// Each operation reads a snapshot, plans its writes with the pure Plan*
// functions and hands the resulting [Mutation] to a [Backend], which applies
// it atomically. A snapshot that is not dense is resequenced as part of the
// next move or remove, so drift heals deterministically.
//
// # Errors
//
//   - [ErrNotFound] - item is not part of the domain
//   - [ErrAlreadyExists] - item ID already present in the domain
//   - [ErrInvalidID] - empty item ID
//   - [ErrInvalidDomain] - malformed domain key
//   - [ErrConcurrentModification] - domain changed under an optimistic write
//   - [ErrDomainTooLarge] - mutation exceeds the backend's atomic write limit
package order
