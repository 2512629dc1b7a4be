// Package reconcile merges two collections of the same entity kind by id.
package reconcile

import "bizdash/backend/internal/domain"

// Merge returns every entity of primary plus the entities of secondary whose
// id primary does not know. Primary always wins on an id collision, however
// recent the secondary row is. The result keeps primary order followed by the
// new secondary rows in their original order. Secondary rows without an id are
// skipped, and a repeated secondary id keeps its first occurrence.
func Merge[T domain.Entity](primary, secondary []T) []T {
	merged := make([]T, 0, len(primary)+len(secondary))
	seen := make(map[string]struct{}, len(primary)+len(secondary))

	for _, item := range primary {
		id := item.EntityID()
		if _, dup := seen[id]; dup && id != "" {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, item)
	}

	for _, item := range secondary {
		id := item.EntityID()
		if id == "" {
			continue
		}
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, item)
	}

	return merged
}
