package query

import "iter"

// View is a read-only view of a prepared clause list. A statement hands out
// the same *View on every call; the view stays valid after the statement is
// cleared.
type View[T any] struct {
	items []T
}

func freezeView[T any](items []T) *View[T] {
	return &View[T]{items: append([]T(nil), items...)}
}

// Len returns the number of items.
func (v *View[T]) Len() int { return len(v.items) }

// At returns item i.
func (v *View[T]) At(i int) T { return v.items[i] }

// All iterates over index and item.
func (v *View[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, x := range v.items {
			if !yield(i, x) {
				return
			}
		}
	}
}

// Slice returns a copy of the items.
func (v *View[T]) Slice() []T { return append([]T(nil), v.items...) }
