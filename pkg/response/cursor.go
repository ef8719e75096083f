package response

import "iter"

// cursor is a forward sequence over a fixed list with a rewindable position.
//
//	for files.Next() {
//		f := files.Current()
//	}
type cursor[T any] struct {
	items []T
	pos   int
}

func newCursor[T any](items []T) cursor[T] {
	return cursor[T]{items: items, pos: -1}
}

// Len is the number of items, independent of the position.
func (c *cursor[T]) Len() int { return len(c.items) }

// Next advances to the next item and reports whether there is one.
func (c *cursor[T]) Next() bool {
	if c.pos+1 < len(c.items) {
		c.pos++
		return true
	}
	c.pos = len(c.items)
	return false
}

// Current returns the item at the position, or the zero value before the
// first call to Next and after the end.
func (c *cursor[T]) Current() T {
	var zero T
	if c.pos < 0 || c.pos >= len(c.items) {
		return zero
	}
	return c.items[c.pos]
}

// Index is the current position; -1 before the first Next.
func (c *cursor[T]) Index() int { return c.pos }

// Rewind moves back before the first item.
func (c *cursor[T]) Rewind() { c.pos = -1 }

// All iterates every item from the start without touching the position.
func (c *cursor[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, item := range c.items {
			if !yield(i, item) {
				return
			}
		}
	}
}
