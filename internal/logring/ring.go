package logring

import "sync"

// Buffer is a bounded FIFO ring. Appending to a full buffer drops the
// oldest entry. Safe for concurrent use.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
	max   int
}

// New returns a Buffer holding at most capacity entries.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{max: capacity}
}

func (b *Buffer[T]) Append(v T) {
	b.mu.Lock()
	b.items = append(b.items, v)
	if len(b.items) > b.max {
		// shift instead of reslice to let the dropped head be collected
		copy(b.items, b.items[1:])
		b.items = b.items[:b.max]
	}
	b.mu.Unlock()
}

// Snapshot returns a copy of the current contents, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	out := make([]T, len(b.items))
	copy(out, b.items)
	b.mu.Unlock()
	return out
}

func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	n := len(b.items)
	b.mu.Unlock()
	return n
}

// Cap returns the maximum number of retained entries.
func (b *Buffer[T]) Cap() int { return b.max }
