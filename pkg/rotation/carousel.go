package rotation

import "sync"

// Carousel pairs a list of items with a Rotator that selects one of them.
type Carousel[T any] struct {
	*Rotator

	mu    sync.RWMutex
	items []T
}

// NewCarousel creates a stopped carousel over items. opts.Length is ignored.
func NewCarousel[T any](items []T, opts Options) *Carousel[T] {
	opts.Length = len(items)
	return &Carousel[T]{
		Rotator: NewRotator(opts),
		items:   append([]T(nil), items...),
	}
}

// SetItems replaces the items and normalizes the selection.
func (c *Carousel[T]) SetItems(items []T) State {
	c.mu.Lock()
	c.items = append([]T(nil), items...)
	n := len(c.items)
	c.mu.Unlock()
	return c.SetLength(n)
}

// Items returns a copy of the items.
func (c *Carousel[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.items...)
}

// Current returns the selected item and the state. ok is false when there are no items.
func (c *Carousel[T]) Current() (item T, s State, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s = c.State()
	if s.Length == 0 || s.Index >= len(c.items) {
		return item, s, false
	}
	return c.items[s.Index], s, true
}
