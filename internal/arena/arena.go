// Package arena provides a slot arena addressed by generational handles.
//
// Each renderer keeps one arena per resource type. A handle packs the slot
// index in its low 32 bits and the slot generation in its high 32 bits.
// Removing a value bumps the generation, so stale handles stop resolving
// instead of aliasing whatever reuses the slot later.
//
// Arenas are not safe for concurrent use; a renderer is driven from a
// single submission goroutine.
package arena

// Handle identifies a value stored in an Arena. The zero Handle is null.
type Handle uint64

// Index returns the slot index encoded in h.
func (h Handle) Index() uint32 { return uint32(h) }

// Generation returns the slot generation encoded in h.
func (h Handle) Generation() uint32 { return uint32(h >> 32) }

// IsNull reports whether h is the null handle.
func (h Handle) IsNull() bool { return h == 0 }

func makeHandle(index, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index))
}

type slot[T any] struct {
	gen  uint32
	used bool
	val  T
}

// Arena stores values of type T behind generational handles.
// The zero value is an empty arena ready for use.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	live  int
}

// Insert stores v and returns its handle. Generations start at 1, so a
// returned handle is never null.
func (a *Arena[T]) Insert(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}
	s := &a.slots[idx]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.used = true
	s.val = v
	a.live++
	return makeHandle(idx, s.gen)
}

// Get returns the value for h. The second result is false for the null
// handle, out-of-range indices and stale generations.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	if s := a.lookup(h); s != nil {
		return s.val, true
	}
	var zero T
	return zero, false
}

// Contains reports whether h resolves to a live value.
func (a *Arena[T]) Contains(h Handle) bool {
	return a.lookup(h) != nil
}

// Remove deletes the value for h and returns it. Removing a null or stale
// handle is a no-op that returns false.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	var zero T
	s := a.lookup(h)
	if s == nil {
		return zero, false
	}
	v := s.val
	s.val = zero
	s.used = false
	a.free = append(a.free, h.Index())
	a.live--
	return v, true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int { return a.live }

// Each calls fn for every live value in slot order.
// fn must not insert into or remove from the arena.
func (a *Arena[T]) Each(fn func(Handle, T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.used {
			fn(makeHandle(uint32(i), s.gen), s.val)
		}
	}
}

// Handles returns the handles of all live values in slot order.
func (a *Arena[T]) Handles() []Handle {
	out := make([]Handle, 0, a.live)
	a.Each(func(h Handle, _ T) { out = append(out, h) })
	return out
}

func (a *Arena[T]) lookup(h Handle) *slot[T] {
	if h.IsNull() {
		return nil
	}
	idx := h.Index()
	if int(idx) >= len(a.slots) {
		return nil
	}
	s := &a.slots[idx]
	if !s.used || s.gen != h.Generation() {
		return nil
	}
	return s
}
