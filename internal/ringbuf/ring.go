// Package ringbuf provides a fixed-capacity FIFO buffer that evicts the oldest
// element once full.
package ringbuf

type Ring[T any] struct {
	data []T
	head int // index of the oldest element
	size int
}

func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Push appends v, dropping the oldest element when the ring is full.
func (r *Ring[T]) Push(v T) *Ring[T] {
	if r.size < len(r.data) {
		r.data[(r.head+r.size)%len(r.data)] = v
		r.size++
		return r
	}
	r.data[r.head] = v
	r.head = (r.head + 1) % len(r.data)
	return r
}

// Walk calls fn for every element, oldest first.
func (r *Ring[T]) Walk(fn func(T)) {
	for i := 0; i < r.size; i++ {
		fn(r.data[(r.head+i)%len(r.data)])
	}
}

// Items returns a copy of the contents in insertion order.
func (r *Ring[T]) Items() []T {
	out := make([]T, 0, r.size)
	r.Walk(func(v T) { out = append(out, v) })
	return out
}

// Last returns the most recently pushed element.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.data[(r.head+r.size-1)%len(r.data)], true
}

func (r *Ring[T]) Len() int { return r.size }

func (r *Ring[T]) Cap() int { return len(r.data) }
