package heap

// Less reports whether a must be popped before b.
type Less[T any] func(a, b T) bool

// Heap is a generic binary heap ordered by a user-supplied comparator.
// Not safe to use concurrently.
type Heap[T any] struct {
	less  Less[T]
	items []T
}

// New creates new heap data structure with given comparator.
func New[T any](less Less[T]) *Heap[T] {
	return &Heap[T]{
		items: make([]T, 0),
		less:  less,
	}
}

func (h *Heap[T]) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *Heap[T]) up(j int) {
	for {
		i := (j - 1) / 2 // parent
		if i == j || !h.less(h.items[j], h.items[i]) {
			break
		}

		h.swap(i, j)

		j = i
	}
}

func (h *Heap[T]) down(i0, n int) {
	i := i0

	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 { // j1 < 0 after int overflow
			break
		}

		j := j1 // left child

		if j2 := j1 + 1; j2 < n && h.less(h.items[j2], h.items[j1]) {
			j = j2 // right child
		}

		if !h.less(h.items[j], h.items[i]) {
			break
		}

		h.swap(i, j)

		i = j
	}
}

// Len returns current number of elements on the structure.
func (h *Heap[T]) Len() int {
	return len(h.items)
}

// Push adds new element to the heap in O(log n) time.
func (h *Heap[T]) Push(val T) {
	h.items = append(h.items, val)
	h.up(h.Len() - 1)
}

// Pop returns and removes the top element from the heap. Panics if there are no elements.
func (h *Heap[T]) Pop() T {
	n := h.Len() - 1
	if n < 0 {
		panic("no elements in the heap")
	}

	h.swap(0, n)
	h.down(0, n)

	item := h.items[n]

	var zero T
	h.items[n] = zero // do not retain popped pointers
	h.items = h.items[:n]

	return item
}

// Peek returns the top value without removing it from the heap. Will panic if the heap is empty.
func (h *Heap[T]) Peek() T {
	return h.items[0]
}

// Drain pops all elements in heap order, leaving the heap empty.
func (h *Heap[T]) Drain() []T {
	out := make([]T, 0, h.Len())
	for h.Len() > 0 {
		out = append(out, h.Pop())
	}

	return out
}

// Items returns a copy of the elements in no particular order.
func (h *Heap[T]) Items() []T {
	out := make([]T, len(h.items))
	copy(out, h.items)

	return out
}
