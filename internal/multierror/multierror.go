package multierror

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Error combines errors keyed by the entity that produced them, such as a
// node ID or a component name. Safe to use concurrently.
type Error[K comparable] struct {
	mu     sync.Mutex
	errors map[K]error
}

// New creates a new Error.
func New[K comparable]() *Error[K] {
	return &Error[K]{
		errors: make(map[K]error),
	}
}

// Error returns a string representation of the error, ordered by key.
func (m *Error[K]) Error() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := make([]string, 0, len(m.errors))
	for k, v := range m.errors {
		parts = append(parts, fmt.Sprintf("%v:%s", k, v))
	}

	sort.Strings(parts)

	return strings.Join(parts, "; ")
}

// Unwrap returns the combined errors, so that errors.Is and errors.As
// can see through the wrapper.
func (m *Error[K]) Unwrap() []error {
	m.mu.Lock()
	defer m.mu.Unlock()

	errs := make([]error, 0, len(m.errors))
	for _, v := range m.errors {
		errs = append(errs, v)
	}

	return errs
}

// Len returns the number of errors.
func (m *Error[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.errors)
}

// Add adds an error under the given key. Nil errors are ignored.
func (m *Error[K]) Add(key K, err error) {
	if err == nil {
		return
	}

	m.mu.Lock()
	m.errors[key] = err
	m.mu.Unlock()
}

// Get returns an error by key.
func (m *Error[K]) Get(key K) (error, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.errors[key]

	return v, ok
}

// Ret returns the Error if it contains any errors, nil otherwise.
func (m *Error[K]) Ret() error {
	if m.Len() == 0 {
		return nil
	}

	return m
}
