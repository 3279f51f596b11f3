package clusterstate

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var ErrStaleVersion = errors.New("stale cluster state version")

// Store holds the current cluster state. The state is replaced as a whole,
// readers take a reference once per operation and keep using it, so they
// never observe a mix of old and new tables.
type Store struct {
	current atomic.Pointer[State]
}

func NewStore(initial *State) *Store {
	s := &Store{}
	s.current.Store(initial)

	return s
}

// Load returns the current state.
func (s *Store) Load() *State {
	return s.current.Load()
}

// version is nil-safe, the store may start empty.
func (s *State) version() uint64 {
	if s == nil {
		return 0
	}

	return s.Version
}

// Swap replaces the current state with next. The version of next must be
// greater than the current one.
func (s *Store) Swap(next *State) error {
	for {
		curr := s.current.Load()

		if next.Version <= curr.version() {
			return fmt.Errorf("%w: %d, current is %d", ErrStaleVersion, next.Version, curr.version())
		}

		if s.current.CompareAndSwap(curr, next) {
			return nil
		}
	}
}

// Replace unconditionally replaces the current state. Used when a node
// receives a full state resync and may need to overwrite a version it has
// already seen.
func (s *Store) Replace(next *State) {
	s.current.Store(next)
}

// CompareAndSwap replaces the current state only if it is still old.
func (s *Store) CompareAndSwap(old, next *State) bool {
	return s.current.CompareAndSwap(old, next)
}
