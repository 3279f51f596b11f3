package set

import (
	"golang.org/x/exp/maps"
)

type Set[T comparable] map[T]struct{}

func (s Set[T]) Add(val T) {
	s[val] = struct{}{}
}

// Union returns a new set with the values of both sets.
func (s Set[T]) Union(ss Set[T]) Set[T] {
	newset := make(Set[T], len(s)+len(ss))
	for val := range s {
		newset.Add(val)
	}

	for val := range ss {
		newset.Add(val)
	}

	return newset
}

// Intersect returns a new set with the values present in both sets.
func (s Set[T]) Intersect(ss Set[T]) Set[T] {
	small, large := s, ss
	if len(small) > len(large) {
		small, large = large, small
	}

	newset := make(Set[T], len(small))

	for val := range small {
		if large.Has(val) {
			newset.Add(val)
		}
	}

	return newset
}

func (s Set[T]) Remove(val T) {
	delete(s, val)
}

// Pop removes the value and reports whether it was present.
func (s Set[T]) Pop(val T) bool {
	if _, ok := s[val]; ok {
		delete(s, val)
		return true
	}

	return false
}

func (s Set[T]) Values() []T {
	return maps.Keys(s)
}

func (s Set[T]) Has(val T) bool {
	_, ok := s[val]
	return ok
}

func (s Set[T]) Len() int {
	return len(s)
}

// Clone returns a shallow copy of the set.
func (s Set[T]) Clone() Set[T] {
	return maps.Clone(s)
}

func (s Set[T]) Equals(ss Set[T]) bool {
	if len(s) != len(ss) {
		return false
	}

	for k := range s {
		if !ss.Has(k) {
			return false
		}
	}

	return true
}

func New[T comparable](sl ...T) Set[T] {
	set := make(Set[T], len(sl))
	for _, val := range sl {
		set.Add(val)
	}
	return set
}
