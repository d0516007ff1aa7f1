package models

import (
	"maps"
	"slices"
)

// UserID identifies a connected user.
type UserID string

// UserSet is a set of users. Operations treat sets as values: every algebra
// method returns a new set and leaves its receiver untouched.
type UserSet map[UserID]struct{}

func NewUserSet(ids ...UserID) UserSet {
	s := make(UserSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s UserSet) Len() int { return len(s) }

func (s UserSet) IsEmpty() bool { return len(s) == 0 }

func (s UserSet) Contains(id UserID) bool {
	_, ok := s[id]
	return ok
}

func (s UserSet) Clone() UserSet {
	if s == nil {
		return UserSet{}
	}
	return maps.Clone(s)
}

// Union returns s ∪ o.
func (s UserSet) Union(o UserSet) UserSet {
	out := make(UserSet, len(s)+len(o))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range o {
		out[id] = struct{}{}
	}
	return out
}

// Difference returns s \ o.
func (s UserSet) Difference(o UserSet) UserSet {
	out := make(UserSet, len(s))
	for id := range s {
		if _, ok := o[id]; !ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// Intersect returns s ∩ o.
func (s UserSet) Intersect(o UserSet) UserSet {
	out := make(UserSet)
	for id := range s {
		if _, ok := o[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func (s UserSet) Equal(o UserSet) bool {
	if len(s) != len(o) {
		return false
	}
	for id := range s {
		if _, ok := o[id]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the members in ascending order.
func (s UserSet) Sorted() []UserID {
	return slices.Sorted(maps.Keys(s))
}

// Strings returns the sorted members as strings, for logging.
func (s UserSet) Strings() []string {
	ids := s.Sorted()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
