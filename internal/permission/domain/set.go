package domain

import (
	"encoding/json"
	"sort"
)

// Set is an immutable, sorted, de-duplicated collection of permissions.
// The zero value is the empty set.
type Set struct {
	items []Permission
}

func NewSet(perms ...Permission) Set {
	if len(perms) == 0 {
		return Set{}
	}
	seen := make(map[Permission]struct{}, len(perms))
	items := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		items = append(items, p)
	}
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
	return Set{items: items}
}

func (s Set) Len() int { return len(s.items) }

func (s Set) IsEmpty() bool { return len(s.items) == 0 }

func (s Set) Contains(p Permission) bool {
	i := sort.Search(len(s.items), func(i int) bool { return s.items[i] >= p })
	return i < len(s.items) && s.items[i] == p
}

func (s Set) ContainsAny(perms ...Permission) bool {
	for _, p := range perms {
		if s.Contains(p) {
			return true
		}
	}
	return false
}

// ContainsAll reports whether other is a subset of s.
func (s Set) ContainsAll(other Set) bool {
	for _, p := range other.items {
		if !s.Contains(p) {
			return false
		}
	}
	return true
}

func (s Set) Union(others ...Set) Set {
	total := len(s.items)
	for _, o := range others {
		total += len(o.items)
	}
	merged := make([]Permission, 0, total)
	merged = append(merged, s.items...)
	for _, o := range others {
		merged = append(merged, o.items...)
	}
	return NewSet(merged...)
}

// Difference returns the permissions in s that are not in other.
func (s Set) Difference(other Set) Set {
	out := make([]Permission, 0, len(s.items))
	for _, p := range s.items {
		if !other.Contains(p) {
			out = append(out, p)
		}
	}
	return Set{items: out}
}

// Slice returns a sorted copy.
func (s Set) Slice() []Permission {
	out := make([]Permission, len(s.items))
	copy(out, s.items)
	return out
}

func (s Set) Strings() []string {
	out := make([]string, len(s.items))
	for i, p := range s.items {
		out[i] = string(p)
	}
	return out
}

func (s Set) Equal(other Set) bool {
	if len(s.items) != len(other.items) {
		return false
	}
	for i := range s.items {
		if s.items[i] != other.items[i] {
			return false
		}
	}
	return true
}

// MarshalJSON always emits an array, never null.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	perms := make([]Permission, len(values))
	for i, v := range values {
		perms[i] = Permission(v)
	}
	*s = NewSet(perms...)
	return nil
}
