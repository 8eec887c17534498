package model

import "strings"

// Direction is the ordering of a sort.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// SortSpec is the single active sort key and its direction.
type SortSpec struct {
	Key       string    `json:"key,omitempty" toml:"key"`
	Direction Direction `json:"direction,omitempty" toml:"direction"`
}

// IsZero reports whether no sort is active.
func (s SortSpec) IsZero() bool {
	return s.Key == ""
}

// Desc reports whether the sort is descending.
func (s SortSpec) Desc() bool {
	return s.Direction == Descending
}

// Toggle returns the sort after the user selects key: the same key flips
// direction, a new key starts ascending.
func (s SortSpec) Toggle(key string) SortSpec {
	if key == s.Key {
		if s.Desc() {
			return SortSpec{Key: key, Direction: Ascending}
		}
		return SortSpec{Key: key, Direction: Descending}
	}
	return SortSpec{Key: key, Direction: Ascending}
}

// String renders the spec as "key" or "-key" for descending.
func (s SortSpec) String() string {
	if s.Key == "" {
		return ""
	}
	if s.Desc() {
		return "-" + s.Key
	}
	return s.Key
}

// ParseSort parses "key" or "-key" (descending).
func ParseSort(s string) SortSpec {
	s = strings.TrimSpace(s)
	if s == "" {
		return SortSpec{}
	}
	if strings.HasPrefix(s, "-") {
		return SortSpec{Key: strings.TrimPrefix(s, "-"), Direction: Descending}
	}
	return SortSpec{Key: s, Direction: Ascending}
}
