// Package party defines participant identity and the threshold
// configuration every session validates eagerly at construction.
package party

import "sort"

// ID uniquely identifies a participant within a session. Ids need not be
// contiguous but must be distinct and stable across a session's rounds.
type ID uint32

// IDSlice is a sortable, dedupable collection of ids.
type IDSlice []ID

func (s IDSlice) Len() int           { return len(s) }
func (s IDSlice) Less(i, j int) bool { return s[i] < s[j] }
func (s IDSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Sorted returns a sorted copy of s.
func (s IDSlice) Sorted() IDSlice {
	out := make(IDSlice, len(s))
	copy(out, s)
	sort.Sort(out)
	return out
}

// Contains reports whether id appears in s.
func (s IDSlice) Contains(id ID) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Without returns a copy of s with id removed.
func (s IDSlice) Without(id ID) IDSlice {
	out := make(IDSlice, 0, len(s))
	for _, v := range s {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
