package glyph

import (
	"encoding/binary"
	"hash/fnv"
	"slices"
)

// Set is a set of unicode scalar values.
//
// The zero value is an empty set ready to use. A Set must not be mutated
// after it has been handed to a background job; use Clone.
type Set struct {
	m map[rune]struct{}
}

// NewSet returns a set holding rs.
func NewSet(rs ...rune) *Set {
	s := &Set{m: make(map[rune]struct{}, len(rs))}
	for _, r := range rs {
		s.m[r] = struct{}{}
	}
	return s
}

// Range returns a set holding every rune in [lo, hi].
func Range(lo, hi rune) *Set {
	s := &Set{m: make(map[rune]struct{}, max(int(hi-lo+1), 0))}
	for r := lo; r <= hi; r++ {
		s.m[r] = struct{}{}
	}
	return s
}

// Add inserts r and reports whether it was absent.
func (s *Set) Add(r rune) bool {
	if s.m == nil {
		s.m = make(map[rune]struct{})
	}
	if _, ok := s.m[r]; ok {
		return false
	}
	s.m[r] = struct{}{}
	return true
}

// Has reports whether r is in the set.
func (s *Set) Has(r rune) bool {
	if s == nil {
		return false
	}
	_, ok := s.m[r]
	return ok
}

// Len returns the number of codepoints in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.m)
}

// AddSet inserts every codepoint of o and returns how many were new.
func (s *Set) AddSet(o *Set) int {
	if o == nil {
		return 0
	}
	n := 0
	for r := range o.m {
		if s.Add(r) {
			n++
		}
	}
	return n
}

// Union returns a new set holding the codepoints of s and o.
func (s *Set) Union(o *Set) *Set {
	u := s.Clone()
	u.AddSet(o)
	return u
}

// Contains reports whether every codepoint of o is in s.
func (s *Set) Contains(o *Set) bool {
	if o == nil {
		return true
	}
	for r := range o.m {
		if !s.Has(r) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set {
	c := &Set{m: make(map[rune]struct{}, s.Len())}
	if s != nil {
		for r := range s.m {
			c.m[r] = struct{}{}
		}
	}
	return c
}

// Sorted returns the codepoints in ascending order.
func (s *Set) Sorted() []rune {
	out := make([]rune, 0, s.Len())
	if s != nil {
		for r := range s.m {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return out
}

// Signature returns a 64-bit FNV-1a hash of the sorted codepoints followed
// by the tier flag. Equal sets with the same flag have equal signatures.
func (s *Set) Signature(final bool) uint64 {
	// fnv writes never return an error.
	h := fnv.New64a()
	var buf [4]byte
	for _, r := range s.Sorted() {
		binary.LittleEndian.PutUint32(buf[:], uint32(r)) //nolint:gosec // runes in a Set are valid scalars
		_, _ = h.Write(buf[:])
	}
	if final {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
