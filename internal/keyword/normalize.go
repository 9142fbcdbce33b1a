// Package keyword decides whether a piece of page text contains one of the
// active spoiler keywords.
package keyword

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MinLength is the shortest keyword that may ever match.
const MinLength = 3

// Normalize trims and lowercases a keyword.
func Normalize(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// NormalizeList normalizes every keyword, dropping empties and duplicates
// while keeping first-seen order.
func NormalizeList(list []string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, raw := range list {
		k := Normalize(raw)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Digest returns a stable fingerprint of an ordered keyword list. Two lists
// with the same normalized content in the same order share a digest.
func Digest(list []string) string {
	h := sha3.New256()
	for _, k := range NormalizeList(list) {
		h.Write([]byte(k))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Set is an insertion-ordered set of normalized keywords.
// The zero value is ready to use.
type Set struct {
	order []string
	index map[string]struct{}
}

// NewSet returns a Set holding the normalized form of list.
func NewSet(list ...string) *Set {
	s := &Set{}
	for _, k := range list {
		s.Add(k)
	}
	return s
}

// Add inserts k and reports whether it was new.
func (s *Set) Add(k string) bool {
	k = Normalize(k)
	if k == "" {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = struct{}{}
	s.order = append(s.order, k)
	return true
}

// Has reports whether k (case-insensitively) is in the set.
func (s *Set) Has(k string) bool {
	if s == nil || s.index == nil {
		return false
	}
	_, ok := s.index[Normalize(k)]
	return ok
}

// IsIgnored implements Ignorer.
func (s *Set) IsIgnored(k string) bool {
	return s.Has(k)
}

// Len returns the number of keywords.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// List returns a copy of the keywords in insertion order.
func (s *Set) List() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Clear empties the set.
func (s *Set) Clear() {
	s.order = nil
	s.index = nil
}
