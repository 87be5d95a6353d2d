// Copyright 2026 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package set

import (
	"sort"
	"strings"
)

// StrSet is a set of strings. A StrSet created with NewCaseInsensitiveStrSet
// coalesces members that differ only in the case of ASCII letters and keeps the
// first spelling added.
type StrSet struct {
	items         map[string]string
	caseSensitive bool
}

// NewStrSet creates a set from a list of strings
func NewStrSet(items []string) *StrSet {
	s := &StrSet{make(map[string]string, len(items)), true}
	s.Add(items...)
	return s
}

// NewCaseInsensitiveStrSet creates a set that compares members ignoring the case of ASCII letters.
func NewCaseInsensitiveStrSet(items []string) *StrSet {
	s := &StrSet{make(map[string]string, len(items)), false}
	s.Add(items...)
	return s
}

func (s *StrSet) key(item string) string {
	if s.caseSensitive {
		return item
	}
	return strings.Map(foldASCII, item)
}

func foldASCII(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// Add adds new items to the set
func (s *StrSet) Add(items ...string) {
	for _, item := range items {
		k := s.key(item)
		if _, ok := s.items[k]; !ok {
			s.items[k] = item
		}
	}
}

// Remove removes existing items from the set
func (s *StrSet) Remove(items ...string) {
	for _, item := range items {
		delete(s.items, s.key(item))
	}
}

// Contains returns true if the item being checked is already in the set.
func (s *StrSet) Contains(item string) bool {
	_, present := s.items[s.key(item)]
	return present
}

// Union adds every member of |other| to this set.
func (s *StrSet) Union(other *StrSet) {
	for _, item := range other.items {
		s.Add(item)
	}
}

// Size returns the number of unique elements in the set
func (s *StrSet) Size() int {
	return len(s.items)
}

// AsSlice converts the set to a slice of strings. No order is guaranteed.
func (s *StrSet) AsSlice() []string {
	sl := make([]string, 0, len(s.items))
	for _, item := range s.items {
		sl = append(sl, item)
	}

	return sl
}

// AsSortedSlice converts the set to a slice of strings sorted lexicographically.
func (s *StrSet) AsSortedSlice() []string {
	sl := s.AsSlice()
	sort.Strings(sl)
	return sl
}

// Iterate accepts a callback which will be called once for each element in the set until all items have been
// exhausted or callback returns false.
func (s *StrSet) Iterate(callBack func(string) (cont bool)) {
	for _, item := range s.items {
		if !callBack(item) {
			break
		}
	}
}
