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

package row

// Set holds rows in insertion order and rejects rows whose key columns repeat an earlier row. A Set with no key
// columns accepts every row. Set is not safe for concurrent use.
type Set struct {
	keyOrds []int
	rows    []Row
	keys    map[string]struct{}
}

// NewSet returns an empty Set keyed on the columns at |keyOrds|.
func NewSet(keyOrds []int) *Set {
	return &Set{keyOrds: keyOrds, keys: make(map[string]struct{})}
}

// Add appends a copy of |r|. It returns false, leaving the set unchanged, if |r| repeats the key of a row
// already present.
func (s *Set) Add(r Row) bool {
	if len(s.keyOrds) > 0 {
		k := Key(r, s.keyOrds)
		if _, ok := s.keys[k]; ok {
			return false
		}
		s.keys[k] = struct{}{}
	}
	s.rows = append(s.rows, r.Copy())
	return true
}

func (s *Set) Len() int {
	return len(s.rows)
}

// Rows returns a copy of the rows in insertion order.
func (s *Set) Rows() []Row {
	rows := make([]Row, len(s.rows))
	for i, r := range s.rows {
		rows[i] = r.Copy()
	}
	return rows
}
