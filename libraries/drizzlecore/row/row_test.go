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

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	r := Row{[]byte("1"), nil, []byte{}, []byte("hello")}
	decoded, err := Decode(Encode(r))
	require.NoError(t, err)
	assert.Equal(t, r, decoded)
	assert.Nil(t, decoded[1])
	assert.NotNil(t, decoded[2])

	_, err = Decode([]byte{0x0a, 0x05, 'a'})
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	a := Row{[]byte("ab"), []byte("c")}
	b := Row{[]byte("a"), []byte("bc")}
	assert.NotEqual(t, Key(a, []int{0, 1}), Key(b, []int{0, 1}))
	assert.Equal(t, Key(a, []int{1}), Key(Row{nil, []byte("c")}, []int{1}))
	assert.NotEqual(t, Key(Row{nil}, []int{0}), Key(Row{[]byte{}}, []int{0}))
}

func TestProject(t *testing.T) {
	r := Row{[]byte("a"), []byte("b"), nil}
	p := r.Project([]int{2, 0, -1})
	assert.Equal(t, Row{nil, []byte("a"), nil}, p)

	p[1][0] = 'z'
	assert.Equal(t, []byte("a"), r[0])
}

func TestCollect(t *testing.T) {
	ctx := context.Background()
	rows := []Row{{[]byte("1")}, {[]byte("2")}}
	got, err := Collect(ctx, NewSliceIter(rows))
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Collect(cctx, NewSliceIter(rows))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSet(t *testing.T) {
	s := NewSet([]int{0})
	assert.True(t, s.Add(Row{[]byte("1"), []byte("a")}))
	assert.True(t, s.Add(Row{[]byte("2"), []byte("a")}))
	assert.False(t, s.Add(Row{[]byte("1"), []byte("b")}))
	assert.Equal(t, 2, s.Len())

	rows := s.Rows()
	rows[0][1][0] = 'z'
	assert.Equal(t, []byte("a"), s.Rows()[0][1])

	unkeyed := NewSet(nil)
	assert.True(t, unkeyed.Add(Row{[]byte("1")}))
	assert.True(t, unkeyed.Add(Row{[]byte("1")}))
	assert.Equal(t, 2, unkeyed.Len())
}

func TestFormatKey(t *testing.T) {
	r := Row{[]byte("1"), nil, []byte("x")}
	assert.Equal(t, "1-NULL-x", FormatKey(r, []int{0, 1, 2}))
	assert.Equal(t, "x", FormatKey(r, []int{2}))
}
