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

// Package row defines the untyped rows that engines store and the row copier moves between tables.
package row

import (
	"context"
	"encoding/binary"
	"io"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/0xffea/drizzle-sub000/libraries/utils/wire"
)

// Row is one value per column. A nil value is NULL.
type Row [][]byte

// Copy returns a deep copy of |r|.
func (r Row) Copy() Row {
	c := make(Row, len(r))
	for i, v := range r {
		if v != nil {
			c[i] = append([]byte{}, v...)
		}
	}
	return c
}

// Project returns a row with len(|mapping|) values, where value i is r[mapping[i]]. A negative mapping entry
// yields NULL.
func (r Row) Project(mapping []int) Row {
	out := make(Row, len(mapping))
	for i, from := range mapping {
		if from >= 0 && from < len(r) && r[from] != nil {
			out[i] = append([]byte{}, r[from]...)
		}
	}
	return out
}

const (
	fieldValue = 1
	fieldNull  = 2
)

// Encode returns the storage form of |r|.
func Encode(r Row) []byte {
	var e wire.Encoder
	for _, v := range r {
		if v == nil {
			e.B = protowire.AppendTag(e.B, fieldNull, protowire.VarintType)
			e.B = protowire.AppendVarint(e.B, 0)
			continue
		}
		e.B = protowire.AppendTag(e.B, fieldValue, protowire.BytesType)
		e.B = protowire.AppendBytes(e.B, v)
	}
	return e.B
}

// Decode reverses Encode.
func Decode(b []byte) (Row, error) {
	var r Row
	err := wire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldValue:
			var v []byte
			n, err := wire.ConsumeBytes(typ, b, &v)
			if n > 0 {
				r = append(r, v)
			}
			return n, err
		case fieldNull:
			var ignored uint64
			n, err := wire.ConsumeUint(typ, b, &ignored)
			if n > 0 {
				r = append(r, nil)
			}
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decoding row")
	}
	return r, nil
}

// Key returns the values of |r| at |ordinals| as a single comparable string. Each value is length prefixed so
// distinct tuples never produce the same key.
func Key(r Row, ordinals []int) string {
	var buf []byte
	for _, ord := range ordinals {
		if ord < 0 || ord >= len(r) || r[ord] == nil {
			buf = append(buf, 0)
			continue
		}
		buf = append(buf, 1)
		buf = binary.AppendUvarint(buf, uint64(len(r[ord])))
		buf = append(buf, r[ord]...)
	}
	return string(buf)
}

// FormatKey renders the values of |r| at |ordinals| for error messages.
func FormatKey(r Row, ordinals []int) string {
	parts := make([]string, len(ordinals))
	for i, ord := range ordinals {
		if ord < 0 || ord >= len(r) || r[ord] == nil {
			parts[i] = "NULL"
		} else {
			parts[i] = string(r[ord])
		}
	}
	return strings.Join(parts, "-")
}

// Iter iterates over rows. Next returns io.EOF once the rows are exhausted.
type Iter interface {
	Next(ctx context.Context) (Row, error)
	Close(ctx context.Context) error
}

type sliceIter struct {
	rows []Row
	pos  int
}

// NewSliceIter returns an Iter over |rows|.
func NewSliceIter(rows []Row) Iter {
	return &sliceIter{rows: rows}
}

func (it *sliceIter) Next(ctx context.Context) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.rows) {
		return nil, io.EOF
	}
	r := it.rows[it.pos]
	it.pos++
	return r, nil
}

func (it *sliceIter) Close(context.Context) error {
	return nil
}

// Collect drains |iter| and closes it.
func Collect(ctx context.Context, iter Iter) (rows []Row, err error) {
	defer func() {
		cerr := iter.Close(ctx)
		if err == nil {
			err = cerr
		}
	}()

	for {
		r, err := iter.Next(ctx)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
}
