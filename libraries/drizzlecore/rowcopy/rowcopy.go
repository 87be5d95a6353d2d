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

// Package rowcopy moves rows between two open tables, remapping columns on the way. ALTER TABLE uses it to fill
// the rebuilt table.
package rowcopy

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/row"
)

// OnDuplicate says what to do with a row whose primary key is already present in the destination.
type OnDuplicate uint8

const (
	Abort OnDuplicate = iota
	Ignore
)

func (d OnDuplicate) String() string {
	if d == Ignore {
		return "ignore"
	}
	return "abort"
}

// Stats counts the rows a copy wrote and the rows it skipped as duplicates.
type Stats struct {
	Copied   uint64
	Rejected uint64
}

// Mapping turns a source row into a destination row. Destination column i takes source column Ordinals[i]; a
// negative ordinal takes Defaults[i], which may be nil for NULL.
type Mapping struct {
	Ordinals []int
	Defaults row.Row
}

// MappingFor maps the columns of |to| onto the columns of |from| with the same name. Columns only in |to| get
// their declared default.
func MappingFor(from, to *message.Table) Mapping {
	m := Mapping{
		Ordinals: make([]int, len(to.Columns)),
		Defaults: make(row.Row, len(to.Columns)),
	}
	for i, col := range to.Columns {
		m.Ordinals[i] = from.ColumnIndex(col.Name)
		if m.Ordinals[i] < 0 && col.HasDefault {
			m.Defaults[i] = append([]byte{}, col.Default...)
		}
	}
	return m
}

// Apply returns the destination row for |r|.
func (m Mapping) Apply(r row.Row) row.Row {
	out := r.Project(m.Ordinals)
	for i, ord := range m.Ordinals {
		if ord < 0 && i < len(m.Defaults) && m.Defaults[i] != nil {
			out[i] = append([]byte{}, m.Defaults[i]...)
		}
	}
	return out
}

// CopyRows reads every row of |from| and inserts it into |to| through |m|. With Ignore, rows that collide on the
// primary key are counted as rejected and skipped; with Abort the first collision ends the copy with the duplicate
// key error. Rows already written are left in |to| either way.
func CopyRows(ctx context.Context, from, to engine.Handle, m Mapping, onDup OnDuplicate) (Stats, error) {
	var st Stats

	iter, err := from.Rows(ctx)
	if err != nil {
		return st, err
	}
	defer func() {
		if err := iter.Close(ctx); err != nil {
			logrus.Warnf("error closing row iterator: %v", err)
		}
	}()

	for {
		r, err := iter.Next(ctx)
		if err == io.EOF {
			break
		} else if err != nil {
			if ctx.Err() != nil {
				return st, catalogerr.ErrInterrupted.Wrap(err)
			}
			return st, err
		}

		err = to.Insert(ctx, m.Apply(r))
		if err != nil {
			if catalogerr.ErrDuplicateKey.Is(err) && onDup == Ignore {
				st.Rejected++
				continue
			}
			return st, err
		}
		st.Copied++
	}

	logrus.Debugf("copied %d rows, rejected %d", st.Copied, st.Rejected)
	return st, nil
}
