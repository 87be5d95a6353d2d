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

package leveldbengine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/row"
)

func tableDef() *message.Table {
	return &message.Table{
		Name:    "t1",
		Schema:  "app",
		Engine:  Name,
		Columns: []message.Column{{Name: "id", Type: message.TypeInt}, {Name: "v", Type: message.TypeText, Nullable: true}},
		Indexes: []message.Index{{Name: "PRIMARY", Primary: true, Columns: []string{"id"}}},
	}
}

func openEngine(t *testing.T, path string) *Engine {
	e := New(path)
	require.NoError(t, e.Open(context.Background()))
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func collect(t *testing.T, e *Engine, id identifier.Table) []row.Row {
	ctx := context.Background()
	h, err := e.OpenTable(ctx, id, tableDef())
	require.NoError(t, err)
	iter, err := h.Rows(ctx)
	require.NoError(t, err)
	rows, err := row.Collect(ctx, iter)
	require.NoError(t, err)
	return rows
}

func TestTables(t *testing.T) {
	ctx := context.Background()
	layout := identifier.NewLayout("/data", "")
	e := openEngine(t, "")

	t1 := layout.Table("app", "t1", identifier.Standard)
	require.NoError(t, e.CreateTable(ctx, t1, tableDef()))
	assert.True(t, catalogerr.ErrTableExists.Is(e.CreateTable(ctx, t1, tableDef())))
	// names differing only in case are the same table
	assert.True(t, catalogerr.ErrTableExists.Is(e.CreateTable(ctx, layout.Table("APP", "T1", identifier.Standard), tableDef())))

	h, err := e.OpenTable(ctx, t1, tableDef())
	require.NoError(t, err)
	require.NoError(t, h.Insert(ctx, row.Row{[]byte("2"), []byte("two")}))
	require.NoError(t, h.Insert(ctx, row.Row{[]byte("1"), nil}))
	assert.True(t, catalogerr.ErrDuplicateKey.Is(h.Insert(ctx, row.Row{[]byte("1"), []byte("again")})))

	n, err := h.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	// insertion order, not key order
	assert.Equal(t, []row.Row{{[]byte("2"), []byte("two")}, {[]byte("1"), nil}}, collect(t, e, t1))

	t2 := layout.Table("other", "t2", identifier.Standard)
	require.NoError(t, e.RenameTable(ctx, t1, t2))
	_, err = e.OpenTable(ctx, t1, tableDef())
	assert.True(t, catalogerr.IsNotFound(err))
	assert.Len(t, collect(t, e, t2), 2)

	// the key index moved with the rows
	h, err = e.OpenTable(ctx, t2, tableDef())
	require.NoError(t, err)
	assert.True(t, catalogerr.ErrDuplicateKey.Is(h.Insert(ctx, row.Row{[]byte("2"), nil})))

	require.NoError(t, e.CreateTable(ctx, t1, tableDef()))
	assert.True(t, catalogerr.ErrTableExists.Is(e.RenameTable(ctx, t1, t2)))
	assert.Empty(t, collect(t, e, t1))

	require.NoError(t, e.DropTable(ctx, t2))
	assert.True(t, catalogerr.IsNotFound(e.DropTable(ctx, t2)))
	assert.True(t, catalogerr.IsNotFound(e.RenameTable(ctx, t2, t1)))

	// a recreated table starts empty
	require.NoError(t, e.CreateTable(ctx, t2, tableDef()))
	assert.Empty(t, collect(t, e, t2))
}

func TestTablePrefixesDoNotOverlap(t *testing.T) {
	ctx := context.Background()
	layout := identifier.NewLayout("/data", "")
	e := openEngine(t, "")

	short := layout.Table("app", "t", identifier.Standard)
	long := layout.Table("app", "t\x00x", identifier.Standard)
	require.NoError(t, e.CreateTable(ctx, short, tableDef()))
	require.NoError(t, e.CreateTable(ctx, long, tableDef()))

	h, err := e.OpenTable(ctx, long, tableDef())
	require.NoError(t, err)
	require.NoError(t, h.Insert(ctx, row.Row{[]byte("1"), nil}))

	assert.Empty(t, collect(t, e, short))
	require.NoError(t, e.DropTable(ctx, short))
	assert.Len(t, collect(t, e, long), 1)
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rows.ldb")
	layout := identifier.NewLayout("/data", "")
	t1 := layout.Table("app", "t1", identifier.Standard)

	e := New(path)
	require.NoError(t, e.Open(ctx))
	require.NoError(t, e.CreateTable(ctx, t1, tableDef()))
	h, err := e.OpenTable(ctx, t1, tableDef())
	require.NoError(t, err)
	require.NoError(t, h.Insert(ctx, row.Row{[]byte("1"), []byte("one")}))
	require.NoError(t, e.Close(ctx))

	_, err = e.OpenTable(ctx, t1, tableDef())
	assert.ErrorIs(t, err, errNotOpen)

	e = openEngine(t, path)
	h, err = e.OpenTable(ctx, t1, tableDef())
	require.NoError(t, err)
	require.NoError(t, h.Insert(ctx, row.Row{[]byte("2"), nil}))
	assert.Equal(t, []row.Row{{[]byte("1"), []byte("one")}, {[]byte("2"), nil}}, collect(t, e, t1))
}
