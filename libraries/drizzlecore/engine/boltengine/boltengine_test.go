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

package boltengine

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

func tableDef(name string, fks ...message.ForeignKey) *message.Table {
	return &message.Table{
		Name:        name,
		Schema:      "app",
		Engine:      Name,
		Columns:     []message.Column{{Name: "id", Type: message.TypeInt}, {Name: "ref", Type: message.TypeInt, Nullable: true}},
		Indexes:     []message.Index{{Name: "PRIMARY", Primary: true, Columns: []string{"id"}}},
		ForeignKeys: fks,
	}
}

func openEngine(t *testing.T, path string) *Engine {
	e := New(path)
	require.NoError(t, e.Open(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, e.Close(context.Background()))
	})
	return e
}

func TestDictionary(t *testing.T) {
	ctx := context.Background()
	layout := identifier.NewLayout("/data", "")
	e := openEngine(t, filepath.Join(t.TempDir(), "dict", "dictionary.bolt"))

	t1 := layout.Table("App", "Orders", identifier.Standard)
	require.NoError(t, e.CreateTable(ctx, t1, tableDef("orders")))
	require.NoError(t, e.CreateTable(ctx, layout.Table("app", "items", identifier.Standard), tableDef("items")))
	require.NoError(t, e.CreateTable(ctx, layout.Table("apps", "other", identifier.Standard), tableDef("other")))
	assert.True(t, catalogerr.ErrTableExists.Is(e.CreateTable(ctx, layout.Table("app", "ORDERS", identifier.Standard), tableDef("x"))))

	def, ok, err := e.TableDefinition(ctx, layout.Table("app", "orders", identifier.Standard))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Orders", def.Name)
	assert.Equal(t, "App", def.Schema)

	_, ok, err = e.TableDefinition(ctx, layout.Table("app", "missing", identifier.Standard))
	require.NoError(t, err)
	assert.False(t, ok)

	names, err := e.TableNames(ctx, layout.Schema("app"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Orders", "items"}, names)
}

func TestRowsSurviveRenameAndReopen(t *testing.T) {
	ctx := context.Background()
	layout := identifier.NewLayout("/data", "")
	path := filepath.Join(t.TempDir(), "dictionary.bolt")

	e := New(path)
	require.NoError(t, e.Open(ctx))

	t1 := layout.Table("app", "t1", identifier.Standard)
	require.NoError(t, e.CreateTable(ctx, t1, tableDef("t1")))
	h, err := e.OpenTable(ctx, t1, nil)
	require.NoError(t, err)
	require.NoError(t, h.Insert(ctx, row.Row{[]byte("1"), nil}))
	require.NoError(t, h.Insert(ctx, row.Row{[]byte("2"), []byte("1")}))
	assert.True(t, catalogerr.ErrDuplicateKey.Is(h.Insert(ctx, row.Row{[]byte("2"), nil})))

	t2 := layout.Table("app", "t2", identifier.Standard)
	require.NoError(t, e.RenameTable(ctx, t1, t2))
	_, ok, err := e.TableDefinition(ctx, t1)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, e.Close(ctx))

	e = openEngine(t, path)
	h, err = e.OpenTable(ctx, t2, nil)
	require.NoError(t, err)
	n, err := h.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	require.NoError(t, h.Insert(ctx, row.Row{[]byte("3"), nil}))
	assert.True(t, catalogerr.ErrDuplicateKey.Is(h.Insert(ctx, row.Row{[]byte("1"), nil})))
	iter, err := h.Rows(ctx)
	require.NoError(t, err)
	rows, err := row.Collect(ctx, iter)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []byte("3"), rows[2][0])
}

func TestDropTable(t *testing.T) {
	ctx := context.Background()
	layout := identifier.NewLayout("/data", "")
	e := openEngine(t, filepath.Join(t.TempDir(), "dictionary.bolt"))

	parent := layout.Table("app", "parent", identifier.Standard)
	child := layout.Table("app", "child", identifier.Standard)
	fk := message.ForeignKey{Name: "fk", Columns: []string{"ref"}, ReferencedTable: "parent", ReferencedColumns: []string{"id"}}
	require.NoError(t, e.CreateTable(ctx, parent, tableDef("parent")))
	require.NoError(t, e.CreateTable(ctx, child, tableDef("child", fk)))

	assert.True(t, catalogerr.ErrRowReferenced.Is(e.DropTable(ctx, parent)))
	require.NoError(t, e.DropTable(ctx, child))
	require.NoError(t, e.DropTable(ctx, parent))
	assert.True(t, catalogerr.IsNotFound(e.DropTable(ctx, parent)))
}

func TestClosedEngine(t *testing.T) {
	ctx := context.Background()
	layout := identifier.NewLayout("/data", "")
	e := New(filepath.Join(t.TempDir(), "dictionary.bolt"))
	_, _, err := e.TableDefinition(ctx, layout.Table("app", "t1", identifier.Standard))
	assert.Error(t, err)
	assert.NoError(t, e.Close(ctx))
}
