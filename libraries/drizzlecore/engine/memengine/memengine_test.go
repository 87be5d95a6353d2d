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

package memengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/row"
)

func tableDef(schema, name string, fks ...message.ForeignKey) *message.Table {
	return &message.Table{
		Name:   name,
		Schema: schema,
		Engine: Name,
		Columns: []message.Column{
			{Name: "id", Type: message.TypeInt},
			{Name: "parent", Type: message.TypeInt, Nullable: true},
		},
		Indexes:     []message.Index{{Name: "PRIMARY", Primary: true, Unique: true, Columns: []string{"id"}}},
		ForeignKeys: fks,
	}
}

func TestTables(t *testing.T) {
	ctx := context.Background()
	layout := identifier.NewLayout("/data", "")
	e := New()

	t1 := layout.Table("app", "t1", identifier.Standard)
	require.NoError(t, e.CreateTable(ctx, t1, tableDef("app", "t1")))
	err := e.CreateTable(ctx, layout.Table("APP", "T1", identifier.Standard), tableDef("app", "t1"))
	assert.True(t, catalogerr.ErrTableExists.Is(err))

	h, err := e.OpenTable(ctx, t1, nil)
	require.NoError(t, err)
	require.NoError(t, h.Insert(ctx, row.Row{[]byte("1"), nil}))
	require.NoError(t, h.Insert(ctx, row.Row{[]byte("2"), []byte("1")}))
	err = h.Insert(ctx, row.Row{[]byte("1"), nil})
	assert.True(t, catalogerr.ErrDuplicateKey.Is(err))

	t2 := layout.Table("app", "t2", identifier.Standard)
	require.NoError(t, e.RenameTable(ctx, t1, t2))
	_, err = e.OpenTable(ctx, t1, nil)
	assert.True(t, catalogerr.ErrTableNotFound.Is(err))

	h, err = e.OpenTable(ctx, t2, nil)
	require.NoError(t, err)
	n, err := h.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	require.NoError(t, e.DropTable(ctx, t2))
	assert.True(t, catalogerr.ErrTableNotFound.Is(e.DropTable(ctx, t2)))
	assert.Equal(t, 0, e.TableCount())
}

func TestDropReferencedTable(t *testing.T) {
	ctx := context.Background()
	layout := identifier.NewLayout("/data", "")
	e := New()

	parent := layout.Table("app", "parent", identifier.Standard)
	child := layout.Table("app", "child", identifier.Standard)
	fk := message.ForeignKey{Name: "fk_parent", Columns: []string{"parent"}, ReferencedTable: "parent", ReferencedColumns: []string{"id"}}
	self := message.ForeignKey{Name: "fk_self", Columns: []string{"parent"}, ReferencedTable: "parent", ReferencedColumns: []string{"id"}}

	require.NoError(t, e.CreateTable(ctx, parent, tableDef("app", "parent", self)))
	require.NoError(t, e.CreateTable(ctx, child, tableDef("app", "child", fk)))

	err := e.DropTable(ctx, parent)
	assert.Equal(t, catalogerr.RowReferenced, catalogerr.Classify(err))

	require.NoError(t, e.DropTable(ctx, child))
	require.NoError(t, e.DropTable(ctx, parent))
}
