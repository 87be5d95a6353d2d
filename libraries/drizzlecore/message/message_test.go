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

package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
)

func ordersTable() *Table {
	return &Table{
		Name:   "orders",
		Schema: "app",
		Engine: "memory",
		Columns: []Column{
			{Name: "id", Type: TypeBigInt},
			{Name: "customer_id", Type: TypeBigInt},
			{Name: "note", Type: TypeVarchar, Length: 255, Nullable: true, HasDefault: true, Default: []byte{}},
		},
		Indexes: []Index{
			{Name: "PRIMARY", Primary: true, Unique: true, Columns: []string{"id"}},
			{Name: "by_customer", Columns: []string{"customer_id"}, Disabled: true},
		},
		ForeignKeys: []ForeignKey{
			{Name: "fk_customer", Columns: []string{"customer_id"}, ReferencedTable: "customers", ReferencedColumns: []string{"id"}, OnDelete: "RESTRICT"},
		},
		Options:   []Option{{Key: "ROW_FORMAT", Value: "COMPACT"}},
		Comment:   "customer orders",
		UUID:      "8a0c7ee6-6f3b-4d43-8f55-2f2a0b8f6f21",
		Version:   3,
		CreatedAt: 1700000000,
		UpdatedAt: 1700000500,
	}
}

func TestTableWireFormat(t *testing.T) {
	orig := ordersTable()
	decoded, err := UnmarshalTable(MarshalTable(orig))
	require.NoError(t, err)
	assert.Equal(t, orig, decoded)

	// an empty default must stay distinguishable from no default
	assert.NotNil(t, decoded.Columns[2].Default)
	assert.Nil(t, decoded.Columns[0].Default)
}

func TestSchemaWireFormat(t *testing.T) {
	orig := &Schema{Name: "App", Collation: "utf8_general_ci", Engine: "filesystem", Version: 1, Options: []Option{{Key: "comment", Value: "x"}}}
	decoded, err := UnmarshalSchema(MarshalSchema(orig))
	require.NoError(t, err)
	assert.Equal(t, orig, decoded)
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	b := MarshalSchema(&Schema{Name: "app"})
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "from a newer version")
	b = protowire.AppendTag(b, 100, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)

	s, err := UnmarshalSchema(b)
	require.NoError(t, err)
	assert.Equal(t, "app", s.Name)
}

func TestTruncatedDefinition(t *testing.T) {
	b := MarshalTable(ordersTable())
	_, err := UnmarshalTable(b[:len(b)-1])
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, ordersTable().Validate())

	tests := []struct {
		name   string
		mutate func(*Table)
		code   catalogerr.Code
	}{
		{"no name", func(t *Table) { t.Name = "" }, catalogerr.NameInvalid},
		{"no engine", func(t *Table) { t.Engine = "" }, catalogerr.Unsupported},
		{"no columns", func(t *Table) { t.Columns = nil; t.Indexes = nil; t.ForeignKeys = nil }, catalogerr.Unsupported},
		{"duplicate column", func(t *Table) { t.Columns = append(t.Columns, Column{Name: "ID", Type: TypeInt}) }, catalogerr.Unsupported},
		{"unknown type", func(t *Table) { t.Columns[0].Type = 0 }, catalogerr.Unsupported},
		{"index on missing column", func(t *Table) { t.Indexes[1].Columns = []string{"nope"} }, catalogerr.Unsupported},
		{"two primary keys", func(t *Table) { t.Indexes[1].Primary = true }, catalogerr.Unsupported},
		{"bad foreign key", func(t *Table) { t.ForeignKeys[0].ReferencedColumns = nil }, catalogerr.Unsupported},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tbl := ordersTable()
			test.mutate(tbl)
			assert.Equal(t, test.code, catalogerr.Classify(tbl.Validate()))
		})
	}
}

func TestClone(t *testing.T) {
	orig := ordersTable()
	c := orig.Clone()
	require.Equal(t, orig, c)

	c.Columns[0].Name = "changed"
	c.Indexes[0].Columns[0] = "changed"
	c.ForeignKeys[0].ReferencedColumns[0] = "changed"
	c.Options[0].Value = "changed"
	assert.Equal(t, ordersTable(), orig)
}

func TestHelpers(t *testing.T) {
	tbl := ordersTable()
	assert.Equal(t, 1, tbl.ColumnIndex("CUSTOMER_ID"))
	assert.Equal(t, -1, tbl.ColumnIndex("missing"))
	assert.Equal(t, []int{0}, tbl.PrimaryKeyOrdinals())

	v, ok := tbl.Option("row_format")
	assert.True(t, ok)
	assert.Equal(t, "COMPACT", v)

	assert.True(t, tbl.References("APP", "Customers"))
	assert.False(t, tbl.References("app", "orders"))
	assert.False(t, tbl.References("other", "customers"))

	ct, ok := ParseColumnType("varchar")
	assert.True(t, ok)
	assert.Equal(t, TypeVarchar, ct)
}
