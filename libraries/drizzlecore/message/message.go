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

// Package message holds the structural definitions of schemas and tables that the catalog persists. Definitions are
// plain values; callers hold snapshots and replace a definition wholesale to change it.
package message

import (
	"fmt"
	"strings"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
)

// TableType mirrors identifier.TableKind in a definition.
type TableType uint8

const (
	TableStandard TableType = iota
	TableTemporary
	TableInternal
	TableFunction
)

// ColumnType is the declared type of a column. Engines store values as bytes and do not interpret them.
type ColumnType uint8

const (
	TypeInt ColumnType = iota + 1
	TypeBigInt
	TypeDouble
	TypeDecimal
	TypeVarchar
	TypeText
	TypeBlob
	TypeDate
	TypeTimestamp
	TypeBoolean
)

var columnTypeNames = map[ColumnType]string{
	TypeInt:       "INT",
	TypeBigInt:    "BIGINT",
	TypeDouble:    "DOUBLE",
	TypeDecimal:   "DECIMAL",
	TypeVarchar:   "VARCHAR",
	TypeText:      "TEXT",
	TypeBlob:      "BLOB",
	TypeDate:      "DATE",
	TypeTimestamp: "TIMESTAMP",
	TypeBoolean:   "BOOLEAN",
}

func (ct ColumnType) String() string {
	if name, ok := columnTypeNames[ct]; ok {
		return name
	}
	return fmt.Sprintf("ColumnType(%d)", uint8(ct))
}

// ParseColumnType returns the ColumnType named |s|, ignoring case.
func ParseColumnType(s string) (ColumnType, bool) {
	s = strings.ToUpper(s)
	for ct, name := range columnTypeNames {
		if name == s {
			return ct, true
		}
	}
	return 0, false
}

// Schema is the definition of a schema.
type Schema struct {
	Name      string
	Collation string
	// Engine is the engine that created the schema.
	Engine    string
	UUID      string
	Version   uint64
	CreatedAt int64
	UpdatedAt int64
	Options   []Option
}

// Option is a free-form storage option. Option lists are kept in the order they were declared.
type Option struct {
	Key   string
	Value string
}

type Column struct {
	Name       string
	Type       ColumnType
	Length     uint32
	Scale      uint32
	Nullable   bool
	HasDefault bool
	Default    []byte
	Comment    string
}

type Index struct {
	Name     string
	Primary  bool
	Unique   bool
	Columns  []string
	Disabled bool
}

// ForeignKey is a reference from Columns of the owning table to ReferencedColumns of another table. A table that
// is referenced by a foreign key cannot be dropped.
type ForeignKey struct {
	Name              string
	Columns           []string
	ReferencedSchema  string
	ReferencedTable   string
	ReferencedColumns []string
	OnDelete          string
	OnUpdate          string
}

// Table is the definition of a table.
type Table struct {
	Name        string
	Schema      string
	Type        TableType
	Engine      string
	Columns     []Column
	Indexes     []Index
	ForeignKeys []ForeignKey
	Options     []Option
	Collation   string
	Comment     string
	UUID        string
	Version     uint64
	CreatedAt   int64
	UpdatedAt   int64
}

// IsTemporary returns whether the table is session local.
func (t *Table) IsTemporary() bool {
	return t.Type == TableTemporary
}

// ColumnIndex returns the position of the column |name|, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return i
		}
	}
	return -1
}

// PrimaryKey returns the table's primary key index if it has one.
func (t *Table) PrimaryKey() (*Index, bool) {
	for i := range t.Indexes {
		if t.Indexes[i].Primary {
			return &t.Indexes[i], true
		}
	}
	return nil, false
}

// PrimaryKeyOrdinals returns the column positions of the primary key, in key order.
func (t *Table) PrimaryKeyOrdinals() []int {
	pk, ok := t.PrimaryKey()
	if !ok {
		return nil
	}
	ords := make([]int, 0, len(pk.Columns))
	for _, col := range pk.Columns {
		ords = append(ords, t.ColumnIndex(col))
	}
	return ords
}

// Option returns the value of the option |key|.
func (t *Table) Option(key string) (string, bool) {
	return findOption(t.Options, key)
}

// References returns whether any foreign key of |t| references |schema|.|table|. Self references are ignored.
func (t *Table) References(schema, table string) bool {
	if identifier.EqualFold(t.Schema, schema) && identifier.EqualFold(t.Name, table) {
		return false
	}
	for _, fk := range t.ForeignKeys {
		refSchema := fk.ReferencedSchema
		if refSchema == "" {
			refSchema = t.Schema
		}
		if identifier.EqualFold(refSchema, schema) && identifier.EqualFold(fk.ReferencedTable, table) {
			return true
		}
	}
	return false
}

// Validate checks that column names are unique and that every index and foreign key names existing columns.
func (t *Table) Validate() error {
	if t.Name == "" {
		return catalogerr.ErrNameInvalid.New("table", t.Name)
	}
	if t.Engine == "" {
		return catalogerr.ErrDefinitionInvalid.New(t.Name, "no engine")
	}
	if len(t.Columns) == 0 {
		return catalogerr.ErrDefinitionInvalid.New(t.Name, "a table must have at least one column")
	}

	seen := make(map[string]struct{}, len(t.Columns))
	for _, col := range t.Columns {
		if col.Name == "" {
			return catalogerr.ErrNameInvalid.New("column", col.Name)
		}
		key := strings.ToLower(col.Name)
		if _, ok := seen[key]; ok {
			return catalogerr.ErrDefinitionInvalid.New(t.Name, fmt.Sprintf("duplicate column '%s'", col.Name))
		}
		seen[key] = struct{}{}
		if _, ok := columnTypeNames[col.Type]; !ok {
			return catalogerr.ErrDefinitionInvalid.New(t.Name, fmt.Sprintf("column '%s' has unknown type %d", col.Name, col.Type))
		}
	}

	primaries := 0
	for _, idx := range t.Indexes {
		if idx.Primary {
			primaries++
		}
		if len(idx.Columns) == 0 {
			return catalogerr.ErrDefinitionInvalid.New(t.Name, fmt.Sprintf("index '%s' has no columns", idx.Name))
		}
		for _, col := range idx.Columns {
			if _, ok := seen[strings.ToLower(col)]; !ok {
				return catalogerr.ErrDefinitionInvalid.New(t.Name, fmt.Sprintf("index '%s' names unknown column '%s'", idx.Name, col))
			}
		}
	}
	if primaries > 1 {
		return catalogerr.ErrDefinitionInvalid.New(t.Name, "multiple primary keys defined")
	}

	for _, fk := range t.ForeignKeys {
		if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.ReferencedColumns) || fk.ReferencedTable == "" {
			return catalogerr.ErrDefinitionInvalid.New(t.Name, fmt.Sprintf("malformed foreign key '%s'", fk.Name))
		}
		for _, col := range fk.Columns {
			if _, ok := seen[strings.ToLower(col)]; !ok {
				return catalogerr.ErrDefinitionInvalid.New(t.Name, fmt.Sprintf("foreign key '%s' names unknown column '%s'", fk.Name, col))
			}
		}
	}

	return nil
}

// Clone returns a deep copy of |t|.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	c := *t
	c.Columns = make([]Column, len(t.Columns))
	for i, col := range t.Columns {
		c.Columns[i] = col
		c.Columns[i].Default = cloneBytes(col.Default)
	}
	c.Indexes = make([]Index, len(t.Indexes))
	for i, idx := range t.Indexes {
		c.Indexes[i] = idx
		c.Indexes[i].Columns = cloneStrings(idx.Columns)
	}
	c.ForeignKeys = make([]ForeignKey, len(t.ForeignKeys))
	for i, fk := range t.ForeignKeys {
		c.ForeignKeys[i] = fk
		c.ForeignKeys[i].Columns = cloneStrings(fk.Columns)
		c.ForeignKeys[i].ReferencedColumns = cloneStrings(fk.ReferencedColumns)
	}
	c.Options = append([]Option(nil), t.Options...)
	return &c
}

// Option returns the value of the option |key|.
func (s *Schema) Option(key string) (string, bool) {
	return findOption(s.Options, key)
}

// Clone returns a deep copy of |s|.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	c := *s
	c.Options = append([]Option(nil), s.Options...)
	return &c
}

func findOption(opts []Option, key string) (string, bool) {
	for _, opt := range opts {
		if strings.EqualFold(opt.Key, key) {
			return opt.Value, true
		}
	}
	return "", false
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}

func cloneStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	return append([]string{}, ss...)
}
