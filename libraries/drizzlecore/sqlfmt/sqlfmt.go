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

// Package sqlfmt renders schema and table definitions as SQL statement text for the replication stream.
package sqlfmt

import (
	"fmt"
	"strings"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
)

// QuoteIdentifier quotes the identifier given with backticks, doubling any backticks it contains.
func QuoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// QuoteTableName returns the quoted, schema qualified name of a table. The schema is omitted when empty.
func QuoteTableName(schema, table string) string {
	if schema == "" {
		return QuoteIdentifier(table)
	}
	return QuoteIdentifier(schema) + "." + QuoteIdentifier(table)
}

// QuoteComment quotes the given string with apostrophes, and escapes any contained within the string.
func QuoteComment(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `\'`) + `'`
}

func quoteValue(v []byte) string {
	if v == nil {
		return "NULL"
	}
	s := strings.ReplaceAll(string(v), `\`, `\\`)
	return `'` + strings.ReplaceAll(s, `'`, `\'`) + `'`
}

// FmtType returns the SQL type of |col|.
func FmtType(col message.Column) string {
	switch col.Type {
	case message.TypeVarchar:
		return fmt.Sprintf("VARCHAR(%d)", col.Length)
	case message.TypeDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", col.Length, col.Scale)
	default:
		return col.Type.String()
	}
}

// FmtCol returns the definition of |col| as it appears in a CREATE TABLE statement.
func FmtCol(col message.Column) string {
	var b strings.Builder
	b.WriteString(QuoteIdentifier(col.Name))
	b.WriteString(" ")
	b.WriteString(FmtType(col))
	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}
	if col.HasDefault {
		b.WriteString(" DEFAULT ")
		b.WriteString(quoteValue(col.Default))
	}
	if col.Comment != "" {
		b.WriteString(" COMMENT ")
		b.WriteString(QuoteComment(col.Comment))
	}
	return b.String()
}

func fmtColumnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdentifier(c)
	}
	return strings.Join(quoted, ",")
}

// FmtIndex returns the definition of |idx| as it appears in a CREATE TABLE statement.
func FmtIndex(idx message.Index) string {
	if idx.Primary {
		return "PRIMARY KEY (" + fmtColumnList(idx.Columns) + ")"
	}
	var b strings.Builder
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ")
	b.WriteString(QuoteIdentifier(idx.Name))
	b.WriteString(" (")
	b.WriteString(fmtColumnList(idx.Columns))
	b.WriteRune(')')
	return b.String()
}

func FmtForeignKey(fk message.ForeignKey) string {
	var b strings.Builder
	b.WriteString("CONSTRAINT ")
	b.WriteString(QuoteIdentifier(fk.Name))
	b.WriteString(" FOREIGN KEY (")
	b.WriteString(fmtColumnList(fk.Columns))
	b.WriteString(") REFERENCES ")
	b.WriteString(QuoteTableName(fk.ReferencedSchema, fk.ReferencedTable))
	b.WriteString(" (")
	b.WriteString(fmtColumnList(fk.ReferencedColumns))
	b.WriteRune(')')
	if fk.OnDelete != "" {
		b.WriteString(" ON DELETE ")
		b.WriteString(fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		b.WriteString(" ON UPDATE ")
		b.WriteString(fk.OnUpdate)
	}
	return b.String()
}

func fmtTableOptions(b *strings.Builder, def *message.Table) {
	b.WriteString(" ENGINE=")
	b.WriteString(def.Engine)
	if def.Collation != "" {
		b.WriteString(" COLLATE=")
		b.WriteString(def.Collation)
	}
	if def.Comment != "" {
		b.WriteString(" COMMENT=")
		b.WriteString(QuoteComment(def.Comment))
	}
}

// CreateTableStmt returns a CREATE TABLE statement for |def|.
func CreateTableStmt(def *message.Table, ifNotExists bool) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if def.IsTemporary() {
		b.WriteString("TEMPORARY ")
	}
	b.WriteString("TABLE ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(QuoteTableName(def.Schema, def.Name))
	b.WriteString(" (\n")

	var lines []string
	for _, col := range def.Columns {
		lines = append(lines, "  "+FmtCol(col))
	}
	for _, idx := range def.Indexes {
		lines = append(lines, "  "+FmtIndex(idx))
	}
	for _, fk := range def.ForeignKeys {
		lines = append(lines, "  "+FmtForeignKey(fk))
	}
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n)")
	fmtTableOptions(&b, def)
	b.WriteRune(';')
	return b.String()
}

func CreateTableLikeStmt(schema, table, srcSchema, srcTable string, ifNotExists bool) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(QuoteTableName(schema, table))
	b.WriteString(" LIKE ")
	b.WriteString(QuoteTableName(srcSchema, srcTable))
	b.WriteRune(';')
	return b.String()
}

func DropTableStmt(schema, table string, ifExists bool) string {
	var b strings.Builder
	b.WriteString("DROP TABLE ")
	if ifExists {
		b.WriteString("IF EXISTS ")
	}
	b.WriteString(QuoteTableName(schema, table))
	b.WriteRune(';')
	return b.String()
}

func RenameTableStmt(fromSchema, fromTable, toSchema, toTable string) string {
	var b strings.Builder
	b.WriteString("RENAME TABLE ")
	b.WriteString(QuoteTableName(fromSchema, fromTable))
	b.WriteString(" TO ")
	b.WriteString(QuoteTableName(toSchema, toTable))
	b.WriteRune(';')
	return b.String()
}

// AlterTableStmt returns an ALTER TABLE statement that turns |from| into |to|. Columns are matched by name.
func AlterTableStmt(from, to *message.Table) string {
	var clauses []string

	for _, col := range from.Columns {
		if to.ColumnIndex(col.Name) < 0 {
			clauses = append(clauses, "DROP COLUMN "+QuoteIdentifier(col.Name))
		}
	}
	for _, col := range to.Columns {
		i := from.ColumnIndex(col.Name)
		switch {
		case i < 0:
			clauses = append(clauses, "ADD COLUMN "+FmtCol(col))
		case FmtCol(from.Columns[i]) != FmtCol(col):
			clauses = append(clauses, "MODIFY COLUMN "+FmtCol(col))
		}
	}

	fromIdx := indexesByName(from)
	toIdx := indexesByName(to)
	for _, idx := range from.Indexes {
		if other, ok := toIdx[strings.ToLower(idx.Name)]; !ok || FmtIndex(other) != FmtIndex(idx) {
			if idx.Primary {
				clauses = append(clauses, "DROP PRIMARY KEY")
			} else {
				clauses = append(clauses, "DROP INDEX "+QuoteIdentifier(idx.Name))
			}
		}
	}
	for _, idx := range to.Indexes {
		if other, ok := fromIdx[strings.ToLower(idx.Name)]; !ok || FmtIndex(other) != FmtIndex(idx) {
			clauses = append(clauses, "ADD "+FmtIndex(idx))
		}
	}

	if disabled(to) != disabled(from) {
		if disabled(to) {
			clauses = append(clauses, "DISABLE KEYS")
		} else {
			clauses = append(clauses, "ENABLE KEYS")
		}
	}
	if !strings.EqualFold(from.Engine, to.Engine) {
		clauses = append(clauses, "ENGINE="+to.Engine)
	}
	if from.Comment != to.Comment {
		clauses = append(clauses, "COMMENT="+QuoteComment(to.Comment))
	}
	if !strings.EqualFold(from.Schema, to.Schema) || from.Name != to.Name {
		clauses = append(clauses, "RENAME TO "+QuoteTableName(to.Schema, to.Name))
	}

	var b strings.Builder
	b.WriteString("ALTER TABLE ")
	b.WriteString(QuoteTableName(from.Schema, from.Name))
	if len(clauses) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(clauses, ", "))
	}
	b.WriteRune(';')
	return b.String()
}

func indexesByName(def *message.Table) map[string]message.Index {
	m := make(map[string]message.Index, len(def.Indexes))
	for _, idx := range def.Indexes {
		m[strings.ToLower(idx.Name)] = idx
	}
	return m
}

func disabled(def *message.Table) bool {
	for _, idx := range def.Indexes {
		if !idx.Primary && idx.Disabled {
			return true
		}
	}
	return false
}

func fmtSchemaOptions(b *strings.Builder, def *message.Schema) {
	if def.Collation != "" {
		b.WriteString(" COLLATE = ")
		b.WriteString(def.Collation)
	}
}

func CreateSchemaStmt(def *message.Schema, ifNotExists bool) string {
	var b strings.Builder
	b.WriteString("CREATE SCHEMA ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(QuoteIdentifier(def.Name))
	fmtSchemaOptions(&b, def)
	b.WriteRune(';')
	return b.String()
}

func AlterSchemaStmt(def *message.Schema) string {
	var b strings.Builder
	b.WriteString("ALTER SCHEMA ")
	b.WriteString(QuoteIdentifier(def.Name))
	fmtSchemaOptions(&b, def)
	b.WriteRune(';')
	return b.String()
}

func DropSchemaStmt(name string, ifExists bool) string {
	var b strings.Builder
	b.WriteString("DROP SCHEMA ")
	if ifExists {
		b.WriteString("IF EXISTS ")
	}
	b.WriteString(QuoteIdentifier(name))
	b.WriteRune(';')
	return b.String()
}
