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

package identifier

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const (
	// TableDefinitionExt is appended to a table's path to name its definition file.
	TableDefinitionExt = ".dfe"
	// SchemaDefinitionFile is the name of the definition file inside a schema's directory.
	SchemaDefinitionFile = "db.opt"
)

// TableKind determines where a table lives on disk and whether its definition is persisted.
type TableKind uint8

const (
	Standard TableKind = iota
	Temporary
	Internal
	Function
)

func (k TableKind) String() string {
	switch k {
	case Standard:
		return "standard"
	case Temporary:
		return "temporary"
	case Internal:
		return "internal"
	case Function:
		return "function"
	default:
		return fmt.Sprintf("TableKind(%d)", uint8(k))
	}
}

// Persistent returns whether tables of this kind have a definition file.
func (k TableKind) Persistent() bool {
	return k == Standard
}

// Layout derives identifiers for a data root and a process temp directory. Temporary table names drawn from a
// Layout never repeat for the life of the process.
type Layout struct {
	dataRoot string
	tmpDir   string
	pid      int
	tmpSeq   atomic.Uint64
}

// NewLayout returns a Layout rooted at |dataRoot|. An empty |tmpDir| defaults to ".tmp" inside the data root.
func NewLayout(dataRoot, tmpDir string) *Layout {
	if tmpDir == "" {
		tmpDir = filepath.Join(dataRoot, ".tmp")
	}
	return &Layout{
		dataRoot: filepath.Clean(dataRoot),
		tmpDir:   filepath.Clean(tmpDir),
		pid:      os.Getpid(),
	}
}

func (l *Layout) DataRoot() string {
	return l.dataRoot
}

func (l *Layout) TmpDir() string {
	return l.tmpDir
}

// TempTableName returns a new temporary object name for the session |sessionID|.
func (l *Layout) TempTableName(sessionID uint64) string {
	n := l.tmpSeq.Add(1)
	return strings.ToLower(fmt.Sprintf("%s%x_%x-%x", TmpFilePrefix, l.pid, sessionID, n))
}

// Schema returns the identifier for the schema |name|.
func (l *Layout) Schema(name string) Schema {
	return Schema{
		name: name,
		key:  FoldCase(name),
		path: filepath.Join(l.dataRoot, EncodeName(name)),
	}
}

// SchemaAt returns the identifier of the schema |name| whose directory is named |encoded|.
func (l *Layout) SchemaAt(name, encoded string) Schema {
	return Schema{
		name: name,
		key:  FoldCase(name),
		path: filepath.Join(l.dataRoot, encoded),
	}
}

// Table returns the identifier of the table |name| in |schema|. Tables that are not Standard are placed in the
// temp directory under a generated name.
func (l *Layout) Table(schema, name string, kind TableKind) Table {
	if kind == Standard {
		sch := l.Schema(schema)
		return newTable(sch, name, kind, filepath.Join(sch.path, EncodeName(name)))
	}
	return l.tempTable(schema, name, kind, 0)
}

// TableAt returns the identifier of the Standard table |name| in |schema| whose files are named |encoded|. It is
// used for tables found on disk, whose decoded name may not encode back to the name they were created with.
func (l *Layout) TableAt(schema Schema, name, encoded string) Table {
	return newTable(schema, name, Standard, filepath.Join(schema.path, encoded))
}

// TemporaryTable returns the identifier of a session local temporary table.
func (l *Layout) TemporaryTable(schema, name string, sessionID uint64) Table {
	return l.tempTable(schema, name, Temporary, sessionID)
}

func (l *Layout) tempTable(schema, name string, kind TableKind, sessionID uint64) Table {
	return newTable(l.Schema(schema), name, kind, filepath.Join(l.tmpDir, l.TempTableName(sessionID)))
}

// Rename returns the identifier of |t| renamed to |schema|.|name|, keeping its kind. Temporary tables keep their
// on-disk path.
func (l *Layout) Rename(t Table, schema, name string) Table {
	if t.kind == Standard {
		return l.Table(schema, name, Standard)
	}
	return newTable(l.Schema(schema), name, t.kind, t.path)
}

// Schema identifies a schema. The zero value identifies nothing; use Layout.Schema.
type Schema struct {
	name string
	key  string
	path string
}

// Name returns the name as it was supplied.
func (s Schema) Name() string {
	return s.name
}

// Key returns the name with its ASCII letters lower-cased, used for comparisons.
func (s Schema) Key() string {
	return s.key
}

// Path returns the schema's directory.
func (s Schema) Path() string {
	return s.path
}

// DefinitionPath returns the path of the schema's definition file.
func (s Schema) DefinitionPath() string {
	return filepath.Join(s.path, SchemaDefinitionFile)
}

// CacheKey returns the key identifying this schema in process wide caches.
func (s Schema) CacheKey() []byte {
	return []byte(s.key + "\x00")
}

func (s Schema) IsZero() bool {
	return s.name == ""
}

// Equal returns whether |s| and |other| denote the same schema.
func (s Schema) Equal(other Schema) bool {
	return s.key == other.key
}

func (s Schema) Validate() error {
	return ValidateName("schema", s.name)
}

func (s Schema) String() string {
	return s.name
}

// Table identifies a table within a schema.
type Table struct {
	schema   Schema
	name     string
	key      string
	kind     TableKind
	path     string
	cacheKey string
	hash     uint64
}

func newTable(sch Schema, name string, kind TableKind, path string) Table {
	key := FoldCase(name)
	return Table{
		schema:   sch,
		name:     name,
		key:      key,
		kind:     kind,
		path:     path,
		cacheKey: sch.key + "\x00" + key + "\x00",
		hash:     xxhash.Sum64String(FoldCase(path)),
	}
}

func (t Table) Schema() Schema {
	return t.schema
}

// Name returns the table name as it was supplied.
func (t Table) Name() string {
	return t.name
}

// Key returns the table name with its ASCII letters lower-cased.
func (t Table) Key() string {
	return t.key
}

func (t Table) Kind() TableKind {
	return t.kind
}

// Path returns the path of the table without any extension. Engines that keep data files name them after it.
func (t Table) Path() string {
	return t.path
}

// DefinitionPath returns the path of the table's definition file.
func (t Table) DefinitionPath() string {
	return t.path + TableDefinitionExt
}

// CacheKey returns the schema key and the table key, each terminated by a NUL byte.
func (t Table) CacheKey() []byte {
	return []byte(t.cacheKey)
}

// CacheKeyString is CacheKey as a string, for use as a map key.
func (t Table) CacheKeyString() string {
	return t.cacheKey
}

// ContentHash is a case insensitive hash of Path.
func (t Table) ContentHash() uint64 {
	return t.hash
}

func (t Table) IsZero() bool {
	return t.name == ""
}

// Equal returns whether |t| and |other| denote the same table. Kind and casing are ignored.
func (t Table) Equal(other Table) bool {
	return t.cacheKey == other.cacheKey
}

// Validate checks both the schema name and the table name.
func (t Table) Validate() error {
	if err := t.schema.Validate(); err != nil {
		return err
	}
	return ValidateName("table", t.name)
}

func (t Table) String() string {
	return t.schema.name + "." + t.name
}
