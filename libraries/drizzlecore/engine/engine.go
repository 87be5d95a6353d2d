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

// Package engine defines the storage engine contract and the registry that decides which engine owns a schema or
// a table.
package engine

import (
	"context"
	"strings"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/row"
)

// Flags are the capabilities, or lack of them, of an engine.
type Flags uint32

const (
	// AlterUnsupported engines reject ALTER TABLE.
	AlterUnsupported Flags = 1 << iota
	// HasOwnDataDictionary engines store their own table definitions; no definition files are written for them.
	HasOwnDataDictionary
	TemporaryOnly
	TemporaryUnsupported
	// FileBased engines keep each table's data in files named after the table path.
	FileBased
	// NotUserSelectable engines cannot be named in a CREATE TABLE.
	NotUserSelectable
	// Hidden engines are not listed.
	Hidden
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{AlterUnsupported, "ALTER_UNSUPPORTED"},
	{HasOwnDataDictionary, "HAS_OWN_DATA_DICTIONARY"},
	{TemporaryOnly, "TEMPORARY_ONLY"},
	{TemporaryUnsupported, "TEMPORARY_UNSUPPORTED"},
	{FileBased, "FILE_BASED"},
	{NotUserSelectable, "NOT_USER_SELECTABLE"},
	{Hidden, "HIDDEN"},
}

// Has returns whether every flag in |f2| is set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

func (f Flags) String() string {
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

// DefaultEngineName is resolved to the session's default engine by Registry.FindByName.
const DefaultEngineName = "default"

// Descriptor describes a registered engine.
type Descriptor struct {
	Name    string
	Aliases []string
	Flags   Flags
	Enabled bool
}

// Matches returns whether |name| is the engine's name or one of its aliases, ignoring case.
func (d Descriptor) Matches(name string) bool {
	if strings.EqualFold(d.Name, name) {
		return true
	}
	for _, alias := range d.Aliases {
		if strings.EqualFold(alias, name) {
			return true
		}
	}
	return false
}

// Engine is a storage backend for tables. Operations on an object that does not exist report a NotFound error
// kind; other failures should use the kinds in catalogerr where one applies.
type Engine interface {
	CreateTable(ctx context.Context, id identifier.Table, def *message.Table) error
	DropTable(ctx context.Context, id identifier.Table) error
	RenameTable(ctx context.Context, from, to identifier.Table) error
	// OpenTable returns a handle to the rows of an existing table.
	OpenTable(ctx context.Context, id identifier.Table, def *message.Table) (Handle, error)
}

// SchemaEngine is an Engine that also stores schemas.
type SchemaEngine interface {
	Engine
	// SchemaDefinition returns the definition of |id| and true if this engine holds the schema.
	SchemaDefinition(ctx context.Context, id identifier.Schema) (*message.Schema, bool, error)
	SchemaNames(ctx context.Context) ([]string, error)
	CreateSchema(ctx context.Context, id identifier.Schema, def *message.Schema) error
	AlterSchema(ctx context.Context, id identifier.Schema, def *message.Schema) error
	DropSchema(ctx context.Context, id identifier.Schema) error
}

// DictionaryEngine is an Engine that can enumerate and describe its own tables.
type DictionaryEngine interface {
	Engine
	// TableDefinition returns the definition of |id| and true if this engine holds the table.
	TableDefinition(ctx context.Context, id identifier.Table) (*message.Table, bool, error)
	TableNames(ctx context.Context, id identifier.Schema) ([]string, error)
}

// Lifecycle is implemented by engines that hold resources. Open is called when the engine is registered with an
// open Registry or when the Registry is opened, Close when it is unregistered or the Registry closes.
type Lifecycle interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
}

// Handle gives access to the rows of an open table.
type Handle interface {
	// Insert adds |r|. Engines with a primary key report catalogerr.ErrDuplicateKey on a collision.
	Insert(ctx context.Context, r row.Row) error
	Rows(ctx context.Context) (row.Iter, error)
	RowCount(ctx context.Context) (uint64, error)
	Close(ctx context.Context) error
}

// Plugin is a registered engine.
type Plugin struct {
	Descriptor
	Engine Engine
}

func (p *Plugin) Name() string {
	return p.Descriptor.Name
}

func (p *Plugin) Has(f Flags) bool {
	return p.Flags.Has(f)
}

// OwnsDictionary returns whether definitions of this engine's tables live in the engine.
func (p *Plugin) OwnsDictionary() bool {
	return p.Has(HasOwnDataDictionary)
}

func (p *Plugin) SchemaEngine() (SchemaEngine, bool) {
	se, ok := p.Engine.(SchemaEngine)
	return se, ok
}

func (p *Plugin) DictionaryEngine() (DictionaryEngine, bool) {
	de, ok := p.Engine.(DictionaryEngine)
	return de, ok
}

// DefaultEngineSource supplies the engine that "default" refers to.
type DefaultEngineSource interface {
	DefaultEngine() string
}

// LookupStatus is the outcome of a table ownership lookup.
type LookupStatus uint8

const (
	NotFound LookupStatus = iota
	Found
)

// TableLookup is the result of Registry.TableDefinition. When Status is Found, Definition is set and Engine is the
// owning engine, or nil if the definition names an engine that is not registered.
type TableLookup struct {
	Status     LookupStatus
	Engine     *Plugin
	Definition *message.Table
}

func (tl TableLookup) Found() bool {
	return tl.Status == Found
}
