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

// Package memengine is a storage engine that keeps rows in memory. Its table definitions are stored by the
// catalog like those of any other engine without a data dictionary.
package memengine

import (
	"context"
	"sync"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/row"
)

const Name = "memory"

// Descriptor returns the registration of the memory engine.
func Descriptor() engine.Descriptor {
	return engine.Descriptor{Name: Name, Aliases: []string{"heap"}, Enabled: true}
}

type table struct {
	mu   sync.Mutex
	id   identifier.Table
	def  *message.Table
	rows *row.Set
}

// Engine is the memory engine.
type Engine struct {
	mu     sync.RWMutex
	tables map[string]*table
}

var _ engine.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{tables: make(map[string]*table)}
}

func (e *Engine) CreateTable(_ context.Context, id identifier.Table, def *message.Table) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tables[id.CacheKeyString()]; ok {
		return catalogerr.ErrTableExists.New(id.String())
	}
	def = def.Clone()
	e.tables[id.CacheKeyString()] = &table{id: id, def: def, rows: row.NewSet(def.PrimaryKeyOrdinals())}
	return nil
}

// DropTable drops |id| unless another table of this engine has a foreign key referencing it.
func (e *Engine) DropTable(_ context.Context, id identifier.Table) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tables[id.CacheKeyString()]; !ok {
		return catalogerr.ErrTableNotFound.New(id.String())
	}
	for _, t := range e.tables {
		if t.def.References(id.Schema().Name(), id.Name()) {
			return catalogerr.ErrRowReferenced.New(id.String())
		}
	}
	delete(e.tables, id.CacheKeyString())
	return nil
}

func (e *Engine) RenameTable(_ context.Context, from, to identifier.Table) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tables[from.CacheKeyString()]
	if !ok {
		return catalogerr.ErrTableNotFound.New(from.String())
	}
	if _, ok := e.tables[to.CacheKeyString()]; ok && !from.Equal(to) {
		return catalogerr.ErrTableExists.New(to.String())
	}

	t.mu.Lock()
	t.id = to
	t.def = t.def.Clone()
	t.def.Name = to.Name()
	t.def.Schema = to.Schema().Name()
	t.mu.Unlock()

	delete(e.tables, from.CacheKeyString())
	e.tables[to.CacheKeyString()] = t
	return nil
}

func (e *Engine) OpenTable(_ context.Context, id identifier.Table, _ *message.Table) (engine.Handle, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, ok := e.tables[id.CacheKeyString()]
	if !ok {
		return nil, catalogerr.ErrTableNotFound.New(id.String())
	}
	return &handle{t: t}, nil
}

// TableCount returns the number of tables the engine holds.
func (e *Engine) TableCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.tables)
}

type handle struct {
	t *table
}

func (h *handle) Insert(_ context.Context, r row.Row) error {
	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	if !h.t.rows.Add(r) {
		return catalogerr.ErrDuplicateKey.New(row.FormatKey(r, h.t.def.PrimaryKeyOrdinals()), h.t.id.Name())
	}
	return nil
}

func (h *handle) Rows(context.Context) (row.Iter, error) {
	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	return row.NewSliceIter(h.t.rows.Rows()), nil
}

func (h *handle) RowCount(context.Context) (uint64, error) {
	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	return uint64(h.t.rows.Len()), nil
}

func (h *handle) Close(context.Context) error {
	return nil
}
