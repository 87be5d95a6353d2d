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

package dtestutils

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/row"
)

// Operation names used by FakeEngine.FailOn and recorded by FakeEngine.Calls.
const (
	OpCreateTable  = "CreateTable"
	OpDropTable    = "DropTable"
	OpRenameTable  = "RenameTable"
	OpOpenTable    = "OpenTable"
	OpCreateSchema = "CreateSchema"
	OpAlterSchema  = "AlterSchema"
	OpDropSchema   = "DropSchema"
)

// FakeEngine is a scriptable in-memory engine. It records every call and can be told to fail particular
// operations.
type FakeEngine struct {
	name string

	mu       sync.Mutex
	tables   map[string]*fakeTable
	calls    []string
	failures map[string]error

	// OnCall, if set, runs at the start of every operation before any state is touched.
	OnCall func(op, object string)
}

type fakeTable struct {
	id   identifier.Table
	def  *message.Table
	rows []row.Row
}

var _ engine.Engine = (*FakeEngine)(nil)

func NewFakeEngine(name string) *FakeEngine {
	return &FakeEngine{
		name:     name,
		tables:   make(map[string]*fakeTable),
		failures: make(map[string]error),
	}
}

func (fe *FakeEngine) Name() string {
	return fe.name
}

// FailOn makes |op| on |object| return |err| until ClearFailures is called. An empty |object| matches every object.
// Objects are named schema.table for table operations and by schema name for schema operations, ignoring case.
func (fe *FakeEngine) FailOn(op, object string, err error) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.failures[op+" "+strings.ToLower(object)] = err
}

func (fe *FakeEngine) ClearFailures() {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.failures = make(map[string]error)
}

// Calls returns the operations performed so far, as "Op object".
func (fe *FakeEngine) Calls() []string {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return append([]string(nil), fe.calls...)
}

// CallCount returns how many times |op| was called.
func (fe *FakeEngine) CallCount(op string) int {
	n := 0
	for _, call := range fe.Calls() {
		if strings.HasPrefix(call, op+" ") {
			n++
		}
	}
	return n
}

// HasTable returns whether the engine holds |schema|.|table|.
func (fe *FakeEngine) HasTable(schema, table string) bool {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	for _, t := range fe.tables {
		if identifier.EqualFold(t.id.Schema().Name(), schema) && identifier.EqualFold(t.id.Name(), table) {
			return true
		}
	}
	return false
}

// begin records the call and returns the scripted failure for it, if any. fe.mu must not be held.
func (fe *FakeEngine) begin(op, object string) error {
	if fe.OnCall != nil {
		fe.OnCall(op, object)
	}

	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.calls = append(fe.calls, op+" "+object)
	if err, ok := fe.failures[op+" "+strings.ToLower(object)]; ok {
		return err
	}
	if err, ok := fe.failures[op+" "]; ok {
		return err
	}
	return nil
}

func (fe *FakeEngine) CreateTable(_ context.Context, id identifier.Table, def *message.Table) error {
	if err := fe.begin(OpCreateTable, id.String()); err != nil {
		return err
	}

	fe.mu.Lock()
	defer fe.mu.Unlock()
	if _, ok := fe.tables[id.CacheKeyString()]; ok {
		return catalogerr.ErrTableExists.New(id.String())
	}
	fe.tables[id.CacheKeyString()] = &fakeTable{id: id, def: def.Clone()}
	return nil
}

func (fe *FakeEngine) DropTable(_ context.Context, id identifier.Table) error {
	if err := fe.begin(OpDropTable, id.String()); err != nil {
		return err
	}

	fe.mu.Lock()
	defer fe.mu.Unlock()
	if _, ok := fe.tables[id.CacheKeyString()]; !ok {
		return catalogerr.ErrTableNotFound.New(id.String())
	}
	delete(fe.tables, id.CacheKeyString())
	return nil
}

func (fe *FakeEngine) RenameTable(_ context.Context, from, to identifier.Table) error {
	if err := fe.begin(OpRenameTable, from.String()); err != nil {
		return err
	}

	fe.mu.Lock()
	defer fe.mu.Unlock()
	t, ok := fe.tables[from.CacheKeyString()]
	if !ok {
		return catalogerr.ErrTableNotFound.New(from.String())
	}
	if _, ok := fe.tables[to.CacheKeyString()]; ok && !from.Equal(to) {
		return catalogerr.ErrTableExists.New(to.String())
	}
	delete(fe.tables, from.CacheKeyString())
	t.id = to
	t.def = t.def.Clone()
	t.def.Name = to.Name()
	t.def.Schema = to.Schema().Name()
	fe.tables[to.CacheKeyString()] = t
	return nil
}

func (fe *FakeEngine) OpenTable(_ context.Context, id identifier.Table, _ *message.Table) (engine.Handle, error) {
	if err := fe.begin(OpOpenTable, id.String()); err != nil {
		return nil, err
	}

	fe.mu.Lock()
	defer fe.mu.Unlock()
	t, ok := fe.tables[id.CacheKeyString()]
	if !ok {
		return nil, catalogerr.ErrTableNotFound.New(id.String())
	}
	return &fakeHandle{fe: fe, t: t}, nil
}

type fakeHandle struct {
	fe *FakeEngine
	t  *fakeTable
}

func (h *fakeHandle) Insert(_ context.Context, r row.Row) error {
	h.fe.mu.Lock()
	defer h.fe.mu.Unlock()

	if pk := h.t.def.PrimaryKeyOrdinals(); len(pk) > 0 {
		key := row.Key(r, pk)
		for _, existing := range h.t.rows {
			if row.Key(existing, pk) == key {
				return catalogerr.ErrDuplicateKey.New(row.FormatKey(r, pk), h.t.id.Name())
			}
		}
	}
	h.t.rows = append(h.t.rows, r.Copy())
	return nil
}

func (h *fakeHandle) Rows(context.Context) (row.Iter, error) {
	h.fe.mu.Lock()
	defer h.fe.mu.Unlock()
	rows := make([]row.Row, len(h.t.rows))
	for i, r := range h.t.rows {
		rows[i] = r.Copy()
	}
	return row.NewSliceIter(rows), nil
}

func (h *fakeHandle) RowCount(context.Context) (uint64, error) {
	h.fe.mu.Lock()
	defer h.fe.mu.Unlock()
	return uint64(len(h.t.rows)), nil
}

func (h *fakeHandle) Close(context.Context) error {
	return nil
}

// FakeDictionaryEngine is a FakeEngine that owns its data dictionary.
type FakeDictionaryEngine struct {
	*FakeEngine
}

var _ engine.DictionaryEngine = FakeDictionaryEngine{}

func NewFakeDictionaryEngine(name string) FakeDictionaryEngine {
	return FakeDictionaryEngine{NewFakeEngine(name)}
}

func (fe FakeDictionaryEngine) TableDefinition(_ context.Context, id identifier.Table) (*message.Table, bool, error) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	t, ok := fe.tables[id.CacheKeyString()]
	if !ok {
		return nil, false, nil
	}
	return t.def.Clone(), true, nil
}

func (fe FakeDictionaryEngine) TableNames(_ context.Context, id identifier.Schema) ([]string, error) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	var names []string
	for _, t := range fe.tables {
		if t.id.Schema().Equal(id) {
			names = append(names, t.id.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// FakeSchemaEngine is a FakeEngine that also stores schemas.
type FakeSchemaEngine struct {
	*FakeEngine
	schemas *sync.Map
}

var _ engine.SchemaEngine = FakeSchemaEngine{}

func NewFakeSchemaEngine(name string) FakeSchemaEngine {
	return FakeSchemaEngine{FakeEngine: NewFakeEngine(name), schemas: &sync.Map{}}
}

func (fe FakeSchemaEngine) SchemaDefinition(_ context.Context, id identifier.Schema) (*message.Schema, bool, error) {
	v, ok := fe.schemas.Load(id.Key())
	if !ok {
		return nil, false, nil
	}
	return v.(*message.Schema).Clone(), true, nil
}

func (fe FakeSchemaEngine) SchemaNames(context.Context) ([]string, error) {
	var names []string
	fe.schemas.Range(func(_, v any) bool {
		names = append(names, v.(*message.Schema).Name)
		return true
	})
	sort.Strings(names)
	return names, nil
}

func (fe FakeSchemaEngine) CreateSchema(_ context.Context, id identifier.Schema, def *message.Schema) error {
	if err := fe.begin(OpCreateSchema, id.Name()); err != nil {
		return err
	}
	def = def.Clone()
	def.Name = id.Name()
	if _, loaded := fe.schemas.LoadOrStore(id.Key(), def); loaded {
		return catalogerr.ErrSchemaExists.New(id.Name())
	}
	return nil
}

func (fe FakeSchemaEngine) AlterSchema(_ context.Context, id identifier.Schema, def *message.Schema) error {
	if err := fe.begin(OpAlterSchema, id.Name()); err != nil {
		return err
	}
	if _, ok := fe.schemas.Load(id.Key()); !ok {
		return catalogerr.ErrSchemaNotFound.New(id.Name())
	}
	fe.schemas.Store(id.Key(), def.Clone())
	return nil
}

func (fe FakeSchemaEngine) DropSchema(_ context.Context, id identifier.Schema) error {
	if err := fe.begin(OpDropSchema, id.Name()); err != nil {
		return err
	}
	if _, loaded := fe.schemas.LoadAndDelete(id.Key()); !loaded {
		return catalogerr.ErrSchemaNotFound.New(id.Name())
	}
	return nil
}

// ErrorIter is a row.Iter that fails after returning |Rows|.
type ErrorIter struct {
	Rows []row.Row
	Err  error
}

func (it *ErrorIter) Next(context.Context) (row.Row, error) {
	if len(it.Rows) == 0 {
		if it.Err == nil {
			return nil, io.EOF
		}
		return nil, it.Err
	}
	r := it.Rows[0]
	it.Rows = it.Rows[1:]
	return r, nil
}

func (it *ErrorIter) Close(context.Context) error {
	return nil
}
