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

package engine

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
	"github.com/0xffea/drizzle-sub000/libraries/utils/set"
)

// Registry holds the registered engines in registration order. Lookups read an immutable snapshot of the list;
// Register and Unregister replace it.
type Registry struct {
	fs     filesys.Filesys
	layout *identifier.Layout

	mu      sync.Mutex
	plugins atomic.Pointer[[]*Plugin]
	open    bool
}

// NewRegistry returns an empty Registry that looks for definition files in |fs| at the paths of |layout|.
func NewRegistry(fs filesys.Filesys, layout *identifier.Layout) *Registry {
	r := &Registry{fs: fs, layout: layout}
	r.plugins.Store(&[]*Plugin{})
	return r
}

func (r *Registry) snapshot() []*Plugin {
	return *r.plugins.Load()
}

// Open opens every registered engine, in registration order.
func (r *Registry) Open(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.open {
		return nil
	}

	opened := make([]*Plugin, 0)
	for _, p := range r.snapshot() {
		if lc, ok := p.Engine.(Lifecycle); ok {
			if err := lc.Open(ctx); err != nil {
				for i := len(opened) - 1; i >= 0; i-- {
					closeEngine(ctx, opened[i])
				}
				return err
			}
		}
		opened = append(opened, p)
	}

	r.open = true
	return nil
}

// Close closes every registered engine in reverse registration order. Engines stay registered.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.open {
		return nil
	}
	r.open = false

	var firstErr error
	plugins := r.snapshot()
	for i := len(plugins) - 1; i >= 0; i-- {
		if err := closeEngine(ctx, plugins[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func closeEngine(ctx context.Context, p *Plugin) error {
	lc, ok := p.Engine.(Lifecycle)
	if !ok {
		return nil
	}
	err := lc.Close(ctx)
	if err != nil {
		logrus.Warnf("error closing storage engine %s: %v", p.Name(), err)
	}
	return err
}

// Register adds |e| under |desc|. Names and aliases must be unique, ignoring case. If the registry is open the
// engine is opened before it becomes visible.
func (r *Registry) Register(ctx context.Context, desc Descriptor, e Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if desc.Name == "" || strings.EqualFold(desc.Name, DefaultEngineName) {
		return catalogerr.ErrNameInvalid.New("engine", desc.Name)
	}

	current := r.snapshot()
	names := append([]string{desc.Name}, desc.Aliases...)
	for _, p := range current {
		for _, name := range names {
			if p.Matches(name) {
				return catalogerr.ErrEngineRegistered.New(name)
			}
		}
	}

	p := &Plugin{Descriptor: desc, Engine: e}
	if r.open {
		if lc, ok := e.(Lifecycle); ok {
			if err := lc.Open(ctx); err != nil {
				return err
			}
		}
	}

	next := make([]*Plugin, len(current), len(current)+1)
	copy(next, current)
	next = append(next, p)
	r.plugins.Store(&next)

	logrus.Debugf("registered storage engine %s (%s)", desc.Name, desc.Flags)
	return nil
}

// Unregister removes the engine named |name|. Unknown names are ignored.
func (r *Registry) Unregister(ctx context.Context, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.snapshot()
	next := make([]*Plugin, 0, len(current))
	var removed *Plugin
	for _, p := range current {
		if removed == nil && strings.EqualFold(p.Name(), name) {
			removed = p
			continue
		}
		next = append(next, p)
	}

	if removed == nil {
		return
	}

	r.plugins.Store(&next)
	if r.open {
		_ = closeEngine(ctx, removed)
	}
	logrus.Debugf("unregistered storage engine %s", removed.Name())
}

// SetEnabled enables or disables the engine named |name|.
func (r *Registry) SetEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.snapshot()
	next := make([]*Plugin, len(current))
	found := false
	for i, p := range current {
		if !found && p.Matches(name) {
			cp := *p
			cp.Enabled = enabled
			next[i] = &cp
			found = true
			continue
		}
		next[i] = p
	}
	if found {
		r.plugins.Store(&next)
	}
	return found
}

// Plugins returns the registered engines in registration order.
func (r *Registry) Plugins() []*Plugin {
	return append([]*Plugin(nil), r.snapshot()...)
}

// Lookup returns the registered engine matching |name| whatever its flags or state.
func (r *Registry) Lookup(name string) (*Plugin, bool) {
	for _, p := range r.snapshot() {
		if p.Matches(name) {
			return p, true
		}
	}
	return nil, false
}

// FindByName returns the enabled, user selectable engine named |name|. The name "default" stands for the engine
// |src| names.
func (r *Registry) FindByName(src DefaultEngineSource, name string) (*Plugin, bool) {
	if strings.EqualFold(name, DefaultEngineName) {
		if src == nil {
			return nil, false
		}
		name = src.DefaultEngine()
		if strings.EqualFold(name, DefaultEngineName) {
			return nil, false
		}
	}

	p, ok := r.Lookup(name)
	if !ok || !p.Enabled || p.Has(NotUserSelectable) {
		return nil, false
	}
	return p, true
}

// SchemaExists returns whether any engine holds the schema |id|.
func (r *Registry) SchemaExists(ctx context.Context, id identifier.Schema) (bool, error) {
	_, _, ok, err := r.SchemaDefinition(ctx, id)
	return ok, err
}

// SchemaDefinition asks each schema engine in registration order for |id| and returns the first definition found
// together with the engine that holds it.
func (r *Registry) SchemaDefinition(ctx context.Context, id identifier.Schema) (*message.Schema, *Plugin, bool, error) {
	for _, p := range r.snapshot() {
		se, ok := p.SchemaEngine()
		if !ok {
			continue
		}
		def, ok, err := se.SchemaDefinition(ctx, id)
		if err != nil {
			return nil, nil, false, translateSchema(p, id, err)
		}
		if ok {
			return def, p, true, nil
		}
	}
	return nil, nil, false, nil
}

// TableDefinition asks each dictionary engine in registration order for |id|, then falls back to the definition
// file on disk.
func (r *Registry) TableDefinition(ctx context.Context, id identifier.Table) (TableLookup, error) {
	for _, p := range r.snapshot() {
		de, ok := p.DictionaryEngine()
		if !ok {
			continue
		}
		def, ok, err := de.TableDefinition(ctx, id)
		if err != nil {
			return TableLookup{}, translateTable(p, id, err)
		}
		if ok {
			return TableLookup{Status: Found, Engine: p, Definition: def}, nil
		}
	}

	if !id.Kind().Persistent() {
		return TableLookup{Status: NotFound}, nil
	}

	data, err := r.fs.ReadFile(id.DefinitionPath())
	if filesys.IsNotExist(err) {
		return TableLookup{Status: NotFound}, nil
	} else if err != nil {
		return TableLookup{}, catalogerr.ErrIO.Wrap(err, id.DefinitionPath())
	}

	def, err := message.UnmarshalTable(data)
	if err != nil {
		return TableLookup{}, catalogerr.ErrIO.Wrap(err, id.DefinitionPath())
	}

	p, _ := r.Lookup(def.Engine)
	if p == nil {
		logrus.Warnf("table %s names unknown storage engine '%s'", id, def.Engine)
	}
	return TableLookup{Status: Found, Engine: p, Definition: def}, nil
}

// SchemaTables returns the identifiers of the persistent tables in |id|: the tables of every dictionary engine and
// the definition files in the schema directory, ordered by name. Tables found through a definition file keep the
// file's on-disk name, so they can be dropped even when their decoded name does not encode back to it.
func (r *Registry) SchemaTables(ctx context.Context, id identifier.Schema) ([]identifier.Table, error) {
	perEngine, err := r.collect(ctx, func(ctx context.Context, p *Plugin) ([]string, error) {
		de, ok := p.DictionaryEngine()
		if !ok {
			return nil, nil
		}
		return de.TableNames(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	var tables []identifier.Table
	seen := make(map[string]struct{})
	add := func(t identifier.Table) {
		if _, ok := seen[t.CacheKeyString()]; ok {
			return
		}
		seen[t.CacheKeyString()] = struct{}{}
		tables = append(tables, t)
	}

	for _, engineNames := range perEngine {
		for _, name := range engineNames {
			add(r.layout.TableAt(id, name, identifier.EncodeName(name)))
		}
	}

	err = r.fs.Iter(id.Path(), false, func(path string, _ int64, isDir bool) bool {
		base := filepath.Base(path)
		if isDir || !strings.HasSuffix(base, identifier.TableDefinitionExt) {
			return false
		}
		encoded := strings.TrimSuffix(base, identifier.TableDefinitionExt)
		if strings.HasPrefix(encoded, identifier.TmpFilePrefix) {
			return false
		}
		if err := identifier.CheckEncoded(encoded); err != nil {
			logrus.Warnf("ignoring definition file with malformed name %s", path)
			return false
		}
		add(r.layout.TableAt(id, identifier.StoredName(encoded, r.storedTableName(path)), encoded))
		return false
	})
	if err != nil && !filesys.IsNotExist(err) {
		return nil, catalogerr.ErrIO.Wrap(err, id.Path())
	}

	sort.Slice(tables, func(i, j int) bool {
		return tables[i].Name() < tables[j].Name()
	})
	return tables, nil
}

// storedTableName returns the name recorded in the table definition file at |path|, or "" if it cannot be read.
func (r *Registry) storedTableName(path string) string {
	data, err := r.fs.ReadFile(path)
	if err != nil {
		return ""
	}
	def, err := message.UnmarshalTable(data)
	if err != nil {
		logrus.Warnf("unreadable table definition %s: %v", path, err)
		return ""
	}
	return def.Name
}

// storedSchemaName returns the name recorded in the definition file of the schema directory |dir|, or "".
func (r *Registry) storedSchemaName(dir string) string {
	data, err := r.fs.ReadFile(filepath.Join(dir, identifier.SchemaDefinitionFile))
	if err != nil {
		return ""
	}
	def, err := message.UnmarshalSchema(data)
	if err != nil {
		return ""
	}
	return def.Name
}

// TableNames returns the names of the tables in |id| together with |temporary|. Names that differ only in the case
// of ASCII letters are reported once.
func (r *Registry) TableNames(ctx context.Context, id identifier.Schema, temporary []string) (*set.StrSet, error) {
	tables, err := r.SchemaTables(ctx, id)
	if err != nil {
		return nil, err
	}

	names := set.NewCaseInsensitiveStrSet(temporary)
	for _, t := range tables {
		names.Add(t.Name())
	}
	return names, nil
}

// SchemaNames returns the names of all schemas: the directories under the data root and the schemas of every
// schema engine.
func (r *Registry) SchemaNames(ctx context.Context) (*set.StrSet, error) {
	perEngine, err := r.collect(ctx, func(ctx context.Context, p *Plugin) ([]string, error) {
		se, ok := p.SchemaEngine()
		if !ok {
			return nil, nil
		}
		return se.SchemaNames(ctx)
	})
	if err != nil {
		return nil, err
	}

	names := set.NewCaseInsensitiveStrSet(nil)
	for _, engineNames := range perEngine {
		names.Add(engineNames...)
	}

	tmpDir := r.layout.TmpDir()
	err = r.fs.Iter(r.layout.DataRoot(), false, func(path string, _ int64, isDir bool) bool {
		base := filepath.Base(path)
		if !isDir || strings.HasPrefix(base, ".") || filepath.Clean(path) == tmpDir {
			return false
		}
		if identifier.CheckEncoded(base) != nil {
			return false
		}
		names.Add(identifier.StoredName(base, r.storedSchemaName(path)))
		return false
	})
	if err != nil && !filesys.IsNotExist(err) {
		return nil, catalogerr.ErrIO.Wrap(err, r.layout.DataRoot())
	}

	return names, nil
}

// collect calls |fn| for every engine concurrently and returns the results in registration order.
func (r *Registry) collect(ctx context.Context, fn func(context.Context, *Plugin) ([]string, error)) ([][]string, error) {
	plugins := r.snapshot()
	results := make([][]string, len(plugins))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, p := range plugins {
		i, p := i, p
		eg.Go(func() error {
			names, err := fn(egCtx, p)
			if err != nil {
				if catalogerr.Classify(err) == catalogerr.Unknown {
					err = catalogerr.WrapEngineError(p.Name(), err)
				}
				return err
			}
			results[i] = names
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// CreateSchema creates |id| in the first enabled schema engine.
func (r *Registry) CreateSchema(ctx context.Context, id identifier.Schema, def *message.Schema) error {
	for _, p := range r.snapshot() {
		se, ok := p.SchemaEngine()
		if !ok || !p.Enabled {
			continue
		}
		return translateSchema(p, id, se.CreateSchema(ctx, id, def))
	}
	return catalogerr.ErrUnsupported.New("no storage engine can create schemas")
}

// AlterSchema replaces the definition of |id| in the engine that holds it.
func (r *Registry) AlterSchema(ctx context.Context, id identifier.Schema, def *message.Schema) error {
	_, p, ok, err := r.SchemaDefinition(ctx, id)
	if err != nil {
		return err
	} else if !ok {
		return catalogerr.ErrSchemaNotFound.New(id.Name())
	}

	se, _ := p.SchemaEngine()
	return translateSchema(p, id, se.AlterSchema(ctx, id, def))
}

// DropSchema drops |id| from the engine that holds it.
func (r *Registry) DropSchema(ctx context.Context, id identifier.Schema) error {
	_, p, ok, err := r.SchemaDefinition(ctx, id)
	if err != nil {
		return err
	} else if !ok {
		return catalogerr.ErrSchemaNotFound.New(id.Name())
	}

	se, _ := p.SchemaEngine()
	return translateSchema(p, id, se.DropSchema(ctx, id))
}

func (r *Registry) CreateTable(ctx context.Context, p *Plugin, id identifier.Table, def *message.Table) error {
	return translateTable(p, id, p.Engine.CreateTable(ctx, id, def))
}

func (r *Registry) DropTable(ctx context.Context, p *Plugin, id identifier.Table) error {
	return translateTable(p, id, p.Engine.DropTable(ctx, id))
}

func (r *Registry) RenameTable(ctx context.Context, p *Plugin, from, to identifier.Table) error {
	return translateTable(p, from, p.Engine.RenameTable(ctx, from, to))
}

func (r *Registry) OpenTable(ctx context.Context, p *Plugin, id identifier.Table, def *message.Table) (Handle, error) {
	h, err := p.Engine.OpenTable(ctx, id, def)
	if err != nil {
		return nil, translateTable(p, id, err)
	}
	return h, nil
}

// translate maps an error returned by the engine of |p| onto the catalog's error kinds. Errors that already carry
// a kind pass through; missing or existing files become NotFound or AlreadyExists for the object |name|.
func translate(p *Plugin, name string, isSchema bool, err error) error {
	if err == nil {
		return nil
	}
	if catalogerr.Classify(err) != catalogerr.Unknown {
		return err
	}

	switch {
	case errors.Is(err, fs.ErrNotExist) && isSchema:
		return catalogerr.ErrSchemaNotFound.Wrap(err, name)
	case errors.Is(err, fs.ErrNotExist):
		return catalogerr.ErrTableNotFound.Wrap(err, name)
	case errors.Is(err, fs.ErrExist) && isSchema:
		return catalogerr.ErrSchemaExists.Wrap(err, name)
	case errors.Is(err, fs.ErrExist):
		return catalogerr.ErrTableExists.Wrap(err, name)
	}
	return catalogerr.WrapEngineError(p.Name(), err)
}

func translateTable(p *Plugin, id identifier.Table, err error) error {
	return translate(p, id.String(), false, err)
}

func translateSchema(p *Plugin, id identifier.Schema, err error) error {
	return translate(p, id.Name(), true, err)
}
