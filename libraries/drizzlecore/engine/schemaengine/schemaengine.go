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

// Package schemaengine stores schemas as directories under the data root, each with a db.opt definition file.
package schemaengine

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/defstore"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
)

const Name = "schema"

// Descriptor returns the registration of the schema engine. It holds no tables, so it cannot be chosen for one.
func Descriptor() engine.Descriptor {
	return engine.Descriptor{
		Name:    Name,
		Flags:   engine.NotUserSelectable | engine.Hidden | engine.AlterUnsupported,
		Enabled: true,
	}
}

type Engine struct {
	fs     filesys.Filesys
	layout *identifier.Layout
	store  *defstore.Store
}

var _ engine.SchemaEngine = (*Engine)(nil)

func New(fs filesys.Filesys, layout *identifier.Layout, store *defstore.Store) *Engine {
	return &Engine{fs: fs, layout: layout, store: store}
}

func (e *Engine) dirExists(id identifier.Schema) bool {
	exists, isDir := e.fs.Exists(id.Path())
	return exists && isDir
}

// SchemaDefinition reads db.opt of |id|. A schema directory without one, such as one created by hand, gets a
// definition with only its name.
func (e *Engine) SchemaDefinition(ctx context.Context, id identifier.Schema) (*message.Schema, bool, error) {
	if !e.dirExists(id) {
		return nil, false, nil
	}

	def, err := e.store.ReadSchema(ctx, id)
	if catalogerr.ErrSchemaNotFound.Is(err) {
		return &message.Schema{Name: id.Name()}, true, nil
	} else if err != nil {
		return nil, false, err
	}
	return def, true, nil
}

func (e *Engine) SchemaNames(ctx context.Context) ([]string, error) {
	var names []string
	tmpDir := e.layout.TmpDir()
	err := e.fs.Iter(e.layout.DataRoot(), false, func(path string, _ int64, isDir bool) bool {
		base := filepath.Base(path)
		if !isDir || strings.HasPrefix(base, ".") || filepath.Clean(path) == tmpDir {
			return false
		}
		if identifier.CheckEncoded(base) != nil {
			return false
		}
		var stored string
		if def, err := e.store.ReadSchema(ctx, e.layout.SchemaAt(identifier.DecodeName(base), base)); err == nil {
			stored = def.Name
		}
		names = append(names, identifier.StoredName(base, stored))
		return false
	})
	if err != nil && !filesys.IsNotExist(err) {
		return nil, catalogerr.ErrIO.Wrap(err, e.layout.DataRoot())
	}
	return names, nil
}

// CreateSchema creates the directory of |id| and writes its definition. The directory is removed again if the
// definition cannot be written.
func (e *Engine) CreateSchema(ctx context.Context, id identifier.Schema, def *message.Schema) error {
	if exists, _ := e.fs.Exists(id.Path()); exists {
		return catalogerr.ErrSchemaExists.New(id.Name())
	}
	if err := e.fs.MkDirs(id.Path()); err != nil {
		return catalogerr.ErrIO.Wrap(err, id.Path())
	}

	def = def.Clone()
	def.Name = id.Name()
	if err := e.store.WriteSchema(ctx, id, def); err != nil {
		if rmErr := e.fs.Delete(id.Path(), true); rmErr != nil {
			logrus.Errorf("failed to remove %s after a failed create: %v", id.Path(), rmErr)
		}
		return err
	}
	return nil
}

func (e *Engine) AlterSchema(ctx context.Context, id identifier.Schema, def *message.Schema) error {
	if !e.dirExists(id) {
		return catalogerr.ErrSchemaNotFound.New(id.Name())
	}
	def = def.Clone()
	def.Name = id.Name()
	return e.store.WriteSchema(ctx, id, def)
}

// DropSchema removes the directory of |id| and anything still in it.
func (e *Engine) DropSchema(ctx context.Context, id identifier.Schema) error {
	if !e.dirExists(id) {
		return catalogerr.ErrSchemaNotFound.New(id.Name())
	}
	if err := e.store.DeleteSchema(ctx, id); err != nil {
		return err
	}
	if err := e.fs.Delete(id.Path(), true); err != nil {
		return catalogerr.ErrIO.Wrap(err, id.Path())
	}
	return nil
}

func (e *Engine) CreateTable(_ context.Context, id identifier.Table, _ *message.Table) error {
	return catalogerr.ErrUnsupported.New("the schema engine does not store tables")
}

func (e *Engine) DropTable(_ context.Context, id identifier.Table) error {
	return catalogerr.ErrTableNotFound.New(id.String())
}

func (e *Engine) RenameTable(_ context.Context, from, _ identifier.Table) error {
	return catalogerr.ErrTableNotFound.New(from.String())
}

func (e *Engine) OpenTable(_ context.Context, id identifier.Table, _ *message.Table) (engine.Handle, error) {
	return nil, catalogerr.ErrTableNotFound.New(id.String())
}
