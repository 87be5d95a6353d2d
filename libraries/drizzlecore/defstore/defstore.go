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

// Package defstore persists schema and table definitions as files next to the objects they describe. Tables of
// engines that keep their own data dictionary have no definition file.
package defstore

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
)

const filePerm os.FileMode = 0o660

// Store reads and writes definition files. Every write goes through filesys.Filesys.WriteFile, which never
// exposes a partially written file at the final path.
type Store struct {
	fs  filesys.Filesys
	reg *engine.Registry
}

// New returns a Store over |fs|. Reads of tables whose engine owns its dictionary are answered by |reg|.
func New(fs filesys.Filesys, reg *engine.Registry) *Store {
	return &Store{fs: fs, reg: reg}
}

func skipTable(id identifier.Table, owner *engine.Plugin) bool {
	return !id.Kind().Persistent() || (owner != nil && owner.OwnsDictionary())
}

// ReadTable returns the definition of |id| and the engine that owns the table. The engine is nil when the
// definition names an engine that is not registered.
func (s *Store) ReadTable(ctx context.Context, id identifier.Table) (*message.Table, *engine.Plugin, error) {
	lookup, err := s.reg.TableDefinition(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !lookup.Found() {
		return nil, nil, catalogerr.ErrTableNotFound.New(id.String())
	}
	return lookup.Definition, lookup.Engine, nil
}

// WriteTable stores |def| as the definition of |id|.
func (s *Store) WriteTable(_ context.Context, id identifier.Table, def *message.Table, owner *engine.Plugin) error {
	if skipTable(id, owner) {
		return nil
	}

	path := id.DefinitionPath()
	if err := s.fs.WriteFile(path, message.MarshalTable(def), filePerm); err != nil {
		return catalogerr.ErrIO.Wrap(err, path)
	}
	logrus.Debugf("wrote table definition %s", path)
	return nil
}

// DeleteTable removes the definition of |id|. A missing file is not an error.
func (s *Store) DeleteTable(_ context.Context, id identifier.Table, owner *engine.Plugin) error {
	if skipTable(id, owner) {
		return nil
	}

	path := id.DefinitionPath()
	if err := s.fs.DeleteFile(path); err != nil && !filesys.IsNotExist(err) {
		return catalogerr.ErrIO.Wrap(err, path)
	}
	return nil
}

// RenameTable moves the definition of |from| to |to|, rewriting the names it records. On failure the definition
// of |from| is left in place.
func (s *Store) RenameTable(_ context.Context, from, to identifier.Table, owner *engine.Plugin) error {
	if skipTable(from, owner) {
		return nil
	}

	fromPath, toPath := from.DefinitionPath(), to.DefinitionPath()
	data, err := s.fs.ReadFile(fromPath)
	if filesys.IsNotExist(err) {
		return catalogerr.ErrTableNotFound.New(from.String())
	} else if err != nil {
		return catalogerr.ErrIO.Wrap(err, fromPath)
	}

	if fromPath != toPath {
		if exists, _ := s.fs.Exists(toPath); exists {
			return catalogerr.ErrTableExists.New(to.String())
		}
	}

	def, err := message.UnmarshalTable(data)
	if err != nil {
		return catalogerr.ErrIO.Wrap(err, fromPath)
	}
	def.Name = to.Name()
	def.Schema = to.Schema().Name()

	if err := s.fs.WriteFile(toPath, message.MarshalTable(def), filePerm); err != nil {
		return catalogerr.ErrIO.Wrap(err, toPath)
	}
	if fromPath == toPath {
		return nil
	}

	if err := s.fs.DeleteFile(fromPath); err != nil && !filesys.IsNotExist(err) {
		if rmErr := s.fs.DeleteFile(toPath); rmErr != nil {
			logrus.Errorf("failed to remove %s after a failed rename: %v", toPath, rmErr)
		}
		return catalogerr.ErrIO.Wrap(err, fromPath)
	}

	logrus.Debugf("renamed table definition %s to %s", fromPath, toPath)
	return nil
}

// ReadSchema returns the definition stored in the directory of |id|.
func (s *Store) ReadSchema(_ context.Context, id identifier.Schema) (*message.Schema, error) {
	path := id.DefinitionPath()
	data, err := s.fs.ReadFile(path)
	if filesys.IsNotExist(err) {
		return nil, catalogerr.ErrSchemaNotFound.New(id.Name())
	} else if err != nil {
		return nil, catalogerr.ErrIO.Wrap(err, path)
	}

	def, err := message.UnmarshalSchema(data)
	if err != nil {
		return nil, catalogerr.ErrIO.Wrap(err, path)
	}
	return def, nil
}

// WriteSchema stores |def| as the definition of |id|. The schema directory must exist.
func (s *Store) WriteSchema(_ context.Context, id identifier.Schema, def *message.Schema) error {
	path := id.DefinitionPath()
	if exists, isDir := s.fs.Exists(id.Path()); !exists || !isDir {
		return catalogerr.ErrSchemaNotFound.New(id.Name())
	}
	if err := s.fs.WriteFile(path, message.MarshalSchema(def), filePerm); err != nil {
		return catalogerr.ErrIO.Wrap(err, path)
	}
	logrus.Debugf("wrote schema definition %s", path)
	return nil
}

// DeleteSchema removes the definition of |id|. A missing file is not an error.
func (s *Store) DeleteSchema(_ context.Context, id identifier.Schema) error {
	path := id.DefinitionPath()
	if err := s.fs.DeleteFile(path); err != nil && !filesys.IsNotExist(err) {
		return catalogerr.ErrIO.Wrap(err, path)
	}
	return nil
}
