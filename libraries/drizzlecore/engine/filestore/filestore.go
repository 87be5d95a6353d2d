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

// Package filestore is a file based engine. Each table's rows live in a snappy compressed data file beside the
// table's definition file, rewritten in full on every insert.
package filestore

import (
	"context"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/row"
	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
	"github.com/0xffea/drizzle-sub000/libraries/utils/keymutex"
	"github.com/0xffea/drizzle-sub000/libraries/utils/wire"
)

const (
	Name = "filestore"
	// DataExt is appended to a table's path to name its data file.
	DataExt = ".dat"

	filePerm = 0o660
	fieldRow = 1
)

func Descriptor() engine.Descriptor {
	return engine.Descriptor{Name: Name, Aliases: []string{"archive"}, Flags: engine.FileBased, Enabled: true}
}

type Engine struct {
	fs    filesys.Filesys
	locks keymutex.Keymutex
}

var _ engine.Engine = (*Engine)(nil)

func New(fs filesys.Filesys) *Engine {
	return &Engine{fs: fs, locks: keymutex.NewMapped()}
}

func dataPath(id identifier.Table) string {
	return id.Path() + DataExt
}

func (e *Engine) lock(ctx context.Context, paths ...string) (func(), error) {
	unlock, err := keymutex.LockAll(ctx, e.locks, paths...)
	if err != nil {
		return nil, catalogerr.ErrInterrupted.Wrap(err)
	}
	return unlock, nil
}

func (e *Engine) CreateTable(ctx context.Context, id identifier.Table, _ *message.Table) error {
	path := dataPath(id)
	unlock, err := e.lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	if exists, _ := e.fs.Exists(path); exists {
		return catalogerr.ErrTableExists.New(id.String())
	}
	if err := e.fs.MkDirs(filepath.Dir(path)); err != nil {
		return err
	}
	return e.fs.WriteFile(path, snappy.Encode(nil, nil), filePerm)
}

func (e *Engine) DropTable(ctx context.Context, id identifier.Table) error {
	path := dataPath(id)
	unlock, err := e.lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	if err := e.fs.DeleteFile(path); filesys.IsNotExist(err) {
		return catalogerr.ErrTableNotFound.New(id.String())
	} else if err != nil {
		return err
	}
	return nil
}

func (e *Engine) RenameTable(ctx context.Context, from, to identifier.Table) error {
	fromPath, toPath := dataPath(from), dataPath(to)
	unlock, err := e.lock(ctx, fromPath, toPath)
	if err != nil {
		return err
	}
	defer unlock()

	if exists, _ := e.fs.Exists(fromPath); !exists {
		return catalogerr.ErrTableNotFound.New(from.String())
	}
	if fromPath == toPath {
		return nil
	}
	if exists, _ := e.fs.Exists(toPath); exists {
		return catalogerr.ErrTableExists.New(to.String())
	}
	if err := e.fs.MkDirs(filepath.Dir(toPath)); err != nil {
		return err
	}
	return e.fs.MoveFile(fromPath, toPath)
}

func (e *Engine) OpenTable(_ context.Context, id identifier.Table, def *message.Table) (engine.Handle, error) {
	path := dataPath(id)
	if exists, _ := e.fs.Exists(path); !exists {
		return nil, catalogerr.ErrTableNotFound.New(id.String())
	}

	var pk []int
	if def != nil {
		pk = def.PrimaryKeyOrdinals()
	}
	return &handle{e: e, id: id, path: path, pk: pk}, nil
}

func (e *Engine) load(path string, pk []int) (*row.Set, error) {
	compressed, err := e.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errors.Wrapf(err, "decompressing %s", path)
	}

	rows := row.NewSet(pk)
	err = wire.DecodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldRow {
			return 0, nil
		}
		var encoded []byte
		n, err := wire.ConsumeBytes(typ, b, &encoded)
		if err != nil || n == 0 {
			return n, err
		}
		r, err := row.Decode(encoded)
		if err != nil {
			return 0, err
		}
		rows.Add(r)
		return n, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return rows, nil
}

func (e *Engine) store(path string, rows []row.Row) error {
	var enc wire.Encoder
	for _, r := range rows {
		enc.Message(fieldRow, row.Encode(r))
	}
	return e.fs.WriteFile(path, snappy.Encode(nil, enc.B), filePerm)
}

type handle struct {
	e    *Engine
	id   identifier.Table
	path string
	pk   []int
}

func (h *handle) Insert(ctx context.Context, r row.Row) error {
	unlock, err := h.e.lock(ctx, h.path)
	if err != nil {
		return err
	}
	defer unlock()

	rows, err := h.e.load(h.path, h.pk)
	if err != nil {
		return err
	}
	if !rows.Add(r) {
		return catalogerr.ErrDuplicateKey.New(row.FormatKey(r, h.pk), h.id.Name())
	}
	return h.e.store(h.path, rows.Rows())
}

func (h *handle) Rows(ctx context.Context) (row.Iter, error) {
	unlock, err := h.e.lock(ctx, h.path)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rows, err := h.e.load(h.path, nil)
	if err != nil {
		return nil, err
	}
	return row.NewSliceIter(rows.Rows()), nil
}

func (h *handle) RowCount(ctx context.Context) (uint64, error) {
	unlock, err := h.e.lock(ctx, h.path)
	if err != nil {
		return 0, err
	}
	defer unlock()

	rows, err := h.e.load(h.path, nil)
	if err != nil {
		return 0, err
	}
	return uint64(rows.Len()), nil
}

func (h *handle) Close(context.Context) error {
	return nil
}
