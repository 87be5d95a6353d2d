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

// Package leveldbengine is a storage engine that keeps the rows of all of its tables in one LevelDB database.
// Definitions stay in the catalog's definition files.
package leveldbengine

import (
	"context"
	"encoding/binary"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/row"
	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
)

const Name = "leveldb"

// Key spaces. Every key is one of these bytes, then the table prefix, then the rest.
const (
	spaceTable = 'm'
	spaceRow   = 'r'
	spaceKey   = 'k'
)

var errNotOpen = errors.New("leveldb engine is not open")

func Descriptor() engine.Descriptor {
	return engine.Descriptor{Name: Name, Aliases: []string{"lsm"}, Enabled: true}
}

// Engine stores rows keyed by table and insertion sequence. A table exists while its marker key does. Tables with
// a primary key also map each key value to the sequence of the row holding it.
type Engine struct {
	// path is the database directory. Empty keeps the database in memory.
	path string

	mu  sync.RWMutex
	db  *leveldb.DB
	seq atomic.Uint64

	// wmu serializes writers so existence checks and the writes that depend on them are atomic.
	wmu sync.Mutex
}

var _ engine.Engine = (*Engine)(nil)
var _ engine.Lifecycle = (*Engine)(nil)

// New returns an engine for the database at |path|, or an in-memory database if |path| is empty.
func New(path string) *Engine {
	return &Engine{path: path}
}

func (e *Engine) Open(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db != nil {
		return nil
	}

	var db *leveldb.DB
	var err error
	if e.path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		if err := filesys.LocalFS.MkDirs(filepath.Dir(e.path)); err != nil {
			return errors.Wrapf(err, "creating directory for %s", e.path)
		}
		db, err = leveldb.OpenFile(e.path, nil)
	}
	if err != nil {
		return errors.Wrapf(err, "opening leveldb %s", e.path)
	}

	// sequences only need to grow across restarts
	e.seq.Store(uint64(time.Now().UnixNano()))
	e.db = db
	logrus.WithField("path", e.path).Debug("leveldb engine opened")
	return nil
}

func (e *Engine) Close(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return err
}

func (e *Engine) handle() (*leveldb.DB, func(), error) {
	e.mu.RLock()
	if e.db == nil {
		e.mu.RUnlock()
		return nil, nil, errNotOpen
	}
	return e.db, e.mu.RUnlock, nil
}

func tablePrefix(space byte, id identifier.Table) []byte {
	ck := id.CacheKey()
	p := make([]byte, 0, 1+binary.MaxVarintLen64+len(ck))
	p = append(p, space)
	p = binary.AppendUvarint(p, uint64(len(ck)))
	return append(p, ck...)
}

func rowKey(id identifier.Table, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(tablePrefix(spaceRow, id), seq)
}

func pkKey(id identifier.Table, key string) []byte {
	return append(tablePrefix(spaceKey, id), key...)
}

func wrap(err error) error {
	return catalogerr.WrapEngineError(Name, err)
}

func (e *Engine) CreateTable(_ context.Context, id identifier.Table, _ *message.Table) error {
	db, done, err := e.handle()
	if err != nil {
		return err
	}
	defer done()
	e.wmu.Lock()
	defer e.wmu.Unlock()

	marker := tablePrefix(spaceTable, id)
	if ok, err := db.Has(marker, nil); err != nil {
		return wrap(err)
	} else if ok {
		return catalogerr.ErrTableExists.New(id.String())
	}
	if err := db.Put(marker, nil, nil); err != nil {
		return wrap(err)
	}
	return nil
}

func (e *Engine) DropTable(_ context.Context, id identifier.Table) error {
	db, done, err := e.handle()
	if err != nil {
		return err
	}
	defer done()
	e.wmu.Lock()
	defer e.wmu.Unlock()

	marker := tablePrefix(spaceTable, id)
	if ok, err := db.Has(marker, nil); err != nil {
		return wrap(err)
	} else if !ok {
		return catalogerr.ErrTableNotFound.New(id.String())
	}

	batch := new(leveldb.Batch)
	batch.Delete(marker)
	for _, space := range []byte{spaceRow, spaceKey} {
		if err := eachKey(db, tablePrefix(space, id), func(k, _ []byte) { batch.Delete(k) }); err != nil {
			return wrap(err)
		}
	}
	if err := db.Write(batch, nil); err != nil {
		return wrap(err)
	}
	return nil
}

// eachKey calls |cb| with every key and value under |prefix|. The slices are only valid during the call.
func eachKey(db *leveldb.DB, prefix []byte, cb func(k, v []byte)) error {
	iter := db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		cb(iter.Key(), iter.Value())
	}
	return iter.Error()
}

func (e *Engine) RenameTable(_ context.Context, from, to identifier.Table) error {
	db, done, err := e.handle()
	if err != nil {
		return err
	}
	defer done()
	e.wmu.Lock()
	defer e.wmu.Unlock()

	fromMarker, toMarker := tablePrefix(spaceTable, from), tablePrefix(spaceTable, to)
	if ok, err := db.Has(fromMarker, nil); err != nil {
		return wrap(err)
	} else if !ok {
		return catalogerr.ErrTableNotFound.New(from.String())
	}
	if from.CacheKeyString() == to.CacheKeyString() {
		return nil
	}
	if ok, err := db.Has(toMarker, nil); err != nil {
		return wrap(err)
	} else if ok {
		return catalogerr.ErrTableExists.New(to.String())
	}

	batch := new(leveldb.Batch)
	batch.Delete(fromMarker)
	batch.Put(toMarker, nil)
	for _, space := range []byte{spaceRow, spaceKey} {
		oldPrefix, newPrefix := tablePrefix(space, from), tablePrefix(space, to)
		err := eachKey(db, oldPrefix, func(k, v []byte) {
			nk := append(append([]byte{}, newPrefix...), k[len(oldPrefix):]...)
			batch.Put(nk, append([]byte{}, v...))
			batch.Delete(append([]byte{}, k...))
		})
		if err != nil {
			return wrap(err)
		}
	}
	if err := db.Write(batch, nil); err != nil {
		return wrap(err)
	}
	return nil
}

func (e *Engine) OpenTable(_ context.Context, id identifier.Table, def *message.Table) (engine.Handle, error) {
	db, done, err := e.handle()
	if err != nil {
		return nil, err
	}
	defer done()

	if ok, err := db.Has(tablePrefix(spaceTable, id), nil); err != nil {
		return nil, wrap(err)
	} else if !ok {
		return nil, catalogerr.ErrTableNotFound.New(id.String())
	}

	var pk []int
	if def != nil {
		pk = def.PrimaryKeyOrdinals()
	}
	return &handle{e: e, id: id, pk: pk}, nil
}

type handle struct {
	e  *Engine
	id identifier.Table
	pk []int
}

func (h *handle) Insert(_ context.Context, r row.Row) error {
	db, done, err := h.e.handle()
	if err != nil {
		return err
	}
	defer done()
	h.e.wmu.Lock()
	defer h.e.wmu.Unlock()

	if ok, err := db.Has(tablePrefix(spaceTable, h.id), nil); err != nil {
		return wrap(err)
	} else if !ok {
		return catalogerr.ErrTableNotFound.New(h.id.String())
	}

	seq := h.e.seq.Add(1)
	batch := new(leveldb.Batch)
	if len(h.pk) > 0 {
		k := pkKey(h.id, row.Key(r, h.pk))
		if ok, err := db.Has(k, nil); err != nil {
			return wrap(err)
		} else if ok {
			return catalogerr.ErrDuplicateKey.New(row.FormatKey(r, h.pk), h.id.Name())
		}
		batch.Put(k, binary.BigEndian.AppendUint64(nil, seq))
	}
	batch.Put(rowKey(h.id, seq), row.Encode(r))
	if err := db.Write(batch, nil); err != nil {
		return wrap(err)
	}
	return nil
}

func (h *handle) Rows(context.Context) (row.Iter, error) {
	db, done, err := h.e.handle()
	if err != nil {
		return nil, err
	}
	defer done()

	// a snapshot keeps the rows consistent while they are decoded
	snap, err := db.GetSnapshot()
	if err != nil {
		return nil, wrap(err)
	}
	defer snap.Release()

	var rows []row.Row
	iter := snap.NewIterator(util.BytesPrefix(tablePrefix(spaceRow, h.id)), nil)
	defer iter.Release()
	for iter.Next() {
		r, err := row.Decode(iter.Value())
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	if err := iter.Error(); err != nil {
		return nil, wrap(err)
	}
	return row.NewSliceIter(rows), nil
}

func (h *handle) RowCount(context.Context) (uint64, error) {
	db, done, err := h.e.handle()
	if err != nil {
		return 0, err
	}
	defer done()

	var n uint64
	if err := eachKey(db, tablePrefix(spaceRow, h.id), func(_, _ []byte) { n++ }); err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

func (h *handle) Close(context.Context) error {
	return nil
}
