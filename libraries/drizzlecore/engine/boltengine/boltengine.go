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

// Package boltengine is a storage engine that keeps both the definitions and the rows of its tables in a single
// bbolt file. It owns its data dictionary, so the catalog writes no definition files for its tables.
package boltengine

import (
	"bytes"
	"context"
	"encoding/binary"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/row"
	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
)

const Name = "bolt"

var (
	tablesBucket = []byte("tables")
	rowsBucket   = []byte("rows")
	keysBucket   = []byte("keys")
	defKey       = []byte("def")
)

var errNotOpen = errors.New("bolt engine is not open")

func Descriptor() engine.Descriptor {
	return engine.Descriptor{
		Name:    Name,
		Flags:   engine.HasOwnDataDictionary | engine.TemporaryUnsupported,
		Enabled: true,
	}
}

// Engine stores tables in the bbolt file at its path. Every table is a bucket, named by the table's cache key,
// holding the encoded definition, the rows keyed by insertion sequence and the primary key values in use.
type Engine struct {
	path string

	mu sync.RWMutex
	db *bolt.DB
}

var _ engine.DictionaryEngine = (*Engine)(nil)
var _ engine.Lifecycle = (*Engine)(nil)

func New(path string) *Engine {
	return &Engine{path: path}
}

func (e *Engine) Open(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db != nil {
		return nil
	}

	if err := filesys.LocalFS.MkDirs(filepath.Dir(e.path)); err != nil {
		return errors.Wrapf(err, "creating directory for %s", e.path)
	}
	db, err := bolt.Open(e.path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return errors.Wrapf(err, "opening %s", e.path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tablesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return err
	}

	logrus.Debugf("opened bolt engine file %s", e.path)
	e.db = db
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

func (e *Engine) view(fn func(tables *bolt.Bucket) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.db == nil {
		return errNotOpen
	}
	return e.db.View(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(tablesBucket))
	})
}

func (e *Engine) update(fn func(tables *bolt.Bucket) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.db == nil {
		return errNotOpen
	}
	return e.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(tablesBucket))
	})
}

func readDef(tb *bolt.Bucket) (*message.Table, error) {
	return message.UnmarshalTable(tb.Get(defKey))
}

func (e *Engine) TableDefinition(_ context.Context, id identifier.Table) (*message.Table, bool, error) {
	var def *message.Table
	err := e.view(func(tables *bolt.Bucket) (err error) {
		tb := tables.Bucket(id.CacheKey())
		if tb == nil {
			return nil
		}
		def, err = readDef(tb)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return def, def != nil, nil
}

func (e *Engine) TableNames(_ context.Context, id identifier.Schema) ([]string, error) {
	var names []string
	prefix := id.CacheKey()
	err := e.view(func(tables *bolt.Bucket) error {
		c := tables.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			def, err := readDef(tables.Bucket(k))
			if err != nil {
				return err
			}
			names = append(names, def.Name)
		}
		return nil
	})
	return names, err
}

func (e *Engine) CreateTable(_ context.Context, id identifier.Table, def *message.Table) error {
	def = def.Clone()
	def.Name = id.Name()
	def.Schema = id.Schema().Name()

	return e.update(func(tables *bolt.Bucket) error {
		tb, err := tables.CreateBucket(id.CacheKey())
		if err == bolt.ErrBucketExists {
			return catalogerr.ErrTableExists.New(id.String())
		} else if err != nil {
			return err
		}
		if _, err := tb.CreateBucket(rowsBucket); err != nil {
			return err
		}
		if _, err := tb.CreateBucket(keysBucket); err != nil {
			return err
		}
		return tb.Put(defKey, message.MarshalTable(def))
	})
}

// DropTable drops |id| unless another table in the file has a foreign key referencing it.
func (e *Engine) DropTable(_ context.Context, id identifier.Table) error {
	return e.update(func(tables *bolt.Bucket) error {
		if tables.Bucket(id.CacheKey()) == nil {
			return catalogerr.ErrTableNotFound.New(id.String())
		}

		err := tables.ForEach(func(k, _ []byte) error {
			def, err := readDef(tables.Bucket(k))
			if err != nil {
				return err
			}
			if def.References(id.Schema().Name(), id.Name()) {
				return catalogerr.ErrRowReferenced.New(id.String())
			}
			return nil
		})
		if err != nil {
			return err
		}
		return tables.DeleteBucket(id.CacheKey())
	})
}

// RenameTable copies the bucket of |from| to |to| and deletes the original in one transaction.
func (e *Engine) RenameTable(_ context.Context, from, to identifier.Table) error {
	if from.Equal(to) {
		return nil
	}
	return e.update(func(tables *bolt.Bucket) error {
		src := tables.Bucket(from.CacheKey())
		if src == nil {
			return catalogerr.ErrTableNotFound.New(from.String())
		}
		dst, err := tables.CreateBucket(to.CacheKey())
		if err == bolt.ErrBucketExists {
			return catalogerr.ErrTableExists.New(to.String())
		} else if err != nil {
			return err
		}

		def, err := readDef(src)
		if err != nil {
			return err
		}
		def.Name = to.Name()
		def.Schema = to.Schema().Name()
		if err := dst.Put(defKey, message.MarshalTable(def)); err != nil {
			return err
		}

		for _, name := range [][]byte{rowsBucket, keysBucket} {
			if err := copyBucket(src.Bucket(name), dst, name); err != nil {
				return err
			}
		}
		if err := dst.Bucket(rowsBucket).SetSequence(src.Bucket(rowsBucket).Sequence()); err != nil {
			return err
		}

		return tables.DeleteBucket(from.CacheKey())
	})
}

func copyBucket(src, parent *bolt.Bucket, name []byte) error {
	dst, err := parent.CreateBucket(name)
	if err != nil {
		return err
	}
	return src.ForEach(func(k, v []byte) error {
		return dst.Put(k, v)
	})
}

func (e *Engine) OpenTable(_ context.Context, id identifier.Table, _ *message.Table) (engine.Handle, error) {
	var pk []int
	err := e.view(func(tables *bolt.Bucket) error {
		tb := tables.Bucket(id.CacheKey())
		if tb == nil {
			return catalogerr.ErrTableNotFound.New(id.String())
		}
		def, err := readDef(tb)
		if err != nil {
			return err
		}
		pk = def.PrimaryKeyOrdinals()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &handle{e: e, id: id, pk: pk}, nil
}

type handle struct {
	e  *Engine
	id identifier.Table
	pk []int
}

func (h *handle) table(tables *bolt.Bucket) (*bolt.Bucket, error) {
	tb := tables.Bucket(h.id.CacheKey())
	if tb == nil {
		return nil, catalogerr.ErrTableNotFound.New(h.id.String())
	}
	return tb, nil
}

func (h *handle) Insert(_ context.Context, r row.Row) error {
	return h.e.update(func(tables *bolt.Bucket) error {
		tb, err := h.table(tables)
		if err != nil {
			return err
		}

		rows := tb.Bucket(rowsBucket)
		seq, err := rows.NextSequence()
		if err != nil {
			return err
		}
		seqKey := make([]byte, 8)
		binary.BigEndian.PutUint64(seqKey, seq)

		if len(h.pk) > 0 {
			keys := tb.Bucket(keysBucket)
			k := []byte(row.Key(r, h.pk))
			if keys.Get(k) != nil {
				return catalogerr.ErrDuplicateKey.New(row.FormatKey(r, h.pk), h.id.Name())
			}
			if err := keys.Put(k, seqKey); err != nil {
				return err
			}
		}
		return rows.Put(seqKey, row.Encode(r))
	})
}

func (h *handle) Rows(context.Context) (row.Iter, error) {
	var rows []row.Row
	err := h.e.view(func(tables *bolt.Bucket) error {
		tb, err := h.table(tables)
		if err != nil {
			return err
		}
		return tb.Bucket(rowsBucket).ForEach(func(_, v []byte) error {
			r, err := row.Decode(v)
			if err != nil {
				return err
			}
			rows = append(rows, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return row.NewSliceIter(rows), nil
}

func (h *handle) RowCount(context.Context) (uint64, error) {
	var n uint64
	err := h.e.view(func(tables *bolt.Bucket) error {
		tb, err := h.table(tables)
		if err != nil {
			return err
		}
		return tb.Bucket(rowsBucket).ForEach(func(_, _ []byte) error {
			n++
			return nil
		})
	})
	return n, err
}

func (h *handle) Close(context.Context) error {
	return nil
}
