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

// Package catalog assembles a running catalog from a configuration: the engine registry with the built in
// engines, the definition store, the table cache, the global read lock, the replication sink and the DDL
// coordinator.
package catalog

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/ddl"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/defstore"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine/boltengine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine/filestore"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine/leveldbengine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine/memengine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine/schemaengine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/globallock"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/replication"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/servercfg"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/session"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/tablecache"
	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
)

// ErrDataDirLocked is returned by Open when another catalog holds the data directory.
var ErrDataDirLocked = errors.New("data directory is locked by another catalog")

type extraEngine struct {
	desc engine.Descriptor
	e    engine.Engine
}

type options struct {
	fs         filesys.Filesys
	lock       filesys.FilesysLock
	sink       replication.Sink
	barrier    globallock.Barrier
	metrics    prometheus.Registerer
	engines    []extraEngine
	setLogging bool
}

// Option customizes Open.
type Option func(*options)

// WithFilesys runs the catalog on |fs| instead of the local file system. The bolt engine needs a real file and is
// only registered on the local file system.
func WithFilesys(fs filesys.Filesys) Option {
	return func(o *options) { o.fs = fs }
}

// WithDataDirLock guards the data directory with |lck| instead of a lock created for the file system.
func WithDataDirLock(lck filesys.FilesysLock) Option {
	return func(o *options) { o.lock = lck }
}

// WithSink sends replication events to |sink| instead of the configured replication log.
func WithSink(sink replication.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// WithBarrier makes DDL wait on |b| instead of the catalog's own global read lock.
func WithBarrier(b globallock.Barrier) Option {
	return func(o *options) { o.barrier = b }
}

// WithMetrics registers the catalog's collectors with |reg|.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.metrics = reg }
}

// WithEngine registers an additional engine after the built in ones.
func WithEngine(desc engine.Descriptor, e engine.Engine) Option {
	return func(o *options) { o.engines = append(o.engines, extraEngine{desc: desc, e: e}) }
}

// WithoutLoggingSetup leaves the global logrus configuration alone.
func WithoutLoggingSetup() Option {
	return func(o *options) { o.setLogging = false }
}

// Catalog is an open data directory. DDL goes through the embedded Coordinator.
type Catalog struct {
	*ddl.Coordinator

	cfg        *servercfg.YAMLConfig
	fs         filesys.Filesys
	lock       filesys.FilesysLock
	store      *defstore.Store
	cache      *tablecache.Cache
	globalLock *globallock.Lock
}

// Open opens the data directory named by |cfg|. Only one Catalog may have a data directory open at a time.
func Open(ctx context.Context, cfg *servercfg.YAMLConfig, opts ...Option) (*Catalog, error) {
	if cfg == nil {
		cfg = &servercfg.YAMLConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{fs: filesys.LocalFS, setLogging: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.setLogging {
		ConfigureLogging(cfg)
	}

	dataDir := cfg.DataDir()
	if err := o.fs.MkDirs(dataDir); err != nil {
		return nil, catalogerr.ErrIO.Wrap(err, dataDir)
	}

	lck := o.lock
	if lck == nil {
		var err error
		lck, err = filesys.CreateFilesysLock(o.fs, dataDir)
		if err != nil {
			return nil, err
		}
	}
	locked, err := lck.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, errors.Wrap(ErrDataDirLocked, dataDir)
	}

	c, err := open(ctx, cfg, o, lck)
	if err != nil {
		if uerr := lck.Unlock(); uerr != nil {
			logrus.WithError(uerr).Warn("releasing data directory lock")
		}
		return nil, err
	}
	return c, nil
}

func open(ctx context.Context, cfg *servercfg.YAMLConfig, o options, lck filesys.FilesysLock) (*Catalog, error) {
	fs := o.fs
	layout := identifier.NewLayout(cfg.DataDir(), cfg.TmpDir())
	if err := resetTmpDir(fs, layout.TmpDir()); err != nil {
		return nil, err
	}

	reg := engine.NewRegistry(fs, layout)
	store := defstore.New(fs, reg)

	builtins := []extraEngine{
		{schemaengine.Descriptor(), schemaengine.New(fs, layout, store)},
		{memengine.Descriptor(), memengine.New()},
		{filestore.Descriptor(), filestore.New(fs)},
	}
	if fs == filesys.Filesys(filesys.LocalFS) {
		builtins = append(builtins,
			extraEngine{boltengine.Descriptor(), boltengine.New(cfg.BoltFile())},
			extraEngine{leveldbengine.Descriptor(), leveldbengine.New(cfg.LevelDBDir())})
	} else {
		// rows of an in-memory catalog stay in memory too
		builtins = append(builtins, extraEngine{leveldbengine.Descriptor(), leveldbengine.New("")})
	}
	for _, ee := range append(builtins, o.engines...) {
		if err := reg.Register(ctx, ee.desc, ee.e); err != nil {
			return nil, err
		}
	}
	for _, name := range cfg.DisabledEngines() {
		if !reg.SetEnabled(name, false) {
			logrus.Warnf("cannot disable unknown storage engine '%s'", name)
		}
	}
	if p, ok := reg.Lookup(cfg.DefaultEngine()); !ok || !p.Enabled {
		return nil, catalogerr.ErrUnknownEngine.New(cfg.DefaultEngine())
	}

	if err := reg.Open(ctx); err != nil {
		return nil, err
	}

	sink := o.sink
	if sink == nil {
		if cfg.ReplicationEnabled() {
			lm, err := replication.NewLogManager(fs, cfg.ReplicationLogDir(), cfg.MaxLogSize())
			if err != nil {
				_ = reg.Close(ctx)
				return nil, catalogerr.ErrIO.Wrap(err, cfg.ReplicationLogDir())
			}
			sink = lm
		} else {
			sink = replication.Discard{}
		}
	}

	gl := globallock.New()
	barrier := o.barrier
	if barrier == nil {
		barrier = gl
	}

	cache := tablecache.New(cfg.UnusedTables(), cfg.LockWaitTimeout())
	coord, err := ddl.New(ddl.Config{
		Registry:                      reg,
		Store:                         store,
		Layout:                        layout,
		Cache:                         cache,
		Barrier:                       barrier,
		Sink:                          sink,
		Metrics:                       o.metrics,
		MetricsNamespace:              cfg.MetricsNamespace(),
		DropSchemaIgnoreTableFailures: cfg.DropSchemaIgnoreTableFailures(),
	})
	if err != nil {
		_ = reg.Close(ctx)
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"data_dir":       cfg.DataDir(),
		"default_engine": cfg.DefaultEngine(),
		"engines":        len(reg.Plugins()),
	}).Info("catalog opened")

	return &Catalog{
		Coordinator: coord,
		cfg:         cfg,
		fs:          fs,
		lock:        lck,
		store:       store,
		cache:       cache,
		globalLock:  gl,
	}, nil
}

// resetTmpDir creates |dir| and removes temporary tables left behind by a previous process.
func resetTmpDir(fs filesys.Filesys, dir string) error {
	if err := fs.MkDirs(dir); err != nil {
		return catalogerr.ErrIO.Wrap(err, dir)
	}

	var stale []string
	err := fs.Iter(dir, false, func(path string, _ int64, _ bool) bool {
		if strings.HasPrefix(filepath.Base(path), identifier.TmpFilePrefix) {
			stale = append(stale, path)
		}
		return false
	})
	if err != nil {
		return catalogerr.ErrIO.Wrap(err, dir)
	}
	for _, path := range stale {
		if err := fs.Delete(path, true); err != nil {
			return catalogerr.ErrIO.Wrap(err, path)
		}
		logrus.Debugf("removed stale temporary file %s", path)
	}
	return nil
}

// ConfigureLogging applies the log level and format of |cfg| to the standard logrus logger.
func ConfigureLogging(cfg *servercfg.YAMLConfig) {
	level, err := logrus.ParseLevel(string(cfg.LogLevel()))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.LogFormat() == servercfg.LogFormat_JSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func (c *Catalog) Config() *servercfg.YAMLConfig {
	return c.cfg
}

func (c *Catalog) FS() filesys.Filesys {
	return c.fs
}

// GlobalLock is the catalog's global read lock. DDL waits on it unless Open was given another barrier.
func (c *Catalog) GlobalLock() *globallock.Lock {
	return c.globalLock
}

func (c *Catalog) CacheStats() tablecache.Stats {
	return c.cache.Stats()
}

// NewSession starts a session that uses the configured default engine.
func (c *Catalog) NewSession() *session.Session {
	return session.New(session.NextID(), c.cfg.DefaultEngine())
}

// Schema returns the identifier of the schema |name|.
func (c *Catalog) Schema(name string) identifier.Schema {
	return c.Layout().Schema(name)
}

// Table resolves |schema|.|name| for |sess|. A temporary table of the session hides a standard table of the same
// name.
func (c *Catalog) Table(sess *session.Session, schema, name string) identifier.Table {
	if tt, ok := sess.TemporaryTable(schema, name); ok {
		return tt.ID
	}
	return c.Layout().Table(schema, name, identifier.Standard)
}

// OpenTable opens the table |id| for |sess| and returns its definition, a handle to its rows and a function that
// hands the table back. Standard tables are shared through the table cache. Temporary tables belong to the session
// and are opened directly.
func (c *Catalog) OpenTable(ctx context.Context, sess *session.Session, id identifier.Table) (*message.Table, engine.Handle, func(), error) {
	if err := id.Validate(); err != nil {
		return nil, nil, nil, err
	}

	if id.Kind() == identifier.Temporary {
		tt, ok := sess.TemporaryTable(id.Schema().Name(), id.Name())
		if !ok {
			return nil, nil, nil, catalogerr.ErrTableNotFound.New(id.String())
		}
		h, err := c.Registry().OpenTable(ctx, tt.Engine, tt.ID, tt.Definition)
		if err != nil {
			return nil, nil, nil, err
		}
		release := func() {
			if err := h.Close(context.Background()); err != nil {
				logrus.WithError(err).Warnf("closing temporary table %s", id)
			}
		}
		return tt.Definition, h, release, nil
	}

	share, err := c.cache.Acquire(ctx, id, sess.Done(), c.openStandard)
	if err != nil {
		return nil, nil, nil, err
	}
	return share.Definition(), share.Handle(), func() { c.cache.ReleaseShare(share) }, nil
}

func (c *Catalog) openStandard(ctx context.Context, id identifier.Table) (*message.Table, engine.Handle, error) {
	def, p, err := c.store.ReadTable(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, catalogerr.ErrUnknownEngine.New(def.Engine)
	}
	h, err := c.Registry().OpenTable(ctx, p, id, def)
	if err != nil {
		return nil, nil, err
	}
	return def, h, nil
}

// Close closes every engine and releases the data directory.
func (c *Catalog) Close(ctx context.Context) error {
	err := c.Registry().Close(ctx)
	if uerr := c.lock.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	logrus.WithField("data_dir", c.cfg.DataDir()).Info("catalog closed")
	return err
}
