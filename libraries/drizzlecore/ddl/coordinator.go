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

// Package ddl runs schema and table DDL against the engine registry and the definition store. Every mutating
// operation waits behind the global read lock, takes the catalog lock, locks the names it touches and keeps other
// sessions away from the affected tables before any engine is asked to change anything.
package ddl

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/defstore"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/globallock"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/replication"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/session"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/tablecache"
	"github.com/0xffea/drizzle-sub000/libraries/utils/keymutex"
)

var tracer = otel.Tracer("github.com/0xffea/drizzle-sub000/libraries/drizzlecore/ddl")

// Config holds the collaborators of a Coordinator. Registry, Store, Layout and Cache are required.
type Config struct {
	Registry *engine.Registry
	Store    *defstore.Store
	Layout   *identifier.Layout
	Cache    *tablecache.Cache

	// Barrier is the global read lock. Nil means DDL never waits for one.
	Barrier globallock.Barrier
	// Sink receives a replication event for every completed operation. Nil discards them.
	Sink replication.Sink

	// Metrics registers the coordinator's collectors when set.
	Metrics          prometheus.Registerer
	MetricsNamespace string

	// DropSchemaIgnoreTableFailures lets DROP SCHEMA remove the schema even when some of its tables could not be
	// dropped.
	DropSchemaIgnoreTableFailures bool
}

// Coordinator runs DDL. It is safe for concurrent use by many sessions.
type Coordinator struct {
	reg     *engine.Registry
	store   *defstore.Store
	layout  *identifier.Layout
	cache   *tablecache.Cache
	barrier globallock.Barrier
	sink    replication.Sink

	// catalogMu is held exclusively by schema DDL and shared by table DDL and listings.
	catalogMu sync.RWMutex
	nameLocks keymutex.Keymutex

	ignoreTableFailures bool
	metrics             *metrics
}

func New(cfg Config) (*Coordinator, error) {
	m, err := newMetrics(cfg.MetricsNamespace, cfg.Metrics)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		reg:                 cfg.Registry,
		store:               cfg.Store,
		layout:              cfg.Layout,
		cache:               cfg.Cache,
		barrier:             cfg.Barrier,
		sink:                cfg.Sink,
		nameLocks:           keymutex.NewMapped(),
		ignoreTableFailures: cfg.DropSchemaIgnoreTableFailures,
		metrics:             m,
	}
	if c.barrier == nil {
		c.barrier = globallock.None{}
	}
	if c.sink == nil {
		c.sink = replication.Discard{}
	}
	return c, nil
}

// Registry returns the engine registry the coordinator dispatches to.
func (c *Coordinator) Registry() *engine.Registry {
	return c.reg
}

// Layout returns the layout identifiers are derived from.
func (c *Coordinator) Layout() *identifier.Layout {
	return c.layout
}

type lockMode uint8

const (
	// listing operations skip the global read lock and share the catalog lock
	listing lockMode = iota
	// tableDDL waits for the global read lock and shares the catalog lock
	tableDDL
	// schemaDDL waits for the global read lock and holds the catalog lock exclusively
	schemaDDL
)

// run is the frame shared by every operation: a span, the global read lock and the catalog lock, then |fn|, then
// the outcome metric.
func (c *Coordinator) run(ctx context.Context, sess *session.Session, op string, mode lockMode, attrs []attribute.KeyValue, fn func(ctx context.Context) error) (err error) {
	ctx, span := tracer.Start(ctx, "ddl."+op, trace.WithAttributes(attrs...))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		c.metrics.observe(op, err)

		entry := logrus.WithFields(fieldsOf(op, attrs))
		if err != nil {
			entry.Debugf("failed after %v: %v", time.Since(start), err)
		} else {
			entry.Debugf("completed in %v", time.Since(start))
		}
	}()

	if mode != listing {
		waitStart := time.Now()
		exit, err := c.barrier.EnterDDL(ctx, sess.Done())
		c.metrics.waited(lockGlobal, waitStart)
		if err != nil {
			return err
		}
		defer exit()
	}

	waitStart := time.Now()
	if mode == schemaDDL {
		c.catalogMu.Lock()
		defer c.catalogMu.Unlock()
	} else {
		c.catalogMu.RLock()
		defer c.catalogMu.RUnlock()
	}
	c.metrics.waited(lockCatalog, waitStart)

	return fn(ctx)
}

func fieldsOf(op string, attrs []attribute.KeyValue) logrus.Fields {
	fields := logrus.Fields{"op": op}
	for _, kv := range attrs {
		fields[string(kv.Key)] = kv.Value.Emit()
	}
	return fields
}

func schemaAttrs(id identifier.Schema) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String("schema", id.Name())}
}

func tableAttrs(ids ...identifier.Table) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("schema", ids[0].Schema().Name()), attribute.String("table", ids[0].Name())}
	if len(ids) > 1 {
		attrs = append(attrs, attribute.String("to", ids[1].String()))
	}
	return attrs
}

// killContext returns a context that is also cancelled when |kill| closes.
func killContext(ctx context.Context, kill <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-kill:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// lockNames takes the name locks of |ids| in a deadlock free order.
func (c *Coordinator) lockNames(ctx context.Context, sess *session.Session, ids ...identifier.Table) (func(), error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.CacheKeyString()
	}

	lctx, cancel := killContext(ctx, sess.Done())
	defer cancel()

	start := time.Now()
	unlock, err := keymutex.LockAll(lctx, c.nameLocks, keys...)
	c.metrics.waited(lockName, start)
	if err != nil {
		return nil, catalogerr.ErrInterrupted.Wrap(err)
	}
	return unlock, nil
}

// exclusive blocks new opens of |ids| and waits until no session uses them. The returned func lets opens through
// again.
func (c *Coordinator) exclusive(ctx context.Context, sess *session.Session, ids ...identifier.Table) (func(), error) {
	var toks []*tablecache.Token
	release := func() {
		for i := len(toks) - 1; i >= 0; i-- {
			c.cache.ReleasePlaceholder(toks[i])
		}
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id.CacheKeyString()]; ok {
			continue
		}
		seen[id.CacheKeyString()] = struct{}{}

		tok, err := c.cache.InsertPlaceholder(id)
		if err != nil {
			release()
			return nil, err
		}
		toks = append(toks, tok)
	}

	for _, tok := range toks {
		start := time.Now()
		err := c.cache.WaitUntilUnused(ctx, tok.ID(), sess.Done())
		c.metrics.waited(lockTableUse, start)
		if err != nil {
			release()
			return nil, err
		}
	}
	return release, nil
}

// emit hands |ev| to the replication sink. Delivery failures are logged; the operation has already completed.
func (c *Coordinator) emit(ctx context.Context, ev replication.Event) {
	if err := c.sink.Emit(ctx, ev); err != nil {
		logrus.WithFields(logrus.Fields{"event": ev.Type.String(), "schema": ev.Schema}).Errorf("failed to emit replication event: %v", err)
	}
}

// warn reports |err| to the session as a warning.
func warn(sess *session.Session, err error) {
	sess.Warn(catalogerr.Classify(err), "%s", err.Error())
}

// detached returns a context for cleanup work that must run even when |ctx| was cancelled.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
