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

// Package tablecache keeps open tables shared between sessions. Sessions acquire and release shares; DDL blocks new
// opens of a table with a placeholder and waits for existing shares to be released.
package tablecache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
)

// DefaultUnusedShares is the number of released shares kept open for reuse.
const DefaultUnusedShares = 256

// Share is an open table. It stays valid until released.
type Share struct {
	id     identifier.Table
	def    *message.Table
	handle engine.Handle
	entry  *entry
	refs   int
	stale  bool
}

func (s *Share) ID() identifier.Table {
	return s.id
}

// Definition returns the definition the table was opened with. Callers must not modify it.
func (s *Share) Definition() *message.Table {
	return s.def
}

func (s *Share) Handle() engine.Handle {
	return s.handle
}

// Token is an exclusive placeholder for a table name.
type Token struct {
	id       identifier.Table
	released bool
}

func (t *Token) ID() identifier.Table {
	return t.id
}

type entry struct {
	// share is the share handed to new sessions. Invalidated shares that are still held are no longer reachable
	// from here but are counted in held.
	share       *Share
	placeholder *Token
	// held counts the outstanding references to every share of the table, current or invalidated
	held int
	// opening is set while a session opens the table outside of the cache lock
	opening bool
	// closed and replaced whenever a share is released, opened, or the placeholder is removed
	changed chan struct{}
}

func (e *entry) broadcast() {
	close(e.changed)
	e.changed = make(chan struct{})
}

func (e *entry) idle() bool {
	return e.share == nil && e.placeholder == nil && e.held == 0 && !e.opening
}

// OpenFunc opens the table |id| for a share.
type OpenFunc func(ctx context.Context, id identifier.Table) (*message.Table, engine.Handle, error)

// Cache maps table cache keys to shares and placeholders.
type Cache struct {
	mu          sync.Mutex
	entries     map[string]*entry
	unused      *lru.Cache[string, *Share]
	maxUnused   int
	waitTimeout time.Duration
}

// New returns a Cache that keeps up to |maxUnused| released shares open. |waitTimeout| bounds every wait; zero
// means wait until cancelled.
func New(maxUnused int, waitTimeout time.Duration) *Cache {
	if maxUnused <= 0 {
		maxUnused = DefaultUnusedShares
	}
	unused, err := lru.New[string, *Share](maxUnused)
	if err != nil {
		panic(err)
	}
	return &Cache{
		entries:     make(map[string]*entry),
		unused:      unused,
		maxUnused:   maxUnused,
		waitTimeout: waitTimeout,
	}
}

func (c *Cache) entry(id identifier.Table) *entry {
	key := id.CacheKeyString()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{changed: make(chan struct{})}
		c.entries[key] = e
	}
	return e
}

func (c *Cache) dropIfEmpty(id identifier.Table, e *entry) {
	key := id.CacheKeyString()
	if e.idle() && c.entries[key] == e {
		delete(c.entries, key)
	}
}

// closeShare closes the handle of an unreferenced share and detaches it from its entry. c.mu must be held.
func (c *Cache) closeShare(e *entry, s *Share) {
	c.unused.Remove(s.id.CacheKeyString())
	if e.share == s {
		e.share = nil
	}
	closeHandle(s.id, s.handle)
}

func closeHandle(id identifier.Table, h engine.Handle) {
	if err := h.Close(context.Background()); err != nil {
		logrus.Warnf("error closing table %s: %v", id, err)
	}
}

// Acquire returns a share of |id|, opening the table with |open| if no usable share exists. It waits while a
// placeholder is held for |id| or another session is opening it. |open| runs without the cache lock held.
func (c *Cache) Acquire(ctx context.Context, id identifier.Table, kill <-chan struct{}, open OpenFunc) (*Share, error) {
	for {
		c.mu.Lock()
		e := c.entry(id)
		if e.placeholder != nil || e.opening {
			changed := e.changed
			c.mu.Unlock()
			if err := c.wait(ctx, changed, kill); err != nil {
				return nil, err
			}
			continue
		}

		if s := e.share; s != nil && !s.stale {
			if s.refs == 0 {
				c.unused.Remove(id.CacheKeyString())
			}
			s.refs++
			e.held++
			c.mu.Unlock()
			return s, nil
		}

		e.opening = true
		c.mu.Unlock()

		def, h, err := open(ctx, id)

		c.mu.Lock()
		e.opening = false
		e.broadcast()
		if err != nil {
			c.dropIfEmpty(id, e)
			c.mu.Unlock()
			return nil, err
		}
		if e.placeholder != nil {
			// DDL claimed the table while it was being opened
			c.mu.Unlock()
			closeHandle(id, h)
			continue
		}

		s := &Share{id: id, def: def, handle: h, entry: e, refs: 1}
		e.share = s
		e.held++
		c.mu.Unlock()
		return s, nil
	}
}

// ReleaseShare gives up a share returned by Acquire. The last release of a share keeps it open for reuse unless
// it was invalidated or a placeholder is held for its table.
func (c *Cache) ReleaseShare(s *Share) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.refs <= 0 {
		logrus.Errorf("table %s released more often than acquired", s.id)
		return
	}
	s.refs--
	e := s.entry
	e.held--

	switch {
	case s.refs > 0:
	case e.share != s:
		closeHandle(s.id, s.handle)
	case s.stale || e.placeholder != nil:
		c.closeShare(e, s)
	default:
		c.addUnused(s)
	}
	e.broadcast()
	c.dropIfEmpty(s.id, e)
}

func (c *Cache) addUnused(s *Share) {
	if c.unused.Len() >= c.maxUnused {
		if key, oldest, ok := c.unused.RemoveOldest(); ok {
			if oe, ok := c.entries[key]; ok {
				c.closeShare(oe, oldest)
				c.dropIfEmpty(oldest.id, oe)
			}
		}
	}
	c.unused.Add(s.id.CacheKeyString(), s)
}

// InsertPlaceholder blocks new shares of |id| until the returned token is released. Unused shares of |id| are
// closed. Callers serialize placeholders for a name through their own name locks; a second placeholder for the
// same table is an error.
func (c *Cache) InsertPlaceholder(id identifier.Table) (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(id)
	if e.placeholder != nil {
		return nil, catalogerr.ErrTableExists.New(id.String())
	}

	tok := &Token{id: id}
	e.placeholder = tok
	if e.share != nil && e.share.refs == 0 {
		c.closeShare(e, e.share)
	}
	return tok, nil
}

// ReleasePlaceholder removes the placeholder |tok| and wakes sessions waiting to open the table. Releasing a token
// twice is a no-op.
func (c *Cache) ReleasePlaceholder(tok *Token) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tok == nil || tok.released {
		return
	}
	tok.released = true

	e, ok := c.entries[tok.id.CacheKeyString()]
	if !ok || e.placeholder != tok {
		return
	}
	e.placeholder = nil
	e.broadcast()
	c.dropIfEmpty(tok.id, e)
}

// WaitUntilUnused blocks until no share of |id| is held, including shares that were invalidated while in use, and
// no session is opening it. It returns an ErrInterrupted error if |kill| is closed, |ctx| is done or the cache's
// wait timeout expires first.
func (c *Cache) WaitUntilUnused(ctx context.Context, id identifier.Table, kill <-chan struct{}) error {
	for {
		c.mu.Lock()
		e, ok := c.entries[id.CacheKeyString()]
		if !ok {
			c.mu.Unlock()
			return nil
		}
		if e.held == 0 && !e.opening {
			if e.share != nil {
				c.closeShare(e, e.share)
			}
			c.dropIfEmpty(id, e)
			c.mu.Unlock()
			return nil
		}
		changed := e.changed
		c.mu.Unlock()

		if err := c.wait(ctx, changed, kill); err != nil {
			return err
		}
	}
}

func (c *Cache) wait(ctx context.Context, changed <-chan struct{}, kill <-chan struct{}) error {
	var timeout <-chan time.Time
	if c.waitTimeout > 0 {
		timer := time.NewTimer(c.waitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-changed:
		return nil
	case <-kill:
		return catalogerr.ErrInterrupted.New()
	case <-ctx.Done():
		return catalogerr.ErrInterrupted.Wrap(ctx.Err())
	case <-timeout:
		return catalogerr.ErrInterrupted.New()
	}
}

// Invalidate drops the cached share of |id|. A share that is still held is closed on its last release instead of
// being kept.
func (c *Cache) Invalidate(id identifier.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id.CacheKeyString()]; ok {
		c.invalidate(e)
		c.dropIfEmpty(id, e)
	}
}

// InvalidateSchema invalidates every table of |schema|.
func (c *Cache) InvalidateSchema(schema identifier.Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if e.share == nil || !e.share.id.Schema().Equal(schema) {
			continue
		}
		c.invalidate(e)
		if e.idle() {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) invalidate(e *entry) {
	s := e.share
	if s == nil {
		return
	}
	if s.refs == 0 {
		c.closeShare(e, s)
	} else {
		s.stale = true
	}
}

// Stats describes the cache contents.
type Stats struct {
	Shares       int
	InUse        int
	Unused       int
	Placeholders int
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var st Stats
	for _, e := range c.entries {
		if e.share != nil {
			st.Shares++
		}
		if e.held > 0 {
			st.InUse++
		}
		if e.placeholder != nil {
			st.Placeholders++
		}
	}
	st.Unused = c.unused.Len()
	return st
}
