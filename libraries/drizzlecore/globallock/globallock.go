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

// Package globallock implements the server wide read lock taken by backups and flushes. DDL waits behind it.
package globallock

import (
	"context"
	"sync"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
)

// Barrier is what DDL operations see of the global read lock.
type Barrier interface {
	// EnterDDL blocks while the global read lock is held or requested, then registers a DDL operation in progress.
	// The returned func ends the registration.
	EnterDDL(ctx context.Context, kill <-chan struct{}) (exit func(), err error)
}

// Lock is a Barrier that sessions can also take as a global read lock. A session requesting the lock keeps new DDL
// from starting, then waits for DDL already in progress to finish.
type Lock struct {
	mu      sync.Mutex
	holders int
	pending int
	ddl     int
	changed chan struct{}
}

var _ Barrier = (*Lock)(nil)

func New() *Lock {
	return &Lock{changed: make(chan struct{})}
}

func (l *Lock) broadcast() {
	close(l.changed)
	l.changed = make(chan struct{})
}

// Acquire takes the global read lock. Any number of sessions may hold it at once.
func (l *Lock) Acquire(ctx context.Context, kill <-chan struct{}) error {
	l.mu.Lock()
	l.pending++
	for l.ddl > 0 {
		changed := l.changed
		l.mu.Unlock()

		if err := wait(ctx, changed, kill); err != nil {
			l.mu.Lock()
			l.pending--
			l.broadcast()
			l.mu.Unlock()
			return err
		}
		l.mu.Lock()
	}
	l.pending--
	l.holders++
	l.mu.Unlock()
	return nil
}

// Release gives up a global read lock taken with Acquire.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holders == 0 {
		return
	}
	l.holders--
	l.broadcast()
}

// Held returns whether any session holds or is requesting the global read lock.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holders+l.pending > 0
}

func (l *Lock) EnterDDL(ctx context.Context, kill <-chan struct{}) (func(), error) {
	l.mu.Lock()
	for l.holders+l.pending > 0 {
		changed := l.changed
		l.mu.Unlock()
		if err := wait(ctx, changed, kill); err != nil {
			return nil, err
		}
		l.mu.Lock()
	}
	l.ddl++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.ddl--
			l.broadcast()
		})
	}, nil
}

func wait(ctx context.Context, changed <-chan struct{}, kill <-chan struct{}) error {
	select {
	case <-changed:
		return nil
	case <-kill:
		return catalogerr.ErrInterrupted.New()
	case <-ctx.Done():
		return catalogerr.ErrInterrupted.Wrap(ctx.Err())
	}
}

// None is a Barrier that never blocks.
type None struct{}

func (None) EnterDDL(context.Context, <-chan struct{}) (func(), error) {
	return func() {}, nil
}
