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

package keymutex

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

// A Keymutex allows a caller to gain exclusive access to a critical
// section associated with the provided |key|. No callers will enter
// the critical section concurrently, and a caller which arrives while
// the critical section is occupied will block until it is available.
//
// Lock respects Context cancelation.
type Keymutex interface {
	Lock(ctx context.Context, key string) error
	Unlock(key string)
}

// NewMapped returns a Keymutex which stores mutexes in a map. Separate
// keys make concurrent progress; state for a key is dropped once
// nobody holds or waits for it.
func NewMapped() Keymutex {
	return &mapKeymutex{
		states: make(map[string]*mapKeymutexState),
	}
}

type mapKeymutex struct {
	mu     sync.Mutex
	states map[string]*mapKeymutexState
}

type mapKeymutexState struct {
	sema    *semaphore.Weighted
	waitCnt int
}

func newMapKeymutexState() *mapKeymutexState {
	return &mapKeymutexState{
		sema: semaphore.NewWeighted(1),
	}
}

func (m *mapKeymutex) Lock(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[key]
	if !ok {
		state = newMapKeymutexState()
		m.states[key] = state
	}
	if state.sema.TryAcquire(1) {
		return nil
	}
	state.waitCnt += 1
	m.mu.Unlock()
	err := state.sema.Acquire(ctx, 1)
	m.mu.Lock()
	state.waitCnt -= 1
	if err != nil && state.waitCnt == 0 && state.sema.TryAcquire(1) {
		// nobody holds the key anymore; drop the state we created
		state.sema.Release(1)
		delete(m.states, key)
	}
	return err
}

func (m *mapKeymutex) Unlock(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.states[key]
	state.sema.Release(1)
	if state.waitCnt == 0 {
		delete(m.states, key)
	}
}

// LockAll acquires every key in sorted order so that two callers locking
// overlapping key sets cannot deadlock. On error nothing is held. The
// returned func releases all keys.
func LockAll(ctx context.Context, km Keymutex, keys ...string) (func(), error) {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for i, k := range sorted {
		if err := km.Lock(ctx, k); err != nil {
			for j := i - 1; j >= 0; j-- {
				km.Unlock(sorted[j])
			}
			return nil, err
		}
	}

	return func() {
		for j := len(sorted) - 1; j >= 0; j-- {
			km.Unlock(sorted[j])
		}
	}, nil
}
