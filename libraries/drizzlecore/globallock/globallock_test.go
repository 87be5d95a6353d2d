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

package globallock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
)

func TestDDLWaitsForHolder(t *testing.T) {
	ctx := context.Background()
	l := New()
	require.NoError(t, l.Acquire(ctx, nil))
	assert.True(t, l.Held())

	entered := make(chan func())
	go func() {
		exit, err := l.EnterDDL(ctx, nil)
		if err != nil {
			t.Error(err)
		}
		entered <- exit
	}()

	select {
	case <-entered:
		t.Fatal("DDL started while the global read lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	l.Release()
	select {
	case exit := <-entered:
		exit()
		exit()
	case <-time.After(5 * time.Second):
		t.Fatal("DDL did not start after the lock was released")
	}
	assert.False(t, l.Held())
}

func TestRequesterBlocksNewDDL(t *testing.T) {
	ctx := context.Background()
	l := New()

	exit, err := l.EnterDDL(ctx, nil)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		if err := l.Acquire(ctx, nil); err != nil {
			t.Error(err)
		}
		close(acquired)
	}()
	require.Eventually(t, l.Held, 5*time.Second, time.Millisecond)

	// a DDL arriving after the request must not overtake it
	cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.EnterDDL(cctx, nil)
	assert.Equal(t, catalogerr.Interrupted, catalogerr.Classify(err))

	exit()
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("lock not granted after DDL finished")
	}
	l.Release()
}

func TestKillInterruptsWait(t *testing.T) {
	ctx := context.Background()
	l := New()
	require.NoError(t, l.Acquire(ctx, nil))
	defer l.Release()

	kill := make(chan struct{})
	close(kill)
	_, err := l.EnterDDL(ctx, kill)
	assert.True(t, catalogerr.ErrInterrupted.Is(err))
}

func TestCancelledRequestUnblocksDDL(t *testing.T) {
	ctx := context.Background()
	l := New()
	exit, err := l.EnterDDL(ctx, nil)
	require.NoError(t, err)

	kill := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- l.Acquire(ctx, kill)
	}()
	require.Eventually(t, l.Held, 5*time.Second, time.Millisecond)
	close(kill)
	assert.Error(t, <-done)
	assert.False(t, l.Held())

	exit2, err := l.EnterDDL(ctx, nil)
	require.NoError(t, err)
	exit2()
	exit()
}
