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

package replication

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
)

func testEvents() []Event {
	layout := identifier.NewLayout("/data", "")
	return []Event{
		SchemaCreated(layout.Schema("App"), &message.Schema{Name: "App", Collation: "utf8mb4_bin"}),
		RawStatement("App", "CREATE TABLE `t1` (`id` INT)"),
		SchemaDropped(layout.Schema("App")),
	}
}

func TestEventEncoding(t *testing.T) {
	for _, ev := range testEvents() {
		got, err := Unmarshal(Marshal(ev))
		require.NoError(t, err)
		assert.Equal(t, ev.ID, got.ID)
		assert.Equal(t, ev.Type, got.Type)
		assert.True(t, ev.Timestamp.Equal(got.Timestamp))
		assert.Equal(t, ev.Schema, got.Schema)
		assert.Equal(t, ev.Definition, got.Definition)
		assert.Equal(t, ev.Statement, got.Statement)
	}

	a, b := testEvents()[0], testEvents()[0]
	assert.NotEqual(t, a.ID, b.ID)
}

func TestMemorySink(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySink()
	for _, ev := range testEvents() {
		require.NoError(t, s.Emit(ctx, ev))
	}
	evs := s.Events()
	require.Len(t, evs, 3)
	assert.Equal(t, SchemaCreatedEvent, evs[0].Type)
	assert.Equal(t, RawStatementEvent, evs[1].Type)
	assert.Equal(t, SchemaDroppedEvent, evs[2].Type)

	s.Reset()
	assert.Empty(t, s.Events())
}

func TestLogManager(t *testing.T) {
	tests := map[string]func(t *testing.T) (filesys.Filesys, string){
		"inmem": func(*testing.T) (filesys.Filesys, string) { return filesys.EmptyInMemFS("/"), "/data/replog" },
		"local": func(t *testing.T) (filesys.Filesys, string) {
			return filesys.LocalFS, filepath.Join(t.TempDir(), "replog")
		},
	}

	for name, setup := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			fs, dir := setup(t)

			lm, err := NewLogManager(fs, dir, 0)
			require.NoError(t, err)
			assert.Equal(t, "replog.000001", lm.CurrentLogFile())

			for _, ev := range testEvents() {
				require.NoError(t, lm.Emit(ctx, ev))
			}
			require.NoError(t, lm.RotateLogFile())
			assert.Equal(t, "replog.000002", lm.CurrentLogFile())
			require.NoError(t, lm.Emit(ctx, RawStatement("", "DROP SCHEMA `x`")))

			lm, err = NewLogManager(fs, dir, 0)
			require.NoError(t, err)
			assert.Equal(t, "replog.000003", lm.CurrentLogFile())

			files, err := LogFiles(fs, dir)
			require.NoError(t, err)
			assert.Equal(t, []string{"replog.000001", "replog.000002", "replog.000003"}, files)

			evs, err := ReadEvents(fs, dir)
			require.NoError(t, err)
			require.Len(t, evs, 4)
			assert.Equal(t, "utf8mb4_bin", evs[0].Definition.Collation)
			assert.Equal(t, "DROP SCHEMA `x`", evs[3].Statement)
		})
	}
}

func TestRotationBySize(t *testing.T) {
	ctx := context.Background()
	fs := filesys.EmptyInMemFS("/")
	lm, err := NewLogManager(fs, "/replog", 64)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, lm.Emit(ctx, RawStatement("app", "CREATE TABLE `a_rather_long_table_name` (`id` INT)")))
	}
	files, err := LogFiles(fs, "/replog")
	require.NoError(t, err)
	assert.Len(t, files, 6)

	evs, err := ReadEvents(fs, "/replog")
	require.NoError(t, err)
	assert.Len(t, evs, 5)
}

func TestCorruptLog(t *testing.T) {
	ctx := context.Background()
	fs := filesys.EmptyInMemFS("/")
	lm, err := NewLogManager(fs, "/replog", 0)
	require.NoError(t, err)
	require.NoError(t, lm.Emit(ctx, RawStatement("app", "DROP TABLE `t1`")))

	path := filepath.Join("/replog", lm.CurrentLogFile())
	data, err := fs.ReadFile(path)
	require.NoError(t, err)

	flipped := append([]byte{}, data...)
	flipped[len(flipped)-1] ^= 0xff
	require.NoError(t, fs.WriteFile(path, flipped, 0o644))
	_, err = ReadLogFile(fs, "/replog", lm.CurrentLogFile())
	assert.ErrorIs(t, err, ErrCorruptLog)

	require.NoError(t, fs.WriteFile(path, data[:len(data)-3], 0o644))
	_, err = ReadLogFile(fs, "/replog", lm.CurrentLogFile())
	assert.ErrorIs(t, err, ErrCorruptLog)

	require.NoError(t, fs.WriteFile(path, []byte("nope"), 0o644))
	_, err = ReadLogFile(fs, "/replog", lm.CurrentLogFile())
	assert.ErrorIs(t, err, ErrCorruptLog)
}
