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

package dtestutils

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalog"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/globallock"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/replication"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/servercfg"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/session"
	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
)

// Engine names registered by NewHarness.
const (
	FakeEngineName     = "fake"
	FakeDictEngineName = "fakedict"
)

// HarnessDataDir is the data directory of every harness catalog.
const HarnessDataDir = "/data"

// Harness is a catalog over an in-memory file system with fault injection, a recording replication sink and two
// scriptable engines.
type Harness struct {
	Mem      *filesys.InMemFS
	FS       *FaultFS
	Sink     *replication.MemorySink
	Metrics  *prometheus.Registry
	Fake     *FakeEngine
	FakeDict FakeDictionaryEngine
	Catalog  *catalog.Catalog
}

type harnessOptions struct {
	yaml    []string
	barrier globallock.Barrier
}

type HarnessOption func(*harnessOptions)

// IgnoreTableFailures sets behavior.drop_schema_ignore_table_failures.
func IgnoreTableFailures() HarnessOption {
	return func(o *harnessOptions) {
		o.yaml = append(o.yaml, "behavior:\n  drop_schema_ignore_table_failures: true")
	}
}

// WithYAML appends top level configuration to the harness configuration.
func WithYAML(yaml string) HarnessOption {
	return func(o *harnessOptions) { o.yaml = append(o.yaml, yaml) }
}

// WithHarnessBarrier makes DDL wait on |b|.
func WithHarnessBarrier(b globallock.Barrier) HarnessOption {
	return func(o *harnessOptions) { o.barrier = b }
}

// NewHarness opens a catalog for |t| and closes it when the test ends.
func NewHarness(t *testing.T, opts ...HarnessOption) *Harness {
	var ho harnessOptions
	for _, opt := range opts {
		opt(&ho)
	}

	yaml := []string{fmt.Sprintf("data_dir: %s\nlog_level: debug", HarnessDataDir)}
	yaml = append(yaml, ho.yaml...)
	cfg, err := servercfg.NewYamlConfig([]byte(strings.Join(yaml, "\n")))
	require.NoError(t, err)

	h := &Harness{
		Mem:      filesys.EmptyInMemFS("/"),
		Sink:     replication.NewMemorySink(),
		Metrics:  prometheus.NewRegistry(),
		Fake:     NewFakeEngine(FakeEngineName),
		FakeDict: NewFakeDictionaryEngine(FakeDictEngineName),
	}
	h.FS = NewFaultFS(h.Mem)

	copts := []catalog.Option{
		catalog.WithFilesys(h.FS),
		catalog.WithDataDirLock(filesys.NewInMemFileLock()),
		catalog.WithSink(h.Sink),
		catalog.WithMetrics(h.Metrics),
		catalog.WithEngine(engine.Descriptor{Name: FakeEngineName, Enabled: true}, h.Fake),
		catalog.WithEngine(engine.Descriptor{Name: FakeDictEngineName, Flags: engine.HasOwnDataDictionary, Enabled: true}, h.FakeDict),
	}
	if ho.barrier != nil {
		copts = append(copts, catalog.WithBarrier(ho.barrier))
	}

	h.Catalog, err = catalog.Open(context.Background(), cfg, copts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, h.Catalog.Close(context.Background()))
	})
	return h
}

func (h *Harness) NewSession() *session.Session {
	return h.Catalog.NewSession()
}

func (h *Harness) Schema(name string) identifier.Schema {
	return h.Catalog.Schema(name)
}

func (h *Harness) Table(schema, name string) identifier.Table {
	return h.Catalog.Layout().Table(schema, name, identifier.Standard)
}

// MustCreateSchema creates |name| or fails the test.
func (h *Harness) MustCreateSchema(t *testing.T, sess *session.Session, name string) identifier.Schema {
	id := h.Schema(name)
	require.NoError(t, h.Catalog.CreateSchema(context.Background(), sess, id, nil, false))
	return id
}

// MustCreateTable creates |schema|.|name| in |engineName| with the columns of SimpleTable, or fails the test.
func (h *Harness) MustCreateTable(t *testing.T, sess *session.Session, schema, name, engineName string) identifier.Table {
	id := h.Table(schema, name)
	require.NoError(t, h.Catalog.CreateTable(context.Background(), sess, id, SimpleTable(engineName), false, ""))
	return id
}

// DefinitionExists returns whether the definition file of |id| is on disk.
func (h *Harness) DefinitionExists(id identifier.Table) bool {
	exists, _ := h.Mem.Exists(id.DefinitionPath())
	return exists
}

// SimpleTable is a two column table with an integer primary key.
func SimpleTable(engineName string) *message.Table {
	return &message.Table{
		Engine: engineName,
		Columns: []message.Column{
			{Name: "id", Type: message.TypeInt},
			{Name: "name", Type: message.TypeVarchar, Length: 64, Nullable: true},
		},
		Indexes: []message.Index{{Name: "PRIMARY", Primary: true, Unique: true, Columns: []string{"id"}}},
	}
}

// EventStrings renders the events recorded by the harness sink.
func (h *Harness) EventStrings() []string {
	var out []string
	for _, ev := range h.Sink.Events() {
		out = append(out, ev.String())
	}
	return out
}
