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

package catalog_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalog"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/dtestutils"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine/boltengine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine/filestore"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine/leveldbengine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine/memengine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/replication"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/row"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/servercfg"
	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
)

func localConfig(t *testing.T, dir string, extra string) *servercfg.YAMLConfig {
	cfg, err := servercfg.NewYamlConfig([]byte(fmt.Sprintf("data_dir: %s\nlog_level: debug\n%s", dir, extra)))
	require.NoError(t, err)
	return cfg
}

func insert(t *testing.T, c *catalog.Catalog, id identifier.Table, rows ...row.Row) {
	ctx := context.Background()
	sess := c.NewSession()
	_, h, release, err := c.OpenTable(ctx, sess, id)
	require.NoError(t, err)
	defer release()
	for _, r := range rows {
		require.NoError(t, h.Insert(ctx, r))
	}
}

func count(t *testing.T, c *catalog.Catalog, id identifier.Table) uint64 {
	ctx := context.Background()
	_, h, release, err := c.OpenTable(ctx, c.NewSession(), id)
	require.NoError(t, err)
	defer release()
	n, err := h.RowCount(ctx)
	require.NoError(t, err)
	return n
}

func TestCatalogPersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := localConfig(t, dir, "")

	c, err := catalog.Open(ctx, cfg)
	require.NoError(t, err)

	sess := c.NewSession()
	require.NoError(t, c.CreateSchema(ctx, sess, c.Schema("app"), nil, false))
	for _, engineName := range []string{memengine.Name, filestore.Name, boltengine.Name, leveldbengine.Name} {
		id := c.Table(sess, "app", "t_"+engineName)
		require.NoError(t, c.CreateTable(ctx, sess, id, dtestutils.SimpleTable(engineName), false, ""))
		insert(t, c, id, row.Row{[]byte("1"), []byte("a")}, row.Row{[]byte("2"), []byte("b")})
	}

	// bolt keeps its own dictionary
	exists, _ := filesys.LocalFS.Exists(c.Table(sess, "app", "t_bolt").DefinitionPath())
	assert.False(t, exists)
	exists, _ = filesys.LocalFS.Exists(cfg.BoltFile())
	assert.True(t, exists)

	require.NoError(t, c.Close(ctx))

	c, err = catalog.Open(ctx, cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Close(ctx)) }()

	sess = c.NewSession()
	names, err := c.TableNames(ctx, sess, c.Schema("app"))
	require.NoError(t, err)
	assert.Equal(t, []string{"t_bolt", "t_filestore", "t_leveldb", "t_memory"}, names)

	assert.Equal(t, uint64(2), count(t, c, c.Table(sess, "app", "t_filestore")))
	assert.Equal(t, uint64(2), count(t, c, c.Table(sess, "app", "t_bolt")))
	assert.Equal(t, uint64(2), count(t, c, c.Table(sess, "app", "t_leveldb")))

	// memory tables lose their rows but keep their definition
	_, _, _, err = c.OpenTable(ctx, sess, c.Table(sess, "app", "t_memory"))
	assert.True(t, catalogerr.IsNotFound(err))
	require.NoError(t, c.DropTable(ctx, sess, c.Table(sess, "app", "t_memory"), true, false))

	require.NoError(t, c.DropSchema(ctx, sess, c.Schema("app"), false))

	events, err := replication.ReadEvents(filesys.LocalFS, cfg.ReplicationLogDir())
	require.NoError(t, err)
	var types []replication.EventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []replication.EventType{
		replication.SchemaCreatedEvent,
		replication.RawStatementEvent,
		replication.RawStatementEvent,
		replication.RawStatementEvent,
		replication.RawStatementEvent,
		replication.RawStatementEvent,
		replication.SchemaDroppedEvent,
	}, types)
}

func TestCatalogDataDirLock(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t, t.TempDir(), "")

	c, err := catalog.Open(ctx, cfg)
	require.NoError(t, err)

	_, err = catalog.Open(ctx, cfg)
	assert.ErrorIs(t, err, catalog.ErrDataDirLocked)

	require.NoError(t, c.Close(ctx))
	c, err = catalog.Open(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, c.Close(ctx))
}

func TestCatalogConfigErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := catalog.Open(ctx, localConfig(t, dir, "default_engine: nosuchengine"))
	assert.True(t, catalogerr.ErrUnknownEngine.Is(err))

	_, err = catalog.Open(ctx, localConfig(t, dir, "engines:\n  disabled: [memory]"))
	assert.True(t, catalogerr.ErrUnknownEngine.Is(err))

	// failed opens release the data directory
	c, err := catalog.Open(ctx, localConfig(t, dir, "engines:\n  disabled: [filestore]"))
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Close(ctx)) }()

	sess := c.NewSession()
	require.NoError(t, c.CreateSchema(ctx, sess, c.Schema("app"), nil, false))
	err = c.CreateTable(ctx, sess, c.Table(sess, "app", "t1"), dtestutils.SimpleTable(filestore.Name), false, "")
	assert.True(t, catalogerr.ErrUnknownEngine.Is(err))
}

func TestCatalogRemovesStaleTemporaryFiles(t *testing.T) {
	ctx := context.Background()
	fs := filesys.EmptyInMemFS("/")
	tmpDir := "/data/.tmp"
	stale := filepath.Join(tmpDir, identifier.TmpFilePrefix+"1_2-3.dat")
	keep := filepath.Join(tmpDir, "notes.txt")
	require.NoError(t, fs.MkDirs(tmpDir))
	require.NoError(t, fs.WriteFile(stale, []byte("x"), 0o600))
	require.NoError(t, fs.WriteFile(keep, []byte("x"), 0o600))

	c, err := catalog.Open(ctx, localConfig(t, "/data", "replication:\n  enabled: false"), catalog.WithFilesys(fs), catalog.WithoutLoggingSetup())
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Close(ctx)) }()

	exists, _ := fs.Exists(stale)
	assert.False(t, exists)
	exists, _ = fs.Exists(keep)
	assert.True(t, exists)

	// bolt needs a real file and is not offered on other file systems
	_, ok := c.Registry().Lookup(boltengine.Name)
	assert.False(t, ok)
	exists, _ = fs.Exists("/data/.replog")
	assert.False(t, exists)
}

func TestCatalogTemporaryTables(t *testing.T) {
	ctx := context.Background()
	fs := filesys.EmptyInMemFS("/")
	c, err := catalog.Open(ctx, localConfig(t, "/data", ""), catalog.WithFilesys(fs), catalog.WithoutLoggingSetup())
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Close(ctx)) }()

	sess := c.NewSession()
	require.NoError(t, c.CreateSchema(ctx, sess, c.Schema("app"), nil, false))
	require.NoError(t, c.CreateTable(ctx, sess, c.Table(sess, "app", "scratch"), dtestutils.SimpleTable(memengine.Name), false, ""))
	tmp := c.Layout().TemporaryTable("app", "scratch", sess.ID())
	require.NoError(t, c.CreateTable(ctx, sess, tmp, dtestutils.SimpleTable(filestore.Name), false, ""))

	id := c.Table(sess, "app", "scratch")
	require.Equal(t, identifier.Temporary, id.Kind())
	def, h, release, err := c.OpenTable(ctx, sess, id)
	require.NoError(t, err)
	assert.Equal(t, filestore.Name, def.Engine)
	require.NoError(t, h.Insert(ctx, row.Row{[]byte("1"), []byte("a")}))
	release()

	dataFile := tmp.Path() + filestore.DataExt
	exists, _ := fs.Exists(dataFile)
	assert.True(t, exists)

	// other sessions see the standard table
	assert.Equal(t, uint64(0), count(t, c, c.Table(c.NewSession(), "app", "scratch")))

	c.CloseSession(ctx, sess)
	exists, _ = fs.Exists(dataFile)
	assert.False(t, exists)
	assert.Equal(t, identifier.Standard, c.Table(sess, "app", "scratch").Kind())
}
