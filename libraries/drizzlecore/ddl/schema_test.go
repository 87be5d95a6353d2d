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

package ddl_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/dtestutils"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/replication"
)

func TestCreateSchema(t *testing.T) {
	ctx := context.Background()
	h := dtestutils.NewHarness(t)
	sess := h.NewSession()

	err := h.Catalog.CreateSchema(ctx, sess, h.Schema("app"), &message.Schema{Collation: "utf8_bin"}, false)
	require.NoError(t, err)

	err = h.Catalog.CreateSchema(ctx, sess, h.Schema("app"), nil, false)
	require.Error(t, err)
	assert.True(t, catalogerr.Is(err, catalogerr.AlreadyExists))

	def, _, ok, err := h.Catalog.Registry().SchemaDefinition(ctx, h.Schema("app"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "app", def.Name)
	assert.Equal(t, "utf8_bin", def.Collation)
	assert.Equal(t, uint64(1), def.Version)
	assert.NotEmpty(t, def.UUID)

	events := h.Sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, replication.SchemaCreatedEvent, events[0].Type)
	assert.Equal(t, "app", events[0].Schema)
	assert.Equal(t, def.UUID, events[0].Definition.UUID)
}

func TestCreateSchemaIfNotExists(t *testing.T) {
	ctx := context.Background()
	h := dtestutils.NewHarness(t)
	sess := h.NewSession()

	h.MustCreateSchema(t, sess, "app")
	require.NoError(t, h.Catalog.CreateSchema(ctx, sess, h.Schema("APP"), nil, true))

	warnings := sess.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, catalogerr.AlreadyExists, warnings[0].Code)
	assert.Len(t, h.Sink.Events(), 1)
}

func TestCreateSchemaInvalidName(t *testing.T) {
	ctx := context.Background()
	h := dtestutils.NewHarness(t)
	sess := h.NewSession()

	for _, name := range []string{"", "trailing ", "bad\xffname", strings.Repeat("x", identifier.MaxNameLen+1)} {
		err := h.Catalog.CreateSchema(ctx, sess, h.Schema(name), nil, false)
		assert.True(t, catalogerr.Is(err, catalogerr.NameInvalid), "%q: %v", name, err)
	}
	assert.Empty(t, h.Sink.Events())
}

func TestDropSchemaIgnoresCase(t *testing.T) {
	ctx := context.Background()
	h := dtestutils.NewHarness(t)
	sess := h.NewSession()

	h.MustCreateSchema(t, sess, "APP")
	require.NoError(t, h.Catalog.DropSchema(ctx, sess, h.Schema("app"), false))

	names, err := h.Catalog.SchemaNames(ctx, sess)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Equal(t, []string{"SchemaCreated APP", "SchemaDropped app"}, h.EventStrings())
}

func TestSchemaNamesFoldOnlyASCII(t *testing.T) {
	ctx := context.Background()
	h := dtestutils.NewHarness(t)
	sess := h.NewSession()

	// only ASCII letters fold, the same as on disk
	assert.Equal(t, h.Schema("ÉAPP").Key(), h.Schema("Éapp").Key())
	assert.Equal(t, h.Schema("ÉAPP").Path(), h.Schema("Éapp").Path())
	assert.NotEqual(t, h.Schema("Éapp").Key(), h.Schema("éapp").Key())

	h.MustCreateSchema(t, sess, "Éapp")
	err := h.Catalog.CreateSchema(ctx, sess, h.Schema("ÉAPP"), nil, false)
	assert.True(t, catalogerr.ErrSchemaExists.Is(err), "%v", err)

	// a different character is a different schema
	h.MustCreateSchema(t, sess, "éapp")
	names, err := h.Catalog.SchemaNames(ctx, sess)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Éapp", "éapp"}, names)

	require.NoError(t, h.Catalog.DropSchema(ctx, sess, h.Schema("ÉaPP"), false))
	names, err = h.Catalog.SchemaNames(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"éapp"}, names)

	err = h.Catalog.DropSchema(ctx, sess, h.Schema("Éapp"), false)
	assert.True(t, catalogerr.IsNotFound(err))
}

func TestDropSchemaWithReservedTableName(t *testing.T) {
	ctx := context.Background()
	h := dtestutils.NewHarness(t)
	sess := h.NewSession()

	h.MustCreateSchema(t, sess, "app")
	con := h.MustCreateTable(t, sess, "app", "con", dtestutils.FakeEngineName)
	assert.True(t, strings.HasSuffix(con.Path(), "con@@@"))

	tables, err := h.Catalog.TableNames(ctx, sess, h.Schema("app"))
	require.NoError(t, err)
	assert.Equal(t, []string{"con"}, tables)

	require.NoError(t, h.Catalog.DropSchema(ctx, sess, h.Schema("app"), false))
	assert.False(t, h.Fake.HasTable("app", "con"))
	assert.False(t, h.DefinitionExists(con))
	assert.Empty(t, sess.Warnings())
}

func TestDropSchemaIfExists(t *testing.T) {
	ctx := context.Background()
	h := dtestutils.NewHarness(t)
	sess := h.NewSession()

	boom := errors.New("no writes expected")
	defer h.FS.Reset()
	for _, op := range []string{dtestutils.FSWrite, dtestutils.FSDelete, dtestutils.FSMove, dtestutils.FSMkDirs} {
		h.FS.Fail(op, "", -1, boom)
	}

	require.NoError(t, h.Catalog.DropSchema(ctx, sess, h.Schema("missing"), true))
	warnings := sess.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, catalogerr.NotFound, warnings[0].Code)
	assert.Empty(t, h.Sink.Events())

	err := h.Catalog.DropSchema(ctx, sess, h.Schema("missing"), false)
	assert.True(t, catalogerr.IsNotFound(err))
}

func TestDropSchemaWithTables(t *testing.T) {
	ctx := context.Background()
	h := dtestutils.NewHarness(t)
	sess := h.NewSession()

	h.MustCreateSchema(t, sess, "app")
	t1 := h.MustCreateTable(t, sess, "app", "t1", dtestutils.FakeEngineName)
	h.MustCreateTable(t, sess, "app", "t2", dtestutils.FakeDictEngineName)
	sess.SetCurrentSchema("app")

	require.NoError(t, h.Catalog.DropSchema(ctx, sess, h.Schema("app"), false))

	assert.False(t, h.DefinitionExists(t1))
	assert.False(t, h.Fake.HasTable("app", "t1"))
	assert.False(t, h.FakeDict.HasTable("app", "t2"))
	assert.Equal(t, "", sess.CurrentSchema())
	exists, _ := h.Mem.Exists(h.Schema("app").Path())
	assert.False(t, exists)
}

func TestDropSchemaPartialFailure(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, opts ...dtestutils.HarnessOption) *dtestutils.Harness {
		h := dtestutils.NewHarness(t, opts...)
		sess := h.NewSession()
		h.MustCreateSchema(t, sess, "app")
		h.MustCreateTable(t, sess, "app", "t1", dtestutils.FakeEngineName)
		h.MustCreateTable(t, sess, "app", "t2", dtestutils.FakeEngineName)
		h.Fake.FailOn(dtestutils.OpDropTable, "app.t2", catalogerr.ErrRowReferenced.New("t2"))
		h.Sink.Reset()
		return h
	}

	t.Run("schema kept", func(t *testing.T) {
		h := setup(t)
		sess := h.NewSession()

		err := h.Catalog.DropSchema(ctx, sess, h.Schema("app"), false)
		require.Error(t, err)
		assert.True(t, catalogerr.Is(err, catalogerr.RowReferenced))
		assert.Contains(t, err.Error(), "t2")
		assert.NotContains(t, err.Error(), "t1")

		assert.False(t, h.DefinitionExists(h.Table("app", "t1")))
		assert.False(t, h.Fake.HasTable("app", "t1"))
		assert.True(t, h.DefinitionExists(h.Table("app", "t2")))
		assert.True(t, h.Fake.HasTable("app", "t2"))

		names, err := h.Catalog.SchemaNames(ctx, sess)
		require.NoError(t, err)
		assert.Contains(t, names, "app")
		tables, err := h.Catalog.TableNames(ctx, sess, h.Schema("app"))
		require.NoError(t, err)
		assert.Equal(t, []string{"t2"}, tables)

		// t1 is gone for good, so replicas must drop it too
		assert.Equal(t, []string{"RawStatement [app] DROP TABLE IF EXISTS `app`.`t1`;"}, h.EventStrings())
	})

	t.Run("schema dropped when ignoring table failures", func(t *testing.T) {
		h := setup(t, dtestutils.IgnoreTableFailures())
		sess := h.NewSession()

		require.NoError(t, h.Catalog.DropSchema(ctx, sess, h.Schema("app"), false))
		warnings := sess.Warnings()
		require.Len(t, warnings, 1)
		assert.Equal(t, catalogerr.RowReferenced, warnings[0].Code)
		assert.Contains(t, warnings[0].Message, "t2")

		names, err := h.Catalog.SchemaNames(ctx, sess)
		require.NoError(t, err)
		assert.NotContains(t, names, "app")
		assert.Equal(t, []string{"SchemaDropped app"}, h.EventStrings())
	})

	t.Run("other failures are summarized", func(t *testing.T) {
		h := setup(t)
		sess := h.NewSession()
		h.Fake.ClearFailures()
		h.Fake.FailOn(dtestutils.OpDropTable, "", catalogerr.NewEngineError(dtestutils.FakeEngineName, 12, "disk on fire"))

		err := h.Catalog.DropSchema(ctx, sess, h.Schema("app"), false)
		require.Error(t, err)
		assert.True(t, catalogerr.ErrTablesNotDropped.Is(err))
		assert.Contains(t, err.Error(), "'t1','t2'")

		// other engine failures still remove the definitions
		assert.False(t, h.DefinitionExists(h.Table("app", "t1")))
		assert.False(t, h.DefinitionExists(h.Table("app", "t2")))
		assert.Equal(t, []string{
			"RawStatement [app] DROP TABLE IF EXISTS `app`.`t1`;",
			"RawStatement [app] DROP TABLE IF EXISTS `app`.`t2`;",
		}, h.EventStrings())
	})
}

func TestAlterSchema(t *testing.T) {
	ctx := context.Background()
	h := dtestutils.NewHarness(t)
	sess := h.NewSession()

	h.MustCreateSchema(t, sess, "app")
	before, _, _, err := h.Catalog.Registry().SchemaDefinition(ctx, h.Schema("app"))
	require.NoError(t, err)

	require.NoError(t, h.Catalog.AlterSchema(ctx, sess, h.Schema("app"), &message.Schema{Collation: "latin1_bin"}, ""))

	after, _, _, err := h.Catalog.Registry().SchemaDefinition(ctx, h.Schema("app"))
	require.NoError(t, err)
	assert.Equal(t, "latin1_bin", after.Collation)
	assert.Equal(t, before.UUID, after.UUID)
	assert.Equal(t, before.Version+1, after.Version)

	assert.Equal(t, []string{
		"SchemaCreated app",
		"RawStatement [app] ALTER SCHEMA `app` COLLATE = latin1_bin;",
	}, h.EventStrings())

	err = h.Catalog.AlterSchema(ctx, sess, h.Schema("missing"), nil, "")
	assert.True(t, catalogerr.IsNotFound(err))
}

func TestChangeSchema(t *testing.T) {
	ctx := context.Background()
	h := dtestutils.NewHarness(t)
	sess := h.NewSession()

	err := h.Catalog.ChangeSchema(ctx, sess, h.Schema("app"))
	assert.True(t, catalogerr.IsNotFound(err))

	h.MustCreateSchema(t, sess, "app")
	require.NoError(t, h.Catalog.ChangeSchema(ctx, sess, h.Schema("app")))
	assert.Equal(t, "app", sess.CurrentSchema())

	other := h.NewSession()
	other.SetCurrentSchema("app")
	require.NoError(t, h.Catalog.DropSchema(ctx, sess, h.Schema("app"), false))
	assert.Equal(t, "", sess.CurrentSchema())
	assert.Equal(t, "app", other.CurrentSchema())
}

func TestSchemaNames(t *testing.T) {
	ctx := context.Background()
	h := dtestutils.NewHarness(t)
	sess := h.NewSession()

	for _, name := range []string{"b", "a", "c"} {
		h.MustCreateSchema(t, sess, name)
	}
	names, err := h.Catalog.SchemaNames(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	_, err = h.Catalog.TableNames(ctx, sess, h.Schema("missing"))
	assert.True(t, catalogerr.IsNotFound(err))
}
