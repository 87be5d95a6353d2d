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

package ddl

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/replication"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/session"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/sqlfmt"
)

// CreateSchema creates the schema |id|. If it exists the result is ErrSchemaExists, or a warning when
// |ifNotExists| is set.
func (c *Coordinator) CreateSchema(ctx context.Context, sess *session.Session, id identifier.Schema, def *message.Schema, ifNotExists bool) error {
	return c.run(ctx, sess, "CreateSchema", schemaDDL, schemaAttrs(id), func(ctx context.Context) error {
		if err := id.Validate(); err != nil {
			return err
		}

		exists, err := c.reg.SchemaExists(ctx, id)
		if err != nil {
			return err
		}
		if exists {
			err := catalogerr.ErrSchemaExists.New(id.Name())
			if ifNotExists {
				warn(sess, err)
				return nil
			}
			return err
		}

		if def == nil {
			def = &message.Schema{}
		}
		def = def.Clone()
		def.Name = id.Name()
		now := time.Now().Unix()
		if def.UUID == "" {
			def.UUID = uuid.NewString()
		}
		def.Version = 1
		def.CreatedAt = now
		def.UpdatedAt = now

		if err := c.reg.CreateSchema(ctx, id, def); err != nil {
			return err
		}

		c.emit(ctx, replication.SchemaCreated(id, def))
		return nil
	})
}

// AlterSchema replaces the definition of |id|. The change is replicated as |statement|, or as a generated ALTER
// SCHEMA statement when |statement| is empty.
func (c *Coordinator) AlterSchema(ctx context.Context, sess *session.Session, id identifier.Schema, def *message.Schema, statement string) error {
	return c.run(ctx, sess, "AlterSchema", schemaDDL, schemaAttrs(id), func(ctx context.Context) error {
		current, _, ok, err := c.reg.SchemaDefinition(ctx, id)
		if err != nil {
			return err
		} else if !ok {
			return catalogerr.ErrSchemaNotFound.New(id.Name())
		}

		if def == nil {
			def = &message.Schema{}
		}
		def = def.Clone()
		def.Name = current.Name
		if def.Name == "" {
			def.Name = id.Name()
		}
		def.UUID = current.UUID
		def.CreatedAt = current.CreatedAt
		def.Version = current.Version + 1
		def.UpdatedAt = time.Now().Unix()

		if err := c.reg.AlterSchema(ctx, id, def); err != nil {
			return err
		}

		if statement == "" {
			statement = sqlfmt.AlterSchemaStmt(def)
		}
		c.emit(ctx, replication.RawStatement(id.Name(), statement))
		return nil
	})
}

// DropSchema drops every table of |id| and then the schema itself. Tables that cannot be dropped are reported
// together in one error; the schema is then kept unless the coordinator ignores table failures.
func (c *Coordinator) DropSchema(ctx context.Context, sess *session.Session, id identifier.Schema, ifExists bool) error {
	return c.run(ctx, sess, "DropSchema", schemaDDL, schemaAttrs(id), func(ctx context.Context) error {
		exists, err := c.reg.SchemaExists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			err := catalogerr.ErrSchemaNotFound.New(id.Name())
			if ifExists {
				warn(sess, err)
				return nil
			}
			return err
		}

		c.cache.InvalidateSchema(id)

		tables, err := c.reg.SchemaTables(ctx, id)
		if err != nil {
			return err
		}

		var failed []string
		var dropped []identifier.Table
		referenced := false
		for _, tid := range tables {
			ok, err := c.dropTable(ctx, sess, tid, true, false)
			if ok {
				dropped = append(dropped, tid)
			}
			if err == nil {
				continue
			}
			if catalogerr.Is(err, catalogerr.Interrupted) {
				c.emitDropped(ctx, dropped)
				return err
			}
			logrus.WithFields(logrus.Fields{"schema": id.Name(), "table": tid.Name()}).Warnf("unable to drop table: %v", err)
			if catalogerr.Is(err, catalogerr.RowReferenced) {
				referenced = true
			}
			failed = append(failed, tid.Name())
		}

		if len(failed) > 0 {
			var summary error
			if referenced {
				summary = catalogerr.ErrRowReferenced.New(strings.Join(failed, "','"))
			} else {
				summary = catalogerr.ErrTablesNotDropped.New("'"+strings.Join(failed, "','")+"'", id.Name())
			}
			if !c.ignoreTableFailures {
				c.emitDropped(ctx, dropped)
				return summary
			}
			warn(sess, summary)
		}

		if err := c.reg.DropSchema(ctx, id); err != nil {
			c.emitDropped(ctx, dropped)
			return err
		}

		sess.ClearCurrentSchemaIf(id)
		c.emit(ctx, replication.SchemaDropped(id))
		return nil
	})
}

// emitDropped replicates the drop of each table in |tables|. DropSchema uses it when the schema itself survives.
func (c *Coordinator) emitDropped(ctx context.Context, tables []identifier.Table) {
	for _, tid := range tables {
		c.emit(ctx, replication.RawStatement(tid.Schema().Name(), sqlfmt.DropTableStmt(tid.Schema().Name(), tid.Name(), true)))
	}
}

// ChangeSchema makes |id| the current schema of |sess|.
func (c *Coordinator) ChangeSchema(ctx context.Context, sess *session.Session, id identifier.Schema) error {
	return c.run(ctx, sess, "ChangeSchema", listing, schemaAttrs(id), func(ctx context.Context) error {
		exists, err := c.reg.SchemaExists(ctx, id)
		if err != nil {
			return err
		} else if !exists {
			return catalogerr.ErrSchemaNotFound.New(id.Name())
		}
		sess.SetCurrentSchema(id.Name())
		return nil
	})
}

// SchemaNames returns the names of all schemas, sorted.
func (c *Coordinator) SchemaNames(ctx context.Context, sess *session.Session) ([]string, error) {
	var names []string
	err := c.run(ctx, sess, "SchemaNames", listing, nil, func(ctx context.Context) error {
		set, err := c.reg.SchemaNames(ctx)
		if err != nil {
			return err
		}
		names = set.AsSortedSlice()
		return nil
	})
	return names, err
}

// TableNames returns the names of the tables of |id| visible to |sess|, sorted. The session's temporary tables are
// included.
func (c *Coordinator) TableNames(ctx context.Context, sess *session.Session, id identifier.Schema) ([]string, error) {
	var names []string
	err := c.run(ctx, sess, "TableNames", listing, schemaAttrs(id), func(ctx context.Context) error {
		exists, err := c.reg.SchemaExists(ctx, id)
		if err != nil {
			return err
		} else if !exists {
			return catalogerr.ErrSchemaNotFound.New(id.Name())
		}

		set, err := c.reg.TableNames(ctx, id, sess.TemporaryTableNames(id.Name()))
		if err != nil {
			return err
		}
		names = set.AsSortedSlice()
		return nil
	})
	return names, err
}
