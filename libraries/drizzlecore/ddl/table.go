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
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/replication"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/session"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/sqlfmt"
)

// rollbackRetries bounds the attempts to undo an engine rename after the definition could not follow it.
const rollbackRetries = 3

// resolveEngine returns the engine |def| asks for, defaulting to the session's default engine.
func (c *Coordinator) resolveEngine(sess *session.Session, def *message.Table) (*engine.Plugin, error) {
	name := def.Engine
	if name == "" {
		name = engine.DefaultEngineName
	}
	p, ok := c.reg.FindByName(sess, name)
	if !ok {
		if name == engine.DefaultEngineName {
			name = sess.DefaultEngine()
		}
		return nil, catalogerr.ErrUnknownEngine.New(name)
	}
	return p, nil
}

// checkCapabilities rejects a table |p| cannot hold.
func checkCapabilities(p *engine.Plugin, def *message.Table) error {
	switch {
	case def.IsTemporary() && p.Has(engine.TemporaryUnsupported):
		return catalogerr.ErrTemporaryUnsupported.New(p.Name())
	case !def.IsTemporary() && p.Has(engine.TemporaryOnly):
		return catalogerr.ErrTemporaryOnly.New(p.Name())
	}
	return nil
}

func (c *Coordinator) requireSchema(ctx context.Context, id identifier.Schema) error {
	exists, err := c.reg.SchemaExists(ctx, id)
	if err != nil {
		return err
	} else if !exists {
		return catalogerr.ErrSchemaNotFound.New(id.Name())
	}
	return nil
}

// CreateTable creates |id| from |def| in the engine |def| names. Temporary identifiers create a table visible only
// to |sess|. The table is replicated as |statement|, or as a generated CREATE TABLE when |statement| is empty;
// temporary tables are not replicated.
func (c *Coordinator) CreateTable(ctx context.Context, sess *session.Session, id identifier.Table, def *message.Table, ifNotExists bool, statement string) error {
	return c.run(ctx, sess, "CreateTable", tableDDL, tableAttrs(id), func(ctx context.Context) error {
		if err := id.Validate(); err != nil {
			return err
		}
		if def == nil {
			return catalogerr.ErrDefinitionInvalid.New(id.String(), "no definition")
		}

		def = def.Clone()
		def.Name = id.Name()
		def.Schema = id.Schema().Name()
		if id.Kind() == identifier.Temporary {
			def.Type = message.TableTemporary
		} else {
			def.Type = message.TableStandard
		}

		p, err := c.resolveEngine(sess, def)
		if err != nil {
			return err
		}
		def.Engine = p.Name()
		if err := checkCapabilities(p, def); err != nil {
			return err
		}
		if err := def.Validate(); err != nil {
			return err
		}

		if err := c.requireSchema(ctx, id.Schema()); err != nil {
			return err
		}

		unlock, err := c.lockNames(ctx, sess, id)
		if err != nil {
			return err
		}
		defer unlock()

		exists, err := c.tableExists(ctx, sess, id)
		if err != nil {
			return err
		}
		if exists {
			err := catalogerr.ErrTableExists.New(id.Name())
			if ifNotExists {
				warn(sess, err)
				return nil
			}
			return err
		}

		now := time.Now().Unix()
		def.UUID = uuid.NewString()
		def.Version = 1
		def.CreatedAt = now
		def.UpdatedAt = now

		if err := c.reg.CreateTable(ctx, p, id, def); err != nil {
			return err
		}

		if def.IsTemporary() {
			sess.AddTemporaryTable(session.TemporaryTable{ID: id, Engine: p, Definition: def})
			return nil
		}

		if err := c.store.WriteTable(ctx, id, def, p); err != nil {
			if dropErr := c.reg.DropTable(detached(ctx), p, id); dropErr != nil {
				logrus.WithFields(logrus.Fields{"table": id.String(), "engine": p.Name()}).Errorf("failed to drop table after its definition could not be written: %v", dropErr)
			}
			return err
		}
		c.cache.Invalidate(id)

		if statement == "" {
			statement = sqlfmt.CreateTableStmt(def, ifNotExists)
		}
		c.emit(ctx, replication.RawStatement(id.Schema().Name(), statement))
		return nil
	})
}

// tableExists returns whether |id| exists. Temporary identifiers are looked up among the temporary tables of
// |sess|, others in the engines and definition files.
func (c *Coordinator) tableExists(ctx context.Context, sess *session.Session, id identifier.Table) (bool, error) {
	if id.Kind() == identifier.Temporary {
		_, ok := sess.TemporaryTable(id.Schema().Name(), id.Name())
		return ok, nil
	}
	lookup, err := c.reg.TableDefinition(ctx, id)
	if err != nil {
		return false, err
	}
	return lookup.Found(), nil
}

// CreateTableLike creates |id| with the definition of |src|.
func (c *Coordinator) CreateTableLike(ctx context.Context, sess *session.Session, id, src identifier.Table, ifNotExists bool) error {
	var def *message.Table
	if tt, ok := sess.TemporaryTable(src.Schema().Name(), src.Name()); ok {
		def = tt.Definition.Clone()
	} else {
		var err error
		def, _, err = c.store.ReadTable(ctx, src)
		if err != nil {
			return err
		}
	}

	def.UUID = ""
	def.Version = 0
	stmt := ""
	if id.Kind() != identifier.Temporary {
		stmt = sqlfmt.CreateTableLikeStmt(id.Schema().Name(), id.Name(), src.Schema().Name(), src.Name(), ifNotExists)
	}
	return c.CreateTable(ctx, sess, id, def, ifNotExists, stmt)
}

// DropTable drops |id|. A temporary table of |sess| with the same name is dropped in its place. A missing table is
// an error unless |ifExists| is set, in which case it becomes a warning. With |generateWarning|, an engine failure
// is reported to the session as a warning and the definition is removed anyway.
func (c *Coordinator) DropTable(ctx context.Context, sess *session.Session, id identifier.Table, ifExists, generateWarning bool) error {
	return c.run(ctx, sess, "DropTable", tableDDL, tableAttrs(id), func(ctx context.Context) error {
		if tt, ok := sess.TemporaryTable(id.Schema().Name(), id.Name()); ok {
			return c.dropTemporary(ctx, sess, tt)
		}

		dropped, err := c.dropTable(ctx, sess, id, ifExists, generateWarning)
		if err != nil {
			return err
		}
		if dropped {
			c.emit(ctx, replication.RawStatement(id.Schema().Name(), sqlfmt.DropTableStmt(id.Schema().Name(), id.Name(), ifExists)))
		}
		return nil
	})
}

// dropTable drops the persistent table |id| without touching the catalog lock. It returns whether anything was
// removed.
func (c *Coordinator) dropTable(ctx context.Context, sess *session.Session, id identifier.Table, ifExists, generateWarning bool) (bool, error) {
	unlock, err := c.lockNames(ctx, sess, id)
	if err != nil {
		return false, err
	}
	defer unlock()

	def, p, err := c.store.ReadTable(ctx, id)
	if catalogerr.IsNotFound(err) {
		if ifExists {
			warn(sess, err)
			return false, nil
		}
		return false, err
	} else if err != nil {
		return false, err
	}

	release, err := c.exclusive(ctx, sess, id)
	if err != nil {
		return false, err
	}
	defer release()

	log := logrus.WithFields(logrus.Fields{"op": "DropTable", "table": id.String(), "engine": def.Engine})

	var engineErr error
	if p == nil {
		log.Warn("definition names an unknown storage engine; removing the definition only")
	} else {
		engineErr = c.reg.DropTable(ctx, p, id)
	}

	switch {
	case engineErr == nil:
	case catalogerr.IsNotFound(engineErr):
		if !ifExists {
			return false, engineErr
		}
		warn(sess, engineErr)
	case catalogerr.Is(engineErr, catalogerr.RowReferenced):
		return false, engineErr
	case generateWarning:
		capture, restore := sess.RedirectNextError()
		unhandled := sess.ReportError(engineErr)
		restore()
		if unhandled != nil {
			return false, unhandled
		}
		if captured := capture.Err(); captured != nil {
			warn(sess, captured)
		}
		engineErr = nil
	}

	if err := c.store.DeleteTable(ctx, id, p); err != nil {
		log.Errorf("failed to remove table definition: %v", err)
		if engineErr == nil {
			engineErr = err
		}
	}
	c.cache.Invalidate(id)

	if engineErr != nil {
		return true, engineErr
	}
	return true, nil
}

// dropTemporary drops a temporary table of |sess|. The table is forgotten even if its engine fails.
func (c *Coordinator) dropTemporary(ctx context.Context, sess *session.Session, tt session.TemporaryTable) error {
	defer sess.RemoveTemporaryTable(tt.ID.Schema().Name(), tt.ID.Name())

	err := c.reg.DropTable(ctx, tt.Engine, tt.ID)
	if err != nil && !catalogerr.IsNotFound(err) {
		return err
	}
	return nil
}

// RenameTable renames |from| to |to|, possibly into another schema.
func (c *Coordinator) RenameTable(ctx context.Context, sess *session.Session, from, to identifier.Table) error {
	return c.run(ctx, sess, "RenameTable", tableDDL, tableAttrs(from, to), func(ctx context.Context) error {
		if err := to.Validate(); err != nil {
			return err
		}
		if _, ok := sess.TemporaryTable(from.Schema().Name(), from.Name()); ok {
			return catalogerr.ErrUnsupported.New("RENAME TABLE is not supported for temporary tables")
		}
		if err := c.requireSchema(ctx, to.Schema()); err != nil {
			return err
		}

		unlock, err := c.lockNames(ctx, sess, from, to)
		if err != nil {
			return err
		}
		defer unlock()

		def, p, err := c.store.ReadTable(ctx, from)
		if err != nil {
			return err
		}
		if p == nil {
			return catalogerr.ErrUnknownEngine.New(def.Engine)
		}
		if !from.Equal(to) {
			exists, err := c.tableExists(ctx, sess, to)
			if err != nil {
				return err
			} else if exists {
				return catalogerr.ErrTableExists.New(to.Name())
			}
		}

		release, err := c.exclusive(ctx, sess, from, to)
		if err != nil {
			return err
		}
		defer release()

		if err := c.renameTable(ctx, p, from, to); err != nil {
			return err
		}

		c.emit(ctx, replication.RawStatement(from.Schema().Name(), sqlfmt.RenameTableStmt(from.Schema().Name(), from.Name(), to.Schema().Name(), to.Name())))
		return nil
	})
}

// renameTable renames the table in its engine and then its definition. If the definition cannot be renamed the
// engine rename is undone.
func (c *Coordinator) renameTable(ctx context.Context, p *engine.Plugin, from, to identifier.Table) error {
	if err := c.reg.RenameTable(ctx, p, from, to); err != nil {
		return err
	}

	err := c.store.RenameTable(ctx, from, to, p)
	if err == nil {
		c.cache.Invalidate(from)
		c.cache.Invalidate(to)
		return nil
	}

	log := logrus.WithFields(logrus.Fields{"op": "RenameTable", "table": from.String(), "to": to.String(), "engine": p.Name()})
	log.Warnf("definition rename failed, renaming the table back: %v", err)

	bctx := detached(ctx)
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	rbErr := backoff.Retry(func() error {
		err := c.reg.RenameTable(bctx, p, to, from)
		if err != nil && !catalogerr.Is(err, catalogerr.IO) && !catalogerr.Is(err, catalogerr.Engine) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, rollbackRetries), bctx))
	if rbErr != nil {
		log.Errorf("failed to rename the table back; engine and definition now disagree: %v", rbErr)
	}
	return err
}

// CloseSession drops the temporary tables |sess| still holds. Failures are logged.
func (c *Coordinator) CloseSession(ctx context.Context, sess *session.Session) {
	_ = c.run(ctx, sess, "CloseSession", listing, nil, func(ctx context.Context) error {
		for _, tt := range sess.TemporaryTables() {
			if err := c.dropTemporary(ctx, sess, tt); err != nil {
				logrus.WithFields(logrus.Fields{"table": tt.ID.String(), "engine": tt.Engine.Name()}).Warnf("failed to drop temporary table: %v", err)
			}
		}
		return nil
	})
}
