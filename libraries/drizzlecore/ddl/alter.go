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
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/replication"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/rowcopy"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/session"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/sqlfmt"
)

// AlterOptions control how AlterTable rebuilds a table.
type AlterOptions struct {
	// OnDuplicate decides what happens to rows that collide on the new primary key.
	OnDuplicate rowcopy.OnDuplicate
	// Statement is replicated in place of a generated ALTER TABLE statement when set.
	Statement string
}

// AlterTable changes |id| to match |newDef|. A different name or schema in |newDef| renames the table. Renames and
// index enable/disable are applied to the existing table; anything else rebuilds it: a new table is created under a
// temporary name, the rows are copied over, and the new table is swapped in for the old one. The original table is
// left untouched if the rebuild fails.
func (c *Coordinator) AlterTable(ctx context.Context, sess *session.Session, id identifier.Table, newDef *message.Table, opts AlterOptions) (rowcopy.Stats, error) {
	var stats rowcopy.Stats
	err := c.run(ctx, sess, "AlterTable", tableDDL, tableAttrs(id), func(ctx context.Context) error {
		if newDef == nil {
			return catalogerr.ErrDefinitionInvalid.New(id.String(), "no definition")
		}
		if _, ok := sess.TemporaryTable(id.Schema().Name(), id.Name()); ok {
			return catalogerr.ErrUnsupported.New("ALTER TABLE is not supported for temporary tables")
		}

		newDef = newDef.Clone()
		if newDef.Name == "" {
			newDef.Name = id.Name()
		}
		if newDef.Schema == "" {
			newDef.Schema = id.Schema().Name()
		}
		target := c.layout.Table(newDef.Schema, newDef.Name, identifier.Standard)
		if err := target.Validate(); err != nil {
			return err
		}
		if !target.Equal(id) {
			if err := c.requireSchema(ctx, target.Schema()); err != nil {
				return err
			}
		}

		unlock, err := c.lockNames(ctx, sess, id, target)
		if err != nil {
			return err
		}
		defer unlock()

		oldDef, p, err := c.store.ReadTable(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return catalogerr.ErrUnknownEngine.New(oldDef.Engine)
		}
		if p.Has(engine.AlterUnsupported) {
			return catalogerr.ErrAlterUnsupported.New(p.Name())
		}

		newDef.Type = oldDef.Type
		if newDef.Engine == "" {
			newDef.Engine = p.Name()
		}
		np, err := c.resolveEngine(sess, newDef)
		if err != nil {
			return err
		}
		newDef.Engine = np.Name()
		if np.Has(engine.AlterUnsupported) {
			return catalogerr.ErrAlterUnsupported.New(np.Name())
		}
		if err := checkCapabilities(np, newDef); err != nil {
			return err
		}
		if err := newDef.Validate(); err != nil {
			return err
		}

		if !target.Equal(id) {
			exists, err := c.tableExists(ctx, sess, target)
			if err != nil {
				return err
			} else if exists {
				return catalogerr.ErrTableExists.New(target.Name())
			}
		}

		release, err := c.exclusive(ctx, sess, id, target)
		if err != nil {
			return err
		}
		defer release()

		newDef.UUID = oldDef.UUID
		newDef.CreatedAt = oldDef.CreatedAt
		newDef.Version = oldDef.Version + 1
		newDef.UpdatedAt = time.Now().Unix()

		if canAlterInPlace(oldDef, newDef, p, np) {
			err = c.alterInPlace(ctx, p, id, target, newDef)
		} else {
			stats, err = c.rebuild(ctx, sess, p, np, id, target, oldDef, newDef, opts.OnDuplicate)
		}
		if err != nil {
			return err
		}

		stmt := opts.Statement
		if stmt == "" {
			stmt = sqlfmt.AlterTableStmt(oldDef, newDef)
		}
		c.emit(ctx, replication.RawStatement(id.Schema().Name(), stmt))
		return nil
	})
	return stats, err
}

// canAlterInPlace returns whether |newDef| differs from |oldDef| only in its name and the enabled state of its
// indexes. Index state lives in the definition file, so engines that keep their own dictionary can only be renamed
// in place.
func canAlterInPlace(oldDef, newDef *message.Table, p, np *engine.Plugin) bool {
	if !strings.EqualFold(p.Name(), np.Name()) {
		return false
	}
	if !bytes.Equal(structure(oldDef), structure(newDef)) {
		return false
	}
	if p.OwnsDictionary() {
		for i := range oldDef.Indexes {
			if oldDef.Indexes[i].Disabled != newDef.Indexes[i].Disabled {
				return false
			}
		}
	}
	return true
}

// structure encodes the parts of |def| that only a rebuild can change.
func structure(def *message.Table) []byte {
	n := def.Clone()
	n.Name, n.Schema, n.Engine = "", "", ""
	n.UUID, n.Version, n.CreatedAt, n.UpdatedAt = "", 0, 0, 0
	for i := range n.Indexes {
		n.Indexes[i].Disabled = false
	}
	return message.MarshalTable(n)
}

func (c *Coordinator) alterInPlace(ctx context.Context, p *engine.Plugin, id, target identifier.Table, newDef *message.Table) error {
	if target.Name() != id.Name() || !target.Equal(id) {
		if err := c.renameTable(ctx, p, id, target); err != nil {
			return err
		}
	}
	if err := c.store.WriteTable(ctx, target, newDef, p); err != nil {
		return err
	}
	c.cache.Invalidate(target)
	return nil
}

// rebuild creates the altered table under a temporary name, copies the rows of |id| into it, then swaps it in.
func (c *Coordinator) rebuild(ctx context.Context, sess *session.Session, p, np *engine.Plugin, id, target identifier.Table, oldDef, newDef *message.Table, onDup rowcopy.OnDuplicate) (rowcopy.Stats, error) {
	log := logrus.WithFields(logrus.Fields{"op": "AlterTable", "table": id.String(), "engine": np.Name()})

	tmpID := c.layout.Table(target.Schema().Name(), c.layout.TempTableName(sess.ID()), identifier.Standard)
	tmpDef := newDef.Clone()
	tmpDef.Name = tmpID.Name()
	tmpDef.UUID = uuid.NewString()

	if err := c.reg.CreateTable(ctx, np, tmpID, tmpDef); err != nil {
		return rowcopy.Stats{}, err
	}
	removeTmp := func(tid identifier.Table) {
		bctx := detached(ctx)
		if err := c.reg.DropTable(bctx, np, tid); err != nil && !catalogerr.IsNotFound(err) {
			log.Errorf("failed to drop intermediate table %s: %v", tid, err)
		}
		if err := c.store.DeleteTable(bctx, tid, np); err != nil {
			log.Errorf("failed to remove definition of intermediate table %s: %v", tid, err)
		}
	}
	if err := c.store.WriteTable(ctx, tmpID, tmpDef, np); err != nil {
		removeTmp(tmpID)
		return rowcopy.Stats{}, err
	}

	stats, err := c.copyRows(ctx, p, np, id, tmpID, oldDef, tmpDef, rowcopy.MappingFor(oldDef, newDef), onDup)
	if err != nil {
		removeTmp(tmpID)
		return stats, err
	}

	backupID := c.layout.Table(id.Schema().Name(), c.layout.TempTableName(sess.ID()), identifier.Standard)
	if err := c.renameTable(ctx, p, id, backupID); err != nil {
		removeTmp(tmpID)
		return stats, err
	}
	if err := c.renameTable(ctx, np, tmpID, target); err != nil {
		if rbErr := c.renameTable(detached(ctx), p, backupID, id); rbErr != nil {
			log.Errorf("failed to restore %s from %s: %v", id, backupID, rbErr)
		}
		removeTmp(tmpID)
		return stats, err
	}

	bctx := detached(ctx)
	if err := c.reg.DropTable(bctx, p, backupID); err != nil {
		log.Warnf("failed to drop backup table %s: %v", backupID, err)
	}
	if err := c.store.DeleteTable(bctx, backupID, p); err != nil {
		log.Warnf("failed to remove definition of backup table %s: %v", backupID, err)
	}

	// the renamed definition carries the temporary table's uuid
	if err := c.store.WriteTable(bctx, target, newDef, np); err != nil {
		log.Warnf("failed to rewrite definition of %s: %v", target, err)
	}

	c.cache.Invalidate(id)
	c.cache.Invalidate(target)
	log.Debugf("rebuilt table, %d rows copied, %d rejected", stats.Copied, stats.Rejected)
	return stats, nil
}

func (c *Coordinator) copyRows(ctx context.Context, p, np *engine.Plugin, from, to identifier.Table, fromDef, toDef *message.Table, m rowcopy.Mapping, onDup rowcopy.OnDuplicate) (stats rowcopy.Stats, err error) {
	src, err := c.reg.OpenTable(ctx, p, from, fromDef)
	if err != nil {
		return stats, err
	}
	defer func() {
		if cerr := src.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	dst, err := c.reg.OpenTable(ctx, np, to, toDef)
	if err != nil {
		return stats, err
	}
	defer func() {
		if cerr := dst.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return rowcopy.CopyRows(ctx, src, dst, m, onDup)
}
