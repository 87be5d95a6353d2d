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

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalog"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/sqlfmt"
)

var (
	SchemaCollation string
	IfNotExists     bool
	IfExists        bool
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List schemas",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withCatalog(ctx, func(c *catalog.Catalog) error {
			sess := c.NewSession()
			names, err := c.SchemaNames(ctx, sess)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			headerColor.Fprintln(w, "SCHEMA\tCOLLATION\tENGINE\tCREATED")
			for _, name := range names {
				def, p, found, err := c.Registry().SchemaDefinition(ctx, c.Schema(name))
				if err != nil {
					return err
				}
				if !found {
					continue
				}
				engineName := ""
				if p != nil {
					engineName = p.Name()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", nameColor.Sprint(name), def.Collation, engineName, created(def.CreatedAt))
			}
			return w.Flush()
		})
	},
}

func created(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return humanize.Time(time.Unix(unix, 0))
}

var tablesCmd = &cobra.Command{
	Use:   "tables <schema>",
	Short: "List the tables of a schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withCatalog(ctx, func(c *catalog.Catalog) error {
			sess := c.NewSession()
			names, err := c.TableNames(ctx, sess, c.Schema(args[0]))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			headerColor.Fprintln(w, "TABLE\tENGINE\tROWS")
			for _, name := range names {
				def, h, release, err := c.OpenTable(ctx, sess, c.Table(sess, args[0], name))
				if catalogerr.IsNotFound(err) {
					// memory tables lose their rows on restart; only the definition remains
					lookup, lerr := c.Registry().TableDefinition(ctx, c.Table(sess, args[0], name))
					if lerr != nil {
						return lerr
					}
					engineName := "?"
					if lookup.Found() {
						engineName = lookup.Definition.Engine
					}
					fmt.Fprintf(w, "%s\t%s\t-\n", nameColor.Sprint(name), engineName)
					continue
				} else if err != nil {
					return err
				}

				n, err := h.RowCount(ctx)
				release()
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", nameColor.Sprint(name), def.Engine, humanize.Comma(int64(n)))
			}
			return w.Flush()
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <schema> <table>",
	Short: "Print the CREATE TABLE statement of a table",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withCatalog(ctx, func(c *catalog.Catalog) error {
			sess := c.NewSession()
			id := c.Table(sess, args[0], args[1])
			lookup, err := c.Registry().TableDefinition(ctx, id)
			if err != nil {
				return err
			}
			if !lookup.Found() {
				return catalogerr.ErrTableNotFound.New(id.String())
			}
			fmt.Fprintln(cmd.OutOrStdout(), sqlfmt.CreateTableStmt(lookup.Definition, false))
			return nil
		})
	},
}

var createSchemaCmd = &cobra.Command{
	Use:   "create-schema <name>",
	Short: "Create a schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withCatalog(ctx, func(c *catalog.Catalog) error {
			sess := c.NewSession()
			def := &message.Schema{Collation: SchemaCollation}
			if err := c.CreateSchema(ctx, sess, c.Schema(args[0]), def, IfNotExists); err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), sess.Warnings())
			return nil
		})
	},
}

var dropSchemaCmd = &cobra.Command{
	Use:   "drop-schema <name>",
	Short: "Drop a schema and every table in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withCatalog(ctx, func(c *catalog.Catalog) error {
			sess := c.NewSession()
			err := c.DropSchema(ctx, sess, c.Schema(args[0]), IfExists)
			printWarnings(cmd.ErrOrStderr(), sess.Warnings())
			return err
		})
	},
}

func init() {
	createSchemaCmd.Flags().StringVar(&SchemaCollation, "collation", "", "Default collation of the schema")
	createSchemaCmd.Flags().BoolVar(&IfNotExists, "if-not-exists", false, "Do nothing if the schema exists")
	dropSchemaCmd.Flags().BoolVar(&IfExists, "if-exists", false, "Do nothing if the schema does not exist")
}
