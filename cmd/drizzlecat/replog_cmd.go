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
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/replication"
	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
)

var ReplogFile string

var replogCmd = &cobra.Command{
	Use:   "replog",
	Short: "List the replication log files",
	Long: `replog lists the replication log files of the catalog with their sizes.
Use "replog events" to print the events they hold. The log is read without
opening the catalog, so it can be inspected while a server is running.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := replogDir()
		if err != nil {
			return err
		}
		sizes, err := logFileSizes(dir)
		if err != nil {
			return err
		}
		var files []string
		if len(sizes) > 0 {
			files, err = replication.LogFiles(filesys.LocalFS, dir)
			if err != nil {
				return err
			}
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		headerColor.Fprintln(w, "FILE\tSIZE")
		var total uint64
		for _, file := range files {
			total += sizes[file]
			fmt.Fprintf(w, "%s\t%s\n", nameColor.Sprint(file), humanize.Bytes(sizes[file]))
		}
		fmt.Fprintf(w, "%d files\t%s\n", len(files), humanize.Bytes(total))
		return w.Flush()
	},
}

var replogEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print the events in the replication log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := replogDir()
		if err != nil {
			return err
		}

		var events []replication.Event
		if exists, _ := filesys.LocalFS.Exists(dir); !exists {
			return fmt.Errorf("no replication log in '%s'", dir)
		} else if ReplogFile != "" {
			events, err = replication.ReadLogFile(filesys.LocalFS, dir, ReplogFile)
		} else {
			events, err = replication.ReadEvents(filesys.LocalFS, dir)
		}
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, ev := range events {
			fmt.Fprintf(w, "%s %s %s\n", eventColor(ev.Type).Sprintf("%-13s", ev.Type), humanize.Time(ev.Timestamp), ev.ID)
			if ev.Schema != "" {
				fmt.Fprintf(w, "  schema: %s\n", ev.Schema)
			}
			if ev.Definition != nil && ev.Definition.Collation != "" {
				fmt.Fprintf(w, "  collation: %s\n", ev.Definition.Collation)
			}
			if ev.Statement != "" {
				fmt.Fprintf(w, "  %s\n", ev.Statement)
			}
		}
		return nil
	},
}

func eventColor(t replication.EventType) *color.Color {
	switch t {
	case replication.SchemaCreatedEvent:
		return color.New(color.FgGreen)
	case replication.SchemaDroppedEvent:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgBlue)
	}
}

func replogDir() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.ReplicationLogDir(), nil
}

func logFileSizes(dir string) (map[string]uint64, error) {
	sizes := make(map[string]uint64)
	if exists, isDir := filesys.LocalFS.Exists(dir); !exists || !isDir {
		return sizes, nil
	}
	err := filesys.LocalFS.Iter(dir, false, func(path string, size int64, isDir bool) bool {
		if !isDir {
			sizes[filepath.Base(path)] = uint64(size)
		}
		return false
	})
	return sizes, err
}

func init() {
	replogEventsCmd.Flags().StringVarP(&ReplogFile, "file", "f", "", "Only print the events of this log file")
	replogCmd.AddCommand(replogEventsCmd)
}
