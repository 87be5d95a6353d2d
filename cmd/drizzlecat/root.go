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
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalog"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/servercfg"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/session"
	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
)

var (
	ConfigPath string
	DataDir    string
	Verbose    bool
	NoColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "drizzlecat",
	Short: "Inspect and administer a catalog data directory",
	Long: `drizzlecat reads and changes the schemas and tables stored in a catalog data directory.
The catalog must not be open in another process.

Examples:
  drizzlecat --data-dir /var/lib/drizzle schemas
  drizzlecat --config server.yaml tables app
  drizzlecat show app users
  drizzlecat encode 'my table'
  drizzlecat replog events`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if NoColor {
			color.NoColor = true
		}
	},
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&ConfigPath, "config", "c", "", "Configuration file (YAML, or TOML with a .toml extension)")
	rootCmd.PersistentFlags().StringVarP(&DataDir, "data-dir", "d", "", "Data directory (overrides the configuration file)")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Log catalog activity to stderr")
	rootCmd.PersistentFlags().BoolVar(&NoColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(schemasCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(createSchemaCmd)
	rootCmd.AddCommand(dropSchemaCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(replogCmd)
}

// loadConfig reads --config, if given, and applies the flags that override it.
func loadConfig() (*servercfg.YAMLConfig, error) {
	cfg := &servercfg.YAMLConfig{}
	if ConfigPath != "" {
		var err error
		cfg, err = servercfg.ConfigFromFile(filesys.LocalFS, ConfigPath)
		if err != nil {
			return nil, err
		}
	}
	if DataDir != "" {
		dir := DataDir
		cfg.DataDirStr = &dir
	}
	if !Verbose && cfg.LogLevelStr == nil {
		level := string(servercfg.LogLevel_Warning)
		cfg.LogLevelStr = &level
	}
	return cfg, nil
}

// withCatalog opens the catalog described by the flags, runs |fn| and closes it again.
func withCatalog(ctx context.Context, fn func(c *catalog.Catalog) error) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := catalog.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open catalog in '%s': %w", cfg.DataDir(), err)
	}
	defer func() {
		if cerr := c.Close(ctx); cerr != nil {
			if err == nil {
				err = cerr
			} else {
				logrus.WithError(cerr).Warn("closing catalog")
			}
		}
	}()

	return fn(c)
}

var (
	headerColor  = color.New(color.Bold)
	nameColor    = color.New(color.FgCyan)
	warningColor = color.New(color.FgYellow)
)

func printWarnings(w io.Writer, warnings []session.Warning) {
	for _, warning := range warnings {
		warningColor.Fprintf(w, "Warning: %s\n", warning)
	}
}
