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

// Package servercfg reads the configuration of a catalog, written as YAML or TOML. Every field is optional; getters
// fill in defaults.
package servercfg

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
)

type LogLevel string

const (
	LogLevel_Trace   LogLevel = "trace"
	LogLevel_Debug   LogLevel = "debug"
	LogLevel_Info    LogLevel = "info"
	LogLevel_Warning LogLevel = "warning"
	LogLevel_Error   LogLevel = "error"
)

type LogFormat string

const (
	LogFormat_Text LogFormat = "text"
	LogFormat_JSON LogFormat = "json"
)

const (
	DefaultLogLevel          = LogLevel_Info
	DefaultLogFormat         = LogFormat_Text
	DefaultDataDir           = "."
	DefaultEngine            = "memory"
	DefaultBoltFile          = "dictionary.bolt"
	DefaultLevelDBDir        = "rows.ldb"
	DefaultReplicationLogDir = ".replog"
	DefaultMaxLogSize        = 1 << 20
	DefaultMetricsNamespace  = "drizzle"
	DefaultUnusedTables      = 256
)

// BehaviorYAMLConfig holds settings that change how DDL behaves.
type BehaviorYAMLConfig struct {
	DropSchemaIgnoreTableFailures *bool `yaml:"drop_schema_ignore_table_failures,omitempty" toml:"drop_schema_ignore_table_failures,omitempty"`
	// LockWaitTimeoutMillis bounds waits for other sessions to release a table. Zero waits until cancelled.
	LockWaitTimeoutMillis *uint64 `yaml:"lock_wait_timeout_millis,omitempty" toml:"lock_wait_timeout_millis,omitempty"`
	UnusedTables          *int    `yaml:"unused_tables,omitempty" toml:"unused_tables,omitempty"`
}

type LevelDBYAMLConfig struct {
	Dir *string `yaml:"dir,omitempty" toml:"dir,omitempty"`
}

type BoltYAMLConfig struct {
	File *string `yaml:"file,omitempty" toml:"file,omitempty"`
}

// EnginesYAMLConfig selects which engines are available.
type EnginesYAMLConfig struct {
	Disabled []string           `yaml:"disabled,omitempty" toml:"disabled,omitempty"`
	Bolt     *BoltYAMLConfig    `yaml:"bolt,omitempty" toml:"bolt,omitempty"`
	LevelDB  *LevelDBYAMLConfig `yaml:"leveldb,omitempty" toml:"leveldb,omitempty"`
}

type ReplicationYAMLConfig struct {
	Enabled    *bool   `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	LogDir     *string `yaml:"log_dir,omitempty" toml:"log_dir,omitempty"`
	MaxLogSize *int64  `yaml:"max_log_size,omitempty" toml:"max_log_size,omitempty"`
}

type MetricsYAMLConfig struct {
	Namespace *string `yaml:"namespace,omitempty" toml:"namespace,omitempty"`
}

// YAMLConfig is the configuration file of a catalog.
type YAMLConfig struct {
	LogLevelStr      *string               `yaml:"log_level,omitempty" toml:"log_level,omitempty"`
	LogFormatStr     *string               `yaml:"log_format,omitempty" toml:"log_format,omitempty"`
	DataDirStr       *string               `yaml:"data_dir,omitempty" toml:"data_dir,omitempty"`
	TmpDirStr        *string               `yaml:"tmp_dir,omitempty" toml:"tmp_dir,omitempty"`
	DefaultEngineStr *string               `yaml:"default_engine,omitempty" toml:"default_engine,omitempty"`
	BehaviorConfig   BehaviorYAMLConfig    `yaml:"behavior,omitempty" toml:"behavior,omitempty"`
	EnginesConfig    EnginesYAMLConfig     `yaml:"engines,omitempty" toml:"engines,omitempty"`
	ReplicationCfg   ReplicationYAMLConfig `yaml:"replication,omitempty" toml:"replication,omitempty"`
	MetricsConfig    MetricsYAMLConfig     `yaml:"metrics,omitempty" toml:"metrics,omitempty"`
}

// NewYamlConfig parses |configFileData| after expanding environment placeholders. Unknown keys are an error.
func NewYamlConfig(configFileData []byte) (*YAMLConfig, error) {
	expanded, err := expandEnv(configFileData)
	if err != nil {
		return nil, err
	}

	var cfg YAMLConfig
	if err := yaml.UnmarshalStrict(expanded, &cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &cfg, nil
}

func (cfg *YAMLConfig) normalize() {
	if cfg.LogLevelStr != nil {
		level := strings.ToLower(*cfg.LogLevelStr)
		cfg.LogLevelStr = &level
	}
	if cfg.LogFormatStr != nil {
		format := strings.ToLower(*cfg.LogFormatStr)
		cfg.LogFormatStr = &format
	}
}

// YamlConfigFromFile reads and parses the configuration file at |path|.
func YamlConfigFromFile(fs filesys.Filesys, path string) (*YAMLConfig, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file '%s': %w", path, err)
	}

	cfg, err := NewYamlConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse yaml file '%s': %w", path, err)
	}
	return cfg, nil
}

// String returns the configuration as YAML.
func (cfg YAMLConfig) String() string {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "Failed to marshal as yaml: " + err.Error()
	}
	return string(data)
}

func (cfg YAMLConfig) LogLevel() LogLevel {
	if cfg.LogLevelStr == nil {
		return DefaultLogLevel
	}
	return LogLevel(*cfg.LogLevelStr)
}

func (cfg YAMLConfig) LogFormat() LogFormat {
	if cfg.LogFormatStr == nil {
		return DefaultLogFormat
	}
	return LogFormat(*cfg.LogFormatStr)
}

// DataDir is the root under which schema directories are created.
func (cfg YAMLConfig) DataDir() string {
	if cfg.DataDirStr != nil {
		return *cfg.DataDirStr
	}
	return DefaultDataDir
}

// TmpDir is where temporary tables live. Empty means a directory inside the data dir.
func (cfg YAMLConfig) TmpDir() string {
	if cfg.TmpDirStr != nil {
		return *cfg.TmpDirStr
	}
	return ""
}

func (cfg YAMLConfig) DefaultEngine() string {
	if cfg.DefaultEngineStr != nil {
		return *cfg.DefaultEngineStr
	}
	return DefaultEngine
}

func (cfg YAMLConfig) DropSchemaIgnoreTableFailures() bool {
	if cfg.BehaviorConfig.DropSchemaIgnoreTableFailures == nil {
		return false
	}
	return *cfg.BehaviorConfig.DropSchemaIgnoreTableFailures
}

func (cfg YAMLConfig) LockWaitTimeout() time.Duration {
	if cfg.BehaviorConfig.LockWaitTimeoutMillis == nil {
		return 0
	}
	return time.Duration(*cfg.BehaviorConfig.LockWaitTimeoutMillis) * time.Millisecond
}

// UnusedTables is how many released tables stay open for reuse.
func (cfg YAMLConfig) UnusedTables() int {
	if cfg.BehaviorConfig.UnusedTables == nil {
		return DefaultUnusedTables
	}
	return *cfg.BehaviorConfig.UnusedTables
}

func (cfg YAMLConfig) DisabledEngines() []string {
	return cfg.EnginesConfig.Disabled
}

// BoltFile is the path of the bolt engine's database file. Relative paths are resolved against the data dir.
func (cfg YAMLConfig) BoltFile() string {
	file := DefaultBoltFile
	if cfg.EnginesConfig.Bolt != nil && cfg.EnginesConfig.Bolt.File != nil {
		file = *cfg.EnginesConfig.Bolt.File
	}
	return cfg.inDataDir(file)
}

// LevelDBDir is the database directory of the leveldb engine. Relative paths are resolved against the data dir.
func (cfg YAMLConfig) LevelDBDir() string {
	dir := DefaultLevelDBDir
	if cfg.EnginesConfig.LevelDB != nil && cfg.EnginesConfig.LevelDB.Dir != nil {
		dir = *cfg.EnginesConfig.LevelDB.Dir
	}
	return cfg.inDataDir(dir)
}

func (cfg YAMLConfig) ReplicationEnabled() bool {
	if cfg.ReplicationCfg.Enabled == nil {
		return true
	}
	return *cfg.ReplicationCfg.Enabled
}

// ReplicationLogDir is where replication log files are written. Relative paths are resolved against the data dir.
func (cfg YAMLConfig) ReplicationLogDir() string {
	dir := DefaultReplicationLogDir
	if cfg.ReplicationCfg.LogDir != nil {
		dir = *cfg.ReplicationCfg.LogDir
	}
	return cfg.inDataDir(dir)
}

func (cfg YAMLConfig) MaxLogSize() int64 {
	if cfg.ReplicationCfg.MaxLogSize == nil {
		return DefaultMaxLogSize
	}
	return *cfg.ReplicationCfg.MaxLogSize
}

func (cfg YAMLConfig) MetricsNamespace() string {
	if cfg.MetricsConfig.Namespace == nil {
		return DefaultMetricsNamespace
	}
	return *cfg.MetricsConfig.Namespace
}

func (cfg YAMLConfig) inDataDir(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(cfg.DataDir(), path)
}

// Validate reports the first setting that cannot be used.
func (cfg YAMLConfig) Validate() error {
	switch cfg.LogLevel() {
	case LogLevel_Trace, LogLevel_Debug, LogLevel_Info, LogLevel_Warning, LogLevel_Error:
	default:
		return fmt.Errorf("loglevel is invalid: %v", cfg.LogLevel())
	}
	switch cfg.LogFormat() {
	case LogFormat_Text, LogFormat_JSON:
	default:
		return fmt.Errorf("log format is invalid: %v", cfg.LogFormat())
	}
	if strings.TrimSpace(cfg.DataDir()) == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if cfg.DefaultEngine() == "" {
		return fmt.Errorf("default_engine must not be empty")
	}
	if cfg.MaxLogSize() <= 0 {
		return fmt.Errorf("replication max_log_size must be positive, got %d", cfg.MaxLogSize())
	}
	if cfg.UnusedTables() < 0 {
		return fmt.Errorf("unused_tables must not be negative, got %d", cfg.UnusedTables())
	}
	return nil
}
