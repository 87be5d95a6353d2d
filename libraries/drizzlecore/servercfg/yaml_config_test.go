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

package servercfg

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("DRZ_DIR", "/srv/data")
	t.Setenv("DRZ_EMPTY", "")

	tests := []struct {
		name     string
		in       string
		expected string
		err      bool
	}{
		{"no placeholders", "data_dir: ./data", "data_dir: ./data", false},
		{"set", "data_dir: ${DRZ_DIR}", "data_dir: /srv/data", false},
		{"default unused", "data_dir: ${DRZ_DIR:-/tmp}", "data_dir: /srv/data", false},
		{"default used", "data_dir: ${DRZ_UNSET:-/tmp}", "data_dir: /tmp", false},
		{"empty uses default", "data_dir: ${DRZ_EMPTY:-/tmp}", "data_dir: /tmp", false},
		{"nested default", "x: ${DRZ_UNSET:-${DRZ_DIR}}", "x: /srv/data", false},
		{"escape", "x: $$HOME", "x: $HOME", false},
		{"stray dollar", "x: a$b$", "x: a$b$", false},
		{"unset", "x: ${DRZ_UNSET}", "", true},
		{"unterminated", "x: ${DRZ_DIR", "", true},
		{"bad name", "x: ${1ABC}", "", true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := expandEnv([]byte(test.in))
			if test.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, string(out))
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := NewYamlConfig([]byte(""))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, LogLevel_Info, cfg.LogLevel())
	assert.Equal(t, LogFormat_Text, cfg.LogFormat())
	assert.Equal(t, DefaultDataDir, cfg.DataDir())
	assert.Equal(t, "", cfg.TmpDir())
	assert.Equal(t, "memory", cfg.DefaultEngine())
	assert.False(t, cfg.DropSchemaIgnoreTableFailures())
	assert.Equal(t, time.Duration(0), cfg.LockWaitTimeout())
	assert.Equal(t, DefaultUnusedTables, cfg.UnusedTables())
	assert.Empty(t, cfg.DisabledEngines())
	assert.Equal(t, filepath.Join(DefaultDataDir, DefaultBoltFile), cfg.BoltFile())
	assert.Equal(t, filepath.Join(DefaultDataDir, DefaultLevelDBDir), cfg.LevelDBDir())
	assert.True(t, cfg.ReplicationEnabled())
	assert.Equal(t, filepath.Join(DefaultDataDir, DefaultReplicationLogDir), cfg.ReplicationLogDir())
	assert.Equal(t, int64(DefaultMaxLogSize), cfg.MaxLogSize())
	assert.Equal(t, "drizzle", cfg.MetricsNamespace())
}

const fullConfig = `
log_level: DEBUG
log_format: json
data_dir: ${DRZ_DATA:-/var/lib/drizzle}
tmp_dir: /tmp/drizzle
default_engine: filestore
behavior:
  drop_schema_ignore_table_failures: true
  lock_wait_timeout_millis: 1500
  unused_tables: 16
engines:
  disabled: [bolt]
  bolt:
    file: /srv/dict.bolt
  leveldb:
    dir: lsm
replication:
  enabled: false
  log_dir: binlog
  max_log_size: 4096
metrics:
  namespace: test
`

func TestFullConfig(t *testing.T) {
	cfg, err := NewYamlConfig([]byte(fullConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, LogLevel_Debug, cfg.LogLevel())
	assert.Equal(t, LogFormat_JSON, cfg.LogFormat())
	assert.Equal(t, "/var/lib/drizzle", cfg.DataDir())
	assert.Equal(t, "/tmp/drizzle", cfg.TmpDir())
	assert.Equal(t, "filestore", cfg.DefaultEngine())
	assert.True(t, cfg.DropSchemaIgnoreTableFailures())
	assert.Equal(t, 1500*time.Millisecond, cfg.LockWaitTimeout())
	assert.Equal(t, 16, cfg.UnusedTables())
	assert.Equal(t, []string{"bolt"}, cfg.DisabledEngines())
	assert.Equal(t, "/srv/dict.bolt", cfg.BoltFile())
	assert.Equal(t, filepath.Join("/var/lib/drizzle", "lsm"), cfg.LevelDBDir())
	assert.False(t, cfg.ReplicationEnabled())
	assert.Equal(t, filepath.Join("/var/lib/drizzle", "binlog"), cfg.ReplicationLogDir())
	assert.Equal(t, int64(4096), cfg.MaxLogSize())
	assert.Equal(t, "test", cfg.MetricsNamespace())
}

func TestStrictAndValidate(t *testing.T) {
	_, err := NewYamlConfig([]byte("unknown_key: 1"))
	assert.Error(t, err)

	_, err = NewYamlConfig([]byte("data_dir: ${DRZ_SURELY_UNSET}"))
	assert.Error(t, err)

	for _, bad := range []string{
		"log_level: loud",
		"log_format: xml",
		"data_dir: ' '",
		"default_engine: ''",
		"replication:\n  max_log_size: 0",
		"behavior:\n  unused_tables: -1",
	} {
		cfg, err := NewYamlConfig([]byte(bad))
		require.NoError(t, err, bad)
		assert.Error(t, cfg.Validate(), bad)
	}
}

func TestYamlConfigFromFile(t *testing.T) {
	fs := filesys.EmptyInMemFS("/")
	require.NoError(t, fs.WriteFile("/etc/drizzle.yaml", []byte("default_engine: bolt\n"), 0o644))

	cfg, err := YamlConfigFromFile(fs, "/etc/drizzle.yaml")
	require.NoError(t, err)
	assert.Equal(t, "bolt", cfg.DefaultEngine())

	_, err = YamlConfigFromFile(fs, "/etc/missing.yaml")
	assert.Error(t, err)
}

const fullTomlConfig = `
log_level = "DEBUG"
data_dir = "${DRZ_DATA:-/var/lib/drizzle}"
default_engine = "leveldb"

[behavior]
lock_wait_timeout_millis = 1500

[engines]
disabled = ["bolt"]

[engines.leveldb]
dir = "/srv/rows"

[replication]
enabled = false
`

func TestTomlConfig(t *testing.T) {
	cfg, err := NewTomlConfig([]byte(fullTomlConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, LogLevel_Debug, cfg.LogLevel())
	assert.Equal(t, "/var/lib/drizzle", cfg.DataDir())
	assert.Equal(t, "leveldb", cfg.DefaultEngine())
	assert.Equal(t, 1500*time.Millisecond, cfg.LockWaitTimeout())
	assert.Equal(t, []string{"bolt"}, cfg.DisabledEngines())
	assert.Equal(t, "/srv/rows", cfg.LevelDBDir())
	assert.False(t, cfg.ReplicationEnabled())

	_, err = NewTomlConfig([]byte("unknown_key = 1"))
	assert.Error(t, err)
	_, err = NewTomlConfig([]byte("[behavior]\nlock_wait = 1"))
	assert.Error(t, err)
	_, err = NewTomlConfig([]byte("data_dir = "))
	assert.Error(t, err)
}

func TestConfigFromFile(t *testing.T) {
	fs := filesys.EmptyInMemFS("/")
	require.NoError(t, fs.WriteFile("/etc/drizzle.toml", []byte("default_engine = \"filestore\"\n"), 0o644))
	require.NoError(t, fs.WriteFile("/etc/drizzle.yml", []byte("default_engine: bolt\n"), 0o644))

	cfg, err := ConfigFromFile(fs, "/etc/drizzle.toml")
	require.NoError(t, err)
	assert.Equal(t, "filestore", cfg.DefaultEngine())

	cfg, err = ConfigFromFile(fs, "/etc/drizzle.yml")
	require.NoError(t, err)
	assert.Equal(t, "bolt", cfg.DefaultEngine())

	_, err = ConfigFromFile(fs, "/etc/missing.toml")
	assert.Error(t, err)
}
