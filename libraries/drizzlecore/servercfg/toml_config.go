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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/0xffea/drizzle-sub000/libraries/utils/filesys"
)

// NewTomlConfig parses a TOML configuration with the same keys as the YAML form. Environment placeholders are
// expanded first and unknown keys are an error.
func NewTomlConfig(configFileData []byte) (*YAMLConfig, error) {
	expanded, err := expandEnv(configFileData)
	if err != nil {
		return nil, err
	}

	var cfg YAMLConfig
	md, err := toml.Decode(string(expanded), &cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	cfg.normalize()
	return &cfg, nil
}

// ConfigFromFile reads the configuration file at |path|, as TOML when it has a .toml extension and as YAML
// otherwise.
func ConfigFromFile(fs filesys.Filesys, path string) (*YAMLConfig, error) {
	if !strings.EqualFold(filepath.Ext(path), ".toml") {
		return YamlConfigFromFile(fs, path)
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file '%s': %w", path, err)
	}
	cfg, err := NewTomlConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse toml file '%s': %w", path, err)
	}
	return cfg, nil
}
