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
	"bytes"
	"fmt"
	"os"
)

// expandEnv replaces environment placeholders in a configuration file before it is parsed.
//
//	${VAR}          the value of VAR; an error if VAR is unset or empty
//	${VAR:-text}    the value of VAR, or text (itself expanded) if VAR is unset or empty
//	$$              a literal '$'
//
// A '$' followed by anything else is kept as is.
func expandEnv(data []byte) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(data))

	for i := 0; i < len(data); i++ {
		if data[i] != '$' || i+1 == len(data) {
			out.WriteByte(data[i])
			continue
		}

		switch data[i+1] {
		case '$':
			out.WriteByte('$')
			i++
		case '{':
			end := bytes.IndexByte(data[i+2:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unterminated environment placeholder at byte %d", i)
			}
			end += i + 2

			val, err := lookupPlaceholder(data[i+2 : end])
			if err != nil {
				return nil, err
			}
			out.Write(val)
			i = end
		default:
			out.WriteByte('$')
		}
	}

	return out.Bytes(), nil
}

func lookupPlaceholder(expr []byte) ([]byte, error) {
	name, def, hasDefault := expr, []byte(nil), false
	if idx := bytes.Index(expr, []byte(":-")); idx >= 0 {
		name, def, hasDefault = expr[:idx], expr[idx+2:], true
	}
	if !validEnvName(name) {
		return nil, fmt.Errorf("invalid environment variable name %q", string(name))
	}

	if val, ok := os.LookupEnv(string(name)); ok && val != "" {
		return []byte(val), nil
	}
	if hasDefault {
		return expandEnv(def)
	}
	return nil, fmt.Errorf("environment variable %q is not set", string(name))
}

func validEnvName(name []byte) bool {
	if len(name) == 0 {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
