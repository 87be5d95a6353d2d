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

// Package identifier turns schema and table names into the canonical identities used throughout the catalog: a
// case-folded comparison key, a filesystem path, a cache key and a content hash.
package identifier

import (
	"strings"
	"unicode/utf8"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
)

const (
	// TmpFilePrefix starts every generated temporary object name. Names with this prefix are already filesystem
	// safe and are never escaped.
	TmpFilePrefix = "#sql"

	// MaxNameLen is the longest schema or table name accepted, in characters.
	MaxNameLen = 64

	reservedSuffix = "@@@"
	hexDigits      = "0123456789abcdef"
)

// names that cannot be used as a file name on some platforms regardless of extension
var reservedNames = map[string]struct{}{
	"con": {}, "prn": {}, "aux": {}, "nul": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {}, "com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {}, "lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

// EncodeName returns the on-disk form of |name|: ASCII letters are lower-cased, bytes outside of the safe set are
// written as '@' followed by two hex digits, and a result that collides with a reserved device name gets the
// "@@@" suffix.
func EncodeName(name string) string {
	return encode(name, true)
}

// EncodeNamePreserveCase is EncodeName without the lower-casing.
func EncodeNamePreserveCase(name string) string {
	return encode(name, false)
}

func encode(name string, fold bool) string {
	if strings.HasPrefix(name, TmpFilePrefix) {
		return name
	}

	var sb strings.Builder
	sb.Grow(len(name) + len(reservedSuffix))
	for i := 0; i < len(name); i++ {
		b := name[i]
		switch {
		case fold && b >= 'A' && b <= 'Z':
			sb.WriteByte(b + ('a' - 'A'))
		case isSafeByte(b):
			sb.WriteByte(b)
		default:
			sb.WriteByte('@')
			sb.WriteByte(hexDigits[b>>4])
			sb.WriteByte(hexDigits[b&0x0f])
		}
	}

	enc := sb.String()
	if _, ok := reservedNames[strings.ToLower(enc)]; ok {
		enc += reservedSuffix
	}
	return enc
}

// FoldCase lower-cases the ASCII letters of |name| and leaves every other byte alone. It is the folding EncodeName
// applies, so two names with equal FoldCase always share an on-disk path.
func FoldCase(name string) string {
	for i := 0; i < len(name); i++ {
		if b := name[i]; b >= 'A' && b <= 'Z' {
			return strings.Map(foldRune, name)
		}
	}
	return name
}

func foldRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// EqualFold reports whether |a| and |b| are equal under FoldCase.
func EqualFold(a, b string) bool {
	return FoldCase(a) == FoldCase(b)
}

func isSafeByte(b byte) bool {
	switch {
	case b >= '0' && b <= '9', b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		return true
	case b == '_', b == ' ', b == '-':
		return true
	default:
		return b >= 0x80
	}
}

// DecodeName reverses the '@' escapes in |encoded|. The case folding and the reserved name suffix applied by
// EncodeName are not undone, so a mixed case name comes back lower-cased.
func DecodeName(encoded string) string {
	if strings.HasPrefix(encoded, TmpFilePrefix) {
		return encoded
	}

	var sb strings.Builder
	sb.Grow(len(encoded))
	for i := 0; i < len(encoded); i++ {
		b := encoded[i]
		if b == '@' && i+2 < len(encoded) {
			hi, okHi := fromHex(encoded[i+1])
			lo, okLo := fromHex(encoded[i+2])
			if okHi && okLo {
				sb.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
		}
		sb.WriteByte(b)
	}
	return sb.String()
}

// StoredName returns the name to report for an object stored under |encoded|: |stored|, the name kept in its
// definition, when that encodes to |encoded|, and the decoded file name otherwise.
func StoredName(encoded, stored string) string {
	if stored != "" && EncodeName(stored) == encoded {
		return stored
	}
	return DecodeName(encoded)
}

func fromHex(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	default:
		return 0, false
	}
}

// CheckEncoded returns an error if |encoded| could not have been produced by EncodeName or
// EncodeNamePreserveCase, for example a directory entry that was created by hand.
func CheckEncoded(encoded string) error {
	if encoded == "" {
		return catalogerr.ErrNameInvalid.New("encoded", encoded)
	}
	if strings.HasPrefix(encoded, TmpFilePrefix) {
		return nil
	}

	body := strings.TrimSuffix(encoded, reservedSuffix)
	_, reserved := reservedNames[strings.ToLower(body)]
	if reserved != (len(body) != len(encoded)) {
		return catalogerr.ErrNameInvalid.New("encoded", encoded)
	}

	for i := 0; i < len(body); i++ {
		b := body[i]
		if b == '@' {
			if i+2 >= len(body) {
				return catalogerr.ErrNameInvalid.New("encoded", encoded)
			}
			v, okHi := fromHex(body[i+1])
			lo, okLo := fromHex(body[i+2])
			if !okHi || !okLo || isSafeByte(v<<4|lo) {
				return catalogerr.ErrNameInvalid.New("encoded", encoded)
			}
			i += 2
			continue
		}
		if !isSafeByte(b) {
			return catalogerr.ErrNameInvalid.New("encoded", encoded)
		}
	}
	return nil
}

// ValidateName returns an ErrNameInvalid error if |name| cannot be used as the name of a |kind| ("schema", "table").
func ValidateName(kind, name string) error {
	switch {
	case name == "":
		return catalogerr.ErrNameInvalid.New(kind, name)
	case !utf8.ValidString(name):
		return catalogerr.ErrNameInvalid.New(kind, name)
	case utf8.RuneCountInString(name) > MaxNameLen:
		return catalogerr.ErrNameInvalid.New(kind, name)
	case strings.HasSuffix(name, " "):
		return catalogerr.ErrNameInvalid.New(kind, name)
	}
	return nil
}
