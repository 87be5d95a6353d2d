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

package message

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/0xffea/drizzle-sub000/libraries/utils/wire"
)

// Definitions are encoded in the protocol buffer wire format so that files written by older versions stay readable:
// unknown fields are skipped and absent fields take their zero value.
//
//	Schema:     1 name  2 collation  3 engine  4 uuid  5 version  6 created_at  7 updated_at  8 options
//	Table:      1 name  2 schema  3 type  4 engine  5 columns  6 indexes  7 foreign_keys  8 options
//	            9 collation  10 comment  11 uuid  12 version  13 created_at  14 updated_at
//	Column:     1 name  2 type  3 length  4 scale  5 nullable  6 has_default  7 default  8 comment
//	Index:      1 name  2 primary  3 unique  4 columns  5 disabled
//	ForeignKey: 1 name  2 columns  3 referenced_schema  4 referenced_table  5 referenced_columns
//	            6 on_delete  7 on_update
//	Option:     1 key  2 value

// MarshalSchema encodes |s|.
func MarshalSchema(s *Schema) []byte {
	var e wire.Encoder
	e.String(1, s.Name)
	e.String(2, s.Collation)
	e.String(3, s.Engine)
	e.String(4, s.UUID)
	e.Uint(5, s.Version)
	e.Int(6, s.CreatedAt)
	e.Int(7, s.UpdatedAt)
	for _, opt := range s.Options {
		e.Message(8, marshalOption(opt))
	}
	return e.B
}

// UnmarshalSchema decodes a schema definition written by MarshalSchema.
func UnmarshalSchema(b []byte) (*Schema, error) {
	s := &Schema{}
	err := wire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return wire.ConsumeString(typ, b, &s.Name)
		case 2:
			return wire.ConsumeString(typ, b, &s.Collation)
		case 3:
			return wire.ConsumeString(typ, b, &s.Engine)
		case 4:
			return wire.ConsumeString(typ, b, &s.UUID)
		case 5:
			return wire.ConsumeUint(typ, b, &s.Version)
		case 6:
			return wire.ConsumeInt(typ, b, &s.CreatedAt)
		case 7:
			return wire.ConsumeInt(typ, b, &s.UpdatedAt)
		case 8:
			return wire.ConsumeMessage(typ, b, func(sub []byte) error {
				opt, err := unmarshalOption(sub)
				s.Options = append(s.Options, opt)
				return err
			})
		}
		return 0, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decoding schema definition")
	}
	return s, nil
}

// MarshalTable encodes |t|.
func MarshalTable(t *Table) []byte {
	var e wire.Encoder
	e.String(1, t.Name)
	e.String(2, t.Schema)
	e.Uint(3, uint64(t.Type))
	e.String(4, t.Engine)
	for _, col := range t.Columns {
		e.Message(5, marshalColumn(col))
	}
	for _, idx := range t.Indexes {
		e.Message(6, marshalIndex(idx))
	}
	for _, fk := range t.ForeignKeys {
		e.Message(7, marshalForeignKey(fk))
	}
	for _, opt := range t.Options {
		e.Message(8, marshalOption(opt))
	}
	e.String(9, t.Collation)
	e.String(10, t.Comment)
	e.String(11, t.UUID)
	e.Uint(12, t.Version)
	e.Int(13, t.CreatedAt)
	e.Int(14, t.UpdatedAt)
	return e.B
}

// UnmarshalTable decodes a table definition written by MarshalTable.
func UnmarshalTable(b []byte) (*Table, error) {
	t := &Table{}
	err := wire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return wire.ConsumeString(typ, b, &t.Name)
		case 2:
			return wire.ConsumeString(typ, b, &t.Schema)
		case 3:
			var v uint64
			n, err := wire.ConsumeUint(typ, b, &v)
			t.Type = TableType(v)
			return n, err
		case 4:
			return wire.ConsumeString(typ, b, &t.Engine)
		case 5:
			return wire.ConsumeMessage(typ, b, func(sub []byte) error {
				col, err := unmarshalColumn(sub)
				t.Columns = append(t.Columns, col)
				return err
			})
		case 6:
			return wire.ConsumeMessage(typ, b, func(sub []byte) error {
				idx, err := unmarshalIndex(sub)
				t.Indexes = append(t.Indexes, idx)
				return err
			})
		case 7:
			return wire.ConsumeMessage(typ, b, func(sub []byte) error {
				fk, err := unmarshalForeignKey(sub)
				t.ForeignKeys = append(t.ForeignKeys, fk)
				return err
			})
		case 8:
			return wire.ConsumeMessage(typ, b, func(sub []byte) error {
				opt, err := unmarshalOption(sub)
				t.Options = append(t.Options, opt)
				return err
			})
		case 9:
			return wire.ConsumeString(typ, b, &t.Collation)
		case 10:
			return wire.ConsumeString(typ, b, &t.Comment)
		case 11:
			return wire.ConsumeString(typ, b, &t.UUID)
		case 12:
			return wire.ConsumeUint(typ, b, &t.Version)
		case 13:
			return wire.ConsumeInt(typ, b, &t.CreatedAt)
		case 14:
			return wire.ConsumeInt(typ, b, &t.UpdatedAt)
		}
		return 0, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decoding table definition")
	}
	return t, nil
}

func marshalColumn(c Column) []byte {
	var e wire.Encoder
	e.String(1, c.Name)
	e.Uint(2, uint64(c.Type))
	e.Uint(3, uint64(c.Length))
	e.Uint(4, uint64(c.Scale))
	e.Bool(5, c.Nullable)
	e.Bool(6, c.HasDefault)
	if c.HasDefault {
		e.Bytes(7, c.Default)
	}
	e.String(8, c.Comment)
	return e.B
}

func unmarshalColumn(b []byte) (Column, error) {
	var c Column
	err := wire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var v uint64
		switch num {
		case 1:
			return wire.ConsumeString(typ, b, &c.Name)
		case 2:
			n, err := wire.ConsumeUint(typ, b, &v)
			c.Type = ColumnType(v)
			return n, err
		case 3:
			n, err := wire.ConsumeUint(typ, b, &v)
			c.Length = uint32(v)
			return n, err
		case 4:
			n, err := wire.ConsumeUint(typ, b, &v)
			c.Scale = uint32(v)
			return n, err
		case 5:
			return wire.ConsumeBool(typ, b, &c.Nullable)
		case 6:
			return wire.ConsumeBool(typ, b, &c.HasDefault)
		case 7:
			return wire.ConsumeBytes(typ, b, &c.Default)
		case 8:
			return wire.ConsumeString(typ, b, &c.Comment)
		}
		return 0, nil
	})
	return c, err
}

func marshalIndex(idx Index) []byte {
	var e wire.Encoder
	e.String(1, idx.Name)
	e.Bool(2, idx.Primary)
	e.Bool(3, idx.Unique)
	e.Strings(4, idx.Columns)
	e.Bool(5, idx.Disabled)
	return e.B
}

func unmarshalIndex(b []byte) (Index, error) {
	var idx Index
	err := wire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return wire.ConsumeString(typ, b, &idx.Name)
		case 2:
			return wire.ConsumeBool(typ, b, &idx.Primary)
		case 3:
			return wire.ConsumeBool(typ, b, &idx.Unique)
		case 4:
			return wire.ConsumeRepeatedString(typ, b, &idx.Columns)
		case 5:
			return wire.ConsumeBool(typ, b, &idx.Disabled)
		}
		return 0, nil
	})
	return idx, err
}

func marshalForeignKey(fk ForeignKey) []byte {
	var e wire.Encoder
	e.String(1, fk.Name)
	e.Strings(2, fk.Columns)
	e.String(3, fk.ReferencedSchema)
	e.String(4, fk.ReferencedTable)
	e.Strings(5, fk.ReferencedColumns)
	e.String(6, fk.OnDelete)
	e.String(7, fk.OnUpdate)
	return e.B
}

func unmarshalForeignKey(b []byte) (ForeignKey, error) {
	var fk ForeignKey
	err := wire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return wire.ConsumeString(typ, b, &fk.Name)
		case 2:
			return wire.ConsumeRepeatedString(typ, b, &fk.Columns)
		case 3:
			return wire.ConsumeString(typ, b, &fk.ReferencedSchema)
		case 4:
			return wire.ConsumeString(typ, b, &fk.ReferencedTable)
		case 5:
			return wire.ConsumeRepeatedString(typ, b, &fk.ReferencedColumns)
		case 6:
			return wire.ConsumeString(typ, b, &fk.OnDelete)
		case 7:
			return wire.ConsumeString(typ, b, &fk.OnUpdate)
		}
		return 0, nil
	})
	return fk, err
}

func marshalOption(opt Option) []byte {
	var e wire.Encoder
	e.String(1, opt.Key)
	e.String(2, opt.Value)
	return e.B
}

func unmarshalOption(b []byte) (Option, error) {
	var opt Option
	err := wire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return wire.ConsumeString(typ, b, &opt.Key)
		case 2:
			return wire.ConsumeString(typ, b, &opt.Value)
		}
		return 0, nil
	})
	return opt, err
}
