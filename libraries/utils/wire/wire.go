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

// Package wire has small helpers for hand-written protocol buffer wire encodings.
package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Encoder appends fields to a buffer. Zero scalar values are omitted, as in proto3.
type Encoder struct {
	B []byte
}

func (e *Encoder) String(num protowire.Number, s string) {
	if s == "" {
		return
	}
	e.B = protowire.AppendTag(e.B, num, protowire.BytesType)
	e.B = protowire.AppendString(e.B, s)
}

// Bytes appends |v|. Unlike the scalar appenders, a non-nil empty slice is written so it can be told apart from
// nil when decoded.
func (e *Encoder) Bytes(num protowire.Number, v []byte) {
	if v == nil {
		return
	}
	e.B = protowire.AppendTag(e.B, num, protowire.BytesType)
	e.B = protowire.AppendBytes(e.B, v)
}

func (e *Encoder) Uint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.B = protowire.AppendTag(e.B, num, protowire.VarintType)
	e.B = protowire.AppendVarint(e.B, v)
}

func (e *Encoder) Int(num protowire.Number, v int64) {
	e.Uint(num, uint64(v))
}

func (e *Encoder) Bool(num protowire.Number, v bool) {
	if v {
		e.Uint(num, 1)
	}
}

// Message appends an embedded message. Empty messages are still written.
func (e *Encoder) Message(num protowire.Number, sub []byte) {
	e.B = protowire.AppendTag(e.B, num, protowire.BytesType)
	e.B = protowire.AppendBytes(e.B, sub)
}

// Strings appends one field per element of |ss|.
func (e *Encoder) Strings(num protowire.Number, ss []string) {
	for _, s := range ss {
		e.B = protowire.AppendTag(e.B, num, protowire.BytesType)
		e.B = protowire.AppendString(e.B, s)
	}
}

// FieldFunc consumes the value of field |num| from the front of |b| and returns the number of bytes consumed.
// Returning 0 and no error has the field skipped as unknown.
type FieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// DecodeFields calls |fn| for every field in |b|.
func DecodeFields(b []byte, fn FieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
		}
		b = b[m:]
	}
	return nil
}

func result(n int) (int, error) {
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}

// The Consume functions decode a field of the expected wire type into |dst|. A field with a different wire type is
// skipped.

func ConsumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, nil
	}
	v, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = v
	}
	return result(n)
}

func ConsumeRepeatedString(typ protowire.Type, b []byte, dst *[]string) (int, error) {
	var s string
	n, err := ConsumeString(typ, b, &s)
	if n > 0 {
		*dst = append(*dst, s)
	}
	return n, err
}

func ConsumeBytes(typ protowire.Type, b []byte, dst *[]byte) (int, error) {
	if typ != protowire.BytesType {
		return 0, nil
	}
	v, n := protowire.ConsumeBytes(b)
	if n >= 0 {
		*dst = append([]byte{}, v...)
	}
	return result(n)
}

func ConsumeUint(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, nil
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = v
	}
	return result(n)
}

func ConsumeInt(typ protowire.Type, b []byte, dst *int64) (int, error) {
	var v uint64
	n, err := ConsumeUint(typ, b, &v)
	if n > 0 {
		*dst = int64(v)
	}
	return n, err
}

func ConsumeBool(typ protowire.Type, b []byte, dst *bool) (int, error) {
	var v uint64
	n, err := ConsumeUint(typ, b, &v)
	if n > 0 {
		*dst = v != 0
	}
	return n, err
}

// ConsumeMessage passes the embedded message at the front of |b| to |fn|.
func ConsumeMessage(typ protowire.Type, b []byte, fn func(sub []byte) error) (int, error) {
	if typ != protowire.BytesType {
		return 0, nil
	}
	sub, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return result(n)
	}
	if err := fn(sub); err != nil {
		return 0, err
	}
	return n, nil
}
