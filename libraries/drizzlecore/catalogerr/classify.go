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

package catalogerr

import (
	"context"

	"gopkg.in/src-d/go-errors.v1"
)

// Code is the coarse classification of a catalog error.
type Code uint8

const (
	// OK is the classification of a nil error.
	OK Code = iota
	NotFound
	AlreadyExists
	RowReferenced
	Unsupported
	NameInvalid
	IO
	Interrupted
	Engine
	// Unknown is any error that was not produced through one of this package's kinds.
	Unknown
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case RowReferenced:
		return "row_referenced"
	case Unsupported:
		return "unsupported"
	case NameInvalid:
		return "name_invalid"
	case IO:
		return "io"
	case Interrupted:
		return "interrupted"
	case Engine:
		return "engine_error"
	default:
		return "unknown"
	}
}

var kindCodes = []struct {
	kind *errors.Kind
	code Code
}{
	{ErrSchemaNotFound, NotFound},
	{ErrTableNotFound, NotFound},
	{ErrSchemaExists, AlreadyExists},
	{ErrTableExists, AlreadyExists},
	{ErrRowReferenced, RowReferenced},
	{ErrUnsupported, Unsupported},
	{ErrUnknownEngine, Unsupported},
	{ErrTemporaryUnsupported, Unsupported},
	{ErrTemporaryOnly, Unsupported},
	{ErrAlterUnsupported, Unsupported},
	{ErrTablesNotDropped, Unsupported},
	{ErrDefinitionInvalid, Unsupported},
	{ErrNameInvalid, NameInvalid},
	{ErrIO, IO},
	{ErrInterrupted, Interrupted},
	{ErrDuplicateKey, AlreadyExists},
	{ErrEngineRegistered, AlreadyExists},
}

// Classify returns the Code for |err|, looking through wrapped causes until it finds an error kind it knows.
func Classify(err error) Code {
	if err == nil {
		return OK
	}

	for e := err; e != nil; e = unwrap(e) {
		if _, ok := e.(*EngineError); ok {
			return Engine
		}
		if e == context.Canceled || e == context.DeadlineExceeded {
			return Interrupted
		}
		for _, kc := range kindCodes {
			if kc.kind.Is(e) {
				return kc.code
			}
		}
	}

	return Unknown
}

// Is reports whether |err| classifies as |code|.
func Is(err error, code Code) bool {
	if err == nil {
		return code == OK
	}
	return Classify(err) == code
}

// IsNotFound is shorthand for Is(err, NotFound).
func IsNotFound(err error) bool {
	return Is(err, NotFound)
}

// AsEngineError returns the first *EngineError in |err|'s chain.
func AsEngineError(err error) (*EngineError, bool) {
	for err != nil {
		if ee, ok := err.(*EngineError); ok {
			return ee, true
		}
		err = unwrap(err)
	}
	return nil, false
}

func unwrap(err error) error {
	switch e := err.(type) {
	case interface{ Unwrap() error }:
		return e.Unwrap()
	case interface{ Cause() error }:
		return e.Cause()
	default:
		return nil
	}
}
