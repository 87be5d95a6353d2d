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

// Package catalogerr defines the error kinds reported by the catalog, the engine registry and the DDL coordinator,
// and maps any error produced by them onto a small set of codes.
package catalogerr

import (
	goerrors "errors"
	"fmt"
	"syscall"

	"gopkg.in/src-d/go-errors.v1"
)

var ErrSchemaNotFound = errors.NewKind("Unknown schema '%s'")
var ErrTableNotFound = errors.NewKind("Unknown table '%s'")

var ErrSchemaExists = errors.NewKind("Can't create schema '%s'; schema exists")
var ErrTableExists = errors.NewKind("Table '%s' already exists")

var ErrRowReferenced = errors.NewKind("Cannot drop table '%s': it is referenced by a foreign key constraint")

var ErrUnsupported = errors.NewKind("%s")
var ErrUnknownEngine = errors.NewKind("Unknown storage engine '%s'")
var ErrTemporaryUnsupported = errors.NewKind("Storage engine '%s' does not support temporary tables")
var ErrTemporaryOnly = errors.NewKind("Storage engine '%s' only supports temporary tables")
var ErrAlterUnsupported = errors.NewKind("Storage engine '%s' does not support ALTER TABLE")
var ErrTablesNotDropped = errors.NewKind("Unable to drop tables %s in schema '%s'")
var ErrDefinitionInvalid = errors.NewKind("Invalid definition for '%s': %s")

var ErrEngineRegistered = errors.NewKind("Storage engine '%s' is already registered")

var ErrNameInvalid = errors.NewKind("Incorrect %s name '%s'")

var ErrIO = errors.NewKind("I/O error on '%s'")

var ErrInterrupted = errors.NewKind("Query execution was interrupted")

// ErrDuplicateKey is reported by engines when an insert collides with an existing primary key.
var ErrDuplicateKey = errors.NewKind("Duplicate entry '%s' for key 'PRIMARY' in table '%s'")

// EngineError is an opaque failure passed through from a storage engine.
type EngineError struct {
	Engine  string
	Code    int
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("Got error %d '%s' from storage engine %s", e.Code, e.Message, e.Engine)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError returns an *EngineError for |engine|.
func NewEngineError(engine string, code int, msg string) *EngineError {
	return &EngineError{Engine: engine, Code: code, Message: msg}
}

// WrapEngineError returns an *EngineError carrying |err|. The code is the errno of |err| when it has one.
func WrapEngineError(engine string, err error) *EngineError {
	code := -1
	var errno syscall.Errno
	if goerrors.As(err, &errno) {
		code = int(errno)
	}
	return &EngineError{Engine: engine, Code: code, Message: err.Error(), Err: err}
}
