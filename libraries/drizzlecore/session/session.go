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

// Package session holds the per-connection state the catalog reads and updates while running DDL: the current
// schema, the default engine, the kill flag, warnings, error handlers and the connection's temporary tables.
package session

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/catalogerr"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/engine"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
)

var lastID atomic.Uint64

// NextID returns a process unique session id.
func NextID() uint64 {
	return lastID.Add(1)
}

// Warning is a non fatal condition reported alongside a successful result.
type Warning struct {
	Code    catalogerr.Code
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}

// ErrorHandler intercepts errors reported through Session.ReportError. HandleError returns true if it consumed the
// error.
type ErrorHandler interface {
	HandleError(err error) bool
}

// ErrorCapture consumes the first error it is offered and lets later ones through.
type ErrorCapture struct {
	err error
}

func (c *ErrorCapture) HandleError(err error) bool {
	if c.err != nil {
		return false
	}
	c.err = err
	return true
}

// Err returns the captured error, if any.
func (c *ErrorCapture) Err() error {
	return c.err
}

// TemporaryTable is a table visible only to the session that created it. Its definition is never written to disk.
type TemporaryTable struct {
	ID         identifier.Table
	Engine     *engine.Plugin
	Definition *message.Table
}

// Session is the state of one client connection.
type Session struct {
	id uint64

	mu            sync.Mutex
	currentSchema string
	defaultEngine string
	warnings      []Warning
	handlers      []ErrorHandler
	temporary     map[string]TemporaryTable

	killOnce sync.Once
	killed   chan struct{}
}

var _ engine.DefaultEngineSource = (*Session)(nil)

// New returns a session with |id| whose "default" engine is |defaultEngine|.
func New(id uint64, defaultEngine string) *Session {
	return &Session{
		id:            id,
		defaultEngine: defaultEngine,
		temporary:     make(map[string]TemporaryTable),
		killed:        make(chan struct{}),
	}
}

func (s *Session) ID() uint64 {
	return s.id
}

// CurrentSchema returns the selected schema, or "" when none is selected.
func (s *Session) CurrentSchema() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSchema
}

func (s *Session) SetCurrentSchema(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentSchema = name
}

// ClearCurrentSchemaIf deselects the current schema if it is |id|, and returns whether it did.
func (s *Session) ClearCurrentSchemaIf(id identifier.Schema) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentSchema == "" || identifier.FoldCase(s.currentSchema) != id.Key() {
		return false
	}
	s.currentSchema = ""
	return true
}

func (s *Session) DefaultEngine() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultEngine
}

func (s *Session) SetDefaultEngine(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultEngine = name
}

// Kill marks the session as cancelled. Blocking DDL waits notice it and return an Interrupted error.
func (s *Session) Kill() {
	s.killOnce.Do(func() {
		close(s.killed)
	})
}

// Done is closed once the session has been killed.
func (s *Session) Done() <-chan struct{} {
	return s.killed
}

func (s *Session) Killed() bool {
	select {
	case <-s.killed:
		return true
	default:
		return false
	}
}

// Warn records a warning.
func (s *Session) Warn(code catalogerr.Code, format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, Warning{Code: code, Message: fmt.Sprintf(format, args...)})
}

// Warnings returns a copy of the recorded warnings.
func (s *Session) Warnings() []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Warning(nil), s.warnings...)
}

func (s *Session) ClearWarnings() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = nil
}

// PushErrorHandler installs |h| as the innermost error handler.
func (s *Session) PushErrorHandler(h ErrorHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// PopErrorHandler removes the innermost error handler.
func (s *Session) PopErrorHandler() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.handlers) > 0 {
		s.handlers = s.handlers[:len(s.handlers)-1]
	}
}

// ReportError offers |err| to the installed handlers, innermost first. It returns nil if a handler consumed the
// error and |err| otherwise.
func (s *Session) ReportError(err error) error {
	if err == nil {
		return nil
	}

	s.mu.Lock()
	handlers := append([]ErrorHandler(nil), s.handlers...)
	s.mu.Unlock()

	for i := len(handlers) - 1; i >= 0; i-- {
		if handlers[i].HandleError(err) {
			return nil
		}
	}
	return err
}

// RedirectNextError installs an ErrorCapture and returns it with the func that removes it again.
func (s *Session) RedirectNextError() (*ErrorCapture, func()) {
	c := &ErrorCapture{}
	s.PushErrorHandler(c)
	return c, s.PopErrorHandler
}

func tempKey(schema, name string) string {
	return identifier.FoldCase(schema) + "\x00" + identifier.FoldCase(name)
}

// AddTemporaryTable records a temporary table created by this session.
func (s *Session) AddTemporaryTable(t TemporaryTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temporary[tempKey(t.ID.Schema().Name(), t.ID.Name())] = t
}

// RemoveTemporaryTable forgets the temporary table |schema|.|name|.
func (s *Session) RemoveTemporaryTable(schema, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.temporary, tempKey(schema, name))
}

// TemporaryTable returns the session's temporary table |schema|.|name|.
func (s *Session) TemporaryTable(schema, name string) (TemporaryTable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.temporary[tempKey(schema, name)]
	return t, ok
}

// TemporaryTableNames returns the names of the session's temporary tables in |schema|.
func (s *Session) TemporaryTableNames(schema string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for _, t := range s.temporary {
		if identifier.EqualFold(t.ID.Schema().Name(), schema) {
			names = append(names, t.ID.Name())
		}
	}
	sort.Strings(names)
	return names
}

// TemporaryTables returns all of the session's temporary tables ordered by schema and name.
func (s *Session) TemporaryTables() []TemporaryTable {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := make([]TemporaryTable, 0, len(s.temporary))
	for _, t := range s.temporary {
		tables = append(tables, t)
	}
	sort.Slice(tables, func(i, j int) bool {
		return tables[i].ID.CacheKeyString() < tables[j].ID.CacheKeyString()
	})
	return tables
}
