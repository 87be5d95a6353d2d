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

// Package replication defines the events the catalog emits after a completed DDL operation and the sinks that
// receive them.
package replication

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/identifier"
	"github.com/0xffea/drizzle-sub000/libraries/drizzlecore/message"
	"github.com/0xffea/drizzle-sub000/libraries/utils/wire"
)

type EventType uint8

const (
	SchemaCreatedEvent EventType = iota + 1
	SchemaDroppedEvent
	RawStatementEvent
)

func (t EventType) String() string {
	switch t {
	case SchemaCreatedEvent:
		return "SchemaCreated"
	case SchemaDroppedEvent:
		return "SchemaDropped"
	case RawStatementEvent:
		return "RawStatement"
	default:
		return fmt.Sprintf("EventType(%d)", uint8(t))
	}
}

// Event describes a completed DDL operation. Definition is set for SchemaCreated events and Statement for
// RawStatement events.
type Event struct {
	ID         string
	Type       EventType
	Timestamp  time.Time
	Schema     string
	Definition *message.Schema
	Statement  string
}

func newEvent(t EventType, schema string) Event {
	return Event{ID: uuid.NewString(), Type: t, Timestamp: time.Now().UTC(), Schema: schema}
}

// SchemaCreated returns the event for the creation of |id| with |def|.
func SchemaCreated(id identifier.Schema, def *message.Schema) Event {
	ev := newEvent(SchemaCreatedEvent, id.Name())
	ev.Definition = def.Clone()
	return ev
}

func SchemaDropped(id identifier.Schema) Event {
	return newEvent(SchemaDroppedEvent, id.Name())
}

// RawStatement returns an event carrying statement text, run with |schema| as the current schema.
func RawStatement(schema, text string) Event {
	ev := newEvent(RawStatementEvent, schema)
	ev.Statement = text
	return ev
}

func (ev Event) String() string {
	switch ev.Type {
	case RawStatementEvent:
		return fmt.Sprintf("%s [%s] %s", ev.Type, ev.Schema, ev.Statement)
	default:
		return fmt.Sprintf("%s %s", ev.Type, ev.Schema)
	}
}

// Events are framed as protocol buffer messages:
//
//	1 id  2 type  3 timestamp (unix nanos)  4 schema  5 definition  6 statement

// Marshal encodes |ev|.
func Marshal(ev Event) []byte {
	var e wire.Encoder
	e.String(1, ev.ID)
	e.Uint(2, uint64(ev.Type))
	e.Int(3, ev.Timestamp.UnixNano())
	e.String(4, ev.Schema)
	if ev.Definition != nil {
		e.Message(5, message.MarshalSchema(ev.Definition))
	}
	e.String(6, ev.Statement)
	return e.B
}

// Unmarshal decodes an event written by Marshal.
func Unmarshal(b []byte) (Event, error) {
	var ev Event
	err := wire.DecodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return wire.ConsumeString(typ, b, &ev.ID)
		case 2:
			var v uint64
			n, err := wire.ConsumeUint(typ, b, &v)
			ev.Type = EventType(v)
			return n, err
		case 3:
			var nanos int64
			n, err := wire.ConsumeInt(typ, b, &nanos)
			ev.Timestamp = time.Unix(0, nanos).UTC()
			return n, err
		case 4:
			return wire.ConsumeString(typ, b, &ev.Schema)
		case 5:
			return wire.ConsumeMessage(typ, b, func(sub []byte) (err error) {
				ev.Definition, err = message.UnmarshalSchema(sub)
				return err
			})
		case 6:
			return wire.ConsumeString(typ, b, &ev.Statement)
		}
		return 0, nil
	})
	if err != nil {
		return Event{}, errors.Wrap(err, "decoding replication event")
	}
	return ev, nil
}

// Sink receives events. Delivery is the sink's responsibility; an error from Emit does not undo the operation
// the event describes.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// MemorySink keeps every event it receives.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

var _ Sink = (*MemorySink)(nil)

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Events returns the events received so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// Discard is a Sink that drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, Event) error {
	return nil
}
