// event.go: Event value object for the Hermes dispatcher
//
// An event is an integer ID plus an opaque payload. The payload format is
// caller-defined; the manager never inspects it. Events drawn from an
// EventPool carry a pool-ownership mark and are returned to their pool by
// the manager after dispatch.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hermes

import (
	"time"

	"github.com/agilira/go-timecache"
)

// Event is an integer-tagged message with an opaque payload.
//
// Events are plain values with no behavior of their own: the manager routes
// them to listeners by ID and otherwise treats them as opaque. An event
// lives for the duration of a single fire.
type Event struct {
	id        int
	payload   interface{}
	timestamp time.Time

	// Pool ownership: set only by EventPool.Acquire, consulted by the
	// manager after dispatch.
	poolOwned bool
	pool      *EventPool
}

// NewEvent creates a caller-owned event with the given ID and payload.
// Caller-constructed events are never pool-owned.
func NewEvent(id int, payload interface{}) *Event {
	// Cached timestamp: same approach as the audit trail (timecache is
	// ~100x cheaper than time.Now and precise enough for event tagging)
	return &Event{
		id:        id,
		payload:   payload,
		timestamp: timecache.CachedTime(),
	}
}

// ID returns the event ID that partitions listeners into buckets.
func (e *Event) ID() int {
	return e.id
}

// Payload returns the opaque caller-defined payload.
func (e *Event) Payload() interface{} {
	return e.payload
}

// SetPayload replaces the event payload.
func (e *Event) SetPayload(payload interface{}) {
	e.payload = payload
}

// Timestamp returns the event creation time.
func (e *Event) Timestamp() time.Time {
	return e.timestamp
}

// IsPoolOwned reports whether this event was drawn from an EventPool and
// will be released back to it after dispatch.
func (e *Event) IsPoolOwned() bool {
	return e.poolOwned
}

// release returns a pool-owned event to its pool. No-op for caller-owned
// events. The manager calls this exactly once per fire, after the last
// listener has run.
func (e *Event) release() {
	if e.poolOwned && e.pool != nil {
		e.pool.Release(e)
	}
}
