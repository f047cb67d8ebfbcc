// pool.go: Event object pool collaborator
//
// The pool recycles event objects across fires. Events drawn from a pool
// are marked pool-owned; the party that dispatches them (normally the
// manager) releases them exactly once after dispatch. The pool is
// internally thread-safe because it may be shared between managers.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hermes

import (
	"sync"
	"sync/atomic"

	"github.com/agilira/go-timecache"
)

// EventPool recycles Event objects to avoid per-fire allocations.
//
// Acquire marks events as pool-owned; the manager returns them via Release
// after dispatch. Releasing a caller-owned event or an event from another
// pool is a no-op.
type EventPool struct {
	pool     sync.Pool
	acquired atomic.Int64
	released atomic.Int64
}

// PoolStats reports pool traffic, mainly for tests and diagnostics.
type PoolStats struct {
	Acquired int64 `json:"acquired"`
	Released int64 `json:"released"`
}

// NewEventPool creates an empty event pool.
func NewEventPool() *EventPool {
	p := &EventPool{}
	p.pool.New = func() interface{} {
		return &Event{}
	}
	return p
}

// Acquire draws an event from the pool, tags it with the given ID and
// marks it pool-owned. The payload starts nil.
func (p *EventPool) Acquire(id int) *Event {
	ev := p.pool.Get().(*Event)
	ev.id = id
	ev.payload = nil
	ev.timestamp = timecache.CachedTime()
	ev.poolOwned = true
	ev.pool = p
	p.acquired.Add(1)
	return ev
}

// Release returns a pool-owned event to this pool and clears its payload
// and ownership mark. Events the pool does not own are ignored.
func (p *EventPool) Release(ev *Event) {
	if ev == nil || !ev.poolOwned || ev.pool != p {
		return
	}
	ev.poolOwned = false
	ev.pool = nil
	ev.payload = nil
	p.released.Add(1)
	p.pool.Put(ev)
}

// Stats returns the cumulative acquire/release counters.
func (p *EventPool) Stats() PoolStats {
	return PoolStats{
		Acquired: p.acquired.Load(),
		Released: p.released.Load(),
	}
}
