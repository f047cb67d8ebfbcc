// listener.go: Listener variants and stub handles for the Hermes dispatcher
//
// The manager accepts two listener shapes: a plain callable (free function,
// method value, or closure) and an externally supplied object implementing
// the EventListener capability. Ownership of capability objects transfers
// to the manager on registration.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hermes

// ListenerStub is an opaque handle to one registered listener.
//
// Stubs are positive. Auto-allocated stubs are strictly monotonic per
// manager and never reused within a manager's lifetime, even after
// removal; a caller-supplied stub need only be unused by the live
// listeners, so it may repeat a removed value. The zero value is
// reserved as "invalid". Stubs are comparable and usable as map keys.
type ListenerStub int64

// InvalidListenerStub is the reserved invalid stub. It is never allocated
// and is returned by failed registrations.
const InvalidListenerStub ListenerStub = 0

// EventHandler is the callable listener variant. Free functions, closures
// and bound method values (obj.Method) all satisfy it, which subsumes the
// bound-object registration style of other dispatchers.
type EventHandler func(*Event)

// EventListener is the capability listener variant: a single operation
// invoked synchronously for each matching event.
//
// When an EventListener is registered, the manager takes ownership of it.
// If the listener also implements ListenerFinalizer, OnRemove runs when
// the manager removes it (by stub, by event ID, by deferred drain, or on
// Close).
type EventListener interface {
	HandleEvent(*Event)
}

// ListenerFinalizer is an optional hook for manager-owned EventListener
// objects that need teardown on removal.
type ListenerFinalizer interface {
	OnRemove()
}

// EventListenerFunc adapts a function to the EventListener capability.
type EventListenerFunc func(*Event)

// HandleEvent implements EventListener.
func (f EventListenerFunc) HandleEvent(ev *Event) {
	f(ev)
}

// listenerInfo holds one registered listener: its event ID, stub, and
// exactly one of the two variants.
type listenerInfo struct {
	evID     int
	stub     ListenerStub
	handler  EventHandler
	listener EventListener
}

// invoke dispatches the event to whichever variant is set.
func (li *listenerInfo) invoke(ev *Event) {
	if li.listener != nil {
		li.listener.HandleEvent(ev)
		return
	}
	li.handler(ev)
}

// finalize runs the removal hook for manager-owned listener objects.
// Called exactly once, at the point the listener leaves the tables.
func (li *listenerInfo) finalize() {
	if fin, ok := li.listener.(ListenerFinalizer); ok {
		fin.OnRemove()
	}
}

// listenerPos records where a stub's listener lives: the event ID bucket
// and the index inside that bucket's ordered slice.
//
// Indexes stay valid while firing because removals are deferred; outside
// firing, removals re-index the tail of the bucket.
type listenerPos struct {
	evID  int
	index int
}
