// hermes: In-process synchronous event dispatch with re-entrancy-safe tables
//
// Philosophy:
// - Minimal dispatch-path dependencies (go-errors, go-timecache); the audit,
//   config and flag layers add go-sqlite3, yaml/v3 and flash-flags
// - Synchronous dispatch: Fire returns when every listener has run
// - Re-entrancy by design: listeners may add, remove and fire during dispatch
// - Deferred-mutation protocol keyed on a firing-depth counter
// - Single-threaded cooperative model, zero internal locking on the hot path
//
// Example Usage:
//
//	em := hermes.New(hermes.Config{})
//	stub := em.AddListener(7, func(ev *hermes.Event) {
//	    fmt.Println("got", ev.ID(), ev.Payload())
//	})
//
//	em.Fire(hermes.NewEvent(7, "payload"))
//	_ = em.RemoveListenerStub(stub)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hermes

import (
	"github.com/agilira/go-errors"
)

// EventManager routes integer-identified events to registered listeners.
//
// Dispatch is synchronous and re-entrancy safe: a listener being invoked
// may register new listeners, remove any listener (including itself), and
// fire further events recursively. Removals issued while firing are
// deferred and drained when the outermost fire returns; listeners added
// while firing never receive the in-flight event.
//
// The manager is single-threaded cooperative. It is not internally
// synchronized and must be confined to one goroutine; only the audit
// collaborator is safe to share.
type EventManager struct {
	config      Config
	auditLogger *AuditLogger

	// firing counts the currently active fires. A counter, not a flag:
	// nested fires must compose, and the pending sets drain only when
	// the outermost fire returns.
	firing          int
	maxListenerStub ListenerStub

	idToListeners  map[int][]*listenerInfo
	stubToListener map[ListenerStub]listenerPos

	pendingRemoveIDs   map[int]struct{}
	pendingRemoveStubs map[ListenerStub]struct{}

	lastErr     error
	firedEvents uint64
}

// ManagerStats is a point-in-time snapshot of the dispatch tables.
type ManagerStats struct {
	RegisteredListeners int          `json:"registered_listeners"`
	EventIDs            int          `json:"event_ids"`
	FiredEvents         uint64       `json:"fired_events"`
	MaxStub             ListenerStub `json:"max_stub"`
	FiringDepth         int          `json:"firing_depth"`
}

// New creates an event manager with the given configuration.
func New(config Config) *EventManager {
	cfg := config.WithDefaults()

	// Initialize audit logger
	auditLogger, err := NewAuditLogger(cfg.Audit)
	if err != nil {
		// Fallback to disabled audit if setup fails
		auditLogger, _ = NewAuditLogger(AuditConfig{Enabled: false})
	}

	return &EventManager{
		config:             *cfg,
		auditLogger:        auditLogger,
		idToListeners:      make(map[int][]*listenerInfo),
		stubToListener:     make(map[ListenerStub]listenerPos),
		pendingRemoveIDs:   make(map[int]struct{}),
		pendingRemoveStubs: make(map[ListenerStub]struct{}),
	}
}

// AddListener registers a callable listener for the given event ID with an
// auto-allocated stub.
//
// Returns the allocated stub, or InvalidListenerStub if the handler is nil
// (LastError reports the cause). Listeners for one ID are invoked in
// registration order. Listeners added while the manager is firing do not
// receive the in-flight event.
func (em *EventManager) AddListener(id int, handler EventHandler) ListenerStub {
	if handler == nil {
		em.lastErr = errors.New(ErrCodeInvalidListener, "listener handler cannot be nil")
		return InvalidListenerStub
	}
	return em.addListener(&listenerInfo{evID: id, handler: handler}, InvalidListenerStub)
}

// AddListenerStub registers a callable listener under a caller-supplied
// stub. The stub must be positive and not currently in use; the reserved
// invalid stub is rejected and collisions fail the registration without
// overwriting.
func (em *EventManager) AddListenerStub(id int, handler EventHandler, bound ListenerStub) ListenerStub {
	if handler == nil {
		em.lastErr = errors.New(ErrCodeInvalidListener, "listener handler cannot be nil")
		return InvalidListenerStub
	}
	if bound == InvalidListenerStub {
		em.lastErr = errors.New(ErrCodeInvalidStub, "bound stub cannot be the reserved invalid stub")
		return InvalidListenerStub
	}
	return em.addListener(&listenerInfo{evID: id, handler: handler}, bound)
}

// AddEventListener registers a listener-capability object. Ownership of
// the object transfers to the manager: if it implements ListenerFinalizer,
// OnRemove runs when the manager removes it.
func (em *EventManager) AddEventListener(id int, listener EventListener) ListenerStub {
	if listener == nil {
		em.lastErr = errors.New(ErrCodeInvalidListener, "event listener cannot be nil")
		return InvalidListenerStub
	}
	return em.addListener(&listenerInfo{evID: id, listener: listener}, InvalidListenerStub)
}

// AddEventListenerStub registers a listener-capability object under a
// caller-supplied stub.
func (em *EventManager) AddEventListenerStub(id int, listener EventListener, bound ListenerStub) ListenerStub {
	if listener == nil {
		em.lastErr = errors.New(ErrCodeInvalidListener, "event listener cannot be nil")
		return InvalidListenerStub
	}
	if bound == InvalidListenerStub {
		em.lastErr = errors.New(ErrCodeInvalidStub, "bound stub cannot be the reserved invalid stub")
		return InvalidListenerStub
	}
	return em.addListener(&listenerInfo{evID: id, listener: listener}, bound)
}

// addListener appends the listener to its event bucket and records the
// stub position. bound == InvalidListenerStub requests auto-allocation;
// the bound-stub entry points (AddListenerStub/AddEventListenerStub)
// reject the reserved value before calling here.
func (em *EventManager) addListener(li *listenerInfo, bound ListenerStub) ListenerStub {
	stub, err := em.allocStub(bound)
	if err != nil {
		em.lastErr = err
		return InvalidListenerStub
	}

	li.stub = stub
	bucket := em.idToListeners[li.evID]
	em.stubToListener[stub] = listenerPos{evID: li.evID, index: len(bucket)}
	em.idToListeners[li.evID] = append(bucket, li)

	em.lastErr = nil
	em.auditLogger.LogListenerAdded(li.evID, stub, em.firing)
	return stub
}

// allocStub validates a caller-supplied stub or draws the next one from
// the monotonic allocator. Auto-allocated values are never reused:
// removals do not reset the counter, and a bound stub above the
// high-water mark advances it so later auto-allocated stubs cannot
// collide. A bound stub is checked only against live listeners, so it may
// repeat a value whose listener was removed.
func (em *EventManager) allocStub(bound ListenerStub) (ListenerStub, error) {
	if bound == InvalidListenerStub {
		em.maxListenerStub++
		return em.maxListenerStub, nil
	}
	if bound < InvalidListenerStub {
		return InvalidListenerStub, errors.New(ErrCodeInvalidStub, "bound stub must be positive")
	}
	if _, exists := em.stubToListener[bound]; exists {
		return InvalidListenerStub, errors.New(ErrCodeStubConflict, "bound stub is already in use")
	}
	if bound > em.maxListenerStub {
		em.maxListenerStub = bound
	}
	return bound, nil
}

// RemoveListener removes all listeners registered for the given event ID.
//
// If the manager is firing, the removal is deferred: the ID is queued, the
// affected listeners are skipped for the remainder of every in-flight
// walk, and the actual drain happens when the firing depth returns to
// zero. The deferred case returns a coded error matched by IsPending.
// Unknown IDs return a not-found error, even while firing.
func (em *EventManager) RemoveListener(id int) error {
	if _, ok := em.idToListeners[id]; !ok {
		err := errors.New(ErrCodeNotFound, "no listeners registered for event ID")
		em.lastErr = err
		return err
	}

	if em.firing > 0 {
		em.pendingRemoveIDs[id] = struct{}{}
		em.auditLogger.LogRemoveDeferred(id, InvalidListenerStub, em.firing)
		err := errors.New(ErrCodeRemovePending, "removal deferred until firing completes")
		em.lastErr = err
		return err
	}

	em.removeIDNow(id)
	em.lastErr = nil
	return nil
}

// RemoveListenerStub removes the one listener bound to the given stub.
// Deferred while firing (IsPending), not-found for unknown stubs.
func (em *EventManager) RemoveListenerStub(stub ListenerStub) error {
	if stub == InvalidListenerStub {
		err := errors.New(ErrCodeInvalidStub, "cannot remove the reserved invalid stub")
		em.lastErr = err
		return err
	}

	pos, ok := em.stubToListener[stub]
	if !ok {
		err := errors.New(ErrCodeNotFound, "no listener bound to stub")
		em.lastErr = err
		return err
	}

	if em.firing > 0 {
		em.pendingRemoveStubs[stub] = struct{}{}
		em.auditLogger.LogRemoveDeferred(pos.evID, stub, em.firing)
		err := errors.New(ErrCodeRemovePending, "removal deferred until firing completes")
		em.lastErr = err
		return err
	}

	em.removeStubNow(stub, pos)
	em.lastErr = nil
	return nil
}

// RemoveListenerStubX removes the listener bound to *stub and zeroes the
// caller's stub variable on immediate success. Deferred removals leave the
// variable untouched until the caller observes the drain.
func (em *EventManager) RemoveListenerStubX(stub *ListenerStub) error {
	if stub == nil {
		err := errors.New(ErrCodeInvalidStub, "stub reference cannot be nil")
		em.lastErr = err
		return err
	}

	if err := em.RemoveListenerStub(*stub); err != nil {
		return err
	}
	*stub = InvalidListenerStub
	return nil
}

// Fire dispatches the event synchronously to every listener registered
// for its ID at the moment this fire began, in registration order.
//
// Listeners whose stub or event ID is queued for deferred removal are
// skipped. Fire cannot fail: firing an ID with no listeners is a no-op.
// Pool-owned events are released back to their pool after dispatch,
// exactly once, whether or not any listener ran. A panicking listener
// propagates to the caller, but the depth bookkeeping and the deferred
// drain still run, so the manager stays consistent.
func (em *EventManager) Fire(ev *Event) {
	if ev == nil {
		return
	}

	em.firing++
	defer em.afterFire(ev)

	// The captured slice header is the snapshot: appends during the walk
	// land in the map's bucket, never in this view, so listeners added
	// mid-fire do not receive the in-flight event. Removals are deferred,
	// so positions in the view stay stable.
	snapshot := em.idToListeners[ev.id]
	invoked := 0
	for _, li := range snapshot {
		if _, removed := em.pendingRemoveStubs[li.stub]; removed {
			continue
		}
		if _, removed := em.pendingRemoveIDs[li.evID]; removed {
			continue
		}
		li.invoke(ev)
		invoked++
	}

	em.auditLogger.LogEventFired(ev.id, invoked, em.firing)
}

// FireID synthesizes an empty, non-pool-owned event with the given ID and
// fires it.
func (em *EventManager) FireID(id int) {
	em.Fire(NewEvent(id, nil))
}

// afterFire unwinds one level of firing depth and, on the outermost
// return, drains the deferred-removal sets. Runs via defer so invariants
// hold even if a listener panicked.
func (em *EventManager) afterFire(ev *Event) {
	em.firing--
	if em.firing == 0 {
		em.drainPendingRemovals()
	}
	em.firedEvents++
	ev.release()
}

// drainPendingRemovals performs the removals queued during the fire:
// stubs first, then whole event IDs, exactly as a non-firing remove
// would. Entries already gone (a stub drained before its ID, or an ID
// fully emptied by stub drains) are skipped.
func (em *EventManager) drainPendingRemovals() {
	for stub := range em.pendingRemoveStubs {
		if pos, ok := em.stubToListener[stub]; ok {
			em.removeStubNow(stub, pos)
		}
	}
	clear(em.pendingRemoveStubs)

	for id := range em.pendingRemoveIDs {
		if _, ok := em.idToListeners[id]; ok {
			em.removeIDNow(id)
		}
	}
	clear(em.pendingRemoveIDs)
}

// removeStubNow unlinks one listener from both tables and re-indexes the
// tail of its bucket. Must not run while firing.
func (em *EventManager) removeStubNow(stub ListenerStub, pos listenerPos) {
	bucket := em.idToListeners[pos.evID]
	li := bucket[pos.index]
	li.finalize()

	copy(bucket[pos.index:], bucket[pos.index+1:])
	bucket = bucket[:len(bucket)-1]
	if len(bucket) == 0 {
		delete(em.idToListeners, pos.evID)
	} else {
		em.idToListeners[pos.evID] = bucket
		for i := pos.index; i < len(bucket); i++ {
			em.stubToListener[bucket[i].stub] = listenerPos{evID: pos.evID, index: i}
		}
	}

	delete(em.stubToListener, stub)
	em.auditLogger.LogListenerRemoved(pos.evID, stub)
}

// removeIDNow unlinks every listener in one event bucket. Must not run
// while firing.
func (em *EventManager) removeIDNow(id int) {
	for _, li := range em.idToListeners[id] {
		li.finalize()
		delete(em.stubToListener, li.stub)
		em.auditLogger.LogListenerRemoved(id, li.stub)
	}
	delete(em.idToListeners, id)
}

// IsFiring reports whether any fire is currently in progress on this
// manager.
func (em *EventManager) IsFiring() bool {
	return em.firing > 0
}

// LastError returns the outcome of the most recent add or remove: nil
// after a success, otherwise the coded error (IsPending, IsNotFound,
// IsInvalidArg distinguish the kinds). The slot is per-manager because
// the manager is confined to one goroutine by contract.
func (em *EventManager) LastError() error {
	return em.lastErr
}

// HasStub reports whether a listener is currently bound to the stub.
// Listeners queued for deferred removal still count until the drain.
func (em *EventManager) HasStub(stub ListenerStub) bool {
	_, ok := em.stubToListener[stub]
	return ok
}

// ListenerCount returns the number of listeners registered for the given
// event ID.
func (em *EventManager) ListenerCount(id int) int {
	return len(em.idToListeners[id])
}

// Stats returns a snapshot of the dispatch tables.
func (em *EventManager) Stats() ManagerStats {
	return ManagerStats{
		RegisteredListeners: len(em.stubToListener),
		EventIDs:            len(em.idToListeners),
		FiredEvents:         em.firedEvents,
		MaxStub:             em.maxListenerStub,
		FiringDepth:         em.firing,
	}
}

// Close finalizes every manager-owned listener, resets the tables and
// shuts down the audit trail.
//
// Closing while firing is a programming error: it panics unless the
// close guard was disabled in the configuration, in which case behavior
// is undefined by contract and Close proceeds with the teardown.
func (em *EventManager) Close() error {
	if em.firing > 0 && !em.config.DisableCloseGuard {
		panic("hermes: EventManager closed while firing")
	}

	for id, bucket := range em.idToListeners {
		for _, li := range bucket {
			li.finalize()
			delete(em.stubToListener, li.stub)
		}
		delete(em.idToListeners, id)
	}
	clear(em.pendingRemoveIDs)
	clear(em.pendingRemoveStubs)
	em.lastErr = nil

	em.auditLogger.LogManagerClosed()
	return em.auditLogger.Close()
}
