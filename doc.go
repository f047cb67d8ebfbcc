// Package hermes provides synchronous in-process event dispatch for Go
// applications: integer-identified events routed to registered listeners,
// with dispatch tables that tolerate mutation from inside their own
// listeners.
//
// # Philosophy: Re-entrancy Is the Contract, Not an Edge Case
//
// Real event-driven code mutates its own wiring while events are in
// flight: a listener removes itself after its first invocation, tears
// down a peer, registers a follow-up handler, or fires a second event
// that does all of the above. Hermes treats these as first-class
// operations with exact, documented semantics instead of undefined
// behavior.
//
// # Architecture Overview
//
// Hermes consists of four integrated pieces:
//  1. **Event Manager**: registration tables plus the deferred-mutation protocol
//  2. **Event Pool**: recycles event objects across fires, released by the manager
//  3. **Dispatch Audit Trail**: operation logging with SQLite or JSONL storage
//  4. **Configuration Layer**: files, HERMES_* environment, FlashFlags binding
//
// # Dispatch Semantics
//
// Fire is synchronous: it returns when every listener registered for the
// event's ID at the moment the fire began has run, in registration order.
// The deferred-mutation protocol guarantees, for listeners that add,
// remove and fire during dispatch:
//
//   - Removals issued while firing are deferred: the target keeps its
//     table entries, is skipped by every in-flight walk, and is drained
//     when the outermost fire returns. The remove call reports this with
//     a coded error matched by IsPending.
//   - Listeners added while firing never receive the in-flight event,
//     but a recursive fire started afterwards does reach them.
//   - Nested fires compose through a firing-depth counter; the pending
//     sets drain exactly once, at depth zero.
//
// Quick start:
//
//	em := hermes.New(hermes.Config{})
//	defer em.Close()
//
//	stub := em.AddListener(7, func(ev *hermes.Event) {
//	    fmt.Println("payload:", ev.Payload())
//	})
//
//	em.Fire(hermes.NewEvent(7, "hello"))
//
//	if err := em.RemoveListenerStub(stub); err != nil {
//	    // hermes.IsPending(err): removal happens when firing ends
//	    // hermes.IsNotFound(err): stub unknown
//	}
//
// # Stubs
//
// Every registration returns a ListenerStub, an opaque positive handle.
// Auto-allocated stubs are strictly monotonic per manager and never
// reused, so a stale auto-allocated stub can never alias a newer
// listener. The zero stub is reserved as invalid and is what failed
// registrations return; check LastError for the cause. Callers may also
// bind their own stub values, which fail on collision with a live
// listener rather than overwrite; a bound value whose listener was
// removed can be bound again.
//
// # Threading Model
//
// The manager is single-threaded cooperative: confine each manager to
// the goroutine that created it. There is no internal locking on the
// dispatch path. The event pool and the audit trail are the only
// components safe to share between goroutines.
//
// # Audit Trail
//
// With auditing enabled, every table mutation and every fire is recorded
// through a buffered logger into a unified SQLite database (or a JSONL
// file), with tamper-detection checksums:
//
//	em := hermes.New(hermes.Config{Audit: hermes.DefaultAuditConfig()})
//
// The trail records operations on the manager, never event payloads;
// Hermes does not persist or replay events.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package hermes
