// listener_test.go - Listener variant tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hermes

import (
	"testing"
)

func TestEventListenerFunc(t *testing.T) {
	em := newTestManager()

	invoked := 0
	stub := em.AddEventListener(7, EventListenerFunc(func(ev *Event) {
		invoked++
	}))
	if stub == InvalidListenerStub {
		t.Fatalf("AddEventListener failed: %v", em.LastError())
	}

	em.FireID(7)
	if invoked != 1 {
		t.Errorf("Expected 1 invocation, got %d", invoked)
	}
}

// counter demonstrates the bound-method registration style: a method
// value carries its receiver, so no dedicated bound-object variant is
// needed.
type counter struct {
	count int
}

func (c *counter) OnEvent(ev *Event) {
	c.count++
}

func TestBoundMethodListener(t *testing.T) {
	em := newTestManager()

	c := &counter{}
	em.AddListener(7, c.OnEvent)

	em.FireID(7)
	em.FireID(7)
	if c.count != 2 {
		t.Errorf("Expected 2 invocations through the method value, got %d", c.count)
	}
}

func TestListenerStubComparable(t *testing.T) {
	seen := map[ListenerStub]bool{
		InvalidListenerStub: true,
		ListenerStub(1):     true,
	}
	if !seen[InvalidListenerStub] || !seen[ListenerStub(1)] {
		t.Error("Stubs should work as map keys")
	}
	if InvalidListenerStub != ListenerStub(0) {
		t.Error("The reserved stub is zero")
	}
}
