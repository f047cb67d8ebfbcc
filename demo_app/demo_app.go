// demo_app.go: Practical Demo Application showing Hermes + FlashFlags Integration
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// This file demonstrates a small order-processing pipeline wired through
// a Hermes event manager configured from flags, environment and an
// optional config file; the dispatch audit trail is off unless enabled
// there (for example with --audit-enabled).

package main

import (
	"fmt"
	"os"

	"github.com/agilira/hermes"
)

// Event IDs of the demo pipeline
const (
	eventOrderPlaced    = 1
	eventOrderValidated = 2
	eventOrderShipped   = 3
	eventOrderFailed    = 9
)

type order struct {
	ID       string
	Quantity int
}

func main() {
	// Flag-driven configuration: --audit-enabled, --audit-output,
	// --config, plus HERMES_* environment variables underneath
	cm := hermes.NewConfigManager("hermes-demo").
		SetDescription("Demo order pipeline showcasing Hermes dispatch").
		SetVersion("1.0.0")

	if err := cm.ParseArgs(); err != nil {
		fmt.Printf("Configuration error: %v\n", err)
		cm.PrintUsage()
		os.Exit(1)
	}

	em, err := cm.NewManager()
	if err != nil {
		fmt.Printf("Manager setup error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = em.Close() }()

	pool := hermes.NewEventPool()

	// Stage 1: validation fires the next stage or the failure event.
	// Nested fires run synchronously, so the whole pipeline completes
	// inside the outermost Fire call.
	em.AddListener(eventOrderPlaced, func(ev *hermes.Event) {
		o := ev.Payload().(order)
		fmt.Printf("placed:    %s x%d\n", o.ID, o.Quantity)
		if o.Quantity <= 0 {
			next := pool.Acquire(eventOrderFailed)
			next.SetPayload(o)
			em.Fire(next)
			return
		}
		next := pool.Acquire(eventOrderValidated)
		next.SetPayload(o)
		em.Fire(next)
	})

	em.AddListener(eventOrderValidated, func(ev *hermes.Event) {
		o := ev.Payload().(order)
		fmt.Printf("validated: %s\n", o.ID)
		next := pool.Acquire(eventOrderShipped)
		next.SetPayload(o)
		em.Fire(next)
	})

	em.AddListener(eventOrderShipped, func(ev *hermes.Event) {
		fmt.Printf("shipped:   %s\n", ev.Payload().(order).ID)
	})

	// One-shot failure alarm: removes itself after the first failure
	var alarmStub hermes.ListenerStub
	alarmStub = em.AddListener(eventOrderFailed, func(ev *hermes.Event) {
		fmt.Printf("ALERT: first failed order %s\n", ev.Payload().(order).ID)
		_ = em.RemoveListenerStub(alarmStub) // deferred until the fire returns
	})
	em.AddListener(eventOrderFailed, func(ev *hermes.Event) {
		fmt.Printf("failed:    %s\n", ev.Payload().(order).ID)
	})

	for _, o := range []order{
		{ID: "ord-1", Quantity: 2},
		{ID: "ord-2", Quantity: 0},
		{ID: "ord-3", Quantity: 7},
		{ID: "ord-4", Quantity: -1},
	} {
		ev := pool.Acquire(eventOrderPlaced)
		ev.SetPayload(o)
		em.Fire(ev)
	}

	stats := em.Stats()
	poolStats := pool.Stats()
	fmt.Printf("\nfired=%d listeners=%d pool acquired=%d released=%d\n",
		stats.FiredEvents, stats.RegisteredListeners, poolStats.Acquired, poolStats.Released)
}
