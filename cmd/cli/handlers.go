// Command handlers for the Hermes CLI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"

	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"

	"github.com/agilira/hermes"
)

// handleScenarioRun replays a scenario file against a fresh manager and
// prints the dispatch trace.
func (m *Manager) handleScenarioRun(ctx *orpheus.Context) error {
	path := ctx.GetArg(0)
	if path == "" {
		return errors.New(hermes.ErrCodeInvalidConfig, "scenario run requires a scenario file argument")
	}

	scenario, err := LoadScenario(path)
	if err != nil {
		return err
	}

	config := hermes.Config{}
	if output := ctx.GetFlagString("audit-output"); output != "" {
		config.Audit = hermes.DefaultAuditConfig()
		config.Audit.OutputFile = output
	}

	result, err := scenario.Run(config)
	if err != nil {
		return err
	}

	if scenario.Name != "" {
		fmt.Printf("Scenario: %s\n", scenario.Name)
	}
	for _, line := range result.Trace {
		fmt.Println(line)
	}

	if ctx.GetFlagBool("verbose") {
		fmt.Printf("\nFinal state:\n")
		fmt.Printf("  Registered listeners: %d\n", result.Stats.RegisteredListeners)
		fmt.Printf("  Event IDs:            %d\n", result.Stats.EventIDs)
		fmt.Printf("  Fired events:         %d\n", result.Stats.FiredEvents)
		fmt.Printf("  Max stub:             %d\n", result.Stats.MaxStub)
	}

	return nil
}

// handleScenarioValidate statically checks a scenario file.
func (m *Manager) handleScenarioValidate(ctx *orpheus.Context) error {
	path := ctx.GetArg(0)
	if path == "" {
		return errors.New(hermes.ErrCodeInvalidConfig, "scenario validate requires a scenario file argument")
	}

	scenario, err := LoadScenario(path)
	if err != nil {
		return err
	}

	issues := scenario.Validate()
	if len(issues) == 0 {
		fmt.Printf("%s: OK (%d steps)\n", path, len(scenario.Steps))
		return nil
	}

	for _, issue := range issues {
		fmt.Printf("%s: %s\n", path, issue)
	}
	return errors.New(hermes.ErrCodeInvalidConfig, fmt.Sprintf("scenario has %d issue(s)", len(issues)))
}

// handleAuditQuery shows recent records from a dispatch audit database.
// With no argument it reads the unified system database.
func (m *Manager) handleAuditQuery(ctx *orpheus.Context) error {
	dbPath := ctx.GetArg(0)
	if dbPath == "" {
		dbPath = hermes.UnifiedAuditPath()
	}

	records, err := hermes.ReadAuditRecords(dbPath, ctx.GetFlagInt("limit"))
	if err != nil {
		return errors.Wrap(err, hermes.ErrCodeIOError, "failed to read audit records")
	}

	operation := ctx.GetFlagString("operation")
	shown := 0
	for _, record := range records {
		if operation != "" && record.Operation != operation {
			continue
		}
		fmt.Printf("%s  %-8s %-17s event=%-6d stub=%-4d depth=%d listeners=%d\n",
			record.Timestamp.Format("2006-01-02 15:04:05"),
			record.Level, record.Operation,
			record.EventID, record.Stub, record.FiringDepth, record.Listeners)
		shown++
	}

	fmt.Printf("%d record(s) from %s\n", shown, dbPath)
	return nil
}

// handleInfo displays system information and diagnostics.
func (m *Manager) handleInfo(ctx *orpheus.Context) error {
	fmt.Printf("Hermes Event Dispatch\n")
	fmt.Printf("Version: %s\n", Version)
	fmt.Printf("Framework: Orpheus CLI\n")

	if ctx.GetFlagBool("verbose") {
		fmt.Printf("\nDetails:\n")
		fmt.Printf("Dispatch model: synchronous, single-threaded cooperative\n")
		fmt.Printf("Audit backends: SQLite (unified), JSONL\n")
		fmt.Printf("Unified audit database: %s\n", hermes.UnifiedAuditPath())
		fmt.Printf("Audit logging: %v\n", m.auditLogger != nil)
	}

	return nil
}

// handleVersion prints the version string.
func (m *Manager) handleVersion(ctx *orpheus.Context) error {
	fmt.Println(Version)
	return nil
}
