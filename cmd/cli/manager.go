// Package cli provides the command-line interface for Hermes dispatch
// tooling.
//
// The CLI is a development companion for the dispatch library: it
// replays scripted operation scenarios against a live EventManager,
// validates scenario files, and queries the dispatch audit database.
// Built on the Orpheus framework, matching the rest of the AGILira
// tooling.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"github.com/agilira/orpheus/pkg/orpheus"

	"github.com/agilira/hermes"
)

// Version is the CLI and library version reported by the version command.
const Version = "1.0.0"

// Manager provides the CLI operations for Hermes dispatch tooling.
type Manager struct {
	app         *orpheus.App
	auditLogger *hermes.AuditLogger // Optional audit integration
}

// NewManager creates the CLI manager with the full command tree wired.
func NewManager() *Manager {
	app := orpheus.New("hermes").
		SetDescription("Synchronous event dispatch tooling: scenario replay and audit inspection").
		SetVersion(Version)

	manager := &Manager{
		app: app,
	}

	manager.setupScenarioCommands()
	manager.setupAuditCommands()
	manager.setupUtilityCommands()

	return manager
}

// WithAudit enables audit logging for CLI-driven dispatch operations.
func (m *Manager) WithAudit(auditLogger *hermes.AuditLogger) *Manager {
	m.auditLogger = auditLogger
	return m
}

// Run executes the CLI application with the provided arguments.
func (m *Manager) Run(args []string) error {
	return m.app.Run(args)
}

// setupScenarioCommands configures the 'scenario' command group.
func (m *Manager) setupScenarioCommands() {
	scenarioCmd := orpheus.NewCommand("scenario", "Scenario replay against a live dispatcher")

	// scenario run <file> [--verbose] [--audit-output=]
	runCmd := scenarioCmd.Subcommand("run", "Replay a scenario file and print the dispatch trace", m.handleScenarioRun)
	runCmd.AddBoolFlag("verbose", "v", false, "Print final dispatch table statistics")
	runCmd.AddFlag("audit-output", "a", "", "Enable auditing to this output (.db or .jsonl)")

	// scenario validate <file>
	scenarioCmd.Subcommand("validate", "Statically check a scenario file", m.handleScenarioValidate)

	m.app.AddCommand(scenarioCmd)
}

// setupAuditCommands configures the 'audit' command group.
func (m *Manager) setupAuditCommands() {
	auditCmd := orpheus.NewCommand("audit", "Dispatch audit trail inspection")

	// audit query [db] [--limit=50] [--operation=]
	queryCmd := auditCmd.Subcommand("query", "Show recent dispatch audit records", m.handleAuditQuery)
	queryCmd.AddIntFlag("limit", "l", 50, "Maximum records to show")
	queryCmd.AddFlag("operation", "o", "", "Operation filter (listener_added|listener_removed|remove_deferred|event_fired)")

	m.app.AddCommand(auditCmd)
}

// setupUtilityCommands configures the diagnostics commands.
func (m *Manager) setupUtilityCommands() {
	infoCmd := orpheus.NewCommand("info", "System information and diagnostics")
	infoCmd.SetHandler(m.handleInfo)
	infoCmd.AddBoolFlag("verbose", "v", false, "Verbose system information")
	m.app.AddCommand(infoCmd)

	versionCmd := orpheus.NewCommand("version", "Print the Hermes version")
	versionCmd.SetHandler(m.handleVersion)
	m.app.AddCommand(versionCmd)
}
