// integration.go: FlashFlags integration for Hermes configuration
//
// Binds the Hermes configuration surface (audit trail, close guard) to
// command-line flags, layered over config files and HERMES_* environment
// variables. Applications embedding a dispatcher get a ready-made flag
// set instead of hand-rolling one.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hermes

import (
	"fmt"
	"os"
	"strings"
	"time"

	flashflags "github.com/agilira/flash-flags"
)

// Names of the flags registered by NewConfigManager.
const (
	flagConfigFile         = "config"
	flagAuditEnabled       = "audit-enabled"
	flagAuditOutput        = "audit-output"
	flagAuditMinLevel      = "audit-min-level"
	flagAuditBufferSize    = "audit-buffer-size"
	flagAuditFlushInterval = "audit-flush-interval"
	flagNoCloseGuard       = "no-close-guard"
)

// ConfigManager layers Hermes configuration sources behind a FlashFlags
// flag set. Precedence, lowest to highest: defaults, config file
// (--config), HERMES_* environment variables, explicit flags.
type ConfigManager struct {
	flags   *flashflags.FlagSet
	appName string
}

// NewConfigManager creates a flag-driven configuration manager with the
// standard Hermes flags registered.
func NewConfigManager(appName string) *ConfigManager {
	cm := &ConfigManager{
		flags:   flashflags.New(appName),
		appName: appName,
	}

	cm.flags.String(flagConfigFile, "", "Path to a YAML or JSON configuration file")
	cm.flags.Bool(flagAuditEnabled, false, "Enable the dispatch audit trail")
	cm.flags.String(flagAuditOutput, "", "Audit output (.db for SQLite, .jsonl for JSONL, empty for unified store)")
	cm.flags.String(flagAuditMinLevel, "INFO", "Minimum audit level (INFO|WARN|CRITICAL|SECURITY)")
	cm.flags.Int(flagAuditBufferSize, 1000, "Audit buffer size in records")
	cm.flags.Duration(flagAuditFlushInterval, 5*time.Second, "Audit background flush interval")
	cm.flags.Bool(flagNoCloseGuard, false, "Disable the panic on Close while firing")

	return cm
}

// SetDescription sets the application description for help text
func (cm *ConfigManager) SetDescription(description string) *ConfigManager {
	cm.flags.SetDescription(description)
	return cm
}

// SetVersion sets the application version for help text
func (cm *ConfigManager) SetVersion(version string) *ConfigManager {
	cm.flags.SetVersion(version)
	return cm
}

// Parse parses command-line arguments and enables environment lookups
// under the uppercased application name prefix.
func (cm *ConfigManager) Parse(args []string) error {
	if err := cm.flags.Parse(args); err != nil {
		return fmt.Errorf("failed to parse command-line flags: %w", err)
	}
	cm.flags.SetEnvPrefix(strings.ToUpper(cm.appName))
	return nil
}

// ParseArgs is a convenience method that parses os.Args[1:]
func (cm *ConfigManager) ParseArgs() error {
	return cm.Parse(os.Args[1:])
}

// PrintUsage prints help information for all flags
func (cm *ConfigManager) PrintUsage() {
	cm.flags.PrintHelp()
}

// Config materializes the layered configuration: file and environment
// first, then any flag the user explicitly set on the command line.
func (cm *ConfigManager) Config() (*Config, error) {
	config, err := LoadConfigMultiSource(cm.flags.GetString(flagConfigFile))
	if err != nil {
		return nil, err
	}

	if cm.changed(flagAuditEnabled) {
		config.Audit.Enabled = cm.flags.GetBool(flagAuditEnabled)
	}
	if cm.changed(flagAuditOutput) {
		config.Audit.OutputFile = cm.flags.GetString(flagAuditOutput)
	}
	if cm.changed(flagAuditMinLevel) {
		level, err := ParseAuditLevel(cm.flags.GetString(flagAuditMinLevel))
		if err != nil {
			return nil, err
		}
		config.Audit.MinLevel = level
	}
	if cm.changed(flagAuditBufferSize) {
		config.Audit.BufferSize = cm.flags.GetInt(flagAuditBufferSize)
	}
	if cm.changed(flagAuditFlushInterval) {
		config.Audit.FlushInterval = cm.flags.GetDuration(flagAuditFlushInterval)
	}
	if cm.changed(flagNoCloseGuard) {
		config.DisableCloseGuard = cm.flags.GetBool(flagNoCloseGuard)
	}

	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// NewManager parses nothing further and builds an EventManager from the
// layered configuration.
func (cm *ConfigManager) NewManager() (*EventManager, error) {
	config, err := cm.Config()
	if err != nil {
		return nil, err
	}
	return New(*config), nil
}

// changed reports whether the user set the flag explicitly.
func (cm *ConfigManager) changed(name string) bool {
	set := false
	cm.flags.VisitAll(func(flag *flashflags.Flag) {
		if flag.Name() == name && flag.Changed() {
			set = true
		}
	})
	return set
}
