// config.go: Configuration management for the Hermes event dispatch library
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hermes

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"
)

// Config configures an EventManager.
type Config struct {
	// Audit configuration for the dispatch audit trail
	// Default: disabled (dispatch is a hot path; auditing is opt-in)
	Audit AuditConfig `yaml:"audit" json:"audit"`

	// DisableCloseGuard turns off the panic on Close-while-firing.
	// Closing a firing manager is a programming error; with the guard
	// disabled the teardown proceeds and behavior is undefined by
	// contract. Leave this off outside of tests.
	DisableCloseGuard bool `yaml:"disable_close_guard" json:"disable_close_guard"`
}

// WithDefaults returns a copy of the config with defaults applied.
func (c *Config) WithDefaults() *Config {
	config := *c

	if config.Audit.Enabled {
		if config.Audit.BufferSize <= 0 {
			config.Audit.BufferSize = 1000
		}
		if config.Audit.FlushInterval <= 0 {
			config.Audit.FlushInterval = 5 * time.Second
		}
	}

	return &config
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Audit.BufferSize < 0 {
		return errors.New(ErrCodeInvalidConfig, fmt.Sprintf("audit buffer size cannot be negative: %d", c.Audit.BufferSize))
	}
	if c.Audit.FlushInterval < 0 {
		return errors.New(ErrCodeInvalidConfig, fmt.Sprintf("audit flush interval cannot be negative: %v", c.Audit.FlushInterval))
	}
	if c.Audit.MinLevel < AuditInfo || c.Audit.MinLevel > AuditSecurity {
		return errors.New(ErrCodeInvalidConfig, fmt.Sprintf("audit min level out of range: %d", c.Audit.MinLevel))
	}
	return nil
}

// fileConfig mirrors Config for file parsing, with string durations and
// level names so YAML and JSON configs stay human-editable.
type fileConfig struct {
	Audit struct {
		Enabled       bool   `yaml:"enabled" json:"enabled"`
		OutputFile    string `yaml:"output_file" json:"output_file"`
		MinLevel      string `yaml:"min_level" json:"min_level"`
		BufferSize    int    `yaml:"buffer_size" json:"buffer_size"`
		FlushInterval string `yaml:"flush_interval" json:"flush_interval"`
	} `yaml:"audit" json:"audit"`
	DisableCloseGuard bool `yaml:"disable_close_guard" json:"disable_close_guard"`
}

// LoadConfigFile loads a Config from a YAML or JSON file. YAML is a
// superset of JSON here, so one parser covers both.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- config path is user-provided intentionally
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to read config file")
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to parse config file")
	}

	config := &Config{DisableCloseGuard: fc.DisableCloseGuard}
	config.Audit.Enabled = fc.Audit.Enabled
	config.Audit.OutputFile = fc.Audit.OutputFile
	config.Audit.BufferSize = fc.Audit.BufferSize

	if fc.Audit.MinLevel != "" {
		level, err := ParseAuditLevel(fc.Audit.MinLevel)
		if err != nil {
			return nil, err
		}
		config.Audit.MinLevel = level
	}
	if fc.Audit.FlushInterval != "" {
		interval, err := time.ParseDuration(fc.Audit.FlushInterval)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeInvalidConfig, "invalid audit flush interval")
		}
		config.Audit.FlushInterval = interval
	}

	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Environment variables recognized by ConfigFromEnv.
const (
	envAuditEnabled       = "HERMES_AUDIT_ENABLED"
	envAuditOutputFile    = "HERMES_AUDIT_OUTPUT_FILE"
	envAuditMinLevel      = "HERMES_AUDIT_MIN_LEVEL"
	envAuditBufferSize    = "HERMES_AUDIT_BUFFER_SIZE"
	envAuditFlushInterval = "HERMES_AUDIT_FLUSH_INTERVAL"
	envDisableCloseGuard  = "HERMES_DISABLE_CLOSE_GUARD"
)

// ConfigFromEnv loads configuration from HERMES_* environment variables,
// for container deployments where a config file is unwanted.
func ConfigFromEnv() (*Config, error) {
	config := &Config{}
	if err := applyEnv(config); err != nil {
		return nil, err
	}
	return config.WithDefaults(), nil
}

// applyEnv overlays HERMES_* environment variables onto config. Unset
// variables leave the corresponding field untouched.
func applyEnv(config *Config) error {
	if v := os.Getenv(envAuditEnabled); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, ErrCodeInvalidConfig, "invalid "+envAuditEnabled)
		}
		config.Audit.Enabled = enabled
	}
	if v := os.Getenv(envAuditOutputFile); v != "" {
		config.Audit.OutputFile = v
	}
	if v := os.Getenv(envAuditMinLevel); v != "" {
		level, err := ParseAuditLevel(v)
		if err != nil {
			return err
		}
		config.Audit.MinLevel = level
	}
	if v := os.Getenv(envAuditBufferSize); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, ErrCodeInvalidConfig, "invalid "+envAuditBufferSize)
		}
		config.Audit.BufferSize = size
	}
	if v := os.Getenv(envAuditFlushInterval); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, ErrCodeInvalidConfig, "invalid "+envAuditFlushInterval)
		}
		config.Audit.FlushInterval = interval
	}
	if v := os.Getenv(envDisableCloseGuard); v != "" {
		disabled, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, ErrCodeInvalidConfig, "invalid "+envDisableCloseGuard)
		}
		config.DisableCloseGuard = disabled
	}
	return nil
}

// LoadConfigMultiSource loads configuration with precedence:
// environment variables over file configuration over defaults.
// An empty configFile skips the file layer; a missing file is an error.
func LoadConfigMultiSource(configFile string) (*Config, error) {
	config := &Config{}

	if configFile != "" {
		fileConfig, err := LoadConfigFile(configFile)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
