// config_test.go - Configuration loading and validation tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hermes

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigWithDefaults(t *testing.T) {
	config := Config{}
	cfg := config.WithDefaults()

	// Audit disabled: no defaults forced onto the audit block
	if cfg.Audit.BufferSize != 0 {
		t.Errorf("Disabled audit should keep zero buffer size, got %d", cfg.Audit.BufferSize)
	}

	config = Config{Audit: AuditConfig{Enabled: true}}
	cfg = config.WithDefaults()
	if cfg.Audit.BufferSize != 1000 {
		t.Errorf("Expected default buffer size 1000, got %d", cfg.Audit.BufferSize)
	}
	if cfg.Audit.FlushInterval != 5*time.Second {
		t.Errorf("Expected default flush interval 5s, got %v", cfg.Audit.FlushInterval)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Zero config should validate, got %v", err)
	}

	bad := Config{Audit: AuditConfig{BufferSize: -1}}
	if err := bad.Validate(); err == nil {
		t.Error("Negative buffer size should fail validation")
	}

	bad = Config{Audit: AuditConfig{FlushInterval: -time.Second}}
	if err := bad.Validate(); err == nil {
		t.Error("Negative flush interval should fail validation")
	}

	bad = Config{Audit: AuditConfig{MinLevel: AuditLevel(99)}}
	if err := bad.Validate(); err == nil {
		t.Error("Out-of-range audit level should fail validation")
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hermes.yml")
	content := `
audit:
  enabled: true
  output_file: /tmp/hermes-test.jsonl
  min_level: WARN
  buffer_size: 64
  flush_interval: 2s
disable_close_guard: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}

	if !config.Audit.Enabled {
		t.Error("Audit should be enabled")
	}
	if config.Audit.OutputFile != "/tmp/hermes-test.jsonl" {
		t.Errorf("Unexpected output file: %s", config.Audit.OutputFile)
	}
	if config.Audit.MinLevel != AuditWarn {
		t.Errorf("Expected WARN, got %v", config.Audit.MinLevel)
	}
	if config.Audit.BufferSize != 64 {
		t.Errorf("Expected buffer size 64, got %d", config.Audit.BufferSize)
	}
	if config.Audit.FlushInterval != 2*time.Second {
		t.Errorf("Expected 2s flush interval, got %v", config.Audit.FlushInterval)
	}
	if !config.DisableCloseGuard {
		t.Error("Close guard should be disabled")
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hermes.json")
	content := `{"audit": {"enabled": true, "min_level": "CRITICAL", "flush_interval": "500ms"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}
	if config.Audit.MinLevel != AuditCritical {
		t.Errorf("Expected CRITICAL, got %v", config.Audit.MinLevel)
	}
	if config.Audit.FlushInterval != 500*time.Millisecond {
		t.Errorf("Expected 500ms, got %v", config.Audit.FlushInterval)
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("Missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "bad.yml")
	if err := os.WriteFile(path, []byte(":\n  - ]["), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfigFile(path); err == nil {
		t.Error("Malformed YAML should fail")
	}

	path = filepath.Join(t.TempDir(), "badlevel.yml")
	if err := os.WriteFile(path, []byte("audit:\n  min_level: LOUD\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfigFile(path); err == nil {
		t.Error("Unknown audit level should fail")
	}

	path = filepath.Join(t.TempDir(), "badinterval.yml")
	if err := os.WriteFile(path, []byte("audit:\n  flush_interval: soon\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfigFile(path); err == nil {
		t.Error("Unparseable duration should fail")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(envAuditEnabled, "true")
	t.Setenv(envAuditOutputFile, "/tmp/env-audit.jsonl")
	t.Setenv(envAuditMinLevel, "critical")
	t.Setenv(envAuditBufferSize, "128")
	t.Setenv(envAuditFlushInterval, "3s")

	config, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}

	if !config.Audit.Enabled {
		t.Error("Audit should be enabled from environment")
	}
	if config.Audit.OutputFile != "/tmp/env-audit.jsonl" {
		t.Errorf("Unexpected output file: %s", config.Audit.OutputFile)
	}
	if config.Audit.MinLevel != AuditCritical {
		t.Errorf("Expected CRITICAL, got %v", config.Audit.MinLevel)
	}
	if config.Audit.BufferSize != 128 {
		t.Errorf("Expected 128, got %d", config.Audit.BufferSize)
	}
	if config.Audit.FlushInterval != 3*time.Second {
		t.Errorf("Expected 3s, got %v", config.Audit.FlushInterval)
	}
}

func TestConfigFromEnvInvalidValues(t *testing.T) {
	t.Setenv(envAuditEnabled, "maybe")
	if _, err := ConfigFromEnv(); err == nil {
		t.Error("Invalid boolean should fail")
	}
	t.Setenv(envAuditEnabled, "")

	t.Setenv(envAuditBufferSize, "lots")
	if _, err := ConfigFromEnv(); err == nil {
		t.Error("Invalid integer should fail")
	}
}

func TestLoadConfigMultiSourcePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hermes.yml")
	content := "audit:\n  enabled: true\n  buffer_size: 10\n  min_level: INFO\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	// Environment overrides the file
	t.Setenv(envAuditBufferSize, "77")

	config, err := LoadConfigMultiSource(path)
	if err != nil {
		t.Fatalf("LoadConfigMultiSource failed: %v", err)
	}
	if config.Audit.BufferSize != 77 {
		t.Errorf("Environment should override file: expected 77, got %d", config.Audit.BufferSize)
	}
	if !config.Audit.Enabled {
		t.Error("File value should survive where the environment is silent")
	}
}

func TestParseAuditLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    AuditLevel
		wantErr bool
	}{
		{"INFO", AuditInfo, false},
		{"warn", AuditWarn, false},
		{" Critical ", AuditCritical, false},
		{"SECURITY", AuditSecurity, false},
		{"verbose", AuditInfo, true},
		{"", AuditInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseAuditLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAuditLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseAuditLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
