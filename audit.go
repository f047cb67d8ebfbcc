// audit.go: Audit trail for Hermes dispatch operations
//
// Records every mutation of the dispatch tables (listener adds, removals,
// deferred removals) and every fire, for accountability in systems where
// event wiring changes at runtime. The trail records operations on the
// manager; it never persists or replays the events themselves.
//
// Features:
// - Immutable audit records with tamper-detection checksums
// - Buffered writes with background flushing
// - Pluggable storage (unified SQLite or JSONL)
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hermes

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// AuditLevel represents the severity of audit records
type AuditLevel int

const (
	AuditInfo AuditLevel = iota
	AuditWarn
	AuditCritical
	AuditSecurity
)

func (al AuditLevel) String() string {
	switch al {
	case AuditInfo:
		return "INFO"
	case AuditWarn:
		return "WARN"
	case AuditCritical:
		return "CRITICAL"
	case AuditSecurity:
		return "SECURITY"
	default:
		return "UNKNOWN"
	}
}

// ParseAuditLevel converts a level name (case-insensitive) to AuditLevel.
func ParseAuditLevel(s string) (AuditLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INFO":
		return AuditInfo, nil
	case "WARN":
		return AuditWarn, nil
	case "CRITICAL":
		return AuditCritical, nil
	case "SECURITY":
		return AuditSecurity, nil
	default:
		return AuditInfo, errors.New(ErrCodeInvalidConfig, "unknown audit level: "+s)
	}
}

// Audit operation names recorded by the manager.
const (
	auditOpListenerAdded   = "listener_added"
	auditOpListenerRemoved = "listener_removed"
	auditOpRemoveDeferred  = "remove_deferred"
	auditOpEventFired      = "event_fired"
	auditOpManagerClosed   = "manager_closed"
)

// AuditRecord represents a single auditable dispatch operation
type AuditRecord struct {
	Timestamp   time.Time              `json:"timestamp"`
	Level       AuditLevel             `json:"level"`
	Operation   string                 `json:"operation"`
	Component   string                 `json:"component"`
	EventID     int                    `json:"event_id"`
	Stub        ListenerStub           `json:"stub"`
	FiringDepth int                    `json:"firing_depth"`
	Listeners   int                    `json:"listeners"`
	ProcessID   int                    `json:"process_id"`
	ProcessName string                 `json:"process_name"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Checksum    string                 `json:"checksum"` // For tamper detection
}

// AuditConfig configures the audit system
type AuditConfig struct {
	Enabled       bool          `json:"enabled"`
	OutputFile    string        `json:"output_file"`
	MinLevel      AuditLevel    `json:"min_level"`
	BufferSize    int           `json:"buffer_size"`
	FlushInterval time.Duration `json:"flush_interval"`
}

// DefaultAuditConfig returns an enabled audit configuration backed by the
// unified SQLite store.
//
// An empty OutputFile selects the system-wide SQLite database, which
// consolidates dispatch audit records from every Hermes manager in the
// process for cross-component correlation. Specify an OutputFile with a
// .jsonl extension for the file-based format instead.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:       true,
		OutputFile:    "", // Empty triggers unified SQLite backend
		MinLevel:      AuditInfo,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
	}
}

// AuditLogger provides buffered audit logging with pluggable backends.
//
// The logger buffers records and flushes them in the background, keeping
// the cost on the dispatch path to a timestamp, a checksum and a slice
// append. Unlike the manager it serves, the logger is internally
// synchronized: the background flusher shares the buffer with the
// dispatch thread.
type AuditLogger struct {
	config      AuditConfig
	backend     auditBackend
	buffer      []AuditRecord
	bufferMu    sync.Mutex
	flushTicker *time.Ticker
	stopCh      chan struct{}
	processID   int
	processName string
}

// NewAuditLogger creates an audit logger with automatic backend selection:
// the unified SQLite backend when available, the JSONL file backend when
// requested via a .jsonl OutputFile or as a fallback.
func NewAuditLogger(config AuditConfig) (*AuditLogger, error) {
	if !config.Enabled {
		return &AuditLogger{config: config}, nil
	}

	backend, err := createAuditBackend(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit backend: %w", err)
	}

	logger := &AuditLogger{
		config:      config,
		backend:     backend,
		buffer:      make([]AuditRecord, 0, config.BufferSize),
		stopCh:      make(chan struct{}),
		processID:   os.Getpid(),
		processName: processName(),
	}

	if config.FlushInterval > 0 {
		logger.flushTicker = time.NewTicker(config.FlushInterval)
		go logger.flushLoop()
	}

	return logger, nil
}

// Log records one audit entry. Safe on a nil or disabled logger.
func (al *AuditLogger) Log(level AuditLevel, operation string, evID int, stub ListenerStub, depth, listeners int, context map[string]interface{}) {
	if al == nil || al.backend == nil || !al.config.Enabled || level < al.config.MinLevel {
		return
	}

	// Cached timestamp: dispatch may log thousands of records per second
	record := AuditRecord{
		Timestamp:   timecache.CachedTime(),
		Level:       level,
		Operation:   operation,
		Component:   "hermes",
		EventID:     evID,
		Stub:        stub,
		FiringDepth: depth,
		Listeners:   listeners,
		ProcessID:   al.processID,
		ProcessName: al.processName,
		Context:     context,
	}
	record.Checksum = al.checksum(record)

	al.bufferMu.Lock()
	al.buffer = append(al.buffer, record)
	if len(al.buffer) >= al.config.BufferSize {
		_ = al.flushBufferUnsafe() // Ignore flush errors during buffering to keep dispatch fast
	}
	al.bufferMu.Unlock()
}

// LogListenerAdded records a successful registration.
func (al *AuditLogger) LogListenerAdded(evID int, stub ListenerStub, depth int) {
	al.Log(AuditInfo, auditOpListenerAdded, evID, stub, depth, 0, nil)
}

// LogListenerRemoved records a listener leaving the tables.
func (al *AuditLogger) LogListenerRemoved(evID int, stub ListenerStub) {
	al.Log(AuditInfo, auditOpListenerRemoved, evID, stub, 0, 0, nil)
}

// LogRemoveDeferred records a removal queued while firing. Warn level:
// deferred removals are legal but worth seeing when debugging dispatch
// order.
func (al *AuditLogger) LogRemoveDeferred(evID int, stub ListenerStub, depth int) {
	al.Log(AuditWarn, auditOpRemoveDeferred, evID, stub, depth, 0, nil)
}

// LogEventFired records one completed fire with its invoked-listener
// count and the depth at which it ran.
func (al *AuditLogger) LogEventFired(evID, listeners, depth int) {
	al.Log(AuditInfo, auditOpEventFired, evID, InvalidListenerStub, depth, listeners, nil)
}

// LogManagerClosed records the manager teardown.
func (al *AuditLogger) LogManagerClosed() {
	al.Log(AuditCritical, auditOpManagerClosed, 0, InvalidListenerStub, 0, 0, nil)
}

// Flush immediately writes all buffered records
func (al *AuditLogger) Flush() error {
	if al == nil || al.backend == nil {
		return nil
	}
	al.bufferMu.Lock()
	defer al.bufferMu.Unlock()
	return al.flushBufferUnsafe()
}

// Close gracefully shuts down the audit logger
func (al *AuditLogger) Close() error {
	if al == nil || al.backend == nil {
		return nil
	}

	close(al.stopCh)
	if al.flushTicker != nil {
		al.flushTicker.Stop()
	}

	if err := al.Flush(); err != nil {
		return fmt.Errorf("failed to flush audit logger during close: %w", err)
	}

	if err := al.backend.Close(); err != nil {
		return fmt.Errorf("failed to close audit backend: %w", err)
	}
	return nil
}

// flushLoop runs the background flush process
func (al *AuditLogger) flushLoop() {
	for {
		select {
		case <-al.flushTicker.C:
			_ = al.Flush() // Ignore flush errors in background process
		case <-al.stopCh:
			return
		}
	}
}

// flushBufferUnsafe writes the buffer to the backend (caller holds bufferMu).
func (al *AuditLogger) flushBufferUnsafe() error {
	if len(al.buffer) == 0 {
		return nil
	}

	if err := al.backend.Write(al.buffer); err != nil {
		return fmt.Errorf("failed to write audit records to backend: %w", err)
	}

	al.buffer = al.buffer[:0]
	return nil
}

// checksum creates a tamper-detection checksum using SHA-256
func (al *AuditLogger) checksum(record AuditRecord) string {
	data := fmt.Sprintf("%s:%s:%d:%d:%d",
		record.Timestamp.Format(time.RFC3339Nano),
		record.Operation, record.EventID, record.Stub, record.FiringDepth)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

func processName() string {
	return "hermes" // Could read from /proc/self/comm
}
