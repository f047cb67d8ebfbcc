// audit_backend.go: Storage backends for the Hermes dispatch audit trail
//
// Defines the pluggable backend architecture for audit storage: a unified
// SQLite database for queryable trails, with a JSONL file backend for
// deployments that ship logs to aggregators. Backend selection degrades
// gracefully (SQLite, then JSONL) so audit setup never prevents a manager
// from starting.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package hermes

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// auditBackend abstracts audit storage so SQLite, JSONL or future
// backends can be swapped without changing the AuditLogger API. The
// contract is deliberately minimal: Write, Flush, Close, Maintenance,
// GetStats.
type auditBackend interface {
	// Write persists a batch of audit records.
	// Implementations must handle concurrent writes safely.
	Write(records []AuditRecord) error

	// Flush ensures all pending writes are committed to storage.
	Flush() error

	// Close releases all resources. The backend must not be used after.
	Close() error

	// Maintenance performs backend-specific upkeep: retention cleanup
	// and optimization for SQLite, nothing for JSONL.
	Maintenance() error

	// GetStats returns statistics about the stored audit trail.
	GetStats() (*AuditStoreStats, error)
}

// createAuditBackend selects a backend for the given configuration:
// a .jsonl OutputFile forces the JSONL backend, everything else tries
// the unified SQLite backend first and falls back to JSONL.
func createAuditBackend(config AuditConfig) (auditBackend, error) {
	if config.OutputFile != "" && filepath.Ext(config.OutputFile) == ".jsonl" {
		return newJSONLBackend(config)
	}

	backend, err := newSQLiteBackend(config)
	if err == nil {
		return backend, nil
	}

	jsonlBackend, jsonlErr := newJSONLBackend(config)
	if jsonlErr != nil {
		return nil, fmt.Errorf("all audit backends failed - SQLite: %w, JSONL: %v", err, jsonlErr)
	}
	return jsonlBackend, nil
}

// UnifiedAuditPath returns the standard path for the unified SQLite audit
// database. One database per system consolidates records from every
// Hermes manager in every process whose OutputFile is neither a .db path
// (which gets its own database) nor a .jsonl path (which uses JSONL).
func UnifiedAuditPath() string {
	return filepath.Join(os.TempDir(), "hermes", "dispatch-audit.db")
}

// sqliteAuditBackend stores audit records in a single SQLite database.
// The original OutputFile is tracked per record for source attribution.
type sqliteAuditBackend struct {
	db         *sql.DB
	dbPath     string
	sourceFile string
	insertStmt *sql.Stmt
	mu         sync.RWMutex
	closed     bool
}

// newSQLiteBackend opens (or creates) the audit database, migrates the
// schema and prepares the batch-insert statement. WAL mode keeps writers
// from blocking the occasional reader.
func newSQLiteBackend(config AuditConfig) (*sqliteAuditBackend, error) {
	dbPath := UnifiedAuditPath()
	if config.OutputFile != "" && filepath.Ext(config.OutputFile) == ".db" {
		// Respect explicit .db paths (useful for tests and custom setups)
		dbPath = config.OutputFile
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit database directory: %w", err)
	}

	// WAL for non-blocking writes, busy timeout for multi-process use,
	// NORMAL sync as the durability/throughput balance for audit data
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=1000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	backend := &sqliteAuditBackend{
		db:         db,
		dbPath:     dbPath,
		sourceFile: config.OutputFile,
	}

	if err := backend.initializeSchema(); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to initialize audit database schema: %w", err)
	}
	if err := backend.prepareStatements(); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to prepare audit database statements: %w", err)
	}

	// Retention cleanup on startup; upkeep failures are not fatal
	_ = backend.performMaintenance()

	return backend, nil
}

// initializeSchema creates the dispatch audit schema with version
// tracking, so future schema changes can migrate in place.
func (s *sqliteAuditBackend) initializeSchema() error {
	const currentSchemaVersion = 1

	createSchemaInfoSQL := `
	CREATE TABLE IF NOT EXISTS schema_info (
		version INTEGER PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := s.db.Exec(createSchemaInfoSQL); err != nil {
		return fmt.Errorf("failed to create schema_info table: %w", err)
	}

	var version int
	err := s.db.QueryRow("SELECT version FROM schema_info ORDER BY version DESC LIMIT 1").Scan(&version)
	if err != nil {
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check schema version: %w", err)
		}
		version = 0
	}

	if version < currentSchemaVersion {
		if err := s.migrateToV1(); err != nil {
			return fmt.Errorf("schema migration to v1 failed: %w", err)
		}
		if _, err := s.db.Exec(`
			INSERT OR REPLACE INTO schema_info (version, updated_at)
			VALUES (?, CURRENT_TIMESTAMP)
		`, currentSchemaVersion); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	return nil
}

// migrateToV1 creates the dispatch audit table and its indexes.
func (s *sqliteAuditBackend) migrateToV1() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS dispatch_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		level TEXT NOT NULL,
		operation TEXT NOT NULL,
		component TEXT NOT NULL,

		-- Dispatch coordinates
		event_id INTEGER NOT NULL,
		stub INTEGER NOT NULL,
		firing_depth INTEGER NOT NULL,
		listeners INTEGER NOT NULL,

		-- Source tracking and correlation
		original_output_file TEXT NOT NULL,
		process_id INTEGER NOT NULL,
		process_name TEXT NOT NULL,

		context TEXT, -- JSON blob for flexible metadata
		checksum TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err = tx.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create dispatch_audit table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_dispatch_timestamp ON dispatch_audit(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_dispatch_operation ON dispatch_audit(operation)",
		"CREATE INDEX IF NOT EXISTS idx_dispatch_event_id ON dispatch_audit(event_id)",
		"CREATE INDEX IF NOT EXISTS idx_dispatch_op_event ON dispatch_audit(operation, event_id, timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_dispatch_created_at ON dispatch_audit(created_at)",
	}
	for _, indexSQL := range indexes {
		if _, err = tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}
	return nil
}

// performMaintenance cleans records beyond the retention window and
// refreshes query-planner statistics.
func (s *sqliteAuditBackend) performMaintenance() error {
	const defaultRetentionDays = 90

	cleanupSQL := `
		DELETE FROM dispatch_audit
		WHERE created_at < datetime('now', '-' || ? || ' days')
	`
	if _, err := s.db.Exec(cleanupSQL, defaultRetentionDays); err != nil {
		return fmt.Errorf("failed to cleanup old audit records: %w", err)
	}

	for _, task := range []string{"PRAGMA optimize", "PRAGMA wal_checkpoint(FULL)"} {
		if _, err := s.db.Exec(task); err != nil {
			continue
		}
	}
	return nil
}

// prepareStatements prepares the batch-insert statement so high-frequency
// logging skips SQL parsing.
func (s *sqliteAuditBackend) prepareStatements() error {
	insertSQL := `
	INSERT INTO dispatch_audit (
		timestamp, level, operation, component,
		event_id, stub, firing_depth, listeners,
		original_output_file, process_id, process_name,
		context, checksum
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := s.db.Prepare(insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	s.insertStmt = stmt
	return nil
}

// AuditStoreStats describes the stored audit trail.
type AuditStoreStats struct {
	TotalRecords       int64            `json:"total_records"`
	RecordsByLevel     map[string]int64 `json:"records_by_level"`
	RecordsByOperation map[string]int64 `json:"records_by_operation"`
	OldestRecord       *time.Time       `json:"oldest_record"`
	NewestRecord       *time.Time       `json:"newest_record"`
	StoreSize          int64            `json:"store_size_bytes"`
	SchemaVersion      int              `json:"schema_version"`
}

// Write persists a batch of audit records inside one transaction.
func (s *sqliteAuditBackend) Write(records []AuditRecord) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("cannot write to closed SQLite audit backend")
	}
	s.mu.RUnlock()

	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				fmt.Fprintf(os.Stderr, "Failed to rollback audit transaction: %v\n", rollbackErr)
			}
		}
	}()

	txStmt := tx.Stmt(s.insertStmt)
	defer func() {
		_ = txStmt.Close()
	}()

	for _, record := range records {
		if err = s.insertRecord(txStmt, record); err != nil {
			return fmt.Errorf("failed to insert audit record: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit transaction: %w", err)
	}
	return nil
}

// insertRecord binds one record to the prepared statement.
func (s *sqliteAuditBackend) insertRecord(stmt *sql.Stmt, record AuditRecord) error {
	contextJSON := ""
	if record.Context != nil {
		data, err := json.Marshal(record.Context)
		if err != nil {
			return fmt.Errorf("failed to serialize context: %w", err)
		}
		contextJSON = string(data)
	}

	_, err := stmt.Exec(
		record.Timestamp.Format(time.RFC3339Nano),
		record.Level.String(),
		record.Operation,
		record.Component,
		record.EventID,
		int64(record.Stub),
		record.FiringDepth,
		record.Listeners,
		s.sourceFile,
		record.ProcessID,
		record.ProcessName,
		contextJSON,
		record.Checksum,
	)
	return err
}

// Flush checkpoints the WAL so recent transactions reach the main
// database file.
func (s *sqliteAuditBackend) Flush() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil
	}
	s.mu.RUnlock()

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to flush SQLite audit backend: %w", err)
	}
	return nil
}

// Maintenance implements auditBackend.
func (s *sqliteAuditBackend) Maintenance() error {
	return s.performMaintenance()
}

// GetStats implements auditBackend with full database statistics.
func (s *sqliteAuditBackend) GetStats() (*AuditStoreStats, error) {
	stats := &AuditStoreStats{
		RecordsByLevel:     make(map[string]int64),
		RecordsByOperation: make(map[string]int64),
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM dispatch_audit").Scan(&stats.TotalRecords); err != nil {
		return nil, fmt.Errorf("failed to get total record count: %w", err)
	}

	if err := s.groupCount("level", stats.RecordsByLevel); err != nil {
		return nil, err
	}
	if err := s.groupCount("operation", stats.RecordsByOperation); err != nil {
		return nil, err
	}

	var oldestStr, newestStr sql.NullString
	err := s.db.QueryRow(`
		SELECT MIN(created_at), MAX(created_at) FROM dispatch_audit
	`).Scan(&oldestStr, &newestStr)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get record time range: %w", err)
	}
	if oldestStr.Valid {
		if oldest, err := time.Parse("2006-01-02 15:04:05", oldestStr.String); err == nil {
			stats.OldestRecord = &oldest
		}
	}
	if newestStr.Valid {
		if newest, err := time.Parse("2006-01-02 15:04:05", newestStr.String); err == nil {
			stats.NewestRecord = &newest
		}
	}

	if err := s.db.QueryRow("SELECT version FROM schema_info ORDER BY version DESC LIMIT 1").Scan(&stats.SchemaVersion); err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}

	if info, err := os.Stat(s.dbPath); err == nil {
		stats.StoreSize = info.Size()
	}

	return stats, nil
}

// groupCount fills dest with COUNT(*) grouped by the given column.
func (s *sqliteAuditBackend) groupCount(column string, dest map[string]int64) error {
	rows, err := s.db.Query(fmt.Sprintf("SELECT %s, COUNT(*) FROM dispatch_audit GROUP BY %s", column, column))
	if err != nil {
		return fmt.Errorf("failed to get records by %s: %w", column, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s stats: %w", column, err)
		}
		dest[key] = count
	}
	return rows.Err()
}

// Close flushes pending WAL data and releases the statement and the
// connection. Safe to call multiple times.
func (s *sqliteAuditBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	var errs []error

	// Final flush so WAL data is committed before the connection goes away
	s.mu.Unlock()
	if err := s.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush audit backend during close: %w", err))
	}
	s.mu.Lock()

	if s.insertStmt != nil {
		if err := s.insertStmt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close insert statement: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	s.closed = true

	if len(errs) > 0 {
		return fmt.Errorf("errors closing SQLite audit backend: %v", errs)
	}
	return nil
}

// ReadAuditRecords reads the most recent records from a dispatch audit
// database, newest first. Used by the CLI audit commands; opens the
// database read-only so it never contends with live writers.
func ReadAuditRecords(dbPath string, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	rows, err := db.Query(`
		SELECT timestamp, level, operation, component,
		       event_id, stub, firing_depth, listeners,
		       process_id, process_name, context, checksum
		FROM dispatch_audit
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []AuditRecord
	for rows.Next() {
		var record AuditRecord
		var tsStr, levelStr, contextJSON string
		var stub int64
		if err := rows.Scan(&tsStr, &levelStr, &record.Operation, &record.Component,
			&record.EventID, &stub, &record.FiringDepth, &record.Listeners,
			&record.ProcessID, &record.ProcessName, &contextJSON, &record.Checksum); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		record.Stub = ListenerStub(stub)
		if ts, err := time.Parse(time.RFC3339Nano, tsStr); err == nil {
			record.Timestamp = ts
		}
		if level, err := ParseAuditLevel(levelStr); err == nil {
			record.Level = level
		}
		if contextJSON != "" {
			_ = json.Unmarshal([]byte(contextJSON), &record.Context)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// jsonlAuditBackend appends records to a JSONL file, one JSON object per
// line. The format ships cleanly to log aggregators and stays grep-able.
type jsonlAuditBackend struct {
	file       *os.File
	sourceFile string
	mu         sync.Mutex
	closed     bool
}

// newJSONLBackend opens (or creates) the JSONL audit file with
// owner-only permissions.
func newJSONLBackend(config AuditConfig) (*jsonlAuditBackend, error) {
	if config.OutputFile == "" {
		return nil, fmt.Errorf("JSONL backend requires OutputFile to be specified")
	}

	if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0750); err != nil {
		return nil, fmt.Errorf("failed to create JSONL audit log directory: %w", err)
	}

	file, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL audit log file: %w", err)
	}

	return &jsonlAuditBackend{
		file:       file,
		sourceFile: config.OutputFile,
	}, nil
}

// Write appends each record as one JSON line.
func (j *jsonlAuditBackend) Write(records []AuditRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return fmt.Errorf("cannot write to closed JSONL audit backend")
	}

	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to serialize audit record: %w", err)
		}
		if _, err := j.file.Write(data); err != nil {
			return fmt.Errorf("failed to write audit record to JSONL: %w", err)
		}
		if _, err := j.file.Write([]byte("\n")); err != nil {
			return fmt.Errorf("failed to write audit record newline: %w", err)
		}
	}
	return nil
}

// Flush fsyncs the JSONL file.
func (j *jsonlAuditBackend) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync JSONL audit file: %w", err)
	}
	return nil
}

// Maintenance implements auditBackend. JSONL files are self-maintaining;
// rotation and compression belong to the surrounding log infrastructure.
func (j *jsonlAuditBackend) Maintenance() error {
	return nil
}

// GetStats returns the limited statistics a flat file can provide.
func (j *jsonlAuditBackend) GetStats() (*AuditStoreStats, error) {
	stats := &AuditStoreStats{
		RecordsByLevel:     make(map[string]int64),
		RecordsByOperation: make(map[string]int64),
		SchemaVersion:      1,
	}
	if info, err := os.Stat(j.sourceFile); err == nil {
		stats.StoreSize = info.Size()
	}
	return stats, nil
}

// Close releases the file handle. Safe to call multiple times.
func (j *jsonlAuditBackend) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}

	var err error
	if j.file != nil {
		err = j.file.Close()
	}
	j.closed = true
	return err
}
