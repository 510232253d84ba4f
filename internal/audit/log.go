// Package audit implements the gateway's append-only audit trail: one row
// per dispatched low-level command and one row per task lifecycle
// transition, persisted to a local SQLite file. Not part of the distilled
// spec — added because the original source's per-route test suites
// (original_source's test_*_routes.py files) assert heavily on command
// and auth audit behavior the distillation otherwise dropped, and because
// the teacher repo already carries a SQLite storage layer for exactly this
// kind of write-mostly, query-occasionally log. The audit trail is
// write-behind: it never gates or informs a dispatch decision, matching
// the spec's "controller is authoritative, cache is advisory" posture.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Ntrondle/pnp-gateway/internal/command"
)

// CommandEntry is one row of the command audit log.
type CommandEntry struct {
	ID         int64
	Kind       command.Kind
	Commands   []string
	Success    bool
	Diagnostic string
	Timestamp  time.Time
}

// TaskEvent is one row of the task lifecycle audit log.
type TaskEvent struct {
	ID        int64
	Key       string
	Event     string
	Timestamp time.Time
}

// Log is the SQLite-backed audit trail. Grounded on the teacher's
// internal/storage/sqlite.SQLiteStorage: a pure-Go driver (no CGO), WAL
// mode for concurrent readers during writes, 0600 file permissions, and a
// single *sql.DB shared across goroutines (SQLite serializes writers
// itself; Go's database/sql pool handles the rest).
type Log struct {
	db     *sql.DB
	logger *slog.Logger
	mu     sync.Mutex
}

// Open creates (or reuses) a SQLite file at path and initializes its
// schema. Parent directories are created with mode 0700.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return nil, fmt.Errorf("audit: path cannot be empty")
	}
	if strings.Contains(path, "..") {
		return nil, fmt.Errorf("audit: path must not contain '..'")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping: %w", err)
	}

	l := &Log{db: db, logger: logger}
	if err := l.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.Chmod(path, 0600); err != nil {
		logger.Warn("audit: failed to set file permissions to 0600", "path", path, "error", err)
	}

	logger.Info("audit log initialized", "path", path, "wal_mode", true)
	return l, nil
}

func (l *Log) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS command_audit (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    commands TEXT NOT NULL,
    success INTEGER NOT NULL,
    diagnostic TEXT NOT NULL,
    occurred_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_command_audit_occurred_at ON command_audit(occurred_at);
CREATE INDEX IF NOT EXISTS idx_command_audit_kind ON command_audit(kind);

CREATE TABLE IF NOT EXISTS task_audit (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    key TEXT NOT NULL,
    event TEXT NOT NULL,
    occurred_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_audit_occurred_at ON task_audit(occurred_at);
`
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("audit: init schema: %w", err)
	}
	return nil
}

// RecordCommand appends one command_audit row. Satisfies
// internal/dispatcher.AuditLog. Errors are logged, not returned — a
// failing audit write must never fail the request it's recording.
func (l *Log) RecordCommand(kind command.Kind, commands []string, success bool, diagnostic string) {
	encoded, err := json.Marshal(commands)
	if err != nil {
		l.logger.Error("audit: failed to encode commands", "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.db.Exec(
		`INSERT INTO command_audit (kind, commands, success, diagnostic, occurred_at) VALUES (?, ?, ?, ?, ?)`,
		string(kind), string(encoded), boolToInt(success), diagnostic, time.Now().UnixMilli(),
	)
	if err != nil {
		l.logger.Error("audit: failed to record command", "kind", kind, "error", err)
	}
}

// RecordTaskEvent appends one task_audit row for a lifecycle transition
// (started/cancelled/completed/failed).
func (l *Log) RecordTaskEvent(key, event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.Exec(
		`INSERT INTO task_audit (key, event, occurred_at) VALUES (?, ?, ?)`,
		key, event, time.Now().UnixMilli(),
	)
	if err != nil {
		l.logger.Error("audit: failed to record task event", "key", key, "event", event, "error", err)
	}
}

// CommandFilter narrows ListCommands (spec-supplemental GET
// /api/v1/audit/commands).
type CommandFilter struct {
	Kind    command.Kind
	Success *bool
	Limit   int
	Offset  int
}

// ListCommands returns command_audit rows matching filter, newest first.
func (l *Log) ListCommands(ctx context.Context, filter CommandFilter) ([]CommandEntry, error) {
	query := `SELECT id, kind, commands, success, diagnostic, occurred_at FROM command_audit WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Success != nil {
		query += ` AND success = ?`
		args = append(args, boolToInt(*filter.Success))
	}
	query += ` ORDER BY occurred_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: list commands: %w", err)
	}
	defer rows.Close()

	var out []CommandEntry
	for rows.Next() {
		var (
			e            CommandEntry
			kind         string
			commandsJSON string
			success      int
			occurredAtMs int64
		)
		if err := rows.Scan(&e.ID, &kind, &commandsJSON, &success, &e.Diagnostic, &occurredAtMs); err != nil {
			return nil, fmt.Errorf("audit: scan command row: %w", err)
		}
		e.Kind = command.Kind(kind)
		e.Success = success != 0
		e.Timestamp = time.UnixMilli(occurredAtMs).UTC()
		if err := json.Unmarshal([]byte(commandsJSON), &e.Commands); err != nil {
			return nil, fmt.Errorf("audit: decode commands column: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
