// Package auditlog is the optional durable sink for the rule engine's
// event action: every EmitEvent call the engine makes can, if a Log is
// wired into the transaction's event sink, be persisted to Postgres for
// later review. Grounded on the teacher's repository-layer pattern
// (sqlx.DB handle, one method per query, errors wrapped not swallowed),
// adapted from service-row persistence to write-mostly event logging.
package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/ironbee-go/engine/internal/status"
)

// Event is one durable record of an engine-side "event" action firing.
type Event struct {
	TxID      string
	RuleID    string
	Message   string
	Fields    map[string]string
	CreatedAt time.Time
}

// Log is a Postgres-backed sink for Events, queried through sqlx the way
// the teacher's repositories do.
type Log struct {
	db *sqlx.DB
}

// Open connects to the Postgres DSN and wraps it in a Log. Callers should
// call Migrate once at startup to ensure the schema exists.
func Open(dsn string) (*Log, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("auditlog: connect: %w", err)
	}
	return &Log{db: db}, nil
}

// NewWithDB wraps an already-open sqlx.DB (used by tests with sqlmock).
func NewWithDB(db *sqlx.DB) *Log {
	return &Log{db: db}
}

// Close releases the underlying connection pool.
func (l *Log) Close() error {
	return l.db.Close()
}

// Migrate applies every pending migration under migrationsPath (a
// "file://" source directory) to the database at dsn.
func Migrate(dsn, migrationsPath string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("auditlog: open for migration: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("auditlog: migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("auditlog: migration instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("auditlog: migrate up: %w", err)
	}
	return nil
}

// Record persists ev. Intended to be wired as (or behind) a
// ruleengine.EventFunc: `log.Record(ctx, auditlog.Event{...})`.
func (l *Log) Record(ctx context.Context, ev Event) status.Status {
	fieldsJSON, err := json.Marshal(ev.Fields)
	if err != nil {
		return status.Other("auditlog: marshal fields", err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO audit_events (tx_id, rule_id, message, fields) VALUES ($1, $2, $3, $4)`,
		ev.TxID, ev.RuleID, ev.Message, fieldsJSON,
	)
	if err != nil {
		return status.Other("auditlog: insert event", err)
	}
	return status.Ok()
}

// RecentByTx returns the most recent events recorded for txID, newest
// first, bounded by limit.
func (l *Log) RecentByTx(ctx context.Context, txID string, limit int) ([]Event, error) {
	rows, err := l.db.QueryxContext(ctx,
		`SELECT tx_id, rule_id, message, fields, created_at FROM audit_events
		 WHERE tx_id = $1 ORDER BY created_at DESC LIMIT $2`,
		txID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("auditlog: query recent: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev         Event
			fieldsJSON []byte
		)
		if err := rows.Scan(&ev.TxID, &ev.RuleID, &ev.Message, &fieldsJSON, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("auditlog: scan row: %w", err)
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &ev.Fields); err != nil {
				return nil, fmt.Errorf("auditlog: unmarshal fields: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
