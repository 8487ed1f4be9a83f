// Package sqlite is a single-node registry backed by an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"mosaicod/internal/domain/ports"
	"mosaicod/internal/patterns"
)

// Config configures the embedded database
type Config struct {
	// Path is the database file, ":memory:" opens a private in-memory database
	Path           string `yaml:"path" env:"SQLITE_PATH" env-default:"mosaicod.db"`
	BusyTimeoutMs  int    `yaml:"busy-timeout-ms" env:"SQLITE_BUSY_TIMEOUT_MS" env-default:"5000"`
	MaxConnections int    `yaml:"max-connections" env:"SQLITE_MAX_CONNECTIONS" env-default:"4"`
}

var _ ports.Registry = (*Registry)(nil)

// Registry implements ports.Registry on SQLite
type Registry struct {
	db      *sql.DB
	subject patterns.Subject
}

// Open opens the database and creates the schema
func Open(ctx context.Context, config Config) (*Registry, error) {
	if config.BusyTimeoutMs <= 0 {
		config.BusyTimeoutMs = 5000
	}
	if config.MaxConnections <= 0 {
		config.MaxConnections = 4
	}

	path := config.Path
	inMemory := path == "" || path == ":memory:"
	if inMemory {
		// a named shared-cache database survives across pooled connections
		path = fmt.Sprintf("file:mosaicod-%s?mode=memory&cache=shared", uuid.NewString())
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := fmt.Sprintf("%s%s_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", path, sep, config.BusyTimeoutMs)
	if !inMemory {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open SQLite database")
	}
	if inMemory {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(config.MaxConnections)
		db.SetMaxIdleConns(config.MaxConnections / 2)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	return &Registry{db: db, subject: patterns.NewSubject()}, nil
}

// Subject returns the registry's subject
func (r *Registry) Subject() patterns.Subject {
	return r.subject
}

// Writer begins a transaction
func (r *Registry) Writer(ctx context.Context) (ports.Writer, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to begin transaction")
	}
	return &writer{tx: tx}, nil
}

// Reader returns a reader over committed data
func (r *Registry) Reader(context.Context) (ports.Reader, error) {
	return &reader{q: r.db}, nil
}

// Close closes the database
func (r *Registry) Close() error {
	return r.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS tbl_sequence (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	user_metadata TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tbl_topic (
	position             INTEGER PRIMARY KEY AUTOINCREMENT,
	id                   TEXT NOT NULL UNIQUE,
	sequence_id          TEXT NOT NULL REFERENCES tbl_sequence (id) ON DELETE CASCADE,
	name                 TEXT NOT NULL UNIQUE,
	serialization_format TEXT NOT NULL,
	ontology_tag         TEXT NOT NULL,
	user_metadata        TEXT NOT NULL,
	created_at           INTEGER NOT NULL,
	chunks_number        INTEGER NOT NULL DEFAULT 0,
	total_size_bytes     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS tbl_topic_sequence_idx ON tbl_topic (sequence_id, position);

CREATE TABLE IF NOT EXISTS tbl_chunk (
	topic_id    TEXT NOT NULL REFERENCES tbl_topic (id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	ts_start    INTEGER NOT NULL,
	ts_end      INTEGER NOT NULL,
	size_bytes  INTEGER NOT NULL,
	storage_key TEXT NOT NULL,
	digest      TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (topic_id, chunk_index),
	CHECK (ts_start <= ts_end)
);

CREATE TABLE IF NOT EXISTS tbl_notify (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	target      TEXT NOT NULL,
	notify_type TEXT NOT NULL,
	msg         TEXT,
	created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS tbl_notify_target_idx ON tbl_notify (target);

CREATE TABLE IF NOT EXISTS tbl_layer (
	position    INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT ''
);
`
