package pg

import (
	"context"
	"embed"
	"io/fs"
	"path"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies embedded migrations that were not applied yet
func (cm *ConnectionManager) RunMigrations(ctx context.Context) error {
	return cm.WithTx(ctx, func(tx pgx.Tx) error {
		return applyMigrations(ctx, tx)
	})
}

func applyMigrations(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS mosaico`); err != nil {
		return errors.Wrap(err, "failed to create schema")
	}
	if _, err := tx.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS mosaico.migrations (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`); err != nil {
		return errors.Wrap(err, "failed to create migrations table")
	}

	// serializes concurrent migrators
	if _, err := tx.Exec(ctx, `LOCK TABLE mosaico.migrations IN EXCLUSIVE MODE`); err != nil {
		return errors.Wrap(err, "failed to lock migrations table")
	}

	rows, err := tx.Query(ctx, `SELECT name FROM mosaico.migrations`)
	if err != nil {
		return errors.Wrap(err, "failed to query migrations")
	}
	applied, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return errors.Wrap(err, "failed to scan migration names")
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return errors.Wrap(err, "failed to read migrations")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if done[name] {
			continue
		}
		body, err := migrationsFS.ReadFile(path.Join("migrations", name))
		if err != nil {
			return errors.Wrapf(err, "failed to read migration %s", name)
		}
		if _, err := tx.Exec(ctx, string(body)); err != nil {
			return errors.Wrapf(err, "failed to apply migration %s", name)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO mosaico.migrations (name) VALUES ($1)`, name); err != nil {
			return errors.Wrapf(err, "failed to record migration %s", name)
		}
	}
	return nil
}
