package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"mosaicod/internal/domain/ports"
	"mosaicod/internal/patterns"
)

// Compile-time check that Registry implements ports.Registry
var _ ports.Registry = (*Registry)(nil)

// Registry implements ports.Registry on top of a PostgreSQL pool
type Registry struct {
	subject patterns.Subject
	cm      *ConnectionManager
}

// NewRegistry creates a registry over a connected ConnectionManager
func NewRegistry(cm *ConnectionManager) *Registry {
	return &Registry{
		subject: patterns.NewSubject(),
		cm:      cm,
	}
}

// Subject returns the registry's subject for observer pattern
func (r *Registry) Subject() patterns.Subject {
	return r.subject
}

// Writer opens a repeatable-read transaction
func (r *Registry) Writer(ctx context.Context) (ports.Writer, error) {
	tx, err := r.cm.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to begin transaction")
	}
	return &writer{tx: tx, ctx: ctx}, nil
}

// Reader opens a read-only snapshot transaction, released by Close
func (r *Registry) Reader(ctx context.Context) (ports.Reader, error) {
	tx, err := r.cm.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to begin read transaction")
	}
	return &reader{tx: tx, ctx: ctx}, nil
}

// Close closes the underlying pool
func (r *Registry) Close() error {
	return r.cm.Close()
}
