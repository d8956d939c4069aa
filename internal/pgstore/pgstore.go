// Package pgstore holds the Postgres plumbing shared by the repositories.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// TxStarter begins transactions; *pgxpool.Pool implements it.
type TxStarter interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// InTx runs fn inside a transaction and commits when fn returns nil.
func InTx(ctx context.Context, db TxStarter, fn func(pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Document counter kinds.
const (
	KindOrder    = "order"
	KindPurchase = "purchase"
)

// NextNumber atomically increments the tenant's counter for kind and returns
// the new value. Run it inside the transaction that inserts the document so
// a rollback does not leave a gap.
func NextNumber(ctx context.Context, db DBTX, tenantID uuid.UUID, kind string) (int64, error) {
	const q = `
		INSERT INTO document_counters (tenant_id, kind, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, kind)
		DO UPDATE SET last_value = document_counters.last_value + 1
		RETURNING last_value`
	var n int64
	if err := db.QueryRow(ctx, q, tenantID, kind).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to allocate %s number: %w", kind, err)
	}
	return n, nil
}

// FormatNumber renders a document number such as ORD-000123.
func FormatNumber(prefix string, n int64) string {
	return fmt.Sprintf("%s-%06d", prefix, n)
}

// IsUniqueViolation reports a unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation reports a foreign key failure, e.g. an unknown product.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
