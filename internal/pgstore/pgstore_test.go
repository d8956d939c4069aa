package pgstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	require.Equal(t, "ORD-000123", FormatNumber("ORD", 123))
	require.Equal(t, "PO-1234567", FormatNumber("PO", 1234567))
}

func TestPgErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	require.True(t, IsUniqueViolation(unique))
	require.False(t, IsUniqueViolation(fk))
	require.True(t, IsForeignKeyViolation(fk))
	require.False(t, IsForeignKeyViolation(errors.New("boom")))
}
