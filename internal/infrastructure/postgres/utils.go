package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier es el subconjunto de *pgxpool.Pool y pgx.Tx que usan los repositorios,
// así el mismo repositorio funciona sobre el pool o dentro de una transacción.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// isUniqueViolation detecta un unique_violation (23505).
func isUniqueViolation(err error) bool {
	return pgCode(err) == "23505"
}

// isCheckViolation detecta un check_violation (23514).
func isCheckViolation(err error) bool {
	return pgCode(err) == "23514"
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// nullIfEmpty convierte "" en NULL de SQL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
