package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
)

var _ repository.BatchRepository = (*BatchRepo)(nil)

const batchColumns = `id, merchant_id, product_id, batch_number, expiry_date, manufacture_date,
	available, reserved, supplier_ref, version, created_at, updated_at`

// BatchRepo implementa repository.BatchRepository en PostgreSQL.
type BatchRepo struct {
	q Querier
}

// NewBatchRepository construye el adaptador sobre un pool o una tx.
func NewBatchRepository(q Querier) *BatchRepo {
	return &BatchRepo{q: q}
}

// Create falla con domain.ErrDuplicate si el producto ya tiene ese número de lote.
func (r *BatchRepo) Create(ctx context.Context, b *entity.Batch) error {
	query := `
		INSERT INTO batches (` + batchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		b.ID, b.MerchantID, b.ProductID, b.BatchNumber, b.ExpiryDate, b.ManufactureDate,
		b.Available, b.Reserved, b.SupplierRef, b.Version, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (r *BatchRepo) GetByID(ctx context.Context, merchantID, id string) (*entity.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1 AND merchant_id = $2`
	b, err := scanBatch(r.q.QueryRow(ctx, query, id, merchantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

func (r *BatchRepo) ListByProduct(ctx context.Context, merchantID, productID string) ([]*entity.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches
		WHERE merchant_id = $1 AND product_id = $2
		ORDER BY expiry_date ASC NULLS LAST, id`
	return r.list(ctx, "list batches", query, merchantID, productID)
}

// ListAvailable lee en orden FEFO. El asignador vuelve a ordenar; el orden de aquí
// solo mantiene estables los planes entre reintentos.
func (r *BatchRepo) ListAvailable(ctx context.Context, merchantID, productID string) ([]*entity.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches
		WHERE merchant_id = $1 AND product_id = $2 AND available > reserved
		ORDER BY expiry_date ASC NULLS LAST, id`
	return r.list(ctx, "list available batches", query, merchantID, productID)
}

func (r *BatchRepo) ListExpiring(ctx context.Context, merchantID string, until time.Time) ([]*entity.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches
		WHERE merchant_id = $1 AND available > reserved
		  AND expiry_date IS NOT NULL AND expiry_date <= $2::date
		ORDER BY expiry_date ASC, id`
	return r.list(ctx, "list expiring batches", query, merchantID, until)
}

// AdjustAvailable es un único UPDATE condicional: solo aplica mientras la
// versión no cambió y la nueva cantidad aún cubre las reservas.
func (r *BatchRepo) AdjustAvailable(ctx context.Context, batchID string, expectedVersion int64, delta decimal.Decimal) error {
	query := `
		UPDATE batches
		SET available = available + $3, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		  AND available + $3 >= reserved AND available + $3 >= 0`
	tag, err := r.q.Exec(ctx, query, batchID, expectedVersion, delta)
	if err != nil {
		if isCheckViolation(err) {
			return &domain.StockConflictError{BatchID: batchID}
		}
		return fmt.Errorf("adjust batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.StockConflictError{BatchID: batchID}
	}
	return nil
}

func (r *BatchRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.Batch, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.Batch, error) {
		return scanBatch(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func scanBatch(row pgx.Row) (*entity.Batch, error) {
	var b entity.Batch
	err := row.Scan(
		&b.ID, &b.MerchantID, &b.ProductID, &b.BatchNumber, &b.ExpiryDate, &b.ManufactureDate,
		&b.Available, &b.Reserved, &b.SupplierRef, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
