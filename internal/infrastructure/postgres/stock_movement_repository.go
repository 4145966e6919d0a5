package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

// StockMovementRepo es el ledger de movimientos solo-agregar en PostgreSQL.
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador sobre un pool o una tx.
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

func (r *StockMovementRepo) Create(ctx context.Context, m *entity.StockMovement) error {
	query := `
		INSERT INTO stock_movements (id, merchant_id, product_id, batch_id, sale_id, type, quantity, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.MerchantID, m.ProductID, m.BatchID, nullIfEmpty(m.SaleID), m.Type, m.Quantity,
		m.CreatedAt, m.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}

func (r *StockMovementRepo) ListBySale(ctx context.Context, merchantID, saleID string) ([]*entity.StockMovement, error) {
	query := `
		SELECT id, merchant_id, product_id, batch_id, COALESCE(sale_id::text, ''), type, quantity, created_at, created_by
		FROM stock_movements
		WHERE merchant_id = $1 AND sale_id = $2
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, merchantID, saleID)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.StockMovement, error) {
		var m entity.StockMovement
		err := row.Scan(&m.ID, &m.MerchantID, &m.ProductID, &m.BatchID, &m.SaleID, &m.Type, &m.Quantity,
			&m.CreatedAt, &m.CreatedBy)
		return &m, err
	})
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	return out, nil
}
