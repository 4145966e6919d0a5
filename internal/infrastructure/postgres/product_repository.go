package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo implementa repository.ProductRepository en PostgreSQL.
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador sobre un pool o una tx.
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// Create falla con domain.ErrDuplicate si el comercio ya usa el SKU.
func (r *ProductRepo) Create(ctx context.Context, p *entity.Product) error {
	query := `
		INSERT INTO products (id, merchant_id, sku, name, hsn_code, unit, price, gst_rate, is_service, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.MerchantID, p.SKU, p.Name, p.HSNCode, p.Unit, p.Price, p.GSTRate, p.IsService,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, merchantID, id string) (*entity.Product, error) {
	query := `
		SELECT id, merchant_id, sku, name, hsn_code, unit, price, gst_rate, is_service, created_at, updated_at
		FROM products WHERE id = $1 AND merchant_id = $2`
	var p entity.Product
	err := r.q.QueryRow(ctx, query, id, merchantID).Scan(
		&p.ID, &p.MerchantID, &p.SKU, &p.Name, &p.HSNCode, &p.Unit, &p.Price, &p.GSTRate, &p.IsService,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}
