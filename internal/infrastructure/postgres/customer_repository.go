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

var _ repository.CustomerRepository = (*CustomerRepo)(nil)

// CustomerRepo implementa repository.CustomerRepository en PostgreSQL.
type CustomerRepo struct {
	q Querier
}

// NewCustomerRepository construye el adaptador sobre un pool o una tx.
func NewCustomerRepository(q Querier) *CustomerRepo {
	return &CustomerRepo{q: q}
}

func (r *CustomerRepo) Create(ctx context.Context, c *entity.Customer) error {
	query := `
		INSERT INTO customers (id, merchant_id, name, gstin, state_code, address, city, pincode, phone, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		c.ID, c.MerchantID, c.Name, c.GSTIN, c.StateCode, c.Address, c.City, c.Pincode,
		c.Phone, c.Email, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

// GetByID se limita al comercio: el cliente de otro comercio se lee como inexistente.
func (r *CustomerRepo) GetByID(ctx context.Context, merchantID, id string) (*entity.Customer, error) {
	query := `
		SELECT id, merchant_id, name, gstin, state_code, address, city, pincode, phone, email, created_at, updated_at
		FROM customers WHERE id = $1 AND merchant_id = $2`
	var c entity.Customer
	err := r.q.QueryRow(ctx, query, id, merchantID).Scan(
		&c.ID, &c.MerchantID, &c.Name, &c.GSTIN, &c.StateCode, &c.Address, &c.City, &c.Pincode,
		&c.Phone, &c.Email, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}
