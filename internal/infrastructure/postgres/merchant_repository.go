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

var _ repository.MerchantRepository = (*MerchantRepo)(nil)

const merchantColumns = `id, name, business_name, gstin, state_code, address, city, pincode, phone, email,
	owner_email, password_hash, created_at, updated_at`

// MerchantRepo implementa repository.MerchantRepository en PostgreSQL.
type MerchantRepo struct {
	q Querier
}

// NewMerchantRepository construye el adaptador sobre un pool o una tx.
func NewMerchantRepository(q Querier) *MerchantRepo {
	return &MerchantRepo{q: q}
}

func (r *MerchantRepo) Create(ctx context.Context, m *entity.Merchant) error {
	query := `
		INSERT INTO merchants (` + merchantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.Name, m.BusinessName, m.GSTIN, m.StateCode, m.Address, m.City, m.Pincode,
		m.Phone, m.Email, m.OwnerEmail, m.PasswordHash, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert merchant: %w", err)
	}
	return nil
}

func (r *MerchantRepo) GetByID(ctx context.Context, id string) (*entity.Merchant, error) {
	return r.getOne(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE id = $1`, id)
}

func (r *MerchantRepo) GetByOwnerEmail(ctx context.Context, email string) (*entity.Merchant, error) {
	if email == "" {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE lower(owner_email) = lower($1)`, email)
}

func (r *MerchantRepo) getOne(ctx context.Context, query string, arg string) (*entity.Merchant, error) {
	var m entity.Merchant
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&m.ID, &m.Name, &m.BusinessName, &m.GSTIN, &m.StateCode, &m.Address, &m.City, &m.Pincode,
		&m.Phone, &m.Email, &m.OwnerEmail, &m.PasswordHash, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get merchant: %w", err)
	}
	return &m, nil
}
