package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
)

var _ repository.EInvoiceConfigRepository = (*EInvoiceConfigRepo)(nil)

// EInvoiceConfigRepo guarda las credenciales IRP por comercio. Los secretos llegan
// ya sellados y se guardan tal cual.
type EInvoiceConfigRepo struct {
	q Querier
}

// NewEInvoiceConfigRepository construye el adaptador sobre un pool o una tx.
func NewEInvoiceConfigRepository(q Querier) *EInvoiceConfigRepo {
	return &EInvoiceConfigRepo{q: q}
}

func (r *EInvoiceConfigRepo) Get(ctx context.Context, merchantID string) (*entity.EInvoiceConfig, error) {
	var c entity.EInvoiceConfig
	err := r.q.QueryRow(ctx, `
		SELECT merchant_id, enabled, gstin, username, password_sealed, client_id, client_secret_sealed,
			base_url, auto_generate, threshold_override, created_at, updated_at
		FROM einvoice_configs WHERE merchant_id = $1`, merchantID).Scan(
		&c.MerchantID, &c.Enabled, &c.GSTIN, &c.Username, &c.PasswordSealed, &c.ClientID, &c.ClientSecretSealed,
		&c.BaseURL, &c.AutoGenerate, &c.ThresholdOverride, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get e-invoice config: %w", err)
	}
	return &c, nil
}

func (r *EInvoiceConfigRepo) Upsert(ctx context.Context, c *entity.EInvoiceConfig) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO einvoice_configs (merchant_id, enabled, gstin, username, password_sealed, client_id,
			client_secret_sealed, base_url, auto_generate, threshold_override, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (merchant_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			gstin = EXCLUDED.gstin,
			username = EXCLUDED.username,
			password_sealed = EXCLUDED.password_sealed,
			client_id = EXCLUDED.client_id,
			client_secret_sealed = EXCLUDED.client_secret_sealed,
			base_url = EXCLUDED.base_url,
			auto_generate = EXCLUDED.auto_generate,
			threshold_override = EXCLUDED.threshold_override,
			updated_at = EXCLUDED.updated_at`,
		c.MerchantID, c.Enabled, c.GSTIN, c.Username, c.PasswordSealed, c.ClientID,
		c.ClientSecretSealed, c.BaseURL, c.AutoGenerate, c.ThresholdOverride, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert e-invoice config: %w", err)
	}
	return nil
}
