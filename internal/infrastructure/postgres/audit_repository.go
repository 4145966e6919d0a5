package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo es el registro solo-agregar de intercambios con la autoridad. No hay actualización.
type AuditRepo struct {
	q Querier
}

// NewAuditRepository construye el adaptador sobre el pool. Las entradas se escriben
// fuera de las transacciones de negocio para que un rollback nunca las pierda.
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

func (r *AuditRepo) Append(ctx context.Context, e *entity.AuditEntry) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO einvoice_audit (id, merchant_id, sale_id, operation, outcome, http_status,
			request_digest, response_digest, request, response, error_message, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ID, e.MerchantID, nullIfEmpty(e.SaleID), e.Operation, e.Outcome, e.HTTPStatus,
		e.RequestDigest, e.ResponseDigest, nullJSON(e.Request), nullJSON(e.Response),
		e.ErrorMessage, e.DurationMS, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepo) ListBySale(ctx context.Context, merchantID, saleID string) ([]*entity.AuditEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, merchant_id, COALESCE(sale_id::text, ''), operation, outcome, http_status,
			request_digest, response_digest, request, response, error_message, duration_ms, created_at
		FROM einvoice_audit
		WHERE merchant_id = $1 AND sale_id = $2
		ORDER BY created_at, id`, merchantID, saleID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.AuditEntry, error) {
		var e entity.AuditEntry
		var req, resp []byte
		err := row.Scan(&e.ID, &e.MerchantID, &e.SaleID, &e.Operation, &e.Outcome, &e.HTTPStatus,
			&e.RequestDigest, &e.ResponseDigest, &req, &resp, &e.ErrorMessage, &e.DurationMS, &e.CreatedAt)
		e.Request, e.Response = req, resp
		return &e, err
	})
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return out, nil
}

// nullJSON convierte un payload vacío en NULL de SQL; lo demás va como texto jsonb.
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
