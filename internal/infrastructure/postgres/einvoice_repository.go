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

var _ repository.EInvoiceRepository = (*EInvoiceRepo)(nil)

const einvoiceColumns = `id, merchant_id, sale_id, status, COALESCE(irn, ''), ack_number, ack_date,
	signed_invoice, signed_qr_code, reconcile_required, reasons, last_error, last_audit_id,
	cancel_reason_code, cancel_remarks, cancelled_at, request_payload, response_payload,
	attempts, created_at, updated_at`

const einvoiceInsertColumns = `id, merchant_id, sale_id, status, irn, ack_number, ack_date,
	signed_invoice, signed_qr_code, reconcile_required, reasons, last_error, last_audit_id,
	cancel_reason_code, cancel_remarks, cancelled_at, request_payload, response_payload,
	attempts, created_at, updated_at`

// EInvoiceRepo persiste los documentos de cumplimiento. Los índices únicos parciales
// sobre sale_id e irn respaldan las reglas de duplicados.
type EInvoiceRepo struct {
	q Querier
}

// NewEInvoiceRepository construye el adaptador sobre un pool o una tx.
func NewEInvoiceRepository(q Querier) *EInvoiceRepo {
	return &EInvoiceRepo{q: q}
}

func (r *EInvoiceRepo) Create(ctx context.Context, d *entity.EInvoice) error {
	query := `
		INSERT INTO einvoices (` + einvoiceInsertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
	_, err := r.q.Exec(ctx, query, einvoiceArgs(d)...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert e-invoice: %w", err)
	}
	return nil
}

// GetBySale prefiere el documento vigente y luego el anulado más reciente.
func (r *EInvoiceRepo) GetBySale(ctx context.Context, merchantID, saleID string) (*entity.EInvoice, error) {
	query := `SELECT ` + einvoiceColumns + ` FROM einvoices
		WHERE merchant_id = $1 AND sale_id = $2
		ORDER BY (status = 'cancelled'), created_at DESC
		LIMIT 1`
	d, err := scanEInvoice(r.q.QueryRow(ctx, query, merchantID, saleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get e-invoice: %w", err)
	}
	return d, nil
}

func (r *EInvoiceRepo) Update(ctx context.Context, d *entity.EInvoice) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE einvoices SET
			status = $4, irn = $5, ack_number = $6, ack_date = $7, signed_invoice = $8,
			signed_qr_code = $9, reconcile_required = $10, reasons = $11, last_error = $12,
			last_audit_id = $13, cancel_reason_code = $14, cancel_remarks = $15, cancelled_at = $16,
			request_payload = $17, response_payload = $18, attempts = $19, updated_at = $20
		WHERE id = $1 AND merchant_id = $2 AND sale_id = $3`,
		append(einvoiceArgs(d)[:19], d.UpdatedAt)...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("update e-invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func einvoiceArgs(d *entity.EInvoice) []any {
	reasons := d.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return []any{
		d.ID, d.MerchantID, d.SaleID, d.Status, nullIfEmpty(d.IRN), d.AckNumber, d.AckDate,
		d.SignedInvoice, d.SignedQRCode, d.ReconcileRequired, reasons, d.LastError, d.LastAuditID,
		d.CancelReasonCode, d.CancelRemarks, d.CancelledAt, nullJSON(d.RequestPayload), nullJSON(d.ResponsePayload),
		d.Attempts, d.CreatedAt, d.UpdatedAt,
	}
}

func scanEInvoice(row pgx.Row) (*entity.EInvoice, error) {
	var d entity.EInvoice
	var req, resp []byte
	err := row.Scan(
		&d.ID, &d.MerchantID, &d.SaleID, &d.Status, &d.IRN, &d.AckNumber, &d.AckDate,
		&d.SignedInvoice, &d.SignedQRCode, &d.ReconcileRequired, &d.Reasons, &d.LastError, &d.LastAuditID,
		&d.CancelReasonCode, &d.CancelRemarks, &d.CancelledAt, &req, &resp,
		&d.Attempts, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.RequestPayload = req
	d.ResponsePayload = resp
	return &d, nil
}
