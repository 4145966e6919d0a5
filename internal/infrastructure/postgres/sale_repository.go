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

var _ repository.SaleRepository = (*SaleRepo)(nil)

const saleColumns = `id, merchant_id, customer_id, kind, return_of_sale_id, invoice_number,
	COALESCE(request_id, ''), request_hash, sale_date, payment_method, payment_status, paid_amount,
	subtotal, discount, cgst, sgst, igst, round_off, total,
	seller_state, buyer_state, interstate, jurisdiction_assumed, einvoice_status,
	created_by, created_at, updated_at`

// SaleRepo implementa repository.SaleRepository en PostgreSQL. Ítems y
// asignaciones se escriben y leen junto con la cabecera.
type SaleRepo struct {
	q Querier
	// lock hace que las lecturas tomen bloqueos de fila (FOR UPDATE). Solo dentro de una tx.
	lock bool
}

// NewSaleRepository construye el adaptador sobre un pool o una tx.
func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

// newLockingSaleRepository lo usa TxRunner: pagos y devoluciones leen la
// venta original con bloqueo de fila para serializar escritores concurrentes.
func newLockingSaleRepository(tx pgx.Tx) *SaleRepo {
	return &SaleRepo{q: tx, lock: true}
}

func (r *SaleRepo) Create(ctx context.Context, s *entity.Sale) error {
	query := `
		INSERT INTO sales (id, merchant_id, customer_id, kind, return_of_sale_id, invoice_number,
			request_id, request_hash, sale_date, payment_method, payment_status, paid_amount,
			subtotal, discount, cgst, sgst, igst, round_off, total,
			seller_state, buyer_state, interstate, jurisdiction_assumed, einvoice_status,
			created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27)`
	_, err := r.q.Exec(ctx, query,
		s.ID, s.MerchantID, s.CustomerID, s.Kind, s.ReturnOfSaleID, s.InvoiceNumber,
		nullIfEmpty(s.RequestID), s.RequestHash, s.SaleDate, s.PaymentMethod, s.PaymentStatus, s.PaidAmount,
		s.Subtotal, s.Discount, s.CGST, s.SGST, s.IGST, s.RoundOff, s.Total,
		s.SellerState, s.BuyerState, s.Interstate, s.JurisdictionAssumed, s.EInvoiceStatus,
		s.CreatedBy, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert sale: %w", err)
	}

	b := &pgx.Batch{}
	for _, it := range s.Items {
		b.Queue(`
			INSERT INTO sale_items (id, sale_id, seq, product_id, product_name, hsn_code, unit,
				quantity, unit_price, gross_amount, discount, taxable_value, gst_rate,
				cgst, sgst, igst, line_total, return_of_item_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			it.ID, s.ID, it.Seq, it.ProductID, it.ProductName, it.HSNCode, it.Unit,
			it.Quantity, it.UnitPrice, it.GrossAmount, it.Discount, it.TaxableValue, it.GSTRate,
			it.CGST, it.SGST, it.IGST, it.LineTotal, it.ReturnOfItemID,
		)
		for pos, a := range it.Allocations {
			b.Queue(`
				INSERT INTO sale_allocations (sale_item_id, position, batch_id, batch_number, expiry_date, quantity, batch_version)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				it.ID, pos, a.BatchID, a.BatchNumber, a.ExpiryDate, a.Quantity, a.Version,
			)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	br := r.q.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert sale lines: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("insert sale lines: %w", err)
	}
	return nil
}

func (r *SaleRepo) GetByID(ctx context.Context, merchantID, id string) (*entity.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE id = $1 AND merchant_id = $2`
	if r.lock {
		query += ` FOR UPDATE`
	}
	return r.getOne(ctx, "get sale", query, id, merchantID)
}

func (r *SaleRepo) GetByRequestID(ctx context.Context, merchantID, requestID string) (*entity.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE merchant_id = $1 AND request_id = $2`
	return r.getOne(ctx, "get sale by request id", query, merchantID, requestID)
}

// ListReturns bloquea primero la venta original cuando corre en una transacción,
// así dos devoluciones de la misma venta no pasan ambas el control de cantidad devolvible.
func (r *SaleRepo) ListReturns(ctx context.Context, merchantID, saleID string) ([]*entity.Sale, error) {
	if r.lock {
		var id string
		err := r.q.QueryRow(ctx, `SELECT id FROM sales WHERE id = $1 AND merchant_id = $2 FOR UPDATE`,
			saleID, merchantID).Scan(&id)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lock sale: %w", err)
		}
	}
	query := `SELECT ` + saleColumns + ` FROM sales
		WHERE merchant_id = $1 AND return_of_sale_id = $2
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, merchantID, saleID)
	if err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	sales, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.Sale, error) {
		return scanSale(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}
	if err := r.loadItems(ctx, sales...); err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *SaleRepo) UpdatePayment(ctx context.Context, s *entity.Sale) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE sales SET paid_amount = $3, payment_status = $4, updated_at = $5
		WHERE id = $1 AND merchant_id = $2`,
		s.ID, s.MerchantID, s.PaidAmount, s.PaymentStatus, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SaleRepo) UpdateEInvoiceStatus(ctx context.Context, merchantID, saleID, status string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE sales SET einvoice_status = $3, updated_at = now()
		WHERE id = $1 AND merchant_id = $2`,
		saleID, merchantID, status,
	)
	if err != nil {
		return fmt.Errorf("update sale e-invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SaleRepo) getOne(ctx context.Context, op, query string, args ...any) (*entity.Sale, error) {
	s, err := scanSale(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := r.loadItems(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// loadItems completa Items y sus Allocations de las ventas dadas con dos consultas.
func (r *SaleRepo) loadItems(ctx context.Context, sales ...*entity.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]string, len(sales))
	byID := make(map[string]*entity.Sale, len(sales))
	for i, s := range sales {
		ids[i] = s.ID
		byID[s.ID] = s
	}

	rows, err := r.q.Query(ctx, `
		SELECT id, sale_id, seq, product_id, product_name, hsn_code, unit,
			quantity, unit_price, gross_amount, discount, taxable_value, gst_rate,
			cgst, sgst, igst, line_total, return_of_item_id
		FROM sale_items WHERE sale_id = ANY($1::uuid[])
		ORDER BY sale_id, seq`, ids)
	if err != nil {
		return fmt.Errorf("load sale items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.SaleItem, error) {
		var it entity.SaleItem
		err := row.Scan(&it.ID, &it.SaleID, &it.Seq, &it.ProductID, &it.ProductName, &it.HSNCode, &it.Unit,
			&it.Quantity, &it.UnitPrice, &it.GrossAmount, &it.Discount, &it.TaxableValue, &it.GSTRate,
			&it.CGST, &it.SGST, &it.IGST, &it.LineTotal, &it.ReturnOfItemID)
		return &it, err
	})
	if err != nil {
		return fmt.Errorf("load sale items: %w", err)
	}
	itemByID := make(map[string]*entity.SaleItem, len(items))
	for _, it := range items {
		itemByID[it.ID] = it
		byID[it.SaleID].Items = append(byID[it.SaleID].Items, it)
	}

	rows, err = r.q.Query(ctx, `
		SELECT a.sale_item_id, a.batch_id, a.batch_number, a.expiry_date, a.quantity, a.batch_version
		FROM sale_allocations a
		JOIN sale_items i ON i.id = a.sale_item_id
		WHERE i.sale_id = ANY($1::uuid[])
		ORDER BY a.sale_item_id, a.position`, ids)
	if err != nil {
		return fmt.Errorf("load sale allocations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var itemID string
		var a entity.AllocationLine
		if err := rows.Scan(&itemID, &a.BatchID, &a.BatchNumber, &a.ExpiryDate, &a.Quantity, &a.Version); err != nil {
			return fmt.Errorf("scan sale allocation: %w", err)
		}
		if it := itemByID[itemID]; it != nil {
			it.Allocations = append(it.Allocations, a)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load sale allocations: %w", err)
	}
	return nil
}

func scanSale(row pgx.Row) (*entity.Sale, error) {
	var s entity.Sale
	err := row.Scan(
		&s.ID, &s.MerchantID, &s.CustomerID, &s.Kind, &s.ReturnOfSaleID, &s.InvoiceNumber,
		&s.RequestID, &s.RequestHash, &s.SaleDate, &s.PaymentMethod, &s.PaymentStatus, &s.PaidAmount,
		&s.Subtotal, &s.Discount, &s.CGST, &s.SGST, &s.IGST, &s.RoundOff, &s.Total,
		&s.SellerState, &s.BuyerState, &s.Interstate, &s.JurisdictionAssumed, &s.EInvoiceStatus,
		&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
