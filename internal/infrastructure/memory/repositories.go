package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

// MerchantRepository implementa repository.MerchantRepository.
type MerchantRepository struct{ v view }

func (r *MerchantRepository) Create(_ context.Context, m *entity.Merchant) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.merchants[m.ID]; ok {
			return domain.ErrDuplicate
		}
		for _, other := range st.merchants {
			if m.OwnerEmail != "" && strings.EqualFold(other.OwnerEmail, m.OwnerEmail) {
				return domain.ErrDuplicate
			}
		}
		c := *m
		st.merchants[m.ID] = &c
		return nil
	})
}

func (r *MerchantRepository) GetByID(_ context.Context, id string) (*entity.Merchant, error) {
	var out *entity.Merchant
	err := r.v.do(func(st *state) error {
		if m, ok := st.merchants[id]; ok {
			c := *m
			out = &c
		}
		return nil
	})
	return out, err
}

func (r *MerchantRepository) GetByOwnerEmail(_ context.Context, email string) (*entity.Merchant, error) {
	var out *entity.Merchant
	err := r.v.do(func(st *state) error {
		for _, m := range st.merchants {
			if email != "" && strings.EqualFold(m.OwnerEmail, email) {
				c := *m
				out = &c
				return nil
			}
		}
		return nil
	})
	return out, err
}

// CustomerRepository implementa repository.CustomerRepository.
type CustomerRepository struct{ v view }

func (r *CustomerRepository) Create(_ context.Context, c *entity.Customer) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.customers[c.ID]; ok {
			return domain.ErrDuplicate
		}
		cp := *c
		st.customers[c.ID] = &cp
		return nil
	})
}

func (r *CustomerRepository) GetByID(_ context.Context, merchantID, id string) (*entity.Customer, error) {
	var out *entity.Customer
	err := r.v.do(func(st *state) error {
		if c, ok := st.customers[id]; ok && c.MerchantID == merchantID {
			cp := *c
			out = &cp
		}
		return nil
	})
	return out, err
}

// ProductRepository implementa repository.ProductRepository.
type ProductRepository struct{ v view }

func (r *ProductRepository) Create(_ context.Context, p *entity.Product) error {
	return r.v.do(func(st *state) error {
		for _, existing := range st.products {
			if existing.ID == p.ID || (existing.MerchantID == p.MerchantID && p.SKU != "" && existing.SKU == p.SKU) {
				return domain.ErrDuplicate
			}
		}
		cp := *p
		st.products[p.ID] = &cp
		return nil
	})
}

func (r *ProductRepository) GetByID(_ context.Context, merchantID, id string) (*entity.Product, error) {
	var out *entity.Product
	err := r.v.do(func(st *state) error {
		if p, ok := st.products[id]; ok && p.MerchantID == merchantID {
			cp := *p
			out = &cp
		}
		return nil
	})
	return out, err
}

// BatchRepository implementa repository.BatchRepository.
type BatchRepository struct{ v view }

func (r *BatchRepository) Create(_ context.Context, b *entity.Batch) error {
	return r.v.do(func(st *state) error {
		for _, existing := range st.batches {
			if existing.ID == b.ID || (existing.ProductID == b.ProductID && existing.BatchNumber == b.BatchNumber) {
				return domain.ErrDuplicate
			}
		}
		st.batches[b.ID] = copyBatch(b)
		return nil
	})
}

func (r *BatchRepository) GetByID(_ context.Context, merchantID, id string) (*entity.Batch, error) {
	var out *entity.Batch
	err := r.v.do(func(st *state) error {
		if b, ok := st.batches[id]; ok && b.MerchantID == merchantID {
			out = copyBatch(b)
		}
		return nil
	})
	return out, err
}

func (r *BatchRepository) ListByProduct(_ context.Context, merchantID, productID string) ([]*entity.Batch, error) {
	return r.list(merchantID, productID, false)
}

func (r *BatchRepository) ListAvailable(_ context.Context, merchantID, productID string) ([]*entity.Batch, error) {
	return r.list(merchantID, productID, true)
}

func (r *BatchRepository) list(merchantID, productID string, onlyFree bool) ([]*entity.Batch, error) {
	var out []*entity.Batch
	err := r.v.do(func(st *state) error {
		for _, b := range st.batches {
			if b.MerchantID != merchantID || b.ProductID != productID {
				continue
			}
			if onlyFree && !b.Free().IsPositive() {
				continue
			}
			out = append(out, copyBatch(b))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *BatchRepository) ListExpiring(_ context.Context, merchantID string, until time.Time) ([]*entity.Batch, error) {
	var out []*entity.Batch
	err := r.v.do(func(st *state) error {
		for _, b := range st.batches {
			if b.MerchantID != merchantID || b.ExpiryDate == nil || b.ExpiryDate.After(until) || !b.Free().IsPositive() {
				continue
			}
			out = append(out, copyBatch(b))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiryDate.Equal(*out[j].ExpiryDate) {
			return out[i].ExpiryDate.Before(*out[j].ExpiryDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r *BatchRepository) AdjustAvailable(_ context.Context, batchID string, expectedVersion int64, delta decimal.Decimal) error {
	return r.v.do(func(st *state) error {
		if err := r.v.s.fault(OpBatchAdjust); err != nil {
			return err
		}
		b, ok := st.batches[batchID]
		if !ok || b.Version != expectedVersion {
			return &domain.StockConflictError{BatchID: batchID}
		}
		next := b.Available.Add(delta)
		if next.LessThan(b.Reserved) || next.IsNegative() {
			return &domain.StockConflictError{BatchID: batchID}
		}
		b.Available = next
		b.Version++
		b.UpdatedAt = r.v.s.now()
		return nil
	})
}

// StockMovementRepository implementa repository.StockMovementRepository.
type StockMovementRepository struct{ v view }

func (r *StockMovementRepository) Create(_ context.Context, m *entity.StockMovement) error {
	return r.v.do(func(st *state) error {
		if err := r.v.s.fault(OpMovementCreate); err != nil {
			return err
		}
		cp := *m
		st.movements = append(st.movements, &cp)
		return nil
	})
}

func (r *StockMovementRepository) ListBySale(_ context.Context, merchantID, saleID string) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	err := r.v.do(func(st *state) error {
		for _, m := range st.movements {
			if m.MerchantID == merchantID && m.SaleID == saleID {
				cp := *m
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}

// SaleRepository implementa repository.SaleRepository.
type SaleRepository struct{ v view }

func (r *SaleRepository) Create(_ context.Context, s *entity.Sale) error {
	return r.v.do(func(st *state) error {
		if err := r.v.s.fault(OpSaleCreate); err != nil {
			return err
		}
		for _, existing := range st.sales {
			if existing.MerchantID != s.MerchantID {
				continue
			}
			if existing.InvoiceNumber == s.InvoiceNumber || (s.RequestID != "" && existing.RequestID == s.RequestID) {
				return domain.ErrDuplicate
			}
		}
		st.sales[s.ID] = copySale(s)
		st.saleOrder = append(st.saleOrder, s.ID)
		return nil
	})
}

func (r *SaleRepository) GetByID(_ context.Context, merchantID, id string) (*entity.Sale, error) {
	var out *entity.Sale
	err := r.v.do(func(st *state) error {
		if s, ok := st.sales[id]; ok && s.MerchantID == merchantID {
			out = copySale(s)
		}
		return nil
	})
	return out, err
}

func (r *SaleRepository) GetByRequestID(_ context.Context, merchantID, requestID string) (*entity.Sale, error) {
	var out *entity.Sale
	err := r.v.do(func(st *state) error {
		for _, s := range st.sales {
			if s.MerchantID == merchantID && requestID != "" && s.RequestID == requestID {
				out = copySale(s)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *SaleRepository) ListReturns(_ context.Context, merchantID, saleID string) ([]*entity.Sale, error) {
	var out []*entity.Sale
	err := r.v.do(func(st *state) error {
		for _, id := range st.saleOrder {
			s := st.sales[id]
			if s.MerchantID == merchantID && s.ReturnOfSaleID != nil && *s.ReturnOfSaleID == saleID {
				out = append(out, copySale(s))
			}
		}
		return nil
	})
	return out, err
}

func (r *SaleRepository) UpdatePayment(_ context.Context, s *entity.Sale) error {
	return r.v.do(func(st *state) error {
		existing, ok := st.sales[s.ID]
		if !ok || existing.MerchantID != s.MerchantID {
			return domain.ErrNotFound
		}
		existing.PaidAmount = s.PaidAmount
		existing.PaymentStatus = s.PaymentStatus
		existing.UpdatedAt = s.UpdatedAt
		return nil
	})
}

func (r *SaleRepository) UpdateEInvoiceStatus(_ context.Context, merchantID, saleID, status string) error {
	return r.v.do(func(st *state) error {
		existing, ok := st.sales[saleID]
		if !ok || existing.MerchantID != merchantID {
			return domain.ErrNotFound
		}
		existing.EInvoiceStatus = status
		existing.UpdatedAt = r.v.s.now()
		return nil
	})
}

// EInvoiceRepository implementa repository.EInvoiceRepository.
type EInvoiceRepository struct{ v view }

func (r *EInvoiceRepository) Create(_ context.Context, doc *entity.EInvoice) error {
	return r.v.do(func(st *state) error {
		for _, existing := range st.einvoices {
			if existing.SaleID == doc.SaleID && existing.Status != entity.EInvoiceStatusCancelled {
				return domain.ErrDuplicate
			}
			if doc.IRN != "" && existing.IRN == doc.IRN {
				return domain.ErrDuplicate
			}
		}
		st.einvoices[doc.ID] = copyEInvoice(doc)
		return nil
	})
}

func (r *EInvoiceRepository) GetBySale(_ context.Context, merchantID, saleID string) (*entity.EInvoice, error) {
	var out *entity.EInvoice
	err := r.v.do(func(st *state) error {
		for _, e := range st.einvoices {
			if e.MerchantID != merchantID || e.SaleID != saleID {
				continue
			}
			switch {
			case out == nil:
				out = e
			case out.Status == entity.EInvoiceStatusCancelled && e.Status != entity.EInvoiceStatusCancelled:
				out = e
			case (out.Status == entity.EInvoiceStatusCancelled) == (e.Status == entity.EInvoiceStatusCancelled) && e.CreatedAt.After(out.CreatedAt):
				out = e
			}
		}
		if out != nil {
			out = copyEInvoice(out)
		}
		return nil
	})
	return out, err
}

func (r *EInvoiceRepository) Update(_ context.Context, doc *entity.EInvoice) error {
	return r.v.do(func(st *state) error {
		if err := r.v.s.fault(OpEInvoiceUpdate); err != nil {
			return err
		}
		if _, ok := st.einvoices[doc.ID]; !ok {
			return domain.ErrNotFound
		}
		if doc.IRN != "" {
			for id, other := range st.einvoices {
				if id != doc.ID && other.IRN == doc.IRN {
					return domain.ErrDuplicate
				}
			}
		}
		st.einvoices[doc.ID] = copyEInvoice(doc)
		return nil
	})
}

// EInvoiceConfigRepository implementa repository.EInvoiceConfigRepository.
type EInvoiceConfigRepository struct{ v view }

func (r *EInvoiceConfigRepository) Get(_ context.Context, merchantID string) (*entity.EInvoiceConfig, error) {
	var out *entity.EInvoiceConfig
	err := r.v.do(func(st *state) error {
		if c, ok := st.configs[merchantID]; ok {
			cp := *c
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r *EInvoiceConfigRepository) Upsert(_ context.Context, cfg *entity.EInvoiceConfig) error {
	return r.v.do(func(st *state) error {
		cp := *cfg
		st.configs[cfg.MerchantID] = &cp
		return nil
	})
}

// AuditRepository implementa repository.AuditRepository. Las entradas son solo-agregar.
type AuditRepository struct{ v view }

func (r *AuditRepository) Append(_ context.Context, e *entity.AuditEntry) error {
	return r.v.do(func(st *state) error {
		cp := *e
		st.audit = append(st.audit, &cp)
		return nil
	})
}

func (r *AuditRepository) ListBySale(_ context.Context, merchantID, saleID string) ([]*entity.AuditEntry, error) {
	var out []*entity.AuditEntry
	err := r.v.do(func(st *state) error {
		for _, e := range st.audit {
			if e.MerchantID == merchantID && e.SaleID == saleID {
				cp := *e
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}
