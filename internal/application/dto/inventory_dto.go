package dto

import "github.com/shopspring/decimal"

// ReceiveBatchRequest cuerpo de POST /api/products/:id/batches.
type ReceiveBatchRequest struct {
	BatchNumber     string          `json:"batch_number" validate:"required,max=64"`
	ExpiryDate      string          `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ManufactureDate string          `json:"manufacture_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Quantity        decimal.Decimal `json:"quantity"`
	SupplierRef     string          `json:"supplier_ref,omitempty" validate:"omitempty,max=128"`
}

// BatchResponse es un lote en la vista del ledger.
type BatchResponse struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"product_id"`
	BatchNumber     string          `json:"batch_number"`
	ExpiryDate      string          `json:"expiry_date,omitempty"`
	ManufactureDate string          `json:"manufacture_date,omitempty"`
	Available       decimal.Decimal `json:"available"`
	Reserved        decimal.Decimal `json:"reserved"`
	Free            decimal.Decimal `json:"free"`
	SupplierRef     string          `json:"supplier_ref,omitempty"`
	Version         int64           `json:"version"`
}

// BatchLedgerResponse lista los lotes de un producto en orden FEFO.
type BatchLedgerResponse struct {
	ProductID string          `json:"product_id"`
	TotalFree decimal.Decimal `json:"total_free"`
	Batches   []BatchResponse `json:"batches"`
}

// AdjustBatchRequest cuerpo de POST /api/batches/:id/adjustments.
// Una cantidad negativa da de baja stock; una positiva corrige un conteo corto.
type AdjustBatchRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason" validate:"required,max=200"`
}

// ExpiringBatchResponse es una línea del reporte de próximos a vencer.
type ExpiringBatchResponse struct {
	BatchResponse
	ProductName  string `json:"product_name"`
	DaysToExpiry int    `json:"days_to_expiry"`
	Expired      bool   `json:"expired"`
	Priority     int    `json:"priority"`
}
