package dto

import "github.com/shopspring/decimal"

// SaleLineRequest es una línea del carrito.
type SaleLineRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	// UnitPrice reemplaza el precio de catálogo (sin GST) si viene.
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// ProposeSaleRequest cuerpo de POST /api/sales/proposals.
type ProposeSaleRequest struct {
	CustomerID string            `json:"customer_id,omitempty"`
	BuyerState string            `json:"buyer_state,omitempty" validate:"omitempty,max=64"`
	Lines      []SaleLineRequest `json:"lines" validate:"required,min=1,max=200,dive"`
	Discount   decimal.Decimal   `json:"discount"`
}

// CommitSaleRequest cuerpo de POST /api/sales.
// RequestID también puede llegar en el header Idempotency-Key.
type CommitSaleRequest struct {
	RequestID     string            `json:"request_id,omitempty" validate:"omitempty,max=64"`
	CustomerID    string            `json:"customer_id,omitempty"`
	BuyerState    string            `json:"buyer_state,omitempty" validate:"omitempty,max=64"`
	Lines         []SaleLineRequest `json:"lines" validate:"required,min=1,max=200,dive"`
	PaymentMethod string            `json:"payment_method" validate:"required,oneof=cash card upi credit bank_transfer cheque"`
	Discount      decimal.Decimal   `json:"discount"`
	PaidAmount    *decimal.Decimal  `json:"paid_amount,omitempty"`
}

// ReturnLineRequest devuelve una cantidad de una línea original.
type ReturnLineRequest struct {
	ItemSeq  int             `json:"item_seq" validate:"required,min=1"`
	Quantity decimal.Decimal `json:"quantity"`
}

// CreateReturnRequest cuerpo de POST /api/sales/:id/returns.
type CreateReturnRequest struct {
	RequestID string              `json:"request_id,omitempty" validate:"omitempty,max=64"`
	Lines     []ReturnLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// RecordPaymentRequest cuerpo de POST /api/sales/:id/payments.
type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// AllocationResponse es un lote tomado para una línea.
type AllocationResponse struct {
	BatchID     string          `json:"batch_id"`
	BatchNumber string          `json:"batch_number"`
	ExpiryDate  string          `json:"expiry_date,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// SaleItemResponse es una línea de venta.
type SaleItemResponse struct {
	Seq            int                  `json:"seq"`
	ProductID      string               `json:"product_id"`
	ProductName    string               `json:"product_name"`
	HSNCode        string               `json:"hsn_code"`
	Unit           string               `json:"unit,omitempty"`
	Quantity       decimal.Decimal      `json:"quantity"`
	UnitPrice      decimal.Decimal      `json:"unit_price"`
	GrossAmount    decimal.Decimal      `json:"gross_amount"`
	Discount       decimal.Decimal      `json:"discount"`
	TaxableValue   decimal.Decimal      `json:"taxable_value"`
	GSTRate        decimal.Decimal      `json:"gst_rate"`
	CGST           decimal.Decimal      `json:"cgst"`
	SGST           decimal.Decimal      `json:"sgst"`
	IGST           decimal.Decimal      `json:"igst"`
	LineTotal      decimal.Decimal      `json:"line_total"`
	ReturnOfItemID string               `json:"return_of_item_id,omitempty"`
	Allocations    []AllocationResponse `json:"allocations"`
}

// SaleResponse es una venta registrada, o una propuesta cuando ID está vacío.
type SaleResponse struct {
	ID                  string             `json:"id,omitempty"`
	Kind                string             `json:"kind"`
	InvoiceNumber       string             `json:"invoice_number,omitempty"`
	ReturnOfSaleID      string             `json:"return_of_sale_id,omitempty"`
	RequestID           string             `json:"request_id,omitempty"`
	SaleDate            string             `json:"sale_date"`
	CustomerID          string             `json:"customer_id,omitempty"`
	PaymentMethod       string             `json:"payment_method,omitempty"`
	PaymentStatus       string             `json:"payment_status,omitempty"`
	PaidAmount          decimal.Decimal    `json:"paid_amount"`
	Subtotal            decimal.Decimal    `json:"subtotal"`
	Discount            decimal.Decimal    `json:"discount"`
	CGST                decimal.Decimal    `json:"cgst"`
	SGST                decimal.Decimal    `json:"sgst"`
	IGST                decimal.Decimal    `json:"igst"`
	RoundOff            decimal.Decimal    `json:"round_off"`
	Total               decimal.Decimal    `json:"total"`
	SellerState         string             `json:"seller_state"`
	BuyerState          string             `json:"buyer_state,omitempty"`
	Interstate          bool               `json:"interstate"`
	JurisdictionAssumed bool               `json:"jurisdiction_assumed"`
	EInvoiceStatus      string             `json:"einvoice_status,omitempty"`
	Items               []SaleItemResponse `json:"items"`
	// Warnings lista condiciones que el operador debe confirmar, p. ej. un estado de comprador asumido.
	Warnings []string `json:"warnings,omitempty"`
	// Replayed es true cuando un reintento idempotente devolvió una venta existente.
	Replayed bool `json:"replayed,omitempty"`
}
