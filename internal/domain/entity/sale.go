package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Estados de pago.
const (
	PaymentStatusPaid    = "paid"
	PaymentStatusPartial = "partial"
	PaymentStatusUnpaid  = "unpaid"
)

// Tipos de venta.
const (
	SaleKindSale   = "sale"
	SaleKindReturn = "return" // venta compensatoria con cantidades negativas
)

// Sale es la cabecera registrada. Inmutable salvo los campos de pago y la
// anotación del estado de cumplimiento.
// Invariante: Total = Subtotal - Discount + CGST + SGST + IGST + RoundOff.
type Sale struct {
	ID             string
	MerchantID     string
	CustomerID     *string // nil = venta de mostrador
	Kind           string
	ReturnOfSaleID *string
	InvoiceNumber  string
	RequestID      string // clave de idempotencia del cliente
	RequestHash    string // sha256 de la solicitud normalizada guardada bajo RequestID
	SaleDate       time.Time
	PaymentMethod  string
	PaymentStatus  string
	PaidAmount     decimal.Decimal
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	CGST           decimal.Decimal
	SGST           decimal.Decimal
	IGST           decimal.Decimal
	RoundOff       decimal.Decimal
	Total          decimal.Decimal
	SellerState    string
	BuyerState     string // estado usado para el reparto; puede ser un valor asumido
	Interstate     bool
	// JurisdictionAssumed se marca cuando el estado del comprador era desconocido y un
	// valor configurado decidió el reparto. Debe mostrarse al comercio para confirmar.
	JurisdictionAssumed bool
	EInvoiceStatus      string
	CreatedBy           string
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Items []*SaleItem
}

// IsReturn indica si la venta es una devolución compensatoria.
func (s *Sale) IsReturn() bool { return s.Kind == SaleKindReturn }

// SaleItem es una línea inmutable de una venta, identificada por (SaleID, Seq).
type SaleItem struct {
	ID             string
	SaleID         string
	Seq            int
	ProductID      string
	ProductName    string
	HSNCode        string
	Unit           string
	Quantity       decimal.Decimal // negativa en devoluciones
	UnitPrice      decimal.Decimal
	GrossAmount    decimal.Decimal // Quantity * UnitPrice
	Discount       decimal.Decimal // parte proporcional del descuento de cabecera
	TaxableValue   decimal.Decimal
	GSTRate        decimal.Decimal
	CGST           decimal.Decimal
	SGST           decimal.Decimal
	IGST           decimal.Decimal
	LineTotal      decimal.Decimal
	ReturnOfItemID *string

	Allocations []AllocationLine
}

// FormatInvoiceNumber arma <prefijo><aamm><seq:06>. Con los prefijos por defecto
// de tres letras el resultado cabe en los 16 caracteres de la autoridad.
func FormatInvoiceNumber(prefix string, at time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%06d", prefix, at.Format("0601"), seq)
}
