package entity

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Estados del documento de cumplimiento (factura electrónica).
const (
	EInvoiceStatusNotApplicable = "not_applicable"
	EInvoiceStatusPending       = "pending"
	EInvoiceStatusGenerated     = "generated"
	EInvoiceStatusCancelled     = "cancelled"
	EInvoiceStatusError         = "error"
)

// EInvoice es el documento de cumplimiento registrado en el Invoice Registration Portal.
// Existe a lo sumo un documento no anulado por venta.
type EInvoice struct {
	ID            string
	MerchantID    string
	SaleID        string
	Status        string
	IRN           string // Invoice Reference Number asignado por la autoridad
	AckNumber     string
	AckDate       *time.Time
	SignedInvoice string
	SignedQRCode  string
	// ReconcileRequired se marca antes de cada intento de registro externo y solo se
	// limpia con una escritura local definitiva. Marcado, la autoridad puede tener un
	// documento que nunca guardamos.
	ReconcileRequired bool
	Reasons           []string // motivos de elegibilidad
	LastError         string
	LastAuditID       string
	CancelReasonCode  string
	CancelRemarks     string
	CancelledAt       *time.Time
	RequestPayload    json.RawMessage
	ResponsePayload   json.RawMessage
	Attempts          int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Terminal indica si ya no es posible otra transición.
func (e *EInvoice) Terminal() bool {
	return e.Status == EInvoiceStatusNotApplicable || e.Status == EInvoiceStatusCancelled
}

// EInvoiceConfig guarda las credenciales del Invoice Registration Portal de un comercio.
// Los secretos se guardan sellados; ver pkg/secret.
type EInvoiceConfig struct {
	MerchantID         string
	Enabled            bool
	GSTIN              string
	Username           string
	PasswordSealed     string
	ClientID           string
	ClientSecretSealed string
	BaseURL            string // vacío = valor global por defecto
	AutoGenerate       bool
	ThresholdOverride  decimal.NullDecimal
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
