package dto

// EligibilityResponse cuerpo de GET /api/sales/:id/einvoice/eligibility.
type EligibilityResponse struct {
	SaleID   string   `json:"sale_id"`
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons"`
}

// CancelEInvoiceRequest cuerpo de POST /api/sales/:id/einvoice/cancel.
type CancelEInvoiceRequest struct {
	// ReasonCode: 1 duplicado, 2 error de digitación, 3 pedido cancelado, 4 otro.
	ReasonCode string `json:"reason_code" validate:"required"`
	Remarks    string `json:"remarks" validate:"required,max=100"`
}

// EInvoiceResponse es el documento de cumplimiento de una venta.
type EInvoiceResponse struct {
	SaleID            string   `json:"sale_id"`
	Status            string   `json:"status"`
	IRN               string   `json:"irn,omitempty"`
	AckNumber         string   `json:"ack_number,omitempty"`
	AckDate           string   `json:"ack_date,omitempty"`
	SignedQRCode      string   `json:"signed_qr_code,omitempty"`
	ReconcileRequired bool     `json:"reconcile_required"`
	Reasons           []string `json:"reasons,omitempty"`
	LastError         string   `json:"last_error,omitempty"`
	LastAuditID       string   `json:"last_audit_id,omitempty"`
	CancelReasonCode  string   `json:"cancel_reason_code,omitempty"`
	CancelRemarks     string   `json:"cancel_remarks,omitempty"`
	CancelledAt       string   `json:"cancelled_at,omitempty"`
	Attempts          int      `json:"attempts"`
}

// VerifyResponse compara el documento local con lo que ve la autoridad.
type VerifyResponse struct {
	SaleID       string `json:"sale_id"`
	IRN          string `json:"irn,omitempty"`
	LocalStatus  string `json:"local_status"`
	RemoteStatus string `json:"remote_status,omitempty"`
	// Discrepancy es true cuando la autoridad no coincide con el estado local.
	// Se informa, nunca se resuelve solo.
	Discrepancy bool   `json:"discrepancy"`
	Detail      string `json:"detail,omitempty"`
}

// AuditEntryResponse es un intercambio con la autoridad.
type AuditEntryResponse struct {
	ID             string `json:"id"`
	SaleID         string `json:"sale_id,omitempty"`
	Operation      string `json:"operation"`
	Outcome        string `json:"outcome"`
	HTTPStatus     int    `json:"http_status,omitempty"`
	RequestDigest  string `json:"request_digest"`
	ResponseDigest string `json:"response_digest,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	DurationMS     int64  `json:"duration_ms"`
	CreatedAt      string `json:"created_at"`
}

// EInvoiceConfigRequest cuerpo de PUT /api/einvoice/config. Un password o
// client_secret vacío conserva el valor guardado.
type EInvoiceConfigRequest struct {
	Enabled           bool   `json:"enabled"`
	GSTIN             string `json:"gstin" validate:"required,len=15"`
	Username          string `json:"username" validate:"required,max=100"`
	Password          string `json:"password" validate:"max=200"`
	ClientID          string `json:"client_id" validate:"required,max=200"`
	ClientSecret      string `json:"client_secret" validate:"max=500"`
	BaseURL           string `json:"base_url" validate:"omitempty,url"`
	AutoGenerate      bool   `json:"auto_generate"`
	ThresholdOverride string `json:"threshold_override" validate:"omitempty,numeric"`
}

// EInvoiceConfigResponse nunca lleva los secretos, solo si están cargados.
type EInvoiceConfigResponse struct {
	Enabled           bool   `json:"enabled"`
	GSTIN             string `json:"gstin"`
	Username          string `json:"username"`
	ClientID          string `json:"client_id"`
	PasswordSet       bool   `json:"password_set"`
	ClientSecretSet   bool   `json:"client_secret_set"`
	BaseURL           string `json:"base_url,omitempty"`
	AutoGenerate      bool   `json:"auto_generate"`
	ThresholdOverride string `json:"threshold_override,omitempty"`
	UpdatedAt         string `json:"updated_at"`
}
