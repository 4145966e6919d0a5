package entity

import (
	"encoding/json"
	"time"
)

// Operaciones del gateway registradas en la auditoría.
const (
	AuditOpAuthenticate = "authenticate"
	AuditOpGenerate     = "generate"
	AuditOpVerify       = "verify"
	AuditOpCancel       = "cancel"
)

// Resultados de auditoría.
const (
	AuditOutcomeSuccess     = "success"
	AuditOutcomeRejected    = "rejected"
	AuditOutcomeAuthFailed  = "auth_failed"
	AuditOutcomeUnavailable = "unavailable"
)

// AuditEntry es un registro inmutable de un intercambio con la autoridad tributaria.
type AuditEntry struct {
	ID             string
	MerchantID     string
	SaleID         string // vacío para autenticaciones no ligadas a una venta
	Operation      string
	Outcome        string
	HTTPStatus     int
	RequestDigest  string // SHA-256 en hex del cuerpo redactado de la solicitud
	ResponseDigest string
	Request        json.RawMessage // redactado
	Response       json.RawMessage
	ErrorMessage   string
	DurationMS     int64
	CreatedAt      time.Time
}
