package dto

// ErrorResponse es el cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Details lleva errores de campos o los motivos de la autoridad.
	Details []string `json:"details,omitempty"`
	// AuditRef apunta a la entrada de auditoría de un intercambio fallido con la autoridad.
	AuditRef string `json:"audit_ref,omitempty"`
}

// HealthResponse cuerpo de GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	App      string `json:"app"`
	Env      string `json:"env"`
	Database string `json:"database"`
}
