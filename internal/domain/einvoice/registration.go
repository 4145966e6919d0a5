package einvoice

import "time"

// Estados remotos informados por la autoridad.
const (
	RemoteActive    = "ACT"
	RemoteCancelled = "CNL"
)

// Registration es lo que devuelve la autoridad para un documento aceptado.
type Registration struct {
	IRN           string
	AckNumber     string
	AckDate       time.Time
	SignedInvoice string
	SignedQRCode  string
	Status        string
	// AuditID es la entrada de auditoría escrita para el intercambio.
	AuditID string
}

// Cancellation es la confirmación de la autoridad a una solicitud de anulación.
type Cancellation struct {
	IRN        string
	CancelDate time.Time
	AuditID    string
}

// Lookup identifica un documento por su clave de negocio, para conciliar cuando
// el IRN nunca se guardó localmente.
type Lookup struct {
	Type   string
	Number string
	Date   time.Time
}

// CodeDuplicateIRN es el código de error de la autoridad para un documento ya
// registrado. En su lugar se consulta el registro existente.
const CodeDuplicateIRN = "2150"
