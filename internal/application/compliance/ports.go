package compliance

import (
	"context"

	"github.com/jhoicas/agro-pos-api/internal/domain/einvoice"
)

// Gateway es la autoridad tributaria vista desde el gestor de documentos. Las
// implementaciones se autentican solas, agregan una entrada de auditoría por intercambio
// y devuelven los errores tipados del paquete domain con el id de esa entrada.
// Las llamadas nunca se reintentan solas: la autoridad no es idempotente.
type Gateway interface {
	Generate(ctx context.Context, saleID string, doc *einvoice.Document) (*einvoice.Registration, error)
	Cancel(ctx context.Context, saleID, irn string, reason einvoice.CancelReason, remarks string) (*einvoice.Cancellation, error)
	// Fetch devuelve (nil, nil) si la autoridad no tiene documento con ese IRN.
	Fetch(ctx context.Context, saleID, irn string) (*einvoice.Registration, error)
	// FetchByDocument busca un registro por tipo, número y fecha de documento.
	// Devuelve (nil, nil) si no se registró nada.
	FetchByDocument(ctx context.Context, saleID string, lookup einvoice.Lookup) (*einvoice.Registration, error)
}

// GatewayProvider entrega el gateway ligado a las credenciales de un comercio.
type GatewayProvider interface {
	ForMerchant(ctx context.Context, merchantID string) (Gateway, error)
}
