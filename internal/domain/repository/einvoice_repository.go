package repository

import (
	"context"

	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

// EInvoiceRepository persiste los documentos de cumplimiento.
type EInvoiceRepository interface {
	// Create falla con domain.ErrDuplicate si la venta ya tiene un documento no
	// anulado, o si el IRN ya está registrado.
	Create(ctx context.Context, doc *entity.EInvoice) error
	// GetBySale devuelve el documento vigente de la venta: el no anulado, si no el último.
	GetBySale(ctx context.Context, merchantID, saleID string) (*entity.EInvoice, error)
	Update(ctx context.Context, doc *entity.EInvoice) error
}

// EInvoiceConfigRepository guarda por comercio las credenciales y opciones de la autoridad.
type EInvoiceConfigRepository interface {
	Get(ctx context.Context, merchantID string) (*entity.EInvoiceConfig, error)
	Upsert(ctx context.Context, cfg *entity.EInvoiceConfig) error
}

// AuditRepository es el registro inmutable de intercambios con la autoridad.
type AuditRepository interface {
	Append(ctx context.Context, entry *entity.AuditEntry) error
	ListBySale(ctx context.Context, merchantID, saleID string) ([]*entity.AuditEntry, error)
}
