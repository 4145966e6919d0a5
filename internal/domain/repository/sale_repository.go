package repository

import (
	"context"

	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

// SaleRepository persiste las ventas junto con sus ítems y asignaciones de lotes.
type SaleRepository interface {
	// Create inserta cabecera, ítems y asignaciones. Otra venta con el mismo
	// (comercio, request id) o (comercio, número de factura) da domain.ErrDuplicate.
	Create(ctx context.Context, sale *entity.Sale) error
	GetByID(ctx context.Context, merchantID, id string) (*entity.Sale, error)
	GetByRequestID(ctx context.Context, merchantID, requestID string) (*entity.Sale, error)
	// ListReturns devuelve las devoluciones registradas contra una venta original.
	ListReturns(ctx context.Context, merchantID, saleID string) ([]*entity.Sale, error)
	// UpdatePayment escribe solo paid_amount y payment_status.
	UpdatePayment(ctx context.Context, sale *entity.Sale) error
	// UpdateEInvoiceStatus escribe solo la anotación de cumplimiento.
	UpdateEInvoiceStatus(ctx context.Context, merchantID, saleID, status string) error
}

// InvoiceNumberGenerator entrega números de factura fuera de toda transacción: un
// número nunca se reutiliza aunque la venta que lo tomó haga rollback.
type InvoiceNumberGenerator interface {
	Next(ctx context.Context, merchantID, prefix string) (string, error)
}
