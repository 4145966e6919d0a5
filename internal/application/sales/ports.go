package sales

import (
	"context"

	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
)

// TxRunner ejecuta fn dentro de una transacción del store con repositorios ligados a ella.
// Si fn devuelve error se deshace toda escritura hecha con esos repositorios.
type TxRunner interface {
	RunSale(ctx context.Context, fn func(
		batchRepo repository.BatchRepository,
		saleRepo repository.SaleRepository,
		movRepo repository.StockMovementRepository,
	) error) error
}

// DocumentScheduler encola la generación de factura electrónica de una venta registrada.
// Las implementaciones no deben bloquearse esperando a la autoridad.
type DocumentScheduler interface {
	Schedule(ctx context.Context, merchantID, saleID string) error
}
