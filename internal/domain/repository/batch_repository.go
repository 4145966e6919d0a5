package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

// BatchRepository es el puerto de persistencia de los lotes de stock.
type BatchRepository interface {
	Create(ctx context.Context, batch *entity.Batch) error
	GetByID(ctx context.Context, merchantID, id string) (*entity.Batch, error)
	// ListByProduct devuelve todos los lotes de un producto, incluidos los agotados.
	ListByProduct(ctx context.Context, merchantID, productID string) ([]*entity.Batch, error)
	// ListAvailable devuelve los lotes con available - reserved > 0.
	ListAvailable(ctx context.Context, merchantID, productID string) ([]*entity.Batch, error)
	// ListExpiring devuelve los lotes del comercio con stock libre cuyo vencimiento
	// es igual o anterior a until, los más próximos primero.
	ListExpiring(ctx context.Context, merchantID string, until time.Time) ([]*entity.Batch, error)
	// AdjustAvailable suma delta a la cantidad disponible del lote solo si su
	// versión sigue siendo expectedVersion y el resultado mantiene available >= reserved.
	// Si no, devuelve *domain.StockConflictError. Si tiene éxito incrementa la versión.
	AdjustAvailable(ctx context.Context, batchID string, expectedVersion int64, delta decimal.Decimal) error
}
