package inventory

import (
	"context"

	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
)

// TxRunner ejecuta fn dentro de una transacción con repositorios ligados a ella.
// Recepciones y ajustes escriben el lote y su movimiento de forma atómica.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		batchRepo repository.BatchRepository,
		movRepo repository.StockMovementRepository,
	) error) error
}
