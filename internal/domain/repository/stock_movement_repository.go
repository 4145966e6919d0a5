package repository

import (
	"context"

	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

// StockMovementRepository es el registro inmutable de movimientos.
type StockMovementRepository interface {
	Create(ctx context.Context, movement *entity.StockMovement) error
	ListBySale(ctx context.Context, merchantID, saleID string) ([]*entity.StockMovement, error)
}
