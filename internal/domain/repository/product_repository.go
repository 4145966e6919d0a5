package repository

import (
	"context"

	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

// ProductRepository es el puerto de persistencia del catálogo.
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, merchantID, id string) (*entity.Product, error)
}
