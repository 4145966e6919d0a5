package repository

import (
	"context"

	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

// CustomerRepository es el puerto de persistencia de compradores.
type CustomerRepository interface {
	Create(ctx context.Context, customer *entity.Customer) error
	GetByID(ctx context.Context, merchantID, id string) (*entity.Customer, error)
}
