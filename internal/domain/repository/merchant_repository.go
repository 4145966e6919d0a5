package repository

import (
	"context"

	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

// MerchantRepository es el puerto de persistencia de comercios.
// Los getters devuelven (nil, nil) si la fila no existe.
type MerchantRepository interface {
	Create(ctx context.Context, merchant *entity.Merchant) error
	GetByID(ctx context.Context, id string) (*entity.Merchant, error)
	// GetByOwnerEmail compara sin distinguir mayúsculas.
	GetByOwnerEmail(ctx context.Context, email string) (*entity.Merchant, error)
}
