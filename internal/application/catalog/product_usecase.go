package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
	"github.com/jhoicas/agro-pos-api/internal/domain/tax"
)

// DefaultUnit es el código de unidad que se usa cuando no llega ninguno.
const DefaultUnit = "NOS"

// ProductUseCase mantiene el catálogo. El stock nunca se fija aquí; llega
// por recepciones de lotes.
type ProductUseCase struct {
	repo repository.ProductRepository
	now  func() time.Time
}

// NewProductUseCase construye el caso de uso.
func NewProductUseCase(repo repository.ProductRepository) *ProductUseCase {
	return &ProductUseCase{repo: repo, now: time.Now}
}

// Create agrega un producto. El SKU es único por comercio (ErrDuplicate).
func (uc *ProductUseCase) Create(ctx context.Context, merchantID string, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if strings.TrimSpace(in.SKU) == "" || strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: sku and name are required", domain.ErrInvalidInput)
	}
	if in.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	}
	if err := tax.ValidateRate(in.GSTRate); err != nil {
		return nil, err
	}
	if n := len(in.HSNCode); n != 0 && n != 4 && n != 6 && n != 8 {
		return nil, fmt.Errorf("%w: HSN code must have 4, 6 or 8 digits", domain.ErrInvalidInput)
	}
	unit := strings.ToUpper(strings.TrimSpace(in.Unit))
	if unit == "" {
		unit = DefaultUnit
	}

	now := uc.now()
	p := &entity.Product{
		ID:         uuid.New().String(),
		MerchantID: merchantID,
		SKU:        strings.TrimSpace(in.SKU),
		Name:       strings.TrimSpace(in.Name),
		HSNCode:    in.HSNCode,
		Unit:       unit,
		Price:      in.Price.Round(2),
		GSTRate:    in.GSTRate,
		IsService:  in.IsService,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

// Get devuelve ErrNotFound para ids desconocidos y productos de otros comercios.
func (uc *ProductUseCase) Get(ctx context.Context, merchantID, id string) (*dto.ProductResponse, error) {
	p, err := uc.repo.GetByID(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return toProductResponse(p), nil
}

func toProductResponse(p *entity.Product) *dto.ProductResponse {
	return &dto.ProductResponse{
		ID:         p.ID,
		MerchantID: p.MerchantID,
		SKU:        p.SKU,
		Name:       p.Name,
		HSNCode:    p.HSNCode,
		Unit:       p.Unit,
		Price:      p.Price,
		GSTRate:    p.GSTRate,
		IsService:  p.IsService,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}
