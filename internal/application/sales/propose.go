package sales

import (
	"context"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

// Propose ejecuta asignación y valorización sobre la foto actual del stock
// sin persistir nada ni tomar bloqueos. El resultado es orientativo: Commit
// vuelve a asignar dentro de su transacción.
func (uc *SaleUseCase) Propose(ctx context.Context, merchantID string, in dto.ProposeSaleRequest) (*dto.SaleResponse, error) {
	p, err := uc.resolveParties(ctx, merchantID, in.CustomerID, in.BuyerState)
	if err != nil {
		return nil, err
	}
	cart, err := uc.loadCart(ctx, merchantID, in.Lines)
	if err != nil {
		return nil, err
	}
	if err := allocateCart(cart, func(productID string) ([]*entity.Batch, error) {
		return uc.deps.Batches.ListAvailable(ctx, merchantID, productID)
	}); err != nil {
		return nil, err
	}
	s, err := priceSale(p.jurisdiction, cart, in.Discount, uc.cfg.RoundToRupee)
	if err != nil {
		return nil, err
	}
	s.MerchantID = merchantID
	s.SaleDate = uc.now()
	if p.customer != nil {
		id := p.customer.ID
		s.CustomerID = &id
	}
	return toSaleResponse(s), nil
}

// Get devuelve una venta con sus ítems y asignaciones de lotes.
func (uc *SaleUseCase) Get(ctx context.Context, merchantID, saleID string) (*dto.SaleResponse, error) {
	s, err := uc.deps.Sales.GetByID(ctx, merchantID, saleID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, domain.ErrNotFound
	}
	return toSaleResponse(s), nil
}
