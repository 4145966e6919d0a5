package sales

import (
	"context"
	"fmt"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
)

// RecordPayment agrega un pago a una venta registrada. El monto pagado y el estado
// de pago son los únicos campos de dinero que cambian tras el registro.
func (uc *SaleUseCase) RecordPayment(ctx context.Context, merchantID, saleID string, in dto.RecordPaymentRequest) (*dto.SaleResponse, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive", domain.ErrInvalidInput)
	}
	var sale *entity.Sale
	err := uc.deps.TxRunner.RunSale(ctx, func(
		_ repository.BatchRepository,
		saleRepo repository.SaleRepository,
		_ repository.StockMovementRepository,
	) error {
		s, err := saleRepo.GetByID(ctx, merchantID, saleID)
		if err != nil {
			return err
		}
		if s == nil {
			return domain.ErrNotFound
		}
		if s.IsReturn() {
			return fmt.Errorf("%w: returns are settled at creation", domain.ErrInvalidInput)
		}
		paid := s.PaidAmount.Add(in.Amount)
		if paid.GreaterThan(s.Total) {
			return fmt.Errorf("%w: payment of %s exceeds the outstanding %s",
				domain.ErrInvalidInput, in.Amount.StringFixed(2), s.Total.Sub(s.PaidAmount).StringFixed(2))
		}
		s.PaidAmount = paid
		s.PaymentStatus = paymentStatus(paid, s.Total)
		s.UpdatedAt = uc.now()
		if err := saleRepo.UpdatePayment(ctx, s); err != nil {
			return err
		}
		sale = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("merchant_id", merchantID).Str("sale_id", saleID).Str("op", "payment").
		Str("paid", sale.PaidAmount.StringFixed(2)).Str("status", sale.PaymentStatus).Msg("payment recorded")
	return toSaleResponse(sale), nil
}
