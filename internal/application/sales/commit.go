package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/einvoice"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
)

var paymentMethods = map[string]bool{
	"cash": true, "card": true, "upi": true, "credit": true, "bank_transfer": true, "cheque": true,
}

// Commit asigna stock, valoriza el carrito y persiste la venta con los descuentos
// de lotes como una sola unidad atómica.
//
// Una venta concurrente que cambia un lote tomado hace fallar la escritura con
// *domain.StockConflictError; entonces se repite todo desde la asignación
// con un número de factura nuevo, hasta MaxConflictRetries veces. Un request id ya
// registrado devuelve la venta guardada sin tocar el stock, salvo que el cuerpo
// difiera de la primera solicitud, lo que da domain.ErrConflict.
func (uc *SaleUseCase) Commit(ctx context.Context, merchantID, userID string, in dto.CommitSaleRequest) (*dto.SaleResponse, error) {
	method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if !paymentMethods[method] {
		return nil, fmt.Errorf("%w: unsupported payment method %q", domain.ErrInvalidInput, in.PaymentMethod)
	}
	if in.PaidAmount != nil && in.PaidAmount.IsNegative() {
		return nil, fmt.Errorf("%w: paid amount cannot be negative", domain.ErrInvalidInput)
	}
	key := commitKey(in, method)
	if resp, err := uc.replay(ctx, merchantID, key); resp != nil || err != nil {
		return resp, err
	}

	p, err := uc.resolveParties(ctx, merchantID, in.CustomerID, in.BuyerState)
	if err != nil {
		return nil, err
	}
	cart, err := uc.loadCart(ctx, merchantID, in.Lines)
	if err != nil {
		return nil, err
	}
	rules, autoGenerate, err := uc.eligibilityRules(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	var sale *entity.Sale
	for attempt := 0; ; attempt++ {
		sale, err = uc.commitOnce(ctx, merchantID, userID, key, method, in, p, cart, rules)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrDuplicate) && key.id != "" {
			// Perdimos la carrera contra un reintento concurrente de la misma solicitud.
			if resp, rerr := uc.replay(ctx, merchantID, key); resp != nil || errors.Is(rerr, domain.ErrConflict) {
				return resp, rerr
			}
		}
		if errors.Is(err, domain.ErrStockConflict) && attempt < uc.cfg.MaxConflictRetries {
			uc.log.Warn().Str("merchant_id", merchantID).Str("op", "commit").
				Int("attempt", attempt+1).Err(err).Msg("stock conflict, retrying sale from allocation")
			continue
		}
		return nil, err
	}

	uc.log.Info().Str("merchant_id", merchantID).Str("sale_id", sale.ID).Str("op", "commit").
		Str("invoice_number", sale.InvoiceNumber).Str("total", sale.Total.StringFixed(2)).
		Str("einvoice_status", sale.EInvoiceStatus).Msg("sale committed")

	if sale.EInvoiceStatus == entity.EInvoiceStatusPending && autoGenerate && uc.deps.Scheduler != nil {
		if err := uc.deps.Scheduler.Schedule(ctx, merchantID, sale.ID); err != nil {
			// La venta queda; la generación se puede pedir a demanda.
			uc.log.Error().Str("merchant_id", merchantID).Str("sale_id", sale.ID).Str("op", "schedule").
				Err(err).Msg("could not schedule e-invoice generation")
		}
	}
	return toSaleResponse(sale), nil
}

func (uc *SaleUseCase) commitOnce(
	ctx context.Context,
	merchantID, userID string,
	key requestKey,
	method string,
	in dto.CommitSaleRequest,
	p *parties,
	cart []*cartLine,
	rules einvoice.Rules,
) (*entity.Sale, error) {
	// Se toma fuera de la transacción: un intento con rollback quema su número.
	number, err := uc.deps.Numbers.Next(ctx, merchantID, uc.cfg.InvoicePrefix)
	if err != nil {
		return nil, fmt.Errorf("invoice number: %w", err)
	}

	var sale *entity.Sale
	err = uc.deps.TxRunner.RunSale(ctx, func(
		batchRepo repository.BatchRepository,
		saleRepo repository.SaleRepository,
		movRepo repository.StockMovementRepository,
	) error {
		if err := allocateCart(cart, func(productID string) ([]*entity.Batch, error) {
			return batchRepo.ListAvailable(ctx, merchantID, productID)
		}); err != nil {
			return err
		}
		s, err := priceSale(p.jurisdiction, cart, in.Discount, uc.cfg.RoundToRupee)
		if err != nil {
			return err
		}
		now := uc.now()
		s.ID = uuid.New().String()
		s.MerchantID = merchantID
		if p.customer != nil {
			id := p.customer.ID
			s.CustomerID = &id
		}
		s.InvoiceNumber = number
		s.RequestID = key.id
		s.RequestHash = key.hash
		s.SaleDate = now
		s.PaymentMethod = method
		s.PaidAmount = s.Total
		switch {
		case in.PaidAmount != nil:
			if in.PaidAmount.GreaterThan(s.Total) {
				return fmt.Errorf("%w: paid amount %s exceeds total %s", domain.ErrInvalidInput, in.PaidAmount.String(), s.Total.String())
			}
			s.PaidAmount = *in.PaidAmount
		case method == "credit":
			s.PaidAmount = decimal.Zero
		}
		s.PaymentStatus = paymentStatus(s.PaidAmount, s.Total)
		s.CreatedBy = userID
		s.CreatedAt = now
		s.UpdatedAt = now
		for _, it := range s.Items {
			it.ID = uuid.New().String()
			it.SaleID = s.ID
		}
		s.EInvoiceStatus = entity.EInvoiceStatusNotApplicable
		if ok, _ := einvoice.CheckEligibility(s, p.customer, p.merchant, rules); ok {
			s.EInvoiceStatus = entity.EInvoiceStatusPending
		}

		if err := saleRepo.Create(ctx, s); err != nil {
			return err
		}
		if err := applyStock(ctx, batchRepo, movRepo, s, entity.MovementTypeSale, -1, userID); err != nil {
			return err
		}
		sale = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// applyStock escribe un compare-and-swap por lote y un movimiento por
// asignación. sign es -1 en ventas y +1 en devoluciones.
func applyStock(
	ctx context.Context,
	batchRepo repository.BatchRepository,
	movRepo repository.StockMovementRepository,
	sale *entity.Sale,
	movementType string,
	sign int64,
	userID string,
) error {
	writes, order := aggregateWrites(sale.Items, sign)
	for _, batchID := range order {
		w := writes[batchID]
		if err := batchRepo.AdjustAvailable(ctx, batchID, w.version, w.delta); err != nil {
			return err
		}
	}
	s := decimal.NewFromInt(sign)
	for _, it := range sale.Items {
		for _, a := range it.Allocations {
			if err := movRepo.Create(ctx, &entity.StockMovement{
				ID:         uuid.New().String(),
				MerchantID: sale.MerchantID,
				ProductID:  it.ProductID,
				BatchID:    a.BatchID,
				SaleID:     sale.ID,
				Type:       movementType,
				Quantity:   a.Quantity.Mul(s),
				CreatedAt:  sale.CreatedAt,
				CreatedBy:  userID,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func replayed(s *entity.Sale) *dto.SaleResponse {
	resp := toSaleResponse(s)
	resp.Replayed = true
	return resp
}
