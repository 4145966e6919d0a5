package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
	"github.com/jhoicas/agro-pos-api/internal/domain/tax"
)

// CreateReturn registra una venta compensatoria con cantidades negativas contra saleID
// y devuelve la mercadería a los lotes de los que salieron las líneas originales,
// el de vencimiento más tardío primero. Una línea nunca devuelve más de lo vendido
// menos lo ya devuelto. Los impuestos siguen la jurisdicción de la original.
func (uc *SaleUseCase) CreateReturn(ctx context.Context, merchantID, userID, saleID string, in dto.CreateReturnRequest) (*dto.SaleResponse, error) {
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: a return needs at least one line", domain.ErrInvalidInput)
	}
	seen := make(map[int]bool, len(in.Lines))
	for i, l := range in.Lines {
		if l.ItemSeq < 1 || !l.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: return line %d needs an item and a positive quantity", domain.ErrInvalidInput, i+1)
		}
		if seen[l.ItemSeq] {
			return nil, fmt.Errorf("%w: item %d listed twice", domain.ErrInvalidInput, l.ItemSeq)
		}
		seen[l.ItemSeq] = true
	}
	key := returnKey(saleID, in)
	if resp, err := uc.replay(ctx, merchantID, key); resp != nil || err != nil {
		return resp, err
	}

	original, err := uc.deps.Sales.GetByID(ctx, merchantID, saleID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, domain.ErrNotFound
	}
	if original.IsReturn() {
		return nil, fmt.Errorf("%w: a return cannot itself be returned", domain.ErrInvalidInput)
	}

	var ret *entity.Sale
	for attempt := 0; ; attempt++ {
		ret, err = uc.returnOnce(ctx, merchantID, userID, key, original, in.Lines)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrDuplicate) && key.id != "" {
			if resp, rerr := uc.replay(ctx, merchantID, key); resp != nil || errors.Is(rerr, domain.ErrConflict) {
				return resp, rerr
			}
		}
		if errors.Is(err, domain.ErrStockConflict) && attempt < uc.cfg.MaxConflictRetries {
			uc.log.Warn().Str("merchant_id", merchantID).Str("sale_id", saleID).Str("op", "return").
				Int("attempt", attempt+1).Err(err).Msg("stock conflict, retrying return")
			continue
		}
		return nil, err
	}

	uc.log.Info().Str("merchant_id", merchantID).Str("sale_id", ret.ID).Str("op", "return").
		Str("return_of", saleID).Str("total", ret.Total.StringFixed(2)).Msg("return committed")
	return toSaleResponse(ret), nil
}

// returnedSoFar acumula lo que devolvieron las devoluciones anteriores por ítem original.
type returnedSoFar struct {
	qty       map[string]decimal.Decimal
	gross     map[string]decimal.Decimal
	taxable   map[string]decimal.Decimal
	restocked map[string]map[string]decimal.Decimal // id de ítem -> id de lote -> cantidad
}

func collectReturned(prior []*entity.Sale) *returnedSoFar {
	r := &returnedSoFar{
		qty:       map[string]decimal.Decimal{},
		gross:     map[string]decimal.Decimal{},
		taxable:   map[string]decimal.Decimal{},
		restocked: map[string]map[string]decimal.Decimal{},
	}
	for _, s := range prior {
		for _, it := range s.Items {
			if it.ReturnOfItemID == nil {
				continue
			}
			id := *it.ReturnOfItemID
			r.qty[id] = r.qty[id].Add(it.Quantity.Abs())
			r.gross[id] = r.gross[id].Add(it.GrossAmount.Abs())
			r.taxable[id] = r.taxable[id].Add(it.TaxableValue.Abs())
			if r.restocked[id] == nil {
				r.restocked[id] = map[string]decimal.Decimal{}
			}
			for _, a := range it.Allocations {
				r.restocked[id][a.BatchID] = r.restocked[id][a.BatchID].Add(a.Quantity)
			}
		}
	}
	return r
}

func (uc *SaleUseCase) returnOnce(
	ctx context.Context,
	merchantID, userID string,
	key requestKey,
	original *entity.Sale,
	lines []dto.ReturnLineRequest,
) (*entity.Sale, error) {
	number, err := uc.deps.Numbers.Next(ctx, merchantID, uc.cfg.ReturnPrefix)
	if err != nil {
		return nil, fmt.Errorf("return number: %w", err)
	}
	j := tax.Jurisdiction{
		SellerState: original.SellerState,
		BuyerState:  original.BuyerState,
		Interstate:  original.Interstate,
		Assumed:     original.JurisdictionAssumed,
	}
	bySeq := make(map[int]*entity.SaleItem, len(original.Items))
	for _, it := range original.Items {
		bySeq[it.Seq] = it
	}

	var ret *entity.Sale
	err = uc.deps.TxRunner.RunSale(ctx, func(
		batchRepo repository.BatchRepository,
		saleRepo repository.SaleRepository,
		movRepo repository.StockMovementRepository,
	) error {
		prior, err := saleRepo.ListReturns(ctx, merchantID, original.ID)
		if err != nil {
			return fmt.Errorf("load previous returns: %w", err)
		}
		done := collectReturned(prior)

		now := uc.now()
		s := &entity.Sale{
			ID:                  uuid.New().String(),
			MerchantID:          merchantID,
			CustomerID:          original.CustomerID,
			Kind:                entity.SaleKindReturn,
			ReturnOfSaleID:      &original.ID,
			InvoiceNumber:       number,
			RequestID:           key.id,
			RequestHash:         key.hash,
			SaleDate:            now,
			PaymentMethod:       original.PaymentMethod,
			SellerState:         original.SellerState,
			BuyerState:          original.BuyerState,
			Interstate:          original.Interstate,
			JurisdictionAssumed: original.JurisdictionAssumed,
			EInvoiceStatus:      entity.EInvoiceStatusNotApplicable,
			CreatedBy:           userID,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		breakdowns := make([]tax.Breakdown, 0, len(lines))
		subtotal, discount := decimal.Zero, decimal.Zero
		for i, l := range lines {
			orig, ok := bySeq[l.ItemSeq]
			if !ok {
				return fmt.Errorf("%w: sale has no item %d", domain.ErrInvalidInput, l.ItemSeq)
			}
			remaining := orig.Quantity.Sub(done.qty[orig.ID])
			if l.Quantity.GreaterThan(remaining) {
				return fmt.Errorf("%w: item %d: only %s of %s can still be returned",
					domain.ErrInvalidInput, l.ItemSeq, remaining.String(), orig.Quantity.String())
			}
			var gross, taxable decimal.Decimal
			if l.Quantity.Equal(remaining) {
				// La última devolución de la línea toma el resto exacto, así el redondeo no se desvía.
				gross = orig.GrossAmount.Sub(done.gross[orig.ID])
				taxable = orig.TaxableValue.Sub(done.taxable[orig.ID])
			} else {
				gross = orig.GrossAmount.Mul(l.Quantity).Div(orig.Quantity).Round(2)
				taxable = orig.TaxableValue.Mul(l.Quantity).Div(orig.Quantity).Round(2)
			}
			b, err := j.Split(taxable.Neg(), orig.GSTRate)
			if err != nil {
				return fmt.Errorf("item %d: %w", l.ItemSeq, err)
			}
			allocs, err := restockPlan(ctx, batchRepo, merchantID, orig, done.restocked[orig.ID], l.Quantity)
			if err != nil {
				return err
			}
			origID := orig.ID
			s.Items = append(s.Items, &entity.SaleItem{
				ID:             uuid.New().String(),
				SaleID:         s.ID,
				Seq:            i + 1,
				ProductID:      orig.ProductID,
				ProductName:    orig.ProductName,
				HSNCode:        orig.HSNCode,
				Unit:           orig.Unit,
				Quantity:       l.Quantity.Neg(),
				UnitPrice:      orig.UnitPrice,
				GrossAmount:    gross.Neg(),
				Discount:       gross.Sub(taxable).Neg(),
				TaxableValue:   taxable.Neg(),
				GSTRate:        orig.GSTRate,
				CGST:           b.CGST,
				SGST:           b.SGST,
				IGST:           b.IGST,
				LineTotal:      taxable.Neg().Add(b.Tax()),
				ReturnOfItemID: &origID,
				Allocations:    allocs,
			})
			breakdowns = append(breakdowns, b)
			subtotal = subtotal.Sub(gross)
			discount = discount.Sub(gross.Sub(taxable))
		}
		s.Discount = discount
		applyTotals(s, subtotal, tax.Sum(breakdowns), uc.cfg.RoundToRupee)
		s.PaidAmount = s.Total
		s.PaymentStatus = entity.PaymentStatusPaid

		if err := saleRepo.Create(ctx, s); err != nil {
			return err
		}
		if err := applyStock(ctx, batchRepo, movRepo, s, entity.MovementTypeReturn, 1, userID); err != nil {
			return err
		}
		ret = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// restockPlan reparte qty de vuelta entre los lotes de los que salió el ítem original,
// vencimiento más tardío primero, sin superar lo que dio cada lote menos lo que
// ya repusieron devoluciones anteriores. Las versiones se leen dentro de la transacción.
func restockPlan(
	ctx context.Context,
	batchRepo repository.BatchRepository,
	merchantID string,
	orig *entity.SaleItem,
	restocked map[string]decimal.Decimal,
	qty decimal.Decimal,
) ([]entity.AllocationLine, error) {
	allocs := append([]entity.AllocationLine(nil), orig.Allocations...)
	sort.SliceStable(allocs, func(i, j int) bool {
		a, b := allocs[i].ExpiryDate, allocs[j].ExpiryDate
		switch {
		case a == nil && b == nil:
			return allocs[i].BatchID > allocs[j].BatchID
		case a == nil:
			return true
		case b == nil:
			return false
		case a.Equal(*b):
			return allocs[i].BatchID > allocs[j].BatchID
		default:
			return a.After(*b)
		}
	})

	left := qty
	var plan []entity.AllocationLine
	for _, a := range allocs {
		if !left.IsPositive() {
			break
		}
		capacity := a.Quantity.Sub(restocked[a.BatchID])
		if !capacity.IsPositive() {
			continue
		}
		take := decimal.Min(capacity, left)
		batch, err := batchRepo.GetByID(ctx, merchantID, a.BatchID)
		if err != nil {
			return nil, fmt.Errorf("load batch %s: %w", a.BatchID, err)
		}
		if batch == nil {
			return nil, fmt.Errorf("batch %s: %w", a.BatchID, domain.ErrNotFound)
		}
		plan = append(plan, entity.AllocationLine{
			BatchID:     a.BatchID,
			BatchNumber: a.BatchNumber,
			ExpiryDate:  a.ExpiryDate,
			Quantity:    take,
			Version:     batch.Version,
		})
		left = left.Sub(take)
	}
	if left.IsPositive() {
		return nil, fmt.Errorf("%w: item %d: batch allocations cannot absorb %s more units", domain.ErrConflict, orig.Seq, left.String())
	}
	return plan, nil
}
