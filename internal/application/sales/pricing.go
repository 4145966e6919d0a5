package sales

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/inventory"
	"github.com/jhoicas/agro-pos-api/internal/domain/tax"
)

// cartLine es una línea validada de la solicitud con su producto.
type cartLine struct {
	product     *entity.Product
	qty         decimal.Decimal
	unitPrice   decimal.Decimal
	allocations []entity.AllocationLine
}

// loadCart valida las líneas y resuelve sus productos. Solo lectura.
func (uc *SaleUseCase) loadCart(ctx context.Context, merchantID string, lines []dto.SaleLineRequest) ([]*cartLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: a sale needs at least one line", domain.ErrInvalidInput)
	}
	products := make(map[string]*entity.Product, len(lines))
	cart := make([]*cartLine, 0, len(lines))
	for i, l := range lines {
		if l.ProductID == "" || !l.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: line %d needs a product and a positive quantity", domain.ErrInvalidInput, i+1)
		}
		product, ok := products[l.ProductID]
		if !ok {
			p, err := uc.deps.Products.GetByID(ctx, merchantID, l.ProductID)
			if err != nil {
				return nil, fmt.Errorf("load product: %w", err)
			}
			if p == nil {
				return nil, fmt.Errorf("product %s: %w", l.ProductID, domain.ErrNotFound)
			}
			if err := tax.ValidateRate(p.GSTRate); err != nil {
				return nil, fmt.Errorf("product %s: %w", p.ID, err)
			}
			products[l.ProductID] = p
			product = p
		}
		price := product.Price
		if l.UnitPrice != nil {
			if l.UnitPrice.IsNegative() {
				return nil, fmt.Errorf("%w: line %d has a negative price", domain.ErrInvalidInput, i+1)
			}
			price = *l.UnitPrice
		}
		cart = append(cart, &cartLine{product: product, qty: l.Quantity, unitPrice: price})
	}
	return cart, nil
}

// allocateCart ejecuta FEFO por línea. Las líneas del mismo producto comparten un
// ledger, así la segunda ve lo que tomó la primera.
func allocateCart(cart []*cartLine, load func(productID string) ([]*entity.Batch, error)) error {
	ledgers := make(map[string]*inventory.Ledger)
	for _, line := range cart {
		pid := line.product.ID
		ledger, ok := ledgers[pid]
		if !ok {
			batches, err := load(pid)
			if err != nil {
				return fmt.Errorf("load batches of %s: %w", pid, err)
			}
			ledger = inventory.NewLedger(pid, batches)
			ledgers[pid] = ledger
		}
		lines, err := ledger.Allocate(line.qty)
		if err != nil {
			return err
		}
		line.allocations = lines
	}
	return nil
}

// priceSale calcula líneas, impuestos y totales en una venta sin guardar.
// El gravable por línea es el bruto menos su parte del descuento de cabecera; el
// reparto agregado es la suma de los repartos por línea.
func priceSale(j tax.Jurisdiction, cart []*cartLine, discount decimal.Decimal, roundToRupee bool) (*entity.Sale, error) {
	gross := make([]decimal.Decimal, len(cart))
	for i, l := range cart {
		gross[i] = l.qty.Mul(l.unitPrice).Round(2)
	}
	shares, err := tax.ProrateDiscount(gross, discount)
	if err != nil {
		return nil, err
	}

	sale := &entity.Sale{
		Kind:                entity.SaleKindSale,
		Discount:            discount,
		SellerState:         j.SellerState,
		BuyerState:          j.BuyerState,
		Interstate:          j.Interstate,
		JurisdictionAssumed: j.Assumed,
	}
	breakdowns := make([]tax.Breakdown, 0, len(cart))
	subtotal := decimal.Zero
	for i, l := range cart {
		taxable := gross[i].Sub(shares[i])
		b, err := j.Split(taxable, l.product.GSTRate)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		breakdowns = append(breakdowns, b)
		subtotal = subtotal.Add(gross[i])
		sale.Items = append(sale.Items, &entity.SaleItem{
			Seq:          i + 1,
			ProductID:    l.product.ID,
			ProductName:  l.product.Name,
			HSNCode:      l.product.HSNCode,
			Unit:         l.product.Unit,
			Quantity:     l.qty,
			UnitPrice:    l.unitPrice,
			GrossAmount:  gross[i],
			Discount:     shares[i],
			TaxableValue: taxable,
			GSTRate:      l.product.GSTRate,
			CGST:         b.CGST,
			SGST:         b.SGST,
			IGST:         b.IGST,
			LineTotal:    taxable.Add(b.Tax()),
			Allocations:  l.allocations,
		})
	}
	applyTotals(sale, subtotal, tax.Sum(breakdowns), roundToRupee)
	return sale, nil
}

// applyTotals completa los importes de cabecera:
// total = subtotal - discount + cgst + sgst + igst + roundOff.
func applyTotals(sale *entity.Sale, subtotal decimal.Decimal, sum tax.Breakdown, roundToRupee bool) {
	sale.Subtotal = subtotal
	sale.CGST = sum.CGST
	sale.SGST = sum.SGST
	sale.IGST = sum.IGST
	unrounded := subtotal.Sub(sale.Discount).Add(sum.Tax())
	sale.Total, sale.RoundOff = tax.RoundTotal(unrounded, roundToRupee)
}

// batchWrite es el cambio neto a aplicar a un lote.
type batchWrite struct {
	version int64
	delta   decimal.Decimal
}

// aggregateWrites junta las asignaciones en una escritura por lote: una venta
// que toma dos veces de un lote emite un solo compare-and-swap. Los ids de lote
// salen ordenados, lo que mantiene estable el orden de bloqueo entre ventas concurrentes.
func aggregateWrites(items []*entity.SaleItem, sign int64) (map[string]*batchWrite, []string) {
	writes := make(map[string]*batchWrite)
	var order []string
	s := decimal.NewFromInt(sign)
	for _, it := range items {
		for _, a := range it.Allocations {
			w, ok := writes[a.BatchID]
			if !ok {
				w = &batchWrite{version: a.Version, delta: decimal.Zero}
				writes[a.BatchID] = w
				order = append(order, a.BatchID)
			}
			w.delta = w.delta.Add(a.Quantity.Mul(s))
		}
	}
	sort.Strings(order)
	return writes, order
}
