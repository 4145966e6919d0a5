package inventory

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

// Allocate propone asignaciones de lotes para requestedQty de productID con
// First-Expired-First-Out (primero en vencer, primero en salir).
//
//   - Se saltan los lotes sin stock libre (available - reserved <= 0).
//   - Orden: vencimiento ascendente; los lotes sin vencimiento no son perecederos y van al final;
//     a igual vencimiento decide el id de lote menor.
//   - Voraz: toma min(pendiente, libre) de cada lote hasta cubrir todo.
//
// Si falta stock devuelve *domain.InsufficientStockError y ninguna línea. No tiene
// efectos secundarios; el stock solo se toca al registrar la venta.
func Allocate(productID string, requestedQty decimal.Decimal, batches []*entity.Batch) ([]entity.AllocationLine, error) {
	if !requestedQty.IsPositive() {
		return nil, domain.ErrInvalidInput
	}
	candidates := make([]*entity.Batch, 0, len(batches))
	total := decimal.Zero
	for _, b := range batches {
		if b == nil || b.ProductID != productID {
			continue
		}
		free := b.Free()
		if !free.IsPositive() {
			continue
		}
		candidates = append(candidates, b)
		total = total.Add(free)
	}
	if total.LessThan(requestedQty) {
		return nil, &domain.InsufficientStockError{ProductID: productID, Requested: requestedQty, Available: total}
	}
	SortFEFO(candidates)

	remaining := requestedQty
	lines := make([]entity.AllocationLine, 0, len(candidates))
	for _, b := range candidates {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, b.Free())
		lines = append(lines, entity.AllocationLine{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			ExpiryDate:  b.ExpiryDate,
			Quantity:    take,
			Version:     b.Version,
		})
		remaining = remaining.Sub(take)
	}
	return lines, nil
}

// SortFEFO ordena los lotes por prioridad de asignación, en el mismo slice.
func SortFEFO(batches []*entity.Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		return fefoLess(batches[i], batches[j])
	})
}

func fefoLess(a, b *entity.Batch) bool {
	switch {
	case a.ExpiryDate == nil && b.ExpiryDate == nil:
		return a.ID < b.ID
	case a.ExpiryDate == nil:
		return false
	case b.ExpiryDate == nil:
		return true
	case a.ExpiryDate.Equal(*b.ExpiryDate):
		return a.ID < b.ID
	default:
		return a.ExpiryDate.Before(*b.ExpiryDate)
	}
}

// SumAllocated devuelve la cantidad total de un conjunto de asignaciones.
func SumAllocated(lines []entity.AllocationLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Quantity)
	}
	return sum
}
