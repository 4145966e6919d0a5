package inventory

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

// Ledger es una copia de trabajo de los lotes de un producto. Al asignar varias líneas
// del mismo producto contra un Ledger, cada línea ve el stock que dejaron las
// anteriores. Los lotes de origen nunca se modifican.
type Ledger struct {
	productID string
	batches   []*entity.Batch
	byID      map[string]*entity.Batch
}

// NewLedger copia los lotes a un ledger para productID.
func NewLedger(productID string, batches []*entity.Batch) *Ledger {
	l := &Ledger{productID: productID, byID: make(map[string]*entity.Batch, len(batches))}
	for _, b := range batches {
		if b == nil || b.ProductID != productID {
			continue
		}
		cp := *b
		l.batches = append(l.batches, &cp)
		l.byID[cp.ID] = &cp
	}
	SortFEFO(l.batches)
	return l
}

// ProductID del ledger.
func (l *Ledger) ProductID() string { return l.productID }

// Batches devuelve las copias de trabajo en orden FEFO.
func (l *Ledger) Batches() []*entity.Batch { return l.batches }

// Batch devuelve la copia de trabajo de un lote.
func (l *Ledger) Batch(id string) (*entity.Batch, bool) {
	b, ok := l.byID[id]
	return b, ok
}

// Free devuelve la cantidad libre de un lote en la copia de trabajo.
func (l *Ledger) Free(batchID string) decimal.Decimal {
	if b, ok := l.byID[batchID]; ok {
		return b.Free()
	}
	return decimal.Zero
}

// TotalFree es la suma de la cantidad libre de todos los lotes.
func (l *Ledger) TotalFree() decimal.Decimal {
	total := decimal.Zero
	for _, b := range l.batches {
		total = total.Add(b.Free())
	}
	return total
}

// Allocate ejecuta FEFO sobre la copia de trabajo actual y consume el resultado.
func (l *Ledger) Allocate(qty decimal.Decimal) ([]entity.AllocationLine, error) {
	lines, err := Allocate(l.productID, qty, l.batches)
	if err != nil {
		return nil, err
	}
	if err := l.Consume(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// Consume descuenta de la copia de trabajo las cantidades asignadas.
func (l *Ledger) Consume(lines []entity.AllocationLine) error {
	for _, line := range lines {
		b, ok := l.byID[line.BatchID]
		if !ok {
			return fmt.Errorf("ledger: batch %s not in product %s: %w", line.BatchID, l.productID, domain.ErrNotFound)
		}
		if b.Free().LessThan(line.Quantity) {
			return &domain.InsufficientStockError{ProductID: l.productID, Requested: line.Quantity, Available: b.Free()}
		}
	}
	for _, line := range lines {
		b := l.byID[line.BatchID]
		b.Available = b.Available.Sub(line.Quantity)
	}
	return nil
}

// Restore devuelve cantidades a la copia de trabajo (devoluciones).
func (l *Ledger) Restore(lines []entity.AllocationLine) error {
	for _, line := range lines {
		b, ok := l.byID[line.BatchID]
		if !ok {
			return fmt.Errorf("ledger: batch %s not in product %s: %w", line.BatchID, l.productID, domain.ErrNotFound)
		}
		b.Available = b.Available.Add(line.Quantity)
	}
	return nil
}
