package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Batch es un lote físico de un producto con su propio vencimiento.
// Invariante: 0 <= Reserved <= Available. Los lotes no se borran, solo se agotan.
type Batch struct {
	ID              string
	MerchantID      string
	ProductID       string
	BatchNumber     string
	ExpiryDate      *time.Time // nil = no perecedero
	ManufactureDate *time.Time
	Available       decimal.Decimal
	Reserved        decimal.Decimal
	SupplierRef     string
	Version         int64 // se incrementa en cada escritura; sirve para compare-and-swap
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Free es la cantidad que aún se puede asignar.
func (b *Batch) Free() decimal.Decimal {
	free := b.Available.Sub(b.Reserved)
	if free.IsNegative() {
		return decimal.Zero
	}
	return free
}

// AllocationLine es un par (lote, cantidad) propuesto por el asignador FEFO.
type AllocationLine struct {
	BatchID     string
	BatchNumber string
	ExpiryDate  *time.Time
	Quantity    decimal.Decimal
	// Version es la versión del lote con la que se calculó la asignación.
	Version int64
}
