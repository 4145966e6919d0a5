package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento de stock.
const (
	MovementTypeReceipt = "RECEIPT" // recepción de compra que crea un lote
	MovementTypeSale    = "SALE"
	MovementTypeReturn  = "RETURN"
	MovementTypeAdjust  = "ADJUSTMENT" // corrección de conteo o baja
)

// StockMovement es una fila del historial de lotes.
type StockMovement struct {
	ID         string
	MerchantID string
	ProductID  string
	BatchID    string
	SaleID     string // documento de referencia
	Type       string
	Quantity   decimal.Decimal // positivo entra, negativo sale
	CreatedAt  time.Time
	CreatedBy  string
}
