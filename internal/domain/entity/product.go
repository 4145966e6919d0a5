package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product es un ítem del catálogo. El stock vive en sus lotes, no aquí.
type Product struct {
	ID         string
	MerchantID string
	SKU        string
	Name       string
	HSNCode    string          // código del Sistema Armonizado (HSN), p. ej. 31010000 para fertilizantes
	Unit       string          // UQC, p. ej. KGS, LTR, NOS
	Price      decimal.Decimal // precio de venta por defecto (sin GST)
	GSTRate    decimal.Decimal // porcentaje, 0..28
	IsService  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
