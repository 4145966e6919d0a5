package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateProductRequest cuerpo de POST /api/products.
type CreateProductRequest struct {
	SKU       string          `json:"sku" validate:"required,min=1,max=100"`
	Name      string          `json:"name" validate:"required,min=1,max=200"`
	HSNCode   string          `json:"hsn_code" validate:"omitempty,numeric,min=4,max=8"`
	Unit      string          `json:"unit" validate:"omitempty,max=8"`
	Price     decimal.Decimal `json:"price"`
	GSTRate   decimal.Decimal `json:"gst_rate"`
	IsService bool            `json:"is_service"`
}

// ProductResponse un ítem del catálogo.
type ProductResponse struct {
	ID         string          `json:"id"`
	MerchantID string          `json:"merchant_id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	HSNCode    string          `json:"hsn_code"`
	Unit       string          `json:"unit"`
	Price      decimal.Decimal `json:"price"`
	GSTRate    decimal.Decimal `json:"gst_rate"`
	IsService  bool            `json:"is_service"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
