package dto

import "time"

// CreateCustomerRequest cuerpo de POST /api/customers. Con GSTIN el comprador es
// registrado (B2B); sus dos primeros dígitos deben coincidir con StateCode si llegan ambos.
type CreateCustomerRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=200"`
	GSTIN     string `json:"gstin" validate:"omitempty,len=15"`
	StateCode string `json:"state_code" validate:"omitempty,max=64"`
	Address   string `json:"address" validate:"omitempty,max=200"`
	City      string `json:"city" validate:"omitempty,max=100"`
	Pincode   string `json:"pincode" validate:"omitempty,len=6,numeric"`
	Phone     string `json:"phone" validate:"omitempty,max=20"`
	Email     string `json:"email" validate:"omitempty,email"`
}

// CustomerResponse un comprador.
type CustomerResponse struct {
	ID         string    `json:"id"`
	MerchantID string    `json:"merchant_id"`
	Name       string    `json:"name"`
	GSTIN      string    `json:"gstin,omitempty"`
	StateCode  string    `json:"state_code,omitempty"`
	Address    string    `json:"address,omitempty"`
	City       string    `json:"city,omitempty"`
	Pincode    string    `json:"pincode,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
