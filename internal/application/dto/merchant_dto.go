package dto

import "time"

// RegisterMerchantRequest cuerpo de POST /api/auth/register: la tienda y el login de su dueño.
// StateCode acepta un código GST de dos dígitos o un nombre de estado.
type RegisterMerchantRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=200"`
	BusinessName string `json:"business_name" validate:"omitempty,max=200"`
	GSTIN        string `json:"gstin" validate:"omitempty,len=15"`
	StateCode    string `json:"state_code" validate:"required,max=64"`
	Address      string `json:"address" validate:"omitempty,max=200"`
	City         string `json:"city" validate:"omitempty,max=100"`
	Pincode      string `json:"pincode" validate:"omitempty,len=6,numeric"`
	Phone        string `json:"phone" validate:"omitempty,max=20"`
	Email        string `json:"email" validate:"omitempty,email"`
	OwnerEmail   string `json:"owner_email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
}

// MerchantResponse un comercio sin credenciales.
type MerchantResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	BusinessName string    `json:"business_name,omitempty"`
	GSTIN        string    `json:"gstin,omitempty"`
	StateCode    string    `json:"state_code"`
	StateName    string    `json:"state_name"`
	Address      string    `json:"address,omitempty"`
	City         string    `json:"city,omitempty"`
	Pincode      string    `json:"pincode,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Email        string    `json:"email,omitempty"`
	OwnerEmail   string    `json:"owner_email"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest cuerpo de POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse token bearer para las rutas /api.
type LoginResponse struct {
	Token    string           `json:"token"`
	Merchant MerchantResponse `json:"merchant"`
}
