package entity

import "time"

// Customer es un comprador registrado por un comercio. Las ventas de mostrador no tienen cliente.
type Customer struct {
	ID         string
	MerchantID string
	Name       string
	GSTIN      string // vacío para compradores no registrados (B2C)
	StateCode  string // vacío si nunca se registró el estado del comprador
	Address    string
	City       string
	Pincode    string
	Phone      string
	Email      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
