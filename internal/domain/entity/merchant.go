package entity

import "time"

// Merchant es el comercio de insumos agrícolas (vendedor en cada factura).
type Merchant struct {
	ID           string
	Name         string // razón social
	BusinessName string // nombre comercial
	GSTIN        string // vacío = sin registro GST
	StateCode    string // código de estado GST de dos dígitos
	Address      string
	City         string
	Pincode      string
	Phone        string
	Email        string
	OwnerEmail   string // login de la cuenta del dueño del comercio
	PasswordHash string // bcrypt
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
