package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias externas salvo decimal).
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicate         = errors.New("duplicate resource")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("access denied")
	ErrConflict          = errors.New("conflict with current state")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStockConflict     = errors.New("stock changed concurrently")

	ErrInvalidTaxJurisdiction = errors.New("invalid tax jurisdiction")
	ErrAuthorityAuth          = errors.New("tax authority authentication failed")
	ErrAuthorityRejected      = errors.New("tax authority rejected the document")
	ErrAuthorityUnavailable   = errors.New("tax authority unavailable")
	ErrIllegalTransition      = errors.New("illegal document state transition")
)

// InsufficientStockError informa cuánto de un producto no se pudo asignar.
type InsufficientStockError struct {
	ProductID string
	Requested decimal.Decimal
	Available decimal.Decimal
}

// Shortfall es Requested - Available.
func (e *InsufficientStockError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %s, available %s, shortfall %s",
		e.ProductID, e.Requested.String(), e.Available.String(), e.Shortfall().String())
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// StockConflictError indica que un lote cambió entre la asignación y la escritura.
// Todo el registro debe repetirse desde la asignación.
type StockConflictError struct {
	BatchID string
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("batch %s changed concurrently, retry the sale", e.BatchID)
}

func (e *StockConflictError) Unwrap() error { return ErrStockConflict }

// InvalidTaxJurisdictionError señala un código de estado ausente o desconocido.
type InvalidTaxJurisdictionError struct {
	Party string // "seller" o "buyer"
	Code  string
}

func (e *InvalidTaxJurisdictionError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s state code is missing", e.Party)
	}
	return fmt.Sprintf("%s state code %q is not a recognised GST state code", e.Party, e.Code)
}

func (e *InvalidTaxJurisdictionError) Unwrap() error { return ErrInvalidTaxJurisdiction }

// AuthorityAuthError se devuelve cuando la autoridad rechaza nuestras credenciales.
type AuthorityAuthError struct {
	Message string
	AuditID string
}

func (e *AuthorityAuthError) Error() string {
	return "tax authority authentication failed: " + e.Message
}

func (e *AuthorityAuthError) Unwrap() error { return ErrAuthorityAuth }

// AuthorityRejectedError lleva el mensaje de validación literal de la autoridad.
// Nunca se reintenta automáticamente.
type AuthorityRejectedError struct {
	Code    string
	Message string
	AuditID string
}

func (e *AuthorityRejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tax authority rejected document [%s]: %s", e.Code, e.Message)
	}
	return "tax authority rejected document: " + e.Message
}

func (e *AuthorityRejectedError) Unwrap() error { return ErrAuthorityRejected }

// AuthorityUnavailableError cubre fallos de red y timeouts. Reintentable.
type AuthorityUnavailableError struct {
	Op      string
	Err     error
	AuditID string
}

func (e *AuthorityUnavailableError) Error() string {
	return fmt.Sprintf("tax authority unavailable during %s: %v", e.Op, e.Err)
}

func (e *AuthorityUnavailableError) Unwrap() []error { return []error{ErrAuthorityUnavailable, e.Err} }

// IllegalTransitionError se devuelve p. ej. al anular un documento que nunca se generó.
type IllegalTransitionError struct {
	From   string
	Action string
	Reason string
}

func (e *IllegalTransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s a document in status %q", e.Action, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// AuditRef extrae el id de auditoría que lleva un error de la autoridad, si lo hay.
func AuditRef(err error) string {
	var authErr *AuthorityAuthError
	if errors.As(err, &authErr) {
		return authErr.AuditID
	}
	var rejErr *AuthorityRejectedError
	if errors.As(err, &rejErr) {
		return rejErr.AuditID
	}
	var unErr *AuthorityUnavailableError
	if errors.As(err, &unErr) {
		return unErr.AuditID
	}
	return ""
}
