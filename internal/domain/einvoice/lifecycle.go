package einvoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

// Acciones sobre un documento.
const (
	ActionGenerate = "generate"
	ActionCancel   = "cancel"
	ActionVerify   = "verify"
)

var transitions = map[string][]string{
	entity.EInvoiceStatusPending:   {entity.EInvoiceStatusGenerated, entity.EInvoiceStatusError},
	entity.EInvoiceStatusError:     {entity.EInvoiceStatusPending},
	entity.EInvoiceStatusGenerated: {entity.EInvoiceStatusCancelled},
}

// CanTransition indica si from -> to es un cambio de estado válido.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition lleva doc al estado to, o devuelve un IllegalTransitionError.
func Transition(doc *entity.EInvoice, to, action string) error {
	if !CanTransition(doc.Status, to) {
		return &domain.IllegalTransitionError{From: doc.Status, Action: action}
	}
	doc.Status = to
	return nil
}

// CheckGenerate valida que una (re)generación pueda empezar desde el estado actual.
// Un documento ya generado no es error; quien llama lo devuelve sin cambios.
func CheckGenerate(doc *entity.EInvoice) error {
	switch doc.Status {
	case entity.EInvoiceStatusPending, entity.EInvoiceStatusError, entity.EInvoiceStatusGenerated:
		return nil
	case entity.EInvoiceStatusNotApplicable:
		return &domain.IllegalTransitionError{From: doc.Status, Action: ActionGenerate, Reason: "sale is not eligible for e-invoicing"}
	default:
		return &domain.IllegalTransitionError{From: doc.Status, Action: ActionGenerate}
	}
}

// CancelReason es uno de los códigos de motivo de anulación de la autoridad.
type CancelReason string

const (
	CancelDuplicate     CancelReason = "1"
	CancelDataEntry     CancelReason = "2"
	CancelOrderCanceled CancelReason = "3"
	CancelOther         CancelReason = "4"
)

// MaxCancelRemarksLen es el límite de la autoridad para las observaciones de anulación.
const MaxCancelRemarksLen = 100

var cancelReasonNames = map[CancelReason]string{
	CancelDuplicate:     "duplicate",
	CancelDataEntry:     "data entry mistake",
	CancelOrderCanceled: "order cancelled",
	CancelOther:         "other",
}

// ParseCancelReason acepta el código numérico o su nombre.
func ParseCancelReason(v string) (CancelReason, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for code, name := range cancelReasonNames {
		if v == string(code) || v == name {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: unknown cancellation reason %q (1 duplicate, 2 data entry mistake, 3 order cancelled, 4 other)", domain.ErrInvalidInput, v)
}

// String devuelve el nombre del motivo.
func (r CancelReason) String() string { return cancelReasonNames[r] }

// CheckCancel valida una solicitud de anulación contra el documento: debe estar
// generado, traer observaciones y caer dentro de la ventana de anulación de la
// autoridad, contada desde la fecha de acuse.
func CheckCancel(doc *entity.EInvoice, reason CancelReason, remarks string, now time.Time, window time.Duration) error {
	if doc.Status != entity.EInvoiceStatusGenerated {
		return &domain.IllegalTransitionError{From: doc.Status, Action: ActionCancel, Reason: "only generated documents can be cancelled"}
	}
	if _, ok := cancelReasonNames[reason]; !ok {
		return fmt.Errorf("%w: unknown cancellation reason %q", domain.ErrInvalidInput, reason)
	}
	remarks = strings.TrimSpace(remarks)
	if remarks == "" {
		return fmt.Errorf("%w: cancellation remarks are required", domain.ErrInvalidInput)
	}
	if len(remarks) > MaxCancelRemarksLen {
		return fmt.Errorf("%w: cancellation remarks must not exceed %d characters", domain.ErrInvalidInput, MaxCancelRemarksLen)
	}
	if window > 0 && doc.AckDate != nil && now.Sub(*doc.AckDate) > window {
		return &domain.IllegalTransitionError{
			From:   doc.Status,
			Action: ActionCancel,
			Reason: fmt.Sprintf("cancellation window of %s after acknowledgement has passed", window),
		}
	}
	return nil
}
