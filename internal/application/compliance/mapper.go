package compliance

import (
	"time"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

func toEInvoiceResponse(doc *entity.EInvoice) *dto.EInvoiceResponse {
	r := &dto.EInvoiceResponse{
		SaleID:            doc.SaleID,
		Status:            doc.Status,
		IRN:               doc.IRN,
		AckNumber:         doc.AckNumber,
		SignedQRCode:      doc.SignedQRCode,
		ReconcileRequired: doc.ReconcileRequired,
		Reasons:           doc.Reasons,
		LastError:         doc.LastError,
		LastAuditID:       doc.LastAuditID,
		CancelReasonCode:  doc.CancelReasonCode,
		CancelRemarks:     doc.CancelRemarks,
		Attempts:          doc.Attempts,
	}
	if doc.AckDate != nil {
		r.AckDate = doc.AckDate.Format(time.RFC3339)
	}
	if doc.CancelledAt != nil {
		r.CancelledAt = doc.CancelledAt.Format(time.RFC3339)
	}
	return r
}

func toAuditResponse(e *entity.AuditEntry) dto.AuditEntryResponse {
	return dto.AuditEntryResponse{
		ID:             e.ID,
		SaleID:         e.SaleID,
		Operation:      e.Operation,
		Outcome:        e.Outcome,
		HTTPStatus:     e.HTTPStatus,
		RequestDigest:  e.RequestDigest,
		ResponseDigest: e.ResponseDigest,
		ErrorMessage:   e.ErrorMessage,
		DurationMS:     e.DurationMS,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
	}
}
