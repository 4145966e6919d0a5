package sales

import (
	"time"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

const dateLayout = "2006-01-02"

func toSaleResponse(s *entity.Sale) *dto.SaleResponse {
	resp := &dto.SaleResponse{
		ID:                  s.ID,
		Kind:                s.Kind,
		InvoiceNumber:       s.InvoiceNumber,
		RequestID:           s.RequestID,
		SaleDate:            s.SaleDate.Format(time.RFC3339),
		PaymentMethod:       s.PaymentMethod,
		PaymentStatus:       s.PaymentStatus,
		PaidAmount:          s.PaidAmount,
		Subtotal:            s.Subtotal,
		Discount:            s.Discount,
		CGST:                s.CGST,
		SGST:                s.SGST,
		IGST:                s.IGST,
		RoundOff:            s.RoundOff,
		Total:               s.Total,
		SellerState:         s.SellerState,
		BuyerState:          s.BuyerState,
		Interstate:          s.Interstate,
		JurisdictionAssumed: s.JurisdictionAssumed,
		EInvoiceStatus:      s.EInvoiceStatus,
		Items:               make([]dto.SaleItemResponse, 0, len(s.Items)),
	}
	if s.CustomerID != nil {
		resp.CustomerID = *s.CustomerID
	}
	if s.ReturnOfSaleID != nil {
		resp.ReturnOfSaleID = *s.ReturnOfSaleID
	}
	if s.JurisdictionAssumed {
		mode := "intra-state"
		if s.Interstate {
			mode = "inter-state"
		}
		resp.Warnings = append(resp.Warnings,
			"buyer state unknown: GST computed as "+mode+" by default, please confirm the place of supply")
	}
	for _, it := range s.Items {
		item := dto.SaleItemResponse{
			Seq:          it.Seq,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			HSNCode:      it.HSNCode,
			Unit:         it.Unit,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			GrossAmount:  it.GrossAmount,
			Discount:     it.Discount,
			TaxableValue: it.TaxableValue,
			GSTRate:      it.GSTRate,
			CGST:         it.CGST,
			SGST:         it.SGST,
			IGST:         it.IGST,
			LineTotal:    it.LineTotal,
			Allocations:  make([]dto.AllocationResponse, 0, len(it.Allocations)),
		}
		if it.ReturnOfItemID != nil {
			item.ReturnOfItemID = *it.ReturnOfItemID
		}
		for _, a := range it.Allocations {
			ar := dto.AllocationResponse{BatchID: a.BatchID, BatchNumber: a.BatchNumber, Quantity: a.Quantity}
			if a.ExpiryDate != nil {
				ar.ExpiryDate = a.ExpiryDate.Format(dateLayout)
			}
			item.Allocations = append(item.Allocations, ar)
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}
