package irp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/agro-pos-api/internal/domain/einvoice"
)

// IST es la zona en la que se expresan todas las fechas IRP.
var IST = time.FixedZone("IST", 5*3600+1800)

func toPayload(doc *einvoice.Document) invoicePayload {
	p := invoicePayload{
		Version: schemaVersion,
		TranDtls: tranDtls{
			TaxSch: "GST",
			SupTyp: doc.SupplyType,
			RegRev: yesNo(doc.ReverseCharge),
		},
		DocDtls: docDtls{
			Typ: doc.Type,
			No:  doc.Number,
			Dt:  doc.Date.In(IST).Format(docDateLayout),
		},
		SellerDtls: toParty(doc.Seller),
		BuyerDtls: buyerDtls{
			partyDtls: toParty(doc.Buyer),
			Pos:       doc.PlaceOfSupply,
		},
		ValDtls: valDtls{
			AssVal:    amount(doc.Totals.Assessable),
			CgstVal:   amount(doc.Totals.CGST),
			SgstVal:   amount(doc.Totals.SGST),
			IgstVal:   amount(doc.Totals.IGST),
			RndOffAmt: amount(doc.Totals.RoundOff),
			TotInvVal: amount(doc.Totals.TotalInvoice),
		},
	}
	for _, it := range doc.Items {
		item := itemDtls{
			SlNo:       strconv.Itoa(it.SerialNo),
			PrdDesc:    it.Description,
			IsServc:    yesNo(it.IsService),
			HsnCd:      it.HSNCode,
			Qty:        quantity(it.Quantity),
			Unit:       it.Unit,
			UnitPrice:  amount(it.UnitPrice),
			TotAmt:     amount(it.Gross),
			Discount:   amount(it.Discount),
			AssAmt:     amount(it.Assessable),
			GstRt:      amount(it.GSTRate),
			IgstAmt:    amount(it.IGST),
			CgstAmt:    amount(it.CGST),
			SgstAmt:    amount(it.SGST),
			TotItemVal: amount(it.Total),
		}
		if it.Batch != nil {
			item.BchDtls = &bchDtls{Nm: it.Batch.Name}
			if it.Batch.Expiry != nil {
				item.BchDtls.ExpDt = it.Batch.Expiry.Format(docDateLayout)
			}
		}
		p.ItemList = append(p.ItemList, item)
	}
	if doc.Payment != nil {
		p.PayDtls = &payDtls{
			Mode:     doc.Payment.Mode,
			PaidAmt:  amount(doc.Payment.PaidAmount),
			PaymtDue: amount(doc.Payment.Due),
		}
	}
	return p
}

func toParty(p einvoice.Party) partyDtls {
	pin, _ := strconv.Atoi(strings.TrimSpace(p.Pincode))
	return partyDtls{
		Gstin: p.GSTIN,
		LglNm: p.LegalName,
		TrdNm: p.TradeName,
		Addr1: p.Address1,
		Addr2: p.Address2,
		Loc:   p.Location,
		Pin:   pin,
		Stcd:  p.StateCode,
		Ph:    p.Phone,
		Em:    p.Email,
	}
}

func toRegistration(r *registrationResult, auditID string) (*einvoice.Registration, error) {
	if r.Irn == "" {
		return nil, fmt.Errorf("response carries no IRN")
	}
	ackDate, err := parseAckDate(r.AckDt)
	if err != nil {
		return nil, fmt.Errorf("AckDt %q: %w", r.AckDt, err)
	}
	status := r.Status
	if status == "" {
		status = einvoice.RemoteActive
	}
	return &einvoice.Registration{
		IRN:           r.Irn,
		AckNumber:     r.AckNo.String(),
		AckDate:       ackDate,
		SignedInvoice: r.SignedInvoice,
		SignedQRCode:  r.SignedQRCode,
		Status:        status,
		AuditID:       auditID,
	}, nil
}

func parseAckDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	return time.ParseInLocation(ackDateLayout, s, IST)
}

func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}
