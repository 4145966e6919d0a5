// Package einvoice contiene el modelo de factura electrónica GST independiente de la autoridad:
// el documento armado desde una venta registrada, su validación, las reglas de
// elegibilidad y la máquina de estados. Los formatos de red viven en el adaptador del gateway.
package einvoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/pkg/gst"
)

// Tipos de documento aceptados por la autoridad.
const (
	DocTypeInvoice    = "INV"
	DocTypeCreditNote = "CRN"
)

// SupplyTypeB2B es el único tipo de suministro que registra este flujo.
const SupplyTypeB2B = "B2B"

// MaxDocNumberLen es el límite de la autoridad para números de documento.
const MaxDocNumberLen = 16

// Document es el documento tributario registrado para una venta.
type Document struct {
	Type          string
	Number        string
	Date          time.Time
	SupplyType    string
	ReverseCharge bool
	Seller        Party
	Buyer         Party
	PlaceOfSupply string // código de estado
	Items         []Item
	Totals        Totals
	Payment       *Payment
}

// Party es el bloque de vendedor o comprador.
type Party struct {
	GSTIN     string
	LegalName string
	TradeName string
	Address1  string
	Address2  string
	Location  string
	Pincode   string
	StateCode string
	Phone     string
	Email     string
}

// Item es una línea del documento.
type Item struct {
	SerialNo    int
	Description string
	IsService   bool
	HSNCode     string
	Quantity    decimal.Decimal
	Unit        string
	UnitPrice   decimal.Decimal
	Gross       decimal.Decimal // Quantity * UnitPrice
	Discount    decimal.Decimal
	Assessable  decimal.Decimal // Gross - Discount
	GSTRate     decimal.Decimal
	CGST        decimal.Decimal
	SGST        decimal.Decimal
	IGST        decimal.Decimal
	Total       decimal.Decimal // Assessable + impuestos
	Batch       *BatchRef
}

// BatchRef identifica el lote del que salió un ítem.
type BatchRef struct {
	Name   string
	Expiry *time.Time
}

// Totals es el resumen de valores del documento.
type Totals struct {
	Assessable   decimal.Decimal
	CGST         decimal.Decimal
	SGST         decimal.Decimal
	IGST         decimal.Decimal
	RoundOff     decimal.Decimal
	TotalInvoice decimal.Decimal
}

// Payment resume cómo se pagó la venta.
type Payment struct {
	Mode       string
	PaidAmount decimal.Decimal
	Due        decimal.Decimal
}

// BuildDocument mapea una venta registrada con sus ítems a un Document.
// Los importes se toman de la venta tal como se registró; no se recalcula nada.
func BuildDocument(sale *entity.Sale, merchant *entity.Merchant, buyer *entity.Customer) (*Document, error) {
	if sale == nil || merchant == nil {
		return nil, fmt.Errorf("%w: sale and merchant are required", domain.ErrInvalidInput)
	}
	if buyer == nil {
		return nil, fmt.Errorf("%w: e-invoices need a registered buyer", domain.ErrInvalidInput)
	}
	docType := DocTypeInvoice
	if sale.IsReturn() {
		docType = DocTypeCreditNote
	}
	buyerState := sale.BuyerState
	if buyerState == "" {
		buyerState = gst.StateCodeOfGSTIN(buyer.GSTIN)
	}

	doc := &Document{
		Type:          docType,
		Number:        sale.InvoiceNumber,
		Date:          sale.SaleDate,
		SupplyType:    SupplyTypeB2B,
		PlaceOfSupply: buyerState,
		Seller: Party{
			GSTIN:     gst.NormalizeGSTIN(merchant.GSTIN),
			LegalName: merchant.Name,
			TradeName: firstNonEmpty(merchant.BusinessName, merchant.Name),
			Address1:  merchant.Address,
			Location:  merchant.City,
			Pincode:   merchant.Pincode,
			StateCode: sale.SellerState,
			Phone:     merchant.Phone,
			Email:     merchant.Email,
		},
		Buyer: Party{
			GSTIN:     gst.NormalizeGSTIN(buyer.GSTIN),
			LegalName: buyer.Name,
			Address1:  buyer.Address,
			Location:  buyer.City,
			Pincode:   buyer.Pincode,
			StateCode: firstNonEmpty(buyer.StateCode, buyerState),
			Phone:     buyer.Phone,
			Email:     buyer.Email,
		},
		Totals: Totals{
			CGST:         sale.CGST.Abs(),
			SGST:         sale.SGST.Abs(),
			IGST:         sale.IGST.Abs(),
			RoundOff:     sale.RoundOff,
			TotalInvoice: sale.Total.Abs(),
		},
	}
	if sale.IsReturn() {
		doc.Totals.RoundOff = sale.RoundOff.Neg()
	}

	assessable := decimal.Zero
	for i, it := range sale.Items {
		item := Item{
			SerialNo:    i + 1,
			Description: it.ProductName,
			HSNCode:     it.HSNCode,
			Quantity:    it.Quantity.Abs(),
			Unit:        it.Unit,
			UnitPrice:   it.UnitPrice,
			Gross:       it.GrossAmount.Abs(),
			Discount:    it.Discount.Abs(),
			Assessable:  it.TaxableValue.Abs(),
			GSTRate:     it.GSTRate,
			CGST:        it.CGST.Abs(),
			SGST:        it.SGST.Abs(),
			IGST:        it.IGST.Abs(),
			Total:       it.LineTotal.Abs(),
		}
		if len(it.Allocations) > 0 {
			a := it.Allocations[0]
			item.Batch = &BatchRef{Name: a.BatchNumber, Expiry: a.ExpiryDate}
		}
		assessable = assessable.Add(item.Assessable)
		doc.Items = append(doc.Items, item)
	}
	doc.Totals.Assessable = assessable

	if sale.PaymentMethod != "" {
		doc.Payment = &Payment{
			Mode:       strings.ToUpper(sale.PaymentMethod),
			PaidAmount: sale.PaidAmount.Abs(),
			Due:        sale.Total.Abs().Sub(sale.PaidAmount.Abs()),
		}
	}
	return doc, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
