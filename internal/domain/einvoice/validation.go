package einvoice

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/tax"
	"github.com/jhoicas/agro-pos-api/pkg/gst"
)

// ErrInvalidDocument agrupa los fallos de validación local de un Document.
var ErrInvalidDocument = errors.New("e-invoice document failed validation")

// Validate revisa un Document contra las reglas del esquema de la autoridad antes
// de enviarlo: identificadores, número de documento, códigos HSN, tarifas y que el
// resumen de valores cuadre con los ítems.
func Validate(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	var errs []error

	if err := gst.ValidateGSTIN(doc.Seller.GSTIN); err != nil {
		errs = append(errs, fmt.Errorf("seller: %w", err))
	}
	if doc.SupplyType == SupplyTypeB2B {
		if err := gst.ValidateGSTIN(doc.Buyer.GSTIN); err != nil {
			errs = append(errs, fmt.Errorf("buyer: %w", err))
		}
	}
	if doc.Number == "" || len(doc.Number) > MaxDocNumberLen {
		errs = append(errs, fmt.Errorf("document number is required and must not exceed %d characters", MaxDocNumberLen))
	}
	if doc.Date.IsZero() {
		errs = append(errs, errors.New("document date is required"))
	}
	if !gst.IsValidStateCode(doc.Seller.StateCode) {
		errs = append(errs, fmt.Errorf("seller state code %q is invalid", doc.Seller.StateCode))
	}
	if !gst.IsValidStateCode(doc.PlaceOfSupply) {
		errs = append(errs, fmt.Errorf("place of supply %q is invalid", doc.PlaceOfSupply))
	}

	if len(doc.Items) == 0 {
		errs = append(errs, errors.New("at least one item is required"))
	}
	sumAss, sumC, sumS, sumI := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, it := range doc.Items {
		if len(it.HSNCode) < 4 {
			errs = append(errs, fmt.Errorf("item %d: HSN code must be at least 4 characters", it.SerialNo))
		}
		if err := tax.ValidateRate(it.GSTRate); err != nil {
			errs = append(errs, fmt.Errorf("item %d: %w", it.SerialNo, err))
		}
		if !it.Gross.Sub(it.Discount).Equal(it.Assessable) {
			errs = append(errs, fmt.Errorf("item %d: assessable %s != gross %s - discount %s",
				it.SerialNo, it.Assessable.String(), it.Gross.String(), it.Discount.String()))
		}
		if it.IGST.IsPositive() && (!it.CGST.IsZero() || !it.SGST.IsZero()) {
			errs = append(errs, fmt.Errorf("item %d: IGST cannot be combined with CGST/SGST", it.SerialNo))
		}
		lineTotal := it.Assessable.Add(it.CGST).Add(it.SGST).Add(it.IGST)
		if !lineTotal.Equal(it.Total) {
			errs = append(errs, fmt.Errorf("item %d: total %s != assessable + tax %s", it.SerialNo, it.Total.String(), lineTotal.String()))
		}
		sumAss = sumAss.Add(it.Assessable)
		sumC = sumC.Add(it.CGST)
		sumS = sumS.Add(it.SGST)
		sumI = sumI.Add(it.IGST)
	}
	t := doc.Totals
	if !t.Assessable.Equal(sumAss) || !t.CGST.Equal(sumC) || !t.SGST.Equal(sumS) || !t.IGST.Equal(sumI) {
		errs = append(errs, errors.New("value summary does not match the sum of items"))
	}
	expected := t.Assessable.Add(t.CGST).Add(t.SGST).Add(t.IGST).Add(t.RoundOff)
	if !t.TotalInvoice.Equal(expected) {
		errs = append(errs, fmt.Errorf("total invoice value %s != %s", t.TotalInvoice.String(), expected.String()))
	}
	if !t.TotalInvoice.IsPositive() {
		errs = append(errs, errors.New("total invoice value must be greater than 0"))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidDocument, domain.ErrInvalidInput}, errs...)...)
	}
	return nil
}
