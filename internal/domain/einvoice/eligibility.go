package einvoice

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/pkg/gst"
)

// DefaultThreshold es el total mínimo de factura para registrar, en rupias.
var DefaultThreshold = decimal.NewFromInt(500)

// Rules son los datos del comercio que definen la elegibilidad.
type Rules struct {
	Enabled   bool // el comercio tiene la factura electrónica configurada y activa
	Threshold decimal.Decimal
}

// RulesFor deriva las reglas de la configuración del comercio. Una config nil
// significa que la factura electrónica no está configurada.
func RulesFor(cfg *entity.EInvoiceConfig, defaultThreshold decimal.Decimal) Rules {
	r := Rules{Threshold: defaultThreshold}
	if cfg == nil {
		return r
	}
	r.Enabled = cfg.Enabled
	if cfg.ThresholdOverride.Valid {
		r.Threshold = cfg.ThresholdOverride.Decimal
	}
	return r
}

// CheckEligibility decide si una venta debe registrarse. Cada condición fallida
// aporta un motivo; una venta elegible recibe los motivos que cumplió.
func CheckEligibility(sale *entity.Sale, buyer *entity.Customer, merchant *entity.Merchant, rules Rules) (bool, []string) {
	var reasons []string
	eligible := true
	fail := func(msg string) {
		eligible = false
		reasons = append(reasons, msg)
	}

	if !rules.Enabled {
		fail("e-invoicing is not enabled for this merchant")
	}
	switch {
	case merchant == nil || merchant.GSTIN == "":
		fail("merchant GSTIN not configured")
	default:
		if err := gst.ValidateGSTIN(merchant.GSTIN); err != nil {
			fail("merchant GSTIN is invalid: " + err.Error())
		}
	}
	switch {
	case buyer == nil:
		fail("walk-in sale: a registered business buyer is required (B2B only)")
	case buyer.GSTIN == "":
		fail("customer GSTIN required for e-invoice (B2B only)")
	default:
		if err := gst.ValidateGSTIN(buyer.GSTIN); err != nil {
			fail("customer GSTIN is invalid: " + err.Error())
		}
	}
	if sale == nil {
		fail("sale not found")
		return false, reasons
	}
	if sale.IsReturn() {
		fail("returns are not registered as e-invoices")
	}
	if sale.Total.LessThan(rules.Threshold) {
		fail(fmt.Sprintf("invoice amount ₹%s is below threshold ₹%s", sale.Total.StringFixed(2), rules.Threshold.StringFixed(2)))
	}

	if eligible {
		reasons = append(reasons,
			"B2B transaction with valid GSTINs",
			fmt.Sprintf("invoice amount ₹%s meets threshold ₹%s", sale.Total.StringFixed(2), rules.Threshold.StringFixed(2)),
		)
	}
	return eligible, reasons
}
