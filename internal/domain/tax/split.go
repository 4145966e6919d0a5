// Package tax calcula el reparto GST de las líneas de venta. Todo aquí es puro:
// las mismas entradas producen siempre las mismas salidas.
package tax

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/pkg/gst"
)

// MaxRate es la tarifa GST más alta.
var MaxRate = decimal.NewFromInt(28)

var hundred = decimal.NewFromInt(100)

// UnknownBuyerPolicy decide el reparto cuando el comprador no tiene estado registrado.
type UnknownBuyerPolicy string

const (
	// UnknownBuyerIntra trata al comprador como del mismo estado. El resultado queda marcado como asumido.
	UnknownBuyerIntra UnknownBuyerPolicy = "intra"
	// UnknownBuyerInter trata al comprador como de otro estado. Marcado como asumido.
	UnknownBuyerInter UnknownBuyerPolicy = "inter"
	// UnknownBuyerReject se niega a calcular el reparto sin estado del comprador.
	UnknownBuyerReject UnknownBuyerPolicy = "reject"
)

// ParseUnknownBuyerPolicy acepta intra, inter o reject. Vacío equivale a intra.
func ParseUnknownBuyerPolicy(v string) (UnknownBuyerPolicy, error) {
	switch p := UnknownBuyerPolicy(strings.ToLower(strings.TrimSpace(v))); p {
	case "":
		return UnknownBuyerIntra, nil
	case UnknownBuyerIntra, UnknownBuyerInter, UnknownBuyerReject:
		return p, nil
	default:
		return "", fmt.Errorf("tax: unknown buyer state policy %q (want intra, inter or reject)", v)
	}
}

// Jurisdiction es la decisión de lugar de suministro resuelta para una venta.
type Jurisdiction struct {
	SellerState string
	BuyerState  string // el estado para el que se calculó el reparto
	Interstate  bool
	// Assumed es true cuando BuyerState salió de la política y no del comprador.
	Assumed bool
}

// Resolve valida ambos códigos de estado y decide si es intra o interestatal.
// Un estado de comprador vacío se resuelve con policy; uno desconocido es error.
func Resolve(sellerState, buyerState string, policy UnknownBuyerPolicy) (Jurisdiction, error) {
	seller, ok := gst.NormalizeStateCode(sellerState)
	if !ok {
		return Jurisdiction{}, &domain.InvalidTaxJurisdictionError{Party: "seller", Code: strings.TrimSpace(sellerState)}
	}
	if strings.TrimSpace(buyerState) == "" {
		switch policy {
		case UnknownBuyerInter:
			return Jurisdiction{SellerState: seller, BuyerState: "", Interstate: true, Assumed: true}, nil
		case UnknownBuyerReject:
			return Jurisdiction{}, &domain.InvalidTaxJurisdictionError{Party: "buyer"}
		default:
			return Jurisdiction{SellerState: seller, BuyerState: seller, Interstate: false, Assumed: true}, nil
		}
	}
	buyer, ok := gst.NormalizeStateCode(buyerState)
	if !ok {
		return Jurisdiction{}, &domain.InvalidTaxJurisdictionError{Party: "buyer", Code: strings.TrimSpace(buyerState)}
	}
	return Jurisdiction{SellerState: seller, BuyerState: buyer, Interstate: seller != buyer}, nil
}

// Breakdown es el reparto GST de un importe gravable, o la suma de varios.
type Breakdown struct {
	Taxable decimal.Decimal
	Rate    decimal.Decimal // cero en agregados
	CGST    decimal.Decimal
	SGST    decimal.Decimal
	IGST    decimal.Decimal
}

// Tax es CGST + SGST + IGST.
func (b Breakdown) Tax() decimal.Decimal {
	return b.CGST.Add(b.SGST).Add(b.IGST)
}

// Add suma dos repartos componente a componente.
func (b Breakdown) Add(o Breakdown) Breakdown {
	return Breakdown{
		Taxable: b.Taxable.Add(o.Taxable),
		CGST:    b.CGST.Add(o.CGST),
		SGST:    b.SGST.Add(o.SGST),
		IGST:    b.IGST.Add(o.IGST),
	}
}

// Neg invierte el signo de cada importe.
func (b Breakdown) Neg() Breakdown {
	return Breakdown{
		Taxable: b.Taxable.Neg(),
		Rate:    b.Rate,
		CGST:    b.CGST.Neg(),
		SGST:    b.SGST.Neg(),
		IGST:    b.IGST.Neg(),
	}
}

// Sum agrega los repartos de las líneas. El reparto de la venta es siempre esta suma,
// nunca un recálculo sobre el gravable agregado.
func Sum(lines []Breakdown) Breakdown {
	total := Breakdown{Taxable: decimal.Zero, CGST: decimal.Zero, SGST: decimal.Zero, IGST: decimal.Zero}
	for _, l := range lines {
		total = total.Add(l)
	}
	return total
}

// ValidateRate verifica 0 <= rate <= 28.
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(MaxRate) {
		return fmt.Errorf("%w: GST rate %s outside 0-%s", domain.ErrInvalidInput, rate.String(), MaxRate.String())
	}
	return nil
}

// Amount es taxable * rate / 100 redondeado half-up al paisa.
func Amount(taxable, rate decimal.Decimal) decimal.Decimal {
	return taxable.Mul(rate).Div(hundred).Round(2)
}

// Split calcula el reparto de una línea bajo una jurisdicción resuelta.
// El impuesto intraestatal se divide en dos; un paisa impar va a CGST. Los gravables
// negativos (devoluciones) producen la negación exacta del reparto positivo.
func (j Jurisdiction) Split(taxable, rate decimal.Decimal) (Breakdown, error) {
	if err := ValidateRate(rate); err != nil {
		return Breakdown{}, err
	}
	if taxable.IsNegative() {
		b, err := j.Split(taxable.Neg(), rate)
		if err != nil {
			return Breakdown{}, err
		}
		return b.Neg(), nil
	}
	b := Breakdown{Taxable: taxable, Rate: rate, CGST: decimal.Zero, SGST: decimal.Zero, IGST: decimal.Zero}
	tax := Amount(taxable, rate)
	if j.Interstate {
		b.IGST = tax
		return b, nil
	}
	b.SGST = tax.Div(decimal.NewFromInt(2)).RoundFloor(2)
	b.CGST = tax.Sub(b.SGST)
	return b, nil
}

// Split resuelve la jurisdicción y reparte taxable a la tarifa rate.
func Split(taxable, rate decimal.Decimal, sellerState, buyerState string, policy UnknownBuyerPolicy) (Breakdown, Jurisdiction, error) {
	j, err := Resolve(sellerState, buyerState, policy)
	if err != nil {
		return Breakdown{}, Jurisdiction{}, err
	}
	b, err := j.Split(taxable, rate)
	if err != nil {
		return Breakdown{}, Jurisdiction{}, err
	}
	return b, j, nil
}
