package tax

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/domain"
)

var paisa = decimal.New(1, -2)

// ProrateDiscount reparte un descuento de cabecera entre las líneas en proporción a
// su importe bruto. Cada parte se trunca al paisa y los paise sobrantes se asignan de
// a uno a las líneas con mayor resto fraccionario, la primera en caso de empate.
// Ninguna parte supera el bruto de su línea y la suma de las partes es discount.
func ProrateDiscount(gross []decimal.Decimal, discount decimal.Decimal) ([]decimal.Decimal, error) {
	shares := make([]decimal.Decimal, len(gross))
	for i := range shares {
		shares[i] = decimal.Zero
	}
	if discount.IsNegative() {
		return nil, fmt.Errorf("%w: discount cannot be negative", domain.ErrInvalidInput)
	}
	if !discount.Equal(discount.Round(2)) {
		return nil, fmt.Errorf("%w: discount %s has fractions of a paisa", domain.ErrInvalidInput, discount.String())
	}
	if discount.IsZero() {
		return shares, nil
	}
	total := decimal.Zero
	for i, g := range gross {
		if g.IsNegative() {
			return nil, fmt.Errorf("%w: line %d has a negative amount", domain.ErrInvalidInput, i+1)
		}
		total = total.Add(g)
	}
	if discount.GreaterThan(total) {
		return nil, fmt.Errorf("%w: discount %s exceeds sale subtotal %s", domain.ErrInvalidInput, discount.String(), total.String())
	}

	remainders := make([]decimal.Decimal, len(gross))
	left := discount
	for i, g := range gross {
		remainders[i] = decimal.Zero
		if !g.IsPositive() {
			continue
		}
		exact := discount.Mul(g).Div(total)
		shares[i] = decimal.Min(exact.RoundFloor(2), g)
		remainders[i] = exact.Sub(shares[i])
		left = left.Sub(shares[i])
	}

	order := make([]int, len(gross))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].GreaterThan(remainders[order[b]])
	})
	for left.IsPositive() {
		placed := false
		for _, i := range order {
			if !left.IsPositive() {
				break
			}
			next := shares[i].Add(paisa)
			if next.GreaterThan(gross[i]) {
				continue
			}
			shares[i] = next
			left = left.Sub(paisa)
			placed = true
		}
		if !placed {
			return nil, fmt.Errorf("%w: discount %s cannot be spread in whole paise", domain.ErrInvalidInput, discount.String())
		}
	}
	return shares, nil
}

// RoundTotal redondea half-up el total de la factura a la rupia entera
// (toRupee) o al paisa, y devuelve el total redondeado y el ajuste con signo
// que se sumó.
func RoundTotal(unrounded decimal.Decimal, toRupee bool) (total, roundOff decimal.Decimal) {
	places := int32(2)
	if toRupee {
		places = 0
	}
	total = unrounded.Round(places)
	return total, total.Sub(unrounded)
}
