package gst

import (
	"fmt"
	"regexp"
	"strings"
)

const gstinAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// estado de 2 dígitos, 5 letras + 4 dígitos + 1 letra (PAN), número de entidad, 'Z', dígito de control.
var gstinShape = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

// NormalizeGSTIN pasa a mayúsculas y quita espacios.
func NormalizeGSTIN(gstin string) string {
	return strings.ToUpper(strings.Join(strings.Fields(gstin), ""))
}

// ValidateGSTIN verifica longitud, forma, prefijo de estado y el carácter de control mod-36.
func ValidateGSTIN(gstin string) error {
	g := NormalizeGSTIN(gstin)
	if len(g) != 15 {
		return fmt.Errorf("gst: GSTIN must have 15 characters, got %d", len(g))
	}
	if !gstinShape.MatchString(g) {
		return fmt.Errorf("gst: GSTIN %q has an invalid format", g)
	}
	if !IsValidStateCode(g[:2]) {
		return fmt.Errorf("gst: GSTIN %q has unknown state code %s", g, g[:2])
	}
	expected, err := ComputeGSTINCheckChar(g[:14])
	if err != nil {
		return err
	}
	if g[14] != expected {
		return fmt.Errorf("gst: GSTIN check character invalid: expected %c, got %c", expected, g[14])
	}
	return nil
}

// ComputeGSTINCheckChar calcula el carácter 15 a partir de los primeros 14.
// Los factores alternan 1,2 desde la izquierda; cada producto aporta cociente + resto en base 36.
func ComputeGSTINCheckChar(first14 string) (byte, error) {
	if len(first14) < 14 {
		return 0, fmt.Errorf("gst: need 14 characters to compute the check character, got %d", len(first14))
	}
	sum := 0
	for i := 0; i < 14; i++ {
		v := strings.IndexByte(gstinAlphabet, first14[i])
		if v < 0 {
			return 0, fmt.Errorf("gst: invalid character %q in GSTIN", first14[i])
		}
		factor := 1
		if i%2 == 1 {
			factor = 2
		}
		p := v * factor
		sum += p/36 + p%36
	}
	return gstinAlphabet[(36-sum%36)%36], nil
}

// StateCodeOfGSTIN devuelve el prefijo de estado de un GSTIN.
func StateCodeOfGSTIN(gstin string) string {
	g := NormalizeGSTIN(gstin)
	if len(g) < 2 {
		return ""
	}
	return g[:2]
}
