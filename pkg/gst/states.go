// Package gst contiene los catálogos normativos y las validaciones de identificadores
// para la facturación del impuesto GST de India.
package gst

import (
	"strings"

	"golang.org/x/text/cases"
)

// State es un estado o territorio de la unión para GST.
type State struct {
	Code string // código de estado GST de dos dígitos
	Name string
	Abbr string
}

// OtherTerritoryCode es el código de la autoridad para suministros fuera de todo estado.
const OtherTerritoryCode = "97"

var states = []State{
	{"01", "Jammu and Kashmir", "JK"},
	{"02", "Himachal Pradesh", "HP"},
	{"03", "Punjab", "PB"},
	{"04", "Chandigarh", "CH"},
	{"05", "Uttarakhand", "UK"},
	{"06", "Haryana", "HR"},
	{"07", "Delhi", "DL"},
	{"08", "Rajasthan", "RJ"},
	{"09", "Uttar Pradesh", "UP"},
	{"10", "Bihar", "BR"},
	{"11", "Sikkim", "SK"},
	{"12", "Arunachal Pradesh", "AR"},
	{"13", "Nagaland", "NL"},
	{"14", "Manipur", "MN"},
	{"15", "Mizoram", "MZ"},
	{"16", "Tripura", "TR"},
	{"17", "Meghalaya", "ML"},
	{"18", "Assam", "AS"},
	{"19", "West Bengal", "WB"},
	{"20", "Jharkhand", "JH"},
	{"21", "Odisha", "OR"},
	{"22", "Chhattisgarh", "CG"},
	{"23", "Madhya Pradesh", "MP"},
	{"24", "Gujarat", "GJ"},
	{"26", "Dadra and Nagar Haveli and Daman and Diu", "DH"},
	{"27", "Maharashtra", "MH"},
	{"29", "Karnataka", "KA"},
	{"30", "Goa", "GA"},
	{"31", "Lakshadweep", "LD"},
	{"32", "Kerala", "KL"},
	{"33", "Tamil Nadu", "TN"},
	{"34", "Puducherry", "PY"},
	{"35", "Andaman and Nicobar Islands", "AN"},
	{"36", "Telangana", "TS"},
	{"37", "Andhra Pradesh", "AP"},
	{"38", "Ladakh", "LA"},
	{OtherTerritoryCode, "Other Territory", "OT"},
}

var (
	byCode   = make(map[string]State, len(states))
	byFolded = make(map[string]State, len(states)*2)
)

func init() {
	folder := cases.Fold()
	for _, s := range states {
		byCode[s.Code] = s
		byFolded[folder.String(s.Name)] = s
		byFolded[folder.String(s.Abbr)] = s
	}
}

// StateByCode devuelve el estado de un código de dos dígitos. Un solo dígito se completa con cero.
func StateByCode(code string) (State, bool) {
	code = strings.TrimSpace(code)
	if len(code) == 1 {
		code = "0" + code
	}
	s, ok := byCode[code]
	return s, ok
}

// IsValidStateCode indica si code es un código de estado GST conocido.
func IsValidStateCode(code string) bool {
	_, ok := StateByCode(code)
	return ok
}

// StateCodeFromName resuelve un nombre o abreviatura de estado sin distinguir mayúsculas.
// Nunca asume un estado por defecto: una entrada desconocida devuelve false.
func StateCodeFromName(name string) (string, bool) {
	// Los Caser guardan estado; uno por llamada permite uso concurrente.
	key := cases.Fold().String(strings.Join(strings.Fields(name), " "))
	if key == "" {
		return "", false
	}
	s, ok := byFolded[key]
	if !ok {
		return "", false
	}
	return s.Code, true
}

// NormalizeStateCode acepta un código o un nombre de estado y devuelve el código.
func NormalizeStateCode(v string) (string, bool) {
	if s, ok := StateByCode(v); ok {
		return s.Code, true
	}
	return StateCodeFromName(v)
}
