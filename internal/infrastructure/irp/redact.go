package irp

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

const redacted = "[REDACTED]"

var sensitiveKeys = map[string]bool{
	"password":      true,
	"client_secret": true,
	"access_token":  true,
	"authtoken":     true,
	"sek":           true,
	"appkey":        true,
}

// redact enmascara campos de credenciales a cualquier profundidad. Los cuerpos que no son
// JSON se reemplazan por un string JSON con solo su longitud.
func redact(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		out, _ := json.Marshal(map[string]any{"non_json_bytes": len(body)})
		return out
	}
	out, err := json.Marshal(redactValue(v))
	if err != nil {
		return nil
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if sensitiveKeys[strings.ToLower(k)] {
				t[k] = redacted
				continue
			}
			t[k] = redactValue(val)
		}
		return t
	case []any:
		for i := range t {
			t[i] = redactValue(t[i])
		}
		return t
	default:
		return v
	}
}

// digest es el SHA-256 en hex de un cuerpo redactado; "" si está vacío.
func digest(body json.RawMessage) string {
	if len(body) == 0 {
		return ""
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
