package sales

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
)

// requestKey es una clave de idempotencia del cliente con el digest de la
// solicitud en la que se usó por primera vez.
type requestKey struct {
	id   string
	hash string
}

func commitKey(in dto.CommitSaleRequest, method string) requestKey {
	var b strings.Builder
	b.WriteString("sale\n")
	field(&b, strings.TrimSpace(in.CustomerID))
	field(&b, strings.ToLower(strings.TrimSpace(in.BuyerState)))
	field(&b, method)
	field(&b, in.Discount.String())
	field(&b, optional(in.PaidAmount))
	for _, l := range in.Lines {
		field(&b, strings.TrimSpace(l.ProductID), l.Quantity.String(), optional(l.UnitPrice))
	}
	return requestKey{id: strings.TrimSpace(in.RequestID), hash: digest(b.String())}
}

func returnKey(saleID string, in dto.CreateReturnRequest) requestKey {
	lines := append([]dto.ReturnLineRequest(nil), in.Lines...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ItemSeq < lines[j].ItemSeq })

	var b strings.Builder
	b.WriteString("return\n")
	field(&b, saleID)
	for _, l := range lines {
		field(&b, strconv.Itoa(l.ItemSeq), l.Quantity.String())
	}
	return requestKey{id: strings.TrimSpace(in.RequestID), hash: digest(b.String())}
}

func field(b *strings.Builder, parts ...string) {
	b.WriteString(strings.Join(parts, "|"))
	b.WriteByte('\n')
}

func optional(v *decimal.Decimal) string {
	if v == nil {
		return "-"
	}
	return v.String()
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// replay devuelve la venta ya guardada bajo key.id, nil si no hay ninguna,
// o domain.ErrConflict si la clave se usó para otra solicitud.
func (uc *SaleUseCase) replay(ctx context.Context, merchantID string, key requestKey) (*dto.SaleResponse, error) {
	if key.id == "" {
		return nil, nil
	}
	existing, err := uc.deps.Sales.GetByRequestID(ctx, merchantID, key.id)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.RequestHash != "" && existing.RequestHash != key.hash {
		return nil, fmt.Errorf("%w: request id %q was already used for a different request", domain.ErrConflict, key.id)
	}
	return replayed(existing), nil
}
