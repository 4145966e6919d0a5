package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
)

var _ repository.InvoiceNumberGenerator = (*InvoiceNumberGenerator)(nil)

// InvoiceNumberGenerator toma números de invoice_sequences. Debe construirse
// sobre el pool: cada llamada confirma por su cuenta, así una venta con rollback
// quema su número en lugar de entregarlo de nuevo.
type InvoiceNumberGenerator struct {
	q   Querier
	now func() time.Time
}

// NewInvoiceNumberGenerator construye el generador sobre el pool.
func NewInvoiceNumberGenerator(q Querier) *InvoiceNumberGenerator {
	return &InvoiceNumberGenerator{q: q, now: time.Now}
}

func (g *InvoiceNumberGenerator) Next(ctx context.Context, merchantID, prefix string) (string, error) {
	var seq int64
	err := g.q.QueryRow(ctx, `
		INSERT INTO invoice_sequences (merchant_id, prefix, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (merchant_id, prefix) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value`, merchantID, prefix).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("next invoice number: %w", err)
	}
	return entity.FormatInvoiceNumber(prefix, g.now(), seq), nil
}
