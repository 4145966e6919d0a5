package inventory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/inventory"
)

func TestLedger_SecondLineSeesReducedStock(t *testing.T) {
	src := []*entity.Batch{
		batch("B1", date("2025-01-01"), 20, 0),
		batch("B2", date("2025-06-01"), 30, 0),
	}
	l := inventory.NewLedger(productP, src)

	first, err := l.Allocate(qty(15))
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := l.Allocate(qty(10))
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "B1", second[0].BatchID)
	assert.True(t, second[0].Quantity.Equal(qty(5)))
	assert.Equal(t, "B2", second[1].BatchID)
	assert.True(t, second[1].Quantity.Equal(qty(5)))

	assert.True(t, l.TotalFree().Equal(qty(25)))
	assert.True(t, src[0].Available.Equal(qty(20)), "source batches must not be mutated")

	_, err = l.Allocate(qty(26))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestLedger_ConsumeAndRestore(t *testing.T) {
	l := inventory.NewLedger(productP, []*entity.Batch{batch("B1", nil, 10, 2)})

	err := l.Consume([]entity.AllocationLine{{BatchID: "B1", Quantity: qty(9)}})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock, "reserved stock is not consumable")

	require.NoError(t, l.Consume([]entity.AllocationLine{{BatchID: "B1", Quantity: qty(8)}}))
	require.NoError(t, l.Restore([]entity.AllocationLine{{BatchID: "B1", Quantity: qty(3)}}))
	b, ok := l.Batch("B1")
	require.True(t, ok)
	assert.True(t, b.Available.Equal(qty(5)))

	err = l.Restore([]entity.AllocationLine{{BatchID: "nope", Quantity: qty(1)}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
