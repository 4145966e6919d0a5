package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/application/inventory"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/infrastructure/memory"
)

const (
	merchantID = "m-1"
	productID  = "p-neem"
)

var today = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup(t *testing.T) (*memory.Store, *inventory.BatchUseCase) {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Products().Create(context.Background(), &entity.Product{
		ID: productID, MerchantID: merchantID, Name: "Neem Oil 1L", HSNCode: "38089199", Unit: "LTR",
		Price: d("450"), GSTRate: d("18"),
	}))
	uc := inventory.NewBatchUseCase(store, store.Batches(), store.Products(), nil).WithClock(func() time.Time { return today })
	return store, uc
}

func receive(t *testing.T, uc *inventory.BatchUseCase, number, expiry, qty string) *dto.BatchResponse {
	t.Helper()
	b, err := uc.ReceiveBatch(context.Background(), merchantID, "u-1", productID, dto.ReceiveBatchRequest{
		BatchNumber: number, ExpiryDate: expiry, Quantity: d(qty),
	})
	require.NoError(t, err)
	return b
}

func TestReceiveBatch_WritesBatchAndReceiptMovement(t *testing.T) {
	store, uc := setup(t)
	b := receive(t, uc, "NO-24-11", "2025-11-30", "40")

	assert.True(t, b.Available.Equal(d("40")))
	assert.True(t, b.Free.Equal(d("40")))
	assert.Equal(t, "2025-11-30", b.ExpiryDate)
	assert.Equal(t, int64(1), b.Version)

	stored, err := store.Batches().GetByID(context.Background(), merchantID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "NO-24-11", stored.BatchNumber)
}

func TestReceiveBatch_Validation(t *testing.T) {
	_, uc := setup(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  dto.ReceiveBatchRequest
		want error
	}{
		{"zero quantity", dto.ReceiveBatchRequest{BatchNumber: "X", Quantity: decimal.Zero}, domain.ErrInvalidInput},
		{"no number", dto.ReceiveBatchRequest{Quantity: d("1")}, domain.ErrInvalidInput},
		{"bad date", dto.ReceiveBatchRequest{BatchNumber: "X", Quantity: d("1"), ExpiryDate: "30/11/2025"}, domain.ErrInvalidInput},
		{"expiry before manufacture", dto.ReceiveBatchRequest{BatchNumber: "X", Quantity: d("1"), ExpiryDate: "2025-01-01", ManufactureDate: "2025-02-01"}, domain.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.ReceiveBatch(ctx, merchantID, "u-1", productID, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := uc.ReceiveBatch(ctx, merchantID, "u-1", "ghost", dto.ReceiveBatchRequest{BatchNumber: "X", Quantity: d("1")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	receive(t, uc, "DUP", "", "1")
	_, err = uc.ReceiveBatch(ctx, merchantID, "u-1", productID, dto.ReceiveBatchRequest{BatchNumber: "DUP", Quantity: d("1")})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestListBatches_FEFOOrderWithExhaustedLast(t *testing.T) {
	store, uc := setup(t)
	ctx := context.Background()
	late := receive(t, uc, "L", "2026-01-01", "10")
	never := receive(t, uc, "N", "", "5")
	early := receive(t, uc, "E", "2025-05-01", "8")
	gone := receive(t, uc, "G", "2025-04-01", "3")
	require.NoError(t, store.Batches().AdjustAvailable(ctx, gone.ID, gone.Version, d("-3")))

	ledger, err := uc.ListBatches(ctx, merchantID, productID)
	require.NoError(t, err)
	assert.True(t, ledger.TotalFree.Equal(d("23")))

	var ids []string
	for _, b := range ledger.Batches {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{early.ID, late.ID, never.ID, gone.ID}, ids)

	_, err = uc.ListBatches(ctx, merchantID, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdjustBatch(t *testing.T) {
	_, uc := setup(t)
	ctx := context.Background()
	b := receive(t, uc, "A", "2025-08-01", "10")

	out, err := uc.AdjustBatch(ctx, merchantID, "u-1", b.ID, dto.AdjustBatchRequest{Quantity: d("-4"), Reason: "leaking cans"})
	require.NoError(t, err)
	assert.True(t, out.Available.Equal(d("6")))
	assert.Equal(t, int64(2), out.Version)

	_, err = uc.AdjustBatch(ctx, merchantID, "u-1", b.ID, dto.AdjustBatchRequest{Quantity: d("-7"), Reason: "count"})
	var insufficient *domain.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))

	_, err = uc.AdjustBatch(ctx, merchantID, "u-1", b.ID, dto.AdjustBatchRequest{Quantity: d("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = uc.AdjustBatch(ctx, merchantID, "u-1", "ghost", dto.AdjustBatchRequest{Quantity: d("1"), Reason: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExpiringBatches(t *testing.T) {
	store, uc := setup(t)
	ctx := context.Background()
	expired := receive(t, uc, "OLD", "2025-03-01", "2")
	soonSmall := receive(t, uc, "S1", "2025-03-20", "5")
	soonBig := receive(t, uc, "S2", "2025-03-20", "50")
	receive(t, uc, "FAR", "2025-12-01", "50")
	receive(t, uc, "NONE", "", "50")
	empty := receive(t, uc, "EMPTY", "2025-03-12", "1")
	require.NoError(t, store.Batches().AdjustAvailable(ctx, empty.ID, empty.Version, d("-1")))

	report := inventory.NewExpiryReportUseCase(store.Batches(), store.Products()).WithClock(func() time.Time { return today })
	rows, err := report.ExpiringBatches(ctx, merchantID, 30)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, expired.ID, rows[0].ID)
	assert.True(t, rows[0].Expired)
	assert.Equal(t, -9, rows[0].DaysToExpiry)
	assert.Equal(t, soonBig.ID, rows[1].ID, "more free stock ranks first on the same day")
	assert.Equal(t, soonSmall.ID, rows[2].ID)
	assert.Equal(t, 10, rows[2].DaysToExpiry)
	assert.Equal(t, "Neem Oil 1L", rows[1].ProductName)
	assert.Equal(t, 3, rows[2].Priority)

	_, err = report.ExpiringBatches(ctx, merchantID, 400)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
