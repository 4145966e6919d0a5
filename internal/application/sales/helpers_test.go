package sales_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/application/sales"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
	"github.com/jhoicas/agro-pos-api/internal/infrastructure/memory"
)

const (
	merchantID = "m-1"
	userID     = "u-1"
	productID  = "p-urea"
	b2bBuyer   = "c-b2b"
	localBuyer = "c-local"
)

var fixedNow = time.Date(2025, 10, 3, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

type env struct {
	store     *memory.Store
	uc        *sales.SaleUseCase
	scheduler *recordingScheduler
}

type recordingScheduler struct {
	mu    sync.Mutex
	sales []string
}

func (r *recordingScheduler) Schedule(_ context.Context, _, saleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sales = append(r.sales, saleID)
	return nil
}

func newEnv(t *testing.T, mutate ...func(*sales.Config, *sales.Deps)) *env {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	store.SetClock(func() time.Time { return fixedNow })

	require.NoError(t, store.Merchants().Create(ctx, &entity.Merchant{
		ID: merchantID, Name: "Krishi Kendra", GSTIN: "27AAPFU0939F1ZV", StateCode: "27",
		Address: "Market Yard", City: "Pune", Pincode: "411037",
	}))
	require.NoError(t, store.Customers().Create(ctx, &entity.Customer{
		ID: b2bBuyer, MerchantID: merchantID, Name: "Green Farms Pvt Ltd", GSTIN: "29AAGCB7383J1Z4", StateCode: "29",
	}))
	require.NoError(t, store.Customers().Create(ctx, &entity.Customer{
		ID: localBuyer, MerchantID: merchantID, Name: "Ramesh Patil", StateCode: "27",
	}))
	require.NoError(t, store.Products().Create(ctx, &entity.Product{
		ID: productID, MerchantID: merchantID, SKU: "UREA-45", Name: "Urea 45kg", HSNCode: "31021000",
		Unit: "BAG", Price: d("100"), GSTRate: d("18"),
	}))
	for _, b := range []*entity.Batch{
		{ID: "B1", MerchantID: merchantID, ProductID: productID, BatchNumber: "LOT-1", ExpiryDate: day("2025-01-01"), Available: d("20"), Reserved: decimal.Zero, Version: 1},
		{ID: "B2", MerchantID: merchantID, ProductID: productID, BatchNumber: "LOT-2", ExpiryDate: day("2025-06-01"), Available: d("30"), Reserved: decimal.Zero, Version: 1},
	} {
		require.NoError(t, store.Batches().Create(ctx, b))
	}

	sched := &recordingScheduler{}
	deps := sales.Deps{
		TxRunner:  store,
		Numbers:   store,
		Sales:     store.Sales(),
		Batches:   store.Batches(),
		Merchants: store.Merchants(),
		Customers: store.Customers(),
		Products:  store.Products(),
		Configs:   store.EInvoiceConfigs(),
		Scheduler: sched,
		Clock:     func() time.Time { return fixedNow },
	}
	cfg := sales.DefaultConfig()
	for _, m := range mutate {
		m(&cfg, &deps)
	}
	return &env{store: store, uc: sales.NewSaleUseCase(deps, cfg), scheduler: sched}
}

func (e *env) available(t *testing.T, batchID string) decimal.Decimal {
	t.Helper()
	b, err := e.store.Batches().GetByID(context.Background(), merchantID, batchID)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b.Available
}

func line(qty string) dto.SaleLineRequest {
	return dto.SaleLineRequest{ProductID: productID, Quantity: d(qty)}
}

func cashSale(buyerState string, lines ...dto.SaleLineRequest) dto.CommitSaleRequest {
	return dto.CommitSaleRequest{BuyerState: buyerState, Lines: lines, PaymentMethod: "cash"}
}

// conflictingRunner simula una venta concurrente que toca cada lote
// justo antes de la escritura de esta venta, en los primeros n intentos.
type conflictingRunner struct {
	inner     *memory.Store
	remaining int
	attempts  int
}

func (c *conflictingRunner) RunSale(ctx context.Context, fn func(
	batchRepo repository.BatchRepository,
	saleRepo repository.SaleRepository,
	movRepo repository.StockMovementRepository,
) error) error {
	c.attempts++
	interfere := c.remaining > 0
	if interfere {
		c.remaining--
	}
	return c.inner.RunSale(ctx, func(b repository.BatchRepository, s repository.SaleRepository, m repository.StockMovementRepository) error {
		if interfere {
			b = &bumpingBatches{BatchRepository: b}
		}
		return fn(b, s, m)
	})
}

type bumpingBatches struct {
	repository.BatchRepository
}

func (b *bumpingBatches) AdjustAvailable(ctx context.Context, batchID string, version int64, delta decimal.Decimal) error {
	if err := b.BatchRepository.AdjustAvailable(ctx, batchID, version, decimal.Zero); err != nil {
		return err
	}
	return b.BatchRepository.AdjustAvailable(ctx, batchID, version, delta)
}
