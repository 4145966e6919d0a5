package sales_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

func returnOf(seq int, qty string) dto.CreateReturnRequest {
	return dto.CreateReturnRequest{Lines: []dto.ReturnLineRequest{{ItemSeq: seq, Quantity: d(qty)}}}
}

func TestCreateReturn_RestocksLatestExpiryFirst(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sale, err := e.uc.Commit(ctx, merchantID, userID, dto.CommitSaleRequest{
		CustomerID: localBuyer, Lines: []dto.SaleLineRequest{line("25")}, PaymentMethod: "cash",
	})
	require.NoError(t, err)

	ret, err := e.uc.CreateReturn(ctx, merchantID, userID, sale.ID, returnOf(1, "10"))
	require.NoError(t, err)

	assert.Equal(t, entity.SaleKindReturn, ret.Kind)
	assert.Equal(t, sale.ID, ret.ReturnOfSaleID)
	assert.Equal(t, "CRN2510000001", ret.InvoiceNumber)
	assert.Equal(t, entity.EInvoiceStatusNotApplicable, ret.EInvoiceStatus)
	require.Len(t, ret.Items, 1)
	assert.True(t, ret.Items[0].Quantity.Equal(d("-10")))
	assert.True(t, ret.CGST.Equal(d("-90")))
	assert.True(t, ret.SGST.Equal(d("-90")))
	assert.True(t, ret.Total.Equal(d("-1180")))
	assertTotalsInvariant(t, ret)

	allocs := ret.Items[0].Allocations
	require.Len(t, allocs, 2)
	assert.Equal(t, "B2", allocs[0].BatchID, "latest expiry is restocked first")
	assert.True(t, allocs[0].Quantity.Equal(d("5")))
	assert.Equal(t, "B1", allocs[1].BatchID)
	assert.True(t, allocs[1].Quantity.Equal(d("5")))

	assert.True(t, e.available(t, "B1").Equal(d("5")))
	assert.True(t, e.available(t, "B2").Equal(d("30")))
}

func TestCreateReturn_CannotExceedSoldMinusReturned(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sale, err := e.uc.Commit(ctx, merchantID, userID, cashSale("27", line("25")))
	require.NoError(t, err)

	_, err = e.uc.CreateReturn(ctx, merchantID, userID, sale.ID, returnOf(1, "10"))
	require.NoError(t, err)

	_, err = e.uc.CreateReturn(ctx, merchantID, userID, sale.ID, returnOf(1, "16"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	last, err := e.uc.CreateReturn(ctx, merchantID, userID, sale.ID, returnOf(1, "15"))
	require.NoError(t, err)
	assert.True(t, last.Items[0].TaxableValue.Equal(d("-1500")), "the final return takes the exact remainder")

	assert.True(t, e.available(t, "B1").Equal(d("20")))
	assert.True(t, e.available(t, "B2").Equal(d("30")))

	_, err = e.uc.CreateReturn(ctx, merchantID, userID, sale.ID, returnOf(1, "1"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateReturn_MirrorsOriginalJurisdiction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sale, err := e.uc.Commit(ctx, merchantID, userID, dto.CommitSaleRequest{
		CustomerID: b2bBuyer, Lines: []dto.SaleLineRequest{line("4")}, PaymentMethod: "upi",
	})
	require.NoError(t, err)

	ret, err := e.uc.CreateReturn(ctx, merchantID, userID, sale.ID, returnOf(1, "4"))
	require.NoError(t, err)
	assert.True(t, ret.Interstate)
	assert.True(t, ret.IGST.Equal(sale.IGST.Neg()))
	assert.True(t, ret.Total.Equal(sale.Total.Neg()))
}

func TestCreateReturn_Rejections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sale, err := e.uc.Commit(ctx, merchantID, userID, cashSale("27", line("2")))
	require.NoError(t, err)

	_, err = e.uc.CreateReturn(ctx, merchantID, userID, "missing", returnOf(1, "1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.uc.CreateReturn(ctx, merchantID, userID, sale.ID, returnOf(2, "1"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	ret, err := e.uc.CreateReturn(ctx, merchantID, userID, sale.ID, returnOf(1, "1"))
	require.NoError(t, err)
	_, err = e.uc.CreateReturn(ctx, merchantID, userID, ret.ID, returnOf(1, "1"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordPayment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sale, err := e.uc.Commit(ctx, merchantID, userID, dto.CommitSaleRequest{
		CustomerID: localBuyer, Lines: []dto.SaleLineRequest{line("5")}, PaymentMethod: "credit",
	})
	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(d("590")))
	assert.Equal(t, entity.PaymentStatusUnpaid, sale.PaymentStatus)

	s, err := e.uc.RecordPayment(ctx, merchantID, sale.ID, dto.RecordPaymentRequest{Amount: d("200")})
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusPartial, s.PaymentStatus)

	s, err = e.uc.RecordPayment(ctx, merchantID, sale.ID, dto.RecordPaymentRequest{Amount: d("390")})
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusPaid, s.PaymentStatus)
	assert.True(t, s.Total.Equal(d("590")), "payments never change the sale's figures")

	_, err = e.uc.RecordPayment(ctx, merchantID, sale.ID, dto.RecordPaymentRequest{Amount: d("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = e.uc.RecordPayment(ctx, merchantID, sale.ID, dto.RecordPaymentRequest{Amount: d("0")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateReturn_RequestIDBindsToTheFirstReturn(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	saleReq := cashSale("27", line("25"))
	saleReq.RequestID = "shared"
	sale, err := e.uc.Commit(ctx, merchantID, userID, saleReq)
	require.NoError(t, err)

	req := returnOf(1, "4")
	req.RequestID = "ret-1"
	first, err := e.uc.CreateReturn(ctx, merchantID, userID, sale.ID, req)
	require.NoError(t, err)
	again, err := e.uc.CreateReturn(ctx, merchantID, userID, sale.ID, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.Replayed)

	bigger := returnOf(1, "5")
	bigger.RequestID = "ret-1"
	_, err = e.uc.CreateReturn(ctx, merchantID, userID, sale.ID, bigger)
	assert.ErrorIs(t, err, domain.ErrConflict)

	reused := returnOf(1, "4")
	reused.RequestID = "shared"
	_, err = e.uc.CreateReturn(ctx, merchantID, userID, sale.ID, reused)
	assert.ErrorIs(t, err, domain.ErrConflict, "a sale's request id cannot replay as a return")
}
