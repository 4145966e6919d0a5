package einvoice_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/einvoice"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fixtures() (*entity.Sale, *entity.Merchant, *entity.Customer) {
	exp := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cust := "c-1"
	sale := &entity.Sale{
		ID:            "s-1",
		MerchantID:    "m-1",
		CustomerID:    &cust,
		Kind:          entity.SaleKindSale,
		InvoiceNumber: "INV2510000001",
		SaleDate:      time.Date(2025, 10, 3, 10, 0, 0, 0, time.UTC),
		PaymentMethod: "upi",
		PaymentStatus: entity.PaymentStatusPaid,
		PaidAmount:    d("1180"),
		Subtotal:      d("1000"),
		Discount:      decimal.Zero,
		CGST:          decimal.Zero,
		SGST:          decimal.Zero,
		IGST:          d("180"),
		RoundOff:      decimal.Zero,
		Total:         d("1180"),
		SellerState:   "27",
		BuyerState:    "29",
		Interstate:    true,
		Items: []*entity.SaleItem{{
			ID: "i-1", SaleID: "s-1", Seq: 1, ProductID: "p-1", ProductName: "Urea 45kg",
			HSNCode: "31021000", Unit: "BAG", Quantity: d("10"), UnitPrice: d("100"),
			GrossAmount: d("1000"), Discount: decimal.Zero, TaxableValue: d("1000"), GSTRate: d("18"),
			CGST: decimal.Zero, SGST: decimal.Zero, IGST: d("180"), LineTotal: d("1180"),
			Allocations: []entity.AllocationLine{{BatchID: "b-1", BatchNumber: "LOT-7", ExpiryDate: &exp, Quantity: d("10")}},
		}},
	}
	merchant := &entity.Merchant{ID: "m-1", Name: "Krishi Kendra", GSTIN: "27AAPFU0939F1ZV", StateCode: "27", Address: "Main Road", City: "Pune", Pincode: "411001"}
	buyer := &entity.Customer{ID: cust, MerchantID: "m-1", Name: "Green Farms Pvt Ltd", GSTIN: "29AAGCB7383J1Z4", StateCode: "29", City: "Bengaluru", Pincode: "560001"}
	return sale, merchant, buyer
}

func enabled() einvoice.Rules {
	return einvoice.Rules{Enabled: true, Threshold: einvoice.DefaultThreshold}
}

func TestBuildDocument_MapsSale(t *testing.T) {
	sale, merchant, buyer := fixtures()
	doc, err := einvoice.BuildDocument(sale, merchant, buyer)
	require.NoError(t, err)

	assert.Equal(t, einvoice.DocTypeInvoice, doc.Type)
	assert.Equal(t, "INV2510000001", doc.Number)
	assert.Equal(t, "29", doc.PlaceOfSupply)
	assert.Equal(t, "27AAPFU0939F1ZV", doc.Seller.GSTIN)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, 1, doc.Items[0].SerialNo)
	require.NotNil(t, doc.Items[0].Batch)
	assert.Equal(t, "LOT-7", doc.Items[0].Batch.Name)
	assert.True(t, doc.Totals.Assessable.Equal(d("1000")))
	require.NotNil(t, doc.Payment)
	assert.Equal(t, "UPI", doc.Payment.Mode)
	assert.True(t, doc.Payment.Due.IsZero())

	assert.NoError(t, einvoice.Validate(doc))
}

func TestBuildDocument_RequiresBuyer(t *testing.T) {
	sale, merchant, _ := fixtures()
	_, err := einvoice.BuildDocument(sale, merchant, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	sale, merchant, buyer := fixtures()
	doc, err := einvoice.BuildDocument(sale, merchant, buyer)
	require.NoError(t, err)

	doc.Number = strings.Repeat("9", 17)
	doc.Items[0].HSNCode = "31"
	doc.Items[0].CGST = d("1")
	doc.Buyer.GSTIN = "29ABCDE1234F1Z5"

	err = einvoice.Validate(doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, einvoice.ErrInvalidDocument))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	msg := err.Error()
	assert.Contains(t, msg, "document number")
	assert.Contains(t, msg, "HSN code")
	assert.Contains(t, msg, "IGST cannot be combined")
	assert.Contains(t, msg, "buyer")
}

func TestCheckEligibility(t *testing.T) {
	sale, merchant, buyer := fixtures()

	ok, reasons := einvoice.CheckEligibility(sale, buyer, merchant, enabled())
	assert.True(t, ok, reasons)
	assert.NotEmpty(t, reasons)

	tests := []struct {
		name   string
		mutate func(s *entity.Sale, m *entity.Merchant, b **entity.Customer, r *einvoice.Rules)
		reason string
	}{
		{"disabled", func(_ *entity.Sale, _ *entity.Merchant, _ **entity.Customer, r *einvoice.Rules) { r.Enabled = false }, "not enabled"},
		{"no merchant gstin", func(_ *entity.Sale, m *entity.Merchant, _ **entity.Customer, _ *einvoice.Rules) { m.GSTIN = "" }, "merchant GSTIN"},
		{"bad merchant gstin", func(_ *entity.Sale, m *entity.Merchant, _ **entity.Customer, _ *einvoice.Rules) { m.GSTIN = "27AAPFU0939F1ZA" }, "merchant GSTIN is invalid"},
		{"walk-in", func(_ *entity.Sale, _ *entity.Merchant, b **entity.Customer, _ *einvoice.Rules) { *b = nil }, "walk-in"},
		{"buyer without gstin", func(_ *entity.Sale, _ *entity.Merchant, b **entity.Customer, _ *einvoice.Rules) { (*b).GSTIN = "" }, "customer GSTIN"},
		{"below threshold", func(s *entity.Sale, _ *entity.Merchant, _ **entity.Customer, _ *einvoice.Rules) { s.Total = d("499.99") }, "below threshold"},
		{"return", func(s *entity.Sale, _ *entity.Merchant, _ **entity.Customer, _ *einvoice.Rules) { s.Kind = entity.SaleKindReturn }, "returns"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, m, b := fixtures()
			r := enabled()
			tc.mutate(s, m, &b, &r)
			ok, reasons := einvoice.CheckEligibility(s, b, m, r)
			assert.False(t, ok)
			assert.Contains(t, strings.Join(reasons, "|"), tc.reason)
		})
	}
}

func TestRulesFor(t *testing.T) {
	r := einvoice.RulesFor(nil, einvoice.DefaultThreshold)
	assert.False(t, r.Enabled)

	cfg := &entity.EInvoiceConfig{Enabled: true, ThresholdOverride: decimal.NewNullDecimal(d("1000"))}
	r = einvoice.RulesFor(cfg, einvoice.DefaultThreshold)
	assert.True(t, r.Enabled)
	assert.True(t, r.Threshold.Equal(d("1000")))
}

func TestTransitions(t *testing.T) {
	assert.True(t, einvoice.CanTransition(entity.EInvoiceStatusPending, entity.EInvoiceStatusGenerated))
	assert.True(t, einvoice.CanTransition(entity.EInvoiceStatusPending, entity.EInvoiceStatusError))
	assert.True(t, einvoice.CanTransition(entity.EInvoiceStatusError, entity.EInvoiceStatusPending))
	assert.True(t, einvoice.CanTransition(entity.EInvoiceStatusGenerated, entity.EInvoiceStatusCancelled))

	assert.False(t, einvoice.CanTransition(entity.EInvoiceStatusNotApplicable, entity.EInvoiceStatusPending))
	assert.False(t, einvoice.CanTransition(entity.EInvoiceStatusCancelled, entity.EInvoiceStatusGenerated))
	assert.False(t, einvoice.CanTransition(entity.EInvoiceStatusError, entity.EInvoiceStatusCancelled))

	doc := &entity.EInvoice{Status: entity.EInvoiceStatusError}
	err := einvoice.Transition(doc, entity.EInvoiceStatusCancelled, einvoice.ActionCancel)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.Equal(t, entity.EInvoiceStatusError, doc.Status)

	assert.ErrorIs(t, einvoice.CheckGenerate(&entity.EInvoice{Status: entity.EInvoiceStatusNotApplicable}), domain.ErrIllegalTransition)
	assert.ErrorIs(t, einvoice.CheckGenerate(&entity.EInvoice{Status: entity.EInvoiceStatusCancelled}), domain.ErrIllegalTransition)
	assert.NoError(t, einvoice.CheckGenerate(&entity.EInvoice{Status: entity.EInvoiceStatusError}))
}

func TestCheckCancel(t *testing.T) {
	ack := time.Date(2025, 10, 3, 10, 0, 0, 0, time.UTC)
	doc := &entity.EInvoice{Status: entity.EInvoiceStatusGenerated, AckDate: &ack}
	window := 24 * time.Hour

	assert.NoError(t, einvoice.CheckCancel(doc, einvoice.CancelDataEntry, "wrong quantity", ack.Add(2*time.Hour), window))
	assert.ErrorIs(t, einvoice.CheckCancel(doc, einvoice.CancelDataEntry, "  ", ack, window), domain.ErrInvalidInput)
	assert.ErrorIs(t, einvoice.CheckCancel(doc, "9", "x", ack, window), domain.ErrInvalidInput)
	assert.ErrorIs(t, einvoice.CheckCancel(doc, einvoice.CancelOther, "late", ack.Add(25*time.Hour), window), domain.ErrIllegalTransition)

	pending := &entity.EInvoice{Status: entity.EInvoiceStatusPending}
	assert.ErrorIs(t, einvoice.CheckCancel(pending, einvoice.CancelOther, "x", ack, window), domain.ErrIllegalTransition)
}

func TestParseCancelReason(t *testing.T) {
	r, err := einvoice.ParseCancelReason("2")
	require.NoError(t, err)
	assert.Equal(t, einvoice.CancelDataEntry, r)
	r, err = einvoice.ParseCancelReason("Duplicate")
	require.NoError(t, err)
	assert.Equal(t, einvoice.CancelDuplicate, r)
	_, err = einvoice.ParseCancelReason("because")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
