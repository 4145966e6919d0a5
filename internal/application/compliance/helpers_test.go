package compliance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agro-pos-api/internal/application/compliance"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/einvoice"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/infrastructure/memory"
)

const (
	merchantID = "m-1"
	b2bSaleID  = "s-b2b"
	walkInID   = "s-walkin"
	buyerID    = "c-b2b"
)

var fixedNow = time.Date(2025, 10, 3, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeGateway es una autoridad en proceso que registra una entrada de auditoría por llamada.
type fakeGateway struct {
	mu       sync.Mutex
	audit    *memory.AuditRepository
	byNumber map[string]*einvoice.Registration
	byIRN    map[string]*einvoice.Registration
	calls    map[string]int

	// nextErr hace fallar la próxima llamada de la operación indicada.
	nextErr map[string]error
	// acceptThenTimeout registra el próximo documento pero informa un timeout.
	acceptThenTimeout bool
}

func newFakeGateway(audit *memory.AuditRepository) *fakeGateway {
	return &fakeGateway{
		audit:    audit,
		byNumber: map[string]*einvoice.Registration{},
		byIRN:    map[string]*einvoice.Registration{},
		calls:    map[string]int{},
		nextErr:  map[string]error{},
	}
}

func (g *fakeGateway) ForMerchant(context.Context, string) (compliance.Gateway, error) { return g, nil }

func (g *fakeGateway) record(ctx context.Context, saleID, op, outcome string) string {
	id := uuid.New().String()
	_ = g.audit.Append(ctx, &entity.AuditEntry{
		ID: id, MerchantID: merchantID, SaleID: saleID, Operation: op, Outcome: outcome,
		RequestDigest: "digest", CreatedAt: fixedNow,
	})
	return id
}

func (g *fakeGateway) takeErr(op string) error {
	err := g.nextErr[op]
	delete(g.nextErr, op)
	return err
}

func withAudit(err error, auditID string) error {
	var rej *domain.AuthorityRejectedError
	if errors.As(err, &rej) {
		cp := *rej
		cp.AuditID = auditID
		return &cp
	}
	var un *domain.AuthorityUnavailableError
	if errors.As(err, &un) {
		cp := *un
		cp.AuditID = auditID
		return &cp
	}
	return err
}

func (g *fakeGateway) register(doc *einvoice.Document) *einvoice.Registration {
	reg := &einvoice.Registration{
		IRN:          "irn-" + doc.Number,
		AckNumber:    "1124" + doc.Number[len(doc.Number)-6:],
		AckDate:      fixedNow,
		SignedQRCode: "qr-" + doc.Number,
		Status:       einvoice.RemoteActive,
	}
	g.byNumber[doc.Number] = reg
	g.byIRN[reg.IRN] = reg
	return reg
}

func (g *fakeGateway) Generate(ctx context.Context, saleID string, doc *einvoice.Document) (*einvoice.Registration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["generate"]++
	if err := g.takeErr("generate"); err != nil {
		return nil, withAudit(err, g.record(ctx, saleID, entity.AuditOpGenerate, entity.AuditOutcomeRejected))
	}
	if _, dup := g.byNumber[doc.Number]; dup {
		id := g.record(ctx, saleID, entity.AuditOpGenerate, entity.AuditOutcomeRejected)
		return nil, &domain.AuthorityRejectedError{Code: einvoice.CodeDuplicateIRN, Message: "Duplicate IRN", AuditID: id}
	}
	reg := g.register(doc)
	if g.acceptThenTimeout {
		g.acceptThenTimeout = false
		id := g.record(ctx, saleID, entity.AuditOpGenerate, entity.AuditOutcomeUnavailable)
		return nil, &domain.AuthorityUnavailableError{Op: "generate", Err: context.DeadlineExceeded, AuditID: id}
	}
	out := *reg
	out.AuditID = g.record(ctx, saleID, entity.AuditOpGenerate, entity.AuditOutcomeSuccess)
	return &out, nil
}

func (g *fakeGateway) Cancel(ctx context.Context, saleID, irn string, _ einvoice.CancelReason, _ string) (*einvoice.Cancellation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["cancel"]++
	if err := g.takeErr("cancel"); err != nil {
		return nil, withAudit(err, g.record(ctx, saleID, entity.AuditOpCancel, entity.AuditOutcomeRejected))
	}
	reg, ok := g.byIRN[irn]
	if !ok {
		return nil, &domain.AuthorityRejectedError{Code: "2270", Message: "IRN not found"}
	}
	reg.Status = einvoice.RemoteCancelled
	return &einvoice.Cancellation{IRN: irn, CancelDate: fixedNow.Add(time.Hour), AuditID: g.record(ctx, saleID, entity.AuditOpCancel, entity.AuditOutcomeSuccess)}, nil
}

func (g *fakeGateway) Fetch(ctx context.Context, saleID, irn string) (*einvoice.Registration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["fetch"]++
	g.record(ctx, saleID, entity.AuditOpVerify, entity.AuditOutcomeSuccess)
	reg, ok := g.byIRN[irn]
	if !ok {
		return nil, nil
	}
	out := *reg
	return &out, nil
}

func (g *fakeGateway) FetchByDocument(ctx context.Context, saleID string, lookup einvoice.Lookup) (*einvoice.Registration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["fetch_by_doc"]++
	if err := g.takeErr("fetch_by_doc"); err != nil {
		return nil, err
	}
	g.record(ctx, saleID, entity.AuditOpVerify, entity.AuditOutcomeSuccess)
	reg, ok := g.byNumber[lookup.Number]
	if !ok {
		return nil, nil
	}
	out := *reg
	return &out, nil
}

type env struct {
	store *memory.Store
	gw    *fakeGateway
	mgr   *compliance.Manager
	now   time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	store.SetClock(func() time.Time { return fixedNow })

	require.NoError(t, store.Merchants().Create(ctx, &entity.Merchant{
		ID: merchantID, Name: "Krishi Kendra", GSTIN: "27AAPFU0939F1ZV", StateCode: "27",
		Address: "Market Yard", City: "Pune", Pincode: "411037",
	}))
	require.NoError(t, store.Customers().Create(ctx, &entity.Customer{
		ID: buyerID, MerchantID: merchantID, Name: "Green Farms Pvt Ltd", GSTIN: "29AAGCB7383J1Z4",
		StateCode: "29", City: "Bengaluru", Pincode: "560001",
	}))
	require.NoError(t, store.EInvoiceConfigs().Upsert(ctx, &entity.EInvoiceConfig{
		MerchantID: merchantID, Enabled: true, GSTIN: "27AAPFU0939F1ZV",
	}))
	buyer := buyerID
	require.NoError(t, store.Sales().Create(ctx, sale(b2bSaleID, "INV2510000001", &buyer)))
	require.NoError(t, store.Sales().Create(ctx, sale(walkInID, "INV2510000002", nil)))

	e := &env{store: store, now: fixedNow}
	e.gw = newFakeGateway(store.Audit())
	e.mgr = compliance.NewManager(compliance.Deps{
		Sales:     store.Sales(),
		Docs:      store.EInvoices(),
		Configs:   store.EInvoiceConfigs(),
		Audit:     store.Audit(),
		Merchants: store.Merchants(),
		Customers: store.Customers(),
		Gateways:  e.gw,
		Clock:     func() time.Time { return e.now },
	}, compliance.DefaultConfig())
	return e
}

func sale(id, number string, customerID *string) *entity.Sale {
	exp := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return &entity.Sale{
		ID: id, MerchantID: merchantID, CustomerID: customerID, Kind: entity.SaleKindSale,
		InvoiceNumber: number, SaleDate: fixedNow, PaymentMethod: "upi", PaymentStatus: entity.PaymentStatusPaid,
		PaidAmount: d("1180"), Subtotal: d("1000"), Discount: decimal.Zero,
		CGST: decimal.Zero, SGST: decimal.Zero, IGST: d("180"), RoundOff: decimal.Zero, Total: d("1180"),
		SellerState: "27", BuyerState: "29", Interstate: true, EInvoiceStatus: entity.EInvoiceStatusPending,
		Items: []*entity.SaleItem{{
			ID: id + "-1", SaleID: id, Seq: 1, ProductID: "p-urea", ProductName: "Urea 45kg",
			HSNCode: "31021000", Unit: "BAG", Quantity: d("10"), UnitPrice: d("100"),
			GrossAmount: d("1000"), Discount: decimal.Zero, TaxableValue: d("1000"), GSTRate: d("18"),
			CGST: decimal.Zero, SGST: decimal.Zero, IGST: d("180"), LineTotal: d("1180"),
			Allocations: []entity.AllocationLine{{BatchID: "B1", BatchNumber: "LOT-1", ExpiryDate: &exp, Quantity: d("10"), Version: 1}},
		}},
	}
}

func (e *env) saleStatus(t *testing.T, id string) string {
	t.Helper()
	s, err := e.store.Sales().GetByID(context.Background(), merchantID, id)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s.EInvoiceStatus
}
