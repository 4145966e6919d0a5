package irp_test

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/einvoice"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/infrastructure/irp"
	"github.com/jhoicas/agro-pos-api/internal/infrastructure/memory"
)

const (
	merchantID  = "m-1"
	sellerGSTIN = "27AAPFU0939F1ZV"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testDocument(t *testing.T, number string) *einvoice.Document {
	t.Helper()
	exp := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cust := "c-1"
	sale := &entity.Sale{
		ID: "s-" + number, MerchantID: merchantID, CustomerID: &cust, Kind: entity.SaleKindSale,
		InvoiceNumber: number, SaleDate: time.Date(2025, 10, 3, 10, 0, 0, 0, time.UTC),
		PaymentMethod: "upi", PaymentStatus: entity.PaymentStatusPaid, PaidAmount: d("1180"),
		Subtotal: d("1000"), Discount: decimal.Zero, CGST: decimal.Zero, SGST: decimal.Zero, IGST: d("180"),
		RoundOff: decimal.Zero, Total: d("1180"), SellerState: "27", BuyerState: "29", Interstate: true,
		Items: []*entity.SaleItem{{
			ID: "i-1", Seq: 1, ProductID: "p-1", ProductName: "Urea 45kg", HSNCode: "31021000", Unit: "BAG",
			Quantity: d("10"), UnitPrice: d("100"), GrossAmount: d("1000"), Discount: decimal.Zero,
			TaxableValue: d("1000"), GSTRate: d("18"), CGST: decimal.Zero, SGST: decimal.Zero, IGST: d("180"),
			LineTotal: d("1180"),
			Allocations: []entity.AllocationLine{{BatchID: "b-1", BatchNumber: "LOT-7", ExpiryDate: &exp, Quantity: d("10")}},
		}},
	}
	merchant := &entity.Merchant{ID: merchantID, Name: "Krishi Kendra", GSTIN: sellerGSTIN, StateCode: "27", Address: "Main Road", City: "Pune", Pincode: "411001"}
	buyer := &entity.Customer{ID: cust, MerchantID: merchantID, Name: "Green Farms Pvt Ltd", GSTIN: "29AAGCB7383J1Z4", StateCode: "29", Address: "MG Road", City: "Bengaluru", Pincode: "560001"}
	doc, err := einvoice.BuildDocument(sale, merchant, buyer)
	require.NoError(t, err)
	return doc
}

func creds() irp.Credentials {
	return irp.Credentials{GSTIN: sellerGSTIN, Username: "krishi_api", Password: "p@ss-w0rd", ClientID: "cid", ClientSecret: "c-secret"}
}

type harness struct {
	sandbox   *irp.Sandbox
	server    *httptest.Server
	audit     *memory.AuditRepository
	client    *irp.Client
	authCalls atomic.Int32
}

// newHarness sirve el sandbox detrás de wrap, que puede interceptar peticiones.
func newHarness(t *testing.T, timeout time.Duration, wrap func(next http.Handler) http.Handler) *harness {
	t.Helper()
	h := &harness{sandbox: irp.NewSandbox(), audit: memory.NewStore().Audit()}
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1.03/auth" {
			h.authCalls.Add(1)
		}
		h.sandbox.ServeHTTP(w, r)
	})
	if wrap != nil {
		handler = wrap(handler)
	}
	h.server = httptest.NewServer(handler)
	t.Cleanup(h.server.Close)
	h.client = irp.NewClient(merchantID, creds(), irp.ClientConfig{BaseURL: h.server.URL, Timeout: timeout, TokenSkew: time.Minute},
		irp.ClientDeps{Audit: h.audit})
	return h
}

func (h *harness) entries(t *testing.T, saleID string) []*entity.AuditEntry {
	t.Helper()
	list, err := h.audit.ListBySale(context.Background(), merchantID, saleID)
	require.NoError(t, err)
	return list
}

func TestClient_GenerateFetchCancel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2*time.Second, nil)
	doc := testDocument(t, "INV2510000001")

	reg, err := h.client.Generate(ctx, "s-1", doc)
	require.NoError(t, err)
	assert.Len(t, reg.IRN, 64)
	assert.NotEmpty(t, reg.AckNumber)
	assert.Equal(t, einvoice.RemoteActive, reg.Status)
	assert.False(t, reg.AckDate.IsZero())
	assert.NotEmpty(t, reg.AuditID)

	token, err := jwt.Parse(reg.SignedQRCode, func(*jwt.Token) (any, error) { return h.sandbox.SignKey(), nil })
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, reg.IRN, claims["data"].(map[string]any)["Irn"])

	got, err := h.client.Fetch(ctx, "s-1", reg.IRN)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, reg.AckNumber, got.AckNumber)

	byDoc, err := h.client.FetchByDocument(ctx, "s-1", einvoice.Lookup{Type: doc.Type, Number: doc.Number, Date: doc.Date})
	require.NoError(t, err)
	require.NotNil(t, byDoc)
	assert.Equal(t, reg.IRN, byDoc.IRN)

	missing, err := h.client.Fetch(ctx, "s-1", strings.Repeat("0", 64))
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = h.client.Generate(ctx, "s-1", doc)
	var rej *domain.AuthorityRejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, einvoice.CodeDuplicateIRN, rej.Code)
	assert.NotEmpty(t, rej.AuditID)

	c, err := h.client.Cancel(ctx, "s-1", reg.IRN, einvoice.CancelDataEntry, "wrong quantity")
	require.NoError(t, err)
	assert.Equal(t, reg.IRN, c.IRN)

	after, err := h.client.Fetch(ctx, "s-1", reg.IRN)
	require.NoError(t, err)
	assert.Equal(t, einvoice.RemoteCancelled, after.Status)

	assert.EqualValues(t, 1, h.authCalls.Load())
}

func TestClient_AuditIsRedacted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2*time.Second, nil)

	_, err := h.client.Generate(ctx, "s-1", testDocument(t, "INV2510000001"))
	require.NoError(t, err)

	list := h.entries(t, "s-1")
	require.Len(t, list, 2)
	auth, gen := list[0], list[1]
	assert.Equal(t, entity.AuditOpAuthenticate, auth.Operation)
	assert.Equal(t, entity.AuditOutcomeSuccess, auth.Outcome)
	assert.NotContains(t, string(auth.Request), "p@ss-w0rd")
	assert.NotContains(t, string(auth.Request), "c-secret")
	assert.Contains(t, string(auth.Request), "[REDACTED]")
	assert.Contains(t, string(auth.Response), "[REDACTED]")

	assert.Equal(t, entity.AuditOpGenerate, gen.Operation)
	assert.Equal(t, http.StatusOK, gen.HTTPStatus)
	_, err = hex.DecodeString(gen.RequestDigest)
	assert.NoError(t, err)
	assert.Len(t, gen.RequestDigest, 64)
	assert.Contains(t, string(gen.Request), "INV2510000001")
}

func TestClient_ReauthenticatesOnceAfter401(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2*time.Second, nil)

	_, err := h.client.Generate(ctx, "s-1", testDocument(t, "INV2510000001"))
	require.NoError(t, err)
	_, err = h.client.Generate(ctx, "s-2", testDocument(t, "INV2510000002"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, h.authCalls.Load(), "token reused")

	h.sandbox.ExpireTokens()
	_, err = h.client.Generate(ctx, "s-3", testDocument(t, "INV2510000003"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, h.authCalls.Load())
	assert.Equal(t, 3, h.sandbox.Registrations())

	var outcomes []string
	for _, e := range h.entries(t, "s-3") {
		outcomes = append(outcomes, e.Operation+":"+e.Outcome)
	}
	assert.Equal(t, []string{"generate:auth_failed", "authenticate:success", "generate:success"}, outcomes)
}

func TestClient_ConcurrentCallsShareOneAuthentication(t *testing.T) {
	h := newHarness(t, 2*time.Second, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v1.03/auth" {
				time.Sleep(50 * time.Millisecond)
			}
			next.ServeHTTP(w, r)
		})
	})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.client.Fetch(context.Background(), "s-1", strings.Repeat("a", 64))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, h.authCalls.Load())
}

func TestClient_BadCredentials(t *testing.T) {
	h := newHarness(t, 2*time.Second, nil)
	h.sandbox.AddUser("krishi_api", "something-else")

	_, err := h.client.Generate(context.Background(), "s-1", testDocument(t, "INV2510000001"))
	var authErr *domain.AuthorityAuthError
	require.ErrorAs(t, err, &authErr)
	assert.NotEmpty(t, domain.AuditRef(err))

	list := h.entries(t, "s-1")
	require.Len(t, list, 1)
	assert.Equal(t, entity.AuditOutcomeAuthFailed, list[0].Outcome)
	assert.Equal(t, 0, h.sandbox.Registrations())
}

func TestClient_ServerErrorIsUnavailable(t *testing.T) {
	h := newHarness(t, 2*time.Second, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v1.03/invoice" {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	_, err := h.client.Generate(context.Background(), "s-1", testDocument(t, "INV2510000001"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAuthorityUnavailable))
	assert.NotEmpty(t, domain.AuditRef(err))

	list := h.entries(t, "s-1")
	assert.Equal(t, entity.AuditOutcomeUnavailable, list[len(list)-1].Outcome)
}

func TestClient_RejectionCarriesAuthorityMessage(t *testing.T) {
	h := newHarness(t, 2*time.Second, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v1.03/invoice" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"message":"Validation failed","error":{"error_cd":"2172","message":"Invalid HSN code 3102"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	_, err := h.client.Generate(context.Background(), "s-1", testDocument(t, "INV2510000001"))
	var rej *domain.AuthorityRejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "2172", rej.Code)
	assert.Equal(t, "Invalid HSN code 3102", rej.Message)
}

func TestClient_TimeoutAfterAcceptanceCanBeReconciled(t *testing.T) {
	h := newHarness(t, 150*time.Millisecond, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v1.03/invoice" {
				// La autoridad registra el documento y luego se pierde la respuesta.
				next.ServeHTTP(httptest.NewRecorder(), r)
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	ctx := context.Background()
	doc := testDocument(t, "INV2510000001")

	_, err := h.client.Generate(ctx, "s-1", doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAuthorityUnavailable))
	assert.Equal(t, 1, h.sandbox.Registrations())

	reg, err := h.client.FetchByDocument(ctx, "s-1", einvoice.Lookup{Type: doc.Type, Number: doc.Number, Date: doc.Date})
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Len(t, reg.IRN, 64)
}
