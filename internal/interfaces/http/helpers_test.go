package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agro-pos-api/internal/application/auth"
	"github.com/jhoicas/agro-pos-api/internal/application/catalog"
	"github.com/jhoicas/agro-pos-api/internal/application/compliance"
	"github.com/jhoicas/agro-pos-api/internal/application/inventory"
	"github.com/jhoicas/agro-pos-api/internal/application/sales"
	"github.com/jhoicas/agro-pos-api/internal/infrastructure/irp"
	"github.com/jhoicas/agro-pos-api/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/agro-pos-api/internal/interfaces/http"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
	"github.com/jhoicas/agro-pos-api/pkg/secret"
)

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	sellerGSTIN   = "27AAPFU0939F1ZV"
	buyerGSTIN    = "29AAGCB7383J1Z4"
)

type server struct {
	app      *fiber.App
	store    *memory.Store
	provider *irp.Provider
}

func newServer(t *testing.T) *server {
	t.Helper()
	store := memory.NewStore()
	log := logger.Nop()
	box := secret.FromPassphrase("http-test")

	provider := irp.NewProvider(irp.ProviderConfig{Env: irp.EnvDev, Timeout: 2 * time.Second, TokenSkew: time.Minute},
		store.EInvoiceConfigs(), box, irp.NewMemoryTokenCache(), store.Audit(), log)
	mgr := compliance.NewManager(compliance.Deps{
		Sales:     store.Sales(),
		Docs:      store.EInvoices(),
		Configs:   store.EInvoiceConfigs(),
		Audit:     store.Audit(),
		Merchants: store.Merchants(),
		Customers: store.Customers(),
		Gateways:  provider,
		Log:       log,
	}, compliance.DefaultConfig())
	t.Cleanup(mgr.Wait)

	saleUC := sales.NewSaleUseCase(sales.Deps{
		TxRunner:  store,
		Numbers:   store,
		Sales:     store.Sales(),
		Batches:   store.Batches(),
		Merchants: store.Merchants(),
		Customers: store.Customers(),
		Products:  store.Products(),
		Configs:   store.EInvoiceConfigs(),
		Log:       log,
	}, sales.DefaultConfig())

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		AuthUC:     auth.NewAuthUseCase(store.Merchants(), auth.JWTConfig{Secret: testJWTSecret, ExpMinutes: 60, Issuer: "agro-pos-test"}).WithBcryptCost(4),
		CustomerUC: catalog.NewCustomerUseCase(store.Customers()),
		ProductUC:  catalog.NewProductUseCase(store.Products()),
		BatchUC:    inventory.NewBatchUseCase(store, store.Batches(), store.Products(), log),
		ExpiryUC:   inventory.NewExpiryReportUseCase(store.Batches(), store.Products()),
		SaleUC:     saleUC,
		EInvoices:  mgr,
		Settings:   compliance.NewSettingsUseCase(store.EInvoiceConfigs(), box),
		Health:     apphttp.NewHealthHandler("agro-pos", "test", nil),
		JWTSecret:  testJWTSecret,
		Log:        log,
	})
	return &server{app: app, store: store, provider: provider}
}

// do envía una petición JSON y decodifica la respuesta en out si no es nil.
func (s *server) do(t *testing.T, method, path, token string, body any, out any, headers ...string) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// register crea un comercio en Maharashtra y devuelve su token.
func (s *server) register(t *testing.T, ownerEmail string) string {
	t.Helper()
	var out struct {
		Token string `json:"token"`
	}
	status := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":        "Krishi Kendra",
		"gstin":       sellerGSTIN,
		"state_code":  "27",
		"address":     "Market Yard",
		"city":        "Pune",
		"pincode":     "411037",
		"owner_email": ownerEmail,
		"password":    "s3cret-pass",
	}, &out)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, out.Token)
	return out.Token
}

// stockedProduct crea un producto a 100 + 18% de GST con un lote de qty unidades.
func (s *server) stockedProduct(t *testing.T, token, sku, qty string) string {
	t.Helper()
	var product struct {
		ID string `json:"id"`
	}
	status := s.do(t, http.MethodPost, "/api/products", token, map[string]any{
		"sku": sku, "name": "Urea 45kg", "hsn_code": "31021000", "unit": "bag",
		"price": "100", "gst_rate": "18",
	}, &product)
	require.Equal(t, http.StatusCreated, status)

	status = s.do(t, http.MethodPost, "/api/products/"+product.ID+"/batches", token, map[string]any{
		"batch_number": "LOT-" + sku,
		"expiry_date":  time.Now().AddDate(1, 0, 0).Format("2006-01-02"),
		"quantity":     qty,
	}, nil)
	require.Equal(t, http.StatusCreated, status)
	return product.ID
}
