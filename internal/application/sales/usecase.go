package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/einvoice"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
	"github.com/jhoicas/agro-pos-api/internal/domain/tax"
	"github.com/jhoicas/agro-pos-api/pkg/gst"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
)

// Config ajusta el registro de ventas.
type Config struct {
	InvoicePrefix      string
	ReturnPrefix       string
	MaxConflictRetries int
	UnknownBuyer       tax.UnknownBuyerPolicy
	RoundToRupee       bool
	EInvoiceThreshold  decimal.Decimal
}

// DefaultConfig devuelve los valores de producción.
func DefaultConfig() Config {
	return Config{
		InvoicePrefix:      "INV",
		ReturnPrefix:       "CRN",
		MaxConflictRetries: 2,
		UnknownBuyer:       tax.UnknownBuyerIntra,
		RoundToRupee:       true,
		EInvoiceThreshold:  einvoice.DefaultThreshold,
	}
}

// Deps son los colaboradores de SaleUseCase. Estos repositorios se usan para
// lecturas fuera de la transacción de registro.
type Deps struct {
	TxRunner  TxRunner
	Numbers   repository.InvoiceNumberGenerator
	Sales     repository.SaleRepository
	Batches   repository.BatchRepository
	Merchants repository.MerchantRepository
	Customers repository.CustomerRepository
	Products  repository.ProductRepository
	Configs   repository.EInvoiceConfigRepository
	Scheduler DocumentScheduler // opcional
	Log       *logger.Logger
	Clock     func() time.Time // opcional, por defecto time.Now
}

// SaleUseCase propone, registra y revierte ventas.
type SaleUseCase struct {
	deps Deps
	cfg  Config
	log  *logger.Logger
	now  func() time.Time
}

// NewSaleUseCase construye el caso de uso.
func NewSaleUseCase(deps Deps, cfg Config) *SaleUseCase {
	if cfg.InvoicePrefix == "" {
		cfg.InvoicePrefix = "INV"
	}
	if cfg.ReturnPrefix == "" {
		cfg.ReturnPrefix = "CRN"
	}
	if cfg.MaxConflictRetries < 0 {
		cfg.MaxConflictRetries = 0
	}
	if cfg.UnknownBuyer == "" {
		cfg.UnknownBuyer = tax.UnknownBuyerIntra
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &SaleUseCase{deps: deps, cfg: cfg, log: log.Named("sales"), now: now}
}

// parties es el contexto resuelto de vendedor y comprador de una venta.
type parties struct {
	merchant     *entity.Merchant
	customer     *entity.Customer // nil = venta de mostrador
	jurisdiction tax.Jurisdiction
}

func (uc *SaleUseCase) resolveParties(ctx context.Context, merchantID, customerID, buyerState string) (*parties, error) {
	merchant, err := uc.deps.Merchants.GetByID(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("load merchant: %w", err)
	}
	if merchant == nil {
		return nil, domain.ErrNotFound
	}
	p := &parties{merchant: merchant}

	if customerID != "" {
		customer, err := uc.deps.Customers.GetByID(ctx, merchantID, customerID)
		if err != nil {
			return nil, fmt.Errorf("load customer: %w", err)
		}
		if customer == nil {
			return nil, fmt.Errorf("customer %s: %w", customerID, domain.ErrNotFound)
		}
		p.customer = customer
		if strings.TrimSpace(buyerState) == "" {
			buyerState = customer.StateCode
		}
		if strings.TrimSpace(buyerState) == "" {
			buyerState = gst.StateCodeOfGSTIN(customer.GSTIN)
		}
	}

	sellerState := merchant.StateCode
	if sellerState == "" {
		sellerState = gst.StateCodeOfGSTIN(merchant.GSTIN)
	}
	j, err := tax.Resolve(sellerState, buyerState, uc.cfg.UnknownBuyer)
	if err != nil {
		return nil, err
	}
	p.jurisdiction = j
	return p, nil
}

func (uc *SaleUseCase) eligibilityRules(ctx context.Context, merchantID string) (einvoice.Rules, bool, error) {
	if uc.deps.Configs == nil {
		return einvoice.RulesFor(nil, uc.cfg.EInvoiceThreshold), false, nil
	}
	cfg, err := uc.deps.Configs.Get(ctx, merchantID)
	if err != nil {
		return einvoice.Rules{}, false, fmt.Errorf("load e-invoice config: %w", err)
	}
	auto := cfg != nil && cfg.Enabled && cfg.AutoGenerate
	return einvoice.RulesFor(cfg, uc.cfg.EInvoiceThreshold), auto, nil
}

func paymentStatus(paid, total decimal.Decimal) string {
	switch {
	case total.IsPositive() && paid.GreaterThanOrEqual(total):
		return entity.PaymentStatusPaid
	case !total.IsPositive():
		return entity.PaymentStatusPaid
	case paid.IsPositive():
		return entity.PaymentStatusPartial
	default:
		return entity.PaymentStatusUnpaid
	}
}
