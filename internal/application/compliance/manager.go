package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/einvoice"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
)

// Config ajusta el gestor de documentos.
type Config struct {
	Threshold    decimal.Decimal
	CancelWindow time.Duration // 0 desactiva la verificación de ventana
	AsyncTimeout time.Duration // tiempo máximo de una generación en segundo plano
	WriteTimeout time.Duration // tiempo máximo de la escritura local tras llamar a la autoridad
}

// DefaultConfig devuelve los valores de producción.
func DefaultConfig() Config {
	return Config{
		Threshold:    einvoice.DefaultThreshold,
		CancelWindow: 24 * time.Hour,
		AsyncTimeout: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Deps son los colaboradores de Manager.
type Deps struct {
	Sales     repository.SaleRepository
	Docs      repository.EInvoiceRepository
	Configs   repository.EInvoiceConfigRepository
	Audit     repository.AuditRepository
	Merchants repository.MerchantRepository
	Customers repository.CustomerRepository
	Gateways  GatewayProvider
	Log       *logger.Logger
	Clock     func() time.Time
}

// Manager lleva la factura electrónica de una venta por su ciclo de vida:
// not_applicable → pending → {generated, error}; error → pending; generated → cancelled.
//
// Antes de cada intento de registro el documento se guarda con
// ReconcileRequired marcado. Solo una escritura local definitiva lo limpia; así un
// documento que la autoridad aceptó pero no guardamos se vuelve a consultar en el
// siguiente acceso en lugar de registrarse dos veces.
type Manager struct {
	deps  Deps
	cfg   Config
	log   *logger.Logger
	now   func() time.Time
	locks *saleLocks
	wg    sync.WaitGroup
}

// NewManager construye el gestor.
func NewManager(deps Deps, cfg Config) *Manager {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.AsyncTimeout <= 0 {
		cfg.AsyncTimeout = 30 * time.Second
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Manager{deps: deps, cfg: cfg, log: log.Named("einvoice"), now: now, locks: newSaleLocks()}
}

// lock serializa las operaciones de documento de una venta dentro del proceso.
func (m *Manager) lock(saleID string) func() {
	return m.locks.lock(saleID)
}

// saleContext es una venta con sus partes.
type saleContext struct {
	sale     *entity.Sale
	merchant *entity.Merchant
	buyer    *entity.Customer
}

func (m *Manager) load(ctx context.Context, merchantID, saleID string) (*saleContext, error) {
	sale, err := m.deps.Sales.GetByID(ctx, merchantID, saleID)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, domain.ErrNotFound
	}
	merchant, err := m.deps.Merchants.GetByID(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, domain.ErrNotFound
	}
	sc := &saleContext{sale: sale, merchant: merchant}
	if sale.CustomerID != nil {
		buyer, err := m.deps.Customers.GetByID(ctx, merchantID, *sale.CustomerID)
		if err != nil {
			return nil, err
		}
		sc.buyer = buyer
	}
	return sc, nil
}

func (m *Manager) eligibility(ctx context.Context, sc *saleContext) (bool, []string, error) {
	cfg, err := m.deps.Configs.Get(ctx, sc.merchant.ID)
	if err != nil {
		return false, nil, fmt.Errorf("load e-invoice config: %w", err)
	}
	ok, reasons := einvoice.CheckEligibility(sc.sale, sc.buyer, sc.merchant, einvoice.RulesFor(cfg, m.cfg.Threshold))
	return ok, reasons, nil
}

// CheckEligibility indica si la venta debe registrarse y por qué.
func (m *Manager) CheckEligibility(ctx context.Context, merchantID, saleID string) (*dto.EligibilityResponse, error) {
	sc, err := m.load(ctx, merchantID, saleID)
	if err != nil {
		return nil, err
	}
	ok, reasons, err := m.eligibility(ctx, sc)
	if err != nil {
		return nil, err
	}
	return &dto.EligibilityResponse{SaleID: saleID, Eligible: ok, Reasons: reasons}, nil
}

// Get devuelve el documento de la venta, conciliándolo antes si un intento
// de registro anterior terminó sin respuesta definitiva. Una conciliación
// fallida no hace fallar la lectura; la marca sigue puesta.
func (m *Manager) Get(ctx context.Context, merchantID, saleID string) (*dto.EInvoiceResponse, error) {
	unlock := m.lock(saleID)
	defer unlock()

	doc, err := m.deps.Docs.GetBySale(ctx, merchantID, saleID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if doc.ReconcileRequired {
		sc, err := m.load(ctx, merchantID, saleID)
		if err != nil {
			return nil, err
		}
		if err := m.reconcile(ctx, sc, doc); err != nil {
			m.log.Warn().Str("merchant_id", merchantID).Str("sale_id", saleID).Str("op", "reconcile").
				Err(err).Msg("reconciliation deferred")
		}
	}
	return toEInvoiceResponse(doc), nil
}

// Generate registra el documento de la venta ante la autoridad. Un documento ya
// generado se devuelve sin contactar a la autoridad.
func (m *Manager) Generate(ctx context.Context, merchantID, saleID string) (*dto.EInvoiceResponse, error) {
	unlock := m.lock(saleID)
	defer unlock()

	sc, err := m.load(ctx, merchantID, saleID)
	if err != nil {
		return nil, err
	}
	doc, err := m.deps.Docs.GetBySale(ctx, merchantID, saleID)
	if err != nil {
		return nil, err
	}

	if doc == nil {
		ok, reasons, err := m.eligibility(ctx, sc)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &domain.IllegalTransitionError{
				From:   entity.EInvoiceStatusNotApplicable,
				Action: einvoice.ActionGenerate,
				Reason: strings.Join(reasons, "; "),
			}
		}
		now := m.now()
		doc = &entity.EInvoice{
			ID:         uuid.New().String(),
			MerchantID: merchantID,
			SaleID:     saleID,
			Status:     entity.EInvoiceStatusPending,
			Reasons:    reasons,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := m.deps.Docs.Create(ctx, doc); err != nil {
			return nil, fmt.Errorf("create e-invoice: %w", err)
		}
	}

	if doc.ReconcileRequired {
		// Nunca registrar de nuevo mientras un intento anterior pueda haber tenido éxito.
		if err := m.reconcile(ctx, sc, doc); err != nil {
			return nil, err
		}
	}
	if err := einvoice.CheckGenerate(doc); err != nil {
		return nil, err
	}
	if doc.Status == entity.EInvoiceStatusGenerated {
		return toEInvoiceResponse(doc), nil
	}
	if doc.Status == entity.EInvoiceStatusError {
		if err := einvoice.Transition(doc, entity.EInvoiceStatusPending, einvoice.ActionGenerate); err != nil {
			return nil, err
		}
	}

	payload, err := einvoice.BuildDocument(sc.sale, sc.merchant, sc.buyer)
	if err == nil {
		err = einvoice.Validate(payload)
	}
	if err != nil {
		doc.LastError = err.Error()
		m.fail(ctx, doc)
		return nil, err
	}

	gw, err := m.deps.Gateways.ForMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	doc.Attempts++
	doc.ReconcileRequired = true
	doc.RequestPayload, _ = json.Marshal(payload)
	doc.UpdatedAt = m.now()
	if err := m.deps.Docs.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("mark e-invoice pending: %w", err)
	}
	m.annotateSale(ctx, doc)

	log := m.log.With().Str("merchant_id", merchantID).Str("sale_id", saleID).Str("op", "generate").Logger()
	reg, gerr := gw.Generate(ctx, saleID, payload)

	wctx, cancel := m.writeContext(ctx)
	defer cancel()
	switch {
	case gerr == nil:
		m.applyRegistration(doc, reg)
		doc.LastAuditID = reg.AuditID
		if err := m.store(wctx, doc); err != nil {
			return nil, err
		}
		log.Info().Str("irn", doc.IRN).Str("ack_number", doc.AckNumber).Int("attempt", doc.Attempts).Msg("e-invoice generated")
		return toEInvoiceResponse(doc), nil

	case isDuplicate(gerr):
		// Registrado por un intento del que perdimos rastro: se adopta.
		doc.LastAuditID = domain.AuditRef(gerr)
		if err := m.reconcile(wctx, sc, doc); err != nil {
			return nil, err
		}
		log.Warn().Str("irn", doc.IRN).Str("status", doc.Status).Msg("duplicate registration reconciled")
		if doc.Status == entity.EInvoiceStatusGenerated {
			return toEInvoiceResponse(doc), nil
		}
		return nil, gerr

	case errors.Is(gerr, domain.ErrAuthorityUnavailable):
		// La petición pudo llegar a la autoridad: se mantiene la marca de conciliación.
		doc.Status = entity.EInvoiceStatusError
		doc.LastError = gerr.Error()
		doc.LastAuditID = domain.AuditRef(gerr)
		doc.UpdatedAt = m.now()
		if err := m.store(wctx, doc); err != nil {
			log.Error().Err(err).Msg("could not record failed attempt")
		}
		log.Warn().Err(gerr).Int("attempt", doc.Attempts).Msg("authority unavailable, reconcile on next access")
		return nil, gerr

	default:
		doc.ReconcileRequired = false
		doc.LastError = gerr.Error()
		doc.LastAuditID = domain.AuditRef(gerr)
		m.fail(wctx, doc)
		log.Warn().Err(gerr).Str("audit_ref", doc.LastAuditID).Msg("e-invoice generation failed")
		return nil, gerr
	}
}

// Verify compara el documento local con el registro de la autoridad. Nunca
// cambia el estado local: un desacuerdo se informa como discrepancia.
func (m *Manager) Verify(ctx context.Context, merchantID, saleID string) (*dto.VerifyResponse, error) {
	doc, err := m.deps.Docs.GetBySale(ctx, merchantID, saleID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if doc.IRN == "" {
		return nil, &domain.IllegalTransitionError{From: doc.Status, Action: einvoice.ActionVerify, Reason: "document has no IRN yet"}
	}
	gw, err := m.deps.Gateways.ForMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	reg, err := gw.Fetch(ctx, saleID, doc.IRN)
	if err != nil {
		return nil, err
	}

	resp := &dto.VerifyResponse{SaleID: saleID, IRN: doc.IRN, LocalStatus: doc.Status}
	expected := einvoice.RemoteActive
	if doc.Status == entity.EInvoiceStatusCancelled {
		expected = einvoice.RemoteCancelled
	}
	switch {
	case reg == nil:
		resp.Discrepancy = true
		resp.Detail = "the authority has no record of this IRN"
	default:
		resp.RemoteStatus = reg.Status
		if reg.Status != expected {
			resp.Discrepancy = true
			resp.Detail = fmt.Sprintf("local status %s expects remote %s, authority reports %s", doc.Status, expected, reg.Status)
		}
	}
	if resp.Discrepancy {
		m.log.Warn().Str("merchant_id", merchantID).Str("sale_id", saleID).Str("op", "verify").
			Str("irn", doc.IRN).Str("detail", resp.Detail).Msg("e-invoice discrepancy")
	}
	return resp, nil
}

// Cancel anula ante la autoridad un documento generado. El stock y el dinero
// de la venta no se tocan; revertir la venta es una devolución.
func (m *Manager) Cancel(ctx context.Context, merchantID, saleID string, in dto.CancelEInvoiceRequest) (*dto.EInvoiceResponse, error) {
	reason, err := einvoice.ParseCancelReason(in.ReasonCode)
	if err != nil {
		return nil, err
	}
	remarks := strings.TrimSpace(in.Remarks)

	unlock := m.lock(saleID)
	defer unlock()

	doc, err := m.deps.Docs.GetBySale(ctx, merchantID, saleID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if doc.ReconcileRequired {
		sc, err := m.load(ctx, merchantID, saleID)
		if err != nil {
			return nil, err
		}
		if err := m.reconcile(ctx, sc, doc); err != nil {
			return nil, err
		}
	}
	if err := einvoice.CheckCancel(doc, reason, remarks, m.now(), m.cfg.CancelWindow); err != nil {
		return nil, err
	}

	gw, err := m.deps.Gateways.ForMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	res, cerr := gw.Cancel(ctx, saleID, doc.IRN, reason, remarks)

	wctx, cancel := m.writeContext(ctx)
	defer cancel()
	log := m.log.With().Str("merchant_id", merchantID).Str("sale_id", saleID).Str("op", "cancel").Str("irn", doc.IRN).Logger()
	if cerr != nil {
		doc.LastError = cerr.Error()
		doc.LastAuditID = domain.AuditRef(cerr)
		doc.UpdatedAt = m.now()
		if err := m.deps.Docs.Update(wctx, doc); err != nil {
			log.Error().Err(err).Msg("could not record failed cancellation")
		}
		log.Warn().Err(cerr).Msg("e-invoice cancellation failed")
		return nil, cerr
	}

	if err := einvoice.Transition(doc, entity.EInvoiceStatusCancelled, einvoice.ActionCancel); err != nil {
		return nil, err
	}
	at := res.CancelDate
	if at.IsZero() {
		at = m.now()
	}
	doc.CancelledAt = &at
	doc.CancelReasonCode = string(reason)
	doc.CancelRemarks = remarks
	doc.LastError = ""
	doc.LastAuditID = res.AuditID
	if err := m.store(wctx, doc); err != nil {
		return nil, err
	}
	log.Info().Str("reason", reason.String()).Msg("e-invoice cancelled")
	return toEInvoiceResponse(doc), nil
}

// ListAudit devuelve cada intercambio con la autoridad registrado para la venta, del más antiguo al más nuevo.
func (m *Manager) ListAudit(ctx context.Context, merchantID, saleID string) ([]dto.AuditEntryResponse, error) {
	entries, err := m.deps.Audit.ListBySale(ctx, merchantID, saleID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAuditResponse(e))
	}
	return out, nil
}

// reconcile resuelve un documento cuyo último intento no tuvo resultado definitivo,
// por IRN si se conoce, si no por número y fecha de documento.
func (m *Manager) reconcile(ctx context.Context, sc *saleContext, doc *entity.EInvoice) error {
	gw, err := m.deps.Gateways.ForMerchant(ctx, sc.merchant.ID)
	if err != nil {
		return err
	}
	var reg *einvoice.Registration
	if doc.IRN != "" {
		reg, err = gw.Fetch(ctx, doc.SaleID, doc.IRN)
	} else {
		reg, err = gw.FetchByDocument(ctx, doc.SaleID, einvoice.Lookup{
			Type:   einvoice.DocTypeInvoice,
			Number: sc.sale.InvoiceNumber,
			Date:   sc.sale.SaleDate,
		})
	}
	if err != nil {
		return err
	}

	if reg == nil {
		doc.Status = entity.EInvoiceStatusError
		if doc.LastError == "" {
			doc.LastError = "not registered with the authority"
		}
	} else {
		m.applyRegistration(doc, reg)
		if reg.Status == einvoice.RemoteCancelled {
			doc.Status = entity.EInvoiceStatusCancelled
		}
	}
	doc.ReconcileRequired = false
	doc.UpdatedAt = m.now()
	if err := m.store(ctx, doc); err != nil {
		return err
	}
	m.log.Info().Str("merchant_id", doc.MerchantID).Str("sale_id", doc.SaleID).Str("op", "reconcile").
		Str("status", doc.Status).Str("irn", doc.IRN).Msg("e-invoice reconciled")
	return nil
}

func (m *Manager) applyRegistration(doc *entity.EInvoice, reg *einvoice.Registration) {
	doc.Status = entity.EInvoiceStatusGenerated
	doc.IRN = reg.IRN
	doc.AckNumber = reg.AckNumber
	if !reg.AckDate.IsZero() {
		ack := reg.AckDate
		doc.AckDate = &ack
	}
	doc.SignedInvoice = reg.SignedInvoice
	doc.SignedQRCode = reg.SignedQRCode
	doc.ReconcileRequired = false
	doc.LastError = ""
	doc.ResponsePayload, _ = json.Marshal(reg)
	doc.UpdatedAt = m.now()
}

// fail registra un fallo definitivo: estado error, marca limpia.
func (m *Manager) fail(ctx context.Context, doc *entity.EInvoice) {
	doc.Status = entity.EInvoiceStatusError
	doc.UpdatedAt = m.now()
	if err := m.store(ctx, doc); err != nil {
		m.log.Error().Str("merchant_id", doc.MerchantID).Str("sale_id", doc.SaleID).Err(err).Msg("could not record e-invoice error")
	}
}

// store persiste el documento y copia su estado en la venta. La anotación en la
// venta es de mejor esfuerzo: la fila del documento es la fuente de verdad.
func (m *Manager) store(ctx context.Context, doc *entity.EInvoice) error {
	if err := m.deps.Docs.Update(ctx, doc); err != nil {
		return fmt.Errorf("update e-invoice: %w", err)
	}
	m.annotateSale(ctx, doc)
	return nil
}

func (m *Manager) annotateSale(ctx context.Context, doc *entity.EInvoice) {
	if err := m.deps.Sales.UpdateEInvoiceStatus(ctx, doc.MerchantID, doc.SaleID, doc.Status); err != nil {
		m.log.Warn().Str("merchant_id", doc.MerchantID).Str("sale_id", doc.SaleID).Err(err).Msg("could not annotate sale")
	}
}

// writeContext desliga de la cancelación del llamador la escritura local que sigue
// a una llamada a la autoridad, para que un registro aceptado quede guardado.
func (m *Manager) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.cfg.WriteTimeout)
}

func isDuplicate(err error) bool {
	var rej *domain.AuthorityRejectedError
	return errors.As(err, &rej) && rej.Code == einvoice.CodeDuplicateIRN
}
