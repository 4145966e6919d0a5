package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-pos-api/internal/application/compliance"
	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
)

// EInvoiceHandler atiende la factura electrónica de una venta y la configuración IRP del comercio.
type EInvoiceHandler struct {
	mgr      *compliance.Manager
	settings *compliance.SettingsUseCase
	errs     errorMapper
}

// NewEInvoiceHandler construye el handler.
func NewEInvoiceHandler(mgr *compliance.Manager, settings *compliance.SettingsUseCase, log *logger.Logger) *EInvoiceHandler {
	return &EInvoiceHandler{mgr: mgr, settings: settings, errs: errorMapper{log: log}}
}

// Eligibility godoc
// @Summary      Si una venta requiere factura electrónica
// @Tags         einvoice
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la venta"
// @Success      200  {object}  dto.EligibilityResponse
// @Router       /api/sales/{id}/einvoice/eligibility [get]
func (h *EInvoiceHandler) Eligibility(c *fiber.Ctx) error {
	out, err := h.mgr.CheckEligibility(c.UserContext(), GetMerchantID(c), c.Params("id"))
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(out)
}

// Generate godoc
// @Summary      Registrar la venta ante el IRP
// @Tags         einvoice
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la venta"
// @Success      200  {object}  dto.EInvoiceResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/sales/{id}/einvoice [post]
func (h *EInvoiceHandler) Generate(c *fiber.Ctx) error {
	out, err := h.mgr.Generate(c.UserContext(), GetMerchantID(c), c.Params("id"))
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(out)
}

// Get godoc
// @Summary      Factura electrónica vigente de una venta
// @Tags         einvoice
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la venta"
// @Success      200  {object}  dto.EInvoiceResponse
// @Router       /api/sales/{id}/einvoice [get]
func (h *EInvoiceHandler) Get(c *fiber.Ctx) error {
	out, err := h.mgr.Get(c.UserContext(), GetMerchantID(c), c.Params("id"))
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(out)
}

// Verify godoc
// @Summary      Contrastar el registro guardado con el IRP
// @Tags         einvoice
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la venta"
// @Success      200  {object}  dto.VerifyResponse
// @Router       /api/sales/{id}/einvoice/verify [post]
func (h *EInvoiceHandler) Verify(c *fiber.Ctx) error {
	out, err := h.mgr.Verify(c.UserContext(), GetMerchantID(c), c.Params("id"))
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(out)
}

// Cancel godoc
// @Summary      Anular una factura electrónica generada
// @Tags         einvoice
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                     true  "ID de la venta"
// @Param        body  body  dto.CancelEInvoiceRequest  true  "motivo"
// @Success      200   {object}  dto.EInvoiceResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/sales/{id}/einvoice/cancel [post]
func (h *EInvoiceHandler) Cancel(c *fiber.Ctx) error {
	var in dto.CancelEInvoiceRequest
	if !bind(c, &in) {
		return nil
	}
	out, err := h.mgr.Cancel(c.UserContext(), GetMerchantID(c), c.Params("id"), in)
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(out)
}

// Audit godoc
// @Summary      Intercambios con la autoridad de una venta
// @Tags         einvoice
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la venta"
// @Success      200  {array}  dto.AuditEntryResponse
// @Router       /api/sales/{id}/einvoice/audit [get]
func (h *EInvoiceHandler) Audit(c *fiber.Ctx) error {
	out, err := h.mgr.ListAudit(c.UserContext(), GetMerchantID(c), c.Params("id"))
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(out)
}

// GetConfig devuelve la configuración IRP del comercio sin secretos.
func (h *EInvoiceHandler) GetConfig(c *fiber.Ctx) error {
	out, err := h.settings.Get(c.UserContext(), GetMerchantID(c))
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(out)
}

// SaveConfig guarda la configuración IRP del comercio; secretos vacíos conservan los guardados.
func (h *EInvoiceHandler) SaveConfig(c *fiber.Ctx) error {
	var in dto.EInvoiceConfigRequest
	if !bind(c, &in) {
		return nil
	}
	out, err := h.settings.Save(c.UserContext(), GetMerchantID(c), in)
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(out)
}
