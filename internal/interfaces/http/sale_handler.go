package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/application/sales"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
)

// IdempotencyHeader lleva el request id del cliente de un registro o devolución.
const IdempotencyHeader = "Idempotency-Key"

// SaleHandler atiende el ciclo de vida de la venta.
type SaleHandler struct {
	uc   *sales.SaleUseCase
	errs errorMapper
}

// NewSaleHandler construye el handler.
func NewSaleHandler(uc *sales.SaleUseCase, log *logger.Logger) *SaleHandler {
	return &SaleHandler{uc: uc, errs: errorMapper{log: log}}
}

// Propose godoc
// @Summary      Valorizar un carrito sin registrarlo
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ProposeSaleRequest  true  "carrito"
// @Success      200   {object}  dto.SaleResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/sales/proposals [post]
func (h *SaleHandler) Propose(c *fiber.Ctx) error {
	var in dto.ProposeSaleRequest
	if !bind(c, &in) {
		return nil
	}
	out, err := h.uc.Propose(c.UserContext(), GetMerchantID(c), in)
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(out)
}

// Commit godoc
// @Summary      Registrar una venta
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string                 false  "request id del cliente"
// @Param        body             body    dto.CommitSaleRequest  true   "carrito y pago"
// @Success      201   {object}  dto.SaleResponse
// @Success      200   {object}  dto.SaleResponse  "repetición de un registro anterior"
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/sales [post]
func (h *SaleHandler) Commit(c *fiber.Ctx) error {
	var in dto.CommitSaleRequest
	if !bind(c, &in) {
		return nil
	}
	if in.RequestID == "" {
		in.RequestID = c.Get(IdempotencyHeader)
	}
	out, err := h.uc.Commit(c.UserContext(), GetMerchantID(c), GetUserID(c), in)
	if err != nil {
		return h.errs.write(c, err)
	}
	if out.Replayed {
		return c.JSON(out)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID godoc
// @Summary      Obtener una venta
// @Tags         sales
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la venta"
// @Success      200  {object}  dto.SaleResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/sales/{id} [get]
func (h *SaleHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.UserContext(), GetMerchantID(c), c.Params("id"))
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(out)
}

// CreateReturn godoc
// @Summary      Devolver líneas de una venta
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true  "ID de la venta original"
// @Param        body  body  dto.CreateReturnRequest  true  "líneas a devolver"
// @Success      201   {object}  dto.SaleResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/sales/{id}/returns [post]
func (h *SaleHandler) CreateReturn(c *fiber.Ctx) error {
	var in dto.CreateReturnRequest
	if !bind(c, &in) {
		return nil
	}
	if in.RequestID == "" {
		in.RequestID = c.Get(IdempotencyHeader)
	}
	out, err := h.uc.CreateReturn(c.UserContext(), GetMerchantID(c), GetUserID(c), c.Params("id"), in)
	if err != nil {
		return h.errs.write(c, err)
	}
	if out.Replayed {
		return c.JSON(out)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// RecordPayment godoc
// @Summary      Registrar un pago de una venta
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                    true  "ID de la venta"
// @Param        body  body  dto.RecordPaymentRequest  true  "monto"
// @Success      200   {object}  dto.SaleResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/sales/{id}/payments [post]
func (h *SaleHandler) RecordPayment(c *fiber.Ctx) error {
	var in dto.RecordPaymentRequest
	if !bind(c, &in) {
		return nil
	}
	out, err := h.uc.RecordPayment(c.UserContext(), GetMerchantID(c), c.Params("id"), in)
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(out)
}
