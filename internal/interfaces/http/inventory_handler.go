package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/application/inventory"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
)

const (
	defaultExpiryDays = 30
	maxExpiryDays     = 365
)

// InventoryHandler atiende recepciones de lotes, ajustes y el reporte de vencimientos.
type InventoryHandler struct {
	batches *inventory.BatchUseCase
	expiry  *inventory.ExpiryReportUseCase
	errs    errorMapper
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(batches *inventory.BatchUseCase, expiry *inventory.ExpiryReportUseCase, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{batches: batches, expiry: expiry, errs: errorMapper{log: log}}
}

// ReceiveBatch godoc
// @Summary      Recibir un lote de un producto
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true  "ID del producto"
// @Param        body  body  dto.ReceiveBatchRequest  true  "lote"
// @Success      201   {object}  dto.BatchResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/products/{id}/batches [post]
func (h *InventoryHandler) ReceiveBatch(c *fiber.Ctx) error {
	var in dto.ReceiveBatchRequest
	if !bind(c, &in) {
		return nil
	}
	out, err := h.batches.ReceiveBatch(c.UserContext(), GetMerchantID(c), GetUserID(c), c.Params("id"), in)
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// ListBatches godoc
// @Summary      Ledger de lotes de un producto
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.BatchLedgerResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/batches [get]
func (h *InventoryHandler) ListBatches(c *fiber.Ctx) error {
	out, err := h.batches.ListBatches(c.UserContext(), GetMerchantID(c), c.Params("id"))
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(out)
}

// AdjustBatch godoc
// @Summary      Ajustar la cantidad disponible de un lote
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true  "ID del lote"
// @Param        body  body  dto.AdjustBatchRequest  true  "cantidad con signo y motivo"
// @Success      200   {object}  dto.BatchResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/batches/{id}/adjustments [post]
func (h *InventoryHandler) AdjustBatch(c *fiber.Ctx) error {
	var in dto.AdjustBatchRequest
	if !bind(c, &in) {
		return nil
	}
	out, err := h.batches.AdjustBatch(c.UserContext(), GetMerchantID(c), GetUserID(c), c.Params("id"), in)
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(out)
}

// Expiring godoc
// @Summary      Lotes que vencen dentro de una ventana
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        days  query  int  false  "ventana en días"  default(30)
// @Success      200   {array}   dto.ExpiringBatchResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/batches/expiring [get]
func (h *InventoryHandler) Expiring(c *fiber.Ctx) error {
	days := c.QueryInt("days", defaultExpiryDays)
	if days < 0 || days > maxExpiryDays {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "days must be between 0 and 365"})
	}
	out, err := h.expiry.ExpiringBatches(c.UserContext(), GetMerchantID(c), days)
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(out)
}
