package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
)

// Pinger indica si un store de respaldo responde.
type Pinger func(ctx context.Context) error

// HealthHandler atiende GET /health.
type HealthHandler struct {
	app, env string
	db       Pinger
}

// NewHealthHandler construye el handler. db puede ser nil con el store en memoria.
func NewHealthHandler(app, env string, db Pinger) *HealthHandler {
	return &HealthHandler{app: app, env: env, db: db}
}

// Check godoc
// @Summary      Vida del servicio y acceso a la base de datos
// @Tags         health
// @Produce      json
// @Success      200  {object}  dto.HealthResponse
// @Failure      503  {object}  dto.HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	out := dto.HealthResponse{Status: "ok", App: h.app, Env: h.env, Database: "memory"}
	if h.db == nil {
		return c.JSON(out)
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	if err := h.db(ctx); err != nil {
		out.Status = "degraded"
		out.Database = "unreachable"
		return c.Status(fiber.StatusServiceUnavailable).JSON(out)
	}
	out.Database = "ok"
	return c.JSON(out)
}
