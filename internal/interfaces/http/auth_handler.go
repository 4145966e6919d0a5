package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-pos-api/internal/application/auth"
	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
)

// AuthHandler atiende el alta de comercios y el login del dueño.
type AuthHandler struct {
	uc   *auth.AuthUseCase
	errs errorMapper
}

// NewAuthHandler construye el handler de autenticación.
func NewAuthHandler(uc *auth.AuthUseCase, log *logger.Logger) *AuthHandler {
	return &AuthHandler{uc: uc, errs: errorMapper{log: log}}
}

// Register godoc
// @Summary      Registrar un comercio y el login de su dueño
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterMerchantRequest  true  "tienda y dueño"
// @Success      201   {object}  dto.LoginResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in dto.RegisterMerchantRequest
	if !bind(c, &in) {
		return nil
	}
	out, err := h.uc.Register(c.UserContext(), in)
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Login godoc
// @Summary      Iniciar sesión del dueño
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LoginRequest  true  "email, password"
// @Success      200   {object}  dto.LoginResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in dto.LoginRequest
	if !bind(c, &in) {
		return nil
	}
	out, err := h.uc.Login(c.UserContext(), in)
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(out)
}

// Me devuelve el comercio detrás del token.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	out, err := h.uc.Me(c.UserContext(), GetMerchantID(c))
	if err != nil {
		return h.errs.write(c, err)
	}
	return c.JSON(out)
}
