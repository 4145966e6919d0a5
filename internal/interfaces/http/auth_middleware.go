package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/pkg/jwt"
)

// Claves de Locals para el usuario y el comercio autenticados.
const (
	LocalUserID     = "user_id"
	LocalMerchantID = "merchant_id"
)

// AuthMiddleware valida el token Bearer y guarda UserID y MerchantID en c.Locals.
func AuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header required"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "format: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "empty token"})
		}
		userID, merchantID, err := jwt.Parse(jwtSecret, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "invalid or expired token"})
		}
		c.Locals(LocalUserID, userID)
		c.Locals(LocalMerchantID, merchantID)
		return c.Next()
	}
}

// GetUserID devuelve el usuario autenticado, vacío fuera de AuthMiddleware.
func GetUserID(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalUserID).(string)
	return s
}

// GetMerchantID devuelve el comercio autenticado, vacío fuera de AuthMiddleware.
func GetMerchantID(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalMerchantID).(string)
	return s
}
