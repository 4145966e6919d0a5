package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
)

var validate = validator.New()

// errorMapper convierte errores de casos de uso en respuestas HTTP.
type errorMapper struct {
	log *logger.Logger
}

// bind parsea el cuerpo JSON en in y ejecuta sus tags validate.
// Si falla, la respuesta 400 ya está escrita; el llamador devuelve nil.
func bind(c *fiber.Ctx, in any) bool {
	if err := c.BodyParser(in); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "invalid request body"})
		return false
	}
	if err := validate.Struct(in); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code:    "VALIDATION",
			Message: "request failed validation",
			Details: fieldErrors(err),
		})
		return false
	}
	return true
}

func fieldErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			out = append(out, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			out = append(out, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
		}
	}
	return out
}

// write traduce err a su status y ErrorResponse.
func (m errorMapper) write(c *fiber.Ctx, err error) error {
	status, body := m.classify(err)
	if status == fiber.StatusInternalServerError {
		m.log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).
			Str("merchant_id", GetMerchantID(c)).Msg("request failed")
	}
	return c.Status(status).JSON(body)
}

func (m errorMapper) classify(err error) (int, dto.ErrorResponse) {
	body := dto.ErrorResponse{Message: err.Error(), AuditRef: domain.AuditRef(err)}

	var rejected *domain.AuthorityRejectedError
	var short *domain.InsufficientStockError
	switch {
	case errors.As(err, &rejected):
		body.Code = "AUTHORITY_REJECTED"
		body.Message = rejected.Message
		if rejected.Code != "" {
			body.Details = []string{rejected.Code + ": " + rejected.Message}
		}
		return fiber.StatusUnprocessableEntity, body
	case errors.Is(err, domain.ErrAuthorityAuth):
		body.Code = "AUTHORITY_AUTH"
		return fiber.StatusBadGateway, body
	case errors.Is(err, domain.ErrAuthorityUnavailable):
		body.Code = "AUTHORITY_UNAVAILABLE"
		return fiber.StatusServiceUnavailable, body
	case errors.As(err, &short):
		body.Code = "INSUFFICIENT_STOCK"
		body.Details = []string{fmt.Sprintf("product %s: shortfall %s", short.ProductID, short.Shortfall().String())}
		return fiber.StatusConflict, body
	case errors.Is(err, domain.ErrStockConflict):
		body.Code = "STOCK_CONFLICT"
		return fiber.StatusConflict, body
	case errors.Is(err, domain.ErrIllegalTransition):
		body.Code = "ILLEGAL_TRANSITION"
		return fiber.StatusConflict, body
	case errors.Is(err, domain.ErrInvalidTaxJurisdiction):
		body.Code = "INVALID_TAX_JURISDICTION"
		return fiber.StatusBadRequest, body
	case errors.Is(err, domain.ErrInvalidInput):
		body.Code = "VALIDATION"
		body.Details = joined(err)
		return fiber.StatusBadRequest, body
	case errors.Is(err, domain.ErrNotFound):
		body.Code = "NOT_FOUND"
		return fiber.StatusNotFound, body
	case errors.Is(err, domain.ErrUnauthorized):
		body.Code = "UNAUTHORIZED"
		return fiber.StatusUnauthorized, body
	case errors.Is(err, domain.ErrForbidden):
		body.Code = "FORBIDDEN"
		return fiber.StatusForbidden, body
	case errors.Is(err, domain.ErrDuplicate):
		body.Code = "DUPLICATE"
		return fiber.StatusConflict, body
	case errors.Is(err, domain.ErrConflict):
		body.Code = "CONFLICT"
		return fiber.StatusConflict, body
	}
	return fiber.StatusInternalServerError, dto.ErrorResponse{Code: "INTERNAL", Message: "internal error"}
}

// joined lista los problemas individuales de un errors.Join, omitiendo los sentinelas.
func joined(err error) []string {
	var multi interface{ Unwrap() []error }
	if !errors.As(err, &multi) {
		return nil
	}
	var out []string
	for _, e := range multi.Unwrap() {
		if e == domain.ErrInvalidInput || strings.HasPrefix(e.Error(), "e-invoice document failed") {
			continue
		}
		out = append(out, e.Error())
	}
	return out
}
