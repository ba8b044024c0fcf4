package response

import (
	"errors"

	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/infrastructure/database"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// SuccessBody is the standardized success JSON shape.
type SuccessBody struct {
	Success    bool                 `json:"success"`
	Message    string               `json:"message"`
	Data       interface{}          `json:"data"`
	Pagination *database.Pagination `json:"pagination,omitempty"`
}

// ErrorBody is the standardized error JSON shape.
type ErrorBody struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail is the nested error object.
type ErrorDetail struct {
	Kind       string `json:"kind"`
	StatusCode int    `json:"statusCode"`
}

// Success sends a 200 OK response with the standard success format.
func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(SuccessBody{Success: true, Message: message, Data: data})
}

// SuccessCreated sends a 201 Created response with the standard success format.
func SuccessCreated(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(SuccessBody{Success: true, Message: message, Data: data})
}

// Paginated sends a 200 OK list response with the paging block.
func Paginated(c *fiber.Ctx, message string, data interface{}, p database.Pagination) error {
	return c.Status(fiber.StatusOK).JSON(SuccessBody{Success: true, Message: message, Data: data, Pagination: &p})
}

// Error sends a response with the standard error format.
func Error(c *fiber.Ctx, message string, statusCode int, kind string) error {
	return c.Status(statusCode).JSON(ErrorBody{
		Message: message,
		Error:   ErrorDetail{Kind: kind, StatusCode: statusCode},
	})
}

// BadRequest sends 400 for malformed input detected before reaching a service.
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusBadRequest, "ValidationError")
}

// Unauthorized sends 401 with the same shape as other errors.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, "Unauthorized")
}

// StatusFor maps a service error kind to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvariantViolation):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// FromError renders a service error. Storage and unclassified errors are logged and hidden
// behind a generic message.
func FromError(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Str("method", c.Method()).Msg("request failed")
		return Error(c, "Internal Server Error", status, domain.KindName(err))
	}
	return Error(c, domain.Message(err), status, domain.KindName(err))
}
