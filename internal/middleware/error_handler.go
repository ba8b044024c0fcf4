package middleware

import (
	"errors"
	"net/http"
	"strings"

	"anggaran-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the global error handler. Fiber errors keep their status; anything else goes
// through the domain error mapping.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		kind := strings.ReplaceAll(http.StatusText(fe.Code), " ", "")
		if kind == "" {
			kind = "Error"
		}
		return response.Error(c, fe.Message, fe.Code, kind)
	}
	return response.FromError(c, err)
}
