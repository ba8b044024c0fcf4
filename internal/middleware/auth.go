package middleware

import (
	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const userLocal = "user"

// RequireActor ensures a session user is present. Returns 401 with the standard error format if not.
func RequireActor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ActorFromCtx(c).IsZero() {
			return response.Unauthorized(c, "Actor identity is required")
		}
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) map[string]interface{} {
	m, _ := c.Locals(userLocal).(map[string]interface{})
	return m
}

// ActorFromCtx resolves the acting identity from the session user: the user id when present,
// otherwise the full name as a label.
func ActorFromCtx(c *fiber.Ctx) domain.ActorRef {
	user := GetUser(c)
	if user == nil {
		return domain.ActorRef{}
	}
	if id, _ := user["user_id"].(string); id != "" {
		return domain.ParseActor(id)
	}
	name, _ := user["fullname"].(string)
	return domain.ActorFromLabel(name)
}
