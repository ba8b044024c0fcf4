package units

import (
	unitsvc "anggaran-backend/internal/application/units"
	"anggaran-backend/internal/infrastructure/database"
	"anggaran-backend/internal/pkg/request"
	"anggaran-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *unitsvc.Service
}

// List GET /api/v1/organizational-units?search=&page=&limit=
func (h *Handlers) List(c *fiber.Ctx) error {
	page, limit, err := request.Page(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	items, total, err := h.Service.List(c.UserContext(), c.Query("search"), page, limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Paginated(c, "Organizational units fetched successfully", items, database.NewPagination(page, limit, total))
}

// Get GET /api/v1/organizational-units/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	unit, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Organizational unit fetched successfully", unit)
}
