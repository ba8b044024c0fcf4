package programnodes

import (
	"strings"

	"anggaran-backend/internal/application/hierarchy"
	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/infrastructure/database"
	"anggaran-backend/internal/pkg/request"
	"anggaran-backend/internal/pkg/response"
	"anggaran-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *hierarchy.Service
}

// List GET /api/v1/program-nodes?level=&parentId=&unitId=&search=&page=&limit=
func (h *Handlers) List(c *fiber.Ctx) error {
	parentID, err := request.QueryID(c, "parentId")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	unitID, err := request.QueryID(c, "unitId")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	page, limit, err := request.Page(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	nodes, total, err := h.Service.List(c.UserContext(), hierarchy.ListFilter{
		Level:    domain.ProgramLevel(c.Query("level")),
		ParentID: parentID,
		UnitID:   unitID,
		Search:   c.Query("search"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Paginated(c, "Program nodes fetched successfully", nodes, database.NewPagination(page, limit, total))
}

// Tree GET /api/v1/program-nodes/tree?rootId=
func (h *Handlers) Tree(c *fiber.Ctx) error {
	rootID, err := request.QueryID(c, "rootId")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	tree, err := h.Service.Tree(c.UserContext(), rootID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Program hierarchy fetched successfully", tree)
}

// Get GET /api/v1/program-nodes/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	node, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Program node fetched successfully", node)
}

type createBody struct {
	Level                string  `json:"level"`
	ParentID             *string `json:"parentId"`
	Code                 string  `json:"code"`
	Name                 string  `json:"name"`
	PerformanceGoal      string  `json:"performanceGoal"`
	Indicator            string  `json:"indicator"`
	Unit                 string  `json:"unit"`
	OrganizationalUnitID *string `json:"organizationalUnitId"`
}

// Create POST /api/v1/program-nodes
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body createBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if f := request.Missing(map[string]bool{
		"level": body.Level != "",
		"code":  strings.TrimSpace(body.Code) != "",
		"name":  strings.TrimSpace(body.Name) != "",
	}, "level", "code", "name"); f != "" {
		return response.BadRequest(c, "Missing required field: "+f)
	}
	if !validation.IsValidCodeSegment(body.Code) {
		return response.BadRequest(c, "Invalid code: use a single segment without '.'")
	}
	parentID, err := request.ParseOptionalUUIDField("parentId", body.ParentID)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	unitID, err := request.ParseOptionalUUIDField("organizationalUnitId", body.OrganizationalUnitID)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	node, err := h.Service.Create(c.UserContext(), hierarchy.CreateInput{
		Level:                domain.ProgramLevel(body.Level),
		ParentID:             parentID,
		Code:                 body.Code,
		Name:                 body.Name,
		PerformanceGoal:      body.PerformanceGoal,
		Indicator:            body.Indicator,
		Unit:                 body.Unit,
		OrganizationalUnitID: unitID,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Program node created successfully", node)
}

// Update PATCH /api/v1/program-nodes/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	var body struct {
		Name                 *string `json:"name"`
		PerformanceGoal      *string `json:"performanceGoal"`
		Indicator            *string `json:"indicator"`
		Unit                 *string `json:"unit"`
		OrganizationalUnitID *string `json:"organizationalUnitId"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	unitID, err := request.ParseOptionalUUIDField("organizationalUnitId", body.OrganizationalUnitID)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	node, err := h.Service.Update(c.UserContext(), id, hierarchy.UpdateInput{
		Name:                 body.Name,
		PerformanceGoal:      body.PerformanceGoal,
		Indicator:            body.Indicator,
		Unit:                 body.Unit,
		OrganizationalUnitID: unitID,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Program node updated successfully", node)
}

// Delete DELETE /api/v1/program-nodes/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	if err := h.Service.Delete(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Program node deleted successfully", nil)
}
