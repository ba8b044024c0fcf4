package accounts

import (
	"strings"

	acctsvc "anggaran-backend/internal/application/accounts"
	"anggaran-backend/internal/infrastructure/database"
	"anggaran-backend/internal/pkg/request"
	"anggaran-backend/internal/pkg/response"
	"anggaran-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *acctsvc.Service
}

// List GET /api/v1/accounts?parentId=&root=&level=&leaf=&search=&page=&limit=
func (h *Handlers) List(c *fiber.Ctx) error {
	parentID, err := request.QueryID(c, "parentId")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	level, err := request.QueryInt(c, "level")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	leaf, err := request.QueryBool(c, "leaf")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	root, err := request.QueryBool(c, "root")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	page, limit, err := request.Page(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	items, total, err := h.Service.List(c.UserContext(), acctsvc.ListFilter{
		ParentID: parentID,
		RootOnly: root != nil && *root,
		Level:    level,
		LeafOnly: leaf != nil && *leaf,
		Search:   c.Query("search"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Paginated(c, "Accounts fetched successfully", items, database.NewPagination(page, limit, total))
}

// Get GET /api/v1/accounts/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	account, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Account fetched successfully", account)
}

// GetByCode GET /api/v1/accounts/by-code/:fullCode
func (h *Handlers) GetByCode(c *fiber.Ctx) error {
	fullCode := strings.TrimSpace(c.Params("fullCode"))
	if fullCode == "" {
		return response.BadRequest(c, "Missing required field: fullCode")
	}
	account, err := h.Service.GetByFullCode(c.UserContext(), fullCode)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Account fetched successfully", account)
}

// Children GET /api/v1/accounts/:id/children
func (h *Handlers) Children(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	children, err := h.Service.Children(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Child accounts fetched successfully", children)
}

type createBody struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ParentID    *string `json:"parentId"`
}

// Create POST /api/v1/accounts
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body createBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if f := request.Missing(map[string]bool{
		"code": strings.TrimSpace(body.Code) != "",
		"name": strings.TrimSpace(body.Name) != "",
	}, "code", "name"); f != "" {
		return response.BadRequest(c, "Missing required field: "+f)
	}
	if !validation.IsValidCodeSegment(body.Code) {
		return response.BadRequest(c, "Invalid code: use a single segment without '.'")
	}
	parentID, err := request.ParseOptionalUUIDField("parentId", body.ParentID)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	account, err := h.Service.Create(c.UserContext(), acctsvc.CreateInput{
		Code:        body.Code,
		Name:        body.Name,
		Description: body.Description,
		ParentID:    parentID,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Account created successfully", account)
}

// Update PATCH /api/v1/accounts/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	var body struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	account, err := h.Service.Update(c.UserContext(), id, acctsvc.UpdateInput{Name: body.Name, Description: body.Description})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Account updated successfully", account)
}

// Delete DELETE /api/v1/accounts/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	if err := h.Service.Delete(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Account deleted successfully", nil)
}

// RecomputeLeaves POST /api/v1/accounts/recompute-leaves
func (h *Handlers) RecomputeLeaves(c *fiber.Ctx) error {
	changed, err := h.Service.RecomputeLeaves(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Leaf flags recomputed", fiber.Map{"updated": changed})
}
