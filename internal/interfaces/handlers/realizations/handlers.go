package realizations

import (
	"strings"

	realsvc "anggaran-backend/internal/application/realizations"
	"anggaran-backend/internal/infrastructure/database"
	"anggaran-backend/internal/middleware"
	"anggaran-backend/internal/pkg/request"
	"anggaran-backend/internal/pkg/response"
	"anggaran-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *realsvc.Service
}

// List GET /api/v1/realizations?accountId=&subActivityId=&unitId=&month=&year=&page=&limit=
func (h *Handlers) List(c *fiber.Ctx) error {
	var f realsvc.ListFilter
	var err error
	if f.AccountID, err = request.QueryID(c, "accountId"); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if f.SubActivityID, err = request.QueryID(c, "subActivityId"); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if f.UnitID, err = request.QueryID(c, "unitId"); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if f.Month, err = request.QueryInt(c, "month"); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if f.Year, err = request.QueryInt(c, "year"); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if f.Page, f.Limit, err = request.Page(c); err != nil {
		return response.BadRequest(c, err.Error())
	}
	items, total, err := h.Service.List(c.UserContext(), f)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Paginated(c, "Realizations fetched successfully", items, database.NewPagination(f.Page, f.Limit, total))
}

// Summary GET /api/v1/realizations/summary?month=&year=
func (h *Handlers) Summary(c *fiber.Ctx) error {
	month, err := request.QueryInt(c, "month")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	year, err := request.QueryInt(c, "year")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	if month == 0 || year == 0 {
		return response.BadRequest(c, "month and year are required")
	}
	summary, err := h.Service.SummaryBySubActivity(c.UserContext(), month, year)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Realization summary fetched successfully", summary)
}

// Get GET /api/v1/realizations/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	r, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Realization fetched successfully", r)
}

type createBody struct {
	AccountID         string           `json:"accountId"`
	SubActivityID     string           `json:"subActivityId"`
	Month             *int             `json:"month"`
	Year              *int             `json:"year"`
	BudgetAmount      *decimal.Decimal `json:"budgetAmount"`
	RealizationAmount *decimal.Decimal `json:"realizationAmount"`
	Description       string           `json:"description"`
}

// Create POST /api/v1/realizations. budgetAmount may be omitted; it is then copied from the allocation.
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body createBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if f := request.Missing(map[string]bool{
		"accountId":         strings.TrimSpace(body.AccountID) != "",
		"subActivityId":     strings.TrimSpace(body.SubActivityID) != "",
		"realizationAmount": body.RealizationAmount != nil,
		"month":             body.Month != nil,
		"year":              body.Year != nil,
	}, "accountId", "subActivityId", "realizationAmount", "month", "year"); f != "" {
		return response.BadRequest(c, "Missing required field: "+f)
	}
	if !validation.IsValidMonth(*body.Month) {
		return response.BadRequest(c, "Invalid month: must be between 1 and 12")
	}
	accountID, err := request.ParseUUIDField("accountId", body.AccountID)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	subID, err := request.ParseUUIDField("subActivityId", body.SubActivityID)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	r, err := h.Service.Create(c.UserContext(), realsvc.CreateInput{
		AccountID:         accountID,
		SubActivityID:     subID,
		Month:             *body.Month,
		Year:              *body.Year,
		BudgetAmount:      body.BudgetAmount,
		RealizationAmount: *body.RealizationAmount,
		Description:       body.Description,
	}, middleware.ActorFromCtx(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Realization created successfully", r)
}

// Update PUT /api/v1/realizations/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	var body struct {
		RealizationAmount *decimal.Decimal `json:"realizationAmount"`
		Description       *string          `json:"description"`
		Month             *int             `json:"month"`
		Year              *int             `json:"year"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	r, err := h.Service.Update(c.UserContext(), id, realsvc.Patch{
		RealizationAmount: body.RealizationAmount,
		Description:       body.Description,
		Month:             body.Month,
		Year:              body.Year,
	}, middleware.ActorFromCtx(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Realization updated successfully", r)
}

// Delete DELETE /api/v1/realizations/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	if err := h.Service.Delete(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Realization deleted successfully", nil)
}
