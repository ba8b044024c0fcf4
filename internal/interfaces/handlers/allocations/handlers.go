package allocations

import (
	"fmt"
	"strings"
	"time"

	allocsvc "anggaran-backend/internal/application/allocations"
	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/infrastructure/database"
	"anggaran-backend/internal/middleware"
	"anggaran-backend/internal/pkg/request"
	"anggaran-backend/internal/pkg/response"
	"anggaran-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *allocsvc.Service
}

type lineBody struct {
	AccountID   string           `json:"accountId"`
	Amount      *decimal.Decimal `json:"amount"`
	AllocatedBy domain.ActorRef  `json:"allocatedBy"`
	AllocatedAt *time.Time       `json:"allocatedAt"`
}

type allocationBody struct {
	SubActivityID   string      `json:"subActivityId"`
	BudgetYear      string      `json:"budgetYear"`
	FundingSourceID *string     `json:"fundingSourceId"`
	Allocations     *[]lineBody `json:"allocations"`
	Description     *string     `json:"description"`
}

func parseLines(in []lineBody) ([]allocsvc.LineInput, error) {
	lines := make([]allocsvc.LineInput, 0, len(in))
	for i, l := range in {
		if strings.TrimSpace(l.AccountID) == "" {
			return nil, fmt.Errorf("Missing required field: allocations[%d].accountId", i)
		}
		if l.Amount == nil {
			return nil, fmt.Errorf("Missing required field: allocations[%d].amount", i)
		}
		accountID, err := request.ParseUUIDField(fmt.Sprintf("allocations[%d].accountId", i), l.AccountID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, allocsvc.LineInput{
			AccountID:   accountID,
			Amount:      *l.Amount,
			AllocatedBy: l.AllocatedBy,
			AllocatedAt: l.AllocatedAt,
		})
	}
	return lines, nil
}

// List GET /api/v1/allocations?budgetYear=&subActivityId=&unitId=&search=&page=&limit=
func (h *Handlers) List(c *fiber.Ctx) error {
	subID, err := request.QueryID(c, "subActivityId")
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
	items, total, err := h.Service.List(c.UserContext(), allocsvc.ListFilter{
		BudgetYear:    c.Query("budgetYear"),
		SubActivityID: subID,
		UnitID:        unitID,
		Search:        c.Query("search"),
		Page:          page,
		Limit:         limit,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Paginated(c, "Allocations fetched successfully", items, database.NewPagination(page, limit, total))
}

// Get GET /api/v1/allocations/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	alloc, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Allocation fetched successfully", alloc)
}

// Create POST /api/v1/allocations
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body allocationBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if f := request.Missing(map[string]bool{
		"subActivityId": strings.TrimSpace(body.SubActivityID) != "",
		"budgetYear":    strings.TrimSpace(body.BudgetYear) != "",
		"allocations":   body.Allocations != nil,
	}, "subActivityId", "budgetYear", "allocations"); f != "" {
		return response.BadRequest(c, "Missing required field: "+f)
	}
	if !validation.IsValidBudgetYear(body.BudgetYear) {
		return response.BadRequest(c, "Invalid budgetYear: expected a year such as 2026 or 2026-Murni")
	}
	subID, err := request.ParseUUIDField("subActivityId", body.SubActivityID)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	fundingID, err := request.ParseOptionalUUIDField("fundingSourceId", body.FundingSourceID)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	lines, err := parseLines(*body.Allocations)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	in := allocsvc.CreateInput{
		SubActivityID:   subID,
		BudgetYear:      body.BudgetYear,
		FundingSourceID: fundingID,
		Lines:           lines,
	}
	if body.Description != nil {
		in.Description = *body.Description
	}
	alloc, err := h.Service.Create(c.UserContext(), in, middleware.ActorFromCtx(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Allocation created successfully", alloc)
}

// PUT/PATCH /api/v1/allocations/:id. subActivityId and budgetYear identify the record and cannot change.
func (h *Handlers) Update(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	var body allocationBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	var patch allocsvc.Patch
	if patch.FundingSourceID, err = request.ParseOptionalUUIDField("fundingSourceId", body.FundingSourceID); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if body.Allocations != nil {
		lines, err := parseLines(*body.Allocations)
		if err != nil {
			return response.BadRequest(c, err.Error())
		}
		patch.Lines = &lines
	}
	patch.Description = body.Description
	alloc, err := h.Service.Update(c.UserContext(), id, patch, middleware.ActorFromCtx(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Allocation updated successfully", alloc)
}

// Delete DELETE /api/v1/allocations/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	if err := h.Service.Delete(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Allocation deleted successfully", nil)
}
