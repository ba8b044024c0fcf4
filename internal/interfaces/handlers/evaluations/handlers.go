package evaluations

import (
	"strconv"
	"strings"
	"time"

	evalsvc "anggaran-backend/internal/application/evaluations"
	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/infrastructure/database"
	"anggaran-backend/internal/middleware"
	"anggaran-backend/internal/pkg/request"
	"anggaran-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *evalsvc.Service
}

// List GET /api/v1/evaluations?subActivityId=&unitId=&status=&approved=&month=&year=&page=&limit=
func (h *Handlers) List(c *fiber.Ctx) error {
	f := evalsvc.ListFilter{Status: domain.EvaluationStatus(c.Query("status"))}
	var err error
	if f.SubActivityID, err = request.QueryID(c, "subActivityId"); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if f.UnitID, err = request.QueryID(c, "unitId"); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if f.Approved, err = request.QueryBool(c, "approved"); err != nil {
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
	return response.Paginated(c, "Evaluations fetched successfully", items, database.NewPagination(f.Page, f.Limit, total))
}

// LowAbsorption GET /api/v1/evaluations/low-absorption?threshold=
func (h *Handlers) LowAbsorption(c *fiber.Ctx) error {
	var threshold *decimal.Decimal
	if raw := strings.TrimSpace(c.Query("threshold")); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			return response.BadRequest(c, "Invalid threshold: must be a non-negative number")
		}
		threshold = &d
	}
	items, err := h.Service.LowAbsorption(c.UserContext(), threshold)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Low absorption evaluations fetched successfully", items)
}

// Summary GET /api/v1/evaluations/summary?month=&year=
func (h *Handlers) Summary(c *fiber.Ctx) error {
	month, err := request.QueryInt(c, "month")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	year, err := request.QueryInt(c, "year")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	summary, err := h.Service.SummaryByUnit(c.UserContext(), month, year)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Evaluation summary fetched successfully", summary)
}

// Get GET /api/v1/evaluations/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	e, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Evaluation fetched successfully", e)
}

// GetByRealization GET /api/v1/evaluations/by-realization/:realizationId
func (h *Handlers) GetByRealization(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "realizationId")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	e, err := h.Service.GetByRealization(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Evaluation fetched successfully", e)
}

type createBody struct {
	RealizationID            string           `json:"realizationId"`
	AccountID                *string          `json:"accountId"`
	SubActivityID            *string          `json:"subActivityId"`
	OrganizationalUnitID     *string          `json:"organizationalUnitId"`
	Month                    *int             `json:"month"`
	Year                     *int             `json:"year"`
	BudgetAmount             *decimal.Decimal `json:"budgetAmount"`
	RealizationAmount        *decimal.Decimal `json:"realizationAmount"`
	EvaluationStatus         string           `json:"evaluationStatus"`
	SpeedOfExecution         string           `json:"speedOfExecution"`
	FundAbsorptionEfficiency string           `json:"fundAbsorptionEfficiency"`
	ProcurementCapability    string           `json:"procurementCapability"`
	Constraints              []string         `json:"constraints"`
	Problems                 []string         `json:"problems"`
	Solutions                []string         `json:"solutions"`
	Recommendations          []string         `json:"recommendations"`
	GeneralNotes             string           `json:"generalNotes"`
}

// Create POST /api/v1/evaluations. Snapshot fields left out are copied from the realization.
func (h *Handlers) Create(c *fiber.Ctx) error {
	var body createBody
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if f := request.Missing(map[string]bool{
		"realizationId":            strings.TrimSpace(body.RealizationID) != "",
		"evaluationStatus":         body.EvaluationStatus != "",
		"speedOfExecution":         body.SpeedOfExecution != "",
		"fundAbsorptionEfficiency": body.FundAbsorptionEfficiency != "",
		"procurementCapability":    body.ProcurementCapability != "",
	}, "realizationId", "evaluationStatus", "speedOfExecution", "fundAbsorptionEfficiency", "procurementCapability"); f != "" {
		return response.BadRequest(c, "Missing required field: "+f)
	}
	in := evalsvc.CreateInput{
		Month:             body.Month,
		Year:              body.Year,
		BudgetAmount:      body.BudgetAmount,
		RealizationAmount: body.RealizationAmount,
		Assessment: domain.Assessment{
			EvaluationStatus:         domain.EvaluationStatus(body.EvaluationStatus),
			SpeedOfExecution:         domain.ExecutionSpeed(body.SpeedOfExecution),
			FundAbsorptionEfficiency: domain.AbsorptionEfficiency(body.FundAbsorptionEfficiency),
			ProcurementCapability:    domain.ProcurementCapability(body.ProcurementCapability),
			Constraints:              body.Constraints,
			Problems:                 body.Problems,
			Solutions:                body.Solutions,
			Recommendations:          body.Recommendations,
			GeneralNotes:             body.GeneralNotes,
		},
	}
	var err error
	if in.RealizationID, err = request.ParseUUIDField("realizationId", body.RealizationID); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if in.AccountID, err = request.ParseOptionalUUIDField("accountId", body.AccountID); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if in.SubActivityID, err = request.ParseOptionalUUIDField("subActivityId", body.SubActivityID); err != nil {
		return response.BadRequest(c, err.Error())
	}
	if in.OrganizationalUnitID, err = request.ParseOptionalUUIDField("organizationalUnitId", body.OrganizationalUnitID); err != nil {
		return response.BadRequest(c, err.Error())
	}
	e, err := h.Service.Create(c.UserContext(), in, middleware.ActorFromCtx(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Evaluation created successfully", e)
}

// Update PUT /api/v1/evaluations/:id. Snapshot fields in the body are ignored.
func (h *Handlers) Update(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	var body struct {
		EvaluationStatus         *domain.EvaluationStatus      `json:"evaluationStatus"`
		SpeedOfExecution         *domain.ExecutionSpeed        `json:"speedOfExecution"`
		FundAbsorptionEfficiency *domain.AbsorptionEfficiency  `json:"fundAbsorptionEfficiency"`
		ProcurementCapability    *domain.ProcurementCapability `json:"procurementCapability"`
		Constraints              *[]string                     `json:"constraints"`
		Problems                 *[]string                     `json:"problems"`
		Solutions                *[]string                     `json:"solutions"`
		Recommendations          *[]string                     `json:"recommendations"`
		GeneralNotes             *string                       `json:"generalNotes"`
		FollowUpRequired         *bool                         `json:"followUpRequired"`
		BudgetAmount             *decimal.Decimal              `json:"budgetAmount"`
		RealizationAmount        *decimal.Decimal              `json:"realizationAmount"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	e, err := h.Service.Update(c.UserContext(), id, evalsvc.Patch{
		EvaluationStatus:         body.EvaluationStatus,
		SpeedOfExecution:         body.SpeedOfExecution,
		FundAbsorptionEfficiency: body.FundAbsorptionEfficiency,
		ProcurementCapability:    body.ProcurementCapability,
		Constraints:              body.Constraints,
		Problems:                 body.Problems,
		Solutions:                body.Solutions,
		Recommendations:          body.Recommendations,
		GeneralNotes:             body.GeneralNotes,
		FollowUpRequired:         body.FollowUpRequired,
		BudgetAmount:             body.BudgetAmount,
		RealizationAmount:        body.RealizationAmount,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Evaluation updated successfully", e)
}

// Approve POST /api/v1/evaluations/:id/approve
func (h *Handlers) Approve(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	e, err := h.Service.Approve(c.UserContext(), id, middleware.ActorFromCtx(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Evaluation approved successfully", e)
}

// AddFollowUp POST /api/v1/evaluations/:id/follow-ups
func (h *Handlers) AddFollowUp(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	var body struct {
		Action     string          `json:"action"`
		AssignedTo domain.ActorRef `json:"assignedTo"`
		DueDate    *time.Time      `json:"dueDate"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(body.Action) == "" {
		return response.BadRequest(c, "Missing required field: action")
	}
	e, err := h.Service.AddFollowUpAction(c.UserContext(), id, evalsvc.FollowUpInput{
		Action:     body.Action,
		AssignedTo: body.AssignedTo,
		DueDate:    body.DueDate,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Follow-up action added successfully", e)
}

// UpdateFollowUpStatus PATCH /api/v1/evaluations/:id/follow-ups/:index
func (h *Handlers) UpdateFollowUpStatus(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return response.BadRequest(c, "Invalid index: must be an integer")
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if body.Status == "" {
		return response.BadRequest(c, "Missing required field: status")
	}
	e, err := h.Service.UpdateFollowUpStatus(c.UserContext(), id, index, domain.FollowUpStatus(body.Status))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Follow-up action updated successfully", e)
}

// Delete DELETE /api/v1/evaluations/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	id, err := request.ParamID(c, "id")
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	if err := h.Service.Delete(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Evaluation deleted successfully", nil)
}
