package evaluations

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const DefaultLowAbsorptionThreshold = 80

// Service manages evaluations, one per realization.
type Service struct {
	DB *gorm.DB
	// LowAbsorptionThreshold is used when callers do not pass one. Zero means DefaultLowAbsorptionThreshold.
	LowAbsorptionThreshold float64
}

// CreateInput carries the snapshot and the assessment. Snapshot fields left empty are copied
// from the realization.
type CreateInput struct {
	RealizationID        uuid.UUID
	AccountID            *uuid.UUID
	SubActivityID        *uuid.UUID
	OrganizationalUnitID *uuid.UUID
	Month                *int
	Year                 *int
	BudgetAmount         *decimal.Decimal
	RealizationAmount    *decimal.Decimal
	Assessment           domain.Assessment
}

func (s *Service) Create(ctx context.Context, in CreateInput, evaluator domain.ActorRef) (*domain.Evaluation, error) {
	if evaluator.IsZero() {
		return nil, domain.Unauthorized("Actor identity is required")
	}
	if in.RealizationID == uuid.Nil {
		return nil, domain.Validation("realizationId is required")
	}
	if err := in.Assessment.Validate(); err != nil {
		return nil, err
	}

	var r domain.Realization
	if err := s.DB.WithContext(ctx).Where("id = ?", in.RealizationID).First(&r).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, domain.NotFound("Realization not found")
		}
		return nil, domain.Storage(err, "Failed to load realization")
	}

	e := &domain.Evaluation{
		RealizationID:     r.ID,
		AccountID:         pick(in.AccountID, r.AccountID),
		SubActivityID:     pick(in.SubActivityID, r.SubActivityID),
		Month:             pick(in.Month, r.Month),
		Year:              pick(in.Year, r.Year),
		BudgetAmount:      pick(in.BudgetAmount, r.BudgetAmount),
		RealizationAmount: pick(in.RealizationAmount, r.RealizationAmount),
		EvaluatedBy:       evaluator,
		EvaluationDate:    time.Now().UTC(),
		FollowUpActions:   followUps(nil),
	}
	switch {
	case in.OrganizationalUnitID != nil:
		e.OrganizationalUnitID = *in.OrganizationalUnitID
	case r.OrganizationalUnitID != nil:
		e.OrganizationalUnitID = *r.OrganizationalUnitID
	default:
		return nil, domain.Validation("organizationalUnitId is required")
	}
	if e.BudgetAmount.IsNegative() || e.RealizationAmount.IsNegative() {
		return nil, domain.Invariant("Amounts must not be negative")
	}
	applyAssessment(e, in.Assessment)
	e.AbsorptionRate = domain.AbsorptionRate(e.BudgetAmount, e.RealizationAmount)

	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.Evaluation{}).Where("realization_id = ?", r.ID).Count(&n).Error; err != nil {
		return nil, domain.Storage(err, "Failed to check existing evaluation")
	}
	if n > 0 {
		return nil, domain.Conflict("Realization already has an evaluation")
	}
	if err := s.DB.WithContext(ctx).Create(e).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, domain.Conflict("Realization already has an evaluation")
		}
		return nil, domain.Storage(err, "Failed to create evaluation")
	}
	return e, nil
}

func pick[T any](v *T, fallback T) T {
	if v != nil {
		return *v
	}
	return fallback
}

func applyAssessment(e *domain.Evaluation, a domain.Assessment) {
	e.EvaluationStatus = a.EvaluationStatus
	e.SpeedOfExecution = a.SpeedOfExecution
	e.FundAbsorptionEfficiency = a.FundAbsorptionEfficiency
	e.ProcurementCapability = a.ProcurementCapability
	e.Constraints = domain.TextList(a.Constraints)
	e.Problems = domain.TextList(a.Problems)
	e.Solutions = domain.TextList(a.Solutions)
	e.Recommendations = domain.TextList(a.Recommendations)
	e.GeneralNotes = strings.TrimSpace(a.GeneralNotes)
}

// Patch is a partial update of the assessment. BudgetAmount and RealizationAmount belong to the
// snapshot and are never written; their presence only triggers an absorption recompute.
type Patch struct {
	EvaluationStatus         *domain.EvaluationStatus
	SpeedOfExecution         *domain.ExecutionSpeed
	FundAbsorptionEfficiency *domain.AbsorptionEfficiency
	ProcurementCapability    *domain.ProcurementCapability
	Constraints              *[]string
	Problems                 *[]string
	Solutions                *[]string
	Recommendations          *[]string
	GeneralNotes             *string
	FollowUpRequired         *bool
	BudgetAmount             *decimal.Decimal
	RealizationAmount        *decimal.Decimal
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, p Patch) (*domain.Evaluation, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	a := domain.Assessment{
		EvaluationStatus:         pick(p.EvaluationStatus, e.EvaluationStatus),
		SpeedOfExecution:         pick(p.SpeedOfExecution, e.SpeedOfExecution),
		FundAbsorptionEfficiency: pick(p.FundAbsorptionEfficiency, e.FundAbsorptionEfficiency),
		ProcurementCapability:    pick(p.ProcurementCapability, e.ProcurementCapability),
		Constraints:              pick(p.Constraints, e.Constraints.Data()),
		Problems:                 pick(p.Problems, e.Problems.Data()),
		Solutions:                pick(p.Solutions, e.Solutions.Data()),
		Recommendations:          pick(p.Recommendations, e.Recommendations.Data()),
		GeneralNotes:             pick(p.GeneralNotes, e.GeneralNotes),
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	applyAssessment(e, a)
	if p.FollowUpRequired != nil {
		e.FollowUpRequired = *p.FollowUpRequired
	}
	if p.BudgetAmount != nil || p.RealizationAmount != nil {
		e.AbsorptionRate = domain.AbsorptionRate(e.BudgetAmount, e.RealizationAmount)
	}
	if err := s.DB.WithContext(ctx).Save(e).Error; err != nil {
		return nil, domain.Storage(err, "Failed to update evaluation")
	}
	return e, nil
}

// Approve marks the evaluation approved. Approving again replaces approver and timestamp.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, approver domain.ActorRef) (*domain.Evaluation, error) {
	if approver.IsZero() {
		return nil, domain.Unauthorized("Actor identity is required")
	}
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	e.IsApproved = true
	e.ApprovedBy = approver
	e.ApprovedAt = &now
	if err := s.DB.WithContext(ctx).Save(e).Error; err != nil {
		return nil, domain.Storage(err, "Failed to approve evaluation")
	}
	return e, nil
}

type FollowUpInput struct {
	Action     string
	AssignedTo domain.ActorRef
	DueDate    *time.Time
}

func (s *Service) AddFollowUpAction(ctx context.Context, id uuid.UUID, in FollowUpInput) (*domain.Evaluation, error) {
	action := strings.TrimSpace(in.Action)
	if action == "" {
		return nil, domain.Validation("action is required")
	}
	if utf8.RuneCountInString(action) > domain.MaxListEntryLength {
		return nil, domain.Validation("action exceeds %d characters", domain.MaxListEntryLength)
	}
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	actions := append(e.FollowUpActions.Data(), domain.FollowUpAction{
		Action:     action,
		AssignedTo: in.AssignedTo,
		DueDate:    in.DueDate,
		Status:     domain.FollowUpPending,
	})
	e.FollowUpActions = followUps(actions)
	e.FollowUpRequired = true
	if err := s.DB.WithContext(ctx).Save(e).Error; err != nil {
		return nil, domain.Storage(err, "Failed to add follow-up action")
	}
	return e, nil
}

// UpdateFollowUpStatus sets the status of the action at index. An index outside the list leaves the
// evaluation untouched and returns it as stored.
func (s *Service) UpdateFollowUpStatus(ctx context.Context, id uuid.UUID, index int, status domain.FollowUpStatus) (*domain.Evaluation, error) {
	if !status.Valid() {
		return nil, domain.Validation("Invalid follow-up status: %q", status)
	}
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	actions := e.FollowUpActions.Data()
	if index < 0 || index >= len(actions) {
		return e, nil
	}
	updated := make([]domain.FollowUpAction, len(actions))
	copy(updated, actions)
	updated[index].Status = status
	if status == domain.FollowUpCompleted {
		now := time.Now().UTC()
		updated[index].CompletedAt = &now
	}
	e.FollowUpActions = followUps(updated)
	if err := s.DB.WithContext(ctx).Save(e).Error; err != nil {
		return nil, domain.Storage(err, "Failed to update follow-up action")
	}
	return e, nil
}

func followUps(actions []domain.FollowUpAction) datatypes.JSONType[[]domain.FollowUpAction] {
	if actions == nil {
		actions = []domain.FollowUpAction{}
	}
	return datatypes.NewJSONType(actions)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&domain.Evaluation{})
	if res.Error != nil {
		return domain.Storage(res.Error, "Failed to delete evaluation")
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("Evaluation not found")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Evaluation, error) {
	var e domain.Evaluation
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, domain.NotFound("Evaluation not found")
		}
		return nil, domain.Storage(err, "Failed to load evaluation")
	}
	return &e, nil
}

// GetByRealization returns the evaluation of a realization.
func (s *Service) GetByRealization(ctx context.Context, realizationID uuid.UUID) (*domain.Evaluation, error) {
	var e domain.Evaluation
	if err := s.DB.WithContext(ctx).Where("realization_id = ?", realizationID).First(&e).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, domain.NotFound("Evaluation not found")
		}
		return nil, domain.Storage(err, "Failed to load evaluation")
	}
	return &e, nil
}
