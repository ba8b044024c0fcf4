package domain

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EvaluationStatus string

const (
	StatusExcellent    EvaluationStatus = "excellent"
	StatusGood         EvaluationStatus = "good"
	StatusSatisfactory EvaluationStatus = "satisfactory"
	StatusPoor         EvaluationStatus = "poor"
	StatusVeryPoor     EvaluationStatus = "very_poor"
)

var EvaluationStatuses = []EvaluationStatus{StatusExcellent, StatusGood, StatusSatisfactory, StatusPoor, StatusVeryPoor}

type ExecutionSpeed string

var ExecutionSpeeds = []ExecutionSpeed{"very_fast", "fast", "moderate", "slow", "very_slow"}

type AbsorptionEfficiency string

var AbsorptionEfficiencies = []AbsorptionEfficiency{"excellent", "good", "fair", "poor"}

type ProcurementCapability string

var ProcurementCapabilities = []ProcurementCapability{"excellent", "good", "needs_improvement", "poor"}

type FollowUpStatus string

const (
	FollowUpPending    FollowUpStatus = "pending"
	FollowUpInProgress FollowUpStatus = "in_progress"
	FollowUpCompleted  FollowUpStatus = "completed"
	FollowUpCancelled  FollowUpStatus = "cancelled"
)

var FollowUpStatuses = []FollowUpStatus{FollowUpPending, FollowUpInProgress, FollowUpCompleted, FollowUpCancelled}

func oneOf[T ~string](v T, allowed []T) bool {
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}

func (s EvaluationStatus) Valid() bool      { return oneOf(s, EvaluationStatuses) }
func (s ExecutionSpeed) Valid() bool        { return oneOf(s, ExecutionSpeeds) }
func (s AbsorptionEfficiency) Valid() bool  { return oneOf(s, AbsorptionEfficiencies) }
func (s ProcurementCapability) Valid() bool { return oneOf(s, ProcurementCapabilities) }
func (s FollowUpStatus) Valid() bool        { return oneOf(s, FollowUpStatuses) }

const (
	MaxListEntryLength    = 500
	MaxGeneralNotesLength = 2000
)

// FollowUpAction is a task raised from an evaluation.
type FollowUpAction struct {
	Action      string         `json:"action"`
	AssignedTo  ActorRef       `json:"assignedTo"`
	DueDate     *time.Time     `json:"dueDate"`
	Status      FollowUpStatus `json:"status"`
	CompletedAt *time.Time     `json:"completedAt"`
}

// Evaluation is a point-in-time assessment of one realization. The identity, period and amount
// fields are a snapshot taken at creation and are not re-derived from the realization afterwards.
type Evaluation struct {
	ID                       uuid.UUID                            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RealizationID            uuid.UUID                            `gorm:"column:realization_id;type:uuid;not null;uniqueIndex" json:"realizationId"`
	AccountID                uuid.UUID                            `gorm:"column:account_id;type:uuid;not null" json:"accountId"`
	SubActivityID            uuid.UUID                            `gorm:"column:sub_activity_id;type:uuid;not null;index:idx_evaluation_sub_activity_period" json:"subActivityId"`
	OrganizationalUnitID     uuid.UUID                            `gorm:"column:organizational_unit_id;type:uuid;not null;index:idx_evaluation_unit_period" json:"organizationalUnitId"`
	Month                    int                                  `gorm:"column:month;not null;index:idx_evaluation_sub_activity_period;index:idx_evaluation_unit_period" json:"month"`
	Year                     int                                  `gorm:"column:year;not null;index:idx_evaluation_sub_activity_period;index:idx_evaluation_unit_period" json:"year"`
	BudgetAmount             decimal.Decimal                      `gorm:"column:budget_amount;type:decimal(20,2);not null" json:"budgetAmount"`
	RealizationAmount        decimal.Decimal                      `gorm:"column:realization_amount;type:decimal(20,2);not null" json:"realizationAmount"`
	AbsorptionRate           decimal.Decimal                      `gorm:"column:absorption_rate;type:decimal(5,2);not null;default:0" json:"absorptionRate"`
	EvaluationStatus         EvaluationStatus                     `gorm:"column:evaluation_status;type:varchar(20);not null;index" json:"evaluationStatus"`
	SpeedOfExecution         ExecutionSpeed                       `gorm:"column:speed_of_execution;type:varchar(20);not null" json:"speedOfExecution"`
	FundAbsorptionEfficiency AbsorptionEfficiency                 `gorm:"column:fund_absorption_efficiency;type:varchar(20);not null" json:"fundAbsorptionEfficiency"`
	ProcurementCapability    ProcurementCapability                `gorm:"column:procurement_capability;type:varchar(20);not null" json:"procurementCapability"`
	Constraints              datatypes.JSONType[[]string]         `gorm:"column:constraints" json:"constraints"`
	Problems                 datatypes.JSONType[[]string]         `gorm:"column:problems" json:"problems"`
	Solutions                datatypes.JSONType[[]string]         `gorm:"column:solutions" json:"solutions"`
	Recommendations          datatypes.JSONType[[]string]         `gorm:"column:recommendations" json:"recommendations"`
	GeneralNotes             string                               `gorm:"column:general_notes;type:text" json:"generalNotes"`
	EvaluatedBy              ActorRef                             `gorm:"column:evaluated_by;type:text" json:"evaluatedBy"`
	EvaluationDate           time.Time                            `gorm:"column:evaluation_date;not null;index" json:"evaluationDate"`
	IsApproved               bool                                 `gorm:"column:is_approved;not null;default:false" json:"isApproved"`
	ApprovedBy               ActorRef                             `gorm:"column:approved_by;type:text" json:"approvedBy"`
	ApprovedAt               *time.Time                           `gorm:"column:approved_at" json:"approvedAt"`
	FollowUpRequired         bool                                 `gorm:"column:follow_up_required;not null;default:false" json:"followUpRequired"`
	FollowUpActions          datatypes.JSONType[[]FollowUpAction] `gorm:"column:follow_up_actions" json:"followUpActions"`
	CreatedAt                time.Time                            `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt                time.Time                            `gorm:"column:updated_at" json:"updatedAt"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}

func (e *Evaluation) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// BeforeSave keeps absorptionRate consistent with the snapshot amounts.
func (e *Evaluation) BeforeSave(tx *gorm.DB) error {
	e.AbsorptionRate = AbsorptionRate(e.BudgetAmount, e.RealizationAmount)
	return nil
}

// Assessment groups the qualitative, editable part of an evaluation.
type Assessment struct {
	EvaluationStatus         EvaluationStatus
	SpeedOfExecution         ExecutionSpeed
	FundAbsorptionEfficiency AbsorptionEfficiency
	ProcurementCapability    ProcurementCapability
	Constraints              []string
	Problems                 []string
	Solutions                []string
	Recommendations          []string
	GeneralNotes             string
}

// Validate checks enum membership and text length limits.
func (a Assessment) Validate() error {
	if !a.EvaluationStatus.Valid() {
		return Validation("Invalid evaluationStatus: %q", a.EvaluationStatus)
	}
	if !a.SpeedOfExecution.Valid() {
		return Validation("Invalid speedOfExecution: %q", a.SpeedOfExecution)
	}
	if !a.FundAbsorptionEfficiency.Valid() {
		return Validation("Invalid fundAbsorptionEfficiency: %q", a.FundAbsorptionEfficiency)
	}
	if !a.ProcurementCapability.Valid() {
		return Validation("Invalid procurementCapability: %q", a.ProcurementCapability)
	}
	for name, list := range map[string][]string{
		"constraints":     a.Constraints,
		"problems":        a.Problems,
		"solutions":       a.Solutions,
		"recommendations": a.Recommendations,
	} {
		if err := ValidateTextList(name, list); err != nil {
			return err
		}
	}
	return ValidateNotes(a.GeneralNotes)
}

func ValidateTextList(name string, list []string) error {
	for i, s := range list {
		if utf8.RuneCountInString(s) > MaxListEntryLength {
			return Validation("%s[%d] exceeds %d characters", name, i, MaxListEntryLength)
		}
	}
	return nil
}

func ValidateNotes(notes string) error {
	if utf8.RuneCountInString(notes) > MaxGeneralNotesLength {
		return Validation("generalNotes exceeds %d characters", MaxGeneralNotesLength)
	}
	return nil
}

// TextList wraps a string slice for a JSON column, never storing null.
func TextList(list []string) datatypes.JSONType[[]string] {
	if list == nil {
		list = []string{}
	}
	return datatypes.NewJSONType(list)
}
