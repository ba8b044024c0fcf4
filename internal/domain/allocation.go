package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AllocationLine is one (account, amount) pair of an allocation.
type AllocationLine struct {
	AccountID   uuid.UUID       `json:"accountId"`
	Amount      decimal.Decimal `json:"amount"`
	AllocatedBy ActorRef        `json:"allocatedBy"`
	AllocatedAt time.Time       `json:"allocatedAt"`
}

// Allocation is the budget of one Sub-Activity for one budget year. Lines are stored as a single JSON
// document so a write is one atomic row update; TotalAmount is recomputed from them before every save.
type Allocation struct {
	ID              uuid.UUID                            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SubActivityID   uuid.UUID                            `gorm:"column:sub_activity_id;type:uuid;not null;uniqueIndex:idx_allocation_sub_activity_year" json:"subActivityId"`
	BudgetYear      string                               `gorm:"column:budget_year;type:varchar(32);not null;uniqueIndex:idx_allocation_sub_activity_year" json:"budgetYear"`
	FundingSourceID *uuid.UUID                           `gorm:"column:funding_source_id;type:uuid" json:"fundingSourceId"`
	Lines           datatypes.JSONType[[]AllocationLine] `gorm:"column:lines;not null" json:"allocations"`
	TotalAmount     decimal.Decimal                      `gorm:"column:total_amount;type:decimal(20,2);not null;default:0" json:"totalAmount"`
	Description     string                               `gorm:"column:description" json:"description"`
	CreatedBy       ActorRef                             `gorm:"column:created_by;type:text" json:"createdBy"`
	UpdatedBy       ActorRef                             `gorm:"column:updated_by;type:text" json:"updatedBy"`
	CreatedAt       time.Time                            `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt       time.Time                            `gorm:"column:updated_at" json:"updatedAt"`
}

func (Allocation) TableName() string {
	return "allocations"
}

func (a *Allocation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// BeforeSave keeps TotalAmount equal to the sum of the lines on every create and save.
func (a *Allocation) BeforeSave(tx *gorm.DB) error {
	a.TotalAmount = a.ComputeTotal()
	return nil
}

// LineItems returns the stored allocation lines.
func (a *Allocation) LineItems() []AllocationLine {
	return a.Lines.Data()
}

// SetLines replaces the lines and recomputes the total.
func (a *Allocation) SetLines(lines []AllocationLine) {
	if lines == nil {
		lines = []AllocationLine{}
	}
	a.Lines = datatypes.NewJSONType(lines)
	a.TotalAmount = a.ComputeTotal()
}

func (a *Allocation) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range a.Lines.Data() {
		total = total.Add(l.Amount)
	}
	return total
}

// LineFor returns the line for an account, if present.
func (a *Allocation) LineFor(accountID uuid.UUID) (AllocationLine, bool) {
	for _, l := range a.Lines.Data() {
		if l.AccountID == accountID {
			return l, true
		}
	}
	return AllocationLine{}, false
}
