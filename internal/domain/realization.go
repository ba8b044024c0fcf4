package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Realization is the actual spend of one account under one Sub-Activity for one month.
// BudgetAmount is a copy of the allocation line taken at creation, not a live link.
type Realization struct {
	ID                   uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AccountID            uuid.UUID       `gorm:"column:account_id;type:uuid;not null;uniqueIndex:idx_realization_period" json:"accountId"`
	SubActivityID        uuid.UUID       `gorm:"column:sub_activity_id;type:uuid;not null;uniqueIndex:idx_realization_period" json:"subActivityId"`
	Month                int             `gorm:"column:month;not null;uniqueIndex:idx_realization_period" json:"month"`
	Year                 int             `gorm:"column:year;not null;uniqueIndex:idx_realization_period" json:"year"`
	OrganizationalUnitID *uuid.UUID      `gorm:"column:organizational_unit_id;type:uuid;index" json:"organizationalUnitId"`
	BudgetAmount         decimal.Decimal `gorm:"column:budget_amount;type:decimal(20,2);not null" json:"budgetAmount"`
	RealizationAmount    decimal.Decimal `gorm:"column:realization_amount;type:decimal(20,2);not null" json:"realizationAmount"`
	Description          string          `gorm:"column:description" json:"description"`
	CreatedBy            ActorRef        `gorm:"column:created_by;type:text" json:"createdBy"`
	UpdatedBy            ActorRef        `gorm:"column:updated_by;type:text" json:"updatedBy"`
	CreatedAt            time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt            time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

func (Realization) TableName() string {
	return "realizations"
}

func (r *Realization) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// BeforeSave is the last line of defence for the spend bound; services check it first
// to return a friendlier message.
func (r *Realization) BeforeSave(tx *gorm.DB) error {
	return r.CheckBound()
}

// CheckBound enforces realizationAmount <= budgetAmount and non-negative amounts.
func (r *Realization) CheckBound() error {
	if r.BudgetAmount.IsNegative() || r.RealizationAmount.IsNegative() {
		return Invariant("Amounts must not be negative")
	}
	if r.RealizationAmount.GreaterThan(r.BudgetAmount) {
		return Invariant("Realization amount %s exceeds budget amount %s", r.RealizationAmount.String(), r.BudgetAmount.String())
	}
	return nil
}

// RemainingAmount is budget minus realization, derived on read.
func (r *Realization) RemainingAmount() decimal.Decimal {
	return r.BudgetAmount.Sub(r.RealizationAmount)
}

// RealizationPercentage is min(100, realization / budget × 100), 0 for a zero budget.
func (r *Realization) RealizationPercentage() decimal.Decimal {
	return AbsorptionRate(r.BudgetAmount, r.RealizationAmount)
}

// MarshalJSON adds the derived fields to the stored ones.
func (r Realization) MarshalJSON() ([]byte, error) {
	type stored Realization
	return json.Marshal(struct {
		stored
		RemainingAmount       decimal.Decimal `json:"remainingAmount"`
		RealizationPercentage decimal.Decimal `json:"realizationPercentage"`
	}{
		stored:                stored(r),
		RemainingAmount:       r.RemainingAmount(),
		RealizationPercentage: r.RealizationPercentage(),
	})
}
