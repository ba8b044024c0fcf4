package realizations

import (
	"context"
	"errors"
	"sort"
	"strings"

	"anggaran-backend/internal/application/allocations"
	"anggaran-backend/internal/application/hierarchy"
	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const duplicateMessage = "Realization for this account, sub-activity and period already exists"

// Service is the realization ledger: monthly spend per (account, Sub-Activity).
type Service struct {
	DB *gorm.DB
}

type CreateInput struct {
	AccountID         uuid.UUID
	SubActivityID     uuid.UUID
	Month             int
	Year              int
	BudgetAmount      *decimal.Decimal
	RealizationAmount decimal.Decimal
	Description       string
}

func validPeriod(month, year int) error {
	if month < 1 || month > 12 {
		return domain.Validation("month must be between 1 and 12")
	}
	if year < 1900 || year > 9999 {
		return domain.Validation("year is out of range")
	}
	return nil
}

// Create records spend for one period. The budget amount is copied from the matching allocation
// line when the caller does not supply it, and must cover the realization amount.
func (s *Service) Create(ctx context.Context, in CreateInput, actor domain.ActorRef) (*domain.Realization, error) {
	if actor.IsZero() {
		return nil, domain.Unauthorized("Actor identity is required")
	}
	if in.AccountID == uuid.Nil || in.SubActivityID == uuid.Nil {
		return nil, domain.Validation("accountId and subActivityId are required")
	}
	if err := validPeriod(in.Month, in.Year); err != nil {
		return nil, err
	}

	hs := hierarchy.Service{DB: s.DB}
	sub, err := hs.GetSubActivity(ctx, in.SubActivityID)
	if err != nil {
		return nil, err
	}
	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.Account{}).Where("id = ?", in.AccountID).Count(&n).Error; err != nil {
		return nil, domain.Storage(err, "Failed to check account")
	}
	if n == 0 {
		return nil, domain.NotFound("Account not found")
	}

	r := &domain.Realization{
		AccountID:            in.AccountID,
		SubActivityID:        in.SubActivityID,
		Month:                in.Month,
		Year:                 in.Year,
		OrganizationalUnitID: sub.OrganizationalUnitID,
		RealizationAmount:    in.RealizationAmount,
		Description:          strings.TrimSpace(in.Description),
		CreatedBy:            actor,
		UpdatedBy:            actor,
	}
	if in.BudgetAmount != nil {
		r.BudgetAmount = *in.BudgetAmount
	} else {
		as := allocations.Service{DB: s.DB}
		budget, err := as.BudgetFor(ctx, in.SubActivityID, in.AccountID, in.Year)
		if err != nil {
			return nil, err
		}
		r.BudgetAmount = budget
	}
	if err := r.CheckBound(); err != nil {
		return nil, err
	}

	taken, err := s.keyTaken(ctx, r, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.Conflict(duplicateMessage)
	}
	if err := s.DB.WithContext(ctx).Create(r).Error; err != nil {
		return nil, translate(err, "Failed to create realization")
	}
	return r, nil
}

func (s *Service) keyTaken(ctx context.Context, r *domain.Realization, except uuid.UUID) (bool, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Realization{}).
		Where("account_id = ? AND sub_activity_id = ? AND month = ? AND year = ?", r.AccountID, r.SubActivityID, r.Month, r.Year)
	if except != uuid.Nil {
		q = q.Where("id <> ?", except)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, domain.Storage(err, "Failed to check realization period")
	}
	return n > 0, nil
}

// translate maps a write error to Conflict for key collisions and keeps classified hook errors.
func translate(err error, msg string) error {
	var de *domain.Error
	switch {
	case database.IsUniqueViolation(err):
		return domain.Conflict(duplicateMessage)
	case errors.As(err, &de):
		return de
	default:
		return domain.Storage(err, msg)
	}
}

// Patch lists the mutable fields of a realization.
type Patch struct {
	RealizationAmount *decimal.Decimal
	Description       *string
	Month             *int
	Year              *int
}

// Update re-checks the spend bound against the stored budget amount, and the period key when
// month or year move.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p Patch, actor domain.ActorRef) (*domain.Realization, error) {
	if actor.IsZero() {
		return nil, domain.Unauthorized("Actor identity is required")
	}
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	periodChanged := false
	if p.Month != nil && *p.Month != r.Month {
		r.Month = *p.Month
		periodChanged = true
	}
	if p.Year != nil && *p.Year != r.Year {
		r.Year = *p.Year
		periodChanged = true
	}
	if err := validPeriod(r.Month, r.Year); err != nil {
		return nil, err
	}
	if p.RealizationAmount != nil {
		r.RealizationAmount = *p.RealizationAmount
	}
	if p.Description != nil {
		r.Description = strings.TrimSpace(*p.Description)
	}
	if err := r.CheckBound(); err != nil {
		return nil, err
	}
	if periodChanged {
		taken, err := s.keyTaken(ctx, r, r.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domain.Conflict(duplicateMessage)
		}
	}
	r.UpdatedBy = actor
	if err := s.DB.WithContext(ctx).Save(r).Error; err != nil {
		return nil, translate(err, "Failed to update realization")
	}
	return r, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&domain.Realization{})
	if res.Error != nil {
		return domain.Storage(res.Error, "Failed to delete realization")
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("Realization not found")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Realization, error) {
	var r domain.Realization
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, domain.NotFound("Realization not found")
		}
		return nil, domain.Storage(err, "Failed to load realization")
	}
	return &r, nil
}

type ListFilter struct {
	AccountID     *uuid.UUID
	SubActivityID *uuid.UUID
	UnitID        *uuid.UUID
	Month         int
	Year          int
	Page          int
	Limit         int
}

func (f ListFilter) apply(q *gorm.DB) *gorm.DB {
	if f.AccountID != nil {
		q = q.Where("account_id = ?", *f.AccountID)
	}
	if f.SubActivityID != nil {
		q = q.Where("sub_activity_id = ?", *f.SubActivityID)
	}
	if f.UnitID != nil {
		q = q.Where("organizational_unit_id = ?", *f.UnitID)
	}
	if f.Month > 0 {
		q = q.Where("month = ?", f.Month)
	}
	if f.Year > 0 {
		q = q.Where("year = ?", f.Year)
	}
	return q
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Realization, int64, error) {
	q := f.apply(s.DB.WithContext(ctx).Model(&domain.Realization{})).Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, domain.Storage(err, "Failed to count realizations")
	}
	items := make([]domain.Realization, 0)
	if err := q.Scopes(database.Paginate(f.Page, f.Limit)).
		Order("year DESC, month DESC, created_at DESC").
		Find(&items).Error; err != nil {
		return nil, 0, domain.Storage(err, "Failed to fetch realizations")
	}
	return items, total, nil
}

// SubActivitySummary aggregates the realizations of one Sub-Activity for a period.
type SubActivitySummary struct {
	SubActivityID     uuid.UUID       `json:"subActivityId"`
	SubActivityCode   string          `json:"subActivityCode"`
	SubActivityName   string          `json:"subActivityName"`
	Count             int             `json:"count"`
	TotalBudget       decimal.Decimal `json:"totalBudget"`
	TotalRealization  decimal.Decimal `json:"totalRealization"`
	TotalRemaining    decimal.Decimal `json:"totalRemaining"`
	AveragePercentage decimal.Decimal `json:"averagePercentage"`
}

// SummaryBySubActivity groups a month's realizations by Sub-Activity, summing amounts and averaging
// the per-record realization percentage.
func (s *Service) SummaryBySubActivity(ctx context.Context, month, year int) ([]SubActivitySummary, error) {
	if err := validPeriod(month, year); err != nil {
		return nil, err
	}
	var rows []domain.Realization
	if err := s.DB.WithContext(ctx).Where("month = ? AND year = ?", month, year).Find(&rows).Error; err != nil {
		return nil, domain.Storage(err, "Failed to fetch realizations")
	}

	groups := make(map[uuid.UUID]*SubActivitySummary)
	pctSum := make(map[uuid.UUID]decimal.Decimal)
	ids := make([]uuid.UUID, 0)
	for i := range rows {
		r := &rows[i]
		g, ok := groups[r.SubActivityID]
		if !ok {
			g = &SubActivitySummary{SubActivityID: r.SubActivityID}
			groups[r.SubActivityID] = g
			ids = append(ids, r.SubActivityID)
		}
		g.Count++
		g.TotalBudget = g.TotalBudget.Add(r.BudgetAmount)
		g.TotalRealization = g.TotalRealization.Add(r.RealizationAmount)
		pctSum[r.SubActivityID] = pctSum[r.SubActivityID].Add(r.RealizationPercentage())
	}

	var nodes []domain.ProgramNode
	if len(ids) > 0 {
		if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&nodes).Error; err != nil {
			return nil, domain.Storage(err, "Failed to fetch sub-activities")
		}
	}
	for _, n := range nodes {
		if g, ok := groups[n.ID]; ok {
			g.SubActivityCode = n.FullCode
			g.SubActivityName = n.Name
		}
	}

	out := make([]SubActivitySummary, 0, len(groups))
	for _, id := range ids {
		g := groups[id]
		g.TotalRemaining = g.TotalBudget.Sub(g.TotalRealization)
		g.AveragePercentage = pctSum[id].Div(decimal.NewFromInt(int64(g.Count))).Round(2)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubActivityCode < out[j].SubActivityCode })
	return out, nil
}
