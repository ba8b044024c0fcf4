package allocations

import (
	"context"
	"strconv"
	"strings"
	"time"

	"anggaran-backend/internal/application/hierarchy"
	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service is the allocation ledger: one record per (Sub-Activity, budget year).
type Service struct {
	DB *gorm.DB
}

// LineInput is an allocation line as supplied by the caller. Missing attribution is stamped
// with the acting user and the current time.
type LineInput struct {
	AccountID   uuid.UUID
	Amount      decimal.Decimal
	AllocatedBy domain.ActorRef
	AllocatedAt *time.Time
}

type CreateInput struct {
	SubActivityID   uuid.UUID
	BudgetYear      string
	FundingSourceID *uuid.UUID
	Lines           []LineInput
	Description     string
}

func (s *Service) Create(ctx context.Context, in CreateInput, actor domain.ActorRef) (*domain.Allocation, error) {
	if actor.IsZero() {
		return nil, domain.Unauthorized("Actor identity is required")
	}
	year := strings.TrimSpace(in.BudgetYear)
	if in.SubActivityID == uuid.Nil || year == "" {
		return nil, domain.Validation("subActivityId and budgetYear are required")
	}
	hs := hierarchy.Service{DB: s.DB}
	if _, err := hs.GetSubActivity(ctx, in.SubActivityID); err != nil {
		return nil, err
	}
	lines, err := s.buildLines(ctx, in.Lines, actor)
	if err != nil {
		return nil, err
	}

	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.Allocation{}).
		Where("sub_activity_id = ? AND budget_year = ?", in.SubActivityID, year).
		Count(&n).Error; err != nil {
		return nil, domain.Storage(err, "Failed to check existing allocation")
	}
	if n > 0 {
		return nil, domain.Conflict("Allocation for this sub-activity and budget year already exists")
	}

	alloc := &domain.Allocation{
		SubActivityID:   in.SubActivityID,
		BudgetYear:      year,
		FundingSourceID: in.FundingSourceID,
		Description:     strings.TrimSpace(in.Description),
		CreatedBy:       actor,
		UpdatedBy:       actor,
	}
	alloc.SetLines(lines)
	if err := s.DB.WithContext(ctx).Create(alloc).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, domain.Conflict("Allocation for this sub-activity and budget year already exists")
		}
		return nil, domain.Storage(err, "Failed to create allocation")
	}
	return alloc, nil
}

// buildLines validates the lines and stamps missing attribution.
func (s *Service) buildLines(ctx context.Context, in []LineInput, actor domain.ActorRef) ([]domain.AllocationLine, error) {
	now := time.Now().UTC()
	lines := make([]domain.AllocationLine, 0, len(in))
	seen := make(map[uuid.UUID]bool, len(in))
	ids := make([]uuid.UUID, 0, len(in))
	for i, l := range in {
		if l.AccountID == uuid.Nil {
			return nil, domain.Validation("allocations[%d].accountId is required", i)
		}
		if l.Amount.IsNegative() {
			return nil, domain.Invariant("allocations[%d].amount must not be negative", i)
		}
		if seen[l.AccountID] {
			return nil, domain.Validation("allocations[%d]: account listed more than once", i)
		}
		seen[l.AccountID] = true
		ids = append(ids, l.AccountID)

		line := domain.AllocationLine{
			AccountID:   l.AccountID,
			Amount:      l.Amount,
			AllocatedBy: l.AllocatedBy,
			AllocatedAt: now,
		}
		if line.AllocatedBy.IsZero() {
			line.AllocatedBy = actor
		}
		if l.AllocatedAt != nil {
			line.AllocatedAt = *l.AllocatedAt
		}
		lines = append(lines, line)
	}
	if len(ids) > 0 {
		var n int64
		if err := s.DB.WithContext(ctx).Model(&domain.Account{}).Where("id IN ?", ids).Count(&n).Error; err != nil {
			return nil, domain.Storage(err, "Failed to check accounts")
		}
		if int(n) != len(ids) {
			return nil, domain.NotFound("One or more allocation accounts not found")
		}
	}
	return lines, nil
}

// Patch is a partial update. Nil fields are left alone; Lines replaces the whole list.
type Patch struct {
	FundingSourceID *uuid.UUID
	Lines           *[]LineInput
	Description     *string
}

// Update applies the patch and always stamps updatedBy and updatedAt.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p Patch, actor domain.ActorRef) (*domain.Allocation, error) {
	if actor.IsZero() {
		return nil, domain.Unauthorized("Actor identity is required")
	}
	alloc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.FundingSourceID != nil {
		alloc.FundingSourceID = p.FundingSourceID
	}
	if p.Lines != nil {
		lines, err := s.buildLines(ctx, *p.Lines, actor)
		if err != nil {
			return nil, err
		}
		alloc.SetLines(lines)
	}
	if p.Description != nil {
		alloc.Description = strings.TrimSpace(*p.Description)
	}
	alloc.UpdatedBy = actor
	alloc.UpdatedAt = time.Now()
	if err := s.DB.WithContext(ctx).Save(alloc).Error; err != nil {
		return nil, domain.Storage(err, "Failed to update allocation")
	}
	return alloc, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&domain.Allocation{})
	if res.Error != nil {
		return domain.Storage(res.Error, "Failed to delete allocation")
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("Allocation not found")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Allocation, error) {
	var alloc domain.Allocation
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&alloc).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, domain.NotFound("Allocation not found")
		}
		return nil, domain.Storage(err, "Failed to load allocation")
	}
	return &alloc, nil
}

// FindForPeriod returns the allocation of a Sub-Activity whose budget year starts with the given year
// ("2026" matches "2026-Murni"). The earliest created one wins.
func (s *Service) FindForPeriod(ctx context.Context, subActivityID uuid.UUID, year int) (*domain.Allocation, error) {
	var alloc domain.Allocation
	err := s.DB.WithContext(ctx).
		Where("sub_activity_id = ? AND budget_year LIKE ?", subActivityID, strconv.Itoa(year)+"%").
		Order("created_at ASC").First(&alloc).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, domain.NotFound("No allocation for this sub-activity in %d", year)
		}
		return nil, domain.Storage(err, "Failed to load allocation")
	}
	return &alloc, nil
}

type ListFilter struct {
	BudgetYear    string
	SubActivityID *uuid.UUID
	UnitID        *uuid.UUID
	Search        string
	Page          int
	Limit         int
}

// List filters by year, Sub-Activity and organizational unit in SQL. Free-text search matches the
// Sub-Activity name or code and the names of the allocated accounts; it is applied in memory
// because account ids live inside the lines document.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Allocation, int64, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Allocation{})
	if y := strings.TrimSpace(f.BudgetYear); y != "" {
		q = q.Where("budget_year = ?", y)
	}
	if f.SubActivityID != nil {
		q = q.Where("sub_activity_id = ?", *f.SubActivityID)
	}
	if f.UnitID != nil {
		ids, err := hierarchy.SubActivityIDsUnderUnit(ctx, s.DB, *f.UnitID)
		if err != nil {
			return nil, 0, err
		}
		if len(ids) == 0 {
			return []domain.Allocation{}, 0, nil
		}
		q = q.Where("sub_activity_id IN ?", ids)
	}
	const order = "budget_year DESC, created_at DESC"

	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		q = q.Session(&gorm.Session{})
		var total int64
		if err := q.Count(&total).Error; err != nil {
			return nil, 0, domain.Storage(err, "Failed to count allocations")
		}
		items := make([]domain.Allocation, 0)
		if err := q.Scopes(database.Paginate(f.Page, f.Limit)).Order(order).Find(&items).Error; err != nil {
			return nil, 0, domain.Storage(err, "Failed to fetch allocations")
		}
		return items, total, nil
	}

	var all []domain.Allocation
	if err := q.Order(order).Find(&all).Error; err != nil {
		return nil, 0, domain.Storage(err, "Failed to fetch allocations")
	}
	matched, err := s.search(ctx, all, term)
	if err != nil {
		return nil, 0, err
	}
	page, limit := database.NormalizePage(f.Page, f.Limit)
	start := min((page-1)*limit, len(matched))
	end := min(start+limit, len(matched))
	return matched[start:end], int64(len(matched)), nil
}

func (s *Service) search(ctx context.Context, all []domain.Allocation, term string) ([]domain.Allocation, error) {
	like := "%" + term + "%"
	var subIDs []uuid.UUID
	if err := s.DB.WithContext(ctx).Model(&domain.ProgramNode{}).
		Where("level = ? AND (LOWER(name) LIKE ? OR LOWER(full_code) LIKE ?)", domain.LevelSubActivity, like, like).
		Pluck("id", &subIDs).Error; err != nil {
		return nil, domain.Storage(err, "Failed to search sub-activities")
	}
	var accountIDs []uuid.UUID
	if err := s.DB.WithContext(ctx).Model(&domain.Account{}).
		Where("LOWER(name) LIKE ?", like).
		Pluck("id", &accountIDs).Error; err != nil {
		return nil, domain.Storage(err, "Failed to search accounts")
	}
	subs := toSet(subIDs)
	accounts := toSet(accountIDs)

	out := make([]domain.Allocation, 0)
	for _, a := range all {
		if subs[a.SubActivityID] {
			out = append(out, a)
			continue
		}
		for _, l := range a.LineItems() {
			if accounts[l.AccountID] {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func toSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// BudgetFor returns the allocated amount of one account under a Sub-Activity for a calendar year.
func (s *Service) BudgetFor(ctx context.Context, subActivityID, accountID uuid.UUID, year int) (decimal.Decimal, error) {
	alloc, err := s.FindForPeriod(ctx, subActivityID, year)
	if err != nil {
		return decimal.Zero, err
	}
	line, ok := alloc.LineFor(accountID)
	if !ok {
		return decimal.Zero, domain.NotFound("No allocation line for this account")
	}
	return line.Amount, nil
}
