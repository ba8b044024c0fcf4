package evaluations

import (
	"context"
	"sort"

	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/infrastructure/database"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ListFilter struct {
	SubActivityID *uuid.UUID
	UnitID        *uuid.UUID
	Status        domain.EvaluationStatus
	Approved      *bool
	Month         int
	Year          int
	Page          int
	Limit         int
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Evaluation, int64, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Evaluation{})
	if f.SubActivityID != nil {
		q = q.Where("sub_activity_id = ?", *f.SubActivityID)
	}
	if f.UnitID != nil {
		q = q.Where("organizational_unit_id = ?", *f.UnitID)
	}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, 0, domain.Validation("Invalid evaluationStatus: %q", f.Status)
		}
		q = q.Where("evaluation_status = ?", f.Status)
	}
	if f.Approved != nil {
		q = q.Where("is_approved = ?", *f.Approved)
	}
	if f.Month > 0 {
		q = q.Where("month = ?", f.Month)
	}
	if f.Year > 0 {
		q = q.Where("year = ?", f.Year)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, domain.Storage(err, "Failed to count evaluations")
	}
	items := make([]domain.Evaluation, 0)
	if err := q.Scopes(database.Paginate(f.Page, f.Limit)).Order("evaluation_date DESC").Find(&items).Error; err != nil {
		return nil, 0, domain.Storage(err, "Failed to fetch evaluations")
	}
	return items, total, nil
}

func (s *Service) find(ctx context.Context, order string, query string, args ...interface{}) ([]domain.Evaluation, error) {
	items := make([]domain.Evaluation, 0)
	if err := s.DB.WithContext(ctx).Where(query, args...).Order(order).Find(&items).Error; err != nil {
		return nil, domain.Storage(err, "Failed to fetch evaluations")
	}
	return items, nil
}

func (s *Service) BySubActivityPeriod(ctx context.Context, subActivityID uuid.UUID, month, year int) ([]domain.Evaluation, error) {
	return s.find(ctx, "evaluation_date DESC",
		"sub_activity_id = ? AND month = ? AND year = ?", subActivityID, month, year)
}

func (s *Service) ByUnitPeriod(ctx context.Context, unitID uuid.UUID, month, year int) ([]domain.Evaluation, error) {
	return s.find(ctx, "evaluation_date DESC",
		"organizational_unit_id = ? AND month = ? AND year = ?", unitID, month, year)
}

func (s *Service) ByStatus(ctx context.Context, status domain.EvaluationStatus) ([]domain.Evaluation, error) {
	if !status.Valid() {
		return nil, domain.Validation("Invalid evaluationStatus: %q", status)
	}
	return s.find(ctx, "evaluation_date DESC", "evaluation_status = ?", status)
}

// LowAbsorption returns evaluations whose rate is below threshold, lowest rate first.
// A nil threshold uses the configured default.
func (s *Service) LowAbsorption(ctx context.Context, threshold *decimal.Decimal) ([]domain.Evaluation, error) {
	limit := decimal.NewFromFloat(s.LowAbsorptionThreshold)
	if s.LowAbsorptionThreshold <= 0 {
		limit = decimal.NewFromInt(DefaultLowAbsorptionThreshold)
	}
	if threshold != nil {
		limit = *threshold
	}
	return s.find(ctx, "absorption_rate ASC, evaluation_date DESC", "absorption_rate < ?", limit.InexactFloat64())
}

// UnitSummary aggregates the evaluations of one organizational unit.
type UnitSummary struct {
	OrganizationalUnitID  uuid.UUID                         `json:"organizationalUnitId"`
	UnitCode              string                            `json:"unitCode"`
	UnitName              string                            `json:"unitName"`
	EvaluationCount       int64                             `json:"evaluationCount"`
	AverageAbsorptionRate decimal.Decimal                   `json:"averageAbsorptionRate"`
	TotalBudget           decimal.Decimal                   `json:"totalBudget"`
	TotalRealization      decimal.Decimal                   `json:"totalRealization"`
	TotalRemaining        decimal.Decimal                   `json:"totalRemaining"`
	StatusBreakdown       map[domain.EvaluationStatus]int64 `json:"statusBreakdown"`
}

type unitAggregate struct {
	OrganizationalUnitID  uuid.UUID
	EvaluationCount       int64
	AverageAbsorptionRate decimal.Decimal
	TotalBudget           decimal.Decimal
	TotalRealization      decimal.Decimal
	StatusExcellent       int64
	StatusGood            int64
	StatusSatisfactory    int64
	StatusPoor            int64
	StatusVeryPoor        int64
}

func (a unitAggregate) breakdown() map[domain.EvaluationStatus]int64 {
	return map[domain.EvaluationStatus]int64{
		domain.StatusExcellent:    a.StatusExcellent,
		domain.StatusGood:         a.StatusGood,
		domain.StatusSatisfactory: a.StatusSatisfactory,
		domain.StatusPoor:         a.StatusPoor,
		domain.StatusVeryPoor:     a.StatusVeryPoor,
	}
}

// summaryQuery builds the grouped aggregate; month and year are optional filters.
func summaryQuery(month, year int) (string, []interface{}, error) {
	b := sq.Select(
		"organizational_unit_id",
		"COUNT(*) AS evaluation_count",
		"AVG(absorption_rate) AS average_absorption_rate",
		"SUM(budget_amount) AS total_budget",
		"SUM(realization_amount) AS total_realization",
	).From("evaluations")
	for _, st := range domain.EvaluationStatuses {
		b = b.Column(sq.Expr("SUM(CASE WHEN evaluation_status = ? THEN 1 ELSE 0 END) AS status_"+string(st), string(st)))
	}
	if month > 0 {
		b = b.Where(sq.Eq{"month": month})
	}
	if year > 0 {
		b = b.Where(sq.Eq{"year": year})
	}
	return b.GroupBy("organizational_unit_id").ToSql()
}

// SummaryByUnit groups evaluations by organizational unit and joins each group with the unit record.
func (s *Service) SummaryByUnit(ctx context.Context, month, year int) ([]UnitSummary, error) {
	query, args, err := summaryQuery(month, year)
	if err != nil {
		return nil, domain.Storage(err, "Failed to build evaluation summary")
	}
	var rows []unitAggregate
	if err := s.DB.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, domain.Storage(err, "Failed to summarize evaluations")
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.OrganizationalUnitID)
	}
	units := make(map[uuid.UUID]domain.OrganizationalUnit, len(ids))
	if len(ids) > 0 {
		var list []domain.OrganizationalUnit
		if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
			return nil, domain.Storage(err, "Failed to fetch organizational units")
		}
		for _, u := range list {
			units[u.ID] = u
		}
	}

	out := make([]UnitSummary, 0, len(rows))
	for _, r := range rows {
		u := units[r.OrganizationalUnitID]
		out = append(out, UnitSummary{
			OrganizationalUnitID:  r.OrganizationalUnitID,
			UnitCode:              u.Code,
			UnitName:              u.Name,
			EvaluationCount:       r.EvaluationCount,
			AverageAbsorptionRate: r.AverageAbsorptionRate.Round(2),
			TotalBudget:           r.TotalBudget,
			TotalRealization:      r.TotalRealization,
			TotalRemaining:        r.TotalBudget.Sub(r.TotalRealization),
			StatusBreakdown:       r.breakdown(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitCode < out[j].UnitCode })
	return out, nil
}
