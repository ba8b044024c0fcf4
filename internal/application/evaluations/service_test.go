package evaluations

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	evaluator = domain.ActorFromLabel("Kepala Bidang")
	approver  = domain.ActorFromID(uuid.MustParse("8a5d1f3e-0d7b-4a43-9a38-3c3b8a61f2a4"))
)

func setupEvaluations(t *testing.T) (*Service, *gorm.DB) {
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return &Service{DB: db}, db
}

func seedUnit(t *testing.T, db *gorm.DB, code string) domain.OrganizationalUnit {
	u := domain.OrganizationalUnit{Code: code, Name: "Unit " + code}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func seedRealization(t *testing.T, db *gorm.DB, unitID uuid.UUID, month int, budget, spent int64) domain.Realization {
	r := domain.Realization{
		AccountID:            uuid.New(),
		SubActivityID:        uuid.New(),
		Month:                month,
		Year:                 2026,
		OrganizationalUnitID: &unitID,
		BudgetAmount:         decimal.NewFromInt(budget),
		RealizationAmount:    decimal.NewFromInt(spent),
		CreatedBy:            evaluator,
	}
	require.NoError(t, db.Create(&r).Error)
	return r
}

func assessment(status domain.EvaluationStatus) domain.Assessment {
	return domain.Assessment{
		EvaluationStatus:         status,
		SpeedOfExecution:         "moderate",
		FundAbsorptionEfficiency: "good",
		ProcurementCapability:    "needs_improvement",
		Constraints:              []string{"Keterlambatan lelang"},
		GeneralNotes:             "Catatan umum",
	}
}

func TestEvaluationLifecycle(t *testing.T) {
	svc, db := setupEvaluations(t)
	ctx := context.Background()
	unit := seedUnit(t, db, "DINKES")
	r := seedRealization(t, db, unit.ID, 1, 1_000_000, 800_000)

	e, err := svc.Create(ctx, CreateInput{RealizationID: r.ID, Assessment: assessment(domain.StatusGood)}, evaluator)
	require.NoError(t, err)
	assert.True(t, e.AbsorptionRate.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, r.SubActivityID, e.SubActivityID)
	assert.Equal(t, unit.ID, e.OrganizationalUnitID)
	assert.Equal(t, evaluator, e.EvaluatedBy)
	assert.False(t, e.IsApproved)

	approved, err := svc.Approve(ctx, e.ID, approver)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)
	require.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, approver, approved.ApprovedBy)

	withAction, err := svc.AddFollowUpAction(ctx, e.ID, FollowUpInput{Action: "Percepat lelang", AssignedTo: domain.ActorFromLabel("PPK")})
	require.NoError(t, err)
	assert.True(t, withAction.FollowUpRequired)
	require.Len(t, withAction.FollowUpActions.Data(), 1)
	assert.Equal(t, domain.FollowUpPending, withAction.FollowUpActions.Data()[0].Status)

	done, err := svc.UpdateFollowUpStatus(ctx, e.ID, 0, domain.FollowUpCompleted)
	require.NoError(t, err)
	action := done.FollowUpActions.Data()[0]
	assert.Equal(t, domain.FollowUpCompleted, action.Status)
	assert.NotNil(t, action.CompletedAt)

	stored, err := svc.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsApproved)
	assert.True(t, stored.AbsorptionRate.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, []string{"Keterlambatan lelang"}, stored.Constraints.Data())
	assert.NotNil(t, stored.FollowUpActions.Data()[0].CompletedAt)
}

func TestApprove_IsIdempotent(t *testing.T) {
	svc, db := setupEvaluations(t)
	ctx := context.Background()
	unit := seedUnit(t, db, "DINKES")
	r := seedRealization(t, db, unit.ID, 1, 100, 50)
	e, err := svc.Create(ctx, CreateInput{RealizationID: r.ID, Assessment: assessment(domain.StatusGood)}, evaluator)
	require.NoError(t, err)

	first, err := svc.Approve(ctx, e.ID, approver)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := svc.Approve(ctx, e.ID, evaluator)
	require.NoError(t, err)
	assert.True(t, second.IsApproved)
	assert.Equal(t, evaluator, second.ApprovedBy)
	assert.True(t, second.ApprovedAt.After(*first.ApprovedAt))

	_, err = svc.Approve(ctx, uuid.New(), approver)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCreate_Rejections(t *testing.T) {
	svc, db := setupEvaluations(t)
	ctx := context.Background()
	unit := seedUnit(t, db, "DINKES")
	r := seedRealization(t, db, unit.ID, 1, 100, 50)

	_, err := svc.Create(ctx, CreateInput{RealizationID: r.ID, Assessment: assessment(domain.StatusGood)}, domain.ActorRef{})
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	_, err = svc.Create(ctx, CreateInput{RealizationID: r.ID, Assessment: assessment("great")}, evaluator)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	long := assessment(domain.StatusGood)
	long.Problems = []string{strings.Repeat("x", domain.MaxListEntryLength+1)}
	_, err = svc.Create(ctx, CreateInput{RealizationID: r.ID, Assessment: long}, evaluator)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = svc.Create(ctx, CreateInput{RealizationID: uuid.New(), Assessment: assessment(domain.StatusGood)}, evaluator)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = svc.Create(ctx, CreateInput{RealizationID: r.ID, Assessment: assessment(domain.StatusGood)}, evaluator)
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{RealizationID: r.ID, Assessment: assessment(domain.StatusPoor)}, evaluator)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestCreate_SuppliedSnapshotAndZeroBudget(t *testing.T) {
	svc, db := setupEvaluations(t)
	ctx := context.Background()
	unit := seedUnit(t, db, "DINKES")
	r := seedRealization(t, db, unit.ID, 1, 100, 50)

	zero := decimal.Zero
	spent := decimal.NewFromInt(10)
	e, err := svc.Create(ctx, CreateInput{
		RealizationID:     r.ID,
		BudgetAmount:      &zero,
		RealizationAmount: &spent,
		Assessment:        assessment(domain.StatusVeryPoor),
	}, evaluator)
	require.NoError(t, err)
	assert.True(t, e.AbsorptionRate.IsZero())
}

func TestUpdate_DropsSnapshotEdits(t *testing.T) {
	svc, db := setupEvaluations(t)
	ctx := context.Background()
	unit := seedUnit(t, db, "DINKES")
	r := seedRealization(t, db, unit.ID, 1, 1_000_000, 800_000)
	e, err := svc.Create(ctx, CreateInput{RealizationID: r.ID, Assessment: assessment(domain.StatusGood)}, evaluator)
	require.NoError(t, err)

	status := domain.StatusSatisfactory
	notes := "Direvisi"
	budget := decimal.NewFromInt(1)
	updated, err := svc.Update(ctx, e.ID, Patch{EvaluationStatus: &status, GeneralNotes: &notes, BudgetAmount: &budget})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSatisfactory, updated.EvaluationStatus)
	assert.Equal(t, "Direvisi", updated.GeneralNotes)
	assert.True(t, updated.BudgetAmount.Equal(decimal.NewFromInt(1_000_000)))
	assert.True(t, updated.AbsorptionRate.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, []string{"Keterlambatan lelang"}, updated.Constraints.Data())

	bad := domain.EvaluationStatus("unknown")
	_, err = svc.Update(ctx, e.ID, Patch{EvaluationStatus: &bad})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestUpdateFollowUpStatus_OutOfRangeIsNoop(t *testing.T) {
	svc, db := setupEvaluations(t)
	ctx := context.Background()
	unit := seedUnit(t, db, "DINKES")
	r := seedRealization(t, db, unit.ID, 1, 100, 50)
	e, err := svc.Create(ctx, CreateInput{RealizationID: r.ID, Assessment: assessment(domain.StatusGood)}, evaluator)
	require.NoError(t, err)
	_, err = svc.AddFollowUpAction(ctx, e.ID, FollowUpInput{Action: "Tindak lanjut"})
	require.NoError(t, err)

	same, err := svc.UpdateFollowUpStatus(ctx, e.ID, 5, domain.FollowUpCompleted)
	require.NoError(t, err)
	require.Len(t, same.FollowUpActions.Data(), 1)
	assert.Equal(t, domain.FollowUpPending, same.FollowUpActions.Data()[0].Status)

	_, err = svc.UpdateFollowUpStatus(ctx, e.ID, 0, "done")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = svc.AddFollowUpAction(ctx, e.ID, FollowUpInput{Action: "  "})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestQueries(t *testing.T) {
	svc, db := setupEvaluations(t)
	ctx := context.Background()
	dinkes := seedUnit(t, db, "DINKES")
	pupr := seedUnit(t, db, "PUPR")

	r1 := seedRealization(t, db, dinkes.ID, 1, 100, 90)
	r2 := seedRealization(t, db, dinkes.ID, 1, 100, 40)
	r3 := seedRealization(t, db, pupr.ID, 1, 100, 70)
	r4 := seedRealization(t, db, pupr.ID, 2, 100, 10)

	e1, err := svc.Create(ctx, CreateInput{RealizationID: r1.ID, Assessment: assessment(domain.StatusExcellent)}, evaluator)
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{RealizationID: r2.ID, Assessment: assessment(domain.StatusPoor)}, evaluator)
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{RealizationID: r3.ID, Assessment: assessment(domain.StatusPoor)}, evaluator)
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{RealizationID: r4.ID, Assessment: assessment(domain.StatusVeryPoor)}, evaluator)
	require.NoError(t, err)

	byUnit, err := svc.ByUnitPeriod(ctx, dinkes.ID, 1, 2026)
	require.NoError(t, err)
	assert.Len(t, byUnit, 2)

	bySub, err := svc.BySubActivityPeriod(ctx, r1.SubActivityID, 1, 2026)
	require.NoError(t, err)
	require.Len(t, bySub, 1)
	assert.Equal(t, e1.ID, bySub[0].ID)

	poor, err := svc.ByStatus(ctx, domain.StatusPoor)
	require.NoError(t, err)
	assert.Len(t, poor, 2)

	low, err := svc.LowAbsorption(ctx, nil)
	require.NoError(t, err)
	require.Len(t, low, 3)
	assert.True(t, low[0].AbsorptionRate.Equal(decimal.NewFromInt(10)))
	assert.True(t, low[1].AbsorptionRate.Equal(decimal.NewFromInt(40)))
	assert.True(t, low[2].AbsorptionRate.Equal(decimal.NewFromInt(70)))

	threshold := decimal.NewFromInt(50)
	low, err = svc.LowAbsorption(ctx, &threshold)
	require.NoError(t, err)
	assert.Len(t, low, 2)

	items, total, err := svc.List(ctx, ListFilter{Month: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, items, 2)

	summary, err := svc.SummaryByUnit(ctx, 1, 2026)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	d := summary[0]
	assert.Equal(t, "DINKES", d.UnitCode)
	assert.EqualValues(t, 2, d.EvaluationCount)
	assert.True(t, d.AverageAbsorptionRate.Equal(decimal.NewFromInt(65)))
	assert.True(t, d.TotalBudget.Equal(decimal.NewFromInt(200)))
	assert.True(t, d.TotalRealization.Equal(decimal.NewFromInt(130)))
	assert.True(t, d.TotalRemaining.Equal(decimal.NewFromInt(70)))
	assert.EqualValues(t, 1, d.StatusBreakdown[domain.StatusExcellent])
	assert.EqualValues(t, 1, d.StatusBreakdown[domain.StatusPoor])
	assert.EqualValues(t, 0, d.StatusBreakdown[domain.StatusGood])

	all, err := svc.SummaryByUnit(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.EqualValues(t, 2, all[1].EvaluationCount)
	assert.EqualValues(t, 1, all[1].StatusBreakdown[domain.StatusVeryPoor])
}

func TestDelete(t *testing.T) {
	svc, db := setupEvaluations(t)
	ctx := context.Background()
	unit := seedUnit(t, db, "DINKES")
	r := seedRealization(t, db, unit.ID, 1, 100, 50)
	e, err := svc.Create(ctx, CreateInput{RealizationID: r.ID, Assessment: assessment(domain.StatusGood)}, evaluator)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, e.ID))
	assert.True(t, errors.Is(svc.Delete(ctx, e.ID), domain.ErrNotFound))

	_, err = svc.Create(ctx, CreateInput{RealizationID: r.ID, Assessment: assessment(domain.StatusGood)}, evaluator)
	assert.NoError(t, err)
}
