package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/infrastructure/database"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

func setupImporter(t *testing.T, chunk int) *Importer {
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return &Importer{DB: db, ChunkSize: chunk, Log: zerolog.Nop()}
}

var accountRows = [][]string{
	{"Kode", "", "", "", "", "Uraian"},
	{"4", "", "", "", "", "PENDAPATAN DAERAH"},
	{"4", "1", "", "", "", "PENDAPATAN ASLI DAERAH"},
	{"4", "1", "1", "", "", "Pajak Daerah", "Pajak yang dipungut daerah"},
	{"4", "1", "1", "", "", "Pajak Daerah Lainnya"},
	{"4", "1", "2", "", "", ""},
	{"5", "", "", "", "", "BELANJA"},
}

func TestBuildAccounts(t *testing.T) {
	built, skipped := BuildAccounts(accountRows)

	require.Len(t, built, 5)
	require.Len(t, skipped, 2)
	assert.Contains(t, skipped[0], "row 1")
	assert.Contains(t, skipped[1], "4.1.2")

	byCode := map[string]AccountRow{}
	for _, a := range built {
		byCode[a.FullCode] = a
	}
	assert.Equal(t, 1, byCode["4"].Level)
	assert.False(t, byCode["4"].IsLeaf)
	assert.False(t, byCode["4.1"].IsLeaf)
	assert.True(t, byCode["4.1.1"].IsLeaf)
	assert.Equal(t, "Pajak yang dipungut daerah", byCode["4.1.1"].Description)
	assert.Equal(t, "BELANJA", byCode["5"].Description)

	dup, ok := byCode["4.1.1_1"]
	require.True(t, ok)
	assert.Equal(t, "1_1", dup.Code)
	assert.Equal(t, "Pajak Daerah Lainnya_1", dup.Name)
	assert.Equal(t, 3, dup.Level)
	assert.True(t, dup.IsLeaf)
}

func TestBuildAccounts_SuffixIsDeterministic(t *testing.T) {
	rows := [][]string{
		{"6", "", "", "", "", "A"},
		{"6", "", "", "", "", "B"},
		{"6", "", "", "", "", "C"},
	}
	first, _ := BuildAccounts(rows)
	second, _ := BuildAccounts(rows)
	assert.Equal(t, first, second)
	assert.Equal(t, "6", first[0].FullCode)
	assert.Equal(t, "6_1", first[1].FullCode)
	assert.Equal(t, "6_2", first[2].FullCode)
	assert.Equal(t, "C_2", first[2].Name)
}

func TestBuildProgram(t *testing.T) {
	rows := [][]string{
		{"1", "01", "", "", "", "Domain"},
		{"1", "", "", "", "", "Sektor"},
		{"1", "01", "02", "", "", "Program"},
		{"1", "01", "02", "2.01", "", "Kegiatan"},
		{"1", "01", "02", "2.01", "0001", "Sub Kegiatan", "Sasaran", "Jumlah dokumen", "Dokumen", "DINKES"},
		{"1", "01", "", "", "", "Domain ulang"},
		{"x", "", "", "", "", "Header"},
	}
	built, skipped := BuildProgram(rows)
	require.Len(t, built, 5)
	require.Len(t, skipped, 2)

	assert.Equal(t, domain.LevelSector, built[0].Level)
	assert.Equal(t, domain.LevelDomain, built[1].Level)
	sub := built[4]
	assert.Equal(t, domain.LevelSubActivity, sub.Level)
	assert.Equal(t, "1.01.02.2.01.0001", sub.FullCode)
	assert.Equal(t, "0001", sub.Code())
	assert.Equal(t, "1.01.02.2.01", sub.ParentFullCode())
	assert.Equal(t, "Sasaran", sub.PerformanceGoal)
	assert.Equal(t, "DINKES", sub.OrgUnitCode)
}

func TestImportAccounts_PersistsAndIsIdempotent(t *testing.T) {
	im := setupImporter(t, 2)
	ctx := context.Background()

	report, err := im.ImportAccounts(ctx, accountRows)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Created["accounts"])
	assert.Equal(t, 2, report.Skipped)

	var stored []domain.Account
	require.NoError(t, im.DB.Order("full_code").Find(&stored).Error)
	require.Len(t, stored, 5)
	byCode := map[string]domain.Account{}
	for _, a := range stored {
		byCode[a.FullCode] = a
	}
	require.NotNil(t, byCode["4.1"].ParentID)
	assert.Equal(t, byCode["4"].ID, *byCode["4.1"].ParentID)
	assert.Equal(t, byCode["4.1"].ID, *byCode["4.1.1_1"].ParentID)
	assert.False(t, byCode["4.1"].IsLeaf)
	assert.True(t, byCode["5"].IsLeaf)

	again, err := im.ImportAccounts(ctx, accountRows)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created["accounts"])
	assert.Equal(t, 7, again.Skipped)

	var n int64
	im.DB.Model(&domain.Account{}).Count(&n)
	assert.EqualValues(t, 5, n)
}

func TestImportAccounts_ExtendsExistingTree(t *testing.T) {
	im := setupImporter(t, 100)
	ctx := context.Background()
	_, err := im.ImportAccounts(ctx, [][]string{{"5", "", "", "", "", "BELANJA"}})
	require.NoError(t, err)

	report, err := im.ImportAccounts(ctx, [][]string{
		{"5", "1", "", "", "", "BELANJA OPERASI"},
		{"7", "1", "", "", "", "Orphan"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created["accounts"])
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "parent 7")

	var root domain.Account
	require.NoError(t, im.DB.Where("full_code = ?", "5").First(&root).Error)
	assert.False(t, root.IsLeaf)
}

func TestImportProgram_ChunksAndUnits(t *testing.T) {
	im := setupImporter(t, 1)
	ctx := context.Background()
	unit := domain.OrganizationalUnit{Code: "DINKES", Name: "Dinas Kesehatan"}
	require.NoError(t, im.DB.Create(&unit).Error)

	rows := [][]string{
		{"1", "", "", "", "", "Sektor"},
		{"1", "01", "", "", "", "Domain"},
		{"1", "01", "02", "", "", "Program"},
		{"1", "01", "02", "2.01", "", "Kegiatan"},
		{"1", "01", "02", "2.01", "0001", "Sub A", "", "", "", "DINKES"},
		{"1", "01", "02", "2.01", "0002", "Sub B", "", "", "", "UNKNOWN"},
		{"2", "01", "", "", "", "No parent"},
	}
	report, err := im.ImportProgram(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created["sectors"])
	assert.Equal(t, 1, report.Created["domains"])
	assert.Equal(t, 1, report.Created["programs"])
	assert.Equal(t, 1, report.Created["activities"])
	assert.Equal(t, 2, report.Created["subActivities"])
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, report.Errors, 2)

	var subA domain.ProgramNode
	require.NoError(t, im.DB.Where("code = ?", "0001").First(&subA).Error)
	require.NotNil(t, subA.OrganizationalUnitID)
	assert.Equal(t, unit.ID, *subA.OrganizationalUnitID)
	assert.Equal(t, "1.01.02.2.01.0001", subA.FullCode)

	again, err := im.ImportProgram(ctx, rows[:5])
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created["subActivities"])
	assert.Equal(t, 5, again.Skipped)
}

func TestImportProgram_SameCodeUnderDifferentParents(t *testing.T) {
	im := setupImporter(t, 100)
	report, err := im.ImportProgram(context.Background(), [][]string{
		{"1", "", "", "", "", "Sektor 1"},
		{"2", "", "", "", "", "Sektor 2"},
		{"1", "01", "", "", "", "Domain"},
		{"2", "01", "", "", "", "Domain"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created["domains"])
}

func TestImport_FailedChunkDoesNotRollBackEarlierChunks(t *testing.T) {
	im := setupImporter(t, 1)
	ctx := context.Background()
	require.NoError(t, im.DB.Callback().Create().Before("gorm:create").Register("fail_on_six", func(tx *gorm.DB) {
		if acc, ok := tx.Statement.Dest.(*[]domain.Account); ok {
			for _, a := range *acc {
				if strings.HasPrefix(a.FullCode, "6") {
					_ = tx.AddError(assert.AnError)
				}
			}
		}
	}))

	report, err := im.ImportAccounts(ctx, [][]string{
		{"5", "", "", "", "", "BELANJA"},
		{"6", "", "", "", "", "PEMBIAYAAN"},
		{"7", "", "", "", "", "LAINNYA"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created["accounts"])
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "accounts 2-2")
}

func failCreate(t *testing.T, db *gorm.DB, name string, match func(tx *gorm.DB) bool, after func()) {
	t.Helper()
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if match(tx) {
			_ = tx.AddError(assert.AnError)
			if after != nil {
				after()
			}
		}
	}))
}

func createsAccount(code string) func(tx *gorm.DB) bool {
	return func(tx *gorm.DB) bool {
		if acc, ok := tx.Statement.Dest.(*[]domain.Account); ok {
			for _, a := range *acc {
				if a.FullCode == code {
					return true
				}
			}
		}
		return false
	}
}

func TestImportAccounts_ChildOfFailedParentIsSkipped(t *testing.T) {
	im := setupImporter(t, 1)
	failCreate(t, im.DB, "fail_account_6", createsAccount("6"), nil)

	report, err := im.ImportAccounts(context.Background(), [][]string{
		{"6", "", "", "", "", "PEMBIAYAAN"},
		{"6", "1", "", "", "", "PENERIMAAN PEMBIAYAAN"},
		{"7", "", "", "", "", "LAINNYA"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created["accounts"])
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 2)
	assert.Contains(t, report.Errors[1], "account 6.1 skipped: parent 6 was not saved")

	var n int64
	im.DB.Model(&domain.Account{}).Where("full_code LIKE ?", "6%").Count(&n)
	assert.Zero(t, n)
}

func TestImportAccounts_ChildBeforeParentInFile(t *testing.T) {
	im := setupImporter(t, 100)
	report, err := im.ImportAccounts(context.Background(), [][]string{
		{"4", "1", "", "", "", "PAD"},
		{"4", "", "", "", "", "PENDAPATAN"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created["accounts"])
	assert.Zero(t, report.Skipped)

	var parent, child domain.Account
	require.NoError(t, im.DB.Where("full_code = ?", "4").First(&parent).Error)
	require.NoError(t, im.DB.Where("full_code = ?", "4.1").First(&child).Error)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)
	assert.False(t, parent.IsLeaf)
	assert.True(t, child.IsLeaf)
}

func TestImportProgram_ChildOfFailedParentIsSkipped(t *testing.T) {
	im := setupImporter(t, 1)
	failCreate(t, im.DB, "fail_domain", func(tx *gorm.DB) bool {
		nodes, ok := tx.Statement.Dest.(*[]domain.ProgramNode)
		return ok && len(*nodes) > 0 && (*nodes)[0].FullCode == "1.01"
	}, nil)

	report, err := im.ImportProgram(context.Background(), [][]string{
		{"1", "", "", "", "", "Sektor"},
		{"1", "01", "", "", "", "Domain"},
		{"1", "01", "02", "", "", "Program"},
		{"1", "02", "", "", "", "Domain lain"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created["sectors"])
	assert.Equal(t, 1, report.Created["domains"])
	assert.Equal(t, 0, report.Created["programs"])
	assert.Equal(t, 1, report.Skipped)
	assert.Contains(t, strings.Join(report.Errors, "\n"), "program 1.01.02 skipped: parent 1.01 was not saved")

	var n int64
	im.DB.Model(&domain.ProgramNode{}).Where("level = ?", domain.LevelProgram).Count(&n)
	assert.Zero(t, n)
}

func TestImport_UnreachableDatabaseAbortsBatch(t *testing.T) {
	im := setupImporter(t, 1)
	sqlDB, err := im.DB.DB()
	require.NoError(t, err)
	failCreate(t, im.DB, "fail_and_close", createsAccount("6"), func() { _ = sqlDB.Close() })

	report, err := im.ImportAccounts(context.Background(), [][]string{
		{"5", "", "", "", "", "BELANJA"},
		{"6", "", "", "", "", "PEMBIAYAAN"},
		{"7", "", "", "", "", "LAINNYA"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStorage))
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Created["accounts"])
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "accounts 2-2")
}

func TestParseRows(t *testing.T) {
	rows, err := ParseRows(strings.NewReader("4,,Pendapatan\n4,1,PAD,extra\n"), ".csv")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"4", "1", "PAD", "extra"}, rows[1])

	_, err = ParseRows(strings.NewReader(""), ".pdf")
	assert.Error(t, err)
}

func TestParseRows_XLSX(t *testing.T) {
	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	require.NoError(t, book.SetSheetRow(sheet, "A1", &[]interface{}{"4", "", "", "", "", "PENDAPATAN"}))
	require.NoError(t, book.SetSheetRow(sheet, "A2", &[]interface{}{"4", "1", "", "", "", "PAD"}))
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	rows, err := ParseRows(buf, ".xlsx")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	built, skipped := BuildAccounts(rows)
	assert.Empty(t, skipped)
	require.Len(t, built, 2)
	assert.Equal(t, "4.1", built[1].FullCode)
}
