package database

import (
	"errors"
	"fmt"
	"testing"

	"anggaran-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: realizations.account_id")))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "x")
	require.Error(t, err)
}

func TestSQLite_RealizationKeyIsUnique(t *testing.T) {
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	r := domain.Realization{
		AccountID:         uuid.New(),
		SubActivityID:     uuid.New(),
		Month:             1,
		Year:              2026,
		BudgetAmount:      decimal.NewFromInt(100),
		RealizationAmount: decimal.NewFromInt(50),
	}
	first := r
	require.NoError(t, db.Create(&first).Error)

	second := r
	second.ID = uuid.Nil
	err = db.Create(&second).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}
