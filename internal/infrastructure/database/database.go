package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"anggaran-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open opens a GORM DB for the configured driver.
// Postgres uses PreferSimpleProtocol so it works behind poolers (PgBouncer) without prepared-statement clashes.
// TranslateError maps driver uniqueness failures to gorm.ErrDuplicatedKey where the dialect supports it.
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true}
	switch driver {
	case "", "postgres":
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), cfg)
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer; serialize so unique checks see each other.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", driver)
	}
}

// Models lists every table owned by the ledger.
func Models() []interface{} {
	return []interface{}{
		&domain.OrganizationalUnit{},
		&domain.Account{},
		&domain.ProgramNode{},
		&domain.Allocation{},
		&domain.Realization{},
		&domain.Evaluation{},
	}
}

// AutoMigrate creates/updates the ledger tables and their uniqueness constraints.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// Ping checks connectivity; the import treats a failed ping after a chunk error as fatal.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a storage-level uniqueness rejection.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsNotFound reports whether err is gorm's record-not-found.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
