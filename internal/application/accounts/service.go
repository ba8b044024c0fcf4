package accounts

import (
	"context"
	"strings"

	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service maintains the chart-of-accounts tree.
type Service struct {
	DB *gorm.DB
}

type CreateInput struct {
	Code        string
	Name        string
	Description string
	ParentID    *uuid.UUID
}

// Create adds a node under ParentID (or as a root). FullCode and Level are derived from the parent,
// and the parent stops being a leaf in the same transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Account, error) {
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return nil, domain.Validation("code and name are required")
	}
	if strings.Contains(code, ".") {
		return nil, domain.Validation("code must be a single segment without '.'")
	}

	account := &domain.Account{
		Code:        code,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		IsLeaf:      true,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parentFull := ""
		if in.ParentID != nil {
			var parent domain.Account
			if err := tx.Where("id = ?", *in.ParentID).First(&parent).Error; err != nil {
				if database.IsNotFound(err) {
					return domain.NotFound("Parent account not found")
				}
				return domain.Storage(err, "Failed to load parent account")
			}
			parentFull = parent.FullCode
			account.ParentID = &parent.ID
			if parent.IsLeaf {
				if err := tx.Model(&parent).Update("is_leaf", false).Error; err != nil {
					return domain.Storage(err, "Failed to update parent account")
				}
			}
		}
		account.FullCode = domain.JoinCode(parentFull, code)
		account.Level = domain.CodeLevel(account.FullCode)

		var n int64
		if err := tx.Model(&domain.Account{}).Where("full_code = ?", account.FullCode).Count(&n).Error; err != nil {
			return domain.Storage(err, "Failed to check account code")
		}
		if n > 0 {
			return domain.Conflict("Account %s already exists", account.FullCode)
		}
		if err := tx.Create(account).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return domain.Conflict("Account %s already exists", account.FullCode)
			}
			return domain.Storage(err, "Failed to create account")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

type UpdateInput struct {
	Name        *string
	Description *string
}

// Update changes descriptive fields only; codes and parent are structural and fixed.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*domain.Account, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domain.Validation("name must not be empty")
		}
		account.Name = name
	}
	if in.Description != nil {
		account.Description = strings.TrimSpace(*in.Description)
	}
	if err := s.DB.WithContext(ctx).Save(account).Error; err != nil {
		return nil, domain.Storage(err, "Failed to update account")
	}
	return account, nil
}

// Delete removes a node without children and re-derives its parent's leaf flag.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account domain.Account
		if err := tx.Where("id = ?", id).First(&account).Error; err != nil {
			if database.IsNotFound(err) {
				return domain.NotFound("Account not found")
			}
			return domain.Storage(err, "Failed to load account")
		}
		var children int64
		if err := tx.Model(&domain.Account{}).Where("parent_id = ?", id).Count(&children).Error; err != nil {
			return domain.Storage(err, "Failed to count child accounts")
		}
		if children > 0 {
			return domain.Invariant("Account %s has %d child accounts", account.FullCode, children)
		}
		if err := tx.Delete(&account).Error; err != nil {
			return domain.Storage(err, "Failed to delete account")
		}
		if account.ParentID != nil {
			var siblings int64
			if err := tx.Model(&domain.Account{}).Where("parent_id = ?", *account.ParentID).Count(&siblings).Error; err != nil {
				return domain.Storage(err, "Failed to count sibling accounts")
			}
			if siblings == 0 {
				if err := tx.Model(&domain.Account{}).Where("id = ?", *account.ParentID).Update("is_leaf", true).Error; err != nil {
					return domain.Storage(err, "Failed to update parent account")
				}
			}
		}
		return nil
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, domain.NotFound("Account not found")
		}
		return nil, domain.Storage(err, "Failed to load account")
	}
	return &account, nil
}

func (s *Service) GetByFullCode(ctx context.Context, fullCode string) (*domain.Account, error) {
	var account domain.Account
	if err := s.DB.WithContext(ctx).Where("full_code = ?", fullCode).First(&account).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, domain.NotFound("Account %s not found", fullCode)
		}
		return nil, domain.Storage(err, "Failed to load account")
	}
	return &account, nil
}

type ListFilter struct {
	ParentID *uuid.UUID
	RootOnly bool
	Level    int
	LeafOnly bool
	Search   string
	Page     int
	Limit    int
}

// List returns accounts ordered by full code, with the unpaged total.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Account, int64, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Account{})
	switch {
	case f.ParentID != nil:
		q = q.Where("parent_id = ?", *f.ParentID)
	case f.RootOnly:
		q = q.Where("parent_id IS NULL")
	}
	if f.Level > 0 {
		q = q.Where("level = ?", f.Level)
	}
	if f.LeafOnly {
		q = q.Where("is_leaf = ?", true)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR full_code LIKE ?)", like, like)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, domain.Storage(err, "Failed to count accounts")
	}
	accounts := make([]domain.Account, 0)
	if err := q.Scopes(database.Paginate(f.Page, f.Limit)).Order("full_code ASC").Find(&accounts).Error; err != nil {
		return nil, 0, domain.Storage(err, "Failed to fetch accounts")
	}
	return accounts, total, nil
}

// Children lists the direct children of a node.
func (s *Service) Children(ctx context.Context, id uuid.UUID) ([]domain.Account, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	children := make([]domain.Account, 0)
	if err := s.DB.WithContext(ctx).Where("parent_id = ?", id).Order("full_code ASC").Find(&children).Error; err != nil {
		return nil, domain.Storage(err, "Failed to fetch child accounts")
	}
	return children, nil
}

// RecomputeLeaves re-derives is_leaf for the whole tree from parent_id in one pass and returns
// how many rows changed.
func (s *Service) RecomputeLeaves(ctx context.Context) (int, error) {
	return RecomputeLeaves(ctx, s.DB)
}

// RecomputeLeaves is shared with the hierarchy import.
func RecomputeLeaves(ctx context.Context, db *gorm.DB) (int, error) {
	type row struct {
		ID       uuid.UUID
		ParentID *uuid.UUID
		IsLeaf   bool
	}
	var rows []row
	if err := db.WithContext(ctx).Model(&domain.Account{}).Select("id, parent_id, is_leaf").Scan(&rows).Error; err != nil {
		return 0, domain.Storage(err, "Failed to load accounts")
	}
	hasChild := make(map[uuid.UUID]bool, len(rows))
	for _, r := range rows {
		if r.ParentID != nil {
			hasChild[*r.ParentID] = true
		}
	}
	var toLeaf, toBranch []uuid.UUID
	for _, r := range rows {
		leaf := !hasChild[r.ID]
		if leaf == r.IsLeaf {
			continue
		}
		if leaf {
			toLeaf = append(toLeaf, r.ID)
		} else {
			toBranch = append(toBranch, r.ID)
		}
	}
	for _, batch := range []struct {
		ids  []uuid.UUID
		leaf bool
	}{{toLeaf, true}, {toBranch, false}} {
		for start := 0; start < len(batch.ids); start += 500 {
			end := min(start+500, len(batch.ids))
			if err := db.WithContext(ctx).Model(&domain.Account{}).
				Where("id IN ?", batch.ids[start:end]).
				Update("is_leaf", batch.leaf).Error; err != nil {
				return 0, domain.Storage(err, "Failed to update leaf flags")
			}
		}
	}
	return len(toLeaf) + len(toBranch), nil
}
