package units

import (
	"context"
	"strings"

	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service reads organizational units. Units are maintained by the organization service;
// here they are only listed and resolved.
type Service struct {
	DB *gorm.DB
}

func (s *Service) List(ctx context.Context, search string, page, limit int) ([]domain.OrganizationalUnit, int64, error) {
	q := s.DB.WithContext(ctx).Model(&domain.OrganizationalUnit{})
	if term := strings.TrimSpace(search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(code) LIKE ?)", like, like)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, domain.Storage(err, "Failed to count organizational units")
	}
	items := make([]domain.OrganizationalUnit, 0)
	if err := q.Scopes(database.Paginate(page, limit)).Order("code ASC").Find(&items).Error; err != nil {
		return nil, 0, domain.Storage(err, "Failed to fetch organizational units")
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.OrganizationalUnit, error) {
	var u domain.OrganizationalUnit
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, domain.NotFound("Organizational unit not found")
		}
		return nil, domain.Storage(err, "Failed to load organizational unit")
	}
	return &u, nil
}

// CodeIndex maps unit codes (upper-cased) to ids, for resolving spreadsheet references.
func CodeIndex(ctx context.Context, db *gorm.DB) (map[string]uuid.UUID, error) {
	var list []domain.OrganizationalUnit
	if err := db.WithContext(ctx).Find(&list).Error; err != nil {
		return nil, domain.Storage(err, "Failed to fetch organizational units")
	}
	idx := make(map[string]uuid.UUID, len(list))
	for _, u := range list {
		idx[strings.ToUpper(strings.TrimSpace(u.Code))] = u.ID
	}
	return idx, nil
}
