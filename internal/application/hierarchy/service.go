package hierarchy

import (
	"context"
	"errors"
	"strings"

	"anggaran-backend/internal/domain"
	"anggaran-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service maintains the five-level program hierarchy (Sector → Domain → Program → Activity → Sub-Activity).
type Service struct {
	DB *gorm.DB
}

type CreateInput struct {
	Level                domain.ProgramLevel
	ParentID             *uuid.UUID
	Code                 string
	Name                 string
	PerformanceGoal      string
	Indicator            string
	Unit                 string
	OrganizationalUnitID *uuid.UUID
}

// Create adds a node under a parent of the level directly above. The stored full code concatenates
// the parent's full code and the node's own code; it must be unique among the parent's children.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.ProgramNode, error) {
	if !in.Level.Valid() {
		return nil, domain.Validation("Invalid level: %q", in.Level)
	}
	code := strings.TrimSpace(in.Code)
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return nil, domain.Validation("code and name are required")
	}
	if in.Level != domain.LevelSubActivity && (in.PerformanceGoal != "" || in.Indicator != "" || in.Unit != "") {
		return nil, domain.Validation("performanceGoal, indicator and unit apply to sub-activities only")
	}

	node := &domain.ProgramNode{
		Level: in.Level,
		Code:  code,
		Name:  name,
	}
	if in.Level == domain.LevelSubActivity {
		node.PerformanceGoal = strings.TrimSpace(in.PerformanceGoal)
		node.Indicator = strings.TrimSpace(in.Indicator)
		node.Unit = strings.TrimSpace(in.Unit)
		node.OrganizationalUnitID = in.OrganizationalUnitID
	}

	parentFull := ""
	if in.Level == domain.LevelSector {
		if in.ParentID != nil {
			return nil, domain.Validation("sectors have no parent")
		}
	} else {
		if in.ParentID == nil {
			return nil, domain.Validation("parentId is required for level %s", in.Level)
		}
		parent, err := s.Get(ctx, *in.ParentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.NotFound("Parent node not found")
			}
			return nil, err
		}
		if parent.Level != in.Level.Parent() {
			return nil, domain.Validation("parent of a %s must be a %s, got %s", in.Level, in.Level.Parent(), parent.Level)
		}
		parentFull = parent.FullCode
		node.ParentID = &parent.ID
		if node.OrganizationalUnitID == nil && in.Level == domain.LevelSubActivity {
			node.OrganizationalUnitID = s.inheritUnit(ctx, parent)
		}
	}
	if node.OrganizationalUnitID != nil {
		if err := s.ensureUnit(ctx, *node.OrganizationalUnitID); err != nil {
			return nil, err
		}
	}
	node.FullCode = domain.JoinCode(parentFull, code)

	exists, err := s.siblingExists(ctx, node.ParentID, node.FullCode)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.Conflict("Code %s already exists under this parent", node.FullCode)
	}
	if err := s.DB.WithContext(ctx).Create(node).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, domain.Conflict("Code %s already exists under this parent", node.FullCode)
		}
		return nil, domain.Storage(err, "Failed to create %s", in.Level)
	}
	return node, nil
}

// inheritUnit reuses the unit of an existing sibling sub-activity so manually added rows keep reporting together.
func (s *Service) inheritUnit(ctx context.Context, parent *domain.ProgramNode) *uuid.UUID {
	var sibling domain.ProgramNode
	err := s.DB.WithContext(ctx).
		Where("parent_id = ? AND organizational_unit_id IS NOT NULL", parent.ID).
		Order("created_at ASC").First(&sibling).Error
	if err != nil {
		return nil
	}
	return sibling.OrganizationalUnitID
}

func (s *Service) ensureUnit(ctx context.Context, id uuid.UUID) error {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.OrganizationalUnit{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return domain.Storage(err, "Failed to check organizational unit")
	}
	if n == 0 {
		return domain.NotFound("Organizational unit not found")
	}
	return nil
}

func (s *Service) siblingExists(ctx context.Context, parentID *uuid.UUID, fullCode string) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&domain.ProgramNode{}).
		Where("parent_scope = ? AND full_code = ?", domain.ScopeOf(parentID), fullCode).
		Count(&n).Error
	if err != nil {
		return false, domain.Storage(err, "Failed to check sibling codes")
	}
	return n > 0, nil
}

type UpdateInput struct {
	Name                 *string
	PerformanceGoal      *string
	Indicator            *string
	Unit                 *string
	OrganizationalUnitID *uuid.UUID
}

// Update edits descriptive fields. Codes and parents are structural and cannot change.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*domain.ProgramNode, error) {
	node, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domain.Validation("name must not be empty")
		}
		node.Name = name
	}
	subOnly := in.PerformanceGoal != nil || in.Indicator != nil || in.Unit != nil || in.OrganizationalUnitID != nil
	if subOnly && node.Level != domain.LevelSubActivity {
		return nil, domain.Validation("performanceGoal, indicator, unit and organizationalUnitId apply to sub-activities only")
	}
	if in.PerformanceGoal != nil {
		node.PerformanceGoal = strings.TrimSpace(*in.PerformanceGoal)
	}
	if in.Indicator != nil {
		node.Indicator = strings.TrimSpace(*in.Indicator)
	}
	if in.Unit != nil {
		node.Unit = strings.TrimSpace(*in.Unit)
	}
	if in.OrganizationalUnitID != nil {
		if err := s.ensureUnit(ctx, *in.OrganizationalUnitID); err != nil {
			return nil, err
		}
		node.OrganizationalUnitID = in.OrganizationalUnitID
	}
	if err := s.DB.WithContext(ctx).Save(node).Error; err != nil {
		return nil, domain.Storage(err, "Failed to update %s", node.Level)
	}
	return node, nil
}

// Delete removes a node with no children. Sub-activities referenced by allocations or realizations are kept.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	node, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	db := s.DB.WithContext(ctx)
	var children int64
	if err := db.Model(&domain.ProgramNode{}).Where("parent_id = ?", id).Count(&children).Error; err != nil {
		return domain.Storage(err, "Failed to count children")
	}
	if children > 0 {
		return domain.Invariant("%s %s still has %d children", node.Level, node.FullCode, children)
	}
	if node.Level == domain.LevelSubActivity {
		var refs int64
		if err := db.Model(&domain.Allocation{}).Where("sub_activity_id = ?", id).Count(&refs).Error; err != nil {
			return domain.Storage(err, "Failed to check allocations")
		}
		if refs == 0 {
			if err := db.Model(&domain.Realization{}).Where("sub_activity_id = ?", id).Count(&refs).Error; err != nil {
				return domain.Storage(err, "Failed to check realizations")
			}
		}
		if refs > 0 {
			return domain.Invariant("Sub-activity %s is referenced by budget records", node.FullCode)
		}
	}
	if err := db.Delete(node).Error; err != nil {
		return domain.Storage(err, "Failed to delete %s", node.Level)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.ProgramNode, error) {
	var node domain.ProgramNode
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&node).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, domain.NotFound("Program node not found")
		}
		return nil, domain.Storage(err, "Failed to load program node")
	}
	return &node, nil
}

// GetSubActivity loads a node and checks it is a Sub-Activity.
func (s *Service) GetSubActivity(ctx context.Context, id uuid.UUID) (*domain.ProgramNode, error) {
	node, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound("Sub-activity not found")
		}
		return nil, err
	}
	if node.Level != domain.LevelSubActivity {
		return nil, domain.Validation("node %s is a %s, not a sub-activity", node.FullCode, node.Level)
	}
	return node, nil
}

type ListFilter struct {
	Level    domain.ProgramLevel
	ParentID *uuid.UUID
	UnitID   *uuid.UUID
	Search   string
	Page     int
	Limit    int
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.ProgramNode, int64, error) {
	q := s.DB.WithContext(ctx).Model(&domain.ProgramNode{})
	if f.Level != "" {
		if !f.Level.Valid() {
			return nil, 0, domain.Validation("Invalid level: %q", f.Level)
		}
		q = q.Where("level = ?", f.Level)
	}
	if f.ParentID != nil {
		q = q.Where("parent_id = ?", *f.ParentID)
	}
	if f.UnitID != nil {
		q = q.Where("organizational_unit_id = ?", *f.UnitID)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR full_code LIKE ?)", like, like)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, domain.Storage(err, "Failed to count program nodes")
	}
	nodes := make([]domain.ProgramNode, 0)
	if err := q.Scopes(database.Paginate(f.Page, f.Limit)).Order("full_code ASC").Find(&nodes).Error; err != nil {
		return nil, 0, domain.Storage(err, "Failed to fetch program nodes")
	}
	return nodes, total, nil
}

// SubActivityIDsUnderUnit is the reverse lookup used by allocation and evaluation filters.
func (s *Service) SubActivityIDsUnderUnit(ctx context.Context, unitID uuid.UUID) ([]uuid.UUID, error) {
	return SubActivityIDsUnderUnit(ctx, s.DB, unitID)
}

func SubActivityIDsUnderUnit(ctx context.Context, db *gorm.DB, unitID uuid.UUID) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	err := db.WithContext(ctx).Model(&domain.ProgramNode{}).
		Where("level = ? AND organizational_unit_id = ?", domain.LevelSubActivity, unitID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, domain.Storage(err, "Failed to look up sub-activities for unit")
	}
	return ids, nil
}

// TreeNode is a node with its children, built on read from parent ids.
type TreeNode struct {
	domain.ProgramNode
	Children []*TreeNode `json:"children"`
}

// Tree returns the hierarchy rooted at sectors, or at rootID when given.
func (s *Service) Tree(ctx context.Context, rootID *uuid.UUID) ([]*TreeNode, error) {
	var nodes []domain.ProgramNode
	if err := s.DB.WithContext(ctx).Order("full_code ASC").Find(&nodes).Error; err != nil {
		return nil, domain.Storage(err, "Failed to load program hierarchy")
	}
	byID := make(map[uuid.UUID]*TreeNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = &TreeNode{ProgramNode: n, Children: []*TreeNode{}}
	}
	roots := make([]*TreeNode, 0)
	for _, n := range nodes {
		tn := byID[n.ID]
		if n.ParentID == nil {
			roots = append(roots, tn)
			continue
		}
		if parent, ok := byID[*n.ParentID]; ok {
			parent.Children = append(parent.Children, tn)
		}
	}
	if rootID != nil {
		tn, ok := byID[*rootID]
		if !ok {
			return nil, domain.NotFound("Program node not found")
		}
		return []*TreeNode{tn}, nil
	}
	return roots, nil
}
