package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProgramLevel is one of the five fixed levels of the program hierarchy.
type ProgramLevel string

const (
	LevelSector      ProgramLevel = "sector"
	LevelDomain      ProgramLevel = "domain"
	LevelProgram     ProgramLevel = "program"
	LevelActivity    ProgramLevel = "activity"
	LevelSubActivity ProgramLevel = "sub_activity"
)

// ProgramLevels in depth order (Sector first).
var ProgramLevels = []ProgramLevel{LevelSector, LevelDomain, LevelProgram, LevelActivity, LevelSubActivity}

// Depth is 1 for Sector through 5 for SubActivity, 0 for unknown values.
func (l ProgramLevel) Depth() int {
	for i, v := range ProgramLevels {
		if v == l {
			return i + 1
		}
	}
	return 0
}

func (l ProgramLevel) Valid() bool {
	return l.Depth() > 0
}

// Parent returns the level directly above, or "" for Sector.
func (l ProgramLevel) Parent() ProgramLevel {
	d := l.Depth()
	if d <= 1 {
		return ""
	}
	return ProgramLevels[d-2]
}

// LevelAt returns the level for a 1-based depth.
func LevelAt(depth int) ProgramLevel {
	if depth < 1 || depth > len(ProgramLevels) {
		return ""
	}
	return ProgramLevels[depth-1]
}

const rootScope = "root"

// ProgramNode is one Sector/Domain/Program/Activity/SubActivity. Code is the level's own segment;
// FullCode concatenates every ancestor code. Uniqueness is (parent, full code), so identical codes
// under different parents are allowed.
type ProgramNode struct {
	ID                   uuid.UUID    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Level                ProgramLevel `gorm:"column:level;type:varchar(20);not null;index" json:"level"`
	ParentID             *uuid.UUID   `gorm:"column:parent_id;type:uuid;index" json:"parentId"`
	ParentScope          string       `gorm:"column:parent_scope;type:varchar(64);not null;uniqueIndex:idx_program_sibling_code" json:"-"`
	Code                 string       `gorm:"column:code;type:varchar(64);not null" json:"code"`
	FullCode             string       `gorm:"column:full_code;type:varchar(255);not null;uniqueIndex:idx_program_sibling_code" json:"fullCode"`
	Name                 string       `gorm:"column:name;not null" json:"name"`
	PerformanceGoal      string       `gorm:"column:performance_goal" json:"performanceGoal,omitempty"`
	Indicator            string       `gorm:"column:indicator" json:"indicator,omitempty"`
	Unit                 string       `gorm:"column:unit" json:"unit,omitempty"`
	OrganizationalUnitID *uuid.UUID   `gorm:"column:organizational_unit_id;type:uuid;index" json:"organizationalUnitId,omitempty"`
	CreatedAt            time.Time    `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt            time.Time    `gorm:"column:updated_at" json:"updatedAt"`
}

func (ProgramNode) TableName() string {
	return "program_nodes"
}

func (n *ProgramNode) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.ParentScope = ScopeOf(n.ParentID)
	return nil
}

// ScopeOf is the value stored in parent_scope: the parent id, or "root" for sectors.
// A NULL parent would not participate in the unique index on Postgres.
func ScopeOf(parentID *uuid.UUID) string {
	if parentID == nil {
		return rootScope
	}
	return parentID.String()
}

// OrganizationalUnit is the descriptive record of a unit responsible for Sub-Activities.
// It is owned by the personnel/organization service; this module only reads it.
type OrganizationalUnit struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Code      string    `gorm:"column:code;type:varchar(64);not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (OrganizationalUnit) TableName() string {
	return "organizational_units"
}

func (o *OrganizationalUnit) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
