package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is a chart-of-accounts node. The tree is stored as an arena keyed by ID with an optional
// parent id; children and leaf status are derived from parent_id, never stored as a child list.
type Account struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Code        string     `gorm:"column:code;type:varchar(64);not null" json:"code"`
	FullCode    string     `gorm:"column:full_code;type:varchar(255);not null;uniqueIndex" json:"fullCode"`
	Name        string     `gorm:"column:name;not null" json:"name"`
	Description string     `gorm:"column:description" json:"description"`
	Level       int        `gorm:"column:level;not null;index" json:"level"`
	ParentID    *uuid.UUID `gorm:"column:parent_id;type:uuid;index" json:"parentId"`
	IsLeaf      bool       `gorm:"column:is_leaf;not null" json:"isLeaf"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updatedAt"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// JoinCode builds a dotted full code from a parent full code and a segment.
func JoinCode(parentFullCode, code string) string {
	if parentFullCode == "" {
		return code
	}
	return parentFullCode + "." + code
}

// CodeLevel is the number of dot-separated segments in a full code.
func CodeLevel(fullCode string) int {
	if fullCode == "" {
		return 0
	}
	return strings.Count(fullCode, ".") + 1
}

// ParentCode returns the full code of the parent segment path ("" for a root).
func ParentCode(fullCode string) string {
	i := strings.LastIndex(fullCode, ".")
	if i < 0 {
		return ""
	}
	return fullCode[:i]
}
