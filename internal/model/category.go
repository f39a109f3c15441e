package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is a named approval policy bucket: free-text approval criteria plus
// an optional spending cap. Categories are never deleted, only disabled.
type Category struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	CategoryName     string           `gorm:"type:varchar(100);not null;index" json:"category_name"`
	Description      string           `gorm:"type:varchar(4000)" json:"description"`
	MaximumAmount    *decimal.Decimal `gorm:"type:decimal(10,2)" json:"maximum_amount"`
	Enabled          bool             `gorm:"not null;default:true" json:"enabled"`
	RequestCount     int64            `gorm:"not null;default:0" json:"request_count"`
	ApprovalCriteria string           `gorm:"type:text" json:"approval_criteria"`
	CreatedAt        time.Time        `gorm:"index" json:"created_on"`
	UpdatedAt        time.Time        `json:"updated_on"`
	CreatedBy        string           `gorm:"type:varchar(100)" json:"created_by"`
	UpdatedBy        string           `gorm:"type:varchar(100)" json:"updated_by"`
}

// CategoryHistory is an append-only snapshot of a Category taken after every
// mutation, with a mandatory change comment.
type CategoryHistory struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	CategoryID       uint             `gorm:"not null;index" json:"category_id"`
	CategoryName     string           `gorm:"type:varchar(100)" json:"category_name"`
	Description      string           `gorm:"type:varchar(4000)" json:"description"`
	MaximumAmount    *decimal.Decimal `gorm:"type:decimal(10,2)" json:"maximum_amount"`
	Enabled          bool             `json:"enabled"`
	RequestCount     int64            `json:"request_count"`
	ApprovalCriteria string           `gorm:"type:text" json:"approval_criteria"`
	Comments         string           `gorm:"type:text;not null" json:"comments"`
	CreatedAt        time.Time        `json:"created_on"`
	CreatedBy        string           `gorm:"type:varchar(100)" json:"created_by"`
}

// NewCategoryHistory snapshots the post-mutation state of a category.
func NewCategoryHistory(c Category, comments, actor string) CategoryHistory {
	return CategoryHistory{
		CategoryID:       c.ID,
		CategoryName:     c.CategoryName,
		Description:      c.Description,
		MaximumAmount:    c.MaximumAmount,
		Enabled:          c.Enabled,
		RequestCount:     c.RequestCount,
		ApprovalCriteria: c.ApprovalCriteria,
		Comments:         comments,
		CreatedBy:        actor,
	}
}
