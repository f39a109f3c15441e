package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Request status enum constants
const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusRejected = "Rejected"
)

// Approval type enum constants
const (
	ApprovalTypeAuto   = "Auto"
	ApprovalTypeManual = "Manual"
)

// FilterAll is the literal query value that disables a status/category filter.
const FilterAll = "all"

// NormalizeStatus maps a caller-supplied status string onto the closed status
// set, case-insensitively. Anything outside the set is a validation error.
func NormalizeStatus(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "approved":
		return StatusApproved, nil
	case "rejected":
		return StatusRejected, nil
	default:
		return "", NewValidationError(fmt.Sprintf("invalid status %q: must be one of Pending, Approved, Rejected", s))
	}
}

// IsFilterAll reports whether a filter value disables filtering ("all", any case).
func IsFilterAll(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), FilterAll)
}

// Request represents one invoice-derived approval case tracked through
// Pending/Approved/Rejected. The category name is denormalized on purpose —
// requests keep the name they were filed under even if the category changes.
type Request struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	UserID        string           `gorm:"type:varchar(25);not null;index" json:"user_id"`
	TotalAmount   *decimal.Decimal `gorm:"type:decimal(10,2)" json:"total_amount"`
	InvoiceDate   *string          `gorm:"type:varchar(25)" json:"invoice_date"`
	InvoiceNumber *string          `gorm:"type:varchar(50)" json:"invoice_number"`
	CategoryName  *string          `gorm:"type:varchar(100);index" json:"category_name"`
	CurrentStatus string           `gorm:"type:varchar(25);not null;default:'Pending';index" json:"current_status"`
	Comments      string           `gorm:"type:varchar(4000)" json:"comments"`
	ApprovalType  string           `gorm:"type:varchar(25);not null;default:'Auto'" json:"approval_type"`
	CreatedAt     time.Time        `gorm:"index" json:"created_on"`
	UpdatedAt     time.Time        `json:"updated_on"`
	CreatedBy     string           `gorm:"type:varchar(25)" json:"created_by"`
	UpdatedBy     string           `gorm:"type:varchar(25)" json:"updated_by"`
}

// RequestHistory is an append-only snapshot of a Request taken after every
// creation or status change. Rows are never updated or deleted.
type RequestHistory struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	RequestID     uint             `gorm:"not null;index" json:"request_id"`
	UserID        string           `gorm:"type:varchar(25);not null" json:"user_id"`
	TotalAmount   *decimal.Decimal `gorm:"type:decimal(10,2)" json:"total_amount"`
	InvoiceDate   *string          `gorm:"type:varchar(25)" json:"invoice_date"`
	InvoiceNumber *string          `gorm:"type:varchar(50)" json:"invoice_number"`
	CategoryName  *string          `gorm:"type:varchar(100)" json:"category_name"`
	CurrentStatus string           `gorm:"type:varchar(25)" json:"current_status"`
	Comments      string           `gorm:"type:varchar(4000)" json:"comments"`
	ApprovalType  string           `gorm:"type:varchar(25)" json:"approval_type"`
	CreatedAt     time.Time        `json:"created_on"`
	CreatedBy     string           `gorm:"type:varchar(25)" json:"created_by"`
}

// NewRequestHistory snapshots the post-change state of a request.
func NewRequestHistory(r Request, actor string) RequestHistory {
	return RequestHistory{
		RequestID:     r.ID,
		UserID:        r.UserID,
		TotalAmount:   r.TotalAmount,
		InvoiceDate:   r.InvoiceDate,
		InvoiceNumber: r.InvoiceNumber,
		CategoryName:  r.CategoryName,
		CurrentStatus: r.CurrentStatus,
		Comments:      r.Comments,
		ApprovalType:  r.ApprovalType,
		CreatedBy:     actor,
	}
}

// StatusBucket is one slice of the insights breakdown.
type StatusBucket struct {
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// Insights aggregates request counts and summed amounts per status.
type Insights struct {
	Total           int64                   `json:"total"`
	Approved        int64                   `json:"approved"`
	Rejected        int64                   `json:"rejected"`
	Pending         int64                   `json:"pending"`
	StatusBreakdown map[string]StatusBucket `json:"status_breakdown"`
}
