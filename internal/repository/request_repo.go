package repository

import (
	"context"
	"fmt"
	"strings"

	"backend/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RequestFilter holds the optional list/export predicates. Status and category
// accept the literal "all" (any case) to disable that predicate; date bounds
// apply to the record creation timestamp at date granularity, both inclusive.
type RequestFilter struct {
	Status    string
	StartDate string
	EndDate   string
	Category  string
}

// RequestRepository owns the request table and its history table. Creation and
// every status change pair the row write with one history insert in a single
// transaction.
type RequestRepository interface {
	Create(ctx context.Context, request *model.Request) error
	FindByID(ctx context.Context, id uint) (*model.Request, error)
	UpdateStatus(ctx context.Context, id uint, newStatus string, comments *string, actor string) (*model.Request, error)
	List(ctx context.Context, filter RequestFilter, page, limit int) ([]model.Request, int64, error)
	History(ctx context.Context, requestID uint) ([]model.RequestHistory, error)
	FindForExport(ctx context.Context, filter RequestFilter) ([]model.Request, error)
	Insights(ctx context.Context, startDate, endDate string) (model.Insights, error)
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, request *model.Request) error {
	return GetDB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(request).Error; err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		history := model.NewRequestHistory(*request, request.CreatedBy)
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to write request history: %w", err)
		}
		return nil
	})
}

func (r *requestRepository) FindByID(ctx context.Context, id uint) (*model.Request, error) {
	var request model.Request
	if err := GetDB(ctx, r.db).First(&request, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("request %d: %w", id, model.ErrNotFound)
		}
		return nil, err
	}
	return &request, nil
}

// UpdateStatus transitions a request to newStatus. Any state is reachable from
// any other. Omitted comments retain the prior value; the history row captures
// the full post-update record.
func (r *requestRepository) UpdateStatus(ctx context.Context, id uint, newStatus string, comments *string, actor string) (*model.Request, error) {
	var request model.Request
	err := GetDB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&request, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("request %d: %w", id, model.ErrNotFound)
			}
			return err
		}

		request.CurrentStatus = newStatus
		if comments != nil {
			request.Comments = *comments
		}
		request.UpdatedBy = actor

		if err := tx.Save(&request).Error; err != nil {
			return fmt.Errorf("failed to update request: %w", err)
		}

		history := model.NewRequestHistory(request, actor)
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to write request history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter, page, limit int) ([]model.Request, int64, error) {
	var requests []model.Request
	var total int64

	db := GetDB(ctx, r.db)
	if err := applyRequestFilter(db.Model(&model.Request{}), filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	offset := (page - 1) * limit
	err := applyRequestFilter(db, filter).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&requests).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch requests: %w", err)
	}

	return requests, total, nil
}

func (r *requestRepository) History(ctx context.Context, requestID uint) ([]model.RequestHistory, error) {
	var history []model.RequestHistory
	err := GetDB(ctx, r.db).
		Where("request_id = ?", requestID).
		Order("created_at DESC").
		Find(&history).Error
	if err != nil {
		return nil, err
	}
	return history, nil
}

// FindForExport returns the full filtered result set, no pagination. The
// predicate logic is shared with List.
func (r *requestRepository) FindForExport(ctx context.Context, filter RequestFilter) ([]model.Request, error) {
	var requests []model.Request
	err := applyRequestFilter(GetDB(ctx, r.db), filter).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch requests for export: %w", err)
	}
	return requests, nil
}

func (r *requestRepository) Insights(ctx context.Context, startDate, endDate string) (model.Insights, error) {
	filter := RequestFilter{StartDate: startDate, EndDate: endDate}

	var buckets []struct {
		CurrentStatus string
		Count         int64
		Amount        decimal.Decimal
	}
	err := applyRequestFilter(GetDB(ctx, r.db).Model(&model.Request{}), filter).
		Select("current_status, COUNT(*) as count, COALESCE(SUM(total_amount), 0) as amount").
		Group("current_status").
		Scan(&buckets).Error
	if err != nil {
		return model.Insights{}, fmt.Errorf("failed to aggregate insights: %w", err)
	}

	insights := model.Insights{StatusBreakdown: make(map[string]model.StatusBucket, len(buckets))}
	for _, b := range buckets {
		insights.Total += b.Count
		insights.StatusBreakdown[b.CurrentStatus] = model.StatusBucket{Count: b.Count, Amount: b.Amount}
		switch b.CurrentStatus {
		case model.StatusApproved:
			insights.Approved = b.Count
		case model.StatusRejected:
			insights.Rejected = b.Count
		case model.StatusPending:
			insights.Pending = b.Count
		}
	}
	return insights, nil
}

// applyRequestFilter attaches the shared list/export/insights predicates.
// Date bounds always target created_at, never the invoice's own date: business
// date filters report system activity, not user-supplied invoice metadata.
func applyRequestFilter(q *gorm.DB, filter RequestFilter) *gorm.DB {
	if filter.Status != "" && !model.IsFilterAll(filter.Status) {
		if status, err := model.NormalizeStatus(filter.Status); err == nil {
			q = q.Where("current_status = ?", status)
		} else {
			q = q.Where("current_status = ?", filter.Status)
		}
	}
	if start := truncateDateBound(filter.StartDate); start != "" {
		q = q.Where("DATE(created_at) >= DATE(?)", start)
	}
	if end := truncateDateBound(filter.EndDate); end != "" {
		q = q.Where("DATE(created_at) <= DATE(?)", end)
	}
	if filter.Category != "" && !model.IsFilterAll(filter.Category) {
		q = q.Where("category_name = ?", filter.Category)
	}
	return q
}

// truncateDateBound strips an embedded time component: bounds compare at date
// granularity only.
func truncateDateBound(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "T"); i >= 0 {
		s = s[:i]
	}
	return s
}
