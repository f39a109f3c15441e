package repository

import (
	"context"
	"fmt"
	"strings"

	"backend/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CategoryUpdate carries a partial update. Nil fields retain their previous
// values — an omitted field is never nulled out.
type CategoryUpdate struct {
	Name             *string
	Description      *string
	MaximumAmount    *decimal.Decimal
	Enabled          *bool
	ApprovalCriteria *string
}

// CategoryRepository owns the category table and its history table. Every
// mutation pairs the row write with one history insert in a single transaction.
type CategoryRepository interface {
	Create(ctx context.Context, category *model.Category) error
	FindByID(ctx context.Context, id uint) (*model.Category, error)
	FindByName(ctx context.Context, name string) (*model.Category, error)
	Update(ctx context.Context, id uint, fields CategoryUpdate, comments, actor string) (*model.Category, error)
	List(ctx context.Context, page, limit int) ([]model.Category, int64, error)
	History(ctx context.Context, categoryID uint) ([]model.CategoryHistory, error)
	IncrementRequestCount(ctx context.Context, name string) error
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, category *model.Category) error {
	category.CategoryName = strings.ToUpper(category.CategoryName)
	return GetDB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(category).Error; err != nil {
			return fmt.Errorf("failed to create category: %w", err)
		}
		history := model.NewCategoryHistory(*category, "Category created", category.CreatedBy)
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to write category history: %w", err)
		}
		return nil
	})
}

func (r *categoryRepository) FindByID(ctx context.Context, id uint) (*model.Category, error) {
	var category model.Category
	if err := GetDB(ctx, r.db).First(&category, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("category %d: %w", id, model.ErrNotFound)
		}
		return nil, err
	}
	return &category, nil
}

// FindByName matches case-insensitively against the uppercased stored name.
// Names are not unique-enforced; the most recently created match wins.
func (r *categoryRepository) FindByName(ctx context.Context, name string) (*model.Category, error) {
	var category model.Category
	err := GetDB(ctx, r.db).
		Where("category_name = ?", strings.ToUpper(strings.TrimSpace(name))).
		Order("created_at DESC").
		First(&category).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("category %q: %w", name, model.ErrNotFound)
		}
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) Update(ctx context.Context, id uint, fields CategoryUpdate, comments, actor string) (*model.Category, error) {
	var category model.Category
	err := GetDB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&category, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("category %d: %w", id, model.ErrNotFound)
			}
			return err
		}

		if fields.Name != nil {
			category.CategoryName = strings.ToUpper(*fields.Name)
		}
		if fields.Description != nil {
			category.Description = *fields.Description
		}
		if fields.MaximumAmount != nil {
			category.MaximumAmount = fields.MaximumAmount
		}
		if fields.Enabled != nil {
			category.Enabled = *fields.Enabled
		}
		if fields.ApprovalCriteria != nil {
			category.ApprovalCriteria = *fields.ApprovalCriteria
		}
		category.UpdatedBy = actor

		if err := tx.Save(&category).Error; err != nil {
			return fmt.Errorf("failed to update category: %w", err)
		}

		history := model.NewCategoryHistory(category, comments, actor)
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to write category history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) List(ctx context.Context, page, limit int) ([]model.Category, int64, error) {
	var categories []model.Category
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Category{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&categories).Error; err != nil {
		return nil, 0, err
	}

	return categories, total, nil
}

func (r *categoryRepository) History(ctx context.Context, categoryID uint) ([]model.CategoryHistory, error) {
	var history []model.CategoryHistory
	err := GetDB(ctx, r.db).
		Where("category_id = ?", categoryID).
		Order("created_at DESC").
		Find(&history).Error
	if err != nil {
		return nil, err
	}
	return history, nil
}

// IncrementRequestCount bumps the informational counter when a request is
// filed under the category. Missing categories are ignored.
func (r *categoryRepository) IncrementRequestCount(ctx context.Context, name string) error {
	return GetDB(ctx, r.db).Model(&model.Category{}).
		Where("category_name = ?", strings.ToUpper(strings.TrimSpace(name))).
		UpdateColumn("request_count", gorm.Expr("request_count + 1")).Error
}
