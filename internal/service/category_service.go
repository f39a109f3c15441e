package service

import (
	"context"
	"strings"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateCategoryRequest struct {
	Name             string           `json:"category_name" binding:"required"`
	Description      string           `json:"description"`
	MaximumAmount    *decimal.Decimal `json:"maximum_amount"`
	Enabled          *bool            `json:"enabled"`
	ApprovalCriteria string           `json:"approval_criteria" binding:"required"`
}

type UpdateCategoryRequest struct {
	Name             *string          `json:"category_name"`
	Description      *string          `json:"description"`
	MaximumAmount    *decimal.Decimal `json:"maximum_amount"`
	Enabled          *bool            `json:"enabled"`
	ApprovalCriteria *string          `json:"approval_criteria"`
	Comments         string           `json:"comments"`
}

// --- Interface ---

type CategoryService interface {
	Create(ctx context.Context, req CreateCategoryRequest, actor string) (*model.Category, error)
	Get(ctx context.Context, id uint) (*model.Category, error)
	GetByName(ctx context.Context, name string) (*model.Category, error)
	Update(ctx context.Context, id uint, req UpdateCategoryRequest, actor string) (*model.Category, error)
	List(ctx context.Context, page, limit int) ([]model.Category, int64, error)
	History(ctx context.Context, id uint) ([]model.CategoryHistory, error)
}

type categoryService struct {
	repo repository.CategoryRepository
}

func NewCategoryService(repo repository.CategoryRepository) CategoryService {
	return &categoryService{repo: repo}
}

// --- Implementation ---

func (s *categoryService) Create(ctx context.Context, req CreateCategoryRequest, actor string) (*model.Category, error) {
	if err := validateCategoryInput(req.Name, req.ApprovalCriteria, req.MaximumAmount); err != nil {
		return nil, err
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	category := &model.Category{
		CategoryName:     req.Name,
		Description:      req.Description,
		MaximumAmount:    req.MaximumAmount,
		Enabled:          enabled,
		ApprovalCriteria: req.ApprovalCriteria,
		CreatedBy:        actor,
		UpdatedBy:        actor,
	}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *categoryService) Get(ctx context.Context, id uint) (*model.Category, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *categoryService) GetByName(ctx context.Context, name string) (*model.Category, error) {
	return s.repo.FindByName(ctx, name)
}

func (s *categoryService) Update(ctx context.Context, id uint, req UpdateCategoryRequest, actor string) (*model.Category, error) {
	var problems []string
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		problems = append(problems, "Category name is required")
	}
	if req.ApprovalCriteria != nil && strings.TrimSpace(*req.ApprovalCriteria) == "" {
		problems = append(problems, "Approval criteria is required")
	}
	if req.MaximumAmount != nil && req.MaximumAmount.IsNegative() {
		problems = append(problems, "Maximum amount must be a positive number")
	}
	if len(problems) > 0 {
		return nil, model.NewValidationError(problems...)
	}

	comments := strings.TrimSpace(req.Comments)
	if comments == "" {
		comments = "Category updated"
	}

	fields := repository.CategoryUpdate{
		Name:             req.Name,
		Description:      req.Description,
		MaximumAmount:    req.MaximumAmount,
		Enabled:          req.Enabled,
		ApprovalCriteria: req.ApprovalCriteria,
	}
	return s.repo.Update(ctx, id, fields, comments, actor)
}

func (s *categoryService) List(ctx context.Context, page, limit int) ([]model.Category, int64, error) {
	return s.repo.List(ctx, page, limit)
}

func (s *categoryService) History(ctx context.Context, id uint) ([]model.CategoryHistory, error) {
	// Surface not-found rather than an empty history for a bogus id.
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

func validateCategoryInput(name, criteria string, maxAmount *decimal.Decimal) error {
	var problems []string
	if strings.TrimSpace(name) == "" {
		problems = append(problems, "Category name is required")
	}
	if strings.TrimSpace(criteria) == "" {
		problems = append(problems, "Approval criteria is required")
	}
	if maxAmount != nil && maxAmount.IsNegative() {
		problems = append(problems, "Maximum amount must be a positive number")
	}
	if len(problems) > 0 {
		return model.NewValidationError(problems...)
	}
	return nil
}
