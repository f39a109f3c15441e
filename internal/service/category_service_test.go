package service

import (
	"context"
	"errors"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingCategoryRepo captures repository calls for service-level assertions.
type recordingCategoryRepo struct {
	fakeCategoryRepo
	created     []*model.Category
	lastFields  repository.CategoryUpdate
	lastComment string
	updateErr   error
}

func (r *recordingCategoryRepo) Create(ctx context.Context, c *model.Category) error {
	r.created = append(r.created, c)
	return nil
}

func (r *recordingCategoryRepo) Update(ctx context.Context, id uint, fields repository.CategoryUpdate, comments, actor string) (*model.Category, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	r.lastFields = fields
	r.lastComment = comments
	return &model.Category{ID: id, UpdatedBy: actor}, nil
}

func TestCategoryCreateValidation(t *testing.T) {
	repo := &recordingCategoryRepo{}
	svc := NewCategoryService(repo)
	negative := decimal.NewFromInt(-10)

	_, err := svc.Create(context.Background(), CreateCategoryRequest{
		Name:             "  ",
		ApprovalCriteria: "",
		MaximumAmount:    &negative,
	}, "ADMIN")

	require.True(t, model.IsValidation(err))
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{
		"Category name is required",
		"Approval criteria is required",
		"Maximum amount must be a positive number",
	}, ve.Problems)
	assert.Empty(t, repo.created)
}

func TestCategoryCreateDefaultsEnabled(t *testing.T) {
	repo := &recordingCategoryRepo{}
	svc := NewCategoryService(repo)

	category, err := svc.Create(context.Background(), CreateCategoryRequest{
		Name:             "Travel",
		ApprovalCriteria: "Approve reasonable travel",
	}, "ADMIN")
	require.NoError(t, err)

	assert.True(t, category.Enabled)
	assert.Equal(t, "ADMIN", category.CreatedBy)
	assert.Equal(t, "ADMIN", category.UpdatedBy)
	require.Len(t, repo.created, 1)
}

func TestCategoryCreateZeroMaximumAllowed(t *testing.T) {
	repo := &recordingCategoryRepo{}
	svc := NewCategoryService(repo)
	zero := decimal.Zero

	_, err := svc.Create(context.Background(), CreateCategoryRequest{
		Name:             "Travel",
		ApprovalCriteria: "criteria",
		MaximumAmount:    &zero,
	}, "ADMIN")

	assert.NoError(t, err)
}

func TestCategoryUpdateDefaultComment(t *testing.T) {
	repo := &recordingCategoryRepo{}
	svc := NewCategoryService(repo)
	description := "Updated text"

	_, err := svc.Update(context.Background(), 3, UpdateCategoryRequest{
		Description: &description,
	}, "ADMIN")
	require.NoError(t, err)

	assert.Equal(t, "Category updated", repo.lastComment)
	require.NotNil(t, repo.lastFields.Description)
	assert.Equal(t, "Updated text", *repo.lastFields.Description)
	assert.Nil(t, repo.lastFields.Name)
	assert.Nil(t, repo.lastFields.ApprovalCriteria)
}

func TestCategoryUpdateCustomComment(t *testing.T) {
	repo := &recordingCategoryRepo{}
	svc := NewCategoryService(repo)
	enabled := false

	_, err := svc.Update(context.Background(), 3, UpdateCategoryRequest{
		Enabled:  &enabled,
		Comments: "Disabled pending review",
	}, "ADMIN")
	require.NoError(t, err)

	assert.Equal(t, "Disabled pending review", repo.lastComment)
}

func TestCategoryUpdateRejectsBlankOverrides(t *testing.T) {
	repo := &recordingCategoryRepo{}
	svc := NewCategoryService(repo)
	blank := "  "

	_, err := svc.Update(context.Background(), 3, UpdateCategoryRequest{
		Name:             &blank,
		ApprovalCriteria: &blank,
	}, "ADMIN")

	require.True(t, model.IsValidation(err))
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Problems, 2)
}

func TestCategoryUpdateNotFound(t *testing.T) {
	repo := &recordingCategoryRepo{updateErr: model.ErrNotFound}
	svc := NewCategoryService(repo)

	_, err := svc.Update(context.Background(), 99, UpdateCategoryRequest{}, "ADMIN")

	assert.True(t, model.IsNotFound(err))
}

func TestCategoryHistoryUnknownID(t *testing.T) {
	svc := NewCategoryService(&recordingCategoryRepo{})

	_, err := svc.History(context.Background(), 404)

	assert.True(t, model.IsNotFound(err))
}
