package repository

import (
	"context"
	"regexp"
	"testing"

	"backend/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newGormMock opens a gorm handle over a sqlmock connection so repository SQL
// can be asserted without a live database.
func newGormMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return db, mock
}

func TestCategoryCreateUppercasesAndWritesHistory(t *testing.T) {
	db, mock := newGormMock(t)
	repo := NewCategoryRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "categories"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "category_histories"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	category := &model.Category{
		CategoryName:     "travel",
		ApprovalCriteria: "Approve reasonable travel",
		Enabled:          true,
		CreatedBy:        "ADMIN",
	}
	err := repo.Create(context.Background(), category)
	require.NoError(t, err)

	assert.Equal(t, "TRAVEL", category.CategoryName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryCreateRollsBackWhenHistoryFails(t *testing.T) {
	db, mock := newGormMock(t)
	repo := NewCategoryRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "categories"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "category_histories"`)).
		WillReturnError(gorm.ErrInvalidData)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &model.Category{CategoryName: "travel"})

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryFindByNameUppercasesLookup(t *testing.T) {
	db, mock := newGormMock(t)
	repo := NewCategoryRepository(db)

	rows := sqlmock.NewRows([]string{"id", "category_name", "approval_criteria", "enabled"}).
		AddRow(3, "TRAVEL", "criteria", true)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "categories" WHERE category_name = $1 ORDER BY created_at DESC`)).
		WithArgs("TRAVEL", 1).
		WillReturnRows(rows)

	category, err := repo.FindByName(context.Background(), "  travel ")
	require.NoError(t, err)

	assert.Equal(t, uint(3), category.ID)
	assert.Equal(t, "TRAVEL", category.CategoryName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryFindByNameNotFound(t *testing.T) {
	db, mock := newGormMock(t)
	repo := NewCategoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "categories"`)).
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := repo.FindByName(context.Background(), "nope")

	assert.True(t, model.IsNotFound(err))
}

func TestCategoryFindByIDNotFound(t *testing.T) {
	db, mock := newGormMock(t)
	repo := NewCategoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "categories"`)).
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := repo.FindByID(context.Background(), 99)

	assert.True(t, model.IsNotFound(err))
}

func TestCategoryUpdateRetainsOmittedFields(t *testing.T) {
	db, mock := newGormMock(t)
	repo := NewCategoryRepository(db)

	existing := sqlmock.NewRows([]string{"id", "category_name", "description", "maximum_amount", "enabled", "approval_criteria"}).
		AddRow(3, "TRAVEL", "old description", "500", true, "old criteria")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "categories"`)).
		WillReturnRows(existing)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "categories"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "category_histories"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))
	mock.ExpectCommit()

	criteria := "new criteria"
	category, err := repo.Update(context.Background(), 3, CategoryUpdate{ApprovalCriteria: &criteria}, "Criteria tightened", "ADMIN")
	require.NoError(t, err)

	assert.Equal(t, "new criteria", category.ApprovalCriteria)
	assert.Equal(t, "old description", category.Description)
	assert.Equal(t, "TRAVEL", category.CategoryName)
	assert.Equal(t, "ADMIN", category.UpdatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryUpdateNotFound(t *testing.T) {
	db, mock := newGormMock(t)
	repo := NewCategoryRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "categories"`)).
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), 99, CategoryUpdate{}, "comment", "ADMIN")

	assert.True(t, model.IsNotFound(err))
}

func TestCategoryIncrementRequestCount(t *testing.T) {
	db, mock := newGormMock(t)
	repo := NewCategoryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "categories" SET "request_count"=request_count + 1 WHERE category_name = $1`)).
		WithArgs("TRAVEL").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.IncrementRequestCount(context.Background(), "travel")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
