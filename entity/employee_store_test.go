package entity_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterline/rosterline/entity"
	rltest "github.com/rosterline/rosterline/internal/testing"
)

func strPtr(s string) *string        { return &s }
func floatPtr(f float64) *float64    { return &f }
func intPtr(i int) *int              { return &i }
func timePtr(t time.Time) *time.Time { return &t }

func sampleEmployee() *entity.Employee {
	return &entity.Employee{
		EmployeeID:      "E001",
		Name:            strPtr("Ada Lovelace"),
		DepartmentCode:  strPtr("DEV"),
		Salary:          floatPtr(78289.5),
		HireDate:        timePtr(time.Date(2023, 4, 5, 0, 0, 0, 0, time.UTC)),
		DepartmentName:  strPtr("Development"),
		AnnualSalaryEUR: floatPtr(72026.34),
		TenureYears:     intPtr(2),
	}
}

func TestEmployeeStore_UpsertInsertsThenUpdates(t *testing.T) {
	db := rltest.CreateMigratedTestDB(t)
	store := entity.NewEmployeeStore(db)
	ctx := context.Background()

	e := sampleEmployee()
	created, err := store.Upsert(ctx, e)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, e.ID)

	firstID := e.ID
	firstCreatedAt := e.CreatedAt

	// Same business key again with changed attributes.
	again := sampleEmployee()
	again.Salary = floatPtr(90000)
	again.DepartmentName = strPtr("Engineering")
	created, err = store.Upsert(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, firstID, again.ID, "update keeps the surrogate id")
	assert.True(t, firstCreatedAt.Equal(again.CreatedAt), "update preserves created_at")

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.GetByEmployeeID(ctx, "E001")
	require.NoError(t, err)
	require.NotNil(t, got.Salary)
	assert.InDelta(t, 90000, *got.Salary, 0.001)
	require.NotNil(t, got.DepartmentName)
	assert.Equal(t, "Engineering", *got.DepartmentName)
}

func TestEmployeeStore_UpsertIsPartial(t *testing.T) {
	db := rltest.CreateMigratedTestDB(t)
	store := entity.NewEmployeeStore(db)
	ctx := context.Background()

	_, err := store.Upsert(ctx, sampleEmployee())
	require.NoError(t, err)

	// A sparse re-upload carries only the key and salary.
	sparse := &entity.Employee{EmployeeID: "E001", Salary: floatPtr(95000)}
	created, err := store.Upsert(ctx, sparse)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.GetByEmployeeID(ctx, "E001")
	require.NoError(t, err)
	require.NotNil(t, got.Salary)
	assert.InDelta(t, 95000, *got.Salary, 0.001)
	require.NotNil(t, got.Name, "absent fields keep their stored values")
	assert.Equal(t, "Ada Lovelace", *got.Name)
	require.NotNil(t, got.HireDate)
}

func TestEmployeeStore_UpsertNilOptionals(t *testing.T) {
	db := rltest.CreateMigratedTestDB(t)
	store := entity.NewEmployeeStore(db)
	ctx := context.Background()

	e := &entity.Employee{EmployeeID: "E002"}
	created, err := store.Upsert(ctx, e)
	require.NoError(t, err)
	assert.True(t, created)

	got, err := store.GetByEmployeeID(ctx, "E002")
	require.NoError(t, err)
	assert.Nil(t, got.Name)
	assert.Nil(t, got.Salary)
	assert.Nil(t, got.HireDate)
	assert.Nil(t, got.TenureYears)
}

func TestEmployeeStore_GetMissing(t *testing.T) {
	db := rltest.CreateMigratedTestDB(t)
	store := entity.NewEmployeeStore(db)

	_, err := store.GetByEmployeeID(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestEmployeeStore_UpsertRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := entity.NewEmployeeStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, created_at FROM employees").
		WithArgs("E001").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))
	mock.ExpectExec("INSERT INTO employees").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err = store.Upsert(context.Background(), sampleEmployee())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E001")
	assert.NoError(t, mock.ExpectationsWereMet())
}
