package entity

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rosterline/rosterline/errors"
)

// EmployeeStore persists employees with idempotent upsert-by-business-key.
type EmployeeStore struct {
	db *sql.DB
}

// NewEmployeeStore creates a new employee store
func NewEmployeeStore(db *sql.DB) *EmployeeStore {
	return &EmployeeStore{db: db}
}

// Upsert inserts or updates an employee keyed by employee_id.
//
// Each call is its own transaction: a failure rolls back only this row and
// never disturbs other calls. SQLite's single writer plus the unique index
// on employee_id serialize concurrent upserts of the same key; a duplicate
// insert that loses the race surfaces as a constraint error for the caller
// to record as a row error.
//
// Returns created=true when a new row was inserted, false when an existing
// row was updated. Updates are partial: only fields set on the record are
// written, created_at is preserved, updated_at is bumped.
func (s *EmployeeStore) Upsert(ctx context.Context, e *Employee) (created bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to begin upsert transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	var existingID string
	var existingCreatedAt time.Time
	lookupErr := tx.QueryRowContext(ctx,
		`SELECT id, created_at FROM employees WHERE employee_id = ?`, e.EmployeeID,
	).Scan(&existingID, &existingCreatedAt)

	switch {
	case lookupErr == nil:
		e.ID = existingID
		e.CreatedAt = existingCreatedAt
		e.UpdatedAt = now

		// Partial update: only fields present on the record overwrite;
		// absent fields keep their stored values.
		set := []string{"updated_at = ?"}
		args := []any{e.UpdatedAt}
		if e.Name != nil {
			set = append(set, "name = ?")
			args = append(args, *e.Name)
		}
		if e.DepartmentCode != nil {
			set = append(set, "department_code = ?")
			args = append(args, *e.DepartmentCode)
		}
		if e.Salary != nil {
			set = append(set, "salary = ?")
			args = append(args, *e.Salary)
		}
		if e.HireDate != nil {
			set = append(set, "hire_date = ?")
			args = append(args, *e.HireDate)
		}
		if e.DepartmentName != nil {
			set = append(set, "department_name = ?")
			args = append(args, *e.DepartmentName)
		}
		if e.AnnualSalaryEUR != nil {
			set = append(set, "annual_salary_eur = ?")
			args = append(args, *e.AnnualSalaryEUR)
		}
		if e.TenureYears != nil {
			set = append(set, "tenure_years = ?")
			args = append(args, *e.TenureYears)
		}
		args = append(args, e.ID)

		_, err = tx.ExecContext(ctx,
			`UPDATE employees SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return false, errors.Wrapf(err, "failed to update employee %s", e.EmployeeID)
		}
		created = false

	case errors.Is(lookupErr, sql.ErrNoRows):
		e.ID = uuid.NewString()
		e.CreatedAt = now
		e.UpdatedAt = now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO employees (
				id, employee_id, name, department_code, salary, hire_date,
				department_name, annual_salary_eur, tenure_years,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.EmployeeID, e.Name, e.DepartmentCode, e.Salary, nullTime(e.HireDate),
			e.DepartmentName, e.AnnualSalaryEUR, e.TenureYears,
			e.CreatedAt, e.UpdatedAt,
		)
		if err != nil {
			return false, errors.Wrapf(err, "failed to insert employee %s", e.EmployeeID)
		}
		created = true

	default:
		return false, errors.Wrapf(lookupErr, "failed to look up employee %s", e.EmployeeID)
	}

	if err = tx.Commit(); err != nil {
		return false, errors.Wrap(err, "failed to commit upsert")
	}
	return created, nil
}

// GetByEmployeeID retrieves an employee by business key.
func (s *EmployeeStore) GetByEmployeeID(ctx context.Context, employeeID string) (*Employee, error) {
	var e Employee
	var hireDate sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, employee_id, name, department_code, salary, hire_date,
		       department_name, annual_salary_eur, tenure_years,
		       created_at, updated_at
		FROM employees WHERE employee_id = ?`, employeeID,
	).Scan(
		&e.ID, &e.EmployeeID, &e.Name, &e.DepartmentCode, &e.Salary, &hireDate,
		&e.DepartmentName, &e.AnnualSalaryEUR, &e.TenureYears,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Newf("employee not found: %s", employeeID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get employee")
	}
	if hireDate.Valid {
		e.HireDate = &hireDate.Time
	}
	return &e, nil
}

// Count returns the number of employee rows.
func (s *EmployeeStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM employees`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count employees")
	}
	return n, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
