package entity

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rosterline/rosterline/errors"
)

// ProjectStore persists projects with idempotent upsert-by-business-key.
type ProjectStore struct {
	db *sql.DB
}

// NewProjectStore creates a new project store
func NewProjectStore(db *sql.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// Upsert inserts or updates a project keyed by project_id. Same transaction
// and isolation contract as EmployeeStore.Upsert.
func (s *ProjectStore) Upsert(ctx context.Context, p *Project) (created bool, err error) {
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
		`SELECT id, created_at FROM projects WHERE project_id = ?`, p.ProjectID,
	).Scan(&existingID, &existingCreatedAt)

	switch {
	case lookupErr == nil:
		p.ID = existingID
		p.CreatedAt = existingCreatedAt
		p.UpdatedAt = now

		set := []string{"updated_at = ?"}
		args := []any{p.UpdatedAt}
		if p.ProjectName != nil {
			set = append(set, "project_name = ?")
			args = append(args, *p.ProjectName)
		}
		if p.BudgetUSD != nil {
			set = append(set, "budget_usd = ?")
			args = append(args, *p.BudgetUSD)
		}
		if p.StartDate != nil {
			set = append(set, "start_date = ?")
			args = append(args, *p.StartDate)
		}
		if p.Status != nil {
			set = append(set, "status = ?")
			args = append(args, *p.Status)
		}
		args = append(args, p.ID)

		_, err = tx.ExecContext(ctx,
			`UPDATE projects SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return false, errors.Wrapf(err, "failed to update project %s", p.ProjectID)
		}
		created = false

	case errors.Is(lookupErr, sql.ErrNoRows):
		p.ID = uuid.NewString()
		p.CreatedAt = now
		p.UpdatedAt = now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO projects (
				id, project_id, project_name, budget_usd, start_date, status,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.ProjectID, p.ProjectName, p.BudgetUSD, nullTime(p.StartDate), p.Status,
			p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return false, errors.Wrapf(err, "failed to insert project %s", p.ProjectID)
		}
		created = true

	default:
		return false, errors.Wrapf(lookupErr, "failed to look up project %s", p.ProjectID)
	}

	if err = tx.Commit(); err != nil {
		return false, errors.Wrap(err, "failed to commit upsert")
	}
	return created, nil
}

// GetByProjectID retrieves a project by business key.
func (s *ProjectStore) GetByProjectID(ctx context.Context, projectID string) (*Project, error) {
	var p Project
	var startDate sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, project_name, budget_usd, start_date, status,
		       created_at, updated_at
		FROM projects WHERE project_id = ?`, projectID,
	).Scan(
		&p.ID, &p.ProjectID, &p.ProjectName, &p.BudgetUSD, &startDate, &p.Status,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Newf("project not found: %s", projectID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get project")
	}
	if startDate.Valid {
		p.StartDate = &startDate.Time
	}
	return &p, nil
}

// Count returns the number of project rows.
func (s *ProjectStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count projects")
	}
	return n, nil
}
