// Package entity persists the reconciled Employee and Project records.
//
// Entities are identified internally by a generated id but reconciled across
// uploads by a business key (employee_id / project_id): first sighting
// creates, later sightings update, nothing here deletes. Source fields are
// stored as read and derived fields as computed, side by side, for audit.
package entity

import "time"

// Employee holds one employee row: source columns as read from the
// Employees sheet plus the rule-derived columns.
type Employee struct {
	ID string

	// Source fields, as read
	EmployeeID     string
	Name           *string
	DepartmentCode *string
	Salary         *float64
	HireDate       *time.Time

	// Derived fields, as computed
	DepartmentName  *string
	AnnualSalaryEUR *float64
	TenureYears     *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Project holds one project row as read from the Projects sheet. No derived
// columns are defined yet; the schema accepts future rule entries.
type Project struct {
	ID string

	ProjectID   string
	ProjectName *string
	BudgetUSD   *float64
	StartDate   *time.Time
	Status      *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
