// Package ingest implements the asynchronous ingestion pipeline: per-row
// validation, rule-driven transformation, and the orchestrator that runs one
// job from staged workbook to persisted entities.
package ingest

import (
	"fmt"
	"strings"

	"github.com/rosterline/rosterline/ingest/sheet"
)

// ValidateEmployee checks one Employees row.
//
// Requires a non-blank employee_id and a salary that coerces to a number;
// hire_date, when present, must already be a normalized date. The reader is
// responsible for all type normalization - no string-to-date coercion
// happens here.
func ValidateEmployee(rec sheet.Record) (bool, string) {
	if rec.IsBlank("employee_id") {
		if _, present := rec.Value("employee_id"); !present {
			return false, "employee_id is required"
		}
		return false, "employee_id cannot be empty"
	}

	salary, present := rec.Value("salary")
	if !present {
		return false, "salary is required"
	}
	if _, ok := rec.Float("salary"); !ok {
		return false, fmt.Sprintf("salary must be numeric, got: %v", salary)
	}

	if v, present := rec.Value("hire_date"); present {
		if _, ok := rec.Date("hire_date"); !ok {
			return false, fmt.Sprintf("hire_date must be a date, got: %T", v)
		}
	}

	return true, ""
}

// ValidateProject checks one Projects row: non-blank project_id, optional
// numeric budget_usd, optional normalized start_date.
func ValidateProject(rec sheet.Record) (bool, string) {
	if rec.IsBlank("project_id") {
		if _, present := rec.Value("project_id"); !present {
			return false, "project_id is required"
		}
		return false, "project_id cannot be empty"
	}

	if budget, present := rec.Value("budget_usd"); present {
		if _, ok := rec.Float("budget_usd"); !ok {
			return false, fmt.Sprintf("budget_usd must be numeric, got: %v", budget)
		}
	}

	if v, present := rec.Value("start_date"); present {
		if _, ok := rec.Date("start_date"); !ok {
			return false, fmt.Sprintf("start_date must be a date, got: %T", v)
		}
	}

	return true, ""
}

// validateRequiredFields checks an arbitrary set of required field names
// against blank or absent values.
func validateRequiredFields(rec sheet.Record, required []string) (bool, string) {
	var missing []string
	for _, field := range required {
		if rec.IsBlank(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return false, fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", "))
	}
	return true, ""
}
