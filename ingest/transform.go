package ingest

import (
	"math"
	"time"

	"github.com/rosterline/rosterline/entity"
	"github.com/rosterline/rosterline/errors"
	"github.com/rosterline/rosterline/ingest/rules"
	"github.com/rosterline/rosterline/ingest/sheet"
)

// TransformEmployee enriches one validated Employees row using the rule set.
// Pure: the rule set is never mutated and `today` is injected so tenure is
// deterministic under test.
//
// Derived fields degrade to nil rather than erroring: an unmapped department
// code, a missing salary, or an absent hire date all leave their derived
// column unset.
func TransformEmployee(rec sheet.Record, rs *rules.RuleSet, today time.Time) (entity.Employee, error) {
	key, _ := rec.Text("employee_id")
	if key == "" {
		return entity.Employee{}, errors.New("employee record has no employee_id")
	}

	e := entity.Employee{EmployeeID: key}

	if name, ok := rec.Text("name"); ok {
		e.Name = &name
	}
	if code, ok := rec.Text("department_code"); ok {
		e.DepartmentCode = &code
		if label, mapped := rs.Mapping("department_code", code); mapped {
			e.DepartmentName = &label
		}
	}
	if salary, ok := rec.Float("salary"); ok {
		e.Salary = &salary
		converted := round2(salary * rs.Factor("salary", "annual_salary_eur"))
		e.AnnualSalaryEUR = &converted
	}
	if hireDate, ok := rec.Date("hire_date"); ok {
		e.HireDate = &hireDate
		tenure := tenureYears(hireDate, today)
		e.TenureYears = &tenure
	}

	return e, nil
}

// TransformProject enriches one validated Projects row. No label or rate
// rules are defined for projects yet, but future rule entries require no
// code change here: budget coercion and field copying already go through
// the rule-set contract.
func TransformProject(rec sheet.Record, rs *rules.RuleSet) (entity.Project, error) {
	key, _ := rec.Text("project_id")
	if key == "" {
		return entity.Project{}, errors.New("project record has no project_id")
	}

	p := entity.Project{ProjectID: key}

	if name, ok := rec.Text("project_name"); ok {
		p.ProjectName = &name
	}
	if budget, ok := rec.Float("budget_usd"); ok {
		p.BudgetUSD = &budget
	}
	if startDate, ok := rec.Date("start_date"); ok {
		p.StartDate = &startDate
	}
	if status, ok := rec.Text("status"); ok {
		p.Status = &status
	}

	return p, nil
}

// tenureYears is the floor of the day count between hire date and today
// divided by 365 - not calendar-year subtraction, so a hire two years and
// eleven months ago yields 2.
func tenureYears(hireDate, today time.Time) int {
	days := int(today.Sub(hireDate).Hours() / 24)
	return days / 365
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
