// Package rules loads the transformation rule file that drives field
// enrichment during ingestion.
//
// The rule file is delimited text with the header
//
//	source_sheet,source_field,target_field,transformation_type,parameters
//
// MAPPING parameters are comma-separated code:label pairs; CALCULATION
// parameters are either a decimal multiplier or the DATE_DIFF_TO_NOW marker.
package rules

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/rosterline/rosterline/errors"
)

// ErrNotFound indicates the rule file does not exist.
var ErrNotFound = errors.New("rule file not found")

// ErrUnreadable indicates the rule file exists but could not be read or parsed.
var ErrUnreadable = errors.New("rule file unreadable")

// DateDiffMarker is the CALCULATION parameter denoting "difference between a
// date field and the current date".
const DateDiffMarker = "DATE_DIFF_TO_NOW"

// Rule kinds
const (
	KindMapping     = "MAPPING"
	KindCalculation = "CALCULATION"
)

// Rule is one generic transformation entry from the rule file.
type Rule struct {
	TargetField string
	Kind        string
	Parameters  string
}

// RuleSet holds the parsed rule file. Immutable once loaded; construct one
// per ingestion run and pass it explicitly into the transformer.
type RuleSet struct {
	transformations map[string]Rule              // "sheet.field"
	mappings        map[string]map[string]string // field → code → label
	calculations    map[string]string            // "source->target" → raw params
}

// Load parses a rule file into lookup tables. Returns ErrNotFound when the
// file is missing and ErrUnreadable on I/O or parse errors; rule problems
// are immediately job-fatal, never retried.
func Load(path string) (*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%s", path)
		}
		return nil, errors.Wrapf(ErrUnreadable, "%s: %v", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(ErrUnreadable, "%s: %v", path, err)
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(ErrUnreadable, "%s: empty rule file", path)
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"source_sheet", "source_field", "target_field", "transformation_type", "parameters"} {
		if _, ok := col[required]; !ok {
			return nil, errors.Wrapf(ErrUnreadable, "%s: missing column %q", path, required)
		}
	}

	rs := &RuleSet{
		transformations: make(map[string]Rule),
		mappings:        make(map[string]map[string]string),
		calculations:    make(map[string]string),
	}

	for _, row := range rows[1:] {
		sourceSheet := strings.TrimSpace(row[col["source_sheet"]])
		sourceField := strings.TrimSpace(row[col["source_field"]])
		targetField := strings.TrimSpace(row[col["target_field"]])
		kind := strings.TrimSpace(row[col["transformation_type"]])
		parameters := strings.TrimSpace(row[col["parameters"]])

		rs.transformations[sourceSheet+"."+sourceField] = Rule{
			TargetField: targetField,
			Kind:        kind,
			Parameters:  parameters,
		}

		switch kind {
		case KindMapping:
			rs.parseMapping(sourceField, parameters)
		case KindCalculation:
			rs.calculations[sourceField+"->"+targetField] = parameters
		}
	}

	return rs, nil
}

// parseMapping parses comma-separated code:label pairs.
// Example: "HR:Human Resources, DEV:Development, FIN:Finance"
// Pairs without a colon are silently dropped.
func (rs *RuleSet) parseMapping(sourceField, parameters string) {
	m := rs.mappings[sourceField]
	if m == nil {
		m = make(map[string]string)
		rs.mappings[sourceField] = m
	}

	for _, pair := range strings.Split(parameters, ",") {
		code, label, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		m[strings.TrimSpace(code)] = strings.TrimSpace(label)
	}
}

// Mapping looks up the label mapped to a code for a field.
func (rs *RuleSet) Mapping(field, code string) (string, bool) {
	label, ok := rs.mappings[field][strings.TrimSpace(code)]
	return label, ok
}

// Factor returns the multiplication factor for a calculated field,
// defaulting to 1.0 when no rule defines one.
func (rs *RuleSet) Factor(sourceField, targetField string) float64 {
	params, ok := rs.calculations[sourceField+"->"+targetField]
	if !ok {
		return 1.0
	}
	factor, err := strconv.ParseFloat(params, 64)
	if err != nil {
		return 1.0
	}
	return factor
}

// IsDateDifference reports whether a calculated field derives from the
// difference between a date field and the current date.
func (rs *RuleSet) IsDateDifference(sourceField, targetField string) bool {
	return rs.calculations[sourceField+"->"+targetField] == DateDiffMarker
}

// Transformation returns the generic rule entry for a sheet/field pair.
func (rs *RuleSet) Transformation(sheet, field string) (Rule, bool) {
	r, ok := rs.transformations[sheet+"."+field]
	return r, ok
}

// Mappings returns a copy of all code→label pairs for a field.
func (rs *RuleSet) Mappings(field string) map[string]string {
	src := rs.mappings[field]
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
