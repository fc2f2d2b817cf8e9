// Package rules implements the staffing constraint rules, the two-pass
// analysis over a grid and the debounced auditor that keeps the violation
// list current.
package rules

import (
	"fmt"

	"github.com/iudanet/shiftgrid/internal/models"
)

// Scope selects the slice of the grid a rule is evaluated on.
type Scope int

const (
	ScopeDate  Scope = iota // одна дата, все сотрудники
	ScopeStaff              // один сотрудник, все даты
)

// Context is the input of a single rule check.
type Context struct {
	Data     models.ShiftDataMap
	Date     string // заполнено для ScopeDate
	StaffID  string // заполнено для ScopeStaff
	StaffIDs []string
	Dates    []string
	Scope    Scope
}

// Rule is a pure check over a context. Check returns nil when the context
// satisfies the rule or the rule does not apply to the context's scope.
type Rule interface {
	ID() string
	Check(ctx Context) *models.RuleViolation
}

// Kind names a built-in rule.
type Kind string

const (
	KindMinWorkers          Kind = "min-workers"
	KindMaxWorkers          Kind = "max-workers"
	KindConsecutiveWorkDays Kind = "consecutive-work-days"
)

// Definition is the configuration form of a built-in rule.
type Definition struct {
	ID        string          `mapstructure:"id" json:"id"`
	Kind      Kind            `mapstructure:"kind" json:"kind"`
	Severity  models.Severity `mapstructure:"severity" json:"severity,omitempty"`
	Threshold int             `mapstructure:"threshold" json:"threshold"`
}

// Build creates the rule described by d.
func (d Definition) Build() (Rule, error) {
	if d.Threshold < 0 {
		return nil, fmt.Errorf("rule %q: threshold must not be negative", d.ID)
	}
	id := d.ID
	if id == "" {
		id = string(d.Kind)
	}

	switch d.Kind {
	case KindMinWorkers:
		return &MinWorkers{RuleID: id, Min: d.Threshold, Severity: severityOr(d.Severity, models.SeverityError)}, nil
	case KindMaxWorkers:
		return &MaxWorkers{RuleID: id, Max: d.Threshold, Severity: severityOr(d.Severity, models.SeverityWarning)}, nil
	case KindConsecutiveWorkDays:
		return &ConsecutiveWorkDays{RuleID: id, MaxDays: d.Threshold, Severity: severityOr(d.Severity, models.SeverityWarning)}, nil
	default:
		return nil, fmt.Errorf("rule %q: unknown kind %q", d.ID, d.Kind)
	}
}

// BuildAll builds every definition.
func BuildAll(defs []Definition) ([]Rule, error) {
	out := make([]Rule, 0, len(defs))
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		r, err := d.Build()
		if err != nil {
			return nil, err
		}
		if seen[r.ID()] {
			return nil, fmt.Errorf("duplicate rule id %q", r.ID())
		}
		seen[r.ID()] = true
		out = append(out, r)
	}
	return out, nil
}

// DefaultDefinitions returns the built-in rule set.
func DefaultDefinitions() []Definition {
	return []Definition{
		{ID: string(KindMinWorkers), Kind: KindMinWorkers, Threshold: 2},
		{ID: string(KindMaxWorkers), Kind: KindMaxWorkers, Threshold: 6},
		{ID: string(KindConsecutiveWorkDays), Kind: KindConsecutiveWorkDays, Threshold: 5},
	}
}

func severityOr(s, fallback models.Severity) models.Severity {
	switch s {
	case models.SeverityError, models.SeverityWarning, models.SeverityInfo:
		return s
	}
	return fallback
}

// Analyze runs every rule once per date (all staff) and once per staff
// (all dates) and returns the non-nil results in evaluation order.
func Analyze(data models.ShiftDataMap, staffIDs, dates []string, ruleSet []Rule) []models.RuleViolation {
	var out []models.RuleViolation

	for _, date := range dates {
		ctx := Context{Scope: ScopeDate, Date: date, StaffIDs: staffIDs, Dates: dates, Data: data}
		for _, r := range ruleSet {
			if v := r.Check(ctx); v != nil {
				out = append(out, *v)
			}
		}
	}

	for _, staffID := range staffIDs {
		ctx := Context{Scope: ScopeStaff, StaffID: staffID, StaffIDs: staffIDs, Dates: dates, Data: data}
		for _, r := range ruleSet {
			if v := r.Check(ctx); v != nil {
				out = append(out, *v)
			}
		}
	}

	return out
}

func countWork(ctx Context) (count int, workers []string) {
	for _, staffID := range ctx.StaffIDs {
		if ctx.Data.State(staffID, ctx.Date) == models.StateWork {
			count++
			workers = append(workers, staffID)
		}
	}
	return count, workers
}

func isLocked(data models.ShiftDataMap, staffID, date string) bool {
	cell, _ := data.Get(staffID, date)
	return cell.IsLocked
}

func actionID(ruleID, staffID, date string) string {
	return ruleID + ":" + staffID + ":" + date
}
