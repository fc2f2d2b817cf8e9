package rules

import (
	"fmt"

	"github.com/iudanet/shiftgrid/internal/models"
)

// MinWorkers flags dates with fewer than Min staff on work.
type MinWorkers struct {
	RuleID   string
	Severity models.Severity
	Min      int
}

func (r *MinWorkers) ID() string { return r.RuleID }

// Check proposes promoting up to the shortfall number of empty or auto
// (and unlocked) staff to work, one action per staff member.
func (r *MinWorkers) Check(ctx Context) *models.RuleViolation {
	if ctx.Scope != ScopeDate {
		return nil
	}
	count, _ := countWork(ctx)
	if count >= r.Min {
		return nil
	}

	v := &models.RuleViolation{
		RuleID:   r.RuleID,
		Severity: r.Severity,
		Message:  fmt.Sprintf("%s: %d staff on work, at least %d required", ctx.Date, count, r.Min),
	}
	for _, staffID := range ctx.StaffIDs {
		v.AffectedCells = append(v.AffectedCells, models.CellRef{StaffID: staffID, Date: ctx.Date})
	}

	shortfall := r.Min - count
	for _, staffID := range ctx.StaffIDs {
		if len(v.SuggestedActions) == shortfall {
			break
		}
		state := ctx.Data.State(staffID, ctx.Date)
		if state != models.StateEmpty && state != models.StateAuto {
			continue
		}
		if isLocked(ctx.Data, staffID, ctx.Date) {
			continue
		}
		v.SuggestedActions = append(v.SuggestedActions, models.SuggestedAction{
			ID:          actionID(r.RuleID, staffID, ctx.Date),
			Description: fmt.Sprintf("Assign %s to work on %s", staffID, ctx.Date),
			Impact:      fmt.Sprintf("%d → %d", count, count+1),
			Updates: []models.CellUpdate{{
				StaffID:  staffID,
				Date:     ctx.Date,
				State:    models.StateWork,
				Previous: state,
			}},
		})
	}
	return v
}

// MaxWorkers flags dates with more than Max staff on work.
type MaxWorkers struct {
	RuleID   string
	Severity models.Severity
	Max      int
}

func (r *MaxWorkers) ID() string { return r.RuleID }

// Check proposes demoting the excess work staff to auto.
func (r *MaxWorkers) Check(ctx Context) *models.RuleViolation {
	if ctx.Scope != ScopeDate {
		return nil
	}
	count, workers := countWork(ctx)
	if count <= r.Max {
		return nil
	}

	v := &models.RuleViolation{
		RuleID:   r.RuleID,
		Severity: r.Severity,
		Message:  fmt.Sprintf("%s: %d staff on work, at most %d allowed", ctx.Date, count, r.Max),
	}
	for _, staffID := range workers {
		v.AffectedCells = append(v.AffectedCells, models.CellRef{StaffID: staffID, Date: ctx.Date})
	}

	excess := count - r.Max
	// Снимаем с конца списка, чтобы предложения были стабильны
	for i := len(workers) - 1; i >= 0 && len(v.SuggestedActions) < excess; i-- {
		staffID := workers[i]
		if isLocked(ctx.Data, staffID, ctx.Date) {
			continue
		}
		v.SuggestedActions = append(v.SuggestedActions, models.SuggestedAction{
			ID:          actionID(r.RuleID, staffID, ctx.Date),
			Description: fmt.Sprintf("Set %s to auto on %s", staffID, ctx.Date),
			Impact:      fmt.Sprintf("%d → %d", count, count-1),
			Updates: []models.CellUpdate{{
				StaffID:  staffID,
				Date:     ctx.Date,
				State:    models.StateAuto,
				Previous: models.StateWork,
			}},
		})
	}
	return v
}

// ConsecutiveWorkDays flags staff whose unbroken run of work exceeds MaxDays.
type ConsecutiveWorkDays struct {
	RuleID   string
	Severity models.Severity
	MaxDays  int
}

func (r *ConsecutiveWorkDays) ID() string { return r.RuleID }

// Check reports every overlong run of the staff member and proposes
// converting the last day of each run to auto.
func (r *ConsecutiveWorkDays) Check(ctx Context) *models.RuleViolation {
	if ctx.Scope != ScopeStaff {
		return nil
	}

	type run struct{ start, end int }
	var runs []run
	start := -1
	for i, date := range ctx.Dates {
		if ctx.Data.State(ctx.StaffID, date) == models.StateWork {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start > r.MaxDays {
			runs = append(runs, run{start, i - 1})
		}
		start = -1
	}
	if start >= 0 && len(ctx.Dates)-start > r.MaxDays {
		runs = append(runs, run{start, len(ctx.Dates) - 1})
	}
	if len(runs) == 0 {
		return nil
	}

	longest := 0
	v := &models.RuleViolation{
		RuleID:   r.RuleID,
		Severity: r.Severity,
	}
	for _, rn := range runs {
		length := rn.end - rn.start + 1
		longest = max(longest, length)
		for i := rn.start; i <= rn.end; i++ {
			v.AffectedCells = append(v.AffectedCells, models.CellRef{StaffID: ctx.StaffID, Date: ctx.Dates[i]})
		}

		last := ctx.Dates[rn.end]
		if isLocked(ctx.Data, ctx.StaffID, last) {
			continue
		}
		v.SuggestedActions = append(v.SuggestedActions, models.SuggestedAction{
			ID:          actionID(r.RuleID, ctx.StaffID, last),
			Description: fmt.Sprintf("Set %s to auto on %s", ctx.StaffID, last),
			Impact:      fmt.Sprintf("%d → %d", length, length-1),
			Updates: []models.CellUpdate{{
				StaffID:  ctx.StaffID,
				Date:     last,
				State:    models.StateAuto,
				Previous: models.StateWork,
			}},
		})
	}
	v.Message = fmt.Sprintf("%s works %d consecutive days, at most %d allowed", ctx.StaffID, longest, r.MaxDays)
	return v
}
