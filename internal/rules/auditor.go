package rules

import (
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/shiftgrid/internal/clock"
	"github.com/iudanet/shiftgrid/internal/models"
)

// DefaultDebounce is the delay between the last change and the analysis.
const DefaultDebounce = 500 * time.Millisecond

// SnapshotFunc returns the grid to analyze.
type SnapshotFunc func() models.ShiftDataMap

// Auditor re-runs the full analysis after the grid settles.
type Auditor struct {
	clock      clock.Clock
	timer      clock.Timer
	snapshot   SnapshotFunc
	logger     *slog.Logger
	rules      []Rule
	staffIDs   []string
	dates      []string
	violations []models.RuleViolation
	listeners  []func([]models.RuleViolation)
	debounce   time.Duration
	mu         sync.Mutex
	passes     int
	armed      uint64 // номер последнего взведенного таймера
}

// NewAuditor creates an auditor over the given view.
func NewAuditor(ruleSet []Rule, snapshot SnapshotFunc, staffIDs, dates []string, debounce time.Duration, clk clock.Clock, logger *slog.Logger) *Auditor {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Auditor{
		rules:    ruleSet,
		snapshot: snapshot,
		staffIDs: append([]string(nil), staffIDs...),
		dates:    append([]string(nil), dates...),
		debounce: debounce,
		clock:    clk,
		logger:   logger,
	}
}

// OnViolations registers fn to receive the violation list after each pass.
func (a *Auditor) OnViolations(fn func([]models.RuleViolation)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.listeners = append(a.listeners, fn)
}

// Notify (re)arms the debounce timer.
func (a *Auditor) Notify() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.armed++
	gen := a.armed
	a.timer = a.clock.AfterFunc(a.debounce, func() { a.fire(gen) })
}

func (a *Auditor) fire(gen uint64) {
	a.mu.Lock()
	// Таймер мог быть перевзведен, пока этот ждал блокировку
	if a.armed == gen {
		a.timer = nil
	}
	a.mu.Unlock()

	a.AnalyzeNow()
}

// AnalyzeNow runs a full pass immediately and replaces the violation list.
func (a *Auditor) AnalyzeNow() {
	a.mu.Lock()
	ruleSet, staffIDs, dates := a.rules, a.staffIDs, a.dates
	a.mu.Unlock()

	violations := Analyze(a.snapshot(), staffIDs, dates, ruleSet)

	a.mu.Lock()
	a.violations = violations
	a.passes++
	listeners := make([]func([]models.RuleViolation), len(a.listeners))
	copy(listeners, a.listeners)
	a.mu.Unlock()

	a.logger.Debug("Rule analysis completed", "violations", len(violations))
	for _, fn := range listeners {
		fn(copyViolations(violations))
	}
}

// Violations returns the result of the last pass.
func (a *Auditor) Violations() []models.RuleViolation {
	a.mu.Lock()
	defer a.mu.Unlock()

	return copyViolations(a.violations)
}

// Passes returns the number of completed analysis passes.
func (a *Auditor) Passes() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.passes
}

// Action finds a suggested action of the current violation list by id.
func (a *Auditor) Action(id string) (models.SuggestedAction, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, v := range a.violations {
		for _, act := range v.SuggestedActions {
			if act.ID == id {
				return act, true
			}
		}
	}
	return models.SuggestedAction{}, false
}

// Stop cancels a pending pass.
func (a *Auditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func copyViolations(in []models.RuleViolation) []models.RuleViolation {
	if in == nil {
		return nil
	}
	out := make([]models.RuleViolation, len(in))
	copy(out, in)
	return out
}
