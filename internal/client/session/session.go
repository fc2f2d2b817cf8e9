// Package session assembles the collaborative editing components into one
// aggregate. Every write to the grid, whether manual, pasted, undone or
// suggested by a rule, goes through the same update path.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iudanet/shiftgrid/internal/client/history"
	"github.com/iudanet/shiftgrid/internal/client/presence"
	"github.com/iudanet/shiftgrid/internal/client/selection"
	"github.com/iudanet/shiftgrid/internal/client/shifts"
	offline "github.com/iudanet/shiftgrid/internal/client/sync"
	"github.com/iudanet/shiftgrid/internal/clock"
	"github.com/iudanet/shiftgrid/internal/models"
	"github.com/iudanet/shiftgrid/internal/rules"
	"github.com/iudanet/shiftgrid/internal/validation"
)

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("session is already started")

	// ErrUnknownAction is returned by ApplySuggestion for an id not present
	// in the last analysis pass.
	ErrUnknownAction = errors.New("unknown suggested action")
)

// Session is the collaborative editing session for one month of the grid.
type Session struct {
	clock     clock.Clock
	logger    *slog.Logger
	shifts    *shifts.Service
	queue     *offline.Queue
	presence  *presence.Service
	history   *history.Manager
	grid      *selection.Grid
	selector  *selection.Selector
	clipboard *selection.Clipboard
	auditor   *rules.Auditor
	onError   ErrorHandler
	cancel    context.CancelFunc
	done      chan struct{}
	month     string
	rules     []rules.Rule
	listeners []func([]models.RuleViolation)
	cfg       Config
	mu        sync.RWMutex
}

// Start loads the month, restores the offline queue, starts presence and
// runs the first rule analysis. If the record service is unreachable the
// cached grid is used and the queue starts offline.
func (s *Session) Start(ctx context.Context, month string) error {
	if err := validation.ValidateMonth(month); err != nil {
		return err
	}

	s.mu.Lock()
	if s.auditor != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.mu.Unlock()

	if err := s.queue.Load(ctx); err != nil {
		s.logger.Warn("Failed to load pending changes", "error", err)
	}

	fromCache, err := s.shifts.Fetch(ctx, s.cfg.StaffIDs, month)
	switch {
	case errors.Is(err, models.ErrUnavailable):
		// Ни сервера, ни кэша: начинаем с пустой сетки
		s.logger.Warn("Record service unavailable and no cache, starting empty", "month", month)
		s.queue.SetOnline(false)
	case err != nil:
		return fmt.Errorf("failed to load month %s: %w", month, err)
	case fromCache:
		s.logger.Info("Record service unavailable, working from cache", "month", month)
		s.queue.SetOnline(false)
	}

	staff := s.cfg.StaffIDs
	if len(staff) == 0 {
		staff = s.shifts.Snapshot().StaffIDs()
	}
	dates, err := validation.MonthDates(month)
	if err != nil {
		return err
	}
	grid, err := selection.NewGrid(staff, dates)
	if err != nil {
		return fmt.Errorf("failed to build grid: %w", err)
	}

	auditor := rules.NewAuditor(s.rules, s.shifts.Snapshot, staff, dates, s.cfg.RuleDebounce, s.clock, s.logger.With("component", "rules"))
	auditor.OnViolations(s.fireViolations)

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.month = month
	s.grid = grid
	s.selector = selection.NewSelector(grid)
	s.clipboard = selection.NewClipboard(grid)
	s.auditor = auditor
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.shifts.OnChange(auditor.Notify)
	auditor.AnalyzeNow()

	go func() {
		defer close(done)
		if err := s.presence.Run(runCtx); err != nil {
			s.logger.Error("Presence loop stopped", "error", err)
		}
	}()

	if s.queue.IsOnline() && s.queue.Len() > 0 {
		if _, err := s.queue.Sync(ctx); err != nil {
			s.logger.Warn("Initial sync failed", "error", err)
		}
	}

	s.logger.Info("Session started", "month", month, "staff", len(staff), "pending", s.queue.Len())
	return nil
}

// Close stops background work and releases presence and edit locks.
func (s *Session) Close() {
	s.mu.Lock()
	cancel, done, auditor := s.cancel, s.done, s.auditor
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if auditor != nil {
		auditor.Stop()
	}
	s.queue.Close()
}

// Month returns the loaded month.
func (s *Session) Month() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.month
}

// Data returns a copy of the grid.
func (s *Session) Data() models.ShiftDataMap {
	return s.shifts.Snapshot()
}

// Cell returns one cell of the grid.
func (s *Session) Cell(staffID, date string) models.ShiftCell {
	return s.shifts.Cell(staffID, date)
}

// Grid returns the staff and date axes. Nil before Start.
func (s *Session) Grid() *selection.Grid {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.grid
}

// UpdateShift applies one update and records it in history.
//
// It returns false without error when another user is editing the cell.
// A locked cell or an invalid update is returned as an error and nothing
// changes. Everything else, including conflicts, permission errors and an
// unreachable record service, is handled here: the update stays applied
// locally.
func (s *Session) UpdateShift(ctx context.Context, u models.CellUpdate) (bool, error) {
	applied, err := s.apply(ctx, "update", []models.CellUpdate{u})
	if err != nil {
		return false, err
	}
	if len(applied) == 0 {
		return false, nil
	}
	s.history.Push(applied, describe(applied[0]))
	return true, nil
}

// BatchUpdateShifts applies updates in order as one history entry and
// returns how many were applied. Errors of individual updates are joined.
func (s *Session) BatchUpdateShifts(ctx context.Context, updates []models.CellUpdate, description string) (int, error) {
	applied, err := s.apply(ctx, "batch update", updates)
	if len(applied) > 0 {
		if description == "" {
			description = fmt.Sprintf("Update %d cells", len(applied))
		}
		s.history.Push(applied, description)
	}
	return len(applied), err
}

// apply пропускает обновления через слой синхронизации и разбирает исход
func (s *Session) apply(ctx context.Context, op string, updates []models.CellUpdate) ([]models.CellUpdate, error) {
	applied := make([]models.CellUpdate, 0, len(updates))
	var errs []error

	for _, u := range updates {
		if err := s.check(ctx, u); err != nil {
			if errors.Is(err, models.ErrLockHeld) {
				s.logger.Debug("Cell is being edited by another user, update skipped",
					"staff_id", u.StaffID, "date", u.Date)
				continue
			}
			errs = append(errs, err)
			continue
		}

		cell := s.shifts.Cell(u.StaffID, u.Date)
		u.Previous = cell.State
		u.WasLocked = cell.IsLocked

		if err := s.route(ctx, op, u, s.shifts.UpdateCell(ctx, u)); err != nil {
			errs = append(errs, err)
			continue
		}
		applied = append(applied, u)
	}

	return applied, errors.Join(errs...)
}

// check отклоняет обновление до изменения карты
func (s *Session) check(ctx context.Context, u models.CellUpdate) error {
	if err := validation.ValidateUpdate(u); err != nil {
		return err
	}
	if s.presence.IsCellLockedByOther(ctx, u.StaffID, u.Date) {
		return fmt.Errorf("%w: %s/%s", models.ErrLockHeld, u.StaffID, u.Date)
	}
	cell := s.shifts.Cell(u.StaffID, u.Date)
	unlocking := u.Lock != nil && !*u.Lock
	if cell.IsLocked && u.ChangesState() && !unlocking {
		return fmt.Errorf("%w: %s/%s", models.ErrCellLocked, u.StaffID, u.Date)
	}
	return nil
}

// route разбирает результат записи. nil означает, что изменение применено
// локально и либо подтверждено, либо передано очереди или обработчику.
func (s *Session) route(ctx context.Context, op string, u models.CellUpdate, err error) error {
	switch {
	case err == nil:
		s.queue.SetOnline(true)
		return nil

	case errors.Is(err, models.ErrCellLocked):
		return err

	case errors.Is(err, models.ErrVersionConflict):
		if _, qerr := s.queue.ReportConflict(ctx, u, s.shifts.BaseVersion(u.StaffID, u.Date), err); qerr != nil {
			s.logger.Error("Failed to record conflict", "staff_id", u.StaffID, "date", u.Date, "error", qerr)
		}
		return nil

	case errors.Is(err, models.ErrPermissionDenied):
		s.reportError(permissionError(op, u, err))
		return nil

	default:
		if errors.Is(err, models.ErrUnavailable) {
			s.queue.SetOnline(false)
		} else {
			s.logger.Warn("Write failed, queued for retry", "staff_id", u.StaffID, "date", u.Date, "error", err)
		}
		// Ячейка еще хранит версию, на которой сделано изменение
		if _, qerr := s.queue.AddPendingChange(ctx, u, s.shifts.BaseVersion(u.StaffID, u.Date)); qerr != nil {
			s.logger.Error("Failed to queue change", "staff_id", u.StaffID, "date", u.Date, "error", qerr)
		}
		return nil
	}
}

func (s *Session) reportError(err *UserError) {
	s.logger.Warn("User error", "op", err.Op, "error", err.Err)
	if s.onError != nil {
		s.onError(err)
	}
}

// Undo reverts the most recent history entry.
func (s *Session) Undo(ctx context.Context) bool {
	return s.history.Undo(ctx)
}

// Redo re-applies the most recently undone entry.
func (s *Session) Redo(ctx context.Context) bool {
	return s.history.Redo(ctx)
}

// CanUndo reports whether Undo would run.
func (s *Session) CanUndo() bool { return s.history.CanUndo() }

// CanRedo reports whether Redo would run.
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// History returns undo entries, most recent first.
func (s *Session) History() []models.HistoryEntry {
	return s.history.History()
}

func (s *Session) onUndo(ctx context.Context, entry models.HistoryEntry) error {
	inverses := make([]models.CellUpdate, 0, len(entry.Updates))
	for i := len(entry.Updates) - 1; i >= 0; i-- {
		inverses = append(inverses, entry.Updates[i].Inverse())
	}
	return s.replay(ctx, "undo", inverses)
}

func (s *Session) onRedo(ctx context.Context, entry models.HistoryEntry) error {
	return s.replay(ctx, "redo", entry.Updates)
}

// replay применяет записи истории целиком или не применяет ничего
func (s *Session) replay(ctx context.Context, op string, updates []models.CellUpdate) error {
	for _, u := range updates {
		if err := s.check(ctx, u); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if _, err := s.apply(ctx, op, updates); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Selection returns the selector. Nil before Start.
func (s *Session) Selection() *selection.Selector {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.selector
}

// Copy captures the current selection into the clipboard.
func (s *Session) Copy() (models.ClipboardSnapshot, error) {
	s.mu.RLock()
	selector, clipboard := s.selector, s.clipboard
	s.mu.RUnlock()
	if clipboard == nil {
		return models.ClipboardSnapshot{}, ErrNotStarted
	}

	return clipboard.Copy(selector.Selected(), s.stateOf), nil
}

// Paste writes the clipboard at target as one history entry and returns
// how many cells were applied. Cells falling outside the grid are dropped.
func (s *Session) Paste(ctx context.Context, target models.CellRef) (int, error) {
	s.mu.RLock()
	clipboard := s.clipboard
	s.mu.RUnlock()
	if clipboard == nil {
		return 0, ErrNotStarted
	}

	updates := clipboard.Paste(target, s.stateOf)
	if len(updates) == 0 {
		return 0, nil
	}

	applied, err := s.apply(ctx, "paste", updates)
	if len(applied) > 0 {
		s.history.Push(applied, fmt.Sprintf("Paste %d cells", len(applied)))
	}
	return len(applied), err
}

func (s *Session) stateOf(staffID, date string) models.ShiftState {
	return s.shifts.Cell(staffID, date).State
}

// OnViolations registers fn to receive the result of every analysis pass.
func (s *Session) OnViolations(fn func([]models.RuleViolation)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, fn)
}

func (s *Session) fireViolations(v []models.RuleViolation) {
	s.mu.RLock()
	listeners := append([](func([]models.RuleViolation))(nil), s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(v)
	}
}

// Violations returns the result of the last analysis pass.
func (s *Session) Violations() []models.RuleViolation {
	s.mu.RLock()
	auditor := s.auditor
	s.mu.RUnlock()
	if auditor == nil {
		return nil
	}
	return auditor.Violations()
}

// Audit runs the analysis immediately instead of waiting for the debounce.
func (s *Session) Audit() []models.RuleViolation {
	s.mu.RLock()
	auditor := s.auditor
	s.mu.RUnlock()
	if auditor == nil {
		return nil
	}
	auditor.AnalyzeNow()
	return auditor.Violations()
}

// ApplySuggestion applies a suggested action through the regular update
// path as one history entry.
func (s *Session) ApplySuggestion(ctx context.Context, actionID string) (bool, error) {
	s.mu.RLock()
	auditor := s.auditor
	s.mu.RUnlock()
	if auditor == nil {
		return false, ErrNotStarted
	}

	action, ok := auditor.Action(actionID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownAction, actionID)
	}

	applied, err := s.apply(ctx, "apply suggestion", action.Updates)
	if len(applied) > 0 {
		s.history.Push(applied, action.Description)
	}
	return len(applied) > 0, err
}

// Sync drains the offline queue.
func (s *Session) Sync(ctx context.Context) (*offline.SyncResult, error) {
	return s.queue.Sync(ctx)
}

// ResolveConflict resolves a conflicted pending change.
func (s *Session) ResolveConflict(ctx context.Context, changeID string, strategy models.ConflictStrategy) error {
	return s.queue.ResolveConflict(ctx, changeID, strategy)
}

// PendingChanges returns the offline queue.
func (s *Session) PendingChanges() []models.PendingChange {
	return s.queue.PendingChanges()
}

// Conflicts returns unresolved conflicts.
func (s *Session) Conflicts() []models.ConflictInfo {
	return s.queue.Conflicts()
}

// NeedsAttention returns pending changes that exceeded the retry limit.
func (s *Session) NeedsAttention() []models.PendingChange {
	return s.queue.NeedsAttention()
}

// IsOnline reports the queue connectivity state.
func (s *Session) IsOnline() bool {
	return s.queue.IsOnline()
}

// Users returns the last known roster.
func (s *Session) Users() []models.CollaborativeUser {
	return s.presence.Users()
}

// OnUsersChange registers fn for roster membership changes.
func (s *Session) OnUsersChange(fn func([]models.CollaborativeUser)) {
	s.presence.OnChange(fn)
}

// RefreshUsers reads the roster from the shared store.
func (s *Session) RefreshUsers(ctx context.Context) []models.CollaborativeUser {
	return s.presence.ListActive(ctx)
}

// StartEditingCell takes the advisory edit lock on a cell.
func (s *Session) StartEditingCell(ctx context.Context, staffID, date string) error {
	return s.presence.StartEditingCell(ctx, staffID, date)
}

// StopEditingCell releases the edit lock on a cell.
func (s *Session) StopEditingCell(ctx context.Context, staffID, date string) {
	s.presence.StopEditingCell(ctx, staffID, date)
}

// IsCellLockedByOther reports whether another user is editing the cell.
func (s *Session) IsCellLockedByOther(ctx context.Context, staffID, date string) bool {
	return s.presence.IsCellLockedByOther(ctx, staffID, date)
}

// LockHolder returns the edit lock on a cell, if any.
func (s *Session) LockHolder(ctx context.Context, staffID, date string) (models.EditLock, bool) {
	return s.presence.LockHolder(ctx, staffID, date)
}

// ForceRelease removes the edit lock on a cell regardless of its owner.
func (s *Session) ForceRelease(ctx context.Context, staffID, date string) error {
	return s.presence.ForceRelease(ctx, staffID, date)
}

func describe(u models.CellUpdate) string {
	switch {
	case u.ChangesState() && u.Lock != nil:
		return fmt.Sprintf("Set %s on %s to %s (lock %t)", u.StaffID, u.Date, u.State, *u.Lock)
	case u.ChangesState():
		return fmt.Sprintf("Set %s on %s to %s", u.StaffID, u.Date, u.State)
	case u.Lock != nil && *u.Lock:
		return fmt.Sprintf("Lock %s on %s", u.StaffID, u.Date)
	default:
		return fmt.Sprintf("Unlock %s on %s", u.StaffID, u.Date)
	}
}
