// Package history implements bounded linear undo/redo over cell updates.
package history

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/iudanet/shiftgrid/internal/clock"
	"github.com/iudanet/shiftgrid/internal/models"
)

// DefaultCapacity is the default size of each stack.
const DefaultCapacity = 50

// ApplyFunc applies (or reverts) a history entry. A returned error makes
// the manager roll the stacks back to their state before the call.
type ApplyFunc func(ctx context.Context, entry models.HistoryEntry) error

// Manager holds the undo and redo stacks. At most one undo or redo runs at
// a time; a call made while another is in flight is rejected.
type Manager struct {
	clock    clock.Clock
	onUndo   ApplyFunc
	onRedo   ApplyFunc
	logger   *slog.Logger
	undo     []models.HistoryEntry
	redo     []models.HistoryEntry
	capacity int
	mu       sync.Mutex
	inFlight bool
}

// NewManager creates a manager. onUndo receives the entry to revert,
// onRedo the entry to re-apply.
func NewManager(capacity int, onUndo, onRedo ApplyFunc, clk clock.Clock, logger *slog.Logger) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Manager{
		capacity: capacity,
		onUndo:   onUndo,
		onRedo:   onRedo,
		clock:    clk,
		logger:   logger,
	}
}

// Push records updates as a new entry and clears the redo stack.
func (m *Manager) Push(updates []models.CellUpdate, description string) models.HistoryEntry {
	copied := make([]models.CellUpdate, len(updates))
	copy(copied, updates)

	entry := models.HistoryEntry{
		ID:          uuid.New().String(),
		Timestamp:   m.clock.Now(),
		Updates:     copied,
		Description: description,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.undo, _ = pushBounded(m.undo, entry, m.capacity)
	m.redo = nil
	return entry
}

// Undo reverts the most recent entry. Returns false when there is nothing
// to undo, another operation is in flight, or the callback failed; in the
// last case both stacks are restored exactly.
func (m *Manager) Undo(ctx context.Context) bool {
	return m.move(ctx, true)
}

// Redo re-applies the most recently undone entry. Mirror of Undo.
func (m *Manager) Redo(ctx context.Context) bool {
	return m.move(ctx, false)
}

func (m *Manager) move(ctx context.Context, undo bool) bool {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return false
	}

	from, to := &m.undo, &m.redo
	apply := m.onUndo
	op := "undo"
	if !undo {
		from, to = &m.redo, &m.undo
		apply = m.onRedo
		op = "redo"
	}
	if len(*from) == 0 {
		m.mu.Unlock()
		return false
	}

	// Оптимистично переносим запись до вызова колбэка
	entry := (*from)[len(*from)-1]
	*from = (*from)[:len(*from)-1]
	var trimmed *models.HistoryEntry
	*to, trimmed = pushBounded(*to, entry, m.capacity)
	m.inFlight = true
	m.mu.Unlock()

	var err error
	if apply != nil {
		err = apply(ctx, entry)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false

	if err != nil {
		// Полный откат: запись возвращается, вытесненная запись восстанавливается
		*to = removeLast(*to, entry.ID)
		if trimmed != nil {
			*to = append([]models.HistoryEntry{*trimmed}, *to...)
		}
		*from = append(*from, entry)
		m.logger.Warn("History operation failed, stacks restored", "op", op, "entry_id", entry.ID, "error", err)
		return false
	}

	m.logger.Debug("History operation applied", "op", op, "entry_id", entry.ID, "updates", len(entry.Updates))
	return true
}

// CanUndo reports whether Undo would have an entry to revert.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.undo) > 0 && !m.inFlight
}

// CanRedo reports whether Redo would have an entry to re-apply.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.redo) > 0 && !m.inFlight
}

// UndoSize returns the undo stack depth.
func (m *Manager) UndoSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.undo)
}

// RedoSize returns the redo stack depth.
func (m *Manager) RedoSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.redo)
}

// InFlight reports whether an undo or redo is running.
func (m *Manager) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.inFlight
}

// History returns the undo stack, most recent entry first.
func (m *Manager) History() []models.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.HistoryEntry, 0, len(m.undo))
	for i := len(m.undo) - 1; i >= 0; i-- {
		out = append(out, m.undo[i])
	}
	return out
}

// Clear empties both stacks.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.undo = nil
	m.redo = nil
}

// pushBounded добавляет запись и вытесняет самую старую при переполнении
func pushBounded(stack []models.HistoryEntry, entry models.HistoryEntry, capacity int) ([]models.HistoryEntry, *models.HistoryEntry) {
	stack = append(stack, entry)
	if len(stack) <= capacity {
		return stack, nil
	}
	oldest := stack[0]
	out := make([]models.HistoryEntry, capacity)
	copy(out, stack[1:])
	return out, &oldest
}

func removeLast(stack []models.HistoryEntry, id string) []models.HistoryEntry {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].ID == id {
			return append(stack[:i:i], stack[i+1:]...)
		}
	}
	return stack
}
