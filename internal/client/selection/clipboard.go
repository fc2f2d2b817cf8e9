package selection

import (
	"sync"

	"github.com/iudanet/shiftgrid/internal/models"
)

// StateResolver returns the current state of a cell.
type StateResolver func(staffID, date string) models.ShiftState

// Clipboard holds the last copied block.
type Clipboard struct {
	grid     *Grid
	snapshot *models.ClipboardSnapshot
	mu       sync.Mutex
}

// NewClipboard creates an empty clipboard over grid.
func NewClipboard(grid *Grid) *Clipboard {
	return &Clipboard{grid: grid}
}

// Copy captures the state of every cell in refs together with the bounding
// box of their positions. Cells outside the grid are skipped. An empty input
// yields an empty snapshot and leaves the previous clipboard untouched.
func (c *Clipboard) Copy(refs []models.CellRef, resolve StateResolver) models.ClipboardSnapshot {
	snap := models.ClipboardSnapshot{}
	first := true

	for _, ref := range refs {
		si, di, ok := c.grid.Position(ref)
		if !ok {
			continue
		}
		snap.Cells = append(snap.Cells, models.ClipboardCell{
			StaffIndex: si,
			DateIndex:  di,
			State:      resolve(ref.StaffID, ref.Date),
		})

		if first {
			snap.BoundingBox = models.BoundingBox{MinStaffIndex: si, MaxStaffIndex: si, MinDateIndex: di, MaxDateIndex: di}
			first = false
			continue
		}
		box := &snap.BoundingBox
		box.MinStaffIndex = min(box.MinStaffIndex, si)
		box.MaxStaffIndex = max(box.MaxStaffIndex, si)
		box.MinDateIndex = min(box.MinDateIndex, di)
		box.MaxDateIndex = max(box.MaxDateIndex, di)
	}

	if len(snap.Cells) == 0 {
		return snap
	}

	c.mu.Lock()
	stored := snap
	stored.Cells = append([]models.ClipboardCell(nil), snap.Cells...)
	c.snapshot = &stored
	c.mu.Unlock()

	return snap
}

// Snapshot returns the current clipboard content.
func (c *Clipboard) Snapshot() (models.ClipboardSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot == nil {
		return models.ClipboardSnapshot{}, false
	}
	return *c.snapshot, true
}

// Paste maps the clipboard block so that its top-left corner lands on
// target and returns one update per cell that stays inside the grid.
// Cells falling outside are dropped. Previous is filled from resolve.
func (c *Clipboard) Paste(target models.CellRef, resolve StateResolver) []models.CellUpdate {
	c.mu.Lock()
	snap := c.snapshot
	c.mu.Unlock()

	if snap == nil || len(snap.Cells) == 0 {
		return []models.CellUpdate{}
	}
	ts, td, ok := c.grid.Position(target)
	if !ok {
		return []models.CellUpdate{}
	}

	deltaS := ts - snap.BoundingBox.MinStaffIndex
	deltaD := td - snap.BoundingBox.MinDateIndex

	updates := make([]models.CellUpdate, 0, len(snap.Cells))
	for _, cell := range snap.Cells {
		ref, inside := c.grid.At(cell.StaffIndex+deltaS, cell.DateIndex+deltaD)
		if !inside {
			continue
		}
		updates = append(updates, models.CellUpdate{
			StaffID:  ref.StaffID,
			Date:     ref.Date,
			State:    cell.State,
			Previous: resolve(ref.StaffID, ref.Date),
		})
	}
	return updates
}

// Clear empties the clipboard.
func (c *Clipboard) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot = nil
}
