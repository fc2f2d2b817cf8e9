package selection

import (
	"sort"
	"sync"

	"github.com/iudanet/shiftgrid/internal/models"
)

// Selector holds the current selection, the anchor and the drag state.
type Selector struct {
	grid     *Grid
	selected map[models.CellRef]struct{}
	anchor   *models.CellRef
	mu       sync.Mutex
	dragging bool
}

// NewSelector creates an empty selection over grid.
func NewSelector(grid *Grid) *Selector {
	return &Selector{
		grid:     grid,
		selected: make(map[models.CellRef]struct{}),
	}
}

// SelectCell replaces the selection with ref and makes it the anchor.
// Cells outside the grid are ignored.
func (s *Selector) SelectCell(ref models.CellRef) {
	if !s.grid.Contains(ref) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = map[models.CellRef]struct{}{ref: {}}
	anchor := ref
	s.anchor = &anchor
}

// ToggleCell adds or removes ref without touching the rest of the selection.
func (s *Selector) ToggleCell(ref models.CellRef) {
	if !s.grid.Contains(ref) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.selected[ref]; ok {
		delete(s.selected, ref)
		return
	}
	s.selected[ref] = struct{}{}
}

// SelectRange selects the inclusive rectangle spanned by the two corners,
// regardless of their order. The anchor is not changed.
func (s *Selector) SelectRange(from, to models.CellRef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selectRangeLocked(from, to)
}

func (s *Selector) selectRangeLocked(from, to models.CellRef) {
	fs, fd, okFrom := s.grid.Position(from)
	ts, td, okTo := s.grid.Position(to)
	if !okFrom || !okTo {
		return
	}

	minS, maxS := minMax(fs, ts)
	minD, maxD := minMax(fd, td)

	selected := make(map[models.CellRef]struct{}, (maxS-minS+1)*(maxD-minD+1))
	for si := minS; si <= maxS; si++ {
		for di := minD; di <= maxD; di++ {
			ref, _ := s.grid.At(si, di)
			selected[ref] = struct{}{}
		}
	}
	s.selected = selected
}

// ExtendTo selects the rectangle between the anchor and ref (shift-click).
// Without an anchor it behaves like SelectCell.
func (s *Selector) ExtendTo(ref models.CellRef) {
	s.mu.Lock()
	anchor := s.anchor
	s.mu.Unlock()

	if anchor == nil {
		s.SelectCell(ref)
		return
	}
	s.SelectRange(*anchor, ref)
}

// StartDragSelect fixes the anchor at ref and selects it.
func (s *Selector) StartDragSelect(ref models.CellRef) {
	if !s.grid.Contains(ref) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	anchor := ref
	s.anchor = &anchor
	s.dragging = true
	s.selected = map[models.CellRef]struct{}{ref: {}}
}

// UpdateDragSelect recomputes the rectangle between the anchor and ref.
func (s *Selector) UpdateDragSelect(ref models.CellRef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dragging || s.anchor == nil {
		return
	}
	s.selectRangeLocked(*s.anchor, ref)
}

// EndDragSelect finishes the drag; the selection stays as it is.
func (s *Selector) EndDragSelect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dragging = false
}

// IsDragging reports whether a drag is in progress.
func (s *Selector) IsDragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dragging
}

// Anchor returns the current anchor.
func (s *Selector) Anchor() (models.CellRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.anchor == nil {
		return models.CellRef{}, false
	}
	return *s.anchor, true
}

// IsSelected reports whether ref is selected.
func (s *Selector) IsSelected(ref models.CellRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.selected[ref]
	return ok
}

// Selected returns the selection in row-major index order.
func (s *Selector) Selected() []models.CellRef {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.CellRef, 0, len(s.selected))
	for ref := range s.selected {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		si, di, _ := s.grid.Position(out[i])
		sj, dj, _ := s.grid.Position(out[j])
		if si != sj {
			return si < sj
		}
		return di < dj
	})
	return out
}

// Len returns the number of selected cells.
func (s *Selector) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.selected)
}

// Clear empties the selection and drops the anchor.
func (s *Selector) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = make(map[models.CellRef]struct{})
	s.anchor = nil
	s.dragging = false
}

func minMax(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}
