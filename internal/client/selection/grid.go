// Package selection implements rectangular multi-select over the staff×date
// index space and the copy/paste transform that remaps a captured block to a
// new anchor.
package selection

import (
	"fmt"

	"github.com/iudanet/shiftgrid/internal/models"
)

// Grid is the ordered index space of a view: staff rows and date columns.
type Grid struct {
	staffIndex map[string]int
	dateIndex  map[string]int
	staff      []string
	dates      []string
}

// NewGrid builds the index space. Duplicate ids are rejected.
func NewGrid(staff, dates []string) (*Grid, error) {
	g := &Grid{
		staff:      append([]string(nil), staff...),
		dates:      append([]string(nil), dates...),
		staffIndex: make(map[string]int, len(staff)),
		dateIndex:  make(map[string]int, len(dates)),
	}
	for i, id := range g.staff {
		if _, dup := g.staffIndex[id]; dup {
			return nil, fmt.Errorf("duplicate staff id %q", id)
		}
		g.staffIndex[id] = i
	}
	for i, d := range g.dates {
		if _, dup := g.dateIndex[d]; dup {
			return nil, fmt.Errorf("duplicate date %q", d)
		}
		g.dateIndex[d] = i
	}
	return g, nil
}

// Staff returns the staff ids in row order.
func (g *Grid) Staff() []string { return append([]string(nil), g.staff...) }

// Dates returns the dates in column order.
func (g *Grid) Dates() []string { return append([]string(nil), g.dates...) }

// Position returns the indices of a cell; ok is false when it is outside the grid.
func (g *Grid) Position(ref models.CellRef) (staffIdx, dateIdx int, ok bool) {
	s, okS := g.staffIndex[ref.StaffID]
	d, okD := g.dateIndex[ref.Date]
	return s, d, okS && okD
}

// At returns the cell at the given indices.
func (g *Grid) At(staffIdx, dateIdx int) (models.CellRef, bool) {
	if staffIdx < 0 || staffIdx >= len(g.staff) || dateIdx < 0 || dateIdx >= len(g.dates) {
		return models.CellRef{}, false
	}
	return models.CellRef{StaffID: g.staff[staffIdx], Date: g.dates[dateIdx]}, true
}

// Contains reports whether ref lies inside the grid.
func (g *Grid) Contains(ref models.CellRef) bool {
	_, _, ok := g.Position(ref)
	return ok
}
