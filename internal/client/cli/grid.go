package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/iudanet/shiftgrid/internal/models"
)

var stateCodes = map[models.ShiftState]string{
	models.StateWork:         "W",
	models.StateFixedOff:     "F",
	models.StateRequestedOff: "R",
	models.StateAuto:         "A",
	models.StateEmpty:        ".",
}

// RunShow печатает сетку месяца: строка на сотрудника, столбец на день
func (c *Cli) RunShow(ctx context.Context) error {
	grid := c.session.Grid()
	if grid == nil {
		return fmt.Errorf("session is not started")
	}
	data := c.session.Data()

	status := "online"
	if !c.session.IsOnline() {
		status = "offline"
	}
	c.io.Printf("=== Shifts %s (%s) ===\n\n", c.session.Month(), status)

	w := tabwriter.NewWriter(c.io, 0, 0, 1, ' ', 0)
	dates := grid.Dates()

	header := []string{"STAFF"}
	for _, date := range dates {
		header = append(header, strings.TrimLeft(date[len(date)-2:], "0"))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, staffID := range grid.Staff() {
		row := []string{staffID}
		for _, date := range dates {
			row = append(row, cellCode(data, staffID, date))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to print grid: %w", err)
	}

	c.io.Println()
	c.io.Println("W work, F fixed off, R requested off, A auto, . empty, * locked")
	if n := len(c.session.PendingChanges()); n > 0 {
		c.io.Printf("%d change(s) waiting for sync\n", n)
	}
	return nil
}

func cellCode(data models.ShiftDataMap, staffID, date string) string {
	cell, ok := data.Get(staffID, date)
	if !ok {
		return stateCodes[models.StateEmpty]
	}
	code, known := stateCodes[cell.State]
	if !known {
		code = "?"
	}
	if cell.IsLocked {
		code += "*"
	}
	return code
}
