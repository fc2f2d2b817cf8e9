package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/shiftgrid/internal/models"
	"github.com/iudanet/shiftgrid/internal/validation"
)

// RunSet меняет состояние ячейки: set <staff> <date> <state>
func (c *Cli) RunSet(ctx context.Context, args []string) error {
	if err := c.requireArgs(args, 3, "set <staff> <date> <state>"); err != nil {
		return err
	}
	state := models.ShiftState(args[2])
	if err := validation.ValidateState(state); err != nil {
		return fmt.Errorf("invalid state: %w", err)
	}

	return c.update(ctx, models.CellUpdate{StaffID: args[0], Date: args[1], State: state})
}

// RunLock закрепляет или открепляет ячейку: lock|unlock <staff> <date>
func (c *Cli) RunLock(ctx context.Context, args []string, lock bool) error {
	usage := "lock <staff> <date>"
	if !lock {
		usage = "unlock <staff> <date>"
	}
	if err := c.requireArgs(args, 2, usage); err != nil {
		return err
	}

	return c.update(ctx, models.CellUpdate{StaffID: args[0], Date: args[1], Lock: &lock})
}

func (c *Cli) update(ctx context.Context, u models.CellUpdate) error {
	applied, err := c.session.UpdateShift(ctx, u)
	if err != nil {
		return fmt.Errorf("failed to update %s on %s: %w", u.StaffID, u.Date, err)
	}

	if !applied {
		holder := "another user"
		if lock, ok := c.session.LockHolder(ctx, u.StaffID, u.Date); ok {
			holder = lock.UserName
		}
		c.io.Printf("Cell %s %s is being edited by %s, try again later\n", u.StaffID, u.Date, holder)
		return nil
	}

	cell := c.session.Cell(u.StaffID, u.Date)
	locked := ""
	if cell.IsLocked {
		locked = " (locked)"
	}
	c.io.Printf("✓ %s %s: %s%s\n", u.StaffID, u.Date, cell.State, locked)
	if !c.session.IsOnline() {
		c.io.Println("Server is unreachable, the change is queued and will be sent on next sync")
	}
	return nil
}
