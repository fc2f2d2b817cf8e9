// Package cli implements the commands of the shiftgrid client on top of a
// started collaborative session.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/shiftgrid/internal/client/iocli"
	"github.com/iudanet/shiftgrid/internal/client/selection"
	"github.com/iudanet/shiftgrid/internal/client/session"
	offline "github.com/iudanet/shiftgrid/internal/client/sync"
	"github.com/iudanet/shiftgrid/internal/models"
)

// Session is the part of session.Session the commands use
type Session interface {
	Month() string
	Grid() *selection.Grid
	Data() models.ShiftDataMap
	Cell(staffID, date string) models.ShiftCell
	UpdateShift(ctx context.Context, u models.CellUpdate) (bool, error)
	Audit() []models.RuleViolation
	ApplySuggestion(ctx context.Context, actionID string) (bool, error)
	Sync(ctx context.Context) (*offline.SyncResult, error)
	ResolveConflict(ctx context.Context, changeID string, strategy models.ConflictStrategy) error
	PendingChanges() []models.PendingChange
	NeedsAttention() []models.PendingChange
	IsOnline() bool
	RefreshUsers(ctx context.Context) []models.CollaborativeUser
	LockHolder(ctx context.Context, staffID, date string) (models.EditLock, bool)
}

var _ Session = (*session.Session)(nil)

// ErrUsage is returned for malformed command arguments
var ErrUsage = errors.New("invalid arguments")

type Cli struct {
	io      iocli.IO
	session Session
}

func New(io iocli.IO, s Session) *Cli {
	return &Cli{io: io, session: s}
}

// SetSession подключает сессию, собранную с обработчиками этого Cli.
func (c *Cli) SetSession(s Session) {
	c.session = s
}

// ConflictHandler печатает сообщение о конфликте версий.
// Разрешение выполняется отдельной командой resolve.
func (c *Cli) ConflictHandler() offline.ConflictHandler {
	return func(info models.ConflictInfo) {
		remote := "nothing"
		if info.RemoteUpdate != nil {
			remote = string(info.RemoteUpdate.State)
		}
		c.io.Printf("! Conflict on %s %s: yours %s, server has %s (version %d)\n",
			info.LocalUpdate.StaffID, info.LocalUpdate.Date, stateOrLock(info.LocalUpdate), remote, info.RemoteVersion)
		c.io.Printf("  resolve with: shiftgrid resolve %s local|remote\n", info.ChangeID)
	}
}

// ErrorHandler печатает ошибки, адресованные пользователю
func (c *Cli) ErrorHandler() session.ErrorHandler {
	return func(err *session.UserError) {
		c.io.Printf("! %s\n", err.Message)
	}
}

func (c *Cli) requireArgs(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("%w. Usage: shiftgrid %s", ErrUsage, usage)
	}
	return nil
}

func stateOrLock(u models.CellUpdate) string {
	var parts []string
	if u.ChangesState() {
		parts = append(parts, string(u.State))
	}
	if u.Lock != nil {
		if *u.Lock {
			parts = append(parts, "lock")
		} else {
			parts = append(parts, "unlock")
		}
	}
	return strings.Join(parts, "+")
}
