package session

import (
	"errors"
	"fmt"

	"github.com/iudanet/shiftgrid/internal/models"
)

// ErrNotStarted is returned by operations that need a started session.
var ErrNotStarted = errors.New("session is not started")

// UserError is an error meant to be shown to the user.
type UserError struct {
	Err     error
	Op      string
	Message string
}

func (e *UserError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// ErrorHandler receives user-visible errors.
type ErrorHandler func(err *UserError)

func permissionError(op string, u models.CellUpdate, err error) *UserError {
	return &UserError{
		Op:      op,
		Message: fmt.Sprintf("you are not allowed to change %s on %s; the change will be reverted on next load", u.StaffID, u.Date),
		Err:     err,
	}
}

// rejectedError описывает изменение из очереди, которое сервер не принял
func rejectedError(change models.PendingChange, err error) *UserError {
	if errors.Is(err, models.ErrPermissionDenied) {
		return permissionError("sync", change.Update, err)
	}
	return &UserError{
		Op:      "sync",
		Message: fmt.Sprintf("queued change of %s on %s was rejected: %v", change.Update.StaffID, change.Update.Date, err),
		Err:     err,
	}
}
