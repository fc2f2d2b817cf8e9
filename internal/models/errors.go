package models

import (
	"errors"
	"fmt"
)

// Domain errors shared by client and server
var (
	// ErrVersionConflict indicates that the expected-version precondition failed
	ErrVersionConflict = errors.New("version conflict")

	// ErrPermissionDenied indicates that the caller may not write the record
	ErrPermissionDenied = errors.New("permission denied")

	// ErrCellLocked indicates a state change on a cell with IsLocked=true
	ErrCellLocked = errors.New("cell is locked")

	// ErrLockHeld indicates that another user is editing the cell
	ErrLockHeld = errors.New("cell is being edited by another user")

	// ErrUnavailable indicates that the persistence service could not be reached
	ErrUnavailable = errors.New("persistence service unavailable")

	// ErrRecordNotFound indicates that the shift record does not exist
	ErrRecordNotFound = errors.New("shift record not found")
)

// VersionConflictError carries the server-side record that won the race.
type VersionConflictError struct {
	Current  *ShiftRecord
	RecordID string
	Expected int64
}

func (e *VersionConflictError) Error() string {
	actual := int64(0)
	if e.Current != nil {
		actual = e.Current.Version
	}
	return fmt.Sprintf("version conflict on record %s: expected %d, actual %d", e.RecordID, e.Expected, actual)
}

// Is makes errors.Is(err, ErrVersionConflict) succeed.
func (e *VersionConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}
