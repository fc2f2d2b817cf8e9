package storage

import (
	"context"

	"github.com/iudanet/shiftgrid/internal/models"
)

// ShiftStorage defines interface for shift record persistence
type ShiftStorage interface {
	// GetRecords returns the records of month ordered by staff id.
	// An empty staffIDs list means every staff member.
	// Returns empty slice if no records found
	GetRecords(ctx context.Context, month string, staffIDs []string) ([]*models.ShiftRecord, error)

	// GetRecord retrieves a single record by ID
	// Returns ErrRecordNotFound if record doesn't exist
	GetRecord(ctx context.Context, id string) (*models.ShiftRecord, error)

	// CreateRecord stores a new record at version 1 and fills its ID and timestamps
	// Returns *models.VersionConflictError carrying the existing record if
	// the staff member already has a record for the month
	CreateRecord(ctx context.Context, record *models.ShiftRecord) error

	// UpdateRecord merges entries into the record if its version equals
	// expectedVersion and returns the new version
	// Returns *models.VersionConflictError carrying the stored record on mismatch
	UpdateRecord(ctx context.Context, id string, entries map[string]models.ShiftEntry, expectedVersion int64, updatedBy string) (int64, error)
}
