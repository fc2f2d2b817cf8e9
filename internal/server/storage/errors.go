package storage

import "github.com/iudanet/shiftgrid/internal/models"

// Common storage errors
var (
	// ErrRecordNotFound indicates that the shift record was not found in storage
	ErrRecordNotFound = models.ErrRecordNotFound
)
