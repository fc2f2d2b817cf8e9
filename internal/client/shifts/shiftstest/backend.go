// Package shiftstest provides an in-memory record service with the same
// version semantics as the HTTP server, for tests of the client layers.
package shiftstest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/shiftgrid/internal/models"
)

// Backend is an in-memory record service.
type Backend struct {
	records map[string]*models.ShiftRecord // id -> запись
	byKey   map[string]string              // staffID|month -> id
	denied  map[string]bool                // сотрудники, запись которых запрещена
	down    bool
	writes  int
	mu      sync.Mutex
}

// New creates an empty backend.
func New() *Backend {
	return &Backend{
		records: make(map[string]*models.ShiftRecord),
		byKey:   make(map[string]string),
		denied:  make(map[string]bool),
	}
}

// SetDown makes every call fail with models.ErrUnavailable while down is true.
func (b *Backend) SetDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.down = down
}

// Deny rejects writes to the records of staffID with models.ErrPermissionDenied.
func (b *Backend) Deny(staffID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.denied[staffID] = true
}

// Writes returns the number of accepted writes.
func (b *Backend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.writes
}

// Seed stores a record directly, bypassing version checks.
func (b *Backend) Seed(staffID, month string, version int64, entries map[string]models.ShiftEntry) *models.ShiftRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	rec := &models.ShiftRecord{
		ID:        id,
		StaffID:   staffID,
		Month:     month,
		Version:   version,
		Entries:   copyEntries(entries),
		UpdatedBy: "seed",
		CreatedAt: time.Unix(0, 0).UTC(),
		UpdatedAt: time.Unix(0, 0).UTC(),
	}
	b.records[id] = rec
	b.byKey[staffID+"|"+month] = id
	return rec.Clone()
}

// Record returns a copy of the record for staffID/month or nil.
func (b *Backend) Record(staffID, month string) *models.ShiftRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.byKey[staffID+"|"+month]
	if !ok {
		return nil
	}
	return b.records[id].Clone()
}

// Fetch returns the records of staffIDs for month; an empty list means all.
func (b *Backend) Fetch(ctx context.Context, staffIDs []string, month string) ([]*models.ShiftRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.down {
		return nil, fmt.Errorf("fetch: %w", models.ErrUnavailable)
	}

	wanted := make(map[string]bool, len(staffIDs))
	for _, id := range staffIDs {
		wanted[id] = true
	}

	var out []*models.ShiftRecord
	for _, rec := range b.records {
		if rec.Month != month {
			continue
		}
		if len(wanted) > 0 && !wanted[rec.StaffID] {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StaffID < out[j].StaffID })
	return out, nil
}

// Update merges entries if the version matches.
func (b *Backend) Update(ctx context.Context, id string, entries map[string]models.ShiftEntry, expectedVersion int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.down {
		return 0, fmt.Errorf("update: %w", models.ErrUnavailable)
	}
	rec, ok := b.records[id]
	if !ok {
		return 0, models.ErrRecordNotFound
	}
	if b.denied[rec.StaffID] {
		return 0, models.ErrPermissionDenied
	}
	if rec.Version != expectedVersion {
		return 0, &models.VersionConflictError{RecordID: id, Expected: expectedVersion, Current: rec.Clone()}
	}

	for date, entry := range entries {
		rec.Entries[date] = entry
	}
	rec.Version++
	b.writes++
	return rec.Version, nil
}

// Create creates a record at version 1; an existing record is a conflict.
func (b *Backend) Create(ctx context.Context, staffID, month string, entries map[string]models.ShiftEntry) (*models.ShiftRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.down {
		return nil, fmt.Errorf("create: %w", models.ErrUnavailable)
	}
	if b.denied[staffID] {
		return nil, models.ErrPermissionDenied
	}
	if id, ok := b.byKey[staffID+"|"+month]; ok {
		existing := b.records[id]
		return nil, &models.VersionConflictError{RecordID: id, Current: existing.Clone()}
	}

	rec := &models.ShiftRecord{
		ID:      uuid.New().String(),
		StaffID: staffID,
		Month:   month,
		Version: 1,
		Entries: copyEntries(entries),
	}
	b.records[rec.ID] = rec
	b.byKey[staffID+"|"+month] = rec.ID
	b.writes++
	return rec.Clone(), nil
}

func copyEntries(entries map[string]models.ShiftEntry) map[string]models.ShiftEntry {
	out := make(map[string]models.ShiftEntry, len(entries))
	for date, entry := range entries {
		out[date] = entry
	}
	return out
}
