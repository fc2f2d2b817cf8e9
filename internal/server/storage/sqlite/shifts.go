package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/shiftgrid/internal/models"
	"github.com/iudanet/shiftgrid/internal/server/storage"
)

const recordColumns = `id, staff_id, month, entries, version, updated_by, created_at, updated_at`

// rowScanner общий интерфейс для *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// GetRecords returns the records of month ordered by staff id
// An empty staffIDs list means every staff member
func (s *Storage) GetRecords(ctx context.Context, month string, staffIDs []string) (records []*models.ShiftRecord, err error) {
	query := `SELECT ` + recordColumns + ` FROM shift_records WHERE month = ?`
	args := []any{month}

	if len(staffIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(staffIDs)), ",")
		query += ` AND staff_id IN (` + placeholders + `)`
		for _, id := range staffIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY staff_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	records = []*models.ShiftRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

// GetRecord retrieves a single record by ID
// Returns ErrRecordNotFound if record doesn't exist
func (s *Storage) GetRecord(ctx context.Context, id string) (*models.ShiftRecord, error) {
	return getRecord(ctx, s.db, `SELECT `+recordColumns+` FROM shift_records WHERE id = ?`, id)
}

// CreateRecord stores a new record at version 1
// Returns *models.VersionConflictError if the staff member already has a record for the month
func (s *Storage) CreateRecord(ctx context.Context, record *models.ShiftRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing, err := getRecord(ctx, tx,
		`SELECT `+recordColumns+` FROM shift_records WHERE staff_id = ? AND month = ?`,
		record.StaffID, record.Month)
	switch {
	case err == nil:
		return &models.VersionConflictError{RecordID: existing.ID, Current: existing}
	case !errors.Is(err, storage.ErrRecordNotFound):
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Entries == nil {
		record.Entries = map[string]models.ShiftEntry{}
	}
	record.Version = 1
	record.CreatedAt = now
	record.UpdatedAt = now

	entries, err := json.Marshal(record.Entries)
	if err != nil {
		return fmt.Errorf("failed to marshal entries: %w", err)
	}

	query := `
		INSERT INTO shift_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		record.ID,
		record.StaffID,
		record.Month,
		string(entries),
		record.Version,
		record.UpdatedBy,
		now.Unix(),
		now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateRecord merges entries into the record if its version equals expectedVersion
// Returns the new version, ErrRecordNotFound, or *models.VersionConflictError
func (s *Storage) UpdateRecord(ctx context.Context, id string, entries map[string]models.ShiftEntry, expectedVersion int64, updatedBy string) (version int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rec, err := getRecord(ctx, tx, `SELECT `+recordColumns+` FROM shift_records WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}

	// Версия - единственный арбитр: несовпадение всегда конфликт
	if rec.Version != expectedVersion {
		return 0, &models.VersionConflictError{RecordID: id, Expected: expectedVersion, Current: rec}
	}

	for date, entry := range entries {
		rec.Entries[date] = entry
	}
	merged, err := json.Marshal(rec.Entries)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal entries: %w", err)
	}

	query := `
		UPDATE shift_records
		SET entries = ?, version = version + 1, updated_by = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`
	result, err := tx.ExecContext(ctx, query, string(merged), updatedBy, time.Now().UTC().Unix(), id, expectedVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to update record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return 0, &models.VersionConflictError{RecordID: id, Expected: expectedVersion, Current: rec}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return expectedVersion + 1, nil
}

// queryer общий интерфейс для *sql.DB и *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRecord(ctx context.Context, q queryer, query string, args ...any) (*models.ShiftRecord, error) {
	rec, err := scanRecord(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}

// scanRecord читает одну запись; ошибку sql.ErrNoRows возвращает как есть
func scanRecord(row rowScanner) (*models.ShiftRecord, error) {
	rec := &models.ShiftRecord{}
	var entries string
	var createdAt, updatedAt int64

	err := row.Scan(
		&rec.ID,
		&rec.StaffID,
		&rec.Month,
		&entries,
		&rec.Version,
		&rec.UpdatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.Entries = map[string]models.ShiftEntry{}
	if err := json.Unmarshal([]byte(entries), &rec.Entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entries of record %s: %w", rec.ID, err)
	}
	rec.CreatedAt = unixToTime(createdAt)
	rec.UpdatedAt = unixToTime(updatedAt)

	return rec, nil
}

func unixToTime(timestamp int64) time.Time {
	return time.Unix(timestamp, 0).UTC()
}
