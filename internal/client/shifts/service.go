// Package shifts is the optimistic-concurrency sync layer. It owns the
// ShiftDataMap: every mutation of the grid, whether it comes from a manual
// edit, a paste, an undo or an applied rule suggestion, goes through
// UpdateCell/BatchUpdate (or the conflict-resolution helpers) in this package.
package shifts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/iudanet/shiftgrid/internal/client/storage"
	"github.com/iudanet/shiftgrid/internal/clock"
	"github.com/iudanet/shiftgrid/internal/models"
	"github.com/iudanet/shiftgrid/internal/validation"
)

//go:generate moq -out persistence_mock.go . Persistence

// Persistence is the backing record service.
// Update must return an error matching models.ErrVersionConflict when the
// expected version does not match, models.ErrPermissionDenied when the caller
// may not write, and models.ErrUnavailable when the service cannot be reached.
type Persistence interface {
	// Fetch returns the records of the given staff for month
	Fetch(ctx context.Context, staffIDs []string, month string) ([]*models.ShiftRecord, error)

	// Update merges entries into record id if its version equals expectedVersion
	// Returns the new version
	Update(ctx context.Context, id string, entries map[string]models.ShiftEntry, expectedVersion int64) (int64, error)

	// Create creates the record of staffID for month
	Create(ctx context.Context, staffID, month string, entries map[string]models.ShiftEntry) (*models.ShiftRecord, error)
}

// recordRef is what the client knows about a server record.
type recordRef struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
}

// Service applies cell updates optimistically and confirms them against
// the persistence collaborator.
type Service struct {
	persistence Persistence
	cache       storage.KVStore
	clock       clock.Clock
	logger      *slog.Logger

	data    models.ShiftDataMap
	records map[string]recordRef // staffID|month -> запись на сервере
	// dirty содержит ячейки с неподтвержденными локальными изменениями;
	// Fetch их не перезаписывает
	dirty map[string]bool
	// advanced запоминает собственные подтвержденные переходы версий записи
	// (ожидаемая -> новая), чтобы изменения из очереди не конфликтовали с ними
	advanced  map[string]map[int64]int64
	listeners []func()
	userID    string
	mu        sync.RWMutex
}

// NewService creates the sync layer for userID. cache may be nil.
func NewService(persistence Persistence, cache storage.KVStore, clk clock.Clock, userID string, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.System()
	}
	return &Service{
		persistence: persistence,
		cache:       cache,
		clock:       clk,
		logger:      logger,
		userID:      userID,
		data:        make(models.ShiftDataMap),
		records:     make(map[string]recordRef),
		dirty:       make(map[string]bool),
		advanced:    make(map[string]map[int64]int64),
	}
}

// BaseVersion returns the version a new edit of the cell is based on: the
// cell's version, or the record's when the cell has never been written.
func (s *Service) BaseVersion(staffID, date string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cell, ok := s.data.Get(staffID, date); ok && cell.Version > 0 {
		return cell.Version
	}
	return s.records[recordKey(staffID, models.MonthOf(date))].Version
}

// OnChange registers fn to be called after every local mutation of the map.
func (s *Service) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, fn)
}

// Snapshot returns a deep copy of the grid.
func (s *Service) Snapshot() models.ShiftDataMap {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data.Clone()
}

// Cell returns a copy of one cell.
func (s *Service) Cell(staffID, date string) models.ShiftCell {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cell, _ := s.data.Get(staffID, date)
	return cell
}

// IsDirty reports whether the cell has an unconfirmed local change.
func (s *Service) IsDirty(staffID, date string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dirty[models.CellKey(staffID, date)]
}

// Fetch reconciles local state with the server for month. It is meant for
// session bootstrap: cells with unconfirmed local edits are left untouched.
// When the server is unreachable the offline cache is loaded instead and
// fromCache is true.
func (s *Service) Fetch(ctx context.Context, staffIDs []string, month string) (fromCache bool, err error) {
	if err := validation.ValidateMonth(month); err != nil {
		return false, err
	}

	records, err := s.persistence.Fetch(ctx, staffIDs, month)
	if err != nil {
		if errors.Is(err, models.ErrUnavailable) && s.loadCache(ctx, month) {
			s.logger.Warn("Server unavailable, grid loaded from offline cache", "month", month, "error", err)
			s.notify()
			return true, nil
		}
		return false, fmt.Errorf("failed to fetch shifts: %w", err)
	}

	s.mu.Lock()
	for _, rec := range records {
		s.mergeRecordLocked(rec)
	}
	s.mu.Unlock()

	s.logger.Info("Shift data fetched", "month", month, "records", len(records))

	s.saveCache(ctx, month)
	s.notify()
	return false, nil
}

// mergeRecordLocked переносит запись сервера в карту, пропуская "грязные" ячейки
func (s *Service) mergeRecordLocked(rec *models.ShiftRecord) {
	key := recordKey(rec.StaffID, rec.Month)
	if ref, ok := s.records[key]; !ok || rec.Version >= ref.Version {
		s.records[key] = recordRef{ID: rec.ID, Version: rec.Version}
	}

	for date, entry := range rec.Entries {
		if s.dirty[models.CellKey(rec.StaffID, date)] {
			continue
		}
		s.data.Set(rec.StaffID, date, models.ShiftCell{
			State:         entry.State,
			IsLocked:      entry.IsLocked,
			Version:       rec.Version,
			LastChangedBy: rec.UpdatedBy,
			LastChangedAt: rec.UpdatedAt,
		})
	}
}

// UpdateCell applies update to the local map immediately and then writes it
// with the cell's known version as precondition.
//
// Returns models.ErrCellLocked (nothing applied) for state changes on a
// locked cell. Persistence errors are returned as-is after the optimistic
// value has been applied; the local value is never rolled back here.
func (s *Service) UpdateCell(ctx context.Context, update models.CellUpdate) error {
	if err := s.applyLocal(update); err != nil {
		return err
	}
	s.notify()

	return s.persist(ctx, update)
}

// BatchUpdate applies updates sequentially with the same per-cell contract
// as UpdateCell. The returned slice is aligned with updates.
func (s *Service) BatchUpdate(ctx context.Context, updates []models.CellUpdate) []error {
	errs := make([]error, len(updates))
	for i, u := range updates {
		errs[i] = s.UpdateCell(ctx, u)
	}
	return errs
}

// applyLocal выполняет оптимистичное изменение карты
func (s *Service) applyLocal(update models.CellUpdate) error {
	if err := validation.ValidateUpdate(update); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cell, _ := s.data.Get(update.StaffID, update.Date)
	if cell.IsLocked && update.ChangesState() {
		// Закрепленная ячейка принимает только снятие закрепления
		unlocking := update.Lock != nil && !*update.Lock
		if !unlocking {
			return fmt.Errorf("%w: %s/%s", models.ErrCellLocked, update.StaffID, update.Date)
		}
	}

	if update.Lock != nil {
		cell.IsLocked = *update.Lock
	}
	if update.ChangesState() {
		cell.State = update.State
	}
	if cell.State == "" {
		cell.State = models.StateEmpty
	}
	cell.LastChangedBy = s.userID
	cell.LastChangedAt = s.clock.Now()
	if cell.Version == 0 {
		if ref, ok := s.records[recordKey(update.StaffID, update.Month())]; ok {
			cell.Version = ref.Version
		}
	}

	s.data.Set(update.StaffID, update.Date, cell)
	s.dirty[models.CellKey(update.StaffID, update.Date)] = true
	return nil
}

// persist отправляет текущее локальное значение ячейки на сервер
func (s *Service) persist(ctx context.Context, update models.CellUpdate) error {
	s.mu.RLock()
	ref := s.records[recordKey(update.StaffID, update.Month())]
	cell, _ := s.data.Get(update.StaffID, update.Date)
	s.mu.RUnlock()

	expected := cell.Version
	if expected == 0 {
		expected = ref.Version
	}
	return s.write(ctx, update, expected)
}

// write отправляет значение ячейки с заданной ожидаемой версией записи
func (s *Service) write(ctx context.Context, update models.CellUpdate, expected int64) error {
	month := update.Month()
	key := recordKey(update.StaffID, month)

	s.mu.RLock()
	ref, hasRecord := s.records[key]
	cell, _ := s.data.Get(update.StaffID, update.Date)
	s.mu.RUnlock()

	entries := map[string]models.ShiftEntry{
		update.Date: {State: cell.State, IsLocked: cell.IsLocked},
	}

	if !hasRecord {
		rec, err := s.persistence.Create(ctx, update.StaffID, month, entries)
		if err != nil {
			var conflict *models.VersionConflictError
			if errors.As(err, &conflict) && conflict.Current != nil {
				// Запись уже создана другим клиентом: запоминаем ее id,
				// версия остается неизвестной до разрешения конфликта
				s.mu.Lock()
				if _, ok := s.records[key]; !ok {
					s.records[key] = recordRef{ID: conflict.Current.ID}
				}
				s.mu.Unlock()
			}
			return s.handlePersistError(update, err)
		}
		s.mu.Lock()
		s.records[key] = recordRef{ID: rec.ID, Version: rec.Version}
		s.advanceLocked(key, 0, rec.Version)
		s.confirmLocked(update, 0, rec.Version)
		s.mu.Unlock()

		s.logger.Debug("Shift record created", "staff_id", update.StaffID, "month", month, "version", rec.Version)
		s.saveCache(ctx, month)
		return nil
	}

	newVersion, err := s.persistence.Update(ctx, ref.ID, entries, expected)
	if err != nil {
		return s.handlePersistError(update, err)
	}

	s.mu.Lock()
	if current := s.records[key]; newVersion > current.Version {
		s.records[key] = recordRef{ID: ref.ID, Version: newVersion}
	}
	s.advanceLocked(key, expected, newVersion)
	s.confirmLocked(update, expected, newVersion)
	s.mu.Unlock()

	s.logger.Debug("Shift update confirmed",
		"staff_id", update.StaffID,
		"date", update.Date,
		"expected_version", expected,
		"new_version", newVersion)

	s.saveCache(ctx, month)
	return nil
}

func (s *Service) advanceLocked(key string, from, to int64) {
	if s.advanced[key] == nil {
		s.advanced[key] = make(map[int64]int64)
	}
	s.advanced[key][from] = to
}

// expectedFor переводит базовую версию изменения через собственные
// подтвержденные записи; чужая запись между ними дает конфликт
func (s *Service) expectedFor(key string, base int64) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]bool)
	for !seen[base] {
		seen[base] = true
		next, ok := s.advanced[key][base]
		if !ok {
			break
		}
		base = next
	}
	return base
}

// confirmLocked переносит новую версию на ячейку и на все ячейки записи,
// которые были актуальны относительно expected
func (s *Service) confirmLocked(update models.CellUpdate, expected, newVersion int64) {
	month := update.Month()
	for date, cell := range s.data[update.StaffID] {
		if models.MonthOf(date) != month {
			continue
		}
		if date == update.Date || cell.Version == expected {
			if newVersion > cell.Version {
				cell.Version = newVersion
				s.data[update.StaffID][date] = cell
			}
		}
	}
	delete(s.dirty, models.CellKey(update.StaffID, update.Date))
}

func (s *Service) handlePersistError(update models.CellUpdate, err error) error {
	switch {
	case errors.Is(err, models.ErrVersionConflict):
		s.logger.Info("Version conflict", "staff_id", update.StaffID, "date", update.Date, "error", err)
	case errors.Is(err, models.ErrPermissionDenied):
		// Локальное значение не откатываем: правда вернется при следующем Fetch
		s.mu.Lock()
		delete(s.dirty, models.CellKey(update.StaffID, update.Date))
		s.mu.Unlock()
		s.logger.Warn("Write rejected by server", "staff_id", update.StaffID, "date", update.Date, "error", err)
	case errors.Is(err, models.ErrUnavailable):
		s.logger.Debug("Server unavailable", "staff_id", update.StaffID, "date", update.Date, "error", err)
	default:
		s.logger.Error("Failed to persist update", "staff_id", update.StaffID, "date", update.Date, "error", err)
	}
	return err
}

// SubmitPending submits queued changes in order. Changes recorded in a
// previous session are re-applied locally first. On ErrUnavailable the
// batch stops and the partial result is returned together with the error.
func (s *Service) SubmitPending(ctx context.Context, changes []models.PendingChange) (*SubmitResult, error) {
	result := &SubmitResult{}

	ordered := make([]models.PendingChange, len(changes))
	copy(ordered, changes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	for _, change := range ordered {
		if !s.IsDirty(change.Update.StaffID, change.Update.Date) {
			if err := s.applyLocal(change.Update); err != nil {
				s.logger.Warn("Dropping pending change that can no longer be applied",
					"change_id", change.ID, "error", err)
				result.Rejected = append(result.Rejected, Rejection{ChangeID: change.ID, Err: err})
				continue
			}
			s.notify()
		}

		// Ожидаемая версия берется из изменения, а не из ячейки: после
		// перезапуска ячейка уже содержит версию сервера
		expected := s.expectedFor(recordKey(change.Update.StaffID, change.Update.Month()), change.BaseVersion)
		err := s.write(ctx, change.Update, expected)
		switch {
		case err == nil:
			result.Successful = append(result.Successful, change.ID)
		case errors.Is(err, models.ErrVersionConflict):
			result.Conflicts = append(result.Conflicts, conflictInfo(change, err))
		case errors.Is(err, models.ErrPermissionDenied), errors.Is(err, models.ErrRecordNotFound):
			result.Rejected = append(result.Rejected, Rejection{ChangeID: change.ID, Err: err})
		default:
			return result, err
		}
	}

	return result, nil
}

// ForceSubmit re-submits change using remoteVersion as the expected version,
// so the local value overwrites the server value that caused the conflict.
func (s *Service) ForceSubmit(ctx context.Context, change models.PendingChange, remoteVersion int64) error {
	u := change.Update
	key := recordKey(u.StaffID, u.Month())

	s.mu.Lock()
	if ref, ok := s.records[key]; ok && remoteVersion > ref.Version {
		s.records[key] = recordRef{ID: ref.ID, Version: remoteVersion}
	}
	if cell, ok := s.data.Get(u.StaffID, u.Date); ok && remoteVersion > cell.Version {
		cell.Version = remoteVersion
		s.data.Set(u.StaffID, u.Date, cell)
	}
	s.mu.Unlock()

	return s.persist(ctx, u)
}

// AcceptRemote discards the local value of the cell in favour of the server's.
// remote may be nil when the server has no value for the cell.
func (s *Service) AcceptRemote(info models.ConflictInfo) {
	u := info.LocalUpdate

	s.mu.Lock()
	cell := models.ShiftCell{State: models.StateEmpty, Version: info.RemoteVersion}
	if current, ok := s.data.Get(u.StaffID, u.Date); ok && current.Version > cell.Version {
		cell.Version = current.Version
	}
	if info.RemoteUpdate != nil {
		cell.State = info.RemoteUpdate.State
		if info.RemoteUpdate.Lock != nil {
			cell.IsLocked = *info.RemoteUpdate.Lock
		}
	}
	cell.LastChangedAt = s.clock.Now()
	s.data.Set(u.StaffID, u.Date, cell)
	delete(s.dirty, models.CellKey(u.StaffID, u.Date))

	key := recordKey(u.StaffID, u.Month())
	if ref, ok := s.records[key]; ok && info.RemoteVersion > ref.Version {
		s.records[key] = recordRef{ID: ref.ID, Version: info.RemoteVersion}
	}
	s.mu.Unlock()

	s.notify()
}

// ConflictFromError builds the conflict description for a failed update.
func ConflictFromError(changeID string, update models.CellUpdate, err error) models.ConflictInfo {
	return conflictInfo(models.PendingChange{ID: changeID, Update: update}, err)
}

func conflictInfo(change models.PendingChange, err error) models.ConflictInfo {
	info := models.ConflictInfo{
		ChangeID:    change.ID,
		LocalUpdate: change.Update,
		Strategy:    models.StrategyManual,
	}

	var conflict *models.VersionConflictError
	if errors.As(err, &conflict) && conflict.Current != nil {
		info.RemoteVersion = conflict.Current.Version
		if entry, ok := conflict.Current.Entries[change.Update.Date]; ok {
			locked := entry.IsLocked
			info.RemoteUpdate = &models.CellUpdate{
				StaffID: change.Update.StaffID,
				Date:    change.Update.Date,
				State:   entry.State,
				Lock:    &locked,
			}
		}
	}
	return info
}

// SubmitResult is the outcome of SubmitPending.
type SubmitResult struct {
	Successful []string              // подтвержденные изменения
	Rejected   []Rejection           // изменения, которые сервер не примет никогда
	Conflicts  []models.ConflictInfo // конфликты версий
}

// Rejection is a queued change the server refused for good.
type Rejection struct {
	Err      error
	ChangeID string
}

func (s *Service) notify() {
	s.mu.RLock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

func recordKey(staffID, month string) string {
	return staffID + "|" + month
}

// cacheSnapshot is the offline cache format for one month.
type cacheSnapshot struct {
	Rows    models.ShiftDataMap  `json:"rows"`
	Records map[string]recordRef `json:"records"`
}

// saveCache сохраняет месяц в офлайн-кеш; ошибки хранилища только логируются
func (s *Service) saveCache(ctx context.Context, month string) {
	if s.cache == nil {
		return
	}

	s.mu.RLock()
	snap := cacheSnapshot{Rows: make(models.ShiftDataMap), Records: make(map[string]recordRef)}
	for staffID, row := range s.data {
		for date, cell := range row {
			if models.MonthOf(date) == month {
				snap.Rows.Set(staffID, date, cell)
			}
		}
	}
	for key, ref := range s.records {
		snap.Records[key] = ref
	}
	s.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn("Failed to marshal offline cache", "error", err)
		return
	}
	if err := s.cache.Set(ctx, storage.PrefixCache+month, string(data)); err != nil {
		s.logger.Warn("Failed to write offline cache", "month", month, "error", err)
	}
}

// loadCache загружает месяц из офлайн-кеша; возвращает false если кеша нет
func (s *Service) loadCache(ctx context.Context, month string) bool {
	if s.cache == nil {
		return false
	}

	raw, err := s.cache.Get(ctx, storage.PrefixCache+month)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			s.logger.Warn("Failed to read offline cache", "month", month, "error", err)
		}
		return false
	}

	var snap cacheSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.logger.Warn("Corrupted offline cache ignored", "month", month, "error", err)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for staffID, row := range snap.Rows {
		for date, cell := range row {
			if !s.dirty[models.CellKey(staffID, date)] {
				s.data.Set(staffID, date, cell)
			}
		}
	}
	for key, ref := range snap.Records {
		if current, ok := s.records[key]; !ok || ref.Version > current.Version {
			s.records[key] = ref
		}
	}
	return true
}
