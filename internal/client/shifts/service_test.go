package shifts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shiftgrid/internal/client/shifts/shiftstest"
	"github.com/iudanet/shiftgrid/internal/client/storage"
	"github.com/iudanet/shiftgrid/internal/client/storage/memory"
	"github.com/iudanet/shiftgrid/internal/clock"
	"github.com/iudanet/shiftgrid/internal/models"
)

const month = "2024-03"

func newTestService(t *testing.T, p Persistence, cache storage.KVStore, userID string) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	return NewService(p, cache, clk, userID, logger)
}

func work(staffID, date string) models.CellUpdate {
	return models.CellUpdate{StaffID: staffID, Date: date, State: models.StateWork}
}

func TestUpdateCell_CreatesRecord(t *testing.T) {
	backend := shiftstest.New()
	svc := newTestService(t, backend, nil, "alice")

	err := svc.UpdateCell(context.Background(), work("s1", "2024-03-01"))
	require.NoError(t, err)

	rec := backend.Record("s1", month)
	require.NotNil(t, rec)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, models.StateWork, rec.Entries["2024-03-01"].State)

	cell := svc.Cell("s1", "2024-03-01")
	assert.Equal(t, models.StateWork, cell.State)
	assert.Equal(t, int64(1), cell.Version)
	assert.Equal(t, "alice", cell.LastChangedBy)
	assert.False(t, svc.IsDirty("s1", "2024-03-01"))
}

func TestUpdateCell_SendsKnownVersion(t *testing.T) {
	backend := shiftstest.New()
	backend.Seed("s1", month, 4, map[string]models.ShiftEntry{
		"2024-03-01": {State: models.StateAuto},
		"2024-03-02": {State: models.StateAuto},
	})
	svc := newTestService(t, backend, nil, "alice")
	_, err := svc.Fetch(context.Background(), []string{"s1"}, month)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateCell(context.Background(), work("s1", "2024-03-01")))
	// Соседняя ячейка той же записи тоже получает новую версию
	require.NoError(t, svc.UpdateCell(context.Background(), work("s1", "2024-03-02")))

	assert.Equal(t, int64(6), backend.Record("s1", month).Version)
	assert.Equal(t, int64(6), svc.Cell("s1", "2024-03-01").Version)
	assert.Equal(t, int64(6), svc.Cell("s1", "2024-03-02").Version)
}

func TestUpdateCell_LockedCellRejected(t *testing.T) {
	mock := &PersistenceMock{}
	svc := newTestService(t, mock, nil, "alice")

	locked := true
	svc.data.Set("s1", "2024-03-01", models.ShiftCell{State: models.StateFixedOff, IsLocked: locked, Version: 2})

	err := svc.UpdateCell(context.Background(), work("s1", "2024-03-01"))
	assert.ErrorIs(t, err, models.ErrCellLocked)
	assert.Equal(t, models.StateFixedOff, svc.Cell("s1", "2024-03-01").State)
	assert.Empty(t, mock.UpdateCalls())
	assert.Empty(t, mock.CreateCalls())
}

func TestUpdateCell_UnlockAndChangeAllowed(t *testing.T) {
	backend := shiftstest.New()
	backend.Seed("s1", month, 1, map[string]models.ShiftEntry{
		"2024-03-01": {State: models.StateFixedOff, IsLocked: true},
	})
	svc := newTestService(t, backend, nil, "alice")
	_, err := svc.Fetch(context.Background(), nil, month)
	require.NoError(t, err)

	unlock := false
	err = svc.UpdateCell(context.Background(), models.CellUpdate{
		StaffID: "s1", Date: "2024-03-01", State: models.StateWork, Lock: &unlock,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ShiftEntry{State: models.StateWork}, backend.Record("s1", month).Entries["2024-03-01"])
}

func TestUpdateCell_LockOnly(t *testing.T) {
	backend := shiftstest.New()
	svc := newTestService(t, backend, nil, "alice")

	lock := true
	err := svc.UpdateCell(context.Background(), models.CellUpdate{StaffID: "s1", Date: "2024-03-05", Lock: &lock})
	require.NoError(t, err)

	cell := svc.Cell("s1", "2024-03-05")
	assert.True(t, cell.IsLocked)
	assert.Equal(t, models.StateEmpty, cell.State)
}

func TestUpdateCell_Conflict(t *testing.T) {
	backend := shiftstest.New()
	backend.Seed("s1", month, 1, map[string]models.ShiftEntry{"2024-03-01": {State: models.StateAuto}})

	alice := newTestService(t, backend, nil, "alice")
	bob := newTestService(t, backend, nil, "bob")
	ctx := context.Background()
	_, err := alice.Fetch(ctx, nil, month)
	require.NoError(t, err)
	_, err = bob.Fetch(ctx, nil, month)
	require.NoError(t, err)

	require.NoError(t, alice.UpdateCell(ctx, work("s1", "2024-03-01")))

	err = bob.UpdateCell(ctx, models.CellUpdate{StaffID: "s1", Date: "2024-03-01", State: models.StateRequestedOff})
	require.ErrorIs(t, err, models.ErrVersionConflict)

	// Оптимистичное значение остается, ячейка помечена как неподтвержденная
	assert.Equal(t, models.StateRequestedOff, bob.Cell("s1", "2024-03-01").State)
	assert.True(t, bob.IsDirty("s1", "2024-03-01"))
	// Сервер хранит значение победителя
	assert.Equal(t, models.StateWork, backend.Record("s1", month).Entries["2024-03-01"].State)

	info := ConflictFromError("c1", models.CellUpdate{StaffID: "s1", Date: "2024-03-01", State: models.StateRequestedOff}, err)
	assert.Equal(t, int64(2), info.RemoteVersion)
	require.NotNil(t, info.RemoteUpdate)
	assert.Equal(t, models.StateWork, info.RemoteUpdate.State)
	assert.Equal(t, models.StrategyManual, info.Strategy)
}

func TestUpdateCell_PermissionDenied(t *testing.T) {
	backend := shiftstest.New()
	backend.Seed("s1", month, 1, map[string]models.ShiftEntry{"2024-03-01": {State: models.StateAuto}})
	backend.Deny("s1")

	svc := newTestService(t, backend, nil, "viewer")
	ctx := context.Background()
	_, err := svc.Fetch(ctx, nil, month)
	require.NoError(t, err)

	err = svc.UpdateCell(ctx, work("s1", "2024-03-01"))
	require.ErrorIs(t, err, models.ErrPermissionDenied)

	// Локальное значение не откатывается
	assert.Equal(t, models.StateWork, svc.Cell("s1", "2024-03-01").State)

	// Следующий Fetch восстанавливает серверное значение
	_, err = svc.Fetch(ctx, nil, month)
	require.NoError(t, err)
	assert.Equal(t, models.StateAuto, svc.Cell("s1", "2024-03-01").State)
}

func TestUpdateCell_Unavailable(t *testing.T) {
	backend := shiftstest.New()
	backend.SetDown(true)
	svc := newTestService(t, backend, nil, "alice")

	err := svc.UpdateCell(context.Background(), work("s1", "2024-03-01"))
	require.ErrorIs(t, err, models.ErrUnavailable)
	assert.Equal(t, models.StateWork, svc.Cell("s1", "2024-03-01").State)
	assert.True(t, svc.IsDirty("s1", "2024-03-01"))
}

func TestUpdateCell_InvalidUpdate(t *testing.T) {
	svc := newTestService(t, &PersistenceMock{}, nil, "alice")

	tests := []struct {
		name   string
		update models.CellUpdate
	}{
		{name: "bad date", update: models.CellUpdate{StaffID: "s1", Date: "03/01/2024", State: models.StateWork}},
		{name: "bad state", update: models.CellUpdate{StaffID: "s1", Date: "2024-03-01", State: "night"}},
		{name: "no-op", update: models.CellUpdate{StaffID: "s1", Date: "2024-03-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, svc.UpdateCell(context.Background(), tt.update))
		})
	}
}

func TestFetch_KeepsDirtyCells(t *testing.T) {
	backend := shiftstest.New()
	backend.Seed("s1", month, 1, map[string]models.ShiftEntry{"2024-03-01": {State: models.StateAuto}})
	svc := newTestService(t, backend, nil, "alice")
	ctx := context.Background()

	backend.SetDown(true)
	require.Error(t, svc.UpdateCell(ctx, work("s1", "2024-03-01")))
	backend.SetDown(false)

	_, err := svc.Fetch(ctx, nil, month)
	require.NoError(t, err)
	assert.Equal(t, models.StateWork, svc.Cell("s1", "2024-03-01").State)
}

func TestFetch_FallsBackToCache(t *testing.T) {
	backend := shiftstest.New()
	backend.Seed("s1", month, 3, map[string]models.ShiftEntry{"2024-03-01": {State: models.StateWork}})
	cache := memory.New()
	ctx := context.Background()

	first := newTestService(t, backend, cache, "alice")
	fromCache, err := first.Fetch(ctx, nil, month)
	require.NoError(t, err)
	assert.False(t, fromCache)

	backend.SetDown(true)
	second := newTestService(t, backend, cache, "alice")
	fromCache, err = second.Fetch(ctx, nil, month)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, models.StateWork, second.Cell("s1", "2024-03-01").State)
	assert.Equal(t, int64(3), second.Cell("s1", "2024-03-01").Version)
}

func TestFetch_UnavailableWithoutCache(t *testing.T) {
	backend := shiftstest.New()
	backend.SetDown(true)
	svc := newTestService(t, backend, memory.New(), "alice")

	_, err := svc.Fetch(context.Background(), nil, month)
	assert.ErrorIs(t, err, models.ErrUnavailable)
}

func TestSubmitPending(t *testing.T) {
	backend := shiftstest.New()
	backend.Seed("s2", month, 5, map[string]models.ShiftEntry{"2024-03-02": {State: models.StateWork}})
	svc := newTestService(t, backend, nil, "alice")
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	changes := []models.PendingChange{
		{ID: "late", Timestamp: base.Add(time.Minute), Update: models.CellUpdate{StaffID: "s2", Date: "2024-03-02", State: models.StateAuto}},
		{ID: "early", Timestamp: base, Update: work("s1", "2024-03-01")},
	}

	// s2 не был загружен: запись существует, Create вернет конфликт
	result, err := svc.SubmitPending(ctx, changes)
	require.NoError(t, err)
	assert.Equal(t, []string{"early"}, result.Successful)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "late", result.Conflicts[0].ChangeID)
	assert.Equal(t, int64(5), result.Conflicts[0].RemoteVersion)
}

func TestSubmitPending_StopsWhenUnavailable(t *testing.T) {
	calls := 0
	mock := &PersistenceMock{
		CreateFunc: func(ctx context.Context, staffID, month string, entries map[string]models.ShiftEntry) (*models.ShiftRecord, error) {
			calls++
			if calls == 1 {
				return &models.ShiftRecord{ID: "r1", StaffID: staffID, Month: month, Version: 1}, nil
			}
			return nil, models.ErrUnavailable
		},
	}
	svc := newTestService(t, mock, nil, "alice")

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	result, err := svc.SubmitPending(context.Background(), []models.PendingChange{
		{ID: "a", Timestamp: base, Update: work("s1", "2024-03-01")},
		{ID: "b", Timestamp: base.Add(time.Second), Update: work("s2", "2024-03-01")},
		{ID: "c", Timestamp: base.Add(2 * time.Second), Update: work("s3", "2024-03-01")},
	})
	require.ErrorIs(t, err, models.ErrUnavailable)
	require.NotNil(t, result)
	assert.Equal(t, []string{"a"}, result.Successful)
	assert.Len(t, mock.CreateCalls(), 2)
}

func TestSubmitPending_RejectsLockedCell(t *testing.T) {
	svc := newTestService(t, &PersistenceMock{}, nil, "alice")
	svc.data.Set("s1", "2024-03-01", models.ShiftCell{State: models.StateFixedOff, IsLocked: true})

	result, err := svc.SubmitPending(context.Background(), []models.PendingChange{
		{ID: "x", Update: work("s1", "2024-03-01")},
	})
	require.NoError(t, err)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "x", result.Rejected[0].ChangeID)
	assert.ErrorIs(t, result.Rejected[0].Err, models.ErrCellLocked)
}

func TestSubmitPending_ExpectsBaseVersion(t *testing.T) {
	backend := shiftstest.New()
	backend.Seed("s1", month, 1, map[string]models.ShiftEntry{"2024-03-01": {State: models.StateAuto}})
	ctx := context.Background()

	// Изменение сделано на версии 1, затем другой пользователь записал версию 2,
	// после чего клиент перезапущен и загрузил свежие данные
	_, err := backend.Update(ctx, backend.Record("s1", month).ID,
		map[string]models.ShiftEntry{"2024-03-01": {State: models.StateRequestedOff}}, 1)
	require.NoError(t, err)

	svc := newTestService(t, backend, nil, "alice")
	_, err = svc.Fetch(ctx, nil, month)
	require.NoError(t, err)
	assert.Equal(t, int64(2), svc.Cell("s1", "2024-03-01").Version)

	result, err := svc.SubmitPending(ctx, []models.PendingChange{
		{ID: "offline", BaseVersion: 1, Update: work("s1", "2024-03-01")},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Successful)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, int64(2), result.Conflicts[0].RemoteVersion)
	require.NotNil(t, result.Conflicts[0].RemoteUpdate)
	assert.Equal(t, models.StateRequestedOff, result.Conflicts[0].RemoteUpdate.State)

	rec := backend.Record("s1", month)
	assert.Equal(t, int64(2), rec.Version)
	assert.Equal(t, models.StateRequestedOff, rec.Entries["2024-03-01"].State)
}

func TestSubmitPending_ChainsOwnVersions(t *testing.T) {
	backend := shiftstest.New()
	backend.Seed("s1", month, 1, map[string]models.ShiftEntry{"2024-03-01": {State: models.StateAuto}})
	svc := newTestService(t, backend, nil, "alice")
	ctx := context.Background()
	_, err := svc.Fetch(ctx, nil, month)
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	result, err := svc.SubmitPending(ctx, []models.PendingChange{
		{ID: "first", Timestamp: base, BaseVersion: 1, Update: work("s1", "2024-03-01")},
		{ID: "second", Timestamp: base.Add(time.Second), BaseVersion: 1, Update: work("s1", "2024-03-02")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, result.Successful)
	assert.Empty(t, result.Conflicts)
	assert.Equal(t, int64(3), backend.Record("s1", month).Version)
}

func TestBaseVersion(t *testing.T) {
	backend := shiftstest.New()
	backend.Seed("s1", month, 3, map[string]models.ShiftEntry{"2024-03-01": {State: models.StateAuto}})
	svc := newTestService(t, backend, nil, "alice")
	_, err := svc.Fetch(context.Background(), nil, month)
	require.NoError(t, err)

	assert.Equal(t, int64(3), svc.BaseVersion("s1", "2024-03-01"))
	assert.Equal(t, int64(3), svc.BaseVersion("s1", "2024-03-15"), "unwritten cell uses the record version")
	assert.Equal(t, int64(0), svc.BaseVersion("s2", "2024-03-01"), "no record yet")
}

func TestForceSubmit(t *testing.T) {
	backend := shiftstest.New()
	backend.Seed("s1", month, 1, map[string]models.ShiftEntry{"2024-03-01": {State: models.StateAuto}})
	svc := newTestService(t, backend, nil, "alice")
	ctx := context.Background()
	_, err := svc.Fetch(ctx, nil, month)
	require.NoError(t, err)

	// Кто-то другой обновил запись до версии 2
	_, err = backend.Update(ctx, backend.Record("s1", month).ID,
		map[string]models.ShiftEntry{"2024-03-01": {State: models.StateFixedOff}}, 1)
	require.NoError(t, err)

	change := models.PendingChange{ID: "c", Update: work("s1", "2024-03-01")}
	err = svc.UpdateCell(ctx, change.Update)
	require.ErrorIs(t, err, models.ErrVersionConflict)

	require.NoError(t, svc.ForceSubmit(ctx, change, 2))
	rec := backend.Record("s1", month)
	assert.Equal(t, int64(3), rec.Version)
	assert.Equal(t, models.StateWork, rec.Entries["2024-03-01"].State)
	assert.False(t, svc.IsDirty("s1", "2024-03-01"))
}

func TestAcceptRemote(t *testing.T) {
	svc := newTestService(t, &PersistenceMock{}, nil, "alice")
	svc.data.Set("s1", "2024-03-01", models.ShiftCell{State: models.StateWork, Version: 1})
	svc.dirty[models.CellKey("s1", "2024-03-01")] = true

	notified := 0
	svc.OnChange(func() { notified++ })

	locked := false
	svc.AcceptRemote(models.ConflictInfo{
		LocalUpdate:   work("s1", "2024-03-01"),
		RemoteUpdate:  &models.CellUpdate{StaffID: "s1", Date: "2024-03-01", State: models.StateFixedOff, Lock: &locked},
		RemoteVersion: 7,
	})

	cell := svc.Cell("s1", "2024-03-01")
	assert.Equal(t, models.StateFixedOff, cell.State)
	assert.Equal(t, int64(7), cell.Version)
	assert.False(t, svc.IsDirty("s1", "2024-03-01"))
	assert.Equal(t, 1, notified)
}

func TestVersionNeverDecreases(t *testing.T) {
	backend := shiftstest.New()
	backend.Seed("s1", month, 9, map[string]models.ShiftEntry{"2024-03-01": {State: models.StateAuto}})
	svc := newTestService(t, backend, nil, "alice")
	ctx := context.Background()
	_, err := svc.Fetch(ctx, nil, month)
	require.NoError(t, err)

	// Устаревший ответ сервера не понижает версию
	svc.AcceptRemote(models.ConflictInfo{LocalUpdate: work("s1", "2024-03-01"), RemoteVersion: 3})
	svc.mu.RLock()
	ref := svc.records[recordKey("s1", month)]
	svc.mu.RUnlock()
	assert.Equal(t, int64(9), ref.Version)
	assert.Equal(t, int64(9), svc.Cell("s1", "2024-03-01").Version)
}

func TestForceSubmit_AfterCreateConflict(t *testing.T) {
	backend := shiftstest.New()
	backend.Seed("s1", month, 5, map[string]models.ShiftEntry{"2024-03-01": {State: models.StateAuto}})
	svc := newTestService(t, backend, nil, "alice")
	ctx := context.Background()

	change := models.PendingChange{ID: "c", Update: work("s1", "2024-03-01")}
	err := svc.UpdateCell(ctx, change.Update)
	require.ErrorIs(t, err, models.ErrVersionConflict)

	// Повторная запись без разрешения снова конфликтует
	require.ErrorIs(t, svc.UpdateCell(ctx, change.Update), models.ErrVersionConflict)

	require.NoError(t, svc.ForceSubmit(ctx, change, 5))
	assert.Equal(t, int64(6), backend.Record("s1", month).Version)
}

func TestBatchUpdate(t *testing.T) {
	backend := shiftstest.New()
	svc := newTestService(t, backend, nil, "alice")
	svc.data.Set("s2", "2024-03-01", models.ShiftCell{State: models.StateFixedOff, IsLocked: true})

	errs := svc.BatchUpdate(context.Background(), []models.CellUpdate{
		work("s1", "2024-03-01"),
		work("s2", "2024-03-01"),
		work("s1", "2024-03-02"),
	})
	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.True(t, errors.Is(errs[1], models.ErrCellLocked))
	assert.NoError(t, errs[2])
	assert.Equal(t, int64(2), backend.Record("s1", month).Version)
}

func TestSnapshotIsCopy(t *testing.T) {
	svc := newTestService(t, shiftstest.New(), nil, "alice")
	require.NoError(t, svc.UpdateCell(context.Background(), work("s1", "2024-03-01")))

	snap := svc.Snapshot()
	snap.Set("s1", "2024-03-01", models.ShiftCell{State: models.StateAuto})
	assert.Equal(t, models.StateWork, svc.Cell("s1", "2024-03-01").State)
}
