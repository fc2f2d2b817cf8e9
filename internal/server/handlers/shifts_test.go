package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shiftgrid/internal/models"
	"github.com/iudanet/shiftgrid/internal/server/jwt"
	"github.com/iudanet/shiftgrid/internal/server/storage/sqlite"
	"github.com/iudanet/shiftgrid/pkg/api"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

func newTestRouter(t *testing.T, st ShiftStorage) http.Handler {
	t.Helper()
	if st == nil {
		s, err := sqlite.New(context.Background(), ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		st = s
	}

	r := chi.NewRouter()
	r.Mount("/api/v1/shifts", NewShiftHandler(setupTestLogger(), st).Routes())
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if role != "" {
		req = req.WithContext(WithIdentity(req.Context(), "u-"+role, "User", role))
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func createRecord(t *testing.T, router http.Handler, staffID string, entries map[string]models.ShiftEntry) *models.ShiftRecord {
	t.Helper()
	w := doRequest(t, router, http.MethodPost, "/api/v1/shifts", jwt.RoleEditor, api.CreateShiftRequest{
		StaffID: staffID,
		Month:   "2024-03",
		Entries: entries,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rec := decode[models.ShiftRecord](t, w)
	return &rec
}

func TestShiftHandler_Create(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := createRecord(t, router, "alice", map[string]models.ShiftEntry{
		"2024-03-01": {State: models.StateWork},
	})
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, "u-editor", rec.UpdatedBy)

	// Повторное создание возвращает существующую запись
	w := doRequest(t, router, http.MethodPost, "/api/v1/shifts", jwt.RoleEditor, api.CreateShiftRequest{
		StaffID: "alice",
		Month:   "2024-03",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	conflict := decode[api.ConflictResponse](t, w)
	require.NotNil(t, conflict.Current)
	assert.Equal(t, rec.ID, conflict.Current.ID)
	assert.Equal(t, models.StateWork, conflict.Current.Entries["2024-03-01"].State)
}

func TestShiftHandler_Create_Rejected(t *testing.T) {
	router := newTestRouter(t, nil)

	tests := []struct {
		name       string
		role       string
		req        api.CreateShiftRequest
		wantStatus int
	}{
		{
			name:       "no identity",
			req:        api.CreateShiftRequest{StaffID: "alice", Month: "2024-03"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "viewer",
			role:       jwt.RoleViewer,
			req:        api.CreateShiftRequest{StaffID: "alice", Month: "2024-03"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "bad staff id",
			role:       jwt.RoleEditor,
			req:        api.CreateShiftRequest{StaffID: "alice smith", Month: "2024-03"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "date outside month",
			role: jwt.RoleEditor,
			req: api.CreateShiftRequest{StaffID: "alice", Month: "2024-03", Entries: map[string]models.ShiftEntry{
				"2024-04-01": {State: models.StateWork},
			}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown state",
			role: jwt.RoleEditor,
			req: api.CreateShiftRequest{StaffID: "alice", Month: "2024-03", Entries: map[string]models.ShiftEntry{
				"2024-03-01": {State: "night"},
			}},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodPost, "/api/v1/shifts", tt.role, tt.req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestShiftHandler_Update(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := createRecord(t, router, "alice", nil)
	path := "/api/v1/shifts/" + rec.ID

	w := doRequest(t, router, http.MethodPut, path, jwt.RoleEditor, api.UpdateShiftRequest{
		Entries:         map[string]models.ShiftEntry{"2024-03-02": {State: models.StateWork, IsLocked: true}},
		ExpectedVersion: 1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(2), decode[api.UpdateShiftResponse](t, w).Version)

	// Устаревшая версия
	w = doRequest(t, router, http.MethodPut, path, jwt.RoleEditor, api.UpdateShiftRequest{
		Entries:         map[string]models.ShiftEntry{"2024-03-02": {State: models.StateAuto}},
		ExpectedVersion: 1,
	})
	require.Equal(t, http.StatusConflict, w.Code)
	conflict := decode[api.ConflictResponse](t, w)
	assert.Equal(t, int64(2), conflict.Current.Version)
	assert.Equal(t, models.ShiftEntry{State: models.StateWork, IsLocked: true}, conflict.Current.Entries["2024-03-02"])

	w = doRequest(t, router, http.MethodGet, "/api/v1/shifts?month=2024-03", jwt.RoleViewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[api.FetchShiftsResponse](t, w)
	require.Len(t, list.Records, 1)
	assert.Equal(t, int64(2), list.Records[0].Version)
}

func TestShiftHandler_Update_Rejected(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := createRecord(t, router, "alice", nil)
	valid := map[string]models.ShiftEntry{"2024-03-02": {State: models.StateWork}}

	tests := []struct {
		name       string
		id         string
		role       string
		req        api.UpdateShiftRequest
		wantStatus int
	}{
		{name: "viewer", id: rec.ID, role: jwt.RoleViewer, req: api.UpdateShiftRequest{Entries: valid, ExpectedVersion: 1}, wantStatus: http.StatusForbidden},
		{name: "unknown record", id: "missing", role: jwt.RoleEditor, req: api.UpdateShiftRequest{Entries: valid, ExpectedVersion: 1}, wantStatus: http.StatusNotFound},
		{name: "no entries", id: rec.ID, role: jwt.RoleEditor, req: api.UpdateShiftRequest{ExpectedVersion: 1}, wantStatus: http.StatusBadRequest},
		{
			name:       "date outside month",
			id:         rec.ID,
			role:       jwt.RoleEditor,
			req:        api.UpdateShiftRequest{Entries: map[string]models.ShiftEntry{"2024-02-29": {State: models.StateWork}}, ExpectedVersion: 1},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodPut, "/api/v1/shifts/"+tt.id, tt.role, tt.req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestShiftHandler_List(t *testing.T) {
	router := newTestRouter(t, nil)
	createRecord(t, router, "alice", nil)
	createRecord(t, router, "bob", nil)
	createRecord(t, router, "carol", nil)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		want       []string
	}{
		{name: "all", query: "?month=2024-03", wantStatus: http.StatusOK, want: []string{"alice", "bob", "carol"}},
		{name: "filtered", query: "?month=2024-03&staff=carol,alice", wantStatus: http.StatusOK, want: []string{"alice", "carol"}},
		{name: "other month", query: "?month=2024-04", wantStatus: http.StatusOK, want: []string{}},
		{name: "missing month", query: "", wantStatus: http.StatusBadRequest},
		{name: "bad staff", query: "?month=2024-03&staff=a%20b", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodGet, "/api/v1/shifts"+tt.query, jwt.RoleViewer, nil)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			resp := decode[api.FetchShiftsResponse](t, w)
			got := make([]string, 0, len(resp.Records))
			for _, rec := range resp.Records {
				got = append(got, rec.StaffID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShiftHandler_StorageFailure(t *testing.T) {
	mock := &ShiftStorageMock{
		GetRecordsFunc: func(ctx context.Context, month string, staffIDs []string) ([]*models.ShiftRecord, error) {
			return nil, errors.New("disk I/O error")
		},
		CreateRecordFunc: func(ctx context.Context, record *models.ShiftRecord) error {
			return errors.New("disk I/O error")
		},
	}
	router := newTestRouter(t, mock)

	w := doRequest(t, router, http.MethodGet, "/api/v1/shifts?month=2024-03&staff=a,b", jwt.RoleViewer, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Len(t, mock.GetRecordsCalls(), 1)
	assert.Equal(t, []string{"a", "b"}, mock.GetRecordsCalls()[0].StaffIDs)

	w = doRequest(t, router, http.MethodPost, "/api/v1/shifts", jwt.RoleEditor, api.CreateShiftRequest{StaffID: "a", Month: "2024-03"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk")
}
