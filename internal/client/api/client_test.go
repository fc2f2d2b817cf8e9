package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shiftgrid/internal/models"
	"github.com/iudanet/shiftgrid/pkg/api"
)

// TestNewClient проверяет создание нового клиента
func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/", "tok")

	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:8080", client.baseURL)
	assert.Equal(t, "tok", client.token)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

// TestClient_Fetch проверяет загрузку записей
func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/shifts", r.URL.Path)
		assert.Equal(t, "2024-03", r.URL.Query().Get("month"))
		assert.Equal(t, "s1,s2", r.URL.Query().Get("staff"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		resp := api.FetchShiftsResponse{
			Month: "2024-03",
			Records: []*models.ShiftRecord{{
				ID:      "rec-1",
				StaffID: "s1",
				Month:   "2024-03",
				Version: 4,
				Entries: map[string]models.ShiftEntry{"2024-03-01": {State: models.StateWork}},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok")
	records, err := client.Fetch(context.Background(), []string{"s1", "s2"}, "2024-03")

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(4), records[0].Version)
	assert.Equal(t, models.StateWork, records[0].Entries["2024-03-01"].State)
}

// TestClient_Update проверяет отправку изменения с ожидаемой версией
func TestClient_Update(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/shifts/rec-1", r.URL.Path)

		var req api.UpdateShiftRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(3), req.ExpectedVersion)
		assert.Equal(t, models.StateAuto, req.Entries["2024-03-02"].State)

		_ = json.NewEncoder(w).Encode(api.UpdateShiftResponse{Version: 4})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	version, err := client.Update(context.Background(), "rec-1",
		map[string]models.ShiftEntry{"2024-03-02": {State: models.StateAuto}}, 3)

	require.NoError(t, err)
	assert.Equal(t, int64(4), version)
}

// TestClient_Update_Errors проверяет перевод HTTP статусов в доменные ошибки
func TestClient_Update_Errors(t *testing.T) {
	tests := []struct {
		body    interface{}
		wantErr error
		name    string
		status  int
	}{
		{
			name:    "version conflict",
			status:  http.StatusConflict,
			body:    api.ConflictResponse{Error: "version conflict", Current: &models.ShiftRecord{ID: "rec-1", Version: 7}},
			wantErr: models.ErrVersionConflict,
		},
		{
			name:    "forbidden",
			status:  http.StatusForbidden,
			body:    api.ErrorResponse{Error: "forbidden", Message: "viewer role"},
			wantErr: models.ErrPermissionDenied,
		},
		{
			name:    "not found",
			status:  http.StatusNotFound,
			body:    api.ErrorResponse{Error: "not found"},
			wantErr: models.ErrRecordNotFound,
		},
		{
			name:    "server error",
			status:  http.StatusBadGateway,
			body:    api.ErrorResponse{Error: "bad gateway"},
			wantErr: models.ErrUnavailable,
		},
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			body:    api.ErrorResponse{Error: "rate limit exceeded, please try again later"},
			wantErr: models.ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			client := NewClient(server.URL, "")
			_, err := client.Update(context.Background(), "rec-1", nil, 3)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// TestClient_Update_ConflictCarriesRemote проверяет, что конфликт содержит запись сервера
func TestClient_Update_ConflictCarriesRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ConflictResponse{
			Error:   "version conflict",
			Current: &models.ShiftRecord{ID: "rec-1", Version: 9},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.Update(context.Background(), "rec-1", nil, 5)

	var conflict *models.VersionConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "rec-1", conflict.RecordID)
	assert.Equal(t, int64(5), conflict.Expected)
	assert.Equal(t, int64(9), conflict.Current.Version)
}

// TestClient_Unavailable проверяет ошибку сети
func TestClient_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, "")
	_, err := client.Fetch(context.Background(), nil, "2024-03")
	assert.ErrorIs(t, err, models.ErrUnavailable)
	assert.ErrorIs(t, client.Ping(context.Background()), models.ErrUnavailable)
}

// TestClient_Create проверяет создание записи
func TestClient_Create(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req api.CreateShiftRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "s1", req.StaffID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.ShiftRecord{ID: "rec-9", StaffID: req.StaffID, Month: req.Month, Version: 1})
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	rec, err := client.Create(context.Background(), "s1", "2024-03", nil)
	require.NoError(t, err)
	assert.Equal(t, "rec-9", rec.ID)
	assert.Equal(t, int64(1), rec.Version)
}
