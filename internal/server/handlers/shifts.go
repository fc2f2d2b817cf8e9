package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/shiftgrid/internal/models"
	"github.com/iudanet/shiftgrid/internal/server/jwt"
	"github.com/iudanet/shiftgrid/internal/server/storage"
	"github.com/iudanet/shiftgrid/internal/validation"
	"github.com/iudanet/shiftgrid/pkg/api"
)

//go:generate moq -out shift_storage_mock.go . ShiftStorage

// ShiftStorage определяет интерфейс для работы с записями графика
type ShiftStorage interface {
	GetRecords(ctx context.Context, month string, staffIDs []string) ([]*models.ShiftRecord, error)
	GetRecord(ctx context.Context, id string) (*models.ShiftRecord, error)
	CreateRecord(ctx context.Context, record *models.ShiftRecord) error
	UpdateRecord(ctx context.Context, id string, entries map[string]models.ShiftEntry, expectedVersion int64, updatedBy string) (int64, error)
}

var _ ShiftStorage = storage.ShiftStorage(nil)

// ShiftHandler handles shift record requests
type ShiftHandler struct {
	logger  *slog.Logger
	storage ShiftStorage
}

// NewShiftHandler creates a new shift handler
func NewShiftHandler(logger *slog.Logger, storage ShiftStorage) *ShiftHandler {
	return &ShiftHandler{
		logger:  logger,
		storage: storage,
	}
}

// Routes returns the router for /api/v1/shifts
func (h *ShiftHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	return r
}

// List обрабатывает GET /api/v1/shifts?month=YYYY-MM&staff=a,b
func (h *ShiftHandler) List(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if err := validation.ValidateMonth(month); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid month", err)
		return
	}

	var staffIDs []string
	if raw := r.URL.Query().Get("staff"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			id = strings.TrimSpace(id)
			if err := validation.ValidateStaffID(id); err != nil {
				h.writeError(w, http.StatusBadRequest, "invalid staff id", err)
				return
			}
			staffIDs = append(staffIDs, id)
		}
	}

	records, err := h.storage.GetRecords(r.Context(), month, staffIDs)
	if err != nil {
		h.logger.Error("Failed to get records", "error", err, "month", month)
		h.writeError(w, http.StatusInternalServerError, "internal server error", nil)
		return
	}

	h.logger.Debug("Records fetched", "month", month, "staff", len(staffIDs), "records", len(records))
	h.writeJSON(w, http.StatusOK, api.FetchShiftsResponse{Month: month, Records: records})
}

// Create обрабатывает POST /api/v1/shifts
func (h *ShiftHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizeWrite(w, r)
	if !ok {
		return
	}

	var req api.CreateShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := validateCreate(req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid record", err)
		return
	}

	rec := &models.ShiftRecord{
		StaffID:   req.StaffID,
		Month:     req.Month,
		Entries:   req.Entries,
		UpdatedBy: userID,
	}

	err := h.storage.CreateRecord(r.Context(), rec)
	var conflict *models.VersionConflictError
	switch {
	case errors.As(err, &conflict):
		h.logger.Info("Record already exists", "staff_id", req.StaffID, "month", req.Month, "record_id", conflict.RecordID)
		h.writeJSON(w, http.StatusConflict, api.ConflictResponse{Error: "record already exists", Current: conflict.Current})
		return
	case err != nil:
		h.logger.Error("Failed to create record", "error", err, "staff_id", req.StaffID, "month", req.Month)
		h.writeError(w, http.StatusInternalServerError, "internal server error", nil)
		return
	}

	h.logger.Info("Record created", "record_id", rec.ID, "staff_id", rec.StaffID, "month", rec.Month, "user_id", userID)
	h.writeJSON(w, http.StatusCreated, rec)
}

// Update обрабатывает PUT /api/v1/shifts/{id}
func (h *ShiftHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizeWrite(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req api.UpdateShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Entries) == 0 {
		h.writeError(w, http.StatusBadRequest, "entries are required", nil)
		return
	}

	current, err := h.storage.GetRecord(r.Context(), id)
	if err != nil {
		h.storageError(w, id, err)
		return
	}
	if err := validation.ValidateEntryDates(current.Month, req.Entries); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid entries", err)
		return
	}

	version, err := h.storage.UpdateRecord(r.Context(), id, req.Entries, req.ExpectedVersion, userID)
	if err != nil {
		h.storageError(w, id, err)
		return
	}

	h.logger.Info("Record updated", "record_id", id, "version", version, "entries", len(req.Entries), "user_id", userID)
	h.writeJSON(w, http.StatusOK, api.UpdateShiftResponse{Version: version})
}

// authorizeWrite проверяет, что пользователь может изменять записи
func (h *ShiftHandler) authorizeWrite(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.logger.Error("User ID not found in context")
		h.writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return "", false
	}

	role, _ := GetRole(r.Context())
	if role != jwt.RoleEditor {
		h.logger.Warn("Write rejected for role", "user_id", userID, "role", role)
		h.writeError(w, http.StatusForbidden, "forbidden", errors.New("role "+role+" may not modify records"))
		return "", false
	}

	return userID, true
}

func (h *ShiftHandler) storageError(w http.ResponseWriter, id string, err error) {
	var conflict *models.VersionConflictError
	switch {
	case errors.As(err, &conflict):
		h.logger.Info("Version conflict", "record_id", id, "expected", conflict.Expected)
		h.writeJSON(w, http.StatusConflict, api.ConflictResponse{Error: "version conflict", Current: conflict.Current})
	case errors.Is(err, storage.ErrRecordNotFound):
		h.writeError(w, http.StatusNotFound, "record not found", nil)
	default:
		h.logger.Error("Storage failure", "record_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error", nil)
	}
}

func (h *ShiftHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *ShiftHandler) writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := api.ErrorResponse{Error: msg}
	if err != nil {
		resp.Message = err.Error()
	}
	h.writeJSON(w, status, resp)
}

func validateCreate(req api.CreateShiftRequest) error {
	if err := validation.ValidateStaffID(req.StaffID); err != nil {
		return err
	}
	if err := validation.ValidateMonth(req.Month); err != nil {
		return err
	}
	return validation.ValidateEntryDates(req.Month, req.Entries)
}
