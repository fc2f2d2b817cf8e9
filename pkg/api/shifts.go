package api

import "github.com/iudanet/shiftgrid/internal/models"

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

// FetchShiftsResponse представляет ответ на GET /api/v1/shifts
type FetchShiftsResponse struct {
	Records []*models.ShiftRecord `json:"records"` // записи сотрудников за месяц
	Month   string                `json:"month"`
}

// CreateShiftRequest представляет запрос на создание записи сотрудника за месяц
type CreateShiftRequest struct {
	Entries map[string]models.ShiftEntry `json:"entries"`
	StaffID string                       `json:"staff_id"`
	Month   string                       `json:"month"`
}

// UpdateShiftRequest представляет запрос на изменение записи.
// Entries сливаются с сохраненными только если версия совпадает с ExpectedVersion.
type UpdateShiftRequest struct {
	Entries         map[string]models.ShiftEntry `json:"entries"`
	ExpectedVersion int64                        `json:"expected_version"`
}

// UpdateShiftResponse представляет успешный ответ на изменение записи
type UpdateShiftResponse struct {
	Version int64 `json:"version"` // новая версия записи
}

// ConflictResponse возвращается со статусом 409
type ConflictResponse struct {
	Current *models.ShiftRecord `json:"current"` // актуальная запись на сервере
	Error   string              `json:"error"`
}
