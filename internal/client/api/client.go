package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iudanet/shiftgrid/internal/models"
	"github.com/iudanet/shiftgrid/pkg/api"
)

// Client представляет HTTP клиент для сервиса хранения графиков.
// Ошибки сервера переводятся в доменные: 409 -> *models.VersionConflictError,
// 401/403 -> models.ErrPermissionDenied, сеть, 429 и 5xx -> models.ErrUnavailable.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient создает новый API клиент
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// SetTimeout задает таймаут одного HTTP запроса
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.httpClient.Timeout = d
	}
}

// Fetch загружает записи сотрудников за месяц
func (c *Client) Fetch(ctx context.Context, staffIDs []string, month string) ([]*models.ShiftRecord, error) {
	q := url.Values{}
	q.Set("month", month)
	if len(staffIDs) > 0 {
		q.Set("staff", strings.Join(staffIDs, ","))
	}

	var resp api.FetchShiftsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/shifts?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch request failed: %w", err)
	}
	return resp.Records, nil
}

// Update отправляет изменения записи с предусловием ожидаемой версии
func (c *Client) Update(ctx context.Context, id string, entries map[string]models.ShiftEntry, expectedVersion int64) (int64, error) {
	req := api.UpdateShiftRequest{
		Entries:         entries,
		ExpectedVersion: expectedVersion,
	}

	var resp api.UpdateShiftResponse
	err := c.doRequest(ctx, http.MethodPut, "/api/v1/shifts/"+url.PathEscape(id), req, &resp)
	if err != nil {
		var conflict *models.VersionConflictError
		if errors.As(err, &conflict) {
			conflict.RecordID = id
			conflict.Expected = expectedVersion
		}
		return 0, fmt.Errorf("update request failed: %w", err)
	}
	return resp.Version, nil
}

// Create создает запись сотрудника за месяц.
// Если запись уже создана другим клиентом, возвращается *models.VersionConflictError с ней.
func (c *Client) Create(ctx context.Context, staffID, month string, entries map[string]models.ShiftEntry) (*models.ShiftRecord, error) {
	req := api.CreateShiftRequest{
		StaffID: staffID,
		Month:   month,
		Entries: entries,
	}

	var resp models.ShiftRecord
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/shifts", req, &resp); err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	return &resp, nil
}

// Ping проверяет доступность сервера
func (c *Client) Ping(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, nil)
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", models.ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, respBody)
	}

	// Декодируем успешный ответ
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// statusError переводит HTTP статус в доменную ошибку
func statusError(status int, body []byte) error {
	switch status {
	case http.StatusConflict:
		var conflict api.ConflictResponse
		if err := json.Unmarshal(body, &conflict); err != nil {
			return fmt.Errorf("%w: undecodable conflict body", models.ErrVersionConflict)
		}
		return &models.VersionConflictError{Current: conflict.Current}
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", models.ErrPermissionDenied, errorMessage(status, body))
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", models.ErrRecordNotFound, errorMessage(status, body))
	}

	if status >= 500 || status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", models.ErrUnavailable, errorMessage(status, body))
	}
	return fmt.Errorf("request failed: %s", errorMessage(status, body))
}

func errorMessage(status int, body []byte) string {
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		if errResp.Message != "" {
			return fmt.Sprintf("server error (%d): %s: %s", status, errResp.Error, errResp.Message)
		}
		return fmt.Sprintf("server error (%d): %s", status, errResp.Error)
	}
	return fmt.Sprintf("status %d: %s", status, strings.TrimSpace(string(body)))
}
