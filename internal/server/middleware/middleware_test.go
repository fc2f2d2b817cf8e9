package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/shiftgrid/internal/clock"
	"github.com/iudanet/shiftgrid/internal/server/handlers"
	"github.com/iudanet/shiftgrid/internal/server/jwt"
	"github.com/iudanet/shiftgrid/pkg/api"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError,
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func TestAuthMiddleware(t *testing.T) {
	tokens := jwt.NewService("test-secret-key", 15*time.Minute)
	editor, err := tokens.GenerateToken("user123", "testuser", jwt.RoleEditor)
	require.NoError(t, err)
	foreign, err := jwt.NewService("other", time.Minute).GenerateToken("user123", "testuser", jwt.RoleEditor)
	require.NoError(t, err)

	var seen struct {
		userID, username, role string
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.userID, _ = handlers.GetUserID(r.Context())
		seen.username, _ = handlers.GetUsername(r.Context())
		seen.role, _ = handlers.GetRole(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	mw := AuthMiddleware(setupTestLogger(), tokens)(next)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid token", header: "Bearer " + editor, wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + editor, wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized},
		{name: "no token", header: "Bearer", wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer invalid.token.here", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			mw.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				var resp api.ErrorResponse
				require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
				assert.True(t, strings.HasPrefix(resp.Error, "unauthorized"))
				return
			}
			assert.Equal(t, "user123", seen.userID)
			assert.Equal(t, "testuser", seen.username)
			assert.Equal(t, jwt.RoleEditor, seen.role)
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := chimw.RequestID(LoggingMiddleware(logger, "/api/v1/health")(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/missing" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte("hello"))
		})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/shifts", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/api/v1/shifts", entry["path"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(5), entry["bytes_written"])
	assert.NotEmpty(t, entry["request_id"])

	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, float64(404), entry["status"])

	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Empty(t, buf.String(), "skipped path is not logged")
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/shifts", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotContains(t, w.Body.String(), "boom")
	assert.Contains(t, buf.String(), "Panic recovered")
	assert.Contains(t, buf.String(), "boom")

	// Без паники ответ проходит как есть
	w = httptest.NewRecorder()
	RecoveryMiddleware(logger)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestRateLimiter_Allow(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(2, time.Minute, clk)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys are independent")

	clk.Advance(time.Minute)
	assert.True(t, rl.Allow("a"), "window refilled")
}

func TestRateLimiter_Sweep(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(1, time.Minute, clk)

	rl.Allow("a")
	rl.Allow("b")
	assert.Equal(t, 2, rl.Len())

	clk.Advance(3 * time.Minute)
	rl.Allow("c")
	assert.Equal(t, 1, rl.Len())
}

func TestRateLimitMiddleware(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	limiter := NewRateLimiter(1, time.Minute, clk)
	handler := WritesOnly(RateLimitMiddleware(limiter, setupTestLogger()))(okHandler())

	send := func(method, user, ip string) int {
		req := httptest.NewRequest(method, "/api/v1/shifts", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		if user != "" {
			req = req.WithContext(handlers.WithIdentity(req.Context(), user, user, jwt.RoleEditor))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send(http.MethodPut, "alice", "1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodPut, "alice", "2.2.2.2"), "limited by user, not IP")
	assert.Equal(t, http.StatusOK, send(http.MethodPut, "bob", "1.1.1.1"))
	assert.Equal(t, http.StatusOK, send(http.MethodGet, "alice", "1.1.1.1"), "reads are not limited")

	assert.Equal(t, http.StatusOK, send(http.MethodPost, "", "3.3.3.3"))
	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodPost, "", "3.3.3.3"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded for", headers: map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, want: "203.0.113.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "203.0.113.2"}, want: "203.0.113.2"},
		{name: "remote addr", remote: "192.0.2.1:1234", want: "192.0.2.1:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if tt.remote != "" {
				req.RemoteAddr = tt.remote
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
