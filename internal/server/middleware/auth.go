package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/shiftgrid/internal/server/handlers"
	"github.com/iudanet/shiftgrid/internal/server/jwt"
)

// TokenValidator проверяет access token и возвращает его claims
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// AuthMiddleware создает middleware для проверки JWT токена
func AuthMiddleware(logger *slog.Logger, validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Missing Authorization header")
				writeError(w, http.StatusUnauthorized, "unauthorized: missing token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("Invalid Authorization header format")
				writeError(w, http.StatusUnauthorized, "unauthorized: invalid token format")
				return
			}

			claims, err := validator.ValidateToken(parts[1])
			if err != nil {
				logger.Warn("Invalid access token", "error", err)
				writeError(w, http.StatusUnauthorized, "unauthorized: invalid token")
				return
			}

			ctx := handlers.WithIdentity(r.Context(), claims.UserID, claims.Username, claims.Role)

			logger.Debug("User authenticated", "user_id", claims.UserID, "role", claims.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
