package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/aidar/team-requests-service/internal/domain"
)

// ContextKey это кастомный тип для ключей контекста
type ContextKey string

// IdentityKey ключ контекста для пользователя из токена
const IdentityKey ContextKey = "identity"

// TokenValidator проверяет bearer токен и возвращает пользователя
type TokenValidator interface {
	ValidateToken(token string) (*domain.Identity, error)
}

// AuthMiddleware создает middleware для валидации JWT токенов
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Получаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "missing authorization header")
				return
			}

			// Проверяем формат Bearer
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w, "invalid authorization header format")
				return
			}

			identity, err := validator.ValidateToken(parts[1])
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			ctx := WithIdentity(r.Context(), *identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"` + message + `"}}`))
}

// WithIdentity кладет пользователя в контекст
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// GetIdentityFromContext извлекает пользователя из контекста.
// Без пользователя возвращается пустой Identity, который не видит ни один кампус
func GetIdentityFromContext(ctx context.Context) domain.Identity {
	identity, ok := ctx.Value(IdentityKey).(domain.Identity)
	if !ok {
		return domain.Identity{}
	}
	return identity
}
