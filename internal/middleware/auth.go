package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"taskMarket/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenValidator - проверка bearer-токена, возвращает id аккаунта
type TokenValidator interface {
	Validate(token string) (uuid.UUID, error)
}

// Authenticate кладёт id вызывающего в контекст. Роли здесь не проверяются.
func Authenticate(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			if !found || token == "" {
				unauthorized(w, r, "Требуется заголовок Authorization: Bearer <token>")
				return
			}

			callerID, err := validator.Validate(token)
			if err != nil {
				logger.Warn("HTTP: Отклонён токен",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.Error(err))
				unauthorized(w, r, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), callerID)))
		})
	}
}

func WithCaller(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, CallerKey, id)
}

func CallerFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(CallerKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="marketplace"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error":      "UNAUTHORIZED",
		"message":    message,
		"request_id": GetRequestID(r.Context()),
	})
}
