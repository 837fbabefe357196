package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"taskMarket/internal/logger"
	"time"

	"go.uber.org/zap"
)

// Limiter считает запросы клиента за окно. Реализации: окно в памяти
// процесса (по умолчанию) и скользящее окно в Redis.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Limit() int
}

type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type clientInfo struct {
	count   int
	resetAt time.Time
}

// limiter - фиксированное окно на IP клиента
type limiter struct {
	mtx       sync.Mutex
	clients   map[string]*clientInfo
	rpm       int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func newLimiter(rpm int, window time.Duration, now func() time.Time) *limiter {
	return &limiter{
		clients:   make(map[string]*clientInfo),
		rpm:       rpm,
		window:    window,
		now:       now,
		lastSweep: now(),
	}
}

// allow возвращает остаток запросов и время сброса окна
func (l *limiter) allow(ip string) (bool, int, time.Time) {
	now := l.now()

	l.mtx.Lock()
	defer l.mtx.Unlock()

	l.sweep(now)

	info, exists := l.clients[ip]
	if !exists || now.After(info.resetAt) {
		info = &clientInfo{count: 1, resetAt: now.Add(l.window)}
		l.clients[ip] = info
		return true, l.rpm - 1, info.resetAt
	}

	if info.count >= l.rpm {
		return false, 0, info.resetAt
	}
	info.count++
	return true, max(l.rpm-info.count, 0), info.resetAt
}

// sweep удаляет истёкшие окна, чтобы карта не росла бесконечно
func (l *limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	for ip, info := range l.clients {
		if now.After(info.resetAt) {
			delete(l.clients, ip)
		}
	}
	l.lastSweep = now
}

func (l *limiter) Allow(ctx context.Context, key string) (Decision, error) {
	ok, remaining, resetAt := l.allow(key)
	return Decision{Allowed: ok, Remaining: remaining, ResetAt: resetAt}, nil
}

func (l *limiter) Limit() int {
	return l.rpm
}

// NewMemoryLimiter - фиксированное окно в минуту в памяти процесса
func NewMemoryLimiter(rpm int) Limiter {
	return newLimiter(rpm, time.Minute, time.Now)
}

// RateLimitWith - ограничение через внешний Limiter. Если хранилище лимитов
// недоступно, запрос пропускается.
func RateLimitWith(l Limiter) func(http.Handler) http.Handler {
	return rateLimit(l, time.Now)
}

func rateLimit(l Limiter, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), getIp(r))
			if err != nil {
				logger.Warn("HTTP: Лимитер недоступен, запрос пропущен",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			remaining, resetAt := d.Remaining, d.ResetAt
			if !d.Allowed {
				retryAfter := max(int(resetAt.Sub(now()).Seconds()), 0)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter+1))
				w.WriteHeader(http.StatusTooManyRequests)

				json.NewEncoder(w).Encode(map[string]any{
					"error":       "RATE_LIMIT_EXCEEDED",
					"message":     "Слишком много запросов. Попробуйте позже.",
					"retry_after": retryAfter,
					"request_id":  GetRequestID(r.Context()),
				})
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			next.ServeHTTP(w, r)
		})
	}
}

func getIp(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
