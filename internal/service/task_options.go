package service

import (
	"taskMarket/internal/metrics"
	"taskMarket/internal/notify"
	"time"
)

// ServiceOption настраивает TaskService при создании
type ServiceOption func(*TaskService)

func WithNotifier(n notify.Notifier) ServiceOption {
	return func(s *TaskService) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *TaskService) {
		s.metrics = m
	}
}

// WithClock подменяет источник времени, нужно тестам
func WithClock(now func() time.Time) ServiceOption {
	return func(s *TaskService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithRetry(policy RetryPolicy) ServiceOption {
	return func(s *TaskService) {
		s.retry = policy.withDefaults()
	}
}
