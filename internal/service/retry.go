package service

import (
	"context"
	"errors"
	"taskMarket/internal/logger"
	"taskMarket/internal/repository"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryPolicy - повтор атомарного изменения при недоступности хранилища
// или конфликте версий
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		MaxElapsedTime:  3 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = def.MaxInterval
	}
	if p.MaxElapsedTime <= 0 {
		p.MaxElapsedTime = def.MaxElapsedTime
	}
	return p
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.MaxElapsedTime
	return backoff.WithContext(b, ctx)
}

func retryable(err error) bool {
	return errors.Is(err, repository.ErrUnavailable) || errors.Is(err, repository.ErrVersionConflict)
}

// withRetry повторяет op, пока ошибка временная. Остальные ошибки
// возвращаются сразу.
func withRetry[T any](ctx context.Context, policy RetryPolicy, operation string, op func() (T, error)) (T, error) {
	attempt := 0
	return backoff.RetryWithData(func() (T, error) {
		attempt++
		res, err := op()
		if err == nil {
			return res, nil
		}
		if !retryable(err) {
			return res, backoff.Permanent(err)
		}
		logger.Warn("Service: Временная ошибка хранилища, повтор",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return res, err
	}, policy.backOff(ctx))
}
