package repository

import (
	"context"
	"errors"
	"taskMarket/internal/models/account"
	"taskMarket/internal/models/task"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("запись не найдена")
	ErrAlreadyExists   = errors.New("запись уже существует")
	ErrVersionConflict = errors.New("конфликт версий")
	ErrUnavailable     = errors.New("хранилище недоступно")
)

// Tx - доступ к аккаунтам внутри атомарного изменения задачи.
// Всё, что сохранено через Tx, фиксируется вместе с задачей.
type Tx interface {
	AccountForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error)
	SaveAccount(ctx context.Context, acc *account.Account) error
}

// MutateFunc получает задачу, загруженную под блокировкой.
// Ненулевая ошибка отменяет все изменения.
type MutateFunc func(ctx context.Context, tx Tx, t *task.Task) error

type Filter struct {
	Status     task.Status
	OwnerID    uuid.UUID
	ProviderID uuid.UUID
}

type TaskRepository interface {
	CreateTask(ctx context.Context, t *task.Task) error
	GetTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error)
	UpdateTask(ctx context.Context, id uuid.UUID, fn MutateFunc) (*task.Task, error)
	ListTasks(ctx context.Context, filter Filter) ([]*task.Task, error)
}

type AccountRepository interface {
	CreateAccount(ctx context.Context, acc *account.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*account.Account, error)
}

type Storage interface {
	TaskRepository
	AccountRepository
	HealthCheck(ctx context.Context) error
}

// Match - общая для хранилищ логика фильтрации
func (f Filter) Match(t *task.Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.OwnerID != uuid.Nil && t.OwnerID != f.OwnerID {
		return false
	}
	if f.ProviderID != uuid.Nil && !t.InvolvesProvider(f.ProviderID) {
		return false
	}
	return true
}
