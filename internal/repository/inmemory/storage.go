package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"taskMarket/internal/logger"
	"taskMarket/internal/models/account"
	"taskMarket/internal/models/task"
	repo "taskMarket/internal/repository"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Storage struct {
	tasks    map[uuid.UUID]*task.Task
	accounts map[uuid.UUID]*account.Account
	mtx      *sync.RWMutex
	ids      []uuid.UUID
}

var _ repo.Storage = (*Storage)(nil)

func NewStorage() *Storage {
	return &Storage{
		tasks:    make(map[uuid.UUID]*task.Task),
		accounts: make(map[uuid.UUID]*account.Account),
		mtx:      &sync.RWMutex{},
		ids:      []uuid.UUID{},
	}
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	logger.Debug("Repository: Соединение стабильно")
	return nil
}

func (s *Storage) CreateAccount(ctx context.Context, acc *account.Account) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.accounts[acc.ID]; ok {
		return repo.ErrAlreadyExists
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now()
	}
	s.accounts[acc.ID] = acc.Clone()
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return acc.Clone(), nil
}

func (s *Storage) CreateTask(ctx context.Context, taskToCreate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.tasks[taskToCreate.UUID]; ok {
		return repo.ErrAlreadyExists
	}
	if taskToCreate.CreatedAt.IsZero() {
		taskToCreate.CreatedAt = time.Now()
	}
	if taskToCreate.Version == 0 {
		taskToCreate.Version = 1
	}

	s.tasks[taskToCreate.UUID] = taskToCreate.Clone()
	s.ids = append(s.ids, taskToCreate.UUID)
	return nil
}

func (s *Storage) GetTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	taskToGet, ok := s.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return taskToGet.Clone(), nil
}

// UpdateTask держит блокировку на всё время fn. fn работает с копиями,
// которые подменяют сохранённые данные только при успехе.
func (s *Storage) UpdateTask(ctx context.Context, id uuid.UUID, fn repo.MutateFunc) (*task.Task, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored, ok := s.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}

	working := stored.Clone()
	tx := &memTx{storage: s, touched: make(map[uuid.UUID]*account.Account)}
	if err := fn(ctx, tx, working); err != nil {
		return nil, err
	}

	if working.UUID != id {
		return nil, fmt.Errorf("изменение идентификатора задачи %s", id)
	}

	now := time.Now()
	working.UpdatedAt = &now
	working.Version = stored.Version + 1
	s.tasks[id] = working

	for accID, acc := range tx.touched {
		s.accounts[accID] = acc
	}

	if len(tx.touched) > 0 {
		logger.Debug("Repository: Задача и аккаунты сохранены",
			zap.String("task_id", id.String()),
			zap.Int("accounts", len(tx.touched)))
	}
	return working.Clone(), nil
}

// ListTasks возвращает задачи от новых к старым
func (s *Storage) ListTasks(ctx context.Context, filter repo.Filter) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*task.Task{}
	for i := len(s.ids) - 1; i >= 0; i-- {
		t := s.tasks[s.ids[i]]
		if !filter.Match(t) {
			continue
		}
		res = append(res, t.Clone())
	}

	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

type memTx struct {
	storage *Storage
	touched map[uuid.UUID]*account.Account
}

func (tx *memTx) AccountForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	if acc, ok := tx.touched[id]; ok {
		return acc.Clone(), nil
	}
	acc, ok := tx.storage.accounts[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return acc.Clone(), nil
}

func (tx *memTx) SaveAccount(ctx context.Context, acc *account.Account) error {
	if _, ok := tx.storage.accounts[acc.ID]; !ok {
		return repo.ErrNotFound
	}
	tx.touched[acc.ID] = acc.Clone()
	return nil
}
