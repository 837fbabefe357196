package service

import (
	"context"
	"errors"
	"fmt"
	"taskMarket/internal/logger"
	"taskMarket/internal/metrics"
	"taskMarket/internal/models/account"
	"taskMarket/internal/models/task"
	"taskMarket/internal/notify"
	"taskMarket/internal/repository"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// здесь происходит проверка ошибок бизнес-логики.
// Порядок проверок в каждой команде: входные данные, роль вызывающего,
// существование задачи, владение, статус, правила ставок.

type TaskService struct {
	repo     repository.Storage
	notifier notify.Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
	retry    RetryPolicy
}

func NewTaskService(repo repository.Storage, options ...ServiceOption) *TaskService {
	s := &TaskService{
		repo:     repo,
		notifier: notify.Nop,
		now:      time.Now,
		retry:    DefaultRetryPolicy(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		return fmt.Errorf("проверка здоровья сервиса: %w", err)
	}
	return nil
}

func (s *TaskService) CreateTask(ctx context.Context, ownerID uuid.UUID, draft task.Draft) (t *task.Task, err error) {
	defer s.observe("create_task", &err)

	normalized, missing := draft.Normalize()
	if missing != "" {
		return nil, NewValidationError(missing, "обязательное поле")
	}

	if _, err := s.requireRole(ctx, ownerID, account.RoleUser, "create_task"); err != nil {
		return nil, err
	}

	t = task.New(ownerID, normalized, task.WithCreatedAt(s.now()))
	if err := t.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("создание задачи: %w", err)
	}

	_, err = withRetry(ctx, s.retry, "create_task", func() (struct{}, error) {
		return struct{}{}, s.repo.CreateTask(ctx, t)
	})
	if err != nil {
		logger.Error("Service: Не удалось создать задачу", err, zap.String("owner_id", ownerID.String()))
		return nil, s.translate("create_task", t.UUID, err)
	}

	logger.Info("Service: Задача создана",
		zap.String("task_id", t.UUID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.String("category", t.Category))
	return t, nil
}

func (s *TaskService) GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	t, err := s.repo.GetTaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Info("Service: Задача не найдена", zap.String("target_id", id.String()))
		}
		return nil, s.translate("get_task", id, err)
	}
	return t, nil
}

// GetAccount - профиль с репутацией исполнителя
func (s *TaskService) GetAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	acc, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("аккаунт", id.String())
		}
		return nil, s.storageError("get_account", err)
	}
	return acc, nil
}

func (s *TaskService) ListOpenTasks(ctx context.Context) ([]*task.Task, error) {
	return s.list(ctx, "list_open_tasks", repository.Filter{Status: task.StatusOpen})
}

func (s *TaskService) ListTasksForOwner(ctx context.Context, ownerID uuid.UUID) ([]*task.Task, error) {
	return s.list(ctx, "list_owner_tasks", repository.Filter{OwnerID: ownerID})
}

// ListTasksForProvider - задачи, где у исполнителя есть ставка или он выбран
func (s *TaskService) ListTasksForProvider(ctx context.Context, providerID uuid.UUID) ([]*task.Task, error) {
	return s.list(ctx, "list_provider_tasks", repository.Filter{ProviderID: providerID})
}

func (s *TaskService) list(ctx context.Context, operation string, filter repository.Filter) ([]*task.Task, error) {
	tasks, err := s.repo.ListTasks(ctx, filter)
	if err != nil {
		return nil, s.storageError(operation, err)
	}
	return tasks, nil
}

// requireRole загружает вызывающего и проверяет роль.
// Роль берётся только из хранилища аккаунтов.
func (s *TaskService) requireRole(ctx context.Context, callerID uuid.UUID, role account.Role, action string) (*account.Account, error) {
	acc, err := withRetry(ctx, s.retry, action, func() (*account.Account, error) {
		return s.repo.GetAccount(ctx, callerID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewForbidden(action, "аккаунт не найден")
		}
		return nil, s.storageError(action, err)
	}
	if acc.Role != role {
		return nil, NewForbidden(action, fmt.Sprintf("требуется роль %s", role))
	}
	return acc, nil
}

// mutate - одна атомарная единица: проверки и изменения внутри fn
// выполняются над свежим состоянием на каждой попытке.
func (s *TaskService) mutate(ctx context.Context, operation string, taskID uuid.UUID, fn repository.MutateFunc) (*task.Task, error) {
	start := time.Now()
	updated, err := withRetry(ctx, s.retry, operation, func() (*task.Task, error) {
		return s.repo.UpdateTask(ctx, taskID, func(ctx context.Context, tx repository.Tx, t *task.Task) error {
			if err := fn(ctx, tx, t); err != nil {
				return err
			}
			return t.CheckInvariants()
		})
	})
	if err != nil {
		return nil, s.translate(operation, taskID, err)
	}
	logger.Debug("Service: Задача изменена",
		zap.String("operation", operation),
		zap.String("task_id", taskID.String()),
		zap.Int("version", updated.Version),
		zap.Duration("ms", time.Since(start)))
	return updated, nil
}

// translate приводит ошибки хранилища к бизнес-ошибкам
func (s *TaskService) translate(operation string, taskID uuid.UUID, err error) error {
	var busErr *BusinessError
	switch {
	case errors.As(err, &busErr):
		return busErr
	case errors.Is(err, repository.ErrNotFound):
		return NewNotFound("задача", taskID.String())
	case errors.Is(err, task.ErrInvariant):
		logger.Error("Service: Нарушен инвариант задачи", err,
			zap.String("operation", operation),
			zap.String("task_id", taskID.String()))
		return fmt.Errorf("%s: %w", operation, err)
	default:
		return s.storageError(operation, err)
	}
}

func (s *TaskService) storageError(operation string, err error) error {
	if retryable(err) || errors.Is(err, context.DeadlineExceeded) {
		logger.Error("Service: Хранилище недоступно", err, zap.String("operation", operation))
		return NewDependencyError(operation, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// dispatch вызывается после фиксации; ошибки доставки не влияют на результат команды
func (s *TaskService) dispatch(ctx context.Context, events ...notify.Event) {
	ctx = context.WithoutCancel(ctx)
	for _, event := range events {
		if err := s.notifier.Notify(ctx, event); err != nil {
			s.metrics.ObserveNotification(string(event.Kind), "rejected")
			logger.Warn("Service: Уведомление не отправлено",
				zap.Error(err),
				zap.String("kind", string(event.Kind)),
				zap.String("task_id", event.TaskID.String()),
				zap.String("recipient_id", event.RecipientID.String()))
		}
	}
}

func (s *TaskService) observe(command string, errp *error) {
	outcome := ""
	if *errp != nil {
		outcome = CodeOf(*errp)
		if outcome == "" {
			outcome = "INTERNAL"
		}
	}
	s.metrics.ObserveCommand(command, outcome)
}
