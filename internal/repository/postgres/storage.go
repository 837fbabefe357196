package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"taskMarket/internal/logger"
	"taskMarket/internal/models/account"
	"taskMarket/internal/models/task"
	repo "taskMarket/internal/repository"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const slowQuery = 100 * time.Millisecond

type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

type Storage struct {
	pool       *pgxpool.Pool
	connString string
}

var _ repo.Storage = (*Storage)(nil)

// querier - общее у пула и транзакции
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func New(ctx context.Context, connString string, poolCfg PoolConfig) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5
	if poolCfg.MaxConns > 0 {
		config.MaxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 {
		config.MinConns = poolCfg.MinConns
	}
	if poolCfg.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = poolCfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", classify(err))
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool, connString: connString}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	err := s.pool.Ping(ctx)
	if err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", classify(err))
	}
	return nil
}

func (s *Storage) CreateAccount(ctx context.Context, acc *account.Account) error {
	start := time.Now()

	query := `INSERT INTO accounts
				(id, role, name, email, average_rating, total_ratings, completed_tasks)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING created_at`

	err := s.pool.QueryRow(ctx, query,
		acc.ID,
		acc.Role,
		acc.Name,
		acc.Email,
		acc.AverageRating,
		acc.TotalRatings,
		acc.CompletedTasks,
	).Scan(&acc.CreatedAt)
	if err != nil {
		err = classify(err)
		if !errors.Is(err, repo.ErrAlreadyExists) {
			logger.Error("Repository: Не удалось добавить аккаунт", err, zap.Duration("ms", time.Since(start)))
		}
		return fmt.Errorf("добавление аккаунта: %w", err)
	}

	warnSlow(start, "create_account")
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	start := time.Now()
	acc, err := getAccount(ctx, s.pool, id, false)
	if err != nil {
		return nil, fmt.Errorf("получение аккаунта: %w", err)
	}
	warnSlow(start, "get_account")
	return acc, nil
}

func (s *Storage) CreateTask(ctx context.Context, taskToCreate *task.Task) error {
	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		logger.Error("Repository: Не удалось открыть транзакцию", err)
		return fmt.Errorf("начало транзакции: %w", classify(err))
	}
	defer tx.Rollback(ctx)

	if taskToCreate.Version == 0 {
		taskToCreate.Version = 1
	}

	query := `INSERT INTO tasks
				(id, owner_id, title, description, category, city, state, image_ref, status, created_at, version)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				RETURNING created_at`

	err = tx.QueryRow(ctx, query,
		taskToCreate.UUID,
		taskToCreate.OwnerID,
		taskToCreate.Title,
		taskToCreate.Description,
		taskToCreate.Category,
		taskToCreate.City,
		taskToCreate.State,
		taskToCreate.ImageRef,
		taskToCreate.Status,
		taskToCreate.CreatedAt,
		taskToCreate.Version,
	).Scan(&taskToCreate.CreatedAt)
	if err != nil {
		err = classify(err)
		logger.Error("Repository: Не удалось добавить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление задачи: %w", err)
	}

	for i, b := range taskToCreate.Bids {
		if err := insertBid(ctx, tx, taskToCreate.UUID, i, b); err != nil {
			return fmt.Errorf("добавление ставки: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Error("Repository: Не удалось зафиксировать транзакцию", err)
		return fmt.Errorf("фиксация транзакции: %w", classify(err))
	}

	warnSlow(start, "create_task")
	return nil
}

func (s *Storage) GetTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	start := time.Now()

	t, err := getTask(ctx, s.pool, id, false)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			logger.Error("Repository: Не удалось получить задачу", err, zap.Duration("ms", time.Since(start)))
		}
		return nil, fmt.Errorf("получение задачи: %w", err)
	}

	warnSlow(start, "get_task")
	return t, nil
}

// UpdateTask выполняет fn в одной транзакции: строка задачи и аккаунты
// блокируются FOR UPDATE, запись задачи проверяет version.
func (s *Storage) UpdateTask(ctx context.Context, id uuid.UUID, fn repo.MutateFunc) (*task.Task, error) {
	start := time.Now()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		logger.Error("Repository: Не удалось открыть транзакцию", err)
		return nil, fmt.Errorf("начало транзакции: %w", classify(err))
	}
	defer tx.Rollback(ctx)

	current, err := getTask(ctx, tx, id, true)
	if err != nil {
		return nil, fmt.Errorf("получение задачи: %w", err)
	}

	expectedVersion := current.Version
	before := make(map[uuid.UUID]task.BidStatus, len(current.Bids))
	for _, b := range current.Bids {
		before[b.ID] = b.Status
	}

	if err := fn(ctx, &pgTx{tx: tx}, current); err != nil {
		return nil, err
	}

	var rating struct {
		score   *int16
		review  *string
		ratedAt *time.Time
	}
	if current.Rating != nil {
		score := int16(current.Rating.Score)
		rating.score = &score
		rating.review = &current.Rating.Review
		rating.ratedAt = &current.Rating.RatedAt
	}

	query := `UPDATE tasks
			SET status = $1,
				selected_provider_id = $2,
				completed_at = $3,
				rating_score = $4,
				rating_review = $5,
				rated_at = $6,
				version = version + 1,
				updated_at = NOW()
			WHERE id = $7 AND version = $8
			RETURNING updated_at, version`

	err = tx.QueryRow(ctx, query,
		current.Status,
		current.SelectedProviderID,
		current.CompletedAt,
		rating.score,
		rating.review,
		rating.ratedAt,
		current.UUID,
		expectedVersion,
	).Scan(&current.UpdatedAt, &current.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Warn("Конфликт версий при обновлении задачи",
				zap.String("task_id", id.String()),
				zap.Int("expected_version", expectedVersion))
			return nil, repo.ErrVersionConflict
		}
		err = classify(err)
		logger.Error("Repository: Не удалось обновить задачу", err)
		return nil, fmt.Errorf("обновление задачи: %w", err)
	}

	for i, b := range current.Bids {
		status, existed := before[b.ID]
		switch {
		case !existed:
			if err := insertBid(ctx, tx, current.UUID, i, b); err != nil {
				return nil, fmt.Errorf("добавление ставки: %w", err)
			}
		case status != b.Status:
			if _, err := tx.Exec(ctx, `UPDATE bids SET status = $1 WHERE id = $2 AND task_id = $3`,
				b.Status, b.ID, current.UUID); err != nil {
				err = classify(err)
				logger.Error("Repository: Не удалось обновить ставку", err, zap.String("bid_id", b.ID.String()))
				return nil, fmt.Errorf("обновление ставки: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Error("Repository: Не удалось зафиксировать транзакцию", err)
		return nil, fmt.Errorf("фиксация транзакции: %w", classify(err))
	}

	warnSlow(start, "update_task")
	return current, nil
}

// ListTasks - задачи по фильтру, от новых к старым
func (s *Storage) ListTasks(ctx context.Context, filter repo.Filter) ([]*task.Task, error) {
	start := time.Now()

	conditions := []string{}
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.OwnerID != uuid.Nil {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.ProviderID != uuid.Nil {
		args = append(args, filter.ProviderID)
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(selected_provider_id = $%d OR EXISTS (SELECT 1 FROM bids b WHERE b.task_id = tasks.id AND b.provider_id = $%d))", n, n))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		err = classify(err)
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	defer rows.Close()

	tasks := []*task.Task{}
	byID := map[uuid.UUID]*task.Task{}
	ids := []uuid.UUID{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Error("Repository: Ошибка сканирования задачи", err)
			return nil, fmt.Errorf("сканирование задачи: %w", err)
		}
		tasks = append(tasks, t)
		byID[t.UUID] = t
		ids = append(ids, t.UUID)
	}
	if err := rows.Err(); err != nil {
		err = classify(err)
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	if len(ids) > 0 {
		if err := loadBids(ctx, s.pool, ids, byID); err != nil {
			return nil, err
		}
	}

	if time.Since(start) > slowQuery+time.Millisecond*time.Duration(len(tasks)) {
		logger.Warn("Repository: Медленный запрос", zap.String("operation", "list_tasks"), zap.Duration("ms", time.Since(start)))
	}
	return tasks, nil
}

const taskColumns = `id, owner_id, title, description, category, city, state, image_ref, status,
				selected_provider_id, completed_at, rating_score, rating_review, rated_at,
				created_at, updated_at, version`

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{Bids: []task.Bid{}}
	var (
		score   *int16
		review  *string
		ratedAt *time.Time
	)
	err := row.Scan(
		&t.UUID,
		&t.OwnerID,
		&t.Title,
		&t.Description,
		&t.Category,
		&t.City,
		&t.State,
		&t.ImageRef,
		&t.Status,
		&t.SelectedProviderID,
		&t.CompletedAt,
		&score,
		&review,
		&ratedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.Version,
	)
	if err != nil {
		return nil, err
	}
	if score != nil {
		t.Rating = &task.Rating{Score: int(*score)}
		if review != nil {
			t.Rating.Review = *review
		}
		if ratedAt != nil {
			t.Rating.RatedAt = *ratedAt
		}
	}
	return t, nil
}

func getTask(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	t, err := scanTask(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify(err)
	}

	if err := loadBids(ctx, q, []uuid.UUID{id}, map[uuid.UUID]*task.Task{id: t}); err != nil {
		return nil, err
	}
	return t, nil
}

func loadBids(ctx context.Context, q querier, ids []uuid.UUID, byID map[uuid.UUID]*task.Task) error {
	query := `SELECT task_id, id, provider_id, proposed_cost, proposed_time, status, created_at
				FROM bids
				WHERE task_id = ANY($1)
				ORDER BY task_id, seq`

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		err = classify(err)
		logger.Error("Repository: Не удалось получить ставки", err)
		return fmt.Errorf("получение ставок: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID uuid.UUID
		var b task.Bid
		if err := rows.Scan(&taskID, &b.ID, &b.ProviderID, &b.ProposedCost, &b.ProposedTime, &b.Status, &b.CreatedAt); err != nil {
			return fmt.Errorf("сканирование ставки: %w", err)
		}
		if t, ok := byID[taskID]; ok {
			t.Bids = append(t.Bids, b)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("итерация по ставкам: %w", classify(err))
	}
	return nil
}

func insertBid(ctx context.Context, q querier, taskID uuid.UUID, seq int, b task.Bid) error {
	query := `INSERT INTO bids
				(id, task_id, seq, provider_id, proposed_cost, proposed_time, status, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := q.Exec(ctx, query, b.ID, taskID, seq, b.ProviderID, b.ProposedCost, b.ProposedTime, b.Status, b.CreatedAt)
	if err != nil {
		err = classify(err)
		logger.Error("Repository: Не удалось добавить ставку", err, zap.String("bid_id", b.ID.String()))
		return err
	}
	return nil
}

func getAccount(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*account.Account, error) {
	query := `SELECT id, role, name, email, average_rating, total_ratings, completed_tasks, created_at
				FROM accounts
				WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	acc := &account.Account{}
	err := q.QueryRow(ctx, query, id).Scan(
		&acc.ID,
		&acc.Role,
		&acc.Name,
		&acc.Email,
		&acc.AverageRating,
		&acc.TotalRatings,
		&acc.CompletedTasks,
		&acc.CreatedAt,
	)
	if err != nil {
		return nil, classify(err)
	}
	return acc, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) AccountForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return getAccount(ctx, t.tx, id, true)
}

func (t *pgTx) SaveAccount(ctx context.Context, acc *account.Account) error {
	query := `UPDATE accounts
				SET average_rating = $1,
					total_ratings = $2,
					completed_tasks = $3
				WHERE id = $4`

	tag, err := t.tx.Exec(ctx, query, acc.AverageRating, acc.TotalRatings, acc.CompletedTasks, acc.ID)
	if err != nil {
		err = classify(err)
		logger.Error("Repository: Не удалось обновить аккаунт", err, zap.String("account_id", acc.ID.String()))
		return fmt.Errorf("обновление аккаунта: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// classify переводит ошибки pgx в ошибки репозитория
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repo.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %s", repo.ErrAlreadyExists, pgErr.ConstraintName)
		case pgErr.Code == "40001" || pgErr.Code == "40P01":
			return fmt.Errorf("%w: %s", repo.ErrVersionConflict, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P"):
			return fmt.Errorf("%w: %s", repo.ErrUnavailable, pgErr.Message)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", repo.ErrUnavailable, err)
	}
	return err
}

func warnSlow(start time.Time, operation string) {
	if time.Since(start) > slowQuery {
		logger.Warn("Repository: Медленная операция",
			zap.String("operation", operation),
			zap.Duration("ms", time.Since(start)))
	}
}
