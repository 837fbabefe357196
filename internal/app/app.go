package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"taskMarket/internal/auth"
	"taskMarket/internal/config"
	"taskMarket/internal/handlers"
	"taskMarket/internal/logger"
	"taskMarket/internal/metrics"
	"taskMarket/internal/middleware"
	"taskMarket/internal/models/account"
	"taskMarket/internal/notify"
	"taskMarket/internal/repository"
	"taskMarket/internal/repository/inmemory"
	"taskMarket/internal/repository/postgres"
	"taskMarket/internal/service"
	"taskMarket/internal/worker"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config    *config.Config
	server    *http.Server
	router    *chi.Mux
	storage   repository.Storage
	service   *service.TaskService
	worker    *worker.NotificationWorker
	metrics   *metrics.Metrics
	tokens    *auth.Manager
	limiter   middleware.Limiter
	shutdowns []func() // функции для graceful shutdown, выполняются в обратном порядке
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) (*App, error) {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return nil, fmt.Errorf("инициализация логгера: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})

	a.metrics = metrics.New(nil)

	storage, err := a.initStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.storage = storage

	if err := a.seedAccounts(ctx); err != nil {
		a.Close()
		return nil, err
	}

	sink, err := a.initNotifier()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.worker = worker.NewNotificationWorker(sink, a.metrics,
		worker.WithQueueSize(a.config.Notify.QueueSize),
		worker.WithWorkers(a.config.Notify.Workers),
		worker.WithDeliveryTimeout(a.config.Notify.DeliveryTimeout),
		worker.WithStatsInterval(a.config.Notify.StatsInterval))

	a.service = service.NewTaskService(a.storage,
		service.WithNotifier(a.worker),
		service.WithMetrics(a.metrics),
		service.WithRetry(service.RetryPolicy{
			InitialInterval: a.config.Retry.InitialInterval,
			MaxInterval:     a.config.Retry.MaxInterval,
			MaxElapsedTime:  a.config.Retry.MaxElapsed,
		}))

	tokens, err := NewTokenManager(a.config)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tokens = tokens

	a.limiter = a.initLimiter(ctx)
	a.router = a.buildRouter(handlers.NewTaskHandler(a.service))
	a.server = &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      instrument(a.router),
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
	}

	logger.Info("App: Инициализация завершена",
		zap.String("repository", a.config.Repository.Type),
		zap.String("addr", a.server.Addr))
	return a, nil
}

func NewTokenManager(cfg *config.Config) (*auth.Manager, error) {
	m, err := auth.NewManager(auth.Config{
		Secret:   cfg.Auth.Secret,
		Issuer:   cfg.Auth.Issuer,
		TokenTTL: cfg.Auth.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("инициализация токенов: %w", err)
	}
	return m, nil
}

func (a *App) initStorage(ctx context.Context) (repository.Storage, error) {
	switch a.config.Repository.Type {
	case config.RepositoryPostgres:
		storage, err := postgres.New(ctx, a.config.Database.URL, postgres.PoolConfig{
			MaxConns:        int32(a.config.Database.MaxConnections),
			MinConns:        int32(a.config.Database.MinConnections),
			MaxConnIdleTime: a.config.Database.IdleTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("подключение к postgres: %w", err)
		}
		a.shutdowns = append(a.shutdowns, func() {
			logger.Info("Закрытие пула соединений postgres...")
			storage.Close()
		})
		if err := storage.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("миграции: %w", err)
		}
		return storage, nil
	default:
		logger.Warn("App: Используется хранилище в памяти, данные не сохраняются между запусками")
		return inmemory.NewStorage(), nil
	}
}

// seedAccounts создаёт аккаунты из YAML; уже существующие пропускаются
func (a *App) seedAccounts(ctx context.Context) error {
	path := a.config.Seed.AccountsFile
	if path == "" {
		return nil
	}
	accounts, err := account.LoadSeedFile(path)
	if err != nil {
		return fmt.Errorf("загрузка аккаунтов: %w", err)
	}

	created := 0
	for _, acc := range accounts {
		if acc.CreatedAt.IsZero() {
			acc.CreatedAt = time.Now()
		}
		err := a.storage.CreateAccount(ctx, acc)
		if errors.Is(err, repository.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("создание аккаунта %s: %w", acc.ID, err)
		}
		created++
	}
	logger.Info("App: Аккаунты загружены",
		zap.String("file", path),
		zap.Int("total", len(accounts)),
		zap.Int("created", created))
	return nil
}

// initLimiter выбирает общий лимит в Redis, если он задан и доступен,
// иначе окно в памяти процесса
func (a *App) initLimiter(ctx context.Context) middleware.Limiter {
	rpm := a.config.Server.RateLimitRPM
	url := a.config.Server.RateLimitRedis
	if url == "" {
		return middleware.NewMemoryLimiter(rpm)
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn("App: Неверный rate_limit_redis_url, лимит в памяти процесса", zap.Error(err))
		return middleware.NewMemoryLimiter(rpm)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.Warn("App: Redis недоступен, лимит в памяти процесса", zap.Error(err))
		return middleware.NewMemoryLimiter(rpm)
	}

	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Закрытие соединения Redis...")
		_ = client.Close()
	})
	logger.Info("App: Лимит запросов хранится в Redis", zap.String("addr", opts.Addr))
	return middleware.NewRedisLimiter(client, "marketplace:ratelimit:", rpm)
}

func (a *App) initNotifier() (notify.Notifier, error) {
	if a.config.Notify.NATSURL == "" {
		return notify.LogNotifier{}, nil
	}

	conn, err := nats.Connect(a.config.Notify.NATSURL,
		nats.Name("task-market"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("подключение к NATS: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Закрытие соединения NATS...")
		if err := conn.Drain(); err != nil {
			conn.Close()
		}
	})

	logger.Info("App: Уведомления публикуются в NATS",
		zap.String("url", a.config.Notify.NATSURL),
		zap.String("prefix", a.config.Notify.SubjectPrefix))
	return notify.Multi{
		notify.NewNATSNotifier(conn, a.config.Notify.SubjectPrefix),
		notify.LogNotifier{},
	}, nil
}

// Run блокируется до отмены ctx или ошибки сервера
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.worker.Start(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("App: Сервер запущен", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http сервер: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()

		logger.Info("App: Остановка сервера...")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("остановка сервера: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close выполняет shutdowns в обратном порядке; повторный вызов ничего не делает
func (a *App) Close() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	a.shutdowns = nil
}

// Handler - собранный роутер, используется в тестах
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) Tokens() *auth.Manager {
	return a.tokens
}
