package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"taskMarket/internal/logger"
	"taskMarket/internal/migrations"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

func (s *Storage) Migrate(ctx context.Context) error {
	return MigrateUp(ctx, s.connString)
}

func MigrateUp(ctx context.Context, connString string) error {
	logger.Info("Применение миграций")
	return run(ctx, connString, func(m *migrate.Migrate) error { return m.Up() })
}

func MigrateDown(ctx context.Context, connString string) error {
	logger.Info("Откат миграций")
	return run(ctx, connString, func(m *migrate.Migrate) error { return m.Down() })
}

func run(ctx context.Context, connString string, step func(*migrate.Migrate) error) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("источник миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(connString))
	if err != nil {
		logger.Error("Repository: Не удалось подготовить миграции", err)
		return fmt.Errorf("инициализация миграций: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			logger.Warn("Repository: Ошибка закрытия мигратора", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
		}
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Ошибка миграции", err)
		return fmt.Errorf("миграция: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("версия схемы: %w", err)
	}
	logger.Info("Миграции применены", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// migrateURL меняет схему на pgx5, которую регистрирует драйвер golang-migrate
func migrateURL(connString string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(connString, prefix) {
			return "pgx5://" + strings.TrimPrefix(connString, prefix)
		}
	}
	return connString
}
