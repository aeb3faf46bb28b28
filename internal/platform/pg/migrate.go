package pg

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationInfo описывает результат ApplyMigrations.
type MigrationInfo struct {
	Applied        bool
	CurrentVersion uint // до применения
	FinalVersion   uint // после применения
}

// MigrateOption настраивает запуск миграций.
type MigrateOption func(*migrate.Migrate)

// WithMigrateLogger направляет сообщения golang-migrate в slog на уровне Debug.
func WithMigrateLogger(log *slog.Logger) MigrateOption {
	return func(m *migrate.Migrate) { m.Log = migrateLogger{log: log} }
}

type migrateLogger struct{ log *slog.Logger }

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (l migrateLogger) Verbose() bool { return false }

// ApplyMigrations поднимает схему dsn до последней версии из source
// (например "file://migrations"). Отсутствие новых миграций ошибкой не
// считается, "грязная" БД считается.
func ApplyMigrations(dsn, source string, opts ...MigrateOption) (MigrationInfo, error) {
	m, err := migrate.New(source, dsn)
	if err != nil {
		return MigrationInfo{}, fmt.Errorf("open migrations %s for %s: %w", source, Redact(dsn), err)
	}
	defer func() { _, _ = m.Close() }()
	for _, opt := range opts {
		opt(m)
	}

	before, err := version(m)
	if err != nil {
		return MigrationInfo{}, err
	}
	info := MigrationInfo{CurrentVersion: before, FinalVersion: before}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		return info, nil
	case err != nil:
		return info, fmt.Errorf("migrate up from version %d: %w", before, err)
	}

	info.Applied = true
	if after, err := version(m); err == nil {
		info.FinalVersion = after
	}
	return info, nil
}

// version возвращает текущую версию схемы; пустая БД имеет версию 0.
func version(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read schema version: %w", err)
	case dirty:
		return v, fmt.Errorf("schema is dirty at version %d", v)
	}
	return v, nil
}
