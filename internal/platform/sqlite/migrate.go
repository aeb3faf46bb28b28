package sqlite

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// ErrMemoryDB возвращается ApplyMigrations для ":memory:": golang-migrate
// открывает собственное соединение и не увидит in-memory схему.
var ErrMemoryDB = errors.New("migrations need a file database, not :memory:")

// BuildMigrateURL строит URL для golang-migrate из пути к файлу БД:
// "/tmp/app.db" дает "sqlite:///tmp/app.db", "C:\db\app.db" дает "sqlite:///C:/db/app.db".
func BuildMigrateURL(dbPath string) (string, error) {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dbPath, err)
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "sqlite", Path: p}
	return u.String(), nil
}

// ApplyMigrations поднимает схему файла dbPath до последней версии из
// migrationsPath (например "file://testdata/migrations"). Повторный вызов
// без новых миграций ошибкой не считается.
func ApplyMigrations(dbPath, migrationsPath string) error {
	if dbPath == ":memory:" {
		return ErrMemoryDB
	}
	target, err := BuildMigrateURL(dbPath)
	if err != nil {
		return err
	}

	m, err := migrate.New(migrationsPath, target)
	if err != nil {
		return fmt.Errorf("open migrations %s: %w", migrationsPath, err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", dbPath, err)
	}
	return nil
}
