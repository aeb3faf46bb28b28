package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // драйвер "sqlite"
)

// DBOptions описывает пул database/sql и PRAGMA соединений.
type DBOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration // 0: без таймаута

	WALMode     bool          // journal_mode=WAL, synchronous=NORMAL
	ForeignKeys bool          // foreign_keys=1
	BusyTimeout time.Duration // сколько ждать при SQLITE_BUSY
}

// DefaultDBOptions возвращает настройки для файловой БД: один писатель,
// несколько читателей.
func DefaultDBOptions() DBOptions {
	return DBOptions{
		MaxOpenConns:    4,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		PingTimeout:     5 * time.Second,
		WALMode:         true,
		ForeignKeys:     true,
		BusyTimeout:     5 * time.Second,
	}
}

// NewDB открывает SQLite БД по пути dbPath с настройками по умолчанию.
func NewDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	return NewDBWithOptions(ctx, dbPath, DefaultDBOptions())
}

// NewInMemoryDB создает in-memory БД. Пул ограничен одним соединением,
// иначе каждое соединение получит свою пустую схему.
func NewInMemoryDB(ctx context.Context) (*sql.DB, error) {
	opts := DefaultDBOptions()
	opts.WALMode = false
	opts.MaxOpenConns = 1
	opts.MaxIdleConns = 1
	return NewDBWithOptions(ctx, ":memory:", opts)
}

// NewDBWithOptions открывает SQLite БД с заданными параметрами.
// PRAGMA передаются в DSN, драйвер применяет их к каждому новому соединению.
func NewDBWithOptions(ctx context.Context, dbPath string, opts DBOptions) (*sql.DB, error) {
	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", buildDSN(dbPath, opts))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	if opts.PingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.PingTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", dbPath, err)
	}
	return db, nil
}

// PathFromDSN извлекает путь к файлу из "sqlite://path" или "sqlite:path".
// Строка без схемы возвращается как есть.
func PathFromDSN(dsn string) string {
	for _, scheme := range []string{"sqlite3://", "sqlite://", "sqlite3:", "sqlite:", "file:"} {
		if rest, ok := strings.CutPrefix(dsn, scheme); ok {
			return rest
		}
	}
	return dsn
}

func ensureDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// pragmas возвращает PRAGMA для opts. busy_timeout идет первым, чтобы
// переключение журнала тоже ждало блокировку.
func pragmas(opts DBOptions) []string {
	var p []string
	if opts.BusyTimeout > 0 {
		p = append(p, fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeout.Milliseconds()))
	}
	if opts.ForeignKeys {
		p = append(p, "foreign_keys(1)")
	}
	if opts.WALMode {
		p = append(p, "journal_mode(WAL)", "synchronous(NORMAL)")
	}
	return p
}

func buildDSN(dbPath string, opts DBOptions) string {
	p := pragmas(opts)
	if len(p) == 0 {
		return dbPath
	}
	return dbPath + "?_pragma=" + strings.Join(p, "&_pragma=")
}
