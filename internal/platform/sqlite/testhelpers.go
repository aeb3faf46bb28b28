package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// TestDB представляет тестовую SQLite базу данных с удобными хелперами.
type TestDB struct {
	DB       *sql.DB
	Path     string // ":memory:" для in-memory БД
	TxRunner *TxRunner
}

// NewTestDBInMemory создает in-memory БД, которая закрывается после теста.
func NewTestDBInMemory(t *testing.T, opts ...TxOption) *TestDB {
	t.Helper()

	db, err := NewInMemoryDB(context.Background())
	if err != nil {
		t.Fatalf("Failed to create in-memory test DB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return &TestDB{DB: db, Path: ":memory:", TxRunner: NewTxRunner(db, opts...)}
}

// NewTestDBFile создает файловую БД во временной директории теста.
// Нужна, когда к БД подключается кто-то еще, например golang-migrate.
func NewTestDBFile(t *testing.T, opts ...TxOption) *TestDB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDB(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to create file test DB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return &TestDB{DB: db, Path: path, TxRunner: NewTxRunner(db, opts...)}
}

// Exec выполняет SQL команды и падает при первой ошибке.
func (tdb *TestDB) Exec(t *testing.T, queries ...string) {
	t.Helper()

	for _, q := range queries {
		if _, err := tdb.DB.ExecContext(context.Background(), q); err != nil {
			t.Fatalf("Failed to execute %q: %v", q, err)
		}
	}
}

// CountRows возвращает количество строк в таблице.
func (tdb *TestDB) CountRows(t *testing.T, tableName string) int {
	t.Helper()

	var count int
	row := tdb.DB.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+tableName)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("Failed to count rows in table %s: %v", tableName, err)
	}
	return count
}
