package sqlite

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMigrations = "file://testdata/migrations"

func TestBuildMigrateURL(t *testing.T) {
	tests := []struct {
		name      string
		inputPath string
	}{
		{"relative path", "test.db"},
		{"absolute unix path", "/tmp/test.db"},
	}

	// Windows-пути проверяем только на Windows
	if runtime.GOOS == "windows" {
		tests = append(tests, struct {
			name      string
			inputPath string
		}{"windows absolute path", "C:\\temp\\test.db"})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := BuildMigrateURL(tt.inputPath)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(url, "sqlite:///"), "url %q", url)
			assert.NotContains(t, url, "\\")
			assert.True(t, strings.HasSuffix(url, "test.db"))
		})
	}
}

func TestApplyMigrations_RejectsMemory(t *testing.T) {
	err := ApplyMigrations(":memory:", testMigrations)
	assert.ErrorIs(t, err, ErrMemoryDB)
}

func TestApplyMigrations_BadSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	err := ApplyMigrations(path, "file://testdata/no-such-dir")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open migrations")
}

func TestApplyMigrations_Triggers(t *testing.T) {
	tdb := NewTestDBFile(t)
	require.NoError(t, ApplyMigrations(tdb.Path, testMigrations))
	// Повторный запуск без новых миграций не ошибка
	require.NoError(t, ApplyMigrations(tdb.Path, testMigrations))

	ctx := context.Background()

	_, err := tdb.TxRunner.Exec(ctx, "INSERT INTO orders (qty) VALUES (2)")
	require.NoError(t, err)

	_, err = tdb.TxRunner.Exec(ctx, "INSERT INTO orders (qty) VALUES (0)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app-exception: order.qty_positive|min:1")

	_, err = tdb.TxRunner.Exec(ctx, "UPDATE orders SET status = 'closed'")
	require.NoError(t, err)

	err = tdb.TxRunner.WithinTx(ctx, func(ctx context.Context) error {
		_, err := tdb.TxRunner.GetQuerier(ctx).ExecContext(ctx, "UPDATE orders SET qty = 5")
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `app-exception: "Order is closed | no changes allowed"`)
	assert.Equal(t, 1, tdb.CountRows(t, "orders"))
}
