package usererr_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbusererr/internal/platform/sqlite"
	"dbusererr/internal/shared"
	"dbusererr/internal/translate"
	"dbusererr/internal/usererr"
)

// Trigger errors raised by SQLite travel through the TxRunner error mapper.
func TestHandler_SQLiteTriggers(t *testing.T) {
	catalog, err := translate.NewCatalog("en")
	require.NoError(t, err)
	require.NoError(t, catalog.Add("en", "order.qty_positive", "Quantity must be at least %min%."))

	h := newHandler(t, usererr.Config{
		Prefix:  usererr.DefaultPrefix,
		Sources: []usererr.Source{usererr.SourceSQLite},
	}, catalog)

	tdb := sqlite.NewTestDBInMemory(t, sqlite.WithErrorMapper(h.Handle))
	tdb.Exec(t,
		"CREATE TABLE orders (id INTEGER PRIMARY KEY, qty INTEGER NOT NULL, status TEXT NOT NULL DEFAULT 'open')",
		`CREATE TRIGGER orders_qty_positive BEFORE INSERT ON orders WHEN NEW.qty <= 0
		 BEGIN SELECT RAISE(ABORT, 'app-exception: order.qty_positive|min:1'); END`,
		`CREATE TRIGGER orders_closed BEFORE UPDATE ON orders WHEN OLD.status = 'closed'
		 BEGIN SELECT RAISE(ABORT, 'app-exception: "Order is closed | no changes allowed"'); END`,
		"INSERT INTO orders (qty, status) VALUES (1, 'closed')",
	)
	ctx := context.Background()

	t.Run("keyword with params", func(t *testing.T) {
		err := tdb.TxRunner.WithinTx(ctx, func(ctx context.Context) error {
			_, err := tdb.TxRunner.GetQuerier(ctx).ExecContext(ctx, "INSERT INTO orders (qty) VALUES (0)")
			return err
		})

		ue, ok := usererr.As(err)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, "Quantity must be at least 1.", ue.Error())
		assert.Equal(t, "order.qty_positive", ue.Key)
		assert.Equal(t, map[string]string{"%min%": "1"}, ue.Params)
		assert.Equal(t, usererr.SourceSQLite, ue.Source)
		assert.True(t, shared.IsUserError(err))
	})

	t.Run("quoted message with pipe", func(t *testing.T) {
		_, err := tdb.TxRunner.Exec(ctx, "UPDATE orders SET qty = 3")

		ue, ok := usererr.As(err)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, "Order is closed | no changes allowed", ue.Error())
		assert.Empty(t, ue.Params)
	})

	t.Run("other constraint passes through", func(t *testing.T) {
		_, err := tdb.TxRunner.Exec(ctx, "INSERT INTO orders (id, qty) VALUES (1, 5)")
		require.Error(t, err)

		_, ok := usererr.As(err)
		assert.False(t, ok)
		assert.False(t, errors.Is(err, shared.ErrUserError))
		assert.Contains(t, err.Error(), "UNIQUE")
	})
}
