package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestPgxTx_NoTransaction(t *testing.T) {
	t.Parallel()

	tx, ok := PgxTx(context.Background())
	if ok {
		t.Error("expected no transaction, but PgxTx returned true")
	}
	if tx != nil {
		t.Error("expected nil transaction, but got non-nil")
	}
}

func TestPgxTx_WrongValueType(t *testing.T) {
	t.Parallel()

	// В контексте лежит значение, которое не является pgx.Tx
	ctx := context.WithValue(context.Background(), txKey{}, "not-a-tx")
	if _, ok := PgxTx(ctx); ok {
		t.Error("expected type assertion to fail for non-pgx.Tx value")
	}
}

func TestNewTxRunner(t *testing.T) {
	t.Parallel()

	pool := &pgxpool.Pool{}
	runner := NewTxRunner(pool)
	if runner.Pool != pool {
		t.Error("TxRunner.Pool is not the passed pool")
	}
	if runner.mapErr != nil {
		t.Error("error mapper must be nil by default")
	}

	q := runner.GetQuerier(context.Background())
	if q != Querier(pool) {
		t.Error("GetQuerier without transaction must return the pool")
	}
}

func TestTxRunner_MapError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cause := errors.New("ERROR: boom (SQLSTATE P0001)")

	plain := NewTxRunner(nil)
	if got := plain.mapError(ctx, cause); got != cause {
		t.Errorf("mapError() without mapper = %v, want original", got)
	}

	calls := 0
	mapped := NewTxRunner(nil, WithErrorMapper(func(_ context.Context, err error) error {
		calls++
		return fmt.Errorf("mapped: %w", err)
	}))

	if got := mapped.mapError(ctx, nil); got != nil {
		t.Errorf("mapError(nil) = %v, want nil", got)
	}
	if calls != 0 {
		t.Error("mapper must not be called for nil error")
	}

	got := mapped.mapError(ctx, cause)
	if !errors.Is(got, cause) || !strings.HasPrefix(got.Error(), "mapped: ") {
		t.Errorf("mapError() = %v", got)
	}
}

// Интеграционные тесты требуют TEST_PG_DSN
func TestTxRunner_WithinTx_Integration(t *testing.T) {
	runner := migratedRunner(t)
	ctx := context.Background()

	var id int64
	err := runner.WithinTx(ctx, func(ctx context.Context) error {
		if _, ok := PgxTx(ctx); !ok {
			return errors.New("expected transaction in context")
		}
		return runner.GetQuerier(ctx).
			QueryRow(ctx, "INSERT INTO accounts (owner, balance) VALUES ('tx', 10) RETURNING id").
			Scan(&id)
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	// Откат при ошибке fn
	rollback := errors.New("rollback")
	err = runner.WithinTxWithOptions(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context) error {
		if _, err := runner.GetQuerier(ctx).Exec(ctx, "UPDATE accounts SET balance = 0 WHERE id = $1", id); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("expected rollback error, got %v", err)
	}

	var balance int
	if err := runner.Pool.QueryRow(ctx, "SELECT balance FROM accounts WHERE id = $1", id).Scan(&balance); err != nil {
		t.Fatal(err)
	}
	if balance != 10 {
		t.Errorf("balance = %d, want 10 after rollback", balance)
	}
}

func TestTxRunner_RaiseException_Integration(t *testing.T) {
	var seen error
	runner := migratedRunner(t, WithErrorMapper(func(_ context.Context, err error) error {
		seen = err
		return err
	}))
	ctx := context.Background()

	var id int64
	if err := runner.Pool.QueryRow(ctx, "INSERT INTO accounts (owner, balance) VALUES ('raise', 5) RETURNING id").Scan(&id); err != nil {
		t.Fatal(err)
	}

	_, err := runner.Exec(ctx, "SELECT accounts_withdraw($1, $2)", id, 7)
	if err == nil {
		t.Fatal("expected RAISE EXCEPTION error")
	}

	var pgErr *pgconn.PgError
	if !errors.As(seen, &pgErr) {
		t.Fatalf("mapper got %T, want *pgconn.PgError", seen)
	}
	if pgErr.Code != "P0001" {
		t.Errorf("Code = %q, want P0001", pgErr.Code)
	}
	want := "app-exception: account.insufficient_funds|balance:5|amount:7"
	if pgErr.Message != want {
		t.Errorf("Message = %q, want %q", pgErr.Message, want)
	}
}

func TestTxRunner_DryRun_Integration(t *testing.T) {
	var seen error
	runner := migratedRunner(t, WithErrorMapper(func(_ context.Context, err error) error {
		seen = err
		return err
	}))
	ctx := context.Background()

	countDry := func() int {
		var n int
		if err := runner.Pool.QueryRow(ctx, "SELECT count(*) FROM accounts WHERE owner = 'dry'").Scan(&n); err != nil {
			t.Fatal(err)
		}
		return n
	}

	// Успешный запрос не оставляет следов
	err := runner.DryRun(ctx, func(ctx context.Context) error {
		_, err := runner.GetQuerier(ctx).Exec(ctx, "INSERT INTO accounts (owner, balance) VALUES ('dry', 1)")
		return err
	})
	if err != nil {
		t.Fatalf("DryRun() error = %v", err)
	}
	if n := countDry(); n != 0 {
		t.Errorf("rows after DryRun = %d, want 0", n)
	}

	// Отложенный триггер срабатывает до отката
	err = runner.DryRun(ctx, func(ctx context.Context) error {
		_, err := runner.GetQuerier(ctx).Exec(ctx, "INSERT INTO accounts (owner, balance) VALUES ('dry', -3)")
		return err
	})
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "P0001" {
		t.Fatalf("DryRun() error = %v, want P0001", err)
	}
	if seen != err {
		t.Error("deferred trigger error must go through the mapper")
	}
	if want := "app-exception: account.negative_balance|balance:-3"; pgErr.Message != want {
		t.Errorf("Message = %q, want %q", pgErr.Message, want)
	}
	if n := countDry(); n != 0 {
		t.Errorf("rows after failed DryRun = %d, want 0", n)
	}
}
