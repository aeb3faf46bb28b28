package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"dbusererr/pkg/retry"
)

// txKey используется как ключ для хранения транзакции в context.Context
type txKey struct{}

// Querier объединяет методы выполнения запросов, общие для БД и транзакции.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// ErrorMapper преобразует ошибку транзакции перед возвратом вызывающему.
// Сигнатура совпадает с (*usererr.Handler).Handle.
type ErrorMapper func(ctx context.Context, err error) error

// RetryConfig содержит настройки повторов при SQLITE_BUSY.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig возвращает три попытки с экспоненциальной задержкой.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// TxRunner выполняет функции внутри транзакции, повторяет их при SQLITE_BUSY
// и пропускает итоговую ошибку через ErrorMapper.
type TxRunner struct {
	DB    *sql.DB
	Retry RetryConfig

	mapErr ErrorMapper
}

// TxOption настраивает TxRunner.
type TxOption func(*TxRunner)

// WithErrorMapper задает преобразование ошибок транзакций.
func WithErrorMapper(m ErrorMapper) TxOption {
	return func(r *TxRunner) { r.mapErr = m }
}

// WithRetry задает настройки повторов.
func WithRetry(cfg RetryConfig) TxOption {
	return func(r *TxRunner) { r.Retry = cfg }
}

// NewTxRunner создает TxRunner для db.
func NewTxRunner(db *sql.DB, opts ...TxOption) *TxRunner {
	r := &TxRunner{DB: db, Retry: DefaultRetryConfig()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// WithinTx выполняет fn внутри транзакции. Ошибка fn или коммита откатывает
// транзакцию и возвращается через ErrorMapper. Транзакция доступна внутри fn
// через SqlTx(ctx) и GetQuerier(ctx).
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.mapError(ctx, r.executeWithRetry(ctx, fn, true))
}

// DryRun выполняет fn так же, как WithinTx, но всегда откатывает транзакцию.
// Триггеры SQLite срабатывают сразу, поэтому их ошибки видны до отката.
func (r *TxRunner) DryRun(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.mapError(ctx, r.executeWithRetry(ctx, fn, false))
}

// Exec выполняет запрос вне явной транзакции, ошибка проходит через ErrorMapper.
func (r *TxRunner) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := r.GetQuerier(ctx).ExecContext(ctx, query, args...)
	return res, r.mapError(ctx, err)
}

// SqlTx извлекает активную транзакцию из контекста.
func SqlTx(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// GetQuerier возвращает транзакцию из контекста или, если ее нет, саму БД.
func (r *TxRunner) GetQuerier(ctx context.Context) Querier {
	if tx, ok := SqlTx(ctx); ok {
		return tx
	}
	return r.DB
}

func (r *TxRunner) mapError(ctx context.Context, err error) error {
	if err == nil || r.mapErr == nil {
		return err
	}
	return r.mapErr(ctx, err)
}

func (r *TxRunner) executeWithRetry(ctx context.Context, fn func(context.Context) error, commit bool) error {
	cfg := retry.Config{
		MaxAttempts:  max(r.Retry.MaxAttempts, 1),
		InitialDelay: max(r.Retry.InitialDelay, time.Millisecond),
		MaxDelay:     r.Retry.MaxDelay,
		Multiplier:   max(r.Retry.Multiplier, 1),
	}
	return retry.Do(ctx, cfg, func(ctx context.Context) error {
		return r.executeTx(ctx, fn, commit)
	}, IsBusy)
}

func (r *TxRunner) executeTx(ctx context.Context, fn func(context.Context) error, commit bool) error {
	if _, nested := SqlTx(ctx); nested {
		return fmt.Errorf("nested transactions are not supported by SQLite")
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if !commit {
		return tx.Rollback()
	}
	return tx.Commit()
}

// IsBusy сообщает, является ли err ошибкой SQLITE_BUSY или SQLITE_LOCKED.
func IsBusy(err error) bool {
	var e *sqlite.Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
