package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// txKey используется как ключ для хранения транзакции в context.Context
type txKey struct{}

// Querier объединяет методы выполнения запросов, общие для пула и транзакции.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ Querier = (*pgxpool.Pool)(nil)
	_ Querier = (pgx.Tx)(nil)
)

// ErrorMapper преобразует ошибку перед возвратом вызывающему.
// Сигнатура совпадает с (*usererr.Handler).Handle.
type ErrorMapper func(ctx context.Context, err error) error

// TxRunner выполняет код внутри транзакции: коммит при успехе, откат при ошибке.
// Итоговая ошибка проходит через ErrorMapper, если он задан.
type TxRunner struct {
	Pool *pgxpool.Pool

	mapErr ErrorMapper
}

// TxOption настраивает TxRunner.
type TxOption func(*TxRunner)

// WithErrorMapper задает преобразование ошибок. Так ошибки RAISE EXCEPTION
// из функций и триггеров превращаются в пользовательские сообщения.
func WithErrorMapper(m ErrorMapper) TxOption {
	return func(r *TxRunner) { r.mapErr = m }
}

// NewTxRunner создает TxRunner с указанным пулом подключений.
func NewTxRunner(pool *pgxpool.Pool, opts ...TxOption) *TxRunner {
	r := &TxRunner{Pool: pool}
	for _, o := range opts {
		o(r)
	}
	return r
}

// WithinTx выполняет fn внутри транзакции с опциями по умолчанию.
// Транзакция доступна внутри fn через PgxTx(ctx).
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.WithinTxWithOptions(ctx, pgx.TxOptions{}, fn)
}

// WithinTxWithOptions выполняет fn внутри транзакции с заданными опциями.
func (r *TxRunner) WithinTxWithOptions(ctx context.Context, txOptions pgx.TxOptions, fn func(ctx context.Context) error) error {
	err := pgx.BeginTxFunc(ctx, r.Pool, txOptions, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	return r.mapError(ctx, err)
}

// DryRun выполняет fn в транзакции и всегда откатывает ее. Перед откатом
// отложенные ограничения переводятся в IMMEDIATE, чтобы отложенные
// constraint-триггеры сработали сейчас. Ошибка проходит через ErrorMapper.
func (r *TxRunner) DryRun(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return r.mapError(ctx, err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return r.mapError(ctx, err)
	}
	_, err = tx.Exec(ctx, "SET CONSTRAINTS ALL IMMEDIATE")
	return r.mapError(ctx, err)
}

// Exec выполняет запрос через GetQuerier, ошибка проходит через ErrorMapper.
func (r *TxRunner) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tag, err := r.GetQuerier(ctx).Exec(ctx, sql, args...)
	return tag, r.mapError(ctx, err)
}

// PgxTx извлекает активную транзакцию из контекста.
func PgxTx(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// GetQuerier возвращает транзакцию из контекста или, если ее нет, пул.
func (r *TxRunner) GetQuerier(ctx context.Context) Querier {
	if tx, ok := PgxTx(ctx); ok {
		return tx
	}
	return r.Pool
}

func (r *TxRunner) mapError(ctx context.Context, err error) error {
	if err == nil || r.mapErr == nil {
		return err
	}
	return r.mapErr(ctx, err)
}
