package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dbusererr/pkg/retry"
)

// WaitStrategy задает рост паузы между попытками WaitForDB.
type WaitStrategy int

const (
	LinearWait      WaitStrategy = iota // пауза растет на InitialInterval
	ExponentialWait                     // пауза удваивается
)

// HealthCheckOptions настраивает WaitForDB.
type HealthCheckOptions struct {
	MaxRetries      int // 0: пока не истечет контекст
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Strategy        WaitStrategy
	PingTimeout     time.Duration // на одну попытку
}

// DefaultHealthCheckOptions: пять попыток, пауза от 0.5s до 5s.
func DefaultHealthCheckOptions() HealthCheckOptions {
	return HealthCheckOptions{
		MaxRetries:      5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Strategy:        ExponentialWait,
		PingTimeout:     5 * time.Second,
	}
}

// ErrNilPool возвращается HealthCheckPool для nil пула.
var ErrNilPool = errors.New("pool is nil")

// WaitForDB ожидает доступности базы данных, повторяя ping по стратегии opts.
func WaitForDB(ctx context.Context, dsn string, opts HealthCheckOptions) error {
	cfg := retry.Config{
		MaxAttempts:  max(opts.MaxRetries, 0),
		InitialDelay: opts.InitialInterval,
		MaxDelay:     opts.MaxInterval,
		NextDelay: func(_ int, prev time.Duration) time.Duration {
			if prev == 0 {
				return opts.InitialInterval
			}
			return calculateNextInterval(prev, opts)
		},
	}

	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		return pingDatabase(ctx, dsn, opts.PingTimeout)
	}, retry.Always)

	var exceeded *retry.RetriesExceededError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &exceeded):
		return fmt.Errorf("database not available after %d attempts: %w", exceeded.Attempts, exceeded.LastError)
	default:
		return fmt.Errorf("waiting for database: %w", err)
	}
}

// HealthCheckPool проверяет существующий пул: ping и SELECT 1.
func HealthCheckPool(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return ErrNilPool
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping pool: %w", err)
	}
	var one int
	switch err := pool.QueryRow(ctx, "SELECT 1").Scan(&one); {
	case err != nil:
		return fmt.Errorf("select 1: %w", err)
	case one != 1:
		return fmt.Errorf("select 1 returned %d", one)
	}
	return nil
}

// pingDatabase открывает одно соединение и выполняет ping.
func pingDatabase(ctx context.Context, dsn string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect %s: %w", Redact(dsn), err)
	}
	defer func() { _ = conn.Close(context.WithoutCancel(ctx)) }()

	return conn.Ping(ctx)
}

// calculateNextInterval вычисляет следующий интервал ожидания.
func calculateNextInterval(current time.Duration, opts HealthCheckOptions) time.Duration {
	var next time.Duration
	switch opts.Strategy {
	case LinearWait:
		next = current + opts.InitialInterval
	case ExponentialWait:
		next = current * 2
	default:
		return opts.InitialInterval
	}
	return min(next, opts.MaxInterval)
}
