package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationName передается серверу, если DSN не задает application_name.
const ApplicationName = "dbusererr"

// PoolConfig описывает пул подключений. Нулевые поля оставляют значения pgxpool.
type PoolConfig struct {
	MaxConns     int32
	MinConns     int32
	ConnLifetime time.Duration
	ConnIdle     time.Duration
	HealthCheck  time.Duration
	// PingTimeout ограничивает проверку соединения при создании пула.
	PingTimeout time.Duration
	AppName     string
}

// DefaultPoolConfig возвращает небольшой пул: сервис и probe выполняют
// по одному запросу на вызов.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:     4,
		ConnLifetime: time.Hour,
		ConnIdle:     5 * time.Minute,
		HealthCheck:  30 * time.Second,
		PingTimeout:  5 * time.Second,
		AppName:      ApplicationName,
	}
}

// PoolOption изменяет PoolConfig.
type PoolOption func(*PoolConfig)

// WithMaxConns ограничивает размер пула.
func WithMaxConns(n int32) PoolOption {
	return func(c *PoolConfig) { c.MaxConns = n }
}

// WithPingTimeout задает таймаут первой проверки соединения.
func WithPingTimeout(d time.Duration) PoolOption {
	return func(c *PoolConfig) { c.PingTimeout = d }
}

// NewPool создает пул подключений к PostgreSQL и проверяет соединение.
// DSN в ошибках маскируется.
func NewPool(ctx context.Context, dsn string, opts ...PoolOption) (*pgxpool.Pool, error) {
	pc := DefaultPoolConfig()
	for _, opt := range opts {
		opt(&pc)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn %s: %w", Redact(dsn), err)
	}
	pc.apply(cfg)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if pc.PingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pc.PingTimeout)
		defer cancel()
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", Redact(dsn), err)
	}
	return pool, nil
}

func (pc PoolConfig) apply(cfg *pgxpool.Config) {
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 && pc.MinConns <= cfg.MaxConns {
		cfg.MinConns = pc.MinConns
	}
	if pc.ConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.ConnLifetime
	}
	if pc.ConnIdle > 0 {
		cfg.MaxConnIdleTime = pc.ConnIdle
	}
	if pc.HealthCheck > 0 {
		cfg.HealthCheckPeriod = pc.HealthCheck
	}
	if pc.AppName != "" && cfg.ConnConfig.RuntimeParams["application_name"] == "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = pc.AppName
	}
}
