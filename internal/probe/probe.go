// Package probe runs one statement against a real database and reports how
// the resulting error is seen by a usererr.Handler: whether a trigger or
// stored procedure raises a payload the application understands.
package probe

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq" // registers "postgres"

	"dbusererr/internal/platform/pg"
	"dbusererr/internal/platform/sqlite"
	"dbusererr/internal/shared"
	"dbusererr/internal/usererr"
)

// Options describe a single probe.
type Options struct {
	// Driver is one of pgx, pq, mysql or sqlite. Empty means Detect.
	Driver string
	DSN    string
	SQL    string
	Args   []any
	// Migrations is a golang-migrate source URL such as "file://migrations",
	// applied before the statement. Supported for postgres and sqlite.
	Migrations string
	// Wait keeps pinging a postgres server for up to this long before the
	// probe starts. Zero disables waiting.
	Wait time.Duration
}

// Report is the outcome of a probe.
type Report struct {
	Driver string
	// Err is the statement error after the Handler, nil on success.
	Err error
	// UserError is set when Err carries a user-error payload.
	UserError *usererr.Error
}

// Prober runs probes with one Handler.
type Prober struct {
	handler *usererr.Handler
	log     *slog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Prober) {
		if l != nil {
			p.log = l
		}
	}
}

// New creates a Prober.
func New(h *usererr.Handler, opts ...Option) *Prober {
	p := &Prober{handler: h, log: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run connects, applies migrations if requested and executes opts.SQL inside
// a transaction that is always rolled back. On postgres deferred constraints
// are checked before the rollback. Transaction control statements, and on
// MySQL statements with an implicit commit, are rejected. The returned error
// covers configuration and connection problems only; the statement outcome is
// in Report.
func (p *Prober) Run(ctx context.Context, opts Options) (Report, error) {
	if opts.SQL == "" {
		return Report{}, fmt.Errorf("%w: empty statement", shared.ErrInvalidConfig)
	}
	driver, dsn, err := Detect(opts.Driver, opts.DSN)
	if err != nil {
		return Report{}, err
	}
	if opts.Migrations != "" && driver == DriverMySQL {
		return Report{}, fmt.Errorf("%w: migrations are not supported for %s", shared.ErrInvalidConfig, driver)
	}
	if err := checkStatement(driver, opts.SQL); err != nil {
		return Report{}, err
	}

	p.log.InfoContext(ctx, "probe started", slog.String("driver", driver), slog.String("dsn", redactDSN(driver, dsn)))

	rep := Report{Driver: driver}
	switch driver {
	case DriverPgx:
		err = p.runPgx(ctx, dsn, opts, &rep)
	case DriverPQ:
		err = p.runPQ(ctx, dsn, opts, &rep)
	case DriverMySQL:
		err = p.runMySQL(ctx, dsn, opts, &rep)
	case DriverSQLite:
		err = p.runSQLite(ctx, dsn, opts, &rep)
	}
	if err != nil {
		return Report{Driver: driver}, shared.MarkKind(shared.Wrapf(err, "probe %s", driver), shared.KindDependencyFailure)
	}

	rep.UserError, _ = usererr.As(rep.Err)
	p.log.InfoContext(ctx, "probe finished",
		slog.String("driver", driver),
		slog.Bool("failed", rep.Err != nil),
		slog.Bool("user_error", rep.UserError != nil),
	)
	return rep, nil
}

func (p *Prober) runPgx(ctx context.Context, dsn string, opts Options, rep *Report) error {
	if err := p.waitPostgres(ctx, dsn, opts.Wait); err != nil {
		return err
	}
	if err := p.migratePostgres(ctx, dsn, opts.Migrations); err != nil {
		return err
	}

	pool, err := pg.NewPool(ctx, dsn, pg.WithMaxConns(1))
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.HealthCheckPool(ctx, pool); err != nil {
		return err
	}

	runner := pg.NewTxRunner(pool, pg.WithErrorMapper(p.handler.Handle))
	rep.Err = runner.DryRun(ctx, func(ctx context.Context) error {
		_, err := runner.GetQuerier(ctx).Exec(ctx, opts.SQL, opts.Args...)
		return err
	})
	return nil
}

func (p *Prober) runPQ(ctx context.Context, dsn string, opts Options, rep *Report) error {
	if err := p.waitPostgres(ctx, dsn, opts.Wait); err != nil {
		return err
	}
	if err := p.migratePostgres(ctx, dsn, opts.Migrations); err != nil {
		return err
	}

	dsn, err := pg.WithParam(dsn, "application_name", pg.ApplicationName)
	if err != nil {
		return err
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return p.execSQL(ctx, db, opts, rep, "SET CONSTRAINTS ALL IMMEDIATE")
}

func (p *Prober) runMySQL(ctx context.Context, dsn string, opts Options, rep *Report) error {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return err
	}
	db := sql.OpenDB(connector)
	defer db.Close()
	return p.execSQL(ctx, db, opts, rep, "")
}

func (p *Prober) runSQLite(ctx context.Context, path string, opts Options, rep *Report) error {
	if opts.Migrations != "" {
		if err := sqlite.ApplyMigrations(path, opts.Migrations); err != nil {
			return err
		}
	}

	var (
		db  *sql.DB
		err error
	)
	if path == ":memory:" {
		db, err = sqlite.NewInMemoryDB(ctx)
	} else {
		db, err = sqlite.NewDB(ctx, path)
	}
	if err != nil {
		return err
	}
	defer db.Close()

	runner := sqlite.NewTxRunner(db, sqlite.WithErrorMapper(p.handler.Handle))
	rep.Err = runner.DryRun(ctx, func(ctx context.Context) error {
		_, err := runner.GetQuerier(ctx).ExecContext(ctx, opts.SQL, opts.Args...)
		return err
	})
	return nil
}

// execSQL runs the statement on a database/sql pool in a transaction that is
// rolled back. check, if set, runs after the statement.
func (p *Prober) execSQL(ctx context.Context, db *sql.DB, opts Options, rep *Report, check string) error {
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, opts.SQL, opts.Args...)
	if err == nil && check != "" {
		_, err = tx.ExecContext(ctx, check)
	}
	rep.Err = p.handler.Handle(ctx, err)
	return nil
}

func (p *Prober) migratePostgres(ctx context.Context, dsn, source string) error {
	if source == "" {
		return nil
	}
	info, err := pg.ApplyMigrations(dsn, source, pg.WithMigrateLogger(p.log))
	if err != nil {
		return err
	}
	p.log.InfoContext(ctx, "migrations applied",
		slog.Bool("applied", info.Applied),
		slog.Uint64("version", uint64(info.FinalVersion)),
	)
	return nil
}

func (p *Prober) waitPostgres(ctx context.Context, dsn string, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	opts := pg.DefaultHealthCheckOptions()
	opts.MaxRetries = 0
	p.log.InfoContext(ctx, "waiting for database", slog.String("dsn", pg.Redact(dsn)), slog.Duration("timeout", wait))
	return pg.WaitForDB(ctx, dsn, opts)
}
