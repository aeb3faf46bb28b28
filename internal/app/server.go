package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dbusererr/internal/adapter/ginmw"
	"dbusererr/internal/adapter/scheduler"
	"dbusererr/internal/probe"
	"dbusererr/internal/shared"
	"dbusererr/internal/translate"
)

type translateRequest struct {
	Error  string `json:"error" binding:"required"`
	Locale string `json:"locale"`
}

type probeRequest struct {
	SQL  string `json:"sql" binding:"required"`
	Args []any  `json:"args"`
}

// Router builds the HTTP API:
//
//	GET  /healthz
//	POST /v1/translate  {"error": "...", "locale": "de"}
//	POST /v1/probe      {"sql": "..."} (only with HTTP_PROBE and DATABASE_URL)
func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), ginmw.RequestID(), a.respondErrors, ginmw.New(a.handler, ginmw.WithMatcher(a.catalog)).Handler())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/v1/translate", a.translate)
	if a.cfg.HTTP.Probe && a.cfg.DB.DSN != "" {
		r.POST("/v1/probe", a.probe)
	}
	return r
}

func (a *App) translate(c *gin.Context) {
	var req translateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(shared.MarkKind(err, shared.KindInvalidConfig)).SetType(gin.ErrorTypeBind)
		return
	}

	ctx := c.Request.Context()
	if req.Locale != "" {
		ctx = translate.WithLocale(ctx, req.Locale)
	}
	c.JSON(http.StatusOK, resultFor(a.handler.Handle(ctx, errors.New(req.Error))))
}

// probe runs the statement against the configured database and rolls it
// back. Statement errors are left to the middleware chain.
func (a *App) probe(c *gin.Context) {
	var req probeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(shared.MarkKind(err, shared.KindInvalidConfig)).SetType(gin.ErrorTypeBind)
		return
	}

	rep, err := a.prober(a.handler).Run(c.Request.Context(), probe.Options{
		Driver: a.cfg.DB.Driver,
		DSN:    a.cfg.DB.DSN,
		SQL:    req.SQL,
		Args:   req.Args,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	if rep.Err != nil {
		_ = c.Error(rep.Err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"driver": rep.Driver, "status": "ok"})
}

func statusFor(err error) int {
	switch shared.KindOf(err) {
	case shared.KindUserError:
		return http.StatusUnprocessableEntity
	case shared.KindInvalidConfig:
		return http.StatusBadRequest
	case shared.KindDependencyFailure:
		return http.StatusBadGateway
	case shared.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondErrors writes the last error left in c.Errors once the inner
// middleware has rewritten user errors.
func (a *App) respondErrors(c *gin.Context) {
	c.Next()

	last := c.Errors.Last()
	if last == nil || c.Writer.Written() {
		return
	}

	res := resultFor(last.Err)
	status := statusFor(last.Err)
	if res.UserError {
		status = http.StatusUnprocessableEntity
	}
	if status >= http.StatusInternalServerError {
		a.log.ErrorContext(c.Request.Context(), "request failed",
			slog.String("path", c.FullPath()),
			slog.String("request_id", ginmw.GetRequestID(c)),
			slog.Any("err", last.Err),
			slog.Any("cause", shared.Cause(last.Err)),
		)
	}
	c.JSON(status, res)
}

// Serve runs the HTTP server until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	if a.cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if a.file != nil && a.cfg.UserErr.Reload != "" {
		stop, err := a.startReload(ctx)
		if err != nil {
			return err
		}
		defer stop()
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Info("http server started", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// startReload re-reads the catalog file on the configured schedule until ctx
// is done or the returned stop func is called.
func (a *App) startReload(ctx context.Context) (func(), error) {
	s := scheduler.New(ctx, scheduler.Config{Logger: a.log})
	_, err := s.AddJob(a.cfg.UserErr.Reload, func(context.Context) error {
		return a.file.Reload()
	}, scheduler.JobOptions{Name: "catalog-reload", Timeout: 30 * time.Second})
	if err != nil {
		return nil, err
	}
	s.Start()
	a.log.Info("catalog reload scheduled",
		slog.String("path", a.file.Path()),
		slog.String("schedule", a.cfg.UserErr.Reload),
	)

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(stopCtx)
	}, nil
}
