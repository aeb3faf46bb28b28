package app

import (
	"log/slog"

	"dbusererr/internal/config"
	"dbusererr/internal/platform/logger"
	"dbusererr/internal/probe"
	"dbusererr/internal/translate"
	"dbusererr/internal/usererr"
)

// Catalog is the message catalog the App translates with.
type Catalog interface {
	translate.Translator
	Match(acceptLanguage string) string
	Fallback() string
}

// App wires application components.
type App struct {
	cfg     config.Config
	log     *slog.Logger
	catalog Catalog
	// file is set when the catalog comes from USERERR_CATALOG.
	file    *translate.FileCatalog
	handler *usererr.Handler
}

// New loads configuration from the environment and builds an App.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "usererr",
	})

	a, err := NewWithConfig(cfg, log)
	if err != nil {
		_ = logger.Close(log)
		return nil, err
	}
	return a, nil
}

// NewWithConfig builds an App from an already loaded configuration.
func NewWithConfig(cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}
	if cfg.UserErr.Catalog != "" {
		file, err := translate.OpenFile(cfg.UserErr.Catalog, cfg.UserErr.Locale, translate.WithLogger(log))
		if err != nil {
			return nil, err
		}
		a.catalog, a.file = file, file
	} else {
		catalog, err := translate.NewCatalog(cfg.UserErr.Locale, translate.WithLogger(log))
		if err != nil {
			return nil, err
		}
		a.catalog = catalog
	}

	h, err := usererr.New(cfg.HandlerConfig(), a.catalog, usererr.WithLogger(log))
	if err != nil {
		return nil, err
	}
	a.handler = h
	return a, nil
}

// Close releases the log file, if any.
func (a *App) Close() error {
	return logger.Close(a.log)
}

// Handler returns the configured usererr.Handler.
func (a *App) Handler() *usererr.Handler { return a.handler }

// Catalog returns the message catalog.
func (a *App) Catalog() Catalog { return a.catalog }

// handlerFor returns the configured Handler, or one with the same prefix and
// catalog but other sources when sources is not empty.
func (a *App) handlerFor(sources []usererr.Source) (*usererr.Handler, error) {
	if len(sources) == 0 {
		return a.handler, nil
	}
	return usererr.New(usererr.Config{Prefix: a.cfg.UserErr.Prefix, Sources: sources}, a.catalog, usererr.WithLogger(a.log))
}

func (a *App) prober(h *usererr.Handler) *probe.Prober {
	return probe.New(h, probe.WithLogger(a.log))
}

// Result describes how an error was handled.
type Result struct {
	UserError bool              `json:"user_error"`
	Message   string            `json:"message"`
	Key       string            `json:"key,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	Source    string            `json:"source,omitempty"`
	Code      string            `json:"code,omitempty"`
}

func resultFor(err error) Result {
	if err == nil {
		return Result{}
	}
	ue, ok := usererr.As(err)
	if !ok {
		return Result{Message: err.Error()}
	}
	return Result{
		UserError: true,
		Message:   ue.Error(),
		Key:       ue.Key,
		Params:    ue.Params,
		Source:    ue.Source.String(),
		Code:      ue.Code,
	}
}
