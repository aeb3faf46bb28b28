package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"dbusererr/internal/adapter/scheduler"
	"dbusererr/internal/shared"
	"dbusererr/internal/usererr"
)

// Config holds application configuration values.
type Config struct {
	Env     string `validate:"required,oneof=dev prod"`
	UserErr struct {
		// Prefix may be empty: every message from an enabled source is then a payload.
		Prefix  string
		Sources []usererr.Source `validate:"min=1"`
		Locale  string           `validate:"required,bcp47_language_tag"`
		Catalog string           `validate:"omitempty,file"`
		// Reload is a cron schedule for re-reading Catalog in serve mode.
		Reload string
	}
	DB struct {
		DSN    string
		Driver string `validate:"omitempty,oneof=pgx pq mysql sqlite"`
	}
	HTTP struct {
		Addr string `validate:"required"`
		// Probe exposes POST /v1/probe. It needs DB.DSN.
		Probe bool
	}
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
}

var validate = validator.New()

// Load reads configuration from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	c.Env = getenv("ENV", "prod")

	prefix, ok := os.LookupEnv("USERERR_PREFIX")
	if !ok {
		prefix = usererr.DefaultPrefix
	}
	c.UserErr.Prefix = prefix

	sources, err := usererr.ParseSources(getenv("USERERR_SOURCES", "postgres,pdo,oracle"))
	if err != nil {
		return Config{}, fmt.Errorf("USERERR_SOURCES: %w", err)
	}
	c.UserErr.Sources = sources
	c.UserErr.Locale = getenv("USERERR_LOCALE", "en")
	c.UserErr.Catalog = os.Getenv("USERERR_CATALOG")
	c.UserErr.Reload = os.Getenv("USERERR_CATALOG_RELOAD")

	c.DB.DSN = os.Getenv("DATABASE_URL")
	c.DB.Driver = strings.ToLower(os.Getenv("DB_DRIVER"))
	c.HTTP.Addr = getenv("HTTP_ADDR", ":8080")
	if v := os.Getenv("HTTP_PROBE"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: HTTP_PROBE: %w", shared.ErrInvalidConfig, err)
		}
		c.HTTP.Probe = on
	}

	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = os.Getenv("LOG_FILE")

	if err := validate.Struct(c); err != nil {
		return Config{}, fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
	}
	if c.HTTP.Probe && c.DB.DSN == "" {
		return Config{}, fmt.Errorf("%w: HTTP_PROBE needs DATABASE_URL", shared.ErrInvalidConfig)
	}
	if c.UserErr.Reload != "" {
		if c.UserErr.Catalog == "" {
			return Config{}, fmt.Errorf("%w: USERERR_CATALOG_RELOAD needs USERERR_CATALOG", shared.ErrInvalidConfig)
		}
		if err := scheduler.ParseSchedule(c.UserErr.Reload); err != nil {
			return Config{}, fmt.Errorf("USERERR_CATALOG_RELOAD: %w", err)
		}
	}
	return c, nil
}

// HandlerConfig returns the usererr.Handler settings.
func (c Config) HandlerConfig() usererr.Config {
	return usererr.Config{Prefix: c.UserErr.Prefix, Sources: c.UserErr.Sources}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
