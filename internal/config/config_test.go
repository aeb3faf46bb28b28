package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbusererr/internal/shared"
	"dbusererr/internal/usererr"
)

var configKeys = []string{
	"ENV", "USERERR_PREFIX", "USERERR_SOURCES", "USERERR_LOCALE", "USERERR_CATALOG", "USERERR_CATALOG_RELOAD",
	"DATABASE_URL", "DB_DRIVER", "HTTP_ADDR", "HTTP_PROBE", "LOG_CONSOLE_LEVEL", "LOG_FILE_LEVEL", "LOG_FILE",
}

// clearEnv unsets every key Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", c.Env)
	assert.Equal(t, "app-exception: ", c.UserErr.Prefix)
	assert.Equal(t, usererr.DefaultSources(), c.UserErr.Sources)
	assert.Equal(t, "en", c.UserErr.Locale)
	assert.Empty(t, c.UserErr.Catalog)
	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.False(t, c.HTTP.Probe)
	assert.Equal(t, "info", c.Log.ConsoleLevel)
	assert.Equal(t, "debug", c.Log.FileLevel)

	assert.Equal(t, usererr.DefaultConfig(), c.HandlerConfig())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	catalog := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte("en: {}\n"), 0o600))

	t.Setenv("ENV", "dev")
	t.Setenv("USERERR_PREFIX", "")
	t.Setenv("USERERR_SOURCES", "mysql, sqlite,mysql")
	t.Setenv("USERERR_LOCALE", "de-CH")
	t.Setenv("USERERR_CATALOG", catalog)
	t.Setenv("USERERR_CATALOG_RELOAD", "@every 30s")
	t.Setenv("DATABASE_URL", "sqlite::memory:")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("HTTP_PROBE", "true")
	t.Setenv("LOG_CONSOLE_LEVEL", "WARN")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", c.Env)
	assert.Empty(t, c.UserErr.Prefix, "an explicitly empty prefix is kept")
	assert.Equal(t, []usererr.Source{usererr.SourceMySQL, usererr.SourceSQLite}, c.UserErr.Sources)
	assert.Equal(t, "de-CH", c.UserErr.Locale)
	assert.Equal(t, catalog, c.UserErr.Catalog)
	assert.Equal(t, "@every 30s", c.UserErr.Reload)
	assert.Equal(t, "sqlite", c.DB.Driver)
	assert.True(t, c.HTTP.Probe)
	assert.Equal(t, "warn", c.Log.ConsoleLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"env", "ENV", "staging"},
		{"source", "USERERR_SOURCES", "postgres,db2"},
		{"empty sources", "USERERR_SOURCES", " , "},
		{"locale", "USERERR_LOCALE", "not a locale"},
		{"missing catalog", "USERERR_CATALOG", "/does/not/exist.yaml"},
		{"reload without catalog", "USERERR_CATALOG_RELOAD", "@every 1m"},
		{"driver", "DB_DRIVER", "oracle"},
		{"probe without database", "HTTP_PROBE", "1"},
		{"probe flag", "HTTP_PROBE", "maybe"},
		{"log level", "LOG_FILE_LEVEL", "trace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			require.Error(t, err)
			assert.True(t, shared.IsInvalidConfig(err), "got %v", err)
		})
	}
}

func TestLoad_InvalidReloadSchedule(t *testing.T) {
	clearEnv(t)
	catalog := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte("en: {}\n"), 0o600))
	t.Setenv("USERERR_CATALOG", catalog)
	t.Setenv("USERERR_CATALOG_RELOAD", "every minute")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, shared.IsInvalidConfig(err), "got %v", err)
	assert.Contains(t, err.Error(), "USERERR_CATALOG_RELOAD")
}
