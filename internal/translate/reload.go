package translate

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// FileCatalog is a Catalog loaded from a YAML file that can be re-read while
// in use. Translate and Match always see a complete catalog: either the one
// before a Reload or the one after it.
type FileCatalog struct {
	path     string
	fallback string
	opts     []Option
	log      *slog.Logger
	cur      atomic.Pointer[Catalog]
}

// OpenFile loads path with LoadFile.
func OpenFile(path, fallback string, opts ...Option) (*FileCatalog, error) {
	c, err := LoadFile(path, fallback, opts...)
	if err != nil {
		return nil, err
	}
	fc := &FileCatalog{path: path, fallback: fallback, opts: opts, log: c.log}
	fc.cur.Store(c)
	return fc, nil
}

// Reload reads the file again. On error the current catalog stays in place.
func (fc *FileCatalog) Reload() error {
	c, err := LoadFile(fc.path, fc.fallback, fc.opts...)
	if err != nil {
		return err
	}
	fc.cur.Store(c)
	fc.log.Debug("catalog reloaded", slog.String("path", fc.path))
	return nil
}

// Path returns the catalog file.
func (fc *FileCatalog) Path() string { return fc.path }

// Catalog returns the catalog currently in use.
func (fc *FileCatalog) Catalog() *Catalog { return fc.cur.Load() }

// Fallback returns the fallback locale.
func (fc *FileCatalog) Fallback() string { return fc.fallback }

// Translate implements Translator.
func (fc *FileCatalog) Translate(ctx context.Context, key string, params map[string]string) string {
	return fc.cur.Load().Translate(ctx, key, params)
}

// Match picks the supported locale for an Accept-Language value.
func (fc *FileCatalog) Match(acceptLanguage string) string {
	return fc.cur.Load().Match(acceptLanguage)
}
