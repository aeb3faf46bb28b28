package pg

import (
	"fmt"
	"net/url"
	"strings"
)

// IsURL сообщает, задан ли DSN в URL-форме postgres:// или postgresql://.
func IsURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Redact скрывает пароль в DSN для логов.
// DSN в форме "key=value" возвращается с замаскированным password=.
func Redact(dsn string) string {
	if IsURL(dsn) {
		u, err := url.Parse(dsn)
		if err != nil {
			return "postgres://invalid"
		}
		return u.Redacted()
	}

	fields := strings.Fields(dsn)
	for i, f := range fields {
		if k, _, ok := strings.Cut(f, "="); ok && k == "password" {
			fields[i] = "password=xxxxx"
		}
	}
	return strings.Join(fields, " ")
}

// WithParam добавляет к URL-форме DSN параметр key, если он еще не задан.
func WithParam(dsn, key, value string) (string, error) {
	if !IsURL(dsn) {
		if strings.Contains(dsn, key+"=") {
			return dsn, nil
		}
		return strings.TrimSpace(dsn + " " + key + "=" + value), nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid DSN format: %w", err)
	}
	q := u.Query()
	if q.Get(key) == "" {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
