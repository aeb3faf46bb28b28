package probe

import (
	"fmt"
	"strings"

	"dbusererr/internal/platform/sqlite"
	"dbusererr/internal/shared"
)

// Driver names accepted in Options.Driver.
const (
	DriverPgx    = "pgx"
	DriverPQ     = "pq"
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Detect returns the driver for dsn and the DSN in the form that driver
// expects. A non-empty driver is only validated. Without one the driver is
// guessed from the DSN: postgres URLs and key=value strings use pgx,
// mysql:// and user@tcp(host) use mysql, sqlite:// and *.db files use sqlite.
func Detect(driver, dsn string) (string, string, error) {
	if dsn == "" {
		return "", "", fmt.Errorf("%w: connection string is empty", shared.ErrInvalidConfig)
	}

	switch strings.ToLower(driver) {
	case DriverPgx, DriverPQ:
		return strings.ToLower(driver), dsn, nil
	case DriverMySQL:
		return DriverMySQL, strings.TrimPrefix(dsn, "mysql://"), nil
	case DriverSQLite:
		return DriverSQLite, sqlite.PathFromDSN(dsn), nil
	case "":
	default:
		return "", "", fmt.Errorf("%w: unknown driver %q", shared.ErrInvalidConfig, driver)
	}

	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPgx, dsn, nil
	case strings.HasPrefix(lower, "mysql://"):
		return DriverMySQL, dsn[len("mysql://"):], nil
	case strings.HasPrefix(lower, "sqlite"), strings.HasPrefix(lower, "file:"):
		return DriverSQLite, sqlite.PathFromDSN(dsn), nil
	case strings.Contains(lower, "@tcp("), strings.Contains(lower, "@unix("):
		return DriverMySQL, dsn, nil
	case lower == ":memory:", strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"):
		return DriverSQLite, dsn, nil
	case strings.Contains(lower, "host="), strings.Contains(lower, "dbname="):
		return DriverPgx, dsn, nil
	}
	return "", "", fmt.Errorf("%w: unable to detect driver from connection string", shared.ErrInvalidConfig)
}
