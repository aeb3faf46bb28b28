package usererr

import (
	"fmt"
	"slices"
	"strings"

	"dbusererr/internal/shared"
)

// Source identifies where a database error came from and how its message is
// wrapped.
type Source int

const (
	// SourcePostgres is a RAISE EXCEPTION surfaced by pgx or lib/pq.
	SourcePostgres Source = iota + 1
	// SourceMySQL is a SIGNAL SQLSTATE '45000' from go-sql-driver/mysql.
	SourceMySQL
	// SourceSQLite is a RAISE(ABORT, ...) from a trigger, via modernc.org/sqlite.
	SourceSQLite
	// SourcePDO is the text form "SQLSTATE[P0001]: Raise exception: N ERROR:  msg".
	SourcePDO
	// SourceOracle is the text form "ORA-20NNN: msg" of RAISE_APPLICATION_ERROR.
	SourceOracle
	// SourceText accepts any error and uses its message as is.
	SourceText
)

var sourceNames = map[Source]string{
	SourcePostgres: "postgres",
	SourceMySQL:    "mysql",
	SourceSQLite:   "sqlite",
	SourcePDO:      "pdo",
	SourceOracle:   "oracle",
	SourceText:     "text",
}

func (s Source) String() string {
	if n, ok := sourceNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// DefaultSources are the sources a Handler listens to when none are configured.
func DefaultSources() []Source {
	return []Source{SourcePostgres, SourcePDO, SourceOracle}
}

// ParseSource returns the Source named name (case-insensitive).
func ParseSource(name string) (Source, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range sourceNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown error source %q", shared.ErrInvalidConfig, name)
}

// ParseSources parses a comma separated list such as "postgres, mysql".
// Duplicates are dropped; the result keeps first-seen order.
func ParseSources(list string) ([]Source, error) {
	var out []Source
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		s, err := ParseSource(name)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no error sources in %q", shared.ErrInvalidConfig, list)
	}
	return out, nil
}
