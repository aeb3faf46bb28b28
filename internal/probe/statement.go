package probe

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"dbusererr/internal/platform/pg"
	"dbusererr/internal/shared"
)

// txControl are statements that end or split the probe transaction.
var txControl = map[string]bool{
	"BEGIN": true, "START": true, "COMMIT": true, "END": true, "ROLLBACK": true,
	"ABORT": true, "SAVEPOINT": true, "RELEASE": true, "PREPARE": true,
}

// mysqlImplicitCommit are MySQL statements that commit the open transaction
// before they run, so a rollback cannot undo them.
var mysqlImplicitCommit = map[string]bool{
	"CREATE": true, "ALTER": true, "DROP": true, "TRUNCATE": true, "RENAME": true,
	"GRANT": true, "REVOKE": true, "LOCK": true, "UNLOCK": true, "LOAD": true,
}

// checkStatement rejects SQL that would escape the rollback: transaction
// control anywhere in a multi-statement string and, on MySQL, statements
// with an implicit commit.
func checkStatement(driver, query string) error {
	for _, kw := range leadingKeywords(query) {
		if txControl[kw] || (driver == DriverMySQL && mysqlImplicitCommit[kw]) {
			return fmt.Errorf("%w: %s statements are not allowed in a probe on %s", shared.ErrInvalidConfig, kw, driver)
		}
	}
	return nil
}

// leadingKeywords returns the first word of every statement in query,
// upper-cased. Quoted text, dollar-quoted bodies and comments are skipped.
func leadingKeywords(query string) []string {
	var (
		out   []string
		start = true
	)
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(query, i, c)
			start = false
		case c == '-' && strings.HasPrefix(query[i:], "--"):
			if j := strings.IndexByte(query[i:], '\n'); j >= 0 {
				i += j + 1
			} else {
				i = len(query)
			}
		case c == '/' && strings.HasPrefix(query[i:], "/*"):
			if j := strings.Index(query[i+2:], "*/"); j >= 0 {
				i += j + 4
			} else {
				i = len(query)
			}
		case c == '$':
			i = skipDollar(query, i)
			start = false
		case c == ';':
			start = true
			i++
		case isWordByte(c):
			j := i
			for j < len(query) && isWordByte(query[j]) {
				j++
			}
			if start {
				out = append(out, strings.ToUpper(query[i:j]))
				start = false
			}
			i = j
		default:
			i++
		}
	}
	return out
}

// skipQuoted returns the index after the literal opened at i. A doubled
// quote stays inside the literal.
func skipQuoted(s string, i int, q byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

// skipDollar skips a postgres $tag$...$tag$ body. A lone $ or a $1
// placeholder is skipped as one byte.
func skipDollar(s string, i int) int {
	j := i + 1
	for j < len(s) && (isWordByte(s[j]) && !(j == i+1 && s[j] >= '0' && s[j] <= '9')) {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		return i + 1
	}
	tag := s[i : j+1]
	if end := strings.Index(s[j+1:], tag); end >= 0 {
		return j + 1 + end + len(tag)
	}
	return len(s)
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// redactDSN masks the password in dsn for logging.
func redactDSN(driver, dsn string) string {
	switch driver {
	case DriverPgx, DriverPQ:
		return pg.Redact(dsn)
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "mysql://invalid"
		}
		if cfg.Passwd != "" {
			cfg.Passwd = "xxxxx"
		}
		return cfg.FormatDSN()
	}
	return dsn
}
