package usererr

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"dbusererr/internal/shared"
)

// Codes of errors that database code raises on purpose.
const (
	// PgRaiseException is the SQLSTATE of a plain RAISE EXCEPTION.
	PgRaiseException = "P0001"
	// MySQLSignalException is ER_SIGNAL_EXCEPTION, raised by SIGNAL.
	MySQLSignalException = 1644
	// MySQLUnhandledState is the SQLSTATE conventionally used with SIGNAL.
	MySQLUnhandledState = "45000"
)

// Classification outcomes that mean "leave the error alone".
var (
	ErrNotApplicable        = shared.ErrNotApplicable
	ErrUnrecognizedEnvelope = shared.ErrUnrecognizedEnvelope
)

var (
	pdoEnvelope    = regexp.MustCompile(`^SQLSTATE\[P0001\]: Raise exception: \d+ ERROR:  (.+)`)
	pdoState       = regexp.MustCompile(`^SQLSTATE\[([0-9A-Z]{5})\]`)
	oracleEnvelope = regexp.MustCompile(`^ORA-(\d{5}): (.*)`)
	// modernc.org/sqlite formats errors as "<errstr>: <message> (<code>)".
	sqliteEnvelope = regexp.MustCompile(`(?s)^[^:]*: (.*) \(\d+\)( \(SQLITE_BUSY\))?$`)
)

// Candidate is an error that may carry a user-error payload.
type Candidate struct {
	Source Source
	// Code is the driver code (SQLSTATE, MySQL error number, SQLite result
	// code or ORA number) as text.
	Code string
	// Text is the raised message with any driver envelope removed.
	Text string
}

// Classify checks err against the enabled sources, in the order typed driver
// errors first, then text envelopes. It returns ErrNotApplicable when err
// does not come from an enabled source or has a code outside the raised
// subset, and ErrUnrecognizedEnvelope when the source matches but the
// message cannot be unwrapped.
func Classify(err error, enabled []Source) (Candidate, error) {
	if err == nil {
		return Candidate{}, ErrNotApplicable
	}
	on := func(s Source) bool { return slices.Contains(enabled, s) }

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && on(SourcePostgres) {
		if pgErr.Code != PgRaiseException {
			return Candidate{}, notApplicable(SourcePostgres, pgErr.Code)
		}
		return Candidate{Source: SourcePostgres, Code: pgErr.Code, Text: pgErr.Message}, nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && on(SourcePostgres) {
		if string(pqErr.Code) != PgRaiseException {
			return Candidate{}, notApplicable(SourcePostgres, string(pqErr.Code))
		}
		return Candidate{Source: SourcePostgres, Code: string(pqErr.Code), Text: pqErr.Message}, nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && on(SourceMySQL) {
		state := string(myErr.SQLState[:])
		if myErr.Number != MySQLSignalException && state != MySQLUnhandledState {
			return Candidate{}, notApplicable(SourceMySQL, state)
		}
		return Candidate{Source: SourceMySQL, Code: state, Text: myErr.Message}, nil
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && on(SourceSQLite) {
		code := liteErr.Code()
		if code&0xff != sqlite3.SQLITE_CONSTRAINT {
			return Candidate{}, notApplicable(SourceSQLite, fmt.Sprint(code))
		}
		m := sqliteEnvelope.FindStringSubmatch(liteErr.Error())
		if m == nil {
			return Candidate{}, unrecognized(SourceSQLite, liteErr.Error())
		}
		return Candidate{Source: SourceSQLite, Code: fmt.Sprint(code), Text: m[1]}, nil
	}

	msg := err.Error()

	if on(SourcePDO) {
		if st := pdoState.FindStringSubmatch(msg); st != nil {
			if st[1] != PgRaiseException {
				return Candidate{}, notApplicable(SourcePDO, st[1])
			}
			m := pdoEnvelope.FindStringSubmatch(msg)
			if m == nil {
				return Candidate{}, unrecognized(SourcePDO, msg)
			}
			return Candidate{Source: SourcePDO, Code: st[1], Text: m[1]}, nil
		}
	}

	if on(SourceOracle) {
		if m := oracleEnvelope.FindStringSubmatch(msg); m != nil {
			if !strings.HasPrefix(m[1], "20") {
				return Candidate{}, notApplicable(SourceOracle, m[1])
			}
			// m[2] stops at the first line; ORA-06512 call stack lines follow it.
			return Candidate{Source: SourceOracle, Code: "ORA-" + m[1], Text: m[2]}, nil
		}
	}

	if on(SourceText) {
		return Candidate{Source: SourceText, Text: msg}, nil
	}

	return Candidate{}, ErrNotApplicable
}

func notApplicable(s Source, code string) error {
	return fmt.Errorf("%w: %s code %s", ErrNotApplicable, s, code)
}

func unrecognized(s Source, msg string) error {
	return fmt.Errorf("%w: %s message %q", ErrUnrecognizedEnvelope, s, msg)
}
