package exec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
)

var (
	// ErrUniqueViolation wraps driver errors for duplicate keys.
	ErrUniqueViolation = errors.New("unique constraint violation")
	// ErrNotNullViolation wraps driver errors for NULL written to a NOT NULL column.
	ErrNotNullViolation = errors.New("not-null constraint violation")
)

// Driver error codes.
const (
	pgUniqueViolation  = "23505"
	pgNotNullViolation = "23502"

	mysqlDupEntry       = 1062
	mysqlBadNull        = 1048
	mysqlNoDefaultField = 1364

	sqliteConstraint        = 19   // SQLITE_CONSTRAINT
	sqliteConstraintNotNull = 1299 // SQLITE_CONSTRAINT_NOTNULL
	sqliteConstraintPK      = 1555 // SQLITE_CONSTRAINT_PRIMARYKEY
	sqliteConstraintUnique  = 2067 // SQLITE_CONSTRAINT_UNIQUE
)

// constraintError pairs a sentinel with the driver error it classifies so
// both match errors.Is and errors.As.
type constraintError struct {
	kind error
	err  error
}

func (e *constraintError) Error() string   { return fmt.Sprintf("%v: %v", e.kind, e.err) }
func (e *constraintError) Unwrap() []error { return []error{e.kind, e.err} }

// translate classifies constraint violations reported by the three drivers.
// Other errors are returned unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if kind := classify(err); kind != nil {
		return &constraintError{kind: kind, err: err}
	}
	return err
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrUniqueViolation
		case pgNotNullViolation:
			return ErrNotNullViolation
		}
		return nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDupEntry:
			return ErrUniqueViolation
		case mysqlBadNull, mysqlNoDefaultField:
			return ErrNotNullViolation
		}
		return nil
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqliteConstraintUnique, sqliteConstraintPK:
			return ErrUniqueViolation
		case sqliteConstraintNotNull:
			return ErrNotNullViolation
		}
		if liteErr.Code()&0xff == sqliteConstraint {
			// primary code only; the message names the constraint
			msg := liteErr.Error()
			switch {
			case strings.Contains(msg, "UNIQUE constraint failed"):
				return ErrUniqueViolation
			case strings.Contains(msg, "NOT NULL constraint failed"):
				return ErrNotNullViolation
			}
		}
	}
	return nil
}
