package compile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/lib/pq"
	"github.com/shipq/critq/types"
)

// ErrUnknownDialect is returned by DialectByName for an unrecognized name.
var ErrUnknownDialect = errors.New("unknown dialect")

// Dialect defines the dialect-specific parts of rendering. Each dialect
// (Postgres, MySQL, SQLite) implements it to customize quoting, placeholders,
// literals, capability versions and the few constructs whose spelling differs.
//
// The Write* hooks receive callbacks that render sub-expressions into the
// same Context, so parameter numbering stays shared with the caller.
type Dialect interface {
	// Name returns the dialect name for logging and errors.
	Name() string

	// QuoteIdentifier quotes a table, column or alias name.
	QuoteIdentifier(name string) string

	// Placeholder returns the parameter placeholder for the given 1-based index.
	// Postgres uses $1, $2, ... MySQL and SQLite use ?.
	Placeholder(index int) string

	// BoolLiteral returns the inline SQL for a boolean.
	BoolLiteral(v bool) string

	// QuoteString returns s as an inline string literal.
	QuoteString(s string) string

	// TypeName returns the spelling of t in CAST and RETURNING clauses, or
	// false when the dialect has no such type.
	TypeName(t types.Type) (string, bool)

	// DefaultVersion is the server version rendered for when none is given.
	DefaultVersion() *version.Version

	// MinVersion returns the first version supporting f, or false when no
	// version does.
	MinVersion(f Feature) (*version.Version, bool)

	// WriteILIKE writes a case-insensitive LIKE.
	WriteILIKE(ctx *Context, left, right func() error) error

	// WriteStringAgg writes a string aggregate (GROUP_CONCAT / STRING_AGG).
	WriteStringAgg(ctx *Context, agg StringAgg) error

	// WriteJSONExtract writes the scalar extraction used when JSON_VALUE is not
	// available.
	WriteJSONExtract(ctx *Context, doc, path func() error) error
}

// StringAgg carries the parts of a string aggregate for WriteStringAgg.
type StringAgg struct {
	Distinct  bool
	Arg       func() error
	OrderBy   func() error // nil when there is no ORDER BY
	Separator *string      // nil for the dialect default
}

// DialectByName returns the singleton dialect for name.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
}

// writeILIKEWithLower emulates ILIKE with LOWER(x) LIKE LOWER(y).
func writeILIKEWithLower(ctx *Context, left, right func() error) error {
	ctx.WriteString("LOWER(")
	if err := left(); err != nil {
		return err
	}
	ctx.WriteString(") LIKE LOWER(")
	if err := right(); err != nil {
		return err
	}
	ctx.WriteString(")")
	return nil
}

// writeGroupConcat writes GROUP_CONCAT for MySQL and SQLite. MySQL spells the
// separator with SEPARATOR, SQLite passes it as a second argument.
func writeGroupConcat(ctx *Context, agg StringAgg, separatorKeyword bool) error {
	ctx.WriteString("GROUP_CONCAT(")
	if agg.Distinct {
		ctx.WriteString("DISTINCT ")
	}
	if err := agg.Arg(); err != nil {
		return err
	}
	if agg.Separator != nil && !separatorKeyword {
		ctx.WriteString(", ")
		ctx.WriteString(ctx.Dialect().QuoteString(*agg.Separator))
	}
	if agg.OrderBy != nil {
		if err := ctx.Require(FeatureOrderedStringAgg, "GROUP_CONCAT ... ORDER BY"); err != nil {
			return err
		}
		ctx.WriteString(" ORDER BY ")
		if err := agg.OrderBy(); err != nil {
			return err
		}
	}
	if agg.Separator != nil && separatorKeyword {
		ctx.WriteString(" SEPARATOR ")
		ctx.WriteString(ctx.Dialect().QuoteString(*agg.Separator))
	}
	ctx.WriteString(")")
	return nil
}

// typeNames maps a kind to its SQL spelling for one dialect.
type typeNames map[types.Kind]string

func (m typeNames) lookup(t types.Type) (string, bool) {
	name, ok := m[t.Kind()]
	return name, ok
}

var (
	postgresTypes = typeNames{
		types.Boolean:   "BOOLEAN",
		types.TinyInt:   "SMALLINT",
		types.SmallInt:  "SMALLINT",
		types.Integer:   "INTEGER",
		types.BigInt:    "BIGINT",
		types.Decimal:   "NUMERIC",
		types.Float:     "REAL",
		types.Double:    "DOUBLE PRECISION",
		types.Char:      "CHAR",
		types.VarChar:   "VARCHAR",
		types.Text:      "TEXT",
		types.Binary:    "BYTEA",
		types.JSON:      "JSONB",
		types.Date:      "DATE",
		types.Time:      "TIME",
		types.DateTime:  "TIMESTAMP",
		types.Timestamp: "TIMESTAMPTZ",
	}

	// MySQL only accepts a restricted set of CAST targets.
	mysqlTypes = typeNames{
		types.Boolean:   "SIGNED",
		types.TinyInt:   "SIGNED",
		types.SmallInt:  "SIGNED",
		types.Integer:   "SIGNED",
		types.BigInt:    "SIGNED",
		types.Decimal:   "DECIMAL",
		types.Float:     "FLOAT",
		types.Double:    "DOUBLE",
		types.Char:      "CHAR",
		types.VarChar:   "CHAR",
		types.Text:      "CHAR",
		types.Binary:    "BINARY",
		types.JSON:      "JSON",
		types.Date:      "DATE",
		types.Time:      "TIME",
		types.DateTime:  "DATETIME",
		types.Timestamp: "DATETIME",
	}

	sqliteTypes = typeNames{
		types.Boolean:   "INTEGER",
		types.TinyInt:   "INTEGER",
		types.SmallInt:  "INTEGER",
		types.Integer:   "INTEGER",
		types.BigInt:    "INTEGER",
		types.Decimal:   "NUMERIC",
		types.Float:     "REAL",
		types.Double:    "REAL",
		types.Char:      "TEXT",
		types.VarChar:   "TEXT",
		types.Text:      "TEXT",
		types.Binary:    "BLOB",
		types.JSON:      "TEXT",
		types.Date:      "TEXT",
		types.Time:      "TEXT",
		types.DateTime:  "TEXT",
		types.Timestamp: "TEXT",
	}
)

// =============================================================================
// Postgres Dialect
// =============================================================================

// PostgresDialect implements Dialect for PostgreSQL.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

func (d *PostgresDialect) Placeholder(index int) string {
	return "$" + strconv.Itoa(index)
}

func (d *PostgresDialect) BoolLiteral(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

func (d *PostgresDialect) QuoteString(s string) string {
	return pq.QuoteLiteral(s)
}

func (d *PostgresDialect) TypeName(t types.Type) (string, bool) { return postgresTypes.lookup(t) }

func (d *PostgresDialect) DefaultVersion() *version.Version { return mustVersion("16.0") }

func (d *PostgresDialect) MinVersion(f Feature) (*version.Version, bool) {
	return postgresFeatures.lookup(f)
}

func (d *PostgresDialect) WriteILIKE(ctx *Context, left, right func() error) error {
	if err := left(); err != nil {
		return err
	}
	ctx.WriteString(" ILIKE ")
	return right()
}

func (d *PostgresDialect) WriteStringAgg(ctx *Context, agg StringAgg) error {
	ctx.WriteString("STRING_AGG(")
	if agg.Distinct {
		ctx.WriteString("DISTINCT ")
	}
	if err := agg.Arg(); err != nil {
		return err
	}
	sep := ","
	if agg.Separator != nil {
		sep = *agg.Separator
	}
	ctx.WriteString(", ")
	ctx.WriteString(d.QuoteString(sep))
	if agg.OrderBy != nil {
		if err := ctx.Require(FeatureOrderedStringAgg, "STRING_AGG ... ORDER BY"); err != nil {
			return err
		}
		ctx.WriteString(" ORDER BY ")
		if err := agg.OrderBy(); err != nil {
			return err
		}
	}
	ctx.WriteString(")")
	return nil
}

func (d *PostgresDialect) WriteJSONExtract(ctx *Context, doc, path func() error) error {
	ctx.WriteString("(JSONB_PATH_QUERY_FIRST(CAST(")
	if err := doc(); err != nil {
		return err
	}
	ctx.WriteString(" AS JSONB), CAST(")
	if err := path(); err != nil {
		return err
	}
	ctx.WriteString(" AS JSONPATH)) #>> '{}')")
	return nil
}

// =============================================================================
// MySQL Dialect
// =============================================================================

// MySQLDialect implements Dialect for MySQL.
type MySQLDialect struct{}

func (d *MySQLDialect) Name() string { return "mysql" }

func (d *MySQLDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *MySQLDialect) Placeholder(int) string { return "?" }

func (d *MySQLDialect) BoolLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

var mysqlStringEscaper = strings.NewReplacer(`\`, `\\`, `'`, `''`)

func (d *MySQLDialect) QuoteString(s string) string {
	return "'" + mysqlStringEscaper.Replace(s) + "'"
}

func (d *MySQLDialect) TypeName(t types.Type) (string, bool) { return mysqlTypes.lookup(t) }

func (d *MySQLDialect) DefaultVersion() *version.Version { return mustVersion("8.0.36") }

func (d *MySQLDialect) MinVersion(f Feature) (*version.Version, bool) {
	return mysqlFeatures.lookup(f)
}

func (d *MySQLDialect) WriteILIKE(ctx *Context, left, right func() error) error {
	return writeILIKEWithLower(ctx, left, right)
}

func (d *MySQLDialect) WriteStringAgg(ctx *Context, agg StringAgg) error {
	return writeGroupConcat(ctx, agg, true)
}

func (d *MySQLDialect) WriteJSONExtract(ctx *Context, doc, path func() error) error {
	ctx.WriteString("JSON_UNQUOTE(JSON_EXTRACT(")
	if err := doc(); err != nil {
		return err
	}
	ctx.WriteString(", ")
	if err := path(); err != nil {
		return err
	}
	ctx.WriteString("))")
	return nil
}

// =============================================================================
// SQLite Dialect
// =============================================================================

// SQLiteDialect implements Dialect for SQLite.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string { return "sqlite" }

func (d *SQLiteDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *SQLiteDialect) Placeholder(int) string { return "?" }

func (d *SQLiteDialect) BoolLiteral(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (d *SQLiteDialect) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (d *SQLiteDialect) TypeName(t types.Type) (string, bool) { return sqliteTypes.lookup(t) }

func (d *SQLiteDialect) DefaultVersion() *version.Version { return mustVersion("3.45.0") }

func (d *SQLiteDialect) MinVersion(f Feature) (*version.Version, bool) {
	return sqliteFeatures.lookup(f)
}

func (d *SQLiteDialect) WriteILIKE(ctx *Context, left, right func() error) error {
	return writeILIKEWithLower(ctx, left, right)
}

func (d *SQLiteDialect) WriteStringAgg(ctx *Context, agg StringAgg) error {
	// SQLite rejects DISTINCT aggregates with more than one argument.
	if agg.Distinct && agg.Separator != nil {
		return ctx.Unsupported("GROUP_CONCAT(DISTINCT ...) with a separator")
	}
	return writeGroupConcat(ctx, agg, false)
}

func (d *SQLiteDialect) WriteJSONExtract(ctx *Context, doc, path func() error) error {
	ctx.WriteString("JSON_EXTRACT(")
	if err := doc(); err != nil {
		return err
	}
	ctx.WriteString(", ")
	if err := path(); err != nil {
		return err
	}
	ctx.WriteString(")")
	return nil
}

// =============================================================================
// Dialect Singletons
// =============================================================================

var (
	// Postgres is the singleton PostgreSQL dialect.
	Postgres Dialect = &PostgresDialect{}

	// MySQL is the singleton MySQL dialect.
	MySQL Dialect = &MySQLDialect{}

	// SQLite is the singleton SQLite dialect.
	SQLite Dialect = &SQLiteDialect{}
)

// Dialects returns the built-in dialects.
func Dialects() []Dialect {
	return []Dialect{Postgres, MySQL, SQLite}
}
