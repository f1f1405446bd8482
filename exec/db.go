// Package exec runs compiled statements against Postgres (pgx), MySQL
// (go-sql-driver) or SQLite (modernc.org/sqlite) through database/sql.
package exec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/hashicorp/go-version"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/dburl"
	"github.com/shipq/critq/logging"
	"github.com/shipq/critq/query"
	"github.com/shipq/critq/types"
)

// DB executes Prepared statements on one database handle. The server
// version is detected once at construction and fixes the rendering of every
// statement.
type DB struct {
	conn     *sql.DB
	dialect  compile.Dialect
	version  string
	registry types.Registry
	logger   *slog.Logger
}

type options struct {
	logger   *slog.Logger
	registry types.Registry
	version  string
}

// Option configures Open and New.
type Option func(*options)

// WithLogger sets the logger for query events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry replaces the default codec registry.
func WithRegistry(r types.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithVersion skips server version detection and renders for v.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// Open connects to dbURL, choosing the dialect and driver from the URL
// scheme.
func Open(ctx context.Context, dbURL string, opts ...Option) (*DB, error) {
	name, err := dburl.InferDialect(dbURL)
	if err != nil {
		return nil, err
	}
	d, err := compile.DialectByName(name)
	if err != nil {
		return nil, err
	}
	driver, dsn, err := dburl.Source(dbURL)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	if name == dburl.DialectSQLite {
		// one connection keeps :memory: databases alive across calls
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect to %s: %w", name, err)
	}

	db, err := New(ctx, conn, d, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// New wraps an open handle. The caller keeps ownership of conn only if New
// fails; afterwards DB.Close closes it.
func New(ctx context.Context, conn *sql.DB, d compile.Dialect, opts ...Option) (*DB, error) {
	if conn == nil || d == nil {
		return nil, errors.New("exec: nil connection or dialect")
	}
	o := options{logger: logging.Discard, registry: DefaultRegistry()}
	for _, opt := range opts {
		opt(&o)
	}

	v := o.version
	if v == "" {
		var err error
		v, err = DetectVersion(ctx, conn, d)
		if err != nil {
			return nil, err
		}
	}
	return &DB{conn: conn, dialect: d, version: v, registry: o.registry, logger: o.logger}, nil
}

// versionQueries asks each server for its version string.
var versionQueries = map[string]string{
	"postgres": "SHOW server_version",
	"mysql":    "SELECT VERSION()",
	"sqlite":   "SELECT sqlite_version()",
}

// DetectVersion queries the server version.
func DetectVersion(ctx context.Context, conn *sql.DB, d compile.Dialect) (string, error) {
	q, ok := versionQueries[d.Name()]
	if !ok {
		return "", fmt.Errorf("exec: no version query for %s", d.Name())
	}
	var raw string
	if err := conn.QueryRowContext(ctx, q).Scan(&raw); err != nil {
		return "", fmt.Errorf("detect %s version: %w", d.Name(), err)
	}
	return ParseServerVersion(raw)
}

// ParseServerVersion extracts the leading dotted number from a server
// version string: "16.2 (Debian 16.2-1)" gives "16.2" and
// "8.0.36-0ubuntu0.22.04.1" gives "8.0.36".
func ParseServerVersion(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if end := strings.IndexFunc(s, func(r rune) bool { return r != '.' && !unicode.IsDigit(r) }); end >= 0 {
		s = s[:end]
	}
	s = strings.TrimRight(s, ".")
	if _, err := version.NewVersion(s); err != nil {
		return "", fmt.Errorf("parse server version %q: %w", raw, err)
	}
	return s, nil
}

// Dialect returns the dialect statements are rendered for.
func (db *DB) Dialect() compile.Dialect { return db.dialect }

// Version returns the server version statements are rendered for.
func (db *DB) Version() string { return db.version }

// Close closes the underlying handle.
func (db *DB) Close() error { return db.conn.Close() }

// Render compiles stmt for this database.
func (db *DB) Render(stmt *query.Statement) (*compile.Result, error) {
	return query.Compile(stmt, db.dialect, compile.WithVersion(db.version), compile.WithRegistry(db.registry))
}

func (db *DB) bind(stmt *query.Statement, named map[string]any) (*compile.Result, []any, error) {
	res, err := db.Render(stmt)
	if err != nil {
		return nil, nil, err
	}
	args, err := res.Args(named)
	if err != nil {
		return nil, nil, err
	}
	return res, args, nil
}

// Exec runs a statement that returns no rows and reports the number of rows
// affected.
func (db *DB) Exec(ctx context.Context, stmt *query.Statement, named map[string]any) (int64, error) {
	res, args, err := db.bind(stmt, named)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	r, err := db.conn.ExecContext(ctx, res.SQL, args...)
	if err != nil {
		return 0, db.failed(ctx, res, start, err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	db.executed(ctx, res, start, "rows_affected", n)
	return n, nil
}

// Row is one result row with values decoded through the registry.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of the named column.
func (r Row) Get(name string) (any, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Query runs a statement that returns rows (a SELECT, or DML with
// RETURNING) and calls fn for each row. Iteration stops at the first error
// fn returns.
func (db *DB) Query(ctx context.Context, stmt *query.Statement, named map[string]any, fn func(Row) error) error {
	res, args, err := db.bind(stmt, named)
	if err != nil {
		return err
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, res.SQL, args...)
	if err != nil {
		return db.failed(ctx, res, start, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("columns: %w", err)
	}
	colTypes := resultTypes(stmt, len(cols))

	var count int64
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		for i, v := range vals {
			if vals[i], err = db.decode(colTypes[i], v); err != nil {
				return fmt.Errorf("decode column %s: %w", cols[i], err)
			}
		}
		if err := fn(Row{Columns: cols, Values: vals}); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return db.failed(ctx, res, start, err)
	}
	db.executed(ctx, res, start, "rows", count)
	return nil
}

func (db *DB) decode(t types.Type, v any) (any, error) {
	if v == nil || db.registry == nil {
		return v, nil
	}
	codec, ok := db.registry.Lookup(t)
	if !ok {
		return v, nil
	}
	return codec.Decode(v)
}

// resultTypes returns the logical type of each result column, or Unknown
// where the statement does not say (SELECT *).
func resultTypes(stmt *query.Statement, n int) []types.Type {
	out := make([]types.Type, n)
	var known []types.Type
	if stmt.Kind() == query.SelectStatement {
		for _, item := range stmt.SelectItems().All() {
			t, _ := item.Expr.TypeRef().Peek()
			known = append(known, t)
		}
	} else {
		for _, col := range stmt.Returning().All() {
			known = append(known, col.Type)
		}
	}
	if len(known) == n {
		copy(out, known)
	}
	return out
}

func (db *DB) executed(ctx context.Context, res *compile.Result, start time.Time, countKey string, count int64) {
	db.logger.DebugContext(ctx, "query_executed",
		"dialect", res.Dialect,
		"sql", res.SQL,
		"params", len(res.Params),
		countKey, count,
		"duration_ms", float64(time.Since(start).Nanoseconds())/1e6,
	)
}

func (db *DB) failed(ctx context.Context, res *compile.Result, start time.Time, err error) error {
	err = translate(err)
	db.logger.WarnContext(ctx, "query_failed",
		"dialect", res.Dialect,
		"sql", res.SQL,
		"error", err.Error(),
		"duration_ms", float64(time.Since(start).Nanoseconds())/1e6,
	)
	return err
}
