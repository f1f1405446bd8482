package exec

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"modernc.org/sqlite"

	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/dburl"
	"github.com/shipq/critq/query"
	"github.com/shipq/critq/sqlerr"
	"github.com/shipq/critq/types"
)

var (
	accounts   = query.NewTable("accounts")
	accID      = accounts.Column("id", types.BigIntType)
	accEmail   = accounts.Column("email", types.VarCharType)
	accActive  = accounts.Column("active", types.BooleanType)
	accPrefs   = accounts.NullColumn("prefs", types.JSONType)
	accCreated = accounts.Column("created_at", types.TimestampType)
)

const accountsDDL = `CREATE TABLE accounts (
	id INTEGER PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	active BOOLEAN NOT NULL,
	prefs TEXT,
	created_at TIMESTAMP NOT NULL
)`

var createdAt = time.Date(2024, 5, 1, 12, 30, 0, 0, time.FixedZone("CEST", 2*3600))

func openMemory(t *testing.T, opts ...Option) *DB {
	t.Helper()
	conn, err := sql.Open(dburl.DriverSQLite, ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	_, err = conn.Exec(accountsDDL)
	require.NoError(t, err)

	db, err := New(context.Background(), conn, compile.SQLite, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func prepare(t *testing.T, b interface{ Statement() *query.Statement }) *query.Statement {
	t.Helper()
	stmt := b.Statement()
	require.NoError(t, stmt.Finalize())
	return stmt
}

func insertAccount(t *testing.T) *query.Statement {
	return prepare(t, query.NewInsert(accounts).
		Columns(accID, accEmail, accActive, accPrefs, accCreated).
		Values(
			query.Param[int64]("id"),
			query.Param[string]("email"),
			true,
			query.TypedValue(types.JSONType, map[string]any{"theme": "dark"}),
			createdAt,
		))
}

func TestDB_InsertAndSelect(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	n, err := db.Exec(ctx, insertAccount(t), map[string]any{"id": int64(1), "email": "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	sel := prepare(t, query.NewSelect(accounts).
		Columns(accID, accEmail, accActive, accPrefs, accCreated).
		Where(accID.Eq(query.Param[int64]("id"))))

	var rows []Row
	err = db.Query(ctx, sel, map[string]any{"id": int64(1)}, func(r Row) error {
		rows = append(rows, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, []string{"id", "email", "active", "prefs", "created_at"}, row.Columns)
	assert.Equal(t, int64(1), row.Values[0])
	assert.Equal(t, "ada@example.com", row.Values[1])
	assert.Equal(t, true, row.Values[2], "booleans decode through the registry")

	prefs, ok := row.Values[3].(json.RawMessage)
	require.True(t, ok, "json columns decode to json.RawMessage, got %T", row.Values[3])
	assert.JSONEq(t, `{"theme":"dark"}`, string(prefs))

	created, ok := row.Values[4].(time.Time)
	require.True(t, ok, "timestamps decode to time.Time, got %T", row.Values[4])
	assert.True(t, created.Equal(createdAt))
	assert.Equal(t, time.UTC, created.Location())

	email, ok := row.Get("email")
	assert.True(t, ok)
	assert.Equal(t, "ada@example.com", email)
	_, ok = row.Get("missing")
	assert.False(t, ok)
}

func TestDB_UpdateAndDeleteCounts(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	for i, email := range []string{"a@x.io", "b@x.io", "c@x.io"} {
		_, err := db.Exec(ctx, insertAccount(t), map[string]any{"id": int64(i + 1), "email": email})
		require.NoError(t, err)
	}

	upd := prepare(t, query.NewUpdate(accounts).Set(accActive, false).Where(accID.In(1, 2)))
	n, err := db.Exec(ctx, upd, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	del := prepare(t, query.NewDelete(accounts).Where(accActive.Eq(false)).Returning(accID))
	var deleted []any
	err = db.Query(ctx, del, nil, func(r Row) error {
		deleted = append(deleted, r.Values[0])
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{int64(1), int64(2)}, deleted)

	count := prepare(t, query.NewSelect(accounts).Columns(query.Count()))
	err = db.Query(ctx, count, nil, func(r Row) error {
		assert.Equal(t, int64(1), r.Values[0])
		return nil
	})
	require.NoError(t, err)
}

func TestDB_ConstraintErrors(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	_, err := db.Exec(ctx, insertAccount(t), map[string]any{"id": int64(1), "email": "dup@x.io"})
	require.NoError(t, err)

	_, err = db.Exec(ctx, insertAccount(t), map[string]any{"id": int64(2), "email": "dup@x.io"})
	require.ErrorIs(t, err, ErrUniqueViolation)
	var liteErr *sqlite.Error
	assert.True(t, errors.As(err, &liteErr), "the driver error stays reachable")

	_, err = db.Exec(ctx, insertAccount(t), map[string]any{"id": int64(1), "email": "other@x.io"})
	require.ErrorIs(t, err, ErrUniqueViolation, "primary keys count as unique")

	noEmail := prepare(t, query.NewInsert(accounts).
		Columns(accID, accEmail, accActive, accCreated).
		Values(3, query.Null(), false, createdAt))
	_, err = db.Exec(ctx, noEmail, nil)
	require.ErrorIs(t, err, ErrNotNullViolation)
	assert.NotErrorIs(t, err, ErrUniqueViolation)
}

func TestDB_BindErrors(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	_, err := db.Exec(ctx, insertAccount(t), map[string]any{"id": int64(1)})
	require.ErrorIs(t, err, compile.ErrMissingParam)

	building := query.NewSelect(accounts).Statement()
	_, err = db.Exec(ctx, building, nil)
	require.ErrorIs(t, err, sqlerr.ErrUsage)
}

func TestDB_QueryStopsOnCallbackError(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	for i := 1; i <= 3; i++ {
		_, err := db.Exec(ctx, insertAccount(t), map[string]any{"id": int64(i), "email": string(rune('a'+i)) + "@x.io"})
		require.NoError(t, err)
	}

	errStop := errors.New("stop")
	calls := 0
	err := db.Query(ctx, prepare(t, query.NewSelect(accounts).Columns(accID)), nil, func(Row) error {
		calls++
		return errStop
	})
	require.ErrorIs(t, err, errStop)
	assert.Equal(t, 1, calls)
}

func TestDB_RenderUsesServerVersion(t *testing.T) {
	ret := prepare(t, query.NewInsert(accounts).Columns(accID).Values(1).Returning(accID))

	db := openMemory(t)
	assert.NotEmpty(t, db.Version())
	res, err := db.Render(ret)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "accounts" ("id") VALUES (?) RETURNING "id"`, res.SQL)
	assert.Equal(t, db.Version(), res.Version)

	old := openMemory(t, WithVersion("3.30.0"))
	assert.Equal(t, "3.30.0", old.Version())
	_, err = old.Render(ret)
	require.ErrorIs(t, err, sqlerr.ErrCapability)
	assert.Contains(t, err.Error(), "RETURNING requires sqlite >= 3.35.0")
}

func TestDB_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	db := openMemory(t, WithLogger(logger))
	ctx := context.Background()

	_, err := db.Exec(ctx, insertAccount(t), map[string]any{"id": int64(1), "email": "log@x.io"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"query_executed"`)
	assert.Contains(t, buf.String(), `"dialect":"sqlite"`)
	assert.Contains(t, buf.String(), `"rows_affected":1`)

	buf.Reset()
	_, err = db.Exec(ctx, insertAccount(t), map[string]any{"id": int64(1), "email": "log@x.io"})
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"msg":"query_failed"`)
	assert.Contains(t, buf.String(), `unique constraint violation`)
}

func TestOpen_SQLiteFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "app.db")

	db, err := Open(ctx, dburl.BuildSQLiteURL(path))
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "sqlite", db.Dialect().Name())
	assert.NotEmpty(t, db.Version())
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, "mongodb://localhost/db")
	require.ErrorIs(t, err, dburl.ErrUnknownDialect)

	_, err = Open(ctx, "sqlite:")
	require.ErrorIs(t, err, dburl.ErrInvalidURL)

	_, err = New(ctx, nil, compile.SQLite)
	require.Error(t, err)
}

func TestParseServerVersion(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "16.2 (Debian 16.2-1.pgdg120+2)", want: "16.2"},
		{raw: "8.0.36-0ubuntu0.22.04.1", want: "8.0.36"},
		{raw: "10.11.6-MariaDB", want: "10.11.6"},
		{raw: "3.45.1", want: "3.45.1"},
		{raw: " 17beta1 ", want: "17"},
		{raw: "devel", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseServerVersion(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
