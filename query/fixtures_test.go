package query

import (
	"strings"
	"testing"

	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/sqlerr"
	"github.com/shipq/critq/types"
	"github.com/stretchr/testify/require"
)

var (
	users     = NewTable("users")
	userID    = users.Column("id", types.BigIntType)
	userName  = users.Column("name", types.VarCharType)
	userEmail = users.NullColumn("email", types.VarCharType)
	userPrefs = users.NullColumn("prefs", types.JSONType)

	orders     = NewTable("orders")
	orderID    = orders.Column("id", types.BigIntType)
	orderUser  = orders.Column("user_id", types.BigIntType)
	orderTotal = orders.Column("total", types.DecimalType)
)

// catchUsage runs fn and returns the usage error it panics with.
func catchUsage(t *testing.T, fn func()) *sqlerr.UsageError {
	t.Helper()
	var err error
	func() {
		defer sqlerr.Recover(&err)
		fn()
	}()
	require.Error(t, err, "expected a usage error")
	var ue *sqlerr.UsageError
	require.ErrorAs(t, err, &ue)
	return ue
}

// mustPrepare finalizes the statement behind a builder.
func mustPrepare(t *testing.T, b interface{ Statement() *Statement }) *Statement {
	t.Helper()
	stmt := b.Statement()
	require.NoError(t, stmt.Finalize())
	return stmt
}

func render(t *testing.T, stmt *Statement, d compile.Dialect, opts ...compile.Option) *compile.Result {
	t.Helper()
	res, err := Compile(stmt, d, opts...)
	require.NoError(t, err)
	return res
}

// renderExpr renders a single expression as the only select item of a
// SELECT from users and returns the item's SQL.
func renderExpr(t *testing.T, e Expr, d compile.Dialect, opts ...compile.Option) (string, error) {
	t.Helper()
	stmt := NewSelect(users).Columns(e).Statement()
	if err := stmt.Finalize(); err != nil {
		return "", err
	}
	res, err := Compile(stmt, d, opts...)
	if err != nil {
		return "", err
	}
	sql := strings.TrimPrefix(res.SQL, "SELECT ")
	return sql[:strings.LastIndex(sql, " FROM ")], nil
}
