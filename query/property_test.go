package query

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/proptest"
)

// randomPredicate builds a comparison whose right side is a bound value, a
// named parameter or an IN list.
func randomPredicate(g *proptest.Generator) Expr {
	col := proptest.Pick(g, []Column{userID, userName, orderTotal})
	operand := func() any {
		if g.Bool() {
			return ParamOf(g.IdentifierLower(8), col.Type)
		}
		return g.Int64Range(-1000, 1000)
	}
	switch g.Intn(3) {
	case 0:
		return col.Eq(operand())
	case 1:
		vals := proptest.SliceN(g, 1, 4, func(*proptest.Generator) any { return operand() })
		return col.In(vals...)
	default:
		return proptest.OneOf(g, col.Gt(operand()), col.Le(operand()))
	}
}

func randomSelect(g *proptest.Generator) *Statement {
	b := NewSelect(users).Columns(userID)
	b.Where(proptest.SliceN(g, 1, 5, randomPredicate)...)
	if g.Bool() {
		sub := NewSelect(orders).Columns(orderUser).Where(randomPredicate(g))
		b.Where(userID.InSubquery(sub.Statement()))
	}
	if g.Bool() {
		b.Limit(g.Int64Range(0, 100))
	}
	return b.Statement()
}

func TestProperty_PlaceholdersMatchParams(t *testing.T) {
	proptest.QuickCheck(t, "placeholders match params", func(g *proptest.Generator) bool {
		stmt := randomSelect(g)
		if err := stmt.Finalize(); err != nil {
			t.Logf("finalize: %v", err)
			return false
		}

		pg, err := Compile(stmt, compile.Postgres)
		if err != nil {
			t.Logf("postgres: %v", err)
			return false
		}
		for i := range pg.Params {
			if pg.Params[i].Index != i+1 {
				return false
			}
			if !strings.Contains(pg.SQL, fmt.Sprintf("$%d", i+1)) {
				return false
			}
		}
		if strings.Contains(pg.SQL, fmt.Sprintf("$%d", len(pg.Params)+1)) {
			return false
		}

		my, err := Compile(stmt, compile.MySQL)
		if err != nil {
			t.Logf("mysql: %v", err)
			return false
		}
		if strings.Count(my.SQL, "?") != len(my.Params) || len(my.Params) != len(pg.Params) {
			return false
		}

		named := make(map[string]any)
		for _, p := range pg.NamedParams() {
			named[p.Name] = 1
		}
		args, err := pg.Args(named)
		return err == nil && len(args) == len(pg.Params)
	})
}

func TestProperty_DescribeStableAcrossPhases(t *testing.T) {
	proptest.QuickCheck(t, "describe stable across phases", func(g *proptest.Generator) bool {
		stmt := randomSelect(g)
		before := stmt.String()
		if err := stmt.Finalize(); err != nil {
			return false
		}
		return stmt.String() == before
	})
}
