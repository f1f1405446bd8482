package query

import (
	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/sqlerr"
	"github.com/shipq/critq/types"
)

// projection is the type of the first select item of a statement, looked up
// when it is resolved rather than when the subquery node is built.
type projection struct {
	stmt *Statement
}

func (p projection) TypeRef() *types.Ref {
	items := p.stmt.selectItems()
	if len(items) == 0 {
		return nil
	}
	return items[0].Expr.TypeRef()
}

type subqueryNode struct {
	stmt *Statement
	ref  *types.Ref
}

// Subquery uses a SELECT statement as an expression: a scalar subquery, or
// the right side of IN. Its type is the type of the first select item.
func Subquery(s *Statement) Expr {
	if s == nil || s.kind != SelectStatement {
		panic(sqlerr.Usage("Subquery", "only SELECT statements can be used as subqueries"))
	}
	return &subqueryNode{
		stmt: s,
		ref:  types.Delay("subquery "+s.table.Name, projection{stmt: s}, types.Identity),
	}
}

func (n *subqueryNode) TypeRef() *types.Ref { return n.ref }
func (n *subqueryNode) Kind() NodeKind      { return KindSubquery }
func (*subqueryNode) exprNode()             {}

// Statement returns the nested statement.
func (n *subqueryNode) Statement() *Statement { return n.stmt }

func (n *subqueryNode) String() string { return "(" + n.stmt.String() + ")" }

func (n *subqueryNode) Render(ctx *compile.Context) error {
	ctx.WriteString("(")
	ctx.EnterSubquery()
	if err := n.stmt.Render(ctx); err != nil {
		return err
	}
	ctx.LeaveSubquery()
	ctx.WriteString(")")
	return nil
}

type existsNode struct {
	stmt    *Statement
	negated bool
	ref     *types.Ref
}

// Exists is EXISTS (subquery).
func Exists(s *Statement) Expr { return newExists(s, false) }

// NotExists is NOT EXISTS (subquery).
func NotExists(s *Statement) Expr { return newExists(s, true) }

func newExists(s *Statement, negated bool) *existsNode {
	if s == nil || s.kind != SelectStatement {
		panic(sqlerr.Usage("Exists", "only SELECT statements can be used in EXISTS"))
	}
	return &existsNode{stmt: s, negated: negated, ref: types.Resolved(types.BooleanType)}
}

func (n *existsNode) TypeRef() *types.Ref { return n.ref }
func (n *existsNode) Kind() NodeKind      { return KindExists }
func (*existsNode) exprNode()             {}

func (n *existsNode) String() string {
	prefix := "EXISTS ("
	if n.negated {
		prefix = "NOT EXISTS ("
	}
	return prefix + n.stmt.String() + ")"
}

func (n *existsNode) Render(ctx *compile.Context) error {
	if n.negated {
		ctx.WriteString("NOT ")
	}
	ctx.WriteString("EXISTS (")
	ctx.EnterSubquery()
	if err := n.stmt.Render(ctx); err != nil {
		return err
	}
	ctx.LeaveSubquery()
	ctx.WriteString(")")
	return nil
}
