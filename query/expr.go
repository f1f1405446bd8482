package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/sqlerr"
	"github.com/shipq/critq/types"
)

// Expr is a node of an expression tree.
//
// Every node renders in two modes: Render appends parameterized SQL to a
// compile.Context, String returns a dialect-agnostic description that never
// needs a context or a prepared statement. The set of node types is closed;
// the unexported marker keeps other packages from adding to it.
type Expr interface {
	types.Typed
	Kind() NodeKind
	Render(ctx *compile.Context) error
	String() string
	exprNode()
}

// NodeKind identifies the node type of an Expr.
type NodeKind string

const (
	KindColumn      NodeKind = "column"
	KindOuter       NodeKind = "outer"
	KindParam       NodeKind = "param"
	KindValue       NodeKind = "value"
	KindLiteral     NodeKind = "literal"
	KindNull        NodeKind = "null"
	KindBinary      NodeKind = "binary"
	KindUnary       NodeKind = "unary"
	KindList        NodeKind = "list"
	KindFunc        NodeKind = "func"
	KindStar        NodeKind = "star"
	KindCast        NodeKind = "cast"
	KindWindow      NodeKind = "window"
	KindJSONValue   NodeKind = "json_value"
	KindGroupConcat NodeKind = "group_concat"
	KindSubquery    NodeKind = "subquery"
	KindExists      NodeKind = "exists"
)

// BinaryOp is a binary operator.
type BinaryOp string

const (
	OpEq    BinaryOp = "="
	OpNe    BinaryOp = "<>"
	OpLt    BinaryOp = "<"
	OpLe    BinaryOp = "<="
	OpGt    BinaryOp = ">"
	OpGe    BinaryOp = ">="
	OpAnd   BinaryOp = "AND"
	OpOr    BinaryOp = "OR"
	OpLike  BinaryOp = "LIKE"
	OpILike BinaryOp = "ILIKE"
	OpIn    BinaryOp = "IN"
	OpNotIn BinaryOp = "NOT IN"
	OpAdd   BinaryOp = "+"
	OpSub   BinaryOp = "-"
	OpMul   BinaryOp = "*"
	OpDiv   BinaryOp = "/"
)

func (op BinaryOp) arithmetic() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv:
		return true
	}
	return false
}

// UnaryOp is a unary operator.
type UnaryOp string

const (
	OpNot     UnaryOp = "NOT"
	OpNeg     UnaryOp = "-"
	OpIsNull  UnaryOp = "IS NULL"
	OpNotNull UnaryOp = "IS NOT NULL"
)

// =============================================================================
// Leaves
// =============================================================================

type columnNode struct {
	col Column
	ref *types.Ref
}

func newColumnNode(c Column) *columnNode {
	return &columnNode{col: c, ref: types.Resolved(c.Type)}
}

func (n *columnNode) TypeRef() *types.Ref { return n.ref }
func (n *columnNode) Kind() NodeKind      { return KindColumn }
func (n *columnNode) String() string      { return n.col.String() }
func (*columnNode) exprNode()             {}

func (n *columnNode) Render(ctx *compile.Context) error {
	return ctx.WriteQualified(n.col.Table, n.col.Name)
}

// outerNode is a correlated reference from a subquery to a column of an
// enclosing statement. Its type follows the referenced column.
type outerNode struct {
	target *columnNode
	ref    *types.Ref
}

func newOuterNode(c Column) *outerNode {
	target := newColumnNode(c)
	return &outerNode{
		target: target,
		ref:    types.Delay("outer "+c.String(), target, types.Identity),
	}
}

func (n *outerNode) TypeRef() *types.Ref { return n.ref }
func (n *outerNode) Kind() NodeKind      { return KindOuter }
func (n *outerNode) String() string      { return "outer(" + n.target.String() + ")" }
func (*outerNode) exprNode()             {}

func (n *outerNode) Render(ctx *compile.Context) error { return n.target.Render(ctx) }

// paramNode is a named placeholder whose value is supplied at execution time.
type paramNode struct {
	name string
	ref  *types.Ref
}

func (n *paramNode) TypeRef() *types.Ref { return n.ref }
func (n *paramNode) Kind() NodeKind      { return KindParam }
func (n *paramNode) String() string      { return ":" + n.name }
func (*paramNode) exprNode()             {}

// Name returns the parameter name.
func (n *paramNode) Name() string { return n.name }

func (n *paramNode) Render(ctx *compile.Context) error {
	ctx.AppendNamed(n.name, n.ref.MustResolve())
	return nil
}

// valueNode is a value bound as a parameter.
type valueNode struct {
	value any
	ref   *types.Ref
}

func (n *valueNode) TypeRef() *types.Ref { return n.ref }
func (n *valueNode) Kind() NodeKind      { return KindValue }
func (n *valueNode) String() string      { return describeValue(n.value) }
func (*valueNode) exprNode()             {}

func (n *valueNode) Render(ctx *compile.Context) error {
	ctx.AppendParameter(n.ref.MustResolve(), n.value)
	return nil
}

// literalNode is a value inlined into the SQL text.
type literalNode struct {
	value any
	ref   *types.Ref
}

func (n *literalNode) TypeRef() *types.Ref { return n.ref }
func (n *literalNode) Kind() NodeKind      { return KindLiteral }
func (n *literalNode) String() string      { return describeValue(n.value) }
func (*literalNode) exprNode()             {}

func (n *literalNode) Render(ctx *compile.Context) error {
	return ctx.AppendLiteral(n.ref.MustResolve(), n.value)
}

type nullNode struct {
	ref *types.Ref
}

func (n *nullNode) TypeRef() *types.Ref { return n.ref }
func (n *nullNode) Kind() NodeKind      { return KindNull }
func (n *nullNode) String() string      { return "NULL" }
func (*nullNode) exprNode()             {}

func (n *nullNode) Render(ctx *compile.Context) error {
	ctx.WriteString("NULL")
	return nil
}

type starNode struct {
	ref *types.Ref
}

func (n *starNode) TypeRef() *types.Ref { return n.ref }
func (n *starNode) Kind() NodeKind      { return KindStar }
func (n *starNode) String() string      { return "*" }
func (*starNode) exprNode()             {}

func (n *starNode) Render(ctx *compile.Context) error {
	ctx.WriteString("*")
	return nil
}

// =============================================================================
// Operators
// =============================================================================

type binaryNode struct {
	left  Expr
	op    BinaryOp
	right Expr
	ref   *types.Ref
}

func newBinary(left Expr, op BinaryOp, right Expr) *binaryNode {
	n := &binaryNode{left: left, op: op, right: right}
	if op.arithmetic() {
		n.ref = types.Combine(string(op), []types.Typed{left, right}, func(ts []types.Type) types.Type {
			return types.Promote(ts[0], ts[1])
		})
	} else {
		n.ref = types.Resolved(types.BooleanType)
	}
	return n
}

func (n *binaryNode) TypeRef() *types.Ref { return n.ref }
func (n *binaryNode) Kind() NodeKind      { return KindBinary }
func (*binaryNode) exprNode()             {}

func (n *binaryNode) String() string {
	return "(" + describe(n.left) + " " + string(n.op) + " " + describe(n.right) + ")"
}

func (n *binaryNode) Render(ctx *compile.Context) error {
	left := func() error { return n.left.Render(ctx) }
	right := func() error { return n.right.Render(ctx) }

	ctx.WriteString("(")
	if n.op == OpILike {
		if err := ctx.Dialect().WriteILIKE(ctx, left, right); err != nil {
			return err
		}
	} else {
		if err := left(); err != nil {
			return err
		}
		ctx.WriteKeyword(string(n.op))
		if err := right(); err != nil {
			return err
		}
	}
	ctx.WriteString(")")
	return nil
}

type unaryNode struct {
	op   UnaryOp
	expr Expr
	ref  *types.Ref
}

func newUnary(op UnaryOp, e Expr) *unaryNode {
	n := &unaryNode{op: op, expr: e}
	if op == OpNeg {
		n.ref = types.Delay("-", e, types.Identity)
	} else {
		n.ref = types.Resolved(types.BooleanType)
	}
	return n
}

func (n *unaryNode) TypeRef() *types.Ref { return n.ref }
func (n *unaryNode) Kind() NodeKind      { return KindUnary }
func (*unaryNode) exprNode()             {}

func (n *unaryNode) postfix() bool { return n.op == OpIsNull || n.op == OpNotNull }

func (n *unaryNode) String() string {
	if n.postfix() {
		return describe(n.expr) + " " + string(n.op)
	}
	if n.op == OpNeg {
		return "(-" + describe(n.expr) + ")"
	}
	return string(n.op) + " " + describe(n.expr)
}

func (n *unaryNode) Render(ctx *compile.Context) error {
	switch {
	case n.postfix():
		if err := n.expr.Render(ctx); err != nil {
			return err
		}
		ctx.WriteString(" " + string(n.op))
	case n.op == OpNeg:
		ctx.WriteString("(-")
		if err := n.expr.Render(ctx); err != nil {
			return err
		}
		ctx.WriteString(")")
	default:
		ctx.WriteString(string(n.op) + " ")
		if err := n.expr.Render(ctx); err != nil {
			return err
		}
	}
	return nil
}

// listNode is a parenthesized value list, used on the right of IN.
type listNode struct {
	values []Expr
	ref    *types.Ref
}

func (n *listNode) TypeRef() *types.Ref { return n.ref }
func (n *listNode) Kind() NodeKind      { return KindList }
func (*listNode) exprNode()             {}

func (n *listNode) String() string { return "(" + describeList(n.values) + ")" }

func (n *listNode) Render(ctx *compile.Context) error {
	if len(n.values) == 0 {
		return fmt.Errorf("IN clause requires at least one value")
	}
	ctx.WriteString("(")
	if err := renderList(ctx, n.values); err != nil {
		return err
	}
	ctx.WriteString(")")
	return nil
}

type castNode struct {
	expr Expr
	to   types.Type
	ref  *types.Ref
}

func (n *castNode) TypeRef() *types.Ref { return n.ref }
func (n *castNode) Kind() NodeKind      { return KindCast }
func (*castNode) exprNode()             {}

func (n *castNode) String() string {
	return "CAST(" + describe(n.expr) + " AS " + n.to.String() + ")"
}

func (n *castNode) Render(ctx *compile.Context) error {
	name, ok := ctx.Dialect().TypeName(n.to)
	if !ok {
		return ctx.Unsupported("CAST to " + n.to.String())
	}
	ctx.WriteString("CAST(")
	if err := n.expr.Render(ctx); err != nil {
		return err
	}
	ctx.WriteString(" AS " + name + ")")
	return nil
}

// =============================================================================
// Shared helpers
// =============================================================================

func renderList(ctx *compile.Context, exprs []Expr) error {
	for i, e := range exprs {
		if i > 0 {
			ctx.WriteString(", ")
		}
		if err := e.Render(ctx); err != nil {
			return err
		}
	}
	return nil
}

func renderOrderItems(ctx *compile.Context, items []OrderItem) error {
	for i, it := range items {
		if i > 0 {
			ctx.WriteString(", ")
		}
		if err := it.Expr.Render(ctx); err != nil {
			return err
		}
		if it.Desc {
			ctx.WriteString(" DESC")
		}
	}
	return nil
}

func describe(e Expr) string {
	if e == nil {
		return "<nil>"
	}
	return e.String()
}

func describeList(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = describe(e)
	}
	return strings.Join(parts, ", ")
}

func describeOrder(items []OrderItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.String()
	}
	return strings.Join(parts, ", ")
}

func describeValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case []byte:
		return fmt.Sprintf("x'%x'", val)
	case time.Time:
		return "'" + val.UTC().Format(time.RFC3339Nano) + "'"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// typeOf resolves the type of e, panicking with the resolution error.
func typeOf(e Expr) types.Type {
	if e == nil {
		panic(sqlerr.Unresolved([]string{"<nil expression>"}))
	}
	return e.TypeRef().MustResolve()
}
