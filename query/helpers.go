package query

import (
	"time"

	"github.com/shipq/critq/sqlerr"
	"github.com/shipq/critq/types"
)

// toExpr normalizes a builder argument. An Expr is returned as-is, a Column
// becomes a column reference and anything else is bound as a parameter.
// Values are never inlined here; use Literal for that.
func toExpr(v any) Expr {
	switch val := v.(type) {
	case Expr:
		return val
	case Column:
		return val.Expr()
	default:
		return Value(val)
	}
}

func toExprs(values []any) []Expr {
	exprs := make([]Expr, len(values))
	for i, v := range values {
		exprs[i] = toExpr(v)
	}
	return exprs
}

// Value binds v as a parameter. Its type is derived from the Go value.
func Value(v any) Expr {
	return &valueNode{value: v, ref: types.Resolved(types.OfValue(v))}
}

// TypedValue binds v as a parameter of an explicit logical type.
func TypedValue(t types.Type, v any) Expr {
	return &valueNode{value: v, ref: types.Resolved(t)}
}

// Literal inlines v into the SQL text. Only scalar values render; others fail
// with an error at render time.
func Literal(v any) Expr {
	return &literalNode{value: v, ref: types.Resolved(types.OfValue(v))}
}

// Param creates a named parameter. The type parameter T gives its logical
// type.
func Param[T any](name string) Expr {
	var zero T
	return ParamOf(name, types.OfValue(any(zero)))
}

// ParamOf creates a named parameter of an explicit type.
func ParamOf(name string, t types.Type) Expr {
	if name == "" {
		panic(sqlerr.Usage("Param", "parameter name cannot be empty"))
	}
	return &paramNode{name: name, ref: types.Resolved(t)}
}

// Null is a bare SQL NULL.
func Null() Expr {
	return &nullNode{ref: types.Resolved(types.NullType)}
}

// Star is the * argument of COUNT(*).
func Star() Expr {
	return &starNode{ref: types.Resolved(types.Of(types.Unknown))}
}

// Cast converts v to t.
func Cast(v any, t types.Type) Expr {
	return &castNode{expr: toExpr(v), to: t, ref: types.Resolved(t)}
}

// Now is the current timestamp, bound at build time.
func Now() Expr {
	return TypedValue(types.TimestampType, time.Now().UTC())
}

// List builds a value list.
func List(values ...any) Expr {
	exprs := toExprs(values)
	deps := make([]types.Typed, len(exprs))
	for i, e := range exprs {
		deps[i] = e
	}
	return &listNode{values: exprs, ref: types.Combine("list", deps, types.FirstNonNull)}
}

// Eq compares two arbitrary operands.
func Eq(left, right any) Expr { return newBinary(toExpr(left), OpEq, toExpr(right)) }

// Binary combines two operands with op.
func Binary(left any, op BinaryOp, right any) Expr {
	return newBinary(toExpr(left), op, toExpr(right))
}

// And combines expressions with AND. It returns nil for no expressions and
// the expression itself for one.
func And(exprs ...Expr) Expr {
	return fold(OpAnd, exprs)
}

// Or combines expressions with OR. It returns nil for no expressions and the
// expression itself for one.
func Or(exprs ...Expr) Expr {
	return fold(OpOr, exprs)
}

func fold(op BinaryOp, exprs []Expr) Expr {
	if len(exprs) == 0 {
		return nil
	}
	result := exprs[0]
	for _, e := range exprs[1:] {
		result = newBinary(result, op, e)
	}
	return result
}

// Not negates an expression.
func Not(e Expr) Expr { return newUnary(OpNot, e) }

// Neg is arithmetic negation.
func Neg(v any) Expr { return newUnary(OpNeg, toExpr(v)) }

// IsNull tests v for NULL.
func IsNull(v any) Expr { return newUnary(OpIsNull, toExpr(v)) }

// IsNotNull tests v for NOT NULL.
func IsNotNull(v any) Expr { return newUnary(OpNotNull, toExpr(v)) }
