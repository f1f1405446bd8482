package query

import (
	"strings"

	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/sqlerr"
	"github.com/shipq/critq/types"
)

// GroupConcatExpr is a string aggregate: GROUP_CONCAT on MySQL and SQLite,
// STRING_AGG on Postgres. OrderBy and Separator may each be set once.
type GroupConcatExpr struct {
	clauseState
	arg      Expr
	distinct bool
	ref      *types.Ref

	orderBy   setting[[]OrderItem]
	separator setting[string]
}

// GroupConcat aggregates v into one string. The modifier must be DISTINCT,
// ALL or none.
func GroupConcat(modifier Modifier, v any) *GroupConcatExpr {
	switch modifier {
	case NoModifier, ModDistinct, ModAll:
	default:
		panic(sqlerr.UsageArgs("GROUP_CONCAT", []any{string(modifier)},
			"invalid aggregate modifier; allowed: DISTINCT, ALL or none"))
	}
	arg := toExpr(v)
	if isBareNull(arg) {
		panic(sqlerr.UsageArgs("GROUP_CONCAT", []any{describe(arg)}, "argument 1 cannot be NULL"))
	}
	checkAggregateArgs("GROUP_CONCAT", []Expr{arg})
	return &GroupConcatExpr{
		arg:      arg,
		distinct: modifier == ModDistinct,
		ref:      types.Resolved(types.TextType),
	}
}

func (g *GroupConcatExpr) TypeRef() *types.Ref { return g.ref }
func (g *GroupConcatExpr) Kind() NodeKind      { return KindGroupConcat }
func (*GroupConcatExpr) exprNode()             {}

// OrderBy orders the concatenated values.
func (g *GroupConcatExpr) OrderBy(items ...OrderItem) *GroupConcatExpr {
	g.mutable("OrderBy")
	if len(items) == 0 {
		panic(sqlerr.Usage("OrderBy", "GROUP_CONCAT ORDER BY needs at least one item"))
	}
	g.orderBy.put("OrderBy", "ORDER BY", append([]OrderItem(nil), items...))
	return g
}

// Separator sets the string placed between values.
func (g *GroupConcatExpr) Separator(sep string) *GroupConcatExpr {
	g.mutable("Separator")
	g.separator.put("Separator", "SEPARATOR", sep)
	return g
}

func (g *GroupConcatExpr) String() string {
	var b strings.Builder
	b.WriteString("GROUP_CONCAT(")
	if g.distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(describe(g.arg))
	if g.orderBy.set {
		b.WriteString(" ORDER BY " + describeOrder(g.orderBy.v))
	}
	if g.separator.set {
		b.WriteString(" SEPARATOR " + describeValue(g.separator.v))
	}
	b.WriteString(")")
	return b.String()
}

func (g *GroupConcatExpr) Render(ctx *compile.Context) error {
	agg := compile.StringAgg{
		Distinct: g.distinct,
		Arg:      func() error { return g.arg.Render(ctx) },
	}
	if g.orderBy.set {
		agg.OrderBy = func() error { return renderOrderItems(ctx, g.orderBy.v) }
	}
	if g.separator.set {
		sep := g.separator.v
		agg.Separator = &sep
	}
	return ctx.Dialect().WriteStringAgg(ctx, agg)
}
