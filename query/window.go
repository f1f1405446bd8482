package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/sqlerr"
	"github.com/shipq/critq/types"
)

// setting is a clause option that may be set at most once.
type setting[T any] struct {
	v   T
	set bool
}

func (s *setting[T]) put(op, what string, v T) {
	if s.set {
		panic(sqlerr.Usage(op, "%s is already set", what))
	}
	s.v = v
	s.set = true
}

func (s *setting[T]) reset() {
	var zero T
	s.v = zero
	s.set = false
}

// clauseState is shared by the stateful clauses. A clause is frozen when it
// is attached to a statement; after that every setter fails.
type clauseState struct {
	frozen bool
}

func (c *clauseState) mutable(op string) {
	if c.frozen {
		panic(sqlerr.Usage(op, "clause is attached to a statement and can no longer change"))
	}
}

func (c *clauseState) freeze() { c.frozen = true }

// Frozen reports whether the clause has been attached to a statement.
func (c *clauseState) Frozen() bool { return c.frozen }

// WindowExpr is a window function call: a function followed by OVER (...).
// FromFirst/FromLast, RespectNulls/IgnoreNulls and Over may each be set once.
type WindowExpr struct {
	clauseState
	call *funcNode
	sig  signature

	fromFirst setting[bool] // true: FROM FIRST, false: FROM LAST
	respect   setting[bool] // true: RESPECT NULLS, false: IGNORE NULLS
	over      setting[WindowSpec]
}

// Window calls a window function, or an aggregate used as a window function.
func Window(name string, args ...any) *WindowExpr {
	upper, sig := lookup("Window", name)
	if sig.class == scalarFunc {
		panic(sqlerr.Usage(upper, "is not a window or aggregate function"))
	}
	exprs := toExprs(args)
	sig.checkArgs(upper, exprs)
	checkAggregateArgs(upper, exprs)
	return &WindowExpr{
		call: &funcNode{name: upper, args: exprs, class: sig.class, ref: sig.result(upper, exprs)},
		sig:  sig,
	}
}

// RowNumber is ROW_NUMBER().
func RowNumber() *WindowExpr { return Window("ROW_NUMBER") }

// Lag is LAG(v [, offset [, default]]).
func Lag(args ...any) *WindowExpr { return Window("LAG", args...) }

// Lead is LEAD(v [, offset [, default]]).
func Lead(args ...any) *WindowExpr { return Window("LEAD", args...) }

// NthValue is NTH_VALUE(v, n).
func NthValue(v any, n int) *WindowExpr { return Window("NTH_VALUE", v, Literal(n)) }

func (w *WindowExpr) TypeRef() *types.Ref { return w.call.ref }
func (w *WindowExpr) Kind() NodeKind      { return KindWindow }
func (*WindowExpr) exprNode()             {}

// Name returns the function name.
func (w *WindowExpr) Name() string { return w.call.name }

func (w *WindowExpr) onlyFromFirstLast(op string) {
	if !w.sig.fromFirstLast {
		panic(sqlerr.Usage(op, "not applicable to %s", w.call.name))
	}
}

func (w *WindowExpr) onlyNullTreatment(op string) {
	if !w.sig.nullTreatment {
		panic(sqlerr.Usage(op, "not applicable to %s", w.call.name))
	}
}

// FromFirst sets FROM FIRST (NTH_VALUE only).
func (w *WindowExpr) FromFirst() *WindowExpr {
	w.mutable("FromFirst")
	w.onlyFromFirstLast("FromFirst")
	w.fromFirst.put("FromFirst", "FROM FIRST/LAST", true)
	return w
}

// FromLast sets FROM LAST (NTH_VALUE only).
func (w *WindowExpr) FromLast() *WindowExpr {
	w.mutable("FromLast")
	w.onlyFromFirstLast("FromLast")
	w.fromFirst.put("FromLast", "FROM FIRST/LAST", false)
	return w
}

// RespectNulls sets RESPECT NULLS.
func (w *WindowExpr) RespectNulls() *WindowExpr {
	w.mutable("RespectNulls")
	w.onlyNullTreatment("RespectNulls")
	w.respect.put("RespectNulls", "null treatment", true)
	return w
}

// IgnoreNulls sets IGNORE NULLS.
func (w *WindowExpr) IgnoreNulls() *WindowExpr {
	w.mutable("IgnoreNulls")
	w.onlyNullTreatment("IgnoreNulls")
	w.respect.put("IgnoreNulls", "null treatment", false)
	return w
}

// Over sets the window specification.
func (w *WindowExpr) Over(spec WindowSpec) *WindowExpr {
	w.mutable("Over")
	w.over.put("Over", "OVER", spec)
	return w
}

// Spec returns the window specification and whether it is set.
func (w *WindowExpr) Spec() (WindowSpec, bool) { return w.over.v, w.over.set }

func (w *WindowExpr) String() string {
	var b strings.Builder
	b.WriteString(w.call.String())
	if w.fromFirst.set {
		if w.fromFirst.v {
			b.WriteString(" FROM FIRST")
		} else {
			b.WriteString(" FROM LAST")
		}
	}
	if w.respect.set {
		if w.respect.v {
			b.WriteString(" RESPECT NULLS")
		} else {
			b.WriteString(" IGNORE NULLS")
		}
	}
	if w.over.set {
		b.WriteString(" OVER (" + w.over.v.String() + ")")
	} else {
		b.WriteString(" OVER (?)")
	}
	return b.String()
}

func (w *WindowExpr) Render(ctx *compile.Context) error {
	if err := ctx.Require(compile.FeatureWindow, "window function "+w.call.name); err != nil {
		return err
	}
	if !w.over.set {
		return fmt.Errorf("window function %s has no OVER clause", w.call.name)
	}
	if err := w.call.Render(ctx); err != nil {
		return err
	}
	if w.fromFirst.set {
		if err := w.renderOption(ctx, w.fromFirst.v, "FROM FIRST", "FROM LAST"); err != nil {
			return err
		}
	}
	if w.respect.set {
		if err := w.renderOption(ctx, w.respect.v, "RESPECT NULLS", "IGNORE NULLS"); err != nil {
			return err
		}
	}
	ctx.WriteString(" OVER (")
	if err := w.over.v.render(ctx); err != nil {
		return err
	}
	ctx.WriteString(")")
	return nil
}

// renderOption writes the default spelling only where the dialect accepts it
// explicitly (omitting it means the same thing). The non-default spelling
// needs real support.
func (w *WindowExpr) renderOption(ctx *compile.Context, isDefault bool, def, other string) error {
	if isDefault {
		if ctx.Supports(compile.FeatureExplicitNullTreatment) {
			ctx.WriteString(" " + def)
		}
		return nil
	}
	if err := ctx.Require(compile.FeatureIgnoreNulls, w.call.name+" ... "+other); err != nil {
		return err
	}
	ctx.WriteString(" " + other)
	return nil
}

// =============================================================================
// Window specification
// =============================================================================

// WindowSpec is the body of OVER (...). It is an immutable value; every
// method returns a modified copy.
type WindowSpec struct {
	partition []Expr
	order     []OrderItem
	frame     *Frame
}

// PartitionBy starts a window specification with PARTITION BY.
func PartitionBy(exprs ...any) WindowSpec { return WindowSpec{}.PartitionBy(exprs...) }

// OrderWindowBy starts a window specification with ORDER BY.
func OrderWindowBy(items ...OrderItem) WindowSpec { return WindowSpec{}.OrderBy(items...) }

func (w WindowSpec) PartitionBy(exprs ...any) WindowSpec {
	w.partition = append(append([]Expr(nil), w.partition...), toExprs(exprs)...)
	return w
}

func (w WindowSpec) OrderBy(items ...OrderItem) WindowSpec {
	w.order = append(append([]OrderItem(nil), w.order...), items...)
	return w
}

// Rows sets a ROWS frame.
func (w WindowSpec) Rows(start, end FrameBound) WindowSpec {
	w.frame = &Frame{Unit: FrameRows, Start: start, End: end}
	return w
}

// Range sets a RANGE frame.
func (w WindowSpec) Range(start, end FrameBound) WindowSpec {
	w.frame = &Frame{Unit: FrameRange, Start: start, End: end}
	return w
}

func (w WindowSpec) exprs() []Expr {
	out := append([]Expr(nil), w.partition...)
	for _, o := range w.order {
		out = append(out, o.Expr)
	}
	return out
}

func (w WindowSpec) String() string {
	var parts []string
	if len(w.partition) > 0 {
		parts = append(parts, "PARTITION BY "+describeList(w.partition))
	}
	if len(w.order) > 0 {
		parts = append(parts, "ORDER BY "+describeOrder(w.order))
	}
	if w.frame != nil {
		parts = append(parts, w.frame.String())
	}
	return strings.Join(parts, " ")
}

func (w WindowSpec) render(ctx *compile.Context) error {
	sep := ""
	if len(w.partition) > 0 {
		ctx.WriteString("PARTITION BY ")
		if err := renderList(ctx, w.partition); err != nil {
			return err
		}
		sep = " "
	}
	if len(w.order) > 0 {
		ctx.WriteString(sep + "ORDER BY ")
		if err := renderOrderItems(ctx, w.order); err != nil {
			return err
		}
		sep = " "
	}
	if w.frame != nil {
		ctx.WriteString(sep + w.frame.String())
	}
	return nil
}

// FrameUnit is ROWS or RANGE.
type FrameUnit string

const (
	FrameRows  FrameUnit = "ROWS"
	FrameRange FrameUnit = "RANGE"
)

// Frame is a window frame clause.
type Frame struct {
	Unit       FrameUnit
	Start, End FrameBound
}

func (f Frame) String() string {
	return string(f.Unit) + " BETWEEN " + f.Start.String() + " AND " + f.End.String()
}

type boundKind uint8

const (
	boundUnboundedPreceding boundKind = iota
	boundPreceding
	boundCurrentRow
	boundFollowing
	boundUnboundedFollowing
)

// FrameBound is one end of a window frame. Offsets are inlined.
type FrameBound struct {
	kind   boundKind
	offset uint64
}

func UnboundedPreceding() FrameBound { return FrameBound{kind: boundUnboundedPreceding} }
func Preceding(n uint64) FrameBound  { return FrameBound{kind: boundPreceding, offset: n} }
func CurrentRow() FrameBound         { return FrameBound{kind: boundCurrentRow} }
func Following(n uint64) FrameBound  { return FrameBound{kind: boundFollowing, offset: n} }
func UnboundedFollowing() FrameBound { return FrameBound{kind: boundUnboundedFollowing} }

func (b FrameBound) String() string {
	switch b.kind {
	case boundUnboundedPreceding:
		return "UNBOUNDED PRECEDING"
	case boundPreceding:
		return strconv.FormatUint(b.offset, 10) + " PRECEDING"
	case boundCurrentRow:
		return "CURRENT ROW"
	case boundFollowing:
		return strconv.FormatUint(b.offset, 10) + " FOLLOWING"
	default:
		return "UNBOUNDED FOLLOWING"
	}
}
