package query

import (
	"fmt"
	"strings"

	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/sqlerr"
	"github.com/shipq/critq/types"
)

// Modifier is the optional set quantifier of an aggregate: DISTINCT or ALL.
type Modifier string

const (
	NoModifier  Modifier = ""
	ModDistinct Modifier = "DISTINCT"
	ModAll      Modifier = "ALL"
)

// ParseModifier accepts "", "DISTINCT" and "ALL" in any case.
func ParseModifier(s string) (Modifier, bool) {
	switch m := Modifier(strings.ToUpper(strings.TrimSpace(s))); m {
	case NoModifier, ModDistinct, ModAll:
		return m, true
	}
	return NoModifier, false
}

type funcClass uint8

const (
	scalarFunc funcClass = iota
	aggregateFunc
	windowFunc
)

// signature is the catalog contract of one function.
type signature struct {
	min, max int // max < 0 means variadic
	class    funcClass
	noNull   bool
	result   func(label string, args []Expr) *types.Ref

	nullTreatment bool // accepts RESPECT NULLS / IGNORE NULLS
	fromFirstLast bool // accepts FROM FIRST / FROM LAST
}

func fixed(t types.Type) func(string, []Expr) *types.Ref {
	return func(string, []Expr) *types.Ref { return types.Resolved(t) }
}

func sameAsFirst(label string, args []Expr) *types.Ref {
	return types.Delay(label, args[0], types.Identity)
}

func firstNonNull(label string, args []Expr) *types.Ref {
	deps := make([]types.Typed, len(args))
	for i, a := range args {
		deps[i] = a
	}
	return types.Combine(label, deps, types.FirstNonNull)
}

func sumResult(label string, args []Expr) *types.Ref {
	return types.Delay(label, args[0], func(t types.Type) types.Type {
		if t.Kind().IsInteger() {
			return types.DecimalType
		}
		return t
	})
}

func avgResult(label string, args []Expr) *types.Ref {
	return types.Delay(label, args[0], func(t types.Type) types.Type {
		switch k := t.Kind(); {
		case k.IsInteger(), k == types.Decimal:
			return types.DecimalType
		default:
			return types.DoubleType
		}
	})
}

// catalog is the representative set of known functions.
var catalog = map[string]signature{
	"COALESCE":     {min: 1, max: -1, result: firstNonNull},
	"IFNULL":       {min: 2, max: 2, result: firstNonNull},
	"NULLIF":       {min: 2, max: 2, result: sameAsFirst},
	"SUBSTRING":    {min: 2, max: 3, result: sameAsFirst},
	"ROUND":        {min: 1, max: 2, result: sameAsFirst},
	"LOWER":        {min: 1, max: 1, noNull: true, result: sameAsFirst},
	"UPPER":        {min: 1, max: 1, noNull: true, result: sameAsFirst},
	"CONCAT":       {min: 1, max: -1, noNull: true, result: fixed(types.VarCharType)},
	"ABS":          {min: 1, max: 1, noNull: true, result: sameAsFirst},
	"LENGTH":       {min: 1, max: 1, result: fixed(types.BigIntType)},
	"JSON_EXTRACT": {min: 2, max: -1, result: fixed(types.JSONType)},

	"COUNT": {min: 1, max: 1, class: aggregateFunc, result: fixed(types.BigIntType)},
	"SUM":   {min: 1, max: 1, class: aggregateFunc, noNull: true, result: sumResult},
	"AVG":   {min: 1, max: 1, class: aggregateFunc, noNull: true, result: avgResult},
	"MIN":   {min: 1, max: 1, class: aggregateFunc, result: sameAsFirst},
	"MAX":   {min: 1, max: 1, class: aggregateFunc, result: sameAsFirst},

	"ROW_NUMBER":  {min: 0, max: 0, class: windowFunc, result: fixed(types.BigIntType)},
	"RANK":        {min: 0, max: 0, class: windowFunc, result: fixed(types.BigIntType)},
	"DENSE_RANK":  {min: 0, max: 0, class: windowFunc, result: fixed(types.BigIntType)},
	"FIRST_VALUE": {min: 1, max: 1, class: windowFunc, result: sameAsFirst, nullTreatment: true},
	"LAST_VALUE":  {min: 1, max: 1, class: windowFunc, result: sameAsFirst, nullTreatment: true},
	"NTH_VALUE":   {min: 2, max: 2, class: windowFunc, result: sameAsFirst, nullTreatment: true, fromFirstLast: true},
	"LAG":         {min: 1, max: 3, class: windowFunc, result: sameAsFirst, nullTreatment: true},
	"LEAD":        {min: 1, max: 3, class: windowFunc, result: sameAsFirst, nullTreatment: true},
}

func lookup(op, name string) (string, signature) {
	upper := strings.ToUpper(name)
	sig, ok := catalog[upper]
	if !ok {
		panic(sqlerr.Usage(op, "unknown function %q; use Func with an explicit type", name))
	}
	return upper, sig
}

func (s signature) arity() string {
	switch {
	case s.max < 0:
		return fmt.Sprintf("at least %d", s.min)
	case s.min == s.max:
		return fmt.Sprintf("exactly %d", s.min)
	default:
		return fmt.Sprintf("%d to %d", s.min, s.max)
	}
}

// checkArgs validates the argument count and NULL rules of name.
func (s signature) checkArgs(name string, args []Expr) {
	if len(args) < s.min || (s.max >= 0 && len(args) > s.max) {
		panic(sqlerr.UsageArgs(name, exprArgs(args),
			"expects %s arguments, got %d", s.arity(), len(args)))
	}
	if s.noNull {
		for i, a := range args {
			if isBareNull(a) {
				panic(sqlerr.UsageArgs(name, exprArgs(args),
					"argument %d cannot be NULL", i+1))
			}
		}
	}
}

func exprArgs(args []Expr) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = describe(a)
	}
	return out
}

func isBareNull(e Expr) bool {
	switch n := e.(type) {
	case *nullNode:
		return true
	case *valueNode:
		return n.value == nil
	case *literalNode:
		return n.value == nil
	}
	return false
}

// funcNode is a scalar or aggregate function call.
type funcNode struct {
	name     string
	modifier Modifier
	args     []Expr
	class    funcClass
	ref      *types.Ref
}

func (n *funcNode) TypeRef() *types.Ref { return n.ref }
func (n *funcNode) Kind() NodeKind      { return KindFunc }
func (*funcNode) exprNode()             {}

// Name returns the function name.
func (n *funcNode) Name() string { return n.name }

func (n *funcNode) String() string {
	var b strings.Builder
	b.WriteString(n.name)
	b.WriteString("(")
	if n.modifier != NoModifier {
		b.WriteString(string(n.modifier))
		b.WriteString(" ")
	}
	b.WriteString(describeList(n.args))
	b.WriteString(")")
	return b.String()
}

// dialectSpelling renames catalog functions for dialects that spell them
// differently.
var dialectSpelling = map[string]map[string]string{
	"IFNULL": {"postgres": "COALESCE"},
	"LENGTH": {"mysql": "CHAR_LENGTH"},
}

func (n *funcNode) Render(ctx *compile.Context) error {
	name := n.name
	if alt, ok := dialectSpelling[name][ctx.Dialect().Name()]; ok {
		name = alt
	}
	ctx.WriteString(name)
	ctx.WriteString("(")
	if n.modifier != NoModifier {
		ctx.WriteString(string(n.modifier))
		ctx.WriteString(" ")
	}
	if err := renderList(ctx, n.args); err != nil {
		return err
	}
	ctx.WriteString(")")
	return nil
}

// Func calls a function that is not in the catalog. The caller supplies the
// result type.
func Func(name string, t types.Type, args ...any) Expr {
	if err := compile.ValidateIdentifier(name); err != nil {
		panic(sqlerr.Usage("Func", "%v", err))
	}
	return &funcNode{
		name: strings.ToUpper(name),
		args: toExprs(args),
		ref:  types.Resolved(t),
	}
}

// Call calls a catalog function. The argument count is checked against the
// catalog and the result type is derived from the arguments. Window-only
// functions are built with Window.
func Call(name string, args ...any) Expr {
	upper, sig := lookup("Call", name)
	if sig.class == windowFunc {
		panic(sqlerr.Usage(upper, "is a window function; use Window"))
	}
	exprs := toExprs(args)
	sig.checkArgs(upper, exprs)
	if sig.class == aggregateFunc {
		checkAggregateArgs(upper, exprs)
	}
	return &funcNode{
		name:  upper,
		args:  exprs,
		class: sig.class,
		ref:   sig.result(upper, exprs),
	}
}

// Aggregate calls an aggregate function with an optional DISTINCT or ALL
// modifier. Any other modifier is a usage error. A nil arg means *.
func Aggregate(name string, modifier Modifier, arg any) Expr {
	upper, sig := lookup("Aggregate", name)
	if sig.class != aggregateFunc {
		panic(sqlerr.Usage(upper, "is not an aggregate function"))
	}
	switch modifier {
	case NoModifier, ModDistinct, ModAll:
	default:
		panic(sqlerr.UsageArgs(upper, []any{string(modifier)},
			"invalid aggregate modifier; allowed: DISTINCT, ALL or none"))
	}
	var e Expr
	if arg == nil {
		e = Star()
	} else {
		e = toExpr(arg)
	}
	if _, star := e.(*starNode); star && (upper != "COUNT" || modifier != NoModifier) {
		panic(sqlerr.UsageArgs(upper, []any{string(modifier), "*"}, "* is only valid as COUNT(*)"))
	}
	exprs := []Expr{e}
	sig.checkArgs(upper, exprs)
	checkAggregateArgs(upper, exprs)
	return &funcNode{
		name:     upper,
		modifier: modifier,
		args:     exprs,
		class:    aggregateFunc,
		ref:      sig.result(upper, exprs),
	}
}

// checkAggregateArgs rejects window functions and nested aggregates inside
// aggregate arguments.
func checkAggregateArgs(name string, args []Expr) {
	for _, a := range args {
		if containsWindow(a) {
			panic(sqlerr.UsageArgs(name, exprArgs(args), "window function inside aggregate arguments"))
		}
		if containsAggregate(a) {
			panic(sqlerr.UsageArgs(name, exprArgs(args), "nested aggregate"))
		}
	}
}

// Count is COUNT(*).
func Count() Expr { return Aggregate("COUNT", NoModifier, nil) }

// CountDistinct is COUNT(DISTINCT v).
func CountDistinct(v any) Expr { return Aggregate("COUNT", ModDistinct, v) }

func Sum(v any) Expr { return Aggregate("SUM", NoModifier, v) }
func Avg(v any) Expr { return Aggregate("AVG", NoModifier, v) }
func Min(v any) Expr { return Aggregate("MIN", NoModifier, v) }
func Max(v any) Expr { return Aggregate("MAX", NoModifier, v) }

// Coalesce returns the first non-NULL argument.
func Coalesce(args ...any) Expr { return Call("COALESCE", args...) }

// IfNull returns b when a is NULL.
func IfNull(a, b any) Expr { return Call("IFNULL", a, b) }

func Lower(v any) Expr { return Call("LOWER", v) }
func Upper(v any) Expr { return Call("UPPER", v) }

// Concat concatenates strings.
func Concat(args ...any) Expr { return Call("CONCAT", args...) }
