package query

import "github.com/shipq/critq/types"

// Table names a table, optionally under an alias. Columns obtained from an
// aliased table are qualified with the alias.
type Table struct {
	Name  string
	Alias string
}

// NewTable returns a table reference.
func NewTable(name string) Table { return Table{Name: name} }

// As returns a copy of t under alias.
func (t Table) As(alias string) Table {
	t.Alias = alias
	return t
}

// Ref is the name columns of t are qualified with.
func (t Table) Ref() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// Column returns a non-null column of t.
func (t Table) Column(name string, typ types.Type) Column {
	return Column{Table: t.Ref(), Name: name, Type: typ}
}

// NullColumn returns a nullable column of t.
func (t Table) NullColumn(name string, typ types.Type) Column {
	return Column{Table: t.Ref(), Name: name, Type: typ, Nullable: true}
}

func (t Table) String() string {
	if t.Alias != "" {
		return t.Name + " AS " + t.Alias
	}
	return t.Name
}

// Column is a typed column of a table.
type Column struct {
	Table    string // table name or alias used for qualification; may be empty
	Name     string
	Type     types.Type
	Nullable bool
}

func (c Column) String() string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "." + c.Name
}

// Expr returns the column as an expression node.
func (c Column) Expr() Expr { return newColumnNode(c) }

func (c Column) compare(op BinaryOp, other any) Expr {
	return newBinary(c.Expr(), op, toExpr(other))
}

// Comparison operators. The argument is normalized with the usual rules: an
// Expr passes through, a Column becomes a column reference, anything else is
// bound as a parameter.

func (c Column) Eq(other any) Expr { return c.compare(OpEq, other) }
func (c Column) Ne(other any) Expr { return c.compare(OpNe, other) }
func (c Column) Lt(other any) Expr { return c.compare(OpLt, other) }
func (c Column) Le(other any) Expr { return c.compare(OpLe, other) }
func (c Column) Gt(other any) Expr { return c.compare(OpGt, other) }
func (c Column) Ge(other any) Expr { return c.compare(OpGe, other) }

// Like matches a pattern.
func (c Column) Like(pattern any) Expr { return c.compare(OpLike, pattern) }

// ILike matches a pattern case-insensitively. Dialects without ILIKE get
// LOWER(x) LIKE LOWER(y).
func (c Column) ILike(pattern any) Expr { return c.compare(OpILike, pattern) }

// In tests membership in a value list. An empty list is rejected when the
// statement is finalized.
func (c Column) In(values ...any) Expr {
	return newBinary(c.Expr(), OpIn, List(values...))
}

// NotIn is the negation of In.
func (c Column) NotIn(values ...any) Expr {
	return newBinary(c.Expr(), OpNotIn, List(values...))
}

// InSubquery tests membership in the rows of a subquery.
func (c Column) InSubquery(sub *Statement) Expr {
	return newBinary(c.Expr(), OpIn, Subquery(sub))
}

func (c Column) IsNull() Expr    { return newUnary(OpIsNull, c.Expr()) }
func (c Column) IsNotNull() Expr { return newUnary(OpNotNull, c.Expr()) }

// Arithmetic. The result type is the promotion of both operand types and is
// resolved lazily.

func (c Column) Add(other any) Expr { return c.compare(OpAdd, other) }
func (c Column) Sub(other any) Expr { return c.compare(OpSub, other) }
func (c Column) Mul(other any) Expr { return c.compare(OpMul, other) }
func (c Column) Div(other any) Expr { return c.compare(OpDiv, other) }

func (c Column) Asc() OrderItem  { return OrderItem{Expr: c.Expr()} }
func (c Column) Desc() OrderItem { return OrderItem{Expr: c.Expr(), Desc: true} }

// OrderItem is one ORDER BY entry.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// Asc orders by e ascending.
func Asc(e Expr) OrderItem { return OrderItem{Expr: e} }

// Desc orders by e descending.
func Desc(e Expr) OrderItem { return OrderItem{Expr: e, Desc: true} }

func (o OrderItem) String() string {
	if o.Desc {
		return describe(o.Expr) + " DESC"
	}
	return describe(o.Expr)
}
