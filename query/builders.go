package query

import "github.com/shipq/critq/sqlerr"

// Capability interfaces. Each builder implements the ones whose clauses its
// statement kind supports; a builder that lacks a capability simply has no
// such method.

// Filterable builders accept WHERE predicates.
type Filterable[B any] interface {
	Where(preds ...Expr) B
}

// Orderable builders accept ORDER BY items.
type Orderable[B any] interface {
	OrderBy(items ...OrderItem) B
}

// Limitable builders accept a row limit.
type Limitable[B any] interface {
	Limit(n int64) B
}

// Settable builders accept SET assignments.
type Settable[B any] interface {
	Set(col Column, v any) B
}

var (
	_ Filterable[*SelectBuilder] = (*SelectBuilder)(nil)
	_ Orderable[*SelectBuilder]  = (*SelectBuilder)(nil)
	_ Limitable[*SelectBuilder]  = (*SelectBuilder)(nil)

	_ Filterable[*UpdateBuilder] = (*UpdateBuilder)(nil)
	_ Orderable[*UpdateBuilder]  = (*UpdateBuilder)(nil)
	_ Limitable[*UpdateBuilder]  = (*UpdateBuilder)(nil)
	_ Settable[*UpdateBuilder]   = (*UpdateBuilder)(nil)

	_ Filterable[*DeleteBuilder] = (*DeleteBuilder)(nil)
	_ Orderable[*DeleteBuilder]  = (*DeleteBuilder)(nil)
	_ Limitable[*DeleteBuilder]  = (*DeleteBuilder)(nil)
)

// attach freezes the stateful clauses directly inside e. Nested statements
// freeze their own clauses when they are finalized.
func attach(e Expr) {
	WalkExpr(e, func(x Expr) bool {
		switch n := x.(type) {
		case *WindowExpr:
			n.freeze()
		case *JSONValueExpr:
			n.freeze()
		case *GroupConcatExpr:
			n.freeze()
		}
		return nestedStatement(x) == nil
	})
}

// =============================================================================
// Shared capabilities
// =============================================================================

type filterable[B any] struct {
	stmt *Statement
	self B
}

// Where adds predicates, combined with AND. Nil predicates are skipped.
func (f filterable[B]) Where(preds ...Expr) B {
	c := f.stmt.mutable("Where")
	for _, p := range preds {
		if p == nil {
			continue
		}
		checkPlacement("WHERE", p)
		attach(p)
		c.where = append(c.where, p)
	}
	return f.self
}

type orderable[B any] struct {
	stmt *Statement
	self B
	// rowwise rejects aggregates and window functions (UPDATE, DELETE).
	rowwise bool
}

// OrderBy appends ORDER BY items.
func (o orderable[B]) OrderBy(items ...OrderItem) B {
	c := o.stmt.mutable("OrderBy")
	for _, it := range items {
		if it.Expr == nil {
			panic(sqlerr.Usage("OrderBy", "ORDER BY item has no expression"))
		}
		if o.rowwise {
			checkPlacement("ORDER BY", it.Expr)
		}
		attach(it.Expr)
		c.orderBy = append(c.orderBy, it)
	}
	return o.self
}

type limitable[B any] struct {
	stmt *Statement
	self B
}

// Limit sets the row limit.
func (l limitable[B]) Limit(n int64) B {
	c := l.stmt.mutable("Limit")
	if n < 0 {
		panic(sqlerr.UsageArgs("Limit", []any{n}, "limit cannot be negative"))
	}
	c.limit = &n
	return l.self
}

type returnable[B any] struct {
	stmt *Statement
	self B
}

// Returning adds RETURNING columns.
func (r returnable[B]) Returning(cols ...Column) B {
	c := r.stmt.mutable("Returning")
	c.returning = append(c.returning, cols...)
	return r.self
}

// =============================================================================
// SELECT
// =============================================================================

// SelectBuilder builds a SELECT statement.
type SelectBuilder struct {
	stmt *Statement
	filterable[*SelectBuilder]
	orderable[*SelectBuilder]
	limitable[*SelectBuilder]
}

func newSelectBuilder(s *Statement) *SelectBuilder {
	b := &SelectBuilder{stmt: s}
	b.filterable = filterable[*SelectBuilder]{stmt: s, self: b}
	b.orderable = orderable[*SelectBuilder]{stmt: s, self: b}
	b.limitable = limitable[*SelectBuilder]{stmt: s, self: b}
	return b
}

// Statement returns the statement being built.
func (b *SelectBuilder) Statement() *Statement { return b.stmt }

// Columns adds select items. Each item may be a SelectItem, a Column, an Expr
// or a plain value (bound as a parameter).
func (b *SelectBuilder) Columns(items ...any) *SelectBuilder {
	c := b.stmt.mutable("Columns")
	for _, it := range items {
		item, ok := it.(SelectItem)
		if !ok {
			item = SelectItem{Expr: toExpr(it)}
		}
		if item.Expr == nil {
			panic(sqlerr.Usage("Columns", "select item has no expression"))
		}
		attach(item.Expr)
		c.items = append(c.items, item)
	}
	return b
}

// ColumnAs adds one select item under an alias.
func (b *SelectBuilder) ColumnAs(v any, alias string) *SelectBuilder {
	return b.Columns(SelectItem{Expr: toExpr(v), Alias: alias})
}

// Distinct makes the statement SELECT DISTINCT.
func (b *SelectBuilder) Distinct() *SelectBuilder {
	b.stmt.mutable("Distinct").distinct = true
	return b
}

// Join adds a join of kind k.
func (b *SelectBuilder) Join(k JoinKind, t Table, on Expr) *SelectBuilder {
	c := b.stmt.mutable("Join")
	switch k {
	case InnerJoin, LeftJoin, RightJoin, FullJoin:
	default:
		panic(sqlerr.UsageArgs("Join", []any{string(k)}, "unknown join kind"))
	}
	if on != nil {
		checkPlacement("JOIN ON", on)
		attach(on)
	}
	c.joins = append(c.joins, Join{Kind: k, Table: t, On: on})
	return b
}

// InnerJoin adds an INNER JOIN.
func (b *SelectBuilder) InnerJoin(t Table, on Expr) *SelectBuilder { return b.Join(InnerJoin, t, on) }

// LeftJoin adds a LEFT JOIN.
func (b *SelectBuilder) LeftJoin(t Table, on Expr) *SelectBuilder { return b.Join(LeftJoin, t, on) }

// GroupBy adds GROUP BY expressions.
func (b *SelectBuilder) GroupBy(exprs ...any) *SelectBuilder {
	c := b.stmt.mutable("GroupBy")
	for _, e := range toExprs(exprs) {
		checkPlacement("GROUP BY", e)
		c.groupBy = append(c.groupBy, e)
	}
	return b
}

// Having adds HAVING predicates, combined with AND.
func (b *SelectBuilder) Having(preds ...Expr) *SelectBuilder {
	c := b.stmt.mutable("Having")
	for _, p := range preds {
		if p == nil {
			continue
		}
		checkWindowFree("HAVING", p)
		attach(p)
		c.having = append(c.having, p)
	}
	return b
}

// Offset sets the number of rows to skip.
func (b *SelectBuilder) Offset(n int64) *SelectBuilder {
	c := b.stmt.mutable("Offset")
	if n < 0 {
		panic(sqlerr.UsageArgs("Offset", []any{n}, "offset cannot be negative"))
	}
	c.offset = &n
	return b
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateBuilder builds an UPDATE statement.
type UpdateBuilder struct {
	stmt *Statement
	filterable[*UpdateBuilder]
	orderable[*UpdateBuilder]
	limitable[*UpdateBuilder]
	returnable[*UpdateBuilder]
}

func newUpdateBuilder(s *Statement) *UpdateBuilder {
	b := &UpdateBuilder{stmt: s}
	b.filterable = filterable[*UpdateBuilder]{stmt: s, self: b}
	b.orderable = orderable[*UpdateBuilder]{stmt: s, self: b, rowwise: true}
	b.limitable = limitable[*UpdateBuilder]{stmt: s, self: b}
	b.returnable = returnable[*UpdateBuilder]{stmt: s, self: b}
	return b
}

// Statement returns the statement being built.
func (b *UpdateBuilder) Statement() *Statement { return b.stmt }

// Set assigns v to col. Each column may be assigned once.
func (b *UpdateBuilder) Set(col Column, v any) *UpdateBuilder {
	c := b.stmt.mutable("Set")
	for _, a := range c.sets {
		if a.Column.Name == col.Name {
			panic(sqlerr.UsageArgs("Set", []any{col.Name}, "column is already assigned"))
		}
	}
	e := toExpr(v)
	checkPlacement("SET", e)
	attach(e)
	c.sets = append(c.sets, Assignment{Column: col, Value: e})
	return b
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteBuilder builds a DELETE statement.
type DeleteBuilder struct {
	stmt *Statement
	filterable[*DeleteBuilder]
	orderable[*DeleteBuilder]
	limitable[*DeleteBuilder]
	returnable[*DeleteBuilder]
}

func newDeleteBuilder(s *Statement) *DeleteBuilder {
	b := &DeleteBuilder{stmt: s}
	b.filterable = filterable[*DeleteBuilder]{stmt: s, self: b}
	b.orderable = orderable[*DeleteBuilder]{stmt: s, self: b, rowwise: true}
	b.limitable = limitable[*DeleteBuilder]{stmt: s, self: b}
	b.returnable = returnable[*DeleteBuilder]{stmt: s, self: b}
	return b
}

// Statement returns the statement being built.
func (b *DeleteBuilder) Statement() *Statement { return b.stmt }

// =============================================================================
// INSERT
// =============================================================================

// InsertBuilder builds an INSERT statement.
type InsertBuilder struct {
	stmt *Statement
	returnable[*InsertBuilder]
}

func newInsertBuilder(s *Statement) *InsertBuilder {
	b := &InsertBuilder{stmt: s}
	b.returnable = returnable[*InsertBuilder]{stmt: s, self: b}
	return b
}

// Statement returns the statement being built.
func (b *InsertBuilder) Statement() *Statement { return b.stmt }

// Columns sets the insert column list. It may be called once.
func (b *InsertBuilder) Columns(cols ...Column) *InsertBuilder {
	c := b.stmt.mutable("Columns")
	if len(c.insertCols) > 0 {
		panic(sqlerr.Usage("Columns", "insert columns are already set"))
	}
	if len(cols) == 0 {
		panic(sqlerr.Usage("Columns", "INSERT needs at least one column"))
	}
	c.insertCols = append([]Column(nil), cols...)
	return b
}

// Values adds one VALUES row. Row width is checked against the column list
// when the statement is finalized.
func (b *InsertBuilder) Values(vals ...any) *InsertBuilder {
	c := b.stmt.mutable("Values")
	row := toExprs(vals)
	for _, e := range row {
		checkPlacement("VALUES", e)
		attach(e)
	}
	c.rows = append(c.rows, row)
	return b
}

// NewSelect starts a SELECT outside a Session. The caller drives the
// lifecycle with Statement().Finalize and Clear.
func NewSelect(t Table) *SelectBuilder { return newSelectBuilder(newStatement(SelectStatement, t)) }

// NewUpdate starts an UPDATE outside a Session.
func NewUpdate(t Table) *UpdateBuilder { return newUpdateBuilder(newStatement(UpdateStatement, t)) }

// NewDelete starts a DELETE outside a Session.
func NewDelete(t Table) *DeleteBuilder { return newDeleteBuilder(newStatement(DeleteStatement, t)) }

// NewInsert starts an INSERT outside a Session.
func NewInsert(t Table) *InsertBuilder { return newInsertBuilder(newStatement(InsertStatement, t)) }
