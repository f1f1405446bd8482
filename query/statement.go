package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/sqlerr"
	"github.com/shipq/critq/types"
)

// StatementKind identifies the type of statement.
type StatementKind string

const (
	SelectStatement StatementKind = "SELECT"
	InsertStatement StatementKind = "INSERT"
	UpdateStatement StatementKind = "UPDATE"
	DeleteStatement StatementKind = "DELETE"
)

// Phase is the lifecycle phase of a statement.
type Phase uint8

const (
	// Building: clause lists are mutable and readers fail.
	Building Phase = iota
	// Prepared: clause lists are immutable views, every type is resolved,
	// and the statement can be rendered (concurrently, one Context each).
	Prepared
	// Cleared: references are released and every call except Clear, Phase
	// and String fails.
	Cleared
)

func (p Phase) String() string {
	switch p {
	case Building:
		return "building"
	case Prepared:
		return "prepared"
	case Cleared:
		return "cleared"
	default:
		return "Phase(" + strconv.Itoa(int(p)) + ")"
	}
}

// SelectItem is one entry of the select list.
type SelectItem struct {
	Expr  Expr
	Alias string
}

func (s SelectItem) String() string {
	if s.Alias != "" {
		return describe(s.Expr) + " AS " + s.Alias
	}
	return describe(s.Expr)
}

// JoinKind is the type of a join.
type JoinKind string

const (
	InnerJoin JoinKind = "INNER"
	LeftJoin  JoinKind = "LEFT"
	RightJoin JoinKind = "RIGHT"
	FullJoin  JoinKind = "FULL"
)

// Join is a JOIN clause.
type Join struct {
	Kind  JoinKind
	Table Table
	On    Expr
}

// Assignment is column = value in UPDATE ... SET.
type Assignment struct {
	Column Column
	Value  Expr
}

// clauses holds the clause lists of a statement. It is mutated while
// Building and never again after Finalize copies it.
type clauses struct {
	distinct   bool
	items      []SelectItem
	joins      []Join
	where      []Expr
	groupBy    []Expr
	having     []Expr
	orderBy    []OrderItem
	limit      *int64
	offset     *int64
	sets       []Assignment
	insertCols []Column
	rows       [][]Expr
	returning  []Column
}

func (c *clauses) clone() *clauses {
	out := *c
	out.items = append([]SelectItem(nil), c.items...)
	out.joins = append([]Join(nil), c.joins...)
	out.where = append([]Expr(nil), c.where...)
	out.groupBy = append([]Expr(nil), c.groupBy...)
	out.having = append([]Expr(nil), c.having...)
	out.orderBy = append([]OrderItem(nil), c.orderBy...)
	out.sets = append([]Assignment(nil), c.sets...)
	out.insertCols = append([]Column(nil), c.insertCols...)
	out.returning = append([]Column(nil), c.returning...)
	out.rows = make([][]Expr, len(c.rows))
	for i, r := range c.rows {
		out.rows[i] = append([]Expr(nil), r...)
	}
	return &out
}

// views are the immutable lists handed out by a prepared statement.
type views struct {
	items      *View[SelectItem]
	joins      *View[Join]
	predicates *View[Expr]
	where      Expr
	groupBy    *View[Expr]
	having     *View[Expr]
	orderBy    *View[OrderItem]
	sets       *View[Assignment]
	insertCols *View[Column]
	rows       *View[*View[Expr]]
	returning  *View[Column]
}

func newViews(c *clauses) *views {
	rows := make([]*View[Expr], len(c.rows))
	for i, r := range c.rows {
		rows[i] = freezeView(r)
	}
	return &views{
		items:      freezeView(c.items),
		joins:      freezeView(c.joins),
		predicates: freezeView(c.where),
		where:      And(c.where...),
		groupBy:    freezeView(c.groupBy),
		having:     freezeView(c.having),
		orderBy:    freezeView(c.orderBy),
		sets:       freezeView(c.sets),
		insertCols: freezeView(c.insertCols),
		rows:       freezeView(rows),
		returning:  freezeView(c.returning),
	}
}

// phaseState is the lifecycle variant of a statement.
type phaseState interface {
	phase() Phase
}

type building struct {
	c *clauses

	// finalizing and describing are set while Finalize and String run, so
	// statements that contain each other are detected instead of recursing.
	finalizing bool
	describing bool
}

type prepared struct {
	c *clauses
	v *views
}

type cleared struct{}

func (*building) phase() Phase { return Building }
func (*prepared) phase() Phase { return Prepared }
func (cleared) phase() Phase   { return Cleared }

// Statement is a SELECT, INSERT, UPDATE or DELETE under construction or ready
// to render. Build statements with a Session (or the package-level Select,
// Update, Delete and Insert helpers).
type Statement struct {
	kind  StatementKind
	table Table
	state phaseState
}

func newStatement(kind StatementKind, t Table) *Statement {
	return &Statement{kind: kind, table: t, state: &building{c: &clauses{}}}
}

// Kind returns the statement kind.
func (s *Statement) Kind() StatementKind { return s.kind }

// Table returns the target table.
func (s *Statement) Table() Table { return s.table }

// Phase returns the lifecycle phase.
func (s *Statement) Phase() Phase { return s.state.phase() }

func (s *Statement) mutable(op string) *clauses {
	switch st := s.state.(type) {
	case *building:
		return st.c
	case *prepared:
		panic(sqlerr.Usage(op, "%s statement is prepared and can no longer change", s.kind))
	default:
		panic(sqlerr.Usage(op, "%s statement has been cleared", s.kind))
	}
}

func (s *Statement) readable(op string) *views {
	switch st := s.state.(type) {
	case *prepared:
		return st.v
	case *building:
		panic(sqlerr.Usage(op, "%s statement is still being built; call Finalize first", s.kind))
	default:
		panic(sqlerr.Usage(op, "%s statement has been cleared", s.kind))
	}
}

// parts returns the clauses in Building and Prepared, nil once cleared.
func (s *Statement) parts() *clauses {
	switch st := s.state.(type) {
	case *building:
		return st.c
	case *prepared:
		return st.c
	}
	return nil
}

func (s *Statement) selectItems() []SelectItem {
	if c := s.parts(); c != nil {
		return c.items
	}
	return nil
}

// =============================================================================
// Readers (Prepared only)
// =============================================================================

// SelectItems returns the select list.
func (s *Statement) SelectItems() *View[SelectItem] { return s.readable("SelectItems").items }

// Distinct reports whether the statement is SELECT DISTINCT.
func (s *Statement) Distinct() bool {
	s.readable("Distinct")
	return s.parts().distinct
}

// Joins returns the JOIN clauses.
func (s *Statement) Joins() *View[Join] { return s.readable("Joins").joins }

// Predicates returns the WHERE predicates, which are combined with AND.
func (s *Statement) Predicates() *View[Expr] { return s.readable("Predicates").predicates }

// Where returns the combined WHERE condition, or nil.
func (s *Statement) Where() Expr { return s.readable("Where").where }

// GroupBy returns the GROUP BY expressions.
func (s *Statement) GroupBy() *View[Expr] { return s.readable("GroupBy").groupBy }

// Having returns the HAVING predicates.
func (s *Statement) Having() *View[Expr] { return s.readable("Having").having }

// OrderBy returns the ORDER BY items.
func (s *Statement) OrderBy() *View[OrderItem] { return s.readable("OrderBy").orderBy }

// RowLimit returns the LIMIT, if any.
func (s *Statement) RowLimit() (int64, bool) {
	s.readable("RowLimit")
	return deref(s.parts().limit)
}

// RowOffset returns the OFFSET, if any.
func (s *Statement) RowOffset() (int64, bool) {
	s.readable("RowOffset")
	return deref(s.parts().offset)
}

func deref(p *int64) (int64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Assignments returns the SET assignments of an UPDATE.
func (s *Statement) Assignments() *View[Assignment] { return s.readable("Assignments").sets }

// InsertColumns returns the column list of an INSERT.
func (s *Statement) InsertColumns() *View[Column] { return s.readable("InsertColumns").insertCols }

// Rows returns the VALUES rows of an INSERT.
func (s *Statement) Rows() *View[*View[Expr]] { return s.readable("Rows").rows }

// Returning returns the RETURNING columns.
func (s *Statement) Returning() *View[Column] { return s.readable("Returning").returning }

// =============================================================================
// Lifecycle
// =============================================================================

// Finalize validates the statement, finalizes nested subqueries, resolves
// every type reachable from the statement, freezes the stateful clauses and
// switches to Prepared. Finalizing a prepared statement is a no-op.
//
// On error the statement stays Building. A JSON_VALUE without RETURNING keeps
// the TEXT type it was given for resolution; it cannot change anyway, since
// attaching a clause freezes it. Statements that contain each other through
// subqueries fail with a cyclic resolution error.
func (s *Statement) Finalize() (err error) {
	defer sqlerr.Recover(&err)
	return s.finalize(nil)
}

// finalize does the work of Finalize. path holds the statements currently
// being finalized, outermost first.
func (s *Statement) finalize(path []*Statement) error {
	var st *building
	switch cur := s.state.(type) {
	case *prepared:
		return nil
	case *building:
		st = cur
	default:
		return sqlerr.Usage("Finalize", "%s statement has been cleared", s.kind)
	}
	if st.finalizing {
		return sqlerr.Cyclic(statementChain(append(path, s)))
	}
	st.finalizing = true
	defer func() { st.finalizing = false }()
	path = append(path, s)

	c := st.c
	if err := validateStatement(s, c); err != nil {
		return err
	}

	// Nested statements first: their projections feed our delayed types.
	var nestedErr error
	walkClauses(c, func(e Expr) bool {
		if nestedErr != nil {
			return false
		}
		if n := nestedStatement(e); n != nil {
			nestedErr = n.finalize(path)
			return false
		}
		return true
	})
	if nestedErr != nil {
		return nestedErr
	}

	var resolveErr error
	walkClauses(c, func(e Expr) bool {
		if resolveErr != nil {
			return false
		}
		if jv, ok := e.(*JSONValueExpr); ok {
			jv.bindDefault()
		}
		if _, err := e.TypeRef().Resolve(); err != nil {
			resolveErr = err
			return false
		}
		return nestedStatement(e) == nil
	})
	if resolveErr != nil {
		return resolveErr
	}

	walkClauses(c, func(e Expr) bool {
		switch n := e.(type) {
		case *JSONValueExpr:
			n.freeze()
		case *WindowExpr:
			n.freeze()
		case *GroupConcatExpr:
			n.freeze()
		}
		return nestedStatement(e) == nil
	})

	frozen := c.clone()
	s.state = &prepared{c: frozen, v: newViews(frozen)}
	return nil
}

// statementChain labels the statements of a cycle, starting at the first
// occurrence of the repeated (last) statement.
func statementChain(path []*Statement) []string {
	last := path[len(path)-1]
	start := 0
	for i, p := range path {
		if p == last {
			start = i
			break
		}
	}
	chain := make([]string, 0, len(path)-start)
	for _, p := range path[start:] {
		chain = append(chain, string(p.kind)+" "+p.table.String())
	}
	return chain
}

// Clear releases the statement. Views returned earlier stay valid. Clear is
// idempotent.
func (s *Statement) Clear() {
	s.state = cleared{}
}

// =============================================================================
// Rendering
// =============================================================================

// Render appends the statement to ctx. The statement must be Prepared.
func (s *Statement) Render(ctx *compile.Context) (err error) {
	defer sqlerr.Recover(&err)

	st, ok := s.state.(*prepared)
	if !ok {
		return sqlerr.Usage("Render", "%s statement is %s; only prepared statements render", s.kind, s.Phase())
	}
	c, v := st.c, st.v

	switch s.kind {
	case SelectStatement:
		return s.renderSelect(ctx, c, v)
	case InsertStatement:
		return s.renderInsert(ctx, c)
	case UpdateStatement:
		return s.renderUpdate(ctx, c, v)
	case DeleteStatement:
		return s.renderDelete(ctx, c, v)
	default:
		return fmt.Errorf("unknown statement kind: %s", s.kind)
	}
}

func renderTable(ctx *compile.Context, t Table) error {
	if err := ctx.WriteIdentifier(t.Name); err != nil {
		return err
	}
	if t.Alias != "" {
		ctx.WriteString(" AS ")
		if err := ctx.WriteIdentifier(t.Alias); err != nil {
			return fmt.Errorf("invalid table alias: %w", err)
		}
	}
	return nil
}

func renderWhere(ctx *compile.Context, where Expr) error {
	if where == nil {
		return nil
	}
	ctx.WriteString(" WHERE ")
	return where.Render(ctx)
}

func renderOrderLimit(ctx *compile.Context, c *clauses) error {
	if len(c.orderBy) > 0 {
		ctx.WriteString(" ORDER BY ")
		if err := renderOrderItems(ctx, c.orderBy); err != nil {
			return err
		}
	}
	if c.limit != nil {
		ctx.WriteString(" LIMIT ")
		ctx.AppendParameter(types.BigIntType, *c.limit)
	}
	return nil
}

func (s *Statement) renderSelect(ctx *compile.Context, c *clauses, v *views) error {
	ctx.WriteString("SELECT ")
	if c.distinct {
		ctx.WriteString("DISTINCT ")
	}
	if len(c.items) == 0 {
		ctx.WriteString("*")
	}
	for i, item := range c.items {
		if i > 0 {
			ctx.WriteString(", ")
		}
		if err := item.Expr.Render(ctx); err != nil {
			return err
		}
		if item.Alias != "" {
			ctx.WriteString(" AS ")
			if err := ctx.WriteIdentifier(item.Alias); err != nil {
				return fmt.Errorf("invalid column alias: %w", err)
			}
		}
	}

	ctx.WriteString(" FROM ")
	if err := renderTable(ctx, s.table); err != nil {
		return err
	}

	for _, j := range c.joins {
		ctx.WriteString(" " + string(j.Kind) + " JOIN ")
		if err := renderTable(ctx, j.Table); err != nil {
			return err
		}
		ctx.WriteString(" ON ")
		if err := j.On.Render(ctx); err != nil {
			return err
		}
	}

	if err := renderWhere(ctx, v.where); err != nil {
		return err
	}

	if len(c.groupBy) > 0 {
		ctx.WriteString(" GROUP BY ")
		if err := renderList(ctx, c.groupBy); err != nil {
			return err
		}
	}

	if len(c.having) > 0 {
		ctx.WriteString(" HAVING ")
		if err := And(c.having...).Render(ctx); err != nil {
			return err
		}
	}

	if err := renderOrderLimit(ctx, c); err != nil {
		return err
	}

	if c.offset != nil {
		ctx.WriteString(" OFFSET ")
		ctx.AppendParameter(types.BigIntType, *c.offset)
	}
	return nil
}

func (s *Statement) renderInsert(ctx *compile.Context, c *clauses) error {
	ctx.WriteString("INSERT INTO ")
	if err := ctx.WriteIdentifier(s.table.Name); err != nil {
		return err
	}

	ctx.WriteString(" (")
	for i, col := range c.insertCols {
		if i > 0 {
			ctx.WriteString(", ")
		}
		if err := ctx.WriteIdentifier(col.Name); err != nil {
			return err
		}
	}
	ctx.WriteString(") VALUES ")

	for i, row := range c.rows {
		if i > 0 {
			ctx.WriteString(", ")
		}
		ctx.WriteString("(")
		if err := renderList(ctx, row); err != nil {
			return err
		}
		ctx.WriteString(")")
	}

	return renderReturning(ctx, c)
}

func renderReturning(ctx *compile.Context, c *clauses) error {
	if len(c.returning) == 0 {
		return nil
	}
	if err := ctx.Require(compile.FeatureReturning, "RETURNING"); err != nil {
		return err
	}
	ctx.WriteString(" RETURNING ")
	for i, col := range c.returning {
		if i > 0 {
			ctx.WriteString(", ")
		}
		if err := ctx.WriteIdentifier(col.Name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Statement) renderUpdate(ctx *compile.Context, c *clauses, v *views) error {
	ctx.WriteString("UPDATE ")
	if err := renderTable(ctx, s.table); err != nil {
		return err
	}

	ctx.WriteString(" SET ")
	for i, a := range c.sets {
		if i > 0 {
			ctx.WriteString(", ")
		}
		if err := ctx.WriteIdentifier(a.Column.Name); err != nil {
			return err
		}
		ctx.WriteString(" = ")
		if err := a.Value.Render(ctx); err != nil {
			return err
		}
	}

	if err := renderWhere(ctx, v.where); err != nil {
		return err
	}
	if err := requireOrderLimit(ctx, c, "UPDATE"); err != nil {
		return err
	}
	if err := renderOrderLimit(ctx, c); err != nil {
		return err
	}
	return renderReturning(ctx, c)
}

func (s *Statement) renderDelete(ctx *compile.Context, c *clauses, v *views) error {
	ctx.WriteString("DELETE FROM ")
	if err := renderTable(ctx, s.table); err != nil {
		return err
	}
	if err := renderWhere(ctx, v.where); err != nil {
		return err
	}
	if err := requireOrderLimit(ctx, c, "DELETE"); err != nil {
		return err
	}
	if err := renderOrderLimit(ctx, c); err != nil {
		return err
	}
	return renderReturning(ctx, c)
}

func requireOrderLimit(ctx *compile.Context, c *clauses, verb string) error {
	if len(c.orderBy) == 0 && c.limit == nil {
		return nil
	}
	return ctx.Require(compile.FeatureUpdateOrderLimit, verb+" ... ORDER BY/LIMIT")
}

// =============================================================================
// Describe
// =============================================================================

// String describes the statement without a dialect. It works in every phase.
func (s *Statement) String() string {
	c := s.parts()
	if c == nil {
		return "<cleared " + string(s.kind) + " " + s.table.String() + ">"
	}
	if st, ok := s.state.(*building); ok {
		if st.describing {
			return "<cycle " + string(s.kind) + " " + s.table.String() + ">"
		}
		st.describing = true
		defer func() { st.describing = false }()
	}

	var b strings.Builder
	switch s.kind {
	case SelectStatement:
		b.WriteString("SELECT ")
		if c.distinct {
			b.WriteString("DISTINCT ")
		}
		if len(c.items) == 0 {
			b.WriteString("*")
		}
		for i, it := range c.items {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(it.String())
		}
		b.WriteString(" FROM " + s.table.String())
		for _, j := range c.joins {
			b.WriteString(" " + string(j.Kind) + " JOIN " + j.Table.String() + " ON " + describe(j.On))
		}
	case InsertStatement:
		cols := make([]string, len(c.insertCols))
		for i, col := range c.insertCols {
			cols[i] = col.Name
		}
		b.WriteString("INSERT INTO " + s.table.Name + " (" + strings.Join(cols, ", ") + ") VALUES ")
		for i, r := range c.rows {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(" + describeList(r) + ")")
		}
	case UpdateStatement:
		b.WriteString("UPDATE " + s.table.String() + " SET ")
		for i, a := range c.sets {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.Column.Name + " = " + describe(a.Value))
		}
	case DeleteStatement:
		b.WriteString("DELETE FROM " + s.table.String())
	}

	if len(c.where) > 0 {
		b.WriteString(" WHERE " + joinDescribed(c.where, " AND "))
	}
	if len(c.groupBy) > 0 {
		b.WriteString(" GROUP BY " + describeList(c.groupBy))
	}
	if len(c.having) > 0 {
		b.WriteString(" HAVING " + joinDescribed(c.having, " AND "))
	}
	if len(c.orderBy) > 0 {
		b.WriteString(" ORDER BY " + describeOrder(c.orderBy))
	}
	if c.limit != nil {
		b.WriteString(" LIMIT " + strconv.FormatInt(*c.limit, 10))
	}
	if c.offset != nil {
		b.WriteString(" OFFSET " + strconv.FormatInt(*c.offset, 10))
	}
	if len(c.returning) > 0 {
		cols := make([]string, len(c.returning))
		for i, col := range c.returning {
			cols[i] = col.Name
		}
		b.WriteString(" RETURNING " + strings.Join(cols, ", "))
	}
	return b.String()
}

func joinDescribed(exprs []Expr, sep string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = describe(e)
	}
	return strings.Join(parts, sep)
}
