package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shipq/critq/sqlerr"
	"github.com/shipq/critq/types"
)

// Document is a JSON statement document: a table schema, one statement and
// optional named parameter values.
//
//	{
//	  "schema": {"tables": {"users": {"id": "bigint", "email": "varchar?"}}},
//	  "statement": {"kind": "select", "table": "users",
//	                "columns": [{"expr": {"col": "id"}}],
//	                "where": [{"op": "=", "args": [{"col": "id"}, {"param": "id", "type": "bigint"}]}]},
//	  "params": {"id": 7}
//	}
//
// A column declaration ending in "?" is nullable.
type Document struct {
	Schema    Schema         `json:"schema"`
	Statement StatementDoc   `json:"statement"`
	Params    map[string]any `json:"params,omitempty"`
}

// Schema declares the tables a document may reference.
type Schema struct {
	Tables map[string]map[string]string `json:"tables"`
}

// StatementDoc is the JSON form of a statement.
type StatementDoc struct {
	Kind          string          `json:"kind"`
	Table         string          `json:"table"`
	Alias         string          `json:"alias,omitempty"`
	Distinct      bool            `json:"distinct,omitempty"`
	Columns       []SelectItemDoc `json:"columns,omitempty"`
	Joins         []JoinDoc       `json:"joins,omitempty"`
	Where         []ExprDoc       `json:"where,omitempty"`
	GroupBy       []ExprDoc       `json:"group_by,omitempty"`
	Having        []ExprDoc       `json:"having,omitempty"`
	OrderBy       []OrderDoc      `json:"order_by,omitempty"`
	Limit         *int64          `json:"limit,omitempty"`
	Offset        *int64          `json:"offset,omitempty"`
	Set           []SetDoc        `json:"set,omitempty"`
	InsertColumns []string        `json:"insert_columns,omitempty"`
	Values        [][]ExprDoc     `json:"values,omitempty"`
	Returning     []string        `json:"returning,omitempty"`
}

// SelectItemDoc is one select list entry.
type SelectItemDoc struct {
	Expr ExprDoc `json:"expr"`
	As   string  `json:"as,omitempty"`
}

// JoinDoc is one JOIN.
type JoinDoc struct {
	Kind  string  `json:"kind"`
	Table string  `json:"table"`
	Alias string  `json:"alias,omitempty"`
	On    ExprDoc `json:"on"`
}

// OrderDoc is one ORDER BY item.
type OrderDoc struct {
	Expr ExprDoc `json:"expr"`
	Desc bool    `json:"desc,omitempty"`
}

// SetDoc is one UPDATE assignment.
type SetDoc struct {
	Column string  `json:"column"`
	Value  ExprDoc `json:"value"`
}

// OverDoc is a window specification.
type OverDoc struct {
	PartitionBy []ExprDoc  `json:"partition_by,omitempty"`
	OrderBy     []OrderDoc `json:"order_by,omitempty"`
	Frame       *FrameDoc  `json:"frame,omitempty"`
}

// FrameDoc is a window frame. Bounds are "unbounded preceding",
// "N preceding", "current row", "N following" or "unbounded following".
type FrameDoc struct {
	Unit  string `json:"unit"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// ActionDoc is a JSON_VALUE ON EMPTY / ON ERROR action.
type ActionDoc struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

// ExprDoc is the JSON form of an expression. Exactly one of the selecting
// keys (col, outer, param, value, lit, null, star, op, list, call, agg, cast,
// window, json_value, group_concat, subquery, exists) is set.
type ExprDoc struct {
	Col   string          `json:"col,omitempty"`
	Outer string          `json:"outer,omitempty"`
	Param string          `json:"param,omitempty"`
	Type  string          `json:"type,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	Lit   json.RawMessage `json:"lit,omitempty"`
	Null  bool            `json:"null,omitempty"`
	Star  bool            `json:"star,omitempty"`

	Op   string    `json:"op,omitempty"`
	Args []ExprDoc `json:"args,omitempty"`
	List []ExprDoc `json:"list,omitempty"`

	Call     string   `json:"call,omitempty"`
	Agg      string   `json:"agg,omitempty"`
	Modifier string   `json:"modifier,omitempty"`
	Cast     *ExprDoc `json:"cast,omitempty"`

	Window string   `json:"window,omitempty"`
	Over   *OverDoc `json:"over,omitempty"`
	Nulls  string   `json:"nulls,omitempty"` // "respect" or "ignore"
	From   string   `json:"from,omitempty"`  // "first" or "last"

	JSONValue *ExprDoc   `json:"json_value,omitempty"`
	Path      string     `json:"path,omitempty"`
	Returning string     `json:"returning,omitempty"`
	OnEmpty   *ActionDoc `json:"on_empty,omitempty"`
	OnError   *ActionDoc `json:"on_error,omitempty"`

	GroupConcat *ExprDoc   `json:"group_concat,omitempty"`
	Distinct    bool       `json:"distinct,omitempty"`
	OrderBy     []OrderDoc `json:"order_by,omitempty"`
	Separator   *string    `json:"separator,omitempty"`

	Subquery  *StatementDoc `json:"subquery,omitempty"`
	Exists    *StatementDoc `json:"exists,omitempty"`
	NotExists bool          `json:"not_exists,omitempty"`
}

// ParseDocument parses a statement document. Numbers keep their exact form:
// integers become int64 and everything else float64.
func ParseDocument(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if doc.Statement.Kind == "" {
		return nil, fmt.Errorf("parse document: statement.kind is required")
	}
	for name, v := range doc.Params {
		doc.Params[name] = normalizeJSON(v)
	}
	return &doc, nil
}

// Decode builds the document's statement through the session and returns it
// prepared.
func (s *Session) Decode(doc *Document) (*Statement, error) {
	if doc == nil {
		return nil, fmt.Errorf("decode: nil document")
	}
	d := &decoder{sess: s, schema: doc.Schema}
	return d.statement(&doc.Statement)
}

// DecodeDocument parses data and builds its statement with a fresh session.
func DecodeDocument(data []byte, opts ...SessionOption) (*Statement, *Document, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, nil, err
	}
	stmt, err := NewSession(opts...).Decode(doc)
	if err != nil {
		return nil, doc, err
	}
	return stmt, doc, nil
}

// normalizeJSON turns json.Number into int64 or float64.
func normalizeJSON(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []any:
		for i := range val {
			val[i] = normalizeJSON(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalizeJSON(val[k])
		}
		return val
	}
	return v
}

// decoder turns documents into builder calls. Problems panic with usage
// errors so the session reports them with the scope path.
type decoder struct {
	sess   *Session
	schema Schema
	frames [][]Table // visible tables per open statement, innermost last
}

func docError(op, format string, args ...any) *sqlerr.UsageError {
	return sqlerr.Usage("document: "+op, format, args...)
}

func (d *decoder) table(name, alias string) Table {
	if _, ok := d.schema.Tables[name]; !ok {
		panic(docError("table", "unknown table %q", name))
	}
	t := NewTable(name)
	if alias != "" {
		t = t.As(alias)
	}
	return t
}

func (d *decoder) push(t Table) { d.frames = append(d.frames, []Table{t}) }
func (d *decoder) pop()         { d.frames = d.frames[:len(d.frames)-1] }

func (d *decoder) addJoin(t Table) {
	top := len(d.frames) - 1
	d.frames[top] = append(d.frames[top], t)
}

// column resolves "col" against the innermost statement table, or
// "table.col" against the visible tables. Outer references skip the
// innermost statement.
func (d *decoder) column(ref string, outer bool) Column {
	frames := d.frames
	if outer {
		if len(frames) < 2 {
			panic(docError("outer", "%q: no enclosing statement", ref))
		}
		frames = frames[:len(frames)-1]
	}
	if len(frames) == 0 {
		panic(docError("col", "%q: no statement in scope", ref))
	}

	qualifier, name, qualified := strings.Cut(ref, ".")
	if !qualified {
		name = qualifier
		qualifier = ""
	}

	for i := len(frames) - 1; i >= 0; i-- {
		for _, t := range frames[i] {
			if qualifier != "" && qualifier != t.Ref() && qualifier != t.Name {
				continue
			}
			decl, ok := d.schema.Tables[t.Name][name]
			if !ok {
				if qualifier != "" {
					panic(docError("col", "unknown column %q in table %s", name, t.Name))
				}
				continue
			}
			return columnFromDecl(t, name, decl)
		}
		if qualifier == "" {
			break
		}
	}
	panic(docError("col", "unknown column %q", ref))
}

func columnFromDecl(t Table, name, decl string) Column {
	nullable := strings.HasSuffix(decl, "?")
	typ := parseType("col", strings.TrimSuffix(decl, "?"))
	if nullable {
		return t.NullColumn(name, typ)
	}
	return t.Column(name, typ)
}

func parseType(op, name string) types.Type {
	k, err := types.ParseKind(name)
	if err != nil {
		panic(docError(op, "%v", err))
	}
	return types.Of(k)
}

// =============================================================================
// Statements
// =============================================================================

func (d *decoder) statement(sd *StatementDoc) (*Statement, error) {
	switch strings.ToLower(sd.Kind) {
	case "select":
		return d.selectStatement(sd)
	case "update":
		t := d.safeTable(sd)
		return d.sess.Update(t, func(b *UpdateBuilder) {
			d.push(t)
			defer d.pop()
			d.fillUpdate(b, sd)
		})
	case "delete":
		t := d.safeTable(sd)
		return d.sess.Delete(t, func(b *DeleteBuilder) {
			d.push(t)
			defer d.pop()
			d.fillDelete(b, sd)
		})
	case "insert":
		t := d.safeTable(sd)
		return d.sess.Insert(t, func(b *InsertBuilder) {
			d.push(t)
			defer d.pop()
			d.fillInsert(b, sd)
		})
	default:
		return nil, docError("statement", "unknown statement kind %q", sd.Kind)
	}
}

// safeTable resolves the statement table; an unknown table becomes a plain
// table reference so the session reports the error with its frame.
func (d *decoder) safeTable(sd *StatementDoc) Table {
	t := NewTable(sd.Table)
	if sd.Alias != "" {
		t = t.As(sd.Alias)
	}
	return t
}

func (d *decoder) selectStatement(sd *StatementDoc) (*Statement, error) {
	t := d.safeTable(sd)
	return d.sess.Select(t, func(b *SelectBuilder) {
		d.table(sd.Table, sd.Alias)
		d.push(t)
		defer d.pop()
		d.fillSelect(b, sd)
	})
}

func (d *decoder) nested(op string, sd *StatementDoc) *Statement {
	if !strings.EqualFold(sd.Kind, "select") {
		panic(docError(op, "nested statements must be SELECT, got %q", sd.Kind))
	}
	stmt, err := d.selectStatement(sd)
	if err != nil {
		panic(raisable(err))
	}
	return stmt
}

func (d *decoder) fillSelect(b *SelectBuilder, sd *StatementDoc) {
	if sd.Distinct {
		b.Distinct()
	}
	for _, j := range sd.Joins {
		t := d.table(j.Table, j.Alias)
		d.addJoin(t)
		kind := JoinKind(strings.ToUpper(j.Kind))
		if kind == "" {
			kind = InnerJoin
		}
		b.Join(kind, t, d.expr(&j.On))
	}
	for i := range sd.Columns {
		c := &sd.Columns[i]
		b.Columns(SelectItem{Expr: d.expr(&c.Expr), Alias: c.As})
	}
	b.Where(d.exprs(sd.Where)...)
	for _, g := range d.exprs(sd.GroupBy) {
		b.GroupBy(g)
	}
	b.Having(d.exprs(sd.Having)...)
	b.OrderBy(d.orderItems(sd.OrderBy)...)
	if sd.Limit != nil {
		b.Limit(*sd.Limit)
	}
	if sd.Offset != nil {
		b.Offset(*sd.Offset)
	}
	d.rejectDML(sd)
}

func (d *decoder) rejectDML(sd *StatementDoc) {
	if len(sd.Set) > 0 || len(sd.InsertColumns) > 0 || len(sd.Values) > 0 || len(sd.Returning) > 0 {
		panic(docError("statement", "%s statements take no set, insert_columns, values or returning", sd.Kind))
	}
}

func (d *decoder) fillUpdate(b *UpdateBuilder, sd *StatementDoc) {
	d.table(sd.Table, sd.Alias)
	for i := range sd.Set {
		s := &sd.Set[i]
		b.Set(d.column(s.Column, false), d.expr(&s.Value))
	}
	b.Where(d.exprs(sd.Where)...)
	b.OrderBy(d.orderItems(sd.OrderBy)...)
	if sd.Limit != nil {
		b.Limit(*sd.Limit)
	}
	b.Returning(d.columns(sd.Returning)...)
}

func (d *decoder) fillDelete(b *DeleteBuilder, sd *StatementDoc) {
	d.table(sd.Table, sd.Alias)
	b.Where(d.exprs(sd.Where)...)
	b.OrderBy(d.orderItems(sd.OrderBy)...)
	if sd.Limit != nil {
		b.Limit(*sd.Limit)
	}
	b.Returning(d.columns(sd.Returning)...)
}

func (d *decoder) fillInsert(b *InsertBuilder, sd *StatementDoc) {
	d.table(sd.Table, sd.Alias)
	if len(sd.InsertColumns) > 0 {
		b.Columns(d.columns(sd.InsertColumns)...)
	}
	for _, row := range sd.Values {
		vals := make([]any, len(row))
		for i := range row {
			vals[i] = d.expr(&row[i])
		}
		b.Values(vals...)
	}
	b.Returning(d.columns(sd.Returning)...)
}

func (d *decoder) columns(names []string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = d.column(n, false)
	}
	return cols
}

// =============================================================================
// Expressions
// =============================================================================

func (d *decoder) exprs(docs []ExprDoc) []Expr {
	out := make([]Expr, len(docs))
	for i := range docs {
		out[i] = d.expr(&docs[i])
	}
	return out
}

func (d *decoder) orderItems(docs []OrderDoc) []OrderItem {
	out := make([]OrderItem, len(docs))
	for i := range docs {
		out[i] = OrderItem{Expr: d.expr(&docs[i].Expr), Desc: docs[i].Desc}
	}
	return out
}

func (d *decoder) expr(e *ExprDoc) Expr {
	switch {
	case e.Col != "":
		return d.column(e.Col, false).Expr()
	case e.Outer != "":
		return d.sess.Outer(d.column(e.Outer, true))
	case e.Param != "":
		if e.Type == "" {
			panic(docError("param", "parameter %q needs a type", e.Param))
		}
		return ParamOf(e.Param, parseType("param", e.Type))
	case len(e.Value) > 0:
		v := d.scalar("value", e.Value, e.Type)
		if e.Type != "" {
			return TypedValue(parseType("value", e.Type), v)
		}
		return Value(v)
	case len(e.Lit) > 0:
		return Literal(d.scalar("lit", e.Lit, e.Type))
	case e.Null:
		return Null()
	case e.Star:
		return Star()
	case e.Op != "":
		return d.operator(e)
	case e.List != nil:
		vals := make([]any, len(e.List))
		for i := range e.List {
			vals[i] = d.expr(&e.List[i])
		}
		return List(vals...)
	case e.Call != "":
		return Call(e.Call, d.anyArgs(e.Args)...)
	case e.Agg != "":
		return d.aggregate(e)
	case e.Cast != nil:
		return Cast(d.expr(e.Cast), parseType("cast", e.Type))
	case e.Window != "":
		return d.window(e)
	case e.JSONValue != nil:
		return d.jsonValue(e)
	case e.GroupConcat != nil:
		return d.groupConcat(e)
	case e.Subquery != nil:
		return Subquery(d.nested("subquery", e.Subquery))
	case e.Exists != nil:
		if e.NotExists {
			return NotExists(d.nested("exists", e.Exists))
		}
		return Exists(d.nested("exists", e.Exists))
	default:
		panic(docError("expr", "empty expression"))
	}
}

func (d *decoder) anyArgs(docs []ExprDoc) []any {
	out := make([]any, len(docs))
	for i := range docs {
		out[i] = d.expr(&docs[i])
	}
	return out
}

// scalar decodes a JSON scalar. A string with a temporal type parses as
// RFC 3339.
func (d *decoder) scalar(op string, raw json.RawMessage, typeName string) any {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		panic(docError(op, "invalid value: %v", err))
	}
	v = normalizeJSON(v)
	switch v.(type) {
	case []any, map[string]any:
		panic(docError(op, "value must be a scalar, got %s", string(raw)))
	}
	if s, ok := v.(string); ok && typeName != "" && parseType(op, typeName).Kind().IsTemporal() {
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			panic(docError(op, "invalid %s %q: %v", typeName, s, err))
		}
		return ts
	}
	return v
}

func (d *decoder) operator(e *ExprDoc) Expr {
	op := strings.ToUpper(strings.TrimSpace(e.Op))
	args := d.exprs(e.Args)

	need := func(n int) {
		if len(args) != n {
			panic(sqlerr.UsageArgs(op, exprArgs(args), "expects exactly %d arguments, got %d", n, len(args)))
		}
	}

	switch op {
	case "AND", "OR":
		if len(args) == 0 {
			panic(docError(op, "needs at least one argument"))
		}
		if op == "AND" {
			return And(args...)
		}
		return Or(args...)
	case "NOT":
		need(1)
		return Not(args[0])
	case "NEG":
		need(1)
		return Neg(args[0])
	case "IS NULL":
		need(1)
		return IsNull(args[0])
	case "IS NOT NULL":
		need(1)
		return IsNotNull(args[0])
	case "!=":
		op = string(OpNe)
	}

	switch bop := BinaryOp(op); bop {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLike, OpILike, OpIn, OpNotIn,
		OpAdd, OpSub, OpMul, OpDiv:
		need(2)
		return Binary(args[0], bop, args[1])
	}
	panic(docError("op", "unknown operator %q", e.Op))
}

func (d *decoder) aggregate(e *ExprDoc) Expr {
	mod, ok := ParseModifier(e.Modifier)
	if !ok {
		// Let Aggregate report the invalid modifier with its arguments.
		mod = Modifier(e.Modifier)
	}
	switch len(e.Args) {
	case 0:
		return Aggregate(e.Agg, mod, nil)
	case 1:
		return Aggregate(e.Agg, mod, d.expr(&e.Args[0]))
	default:
		args := d.exprs(e.Args)
		panic(sqlerr.UsageArgs(strings.ToUpper(e.Agg), exprArgs(args),
			"expects exactly 1 arguments, got %d", len(args)))
	}
}

func (d *decoder) window(e *ExprDoc) Expr {
	w := Window(e.Window, d.anyArgs(e.Args)...)
	switch strings.ToLower(e.From) {
	case "":
	case "first":
		w.FromFirst()
	case "last":
		w.FromLast()
	default:
		panic(docError("window", "from must be first or last, got %q", e.From))
	}
	switch strings.ToLower(e.Nulls) {
	case "":
	case "respect":
		w.RespectNulls()
	case "ignore":
		w.IgnoreNulls()
	default:
		panic(docError("window", "nulls must be respect or ignore, got %q", e.Nulls))
	}
	if e.Over != nil {
		w.Over(d.over(e.Over))
	}
	return w
}

func (d *decoder) over(o *OverDoc) WindowSpec {
	var spec WindowSpec
	if len(o.PartitionBy) > 0 {
		spec = spec.PartitionBy(d.anyArgs(o.PartitionBy)...)
	}
	if len(o.OrderBy) > 0 {
		spec = spec.OrderBy(d.orderItems(o.OrderBy)...)
	}
	if f := o.Frame; f != nil {
		start, end := parseBound(f.Start), parseBound(f.End)
		switch strings.ToUpper(f.Unit) {
		case string(FrameRows):
			spec = spec.Rows(start, end)
		case string(FrameRange):
			spec = spec.Range(start, end)
		default:
			panic(docError("frame", "unit must be ROWS or RANGE, got %q", f.Unit))
		}
	}
	return spec
}

func parseBound(s string) FrameBound {
	fields := strings.Fields(strings.ToLower(s))
	switch {
	case len(fields) == 2 && fields[0] == "unbounded" && fields[1] == "preceding":
		return UnboundedPreceding()
	case len(fields) == 2 && fields[0] == "unbounded" && fields[1] == "following":
		return UnboundedFollowing()
	case len(fields) == 2 && fields[0] == "current" && fields[1] == "row":
		return CurrentRow()
	case len(fields) == 2:
		var n uint64
		if _, err := fmt.Sscanf(fields[0], "%d", &n); err == nil {
			switch fields[1] {
			case "preceding":
				return Preceding(n)
			case "following":
				return Following(n)
			}
		}
	}
	panic(docError("frame", "invalid frame bound %q", s))
}

func (d *decoder) jsonValue(e *ExprDoc) Expr {
	j := JSONValue(d.expr(e.JSONValue), e.Path)
	if e.Returning != "" {
		j.Returning(parseType("returning", e.Returning))
	}
	if e.OnEmpty != nil {
		j.OnEmpty(d.action(e.OnEmpty))
	}
	if e.OnError != nil {
		j.OnError(d.action(e.OnError))
	}
	return j
}

func (d *decoder) action(a *ActionDoc) JSONAction {
	kind := JSONActionKind(strings.ToUpper(a.Kind))
	if kind != JSONOnDefault {
		return JSONAction{Kind: kind}
	}
	if len(a.Value) == 0 {
		panic(docError("action", "DEFAULT needs a value"))
	}
	return DefaultAction(d.scalar("action", a.Value, ""))
}

func (d *decoder) groupConcat(e *ExprDoc) Expr {
	mod := NoModifier
	if e.Distinct {
		mod = ModDistinct
	}
	g := GroupConcat(mod, d.expr(e.GroupConcat))
	if len(e.OrderBy) > 0 {
		g.OrderBy(d.orderItems(e.OrderBy)...)
	}
	if e.Separator != nil {
		g.Separator(*e.Separator)
	}
	return g
}
