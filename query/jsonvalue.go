package query

import (
	"strings"

	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/sqlerr"
	"github.com/shipq/critq/types"
)

// JSONActionKind is what JSON_VALUE does on an empty result or an error.
type JSONActionKind string

const (
	JSONOnNull    JSONActionKind = "NULL"
	JSONOnError   JSONActionKind = "ERROR"
	JSONOnDefault JSONActionKind = "DEFAULT"
)

// JSONAction is an ON EMPTY or ON ERROR behavior.
type JSONAction struct {
	Kind  JSONActionKind
	Value any // DEFAULT value, inlined
}

// NullAction returns NULL ON ...
func NullAction() JSONAction { return JSONAction{Kind: JSONOnNull} }

// ErrorAction returns ERROR ON ...
func ErrorAction() JSONAction { return JSONAction{Kind: JSONOnError} }

// DefaultAction returns DEFAULT v ON ...
func DefaultAction(v any) JSONAction { return JSONAction{Kind: JSONOnDefault, Value: v} }

func (a JSONAction) String() string {
	if a.Kind == JSONOnDefault {
		return "DEFAULT " + describeValue(a.Value)
	}
	return string(a.Kind)
}

func (a JSONAction) render(ctx *compile.Context) error {
	if a.Kind != JSONOnDefault {
		ctx.WriteString(string(a.Kind))
		return nil
	}
	ctx.WriteString("DEFAULT ")
	return ctx.AppendLiteral(types.OfValue(a.Value), a.Value)
}

// JSONValueExpr extracts a scalar from a JSON document:
//
//	JSON_VALUE(doc, path [RETURNING t] [action ON EMPTY] [action ON ERROR])
//
// Returning, OnEmpty and OnError may each be set once; ResetEvents clears
// OnEmpty and OnError. Without RETURNING the type stays pending until the
// statement is finalized, where it becomes TEXT.
type JSONValueExpr struct {
	clauseState
	doc  Expr
	path string
	ref  *types.Ref

	returning setting[types.Type]
	onEmpty   setting[JSONAction]
	onError   setting[JSONAction]
}

// JSONValue starts a JSON_VALUE extraction of path from doc.
func JSONValue(doc any, path string) *JSONValueExpr {
	if !strings.HasPrefix(path, "$") {
		panic(sqlerr.UsageArgs("JSON_VALUE", []any{path}, "path must start with $"))
	}
	return &JSONValueExpr{
		doc:  toExpr(doc),
		path: path,
		ref:  types.Pending("JSON_VALUE " + path),
	}
}

func (j *JSONValueExpr) TypeRef() *types.Ref { return j.ref }
func (j *JSONValueExpr) Kind() NodeKind      { return KindJSONValue }
func (*JSONValueExpr) exprNode()             {}

// Path returns the JSON path.
func (j *JSONValueExpr) Path() string { return j.path }

// Returning sets the result type.
func (j *JSONValueExpr) Returning(t types.Type) *JSONValueExpr {
	j.mutable("Returning")
	j.returning.put("Returning", "RETURNING", t)
	j.ref.Bind(t)
	return j
}

// OnEmpty sets the behavior when the path selects nothing.
func (j *JSONValueExpr) OnEmpty(a JSONAction) *JSONValueExpr {
	j.mutable("OnEmpty")
	checkAction("OnEmpty", a)
	j.onEmpty.put("OnEmpty", "ON EMPTY", a)
	return j
}

// OnError sets the behavior when extraction fails.
func (j *JSONValueExpr) OnError(a JSONAction) *JSONValueExpr {
	j.mutable("OnError")
	checkAction("OnError", a)
	j.onError.put("OnError", "ON ERROR", a)
	return j
}

// ResetEvents clears ON EMPTY and ON ERROR so they can be set again.
func (j *JSONValueExpr) ResetEvents() *JSONValueExpr {
	j.mutable("ResetEvents")
	j.onEmpty.reset()
	j.onError.reset()
	return j
}

func checkAction(op string, a JSONAction) {
	switch a.Kind {
	case JSONOnNull, JSONOnError:
		if a.Value != nil {
			panic(sqlerr.UsageArgs(op, []any{a.Value}, "%s takes no value", a.Kind))
		}
	case JSONOnDefault:
	default:
		panic(sqlerr.UsageArgs(op, []any{string(a.Kind)}, "unknown action; allowed: NULL, ERROR, DEFAULT"))
	}
}

// bindDefault gives a JSON_VALUE without RETURNING its TEXT type.
func (j *JSONValueExpr) bindDefault() {
	if j.ref.IsPending() {
		j.ref.Bind(types.TextType)
	}
}

func (j *JSONValueExpr) hasOptions() bool {
	return j.returning.set || j.onEmpty.set || j.onError.set
}

func (j *JSONValueExpr) String() string {
	var b strings.Builder
	b.WriteString("JSON_VALUE(")
	b.WriteString(describe(j.doc))
	b.WriteString(", ")
	b.WriteString(describeValue(j.path))
	if j.returning.set {
		b.WriteString(" RETURNING " + j.returning.v.String())
	}
	if j.onEmpty.set {
		b.WriteString(" " + j.onEmpty.v.String() + " ON EMPTY")
	}
	if j.onError.set {
		b.WriteString(" " + j.onError.v.String() + " ON ERROR")
	}
	b.WriteString(")")
	return b.String()
}

func (j *JSONValueExpr) Render(ctx *compile.Context) error {
	doc := func() error { return j.doc.Render(ctx) }
	path := func() error { return ctx.AppendLiteral(types.VarCharType, j.path) }

	if !ctx.Supports(compile.FeatureJSONValue) {
		if j.hasOptions() {
			return ctx.Require(compile.FeatureJSONValue, "JSON_VALUE with RETURNING/ON EMPTY/ON ERROR")
		}
		return ctx.Dialect().WriteJSONExtract(ctx, doc, path)
	}

	ctx.WriteString("JSON_VALUE(")
	if err := doc(); err != nil {
		return err
	}
	ctx.WriteString(", ")
	if err := path(); err != nil {
		return err
	}
	if j.returning.set {
		name, ok := ctx.Dialect().TypeName(j.returning.v)
		if !ok {
			return ctx.Unsupported("JSON_VALUE RETURNING " + j.returning.v.String())
		}
		ctx.WriteString(" RETURNING " + name)
	}
	if j.onEmpty.set {
		ctx.WriteString(" ")
		if err := j.onEmpty.v.render(ctx); err != nil {
			return err
		}
		ctx.WriteString(" ON EMPTY")
	}
	if j.onError.set {
		ctx.WriteString(" ")
		if err := j.onError.v.render(ctx); err != nil {
			return err
		}
		ctx.WriteString(" ON ERROR")
	}
	ctx.WriteString(")")
	return nil
}
