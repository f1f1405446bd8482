// Package compile holds the per-render-pass compilation context and the
// dialect strategies.
//
// A Context is created for one render pass over one statement. It owns the
// SQL buffer and the ordered parameter list, numbers placeholders across
// nested subqueries, and answers capability questions for the target
// dialect and server version. A Context is single-use and must not be shared
// between goroutines; render a prepared statement concurrently by giving each
// goroutine its own Context.
package compile

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/shipq/critq/sqlerr"
	"github.com/shipq/critq/types"
)

// Context accumulates SQL text and bind parameters for one render pass.
type Context struct {
	dialect  Dialect
	version  *version.Version
	registry types.Registry

	b      strings.Builder
	params []Param
	depth  int
	done   bool
}

// Option configures a Context.
type Option func(*Context) error

// WithVersion renders for the given server version instead of the dialect
// default.
func WithVersion(v string) Option {
	return func(c *Context) error {
		if v == "" {
			return nil
		}
		parsed, err := version.NewVersion(v)
		if err != nil {
			return fmt.Errorf("invalid %s version %q: %w", c.dialect.Name(), v, err)
		}
		c.version = parsed
		return nil
	}
}

// WithRegistry sets the registry used by Result.Args to encode values.
func WithRegistry(r types.Registry) Option {
	return func(c *Context) error {
		c.registry = r
		return nil
	}
}

// NewContext returns a fresh context for dialect d.
func NewContext(d Dialect, opts ...Option) (*Context, error) {
	if d == nil {
		return nil, fmt.Errorf("compile: nil dialect")
	}
	c := &Context{dialect: d, version: d.DefaultVersion()}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Dialect returns the target dialect.
func (c *Context) Dialect() Dialect { return c.dialect }

// Version returns the server version being rendered for.
func (c *Context) Version() *version.Version { return c.version }

func (c *Context) mustBeOpen(op string) {
	if c.done {
		panic(sqlerr.Usage(op, "compilation context already produced its result"))
	}
}

// WriteString appends raw SQL text.
func (c *Context) WriteString(s string) {
	c.mustBeOpen("WriteString")
	c.b.WriteString(s)
}

// WriteKeyword appends a keyword surrounded by single spaces.
func (c *Context) WriteKeyword(kw string) {
	c.mustBeOpen("WriteKeyword")
	c.b.WriteByte(' ')
	c.b.WriteString(kw)
	c.b.WriteByte(' ')
}

// WriteIdentifier validates name and appends it quoted for the dialect.
func (c *Context) WriteIdentifier(name string) error {
	c.mustBeOpen("WriteIdentifier")
	if err := ValidateIdentifier(name); err != nil {
		return err
	}
	c.b.WriteString(c.dialect.QuoteIdentifier(name))
	return nil
}

// WriteQualified appends table.column, omitting the table when empty.
func (c *Context) WriteQualified(table, column string) error {
	if table != "" {
		if err := c.WriteIdentifier(table); err != nil {
			return err
		}
		c.b.WriteByte('.')
	}
	return c.WriteIdentifier(column)
}

// AppendParameter appends a placeholder for a bound value and records the
// value, in document order.
func (c *Context) AppendParameter(t types.Type, v any) {
	c.mustBeOpen("AppendParameter")
	c.appendParam(Param{Type: t, Value: v})
}

// AppendNamed appends a placeholder for a named parameter whose value is
// supplied at execution time.
func (c *Context) AppendNamed(name string, t types.Type) {
	c.mustBeOpen("AppendNamed")
	c.appendParam(Param{Name: name, Type: t, Named: true})
}

func (c *Context) appendParam(p Param) {
	p.Index = len(c.params) + 1
	c.params = append(c.params, p)
	c.b.WriteString(c.dialect.Placeholder(p.Index))
}

// AppendLiteral inlines v as a SQL literal. Only scalar values are accepted.
func (c *Context) AppendLiteral(t types.Type, v any) error {
	c.mustBeOpen("AppendLiteral")
	switch val := v.(type) {
	case nil:
		c.b.WriteString("NULL")
	case string:
		c.b.WriteString(c.dialect.QuoteString(val))
	case bool:
		c.b.WriteString(c.dialect.BoolLiteral(val))
	case int:
		c.b.WriteString(strconv.FormatInt(int64(val), 10))
	case int8:
		c.b.WriteString(strconv.FormatInt(int64(val), 10))
	case int16:
		c.b.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		c.b.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		c.b.WriteString(strconv.FormatInt(val, 10))
	case uint:
		c.b.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint8:
		c.b.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint16:
		c.b.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint32:
		c.b.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		c.b.WriteString(strconv.FormatUint(val, 10))
	case float32:
		return c.writeFloat(float64(val), 32)
	case float64:
		return c.writeFloat(val, 64)
	case time.Time:
		c.b.WriteString(c.dialect.QuoteString(val.UTC().Format("2006-01-02 15:04:05.999999")))
	default:
		return fmt.Errorf("unsupported %s literal of Go type %T: only string, bool, nil, integers, floats and time.Time can be inlined", t, v)
	}
	return nil
}

func (c *Context) writeFloat(f float64, bits int) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("cannot inline non-finite float %v", f)
	}
	c.b.WriteString(strconv.FormatFloat(f, 'g', -1, bits))
	return nil
}

// Supports reports whether the target dialect and version support f.
func (c *Context) Supports(f Feature) bool {
	min, ok := c.dialect.MinVersion(f)
	return ok && c.version.GreaterThanOrEqual(min)
}

// Require returns a *sqlerr.CapabilityError naming construct when f is not
// available for the target.
func (c *Context) Require(f Feature, construct string) error {
	min, ok := c.dialect.MinVersion(f)
	if !ok {
		return c.Unsupported(construct)
	}
	if c.version.LessThan(min) {
		return &sqlerr.CapabilityError{
			Construct:  construct,
			Dialect:    c.dialect.Name(),
			Version:    c.version.String(),
			MinVersion: min.Original(),
		}
	}
	return nil
}

// Unsupported returns a capability error for a construct the dialect never
// supports.
func (c *Context) Unsupported(construct string) error {
	return &sqlerr.CapabilityError{
		Construct: construct,
		Dialect:   c.dialect.Name(),
		Version:   c.version.String(),
	}
}

// EnterSubquery marks the start of a nested statement. Parameters keep one
// counter for the whole pass.
func (c *Context) EnterSubquery() { c.depth++ }

// LeaveSubquery marks the end of a nested statement.
func (c *Context) LeaveSubquery() {
	if c.depth == 0 {
		panic(sqlerr.Usage("LeaveSubquery", "not inside a subquery"))
	}
	c.depth--
}

// Depth returns the current subquery nesting depth.
func (c *Context) Depth() int { return c.depth }

// ParamCount returns the number of parameters appended so far.
func (c *Context) ParamCount() int { return len(c.params) }

// Result closes the context and returns the SQL and parameters. Any write
// after Result is a usage error.
func (c *Context) Result() *Result {
	c.mustBeOpen("Result")
	c.done = true
	return &Result{
		SQL:      c.b.String(),
		Params:   c.params,
		Dialect:  c.dialect.Name(),
		Version:  c.version.String(),
		registry: c.registry,
	}
}
