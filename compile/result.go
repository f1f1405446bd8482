package compile

import (
	"errors"
	"fmt"

	"github.com/shipq/critq/types"
)

// ErrMissingParam is returned by Result.Args when a named parameter has no
// value.
var ErrMissingParam = errors.New("missing parameter value")

// Param is one placeholder in the rendered SQL.
type Param struct {
	Index int // 1-based position in SQL text
	Name  string
	Type  types.Type
	Value any // bound value; unset for named parameters
	Named bool
}

// Result holds the output of one render pass.
type Result struct {
	// SQL is the rendered statement.
	SQL string

	// Params has one entry per placeholder, in the order they appear in SQL.
	// A parameter used twice appears twice.
	Params []Param

	Dialect string
	Version string

	registry types.Registry
}

// ParamOrder returns the parameter names in placeholder order. Bound values
// are listed as "$<index>".
func (r *Result) ParamOrder() []string {
	order := make([]string, len(r.Params))
	for i, p := range r.Params {
		if p.Named {
			order[i] = p.Name
		} else {
			order[i] = fmt.Sprintf("$%d", p.Index)
		}
	}
	return order
}

// Args builds the driver argument list: bound values in place, named values
// taken from named. Values are encoded through the registry when one was
// configured.
func (r *Result) Args(named map[string]any) ([]any, error) {
	args := make([]any, len(r.Params))
	for i, p := range r.Params {
		v := p.Value
		if p.Named {
			var ok bool
			v, ok = named[p.Name]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrMissingParam, p.Name)
			}
		}
		if r.registry != nil && v != nil {
			if codec, ok := r.registry.Lookup(p.Type); ok {
				enc, err := codec.Encode(v)
				if err != nil {
					return nil, fmt.Errorf("encode parameter %d (%s): %w", p.Index, p.Type, err)
				}
				v = enc
			}
		}
		args[i] = v
	}
	return args, nil
}

// NamedParams returns the distinct named parameters in first-use order.
func (r *Result) NamedParams() []Param {
	var out []Param
	seen := make(map[string]bool)
	for _, p := range r.Params {
		if p.Named && !seen[p.Name] {
			seen[p.Name] = true
			out = append(out, p)
		}
	}
	return out
}
