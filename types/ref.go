package types

import "github.com/shipq/critq/sqlerr"

// Typed is implemented by anything that carries a logical type reference,
// in particular every expression node.
type Typed interface {
	TypeRef() *Ref
}

type refState uint8

const (
	stateResolved refState = iota
	stateDelayed
	statePending
)

// Ref is a logical type that is either Resolved, Delayed or Pending.
//
// A Delayed ref carries its dependencies and a pure resolver. The first read
// resolves the dependencies (transitively, pull-based), calls the resolver
// once and replaces the Delayed data with the Resolved value. A Pending ref
// has no dependency yet; it must be bound with Bind or Link before it is read.
//
// Refs are not safe for concurrent resolution. Once resolved, reads are
// plain field loads and may happen from any goroutine.
type Ref struct {
	state refState
	label string
	typ   Type

	deps []Typed
	fn   func([]Type) Type

	visiting bool
	calls    int
}

// Resolved returns a ref fixed to t.
func Resolved(t Type) *Ref {
	return &Ref{state: stateResolved, typ: t, label: t.String()}
}

// Delay returns a ref whose type is fn applied to dep's resolved type.
func Delay(label string, dep Typed, fn func(Type) Type) *Ref {
	return &Ref{
		state: stateDelayed,
		label: label,
		deps:  []Typed{dep},
		fn:    func(ts []Type) Type { return fn(ts[0]) },
	}
}

// Combine returns a ref whose type is fn applied to the resolved types of
// all deps, in order.
func Combine(label string, deps []Typed, fn func([]Type) Type) *Ref {
	return &Ref{
		state: stateDelayed,
		label: label,
		deps:  append([]Typed(nil), deps...),
		fn:    fn,
	}
}

// Pending returns a ref with no dependency yet.
func Pending(label string) *Ref {
	return &Ref{state: statePending, label: label}
}

// TypeRef makes a *Ref usable wherever a Typed is expected.
func (r *Ref) TypeRef() *Ref { return r }

// Label returns the diagnostic label of the ref.
func (r *Ref) Label() string { return r.label }

// Bind resolves a pending ref to t. Binding a ref that is not pending is a
// usage error.
func (r *Ref) Bind(t Type) {
	if r.state != statePending {
		panic(sqlerr.Usage("Bind", "type of %s is already bound", r.label))
	}
	r.state = stateResolved
	r.typ = t
}

// Link turns a pending ref into a delayed ref that adopts dep's type.
func (r *Ref) Link(dep Typed) {
	if r.state != statePending {
		panic(sqlerr.Usage("Link", "type of %s is already bound", r.label))
	}
	r.state = stateDelayed
	r.deps = []Typed{dep}
	r.fn = FirstNonNull
}

// IsResolved reports whether the ref already holds a resolved type.
func (r *Ref) IsResolved() bool { return r.state == stateResolved }

// IsPending reports whether the ref is still waiting for Bind or Link.
func (r *Ref) IsPending() bool { return r.state == statePending }

// Calls returns how many times the resolver has been invoked.
func (r *Ref) Calls() int { return r.calls }

// Peek returns the type if it is already resolved, without forcing anything.
func (r *Ref) Peek() (Type, bool) {
	if r.state == stateResolved {
		return r.typ, true
	}
	return Type{}, false
}

// Resolve returns the resolved type, resolving dependencies first.
func (r *Ref) Resolve() (Type, error) {
	return r.resolve(nil)
}

// MustResolve is like Resolve but panics with a *sqlerr.ResolutionError.
// Reading an unresolved type after a statement is prepared is fatal.
func (r *Ref) MustResolve() Type {
	t, err := r.resolve(nil)
	if err != nil {
		panic(err)
	}
	return t
}

func (r *Ref) String() string {
	if r.state == stateResolved {
		return r.typ.String()
	}
	return "?"
}

func (r *Ref) resolve(path []*Ref) (Type, error) {
	switch {
	case r.state == stateResolved:
		return r.typ, nil
	case r.visiting:
		return Type{}, sqlerr.Cyclic(cycleChain(path, r))
	case r.state == statePending:
		return Type{}, sqlerr.Unresolved(chainOf(append(path, r)))
	}

	r.visiting = true
	defer func() { r.visiting = false }()
	path = append(path, r)

	ts := make([]Type, len(r.deps))
	for i, dep := range r.deps {
		var ref *Ref
		if dep != nil {
			ref = dep.TypeRef()
		}
		if ref == nil {
			return Type{}, sqlerr.Unresolved(chainOf(path))
		}
		t, err := ref.resolve(path)
		if err != nil {
			return Type{}, err
		}
		ts[i] = t
	}

	r.typ = r.fn(ts)
	r.calls++
	r.state = stateResolved
	r.deps = nil
	r.fn = nil
	return r.typ, nil
}

// cycleChain returns the labels from the first occurrence of r in path,
// closed with r again: A -> B -> A.
func cycleChain(path []*Ref, r *Ref) []string {
	start := 0
	for i, p := range path {
		if p == r {
			start = i
			break
		}
	}
	chain := chainOf(path[start:])
	return append(chain, r.label)
}

func chainOf(path []*Ref) []string {
	chain := make([]string, len(path))
	for i, p := range path {
		chain[i] = p.label
	}
	return chain
}
