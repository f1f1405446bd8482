// Package sqlerr defines the error kinds shared by the critq packages.
//
// There are three kinds:
//
//   - usage errors: a builder or reader was called in the wrong lifecycle phase,
//     a function received the wrong number of arguments, a stateful clause option
//     was set twice, and so on. These are raised at the call site.
//   - resolution errors: a logical type could not be resolved (unresolved
//     dependency or a cyclic dependency between delayed types).
//   - capability errors: the target dialect or version cannot express a construct.
//
// Builder methods panic with *UsageError; API boundaries convert those panics
// into returned errors with Recover.
package sqlerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUsage matches every *UsageError.
	ErrUsage = errors.New("usage error")

	// ErrResolution matches every *ResolutionError.
	ErrResolution = errors.New("type resolution error")

	// ErrCapability matches every *CapabilityError.
	ErrCapability = errors.New("unsupported by dialect")
)

// UsageError reports a call made in the wrong state or with invalid arguments.
type UsageError struct {
	Op    string   // function, clause or method name
	Args  []any    // offending arguments, if any
	Msg   string   // what was wrong
	Scope []string // statement scope path at the time of the error
}

func (e *UsageError) Error() string {
	var b strings.Builder
	b.WriteString("usage error: ")
	if len(e.Scope) > 0 {
		b.WriteString(strings.Join(e.Scope, " > "))
		b.WriteString(": ")
	}
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	if len(e.Args) > 0 {
		b.WriteString(" (args: ")
		for i, a := range e.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(describeArg(a))
		}
		b.WriteString(")")
	}
	return b.String()
}

// Is reports whether target is ErrUsage.
func (e *UsageError) Is(target error) bool { return target == ErrUsage }

// Usage creates a usage error for op with a formatted message.
func Usage(op, format string, args ...any) *UsageError {
	return &UsageError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// UsageArgs creates a usage error that lists the received arguments.
func UsageArgs(op string, received []any, format string, args ...any) *UsageError {
	return &UsageError{Op: op, Args: received, Msg: fmt.Sprintf(format, args...)}
}

// ResolutionError reports a logical type that could not be resolved.
type ResolutionError struct {
	Chain []string // labels of the implicated nodes, outermost first
	Cycle bool
	Msg   string
}

func (e *ResolutionError) Error() string {
	if len(e.Chain) == 0 {
		return "type resolution error: " + e.Msg
	}
	sep := " -> "
	return fmt.Sprintf("type resolution error: %s [%s]", e.Msg, strings.Join(e.Chain, sep))
}

// Is reports whether target is ErrResolution.
func (e *ResolutionError) Is(target error) bool { return target == ErrResolution }

// Cyclic creates a resolution error for a dependency cycle.
func Cyclic(chain []string) *ResolutionError {
	return &ResolutionError{Chain: chain, Cycle: true, Msg: "cyclic type dependency"}
}

// Unresolved creates a resolution error for a dependency that never resolved.
func Unresolved(chain []string) *ResolutionError {
	return &ResolutionError{Chain: chain, Msg: "unresolved type (dependency was never bound)"}
}

// CapabilityError reports a construct the target dialect/version cannot render.
type CapabilityError struct {
	Construct  string
	Dialect    string
	Version    string // version being rendered for
	MinVersion string // empty when no version supports the construct
}

func (e *CapabilityError) Error() string {
	if e.MinVersion == "" {
		return fmt.Sprintf("%s is not supported by %s", e.Construct, e.Dialect)
	}
	return fmt.Sprintf("%s requires %s >= %s (rendering for %s)",
		e.Construct, e.Dialect, e.MinVersion, e.Version)
}

// Is reports whether target is ErrCapability.
func (e *CapabilityError) Is(target error) bool { return target == ErrCapability }

// Recover converts a panic carrying one of this package's error types into a
// returned error. Other panics are re-raised. Use it deferred:
//
//	func build() (err error) {
//	    defer sqlerr.Recover(&err)
//	    ...
//	}
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	switch e := r.(type) {
	case *UsageError:
		*errp = e
	case *ResolutionError:
		*errp = e
	case *CapabilityError:
		*errp = e
	default:
		panic(r)
	}
}

// WithScope attaches a scope path to a usage error that does not have one yet.
// Other errors are returned unchanged.
func WithScope(err error, path []string) error {
	var ue *UsageError
	if len(path) == 0 || !errors.As(err, &ue) || len(ue.Scope) > 0 {
		return err
	}
	ue.Scope = append([]string(nil), path...)
	return err
}

func describeArg(a any) string {
	switch v := a.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q", v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
