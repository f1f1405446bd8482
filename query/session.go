package query

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/shipq/critq/logging"
	"github.com/shipq/critq/scope"
	"github.com/shipq/critq/sqlerr"
)

// Session threads a scope stack through statement builds. Errors raised while
// a build callback runs are returned annotated with the scope path, such as
// "UPDATE users > SELECT orders". A Session is confined to one goroutine.
type Session struct {
	stack  *scope.Stack
	logger *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger used for statement_prepared and statement_failed
// debug events.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession returns a session with an empty scope stack.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		stack:  scope.New(),
		logger: logging.Discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Depth returns the number of open builder frames.
func (s *Session) Depth() int { return s.stack.Depth() }

// Path returns the open builder frames from outermost to innermost.
func (s *Session) Path() []string { return s.stack.Path() }

// run pushes a frame, runs build and finalizes stmt. The frame is popped on
// every exit path; typed panics become errors carrying the scope path.
func (s *Session) run(kind scope.Kind, stmt *Statement, build func()) (_ *Statement, err error) {
	guard := s.stack.Enter(scope.Frame{Kind: kind, Label: stmt.table.Name})
	defer guard.Exit()

	path := s.stack.Path()
	defer func() {
		if err == nil {
			return
		}
		err = sqlerr.WithScope(err, path)
		s.logger.Debug("statement_failed",
			"scope", strings.Join(path, " > "),
			"error", err.Error(),
		)
	}()
	defer sqlerr.Recover(&err)

	if build != nil {
		build()
	}
	if err := stmt.Finalize(); err != nil {
		return nil, err
	}

	s.logger.Debug("statement_prepared",
		"kind", string(stmt.kind),
		"statement", stmt.String(),
	)
	return stmt, nil
}

// Select builds and finalizes a SELECT from t.
func (s *Session) Select(t Table, build func(b *SelectBuilder)) (*Statement, error) {
	stmt := newStatement(SelectStatement, t)
	b := newSelectBuilder(stmt)
	return s.run(scope.Select, stmt, bind(build, b))
}

// Update builds and finalizes an UPDATE of t.
func (s *Session) Update(t Table, build func(b *UpdateBuilder)) (*Statement, error) {
	stmt := newStatement(UpdateStatement, t)
	b := newUpdateBuilder(stmt)
	return s.run(scope.Update, stmt, bind(build, b))
}

// Delete builds and finalizes a DELETE from t.
func (s *Session) Delete(t Table, build func(b *DeleteBuilder)) (*Statement, error) {
	stmt := newStatement(DeleteStatement, t)
	b := newDeleteBuilder(stmt)
	return s.run(scope.Delete, stmt, bind(build, b))
}

// Insert builds and finalizes an INSERT into t.
func (s *Session) Insert(t Table, build func(b *InsertBuilder)) (*Statement, error) {
	stmt := newStatement(InsertStatement, t)
	b := newInsertBuilder(stmt)
	return s.run(scope.Insert, stmt, bind(build, b))
}

func bind[B any](build func(B), b B) func() {
	if build == nil {
		return nil
	}
	return func() { build(b) }
}

// Subquery builds a nested SELECT inside a running build callback. Errors are
// raised as panics so the enclosing build reports them with the full scope
// path.
func (s *Session) Subquery(t Table, build func(b *SelectBuilder)) *Statement {
	stmt, err := s.Select(t, build)
	if err != nil {
		panic(raisable(err))
	}
	return stmt
}

// Outer references a column of an enclosing statement from inside a nested
// build. Its type follows the column.
func (s *Session) Outer(col Column) Expr {
	if s.stack.Depth() < 2 {
		panic(sqlerr.UsageArgs("Outer", []any{col.String()},
			"outer references are only valid inside a nested statement"))
	}
	return newOuterNode(col)
}

// Select builds a SELECT with a fresh session.
func Select(t Table, build func(b *SelectBuilder)) (*Statement, error) {
	return NewSession().Select(t, build)
}

// Update builds an UPDATE with a fresh session.
func Update(t Table, build func(b *UpdateBuilder)) (*Statement, error) {
	return NewSession().Update(t, build)
}

// Delete builds a DELETE with a fresh session.
func Delete(t Table, build func(b *DeleteBuilder)) (*Statement, error) {
	return NewSession().Delete(t, build)
}

// Insert builds an INSERT with a fresh session.
func Insert(t Table, build func(b *InsertBuilder)) (*Statement, error) {
	return NewSession().Insert(t, build)
}

// raisable returns err as a value sqlerr.Recover accepts.
func raisable(err error) any {
	var (
		ue *sqlerr.UsageError
		re *sqlerr.ResolutionError
		ce *sqlerr.CapabilityError
	)
	switch {
	case errors.As(err, &ue):
		return ue
	case errors.As(err, &re):
		return re
	case errors.As(err, &ce):
		return ce
	default:
		return &sqlerr.UsageError{Op: "Subquery", Msg: err.Error()}
	}
}
