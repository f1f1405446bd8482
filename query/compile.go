package query

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/sqlerr"
)

// Compile renders a prepared statement for dialect d in a fresh Context.
func Compile(stmt *Statement, d compile.Dialect, opts ...compile.Option) (res *compile.Result, err error) {
	defer sqlerr.Recover(&err)

	if stmt == nil {
		return nil, fmt.Errorf("compile: nil statement")
	}
	ctx, err := compile.NewContext(d, opts...)
	if err != nil {
		return nil, err
	}
	if err := stmt.Render(ctx); err != nil {
		return nil, err
	}
	return ctx.Result(), nil
}

// Target is one dialect and server version to render for.
type Target struct {
	Dialect compile.Dialect
	Version string // empty means the dialect default
}

func (t Target) String() string {
	if t.Dialect == nil {
		return "<nil dialect>"
	}
	if t.Version == "" {
		return t.Dialect.Name()
	}
	return t.Dialect.Name() + " " + t.Version
}

// CompileAll renders one prepared statement for every target concurrently,
// each pass with its own Context. Results are in target order. The first
// failure cancels the remaining passes and is returned.
func CompileAll(ctx context.Context, stmt *Statement, targets ...Target) ([]*compile.Result, error) {
	if stmt == nil {
		return nil, fmt.Errorf("compile: nil statement")
	}
	if stmt.Phase() != Prepared {
		return nil, sqlerr.Usage("CompileAll", "%s statement is %s; only prepared statements render", stmt.kind, stmt.Phase())
	}

	results := make([]*compile.Result, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := Compile(stmt, t.Dialect, compile.WithVersion(t.Version))
			if err != nil {
				return fmt.Errorf("%s: %w", t, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
