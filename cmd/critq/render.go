package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/query"
)

type renderOptions struct {
	all      bool
	describe bool
}

func (a *app) renderCmd() *cobra.Command {
	var opts renderOptions
	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Render a statement document to SQL",
		Long: `Decodes the statement document in FILE and prints the SQL and its
parameters. With --all, renders for every [render] target in critq.ini, or
for every dialect at its default version when none are configured.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.render(cmd.Context(), args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.all, "all", false, "render for every configured target")
	cmd.Flags().BoolVar(&opts.describe, "describe", false, "also print the dialect-independent form")
	return cmd
}

func (a *app) render(ctx context.Context, path string, opts renderOptions) error {
	var targets []query.Target
	if opts.all {
		list, err := a.targets()
		if err != nil {
			return err
		}
		targets = list
	} else {
		d, ver, err := a.target()
		if err != nil {
			return err
		}
		targets = []query.Target{{Dialect: d, Version: ver}}
	}

	stmt, doc, err := a.load(path)
	if err != nil {
		return err
	}
	if opts.describe {
		a.out.Faint("-- " + stmt.String())
	}

	if !opts.all {
		t := targets[0]
		res, err := query.Compile(stmt, t.Dialect, compile.WithVersion(t.Version))
		if err != nil {
			return err
		}
		a.printResult(res, doc.Params)
		return nil
	}

	results, err := query.CompileAll(ctx, stmt, targets...)
	if err != nil {
		return err
	}
	for i, res := range results {
		a.out.Heading("-- " + targets[i].String())
		a.printResult(res, doc.Params)
	}
	return nil
}

// printResult prints the SQL followed by one line per placeholder. Named
// parameters show the document's value when it has one.
func (a *app) printResult(res *compile.Result, values map[string]any) {
	a.out.Info(res.SQL)
	for _, p := range res.Params {
		if !p.Named {
			a.out.Faint(fmt.Sprintf("  [%d] %s = %s", p.Index, p.Type, formatValue(p.Value)))
			continue
		}
		if v, ok := values[p.Name]; ok {
			a.out.Faint(fmt.Sprintf("  [%d] :%s %s = %s", p.Index, p.Name, p.Type, formatValue(v)))
			continue
		}
		a.out.Faint(fmt.Sprintf("  [%d] :%s %s", p.Index, p.Name, p.Type))
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return strconv.Quote(val)
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(val))
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(val)
	}
}
