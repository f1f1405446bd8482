package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/dburl"
	"github.com/shipq/critq/exec"
	"github.com/shipq/critq/query"
	"github.com/shipq/critq/types"
)

func (a *app) execCmd() *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "exec FILE",
		Short: "Render a statement document and run it against a database",
		Long: `Renders FILE for the database's dialect and detected server version, then
runs it. Statements that return rows print them as a table.

The database URL comes from --database-url, $DATABASE_URL, .env or the
[db] url key of critq.ini. Parameter values given with --param override
the document's params and are converted to each parameter's type.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExec(cmd.Context(), args[0], params)
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "named parameter as name=value (repeatable)")
	cmd.Flags().String("database-url", "", "database URL (default $DATABASE_URL)")
	_ = a.v.BindPFlag("database-url", cmd.Flags().Lookup("database-url"))
	return cmd
}

func (a *app) runExec(ctx context.Context, path string, raw []string) error {
	url := a.v.GetString("database-url")
	if url == "" {
		url = a.cfg.DB.URL
	}
	if url == "" {
		return errors.New("no database URL: set --database-url, DATABASE_URL or [db] url in critq.ini")
	}

	stmt, doc, err := a.load(path)
	if err != nil {
		return err
	}

	if !dburl.IsLocalhost(url) {
		a.out.Warnf("running against remote database %s", dburl.Redact(url))
	}
	db, err := exec.Open(ctx, url, exec.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := db.Render(stmt)
	if err != nil {
		return err
	}
	named, err := bindParams(res, doc.Params, raw)
	if err != nil {
		return err
	}

	if !returnsRows(stmt) {
		n, err := db.Exec(ctx, stmt, named)
		if err != nil {
			return err
		}
		a.out.Successf("%d rows affected", n)
		return nil
	}

	var headers []string
	var rows [][]string
	err = db.Query(ctx, stmt, named, func(r exec.Row) error {
		headers = r.Columns
		cells := make([]string, len(r.Values))
		for i, v := range r.Values {
			cells[i] = formatCell(v)
		}
		rows = append(rows, cells)
		return nil
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		a.out.Faint("(no rows)")
		return nil
	}
	if err := a.out.Table(headers, rows); err != nil {
		return err
	}
	a.out.Faint(fmt.Sprintf("(%d rows)", len(rows)))
	return nil
}

func returnsRows(stmt *query.Statement) bool {
	return stmt.Kind() == query.SelectStatement || stmt.Returning().Len() > 0
}

// bindParams merges --param overrides into the document's params. Each
// override must name a parameter of res and is converted to its type.
func bindParams(res *compile.Result, docParams map[string]any, raw []string) (map[string]any, error) {
	named := maps.Clone(docParams)
	if named == nil {
		named = make(map[string]any)
	}
	declared := make(map[string]types.Type)
	for _, p := range res.NamedParams() {
		declared[p.Name] = p.Type
	}
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q (want name=value)", kv)
		}
		t, ok := declared[name]
		if !ok {
			return nil, fmt.Errorf("unknown parameter %q", name)
		}
		v, err := parseParam(t, value)
		if err != nil {
			return nil, fmt.Errorf("--param %s: %w", name, err)
		}
		named[name] = v
	}
	return named, nil
}

// parseParam converts a command-line string to a value of type t. The
// literal NULL binds a SQL NULL.
func parseParam(t types.Type, s string) (any, error) {
	if s == "NULL" {
		return nil, nil
	}
	k := t.Kind()
	switch {
	case k.IsInteger():
		return strconv.ParseInt(s, 10, 64)
	case k == types.Decimal || k == types.Float || k == types.Double:
		return strconv.ParseFloat(s, 64)
	case k == types.Boolean:
		return strconv.ParseBool(s)
	case k == types.Date:
		return time.Parse(time.DateOnly, s)
	case k == types.Time:
		return s, nil
	case k.IsTemporal():
		return time.Parse(time.RFC3339Nano, s)
	case k == types.JSON:
		if !json.Valid([]byte(s)) {
			return nil, fmt.Errorf("invalid JSON %q", s)
		}
		return json.RawMessage(s), nil
	case k == types.Binary:
		return []byte(s), nil
	default:
		return s, nil
	}
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case json.RawMessage:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(val)
	}
}
