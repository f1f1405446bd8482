package query

import (
	"github.com/shipq/critq/compile"
	"github.com/shipq/critq/sqlerr"
)

// validateStatement checks the structural rules a statement must meet before
// it can be prepared.
func validateStatement(s *Statement, c *clauses) error {
	if err := validateTable(s.table); err != nil {
		return err
	}

	switch s.kind {
	case SelectStatement:
		for _, j := range c.joins {
			if err := validateTable(j.Table); err != nil {
				return err
			}
			if j.On == nil {
				return sqlerr.Usage("Join", "%s JOIN %s has no ON condition", j.Kind, j.Table)
			}
		}
		for _, item := range c.items {
			if item.Alias == "" {
				continue
			}
			if err := compile.ValidateIdentifier(item.Alias); err != nil {
				return invalid("column alias", err)
			}
		}

	case UpdateStatement:
		if len(c.sets) == 0 {
			return sqlerr.Usage("Finalize", "UPDATE %s has no SET assignments", s.table.Name)
		}
		for _, a := range c.sets {
			if err := validateColumnName(a.Column); err != nil {
				return err
			}
		}

	case InsertStatement:
		if len(c.insertCols) == 0 {
			return sqlerr.Usage("Finalize", "INSERT INTO %s has no columns", s.table.Name)
		}
		if len(c.rows) == 0 {
			return sqlerr.Usage("Finalize", "INSERT INTO %s has no VALUES rows", s.table.Name)
		}
		for _, col := range c.insertCols {
			if err := validateColumnName(col); err != nil {
				return err
			}
		}
		for i, row := range c.rows {
			if len(row) != len(c.insertCols) {
				return sqlerr.UsageArgs("Values", exprArgs(row),
					"row %d has %d values for %d columns", i+1, len(row), len(c.insertCols))
			}
		}

	case DeleteStatement:
	}

	for _, col := range c.returning {
		if err := validateColumnName(col); err != nil {
			return err
		}
	}

	var exprErr error
	walkClauses(c, func(e Expr) bool {
		if exprErr != nil {
			return false
		}
		exprErr = validateExpr(e)
		return exprErr == nil && nestedStatement(e) == nil
	})
	return exprErr
}

func validateTable(t Table) error {
	if err := compile.ValidateIdentifier(t.Name); err != nil {
		return invalid("table name", err)
	}
	if t.Alias != "" {
		if err := compile.ValidateIdentifier(t.Alias); err != nil {
			return invalid("table alias", err)
		}
	}
	return nil
}

func validateColumnName(c Column) error {
	if err := compile.ValidateIdentifier(c.Name); err != nil {
		return invalid("column name", err)
	}
	return nil
}

func validateExpr(e Expr) error {
	switch n := e.(type) {
	case *columnNode:
		if err := validateColumnName(n.col); err != nil {
			return err
		}
		if ref := n.col.Table; ref != "" {
			if err := compile.ValidateIdentifier(ref); err != nil {
				return invalid("table reference", err)
			}
		}
	case *listNode:
		if len(n.values) == 0 {
			return sqlerr.Usage("In", "IN clause requires at least one value")
		}
	case *WindowExpr:
		if !n.over.set {
			return sqlerr.Usage("Over", "window function %s has no OVER clause", n.call.name)
		}
	}
	return nil
}

func invalid(what string, err error) error {
	return sqlerr.Usage("Finalize", "invalid %s: %v", what, err)
}

// checkPlacement rejects aggregates and window functions in clauses that are
// evaluated per row.
func checkPlacement(clause string, e Expr) {
	if containsWindow(e) {
		panic(sqlerr.UsageArgs(clause, []any{describe(e)}, "window function not allowed in %s", clause))
	}
	if containsAggregate(e) {
		panic(sqlerr.UsageArgs(clause, []any{describe(e)}, "aggregate not allowed in %s", clause))
	}
}

// checkWindowFree rejects window functions in GROUP BY and HAVING.
func checkWindowFree(clause string, e Expr) {
	if containsWindow(e) {
		panic(sqlerr.UsageArgs(clause, []any{describe(e)}, "window function not allowed in %s", clause))
	}
}
