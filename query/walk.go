package query

// ExprVisitor is called for each expression during a walk.
// Return false to stop walking the current branch.
type ExprVisitor func(expr Expr) bool

// WalkExpr traverses an expression tree in depth-first order, calling the visitor
// for each expression. If the visitor returns false, children of that expression
// are not visited. Subqueries are walked into.
func WalkExpr(expr Expr, visit ExprVisitor) {
	if expr == nil {
		return
	}

	if !visit(expr) {
		return
	}

	switch e := expr.(type) {
	case *binaryNode:
		WalkExpr(e.left, visit)
		WalkExpr(e.right, visit)

	case *unaryNode:
		WalkExpr(e.expr, visit)

	case *castNode:
		WalkExpr(e.expr, visit)

	case *listNode:
		for _, v := range e.values {
			WalkExpr(v, visit)
		}

	case *funcNode:
		for _, arg := range e.args {
			WalkExpr(arg, visit)
		}

	case *WindowExpr:
		WalkExpr(e.call, visit)
		if e.over.set {
			for _, x := range e.over.v.exprs() {
				WalkExpr(x, visit)
			}
		}

	case *JSONValueExpr:
		WalkExpr(e.doc, visit)

	case *GroupConcatExpr:
		WalkExpr(e.arg, visit)
		for _, o := range e.orderBy.v {
			WalkExpr(o.Expr, visit)
		}

	case *outerNode:
		WalkExpr(e.target, visit)

	case *subqueryNode:
		WalkStatement(e.stmt, visit)

	case *existsNode:
		WalkStatement(e.stmt, visit)

	default:
		// Leaves: column, param, value, literal, NULL and star nodes.
	}
}

// WalkStatement traverses every expression of a statement in clause order.
// A cleared statement has nothing to walk.
func WalkStatement(s *Statement, visit ExprVisitor) {
	if s == nil {
		return
	}
	if c := s.parts(); c != nil {
		walkClauses(c, visit)
	}
}

func walkClauses(c *clauses, visit ExprVisitor) {
	for _, item := range c.items {
		WalkExpr(item.Expr, visit)
	}
	for _, j := range c.joins {
		WalkExpr(j.On, visit)
	}
	for _, e := range c.where {
		WalkExpr(e, visit)
	}
	for _, e := range c.groupBy {
		WalkExpr(e, visit)
	}
	for _, e := range c.having {
		WalkExpr(e, visit)
	}
	for _, o := range c.orderBy {
		WalkExpr(o.Expr, visit)
	}
	for _, a := range c.sets {
		WalkExpr(a.Value, visit)
	}
	for _, row := range c.rows {
		for _, e := range row {
			WalkExpr(e, visit)
		}
	}
}

// nestedStatement returns the statement of a subquery or EXISTS node.
func nestedStatement(e Expr) *Statement {
	switch n := e.(type) {
	case *subqueryNode:
		return n.stmt
	case *existsNode:
		return n.stmt
	}
	return nil
}

// find reports whether match holds for e or any expression below it, without
// entering nested statements.
func find(e Expr, match func(Expr) bool) bool {
	found := false
	WalkExpr(e, func(x Expr) bool {
		if found {
			return false
		}
		if match(x) {
			found = true
			return false
		}
		return nestedStatement(x) == nil
	})
	return found
}

func containsWindow(e Expr) bool {
	return find(e, func(x Expr) bool {
		_, ok := x.(*WindowExpr)
		return ok
	})
}

// containsAggregate does not look inside window calls: an aggregate used as
// a window function is not an aggregate of the enclosing query.
func containsAggregate(e Expr) bool {
	found := false
	WalkExpr(e, func(x Expr) bool {
		if found {
			return false
		}
		switch n := x.(type) {
		case *funcNode:
			if n.class == aggregateFunc {
				found = true
				return false
			}
		case *GroupConcatExpr:
			found = true
			return false
		case *WindowExpr:
			return false
		}
		return nestedStatement(x) == nil
	})
	return found
}

// CollectParamNames extracts the named parameters of a statement, nested
// statements included, in first-use order without duplicates. Each nested
// statement is walked once.
func CollectParamNames(s *Statement) []string {
	var names []string
	seen := make(map[string]bool)
	entered := map[*Statement]bool{s: true}

	WalkStatement(s, func(expr Expr) bool {
		if p, ok := expr.(*paramNode); ok && !seen[p.name] {
			names = append(names, p.name)
			seen[p.name] = true
		}
		if n := nestedStatement(expr); n != nil {
			if entered[n] {
				return false
			}
			entered[n] = true
		}
		return true
	})

	return names
}

// HasSubqueries returns true if the statement contains any subquery expressions.
func HasSubqueries(s *Statement) bool {
	found := false
	WalkStatement(s, func(expr Expr) bool {
		if nestedStatement(expr) != nil {
			found = true
		}
		return !found
	})
	return found
}
