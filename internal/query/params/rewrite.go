// Package params rewrites the bind parameters of parsed statements: named
// parameters become positional, and values can be inlined as literals. Every
// rewrite works on a private copy of the tree; the source is never touched.
package params

import (
	"github.com/arkilian/roomsql/internal/query/parser"
)

// ParsedStatement is a statement rewritten to positional parameters.
// ParameterNames[i] names the value bound to the i-th "?".
type ParsedStatement struct {
	RewrittenText  string
	ParameterNames []string
}

// ToPositional replaces every bind parameter with "?" and records, in source
// order, the name each slot is bound by.
//
// Named parameters (:x, @x, $x) contribute their name without the sigil.
// An anonymous parameter compared directly against a column, as in c = ?,
// takes the column's text; any other anonymous parameter keeps its own text.
func ToPositional(src parser.Snapshotter) *ParsedStatement {
	tree := src.Snapshot()
	bound := tree.FindAll(parser.KindBindParameter)

	stmt := &ParsedStatement{ParameterNames: make([]string, 0, len(bound))}
	for _, p := range bound {
		stmt.ParameterNames = append(stmt.ParameterNames, parameterName(p))
		p.ReplaceToken("?")
	}
	stmt.RewrittenText = tree.Text()
	return stmt
}

func parameterName(p *parser.Node) string {
	tok, _ := p.Token()
	if isNamed(tok.Literal) {
		return tok.Literal[1:]
	}

	parent := p.Parent()
	if parent != nil && (parent.Kind == parser.KindEquivalenceExpr || parent.Kind == parser.KindComparisonExpr) {
		if col := parent.FirstChildOfKind(parser.KindColumnRef); col != nil {
			return col.SourceText()
		}
	}
	return tok.Literal
}

func isNamed(literal string) bool {
	if len(literal) < 2 {
		return false
	}
	switch literal[0] {
	case ':', '@', '$':
		return true
	}
	return false
}
