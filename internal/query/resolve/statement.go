package resolve

import (
	"strings"

	"github.com/arkilian/roomsql/internal/query/parser"
	"github.com/arkilian/roomsql/internal/schema"
)

// TableReference is a table named in a statement.
type TableReference struct {
	Node  *parser.Node
	Name  string // unquoted
	Alias string
	Table *schema.Table
	// Suggestion is a nearby table name when Table is nil and suggestions
	// are enabled.
	Suggestion string
}

// ColumnReference is a column named in a statement.
type ColumnReference struct {
	Node      *parser.Node
	Qualifier string
	Name      string
	Table     *schema.Table
	Column    schema.Column
	// Derived is set when the qualifier names a subquery; its columns are
	// not part of the schema model.
	Derived bool
}

// Resolution holds every table and column reference of a statement, in
// source order.
type Resolution struct {
	Tables  []*TableReference
	Columns []*ColumnReference
}

// Unresolved returns the references that did not resolve. Columns of
// subqueries are not counted.
func (r *Resolution) Unresolved() (tables []*TableReference, columns []*ColumnReference) {
	for _, t := range r.Tables {
		if t.Table == nil {
			tables = append(tables, t)
		}
	}
	for _, c := range r.Columns {
		if c.Column == nil && !c.Derived {
			columns = append(columns, c)
		}
	}
	return tables, columns
}

// scopeEntry is one item of a FROM clause: a table reference or an aliased
// subquery.
type scopeEntry struct {
	alias    string
	name     string
	table    *schema.Table
	subquery bool
}

// ResolveStatement resolves every table and column reference under tree.
// A qualified column q.c resolves q as an alias first, then as a table name.
// An unqualified column is tried against the tables of its statement in FROM
// order, alternatives included, then against enclosing statements.
func (r *Resolver) ResolveStatement(tree *parser.Node) *Resolution {
	res := &Resolution{}
	if tree == nil {
		return res
	}

	tableRefs := make(map[*parser.Node]*TableReference)
	for _, n := range tree.FindAll(parser.KindTableRef) {
		ref := &TableReference{Node: n, Name: n.Name(), Alias: n.Alias()}
		ref.Table = r.ResolveTable(ref.Name)
		if ref.Table == nil && r.suggest {
			ref.Suggestion = Suggest(r.schema, ref.Name)
		}
		tableRefs[n] = ref
		res.Tables = append(res.Tables, ref)
	}

	scopes := make(map[*parser.Node][]scopeEntry)
	for _, n := range tree.FindAll(parser.KindColumnRef) {
		res.Columns = append(res.Columns, r.resolveColumnRef(n, tableRefs, scopes))
	}
	return res
}

func (r *Resolver) resolveColumnRef(n *parser.Node, tableRefs map[*parser.Node]*TableReference, scopes map[*parser.Node][]scopeEntry) *ColumnReference {
	ref := &ColumnReference{Node: n, Qualifier: n.Qualifier(), Name: n.Name()}

	var chain [][]scopeEntry
	for stmt := statementOf(n); stmt != nil; stmt = statementOf(stmt) {
		entries, ok := scopes[stmt]
		if !ok {
			entries = scopeOf(stmt, tableRefs)
			scopes[stmt] = entries
		}
		chain = append(chain, entries)
	}

	if ref.Qualifier != "" {
		entry, found := lookupQualifier(chain, ref.Qualifier, r.foldCase)
		switch {
		case found && entry.subquery:
			ref.Derived = true
			return ref
		case found:
			ref.Table = entry.table
		default:
			ref.Table = r.ResolveTable(ref.Qualifier)
		}
		ref.Column = ResolveColumn(ref.Table, ref.Name, true)
		return ref
	}

	for _, entries := range chain {
		for _, e := range entries {
			if c := ResolveColumn(e.table, ref.Name, true); c != nil {
				ref.Table, ref.Column = e.table, c
				return ref
			}
		}
	}
	return ref
}

// statementOf returns the nearest statement strictly enclosing n.
func statementOf(n *parser.Node) *parser.Node {
	return n.ParentOfKind(parser.KindSelect, parser.KindInsert, parser.KindUpdate, parser.KindDelete)
}

// scopeOf collects the FROM items of stmt without descending into
// subqueries. INSERT, UPDATE and DELETE contribute their target table.
func scopeOf(stmt *parser.Node, tableRefs map[*parser.Node]*TableReference) []scopeEntry {
	var entries []scopeEntry
	var collect func(n *parser.Node)
	collect = func(n *parser.Node) {
		for _, c := range n.Children {
			switch c.Kind {
			case parser.KindTableRef:
				if ref, ok := tableRefs[c]; ok {
					entries = append(entries, scopeEntry{alias: ref.Alias, name: ref.Name, table: ref.Table})
				}
			case parser.KindSubquery:
				if alias := c.Alias(); alias != "" {
					entries = append(entries, scopeEntry{alias: alias, subquery: true})
				}
			case parser.KindJoin:
				collect(c)
			}
		}
	}

	for _, c := range stmt.Children {
		switch c.Kind {
		case parser.KindFrom:
			collect(c)
		case parser.KindTableRef:
			collect(stmt)
			return entries
		}
	}
	return entries
}

// lookupQualifier finds the FROM item a qualifier refers to. Aliases are
// searched before table names, innermost scope first.
func lookupQualifier(chain [][]scopeEntry, q string, foldCase bool) (scopeEntry, bool) {
	eq := func(a, b string) bool {
		if foldCase {
			return strings.EqualFold(a, b)
		}
		return a == b
	}

	for _, entries := range chain {
		for _, e := range entries {
			if e.alias != "" && eq(e.alias, q) {
				return e, true
			}
		}
		for _, e := range entries {
			if !e.subquery && e.alias == "" && eq(e.name, q) {
				return e, true
			}
		}
	}
	return scopeEntry{}, false
}
