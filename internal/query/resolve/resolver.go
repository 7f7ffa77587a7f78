// Package resolve maps table and column identifiers onto the schema model.
// Lookups are linear and first match wins; an unresolved reference is a nil
// result, never an error.
package resolve

import (
	"strings"

	"github.com/arkilian/roomsql/internal/schema"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithCaseInsensitiveTables makes table lookups fold case, as SQLite does for
// identifiers.
func WithCaseInsensitiveTables() Option {
	return func(r *Resolver) { r.foldCase = true }
}

// WithSuggestions attaches a "did you mean" candidate to unresolved table
// references in ResolveStatement.
func WithSuggestions() Option {
	return func(r *Resolver) { r.suggest = true }
}

// Resolver resolves references against one immutable schema. It holds no
// mutable state and is safe for concurrent use.
type Resolver struct {
	schema   *schema.Schema
	foldCase bool
	suggest  bool
}

// New creates a resolver over s. A nil schema resolves nothing.
func New(s *schema.Schema, opts ...Option) *Resolver {
	if s == nil {
		s = &schema.Schema{}
	}
	r := &Resolver{schema: s}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schema returns the schema the resolver reads.
func (r *Resolver) Schema() *schema.Schema {
	return r.schema
}

// ResolveTable returns the first table named name, honoring the resolver's
// case option.
func (r *Resolver) ResolveTable(name string) *schema.Table {
	if r.foldCase {
		return resolveTableFold(r.schema, name)
	}
	return ResolveTable(r.schema, name)
}

// ResolveColumn is the package-level ResolveColumn.
func (r *Resolver) ResolveColumn(t *schema.Table, ident string, includeAlternatives bool) schema.Column {
	return ResolveColumn(t, ident, includeAlternatives)
}

// ResolveTable returns the first table in s whose name equals name exactly,
// or nil.
func ResolveTable(s *schema.Schema, name string) *schema.Table {
	if s == nil {
		return nil
	}
	for _, t := range s.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func resolveTableFold(s *schema.Schema, name string) *schema.Table {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// ResolveColumn finds ident among t's columns. Named columns are matched
// first, so an explicit column called "oid" shadows the rowid alias of the
// same name. With includeAlternatives, a second pass matches alternative
// names such as rowid, oid, _rowid_ and docid.
func ResolveColumn(t *schema.Table, ident string, includeAlternatives bool) schema.Column {
	if t == nil {
		return nil
	}

	for _, c := range t.Columns {
		switch c.(type) {
		case *schema.FieldColumn, *schema.FtsColumn:
			if name, ok := c.Name(); ok && name == ident {
				return c
			}
		}
	}

	if !includeAlternatives {
		return nil
	}
	for _, c := range t.Columns {
		for _, alt := range c.AlternativeNames() {
			if alt == ident {
				return c
			}
		}
	}
	return nil
}
