package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/roomsql/internal/decl"
	"github.com/arkilian/roomsql/internal/query/parser"
	"github.com/arkilian/roomsql/internal/schema"
)

const library = `
@Entity(tableName = "users") class User {
  @PrimaryKey id: Int
  name: String
}
@Entity(tableName = "books") class Book {
  title: String
  owner: Int
}
@Fts4 @Entity(tableName = "notes") class Note { body: String }
@Entity(tableName = "legacy") class Legacy { oid: String }
@Entity(tableName = "books") class ShadowBook { other: Int }
`

func buildSchema(t *testing.T, src string) *schema.Schema {
	t.Helper()
	snap := decl.NewSnapshot(1, []decl.SourceFile{{Path: "lib.room", Text: src}})
	require.Empty(t, snap.Errors)
	return schema.Build(snap)
}

func TestResolveTable(t *testing.T) {
	s := buildSchema(t, library)

	books := ResolveTable(s, "books")
	require.NotNil(t, books)
	assert.Equal(t, "Book", books.DeclaringType.Path, "first match wins")

	assert.Nil(t, ResolveTable(s, "BOOKS"))
	assert.Nil(t, ResolveTable(s, "missing"))
	assert.Nil(t, ResolveTable(nil, "books"))

	folding := New(s, WithCaseInsensitiveTables())
	assert.Same(t, books, folding.ResolveTable("BOOKS"))
	assert.Nil(t, New(s).ResolveTable("BOOKS"))
}

func TestResolveColumnRowidSynthesis(t *testing.T) {
	s := buildSchema(t, library)

	books := ResolveTable(s, "books")
	rowid := books.Rowid()
	require.NotNil(t, rowid)
	for _, name := range []string{"rowid", "oid", "_rowid_"} {
		assert.Same(t, rowid, ResolveColumn(books, name, true), name)
		assert.Nil(t, ResolveColumn(books, name, false), name)
	}
	assert.Nil(t, ResolveColumn(books, "docid", true), "docid is FTS only")

	notes := ResolveTable(s, "notes")
	assert.Same(t, notes.Rowid(), ResolveColumn(notes, "docid", true))
}

func TestResolveColumnShadowing(t *testing.T) {
	s := buildSchema(t, library)
	legacy := ResolveTable(s, "legacy")

	oid := ResolveColumn(legacy, "oid", true)
	require.IsType(t, &schema.FieldColumn{}, oid)
	assert.Equal(t, "Legacy#oid", oid.ResolutionTarget().Path)

	assert.Same(t, legacy.Rowid(), ResolveColumn(legacy, "rowid", true))
}

func TestResolveColumnNamed(t *testing.T) {
	s := buildSchema(t, library)

	users := ResolveTable(s, "users")
	id := ResolveColumn(users, "id", false)
	require.NotNil(t, id)
	assert.Same(t, id, ResolveColumn(users, "rowid", true), "the primary key answers to rowid")
	assert.Nil(t, users.Rowid())
	assert.Nil(t, ResolveColumn(users, "Name", true), "column names are case sensitive")

	notes := ResolveTable(s, "notes")
	fts := ResolveColumn(notes, "notes", false)
	assert.IsType(t, &schema.FtsColumn{}, fts)

	assert.Nil(t, ResolveColumn(nil, "id", true))
}

func TestEndToEndRowid(t *testing.T) {
	s := buildSchema(t, `@Entity class T1 { c1: Int }`)
	t1 := ResolveTable(s, "T1")
	require.NotNil(t, t1)

	c := ResolveColumn(t1, "rowid", true)
	require.IsType(t, &schema.RowidColumn{}, c)
	_, named := c.Name()
	assert.False(t, named)
}

func resolveSQL(t *testing.T, r *Resolver, sql string) *Resolution {
	t.Helper()
	root, err := parser.Parse(sql)
	require.NoError(t, err)
	return r.ResolveStatement(root)
}

func TestResolveStatementAliases(t *testing.T) {
	r := New(buildSchema(t, library))
	res := resolveSQL(t, r,
		`SELECT u.name, b.title, b.rowid FROM users AS u JOIN "books" b ON b.owner = u.id WHERE nope = 1`)

	require.Len(t, res.Tables, 2)
	assert.Equal(t, "users", res.Tables[0].Name)
	assert.Equal(t, "u", res.Tables[0].Alias)
	assert.Equal(t, "books", res.Tables[1].Name)
	assert.NotNil(t, res.Tables[1].Table)

	require.Len(t, res.Columns, 6)
	expected := []struct {
		qualifier, name, target string
	}{
		{"u", "name", "User#name"},
		{"b", "title", "Book#title"},
		{"b", "rowid", "Book"},
		{"b", "owner", "Book#owner"},
		{"u", "id", "User#id"},
	}
	for i, want := range expected {
		col := res.Columns[i]
		assert.Equal(t, want.qualifier, col.Qualifier)
		assert.Equal(t, want.name, col.Name)
		require.NotNil(t, col.Column, want.name)
		assert.Equal(t, want.target, col.Column.ResolutionTarget().Path)
	}

	tables, columns := res.Unresolved()
	assert.Empty(t, tables)
	require.Len(t, columns, 1)
	assert.Equal(t, "nope", columns[0].Name)
}

func TestResolveStatementUnqualifiedFromOrder(t *testing.T) {
	r := New(buildSchema(t, library))
	res := resolveSQL(t, r, "SELECT title, name, rowid FROM books, users")

	require.Len(t, res.Columns, 3)
	assert.Equal(t, "books", res.Columns[0].Table.Name)
	assert.Equal(t, "users", res.Columns[1].Table.Name)
	assert.Equal(t, "books", res.Columns[2].Table.Name, "first table in FROM order claims rowid")
}

func TestResolveStatementScopes(t *testing.T) {
	r := New(buildSchema(t, library))

	res := resolveSQL(t, r, "SELECT s.x FROM (SELECT title AS x FROM books) AS s")
	require.Len(t, res.Columns, 2)
	assert.True(t, res.Columns[0].Derived)
	assert.Nil(t, res.Columns[0].Column)
	assert.Equal(t, "Book#title", res.Columns[1].Column.ResolutionTarget().Path)
	_, unresolved := res.Unresolved()
	assert.Empty(t, unresolved)

	res = resolveSQL(t, r, "SELECT name FROM users WHERE EXISTS (SELECT 1 FROM books WHERE owner = id)")
	require.Len(t, res.Columns, 3)
	assert.Equal(t, "books", res.Columns[1].Table.Name)
	assert.Equal(t, "users", res.Columns[2].Table.Name, "correlated reference falls back to the outer query")
}

func TestResolveStatementDataModification(t *testing.T) {
	r := New(buildSchema(t, library))

	tests := []struct {
		sql   string
		table string
		cols  int
	}{
		{"INSERT INTO books (title, owner) VALUES (?, ?)", "books", 2},
		{"UPDATE users SET name = ? WHERE id = ?", "users", 2},
		{"DELETE FROM notes WHERE notes MATCH ? AND docid > 3", "notes", 2},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			res := resolveSQL(t, r, tt.sql)
			require.Len(t, res.Columns, tt.cols)
			for _, col := range res.Columns {
				require.NotNil(t, col.Column, col.Name)
				assert.Equal(t, tt.table, col.Table.Name)
			}
		})
	}
}

func TestResolveStatementQuotedIdentifiers(t *testing.T) {
	r := New(buildSchema(t, library))
	res := resolveSQL(t, r, "SELECT `name`, [users].\"id\" FROM [users]")

	require.Len(t, res.Tables, 1)
	assert.NotNil(t, res.Tables[0].Table)
	require.Len(t, res.Columns, 2)
	assert.NotNil(t, res.Columns[0].Column)
	assert.NotNil(t, res.Columns[1].Column)
}

func TestResolveStatementSuggestions(t *testing.T) {
	s := buildSchema(t, library)

	res := resolveSQL(t, New(s, WithSuggestions()), "SELECT * FROM user JOIN Books")
	require.Len(t, res.Tables, 2)
	assert.Nil(t, res.Tables[0].Table)
	assert.Equal(t, "users", res.Tables[0].Suggestion)
	assert.Equal(t, "books", res.Tables[1].Suggestion)

	res = resolveSQL(t, New(s), "SELECT * FROM user")
	assert.Empty(t, res.Tables[0].Suggestion)

	assert.Empty(t, Suggest(s, "authors"))
	assert.Empty(t, Suggest(nil, "users"))
}

func TestResolveStatementNil(t *testing.T) {
	res := New(nil).ResolveStatement(nil)
	assert.Empty(t, res.Tables)
	assert.Empty(t, res.Columns)
}
