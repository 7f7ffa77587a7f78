package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arkilian/roomsql/internal/config"
	"github.com/arkilian/roomsql/internal/decl"
	engerrors "github.com/arkilian/roomsql/internal/errors"
	"github.com/arkilian/roomsql/internal/index"
	"github.com/arkilian/roomsql/internal/storage"
)

const usersDecl = `
@Entity(tableName = "users") class User {
  @PrimaryKey id: Int
  name: String
}
@Entity class T1 { c1: Int }
`

func newTestApp(t *testing.T, decls string) *App {
	t.Helper()
	dir := t.TempDir()
	declPath := filepath.Join(dir, "model.room")
	require.NoError(t, os.WriteFile(declPath, []byte(decls), 0o644))

	cfg := config.DefaultConfig()
	cfg.Declarations.Paths = []string{declPath}
	cfg.Export.Path = filepath.Join(dir, "exports")

	a, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { a.Stop(context.Background()) })
	return a
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Log.Level = "loud"
	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.Equal(t, engerrors.CodeInvalidConfig, engerrors.GetCode(err))
}

func TestStartLoadsDeclarations(t *testing.T) {
	a := newTestApp(t, usersDecl)

	s := a.Schema()
	require.Len(t, s.Tables, 2)
	assert.Equal(t, uint64(1), s.Generation)

	assert.NotNil(t, a.Resolver().ResolveTable("users"))
	assert.Error(t, a.Start(context.Background()), "second start must fail")
}

func TestStartFailsOnMissingDeclarations(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Declarations.Paths = []string{filepath.Join(t.TempDir(), "missing.room")}
	a, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Error(t, a.Start(context.Background()))
}

func TestReplaceDeclarations(t *testing.T) {
	a := newTestApp(t, usersDecl)

	s := a.ReplaceDeclarations([]decl.SourceFile{{Path: "b.room", Text: "@Entity class Other { x: Int }"}})
	require.Len(t, s.Tables, 1)
	assert.Equal(t, "Other", s.Tables[0].Name)
	assert.Nil(t, a.Resolver().ResolveTable("users"))

	// The background manager rebuilds the same generation at most.
	require.Eventually(t, func() bool {
		cur := a.Schema()
		return cur.Generation == s.Generation && len(cur.Tables) == 1
	}, time.Second, 10*time.Millisecond)

	// A malformed file is skipped; the rest of the set still builds.
	s = a.ReplaceDeclarations([]decl.SourceFile{
		{Path: "b.room", Text: "@Entity class Other { x: Int }"},
		{Path: "c.room", Text: "@Entity class {"},
	})
	require.Len(t, s.Tables, 1)
	assert.Equal(t, "Other", a.Schema().Tables[0].Name)
	assert.Len(t, a.Declarations().Current().Errors, 1)
}

func TestStartSkipsMalformedDeclarations(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.room"), []byte(usersDecl), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.room"), []byte("@Entity class {"), 0o644))

	cfg := config.DefaultConfig()
	cfg.Declarations.Paths = []string{dir}
	core, logs := observer.New(zap.DebugLevel)
	a, err := New(cfg, zap.New(core))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { a.Stop(context.Background()) })

	assert.NotNil(t, a.Resolver().ResolveTable("users"))
	assert.NotNil(t, a.Resolver().ResolveTable("T1"))

	skipped := logs.FilterMessage("declaration file skipped").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, zap.WarnLevel, skipped[0].Level)
	assert.Contains(t, skipped[0].ContextMap()["error"], "broken.room")
}

func TestResolveReferences(t *testing.T) {
	a := newTestApp(t, usersDecl)

	res := a.ResolveReferences("SELECT u.name, c1 FROM users u, T1 WHERE u.id = :id")
	tables, columns := res.Unresolved()
	assert.Empty(t, tables)
	assert.Empty(t, columns)

	res = a.ResolveReferences("SELECT * FROM user")
	tables, _ = res.Unresolved()
	require.Len(t, tables, 1)
	assert.Equal(t, "users", tables[0].Suggestion)
}

func TestRewriteAndBinding(t *testing.T) {
	a := newTestApp(t, usersDecl)

	stmt := a.Rewrite("SELECT * FROM users WHERE id = :id AND name = ?")
	assert.Equal(t, "SELECT * FROM users WHERE id = ? AND name = ?", stmt.RewrittenText)
	assert.Equal(t, []string{"id", "name"}, stmt.ParameterNames)

	assert.True(t, a.NeedsBinding("SELECT :x"))
	assert.False(t, a.NeedsBinding("SELECT 1"))
}

func TestInline(t *testing.T) {
	a := newTestApp(t, usersDecl)

	text, findings, err := a.Inline("SELECT * FROM users WHERE id = :id AND name = :name", []any{7, "bob"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE id = 7 AND name = 'bob'", text)
	assert.Empty(t, findings)

	_, findings, err = a.Inline("SELECT * FROM users WHERE name = ?", []any{"'; DROP TABLE users--"})
	require.NoError(t, err)
	assert.Len(t, findings, 1)

	_, _, err = a.Inline("SELECT * FROM users WHERE id = ? AND name = ?", []any{1})
	require.Error(t, err)
	assert.True(t, engerrors.IsFatal(err))
	assert.Equal(t, engerrors.CodeArityMismatch, engerrors.GetCode(err))
}

func TestExec(t *testing.T) {
	a := newTestApp(t, usersDecl)
	ctx := context.Background()

	res, err := a.Exec(ctx, "INSERT INTO users (id, name) VALUES (:id, :name)", map[string]any{"id": 1, "name": "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"rows_affected"}, res.Columns)
	assert.EqualValues(t, 1, res.Rows[0][0])

	res, err = a.Exec(ctx, "SELECT name FROM users WHERE id = :id", map[string]any{"id": 1})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "alice", res.Rows[0][0])
}

func TestExportRoundTrip(t *testing.T) {
	a := newTestApp(t, usersDecl)
	ctx := context.Background()

	key, err := a.ExportSchema(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, "schemas/app.rsq", key)

	names, err := a.ListExports(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, names)

	desc, err := a.ReadExport(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, a.Schema().BuildID, desc.BuildID)
	require.Len(t, desc.Tables, 2)
	assert.Equal(t, "users", desc.Tables[0].Name)

	require.NoError(t, a.DeleteExport(ctx, "app"))
	_, err = a.ReadExport(ctx, "app")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestStopIsIdempotent(t *testing.T) {
	a := newTestApp(t, usersDecl)
	require.NoError(t, a.Stop(context.Background()))
	require.NoError(t, a.Stop(context.Background()))
}

func TestPredicateStatsAndStatementCache(t *testing.T) {
	a := newTestApp(t, usersDecl)
	ctx := context.Background()

	const sql = "SELECT * FROM users WHERE id = :id AND nope = 1"
	a.ResolveReferences(sql)
	a.ResolveReferences(sql)
	_, err := a.Exec(ctx, "SELECT id FROM users WHERE name LIKE :p", map[string]any{"p": "a%"})
	require.NoError(t, err)

	predicates, unresolved := a.TopPredicates(10)
	require.Len(t, predicates, 2)
	assert.Equal(t, "users.id", predicates[0].Column)
	assert.EqualValues(t, 2, predicates[0].Frequency)
	assert.Equal(t, "users.name", predicates[1].Column)
	assert.Equal(t, 1, predicates[1].Operators["LIKE"])

	require.Len(t, unresolved, 1)
	assert.Equal(t, "nope", unresolved[0].Column)

	hits, misses, entries := a.StatementCacheStats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 2, misses)
	assert.Equal(t, 2, entries)
}

func TestTuneIndexes(t *testing.T) {
	a := newTestApp(t, usersDecl)
	a.cfg.Index.CreateThreshold = 2
	a.cfg.Index.DropThreshold = 1
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		a.ResolveReferences("SELECT * FROM users WHERE name = :name AND id = :id")
	}
	a.ResolveReferences("SELECT * FROM T1 WHERE c1 > 0")

	actions, err := a.TuneIndexes(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, index.ActionCreate, actions[0].Type)
	assert.Equal(t, "index_users_name", actions[0].Index.Name)

	e, err := a.Executor(ctx)
	require.NoError(t, err)
	indexes, err := e.ListIndexes(ctx)
	require.NoError(t, err)
	require.Len(t, indexes, 1)
	assert.Equal(t, "name", indexes[0].Column)

	actions, err = a.TuneIndexes(ctx)
	require.NoError(t, err)
	assert.Empty(t, actions, "a used index is kept")
}
