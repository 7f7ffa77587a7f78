package schema

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arkilian/roomsql/internal/decl"
	"github.com/arkilian/roomsql/internal/notify"
)

func observedManager(store *decl.Store) (*Manager, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewManager(store, zap.New(core)), logs
}

func TestManagerStartsEmpty(t *testing.T) {
	m := NewManager(decl.NewStore(nil), nil)
	require.NotNil(t, m.Current())
	assert.Empty(t, m.Current().Tables)
}

func TestManagerRefresh(t *testing.T) {
	store := decl.NewStore(nil)
	m, logs := observedManager(store)

	store.Replace([]decl.SourceFile{{Path: "a.room", Text: "@Entity class A { x: Int }"}})

	s, installed := m.Refresh()
	assert.True(t, installed)
	assert.Same(t, s, m.Current())
	require.Len(t, s.Tables, 1)
	assert.Equal(t, 1, logs.FilterMessage("schema rebuilt").Len())

	// Same declarations under a new generation: nothing to rebuild.
	store.Replace([]decl.SourceFile{{Path: "a.room", Text: "@Entity class A { x: Int }"}})
	again, installed := m.Refresh()
	assert.False(t, installed)
	assert.Same(t, s, again)
	assert.Equal(t, 1, logs.FilterMessage("declarations unchanged, skipping rebuild").Len())

	store.Replace([]decl.SourceFile{{Path: "a.room", Text: "@Entity class A { x: Int\n y: Int }"}})
	changed, installed := m.Refresh()
	assert.True(t, installed)
	assert.Len(t, changed.Tables[0].Columns, 3)
	assert.NotEqual(t, s.BuildID, changed.BuildID)
}

func TestManagerLastBuildWins(t *testing.T) {
	m, logs := observedManager(decl.NewStore(nil))

	older := decl.NewSnapshot(1, []decl.SourceFile{{Path: "a.room", Text: "@Entity class Old"}})
	newer := decl.NewSnapshot(2, []decl.SourceFile{{Path: "a.room", Text: "@Entity class New"}})

	_, installed := m.Rebuild(newer)
	require.True(t, installed)

	cur, installed := m.Rebuild(older)
	assert.False(t, installed)
	assert.Equal(t, uint64(2), cur.Generation)
	assert.Equal(t, "New", m.Current().Tables[0].Name)

	stale := logs.FilterMessage("discarding stale schema build").All()
	require.Len(t, stale, 1)
	assert.Equal(t, uint64(1), stale[0].ContextMap()["generation"])
}

func TestManagerRun(t *testing.T) {
	n := notify.NewNotifier(1)
	store := decl.NewStore(n)
	m := NewManager(store, zap.NewNop())
	sub := n.Subscribe("schema", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, sub) }()

	store.Replace([]decl.SourceFile{{Path: "a.room", Text: "@Entity class A { x: Int }"}})

	require.Eventually(t, func() bool {
		return len(m.Current().Tables) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("manager did not stop")
	}
}

func TestManagerRunStopsOnClosedSubscription(t *testing.T) {
	n := notify.NewNotifier(1)
	m := NewManager(decl.NewStore(n), nil)
	sub := n.Subscribe("schema", nil)
	n.Unsubscribe("schema")

	assert.NoError(t, m.Run(context.Background(), sub))
}
