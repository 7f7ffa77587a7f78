package schema

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/arkilian/roomsql/internal/decl"
	"github.com/arkilian/roomsql/internal/notify"
)

// Manager owns the current Schema and rebuilds it when declarations change.
// Readers always see a fully built schema.
type Manager struct {
	store   *decl.Store
	logger  *zap.Logger
	current atomic.Pointer[Schema]

	mu              sync.Mutex
	lastFingerprint uint64
	built           bool
}

// NewManager creates a manager over store. A nil logger is replaced by a
// no-op logger.
func NewManager(store *decl.Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{store: store, logger: logger.Named("schema")}
	m.current.Store(&Schema{})
	return m
}

// Current returns the installed schema.
func (m *Manager) Current() *Schema {
	return m.current.Load()
}

// Rebuild builds a schema from snap and installs it unless a schema for a
// newer generation is already installed. It returns the schema that is
// current afterwards and whether the new one was installed.
func (m *Manager) Rebuild(snap *decl.Snapshot) (*Schema, bool) {
	start := time.Now()
	built := Build(snap)

	for {
		cur := m.current.Load()
		if cur != nil && cur.Generation > built.Generation {
			m.logger.Debug("discarding stale schema build",
				zap.Uint64("generation", built.Generation),
				zap.Uint64("current_generation", cur.Generation))
			return cur, false
		}
		if m.current.CompareAndSwap(cur, built) {
			break
		}
	}

	m.mu.Lock()
	m.lastFingerprint = snap.Fingerprint()
	m.built = true
	m.mu.Unlock()

	m.logger.Debug("schema rebuilt",
		zap.String("build_id", built.BuildID),
		zap.Uint64("generation", built.Generation),
		zap.Int("tables", len(built.Tables)),
		zap.Int("databases", len(built.Databases)),
		zap.Int("daos", len(built.Daos)),
		zap.Duration("elapsed", time.Since(start)))
	return built, true
}

// Refresh rebuilds from the store's live snapshot unless its declarations are
// identical to the last build's.
func (m *Manager) Refresh() (*Schema, bool) {
	snap := m.store.Current()

	m.mu.Lock()
	unchanged := m.built && snap.Fingerprint() == m.lastFingerprint
	m.mu.Unlock()

	if unchanged {
		m.logger.Debug("declarations unchanged, skipping rebuild",
			zap.Uint64("generation", snap.Generation))
		return m.Current(), false
	}
	return m.Rebuild(snap)
}

// Run rebuilds on every notification until ctx is done or the subscription
// is closed.
func (m *Manager) Run(ctx context.Context, sub *notify.Subscriber) error {
	m.logger.Debug("schema manager started", zap.String("subscriber", sub.ID))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notif, ok := <-sub.Ch:
			if !ok {
				return nil
			}
			m.logger.Debug("declarations changed",
				zap.Stringer("type", notif.Type),
				zap.Uint64("generation", notif.Generation))
			m.Refresh()
		}
	}
}
