package decl

import (
	"sync"
	"time"

	"github.com/arkilian/roomsql/internal/notify"
)

// Store holds the live declaration snapshot. Every Replace bumps the
// generation and publishes a structural-change notification.
type Store struct {
	mu       sync.RWMutex
	current  *Snapshot
	notifier *notify.Notifier
}

// NewStore creates an empty store. The notifier may be nil.
func NewStore(notifier *notify.Notifier) *Store {
	return &Store{current: NewSnapshot(0, nil), notifier: notifier}
}

// Current returns the live snapshot. Snapshots are immutable, so callers may
// keep it as long as they like; it simply stops being current.
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace parses files into the next generation and installs it. Files that
// fail to parse are reported in the snapshot's Errors and contribute nothing.
func (s *Store) Replace(files []SourceFile) *Snapshot {
	s.mu.Lock()
	snap := NewSnapshot(s.current.Generation+1, files)
	s.current = snap
	s.mu.Unlock()

	typ := notify.DeclarationsChanged
	if len(files) == 0 {
		typ = notify.DeclarationsCleared
	}
	s.publish(typ, snap)
	return snap
}

func (s *Store) publish(typ notify.NotificationType, snap *Snapshot) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(notify.Notification{
		Type:       typ,
		Generation: snap.Generation,
		Sources:    snap.SourcePaths(),
		Timestamp:  time.Now().UnixNano(),
	})
}

// Lookup re-resolves a handle against the live snapshot. A handle from an
// older generation stays valid as long as its path still exists.
func (s *Store) Lookup(h Handle) (Element, bool) {
	if h.IsZero() {
		return nil, false
	}
	return s.Current().Lookup(h.Path)
}

// IsCurrent reports whether h was issued by the live snapshot.
func (s *Store) IsCurrent(h Handle) bool {
	return h.Generation == s.Current().Generation
}
