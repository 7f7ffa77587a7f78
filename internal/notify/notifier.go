// Package notify provides an in-process structural-change bus. Declaration
// stores publish on it and schema managers subscribe to rebuild.
package notify

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// NotificationType represents the type of notification.
type NotificationType int

const (
	DeclarationsChanged NotificationType = iota
	DeclarationsCleared
)

func (t NotificationType) String() string {
	switch t {
	case DeclarationsChanged:
		return "DeclarationsChanged"
	case DeclarationsCleared:
		return "DeclarationsCleared"
	default:
		return "Unknown"
	}
}

// Notification describes one structural change of the declaration set.
type Notification struct {
	Type       NotificationType
	Generation uint64
	Sources    []string // declaration files touched by the change
	Timestamp  int64
}

// Notifier provides an in-process pub/sub bus for structural changes.
type Notifier struct {
	subscribers sync.Map
	bufferSize  int
}

// NewNotifier creates a new notifier instance. A buffer of 1 coalesces bursts:
// subscribers that only care about the latest state lose nothing when an
// intermediate notification is dropped.
func NewNotifier(bufferSize int) *Notifier {
	return &Notifier{
		bufferSize: bufferSize,
	}
}

// Publish sends a notification to all subscribers.
// Non-blocking: if a subscriber's channel is full, the notification is dropped.
func (n *Notifier) Publish(notif Notification) {
	n.subscribers.Range(func(key, value interface{}) bool {
		sub := value.(*Subscriber)
		if sub.matches(notif) {
			select {
			case sub.Ch <- notif:
			default:
				// Channel full - drop notification, do NOT block
			}
		}
		return true
	})
}

// Subscribe adds a new subscriber with a custom ID. Filters are source path
// prefixes; an empty filter list receives everything.
func (n *Notifier) Subscribe(id string, filters []string) *Subscriber {
	sub := &Subscriber{
		ID:      id,
		Filters: filters,
		Ch:      make(chan Notification, n.bufferSize),
	}
	n.subscribers.Store(sub.ID, sub)
	return sub
}

// SubscribeAutoID adds a new subscriber with a generated ID.
func (n *Notifier) SubscribeAutoID(filters ...string) *Subscriber {
	return n.Subscribe("sub_"+uuid.NewString(), filters)
}

// Unsubscribe removes a subscriber from the notifier and closes their channel.
func (n *Notifier) Unsubscribe(subID string) {
	if value, ok := n.subscribers.LoadAndDelete(subID); ok {
		sub := value.(*Subscriber)
		close(sub.Ch)
	}
}

// Subscriber represents a notification subscriber.
type Subscriber struct {
	ID      string
	Filters []string
	Ch      chan Notification
}

// matches checks whether any touched source falls under one of the
// subscriber's filters. Notifications without sources reach everyone.
func (s *Subscriber) matches(notif Notification) bool {
	if len(s.Filters) == 0 || len(notif.Sources) == 0 {
		return true
	}
	for _, filter := range s.Filters {
		if filter == "" {
			return true
		}
		for _, src := range notif.Sources {
			if strings.HasPrefix(src, filter) {
				return true
			}
		}
	}
	return false
}
