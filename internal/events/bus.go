// Package events carries document change notifications from the store to
// anyone who needs to re-read a collection: the recurrence dispatcher and the
// websocket feed.
package events

import (
	"log/slog"
	"sync"
)

const (
	CollectionTasks       = "tasks"
	CollectionHistory     = "history"
	CollectionRewards     = "rewards"
	CollectionRedemptions = "redemptions"
	CollectionUsers       = "users"
	CollectionMessages    = "messages"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Change says that a document in Collection was written. It carries no
// document body: subscribers re-read the collection.
type Change struct {
	Collection string
	Action     string
	ID         string
}

const subscriberBuffer = 64

type subscriber struct {
	collection string
	ch         chan Change
}

// Bus fans out changes to subscribers. Publish never blocks; a subscriber
// whose buffer is full misses the change, which is harmless because every
// change means the same thing ("collection is different now").
type Bus struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[*subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe returns a channel of changes for collection ("" for all) and a
// function that cancels the subscription and closes the channel.
func (b *Bus) Subscribe(collection string) (<-chan Change, func()) {
	s := &subscriber{collection: collection, ch: make(chan Change, subscriberBuffer)}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			close(s.ch)
			b.mu.Unlock()
		})
	}
	return s.ch, cancel
}

func (b *Bus) Publish(c Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		if s.collection != "" && s.collection != c.Collection {
			continue
		}
		select {
		case s.ch <- c:
		default:
			b.logger.Debug("subscriber buffer full, change dropped", "collection", c.Collection, "id", c.ID)
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
