package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerkite/ledgerkite/internal/billing"
)

// MemoryStore is an in-process Store used by tests and local
// development. It delivers the same snapshot-replacement subscription
// semantics as the backed adapters: every write replays a full snapshot
// to each subscriber of the written collection.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]billing.Document
	subs        map[string][]*memorySubscription
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]billing.Document),
		subs:        make(map[string][]*memorySubscription),
	}
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, path Path, q Query) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return applyQuery(s.docsLocked(path), q), nil
}

// Create implements Store. The store assigns the id and audit
// timestamps.
func (s *MemoryStore) Create(ctx context.Context, path Path, doc billing.Document) (string, error) {
	s.mu.Lock()
	now := time.Now().UTC()
	doc.ID = uuid.NewString()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	key := path.String()
	if s.collections[key] == nil {
		s.collections[key] = make(map[string]billing.Document)
	}
	s.collections[key][doc.ID] = doc
	s.mu.Unlock()

	s.notify(path)
	return doc.ID, nil
}

// Update implements Store with merge-patch semantics.
func (s *MemoryStore) Update(ctx context.Context, path Path, id string, patch map[string]any) error {
	s.mu.Lock()
	doc, ok := s.collections[path.String()][id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	merged, err := applyPatch(doc, patch)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	merged.ID = id
	merged.UpdatedAt = time.Now().UTC()
	s.collections[path.String()][id] = merged
	s.mu.Unlock()

	s.notify(path)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, path Path, id string) error {
	s.mu.Lock()
	if _, ok := s.collections[path.String()][id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.collections[path.String()], id)
	s.mu.Unlock()

	s.notify(path)
	return nil
}

// Subscribe implements Store. The first snapshot is delivered before
// Subscribe returns, so consumers never observe an undefined item list.
func (s *MemoryStore) Subscribe(ctx context.Context, path Path, q Query) (Subscription, error) {
	sub := &memorySubscription{
		store: s,
		path:  path,
		query: q,
		ch:    make(chan Snapshot, 16),
	}

	s.mu.Lock()
	key := path.String()
	s.subs[key] = append(s.subs[key], sub)
	sub.push(applyQuery(s.docsLocked(path), q))
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		sub.Close()
	}()
	return sub, nil
}

func (s *MemoryStore) docsLocked(path Path) []billing.Document {
	coll := s.collections[path.String()]
	docs := make([]billing.Document, 0, len(coll))
	for _, d := range coll {
		docs = append(docs, d)
	}
	return docs
}

func (s *MemoryStore) notify(path Path) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.docsLocked(path)
	for _, sub := range s.subs[path.String()] {
		sub.push(applyQuery(docs, sub.query))
	}
}

func (s *MemoryStore) unsubscribe(sub *memorySubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sub.path.String()
	subs := s.subs[key]
	for i, candidate := range subs {
		if candidate == sub {
			s.subs[key] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

type memorySubscription struct {
	store *MemoryStore
	path  Path
	query Query

	mu     sync.Mutex
	ch     chan Snapshot
	closed bool
}

// Snapshots implements Subscription.
func (m *memorySubscription) Snapshots() <-chan Snapshot {
	return m.ch
}

// Err implements Subscription. The memory adapter has no transport to
// fail, so the slot is always nil.
func (m *memorySubscription) Err() error { return nil }

// Close implements Subscription.
func (m *memorySubscription) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.ch)
	m.mu.Unlock()

	m.store.unsubscribe(m)
}

// push delivers a snapshot without ever blocking a writer: when the
// consumer lags, the oldest pending snapshot is dropped in favor of the
// newest, since each snapshot fully replaces the previous one.
func (m *memorySubscription) push(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for {
		select {
		case m.ch <- snap:
			return
		default:
			select {
			case <-m.ch:
			default:
			}
		}
	}
}
