// Package mirror keeps an in-memory view of one remote document
// collection synchronized with the backing store. The mirror owns its
// item list exclusively: a live subscription replaces the list on every
// upstream change, and callers mutate only through the write-through
// CRUD methods.
package mirror

import (
	"context"
	"sync"

	"github.com/ledgerkite/ledgerkite/internal/billing"
	"github.com/ledgerkite/ledgerkite/internal/docstore"
)

// State is a point-in-time copy of the mirror for consumers. Items is
// never nil once the first snapshot has arrived, even for an empty
// collection.
type State struct {
	Items     []billing.Document `json:"items"`
	IsLoading bool               `json:"is_loading"`
	LastError error              `json:"-"`
	Cursor    string             `json:"cursor,omitempty"`
}

// Mirror is a subscription-backed cache of one (path, query) view.
// It enforces at most one active subscription per instance: changing the
// query tears the previous subscription down before the new one starts,
// so two subscriptions can never race to populate the same item list.
type Mirror struct {
	store docstore.Store
	path  docstore.Path

	mu        sync.Mutex
	query     docstore.Query
	sub       docstore.Subscription
	gen       int
	items     []billing.Document
	cursor    string
	loading   bool
	lastErr   error
	watchers  map[int]chan State
	nextWatch int
	closed    bool
}

// New constructs a Mirror for a collection path. No subscription exists
// until Start is called.
func New(store docstore.Store, path docstore.Path) *Mirror {
	return &Mirror{
		store:    store,
		path:     path,
		watchers: make(map[int]chan State),
	}
}

// Start establishes the subscription for the given query descriptor.
// Calling Start on a running mirror is equivalent to SetQuery.
func (m *Mirror) Start(ctx context.Context, q docstore.Query) error {
	return m.SetQuery(ctx, q)
}

// SetQuery atomically replaces the active subscription with one for the
// new descriptor. The old subscription is closed before the new one is
// registered; snapshots it may still deliver are discarded by
// generation check.
func (m *Mirror) SetQuery(ctx context.Context, q docstore.Query) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return docstore.ErrSubscriptionClosed
	}
	if m.sub != nil {
		m.sub.Close()
		m.sub = nil
	}
	m.gen++
	gen := m.gen
	m.query = q
	m.loading = true
	m.mu.Unlock()

	sub, err := m.store.Subscribe(ctx, m.path, q)
	if err != nil {
		m.mu.Lock()
		if gen == m.gen {
			m.loading = false
			m.lastErr = err
		}
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	if gen != m.gen || m.closed {
		// A newer SetQuery or Close won the race.
		m.mu.Unlock()
		sub.Close()
		return nil
	}
	m.sub = sub
	m.mu.Unlock()

	go m.consume(gen, sub)
	return nil
}

// Close tears down the subscription and all watcher channels.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.gen++
	sub := m.sub
	m.sub = nil
	for id, ch := range m.watchers {
		close(ch)
		delete(m.watchers, id)
	}
	m.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// State returns a copy of the mirror state. The returned item slice is
// the caller's to keep; mutations through it never reach the mirror.
func (m *Mirror) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]billing.Document, len(m.items))
	copy(items, m.items)
	return State{
		Items:     items,
		IsLoading: m.loading,
		LastError: m.lastErr,
		Cursor:    m.cursor,
	}
}

// Watch registers a channel that receives the mirror state after every
// applied snapshot. The returned stop function unregisters it.
func (m *Mirror) Watch() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextWatch
	m.nextWatch++
	ch := make(chan State, 4)
	m.watchers[id] = ch
	stop := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if w, ok := m.watchers[id]; ok {
			close(w)
			delete(m.watchers, id)
		}
	}
	return ch, stop
}

// Create writes through to the store. The local item list is not
// touched on success; the new document arrives via the subscription.
// Failures are recorded in the shared error slot and returned.
func (m *Mirror) Create(ctx context.Context, doc billing.Document) (string, error) {
	id, err := m.store.Create(ctx, m.path, doc)
	m.recordErr(err)
	return id, err
}

// Update writes a merge patch through to the store.
func (m *Mirror) Update(ctx context.Context, id string, patch map[string]any) error {
	err := m.store.Update(ctx, m.path, id, patch)
	m.recordErr(err)
	return err
}

// Delete writes through to the store.
func (m *Mirror) Delete(ctx context.Context, id string) error {
	err := m.store.Delete(ctx, m.path, id)
	m.recordErr(err)
	return err
}

func (m *Mirror) recordErr(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Mirror) consume(gen int, sub docstore.Subscription) {
	for snap := range sub.Snapshots() {
		m.apply(gen, snap)
	}
	if err := sub.Err(); err != nil {
		m.mu.Lock()
		if gen == m.gen {
			m.lastErr = err
		}
		m.mu.Unlock()
	}
}

func (m *Mirror) apply(gen int, snap docstore.Snapshot) {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return
	}
	items := snap.Documents
	if items == nil {
		items = []billing.Document{}
	}
	m.items = items
	m.cursor = snap.Cursor
	m.loading = false
	m.lastErr = nil

	state := State{
		Items:     append([]billing.Document(nil), items...),
		IsLoading: false,
		Cursor:    snap.Cursor,
	}
	watchers := make([]chan State, 0, len(m.watchers))
	for _, ch := range m.watchers {
		watchers = append(watchers, ch)
	}
	m.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- state:
		default:
		}
	}
}
