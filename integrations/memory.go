package integrations

import (
	"context"
	"sort"
	"sync"

	"github.com/chxlky/boardsync/internal/models"
)

// MemoryStore is the backing state of MemoryCalendar, keyed by account.
// Callers own its lifetime; tests create one per case.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]map[string]EventInput
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]map[string]EventInput)}
}

func (m *MemoryStore) bucket(account string) map[string]EventInput {
	b, ok := m.accounts[account]
	if !ok {
		b = make(map[string]EventInput)
		m.accounts[account] = b
	}
	return b
}

// Events returns a snapshot of an account's events sorted by remote id.
func (m *MemoryStore) Events(account string) []EventInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventInput, 0, len(m.accounts[account]))
	for _, ev := range m.accounts[account] {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemoteID < out[j].RemoteID })
	return out
}

// MemoryCalendar is a deterministic CalendarAdapter. Remote ids derive from
// the idempotency key, so replays overwrite instead of duplicating.
type MemoryCalendar struct {
	store *MemoryStore
}

func NewMemoryCalendar(store *MemoryStore) *MemoryCalendar {
	return &MemoryCalendar{store: store}
}

func (c *MemoryCalendar) Create(_ context.Context, in EventInput) (Result, error) {
	id := in.RemoteID
	if id == "" {
		key := in.IdempotencyKey
		if key == "" {
			key = in.AccountEmail + "|" + in.Title + "|" + in.Start.UTC().String()
		}
		id = "evt_" + RemoteEventID(key)[:20]
	}
	in.RemoteID = id

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.bucket(in.AccountEmail)[id] = in
	return Result{Status: models.SyncSynced, RemoteID: id}, nil
}

func (c *MemoryCalendar) Update(_ context.Context, in EventInput) (Result, error) {
	if in.RemoteID == "" {
		return Result{Status: models.SyncError, Message: "missing id"}, nil
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	b := c.store.bucket(in.AccountEmail)
	if _, ok := b[in.RemoteID]; !ok {
		return Result{Status: models.SyncPending}, nil
	}
	b[in.RemoteID] = in
	return Result{Status: models.SyncSynced, RemoteID: in.RemoteID}, nil
}

func (c *MemoryCalendar) Delete(_ context.Context, ref EventRef) (Result, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	delete(c.store.bucket(ref.AccountEmail), ref.RemoteID)
	return Result{Status: models.SyncSynced}, nil
}
