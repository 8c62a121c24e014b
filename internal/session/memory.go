package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/appointment-web/internal/model"
)

// MemoryStore keeps sessions in process. Entries are stored encoded so
// concurrent requests of one browser never share a *Session.
type MemoryStore struct {
	cache       *cache.Cache
	ttl         time.Duration
	inFlightTTL time.Duration

	// notifyMu serializes read-modify-write of notification queues.
	notifyMu sync.Mutex
}

func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		cache:       cache.New(ttl, cleanupInterval),
		ttl:         ttl,
		inFlightTTL: StaleAfter,
	}
}

func notifyKey(id string) string { return "notify:" + id }

func inFlightKey(id, key string) string { return "inflight:" + id + ":" + key }

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("session %s: unexpected cache entry %T", id, v)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	s.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	m.cache.Set(s.ID, data, m.ttl)

	if pending := s.Flash(); len(pending) > 0 {
		m.notifyMu.Lock()
		defer m.notifyMu.Unlock()
		queued := m.queued(s.ID)
		m.cache.Set(notifyKey(s.ID), append(queued, pending...), m.ttl)
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.cache.Delete(id)
	m.cache.Delete(notifyKey(id))
	return nil
}

func (m *MemoryStore) Drain(_ context.Context, id string) ([]model.Notification, error) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	queued := m.queued(id)
	m.cache.Delete(notifyKey(id))
	return queued, nil
}

// queued returns a copy of id's queue. Callers hold notifyMu.
func (m *MemoryStore) queued(id string) []model.Notification {
	v, ok := m.cache.Get(notifyKey(id))
	if !ok {
		return nil
	}
	queued, _ := v.([]model.Notification)
	return append([]model.Notification(nil), queued...)
}

func (m *MemoryStore) Mark(_ context.Context, id, key string) error {
	m.cache.Set(inFlightKey(id, key), struct{}{}, m.inFlightTTL)
	return nil
}

func (m *MemoryStore) Unmark(_ context.Context, id, key string) error {
	m.cache.Delete(inFlightKey(id, key))
	return nil
}

func (m *MemoryStore) Marked(_ context.Context, id, key string) (bool, error) {
	_, ok := m.cache.Get(inFlightKey(id, key))
	return ok, nil
}

// Ping always succeeds; it lets readiness checks treat both stores alike.
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
