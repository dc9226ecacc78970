package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore keeps encoded sessions in a map. Entries are copied in and out
// so callers never share a *Session with the store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

// NewMemoryStore starts a sweeper that drops expired entries every interval
// until ctx is done.
func NewMemoryStore(ctx context.Context, interval time.Duration) *MemoryStore {
	m := &MemoryStore{
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
	}
	if interval > 0 {
		go m.sweep(ctx, interval)
	}
	return m
}

func (m *MemoryStore) Load(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	e, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok || !e.expires.After(m.now()) {
		return nil, ErrNotFound
	}
	var s Session
	if err := json.Unmarshal(e.data, &s); err != nil {
		return nil, xerrors.Wrap(err, "session: decode")
	}
	s.ID = id
	return &s, nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return xerrors.Wrap(err, "session: encode")
	}
	m.mu.Lock()
	m.sessions[s.ID] = memoryEntry{data: data, expires: s.ExpiresAt}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included until swept.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MemoryStore) cleanupExpired() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.sessions {
		if !e.expires.After(now) {
			delete(m.sessions, id)
		}
	}
}

func (m *MemoryStore) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanupExpired()
		}
	}
}
