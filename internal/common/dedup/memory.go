package dedup

import (
	"context"
	"sync"
	"time"
)

// sweepInterval bounds how often MarkProcessed scans for expired entries.
const sweepInterval = time.Minute

type processedMessage struct {
	grantID     string
	processedAt time.Time
}

// MemoryStore is a process-local Store. Entries expire after ttl and are
// evicted on lookup and by a periodic sweep in MarkProcessed; a zero ttl
// keeps them until Cleanup. Its contents do not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	processed map[string]processedMessage
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		processed: make(map[string]processedMessage),
		ttl:       ttl,
		now:       time.Now,
	}
}

func (m *MemoryStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, exists := m.processed[messageID]
	if !exists {
		return false, nil
	}
	if m.expired(msg, m.now()) {
		delete(m.processed, messageID)
		return false, nil
	}
	return true, nil
}

func (m *MemoryStore) MarkProcessed(ctx context.Context, messageID, grantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.processed == nil {
		m.processed = make(map[string]processedMessage)
	}
	now := m.now()
	if m.ttl > 0 && now.Sub(m.lastSweep) >= sweepInterval {
		for id, msg := range m.processed {
			if m.expired(msg, now) {
				delete(m.processed, id)
			}
		}
		m.lastSweep = now
	}
	m.processed[messageID] = processedMessage{
		grantID:     grantID,
		processedAt: now,
	}
	return nil
}

func (m *MemoryStore) expired(msg processedMessage, now time.Time) bool {
	return m.ttl > 0 && now.Sub(msg.processedAt) > m.ttl
}

func (m *MemoryStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-olderThan)
	for id, msg := range m.processed {
		if msg.processedAt.Before(cutoff) {
			delete(m.processed, id)
		}
	}
	return nil
}

// Len returns the number of tracked messages, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.processed)
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processed = nil
	return nil
}
