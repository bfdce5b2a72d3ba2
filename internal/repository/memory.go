package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trackbook/internal/models"
)

// MemoryAvailabilityCache is the in-process fallback used when Redis is
// unavailable. Entries expire lazily on read.
type MemoryAvailabilityCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	sessions   map[string]time.Time
	ttl        time.Duration
	sessionTTL time.Duration
}

type memoryEntry struct {
	av        models.Availability
	expiresAt time.Time
}

func NewMemoryAvailabilityCache(ttl, sessionTTL time.Duration) *MemoryAvailabilityCache {
	return &MemoryAvailabilityCache{
		entries:    make(map[string]memoryEntry),
		sessions:   make(map[string]time.Time),
		ttl:        ttl,
		sessionTTL: sessionTTL,
	}
}

func (m *MemoryAvailabilityCache) GetAvailability(_ context.Context, slotID int64, date string) (*models.Availability, error) {
	key := fmt.Sprintf("%d:%s", slotID, date)

	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, nil
	}

	av := entry.av
	return &av, nil
}

func (m *MemoryAvailabilityCache) SetAvailability(_ context.Context, av *models.Availability) error {
	key := fmt.Sprintf("%d:%s", av.SlotID, av.Date.Format("2006-01-02"))

	m.mu.Lock()
	m.entries[key] = memoryEntry{av: *av, expiresAt: time.Now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryAvailabilityCache) InvalidateAvailability(_ context.Context, slotID int64, date string) error {
	key := fmt.Sprintf("%d:%s", slotID, date)

	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryAvailabilityCache) MarkSessionSeen(_ context.Context, sessionID string) error {
	m.mu.Lock()
	m.sessions[sessionID] = time.Now().Add(m.sessionTTL)
	m.mu.Unlock()
	return nil
}

func (m *MemoryAvailabilityCache) SessionSeen(_ context.Context, sessionID string) (bool, error) {
	m.mu.RLock()
	expiresAt, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		m.mu.Lock()
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		return false, nil
	}
	return true, nil
}
