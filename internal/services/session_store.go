package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Renarion/AI-for-mock-interview/internal/models"

	"github.com/patrickmn/go-cache"
)

// sessionEntry pairs a session with the lock that serializes its mutations
type sessionEntry struct {
	mu      sync.Mutex
	session *models.Session
}

// SessionStore holds in-flight and finished sessions in memory.
// Entries not touched for the idle TTL are evicted by the cache janitor.
type SessionStore struct {
	cache *cache.Cache
}

// NewSessionStore creates a session store. idleTTL <= 0 disables eviction.
func NewSessionStore(idleTTL time.Duration) *SessionStore {
	expiration, cleanup := idleTTL, 10*time.Minute
	if idleTTL <= 0 {
		expiration, cleanup = cache.NoExpiration, 0
	} else if idleTTL < cleanup {
		cleanup = idleTTL
	}

	c := cache.New(expiration, cleanup)

	c.OnEvicted(func(key string, value interface{}) {
		if entry, ok := value.(*sessionEntry); ok {
			entry.mu.Lock()
			status := entry.session.Status
			entry.mu.Unlock()
			log.Printf("🗑️  [SESSION-STORE] Evicted session %s (status: %s)", key, status)
		}
	})

	return &SessionStore{cache: c}
}

// Create stores a new session; ids must be unique
func (s *SessionStore) Create(session *models.Session) error {
	entry := &sessionEntry{session: session}
	if err := s.cache.Add(session.ID, entry, cache.DefaultExpiration); err != nil {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	log.Printf("📦 [SESSION-STORE] Stored session %s for user %s (%d tasks)", session.ID, session.UserID, len(session.Tasks))
	return nil
}

func (s *SessionStore) entry(id string) (*sessionEntry, bool) {
	value, found := s.cache.Get(id)
	if !found {
		return nil, false
	}
	entry, ok := value.(*sessionEntry)
	return entry, ok
}

// With runs fn while holding the session's lock and refreshes its idle TTL.
// Mutations made by fn are kept even when fn returns an error, so callers
// must validate before they mutate.
func (s *SessionStore) With(id string, fn func(session *models.Session) error) error {
	entry, ok := s.entry(id)
	if !ok {
		return newError(KindNotFound, "session %s not found", id)
	}

	// Re-setting the same pointer slides the expiration window
	s.cache.Set(id, entry, cache.DefaultExpiration)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry.session)
}

// Get returns a deep copy of the session
func (s *SessionStore) Get(id string) (*models.Session, bool) {
	entry, ok := s.entry(id)
	if !ok {
		return nil, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Clone(), true
}

// IDs returns the ids of all stored sessions
func (s *SessionStore) IDs() []string {
	items := s.cache.Items()
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of stored sessions, including expired ones not yet swept
func (s *SessionStore) Count() int {
	return s.cache.ItemCount()
}

// Delete removes a session from the store
func (s *SessionStore) Delete(id string) {
	s.cache.Delete(id)
}
