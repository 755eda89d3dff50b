package repository

import (
	"context"
	"sync"
	"time"
)

type identityEntry struct {
	uid       string
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// MemorySessionRepository is the in-process fallback used when Redis is not
// configured or is unreachable.
type MemorySessionRepository struct {
	mu         sync.Mutex
	identities map[string]identityEntry
	rateLimits map[string]*rateLimitEntry
	now        func() time.Time
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		identities: make(map[string]identityEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		now:        time.Now,
	}
}

func (r *MemorySessionRepository) GetIdentity(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.identities[key]
	if !ok {
		return "", nil
	}
	if r.now().After(entry.expiresAt) {
		delete(r.identities, key)
		return "", nil
	}
	return entry.uid, nil
}

func (r *MemorySessionRepository) SetIdentity(_ context.Context, key, uid string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.identities[key] = identityEntry{uid: uid, expiresAt: r.now().Add(ttl)}
	return nil
}

func (r *MemorySessionRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{count: 0, expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}
