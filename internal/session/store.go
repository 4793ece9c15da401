/**
 * @description
 * This package manages operator console sessions. A session is created at
 * login, carries a sliding expiry that refreshes on every authenticated
 * request, and is destroyed at logout or by the periodic sweep once it goes
 * stale.
 *
 * Two implementations exist: an in-memory store for single-instance
 * deployments and development, and a Redis-backed store (redis_store.go)
 * for deployments where operators may hit any replica.
 *
 * @dependencies
 * - context, sync, time: Standard Go libraries.
 * - github.com/google/uuid: Session tokens and operator identifiers.
 */
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a token does not map to a live session.
var ErrSessionNotFound = errors.New("session not found or expired")

// Store is the contract for operator session storage.
type Store interface {
	// Create opens a session for the operator and returns its token.
	Create(ctx context.Context, operatorID uuid.UUID) (string, error)
	// Resolve returns the operator behind a token and refreshes the sliding
	// expiry. Expired or unknown tokens yield ErrSessionNotFound.
	Resolve(ctx context.Context, token string) (uuid.UUID, error)
	// Destroy ends the session. Destroying an unknown token is not an error.
	Destroy(ctx context.Context, token string) error
	// Sweep drops expired sessions. Implementations with native expiry may
	// make this a no-op.
	Sweep(ctx context.Context) (int, error)
}

type memoryEntry struct {
	operatorID uuid.UUID
	expiresAt  time.Time
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-memory session store with the given TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, operatorID uuid.UUID) (string, error) {
	token := uuid.New().String()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = memoryEntry{operatorID: operatorID, expiresAt: s.now().Add(s.ttl)}
	return token, nil
}

func (s *MemoryStore) Resolve(ctx context.Context, token string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[token]
	if !ok {
		return uuid.Nil, ErrSessionNotFound
	}
	now := s.now()
	if now.After(entry.expiresAt) {
		delete(s.entries, token)
		return uuid.Nil, ErrSessionNotFound
	}
	entry.expiresAt = now.Add(s.ttl)
	s.entries[token] = entry
	return entry.operatorID, nil
}

func (s *MemoryStore) Destroy(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
	return nil
}

// Sweep removes expired entries and returns how many were dropped.
func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for token, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, token)
			removed++
		}
	}
	return removed, nil
}
