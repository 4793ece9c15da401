package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryStore_SlidingExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Hour)
	s.now = func() time.Time { return now }

	operatorID := uuid.New()
	token, err := s.Create(context.Background(), operatorID)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	// 50 minutes in, the session is alive and the resolve refreshes it.
	now = now.Add(50 * time.Minute)
	got, err := s.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != operatorID {
		t.Fatalf("expected operator %s, got %s", operatorID, got)
	}

	// Another 50 minutes would have exceeded the original expiry, but the
	// refresh above moved it.
	now = now.Add(50 * time.Minute)
	if _, err := s.Resolve(context.Background(), token); err != nil {
		t.Fatalf("expected refreshed session to be alive, got %v", err)
	}

	// Let it lapse for real.
	now = now.Add(2 * time.Hour)
	if _, err := s.Resolve(context.Background(), token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for lapsed session, got %v", err)
	}
}

func TestMemoryStore_Destroy(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	token, err := s.Create(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := s.Destroy(context.Background(), token); err != nil {
		t.Fatalf("Destroy returned error: %v", err)
	}
	if _, err := s.Resolve(context.Background(), token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected destroyed session to be gone, got %v", err)
	}

	// Destroying an unknown token is not an error.
	if err := s.Destroy(context.Background(), "no-such-token"); err != nil {
		t.Fatalf("expected nil for unknown token, got %v", err)
	}
}

func TestMemoryStore_SweepDropsOnlyExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Hour)
	s.now = func() time.Time { return now }

	stale, err := s.Create(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	now = now.Add(30 * time.Minute)
	fresh, err := s.Create(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	now = now.Add(45 * time.Minute)
	removed, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed session, got %d", removed)
	}
	if _, err := s.Resolve(context.Background(), stale); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected stale session to be swept, got %v", err)
	}
	if _, err := s.Resolve(context.Background(), fresh); err != nil {
		t.Fatalf("expected fresh session to survive, got %v", err)
	}
}
