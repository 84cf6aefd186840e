package repository

import (
	"context"
	"sync"
	"time"

	"salonbook/internal/domain"
)

type windowEntry struct {
	count     int
	expiresAt time.Time
}

// MemorySubmissionLimiter is the single-process counterpart of RedisSubmissionLimiter.
type MemorySubmissionLimiter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	now     func() time.Time
}

var _ domain.SubmissionLimiter = (*MemorySubmissionLimiter)(nil)

func NewMemorySubmissionLimiter() *MemorySubmissionLimiter {
	return &MemorySubmissionLimiter{
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

func (r *MemorySubmissionLimiter) Allow(_ context.Context, clientID string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.entries[clientID]
	if !ok || !now.Before(entry.expiresAt) {
		entry = &windowEntry{expiresAt: now.Add(window)}
		r.entries[clientID] = entry
	}
	entry.count++

	return entry.count <= limit, nil
}

// Prune drops expired windows.
func (r *MemorySubmissionLimiter) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, entry := range r.entries {
		if !now.Before(entry.expiresAt) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}
