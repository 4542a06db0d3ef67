package gameserver

import (
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

const (
	idempotencyTTL      = 24 * time.Hour
	idempotencyMaxCache = 1000
)

// idempotencyEntry stores a cached response with timestamp
type idempotencyEntry struct {
	response  *structpb.Struct
	createdAt time.Time
}

// IdempotencyManager caches Step responses of one game by client-supplied key.
type IdempotencyManager struct {
	cache map[string]*idempotencyEntry
	mu    sync.RWMutex
}

func NewIdempotencyManager() *IdempotencyManager {
	return &IdempotencyManager{
		cache: make(map[string]*idempotencyEntry),
	}
}

// Check returns the cached response for key, or nil. Empty keys never match.
func (im *IdempotencyManager) Check(key string) *structpb.Struct {
	if key == "" {
		return nil
	}

	im.mu.RLock()
	defer im.mu.RUnlock()

	entry, exists := im.cache[key]
	if !exists || time.Since(entry.createdAt) > idempotencyTTL {
		return nil
	}
	return entry.response
}

// Store caches resp under key. Empty keys are ignored.
func (im *IdempotencyManager) Store(key string, resp *structpb.Struct) {
	if key == "" {
		return
	}

	im.mu.Lock()
	defer im.mu.Unlock()

	im.cache[key] = &idempotencyEntry{
		response:  resp,
		createdAt: time.Now(),
	}

	if len(im.cache) > idempotencyMaxCache {
		im.cleanupOldEntriesLocked()
	}
}

// cleanupOldEntriesLocked removes expired entries. Must be called with mu held.
func (im *IdempotencyManager) cleanupOldEntriesLocked() {
	cutoff := time.Now().Add(-idempotencyTTL)
	for key, entry := range im.cache {
		if entry.createdAt.Before(cutoff) {
			delete(im.cache, key)
		}
	}
}

func (im *IdempotencyManager) Len() int {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return len(im.cache)
}
