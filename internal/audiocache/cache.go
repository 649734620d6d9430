// Package audiocache holds synthesized audio just long enough for a single
// playback fetch. Reads are destructive: the first Take wins and every
// later Take for the same id misses, which prevents replay and bounds
// memory from fetched entries. Entries never fetched are reaped by age.
package audiocache

import (
	"encoding/hex"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTTL           = 10 * time.Minute
	DefaultSweepInterval = time.Minute
)

type entry struct {
	data        []byte
	contentType string
	storedAt    time.Time
}

// Cache is a consume-once in-memory store keyed by unguessable ids.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a cache whose unfetched entries expire after ttl. A janitor
// goroutine sweeps at sweepInterval; Close stops it. Non-positive values
// fall back to the defaults.
func New(ttl, sweepInterval time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go c.janitor(sweepInterval)
	return c
}

// Store inserts the audio under a fresh unguessable id and returns the id.
func (c *Cache) Store(data []byte, contentType string) string {
	id := uuid.New()
	key := hex.EncodeToString(id[:])
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{data: data, contentType: contentType, storedAt: time.Now()}
	return key
}

// Take atomically removes and returns the entry. A second Take with the
// same id, or any Take with an unknown id, reports ok=false.
func (c *Cache) Take(id string) (data []byte, contentType string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, "", false
	}
	delete(c.entries, id)
	return e.data, e.contentType, true
}

// Len reports the number of unfetched entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the janitor. The cache remains usable afterwards.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if n := c.sweep(time.Now()); n > 0 {
				log.Printf("audiocache: reaped %d unfetched entries", n)
			}
		}
	}
}

// sweep removes entries older than the TTL and returns how many went.
func (c *Cache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var reaped int
	for id, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.entries, id)
			reaped++
		}
	}
	return reaped
}
