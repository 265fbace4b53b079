// Package sessioncache holds short-lived per-user search results and
// resolved resource lists.
//
// Each owner has at most one entry per entry kind. Entries expire a fixed
// interval after creation; expiry is enforced on read and reads never renew
// it. The cache is process-scoped shared state and safe for concurrent use.
package sessioncache

import (
	"sync"
	"time"

	"ferry/internal/media"
)

// TTL is how long an entry stays readable after Put.
const TTL = 3600 * time.Second

// EntryKind selects one of the independent per-owner slots.
type EntryKind int

const (
	// SearchResults holds the items of the owner's last search.
	SearchResults EntryKind = iota
	// Resources holds the owner's last resolved resource list.
	Resources
)

func (k EntryKind) String() string {
	switch k {
	case SearchResults:
		return "search"
	case Resources:
		return "resources"
	default:
		return "unknown"
	}
}

// Entry is one cached payload with its echo fields.
type Entry struct {
	Owner     string
	Kind      EntryKind
	CreatedAt time.Time

	Items     []media.SearchItem // SearchResults payload
	Resources []media.Resource   // Resources payload

	// Echo fields carried on Resources entries.
	SourceTitle  string
	ResourceType media.ResourceType
}

// ExpiresAt is the instant the entry stops being readable.
func (e Entry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(TTL)
}

type key struct {
	owner string
	kind  EntryKind
}

// Cache is a TTL-bound per-user store. The zero value is not usable; call New.
type Cache struct {
	mu      sync.Mutex
	entries map[key]Entry
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[key]Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put stores an entry, unconditionally replacing any prior entry for the
// same (owner, kind). The other kind's slot for the owner is untouched.
func (c *Cache) Put(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.CreatedAt = c.now()
	c.entries[key{owner: entry.Owner, kind: entry.Kind}] = entry
}

// Get returns the live entry for (owner, kind). Expired entries are purged
// and reported as missing.
func (c *Cache) Get(owner string, kind EntryKind) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{owner: owner, kind: kind}
	entry, ok := c.entries[k]
	if !ok {
		return Entry{}, false
	}
	if c.now().Sub(entry.CreatedAt) >= TTL {
		delete(c.entries, k)
		return Entry{}, false
	}
	return entry, true
}

// Drop removes the entry for (owner, kind) if present.
func (c *Cache) Drop(owner string, kind EntryKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key{owner: owner, kind: kind})
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
