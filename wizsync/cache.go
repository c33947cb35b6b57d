package wizsync

import (
	"sync"
	"time"
)

// cacheEntry is anything indexable by the two natural keys.
type cacheEntry interface {
	externalKey() string
	acctKey() string
}

func (r *AccountRow) externalKey() string { return r.ExternalId }
func (r *AccountRow) acctKey() string     { return r.AccountKey }
func (c *ContactRow) externalKey() string { return c.ExternalId }
func (c *ContactRow) acctKey() string     { return c.AccountKey }

// Snapshot is one immutable published state of a report cache. Queries grab
// a snapshot once and read it without further locking, so every lookup
// within one query observes the same sync generation.
type Snapshot[T cacheEntry] struct {
	Rows         []T
	byExternalId map[string]T
	byAccountKey map[string]T
	syncedAt     *time.Time
}

func (s *Snapshot[T]) ByExternalId(key string) (T, bool) {
	v, ok := s.byExternalId[key]
	return v, ok
}

func (s *Snapshot[T]) ByAccountKey(key string) (T, bool) {
	v, ok := s.byAccountKey[key]
	return v, ok
}

func (s *Snapshot[T]) SyncedAt() *time.Time {
	return s.syncedAt
}

// reportCache holds the current snapshot for one report kind. There is no
// TTL or eviction: data stays valid until the next successful sync replaces
// it wholesale. A stale cache is preferred over blocking reads on a slow
// upstream.
type reportCache[T cacheEntry] struct {
	mu   sync.RWMutex
	snap *Snapshot[T]
}

func newReportCache[T cacheEntry]() *reportCache[T] {
	return &reportCache[T]{
		snap: &Snapshot[T]{
			byExternalId: map[string]T{},
			byAccountKey: map[string]T{},
		},
	}
}

// Replace atomically swaps in a freshly built snapshot. Both index maps are
// rebuilt together, so no reader ever observes a half-updated pair. On
// duplicate keys the first row wins (stable against upstream duplicates).
func (c *reportCache[T]) Replace(rows []T) {
	now := time.Now()
	snap := &Snapshot[T]{
		Rows:         rows,
		byExternalId: make(map[string]T, len(rows)),
		byAccountKey: make(map[string]T, len(rows)),
		syncedAt:     &now,
	}
	for _, row := range rows {
		if k := row.externalKey(); k != "" {
			if _, exists := snap.byExternalId[k]; !exists {
				snap.byExternalId[k] = row
			}
		}
		if k := row.acctKey(); k != "" {
			if _, exists := snap.byAccountKey[k]; !exists {
				snap.byAccountKey[k] = row
			}
		}
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
}

func (c *reportCache[T]) Snapshot() *Snapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Caches bundles the three report caches. It is owned, injected state:
// the server builds one instance and hands it to handlers and the syncer,
// so tests can construct isolated instances.
type Caches struct {
	Balances  *reportCache[*AccountRow]
	Customers *reportCache[*ContactRow]
	Contacts  *reportCache[*ContactRow]
}

func NewCaches() *Caches {
	return &Caches{
		Balances:  newReportCache[*AccountRow](),
		Customers: newReportCache[*ContactRow](),
		Contacts:  newReportCache[*ContactRow](),
	}
}

func (cs *Caches) SyncedAt() CacheSyncedAt {
	return CacheSyncedAt{
		Balances:  cs.Balances.Snapshot().SyncedAt(),
		Customers: cs.Customers.Snapshot().SyncedAt(),
		Contacts:  cs.Contacts.Snapshot().SyncedAt(),
	}
}
