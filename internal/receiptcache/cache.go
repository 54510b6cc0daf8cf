package receiptcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"receipts-backend/internal/aggregate"
	"receipts-backend/internal/shared/metrics"
	"receipts-backend/internal/shared/telemetry"
	"receipts-backend/internal/shared/util"
)

var (
	// ErrNotDurable means the entry was updated in memory but could not be persisted.
	// It is lost on restart.
	ErrNotDurable = errors.New("cache entry not durable")
	// ErrClosed is returned by writes after Close.
	ErrClosed = errors.New("cache closed")
)

// State is the cache lifecycle state relative to a live document set.
type State string

const (
	StateEmpty State = "empty"
	StateFresh State = "fresh"
	StateStale State = "stale"
)

// Entry is the single persisted aggregate and the document set it was computed from.
type Entry struct {
	Aggregate   aggregate.Result `json:"aggregate"`
	DocumentIDs []string         `json:"documentIdSet"`
	CachedAt    time.Time        `json:"cachedAt"`
	Fingerprint string           `json:"fingerprint"`
}

// Store persists at most one Entry. Load returns nil, nil when nothing is stored.
type Store interface {
	Load(ctx context.Context) (*Entry, error)
	Save(ctx context.Context, entry Entry) error
	Clear(ctx context.Context) error
}

// Status describes the cache against a live document set.
type Status struct {
	State       State      `json:"state"`
	CachedAt    *time.Time `json:"cachedAt,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	CachedIDs   []string   `json:"cachedDocumentIds"`
	LiveIDs     []string   `json:"liveDocumentIds"`
	Added       []string   `json:"added"`
	Removed     []string   `json:"removed"`
}

// Cache holds the current aggregate in memory and mirrors it to a Store.
// Writes are serialized; the last write wins. Store I/O runs under persistMu only, so reads are
// never held up by a slow save.
type Cache struct {
	store Store
	now   func() time.Time

	persistMu sync.Mutex

	mu     sync.RWMutex
	entry  *Entry
	closed bool
}

// New returns an empty cache backed by store. Call Open to load the persisted entry.
func New(store Store) *Cache {
	return &Cache{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Open loads the persisted entry, if any. On failure the cache stays usable and empty.
func (c *Cache) Open(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	entry, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = entry
	c.closed = false
	if entry != nil {
		telemetry.Info("cache.loaded", map[string]any{
			"documents":   len(entry.DocumentIDs),
			"cached_at":   entry.CachedAt.Format(time.RFC3339),
			"fingerprint": entry.Fingerprint,
		})
	}
	return nil
}

// Close stops further writes. Reads keep serving the last entry.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Read returns a copy of the current entry.
func (c *Cache) Read() (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return Entry{}, false
	}
	return c.entry.clone(), true
}

// Write replaces the entry. When persistence fails the in-memory entry is still replaced and
// the returned error wraps ErrNotDurable.
func (c *Cache) Write(ctx context.Context, agg aggregate.Result, documentIDs []string) (Entry, error) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	ids := normalizeIDs(documentIDs)
	entry := Entry{
		Aggregate:   agg.Clone(),
		DocumentIDs: ids,
		CachedAt:    c.now(),
		Fingerprint: util.SetFingerprint(ids),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Entry{}, ErrClosed
	}
	stored := entry.clone()
	c.entry = &stored
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(ctx, entry); err != nil {
			metrics.IncCacheWrite("not_durable")
			telemetry.Error("cache.write_failed", map[string]any{"error": err.Error(), "documents": len(ids)})
			return entry, fmt.Errorf("%w: %v", ErrNotDurable, err)
		}
	}
	metrics.IncCacheWrite("ok")
	return entry, nil
}

// IsStale reports whether live differs from the cached document set. An empty cache is stale.
func (c *Cache) IsStale(live []string) bool {
	entry, ok := c.Read()
	if !ok {
		return true
	}
	return Stale(entry.DocumentIDs, live)
}

// State classifies the cache against live.
func (c *Cache) State(live []string) State {
	entry, ok := c.Read()
	switch {
	case !ok:
		return StateEmpty
	case Stale(entry.DocumentIDs, live):
		return StateStale
	default:
		return StateFresh
	}
}

// Status builds the status view for live.
func (c *Cache) Status(live []string) Status {
	st, _, _ := c.Snapshot(live)
	return st
}

// Snapshot returns the status for live together with the entry it describes.
func (c *Cache) Snapshot(live []string) (Status, Entry, bool) {
	liveIDs := normalizeIDs(live)
	st := Status{
		State:     StateEmpty,
		CachedIDs: []string{},
		LiveIDs:   liveIDs,
		Added:     liveIDs,
		Removed:   []string{},
	}
	entry, ok := c.Read()
	if !ok {
		return st, Entry{}, false
	}
	cachedAt := entry.CachedAt
	st.CachedAt = &cachedAt
	st.Fingerprint = entry.Fingerprint
	st.CachedIDs = entry.DocumentIDs
	st.Added, st.Removed = Diff(entry.DocumentIDs, liveIDs)
	st.State = StateFresh
	if len(st.Added) > 0 || len(st.Removed) > 0 {
		st.State = StateStale
	}
	return st, entry, true
}

// Clear removes the entry from memory and from the store.
func (c *Cache) Clear(ctx context.Context) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.entry = nil
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotDurable, err)
	}
	return nil
}

func (e Entry) clone() Entry {
	out := e
	out.Aggregate = e.Aggregate.Clone()
	out.DocumentIDs = make([]string, len(e.DocumentIDs))
	copy(out.DocumentIDs, e.DocumentIDs)
	return out
}

// Stale reports whether the symmetric difference of the two sets is non-empty.
func Stale(cached, live []string) bool {
	added, removed := Diff(cached, live)
	return len(added) > 0 || len(removed) > 0
}

// Diff returns the IDs only in live (added) and only in cached (removed), sorted.
func Diff(cached, live []string) (added, removed []string) {
	inCached := toSet(cached)
	inLive := toSet(live)
	added = []string{}
	removed = []string{}
	for id := range inLive {
		if !inCached[id] {
			added = append(added, id)
		}
	}
	for id := range inCached {
		if !inLive[id] {
			removed = append(removed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func normalizeIDs(ids []string) []string {
	set := toSet(ids)
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
