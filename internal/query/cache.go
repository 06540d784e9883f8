package query

import (
	"slices"
	"sync"
	"time"
)

// Cache decides which derived indexes are worth keeping past the query that built them and
// remembers the ones that were kept.
//
// A signature is the canonical text of an expression. Once the same signature has been evaluated
// persistAfter times its index is persisted; it stays valid until one of its columns is written
// or it outlives the TTL. Indexes built from the all index are also dropped whenever a row is
// created or removed.
type Cache struct {
	mutex        sync.Mutex
	persistAfter int
	seen         map[string]int
	entries      map[string]entry
	now          func() time.Time
}

type entry struct {
	key     string
	exact   bool
	columns []string
	// rows is set when the index depends on which rows exist
	rows    bool
	created time.Time
}

// NewCache returns a cache that persists a derived index after persistAfter evaluations of the
// same expression. Zero disables persistence.
func NewCache(persistAfter int) *Cache {
	return &Cache{
		persistAfter: persistAfter,
		seen:         make(map[string]int),
		entries:      make(map[string]entry),
		now:          time.Now,
	}
}

// Lookup returns the persisted index key for a signature.
func (c *Cache) Lookup(signature string) (string, bool, bool) {
	if c == nil {
		return "", false, false
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	e, ok := c.entries[signature]
	return e.key, e.exact, ok
}

// observe records one evaluation of a signature and reports whether its index should now be
// persisted.
func (c *Cache) observe(signature string) bool {
	if c == nil || c.persistAfter <= 0 {
		return false
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.entries[signature]; ok {
		return false
	}
	c.seen[signature]++
	return c.seen[signature] >= c.persistAfter
}

func (c *Cache) store(signature string, plan Plan, columns []string, rows bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.seen, signature)
	c.entries[signature] = entry{
		key:     plan.Index.Key,
		exact:   plan.Exact,
		columns: columns,
		rows:    rows,
		created: c.now(),
	}
}

// Invalidate forgets every derived index that reads column and returns their keys so the caller
// can delete them.
func (c *Cache) Invalidate(column string) []string {
	if c == nil {
		return nil
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	var keys []string
	for sig, e := range c.entries {
		if slices.Contains(e.columns, column) {
			keys = append(keys, e.key)
			delete(c.entries, sig)
		}
	}
	return keys
}

// InvalidateRows forgets every derived index that depends on which rows exist and returns their
// keys. It is called when a row is created or removed.
func (c *Cache) InvalidateRows() []string {
	if c == nil {
		return nil
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	var keys []string
	for sig, e := range c.entries {
		if e.rows {
			keys = append(keys, e.key)
			delete(c.entries, sig)
		}
	}
	return keys
}

// Expire forgets every derived index older than ttl and returns their keys.
func (c *Cache) Expire(ttl time.Duration) []string {
	if c == nil {
		return nil
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	cutoff := c.now().Add(-ttl)
	var keys []string
	for sig, e := range c.entries {
		if e.created.Before(cutoff) {
			keys = append(keys, e.key)
			delete(c.entries, sig)
		}
	}
	return keys
}

// Len returns the number of persisted derived indexes.
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

// Reset forgets everything, used after a shard is restored from a snapshot.
func (c *Cache) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	clear(c.seen)
	clear(c.entries)
}
