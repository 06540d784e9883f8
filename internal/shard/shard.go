// Package shard holds the partitions of a LiteTable node.
//
// Every shard owns its own store, its own inverted indexes, its own derived index cache and its own
// lock. A shard answers queries and applies writes one at a time; different shards never contend.
//
// Rows are routed to a shard by the hash of their id, so all indexes of a row live with the row.
package shard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/litetable/litetable-query/internal/index"
	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/litetable/litetable-query/internal/metrics"
	"github.com/litetable/litetable-query/internal/query"
	"github.com/litetable/litetable-query/internal/store"
	"github.com/rs/zerolog/log"
)

var errNoFields = errors.New("write needs at least one field")

// Shard is a manager for a single partition of rows.
type Shard struct {
	id        int
	mutex     sync.Mutex
	store     *store.Memory
	evaluator *query.Evaluator
	cache     *query.Cache

	// columns whose any_<column> index is created ordered
	ordered map[string]struct{}

	// set by every write, cleared by a snapshot
	changed atomic.Bool
}

type shardConfig struct {
	id             int
	orderedColumns []string
	autoPromote    bool
	persistAfter   int
}

func newShard(cfg *shardConfig) (*Shard, error) {
	s := &Shard{
		id:      cfg.id,
		store:   store.NewMemory(),
		cache:   query.NewCache(cfg.persistAfter),
		ordered: make(map[string]struct{}, len(cfg.orderedColumns)),
	}
	for _, c := range cfg.orderedColumns {
		s.ordered[c] = struct{}{}
	}

	evaluator, err := query.NewEvaluator(&query.Config{
		Store:       s.store,
		Cache:       s.cache,
		AutoPromote: cfg.autoPromote,
	})
	if err != nil {
		return nil, err
	}
	s.evaluator = evaluator
	return s, nil
}

// ID is the position of the shard in its manager.
func (s *Shard) ID() int {
	return s.id
}

// Evaluate answers a query against the rows of this shard only.
func (s *Shard) Evaluate(ctx context.Context, req query.Request) (litetable.PartialResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.evaluator.Evaluate(ctx, req)
}

// Write sets columns of a row, creating the row when it does not exist yet, and maintains the
// all, any and value indexes of every written column.
func (s *Shard) Write(ctx context.Context, id string, fields map[string]litetable.Value, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return errors.New("row id is required")
	}
	if len(fields) == 0 {
		return errNoFields
	}
	for column, v := range fields {
		if column == "" || !v.IsValid() {
			return fmt.Errorf("invalid field %q for row %s", column, id)
		}
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, existed := s.store.GetRow(id, []string{})
	for _, column := range slices.Sorted(maps.Keys(fields)) {
		v := fields[column]
		prev, _ := s.store.SetField(id, column, litetable.Field{Value: v, Time: at})
		if err := index.Insert(s.store, id, column, prev.Value, v, s.isOrdered(column)); err != nil {
			return fmt.Errorf("failed to index column %s of row %s: %w", column, id, err)
		}
		s.invalidate(column)
		metrics.WritesTotal.WithLabelValues("write").Inc()
	}
	if !existed {
		s.drop(s.cache.InvalidateRows())
	}
	s.changed.Store(true)

	log.Debug().Msgf("wrote %d fields of row %s in shard %d", len(fields), id, s.id)
	return nil
}

// Delete removes columns of a row. No columns removes the whole row. It returns the number of
// fields that existed and were removed.
func (s *Shard) Delete(ctx context.Context, id string, columns []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(columns) == 0 {
		row, ok := s.store.GetRow(id, nil)
		if !ok {
			return 0, nil
		}
		columns = slices.Sorted(maps.Keys(row.Fields))
	}

	deleted := 0
	for _, column := range columns {
		prev, ok := s.store.DelField(id, column)
		if !ok {
			continue
		}
		_, exists := s.store.GetRow(id, []string{})
		if err := index.Remove(s.store, id, column, prev.Value, !exists); err != nil {
			return deleted, fmt.Errorf("failed to unindex column %s of row %s: %w", column, id, err)
		}
		s.invalidate(column)
		if !exists {
			s.drop(s.cache.InvalidateRows())
		}
		metrics.WritesTotal.WithLabelValues("delete").Inc()
		deleted++
	}
	if deleted > 0 {
		s.changed.Store(true)
	}
	return deleted, nil
}

// Expire drops the derived indexes kept for longer than ttl and returns how many were dropped.
func (s *Shard) Expire(ttl time.Duration) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	keys := s.cache.Expire(ttl)
	n := s.store.Del(keys...)
	metrics.DerivedIndexes.WithLabelValues("expired").Add(float64(len(keys)))
	return n
}

// Rows returns the number of rows held by the shard.
func (s *Shard) Rows() int {
	return s.store.RowCount()
}

// Cardinality returns the size of an index of this shard, zero when it does not exist.
func (s *Shard) Cardinality(key string) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	idx, err := index.Open(s.store, key, index.FamilyDerived)
	if err != nil {
		return 0, err
	}
	return idx.Cardinality()
}

// Changed reports whether the shard was written since its last snapshot.
func (s *Shard) Changed() bool {
	return s.changed.Load()
}

// Save writes a snapshot of the rows and persisted indexes of the shard.
func (s *Shard) Save(w io.Writer) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.store.Snapshot(w); err != nil {
		return err
	}
	s.changed.Store(false)
	return nil
}

// Load replaces the content of the shard with a snapshot written by Save.
func (s *Shard) Load(r io.Reader) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.store.Restore(r); err != nil {
		return err
	}
	// derived indexes are not part of a snapshot
	s.cache.Reset()
	s.changed.Store(false)
	return nil
}

func (s *Shard) isOrdered(column string) bool {
	_, ok := s.ordered[column]
	return ok
}

// invalidate drops every derived index built from column.
func (s *Shard) invalidate(column string) {
	s.drop(s.cache.Invalidate(column))
}

func (s *Shard) drop(keys []string) {
	if len(keys) == 0 {
		return
	}
	s.store.Del(keys...)
	metrics.DerivedIndexes.WithLabelValues("invalidated").Add(float64(len(keys)))
}
