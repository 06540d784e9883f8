package index

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/litetable/litetable-query/internal/store"
)

// Scope owns the transient indexes created while one query evaluates. Keys are namespaced by a
// query identifier, so concurrent queries on the same store never collide, and Release deletes
// everything the scope created that was not persisted.
//
// A Scope is used by a single goroutine.
type Scope struct {
	store store.Store
	id    string
	seq   int
	owned []*Index
}

// NewScope starts a scope for a query. An empty queryID gets a fresh random one.
func NewScope(s store.Store, queryID string) *Scope {
	if queryID == "" {
		queryID = uuid.NewString()
	}
	return &Scope{store: s, id: queryID}
}

// ID returns the query identifier namespacing the scope's keys.
func (sc *Scope) ID() string { return sc.id }

func (sc *Scope) next(kind Kind) *Index {
	sc.seq++
	idx := &Index{
		Key:         fmt.Sprintf("%s%s:%d", store.TransientPrefix, sc.id, sc.seq),
		Kind:        kind,
		Family:      FamilyDerived,
		persistable: true,
		store:       sc.store,
	}
	sc.owned = append(sc.owned, idx)
	return idx
}

func keys(operands []*Index) []string {
	out := make([]string, 0, len(operands))
	for _, op := range operands {
		// placeholders have no key and behave as the empty set
		if op.Key == "" {
			out = append(out, store.TransientPrefix+"empty")
			continue
		}
		out = append(out, op.Key)
	}
	return out
}

// Ordered reports whether any operand is an ordered index.
func Ordered(operands ...*Index) bool {
	for _, op := range operands {
		if op.Kind == KindOrderedSet {
			return true
		}
	}
	return false
}

// Intersect stores the members common to every operand in a new transient index. When kind is
// KindOrderedSet at least one operand must be ordered; scores come from the first ordered operand.
func (sc *Scope) Intersect(kind Kind, operands ...*Index) (*Index, error) {
	if kind == KindOrderedSet && !Ordered(operands...) {
		kind = KindSet
	}
	dst := sc.next(kind)
	var err error
	if kind == KindOrderedSet {
		_, err = sc.store.ZInterStore(dst.Key, keys(operands)...)
	} else {
		_, err = sc.store.SInterStore(dst.Key, keys(operands)...)
	}
	if err != nil {
		return nil, dst.wrap(err)
	}
	return dst, nil
}

// Union stores the members of any operand in a new transient set.
func (sc *Scope) Union(operands ...*Index) (*Index, error) {
	dst := sc.next(KindSet)
	if _, err := sc.store.SUnionStore(dst.Key, keys(operands)...); err != nil {
		return nil, dst.wrap(err)
	}
	return dst, nil
}

// Difference stores the members of from that are in none of subtract in a new transient set.
func (sc *Scope) Difference(from *Index, subtract ...*Index) (*Index, error) {
	dst := sc.next(KindSet)
	operands := append([]*Index{from}, subtract...)
	if _, err := sc.store.SDiffStore(dst.Key, keys(operands)...); err != nil {
		return nil, dst.wrap(err)
	}
	return dst, nil
}

// ScoreRange stores the members of an ordered index whose score lies in [min, max] in a new
// transient set. Either bound may be infinite.
func (sc *Scope) ScoreRange(ordered *Index, min, max float64) (*Index, error) {
	seq, err := ordered.Scored(min, max, false)
	if err != nil {
		return nil, err
	}
	dst := sc.next(KindSet)
	var batch []string
	for id := range seq {
		batch = append(batch, id)
	}
	if len(batch) > 0 {
		if _, err = sc.store.SAdd(dst.Key, batch...); err != nil {
			return nil, dst.wrap(err)
		}
	}
	return dst, nil
}

// Release deletes the scope's transient indexes that were not persisted.
func (sc *Scope) Release() {
	var doomed []string
	for _, idx := range sc.owned {
		if idx.Transient() {
			doomed = append(doomed, idx.Key)
		}
	}
	if len(doomed) > 0 {
		sc.store.Del(doomed...)
	}
	sc.owned = nil
}
