// Package index models LiteTable's inverted indexes on top of a store.Store.
//
// Three families are maintained by the write path and live for as long as the data does:
//
//   - all                          every row of the shard
//   - any_<column>                 rows where column is not null
//   - value_<column>_<literal>     rows where column equals literal
//   - class_<column>_<class>       rows where column holds a value of that ordering class
//
// Every other index is derived at query time from these by set algebra inside a Scope, which
// owns the transient keys and deletes them when the query ends. A derived index may be persisted
// so later queries can reuse it.
package index

import (
	"errors"
	"fmt"
	"hash/fnv"
	"iter"
	"math"
	"strings"

	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/litetable/litetable-query/internal/store"
)

// ErrIndexCorruption is returned when a stored index does not have the representation its name
// promises, e.g. an ordered index that turns out to be a plain set.
var ErrIndexCorruption = errors.New("index corruption")

const (
	AllKey      = "all"
	anyPrefix   = "any_"
	valuePrefix = "value_"
	classPrefix = "class_"
)

// Kind is the representation of an index.
type Kind uint8

const (
	KindSet Kind = iota + 1
	KindOrderedSet
)

func (k Kind) String() string {
	if k == KindOrderedSet {
		return "orderedset"
	}
	return "set"
}

// Family classifies where an index comes from.
type Family uint8

const (
	FamilyAll Family = iota + 1
	FamilyAny
	FamilyValue
	FamilyDerived
	FamilyClass
)

// escapeColumn doubles underscores so that column and literal stay separable in a key.
func escapeColumn(column string) string {
	return strings.ReplaceAll(column, "_", "__")
}

// AnyKey names the index of rows where column is not null.
func AnyKey(column string) string {
	return anyPrefix + escapeColumn(column)
}

// ValueKey names the index of rows where column equals v.
func ValueKey(column string, v litetable.Value) string {
	return valuePrefix + escapeColumn(column) + "_" + v.IndexKey()
}

// ClassKey names the index of rows where column holds a value of class c.
func ClassKey(column string, c litetable.Class) string {
	return classPrefix + escapeColumn(column) + "_" + c.String()
}

// Classes returns the ordering classes column currently holds, in the order of
// litetable.Classes.
func Classes(s store.Store, column string) ([]litetable.Class, error) {
	var present []litetable.Class
	for _, c := range litetable.Classes {
		n, err := s.SCard(ClassKey(column, c))
		if err != nil {
			return nil, litetable.NewError(ErrIndexCorruption, "%s: %v", ClassKey(column, c), err)
		}
		if n > 0 {
			present = append(present, c)
		}
	}
	return present, nil
}

// DerivedKey names a persisted derived index by the signature of the expression it answers.
func DerivedKey(signature string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(signature))
	return fmt.Sprintf("%s%016x", store.CachePrefix, h.Sum64())
}

// Index is a handle on a named set of row identifiers.
type Index struct {
	Key    string
	Kind   Kind
	Family Family

	// persisted indexes survive the query that touched them
	persisted bool
	// persistable is false for placeholders that stand in for a missing index
	persistable bool

	store store.Store
}

// Open returns the persisted index stored at key. A missing key opens as an empty set, which is
// what an index with no members looks like in the store.
func Open(s store.Store, key string, family Family) (*Index, error) {
	idx := &Index{Key: key, Family: family, persisted: true, store: s}
	switch t := s.Type(key); t {
	case store.TypeNone, store.TypeSet:
		idx.Kind = KindSet
	case store.TypeOrderedSet:
		idx.Kind = KindOrderedSet
	default:
		return nil, litetable.NewError(ErrIndexCorruption, "%s holds a %s", key, t)
	}
	return idx, nil
}

// Empty is a placeholder for an index that does not exist, such as the value index of a literal
// no row has ever held. It cannot be persisted and deleting it does nothing.
func Empty(s store.Store) *Index {
	return &Index{Key: "", Kind: KindSet, Family: FamilyDerived, store: s}
}

// Persisted reports whether the index outlives the query that resolved it.
func (i *Index) Persisted() bool { return i.persisted }

// Transient reports whether the index is owned by a query scope.
func (i *Index) Transient() bool { return !i.persisted && i.persistable }

func (i *Index) wrap(err error) error {
	if errors.Is(err, store.ErrWrongType) {
		return litetable.NewError(ErrIndexCorruption, "%s is not a %s: %v", i.Key, i.Kind, err)
	}
	return err
}

// Cardinality returns the number of members. Both representations answer in constant time.
func (i *Index) Cardinality() (int, error) {
	if i.Key == "" {
		return 0, nil
	}
	var n int
	var err error
	if i.Kind == KindOrderedSet {
		n, err = i.store.ZCard(i.Key)
	} else {
		n, err = i.store.SCard(i.Key)
	}
	return n, i.wrap(err)
}

// Members returns the row identifiers of the index. The sequence can be iterated any number of
// times; each pass reads the index as of the call to Members.
func (i *Index) Members() (iter.Seq[string], error) {
	if i.Key == "" {
		return func(func(string) bool) {}, nil
	}
	if i.Kind == KindSet {
		seq, err := i.store.SMembers(i.Key)
		return seq, i.wrap(err)
	}
	scored, err := i.Scored(math.Inf(-1), math.Inf(1), false)
	if err != nil {
		return nil, err
	}
	return func(yield func(string) bool) {
		for id := range scored {
			if !yield(id) {
				return
			}
		}
	}, nil
}

// Scored iterates an ordered index between two scores, inclusive, ascending or descending.
func (i *Index) Scored(min, max float64, descending bool) (iter.Seq2[string, float64], error) {
	if i.Kind != KindOrderedSet {
		return nil, litetable.NewError(ErrIndexCorruption, "%s is not ordered", i.Key)
	}
	var seq iter.Seq2[string, float64]
	var err error
	if descending {
		seq, err = i.store.ZRevRangeByScore(i.Key, max, min)
	} else {
		seq, err = i.store.ZRangeByScore(i.Key, min, max)
	}
	return seq, i.wrap(err)
}

// Persist moves a transient index to key so it survives the end of its query. Persisting an index
// that is already persisted, or a placeholder, does nothing.
func (i *Index) Persist(key string) error {
	if i.persisted || !i.persistable {
		return nil
	}
	if err := i.store.Rename(i.Key, key); err != nil {
		if !errors.Is(err, store.ErrNoSuchKey) {
			return err
		}
		// an empty derived index has no key in the store; there is nothing to move
	}
	i.Key = key
	i.persisted = true
	return nil
}

// Delete removes a derived index from the store. The all, any and value families belong to the
// write path and are never deleted through a handle.
func (i *Index) Delete() error {
	if i.Key == "" || i.Family != FamilyDerived {
		return nil
	}
	i.store.Del(i.Key)
	return nil
}

// Convert re-encodes an index in place. Converting a set to an ordered set needs a score for every
// member; converting back drops the scores. Membership is preserved exactly.
func Convert(s store.Store, idx *Index, to Kind, score func(id string) (float64, error)) (*Index, error) {
	if idx.Kind == to {
		return idx, nil
	}
	members, err := idx.Members()
	if err != nil {
		return nil, err
	}

	staging := store.TransientPrefix + "convert:" + idx.Key
	s.Del(staging)
	for id := range members {
		if to == KindOrderedSet {
			sc, err := score(id)
			if err != nil {
				s.Del(staging)
				return nil, fmt.Errorf("failed to score %s in %s: %w", id, idx.Key, err)
			}
			if _, err = s.ZAdd(staging, id, sc); err != nil {
				s.Del(staging)
				return nil, err
			}
			continue
		}
		if _, err := s.SAdd(staging, id); err != nil {
			s.Del(staging)
			return nil, err
		}
	}

	if s.Type(staging) == store.TypeNone {
		s.Del(idx.Key)
	} else if err = s.Rename(staging, idx.Key); err != nil {
		return nil, err
	}

	converted := *idx
	converted.Kind = to
	return &converted, nil
}
