// Package store is the key-value capability LiteTable indexes live in. It mirrors the command set
// of a data-structure server: scalar strings, unordered sets and score-ordered sets addressed by
// key, plus the per-row field storage the row adapter reads from.
//
// Set operations accept ordered-set operands and read only their members, so an index may be
// combined with any other index regardless of representation. A missing key behaves like an empty
// collection. Operating on a key that holds a different type fails with ErrWrongType.
package store

import (
	"errors"
	"io"
	"iter"
	"strings"

	"github.com/litetable/litetable-query/internal/litetable"
)

const (
	// TransientPrefix marks keys owned by a single query.
	TransientPrefix = "tmp:"
	// CachePrefix marks derived indexes kept between queries. They can be rebuilt from the
	// persisted indexes at any time.
	CachePrefix = "derived_"
)

// volatile keys are never written to snapshots.
func volatile(key string) bool {
	return strings.HasPrefix(key, TransientPrefix) || strings.HasPrefix(key, CachePrefix)
}

var (
	ErrWrongType = errors.New("operation against a key holding the wrong kind of value")
	ErrNoSuchKey = errors.New("no such key")
)

// Type is the kind of value held at a key.
type Type uint8

const (
	TypeNone Type = iota
	TypeScalar
	TypeSet
	TypeOrderedSet
)

func (t Type) String() string {
	switch t {
	case TypeScalar:
		return "scalar"
	case TypeSet:
		return "set"
	case TypeOrderedSet:
		return "orderedset"
	default:
		return "none"
	}
}

// Store is the full capability surface consumed by the index, shard and storage packages.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Type(key string) Type
	Del(keys ...string) int
	Rename(src, dst string) error

	SAdd(key string, ids ...string) (int, error)
	SRem(key string, ids ...string) (int, error)
	SCard(key string) (int, error)
	SIsMember(key, id string) (bool, error)
	SMembers(key string) (iter.Seq[string], error)
	SUnionStore(dst string, keys ...string) (int, error)
	SInterStore(dst string, keys ...string) (int, error)
	SDiffStore(dst string, keys ...string) (int, error)

	ZAdd(key, id string, score float64) (bool, error)
	ZRem(key string, ids ...string) (int, error)
	ZCard(key string) (int, error)
	ZScore(key, id string) (float64, bool, error)
	ZRangeByScore(key string, min, max float64) (iter.Seq2[string, float64], error)
	ZRevRangeByScore(key string, max, min float64) (iter.Seq2[string, float64], error)
	ZInterStore(dst string, keys ...string) (int, error)

	GetRow(id string, columns []string) (litetable.Row, bool)
	SetField(id, column string, f litetable.Field) (litetable.Field, bool)
	DelField(id, column string) (litetable.Field, bool)
	RowCount() int

	Snapshot(w io.Writer) error
	Restore(r io.Reader) error
}
