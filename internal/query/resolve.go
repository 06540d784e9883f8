package query

import (
	"fmt"
	"math"

	"github.com/litetable/litetable-query/internal/expr"
	"github.com/litetable/litetable-query/internal/index"
	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/litetable/litetable-query/internal/metrics"
	"github.com/litetable/litetable-query/internal/store"
	"github.com/rs/zerolog/log"
)

// resolver maps an expression onto the shard's indexes. Every index it derives belongs to scope.
type resolver struct {
	store       store.Store
	scope       *index.Scope
	cache       *Cache
	autoPromote bool
}

func (r *resolver) resolve(e expr.Expr) (Plan, error) {
	if derived(e) {
		if key, exact, ok := r.cache.Lookup(e.String()); ok {
			idx, err := index.Open(r.store, key, index.FamilyDerived)
			if err != nil {
				return Plan{}, err
			}
			metrics.DerivedIndexes.WithLabelValues("reused").Inc()
			return Plan{Index: idx, Exact: exact}, nil
		}
	}

	switch n := e.(type) {
	case expr.Compare:
		switch {
		case n.Op == expr.Eq:
			idx, err := r.value(n.Column, n.Value)
			return Plan{Index: idx, Exact: true}, err
		case n.Op == expr.Ne:
			anyIdx, err := r.any(n.Column)
			if err != nil {
				return Plan{}, err
			}
			eq, err := r.value(n.Column, n.Value)
			if err != nil {
				return Plan{}, err
			}
			idx, err := r.scope.Difference(anyIdx, eq)
			return Plan{Index: idx, Exact: true}, err
		}
		lo, hi := math.Inf(-1), math.Inf(1)
		if n.Op == expr.Lt || n.Op == expr.Le {
			hi = n.Value.Score()
		} else {
			lo = n.Value.Score()
		}
		return r.ordered(n.Column, lo, hi, n.Value)

	case expr.Range:
		return r.ordered(n.Column, n.Lower.Score(), n.Upper.Score(), n.Lower, n.Upper)

	case expr.In:
		operands := []*index.Index{index.Empty(r.store)}
		for _, v := range n.Values {
			idx, err := r.value(n.Column, v)
			if err != nil {
				return Plan{}, err
			}
			operands = append(operands, idx)
		}
		idx, err := r.scope.Union(operands...)
		return Plan{Index: idx, Exact: true}, err

	case expr.IsNull:
		all, err := r.all()
		if err != nil {
			return Plan{}, err
		}
		anyIdx, err := r.any(n.Column)
		if err != nil {
			return Plan{}, err
		}
		idx, err := r.scope.Difference(all, anyIdx)
		return Plan{Index: idx, Exact: true}, err

	case expr.NotNull:
		idx, err := r.any(n.Column)
		return Plan{Index: idx, Exact: true}, err

	case expr.And:
		left, right, err := r.children(n.Left, n.Right)
		if err != nil {
			return Plan{}, err
		}
		idx, err := r.scope.Intersect(index.KindSet, left.Index, right.Index)
		return Plan{Index: idx, Exact: left.Exact && right.Exact}, err

	case expr.Or:
		left, right, err := r.children(n.Left, n.Right)
		if err != nil {
			return Plan{}, err
		}
		idx, err := r.scope.Union(left.Index, right.Index)
		return Plan{Index: idx, Exact: left.Exact && right.Exact}, err

	case expr.Not:
		child, err := r.resolve(n.Child)
		if err != nil {
			return Plan{}, err
		}
		all, err := r.all()
		if err != nil {
			return Plan{}, err
		}
		if !child.Exact {
			// the child index over-approximates its matches, so its complement would drop rows
			// that match; every row stays a candidate
			return Plan{Index: all, Exact: false}, nil
		}
		idx, err := r.scope.Difference(all, child.Index)
		return Plan{Index: idx, Exact: true}, err
	}
	return Plan{}, fmt.Errorf("unsupported expression %T", e)
}

// derived reports whether an expression resolves to an index built at query time rather than one
// maintained by the write path.
func derived(e expr.Expr) bool {
	switch n := e.(type) {
	case expr.Compare:
		return n.Op != expr.Eq
	case expr.NotNull:
		return false
	}
	return true
}

// readsAll reports whether resolving an expression reads the all index, so that its result
// changes when a row is created or removed even if none of its columns is written.
func readsAll(e expr.Expr) bool {
	switch n := e.(type) {
	case expr.IsNull, expr.Not:
		return true
	case expr.And:
		return readsAll(n.Left) || readsAll(n.Right)
	case expr.Or:
		return readsAll(n.Left) || readsAll(n.Right)
	}
	return false
}

func (r *resolver) children(left, right expr.Expr) (Plan, Plan, error) {
	l, err := r.resolve(left)
	if err != nil {
		return Plan{}, Plan{}, err
	}
	rt, err := r.resolve(right)
	if err != nil {
		return Plan{}, Plan{}, err
	}
	return l, rt, nil
}

func (r *resolver) all() (*index.Index, error) {
	return index.Open(r.store, index.AllKey, index.FamilyAll)
}

func (r *resolver) any(column string) (*index.Index, error) {
	return index.Open(r.store, index.AnyKey(column), index.FamilyAny)
}

// value returns the equality index of column=v, or an empty placeholder when no row has ever held
// that value.
func (r *resolver) value(column string, v litetable.Value) (*index.Index, error) {
	key := index.ValueKey(column, v)
	if r.store.Type(key) == store.TypeNone {
		return index.Empty(r.store), nil
	}
	return index.Open(r.store, key, index.FamilyValue)
}

// ordered narrows any_<column> to the rows whose score lies in [lo, hi]. Scores are monotone in
// the value order but not injective, so the inclusive score range holds every match and possibly
// some rows that do not match.
//
// Scores of different classes interleave on the same line, so a bound that cannot be ordered
// against a value the column holds fails here instead of depending on where the scores fall.
func (r *resolver) ordered(column string, lo, hi float64, bounds ...litetable.Value) (Plan, error) {
	classes, err := index.Classes(r.store, column)
	if err != nil {
		return Plan{}, err
	}
	for _, c := range classes {
		for _, b := range bounds {
			if b.Class() != c {
				return Plan{}, litetable.NewError(litetable.ErrTypeMismatch,
					"cannot compare %s column %s with %s %s", c, column, b.Kind, b.Literal())
			}
		}
	}

	anyIdx, err := r.any(column)
	if err != nil {
		return Plan{}, err
	}
	if anyIdx.Kind != index.KindOrderedSet {
		if r.store.Type(anyIdx.Key) == store.TypeNone {
			// no row has the column: nothing can match
			return Plan{Index: index.Empty(r.store), Exact: false}, nil
		}
		if anyIdx, err = r.promote(column, anyIdx); err != nil {
			return Plan{}, err
		}
	}
	idx, err := r.scope.ScoreRange(anyIdx, lo, hi)
	return Plan{Index: idx, Exact: false}, err
}

// promote re-encodes a set any_<column> index as an ordered set scored by each row's value.
func (r *resolver) promote(column string, anyIdx *index.Index) (*index.Index, error) {
	if !r.autoPromote {
		return nil, litetable.NewError(index.ErrIndexCorruption,
			"%s must be an ordered index to answer ordering predicates", anyIdx.Key)
	}
	columns := []string{column}
	promoted, err := index.Convert(r.store, anyIdx, index.KindOrderedSet, func(id string) (float64, error) {
		row, ok := r.store.GetRow(id, columns)
		if !ok {
			return 0, fmt.Errorf("row %s is indexed but missing", id)
		}
		f, ok := row.Get(column)
		if !ok {
			return 0, fmt.Errorf("row %s has no %s", id, column)
		}
		return f.Value.Score(), nil
	})
	if err != nil {
		return nil, err
	}
	metrics.Promotions.Inc()
	log.Info().Str("column", column).Msg("promoted index to an ordered set")
	return promoted, nil
}
