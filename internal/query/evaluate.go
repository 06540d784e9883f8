// Package query answers one query against one shard's store: it resolves the expression to an
// index, decides whether the index cardinality already is the answer, and otherwise scans the
// index members and verifies each row.
package query

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"

	"github.com/litetable/litetable-query/internal/expr"
	"github.com/litetable/litetable-query/internal/index"
	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/litetable/litetable-query/internal/metrics"
	"github.com/litetable/litetable-query/internal/store"
	"github.com/rs/zerolog/log"
)

// checkEvery is how many rows are scanned between context checks.
const checkEvery = 256

// Request is a query as one shard sees it.
type Request struct {
	Kind litetable.QueryKind
	// Expr filters the rows. Nil selects every row.
	Expr expr.Expr
	// Target is the column an extent query measures.
	Target string
	// ByTime measures the extent of the target's write times instead of its values.
	ByTime bool
	// QueryID namespaces the transient indexes of this query.
	QueryID string
}

// Validate checks that the request is answerable regardless of the data.
func (r *Request) Validate() error {
	var errGrp []error
	switch r.Kind {
	case litetable.QueryCount, litetable.QueryIDSet:
	case litetable.QueryExtent:
		if r.Target == "" {
			errGrp = append(errGrp, errors.New("extent queries need a target column"))
		}
	default:
		errGrp = append(errGrp, fmt.Errorf("unknown query kind %s", r.Kind))
	}
	return errors.Join(errGrp...)
}

type Evaluator struct {
	store       store.Store
	cache       *Cache
	autoPromote bool
}

type Config struct {
	Store store.Store
	// Cache keeps frequently derived indexes between queries. Nil disables it.
	Cache *Cache
	// AutoPromote re-encodes a set any_<column> index as an ordered set the first time an
	// ordering predicate needs it.
	AutoPromote bool
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Store == nil {
		errGrp = append(errGrp, errors.New("store is required"))
	}
	return errors.Join(errGrp...)
}

func NewEvaluator(cfg *Config) (*Evaluator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Evaluator{
		store:       cfg.Store,
		cache:       cfg.Cache,
		autoPromote: cfg.AutoPromote,
	}, nil
}

// Evaluate runs a query against the shard. Every transient index derived on the way is deleted
// before it returns.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (litetable.PartialResult, error) {
	if err := req.Validate(); err != nil {
		return litetable.PartialResult{}, err
	}

	scope := index.NewScope(e.store, req.QueryID)
	defer scope.Release()

	r := &resolver{store: e.store, scope: scope, cache: e.cache, autoPromote: e.autoPromote}
	plan, err := e.plan(r, req.Expr)
	if err != nil {
		return litetable.PartialResult{}, err
	}

	var result litetable.PartialResult
	switch req.Kind {
	case litetable.QueryCount:
		result, err = e.count(ctx, plan, req.Expr)
	case litetable.QueryIDSet:
		result, err = e.ids(ctx, plan, req.Expr)
	case litetable.QueryExtent:
		result, err = e.extent(ctx, scope, plan, req)
	}
	if err != nil {
		return litetable.PartialResult{}, err
	}

	if req.Expr != nil {
		e.keep(plan, req.Expr)
	}
	return result, nil
}

func (e *Evaluator) plan(r *resolver, ex expr.Expr) (Plan, error) {
	if ex == nil {
		all, err := index.Open(e.store, index.AllKey, index.FamilyAll)
		return Plan{Index: all, Exact: true}, err
	}
	return r.resolve(ex)
}

// keep persists the query's derived index once its expression has been seen often enough.
func (e *Evaluator) keep(plan Plan, ex expr.Expr) {
	if !plan.Index.Transient() {
		return
	}
	sig := ex.String()
	if !e.cache.observe(sig) {
		return
	}
	if err := plan.Index.Persist(index.DerivedKey(sig)); err != nil {
		log.Warn().Err(err).Str("expression", sig).Msg("failed to persist derived index")
		return
	}
	e.cache.store(sig, plan, ex.Columns(), readsAll(ex))
	metrics.DerivedIndexes.WithLabelValues("persisted").Inc()
	log.Debug().Str("expression", sig).Str("key", plan.Index.Key).Msg("persisted derived index")
}

func (e *Evaluator) count(ctx context.Context, plan Plan, ex expr.Expr) (litetable.PartialResult, error) {
	result := litetable.PartialResult{Kind: litetable.QueryCount}
	if plan.Exact {
		metrics.PlansTotal.WithLabelValues("exact").Inc()
		n, err := plan.Index.Cardinality()
		result.Count = int64(n)
		return result, err
	}

	metrics.PlansTotal.WithLabelValues("scan").Inc()
	members, err := plan.Index.Members()
	if err != nil {
		return result, err
	}
	err = e.scan(ctx, members, ex, nil, func(litetable.Row) bool {
		result.Count++
		return true
	})
	return result, err
}

func (e *Evaluator) ids(ctx context.Context, plan Plan, ex expr.Expr) (litetable.PartialResult, error) {
	result := litetable.PartialResult{Kind: litetable.QueryIDSet}
	members, err := plan.Index.Members()
	if err != nil {
		return result, err
	}
	if plan.Exact {
		metrics.PlansTotal.WithLabelValues("exact").Inc()
		result.IDs = slices.Sorted(members)
		return result, nil
	}

	metrics.PlansTotal.WithLabelValues("scan").Inc()
	err = e.scan(ctx, members, ex, nil, func(row litetable.Row) bool {
		result.IDs = append(result.IDs, row.ID)
		return true
	})
	slices.Sort(result.IDs)
	return result, err
}

// scan loads every member, keeps the rows ex matches and hands them to fn until fn returns false.
// A nil ex matches every row. extra names columns to load on top of the ones ex reads.
func (e *Evaluator) scan(
	ctx context.Context,
	members iter.Seq[string],
	ex expr.Expr,
	extra []string,
	fn func(litetable.Row) bool,
) error {
	var columns []string
	if ex != nil {
		columns = ex.Columns()
	}
	columns = append(columns, extra...)

	n := 0
	for id := range members {
		if n++; n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		metrics.RowsScanned.Inc()

		row, ok := e.store.GetRow(id, columns)
		if !ok {
			// removed since it was indexed; every column is null
			row = litetable.Row{ID: id}
		}
		if ex != nil {
			match, err := ex.Match(row)
			if err != nil {
				return fmt.Errorf("row %s: %w", id, err)
			}
			if !match {
				continue
			}
		}
		if !fn(row) {
			return nil
		}
	}
	return ctx.Err()
}

// extent folds the minimum and maximum of the target column over the matching rows. Ordering
// queries never read the answer off a cardinality, so this is always a scan; when the target is
// ordered by value the scan walks inward from both ends and stops at the first match.
func (e *Evaluator) extent(
	ctx context.Context,
	scope *index.Scope,
	plan Plan,
	req Request,
) (litetable.PartialResult, error) {
	result := litetable.PartialResult{Kind: litetable.QueryExtent}
	metrics.PlansTotal.WithLabelValues("scan").Inc()

	target, err := index.Open(e.store, index.AnyKey(req.Target), index.FamilyAny)
	if err != nil {
		return result, err
	}

	measure := func(row litetable.Row) (litetable.Value, bool) {
		f, ok := row.Get(req.Target)
		if !ok {
			return litetable.Value{}, false
		}
		if req.ByTime {
			return litetable.Date(f.Time), true
		}
		return f.Value, true
	}

	if target.Kind == index.KindOrderedSet && !req.ByTime {
		return e.orderedExtent(ctx, scope, plan, req, target, measure)
	}

	candidates, err := scope.Intersect(index.KindSet, target, plan.Index)
	if err != nil {
		return result, err
	}
	members, err := candidates.Members()
	if err != nil {
		return result, err
	}
	var foldErr error
	err = e.scan(ctx, members, req.Expr, []string{req.Target}, func(row litetable.Row) bool {
		v, ok := measure(row)
		if !ok {
			return true
		}
		if foldErr = result.Extent.Include(v); foldErr != nil {
			return false
		}
		return true
	})
	if err == nil {
		err = foldErr
	}
	return result, err
}

// orderedExtent walks the target's ordered index from both ends. Each class of value the target
// holds is walked on its own, since scores of different classes interleave; matches in two classes
// cannot be ordered against each other and fail like they do on the scan path.
func (e *Evaluator) orderedExtent(
	ctx context.Context,
	scope *index.Scope,
	plan Plan,
	req Request,
	target *index.Index,
	measure func(litetable.Row) (litetable.Value, bool),
) (litetable.PartialResult, error) {
	result := litetable.PartialResult{Kind: litetable.QueryExtent}
	classes, err := index.Classes(e.store, req.Target)
	if err != nil {
		return result, err
	}

	for _, c := range classes {
		operands := []*index.Index{target, plan.Index}
		if len(classes) > 1 {
			class, err := index.Open(e.store, index.ClassKey(req.Target, c), index.FamilyClass)
			if err != nil {
				return result, err
			}
			operands = append(operands, class)
		}
		ordered, err := scope.Intersect(index.KindOrderedSet, operands...)
		if err != nil {
			return result, err
		}
		lo, ok, err := e.edge(ctx, ordered, req, measure, false)
		if err != nil {
			return result, err
		}
		if !ok {
			continue
		}
		hi, _, err := e.edge(ctx, ordered, req, measure, true)
		if err != nil {
			return result, err
		}
		if err = result.Extent.Include(lo); err != nil {
			return result, err
		}
		if err = result.Extent.Include(hi); err != nil {
			return result, err
		}
	}
	return result, nil
}

// edge scans an ordered index from one end and returns the extreme matching value. Distinct
// values may share a score, so the whole tie group of the first match is compared before stopping.
func (e *Evaluator) edge(
	ctx context.Context,
	ordered *index.Index,
	req Request,
	measure func(litetable.Row) (litetable.Value, bool),
	descending bool,
) (litetable.Value, bool, error) {
	scored, err := ordered.Scored(math.Inf(-1), math.Inf(1), descending)
	if err != nil {
		return litetable.Value{}, false, err
	}

	var (
		best    litetable.Value
		found   bool
		current float64
		stopAt  float64
		foldErr error
	)
	members := func(yield func(string) bool) {
		for id, score := range scored {
			if found && score != stopAt {
				return
			}
			current = score
			if !yield(id) {
				return
			}
		}
	}

	err = e.scan(ctx, members, req.Expr, []string{req.Target}, func(row litetable.Row) bool {
		v, ok := measure(row)
		if !ok {
			return true
		}
		if !found {
			best, found, stopAt = v, true, current
			return true
		}
		cmp, err := v.Compare(best)
		if err != nil {
			foldErr = err
			return false
		}
		if (descending && cmp > 0) || (!descending && cmp < 0) {
			best = v
		}
		return true
	})
	if err == nil {
		err = foldErr
	}
	return best, found, err
}
