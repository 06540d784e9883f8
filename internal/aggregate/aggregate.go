// Package aggregate merges per-shard partial results into a query's final answer. Shards answer in
// any order and their number changes between deployments, so every reducer is associative and
// commutative.
package aggregate

import (
	"fmt"
	"slices"

	"github.com/litetable/litetable-query/internal/litetable"
)

// Combine reduces partials of one query kind: counts are summed, extents take the least minimum
// and the greatest maximum, id sets are unioned. Combining nothing yields the identity.
func Combine(kind litetable.QueryKind, partials ...litetable.PartialResult) (litetable.PartialResult, error) {
	out := litetable.PartialResult{Kind: kind}
	for i, p := range partials {
		if p.Kind != kind {
			return litetable.PartialResult{}, fmt.Errorf("partial %d is a %s result, not %s", i, p.Kind, kind)
		}
		switch kind {
		case litetable.QueryCount:
			out.Count += p.Count
		case litetable.QueryExtent:
			if err := out.Extent.Merge(p.Extent); err != nil {
				return litetable.PartialResult{}, err
			}
		case litetable.QueryIDSet:
			out.IDs = append(out.IDs, p.IDs...)
		default:
			return litetable.PartialResult{}, fmt.Errorf("cannot combine %s results", kind)
		}
	}
	if kind == litetable.QueryIDSet {
		slices.Sort(out.IDs)
		out.IDs = slices.Compact(out.IDs)
	}
	return out, nil
}
