package query

import (
	"github.com/litetable/litetable-query/internal/expr"
	"github.com/litetable/litetable-query/internal/index"
)

// Plan is the outcome of resolving an expression on one shard.
type Plan struct {
	// Index holds every row that can match. When Exact is set it holds exactly the matching rows.
	Index *index.Index
	// Exact reports that Index's cardinality is the match count, so no row needs to be loaded.
	Exact bool
}

// Exact reports whether the index an expression resolves to holds precisely the matching rows.
//
// Equality, membership and null checks read dedicated indexes and are exact. Ordering predicates
// narrow an ordered index by score, which only bounds the answer. Every combinator is exact only
// when all of its children are: a single approximate child can put rows in (or keep rows out of)
// the combined index that the expression would judge differently. The rule never claims exactness
// it cannot prove.
func Exact(e expr.Expr) bool {
	switch n := e.(type) {
	case expr.Compare:
		return !n.Op.Ordering()
	case expr.Range:
		return false
	case expr.In, expr.IsNull, expr.NotNull:
		return true
	case expr.And:
		return Exact(n.Left) && Exact(n.Right)
	case expr.Or:
		return Exact(n.Left) && Exact(n.Right)
	case expr.Not:
		return Exact(n.Child)
	}
	return false
}
