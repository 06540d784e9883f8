package shard

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/litetable/litetable-query/internal/expr"
	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/litetable/litetable-query/internal/query"
	"github.com/stretchr/testify/require"
)

// Columns mostly hold one class each; a few writes put another class in, so ordering predicates
// sometimes meet values they cannot be compared with.
var modelColumns = []string{"n", "s", "d", "m"}

func modelValue(r *rand.Rand, column string) litetable.Value {
	if r.IntN(12) == 0 {
		column = modelColumns[r.IntN(len(modelColumns))]
	}
	switch column {
	case "n", "m":
		if r.IntN(2) == 0 {
			return litetable.Int(int64(r.IntN(9) - 4))
		}
		return litetable.Float(float64(r.IntN(17)-8) / 2)
	case "d":
		return day(2018+r.IntN(4), time.Month(1+r.IntN(12)), 1)
	default:
		// a shared prefix longer than the score keeps tie groups around
		return litetable.String(fmt.Sprintf("prefix%c%d", 'a'+rune(r.IntN(3)), r.IntN(3)))
	}
}

func modelLeaf(r *rand.Rand) expr.Expr {
	col := modelColumns[r.IntN(len(modelColumns))]
	ops := []expr.Op{expr.Eq, expr.Ne, expr.Lt, expr.Le, expr.Gt, expr.Ge}
	switch r.IntN(5) {
	case 0:
		return expr.IsNull{Column: col}
	case 1:
		return expr.NotNull{Column: col}
	case 2:
		return expr.In{Column: col, Values: []litetable.Value{modelValue(r, col), modelValue(r, col)}}
	case 3:
		return expr.Range{
			Column: col, Lower: modelValue(r, col), LowerInclusive: r.IntN(2) == 0,
			Upper: modelValue(r, col), UpperInclusive: r.IntN(2) == 0,
		}
	}
	return expr.Compare{Column: col, Op: ops[r.IntN(len(ops))], Value: modelValue(r, col)}
}

func modelTree(r *rand.Rand, depth int) expr.Expr {
	if depth == 0 || r.IntN(3) == 0 {
		return modelLeaf(r)
	}
	switch r.IntN(3) {
	case 0:
		return expr.And{Left: modelTree(r, depth-1), Right: modelTree(r, depth-1)}
	case 1:
		return expr.Or{Left: modelTree(r, depth-1), Right: modelTree(r, depth-1)}
	}
	return expr.Not{Child: modelTree(r, depth-1)}
}

// model is the shard's content kept as plain rows.
type model map[string]map[string]litetable.Value

func (m model) rows() []litetable.Row {
	out := make([]litetable.Row, 0, len(m))
	for id, fields := range m {
		row := litetable.Row{ID: id, Fields: make(map[string]litetable.Field, len(fields))}
		for c, v := range fields {
			row.Fields[c] = litetable.Field{Value: v, Time: now}
		}
		out = append(out, row)
	}
	return out
}

// mismatched reports whether an ordering bound in e cannot be compared with a value its column
// holds in some row.
func (m model) mismatched(e expr.Expr) bool {
	check := func(column string, bounds ...litetable.Value) bool {
		for _, fields := range m {
			v, ok := fields[column]
			if !ok {
				continue
			}
			for _, b := range bounds {
				if b.Class() != v.Class() {
					return true
				}
			}
		}
		return false
	}
	switch n := e.(type) {
	case expr.Compare:
		return n.Op.Ordering() && check(n.Column, n.Value)
	case expr.Range:
		return check(n.Column, n.Lower, n.Upper)
	case expr.And:
		return m.mismatched(n.Left) || m.mismatched(n.Right)
	case expr.Or:
		return m.mismatched(n.Left) || m.mismatched(n.Right)
	case expr.Not:
		return m.mismatched(n.Child)
	}
	return false
}

// brute answers a query over the model without any index.
func (m model) brute(e expr.Expr, target string) ([]string, litetable.Extent, error) {
	var (
		ids    []string
		extent litetable.Extent
	)
	for _, row := range m.rows() {
		ok, err := e.Match(row)
		if err != nil {
			return nil, extent, err
		}
		if !ok {
			continue
		}
		ids = append(ids, row.ID)
		if f, has := row.Get(target); has {
			if err = extent.Include(f.Value); err != nil {
				return nil, extent, err
			}
		}
	}
	slices.Sort(ids)
	return ids, extent, nil
}

// Queries stay correct while rows are written and deleted between them, with derived indexes
// persisted after their first evaluation and ordering bounds that sometimes do not fit the column.
func TestShard_PropertyWritesBetweenQueries(t *testing.T) {
	t.Parallel()
	for seed := uint64(1); seed <= 4; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			t.Parallel()
			r := rand.New(rand.NewPCG(seed, seed*7))
			s, err := newShard(&shardConfig{
				orderedColumns: []string{"n", "d"},
				autoPromote:    true,
				persistAfter:   1,
			})
			require.NoError(t, err)
			ctx := context.Background()
			m := model{}

			// a small pool so that persisted derived indexes get reused across writes
			pool := make([]expr.Expr, 16)
			for i := range pool {
				pool[i] = modelTree(r, 3)
			}

			for step := 0; step < 600; step++ {
				id := fmt.Sprintf("r%02d", r.IntN(40))
				switch op := r.IntN(10); {
				case op < 4:
					fields := map[string]litetable.Value{}
					for _, c := range modelColumns {
						if r.IntN(3) == 0 {
							fields[c] = modelValue(r, c)
						}
					}
					if len(fields) == 0 {
						fields["m"] = modelValue(r, "m")
					}
					require.NoError(t, s.Write(ctx, id, fields, now))
					if m[id] == nil {
						m[id] = map[string]litetable.Value{}
					}
					for c, v := range fields {
						m[id][c] = v
					}
				case op < 5:
					column := modelColumns[r.IntN(len(modelColumns))]
					_, err := s.Delete(ctx, id, []string{column})
					require.NoError(t, err)
					if fields, ok := m[id]; ok {
						delete(fields, column)
						if len(fields) == 0 {
							delete(m, id)
						}
					}
				case op < 6:
					_, err := s.Delete(ctx, id, nil)
					require.NoError(t, err)
					delete(m, id)
				default:
					checkQuery(t, s, m, pool[r.IntN(len(pool))], modelColumns[r.IntN(len(modelColumns))])
				}
			}
			require.Equal(t, len(m), s.Rows())
		})
	}
}

func checkQuery(t *testing.T, s *Shard, m model, e expr.Expr, target string) {
	t.Helper()
	ctx := context.Background()
	text := e.String()
	wantIDs, wantExtent, bruteErr := m.brute(e, target)
	mismatch := m.mismatched(e)
	if bruteErr != nil {
		require.True(t, errors.Is(bruteErr, litetable.ErrTypeMismatch), text)
	}

	count, err := s.Evaluate(ctx, query.Request{Kind: litetable.QueryCount, Expr: e})
	if mismatch {
		require.True(t, errors.Is(err, litetable.ErrTypeMismatch), "%s: %v", text, err)
		return
	}
	require.NoError(t, err, text)

	ids, err := s.Evaluate(ctx, query.Request{Kind: litetable.QueryIDSet, Expr: e})
	require.NoError(t, err, text)
	extent, extentErr := s.Evaluate(ctx, query.Request{Kind: litetable.QueryExtent, Expr: e, Target: target})

	if bruteErr != nil {
		// only the extent fold can fail once the filter is well typed
		require.True(t, errors.Is(extentErr, litetable.ErrTypeMismatch), "%s: %v", text, extentErr)
		return
	}
	require.Equal(t, int64(len(wantIDs)), count.Count, text)
	require.ElementsMatch(t, wantIDs, ids.IDs, text)
	require.NoError(t, extentErr, text)
	require.Equal(t, wantExtent.Valid, extent.Extent.Valid, text)
	if wantExtent.Valid {
		require.True(t, wantExtent.Min.Equal(extent.Extent.Min), "%s: min %s", text, extent.Extent.Min)
		require.True(t, wantExtent.Max.Equal(extent.Extent.Max), "%s: max %s", text, extent.Extent.Max)
	}
}
