package aggregate

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/stretchr/testify/require"
)

func extent(lo, hi litetable.Value) litetable.PartialResult {
	return litetable.PartialResult{
		Kind:   litetable.QueryExtent,
		Extent: litetable.Extent{Min: lo, Max: hi, Valid: true},
	}
}

func TestCombine(t *testing.T) {
	t.Parallel()
	d := func(y int, m time.Month, day int) litetable.Value {
		return litetable.Date(time.Date(y, m, day, 0, 0, 0, 0, time.UTC))
	}

	tests := map[string]struct {
		kind     litetable.QueryKind
		partials []litetable.PartialResult
		expected litetable.PartialResult
	}{
		"sum of counts": {
			kind: litetable.QueryCount,
			partials: []litetable.PartialResult{
				{Kind: litetable.QueryCount, Count: 2},
				{Kind: litetable.QueryCount, Count: 0},
				{Kind: litetable.QueryCount, Count: 5},
			},
			expected: litetable.PartialResult{Kind: litetable.QueryCount, Count: 7},
		},
		"no partials": {
			kind:     litetable.QueryCount,
			expected: litetable.PartialResult{Kind: litetable.QueryCount},
		},
		"extent": {
			kind: litetable.QueryExtent,
			partials: []litetable.PartialResult{
				extent(d(2015, 3, 10), d(2020, 4, 1)),
				{Kind: litetable.QueryExtent},
				extent(d(2009, 6, 1), d(2015, 1, 1)),
			},
			expected: extent(d(2009, 6, 1), d(2020, 4, 1)),
		},
		"union of ids": {
			kind: litetable.QueryIDSet,
			partials: []litetable.PartialResult{
				{Kind: litetable.QueryIDSet, IDs: []string{"eve", "alice"}},
				{Kind: litetable.QueryIDSet, IDs: []string{"carol", "alice"}},
			},
			expected: litetable.PartialResult{Kind: litetable.QueryIDSet, IDs: []string{"alice", "carol", "eve"}},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Combine(tc.kind, tc.partials...)
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
		})
	}
}

func TestCombine_Errors(t *testing.T) {
	t.Parallel()

	_, err := Combine(litetable.QueryCount, litetable.PartialResult{Kind: litetable.QueryIDSet})
	require.Error(t, err)

	_, err = Combine(litetable.QueryExtent,
		extent(litetable.Int(1), litetable.Int(2)),
		extent(litetable.String("a"), litetable.String("b")),
	)
	require.ErrorIs(t, err, litetable.ErrTypeMismatch)
}

// Any arrival order of shard answers, and any grouping of them, gives the same final result.
func TestCombine_OrderAndGroupingDoNotMatter(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewPCG(9, 9))

	random := func(kind litetable.QueryKind) litetable.PartialResult {
		switch kind {
		case litetable.QueryCount:
			return litetable.PartialResult{Kind: kind, Count: int64(r.IntN(100))}
		case litetable.QueryExtent:
			if r.IntN(4) == 0 {
				return litetable.PartialResult{Kind: kind}
			}
			lo := r.IntN(50)
			// mix integer and float bounds with equal values
			var low litetable.Value = litetable.Int(int64(lo))
			if r.IntN(2) == 0 {
				low = litetable.Float(float64(lo))
			}
			return extent(low, litetable.Int(int64(lo+r.IntN(50))))
		default:
			ids := make([]string, r.IntN(4))
			for i := range ids {
				ids[i] = string(rune('a' + r.IntN(8)))
			}
			return litetable.PartialResult{Kind: kind, IDs: ids}
		}
	}

	for _, kind := range []litetable.QueryKind{litetable.QueryCount, litetable.QueryExtent, litetable.QueryIDSet} {
		for i := 0; i < 100; i++ {
			partials := make([]litetable.PartialResult, 1+r.IntN(6))
			for j := range partials {
				partials[j] = random(kind)
			}
			want, err := Combine(kind, partials...)
			require.NoError(t, err)

			shuffled := append([]litetable.PartialResult(nil), partials...)
			r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
			got, err := Combine(kind, shuffled...)
			require.NoError(t, err)
			require.Equal(t, want, got)

			// combine a prefix first, then the rest
			split := r.IntN(len(shuffled) + 1)
			head, err := Combine(kind, shuffled[:split]...)
			require.NoError(t, err)
			tail, err := Combine(kind, shuffled[split:]...)
			require.NoError(t, err)
			grouped, err := Combine(kind, head, tail)
			require.NoError(t, err)
			require.Equal(t, want, grouped)
		}
	}
}
