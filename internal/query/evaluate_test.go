package query

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/litetable/litetable-query/internal/expr"
	"github.com/litetable/litetable-query/internal/index"
	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/litetable/litetable-query/internal/store"
	"github.com/stretchr/testify/require"
)

var written = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) litetable.Value {
	return litetable.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// dataset mirrors the write path: every cell lands in the row store and in the all, any and value
// indexes.
type dataset struct {
	t       *testing.T
	store   *store.Memory
	ordered map[string]bool
	rows    map[string]litetable.Row
}

func newDataset(t *testing.T, ordered ...string) *dataset {
	d := &dataset{t: t, store: store.NewMemory(), ordered: map[string]bool{}, rows: map[string]litetable.Row{}}
	for _, c := range ordered {
		d.ordered[c] = true
	}
	return d
}

func (d *dataset) write(id, column string, v litetable.Value) {
	d.t.Helper()
	prev, _ := d.store.SetField(id, column, litetable.Field{Value: v, Time: written})
	require.NoError(d.t, index.Insert(d.store, id, column, prev.Value, v, d.ordered[column]))

	row, ok := d.rows[id]
	if !ok {
		row = litetable.Row{ID: id, Fields: map[string]litetable.Field{}}
		d.rows[id] = row
	}
	row.Fields[column] = litetable.Field{Value: v, Time: written}
}

func (d *dataset) evaluator(autoPromote bool, cache *Cache) *Evaluator {
	d.t.Helper()
	e, err := NewEvaluator(&Config{Store: d.store, Cache: cache, AutoPromote: autoPromote})
	require.NoError(d.t, err)
	return e
}

// brute evaluates an expression against every row without touching an index.
func (d *dataset) brute(e expr.Expr) []string {
	d.t.Helper()
	var ids []string
	for id, row := range d.rows {
		ok, err := e.Match(row)
		require.NoError(d.t, err, e.String())
		if ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func mustParse(t *testing.T, text string) expr.Expr {
	t.Helper()
	e, err := expr.Parse(text)
	require.NoError(t, err)
	return e
}

func scenario(t *testing.T) *dataset {
	d := newDataset(t, "GenderWhen")
	for _, r := range []struct {
		id     string
		gender string
		when   litetable.Value
		age    string
	}{
		{"alice", "Female", day(2020, 4, 1), "Middle Age"},
		{"bob", "Male", day(2009, 6, 1), "Middle Age"},
		{"carol", "Female", day(2020, 9, 15), "Young"},
		{"dan", "Male", day(2020, 2, 1), "Old"},
		{"eve", "Female", day(2015, 3, 10), "Middle Age"},
	} {
		d.write(r.id, "Gender", litetable.String(r.gender))
		d.write(r.id, "GenderWhen", r.when)
		d.write(r.id, "Age", litetable.String(r.age))
	}
	return d
}

func TestEvaluate_Scenario(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	ctx := context.Background()
	d := scenario(t)
	e := d.evaluator(false, nil)

	femaleIn2020 := mustParse(t, `Gender = Female AND 1/1/2020 <= GenderWhen <= 1/1/2021`)
	res, err := e.Evaluate(ctx, Request{Kind: litetable.QueryCount, Expr: femaleIn2020})
	req.NoError(err)
	req.Equal(int64(2), res.Count)

	notNull := mustParse(t, `Gender IS NOT NULL`)
	req.True(Exact(notNull))
	res, err = e.Evaluate(ctx, Request{Kind: litetable.QueryCount, Expr: notNull})
	req.NoError(err)
	req.Equal(int64(5), res.Count)

	res, err = e.Evaluate(ctx, Request{
		Kind:   litetable.QueryExtent,
		Expr:   mustParse(t, `Age = "Middle Age"`),
		Target: "GenderWhen",
	})
	req.NoError(err)
	req.True(res.Extent.Valid)
	req.True(res.Extent.Min.Equal(day(2009, 6, 1)), res.Extent.Min.String())
	req.True(res.Extent.Max.Equal(day(2020, 4, 1)), res.Extent.Max.String())

	male := litetable.String("Male")
	before, err := d.store.SCard(index.ValueKey("Gender", male))
	req.NoError(err)

	d.write("frank", "Gender", male)

	res, err = e.Evaluate(ctx, Request{Kind: litetable.QueryCount, Expr: femaleIn2020})
	req.NoError(err)
	req.Equal(int64(2), res.Count)

	res, err = e.Evaluate(ctx, Request{Kind: litetable.QueryCount, Expr: mustParse(t, `Gender = Female`)})
	req.NoError(err)
	req.Equal(int64(3), res.Count)

	after, err := d.store.SCard(index.ValueKey("Gender", male))
	req.NoError(err)
	req.Equal(before+1, after)
}

func TestEvaluate_Plans(t *testing.T) {
	t.Parallel()
	d := scenario(t)
	e := d.evaluator(true, nil)

	tests := map[string]struct {
		text  string
		exact bool
		count int64
	}{
		"equality":               {text: `Gender = Female`, exact: true, count: 3},
		"missing value":          {text: `Gender = Other`, exact: true, count: 0},
		"inequality":             {text: `Gender != Female`, exact: true, count: 2},
		"membership":             {text: `Age IN ("Young", "Old", "Ancient")`, exact: true, count: 2},
		"is null":                {text: `Height IS NULL`, exact: true, count: 5},
		"not null":               {text: `Height IS NOT NULL`, exact: true, count: 0},
		"ordering":               {text: `GenderWhen >= 2020-01-01`, exact: false, count: 3},
		"range":                  {text: `2010-01-01 < GenderWhen < 2020-03-01`, exact: false, count: 2},
		"and of exact":           {text: `Gender = Female AND Age = "Middle Age"`, exact: true, count: 2},
		"or of exact":            {text: `Gender = Male OR Age = Young`, exact: true, count: 3},
		"and with approximate":   {text: `Gender = Male AND GenderWhen < 2010-01-01`, exact: false, count: 1},
		"or with approximate":    {text: `Age = Old OR GenderWhen < 2010-01-01`, exact: false, count: 2},
		"not of exact":           {text: `NOT Gender = Female`, exact: true, count: 2},
		"not of approximate":     {text: `NOT GenderWhen > 2016-01-01`, exact: false, count: 2},
		"unknown column compare": {text: `Height > 3`, exact: false, count: 0},
		"promoted string column": {text: `Age > N`, exact: false, count: 2},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ex := mustParse(t, tc.text)
			require.Equal(t, tc.exact, Exact(ex))

			res, err := e.Evaluate(context.Background(), Request{Kind: litetable.QueryCount, Expr: ex})
			require.NoError(t, err)
			require.Equal(t, tc.count, res.Count)
			require.Equal(t, int(tc.count), len(d.brute(ex)))
		})
	}
}

func TestEvaluate_IDSet(t *testing.T) {
	t.Parallel()
	d := scenario(t)
	e := d.evaluator(false, nil)

	res, err := e.Evaluate(context.Background(), Request{
		Kind: litetable.QueryIDSet,
		Expr: mustParse(t, `Gender = Female AND GenderWhen > 2016-01-01`),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "carol"}, res.IDs)

	res, err = e.Evaluate(context.Background(), Request{Kind: litetable.QueryIDSet, Expr: mustParse(t, `Gender = Male`)})
	require.NoError(t, err)
	require.Equal(t, []string{"bob", "dan"}, res.IDs)
}

func TestEvaluate_Extent(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		ordered  bool
		byTime   bool
		expr     string
		min, max litetable.Value
		valid    bool
	}{
		"ordered target":        {ordered: true, expr: `Gender = Female`, min: day(2015, 3, 10), max: day(2020, 9, 15), valid: true},
		"unordered target":      {ordered: false, expr: `Gender = Female`, min: day(2015, 3, 10), max: day(2020, 9, 15), valid: true},
		"whole table":           {ordered: true, min: day(2009, 6, 1), max: day(2020, 9, 15), valid: true},
		"no match":              {ordered: true, expr: `Gender = Other`},
		"by time":               {ordered: true, byTime: true, expr: `Gender = Male`, min: litetable.Date(written), max: litetable.Date(written), valid: true},
		"approximate candidate": {ordered: true, expr: `GenderWhen < 2020-03-01`, min: day(2009, 6, 1), max: day(2020, 2, 1), valid: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var d *dataset
			if tc.ordered {
				d = scenario(t)
			} else {
				d = newDataset(t)
				for id, row := range scenario(t).rows {
					for c, f := range row.Fields {
						d.write(id, c, f.Value)
					}
				}
			}
			e := d.evaluator(false, nil)

			r := Request{Kind: litetable.QueryExtent, Target: "GenderWhen", ByTime: tc.byTime}
			if tc.expr != "" {
				r.Expr = mustParse(t, tc.expr)
			}
			res, err := e.Evaluate(context.Background(), r)
			require.NoError(t, err)
			require.Equal(t, tc.valid, res.Extent.Valid)
			if tc.valid {
				require.True(t, res.Extent.Min.Equal(tc.min), res.Extent.Min.String())
				require.True(t, res.Extent.Max.Equal(tc.max), res.Extent.Max.String())
			}
		})
	}
}

// Strings longer than the score prefix share a score; the extent must still compare them exactly.
func TestEvaluate_ExtentTieGroup(t *testing.T) {
	t.Parallel()
	d := newDataset(t, "Name")
	d.write("a", "Name", litetable.String("abcdefzzz"))
	d.write("b", "Name", litetable.String("abcdefaaa"))
	d.write("c", "Name", litetable.String("abcdefmmm"))
	d.write("z", "Name", litetable.String("b"))

	res, err := d.evaluator(false, nil).Evaluate(context.Background(), Request{
		Kind:   litetable.QueryExtent,
		Expr:   mustParse(t, `Name < b`),
		Target: "Name",
	})
	require.NoError(t, err)
	require.Equal(t, "abcdefaaa", res.Extent.Min.Str)
	require.Equal(t, "abcdefzzz", res.Extent.Max.Str)
}

func TestEvaluate_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := scenario(t)

	_, err := d.evaluator(false, nil).Evaluate(ctx, Request{Kind: litetable.QueryCount, Expr: mustParse(t, `Age > Middle`)})
	require.True(t, errors.Is(err, index.ErrIndexCorruption))

	_, err = d.evaluator(true, nil).Evaluate(ctx, Request{Kind: litetable.QueryCount, Expr: mustParse(t, `Age > 3`)})
	require.True(t, errors.Is(err, litetable.ErrTypeMismatch))

	_, err = d.evaluator(false, nil).Evaluate(ctx, Request{Kind: litetable.QueryExtent})
	require.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = d.evaluator(false, nil).Evaluate(cancelled, Request{
		Kind: litetable.QueryCount,
		Expr: mustParse(t, `GenderWhen > 2000-01-01`),
	})
	require.True(t, errors.Is(err, context.Canceled))
}

// An ordering bound of another class fails on both sides of the score line.
func TestEvaluate_OrderingMismatch(t *testing.T) {
	t.Parallel()
	d := scenario(t)
	d.write("zed", "Score", litetable.Int(7))
	e := d.evaluator(true, nil)

	for _, text := range []string{
		`GenderWhen < 3`,
		`GenderWhen > 3`,
		`GenderWhen <= abc`,
		`GenderWhen >= zzz`,
		`2000-01-01 <= GenderWhen <= 3`,
		`Score < 2020-01-01`,
		`Score > 2020-01-01`,
		`Gender = Male AND GenderWhen < 3`,
	} {
		t.Run(text, func(t *testing.T) {
			_, err := e.Evaluate(context.Background(), Request{Kind: litetable.QueryCount, Expr: mustParse(t, text)})
			require.True(t, errors.Is(err, litetable.ErrTypeMismatch), text)
		})
	}

	// a column nobody holds has nothing to mismatch
	res, err := e.Evaluate(context.Background(), Request{Kind: litetable.QueryCount, Expr: mustParse(t, `Missing < 3`)})
	require.NoError(t, err)
	require.Zero(t, res.Count)

	// integers and floats share a class
	res, err = e.Evaluate(context.Background(), Request{Kind: litetable.QueryCount, Expr: mustParse(t, `Score > 6.5`)})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Count)
}

func TestEvaluate_ReleasesTransientIndexes(t *testing.T) {
	t.Parallel()
	d := scenario(t)
	e := d.evaluator(false, nil)

	_, err := e.Evaluate(context.Background(), Request{
		Kind:    litetable.QueryExtent,
		Expr:    mustParse(t, `(Gender != Male OR Age IS NULL) AND NOT GenderWhen < 2016-01-01`),
		Target:  "GenderWhen",
		QueryID: "q1",
	})
	require.NoError(t, err)
	for i := 1; i <= 32; i++ {
		key := fmt.Sprintf("%sq1:%d", store.TransientPrefix, i)
		require.Equal(t, store.TypeNone, d.store.Type(key), key)
	}
}

func TestEvaluate_DerivedIndexCache(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	ctx := context.Background()
	d := scenario(t)
	cache := NewCache(2)
	e := d.evaluator(false, cache)

	ex := mustParse(t, `Gender = Female AND Age = "Middle Age"`)
	key := index.DerivedKey(ex.String())
	for i := 0; i < 2; i++ {
		res, err := e.Evaluate(ctx, Request{Kind: litetable.QueryCount, Expr: ex})
		req.NoError(err)
		req.Equal(int64(2), res.Count)
	}
	req.Equal(1, cache.Len())
	req.Equal(store.TypeSet, d.store.Type(key))

	got, exact, ok := cache.Lookup(ex.String())
	req.True(ok)
	req.True(exact)
	req.Equal(key, got)

	// reuse answers from the persisted index
	res, err := e.Evaluate(ctx, Request{Kind: litetable.QueryIDSet, Expr: ex})
	req.NoError(err)
	req.Equal([]string{"alice", "eve"}, res.IDs)

	// a write to one of its columns invalidates it
	d.write("frank", "Age", litetable.String("Middle Age"))
	d.store.Del(cache.Invalidate("Age")...)
	req.Zero(cache.Len())
	req.Equal(store.TypeNone, d.store.Type(key))

	// expiry
	_, _ = e.Evaluate(ctx, Request{Kind: litetable.QueryCount, Expr: ex})
	_, _ = e.Evaluate(ctx, Request{Kind: litetable.QueryCount, Expr: ex})
	req.Equal(1, cache.Len())
	req.Empty(cache.Expire(time.Hour))
	cache.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	req.Equal([]string{key}, cache.Expire(time.Hour))
}
