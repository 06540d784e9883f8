package index

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/litetable/litetable-query/internal/store"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, idx *Index) []string {
	t.Helper()
	seq, err := idx.Members()
	require.NoError(t, err)
	got := slices.Collect(seq)
	slices.Sort(got)
	return got
}

func TestKeys(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		got      string
		expected string
	}{
		"any":                      {got: AnyKey("Gender"), expected: "any_Gender"},
		"value string":             {got: ValueKey("Gender", litetable.String("Male")), expected: "value_Gender_s:Male"},
		"value number":             {got: ValueKey("Age", litetable.Float(3)), expected: "value_Age_n:3"},
		"underscores are escaped":  {got: ValueKey("a_b", litetable.String("c")), expected: "value_a__b_s:c"},
		"column and literal split": {got: ValueKey("a", litetable.String("b_s:c")), expected: "value_a_s:b_s:c"},
		"any escapes underscores":  {got: AnyKey("first_name"), expected: "any_first__name"},
		"class":                    {got: ClassKey("Age", litetable.ClassNumber), expected: "class_Age_number"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.expected, tc.got)
		})
	}

	require.Equal(t, DerivedKey("Gender = \"Female\""), DerivedKey("Gender = \"Female\""))
	require.NotEqual(t, DerivedKey("a = 1"), DerivedKey("a = 2"))
}

func TestOpen(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	s := store.NewMemory()

	_, _ = s.SAdd("any_Gender", "alice")
	_, _ = s.ZAdd("any_Age", "alice", 41)
	_ = s.Set("meta", "x")

	idx, err := Open(s, "any_Gender", FamilyAny)
	req.NoError(err)
	req.Equal(KindSet, idx.Kind)
	req.True(idx.Persisted())

	idx, err = Open(s, "any_Age", FamilyAny)
	req.NoError(err)
	req.Equal(KindOrderedSet, idx.Kind)

	idx, err = Open(s, "any_Nothing", FamilyAny)
	req.NoError(err)
	n, err := idx.Cardinality()
	req.NoError(err)
	req.Zero(n)

	_, err = Open(s, "meta", FamilyAny)
	req.True(errors.Is(err, ErrIndexCorruption))
}

func TestIndex_OrderedRequired(t *testing.T) {
	t.Parallel()
	s := store.NewMemory()
	_, _ = s.SAdd("any_Age", "alice")

	idx, err := Open(s, "any_Age", FamilyAny)
	require.NoError(t, err)
	_, err = idx.Scored(0, 1, false)
	require.True(t, errors.Is(err, ErrIndexCorruption))
}

func TestScope_Algebra(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	s := store.NewMemory()

	_, _ = s.SAdd("all", "a", "b", "c", "d")
	_, _ = s.SAdd("x", "a", "b")
	_, _ = s.ZAdd("y", "b", 2)
	_, _ = s.ZAdd("y", "c", 3)

	all, _ := Open(s, "all", FamilyAll)
	x, _ := Open(s, "x", FamilyValue)
	y, _ := Open(s, "y", FamilyAny)

	sc := NewScope(s, "q1")

	inter, err := sc.Intersect(KindSet, x, y)
	req.NoError(err)
	req.Equal([]string{"b"}, collect(t, inter))
	req.True(inter.Transient())

	union, err := sc.Union(x, y, Empty(s))
	req.NoError(err)
	req.Equal([]string{"a", "b", "c"}, collect(t, union))

	diff, err := sc.Difference(all, x)
	req.NoError(err)
	req.Equal([]string{"c", "d"}, collect(t, diff))

	ordered, err := sc.Intersect(KindOrderedSet, all, y)
	req.NoError(err)
	req.Equal(KindOrderedSet, ordered.Kind)
	scored, err := ordered.Scored(math.Inf(-1), math.Inf(1), true)
	req.NoError(err)
	var ids []string
	for id := range scored {
		ids = append(ids, id)
	}
	req.Equal([]string{"c", "b"}, ids)

	ranged, err := sc.ScoreRange(y, 2.5, 10)
	req.NoError(err)
	req.Equal([]string{"c"}, collect(t, ranged))

	// an ordered target needs an ordered operand
	plain, err := sc.Intersect(KindOrderedSet, all, x)
	req.NoError(err)
	req.Equal(KindSet, plain.Kind)

	sc.Release()
	for _, idx := range []*Index{inter, union, diff, ordered, ranged, plain} {
		req.Equal(store.TypeNone, s.Type(idx.Key), idx.Key)
	}
	// persisted indexes are untouched
	req.Equal(store.TypeSet, s.Type("x"))
	req.Equal(store.TypeOrderedSet, s.Type("y"))
}

func TestScope_Persist(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	s := store.NewMemory()
	_, _ = s.SAdd("x", "a", "b")
	_, _ = s.SAdd("y", "b")

	x, _ := Open(s, "x", FamilyValue)
	y, _ := Open(s, "y", FamilyValue)

	sc := NewScope(s, "")
	req.NotEmpty(sc.ID())
	derived, err := sc.Intersect(KindSet, x, y)
	req.NoError(err)

	key := DerivedKey("x AND y")
	req.NoError(derived.Persist(key))
	req.True(derived.Persisted())
	sc.Release()

	reopened, err := Open(s, key, FamilyDerived)
	req.NoError(err)
	req.Equal([]string{"b"}, collect(t, reopened))

	// the write path owns the base families
	req.NoError(x.Delete())
	req.Equal(store.TypeSet, s.Type("x"))

	req.NoError(reopened.Delete())
	req.Equal(store.TypeNone, s.Type(key))

	// placeholders never persist
	empty := Empty(s)
	req.NoError(empty.Persist("derived_empty"))
	req.False(empty.Persisted())
}

func TestScope_ConcurrentQueriesDoNotCollide(t *testing.T) {
	t.Parallel()
	s := store.NewMemory()
	_, _ = s.SAdd("x", "a")
	x, _ := Open(s, "x", FamilyValue)

	first := NewScope(s, "")
	second := NewScope(s, "")
	a, err := first.Union(x)
	require.NoError(t, err)
	b, err := second.Union(x)
	require.NoError(t, err)
	require.NotEqual(t, a.Key, b.Key)

	first.Release()
	require.Equal(t, store.TypeSet, s.Type(b.Key))
	second.Release()
}

func TestConvert_RoundTrip(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	s := store.NewMemory()

	scores := map[string]float64{"alice": 41, "bob": 17, "carol": 63}
	for id := range scores {
		_, _ = s.SAdd("any_Age", id)
	}
	idx, err := Open(s, "any_Age", FamilyAny)
	req.NoError(err)
	before := collect(t, idx)

	score := func(id string) (float64, error) { return scores[id], nil }
	ordered, err := Convert(s, idx, KindOrderedSet, score)
	req.NoError(err)
	req.Equal(KindOrderedSet, ordered.Kind)
	req.Equal(store.TypeOrderedSet, s.Type("any_Age"))
	req.Equal(before, collect(t, ordered))

	seq, err := ordered.Scored(math.Inf(-1), math.Inf(1), false)
	req.NoError(err)
	var ids []string
	for id := range seq {
		ids = append(ids, id)
	}
	req.Equal([]string{"bob", "alice", "carol"}, ids)

	back, err := Convert(s, ordered, KindSet, nil)
	req.NoError(err)
	req.Equal(store.TypeSet, s.Type("any_Age"))
	req.Equal(before, collect(t, back))
}

func TestConvert_ScoreFailureLeavesIndex(t *testing.T) {
	t.Parallel()
	s := store.NewMemory()
	_, _ = s.SAdd("any_Age", "alice")
	idx, _ := Open(s, "any_Age", FamilyAny)

	boom := errors.New("boom")
	_, err := Convert(s, idx, KindOrderedSet, func(string) (float64, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, store.TypeSet, s.Type("any_Age"))
}

func TestInsertRemove(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	s := store.NewMemory()

	req.NoError(Insert(s, "alice", "Age", litetable.Value{}, litetable.Int(41), true))
	req.NoError(Insert(s, "alice", "Gender", litetable.Value{}, litetable.String("Female"), false))
	req.Equal(store.TypeOrderedSet, s.Type(AnyKey("Age")))
	req.Equal(store.TypeSet, s.Type(AnyKey("Gender")))

	// rewriting moves the row between value indexes and rescores it
	req.NoError(Insert(s, "alice", "Age", litetable.Int(41), litetable.Int(42), true))
	req.Equal(store.TypeNone, s.Type(ValueKey("Age", litetable.Int(41))))
	score, ok, err := s.ZScore(AnyKey("Age"), "alice")
	req.NoError(err)
	req.True(ok)
	req.Equal(42.0, score)

	// an existing set index keeps its representation
	req.NoError(Insert(s, "bob", "Gender", litetable.Value{}, litetable.String("Male"), true))
	req.Equal(store.TypeSet, s.Type(AnyKey("Gender")))

	req.NoError(Remove(s, "alice", "Age", litetable.Int(42), false))
	req.Equal(store.TypeNone, s.Type(AnyKey("Age")))
	ok, err = s.SIsMember(AllKey, "alice")
	req.NoError(err)
	req.True(ok)

	req.NoError(Remove(s, "alice", "Gender", litetable.String("Female"), true))
	ok, err = s.SIsMember(AllKey, "alice")
	req.NoError(err)
	req.False(ok)
}

func TestInsertRemove_Classes(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	s := store.NewMemory()

	classes, err := Classes(s, "Score")
	req.NoError(err)
	req.Empty(classes)

	req.NoError(Insert(s, "alice", "Score", litetable.Value{}, litetable.Int(3), true))
	req.NoError(Insert(s, "bob", "Score", litetable.Value{}, litetable.Float(2.5), true))
	classes, err = Classes(s, "Score")
	req.NoError(err)
	req.Equal([]litetable.Class{litetable.ClassNumber}, classes)

	req.NoError(Insert(s, "bob", "Score", litetable.Float(2.5), litetable.String("high"), true))
	classes, err = Classes(s, "Score")
	req.NoError(err)
	req.Equal([]litetable.Class{litetable.ClassNumber, litetable.ClassString}, classes)

	// moving the last string back to a number leaves a single class
	req.NoError(Insert(s, "bob", "Score", litetable.String("high"), litetable.Int(1), true))
	classes, err = Classes(s, "Score")
	req.NoError(err)
	req.Equal([]litetable.Class{litetable.ClassNumber}, classes)

	req.NoError(Remove(s, "alice", "Score", litetable.Int(3), true))
	req.NoError(Remove(s, "bob", "Score", litetable.Int(1), true))
	classes, err = Classes(s, "Score")
	req.NoError(err)
	req.Empty(classes)
}
