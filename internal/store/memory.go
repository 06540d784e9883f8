package store

import (
	"iter"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/btree"
	"github.com/litetable/litetable-query/internal/litetable"
)

// Memory is an in-memory Store. Row identifiers are interned into dense uint32 ordinals so that
// sets can be held as roaring bitmaps; ordered sets keep a B-tree ordered by score next to an
// ordinal->score map.
type Memory struct {
	mutex sync.RWMutex

	// ids is append-only: an ordinal, once assigned, never changes its identifier.
	ids  []string
	ords map[string]uint32

	scalars map[string]string
	sets    map[string]*roaring.Bitmap
	zsets   map[string]*zset
	rows    map[string]map[string]litetable.Field
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		ords:    make(map[string]uint32),
		scalars: make(map[string]string),
		sets:    make(map[string]*roaring.Bitmap),
		zsets:   make(map[string]*zset),
		rows:    make(map[string]map[string]litetable.Field),
	}
}

func (m *Memory) ordinal(id string) uint32 {
	if ord, ok := m.ords[id]; ok {
		return ord
	}
	ord := uint32(len(m.ids))
	m.ids = append(m.ids, id)
	m.ords[id] = ord
	return ord
}

func (m *Memory) typeOf(key string) Type {
	if _, ok := m.sets[key]; ok {
		return TypeSet
	}
	if _, ok := m.zsets[key]; ok {
		return TypeOrderedSet
	}
	if _, ok := m.scalars[key]; ok {
		return TypeScalar
	}
	return TypeNone
}

func (m *Memory) check(key string, want Type) error {
	if t := m.typeOf(key); t != TypeNone && t != want {
		return litetable.NewError(ErrWrongType, "%s holds a %s, not a %s", key, t, want)
	}
	return nil
}

func (m *Memory) remove(key string) bool {
	t := m.typeOf(key)
	delete(m.scalars, key)
	delete(m.sets, key)
	delete(m.zsets, key)
	return t != TypeNone
}

func (m *Memory) Type(key string) Type {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.typeOf(key)
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if err := m.check(key, TypeScalar); err != nil {
		return "", false, err
	}
	v, ok := m.scalars[key]
	return v, ok, nil
}

// Set overwrites whatever the key held before.
func (m *Memory) Set(key, value string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.remove(key)
	m.scalars[key] = value
	return nil
}

func (m *Memory) Del(keys ...string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	n := 0
	for _, k := range keys {
		if m.remove(k) {
			n++
		}
	}
	return n
}

func (m *Memory) Rename(src, dst string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if src == dst {
		return nil
	}
	t := m.typeOf(src)
	if t == TypeNone {
		return litetable.NewError(ErrNoSuchKey, "%s", src)
	}
	m.remove(dst)
	switch t {
	case TypeScalar:
		m.scalars[dst] = m.scalars[src]
	case TypeSet:
		m.sets[dst] = m.sets[src]
	case TypeOrderedSet:
		m.zsets[dst] = m.zsets[src]
	}
	m.remove(src)
	return nil
}

func (m *Memory) SAdd(key string, ids ...string) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.check(key, TypeSet); err != nil {
		return 0, err
	}
	bm, ok := m.sets[key]
	if !ok {
		bm = roaring.New()
		m.sets[key] = bm
	}
	added := 0
	for _, id := range ids {
		if bm.CheckedAdd(m.ordinal(id)) {
			added++
		}
	}
	if bm.IsEmpty() {
		delete(m.sets, key)
	}
	return added, nil
}

func (m *Memory) SRem(key string, ids ...string) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.check(key, TypeSet); err != nil {
		return 0, err
	}
	bm, ok := m.sets[key]
	if !ok {
		return 0, nil
	}
	removed := 0
	for _, id := range ids {
		if ord, ok := m.ords[id]; ok && bm.CheckedRemove(ord) {
			removed++
		}
	}
	if bm.IsEmpty() {
		delete(m.sets, key)
	}
	return removed, nil
}

func (m *Memory) SCard(key string) (int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if err := m.check(key, TypeSet); err != nil {
		return 0, err
	}
	if bm, ok := m.sets[key]; ok {
		return int(bm.GetCardinality()), nil
	}
	return 0, nil
}

func (m *Memory) SIsMember(key, id string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if err := m.check(key, TypeSet); err != nil {
		return false, err
	}
	ord, ok := m.ords[id]
	if !ok {
		return false, nil
	}
	bm, ok := m.sets[key]
	return ok && bm.Contains(ord), nil
}

// SMembers iterates a point-in-time copy of the set, so the sequence can be replayed and the
// caller may write to the store while iterating.
func (m *Memory) SMembers(key string) (iter.Seq[string], error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if err := m.check(key, TypeSet); err != nil {
		return nil, err
	}
	bm := roaring.New()
	if src, ok := m.sets[key]; ok {
		bm = src.Clone()
	}
	ids := m.ids
	return func(yield func(string) bool) {
		it := bm.Iterator()
		for it.HasNext() {
			if !yield(ids[it.Next()]) {
				return
			}
		}
	}, nil
}

// members returns the membership of a set or ordered set operand. The result must not be
// mutated.
func (m *Memory) members(key string) (*roaring.Bitmap, error) {
	switch m.typeOf(key) {
	case TypeSet:
		return m.sets[key], nil
	case TypeOrderedSet:
		return m.zsets[key].bitmap(), nil
	case TypeScalar:
		return nil, litetable.NewError(ErrWrongType, "%s holds a scalar, not a set", key)
	}
	return roaring.New(), nil
}

func (m *Memory) operands(keys []string) ([]*roaring.Bitmap, error) {
	bms := make([]*roaring.Bitmap, 0, len(keys))
	for _, k := range keys {
		bm, err := m.members(k)
		if err != nil {
			return nil, err
		}
		bms = append(bms, bm)
	}
	return bms, nil
}

func (m *Memory) storeSet(dst string, bm *roaring.Bitmap) int {
	m.remove(dst)
	if bm.IsEmpty() {
		return 0
	}
	m.sets[dst] = bm
	return int(bm.GetCardinality())
}

func (m *Memory) SUnionStore(dst string, keys ...string) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	bms, err := m.operands(keys)
	if err != nil {
		return 0, err
	}
	result := roaring.New()
	for _, bm := range bms {
		result.Or(bm)
	}
	return m.storeSet(dst, result), nil
}

func (m *Memory) SInterStore(dst string, keys ...string) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	bms, err := m.operands(keys)
	if err != nil {
		return 0, err
	}
	result := roaring.New()
	if len(bms) > 0 {
		result = bms[0].Clone()
		for _, bm := range bms[1:] {
			result.And(bm)
		}
	}
	return m.storeSet(dst, result), nil
}

// SDiffStore stores the members of the first key that are in none of the others.
func (m *Memory) SDiffStore(dst string, keys ...string) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	bms, err := m.operands(keys)
	if err != nil {
		return 0, err
	}
	result := roaring.New()
	if len(bms) > 0 {
		result = bms[0].Clone()
		for _, bm := range bms[1:] {
			result.AndNot(bm)
		}
	}
	return m.storeSet(dst, result), nil
}

// ZAdd sets the score of id, reporting whether id was newly added.
func (m *Memory) ZAdd(key, id string, score float64) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.check(key, TypeOrderedSet); err != nil {
		return false, err
	}
	z, ok := m.zsets[key]
	if !ok {
		z = newZSet()
		m.zsets[key] = z
	}
	return z.add(m.ordinal(id), score), nil
}

func (m *Memory) ZRem(key string, ids ...string) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.check(key, TypeOrderedSet); err != nil {
		return 0, err
	}
	z, ok := m.zsets[key]
	if !ok {
		return 0, nil
	}
	removed := 0
	for _, id := range ids {
		if ord, ok := m.ords[id]; ok && z.remove(ord) {
			removed++
		}
	}
	if z.len() == 0 {
		delete(m.zsets, key)
	}
	return removed, nil
}

func (m *Memory) ZCard(key string) (int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if err := m.check(key, TypeOrderedSet); err != nil {
		return 0, err
	}
	if z, ok := m.zsets[key]; ok {
		return z.len(), nil
	}
	return 0, nil
}

func (m *Memory) ZScore(key, id string) (float64, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if err := m.check(key, TypeOrderedSet); err != nil {
		return 0, false, err
	}
	z, ok := m.zsets[key]
	if !ok {
		return 0, false, nil
	}
	ord, ok := m.ords[id]
	if !ok {
		return 0, false, nil
	}
	score, ok := z.scores[ord]
	return score, ok, nil
}

// ZRangeByScore iterates members with min <= score <= max in ascending score order.
func (m *Memory) ZRangeByScore(key string, min, max float64) (iter.Seq2[string, float64], error) {
	entries, ids, err := m.between(key, min, max)
	if err != nil {
		return nil, err
	}
	return func(yield func(string, float64) bool) {
		for _, e := range entries {
			if !yield(ids[e.ord], e.score) {
				return
			}
		}
	}, nil
}

// ZRevRangeByScore iterates members with min <= score <= max in descending score order.
func (m *Memory) ZRevRangeByScore(key string, max, min float64) (iter.Seq2[string, float64], error) {
	entries, ids, err := m.between(key, min, max)
	if err != nil {
		return nil, err
	}
	return func(yield func(string, float64) bool) {
		for i := len(entries) - 1; i >= 0; i-- {
			if !yield(ids[entries[i].ord], entries[i].score) {
				return
			}
		}
	}, nil
}

func (m *Memory) between(key string, min, max float64) ([]zentry, []string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if err := m.check(key, TypeOrderedSet); err != nil {
		return nil, nil, err
	}
	z, ok := m.zsets[key]
	if !ok || min > max {
		return nil, m.ids, nil
	}
	return z.between(min, max), m.ids, nil
}

// ZInterStore stores the intersection of all operands as an ordered set. Scores are taken from the
// first ordered-set operand; when every operand is a plain set the scores are zero.
func (m *Memory) ZInterStore(dst string, keys ...string) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	bms, err := m.operands(keys)
	if err != nil {
		return 0, err
	}
	var source *zset
	for _, k := range keys {
		if z, ok := m.zsets[k]; ok {
			source = z
			break
		}
	}
	result := roaring.New()
	if len(bms) > 0 {
		result = bms[0].Clone()
		for _, bm := range bms[1:] {
			result.And(bm)
		}
	}

	entries := make([]zentry, 0, result.GetCardinality())
	it := result.Iterator()
	for it.HasNext() {
		ord := it.Next()
		var score float64
		if source != nil {
			score = source.scores[ord]
		}
		entries = append(entries, zentry{score: score, ord: ord})
	}

	m.remove(dst)
	if len(entries) == 0 {
		return 0, nil
	}
	m.zsets[dst] = newZSetFrom(entries)
	return len(entries), nil
}

// GetRow loads the requested columns of a row. A nil column list loads every field.
func (m *Memory) GetRow(id string, columns []string) (litetable.Row, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	fields, ok := m.rows[id]
	if !ok {
		return litetable.Row{}, false
	}
	row := litetable.Row{ID: id, Fields: make(map[string]litetable.Field, len(columns))}
	if columns == nil {
		for c, f := range fields {
			row.Fields[c] = f
		}
		return row, true
	}
	for _, c := range columns {
		if f, ok := fields[c]; ok {
			row.Fields[c] = f
		}
	}
	return row, true
}

// SetField writes a cell and returns the value it replaced, if any.
func (m *Memory) SetField(id, column string, f litetable.Field) (litetable.Field, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	fields, ok := m.rows[id]
	if !ok {
		fields = make(map[string]litetable.Field)
		m.rows[id] = fields
		m.ordinal(id)
	}
	prev, existed := fields[column]
	fields[column] = f
	return prev, existed
}

// DelField removes a cell. A row without any remaining cell is removed entirely.
func (m *Memory) DelField(id, column string) (litetable.Field, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	fields, ok := m.rows[id]
	if !ok {
		return litetable.Field{}, false
	}
	prev, existed := fields[column]
	delete(fields, column)
	if len(fields) == 0 {
		delete(m.rows, id)
	}
	return prev, existed
}

func (m *Memory) RowCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rows)
}

type zentry struct {
	score float64
	ord   uint32
}

func (e zentry) less(o zentry) bool {
	if e.score != o.score {
		return e.score < o.score
	}
	return e.ord < o.ord
}

// zset is an ordered set: a B-tree of (score, ordinal) entries with an index from ordinal to
// score.
type zset struct {
	scores map[uint32]float64
	tree   *btree.BTreeG[zentry]
}

const zsetDegree = 32

func newZSet() *zset {
	return &zset{
		scores: make(map[uint32]float64),
		tree:   btree.NewG(zsetDegree, zentry.less),
	}
}

// newZSetFrom builds an ordered set from entries with distinct ordinals.
func newZSetFrom(entries []zentry) *zset {
	z := newZSet()
	slices.SortFunc(entries, func(a, b zentry) int {
		if a.less(b) {
			return -1
		}
		if b.less(a) {
			return 1
		}
		return 0
	})
	for _, e := range entries {
		z.tree.ReplaceOrInsert(e)
		z.scores[e.ord] = e.score
	}
	return z
}

func (z *zset) len() int {
	return z.tree.Len()
}

func (z *zset) add(ord uint32, score float64) bool {
	prev, existed := z.scores[ord]
	if existed {
		if prev == score {
			return false
		}
		z.tree.Delete(zentry{score: prev, ord: ord})
	}
	z.tree.ReplaceOrInsert(zentry{score: score, ord: ord})
	z.scores[ord] = score
	return !existed
}

func (z *zset) remove(ord uint32) bool {
	score, ok := z.scores[ord]
	if !ok {
		return false
	}
	z.tree.Delete(zentry{score: score, ord: ord})
	delete(z.scores, ord)
	return true
}

func (z *zset) between(min, max float64) []zentry {
	var out []zentry
	z.tree.AscendGreaterOrEqual(zentry{score: min}, func(e zentry) bool {
		if e.score > max {
			return false
		}
		out = append(out, e)
		return true
	})
	return out
}

// entries returns every entry in ascending order.
func (z *zset) entries() []zentry {
	out := make([]zentry, 0, z.tree.Len())
	z.tree.Ascend(func(e zentry) bool {
		out = append(out, e)
		return true
	})
	return out
}

func (z *zset) bitmap() *roaring.Bitmap {
	bm := roaring.New()
	for ord := range z.scores {
		bm.Add(ord)
	}
	return bm
}
