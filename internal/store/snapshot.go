package store

import (
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/vmihailenco/msgpack/v5"
)

// image is the serialised form of a Memory store.
type image struct {
	IDs     []string                              `msgpack:"ids"`
	Scalars map[string]string                     `msgpack:"scalars"`
	Sets    map[string][]byte                     `msgpack:"sets"`
	ZSets   map[string][]zimage                   `msgpack:"zsets"`
	Rows    map[string]map[string]litetable.Field `msgpack:"rows"`
}

type zimage struct {
	Ord   uint32  `msgpack:"o"`
	Score float64 `msgpack:"s"`
}

// Snapshot writes every durable key and row as zstd-compressed msgpack. Transient and cached keys are skipped.
func (m *Memory) Snapshot(w io.Writer) error {
	m.mutex.RLock()
	img := image{
		IDs:     m.ids,
		Scalars: make(map[string]string, len(m.scalars)),
		Sets:    make(map[string][]byte, len(m.sets)),
		ZSets:   make(map[string][]zimage, len(m.zsets)),
		Rows:    make(map[string]map[string]litetable.Field, len(m.rows)),
	}
	for k, v := range m.scalars {
		if !volatile(k) {
			img.Scalars[k] = v
		}
	}
	for k, bm := range m.sets {
		if volatile(k) {
			continue
		}
		b, err := bm.ToBytes()
		if err != nil {
			m.mutex.RUnlock()
			return fmt.Errorf("failed to serialize set %s: %w", k, err)
		}
		img.Sets[k] = b
	}
	for k, z := range m.zsets {
		if volatile(k) {
			continue
		}
		sorted := z.entries()
		entries := make([]zimage, len(sorted))
		for i, e := range sorted {
			entries[i] = zimage{Ord: e.ord, Score: e.score}
		}
		img.ZSets[k] = entries
	}
	for id, fields := range m.rows {
		copied := make(map[string]litetable.Field, len(fields))
		for c, f := range fields {
			copied[c] = f
		}
		img.Rows[id] = copied
	}
	m.mutex.RUnlock()

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create snapshot compressor: %w", err)
	}
	if err = msgpack.NewEncoder(zw).Encode(&img); err != nil {
		_ = zw.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return zw.Close()
}

// Restore replaces the content of the store with a snapshot written by Snapshot.
func (m *Memory) Restore(r io.Reader) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to create snapshot decompressor: %w", err)
	}
	defer zr.Close()

	var img image
	if err = msgpack.NewDecoder(zr).Decode(&img); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	fresh := NewMemory()
	for _, id := range img.IDs {
		fresh.ordinal(id)
	}
	for k, v := range img.Scalars {
		fresh.scalars[k] = v
	}
	for k, b := range img.Sets {
		bm := roaring.New()
		if err = bm.UnmarshalBinary(b); err != nil {
			return fmt.Errorf("failed to decode set %s: %w", k, err)
		}
		fresh.sets[k] = bm
	}
	for k, entries := range img.ZSets {
		loaded := make([]zentry, len(entries))
		for i, e := range entries {
			loaded[i] = zentry{score: e.Score, ord: e.Ord}
		}
		fresh.zsets[k] = newZSetFrom(loaded)
	}
	for id, fields := range img.Rows {
		fresh.rows[id] = fields
		fresh.ordinal(id)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.ids, m.ords = fresh.ids, fresh.ords
	m.scalars, m.sets, m.zsets, m.rows = fresh.scalars, fresh.sets, fresh.zsets, fresh.rows
	return nil
}
