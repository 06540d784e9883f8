package litetable

import (
	"time"
)

// Field is a single cell: the current value of a column for a row and the time it was written.
type Field struct {
	Value Value     `msgpack:"v"`
	Time  time.Time `msgpack:"t"`
}

// Row defines a row of data in LiteTable. Rows are sparse: a column that is absent from Fields is
// null for that row, which is a meaningful state and not an error.
//
// Example:
//
//	Row{
//	  ID: "alice",
//	  Fields: map[string]Field{
//	    "Gender":     {Value: String("Female"), Time: t0},
//	    "GenderWhen": {Value: Date(t1), Time: t0},
//	  },
//	}
type Row struct {
	ID     string           `msgpack:"id"`
	Fields map[string]Field `msgpack:"f"`
}

// Get returns the field stored for a column, if the row has one.
func (r Row) Get(column string) (Field, bool) {
	f, ok := r.Fields[column]
	return f, ok
}

// QueryKind selects the shape of a query's answer and therefore the reducer used across shards.
type QueryKind uint8

const (
	QueryUnknown QueryKind = iota
	QueryCount
	QueryExtent
	QueryIDSet
)

func (k QueryKind) String() string {
	switch k {
	case QueryCount:
		return "count"
	case QueryExtent:
		return "extent"
	case QueryIDSet:
		return "set"
	default:
		return "unknown"
	}
}

// Extent is the running minimum and maximum of a column over the matching rows. Valid is false
// when no matching row carried the column.
type Extent struct {
	Min   Value `msgpack:"min"`
	Max   Value `msgpack:"max"`
	Valid bool  `msgpack:"valid"`
}

// Include widens the extent to cover v. Values that cannot be ordered against the current bounds
// fail with ErrTypeMismatch.
func (e *Extent) Include(v Value) error {
	if !e.Valid {
		*e = Extent{Min: v, Max: v, Valid: true}
		return nil
	}
	return e.Merge(Extent{Min: v, Max: v, Valid: true})
}

// Merge widens the extent to cover another one. An invalid extent is the identity.
func (e *Extent) Merge(o Extent) error {
	if !o.Valid {
		return nil
	}
	if !e.Valid {
		*e = o
		return nil
	}
	lo, err := o.Min.Compare(e.Min)
	if err != nil {
		return err
	}
	hi, err := o.Max.Compare(e.Max)
	if err != nil {
		return err
	}
	// equal bounds of different kinds (3 and 3.0) settle on the lower kind so merging commutes
	if lo < 0 || (lo == 0 && o.Min.Kind < e.Min.Kind) {
		e.Min = o.Min
	}
	if hi > 0 || (hi == 0 && o.Max.Kind < e.Max.Kind) {
		e.Max = o.Max
	}
	return nil
}

// PartialResult is one shard's contribution to a query. Only the member matching Kind is set.
type PartialResult struct {
	Kind   QueryKind `msgpack:"kind"`
	Count  int64     `msgpack:"count,omitempty"`
	Extent Extent    `msgpack:"extent,omitempty"`
	IDs    []string  `msgpack:"ids,omitempty"`
}
