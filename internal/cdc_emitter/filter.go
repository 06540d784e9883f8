package cdc_emitter

import (
	"fmt"
	"strings"

	"github.com/litetable/litetable-query/internal/litetable"
)

// filter narrows the events a subscriber receives. A subscriber sends one line to set it, e.g.
//
//	columns=Gender,Score prefix=user:
//
// and may send another at any time to replace it. An empty line clears it.
type filter struct {
	columns map[string]struct{}
	prefix  string
}

func parseFilter(line string) (filter, error) {
	var f filter
	for _, term := range strings.Fields(line) {
		key, value, ok := strings.Cut(term, "=")
		if !ok {
			return filter{}, fmt.Errorf("invalid filter term %q: expected key=value", term)
		}
		switch key {
		case "columns":
			f.columns = make(map[string]struct{})
			for _, c := range strings.Split(value, ",") {
				if c != "" {
					f.columns[c] = struct{}{}
				}
			}
			if len(f.columns) == 0 {
				return filter{}, fmt.Errorf("invalid filter term %q: no columns", term)
			}
		case "prefix":
			f.prefix = value
		default:
			return filter{}, fmt.Errorf("unknown filter key %q", key)
		}
	}
	return f, nil
}

// match reports whether p concerns the rows and columns f selects. Removing a whole row
// touches every column, so it matches any column filter.
func (f filter) match(p *CDCParams) bool {
	if !strings.HasPrefix(p.RowID, f.prefix) {
		return false
	}
	if len(f.columns) == 0 {
		return true
	}
	switch {
	case len(p.Fields) > 0:
		for c := range p.Fields {
			if _, ok := f.columns[c]; ok {
				return true
			}
		}
		return false
	case len(p.Columns) > 0:
		for _, c := range p.Columns {
			if _, ok := f.columns[c]; ok {
				return true
			}
		}
		return false
	}
	return p.Operation == litetable.OperationDelete
}
