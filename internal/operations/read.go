package operations

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/litetable/litetable-query/internal/coordinator"
	"github.com/litetable/litetable-query/internal/litetable"
)

type countResponse struct {
	Count int64 `json:"count"`
}

type setResponse struct {
	IDs []string `json:"ids"`
}

type rangeResponse struct {
	Column string `json:"column"`
	ByTime bool   `json:"byTime,omitempty"`
	Valid  bool   `json:"valid"`
	Min    string `json:"min,omitempty"`
	Max    string `json:"max,omitempty"`
}

// count answers COUNT <expr>.
func (m *Manager) count(ctx context.Context, query []byte) ([]byte, error) {
	res, err := m.coordinator.Query(ctx, coordinator.Query{
		Kind:  litetable.QueryCount,
		Where: string(query),
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(&countResponse{Count: res.Count})
}

// set answers SET <expr> with the matching row ids in ascending order.
func (m *Manager) set(ctx context.Context, query []byte) ([]byte, error) {
	res, err := m.coordinator.Query(ctx, coordinator.Query{
		Kind:  litetable.QueryIDSet,
		Where: string(query),
	})
	if err != nil {
		return nil, err
	}
	ids := append([]string{}, res.IDs...)
	sort.Strings(ids)
	return json.Marshal(&setResponse{IDs: ids})
}

// extent answers RANGE <column> [BY TIME] [WHERE <expr>].
func (m *Manager) extent(ctx context.Context, query []byte) ([]byte, error) {
	parsed, err := parseRangeQuery(string(query))
	if err != nil {
		return nil, err
	}
	res, err := m.coordinator.Query(ctx, coordinator.Query{
		Kind:   litetable.QueryExtent,
		Where:  parsed.where,
		Target: parsed.column,
		ByTime: parsed.byTime,
	})
	if err != nil {
		return nil, err
	}

	out := &rangeResponse{
		Column: parsed.column,
		ByTime: parsed.byTime,
		Valid:  res.Extent.Valid,
	}
	if res.Extent.Valid {
		out.Min = res.Extent.Min.Literal()
		out.Max = res.Extent.Max.Literal()
	}
	return json.Marshal(out)
}

// rangeQuery are the parameters of a RANGE command
type rangeQuery struct {
	column string
	byTime bool
	where  string
}

func parseRangeQuery(input string) (*rangeQuery, error) {
	column, rest, err := splitColumn(strings.TrimSpace(input))
	if err != nil {
		return nil, err
	}
	parsed := &rangeQuery{column: column}

	word, after := nextWord(rest)
	if strings.EqualFold(word, "BY") {
		unit, tail := nextWord(after)
		if !strings.EqualFold(unit, "TIME") {
			return nil, newError(errInvalidFormat, "expected TIME after BY, got %q", unit)
		}
		parsed.byTime = true
		word, after = nextWord(tail)
	}

	switch {
	case word == "":
	case strings.EqualFold(word, "WHERE"):
		parsed.where = strings.TrimSpace(after)
		if parsed.where == "" {
			return nil, newError(errInvalidFormat, "WHERE needs an expression")
		}
	default:
		return nil, newError(errUnknownParameter, "%q", word)
	}
	return parsed, nil
}

// splitColumn reads a column name, bare or in backticks, off the front of input.
func splitColumn(input string) (string, string, error) {
	if input == "" {
		return "", "", newError(errInvalidFormat, "missing column")
	}
	if input[0] != '`' {
		column, rest := nextWord(input)
		if strings.EqualFold(column, "WHERE") || strings.EqualFold(column, "BY") {
			return "", "", newError(errInvalidFormat, "missing column before %s", column)
		}
		return column, rest, nil
	}

	var b strings.Builder
	for i := 1; i < len(input); i++ {
		if input[i] != '`' {
			b.WriteByte(input[i])
			continue
		}
		// a doubled backtick is a literal one
		if i+1 < len(input) && input[i+1] == '`' {
			b.WriteByte('`')
			i++
			continue
		}
		if b.Len() == 0 {
			return "", "", newError(errInvalidFormat, "empty column name")
		}
		return b.String(), input[i+1:], nil
	}
	return "", "", newError(errInvalidFormat, "unterminated column name")
}

func nextWord(s string) (string, string) {
	s = strings.TrimLeft(s, " \t\r\n")
	if i := strings.IndexAny(s, " \t\r\n"); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}
