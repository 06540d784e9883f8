package operations

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/litetable/litetable-query/internal/litetable"
)

type writeResponse struct {
	ID        string            `json:"id"`
	Fields    map[string]string `json:"fields"`
	Timestamp time.Time         `json:"timestamp"`
}

// write stores every column of a WRITE with the same write time.
func (m *Manager) write(ctx context.Context, parsed *writeQuery, at time.Time) ([]byte, error) {
	if err := m.coordinator.Write(ctx, parsed.rowID, parsed.fields, at); err != nil {
		return nil, err
	}

	result := &writeResponse{
		ID:        parsed.rowID,
		Fields:    make(map[string]string, len(parsed.fields)),
		Timestamp: at,
	}
	for column, v := range parsed.fields {
		result.Fields[column] = v.Literal()
	}
	return json.Marshal(result)
}

type writeQuery struct {
	rowID  string
	fields map[string]litetable.Value
}

// parseWriteQuery parses `<row-id> <column>=<literal> ...`. Row ids, columns and literals are
// URL-encoded when they contain spaces. A literal in double quotes is always a string; any other
// literal is read as an integer, float or date when it looks like one.
func parseWriteQuery(input string) (*writeQuery, error) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil, errMissingKey
	}

	rowID, err := url.PathUnescape(parts[0])
	if err != nil {
		return nil, newError(errInvalidFormat, "failed to decode row id: %s", err)
	}
	if strings.Contains(parts[0], "=") {
		return nil, newError(errMissingKey, "%q is an assignment", parts[0])
	}

	parsed := &writeQuery{
		rowID:  rowID,
		fields: make(map[string]litetable.Value, len(parts)-1),
	}
	for _, part := range parts[1:] {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, newError(errInvalidFormat, "%s", part)
		}

		column, err := url.PathUnescape(kv[0])
		if err != nil {
			return nil, newError(errInvalidFormat, "failed to decode column: %s", err)
		}
		text, err := url.PathUnescape(kv[1])
		if err != nil {
			return nil, newError(errInvalidFormat, "failed to decode value: %s", err)
		}
		v, err := parseLiteral(text)
		if err != nil {
			return nil, newError(errInvalidFormat, "column %s: %s", column, err)
		}
		parsed.fields[column] = v
	}

	if len(parsed.fields) == 0 {
		return nil, newError(errInvalidFormat, "missing column")
	}
	return parsed, nil
}

func parseLiteral(text string) (litetable.Value, error) {
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		s, err := strconv.Unquote(text)
		if err != nil {
			return litetable.Value{}, err
		}
		return litetable.String(s), nil
	}
	return litetable.ParseValue(text), nil
}
