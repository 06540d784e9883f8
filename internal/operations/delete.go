package operations

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
)

type deleteResponse struct {
	ID      string `json:"id"`
	Deleted int    `json:"deleted"`
}

// delete removes columns of a row, or the whole row when no column is named.
func (m *Manager) delete(ctx context.Context, parsed *deleteQuery) ([]byte, error) {
	n, err := m.coordinator.Delete(ctx, parsed.rowID, parsed.columns)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&deleteResponse{ID: parsed.rowID, Deleted: n})
}

type deleteQuery struct {
	rowID   string
	columns []string
}

// parseDeleteQuery parses `<row-id> [<column> ...]`.
func parseDeleteQuery(input string) (*deleteQuery, error) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil, errMissingKey
	}

	parsed := &deleteQuery{}
	for i, part := range parts {
		decoded, err := url.PathUnescape(part)
		if err != nil {
			return nil, newError(errInvalidFormat, "failed to decode %q: %s", part, err)
		}
		if i == 0 {
			parsed.rowID = decoded
			continue
		}
		parsed.columns = append(parsed.columns, decoded)
	}
	return parsed, nil
}
