package operations

import (
	"bytes"
	"context"
	"time"

	"github.com/litetable/litetable-query/internal/cdc_emitter"
	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/litetable/litetable-query/internal/wal"
	"github.com/rs/zerolog/log"
)

// Run accepts a buffer, decodes it into an operation and its payload and returns the JSON
// response of the operation.
func (m *Manager) Run(ctx context.Context, buf []byte) ([]byte, error) {
	msgType, queryBytes := litetable.Decode(buf)
	if msgType == litetable.OperationUnknown {
		return nil, newError(errUnknownOperation, "%q", firstWord(buf))
	}

	queryBytes = bytes.TrimSpace(queryBytes)
	// if query bytes are empty, return an error
	if len(queryBytes) == 0 {
		return nil, newError(errEmptyQuery, "%s needs a query", msgType)
	}

	switch msgType {
	case litetable.OperationCount:
		return m.count(ctx, queryBytes)
	case litetable.OperationSet:
		return m.set(ctx, queryBytes)
	case litetable.OperationRange:
		return m.extent(ctx, queryBytes)
	default:
		return m.mutate(ctx, msgType, queryBytes, time.Now(), true)
	}
}

// Replay applies mutations read back from the WAL in order, keeping their original write times.
// Entries that no longer apply are logged and skipped. It returns the number applied.
func (m *Manager) Replay(ctx context.Context, entries []*wal.Entry) (int, error) {
	applied := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		if _, err := m.mutate(ctx, e.Operation, e.Query, e.Timestamp, false); err != nil {
			log.Warn().Err(err).Msgf("skipping WAL entry %s %s", e.Operation, e.Query)
			continue
		}
		applied++
	}
	return applied, nil
}

// mutate applies a WRITE or DELETE. Live commands are logged to the WAL before they reach a
// shard and announced to CDC subscribers once applied.
func (m *Manager) mutate(ctx context.Context, op litetable.Operation, payload []byte, at time.Time, live bool) ([]byte, error) {
	var (
		params *cdc_emitter.CDCParams
		apply  func() ([]byte, error)
	)

	switch op {
	case litetable.OperationWrite:
		parsed, err := parseWriteQuery(string(payload))
		if err != nil {
			return nil, err
		}
		params = &cdc_emitter.CDCParams{Operation: op, RowID: parsed.rowID, Fields: parsed.fields, Timestamp: at}
		apply = func() ([]byte, error) { return m.write(ctx, parsed, at) }
	case litetable.OperationDelete:
		parsed, err := parseDeleteQuery(string(payload))
		if err != nil {
			return nil, err
		}
		params = &cdc_emitter.CDCParams{Operation: op, RowID: parsed.rowID, Columns: parsed.columns, Timestamp: at}
		apply = func() ([]byte, error) { return m.delete(ctx, parsed) }
	default:
		return nil, newError(errUnknownOperation, "%s is not a mutation", op)
	}

	if live {
		newEntry := &wal.Entry{
			Operation: op,
			Query:     payload,
			Timestamp: at,
		}
		if err := m.writeAhead.Apply(newEntry); err != nil {
			log.Error().Err(err).Msg("failed to apply WAL entry")
			return nil, err
		}
	}

	response, err := apply()
	if err != nil {
		return nil, err
	}
	if live {
		m.cdc.Emit(params)
	}
	return response, nil
}

func firstWord(buf []byte) string {
	fields := bytes.Fields(buf)
	if len(fields) == 0 {
		return ""
	}
	return string(fields[0])
}
