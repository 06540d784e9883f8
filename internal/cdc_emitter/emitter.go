package cdc_emitter

import (
	"bufio"
	"encoding/json"
	"net"
	"sort"
	"time"

	"github.com/litetable/litetable-query/internal/index"
	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/litetable/litetable-query/internal/metrics"
	"github.com/rs/zerolog/log"
)

// CDCParams describes one applied row mutation.
type CDCParams struct {
	Operation litetable.Operation
	RowID     string
	// Fields holds the written values of a WRITE.
	Fields map[string]litetable.Value
	// Columns holds the deleted columns of a DELETE. Empty deletes the whole row.
	Columns   []string
	Timestamp time.Time
}

// event is the line a subscriber receives for each mutation.
type event struct {
	Operation string            `json:"operation"`
	RowID     string            `json:"rowId"`
	Fields    map[string]string `json:"fields,omitempty"`
	Columns   []string          `json:"columns,omitempty"`
	Indexes   []string          `json:"indexes"`
	Timestamp int64             `json:"timestamp"`
}

func newEvent(p *CDCParams) *event {
	e := &event{
		Operation: p.Operation.String(),
		RowID:     p.RowID,
		Indexes:   touched(p),
		Timestamp: p.Timestamp.UnixNano(),
	}
	if len(p.Fields) > 0 {
		// literals keep the kind of each value readable on the other side
		e.Fields = make(map[string]string, len(p.Fields))
		for column, v := range p.Fields {
			e.Fields[column] = v.Literal()
		}
	}
	if len(p.Columns) > 0 {
		e.Columns = append([]string(nil), p.Columns...)
		sort.Strings(e.Columns)
	}
	return e
}

// touched lists the write-path index keys p adds the row to or may remove it from. A delete does
// not know the old values, so it names any_<column> and leaves value_ keys to the reader.
func touched(p *CDCParams) []string {
	var keys []string
	switch {
	case len(p.Fields) > 0:
		for column, v := range p.Fields {
			keys = append(keys, index.AnyKey(column), index.ValueKey(column, v))
			if c := v.Class(); c != litetable.ClassNone {
				keys = append(keys, index.ClassKey(column, c))
			}
		}
	case len(p.Columns) > 0:
		for _, column := range p.Columns {
			keys = append(keys, index.AnyKey(column))
		}
	case p.Operation == litetable.OperationDelete:
		keys = append(keys, index.AllKey)
	}
	sort.Strings(keys)
	return keys
}

// Emit queues a mutation for subscribers. It never blocks the write path: when the queue is full
// the event is dropped and counted.
func (m *Manager) Emit(params *CDCParams) {
	select {
	case m.events <- params:
		metrics.CDCEvents.WithLabelValues("queued").Inc()
	default:
		metrics.CDCEvents.WithLabelValues("dropped").Inc()
		log.Warn().Str("row", params.RowID).Msg("CDC queue full, event dropped")
	}
}

func (m *Manager) broadcast() {
	for {
		select {
		case <-m.procCtx.Done():
			return
		case p := <-m.events:
			m.raiseCDCEvent(p)
		}
	}
}

// raiseCDCEvent writes the event to every subscriber whose filter selects it.
func (m *Manager) raiseCDCEvent(params *CDCParams) {
	data, err := json.Marshal(newEvent(params))
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal CDC event")
		return
	}
	message := append(data, '\n')

	m.subsMux.Lock()
	defer m.subsMux.Unlock()

	for conn, f := range m.subs {
		if !f.match(params) {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(m.writeTimeout))
		if _, err = conn.Write(message); err != nil {
			log.Debug().Err(err).Msgf("CDC subscriber %s dropped", conn.RemoteAddr())
			metrics.CDCEvents.WithLabelValues("failed").Inc()
			_ = conn.Close()
			delete(m.subs, conn)
			continue
		}
		metrics.CDCEvents.WithLabelValues("sent").Inc()
	}
}

// handle registers conn with an empty filter and replaces the filter on every line it reads.
// A line that does not parse leaves the filter as it was.
func (m *Manager) handle(conn net.Conn) {
	m.subsMux.Lock()
	m.subs[conn] = filter{}
	m.subsMux.Unlock()
	log.Debug().Msgf("CDC subscriber connected: %s", conn.RemoteAddr())

	defer func() {
		m.subsMux.Lock()
		delete(m.subs, conn)
		m.subsMux.Unlock()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		f, err := parseFilter(scanner.Text())
		if err != nil {
			log.Debug().Err(err).Msgf("CDC subscriber %s sent a bad filter", conn.RemoteAddr())
			continue
		}
		m.subsMux.Lock()
		if _, ok := m.subs[conn]; ok {
			m.subs[conn] = f
		}
		m.subsMux.Unlock()
	}
	if err := scanner.Err(); err != nil {
		log.Debug().Err(err).Msgf("CDC subscriber %s dropped", conn.RemoteAddr())
		return
	}
	log.Debug().Msgf("CDC subscriber disconnected: %s", conn.RemoteAddr())
}
