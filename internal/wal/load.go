package wal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/rs/zerolog/log"
)

// maxEntrySize bounds a single WAL line.
const maxEntrySize = 4 << 20

// Load reads every mutation in the WAL in the order it was applied. Malformed lines, such as a
// partial write at the end of the file, are skipped.
func (m *Manager) Load() ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			// No WAL file exists yet, not an error
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var entries []*Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEntrySize)
	for scanner.Scan() {
		entry := new(Entry)
		if err = json.Unmarshal(scanner.Bytes(), entry); err != nil {
			log.Warn().Err(err).Msg("skipping malformed WAL entry")
			continue
		}

		switch entry.Operation {
		case litetable.OperationWrite, litetable.OperationDelete:
			entries = append(entries, entry)
		default:
			log.Warn().Msgf("unknown WAL operation %d, skipping", entry.Operation)
		}
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read WAL: %w", err)
	}
	return entries, nil
}
