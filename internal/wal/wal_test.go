package wal

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	t.Run("Invalid config", func(t *testing.T) {
		t.Parallel()
		cfg := &Config{}

		got, err := New(cfg)
		require.EqualError(t, err, "home directory cannot be empty")
		require.Nil(t, got)
	})

	t.Run("Valid config", func(t *testing.T) {
		t.Parallel()
		cfg := &Config{
			Path: t.TempDir(),
		}
		got, err := New(cfg)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, "Write Ahead Log", got.Name())
		require.NoError(t, got.Stop())
	})
}

func TestManager_Apply(t *testing.T) {
	t.Parallel()
	m, err := New(&Config{Path: t.TempDir()})
	require.NoError(t, err)
	defer func() { require.NoError(t, m.Stop()) }()

	entry := &Entry{
		Operation: litetable.OperationWrite,
		Query:     []byte("alice Gender=Female"),
		Timestamp: time.Now(),
	}
	require.NoError(t, m.Apply(entry))

	fileContent, err := os.ReadFile(m.path)
	require.NoError(t, err)
	require.Greater(t, len(fileContent), 0, "WAL file should not be empty")

	var entryRead Entry
	require.NoError(t, json.Unmarshal(fileContent, &entryRead))
	require.Equal(t, entry.Operation, entryRead.Operation)
	require.Equal(t, entry.Query, entryRead.Query)
	require.True(t, entry.Timestamp.Equal(entryRead.Timestamp))
}

func TestManager_Load(t *testing.T) {
	t.Parallel()
	req := require.New(t)
	dir := t.TempDir()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	m, err := New(&Config{Path: dir})
	req.NoError(err)

	entries, err := m.Load()
	req.NoError(err)
	req.Empty(entries)

	req.NoError(m.Apply(&Entry{Operation: litetable.OperationWrite, Query: []byte("alice Gender=Female"), Timestamp: at}))
	req.NoError(m.Apply(&Entry{Operation: litetable.OperationCount, Query: []byte("Gender = Female"), Timestamp: at}))
	req.NoError(m.Apply(&Entry{Operation: litetable.OperationDelete, Query: []byte("alice Gender"), Timestamp: at}))
	req.NoError(m.Stop())

	// a torn last line is skipped
	f, err := os.OpenFile(m.path, os.O_APPEND|os.O_WRONLY, 0640)
	req.NoError(err)
	_, err = f.WriteString(`{"operation":4,"query":`)
	req.NoError(err)
	req.NoError(f.Close())

	reopened, err := New(&Config{Path: dir})
	req.NoError(err)
	defer func() { req.NoError(reopened.Stop()) }()

	entries, err = reopened.Load()
	req.NoError(err)
	req.Len(entries, 2)
	req.Equal(litetable.OperationWrite, entries[0].Operation)
	req.Equal("alice Gender=Female", string(entries[0].Query))
	req.Equal(litetable.OperationDelete, entries[1].Operation)
	req.True(at.Equal(entries[1].Timestamp))
}
