package shard

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	snapshotDirName    = ".snapshots"
	snapshotFilePrefix = "shard"
)

var defaultShardCount = 2

// Manager owns the shards of a node and keeps a snapshot of each of them on disk.
type Manager struct {
	rootDir          string
	snapshotDir      string
	snapshotTimer    time.Duration
	maxSnapshotLimit int

	procCtx   context.Context
	ctxCancel context.CancelFunc
	wg        sync.WaitGroup

	restoreOnce sync.Once
	restoreErr  error

	shards []*Shard
}

type Config struct {
	RootDir string
	// SnapshotTimer is the number of seconds between two snapshots of a changed shard.
	SnapshotTimer    int
	MaxSnapshotLimit int
	ShardCount       int
	// OrderedColumns get an ordered any_<column> index from their first write.
	OrderedColumns []string
	AutoPromote    bool
	// PersistAfter is the number of evaluations of the same expression after which its derived
	// index is kept. Zero never keeps derived indexes.
	PersistAfter int
}

func (c *Config) validate() error {
	var errGrp []error
	if c.RootDir == "" {
		errGrp = append(errGrp, fmt.Errorf("data directory is required"))
	}

	// if the configured snapshot is less than 1, throw an error
	if c.SnapshotTimer < 1 {
		errGrp = append(errGrp, fmt.Errorf("snapshot timer must be greater than 0"))
	}

	if c.MaxSnapshotLimit < 1 || c.MaxSnapshotLimit > 50 {
		errGrp = append(errGrp, fmt.Errorf("max snapshot limit must be between 1 and 50"))
	}

	if c.ShardCount < 0 || c.ShardCount > 50 {
		errGrp = append(errGrp, fmt.Errorf("shard count must be between 1 and 50"))
	}

	if c.PersistAfter < 0 {
		errGrp = append(errGrp, fmt.Errorf("persist after cannot be negative"))
	}
	return errors.Join(errGrp...)
}

// New creates the shards of a node. Nothing is read from disk until Start.
func New(cfg *Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	snapDir := filepath.Join(cfg.RootDir, snapshotDirName)
	if err := os.MkdirAll(snapDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	count := cfg.ShardCount
	if count == 0 {
		count = defaultShardCount
	}

	shards := make([]*Shard, count)
	for i := range shards {
		s, err := newShard(&shardConfig{
			id:             i,
			orderedColumns: cfg.OrderedColumns,
			autoPromote:    cfg.AutoPromote,
			persistAfter:   cfg.PersistAfter,
		})
		if err != nil {
			return nil, err
		}
		shards[i] = s
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		rootDir:          cfg.RootDir,
		snapshotDir:      snapDir,
		snapshotTimer:    time.Duration(cfg.SnapshotTimer) * time.Second,
		maxSnapshotLimit: cfg.MaxSnapshotLimit,
		procCtx:          ctx,
		ctxCancel:        cancel,
		shards:           shards,
	}, nil
}

// Restore loads the latest snapshot of every shard. Only the first call reads from disk; later
// calls wait for it and return its result.
func (m *Manager) Restore() error {
	m.restoreOnce.Do(func() {
		start := time.Now()
		g := new(errgroup.Group)
		for _, s := range m.shards {
			g.Go(func() error {
				return m.loadLatest(s)
			})
		}
		if m.restoreErr = g.Wait(); m.restoreErr == nil {
			log.Debug().Str("duration", time.Since(start).String()).Msg("shards loaded from snapshots")
		}
	})
	return m.restoreErr
}

// Start restores every shard, then snapshots each changed shard on its own timer.
func (m *Manager) Start() error {
	if err := m.Restore(); err != nil {
		return err
	}

	for i, s := range m.shards {
		// there should always be some degree of randomness to the snapshot timer to prevent all
		// shards writing in the same timeframe.
		jitter := time.Duration(i*100+rand.IntN(500)) * time.Millisecond
		m.wg.Add(1)
		go m.snapshotLoop(s, m.snapshotTimer+jitter)
	}
	return nil
}

// Stop is a blocking operation that writes a final snapshot of every changed shard before
// allowing the process to shut down.
func (m *Manager) Stop() error {
	if m.ctxCancel != nil {
		m.ctxCancel()
	}
	m.wg.Wait()

	var errGrp []error
	for _, s := range m.shards {
		if err := m.snapshot(s); err != nil {
			errGrp = append(errGrp, err)
		}
	}
	return errors.Join(errGrp...)
}

func (m *Manager) Name() string {
	return "Shard Storage"
}

// Shards returns every shard of the node in routing order.
func (m *Manager) Shards() []*Shard {
	return m.shards
}

// Expire drops derived indexes older than ttl on every shard and returns how many were dropped.
func (m *Manager) Expire(ttl time.Duration) int {
	n := 0
	for _, s := range m.shards {
		n += s.Expire(ttl)
	}
	return n
}

func (m *Manager) snapshotLoop(s *Shard, every time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.procCtx.Done():
			return
		case <-ticker.C:
			if err := m.snapshot(s); err != nil {
				log.Error().Err(err).Msgf("failed to snapshot shard %d", s.ID())
			}
		}
	}
}

func (m *Manager) snapshotGlob(s *Shard) string {
	return filepath.Join(m.snapshotDir, fmt.Sprintf("%s-%03d-*.db", snapshotFilePrefix, s.ID()))
}

// snapshot writes a new snapshot of a changed shard and prunes the oldest ones.
func (m *Manager) snapshot(s *Shard) error {
	if !s.Changed() {
		return nil
	}
	start := time.Now()
	filename := filepath.Join(m.snapshotDir,
		fmt.Sprintf("%s-%03d-%d.db", snapshotFilePrefix, s.ID(), start.UnixNano()))

	// write next to the target and rename so a crash never leaves a truncated latest snapshot
	tmp, err := os.CreateTemp(m.snapshotDir, ".shard-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	if err = s.Save(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot of shard %d: %w", s.ID(), err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}
	if err = os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	log.Debug().Str("duration", time.Since(start).String()).Msgf("snapshot saved to %s", filename)
	m.maintainSnapshotLimit(s)
	return nil
}

// loadLatest restores a shard from its newest snapshot, if it has one.
func (m *Manager) loadLatest(s *Shard) error {
	files, err := filepath.Glob(m.snapshotGlob(s))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.Debug().Msgf("no snapshots found for shard %d, nothing to load", s.ID())
		return nil
	}
	sort.Strings(files)
	latest := files[len(files)-1]

	f, err := os.Open(latest)
	if err != nil {
		return fmt.Errorf("failed to read snapshot %s: %w", latest, err)
	}
	defer f.Close()

	if err = s.Load(f); err != nil {
		return fmt.Errorf("failed to load snapshot %s: %w", latest, err)
	}
	log.Info().Msgf("shard %d loaded %d rows from %s", s.ID(), s.Rows(), latest)
	return nil
}

// maintainSnapshotLimit prunes the oldest snapshots of a shard beyond the configured limit.
func (m *Manager) maintainSnapshotLimit(s *Shard) {
	files, err := filepath.Glob(m.snapshotGlob(s))
	if err != nil {
		log.Error().Err(err).Msg("failed to list snapshot files")
		return
	}
	if len(files) <= m.maxSnapshotLimit {
		return
	}

	// file names carry a fixed-width nanosecond timestamp, so lexicographic order is chronological
	sort.Strings(files)
	for _, file := range files[:len(files)-m.maxSnapshotLimit] {
		if err = os.Remove(file); err != nil {
			log.Error().Err(err).Msgf("failed to remove old snapshot %s", file)
			continue
		}
		log.Debug().Msgf("pruned old snapshot: %s", file)
	}
}
