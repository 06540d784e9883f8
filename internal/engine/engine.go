package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/litetable/litetable-query/internal/wal"
	"github.com/rs/zerolog/log"
)

//go:generate mockgen -destination=engine_mock.go -package=engine -source=engine.go
//go:generate mockgen -destination=conn_mock.go -package=engine net Conn

const defaultMaxBufferSize = 64 << 10

type ops interface {
	Run(ctx context.Context, buf []byte) ([]byte, error)
	Replay(ctx context.Context, entries []*wal.Entry) (int, error)
}

type writeAheadLog interface {
	Load() ([]*wal.Entry, error)
}

type storage interface {
	Restore() error
}

// Engine is the main struct that provides the interface to the LiteTable server. Commands are
// held until the shards are restored from their snapshots and the WAL.
type Engine struct {
	maxBufferSize int
	operations    ops
	wal           writeAheadLog
	storage       storage

	ready     chan struct{}
	readyOnce sync.Once
}

type Config struct {
	OperationManager ops
	WAL              writeAheadLog
	Storage          storage
	// MaxBufferSize is the largest command accepted, in bytes.
	MaxBufferSize int
}

func (c *Config) validate() error {
	var errGrp []error
	if c.OperationManager == nil {
		errGrp = append(errGrp, fmt.Errorf("operation manager is required"))
	}
	if c.WAL == nil {
		errGrp = append(errGrp, fmt.Errorf("WAL is required"))
	}
	if c.Storage == nil {
		errGrp = append(errGrp, fmt.Errorf("storage is required"))
	}
	if c.MaxBufferSize < 0 {
		errGrp = append(errGrp, fmt.Errorf("max buffer size cannot be negative"))
	}

	return errors.Join(errGrp...)
}

func New(cfg *Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	size := cfg.MaxBufferSize
	if size == 0 {
		size = defaultMaxBufferSize
	}
	return &Engine{
		maxBufferSize: size,
		operations:    cfg.OperationManager,
		wal:           cfg.WAL,
		storage:       cfg.Storage,
		ready:         make(chan struct{}),
	}, nil
}

// Start restores the shards from their snapshots and replays the WAL over them.
func (e *Engine) Start() error {
	start := time.Now()
	if err := e.storage.Restore(); err != nil {
		return fmt.Errorf("failed to restore shards: %w", err)
	}

	entries, err := e.wal.Load()
	if err != nil {
		return fmt.Errorf("failed to load WAL: %w", err)
	}
	applied, err := e.operations.Replay(context.Background(), entries)
	if err != nil {
		return fmt.Errorf("failed to replay WAL: %w", err)
	}
	log.Info().Str("duration", time.Since(start).String()).
		Msgf("replayed %d of %d WAL entries", applied, len(entries))

	e.readyOnce.Do(func() { close(e.ready) })
	return nil
}

func (e *Engine) Stop() error {
	return nil
}

func (e *Engine) Name() string {
	return "LiteTable Engine"
}
