package operations

import (
	"context"
	"errors"
	"time"

	"github.com/litetable/litetable-query/internal/cdc_emitter"
	"github.com/litetable/litetable-query/internal/coordinator"
	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/litetable/litetable-query/internal/wal"
)

//go:generate mockgen -destination=manager_mock.go -package=operations -source=manager.go

type writeAhead interface {
	Apply(e *wal.Entry) error
}

type cdc interface {
	Emit(params *cdc_emitter.CDCParams)
}

// queryCoordinator answers queries over every shard and routes row mutations.
type queryCoordinator interface {
	Query(ctx context.Context, q coordinator.Query) (litetable.PartialResult, error)
	Write(ctx context.Context, id string, fields map[string]litetable.Value, at time.Time) error
	Delete(ctx context.Context, id string, columns []string) (int, error)
}

// Manager runs the commands of the text command surface.
type Manager struct {
	writeAhead  writeAhead
	coordinator queryCoordinator
	cdc         cdc
}

type Config struct {
	WAL         writeAhead
	Coordinator queryCoordinator
	CDC         cdc
}

func (c *Config) validate() error {
	var errGrp []error
	if c.WAL == nil {
		errGrp = append(errGrp, errors.New("WAL cannot be nil"))
	}
	if c.Coordinator == nil {
		errGrp = append(errGrp, errors.New("coordinator cannot be nil"))
	}
	if c.CDC == nil {
		errGrp = append(errGrp, errors.New("CDC emitter cannot be nil"))
	}
	return errors.Join(errGrp...)
}

// New creates a new operations manager
func New(cfg *Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Manager{
		writeAhead:  cfg.WAL,
		coordinator: cfg.Coordinator,
		cdc:         cfg.CDC,
	}, nil
}
