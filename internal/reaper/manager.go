package reaper

import (
	"context"
	"errors"
	"sync"
	"time"
)

//go:generate mockgen -destination=reaper_mock.go -package=reaper -source=manager.go

type storage interface {
	// Expire drops derived indexes older than ttl and returns how many were dropped.
	Expire(ttl time.Duration) int
}

// Reaper expires the derived indexes the shards kept for frequently repeated expressions.
type Reaper struct {
	storage storage
	ttl     time.Duration

	mutex        sync.Mutex
	reapInterval time.Duration

	procCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Config struct {
	Storage storage
	// GCInterval is the number of seconds between two sweeps.
	GCInterval int
	// DerivedTTL is the number of seconds a derived index lives after it was last built.
	DerivedTTL int
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Storage == nil {
		errGrp = append(errGrp, errors.New("storage cannot be nil"))
	}
	if c.GCInterval <= 0 {
		errGrp = append(errGrp, errors.New("GCInterval must be greater than 0"))
	}
	if c.DerivedTTL <= 0 {
		errGrp = append(errGrp, errors.New("DerivedTTL must be greater than 0"))
	}
	return errors.Join(errGrp...)
}

// New creates a new Reaper.
func New(cfg *Config) (*Reaper, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// create a cancel context to ensure all garbage collection processes are shut down gracefully
	ctx, cancel := context.WithCancel(context.Background())

	return &Reaper{
		storage:      cfg.Storage,
		ttl:          time.Duration(cfg.DerivedTTL) * time.Second,
		reapInterval: time.Duration(cfg.GCInterval) * time.Second,
		mutex:        sync.Mutex{},
		procCtx:      ctx,
		cancel:       cancel,
	}, nil
}

func (r *Reaper) Start() error {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.reapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.procCtx.Done():
				return
			case <-ticker.C:
				r.garbageCollector()
			}
		}
	}()
	return nil
}

func (r *Reaper) Stop() error {
	// kill the process context
	if r.cancel != nil {
		r.cancel()
	}

	// Wait for the reaper to finish
	r.wg.Wait()
	return nil
}

func (r *Reaper) Name() string {
	return "Reaper"
}
