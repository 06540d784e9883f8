// Package cdc_emitter streams applied row mutations to TCP subscribers as JSON lines. Each line
// names the index keys the mutation touched, so a subscriber can tell which cached query results
// went stale without re-reading the row.
package cdc_emitter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultBuffer       = 4096
	defaultWriteTimeout = 100 * time.Millisecond
)

type Config struct {
	// Port 0 picks a free port, see Addr.
	Port    int
	Address string
	// Buffer is the number of events held for the broadcaster before Emit starts dropping.
	Buffer int
	// WriteTimeout bounds a write to one subscriber. A subscriber that misses it is dropped.
	WriteTimeout time.Duration
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Port < 0 || c.Port > 65535 {
		errGrp = append(errGrp, fmt.Errorf("invalid port: %d", c.Port))
	}
	if c.Address == "" {
		errGrp = append(errGrp, fmt.Errorf("invalid address: %s", c.Address))
	}
	if c.Buffer < 0 {
		errGrp = append(errGrp, fmt.Errorf("invalid buffer: %d", c.Buffer))
	}
	if c.WriteTimeout < 0 {
		errGrp = append(errGrp, fmt.Errorf("invalid write timeout: %s", c.WriteTimeout))
	}
	return errors.Join(errGrp...)
}

type Manager struct {
	listener     net.Listener
	writeTimeout time.Duration

	events     chan *CDCParams
	procCtx    context.Context
	procCancel context.CancelFunc

	subsMux sync.Mutex
	subs    map[net.Conn]filter
}

func New(cfg *Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	buffer := cfg.Buffer
	if buffer == 0 {
		buffer = defaultBuffer
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = defaultWriteTimeout
	}

	addrString := fmt.Sprintf("%s:%d", cfg.Address, cfg.Port)
	listener, err := net.Listen("tcp", addrString)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addrString, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		listener:     listener,
		writeTimeout: writeTimeout,
		events:       make(chan *CDCParams, buffer),
		procCtx:      ctx,
		procCancel:   cancel,
		subs:         make(map[net.Conn]filter),
	}, nil
}

// Addr is the address subscribers connect to.
func (m *Manager) Addr() string {
	return m.listener.Addr().String()
}

func (m *Manager) Start() error {
	log.Info().Msgf("CDC emitter listening at %s", m.Addr())

	go m.broadcast()
	go func() {
		for {
			conn, err := m.listener.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				log.Error().Err(err).Msg("CDC emitter failed to accept connection")
				continue
			}
			go m.handle(conn)
		}
	}()

	return nil
}

func (m *Manager) Stop() error {
	if m.procCancel != nil {
		m.procCancel()
	}
	if m.listener != nil {
		if err := m.listener.Close(); err != nil {
			return fmt.Errorf("failed to close listener: %w", err)
		}
	}

	m.subsMux.Lock()
	defer m.subsMux.Unlock()
	for conn := range m.subs {
		_ = conn.Close()
		delete(m.subs, conn)
	}
	return nil
}

func (m *Manager) Name() string {
	return "CDC Emitter"
}

// Subscribers is the number of connected subscribers.
func (m *Manager) Subscribers() int {
	m.subsMux.Lock()
	defer m.subsMux.Unlock()
	return len(m.subs)
}
