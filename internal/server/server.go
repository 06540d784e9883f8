package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog/log"
)

//go:generate mockgen -destination=server_mock.go -package=server -source=server.go

const (
	serverName            = "Litetable Server"
	defaultMaxConnections = 100
)

type handler interface {
	Handle(conn net.Conn)
}

// Server accepts command connections and hands each one to the handler.
type Server struct {
	listener net.Listener
	handler  handler

	// configuration for handling connections
	maxConnections int
	connSemaphore  chan struct{}
	activeConns    sync.WaitGroup
	enableTLS      bool
}

type Config struct {
	Address string
	// Port may be 0 to listen on a free port, see Addr.
	Port    int
	Handler handler
	// MaxConnections bounds the connections handled at once. Extra connections are closed.
	MaxConnections int
	EnableTLS      bool
	// Certificate is required when EnableTLS is set.
	Certificate *tls.Certificate
}

func (c *Config) validate() error {
	var errGrp []error

	if c.EnableTLS && c.Certificate == nil {
		errGrp = append(errGrp, errors.New("certificate is required"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errGrp = append(errGrp, errors.New("port must be between 0 and 65535"))
	}
	if c.Handler == nil {
		errGrp = append(errGrp, errors.New("handler is required"))
	}

	return errors.Join(errGrp...)
}

// New returns a new Litetable server, which provides a way to start and listen to
// incoming LT commands.
func New(cfg *Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	address := fmt.Sprintf("%s:%d", cfg.Address, cfg.Port)
	var listener net.Listener
	var err error
	if cfg.EnableTLS {
		tlsConfig := &tls.Config{
			Certificates: []tls.Certificate{*cfg.Certificate},
			MinVersion:   tls.VersionTLS12,
		}
		listener, err = tls.Listen("tcp", address, tlsConfig)
	} else {
		listener, err = net.Listen("tcp", address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = defaultMaxConnections
	}

	return &Server{
		listener:       listener,
		handler:        cfg.Handler,
		maxConnections: maxConns,
		connSemaphore:  make(chan struct{}, maxConns), // Initialize the channel
		enableTLS:      cfg.EnableTLS,
		activeConns:    sync.WaitGroup{},
	}, nil
}

// Addr is the address the server accepts connections on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start accepts connections until Stop is called.
func (s *Server) Start() error {
	log.Info().Bool("tls", s.enableTLS).Msgf("%s listening at %s", serverName, s.Addr())
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		remoteAddr := conn.RemoteAddr().String()

		// Try to acquire a connection slot
		select {
		case s.connSemaphore <- struct{}{}: // Connection slot acquired
			s.activeConns.Add(1)
			go func() {
				defer func() {
					<-s.connSemaphore // Release the connection slot
					s.activeConns.Done()
				}()

				log.Debug().Msgf("handling connection from: %s", remoteAddr)
				s.handler.Handle(conn)
			}()
		default:
			// Max connections reached, reject the connection
			_ = conn.Close()
			log.Warn().Msgf("rejected connection from %s: max connections reached", remoteAddr)
		}
	}
}

// Stop will stop the server from accepting new connections.
func (s *Server) Stop() error {
	err := s.listener.Close()
	s.activeConns.Wait() // Wait for all active connections to finish
	return err
}

// Name returns the name of the server.
func (s *Server) Name() string {
	return serverName
}
