package grpc

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/litetable/litetable-query/internal/coordinator"
	"github.com/rs/zerolog/log"
	grpc2 "google.golang.org/grpc"
)

//go:generate mockgen -destination=grpc_mock.go -package=grpc -source=grpc.go

type grpcServer interface {
	Serve(lis net.Listener) error
	GracefulStop()
}

// Server implements the app.Dependency interface for a gRPC server exposing the local shards of
// a node to remote coordinators.
type Server struct {
	address  string
	server   grpcServer
	port     int
	listener net.Listener
}

type Config struct {
	Address string
	// Port may be 0 to listen on a free port, see Addr.
	Port int
	// Shard answers every request; usually a coordinator over the local shards.
	Shard coordinator.ShardClient
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Address == "" {
		errGrp = append(errGrp, fmt.Errorf("address required"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errGrp = append(errGrp, fmt.Errorf("port must be between 0 and 65535"))
	}
	if c.Shard == nil {
		errGrp = append(errGrp, fmt.Errorf("shard required"))
	}

	return errors.Join(errGrp...)
}

// NewServer creates a new gRPC server instance
func NewServer(cfg *Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	srv := grpc2.NewServer()
	srv.RegisterService(&shardServiceDesc, &shardService{backend: cfg.Shard})

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Address, cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to create listener on port %d: %w", cfg.Port, err)
	}

	return &Server{
		address:  cfg.Address,
		server:   srv,
		port:     cfg.Port,
		listener: lis,
	}, nil
}

// Addr is the address the server accepts connections on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Start() error {
	log.Info().Msgf("gRPC server listening at %s", s.Addr())

	errCh := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		if err := s.server.Serve(s.listener); err != nil {
			errCh <- err
			log.Error().Err(err).Msg("gRPC server failed")
			return
		}
		errCh <- nil
	}()

	// Block briefly for error or nil return
	select {
	case err := <-errCh:
		return err
	case <-time.After(500 * time.Millisecond):
		// Assume server started successfully
		return nil
	}
}

func (s *Server) Stop() error {
	log.Info().Msg("Stopping gRPC server")
	s.server.GracefulStop()
	return nil
}

func (s *Server) Name() string {
	return "gRPC Server"
}
