package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/litetable/litetable-query/internal/coordinator"
	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/litetable/litetable-query/internal/query"
	"github.com/rs/zerolog/log"
	grpc2 "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var _ coordinator.ShardClient = (*Client)(nil)

// Client reaches the shards of a remote node. It implements app.Dependency so the connection is
// opened and closed with the rest of the process.
type Client struct {
	target string
	conn   *grpc2.ClientConn
}

type ClientConfig struct {
	// Target is the host:port of a remote gRPC server.
	Target string
}

func (c *ClientConfig) validate() error {
	var errGrp []error
	if c.Target == "" {
		errGrp = append(errGrp, fmt.Errorf("target required"))
	}
	return errors.Join(errGrp...)
}

// NewClient creates a client for one remote node. No connection is made until Start or the first
// call.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	conn, err := grpc2.NewClient(cfg.Target,
		grpc2.WithTransportCredentials(insecure.NewCredentials()),
		grpc2.WithDefaultCallOptions(
			grpc2.CallContentSubtype(codecName),
			grpc2.UseCompressor(compressorName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", cfg.Target, err)
	}

	return &Client{
		target: cfg.Target,
		conn:   conn,
	}, nil
}

func (c *Client) Evaluate(ctx context.Context, req query.Request) (litetable.PartialResult, error) {
	msg := &EvaluateRequest{
		Kind:    req.Kind,
		Target:  req.Target,
		ByTime:  req.ByTime,
		QueryID: req.QueryID,
	}
	if req.Expr != nil {
		msg.Where = req.Expr.String()
	}

	out := new(EvaluateResponse)
	if err := c.conn.Invoke(ctx, evaluateMethod, msg, out); err != nil {
		return litetable.PartialResult{}, fromStatus(err)
	}
	return out.Result, nil
}

func (c *Client) Write(ctx context.Context, id string, fields map[string]litetable.Value, at time.Time) error {
	msg := &WriteRequest{
		ID:     id,
		Fields: fields,
		At:     at,
	}
	if err := c.conn.Invoke(ctx, writeMethod, msg, new(WriteResponse)); err != nil {
		return fromStatus(err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, id string, columns []string) (int, error) {
	msg := &DeleteRequest{
		ID:      id,
		Columns: columns,
	}
	out := new(DeleteResponse)
	if err := c.conn.Invoke(ctx, deleteMethod, msg, out); err != nil {
		return 0, fromStatus(err)
	}
	return out.Deleted, nil
}

func (c *Client) Start() error {
	log.Info().Msgf("connecting to shard node %s", c.target)
	c.conn.Connect()
	return nil
}

func (c *Client) Stop() error {
	return c.conn.Close()
}

func (c *Client) Name() string {
	return "gRPC Client " + c.target
}
