// Package coordinator fans a query out to every shard and combines their partial results into the
// final answer. It also routes row writes to the shard that owns the row.
//
// A query fails as a whole when any shard fails or does not answer within the query timeout: the
// reducers need every partial, so a subset is never returned.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/litetable/litetable-query/internal/aggregate"
	"github.com/litetable/litetable-query/internal/expr"
	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/litetable/litetable-query/internal/metrics"
	"github.com/litetable/litetable-query/internal/query"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -destination=coordinator_mock.go -package=coordinator -source=coordinator.go

// ErrShardUnavailable fails a query when one of its shards errored or timed out.
var ErrShardUnavailable = errors.New("shard unavailable")

// ShardClient is one partition of the dataset, local or remote.
type ShardClient interface {
	Evaluate(ctx context.Context, req query.Request) (litetable.PartialResult, error)
	Write(ctx context.Context, id string, fields map[string]litetable.Value, at time.Time) error
	Delete(ctx context.Context, id string, columns []string) (int, error)
}

var _ ShardClient = (*Coordinator)(nil)

type Coordinator struct {
	shards  []ShardClient
	timeout time.Duration
}

type Config struct {
	Shards []ShardClient
	// QueryTimeout bounds the wait for every shard of one query. Zero waits for the caller's
	// context only.
	QueryTimeout time.Duration
}

func (c *Config) validate() error {
	var errGrp []error
	if len(c.Shards) == 0 {
		errGrp = append(errGrp, errors.New("at least one shard is required"))
	}
	for i, s := range c.Shards {
		if s == nil {
			errGrp = append(errGrp, fmt.Errorf("shard %d is nil", i))
		}
	}
	if c.QueryTimeout < 0 {
		errGrp = append(errGrp, errors.New("query timeout cannot be negative"))
	}
	return errors.Join(errGrp...)
}

func New(cfg *Config) (*Coordinator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		shards:  cfg.Shards,
		timeout: cfg.QueryTimeout,
	}, nil
}

// Query is a query as a client states it.
type Query struct {
	Kind litetable.QueryKind
	// Where is the filter expression text. Empty selects every row.
	Where  string
	Target string
	ByTime bool
}

// Query parses the filter and answers the query over every shard. Malformed text fails with a
// *expr.SyntaxError before any shard is contacted.
func (c *Coordinator) Query(ctx context.Context, q Query) (litetable.PartialResult, error) {
	start := time.Now()
	req := query.Request{Kind: q.Kind, Target: q.Target, ByTime: q.ByTime}
	if strings.TrimSpace(q.Where) != "" {
		e, err := expr.Parse(q.Where)
		if err != nil {
			metrics.QueriesTotal.WithLabelValues(q.Kind.String(), status(err)).Inc()
			return litetable.PartialResult{}, err
		}
		req.Expr = e
	}

	res, err := c.Evaluate(ctx, req)
	metrics.QueriesTotal.WithLabelValues(q.Kind.String(), status(err)).Inc()
	metrics.QueryDuration.WithLabelValues(q.Kind.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		return litetable.PartialResult{}, err
	}
	log.Debug().Str("duration", time.Since(start).String()).Msgf("%s query over %d shards", q.Kind, len(c.shards))
	return res, nil
}

// Evaluate fans a parsed query out to every shard concurrently and combines the answers. It
// satisfies ShardClient so a coordinator can itself be served as one shard of a larger cluster.
func (c *Coordinator) Evaluate(ctx context.Context, req query.Request) (litetable.PartialResult, error) {
	if err := req.Validate(); err != nil {
		return litetable.PartialResult{}, err
	}
	if req.QueryID == "" {
		req.QueryID = uuid.NewString()
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	partials := make([]litetable.PartialResult, len(c.shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range c.shards {
		g.Go(func() error {
			p, err := s.Evaluate(gctx, req)
			if err != nil {
				return shardError(i, err)
			}
			partials[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return litetable.PartialResult{}, err
	}
	// a shard that ignored the deadline still answered too late
	if err := ctx.Err(); err != nil {
		return litetable.PartialResult{}, fmt.Errorf("%w: %w", ErrShardUnavailable, err)
	}
	return aggregate.Combine(req.Kind, partials...)
}

// Write routes a row write to the shard that owns the row.
func (c *Coordinator) Write(ctx context.Context, id string, fields map[string]litetable.Value, at time.Time) error {
	i := c.shardIndex(id)
	if err := c.shards[i].Write(ctx, id, fields, at); err != nil {
		return fmt.Errorf("shard %d: %w", i, err)
	}
	return nil
}

// Delete routes a row delete to the shard that owns the row.
func (c *Coordinator) Delete(ctx context.Context, id string, columns []string) (int, error) {
	i := c.shardIndex(id)
	n, err := c.shards[i].Delete(ctx, id, columns)
	if err != nil {
		return n, fmt.Errorf("shard %d: %w", i, err)
	}
	return n, nil
}

// shardIndex determines which shard a particular row key belongs to.
func (c *Coordinator) shardIndex(rowKey string) int {
	if len(c.shards) <= 1 {
		return 0
	}

	// Use FNV-1a hash algorithm for distributing keys
	h := fnv.New32a()
	_, _ = h.Write([]byte(rowKey))
	return int(h.Sum32() % uint32(len(c.shards)))
}

// shardError keeps errors that describe the query itself and turns every other failure into
// ErrShardUnavailable.
func shardError(i int, err error) error {
	var syntax *expr.SyntaxError
	if errors.Is(err, litetable.ErrTypeMismatch) || errors.As(err, &syntax) {
		return fmt.Errorf("shard %d: %w", i, err)
	}
	return fmt.Errorf("%w: shard %d: %w", ErrShardUnavailable, i, err)
}

func status(err error) string {
	var syntax *expr.SyntaxError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &syntax):
		return "syntax_error"
	case errors.Is(err, litetable.ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, ErrShardUnavailable):
		return "shard_unavailable"
	default:
		return "error"
	}
}
