package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/litetable/litetable-query/internal/coordinator"
	"github.com/litetable/litetable-query/internal/expr"
	"github.com/litetable/litetable-query/internal/query"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// shardService serves the local shards of a node to remote coordinators.
type shardService struct {
	backend coordinator.ShardClient
}

func (s *shardService) Evaluate(ctx context.Context, msg *EvaluateRequest) (*EvaluateResponse, error) {
	now := time.Now()
	req := query.Request{
		Kind:    msg.Kind,
		Target:  msg.Target,
		ByTime:  msg.ByTime,
		QueryID: msg.QueryID,
	}
	if strings.TrimSpace(msg.Where) != "" {
		e, err := expr.Parse(msg.Where)
		if err != nil {
			return nil, toStatus(err)
		}
		req.Expr = e
	}
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := s.backend.Evaluate(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}

	log.Debug().Msgf("Evaluate latency: %v", time.Since(now))
	return &EvaluateResponse{Result: result}, nil
}

func (s *shardService) validateWrite(msg *WriteRequest) error {
	var errGrp []error
	if msg.ID == "" {
		errGrp = append(errGrp, errors.New("id required"))
	}
	if len(msg.Fields) == 0 {
		errGrp = append(errGrp, errors.New("fields required"))
	}
	return errors.Join(errGrp...)
}

func (s *shardService) Write(ctx context.Context, msg *WriteRequest) (*WriteResponse, error) {
	if err := s.validateWrite(msg); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.backend.Write(ctx, msg.ID, msg.Fields, msg.At); err != nil {
		return nil, toStatus(err)
	}
	return &WriteResponse{}, nil
}

func (s *shardService) Delete(ctx context.Context, msg *DeleteRequest) (*DeleteResponse, error) {
	if msg.ID == "" {
		return nil, status.Errorf(codes.InvalidArgument, "id required")
	}
	n, err := s.backend.Delete(ctx, msg.ID, msg.Columns)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DeleteResponse{Deleted: n}, nil
}
