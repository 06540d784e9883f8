package grpc

import (
	"context"
	"time"

	"github.com/litetable/litetable-query/internal/litetable"
	grpc2 "google.golang.org/grpc"
)

const (
	serviceName    = "litetable.query.v1.ShardService"
	evaluateMethod = "/" + serviceName + "/Evaluate"
	writeMethod    = "/" + serviceName + "/Write"
	deleteMethod   = "/" + serviceName + "/Delete"
)

// EvaluateRequest carries a query to a remote shard. The filter travels as expression text and
// is parsed again on the receiving side.
type EvaluateRequest struct {
	Kind    litetable.QueryKind `msgpack:"kind"`
	Where   string              `msgpack:"where,omitempty"`
	Target  string              `msgpack:"target,omitempty"`
	ByTime  bool                `msgpack:"byTime,omitempty"`
	QueryID string              `msgpack:"queryId"`
}

type EvaluateResponse struct {
	Result litetable.PartialResult `msgpack:"result"`
}

type WriteRequest struct {
	ID     string                     `msgpack:"id"`
	Fields map[string]litetable.Value `msgpack:"fields"`
	At     time.Time                  `msgpack:"at"`
}

type WriteResponse struct{}

type DeleteRequest struct {
	ID      string   `msgpack:"id"`
	Columns []string `msgpack:"columns,omitempty"`
}

type DeleteResponse struct {
	Deleted int `msgpack:"deleted"`
}

// shardServer is the server API for the shard service.
type shardServer interface {
	Evaluate(ctx context.Context, in *EvaluateRequest) (*EvaluateResponse, error)
	Write(ctx context.Context, in *WriteRequest) (*WriteResponse, error)
	Delete(ctx context.Context, in *DeleteRequest) (*DeleteResponse, error)
}

var shardServiceDesc = grpc2.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*shardServer)(nil),
	Methods: []grpc2.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
		{MethodName: "Write", Handler: writeHandler},
		{MethodName: "Delete", Handler: deleteHandler},
	},
	Streams:  []grpc2.StreamDesc{},
	Metadata: "litetable/query/v1/shard",
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc2.UnaryServerInterceptor) (any, error) {
	in := new(EvaluateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(shardServer).Evaluate(ctx, in)
	}
	info := &grpc2.UnaryServerInfo{Server: srv, FullMethod: evaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(shardServer).Evaluate(ctx, req.(*EvaluateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func writeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc2.UnaryServerInterceptor) (any, error) {
	in := new(WriteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(shardServer).Write(ctx, in)
	}
	info := &grpc2.UnaryServerInfo{Server: srv, FullMethod: writeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(shardServer).Write(ctx, req.(*WriteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func deleteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc2.UnaryServerInterceptor) (any, error) {
	in := new(DeleteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(shardServer).Delete(ctx, in)
	}
	info := &grpc2.UnaryServerInfo{Server: srv, FullMethod: deleteMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(shardServer).Delete(ctx, req.(*DeleteRequest))
	}
	return interceptor(ctx, in, info, handler)
}
