package grpc

import (
	"context"
	"errors"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/maxpoletaev/shardcoord/internal/grpcutil"
	"github.com/maxpoletaev/shardcoord/nodeapi"
)

const (
	serviceName   = "shardcoord.Node"
	publishMethod = "/shardcoord.Node/Publish"

	ReasonEmptyState = "EMPTY_STATE"
)

// NodeServer is the server API of the node service.
type NodeServer interface {
	Publish(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*NodeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Publish",
			Handler:    publishHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shardcoord/node.proto",
}

func publishHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(nodeapi.PublishRequest)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(NodeServer).Publish(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: publishMethod,
	}

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(NodeServer).Publish(ctx, req.(*nodeapi.PublishRequest))
	}

	return interceptor(ctx, in, info, handler)
}

// ServerOptions returns the options a gRPC server needs to serve the node
// service.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ForceServerCodec(codec{}),
	}
}

// Register adds the node service backed by the handler to the gRPC server.
func Register(s *grpc.Server, handler nodeapi.PublishHandler, logger kitlog.Logger) {
	s.RegisterService(&serviceDesc, &Server{
		handler: handler,
		logger:  logger,
	})
}

type Server struct {
	handler nodeapi.PublishHandler
	logger  kitlog.Logger
}

func (s *Server) Publish(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error) {
	if len(req.State) == 0 {
		return nil, grpcutil.ErrorWithReason(codes.InvalidArgument, ReasonEmptyState, "publish request carries no state")
	}

	resp, err := s.handler.HandlePublish(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, status.FromContextError(err).Err()
		}

		level.Error(s.logger).Log("msg", "failed to handle publish", "version", req.Version, "err", err)

		return nil, status.Error(codes.Internal, err.Error())
	}

	return resp, nil
}
