package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/maxpoletaev/shardcoord/nodeapi"
)

type handlerFunc func(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error)

func (f handlerFunc) HandlePublish(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error) {
	return f(ctx, req)
}

func startServer(t *testing.T, handler nodeapi.PublishHandler) nodeapi.Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(ServerOptions()...)
	Register(server, handler, kitlog.NewNopLogger())

	go func() {
		_ = server.Serve(lis)
	}()

	t.Cleanup(server.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := dial(ctx, "bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestServer_Publish(t *testing.T) {
	tests := map[string]struct {
		handler  handlerFunc
		req      *nodeapi.PublishRequest
		wantResp *nodeapi.PublishResponse
		wantErr  bool
	}{
		"Ack": {
			handler: func(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error) {
				return nodeapi.Ack(req.Version), nil
			},
			req:      &nodeapi.PublishRequest{Version: 3, Full: true, State: []byte{0x08, 0x03}},
			wantResp: nodeapi.Ack(3),
		},
		"Nack": {
			handler: func(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error) {
				return nodeapi.Nack(req.Version, "expected version 2"), nil
			},
			req:      &nodeapi.PublishRequest{Version: 5, State: []byte{0x08, 0x05}},
			wantResp: nodeapi.Nack(5, "expected version 2"),
		},
		"EmptyState": {
			handler: func(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error) {
				return nodeapi.Ack(req.Version), nil
			},
			req:     &nodeapi.PublishRequest{Version: 5},
			wantErr: true,
		},
		"HandlerError": {
			handler: func(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error) {
				return nil, errors.New("disk is on fire")
			},
			req:     &nodeapi.PublishRequest{Version: 5, State: []byte{0x08, 0x05}},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			client := startServer(t, tt.handler)

			resp, err := client.Publish(context.Background(), tt.req)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.wantResp, resp)
		})
	}
}

func TestClient_Close(t *testing.T) {
	client := startServer(t, handlerFunc(func(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error) {
		return nodeapi.Ack(req.Version), nil
	}))

	require.False(t, client.IsClosed())
	require.NoError(t, client.Close())
	require.True(t, client.IsClosed())
	require.NoError(t, client.Close())
}
