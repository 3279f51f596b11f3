package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding/gzip"
	"google.golang.org/grpc/keepalive"

	"github.com/maxpoletaev/shardcoord/nodeapi"
)

var _ nodeapi.Dialer = Dial

func Dial(ctx context.Context, addr string) (nodeapi.Client, error) {
	return dial(ctx, addr)
}

func dial(ctx context.Context, addr string, extra ...grpc.DialOption) (nodeapi.Client, error) {
	creds := insecure.NewCredentials()

	opts := []grpc.DialOption{
		grpc.WithBlock(),
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time: 10 * time.Second, // ping every 10 seconds if there is no activity
		}),
		grpc.WithDefaultCallOptions(grpc.UseCompressor(gzip.Name)),
	}

	conn, err := grpc.DialContext(ctx, addr, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial failed: %w", err)
	}

	c := &Client{conn: conn}
	c.addOnCloseHook(conn.Close)

	return c, nil
}
