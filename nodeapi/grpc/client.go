package grpc

import (
	"context"
	"fmt"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"github.com/maxpoletaev/shardcoord/internal/grpcutil"
	"github.com/maxpoletaev/shardcoord/internal/multierror"
	"github.com/maxpoletaev/shardcoord/nodeapi"
)

var (
	_ nodeapi.Client = (*Client)(nil)
)

type Client struct {
	conn    grpc.ClientConnInterface
	onClose []func() error
	closed  uint32
}

func (c *Client) addOnCloseHook(f func() error) {
	c.onClose = append(c.onClose, f)
}

func (c *Client) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closed, 0, 1) {
		return nil // already closed
	}

	errs := multierror.New[int]()

	for idx, f := range c.onClose {
		if err := f(); err != nil {
			errs.Add(idx, err)
		}
	}

	return errs.Ret()
}

func (c *Client) IsClosed() bool {
	return atomic.LoadUint32(&c.closed) == 1
}

func (c *Client) Publish(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error) {
	resp := new(nodeapi.PublishResponse)

	if err := c.conn.Invoke(ctx, publishMethod, req, resp, grpc.ForceCodec(codec{})); err != nil {
		if grpcutil.ErrorCode(err) == codes.InvalidArgument {
			return nil, fmt.Errorf("publish rejected: %s", grpcutil.Reason(err))
		}

		return nil, err
	}

	return resp, nil
}
