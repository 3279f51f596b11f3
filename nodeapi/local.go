package nodeapi

import (
	"context"
	"sync/atomic"
)

var _ Client = (*LocalClient)(nil)

// LocalClient calls the handler of the local node directly, so that the node
// publishing a state goes through the same path as every other member.
type LocalClient struct {
	handler PublishHandler
	closed  atomic.Bool
}

func NewLocalClient(handler PublishHandler) *LocalClient {
	return &LocalClient{handler: handler}
}

func (c *LocalClient) Publish(ctx context.Context, req *PublishRequest) (*PublishResponse, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	return c.handler.HandlePublish(ctx, req)
}

func (c *LocalClient) IsClosed() bool {
	return c.closed.Load()
}

func (c *LocalClient) Close() error {
	c.closed.Store(true)
	return nil
}
