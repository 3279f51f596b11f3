package publication

import (
	"context"
	"fmt"

	"github.com/maxpoletaev/shardcoord/membership"
	"github.com/maxpoletaev/shardcoord/nodeapi"
)

// Transport delivers a publish request to a single node.
type Transport interface {
	Publish(ctx context.Context, id membership.NodeID, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error)
}

type ConnProvider interface {
	Conn(ctx context.Context, id membership.NodeID) (nodeapi.Client, error)
}

// ClusterTransport sends requests over the connections of the cluster
// registry. The local node is expected to be registered with an in-process
// client.
type ClusterTransport struct {
	conns ConnProvider
}

func NewClusterTransport(conns ConnProvider) *ClusterTransport {
	return &ClusterTransport{conns: conns}
}

func (t *ClusterTransport) Publish(ctx context.Context, id membership.NodeID, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error) {
	conn, err := t.conns.Conn(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	return conn.Publish(ctx, req)
}
