package membership

import (
	"testing"
	"time"

	"github.com/hashicorp/memberlist"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	nodeapimock "github.com/maxpoletaev/shardcoord/nodeapi/mock"
)

func newTestCluster() *Cluster {
	conf := DefaultConfig()
	conf.NodeID = "node1"
	conf.Addr = "127.0.0.1:3000"

	return NewCluster(conf)
}

func TestCluster_AddRemove(t *testing.T) {
	cluster := newTestCluster()

	var events []ClusterEvent
	cluster.Subscribe(func(e ClusterEvent) {
		events = append(events, e)
	})

	cluster.Add(Node{ID: "node2", Addr: "127.0.0.1:3001"})
	cluster.Add(Node{ID: "node2", Addr: "127.0.0.1:3001"})
	require.Equal(t, []NodeID{"node1", "node2"}, cluster.Members())

	require.NoError(t, cluster.Remove("node2"))
	require.NoError(t, cluster.Remove("node2"))
	require.Equal(t, []NodeID{"node1"}, cluster.Members())

	node, ok := cluster.Node("node2")
	require.True(t, ok, "left node is kept until garbage collected")
	require.Equal(t, StatusLeft, node.Status)

	require.ErrorIs(t, cluster.Remove("node3"), ErrNodeNotFound)
	require.Error(t, cluster.Remove("node1"))

	require.Equal(t, []ClusterEvent{
		&NodeJoined{Node: Node{ID: "node2", Addr: "127.0.0.1:3001", Status: StatusHealthy}},
		&NodeLeft{ID: "node2"},
	}, events)
}

func TestCluster_SetStatus(t *testing.T) {
	cluster := newTestCluster()
	cluster.Add(Node{ID: "node2", Addr: "127.0.0.1:3001"})

	require.NoError(t, cluster.SetStatus("node2", StatusUnhealthy))
	require.Equal(t, []NodeID{"node1", "node2"}, cluster.Members(), "unhealthy nodes are still members")

	node, _ := cluster.Node("node2")
	require.False(t, node.IsReachable())

	require.NoError(t, cluster.SetStatus("node2", StatusLeft))
	require.Equal(t, []NodeID{"node1"}, cluster.Members())

	require.ErrorIs(t, cluster.SetStatus("node3", StatusHealthy), ErrNodeNotFound)
}

func TestCluster_Collect(t *testing.T) {
	ctrl := gomock.NewController(t)
	cluster := newTestCluster()
	cluster.gcInterval = time.Minute

	cluster.Add(Node{ID: "node2", Addr: "127.0.0.1:3001"})
	cluster.Add(Node{ID: "node3", Addr: "127.0.0.1:3002"})

	conn2 := nodeapimock.NewMockClient(ctrl)
	conn2.EXPECT().Close().Return(nil)
	conn2.EXPECT().IsClosed().Return(true)
	cluster.AddConn("node2", conn2)

	conn3 := nodeapimock.NewMockClient(ctrl)
	conn3.EXPECT().IsClosed().Return(false).AnyTimes()
	cluster.AddConn("node3", conn3)

	require.NoError(t, cluster.Remove("node2"))

	now := time.Now()
	cluster.collect(now)

	_, ok := cluster.Node("node2")
	require.True(t, ok, "node must be kept for one interval")
	require.NotContains(t, cluster.connections, NodeID("node2"))
	require.Contains(t, cluster.connections, NodeID("node3"))

	cluster.collect(now.Add(2 * time.Minute))

	_, ok = cluster.Node("node2")
	require.False(t, ok)
}

func TestDiscovery_Events(t *testing.T) {
	cluster := newTestCluster()
	delegate := &eventDelegate{cluster: cluster, logger: cluster.logger}

	delegate.NotifyJoin(&memberlist.Node{Name: "node1", Meta: encodeMeta("127.0.0.1:3000")})
	delegate.NotifyJoin(&memberlist.Node{Name: "node2", Meta: encodeMeta("127.0.0.1:3001")})
	delegate.NotifyJoin(&memberlist.Node{Name: "node3"})
	require.Equal(t, []NodeID{"node1", "node2"}, cluster.Members())

	delegate.NotifyUpdate(&memberlist.Node{Name: "node2", Meta: encodeMeta("127.0.0.1:4001")})
	node, _ := cluster.Node("node2")
	require.Equal(t, "127.0.0.1:4001", node.Addr)

	delegate.NotifyLeave(&memberlist.Node{Name: "node2"})
	delegate.NotifyLeave(&memberlist.Node{Name: "node1"})
	require.Equal(t, []NodeID{"node1"}, cluster.Members())
}

func TestDiscovery_Meta(t *testing.T) {
	addr, err := decodeMeta(encodeMeta("10.0.0.1:3000"))
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1:3000", addr)

	d := &metaDelegate{meta: encodeMeta("10.0.0.1:3000")}
	require.Nil(t, d.NodeMeta(2))
	require.Equal(t, d.meta, d.NodeMeta(512))
}
