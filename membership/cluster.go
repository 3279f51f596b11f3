package membership

import (
	"errors"
	"sort"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/maxpoletaev/shardcoord/nodeapi"
)

var ErrNodeNotFound = errors.New("node not found")

// Cluster is the registry of known nodes and the connections to them.
type Cluster struct {
	mut         sync.RWMutex
	selfID      NodeID
	nodes       map[NodeID]Node
	leftAt      map[NodeID]time.Time
	connections map[NodeID]nodeapi.Client
	waiting     map[NodeID]chan struct{}
	listeners   []Listener
	dialer      nodeapi.Dialer
	logger      kitlog.Logger
	dialTimeout time.Duration
	gcInterval  time.Duration
	stop        chan struct{}
	wg          sync.WaitGroup
}

func NewCluster(conf Config) *Cluster {
	nodes := make(map[NodeID]Node, 1)
	nodes[conf.NodeID] = Node{
		ID:     conf.NodeID,
		Name:   conf.NodeName,
		Addr:   conf.Addr,
		Status: StatusHealthy,
	}

	return &Cluster{
		nodes:       nodes,
		selfID:      conf.NodeID,
		leftAt:      make(map[NodeID]time.Time),
		connections: make(map[NodeID]nodeapi.Client),
		waiting:     make(map[NodeID]chan struct{}),
		dialer:      conf.Dialer,
		logger:      conf.Logger,
		dialTimeout: conf.DialTimeout,
		gcInterval:  conf.GCInterval,
		stop:        make(chan struct{}),
	}
}

// Start schedules the background garbage collection of nodes that have left
// the cluster and their connections.
func (cl *Cluster) Start() {
	cl.startGC()
}

// Stop terminates background tasks and closes all connections.
func (cl *Cluster) Stop() {
	close(cl.stop)
	cl.wg.Wait()

	cl.mut.Lock()
	defer cl.mut.Unlock()

	for id, conn := range cl.connections {
		delete(cl.connections, id)

		if err := conn.Close(); err != nil {
			level.Warn(cl.logger).Log("msg", "failed to close connection", "node", id, "err", err)
		}
	}
}

// Subscribe registers a listener for membership changes.
func (cl *Cluster) Subscribe(l Listener) {
	cl.mut.Lock()
	defer cl.mut.Unlock()

	cl.listeners = append(cl.listeners, l)
}

func (cl *Cluster) notify(event ClusterEvent) {
	cl.mut.RLock()
	listeners := cl.listeners
	cl.mut.RUnlock()

	for _, l := range listeners {
		l(event)
	}
}

// SelfID returns the ID of the current node.
func (cl *Cluster) SelfID() NodeID {
	return cl.selfID
}

// Self returns the current node.
func (cl *Cluster) Self() Node {
	cl.mut.RLock()
	defer cl.mut.RUnlock()

	return cl.nodes[cl.selfID]
}

// Nodes returns all known nodes sorted by ID, including the current node and
// nodes that have recently left the cluster but have not been garbage
// collected yet.
func (cl *Cluster) Nodes() []Node {
	cl.mut.RLock()
	defer cl.mut.RUnlock()

	nodes := make([]Node, 0, len(cl.nodes))
	for _, node := range cl.nodes {
		nodes = append(nodes, node)
	}

	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})

	return nodes
}

// Members returns IDs of the nodes that are part of the cluster, that is every
// node that has not left. Unhealthy nodes are still members.
func (cl *Cluster) Members() []NodeID {
	nodes := cl.Nodes()
	ids := make([]NodeID, 0, len(nodes))

	for _, node := range nodes {
		if node.Status != StatusLeft {
			ids = append(ids, node.ID)
		}
	}

	return ids
}

// Node returns the node with the given ID, if it exists.
func (cl *Cluster) Node(id NodeID) (Node, bool) {
	cl.mut.RLock()
	defer cl.mut.RUnlock()
	node, ok := cl.nodes[id]

	return node, ok
}

// Add registers a node or updates the address of a known one. A node that has
// left and comes back is considered healthy again.
func (cl *Cluster) Add(node Node) {
	cl.mut.Lock()

	curr, known := cl.nodes[node.ID]
	node.Status = StatusHealthy
	cl.nodes[node.ID] = node
	delete(cl.leftAt, node.ID)

	// The address has changed, the old connection is of no use.
	if known && curr.Addr != node.Addr {
		if conn, ok := cl.connections[node.ID]; ok {
			delete(cl.connections, node.ID)
			_ = conn.Close()
		}
	}

	cl.mut.Unlock()

	if !known || curr.Status == StatusLeft {
		level.Info(cl.logger).Log("msg", "node joined", "node_id", node.ID, "addr", node.Addr)
		cl.notify(&NodeJoined{Node: node})
	}
}

// Remove marks the node as left. The node is kept in the list until it is
// garbage collected, so that it is still visible in the admin API.
func (cl *Cluster) Remove(id NodeID) error {
	if id == cl.selfID {
		return errors.New("cannot remove self")
	}

	cl.mut.Lock()

	node, ok := cl.nodes[id]
	if !ok {
		cl.mut.Unlock()
		return ErrNodeNotFound
	}

	if node.Status == StatusLeft {
		cl.mut.Unlock()
		return nil
	}

	node.Status = StatusLeft
	cl.nodes[id] = node
	cl.leftAt[id] = time.Now()

	cl.mut.Unlock()

	level.Info(cl.logger).Log("msg", "node left", "node_id", id)
	cl.notify(&NodeLeft{ID: id})

	return nil
}

// SetStatus changes the status of a node that is still a member.
func (cl *Cluster) SetStatus(id NodeID, status Status) error {
	if status == StatusLeft {
		return cl.Remove(id)
	}

	cl.mut.Lock()

	node, ok := cl.nodes[id]
	if !ok {
		cl.mut.Unlock()
		return ErrNodeNotFound
	}

	changed := node.Status != status
	node.Status = status
	cl.nodes[id] = node

	cl.mut.Unlock()

	if changed {
		cl.notify(&NodeUpdated{ID: id, Status: status})
	}

	return nil
}
