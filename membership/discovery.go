package membership

import (
	"fmt"
	stdlog "log"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/memberlist"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/maxpoletaev/shardcoord/internal/protoio"
)

const fieldMetaAddr protowire.Number = 1

func encodeMeta(addr string) []byte {
	return protoio.AppendString(nil, fieldMetaAddr, addr)
}

func decodeMeta(meta []byte) (addr string, err error) {
	err = protoio.Walk(meta, func(f protoio.Field) (err error) {
		if f.Num == fieldMetaAddr {
			addr, err = f.String()
		}

		return err
	})

	return addr, err
}

type DiscoveryConfig struct {
	BindAddr      string
	BindPort      int
	AdvertiseAddr string
	AdvertisePort int
	Logger        kitlog.Logger
}

func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		BindAddr: "0.0.0.0",
		BindPort: 7946,
		Logger:   kitlog.NewNopLogger(),
	}
}

// Discovery keeps the cluster registry in sync with the gossip based member
// list. Every node advertises the address of its node API in the gossip
// metadata.
type Discovery struct {
	cluster *Cluster
	list    *memberlist.Memberlist
	logger  kitlog.Logger
}

func NewDiscovery(cluster *Cluster, conf DiscoveryConfig) (*Discovery, error) {
	self := cluster.Self()
	d := &Discovery{
		cluster: cluster,
		logger:  conf.Logger,
	}

	mlConf := memberlist.DefaultLANConfig()
	mlConf.Name = string(self.ID)
	mlConf.BindAddr = conf.BindAddr
	mlConf.BindPort = conf.BindPort
	mlConf.AdvertiseAddr = conf.AdvertiseAddr
	mlConf.AdvertisePort = conf.AdvertisePort
	mlConf.Events = &eventDelegate{cluster: cluster, logger: conf.Logger}
	mlConf.Delegate = &metaDelegate{meta: encodeMeta(self.Addr)}
	mlConf.Logger = stdlog.New(kitlog.NewStdlibAdapter(level.Debug(conf.Logger)), "", 0)

	list, err := memberlist.Create(mlConf)
	if err != nil {
		return nil, fmt.Errorf("failed to create memberlist: %w", err)
	}

	d.list = list

	return d, nil
}

// Join contacts the given gossip addresses and returns the number of nodes
// successfully contacted.
func (d *Discovery) Join(addrs []string) (int, error) {
	if len(addrs) == 0 {
		return 0, nil
	}

	n, err := d.list.Join(addrs)
	if err != nil {
		return n, fmt.Errorf("failed to join: %w", err)
	}

	return n, nil
}

// Leave broadcasts the leave intent and stops the gossip listener.
func (d *Discovery) Leave(timeout time.Duration) error {
	if err := d.list.Leave(timeout); err != nil {
		level.Warn(d.logger).Log("msg", "failed to broadcast leave", "err", err)
	}

	return d.list.Shutdown()
}

type eventDelegate struct {
	cluster *Cluster
	logger  kitlog.Logger
}

func (e *eventDelegate) toNode(n *memberlist.Node) (Node, bool) {
	addr, err := decodeMeta(n.Meta)
	if err != nil || addr == "" {
		level.Warn(e.logger).Log("msg", "ignoring node without address", "node_id", n.Name, "err", err)
		return Node{}, false
	}

	return Node{
		ID:   NodeID(n.Name),
		Name: n.Name,
		Addr: addr,
	}, true
}

func (e *eventDelegate) NotifyJoin(n *memberlist.Node) {
	if NodeID(n.Name) == e.cluster.SelfID() {
		return
	}

	if node, ok := e.toNode(n); ok {
		e.cluster.Add(node)
	}
}

func (e *eventDelegate) NotifyLeave(n *memberlist.Node) {
	if NodeID(n.Name) == e.cluster.SelfID() {
		return
	}

	if err := e.cluster.Remove(NodeID(n.Name)); err != nil {
		level.Debug(e.logger).Log("msg", "failed to remove node", "node_id", n.Name, "err", err)
	}
}

func (e *eventDelegate) NotifyUpdate(n *memberlist.Node) {
	e.NotifyJoin(n)
}

// metaDelegate only serves the node metadata, all other gossip features of
// memberlist are not used.
type metaDelegate struct {
	meta []byte
}

func (m *metaDelegate) NodeMeta(limit int) []byte {
	if len(m.meta) > limit {
		return nil
	}

	return m.meta
}

func (m *metaDelegate) NotifyMsg([]byte)                           {}
func (m *metaDelegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (m *metaDelegate) LocalState(join bool) []byte                { return nil }
func (m *metaDelegate) MergeRemoteState(buf []byte, join bool)     {}
