package publication

import (
	"sort"
	"sync"

	"golang.org/x/exp/maps"

	"github.com/maxpoletaev/shardcoord/internal/set"
	"github.com/maxpoletaev/shardcoord/membership"
)

const (
	ReasonTimeout  = "timeout"
	ReasonCanceled = "canceled"
)

// AckCollector tracks the responses of a single publication. Every node starts
// as pending and moves exactly once to acked, nacked or failed. Responses that
// arrive after Close are ignored.
type AckCollector struct {
	mut     sync.Mutex
	pending set.Set[membership.NodeID]
	acked   set.Set[membership.NodeID]
	nacked  map[membership.NodeID]string
	failed  map[membership.NodeID]string
	closed  bool
}

func NewAckCollector(nodes []membership.NodeID) *AckCollector {
	return &AckCollector{
		pending: set.New(nodes...),
		acked:   set.New[membership.NodeID](),
		nacked:  make(map[membership.NodeID]string),
		failed:  make(map[membership.NodeID]string),
	}
}

// take removes the node from pending. Must be called with the lock held.
func (c *AckCollector) take(id membership.NodeID) bool {
	if c.closed {
		return false
	}

	return c.pending.Pop(id)
}

// Ack records that the node has applied the state.
func (c *AckCollector) Ack(id membership.NodeID) bool {
	c.mut.Lock()
	defer c.mut.Unlock()

	if !c.take(id) {
		return false
	}

	c.acked.Add(id)

	return true
}

// Nack records that the node has explicitly rejected the state.
func (c *AckCollector) Nack(id membership.NodeID, reason string) bool {
	c.mut.Lock()
	defer c.mut.Unlock()

	if !c.take(id) {
		return false
	}

	c.nacked[id] = reason

	return true
}

// Fail records that the node could not be reached.
func (c *AckCollector) Fail(id membership.NodeID, reason string) bool {
	c.mut.Lock()
	defer c.mut.Unlock()

	if !c.take(id) {
		return false
	}

	c.failed[id] = reason

	return true
}

// Expire fails every pending node with the given reason and returns them.
func (c *AckCollector) Expire(reason string) []membership.NodeID {
	c.mut.Lock()
	defer c.mut.Unlock()

	if c.closed {
		return nil
	}

	expired := c.pending.Values()
	sortNodes(expired)

	for _, id := range expired {
		c.failed[id] = reason
	}

	c.pending = set.New[membership.NodeID]()

	return expired
}

// Close makes the collector ignore any further responses.
func (c *AckCollector) Close() {
	c.mut.Lock()
	defer c.mut.Unlock()

	c.closed = true
}

// Done returns true once every node has responded.
func (c *AckCollector) Done() bool {
	c.mut.Lock()
	defer c.mut.Unlock()

	return c.pending.Len() == 0
}

// Satisfies checks the acknowledgements collected so far against the quorum.
func (c *AckCollector) Satisfies(q Quorum, self membership.NodeID, total int) bool {
	c.mut.Lock()
	defer c.mut.Unlock()

	return q.Satisfied(c.acked, self, total)
}

func (c *AckCollector) Pending() []membership.NodeID {
	c.mut.Lock()
	defer c.mut.Unlock()

	ids := c.pending.Values()
	sortNodes(ids)

	return ids
}

func (c *AckCollector) Acked() []membership.NodeID {
	c.mut.Lock()
	defer c.mut.Unlock()

	ids := c.acked.Values()
	sortNodes(ids)

	return ids
}

func (c *AckCollector) Nacked() map[membership.NodeID]string {
	c.mut.Lock()
	defer c.mut.Unlock()

	return maps.Clone(c.nacked)
}

func (c *AckCollector) Failed() map[membership.NodeID]string {
	c.mut.Lock()
	defer c.mut.Unlock()

	return maps.Clone(c.failed)
}

func sortNodes(ids []membership.NodeID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
}
