package publication

import (
	"sync"

	"github.com/maxpoletaev/shardcoord/membership"
)

// Tracker remembers the last version each node has acknowledged, to decide
// whether the node can receive the next version as is, or needs a full
// resync because it has missed something.
type Tracker struct {
	mut   sync.Mutex
	acked map[membership.NodeID]uint64
}

func NewTracker() *Tracker {
	return &Tracker{
		acked: make(map[membership.NodeID]uint64),
	}
}

// NeedsFull returns true unless the node is known to have acknowledged the
// version right before the given one.
func (t *Tracker) NeedsFull(id membership.NodeID, version uint64) bool {
	t.mut.Lock()
	defer t.mut.Unlock()

	last, ok := t.acked[id]

	return !ok || last+1 != version
}

func (t *Tracker) Acked(id membership.NodeID, version uint64) {
	t.mut.Lock()
	defer t.mut.Unlock()

	t.acked[id] = version
}

// Reset forgets what the node has, so it gets a full resync next time.
func (t *Tracker) Reset(ids ...membership.NodeID) {
	t.mut.Lock()
	defer t.mut.Unlock()

	for _, id := range ids {
		delete(t.acked, id)
	}
}

func (t *Tracker) ResetAll() {
	t.mut.Lock()
	defer t.mut.Unlock()

	t.acked = make(map[membership.NodeID]uint64)
}

// LastAcked returns the last version acknowledged by the node.
func (t *Tracker) LastAcked(id membership.NodeID) (uint64, bool) {
	t.mut.Lock()
	defer t.mut.Unlock()

	v, ok := t.acked[id]

	return v, ok
}
