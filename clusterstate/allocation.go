package clusterstate

import (
	"fmt"
	"sort"

	"golang.org/x/exp/slices"
)

func allocationID(index string, shard int, nodeID string, version uint64) string {
	return fmt.Sprintf("%s/%d/%s/%d", index, shard, nodeID, version)
}

// pickNode returns the first node, starting at offset and wrapping around,
// that does not hold a copy of the shard yet.
func pickNode(nodes []string, offset int, holders map[string]bool) (string, bool) {
	for i := 0; i < len(nodes); i++ {
		node := nodes[(offset+i)%len(nodes)]
		if !holders[node] {
			return node, true
		}
	}

	return "", false
}

// assignCopies places unassigned copies of a shard on distinct nodes. Copies
// are left unassigned when there are not enough nodes. Returns true if any
// copy was assigned.
func (b *Builder) assignCopies(copies []ShardRouting, nodes []string, offset int) bool {
	holders := make(map[string]bool, len(copies))
	for _, c := range copies {
		if c.Assigned() {
			holders[c.NodeID] = true
		}
	}

	changed := false

	for i := range copies {
		if copies[i].Assigned() {
			continue
		}

		node, ok := pickNode(nodes, offset+i, holders)
		if !ok {
			break
		}

		holders[node] = true
		copies[i].NodeID = node
		copies[i].State = ShardStarted
		copies[i].AllocationID = allocationID(copies[i].Index, copies[i].Shard, node, b.prev.Version+1)
		changed = true
	}

	return changed
}

// AllocateIndex assigns the unassigned shard copies of the index to the given
// nodes in round-robin order, never placing two copies of the same shard on
// one node.
func AllocateIndex(b *Builder, index string, nodes []string) error {
	if _, ok := b.routing[index]; !ok {
		return fmt.Errorf("allocate %q: %w", index, ErrIndexNotFound)
	}

	if len(nodes) == 0 {
		return nil
	}

	nodes = slices.Clone(nodes)
	sort.Strings(nodes)

	table, _ := b.mutableTable(index)

	for shard, copies := range table.Shards {
		copies = slices.Clone(copies)
		if b.assignCopies(copies, nodes, shard) {
			table.Shards[shard] = copies
		}
	}

	return nil
}

// Reroute reacts to a change of the live node set: copies held by nodes that
// are gone become unassigned, a started replica is promoted when the primary
// is lost, and unassigned copies are placed on live nodes. Returns false if
// the routing table did not change.
func Reroute(b *Builder, live []string) bool {
	live = slices.Clone(live)
	sort.Strings(live)

	alive := make(map[string]bool, len(live))
	for _, id := range live {
		alive[id] = true
	}

	indices := make([]string, 0, len(b.routing))
	for name := range b.routing {
		indices = append(indices, name)
	}

	sort.Strings(indices)

	changed := false

	for _, index := range indices {
		if meta, ok := b.indices[index]; ok && meta.State == IndexClosed {
			continue
		}

		for shard, copies := range b.routing[index].Shards {
			next, ok := b.rerouteShard(copies, alive, live, shard)
			if !ok {
				continue
			}

			table, _ := b.mutableTable(index)
			table.Shards[shard] = next
			changed = true
		}
	}

	return changed
}

func (b *Builder) rerouteShard(copies []ShardRouting, alive map[string]bool, live []string, offset int) ([]ShardRouting, bool) {
	next := slices.Clone(copies)
	changed := false
	lostPrimary := false

	for i := range next {
		if !next[i].Assigned() || alive[next[i].NodeID] {
			continue
		}

		if next[i].Primary {
			lostPrimary = true
		}

		next[i] = ShardRouting{
			Index:   next[i].Index,
			Shard:   next[i].Shard,
			Primary: next[i].Primary,
			State:   ShardUnassigned,
		}

		changed = true
	}

	if lostPrimary {
		for i := range next {
			if !next[i].Primary && next[i].Active() {
				for j := range next {
					next[j].Primary = false
				}

				next[i].Primary = true

				break
			}
		}
	}

	if b.assignCopies(next, live, offset) {
		changed = true
	}

	return next, changed
}
