package routing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/twmb/murmur3"

	"github.com/maxpoletaev/shardcoord/clusterstate"
)

var (
	ErrIndexNotFound = clusterstate.ErrIndexNotFound
	ErrIndexClosed   = errors.New("index is closed")
)

const (
	// PreferenceLocal tries copies on the local node first.
	PreferenceLocal = "_local"

	// PreferencePrimary only targets primary copies.
	PreferencePrimary = "_primary"
)

type SearchOptions struct {
	// Preference controls the order in which copies are tried. Requests with
	// the same custom preference string hit the same copies.
	Preference string

	// ClusterAlias marks the targets as belonging to a remote cluster.
	ClusterAlias string
}

// OperationRouting resolves requests to the shard copies they need to visit.
type OperationRouting struct {
	localNodeID string
}

func NewOperationRouting(localNodeID string) *OperationRouting {
	return &OperationRouting{localNodeID: localNodeID}
}

// SearchShards builds the group set for a search over the given indices. The
// whole set is built from the single state passed in, so it never mixes
// routing entries of different versions.
func (r *OperationRouting) SearchShards(state *clusterstate.State, indices []string, opts SearchOptions) (*GroupSet, error) {
	var groups []ShardIteratorGroup

	seen := make(map[string]bool, len(indices))

	for _, index := range indices {
		if seen[index] {
			continue
		}

		seen[index] = true

		meta, ok := state.Index(index)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, index)
		}

		if meta.State == clusterstate.IndexClosed {
			return nil, fmt.Errorf("%w: %s", ErrIndexClosed, index)
		}

		for _, shard := range state.ShardNumbers(index) {
			shardID := ShardID{Index: index, Shard: shard}
			copies := r.orderCopies(state.Copies(index, shard), opts.Preference)

			targets := make([]ShardTarget, 0, len(copies))

			for _, c := range copies {
				t, err := NewShardTarget(c.NodeID, shardID, opts.ClusterAlias, "", indices...)
				if err != nil {
					return nil, err
				}

				targets = append(targets, t)
			}

			groups = append(groups, NewShardIteratorGroup(shardID, opts.ClusterAlias, targets))
		}
	}

	return NewGroupSet(groups), nil
}

// orderCopies returns the active copies of a shard: the primary first, then
// replicas rotated by the preference hash.
func (r *OperationRouting) orderCopies(copies []clusterstate.ShardRouting, preference string) []clusterstate.ShardRouting {
	var (
		primaries []clusterstate.ShardRouting
		replicas  []clusterstate.ShardRouting
	)

	for _, c := range copies {
		if !c.Active() {
			continue
		}

		if c.Primary {
			primaries = append(primaries, c)
		} else {
			replicas = append(replicas, c)
		}
	}

	if preference == PreferencePrimary {
		return primaries
	}

	sort.SliceStable(replicas, func(i, j int) bool {
		return strings.Compare(replicas[i].NodeID, replicas[j].NodeID) < 0
	})

	if preference != "" && preference != PreferenceLocal && len(replicas) > 1 {
		shift := int(murmur3.StringSum64(preference) % uint64(len(replicas)))
		rotated := make([]clusterstate.ShardRouting, 0, len(replicas))
		rotated = append(rotated, replicas[shift:]...)
		replicas = append(rotated, replicas[:shift]...)
	}

	ordered := append(primaries, replicas...)

	if preference == PreferenceLocal && r.localNodeID != "" {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].NodeID == r.localNodeID && ordered[j].NodeID != r.localNodeID
		})
	}

	return ordered
}

// ShardForDocument returns the shard of the index that holds the document
// with the given routing key.
func (r *OperationRouting) ShardForDocument(state *clusterstate.State, index, key string) (ShardID, error) {
	meta, ok := state.Index(index)
	if !ok {
		return ShardID{}, fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	}

	return ShardID{Index: index, Shard: ShardForKey(meta.NumberOfShards, key)}, nil
}
