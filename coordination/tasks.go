package coordination

import (
	"fmt"

	"github.com/maxpoletaev/shardcoord/clusterstate"
)

// NodeLister returns the IDs of the nodes shards can be allocated to. It is
// called when the task is applied, not when it is submitted.
type NodeLister func() []string

// CreateIndex adds a new index and allocates its shards.
func CreateIndex(meta clusterstate.IndexMetadata, nodes NodeLister) ApplyFunc {
	return func(state *clusterstate.State) (*clusterstate.State, error) {
		if err := clusterstate.ValidateIndex(meta); err != nil {
			return nil, err
		}

		if _, ok := state.Index(meta.Name); ok {
			return nil, fmt.Errorf("%w: %s", clusterstate.ErrIndexExists, meta.Name)
		}

		b := clusterstate.NewBuilder(state).PutIndex(meta)
		if err := clusterstate.AllocateIndex(b, meta.Name, nodes()); err != nil {
			return nil, err
		}

		return b.Build(), nil
	}
}

func DeleteIndex(name string) ApplyFunc {
	return func(state *clusterstate.State) (*clusterstate.State, error) {
		if _, ok := state.Index(name); !ok {
			return nil, fmt.Errorf("%w: %s", clusterstate.ErrIndexNotFound, name)
		}

		return clusterstate.NewBuilder(state).RemoveIndex(name).Build(), nil
	}
}

// Reroute moves shard copies away from nodes that are gone and assigns the
// unassigned ones to live nodes.
func Reroute(nodes NodeLister) ApplyFunc {
	return func(state *clusterstate.State) (*clusterstate.State, error) {
		b := clusterstate.NewBuilder(state)
		if !clusterstate.Reroute(b, nodes()) {
			return state, nil
		}

		return b.Build(), nil
	}
}

// SeedIndices creates the indices that are not present yet. Existing indices
// are left as they are, so the same seed can be applied on every start.
func SeedIndices(indices []clusterstate.IndexMetadata, nodes NodeLister) ApplyFunc {
	return func(state *clusterstate.State) (*clusterstate.State, error) {
		var (
			b       = clusterstate.NewBuilder(state)
			live    = nodes()
			created = 0
		)

		for _, meta := range indices {
			if err := clusterstate.ValidateIndex(meta); err != nil {
				return nil, err
			}

			if _, ok := state.Index(meta.Name); ok {
				continue
			}

			b.PutIndex(meta)

			if err := clusterstate.AllocateIndex(b, meta.Name, live); err != nil {
				return nil, err
			}

			created++
		}

		if created == 0 {
			return state, nil
		}

		return b.Build(), nil
	}
}
