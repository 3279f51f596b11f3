package clusterstate

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Builder derives a new state from a previous one. Only the tables touched by
// the builder are copied, everything else is shared with the previous state.
type Builder struct {
	prev     *State
	indices  map[string]IndexMetadata
	settings map[string]string
	routing  map[string]IndexRoutingTable
	touched  map[string]bool
}

func NewBuilder(prev *State) *Builder {
	return &Builder{
		prev:     prev,
		indices:  cloneMap(prev.Metadata.Indices),
		settings: cloneMap(prev.Metadata.Settings),
		routing:  cloneMap(prev.Routing.Indices),
		touched:  make(map[string]bool),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return make(map[K]V)
	}

	return maps.Clone(m)
}

// Prev returns the state the builder was created from.
func (b *Builder) Prev() *State {
	return b.prev
}

// PutIndex adds or replaces index metadata. The routing table of a new index
// is created with every shard copy unassigned.
func (b *Builder) PutIndex(meta IndexMetadata) *Builder {
	if meta.State == 0 {
		meta.State = IndexOpen
	}

	meta.Settings = maps.Clone(meta.Settings)
	if meta.Settings == nil {
		meta.Settings = make(map[string]string)
	}

	b.indices[meta.Name] = meta

	if _, ok := b.routing[meta.Name]; !ok {
		table := IndexRoutingTable{
			Index:  meta.Name,
			Shards: make(map[int][]ShardRouting, meta.NumberOfShards),
		}

		for shard := 0; shard < meta.NumberOfShards; shard++ {
			copies := make([]ShardRouting, 0, meta.NumberOfReplicas+1)

			for c := 0; c <= meta.NumberOfReplicas; c++ {
				copies = append(copies, ShardRouting{
					Index:   meta.Name,
					Shard:   shard,
					Primary: c == 0,
					State:   ShardUnassigned,
				})
			}

			table.Shards[shard] = copies
		}

		b.routing[meta.Name] = table
		b.touched[meta.Name] = true
	}

	return b
}

// SetIndexState opens or closes an existing index.
func (b *Builder) SetIndexState(name string, state IndexState) *Builder {
	if meta, ok := b.indices[name]; ok {
		meta.State = state
		b.indices[name] = meta
	}

	return b
}

// RemoveIndex removes the index together with its routing table.
func (b *Builder) RemoveIndex(name string) *Builder {
	delete(b.indices, name)
	delete(b.routing, name)
	delete(b.touched, name)

	return b
}

func (b *Builder) mutableTable(index string) (IndexRoutingTable, bool) {
	table, ok := b.routing[index]
	if !ok {
		return table, false
	}

	if !b.touched[index] {
		table = IndexRoutingTable{
			Index:  table.Index,
			Shards: maps.Clone(table.Shards),
		}

		b.routing[index] = table
		b.touched[index] = true
	}

	return table, true
}

// SetShardCopies replaces the routing entries of a single shard. Unknown
// indices are ignored.
func (b *Builder) SetShardCopies(index string, shard int, copies []ShardRouting) *Builder {
	table, ok := b.mutableTable(index)
	if !ok {
		return b
	}

	table.Shards[shard] = slices.Clone(copies)

	return b
}

// SetSetting sets a cluster-wide setting. An empty value removes it.
func (b *Builder) SetSetting(key, value string) *Builder {
	if value == "" {
		delete(b.settings, key)
		return b
	}

	b.settings[key] = value

	return b
}

// Build returns the new state with the version following the previous one.
// The builder must not be used after Build.
func (b *Builder) Build() *State {
	return &State{
		Version:     b.prev.Version + 1,
		ClusterUUID: b.prev.ClusterUUID,
		Metadata: Metadata{
			Indices:  b.indices,
			Settings: b.settings,
		},
		Routing: RoutingTable{
			Indices: b.routing,
		},
	}
}
