package clusterstate

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type IndexState uint8

const (
	IndexOpen IndexState = iota + 1
	IndexClosed
)

func (s IndexState) String() string {
	switch s {
	case IndexOpen:
		return "open"
	case IndexClosed:
		return "close"
	default:
		return ""
	}
}

type ShardState uint8

const (
	ShardUnassigned ShardState = iota + 1
	ShardInitializing
	ShardStarted
	ShardRelocating
)

func (s ShardState) String() string {
	switch s {
	case ShardUnassigned:
		return "unassigned"
	case ShardInitializing:
		return "initializing"
	case ShardStarted:
		return "started"
	case ShardRelocating:
		return "relocating"
	default:
		return ""
	}
}

// IndexMetadata describes a single index and its settings.
type IndexMetadata struct {
	Name             string
	NumberOfShards   int
	NumberOfReplicas int
	State            IndexState
	Settings         map[string]string
}

// Metadata is the index and settings table of the cluster.
type Metadata struct {
	Indices  map[string]IndexMetadata
	Settings map[string]string
}

// ShardRouting is a single physical copy of a shard. A copy with an empty
// NodeID is not allocated to any node.
type ShardRouting struct {
	Index            string
	Shard            int
	NodeID           string
	RelocatingNodeID string
	Primary          bool
	State            ShardState
	AllocationID     string
}

// Assigned returns true if the copy is allocated to a node.
func (r ShardRouting) Assigned() bool {
	return r.NodeID != ""
}

// Active returns true if the copy can serve requests.
func (r ShardRouting) Active() bool {
	return r.Assigned() && (r.State == ShardStarted || r.State == ShardRelocating)
}

// IndexRoutingTable maps shard numbers of one index to their copies.
type IndexRoutingTable struct {
	Index  string
	Shards map[int][]ShardRouting
}

// RoutingTable maps index names to their routing tables.
type RoutingTable struct {
	Indices map[string]IndexRoutingTable
}

// State is an immutable snapshot of the cluster: metadata and shard routing
// at a particular version. States are never modified after they are built,
// use Builder to derive a new one.
type State struct {
	Version     uint64
	ClusterUUID string
	Metadata    Metadata
	Routing     RoutingTable
}

// Empty returns the initial state of a cluster at version zero.
func Empty(clusterUUID string) *State {
	return &State{
		ClusterUUID: clusterUUID,
		Metadata: Metadata{
			Indices:  make(map[string]IndexMetadata),
			Settings: make(map[string]string),
		},
		Routing: RoutingTable{
			Indices: make(map[string]IndexRoutingTable),
		},
	}
}

// Index returns the metadata of the index with the given name.
func (s *State) Index(name string) (IndexMetadata, bool) {
	meta, ok := s.Metadata.Indices[name]
	return meta, ok
}

// IndexNames returns the names of all indices in ascending order.
func (s *State) IndexNames() []string {
	names := maps.Keys(s.Metadata.Indices)
	slices.Sort(names)

	return names
}

// ShardNumbers returns the shard numbers of the index in ascending order.
func (s *State) ShardNumbers(index string) []int {
	table, ok := s.Routing.Indices[index]
	if !ok {
		return nil
	}

	shards := maps.Keys(table.Shards)
	slices.Sort(shards)

	return shards
}

// Copies returns a copy of the shard routing entries of the given shard.
func (s *State) Copies(index string, shard int) []ShardRouting {
	table, ok := s.Routing.Indices[index]
	if !ok {
		return nil
	}

	return slices.Clone(table.Shards[shard])
}

// WithVersion returns a shallow copy of the state with a different version.
// The copy shares all tables with the original, which is safe because states
// are never modified in place.
func (s *State) WithVersion(version uint64) *State {
	next := *s
	next.Version = version

	return &next
}

// Equal returns true if both states have the same content. Versions are not
// compared, so a state derived from another one without any modifications is
// considered equal to it.
func Equal(a, b *State) bool {
	if a == b {
		return true
	}

	if a == nil || b == nil {
		return false
	}

	return slices.Equal(appendContent(nil, a), appendContent(nil, b))
}
