package routing

import (
	"errors"
	"fmt"

	"github.com/twmb/murmur3"
	"golang.org/x/exp/slices"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/maxpoletaev/shardcoord/internal/protoio"
)

var ErrAliasAndPrefix = errors.New("cluster alias and index prefix are mutually exclusive")

// targetWire is the part of a target that is sent to other nodes and takes
// part in equality.
type targetWire struct {
	nodeID       string
	shardID      ShardID
	clusterAlias string
	indexPrefix  string
}

// targetLocal is request context that never leaves the process.
type targetLocal struct {
	originalIndices []string
}

// ShardTarget is one physical copy of a shard on one node. A target with an
// empty node ID means the shard has no assigned copy.
type ShardTarget struct {
	wire  targetWire
	local targetLocal
}

// NewShardTarget creates a target. The index prefix equals the cluster alias
// for remote targets, and may be overridden only for local ones.
func NewShardTarget(nodeID string, shardID ShardID, clusterAlias, indexPrefix string, originalIndices ...string) (ShardTarget, error) {
	if clusterAlias != "" && indexPrefix != "" {
		return ShardTarget{}, fmt.Errorf("%w: alias %q, prefix %q", ErrAliasAndPrefix, clusterAlias, indexPrefix)
	}

	if clusterAlias != "" {
		indexPrefix = clusterAlias
	}

	return ShardTarget{
		wire: targetWire{
			nodeID:       nodeID,
			shardID:      shardID,
			clusterAlias: clusterAlias,
			indexPrefix:  indexPrefix,
		},
		local: targetLocal{
			originalIndices: slices.Clone(originalIndices),
		},
	}, nil
}

func (t ShardTarget) NodeID() string       { return t.wire.nodeID }
func (t ShardTarget) ShardID() ShardID     { return t.wire.shardID }
func (t ShardTarget) ClusterAlias() string { return t.wire.clusterAlias }
func (t ShardTarget) IndexPrefix() string  { return t.wire.indexPrefix }

// OriginalIndices returns the index expressions of the request the target was
// resolved from.
func (t ShardTarget) OriginalIndices() []string {
	return slices.Clone(t.local.originalIndices)
}

// Unassigned returns true if the target does not point to any node.
func (t ShardTarget) Unassigned() bool {
	return t.wire.nodeID == ""
}

// FullyQualifiedIndexName returns the index name prefixed with the index
// prefix, e.g. "remote:logs", so that merged results can be attributed to the
// cluster they came from.
func (t ShardTarget) FullyQualifiedIndexName() string {
	if t.wire.indexPrefix == "" {
		return t.wire.shardID.Index
	}

	return t.wire.indexPrefix + ":" + t.wire.shardID.Index
}

// Equal compares the wire fields of both targets.
func (t ShardTarget) Equal(other ShardTarget) bool {
	return t.wire == other.wire
}

// Hash is consistent with Equal.
func (t ShardTarget) Hash() uint64 {
	return murmur3.Sum64(t.AppendWire(nil))
}

func (t ShardTarget) String() string {
	node := t.wire.nodeID
	if node == "" {
		node = "<unassigned>"
	}

	return fmt.Sprintf("[%s]%s[%d]", node, t.FullyQualifiedIndexName(), t.wire.shardID.Shard)
}

const (
	fieldTargetNode   protowire.Number = 1
	fieldTargetIndex  protowire.Number = 2
	fieldTargetShard  protowire.Number = 3
	fieldTargetAlias  protowire.Number = 4
	fieldTargetPrefix protowire.Number = 5
)

// AppendWire appends the wire encoding of the target. Local fields are not
// encoded.
func (t ShardTarget) AppendWire(b []byte) []byte {
	b = protoio.AppendString(b, fieldTargetNode, t.wire.nodeID)
	b = protoio.AppendString(b, fieldTargetIndex, t.wire.shardID.Index)
	b = protoio.AppendUint(b, fieldTargetShard, uint64(t.wire.shardID.Shard))
	b = protoio.AppendString(b, fieldTargetAlias, t.wire.clusterAlias)
	b = protoio.AppendString(b, fieldTargetPrefix, t.wire.indexPrefix)

	return b
}

// DecodeShardTarget decodes a target produced by AppendWire.
func DecodeShardTarget(data []byte) (ShardTarget, error) {
	var w targetWire

	err := protoio.Walk(data, func(f protoio.Field) (err error) {
		switch f.Num {
		case fieldTargetNode:
			w.nodeID, err = f.String()
		case fieldTargetIndex:
			w.shardID.Index, err = f.String()
		case fieldTargetShard:
			w.shardID.Shard, err = f.Int()
		case fieldTargetAlias:
			w.clusterAlias, err = f.String()
		case fieldTargetPrefix:
			w.indexPrefix, err = f.String()
		}

		return err
	})

	if err != nil {
		return ShardTarget{}, fmt.Errorf("decode shard target: %w", err)
	}

	if w.clusterAlias != "" && w.indexPrefix != w.clusterAlias {
		return ShardTarget{}, fmt.Errorf("decode shard target: %w", ErrAliasAndPrefix)
	}

	return ShardTarget{wire: w}, nil
}
