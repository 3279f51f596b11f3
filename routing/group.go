package routing

import (
	"sort"
	"strings"

	"golang.org/x/exp/slices"
)

// ShardIteratorGroup holds the copies of one logical shard in the order they
// should be tried. The group keeps a cursor, so a caller can fall back to the
// next copy when a request to the current one fails.
type ShardIteratorGroup struct {
	shardID      ShardID
	clusterAlias string
	targets      []ShardTarget
	pos          int
}

func NewShardIteratorGroup(shardID ShardID, clusterAlias string, targets []ShardTarget) ShardIteratorGroup {
	return ShardIteratorGroup{
		shardID:      shardID,
		clusterAlias: clusterAlias,
		targets:      slices.Clone(targets),
	}
}

func (g *ShardIteratorGroup) ShardID() ShardID {
	return g.shardID
}

func (g *ShardIteratorGroup) ClusterAlias() string {
	return g.clusterAlias
}

// Targets returns all copies of the shard, regardless of the cursor.
func (g *ShardIteratorGroup) Targets() []ShardTarget {
	return slices.Clone(g.targets)
}

// Size returns the number of copies in the group.
func (g *ShardIteratorGroup) Size() int {
	return len(g.targets)
}

// Empty returns true if the shard has no copy to send a request to.
func (g *ShardIteratorGroup) Empty() bool {
	return len(g.targets) == 0
}

// Next returns the next copy to try.
func (g *ShardIteratorGroup) Next() (ShardTarget, bool) {
	if g.pos >= len(g.targets) {
		return ShardTarget{}, false
	}

	t := g.targets[g.pos]
	g.pos++

	return t, true
}

// Remaining returns the number of copies not yet returned by Next.
func (g *ShardIteratorGroup) Remaining() int {
	return len(g.targets) - g.pos
}

func (g *ShardIteratorGroup) Reset() {
	g.pos = 0
}

// CompareGroups orders groups by shard ID. Groups of the same shard coming
// from different clusters are ordered by cluster alias.
func CompareGroups(a, b *ShardIteratorGroup) int {
	if c := CompareShardIDs(a.shardID, b.shardID); c != 0 {
		return c
	}

	return strings.Compare(a.clusterAlias, b.clusterAlias)
}

// GroupSet is the immutable, sorted set of shard groups a scatter-gather
// request fans out to.
type GroupSet struct {
	groups []ShardIteratorGroup
}

func NewGroupSet(groups []ShardIteratorGroup) *GroupSet {
	sorted := make([]ShardIteratorGroup, len(groups))
	for i := range groups {
		sorted[i] = groups[i]
		sorted[i].pos = 0
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return CompareGroups(&sorted[i], &sorted[j]) < 0
	})

	return &GroupSet{groups: sorted}
}

// Size returns the number of logical shards in the set.
func (s *GroupSet) Size() int {
	return len(s.groups)
}

// TotalSizeWithOneForEmpty returns the number of responses to expect: one per
// copy, and one for every shard that has no copies at all, so that callers
// never wait for a shard that cannot answer.
func (s *GroupSet) TotalSizeWithOneForEmpty() int {
	total := 0

	for i := range s.groups {
		if n := s.groups[i].Size(); n > 0 {
			total += n
		} else {
			total++
		}
	}

	return total
}

// Unavailable returns the shards that have no copy to query.
func (s *GroupSet) Unavailable() []ShardID {
	var ids []ShardID

	for i := range s.groups {
		if s.groups[i].Empty() {
			ids = append(ids, s.groups[i].shardID)
		}
	}

	return ids
}

// Iterator returns a new iterator over the groups. Every iterator yields its
// own copy of each group, so traversals never affect each other.
func (s *GroupSet) Iterator() *GroupIterator {
	return &GroupIterator{groups: s.groups}
}

type GroupIterator struct {
	groups []ShardIteratorGroup
	pos    int
}

func (it *GroupIterator) Next() (*ShardIteratorGroup, bool) {
	if it.pos >= len(it.groups) {
		return nil, false
	}

	g := it.groups[it.pos]
	it.pos++

	return &g, true
}
