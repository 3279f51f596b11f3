package routing

import (
	"fmt"
	"strings"

	"github.com/twmb/murmur3"
)

// ShardID identifies a logical shard regardless of where its copies live.
type ShardID struct {
	Index string
	Shard int
}

func (id ShardID) String() string {
	return fmt.Sprintf("[%s][%d]", id.Index, id.Shard)
}

// CompareShardIDs orders shards by index name, then by shard number.
func CompareShardIDs(a, b ShardID) int {
	if c := strings.Compare(a.Index, b.Index); c != 0 {
		return c
	}

	switch {
	case a.Shard < b.Shard:
		return -1
	case a.Shard > b.Shard:
		return 1
	default:
		return 0
	}
}

// ShardForKey returns the shard a document with the given routing key
// belongs to.
func ShardForKey(numShards int, key string) int {
	if numShards <= 0 {
		return 0
	}

	return int(murmur3.StringSum32(key) % uint32(numShards))
}
