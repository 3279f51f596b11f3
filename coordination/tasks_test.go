package coordination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpoletaev/shardcoord/clusterstate"
)

func staticNodes(ids ...string) NodeLister {
	return func() []string { return ids }
}

func TestCreateIndex(t *testing.T) {
	meta := clusterstate.IndexMetadata{Name: "logs", NumberOfShards: 2, NumberOfReplicas: 1}

	state, err := CreateIndex(meta, staticNodes("a", "b"))(clusterstate.Empty("uuid"))
	require.NoError(t, err)

	_, ok := state.Index("logs")
	require.True(t, ok)

	for _, shard := range state.ShardNumbers("logs") {
		copies := state.Copies("logs", shard)
		require.Len(t, copies, 2)
		assert.NotEqual(t, copies[0].NodeID, copies[1].NodeID)

		for _, c := range copies {
			assert.True(t, c.Active())
		}
	}

	_, err = CreateIndex(meta, staticNodes("a"))(state)
	require.ErrorIs(t, err, clusterstate.ErrIndexExists)

	_, err = CreateIndex(clusterstate.IndexMetadata{Name: "bad"}, staticNodes("a"))(state)
	require.ErrorIs(t, err, clusterstate.ErrInvalidIndex)
}

func TestDeleteIndex(t *testing.T) {
	state, err := CreateIndex(clusterstate.IndexMetadata{Name: "logs", NumberOfShards: 1}, staticNodes("a"))(clusterstate.Empty("uuid"))
	require.NoError(t, err)

	next, err := DeleteIndex("logs")(state)
	require.NoError(t, err)

	_, ok := next.Index("logs")
	assert.False(t, ok)
	assert.Empty(t, next.ShardNumbers("logs"))

	_, err = DeleteIndex("logs")(next)
	require.ErrorIs(t, err, clusterstate.ErrIndexNotFound)
}

func TestReroute(t *testing.T) {
	state, err := CreateIndex(clusterstate.IndexMetadata{Name: "logs", NumberOfShards: 1, NumberOfReplicas: 1}, staticNodes("a", "b"))(clusterstate.Empty("uuid"))
	require.NoError(t, err)

	same, err := Reroute(staticNodes("a", "b"))(state)
	require.NoError(t, err)
	assert.Same(t, state, same)

	next, err := Reroute(staticNodes("a", "c"))(state)
	require.NoError(t, err)

	for _, c := range next.Copies("logs", 0) {
		assert.NotEqual(t, "b", c.NodeID)
		assert.True(t, c.Active())
	}
}

func TestSeedIndices(t *testing.T) {
	seed := []clusterstate.IndexMetadata{
		{Name: "logs", NumberOfShards: 1},
		{Name: "metrics", NumberOfShards: 3},
	}

	state, err := SeedIndices(seed, staticNodes("a"))(clusterstate.Empty("uuid"))
	require.NoError(t, err)
	assert.Equal(t, []string{"logs", "metrics"}, state.IndexNames())

	again, err := SeedIndices(seed, staticNodes("a"))(state)
	require.NoError(t, err)
	assert.Same(t, state, again)
}
