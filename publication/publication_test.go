package publication

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/maxpoletaev/shardcoord/clusterstate"
	"github.com/maxpoletaev/shardcoord/internal/set"
	"github.com/maxpoletaev/shardcoord/membership"
	"github.com/maxpoletaev/shardcoord/nodeapi"
	nodeapimock "github.com/maxpoletaev/shardcoord/nodeapi/mock"
)

type nodeBehavior func(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error)

func ack(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error) {
	return nodeapi.Ack(req.Version), nil
}

func nack(reason string) nodeBehavior {
	return func(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error) {
		return nodeapi.Nack(req.Version, reason), nil
	}
}

func hang(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func unreachable(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error) {
	return nil, errors.New("connection refused")
}

type fakeTransport struct {
	mut      sync.Mutex
	nodes    map[membership.NodeID]nodeBehavior
	requests map[membership.NodeID][]*nodeapi.PublishRequest
}

func newFakeTransport(nodes map[membership.NodeID]nodeBehavior) *fakeTransport {
	return &fakeTransport{
		nodes:    nodes,
		requests: make(map[membership.NodeID][]*nodeapi.PublishRequest),
	}
}

func (f *fakeTransport) Publish(ctx context.Context, id membership.NodeID, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error) {
	f.mut.Lock()
	f.requests[id] = append(f.requests[id], req)
	f.mut.Unlock()

	return f.nodes[id](ctx, req)
}

func (f *fakeTransport) lastRequest(id membership.NodeID) *nodeapi.PublishRequest {
	f.mut.Lock()
	defer f.mut.Unlock()

	reqs := f.requests[id]

	return reqs[len(reqs)-1]
}

func nextState(t *testing.T) *clusterstate.State {
	t.Helper()

	return clusterstate.NewBuilder(clusterstate.Empty("uuid")).
		PutIndex(clusterstate.IndexMetadata{Name: "idx", NumberOfShards: 1}).
		Build()
}

func TestPublication_Run(t *testing.T) {
	nodes := []membership.NodeID{"a", "b", "c"}

	tests := map[string]struct {
		quorum        Quorum
		behavior      map[membership.NodeID]nodeBehavior
		wantErr       error
		wantCommitted bool
		wantAllAcked  bool
		wantAcked     []membership.NodeID
		wantNacked    map[membership.NodeID]string
		wantFailed    map[membership.NodeID]string
	}{
		"AllAck": {
			quorum:        QuorumSelf,
			behavior:      map[membership.NodeID]nodeBehavior{"a": ack, "b": ack, "c": ack},
			wantCommitted: true,
			wantAllAcked:  true,
			wantAcked:     []membership.NodeID{"a", "b", "c"},
			wantNacked:    map[membership.NodeID]string{},
			wantFailed:    map[membership.NodeID]string{},
		},
		"NodeNeverResponds": {
			quorum:        QuorumSelf,
			behavior:      map[membership.NodeID]nodeBehavior{"a": ack, "b": ack, "c": hang},
			wantCommitted: true,
			wantAcked:     []membership.NodeID{"a", "b"},
			wantNacked:    map[membership.NodeID]string{},
			wantFailed:    map[membership.NodeID]string{"c": ReasonTimeout},
		},
		"NackDoesNotBlockCommit": {
			quorum:        QuorumSelf,
			behavior:      map[membership.NodeID]nodeBehavior{"a": ack, "b": nack("stale"), "c": unreachable},
			wantCommitted: true,
			wantAcked:     []membership.NodeID{"a"},
			wantNacked:    map[membership.NodeID]string{"b": "stale"},
			wantFailed:    map[membership.NodeID]string{"c": "connection refused"},
		},
		"MajorityReached": {
			quorum:        QuorumMajority,
			behavior:      map[membership.NodeID]nodeBehavior{"a": ack, "b": ack, "c": hang},
			wantCommitted: true,
			wantAcked:     []membership.NodeID{"a", "b"},
			wantNacked:    map[membership.NodeID]string{},
			wantFailed:    map[membership.NodeID]string{"c": ReasonTimeout},
		},
		"MajorityNotReached": {
			quorum:     QuorumMajority,
			behavior:   map[membership.NodeID]nodeBehavior{"a": ack, "b": nack("stale"), "c": hang},
			wantErr:    ErrNotCommitted,
			wantAcked:  []membership.NodeID{"a"},
			wantNacked: map[membership.NodeID]string{"b": "stale"},
			wantFailed: map[membership.NodeID]string{"c": ReasonTimeout},
		},
		"SelfRejects": {
			quorum:     QuorumSelf,
			behavior:   map[membership.NodeID]nodeBehavior{"a": nack("broken"), "b": ack, "c": ack},
			wantErr:    ErrNotCommitted,
			wantAcked:  []membership.NodeID{"b", "c"},
			wantNacked: map[membership.NodeID]string{"a": "broken"},
			wantFailed: map[membership.NodeID]string{},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var commits int32

			pub := New(Config{
				Self:      "a",
				Nodes:     nodes,
				State:     nextState(t),
				Quorum:    tt.quorum,
				Timeout:   100 * time.Millisecond,
				Transport: newFakeTransport(tt.behavior),
				OnCommit: func() {
					atomic.AddInt32(&commits, 1)
				},
			})

			out, err := pub.Run(context.Background())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantCommitted, out.Committed)
			assert.Equal(t, tt.wantAllAcked, out.AllAcked)
			assert.Equal(t, tt.wantAcked, out.Acked)
			assert.Equal(t, tt.wantNacked, out.Nacked)
			assert.Equal(t, tt.wantFailed, out.Failed)
			assert.Equal(t, tt.wantFailed, pub.Collector().Failed())
			assert.Empty(t, pub.Collector().Pending())

			wantCommits := int32(0)
			if tt.wantCommitted {
				wantCommits = 1
			}

			assert.Equal(t, wantCommits, atomic.LoadInt32(&commits))
		})
	}
}

func TestPublication_CommitBeforeTimeout(t *testing.T) {
	committed := make(chan time.Time, 1)
	started := time.Now()

	pub := New(Config{
		Self:      "a",
		Nodes:     []membership.NodeID{"a", "b"},
		State:     nextState(t),
		Quorum:    QuorumSelf,
		Timeout:   200 * time.Millisecond,
		Transport: newFakeTransport(map[membership.NodeID]nodeBehavior{"a": ack, "b": hang}),
		OnCommit: func() {
			committed <- time.Now()
		},
	})

	out, err := pub.Run(context.Background())
	require.NoError(t, err)
	require.True(t, out.Committed)

	at := <-committed
	assert.Less(t, at.Sub(started), 200*time.Millisecond, "commit must not wait for the slow node")
	assert.GreaterOrEqual(t, out.Took, 200*time.Millisecond, "publication waits for every node")

	outErr := out.Err()
	require.ErrorIs(t, outErr, ErrAckTimeout)
}

func TestPublication_FullResync(t *testing.T) {
	transport := newFakeTransport(map[membership.NodeID]nodeBehavior{"a": ack, "b": ack})
	tracker := NewTracker()
	state := nextState(t)

	run := func(s *clusterstate.State) {
		_, err := New(Config{
			Self:      "a",
			Nodes:     []membership.NodeID{"a", "b"},
			State:     s,
			Quorum:    QuorumSelf,
			Timeout:   time.Second,
			Transport: transport,
			Tracker:   tracker,
		}).Run(context.Background())
		require.NoError(t, err)
	}

	run(state)
	assert.True(t, transport.lastRequest("b").Full, "first publication to a node is a full one")

	run(state.WithVersion(2))
	assert.False(t, transport.lastRequest("b").Full)

	// Node b missed version 3.
	tracker.Reset("b")
	run(state.WithVersion(3))
	assert.True(t, transport.lastRequest("b").Full)
	assert.False(t, transport.lastRequest("a").Full)

	last, ok := tracker.LastAcked("b")
	require.True(t, ok)
	assert.Equal(t, uint64(3), last)
}

func TestPublication_Nack(t *testing.T) {
	pub := New(Config{
		Self:      "a",
		Nodes:     []membership.NodeID{"a", "b"},
		State:     nextState(t),
		Quorum:    QuorumSelf,
		Timeout:   time.Second,
		Transport: newFakeTransport(map[membership.NodeID]nodeBehavior{"a": ack, "b": nack("expected version 5")}),
	})

	out, err := pub.Run(context.Background())
	require.NoError(t, err)

	var nackErr *NackError
	require.ErrorAs(t, out.Err(), &nackErr)
	assert.Equal(t, membership.NodeID("b"), nackErr.Node)
	assert.Equal(t, "expected version 5", nackErr.Reason)
}

func TestPublisher_Publish(t *testing.T) {
	ctrl := gomock.NewController(t)

	remote := nodeapimock.NewMockClient(ctrl)
	remote.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error) {
			state, err := clusterstate.Unmarshal(req.State)
			if err != nil {
				return nil, err
			}

			return nodeapi.Ack(state.Version), nil
		},
	)

	local := nodeapimock.NewMockClient(ctrl)
	local.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nodeapi.Ack(1), nil)

	conf := membership.DefaultConfig()
	conf.NodeID = "a"
	cluster := membership.NewCluster(conf)
	cluster.Add(membership.Node{ID: "b", Addr: "127.0.0.1:3001"})

	remote.EXPECT().IsClosed().Return(false).AnyTimes()
	local.EXPECT().IsClosed().Return(false).AnyTimes()
	cluster.AddConn("a", local)
	cluster.AddConn("b", remote)

	pconf := DefaultPublisherConfig()
	pconf.Self = "a"
	pconf.Members = func() []membership.NodeID { return []membership.NodeID{"b"} }
	pconf.Transport = NewClusterTransport(cluster)

	out, err := NewPublisher(pconf).Publish(context.Background(), nextState(t), nil)
	require.NoError(t, err)
	assert.True(t, out.AllAcked)
	assert.Equal(t, []membership.NodeID{"a", "b"}, out.Acked, "self is always published to")
}

func TestPublisher_PublishKeepsMembersSlice(t *testing.T) {
	members := make([]membership.NodeID, 1, 4)
	members[0] = "b"

	transport := newFakeTransport(map[membership.NodeID]nodeBehavior{"a": ack, "b": ack})

	// No logger set on purpose.
	pub := NewPublisher(PublisherConfig{
		Self:      "a",
		Members:   func() []membership.NodeID { return members },
		Transport: transport,
		Quorum:    QuorumSelf,
		Timeout:   time.Second,
	})

	out, err := pub.Publish(context.Background(), nextState(t), nil)
	require.NoError(t, err)
	assert.True(t, out.AllAcked)
	assert.Equal(t, []membership.NodeID{"a", "b"}, out.Acked)

	assert.Equal(t, []membership.NodeID{"b"}, members)
	assert.Equal(t, membership.NodeID(""), members[:2][1], "backing array of the members slice is not written to")
}

func TestAckCollector(t *testing.T) {
	c := NewAckCollector([]membership.NodeID{"a", "b", "c", "d"})

	assert.True(t, c.Ack("a"))
	assert.False(t, c.Ack("a"), "node responds only once")
	assert.False(t, c.Nack("a", "late"))
	assert.True(t, c.Nack("b", "stale"))
	assert.True(t, c.Fail("c", "refused"))
	assert.False(t, c.Ack("x"), "unknown nodes are ignored")
	assert.False(t, c.Done())

	assert.Equal(t, []membership.NodeID{"d"}, c.Expire(ReasonTimeout))
	assert.True(t, c.Done())

	c.Close()
	assert.Nil(t, c.Expire(ReasonTimeout))

	assert.Equal(t, []membership.NodeID{"a"}, c.Acked())
	assert.Equal(t, map[membership.NodeID]string{"b": "stale"}, c.Nacked())
	assert.Equal(t, map[membership.NodeID]string{"c": "refused", "d": ReasonTimeout}, c.Failed())
}

func TestQuorum(t *testing.T) {
	acked := set.New[membership.NodeID]("b", "c")

	assert.False(t, QuorumSelf.Satisfied(acked, "a", 3))
	assert.True(t, QuorumSelf.Satisfied(set.New[membership.NodeID]("a"), "a", 3))
	assert.True(t, QuorumMajority.Satisfied(acked, "a", 3))
	assert.False(t, QuorumMajority.Satisfied(acked, "a", 4))

	for _, s := range []string{"self", "majority"} {
		q, err := ParseQuorum(s)
		require.NoError(t, err)
		assert.Equal(t, s, q.String())
	}

	_, err := ParseQuorum("all")
	require.Error(t, err)
}
