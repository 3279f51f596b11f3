package membership

var (
	_ ClusterEvent = &NodeJoined{}
	_ ClusterEvent = &NodeLeft{}
	_ ClusterEvent = &NodeUpdated{}
)

type ClusterEvent interface {
	isClusterEvent()
}

type NodeJoined struct {
	Node Node
}

func (*NodeJoined) isClusterEvent() {}

type NodeLeft struct {
	ID NodeID
}

func (*NodeLeft) isClusterEvent() {}

type NodeUpdated struct {
	ID     NodeID
	Status Status
}

func (*NodeUpdated) isClusterEvent() {}

// Listener is notified about changes of the member list. Listeners are called
// synchronously and must not block.
type Listener func(ClusterEvent)
