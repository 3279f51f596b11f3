package membership

type NodeID string

type Status uint8

const (
	// StatusHealthy is the status of a healthy node.
	StatusHealthy Status = iota + 1

	// StatusUnhealthy is the status of a node that has failed a health check.
	StatusUnhealthy

	// StatusLeft is the status of a node that has left the cluster.
	StatusLeft
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	case StatusLeft:
		return "left"
	default:
		return ""
	}
}

// Node represents a single cluster member.
type Node struct {
	ID     NodeID
	Name   string
	Addr   string
	Status Status
}

// IsReachable returns true if the node is reachable.
func (n *Node) IsReachable() bool {
	return n.Status == StatusHealthy
}
