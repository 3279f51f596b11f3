package publication

import (
	"fmt"

	"github.com/maxpoletaev/shardcoord/internal/set"
	"github.com/maxpoletaev/shardcoord/membership"
)

// Quorum defines when a publication is committed, that is when the new state
// becomes the current one on the publishing node.
type Quorum uint8

const (
	// QuorumSelf commits as soon as the publishing node has applied the state.
	QuorumSelf Quorum = iota + 1

	// QuorumMajority needs acknowledgement from N/2+1 of the nodes the state
	// was published to. Nacks count against the majority.
	QuorumMajority
)

func ParseQuorum(s string) (Quorum, error) {
	switch s {
	case "self":
		return QuorumSelf, nil
	case "majority":
		return QuorumMajority, nil
	default:
		return 0, fmt.Errorf("unknown quorum policy: %q", s)
	}
}

func (q Quorum) String() string {
	switch q {
	case QuorumSelf:
		return "self"
	case QuorumMajority:
		return "majority"
	default:
		return ""
	}
}

// Satisfied returns true if the acknowledgements are enough to commit a
// publication to total nodes.
func (q Quorum) Satisfied(acked set.Set[membership.NodeID], self membership.NodeID, total int) bool {
	switch q {
	case QuorumSelf:
		return acked.Has(self)
	case QuorumMajority:
		return acked.Len() >= total/2+1
	default:
		panic(fmt.Sprintf("unknown quorum policy: %d", q))
	}
}
