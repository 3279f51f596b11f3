package coordination

import (
	"errors"
	"fmt"
	"time"

	"github.com/maxpoletaev/shardcoord/clusterstate"
	"github.com/maxpoletaev/shardcoord/membership"
)

var (
	ErrQueueShutdown = errors.New("task queue is shut down")
	ErrTaskTimeout   = errors.New("task timed out in the queue")
)

// ApplyFunc computes a new cluster state from the current one. Returning the
// given state, an equal one, or nil means there is nothing to publish. The
// version of the returned state is ignored, the queue assigns the next one.
type ApplyFunc func(state *clusterstate.State) (*clusterstate.State, error)

type Task struct {
	// Source describes where the task comes from, for logging and the admin API.
	Source   string
	Priority Priority

	// Timeout limits how long the task may wait in the queue before it is
	// drained. Zero means no limit.
	Timeout time.Duration

	// AckAware tasks are completed once every node has responded to the
	// publication rather than once it is committed.
	AckAware bool

	Apply ApplyFunc
}

type Outcome int

const (
	// OutcomeSuccess means the state was committed, or there was nothing to
	// publish.
	OutcomeSuccess Outcome = iota + 1

	// OutcomeFailure means no state was published.
	OutcomeFailure

	// OutcomeAcked means every node has acknowledged the state.
	OutcomeAcked

	// OutcomeAckTimeout means the state was committed, but some nodes have
	// rejected it or did not respond in time.
	OutcomeAckTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeAcked:
		return "acked"
	case OutcomeAckTimeout:
		return "ack_timeout"
	default:
		return ""
	}
}

// Result is delivered exactly once for every submitted task.
type Result struct {
	Outcome Outcome
	Err     error

	// Version of the cluster state once the task is done.
	Version uint64

	Nacked map[membership.NodeID]string
	Failed map[membership.NodeID]string
}

// TaskError is returned when the task itself has failed to compute the state.
type TaskError struct {
	Source string
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Source, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// PendingTask describes a task waiting in the queue.
type PendingTask struct {
	Source      string
	Priority    Priority
	InsertedAt  time.Time
	TimeInQueue time.Duration
}
