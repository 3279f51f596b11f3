package coordination

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/maxpoletaev/shardcoord/clusterstate"
	"github.com/maxpoletaev/shardcoord/internal/heap"
	"github.com/maxpoletaev/shardcoord/metrics"
	"github.com/maxpoletaev/shardcoord/publication"
)

// Publisher sends a new state to the cluster. It calls onCommit once the
// state is committed, and returns when every node has responded or timed out.
type Publisher interface {
	Publish(ctx context.Context, state *clusterstate.State, onCommit func()) (publication.Outcome, error)
}

type Config struct {
	Store     *clusterstate.Store
	Publisher Publisher
	Metrics   *metrics.Metrics
	Logger    kitlog.Logger
}

type entry struct {
	task      Task
	seq       uint64
	submitted time.Time
	result    chan Result
}

func (e *entry) done(res Result) {
	e.result <- res
}

func higherPriority(a, b *entry) bool {
	if a.task.Priority != b.task.Priority {
		return a.task.Priority > b.task.Priority
	}

	return a.seq < b.seq
}

// Queue serializes all changes of the cluster state. Tasks can be submitted
// concurrently, but only one of them is applied at a time, and the next task
// is not started until the publication of the previous one is finished.
type Queue struct {
	mut      sync.Mutex
	tasks    *heap.Heap[*entry]
	seq      uint64
	shutdown bool
	wake     chan struct{}
	stop     chan struct{}

	store     *clusterstate.Store
	publisher Publisher
	metrics   *metrics.Metrics
	logger    kitlog.Logger
}

func NewQueue(conf Config) *Queue {
	if conf.Logger == nil {
		conf.Logger = kitlog.NewNopLogger()
	}

	return &Queue{
		tasks:     heap.New[*entry](higherPriority),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		store:     conf.Store,
		publisher: conf.Publisher,
		metrics:   conf.Metrics,
		logger:    conf.Logger,
	}
}

// Submit adds the task to the queue. The returned channel receives exactly one
// result. A task submitted after Shutdown fails immediately.
func (q *Queue) Submit(task Task) <-chan Result {
	e := &entry{
		task:      task,
		submitted: time.Now(),
		result:    make(chan Result, 1),
	}

	q.mut.Lock()
	defer q.mut.Unlock()

	if q.shutdown {
		e.done(Result{Outcome: OutcomeFailure, Err: ErrQueueShutdown})
		return e.result
	}

	q.seq++
	e.seq = q.seq

	q.tasks.Push(e)
	q.metrics.SetQueueLength(q.tasks.Len())

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return e.result
}

func (q *Queue) next() (*entry, bool) {
	q.mut.Lock()
	defer q.mut.Unlock()

	if q.tasks.Len() == 0 {
		return nil, false
	}

	e := q.tasks.Pop()
	q.metrics.SetQueueLength(q.tasks.Len())

	return e, true
}

// Run drains the queue until the context is cancelled or the queue is shut
// down. Must be called from a single goroutine.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-q.stop:
			return nil
		case <-ctx.Done():
			q.Shutdown()
			return ctx.Err()
		default:
		}

		e, ok := q.next()
		if ok {
			q.process(ctx, e)
			continue
		}

		select {
		case <-q.wake:
		case <-q.stop:
			return nil
		case <-ctx.Done():
			q.Shutdown()
			return ctx.Err()
		}
	}
}

// Shutdown fails all pending tasks and rejects new ones. A task that is being
// processed is not interrupted.
func (q *Queue) Shutdown() {
	q.mut.Lock()
	defer q.mut.Unlock()

	if q.shutdown {
		return
	}

	q.shutdown = true
	close(q.stop)

	for _, e := range q.tasks.Drain() {
		e.done(Result{Outcome: OutcomeFailure, Err: ErrQueueShutdown})
	}

	q.metrics.SetQueueLength(0)
}

// Pending returns the tasks waiting in the queue, in the order they are going
// to be drained.
func (q *Queue) Pending() []PendingTask {
	q.mut.Lock()
	items := q.tasks.Items()
	q.mut.Unlock()

	sort.Slice(items, func(i, j int) bool {
		return higherPriority(items[i], items[j])
	})

	now := time.Now()
	pending := make([]PendingTask, 0, len(items))

	for _, e := range items {
		pending = append(pending, PendingTask{
			Source:      e.task.Source,
			Priority:    e.task.Priority,
			InsertedAt:  e.submitted,
			TimeInQueue: now.Sub(e.submitted),
		})
	}

	return pending
}

func (q *Queue) apply(task Task, state *clusterstate.State) (next *clusterstate.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return task.Apply(state)
}

func (q *Queue) finish(e *entry, res Result) {
	q.metrics.ObserveTask(res.Outcome.String())
	e.done(res)
}

func (q *Queue) process(ctx context.Context, e *entry) {
	logger := kitlog.With(q.logger, "source", e.task.Source, "priority", e.task.Priority)
	prev := q.store.Load()

	if e.task.Timeout > 0 && time.Since(e.submitted) > e.task.Timeout {
		level.Warn(logger).Log("msg", "task timed out before execution", "timeout", e.task.Timeout)
		q.finish(e, Result{Outcome: OutcomeFailure, Err: ErrTaskTimeout, Version: prev.Version})

		return
	}

	next, err := q.apply(e.task, prev)
	if err != nil {
		level.Warn(logger).Log("msg", "failed to apply task", "err", err)
		q.finish(e, Result{Outcome: OutcomeFailure, Err: &TaskError{Source: e.task.Source, Err: err}, Version: prev.Version})

		return
	}

	if next == nil || clusterstate.Equal(prev, next) {
		level.Debug(logger).Log("msg", "task did not change the state")
		q.finish(e, Result{Outcome: OutcomeSuccess, Version: prev.Version})

		return
	}

	next = next.WithVersion(prev.Version + 1)
	committed := false

	onCommit := func() {
		if err := q.store.Swap(next); err != nil {
			level.Error(logger).Log("msg", "failed to store committed state", "err", err)
		}

		committed = true
		q.metrics.SetStateVersion(next.Version)

		if !e.task.AckAware {
			q.finish(e, Result{Outcome: OutcomeSuccess, Version: next.Version})
		}
	}

	out, err := q.publisher.Publish(ctx, next, onCommit)
	q.metrics.ObservePublication(out.Committed, len(out.Nacked), len(out.Failed), out.Took)

	if err != nil && !committed {
		level.Error(logger).Log("msg", "failed to publish state", "version", next.Version, "err", err)
		q.finish(e, Result{Outcome: OutcomeFailure, Err: err, Version: prev.Version, Nacked: out.Nacked, Failed: out.Failed})

		return
	}

	level.Info(logger).Log(
		"msg", "published state",
		"version", next.Version,
		"acked", len(out.Acked),
		"nacked", len(out.Nacked),
		"failed", len(out.Failed),
		"took", out.Took,
	)

	if !e.task.AckAware {
		return
	}

	if out.AllAcked {
		q.finish(e, Result{Outcome: OutcomeAcked, Version: next.Version})
		return
	}

	q.finish(e, Result{
		Outcome: OutcomeAckTimeout,
		Err:     out.Err(),
		Version: next.Version,
		Nacked:  out.Nacked,
		Failed:  out.Failed,
	})
}
