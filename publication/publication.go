package publication

import (
	"context"
	"errors"
	"fmt"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/exp/slices"

	"github.com/maxpoletaev/shardcoord/clusterstate"
	"github.com/maxpoletaev/shardcoord/internal/multierror"
	"github.com/maxpoletaev/shardcoord/membership"
	"github.com/maxpoletaev/shardcoord/nodeapi"
)

var (
	ErrNotCommitted = errors.New("publication not committed")
	ErrAckTimeout   = errors.New("node did not acknowledge the publication")
)

// NackError is reported for a node that has explicitly rejected the state.
type NackError struct {
	Node   membership.NodeID
	Reason string
}

func (e *NackError) Error() string {
	return fmt.Sprintf("rejected by %s: %s", e.Node, e.Reason)
}

// Outcome is the final result of a publication.
type Outcome struct {
	Version   uint64
	Committed bool
	AllAcked  bool
	Acked     []membership.NodeID
	Nacked    map[membership.NodeID]string
	Failed    map[membership.NodeID]string
	Took      time.Duration
}

// Err returns the per-node errors of a publication that has not been
// acknowledged by everyone, or nil.
func (o *Outcome) Err() error {
	errs := multierror.New[membership.NodeID]()

	for id, reason := range o.Failed {
		errs.Add(id, fmt.Errorf("%w: %s: %s", ErrAckTimeout, id, reason))
	}

	for id, reason := range o.Nacked {
		errs.Add(id, &NackError{Node: id, Reason: reason})
	}

	return errs.Ret()
}

type Config struct {
	Self      membership.NodeID
	Nodes     []membership.NodeID
	State     *clusterstate.State
	Quorum    Quorum
	Timeout   time.Duration
	Transport Transport
	Tracker   *Tracker
	Logger    kitlog.Logger

	// OnCommit is called once, as soon as the quorum is reached, before the
	// publication waits for the remaining nodes.
	OnCommit func()
}

// Publication sends one state version to every node and collects the
// responses until everyone has answered or the timeout expires.
type Publication struct {
	conf      Config
	collector *AckCollector
}

func New(conf Config) *Publication {
	if conf.Logger == nil {
		conf.Logger = kitlog.NewNopLogger()
	}

	if conf.Tracker == nil {
		conf.Tracker = NewTracker()
	}

	return &Publication{
		conf:      conf,
		collector: NewAckCollector(conf.Nodes),
	}
}

// Collector exposes the bookkeeping of the publication.
func (p *Publication) Collector() *AckCollector {
	return p.collector
}

func (p *Publication) send(ctx context.Context, id membership.NodeID, data []byte) {
	var (
		version = p.conf.State.Version
		logger  = kitlog.With(p.conf.Logger, "node_id", id, "version", version)
	)

	req := &nodeapi.PublishRequest{
		Version: version,
		Full:    p.conf.Tracker.NeedsFull(id, version),
		State:   data,
	}

	resp, err := p.conf.Transport.Publish(ctx, id, req)

	switch {
	case err != nil:
		reason := err.Error()
		if ctx.Err() != nil {
			reason = ReasonTimeout
		}

		p.conf.Tracker.Reset(id)

		if p.collector.Fail(id, reason) {
			level.Warn(logger).Log("msg", "failed to publish", "err", err)
		}
	case resp.Outcome == nodeapi.OutcomeAck && resp.Version == version:
		if p.collector.Ack(id) {
			p.conf.Tracker.Acked(id, version)
		}
	default:
		reason := resp.Reason
		if resp.Outcome == nodeapi.OutcomeAck {
			reason = fmt.Sprintf("acknowledged version %d instead of %d", resp.Version, version)
		}

		p.conf.Tracker.Reset(id)

		if p.collector.Nack(id, reason) {
			level.Warn(logger).Log("msg", "publication rejected", "reason", reason)
		}
	}
}

// Run publishes the state and blocks until every node has responded or the
// timeout expires. Nodes that have not responded by then are failed with a
// timeout. A publication that has not reached the quorum returns
// ErrNotCommitted along with the outcome.
func (p *Publication) Run(ctx context.Context) (Outcome, error) {
	var (
		started = time.Now()
		version = p.conf.State.Version
		total   = len(p.conf.Nodes)
	)

	data, err := clusterstate.Marshal(p.conf.State)
	if err != nil {
		return Outcome{Version: version}, fmt.Errorf("failed to encode state: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.conf.Timeout)
	defer cancel()

	// Senders never block on the channel, so that nodes still in flight after
	// the timeout do not hold the publication.
	responses := make(chan struct{}, total)

	for _, id := range p.conf.Nodes {
		go func(id membership.NodeID) {
			p.send(ctx, id, data)
			responses <- struct{}{}
		}(id)
	}

	committed := false

	commit := func() {
		if !committed && p.collector.Satisfies(p.conf.Quorum, p.conf.Self, total) {
			committed = true

			if p.conf.OnCommit != nil {
				p.conf.OnCommit()
			}
		}
	}

	for !p.collector.Done() {
		select {
		case <-responses:
			commit()
		case <-ctx.Done():
			reason := ReasonTimeout
			if errors.Is(ctx.Err(), context.Canceled) {
				reason = ReasonCanceled
			}

			if expired := p.collector.Expire(reason); len(expired) > 0 {
				level.Warn(p.conf.Logger).Log("msg", "publication timed out", "version", version, "nodes", fmt.Sprint(expired))
			}
		}
	}

	// A response might have completed the collector between the last receive
	// and the loop condition.
	commit()
	p.collector.Close()

	out := Outcome{
		Version:   version,
		Committed: committed,
		Acked:     p.collector.Acked(),
		Nacked:    p.collector.Nacked(),
		Failed:    p.collector.Failed(),
		Took:      time.Since(started),
	}

	out.AllAcked = len(out.Acked) == total

	if !committed {
		// Some nodes may have applied a version that is going to be published
		// again with different content.
		p.conf.Tracker.ResetAll()

		return out, fmt.Errorf("%w: version %d acknowledged by %d of %d nodes", ErrNotCommitted, version, len(out.Acked), total)
	}

	return out, nil
}

// Publisher creates a publication for every new state, publishing it to the
// current members of the cluster.
type Publisher struct {
	self      membership.NodeID
	members   func() []membership.NodeID
	transport Transport
	tracker   *Tracker
	quorum    Quorum
	timeout   time.Duration
	logger    kitlog.Logger
}

type PublisherConfig struct {
	Self      membership.NodeID
	Members   func() []membership.NodeID
	Transport Transport
	Quorum    Quorum
	Timeout   time.Duration
	Logger    kitlog.Logger
}

func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		Quorum:  QuorumSelf,
		Timeout: 30 * time.Second,
		Logger:  kitlog.NewNopLogger(),
	}
}

func NewPublisher(conf PublisherConfig) *Publisher {
	if conf.Logger == nil {
		conf.Logger = kitlog.NewNopLogger()
	}

	return &Publisher{
		self:      conf.Self,
		members:   conf.Members,
		transport: conf.Transport,
		tracker:   NewTracker(),
		quorum:    conf.Quorum,
		timeout:   conf.Timeout,
		logger:    conf.Logger,
	}
}

// Tracker returns the per-node acknowledgement tracker.
func (p *Publisher) Tracker() *Tracker {
	return p.tracker
}

func (p *Publisher) Publish(ctx context.Context, state *clusterstate.State, onCommit func()) (Outcome, error) {
	nodes := slices.Clone(p.members())

	hasSelf := false
	for _, id := range nodes {
		if id == p.self {
			hasSelf = true
			break
		}
	}

	if !hasSelf {
		nodes = append(nodes, p.self)
	}

	level.Debug(p.logger).Log("msg", "publishing state", "version", state.Version, "nodes", len(nodes))

	pub := New(Config{
		Self:      p.self,
		Nodes:     nodes,
		State:     state,
		Quorum:    p.quorum,
		Timeout:   p.timeout,
		Transport: p.transport,
		Tracker:   p.tracker,
		Logger:    p.logger,
		OnCommit:  onCommit,
	})

	return pub.Run(ctx)
}
