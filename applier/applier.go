package applier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/maxpoletaev/shardcoord/clusterstate"
	"github.com/maxpoletaev/shardcoord/nodeapi"
)

var ErrVersionConflict = errors.New("version conflict")

var _ nodeapi.PublishHandler = (*Applier)(nil)

type Config struct {
	// Initial is the state the node starts with, an empty state at version
	// zero unless given.
	Initial *clusterstate.State
	Logger  kitlog.Logger
}

func DefaultConfig() Config {
	return Config{
		Logger: kitlog.NewNopLogger(),
	}
}

// Applier is the member side of a publication. It accepts states strictly in
// version order and keeps the last applied one.
type Applier struct {
	mut       sync.Mutex
	store     *clusterstate.Store
	listeners []chan<- *clusterstate.State
	logger    kitlog.Logger
}

func New(conf Config) *Applier {
	if conf.Initial == nil {
		conf.Initial = clusterstate.Empty("")
	}

	if conf.Logger == nil {
		conf.Logger = kitlog.NewNopLogger()
	}

	return &Applier{
		store:  clusterstate.NewStore(conf.Initial),
		logger: conf.Logger,
	}
}

// State returns the last applied state.
func (a *Applier) State() *clusterstate.State {
	return a.store.Load()
}

// Store gives read access to the applied states, e.g. for the admin API of a
// node that is not publishing.
func (a *Applier) Store() *clusterstate.Store {
	return a.store
}

// Subscribe registers a channel that receives every applied state. Sends do
// not block: a state is dropped for a listener whose channel is full.
func (a *Applier) Subscribe(ch chan<- *clusterstate.State) {
	a.mut.Lock()
	defer a.mut.Unlock()

	a.listeners = append(a.listeners, ch)
}

// check tells whether a state with the given version can be applied on top of
// the applied one. A full resync may also overwrite the current version.
func check(applied, version uint64, full bool) error {
	if version == applied+1 {
		return nil
	}

	if full && version >= applied {
		return nil
	}

	return fmt.Errorf("%w: received %d, applied %d", ErrVersionConflict, version, applied)
}

func (a *Applier) HandlePublish(ctx context.Context, req *nodeapi.PublishRequest) (*nodeapi.PublishResponse, error) {
	logger := kitlog.With(a.logger, "version", req.Version, "full", req.Full)

	a.mut.Lock()
	defer a.mut.Unlock()

	applied := a.store.Load()

	if err := check(applied.Version, req.Version, req.Full); err != nil {
		level.Warn(logger).Log("msg", "rejected cluster state", "err", err)
		return nodeapi.Nack(req.Version, err.Error()), nil
	}

	state, err := clusterstate.Unmarshal(req.State)
	if err != nil {
		level.Warn(logger).Log("msg", "failed to decode cluster state", "err", err)
		return nodeapi.Nack(req.Version, err.Error()), nil
	}

	if state.Version != req.Version {
		reason := fmt.Sprintf("state version %d does not match request version %d", state.Version, req.Version)
		level.Warn(logger).Log("msg", "rejected cluster state", "reason", reason)

		return nodeapi.Nack(req.Version, reason), nil
	}

	if req.Full {
		a.store.Replace(state)
	} else if err := a.store.Swap(state); err != nil {
		return nodeapi.Nack(req.Version, err.Error()), nil
	}

	level.Debug(logger).Log("msg", "applied cluster state", "indices", len(state.Metadata.Indices))

	for _, ch := range a.listeners {
		select {
		case ch <- state:
		default:
			level.Warn(logger).Log("msg", "state listener is full, dropping state")
		}
	}

	return nodeapi.Ack(req.Version), nil
}
