package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/maxpoletaev/shardcoord/api"
	"github.com/maxpoletaev/shardcoord/api/handler"
	"github.com/maxpoletaev/shardcoord/applier"
	"github.com/maxpoletaev/shardcoord/clusterstate"
	"github.com/maxpoletaev/shardcoord/coordination"
	"github.com/maxpoletaev/shardcoord/membership"
	"github.com/maxpoletaev/shardcoord/metrics"
	"github.com/maxpoletaev/shardcoord/nodeapi"
	nodeapigrpc "github.com/maxpoletaev/shardcoord/nodeapi/grpc"
	"github.com/maxpoletaev/shardcoord/publication"
	"github.com/maxpoletaev/shardcoord/routing"
)

type shutdownFunc func(ctx context.Context) error

var noopShutdown = func(ctx context.Context) error { return nil }

func setupLogger() (kitlog.Logger, shutdownFunc) {
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)

	if !opts.Verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	return logger, noopShutdown
}

func setupMetrics() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return reg, metrics.New(reg)
}

func setupCluster(logger kitlog.Logger) (*membership.Cluster, shutdownFunc) {
	conf := membership.DefaultConfig()
	conf.NodeID = membership.NodeID(opts.Node.ID)
	conf.NodeName = opts.Node.Name
	conf.Addr = opts.GRPC.PublicAddr
	conf.Dialer = nodeapigrpc.Dial
	conf.Logger = logger

	cluster := membership.NewCluster(conf)

	static, err := parseNodes(opts.Cluster.Nodes)
	if err != nil {
		panic(fmt.Sprintf("failed to parse static nodes: %v", err))
	}

	for id, addr := range static {
		if membership.NodeID(id) == conf.NodeID {
			continue
		}

		cluster.Add(membership.Node{ID: membership.NodeID(id), Name: id, Addr: addr})
	}

	cluster.Start()

	shutdown := func(ctx context.Context) error {
		logger.Log("msg", "closing cluster connections")
		cluster.Stop()

		return nil
	}

	return cluster, shutdown
}

func setupDiscovery(cluster *membership.Cluster, logger kitlog.Logger) shutdownFunc {
	if opts.Cluster.GossipPort == 0 {
		return noopShutdown
	}

	conf := membership.DefaultDiscoveryConfig()
	conf.BindAddr = opts.Cluster.GossipAddr
	conf.BindPort = opts.Cluster.GossipPort
	conf.Logger = logger

	discovery, err := membership.NewDiscovery(cluster, conf)
	if err != nil {
		panic(fmt.Sprintf("failed to start discovery: %v", err))
	}

	if addrs := parseAddrs(opts.Cluster.JoinAddrs); len(addrs) > 0 {
		n, err := discovery.Join(addrs)
		if err != nil {
			level.Warn(logger).Log("msg", "failed to join cluster", "addrs", opts.Cluster.JoinAddrs, "err", err)
		} else {
			level.Info(logger).Log("msg", "joined cluster", "contacted", n)
		}
	}

	shutdown := func(ctx context.Context) error {
		logger.Log("msg", "leaving cluster")

		if err := discovery.Leave(5 * time.Second); err != nil {
			return fmt.Errorf("failed to leave cluster: %w", err)
		}

		return nil
	}

	return shutdown
}

// setupApplier creates the member side of the publication and registers the
// in-process connection to the local node, so that the leader publishes to
// itself the same way it publishes to others.
func setupApplier(cluster *membership.Cluster, logger kitlog.Logger) *applier.Applier {
	conf := applier.DefaultConfig()
	conf.Logger = logger

	a := applier.New(conf)
	cluster.AddConn(cluster.SelfID(), nodeapi.NewLocalClient(a))

	return a
}

func setupGRPCServer(g *errgroup.Group, handler nodeapi.PublishHandler, logger kitlog.Logger) shutdownFunc {
	grpcServer := grpc.NewServer(nodeapigrpc.ServerOptions()...)
	nodeapigrpc.Register(grpcServer, handler, logger)

	listener, err := net.Listen("tcp", opts.GRPC.BindAddr)
	if err != nil {
		panic(fmt.Sprintf("failed to create GRPC listener: %v", err))
	}

	g.Go(func() error {
		level.Info(logger).Log("msg", "starting GRPC server", "addr", opts.GRPC.BindAddr)

		if err := grpcServer.Serve(listener); err != nil {
			return fmt.Errorf("failed to start GRPC server: %w", err)
		}

		return nil
	})

	shutdown := func(ctx context.Context) error {
		logger.Log("msg", "shutting down GRPC server")
		grpcServer.GracefulStop()

		return nil
	}

	return shutdown
}

// allocationNodes lists the healthy members shards can be allocated to.
func allocationNodes(cluster *membership.Cluster) coordination.NodeLister {
	return func() []string {
		var ids []string

		for _, node := range cluster.Nodes() {
			if node.IsReachable() {
				ids = append(ids, string(node.ID))
			}
		}

		return ids
	}
}

func logResult(logger kitlog.Logger, source string, res coordination.Result) {
	switch res.Outcome {
	case coordination.OutcomeFailure:
		level.Error(logger).Log("msg", "task failed", "source", source, "err", res.Err)
	case coordination.OutcomeAckTimeout:
		level.Warn(logger).Log("msg", "task not acknowledged by all nodes", "source", source, "version", res.Version, "err", res.Err)
	default:
		level.Info(logger).Log("msg", "task completed", "source", source, "version", res.Version, "outcome", res.Outcome)
	}
}

// setupQueue starts the state update queue on the leader. Membership changes
// trigger a reroute of the shards, and the indices file is applied once.
func setupQueue(
	ctx context.Context,
	g *errgroup.Group,
	cluster *membership.Cluster,
	m *metrics.Metrics,
	logger kitlog.Logger,
) (*coordination.Queue, *clusterstate.Store, shutdownFunc) {
	quorum, err := publication.ParseQuorum(opts.Publish.Quorum)
	if err != nil {
		panic(fmt.Sprintf("invalid quorum: %v", err))
	}

	pubConf := publication.DefaultPublisherConfig()
	pubConf.Self = cluster.SelfID()
	pubConf.Members = cluster.Members
	pubConf.Transport = publication.NewClusterTransport(cluster)
	pubConf.Quorum = quorum
	pubConf.Timeout = opts.Publish.Timeout
	pubConf.Logger = logger

	store := clusterstate.NewStore(clusterstate.Empty(opts.Cluster.Name))

	queue := coordination.NewQueue(coordination.Config{
		Store:     store,
		Publisher: publication.NewPublisher(pubConf),
		Metrics:   m,
		Logger:    logger,
	})

	nodes := allocationNodes(cluster)

	if path := opts.Cluster.IndicesFile; path != "" {
		indices, err := loadIndicesFile(path)
		if err != nil {
			panic(fmt.Sprintf("failed to load indices file: %v", err))
		}

		result := queue.Submit(coordination.Task{
			Source:   "seed-indices",
			Priority: coordination.PriorityImmediate,
			AckAware: true,
			Apply:    coordination.SeedIndices(indices, nodes),
		})

		go func() {
			logResult(logger, "seed-indices", <-result)
		}()
	}

	cluster.Subscribe(func(event membership.ClusterEvent) {
		source := fmt.Sprintf("reroute (%s)", describeEvent(event))

		result := queue.Submit(coordination.Task{
			Source:   source,
			Priority: coordination.PriorityUrgent,
			Apply:    coordination.Reroute(nodes),
		})

		go func() {
			logResult(logger, source, <-result)
		}()
	})

	g.Go(func() error {
		if err := queue.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}

		return nil
	})

	shutdown := func(ctx context.Context) error {
		logger.Log("msg", "shutting down task queue")
		queue.Shutdown()

		return nil
	}

	return queue, store, shutdown
}

func loadIndicesFile(path string) ([]clusterstate.IndexMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	return clusterstate.LoadSeed(f)
}

func setupAPIServer(
	ctx context.Context,
	g *errgroup.Group,
	cluster *membership.Cluster,
	state handler.StateSource,
	queue handler.TaskQueue,
	reg *prometheus.Registry,
	logger kitlog.Logger,
) {
	conf := api.Config{
		State:       state,
		Nodes:       cluster,
		Queue:       queue,
		Routing:     routing.NewOperationRouting(string(cluster.SelfID())),
		Allocation:  allocationNodes(cluster),
		TaskTimeout: opts.API.TaskTimeout,
		Gatherer:    reg,
	}

	g.Go(func() error {
		return api.Serve(ctx, conf, logger, opts.API.BindAddr)
	})
}

func describeEvent(event membership.ClusterEvent) string {
	switch e := event.(type) {
	case *membership.NodeJoined:
		return fmt.Sprintf("node %s joined", e.Node.ID)
	case *membership.NodeLeft:
		return fmt.Sprintf("node %s left", e.ID)
	case *membership.NodeUpdated:
		return fmt.Sprintf("node %s is %s", e.ID, e.Status)
	default:
		return "membership changed"
	}
}
