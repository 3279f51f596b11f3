package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maxpoletaev/shardcoord/api/handler"
	"github.com/maxpoletaev/shardcoord/coordination"
	"github.com/maxpoletaev/shardcoord/routing"
)

type Config struct {
	State handler.StateSource
	Nodes handler.NodeRegistry

	// Queue is only set on the node that publishes the state. Without it the
	// endpoints changing the state are not served.
	Queue   handler.TaskQueue
	Routing *routing.OperationRouting

	// Allocation lists the nodes new indices are allocated to.
	Allocation coordination.NodeLister

	// TaskTimeout limits how long a task submitted through the API may wait
	// in the queue.
	TaskTimeout time.Duration

	// Gatherer serves the /metrics endpoint, which is disabled if nil.
	Gatherer prometheus.Gatherer
}

func CreateRouter(conf Config) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	handler.NewStateHandler(conf.State, conf.Routing).Register(r)
	handler.NewNodesHandler(conf.Nodes).Register(r)

	if conf.Queue != nil {
		handler.NewTasksHandler(conf.Queue, conf.Allocation, conf.TaskTimeout).Register(r)
	}

	if conf.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(conf.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
