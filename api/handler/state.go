package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/maxpoletaev/shardcoord/api/model"
	"github.com/maxpoletaev/shardcoord/clusterstate"
	"github.com/maxpoletaev/shardcoord/routing"
)

type StateSource interface {
	Load() *clusterstate.State
}

type StateHandler struct {
	state  StateSource
	router *routing.OperationRouting
}

func NewStateHandler(state StateSource, router *routing.OperationRouting) *StateHandler {
	return &StateHandler{
		state:  state,
		router: router,
	}
}

func (api *StateHandler) Register(r chi.Router) {
	r.Get("/state", api.getState)
	r.Get("/search_shards", api.searchShards)
}

func renderError(w http.ResponseWriter, r *http.Request, status int, err error) {
	render.Status(r, status)
	render.JSON(w, r, model.ErrorResponse{Error: err.Error()})
}

func (api *StateHandler) getState(w http.ResponseWriter, r *http.Request) {
	state := api.state.Load()

	resp := model.GetStateResponse{
		Version:     state.Version,
		ClusterUUID: state.ClusterUUID,
		Settings:    state.Metadata.Settings,
		Indices:     make([]model.Index, 0, len(state.Metadata.Indices)),
	}

	for _, name := range state.IndexNames() {
		meta, _ := state.Index(name)

		index := model.Index{
			Name:     meta.Name,
			Shards:   meta.NumberOfShards,
			Replicas: meta.NumberOfReplicas,
			State:    meta.State.String(),
			Settings: meta.Settings,
			Routing:  make([]model.Shard, 0, meta.NumberOfShards),
		}

		for _, shard := range state.ShardNumbers(name) {
			copies := state.Copies(name, shard)
			respCopies := make([]model.ShardCopy, len(copies))

			for i, c := range copies {
				respCopies[i] = model.ShardCopy{
					NodeID:           c.NodeID,
					RelocatingNodeID: c.RelocatingNodeID,
					Primary:          c.Primary,
					State:            c.State.String(),
					AllocationID:     c.AllocationID,
				}
			}

			index.Routing = append(index.Routing, model.Shard{
				Shard:  shard,
				Copies: respCopies,
			})
		}

		resp.Indices = append(resp.Indices, index)
	}

	render.JSON(w, r, resp)
}

func splitIndices(s string) []string {
	parts := strings.Split(s, ",")
	indices := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			indices = append(indices, p)
		}
	}

	return indices
}

func (api *StateHandler) searchShards(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	indices := splitIndices(query.Get("index"))
	if len(indices) == 0 {
		renderError(w, r, http.StatusBadRequest, errors.New("index parameter is required"))
		return
	}

	opts := routing.SearchOptions{
		Preference:   query.Get("preference"),
		ClusterAlias: query.Get("cluster_alias"),
	}

	// One state for the whole request.
	state := api.state.Load()

	groups, err := api.router.SearchShards(state, indices, opts)
	if err != nil {
		status := http.StatusInternalServerError

		switch {
		case errors.Is(err, routing.ErrIndexNotFound):
			status = http.StatusNotFound
		case errors.Is(err, routing.ErrIndexClosed):
			status = http.StatusBadRequest
		}

		renderError(w, r, status, err)

		return
	}

	resp := model.SearchShardsResponse{
		Version:                  state.Version,
		Size:                     groups.Size(),
		TotalSizeWithOneForEmpty: groups.TotalSizeWithOneForEmpty(),
		Groups:                   make([]model.ShardGroup, 0, groups.Size()),
	}

	it := groups.Iterator()

	for group, ok := it.Next(); ok; group, ok = it.Next() {
		shardID := group.ShardID()
		targets := make([]model.ShardTarget, 0, group.Size())

		for target, ok := group.Next(); ok; target, ok = group.Next() {
			targets = append(targets, model.ShardTarget{
				NodeID:       target.NodeID(),
				Index:        target.ShardID().Index,
				Shard:        target.ShardID().Shard,
				ClusterAlias: target.ClusterAlias(),
				FullName:     target.FullyQualifiedIndexName(),
			})
		}

		resp.Groups = append(resp.Groups, model.ShardGroup{
			Index:   shardID.Index,
			Shard:   shardID.Shard,
			Targets: targets,
		})
	}

	render.JSON(w, r, resp)
}
