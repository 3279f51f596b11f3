package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/maxpoletaev/shardcoord/api/model"
	"github.com/maxpoletaev/shardcoord/membership"
)

type NodeRegistry interface {
	Nodes() []membership.Node
}

type NodesHandler struct {
	nodes NodeRegistry
}

func NewNodesHandler(nodes NodeRegistry) *NodesHandler {
	return &NodesHandler{
		nodes: nodes,
	}
}

func (api *NodesHandler) Register(r chi.Router) {
	r.Get("/nodes", api.getNodes)
}

func (api *NodesHandler) getNodes(w http.ResponseWriter, r *http.Request) {
	nodes := api.nodes.Nodes()
	respNodes := make([]model.Node, len(nodes))

	for i, node := range nodes {
		respNodes[i] = model.Node{
			ID:     string(node.ID),
			Name:   node.Name,
			Addr:   node.Addr,
			Status: node.Status.String(),
		}
	}

	render.JSON(w, r, model.GetNodesResponse{
		Nodes: respNodes,
	})
}
