package model

type CreateIndexParams struct {
	Shards   int               `json:"Shards"`
	Replicas int               `json:"Replicas"`
	Settings map[string]string `json:"Settings"`
}

// TaskResponse is returned for requests that change the cluster state.
// Acknowledged is false if some nodes have not confirmed the new state.
type TaskResponse struct {
	Acknowledged bool              `json:"Acknowledged"`
	Version      uint64            `json:"Version"`
	Nacked       map[string]string `json:"Nacked,omitempty"`
	Failed       map[string]string `json:"Failed,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"Error"`
}
