package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/maxpoletaev/shardcoord/api/model"
	"github.com/maxpoletaev/shardcoord/clusterstate"
	"github.com/maxpoletaev/shardcoord/coordination"
)

type TaskQueue interface {
	Submit(task coordination.Task) <-chan coordination.Result
	Pending() []coordination.PendingTask
}

type TasksHandler struct {
	queue   TaskQueue
	nodes   coordination.NodeLister
	timeout time.Duration
}

// NewTasksHandler creates the handler of the endpoints that submit state
// update tasks. Tasks that are not drained within the timeout fail.
func NewTasksHandler(queue TaskQueue, nodes coordination.NodeLister, timeout time.Duration) *TasksHandler {
	return &TasksHandler{
		queue:   queue,
		nodes:   nodes,
		timeout: timeout,
	}
}

func (api *TasksHandler) Register(r chi.Router) {
	r.Get("/tasks", api.getTasks)
	r.Put("/indices/{name}", api.createIndex)
	r.Delete("/indices/{name}", api.deleteIndex)
}

func (api *TasksHandler) getTasks(w http.ResponseWriter, r *http.Request) {
	pending := api.queue.Pending()
	tasks := make([]model.PendingTask, len(pending))

	for i, t := range pending {
		tasks[i] = model.PendingTask{
			Source:      t.Source,
			Priority:    t.Priority.String(),
			InsertedAt:  t.InsertedAt,
			TimeInQueue: t.TimeInQueue.String(),
		}
	}

	render.JSON(w, r, model.GetTasksResponse{
		Tasks: tasks,
	})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, clusterstate.ErrInvalidIndex):
		return http.StatusBadRequest
	case errors.Is(err, clusterstate.ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, clusterstate.ErrIndexExists):
		return http.StatusConflict
	case errors.Is(err, coordination.ErrQueueShutdown):
		return http.StatusServiceUnavailable
	case errors.Is(err, coordination.ErrTaskTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func stringMap[K ~string](m map[K]string) map[string]string {
	if len(m) == 0 {
		return nil
	}

	out := make(map[string]string, len(m))
	for k, v := range m {
		out[string(k)] = v
	}

	return out
}

// submit runs the task and waits for the result. Commit is enough for a
// successful response, nodes that did not confirm the state are listed in
// the response.
func (api *TasksHandler) submit(w http.ResponseWriter, r *http.Request, task coordination.Task) {
	task.AckAware = true
	task.Timeout = api.timeout

	var res coordination.Result

	select {
	case res = <-api.queue.Submit(task):
	case <-r.Context().Done():
		renderError(w, r, http.StatusRequestTimeout, r.Context().Err())
		return
	}

	if res.Outcome == coordination.OutcomeFailure {
		renderError(w, r, errorStatus(res.Err), res.Err)
		return
	}

	render.JSON(w, r, model.TaskResponse{
		Acknowledged: res.Outcome == coordination.OutcomeAcked,
		Version:      res.Version,
		Nacked:       stringMap(res.Nacked),
		Failed:       stringMap(res.Failed),
	})
}

func (api *TasksHandler) createIndex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var params model.CreateIndexParams
	if err := render.DecodeJSON(r.Body, &params); err != nil {
		renderError(w, r, http.StatusBadRequest, err)
		return
	}

	meta := clusterstate.IndexMetadata{
		Name:             name,
		NumberOfShards:   params.Shards,
		NumberOfReplicas: params.Replicas,
		Settings:         params.Settings,
	}

	if err := clusterstate.ValidateIndex(meta); err != nil {
		renderError(w, r, http.StatusBadRequest, err)
		return
	}

	api.submit(w, r, coordination.Task{
		Source:   "create-index [" + name + "]",
		Priority: coordination.PriorityUrgent,
		Apply:    coordination.CreateIndex(meta, api.nodes),
	})
}

func (api *TasksHandler) deleteIndex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	api.submit(w, r, coordination.Task{
		Source:   "delete-index [" + name + "]",
		Priority: coordination.PriorityUrgent,
		Apply:    coordination.DeleteIndex(name),
	})
}
