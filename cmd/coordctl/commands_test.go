package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpoletaev/shardcoord/api/model"
)

type fakeAPI struct {
	created map[string]model.CreateIndexParams
	query   map[string]string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	api := &fakeAPI{
		created: make(map[string]model.CreateIndexParams),
		query:   make(map[string]string),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.GetStateResponse{
			Version:     3,
			ClusterUUID: "test",
			Indices: []model.Index{{
				Name: "logs",
				Routing: []model.Shard{{
					Shard: 0,
					Copies: []model.ShardCopy{
						{NodeID: "node1", Primary: true, State: "STARTED"},
						{Primary: false, State: "UNASSIGNED"},
					},
				}},
			}},
		})
	})

	mux.HandleFunc("/nodes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.GetNodesResponse{
			Nodes: []model.Node{{ID: "node1", Name: "one", Addr: "127.0.0.1:3000", Status: "healthy"}},
		})
	})

	mux.HandleFunc("/search_shards", func(w http.ResponseWriter, r *http.Request) {
		for key := range r.URL.Query() {
			api.query[key] = r.URL.Query().Get(key)
		}

		writeJSON(w, http.StatusOK, model.SearchShardsResponse{
			Version: 3,
			Size:    1,
			Groups: []model.ShardGroup{{
				Index:   "logs",
				Shard:   0,
				Targets: []model.ShardTarget{{NodeID: "node1"}, {NodeID: "node2"}},
			}},
		})
	})

	mux.HandleFunc("/indices/", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[len("/indices/"):]

		switch r.Method {
		case http.MethodPut:
			var params model.CreateIndexParams
			if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
				writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
				return
			}

			api.created[name] = params

			writeJSON(w, http.StatusOK, model.TaskResponse{
				Acknowledged: false,
				Version:      4,
				Failed:       map[string]string{"node2": "context deadline exceeded"},
			})
		case http.MethodDelete:
			writeJSON(w, http.StatusNotFound, model.ErrorResponse{Error: "index not found"})
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return api, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func execute(t *testing.T, addr string, args ...string) (string, error) {
	cmd := newRootCmd()
	out := &bytes.Buffer{}

	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--addr", addr}, args...))

	err := cmd.Execute()

	return out.String(), err
}

func TestStatusCmd(t *testing.T) {
	_, srv := newFakeAPI(t)

	out, err := execute(t, srv.URL, "status")
	require.NoError(t, err)

	assert.Contains(t, out, "version: 3")
	assert.Contains(t, out, "cluster: test")
	assert.Contains(t, out, "127.0.0.1:3000")
}

func TestStateCmd(t *testing.T) {
	_, srv := newFakeAPI(t)

	out, err := execute(t, srv.URL, "state")
	require.NoError(t, err)

	assert.Contains(t, out, "node1")
	assert.Contains(t, out, "UNASSIGNED")
}

func TestSearchShardsCmd(t *testing.T) {
	api, srv := newFakeAPI(t)

	out, err := execute(t, srv.URL, "search-shards", "--index", "logs,metrics", "--preference", "_local")
	require.NoError(t, err)

	assert.Equal(t, "logs,metrics", api.query["index"])
	assert.Equal(t, "_local", api.query["preference"])
	assert.NotContains(t, api.query, "cluster_alias")
	assert.Contains(t, out, "[logs][0]")
	assert.Contains(t, out, "node1,node2")
}

func TestSearchShardsCmd_IndexRequired(t *testing.T) {
	_, srv := newFakeAPI(t)

	_, err := execute(t, srv.URL, "search-shards")
	require.Error(t, err)
}

func TestCreateIndexCmd(t *testing.T) {
	api, srv := newFakeAPI(t)

	out, err := execute(t, srv.URL, "create-index", "logs", "--shards", "3", "--replicas", "2")
	require.NoError(t, err)

	require.Contains(t, api.created, "logs")
	assert.Equal(t, 3, api.created["logs"].Shards)
	assert.Equal(t, 2, api.created["logs"].Replicas)
	assert.Contains(t, out, "acknowledged: false, version: 4")
	assert.Contains(t, out, "no response from node2: context deadline exceeded")
}

func TestDeleteIndexCmd_Error(t *testing.T) {
	_, srv := newFakeAPI(t)

	_, err := execute(t, srv.URL, "delete-index", "logs")
	require.ErrorIs(t, err, ErrRequestFailed)
	assert.Contains(t, err.Error(), "index not found")
}
